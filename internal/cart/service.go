package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockLedger pairs every cart mutation with a matching reservation change.
type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) (int, error)
}

type productLoader interface {
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service owns cart lifecycle and reservation-paired mutations.
type Service interface {
	// CreateGuestCart opens a fresh anonymous cart; its ID doubles as the
	// guest token.
	CreateGuestCart(ctx context.Context) (*View, error)
	GetOrCreate(ctx context.Context, owner Owner) (*View, error)
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, owner Owner) (*View, error)
	ConvertGuestToUser(ctx context.Context, guestCartID, userID uuid.UUID) (*View, error)

	// MarkCheckedOut transitions an active cart inside the caller's transaction.
	MarkCheckedOut(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	// Totals derives the pricing summary for a set of cart items.
	Totals(items []models.CartItem) Totals

	ExpireStaleGuestCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error)
	PurgeOldCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   stockLedger
	products productLoader
	pricing  PricingOptions
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the cart service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledger stockLedger, products productLoader, pricing PricingOptions, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		products: products,
		pricing:  pricing,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	if owner.GuestCartID != nil {
		cart, err := s.loadOwnedCart(ctx, s.repo, owner)
		if err != nil {
			return nil, err
		}
		return s.view(cart), nil
	}

	cart, err := s.repo.FindActiveCartByUser(ctx, *owner.UserID)
	if err == gorm.ErrRecordNotFound {
		cart = &models.Cart{UserID: owner.UserID, Status: enums.CartStatusActive}
		if err := s.repo.CreateCart(ctx, cart); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
	} else if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.view(cart), nil
}

func (s *service) CreateGuestCart(ctx context.Context) (*View, error) {
	cart := &models.Cart{Status: enums.CartStatusActive}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guest cart")
	}
	return s.view(cart), nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.loadOwnedCart(ctx, s.repo, owner)
	if err != nil {
		return nil, err
	}
	return s.view(cart), nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	loaded, err := s.products.GetActiveByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	product, ok := loaded[productID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
	}

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.resolveActiveCart(ctx, repo, owner, true)
		if err != nil {
			return err
		}
		cartID = cart.ID

		if err := s.ledger.Reserve(ctx, tx, productID, qty, cartReference(cart.ID)); err != nil {
			return err
		}

		existing, err := repo.FindItem(ctx, cart.ID, productID)
		switch {
		case err == gorm.ErrRecordNotFound:
			item := &models.CartItem{
				CartID:         cart.ID,
				ProductID:      productID,
				Quantity:       qty,
				UnitPriceCents: product.PriceCents,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		default:
			if err := repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		}

		return touchActive(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cartID)
}

func (s *service) UpdateItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, owner, productID)
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.resolveActiveCart(ctx, repo, owner, false)
		if err != nil {
			return err
		}
		cartID = cart.ID

		item, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		delta := qty - item.Quantity
		switch {
		case delta > 0:
			if err := s.ledger.Reserve(ctx, tx, productID, delta, cartReference(cart.ID)); err != nil {
				return err
			}
		case delta < 0:
			if _, err := s.ledger.Release(ctx, tx, productID, -delta, cartReference(cart.ID)); err != nil {
				return err
			}
		default:
			return nil
		}

		if err := repo.UpdateItemQuantity(ctx, item.ID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return touchActive(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.resolveActiveCart(ctx, repo, owner, false)
		if err != nil {
			return err
		}
		cartID = cart.ID

		item, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if _, err := s.ledger.Release(ctx, tx, productID, item.Quantity, cartReference(cart.ID)); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return touchActive(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cartID)
}

func (s *service) Clear(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.resolveActiveCart(ctx, repo, owner, false)
		if err != nil {
			return err
		}
		cartID = cart.ID

		for _, item := range cart.Items {
			if _, err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity, cartReference(cart.ID)); err != nil {
				return err
			}
		}
		if err := repo.DeleteItemsByCart(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		return touchActive(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cartID)
}

// ConvertGuestToUser claims a guest cart after login. When the user already
// has an active cart, guest lines merge into it; reservations travel with the
// lines so no ledger calls are needed.
func (s *service) ConvertGuestToUser(ctx context.Context, guestCartID, userID uuid.UUID) (*View, error) {
	if guestCartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest cart token required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var resultID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		guest, err := repo.FindCart(ctx, guestCartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "guest cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
		}
		if !guest.IsGuest() {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already has an owner")
		}
		if guest.Status != enums.CartStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "guest cart is no longer active")
		}

		target, err := repo.FindActiveCartByUser(ctx, userID)
		if err == gorm.ErrRecordNotFound {
			if err := repo.AssignUser(ctx, guest.ID, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign cart owner")
			}
			resultID = guest.ID
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
		}

		for _, guestItem := range guest.Items {
			existing, err := repo.FindItem(ctx, target.ID, guestItem.ProductID)
			switch {
			case err == gorm.ErrRecordNotFound:
				moved := &models.CartItem{
					CartID:         target.ID,
					ProductID:      guestItem.ProductID,
					Quantity:       guestItem.Quantity,
					UnitPriceCents: guestItem.UnitPriceCents,
				}
				if err := repo.CreateItem(ctx, moved); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move cart item")
				}
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
			default:
				if err := repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+guestItem.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}
			}
		}

		if err := repo.DeleteItemsByCart(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drain guest cart")
		}
		if _, err := repo.UpdateCartStatus(ctx, guest.ID, enums.CartStatusActive, enums.CartStatusAbandoned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close guest cart")
		}
		if err := touchActive(ctx, repo, target.ID); err != nil {
			return err
		}
		resultID = target.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, resultID)
}

func (s *service) MarkCheckedOut(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	rows, err := s.repo.WithTx(tx).UpdateCartStatus(ctx, cartID, enums.CartStatusActive, enums.CartStatusCheckedOut)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart checked out")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
	}
	return nil
}

func (s *service) Totals(items []models.CartItem) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPriceCents * int64(item.Quantity)
	}

	totals := Totals{SubtotalCents: subtotal}
	if subtotal == 0 {
		return totals
	}

	totals.TaxCents = decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(s.pricing.TaxRateBps))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()

	if subtotal <= s.pricing.FreeShippingThresholdCents {
		totals.ShippingFeeCents = s.pricing.FlatShippingFeeCents
	}

	totals.TotalCents = totals.SubtotalCents + totals.TaxCents + totals.ShippingFeeCents
	return totals
}

// ExpireStaleGuestCarts abandons idle anonymous carts and releases their
// reservations. Failures are isolated per cart.
func (s *service) ExpireStaleGuestCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	cutoff := s.now().UTC().Add(-maxAge)

	carts, err := s.repo.ListStaleGuestCarts(ctx, cutoff, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale guest carts")
	}

	var expired int
	var errs error
	for _, stale := range carts {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			rows, err := repo.UpdateCartStatus(ctx, stale.ID, enums.CartStatusActive, enums.CartStatusAbandoned)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Someone touched the cart between listing and locking; skip.
				return nil
			}
			for _, item := range stale.Items {
				if _, err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity, cartReference(stale.ID)); err != nil {
					return err
				}
			}
			expired++
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire cart %s: %w", stale.ID, err))
		}
	}
	return expired, errs
}

// PurgeOldCarts deletes abandoned and checked-out carts past retention.
func (s *service) PurgeOldCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	cutoff := s.now().UTC().Add(-maxAge)

	carts, err := s.repo.ListPurgeableCarts(ctx, cutoff, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purgeable carts")
	}

	var purged int
	var errs error
	for _, old := range carts {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.DeleteItemsByCart(ctx, old.ID); err != nil {
				return err
			}
			if err := repo.DeleteCart(ctx, old.ID); err != nil {
				return err
			}
			purged++
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge cart %s: %w", old.ID, err))
		}
	}
	return purged, errs
}

// touchActive stamps cart activity inside the mutation's transaction. The
// status guard fails the whole transaction when a checkout won the race after
// the cart was read, so the paired reservation rolls back with it.
func touchActive(ctx context.Context, repo Repository, cartID uuid.UUID) error {
	rows, err := repo.TouchActiveCart(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
	}
	return nil
}

// resolveActiveCart loads the owner's cart, optionally creating one for
// owners without an active cart.
func (s *service) resolveActiveCart(ctx context.Context, repo Repository, owner Owner, createMissing bool) (*models.Cart, error) {
	if owner.GuestCartID != nil {
		cart, err := repo.FindCart(ctx, *owner.GuestCartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if !cart.IsGuest() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to a user")
		}
		if cart.Status != enums.CartStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
		}
		return cart, nil
	}

	cart, err := repo.FindActiveCartByUser(ctx, *owner.UserID)
	if err == gorm.ErrRecordNotFound {
		if !createMissing {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		cart = &models.Cart{UserID: owner.UserID, Status: enums.CartStatusActive}
		if err := repo.CreateCart(ctx, cart); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		return cart, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// loadOwnedCart reads a cart for display without creating anything.
func (s *service) loadOwnedCart(ctx context.Context, repo Repository, owner Owner) (*models.Cart, error) {
	if owner.GuestCartID != nil {
		cart, err := repo.FindCart(ctx, *owner.GuestCartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if !cart.IsGuest() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to a user")
		}
		return cart, nil
	}

	cart, err := repo.FindActiveCartByUser(ctx, *owner.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindCart(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.view(cart), nil
}

func (s *service) view(cart *models.Cart) *View {
	return &View{
		Cart:   *cart,
		Totals: s.Totals(cart.Items),
	}
}

func cartReference(cartID uuid.UUID) string {
	return "cart:" + cartID.String()
}
