package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/internal/cart"
	"github.com/thanhledev/audiomart-backend/internal/orders"
	"github.com/thanhledev/audiomart-backend/internal/promotions"
	"github.com/thanhledev/audiomart-backend/pkg/cache"
	pkgdb "github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartGateway interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.View, error)
	MarkCheckedOut(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	Totals(items []models.CartItem) cart.Totals
}

type promotionGateway interface {
	Validate(ctx context.Context, code string, subtotalCents int64) (*models.Promotion, error)
	Redeem(ctx context.Context, tx *gorm.DB, promotionID uuid.UUID) error
}

// stockCommitter converts held reservations into consumed stock.
type stockCommitter interface {
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
}

type productSource interface {
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// CreateOrderInput carries the buyer's checkout submission.
type CreateOrderInput struct {
	PromotionCode   *string
	ShippingAddress string
	Note            *string
}

// Service converts an active cart into an order in one transaction.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error)
}

type service struct {
	ordersRepo orders.Repository
	tx         txRunner
	carts      cartGateway
	promos     promotionGateway
	committer  stockCommitter
	products   productSource
	cache      *cache.Cache
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the checkout service with the required dependencies.
func NewService(
	ordersRepo orders.Repository,
	tx txRunner,
	carts cartGateway,
	promos promotionGateway,
	committer stockCommitter,
	products productSource,
	c *cache.Cache,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotion gateway required")
	}
	if committer == nil {
		return nil, fmt.Errorf("stock committer required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	return &service{
		ordersRepo: ordersRepo,
		tx:         tx,
		carts:      carts,
		promos:     promos,
		committer:  committer,
		products:   products,
		cache:      c,
		metrics:    checkoutMetrics,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	started := s.now()

	order, err := s.createOrder(ctx, userID, input)
	if err != nil {
		s.metrics.IncCheckoutFailure(failureReason(err))
		return nil, err
	}

	s.metrics.IncOrdersCreated()
	s.metrics.ObserveCheckoutDuration(s.now().Sub(started))

	s.invalidate(ctx)
	return order, nil
}

func (s *service) createOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	view, err := s.carts.Get(ctx, cart.Owner{UserID: &userID})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "no active cart to check out")
		}
		return nil, err
	}
	if len(view.Cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	subtotal := view.Totals.SubtotalCents

	var promotion *models.Promotion
	if input.PromotionCode != nil && strings.TrimSpace(*input.PromotionCode) != "" {
		promotion, err = s.promos.Validate(ctx, *input.PromotionCode, subtotal)
		if err != nil {
			return nil, err
		}
	}

	productIDs := make([]uuid.UUID, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.products.GetActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(view.Cart.Items))
	for _, line := range view.Cart.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart item is no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		items = append(items, models.OrderItem{
			ProductID:      line.ProductID,
			ProductName:    product.Name,
			SKU:            product.SKU,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.UnitPriceCents * int64(line.Quantity),
		})
	}

	discount := promotions.ComputeDiscount(promotion, subtotal)
	shipping := view.Totals.ShippingFeeCents
	total := subtotal - discount + shipping

	order, err := s.placeOrder(ctx, userID, view, input, promotion, items, subtotal, discount, shipping, total)
	if err != nil {
		// A colliding order number is the only retryable failure; roll the
		// number once and try again.
		if pkgdb.IsUniqueViolation(err, "uq_orders_order_no") {
			return s.placeOrder(ctx, userID, view, input, promotion, items, subtotal, discount, shipping, total)
		}
		return nil, err
	}
	return order, nil
}

func (s *service) placeOrder(
	ctx context.Context,
	userID uuid.UUID,
	view *cart.View,
	input CreateOrderInput,
	promotion *models.Promotion,
	items []models.OrderItem,
	subtotal, discount, shipping, total int64,
) (*models.Order, error) {
	order := &models.Order{
		OrderNo:          s.newOrderNo(),
		UserID:           userID,
		CartID:           view.Cart.ID,
		Status:           enums.OrderStatusPending,
		SubtotalCents:    subtotal,
		DiscountCents:    discount,
		ShippingFeeCents: shipping,
		TotalCents:       total,
		ShippingAddress:  strings.TrimSpace(input.ShippingAddress),
		Note:             input.Note,
		Items:            items,
	}
	if promotion != nil {
		code := promotion.Code
		order.PromotionCode = &code
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.carts.MarkCheckedOut(ctx, tx, view.Cart.ID); err != nil {
			return err
		}

		for _, item := range items {
			if err := s.committer.Commit(ctx, tx, item.ProductID, item.Quantity, "order:"+order.OrderNo); err != nil {
				return err
			}
		}

		if err := s.ordersRepo.WithTx(tx).Create(ctx, order); err != nil {
			if pkgdb.IsUniqueViolation(err, "uq_orders_order_no") {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if promotion != nil {
			if err := s.promos.Redeem(ctx, tx, promotion.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "order "+order.OrderNo+" created")
	}
	return order, nil
}

func (s *service) newOrderNo() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		buf = []byte{byte(s.now().Nanosecond()), byte(s.now().Nanosecond() >> 8)}
	}
	return fmt.Sprintf("ORD-%d-%s", s.now().UnixMilli(), strings.ToUpper(hex.EncodeToString(buf)))
}

func (s *service) invalidate(ctx context.Context) {
	for _, prefix := range []string{cache.PrefixOrders, cache.PrefixInventory} {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "cache invalidation failed: "+err.Error())
		}
	}
}

func failureReason(err error) string {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return "insufficient_stock"
	case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), pkgerrors.HasCode(err, pkgerrors.CodeConflict):
		return "conflict"
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation), pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return "validation"
	case pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
