package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/cache"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockRestorer returns committed units to sellable stock when an order is
// cancelled.
type stockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
}

// transitions is the order state machine. Absent targets are rejected.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCompleted, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusCompleted, enums.OrderStatusCancelled},
}

func canTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Service manages the order lifecycle after checkout.
type Service interface {
	// Get loads an order. A non-nil requester restricts access to the owner.
	Get(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Order, int64, error)

	// UpdateStatus applies a lifecycle transition. Cancelling restores the
	// committed stock of every line.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)

	// Cancel is the owner-facing transition; it only applies to PENDING orders.
	Cancel(ctx context.Context, orderID uuid.UUID, requester uuid.UUID) (*models.Order, error)

	// Delete removes the order and its lines outright. Non-terminal orders
	// hand their committed stock back first.
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	restorer stockRestorer
	cache    *cache.Cache
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, restorer stockRestorer, c *cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if restorer == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		restorer: restorer,
		cache:    c,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order models.Order
	cacheKey := orderID.String()
	if hit, err := s.cache.GetJSON(ctx, cache.PrefixOrders, cacheKey, &order); err == nil && hit {
		return s.authorize(&order, requester)
	}

	loaded, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := s.cache.SetJSON(ctx, cache.PrefixOrders, cacheKey, loaded); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "order cache write failed: "+err.Error())
	}
	return s.authorize(loaded, requester)
}

func (s *service) authorize(order *models.Order, requester *uuid.UUID) (*models.Order, error) {
	if requester != nil && order.UserID != *requester {
		// Hide foreign orders entirely.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Order, int64, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	orders, total, err := s.repo.List(ctx, filter, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, total, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == target {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already in requested status")
		}
		if !canTransition(order.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition order from %s to %s", order.Status, target))
		}

		now := s.now().UTC()
		var stamp *time.Time
		if target.IsTerminal() {
			stamp = &now
		}

		rows, err := repo.UpdateStatus(ctx, orderID, order.Status, target, stamp)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		if target == enums.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.restorer.Restore(ctx, tx, item.ProductID, item.Quantity, orderReference(order.OrderNo)); err != nil {
					return err
				}
			}
		}

		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return result, nil
}

// Cancel lets an owner back out of an order the warehouse has not picked up.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, requester uuid.UUID) (*models.Order, error) {
	if requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.Get(ctx, orderID, &requester)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
	}
	return s.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled)
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !order.Status.IsTerminal() {
			for _, item := range order.Items {
				if err := s.restorer.Restore(ctx, tx, item.ProductID, item.Quantity, orderReference(order.OrderNo)); err != nil {
					return err
				}
			}
		}

		if err := repo.DeleteItemsByOrder(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
		}
		if err := repo.Delete(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *service) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, cache.PrefixOrders); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "order cache invalidation failed: "+err.Error())
	}
}

func orderReference(orderNo string) string {
	return "order:" + orderNo
}
