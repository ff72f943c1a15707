package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/metrics"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger is the reservation surface other services call inside their own
// transactions. All quantities are positive; movements are written for every
// effective change.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) (int, error)
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error
}

// Service adds the operator-facing surface on top of the ledger.
type Service interface {
	Ledger

	Adjust(ctx context.Context, input AdjustInput) (*models.StockRecord, error)
	SetThreshold(ctx context.Context, productID uuid.UUID, threshold int) error
	GetStock(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error)
	ListStock(ctx context.Context, lowStockOnly bool, page pagination.Params) ([]models.StockRecord, int64, error)
	ListMovements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, int64, error)
	ListAlerts(ctx context.Context, onlyOpen bool, page pagination.Params) ([]models.InventoryAlert, int64, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID) error
}

// AdjustInput describes an operator stock correction. Exactly one of
// SetAvailable or Delta must be provided.
type AdjustInput struct {
	ProductID    uuid.UUID
	SetAvailable *int
	Delta        *int
	Note         *string
}

type service struct {
	repo             Repository
	tx               txRunner
	defaultThreshold int
	checkoutMetrics  *metrics.CheckoutMetrics
}

// NewService builds the inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner, defaultThreshold int, checkoutMetrics *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if defaultThreshold < 0 {
		defaultThreshold = 0
	}
	return &service{
		repo:             repo,
		tx:               tx,
		defaultThreshold: defaultThreshold,
		checkoutMetrics:  checkoutMetrics,
	}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error {
	if err := validateQty(productID, qty); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	rows, err := repo.IncrementReserved(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if rows == 0 {
		// Missing rows count as zero sellable stock. Materialize the record so
		// later adjustments have something to update.
		if _, err := repo.EnsureStockRecord(ctx, productID, s.defaultThreshold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock record")
		}
		s.checkoutMetrics.IncInsufficientStock()
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient sellable stock").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}

	record, err := repo.FindStockRecord(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	if err := s.writeMovement(ctx, repo, record, enums.MovementTypeReserved, qty, record.SellableQty()+qty, reference, nil); err != nil {
		return err
	}
	return s.refreshAlerts(ctx, repo, record)
}

// Release returns up to qty reserved units back to sellable stock. The result
// is the quantity actually released; zero releases write no movement.
func (s *service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) (int, error) {
	if err := validateQty(productID, qty); err != nil {
		return 0, err
	}
	repo := s.repo.WithTx(tx)

	rows, err := repo.DecrementReservedExact(ctx, productID, qty)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}

	released := qty
	if rows == 0 {
		record, err := repo.FindStockRecord(ctx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, nil
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
		}
		released = record.ReservedQty
		if released > qty {
			released = qty
		}
		if released <= 0 {
			return 0, nil
		}
		clamped, err := repo.DecrementReservedClamped(ctx, productID, qty)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp reservation")
		}
		if clamped == 0 {
			return 0, nil
		}
	}

	record, err := repo.FindStockRecord(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	if err := s.writeMovement(ctx, repo, record, enums.MovementTypeUnreserved, released, record.SellableQty()-released, reference, nil); err != nil {
		return 0, err
	}
	return released, nil
}

// Commit consumes a reservation at checkout: available drops by qty and the
// reservation shrinks by the same amount, so sellable stock is unchanged.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error {
	if err := validateQty(productID, qty); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	rows, err := repo.CommitReservation(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit reservation")
	}
	if rows == 0 {
		s.checkoutMetrics.IncInsufficientStock()
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock to fulfill").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}

	record, err := repo.FindStockRecord(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	if err := s.writeMovement(ctx, repo, record, enums.MovementTypeOut, qty, record.SellableQty(), reference, nil); err != nil {
		return err
	}
	return s.refreshAlerts(ctx, repo, record)
}

// Restore returns committed units to sellable stock after a cancellation.
func (s *service) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reference string) error {
	if err := validateQty(productID, qty); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	rows, err := repo.IncrementAvailable(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
	}
	if rows == 0 {
		if _, err := repo.EnsureStockRecord(ctx, productID, s.defaultThreshold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock record")
		}
		if _, err := repo.IncrementAvailable(ctx, productID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}

	record, err := repo.FindStockRecord(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	return s.writeMovement(ctx, repo, record, enums.MovementTypeIn, qty, record.SellableQty()-qty, reference, nil)
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.StockRecord, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if (input.SetAvailable == nil) == (input.Delta == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of set_available or delta required")
	}
	if input.SetAvailable != nil && *input.SetAvailable < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available quantity cannot be negative")
	}

	var result *models.StockRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.EnsureStockRecord(ctx, input.ProductID, s.defaultThreshold)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock record")
		}

		delta := 0
		if input.Delta != nil {
			delta = *input.Delta
		} else {
			delta = *input.SetAvailable - record.AvailableQty
		}

		switch {
		case delta > 0:
			if _, err := repo.IncrementAvailable(ctx, input.ProductID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply adjustment")
			}
		case delta < 0:
			rows, err := repo.DecrementAvailableGuarded(ctx, input.ProductID, -delta)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply adjustment")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would undercut reserved stock").
					WithDetails(map[string]any{"product_id": input.ProductID, "delta": delta})
			}
		}

		record, err = repo.FindStockRecord(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
		}

		if delta != 0 {
			movementType := enums.MovementTypeIn
			qty := delta
			if delta < 0 {
				movementType = enums.MovementTypeOut
				qty = -delta
			}
			if err := s.writeMovement(ctx, repo, record, movementType, qty, record.SellableQty()-delta, "adjustment", input.Note); err != nil {
				return err
			}
		}

		if err := s.refreshAlerts(ctx, repo, record); err != nil {
			return err
		}

		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) SetThreshold(ctx context.Context, productID uuid.UUID, threshold int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if threshold < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "threshold cannot be negative")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.EnsureStockRecord(ctx, productID, threshold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock record")
		}
		if _, err := repo.SetThreshold(ctx, productID, threshold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set threshold")
		}
		record, err := repo.FindStockRecord(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
		}
		return s.refreshAlerts(ctx, repo, record)
	})
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	record, err := s.repo.FindStockRecord(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return record, nil
}

func (s *service) ListStock(ctx context.Context, lowStockOnly bool, page pagination.Params) ([]models.StockRecord, int64, error) {
	records, total, err := s.repo.ListStockRecords(ctx, lowStockOnly, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock records")
	}
	return records, total, nil
}

func (s *service) ListMovements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, int64, error) {
	movements, total, err := s.repo.ListMovements(ctx, productID, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return movements, total, nil
}

func (s *service) ListAlerts(ctx context.Context, onlyOpen bool, page pagination.Params) ([]models.InventoryAlert, int64, error) {
	alerts, total, err := s.repo.ListAlerts(ctx, onlyOpen, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	return alerts, total, nil
}

func (s *service) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	if alertID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	rows, err := s.repo.ResolveAlert(ctx, alertID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve alert")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "open alert not found")
	}
	return nil
}

// writeMovement appends an audit row. Snapshots record sellable quantity
// before/after so the movement log reconstructs storefront availability.
func (s *service) writeMovement(ctx context.Context, repo Repository, record *models.StockRecord, movementType enums.MovementType, qty, previous int, reference string, note *string) error {
	movement := models.StockMovement{
		ProductID:     record.ProductID,
		Type:          movementType,
		Quantity:      qty,
		PreviousStock: previous,
		NewStock:      record.SellableQty(),
	}
	if reference != "" {
		movement.Reference = &reference
	}
	movement.Note = note

	if err := repo.CreateMovement(ctx, &movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write stock movement")
	}
	return nil
}

// refreshAlerts raises open alerts when sellable stock sinks to the threshold
// or below zero. Alerts never auto-resolve; operators close them explicitly.
func (s *service) refreshAlerts(ctx context.Context, repo Repository, record *models.StockRecord) error {
	sellable := record.SellableQty()

	var alertType enums.AlertType
	var message string
	switch {
	case sellable <= 0:
		alertType = enums.AlertTypeOutOfStock
		message = "product is out of sellable stock"
	case sellable <= record.LowStockThreshold:
		alertType = enums.AlertTypeLowStock
		message = fmt.Sprintf("sellable stock at %d (threshold %d)", sellable, record.LowStockThreshold)
	default:
		return nil
	}

	if _, err := repo.FindOpenAlert(ctx, record.ProductID, alertType); err == nil {
		return nil
	} else if err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open alerts")
	}

	alert := models.InventoryAlert{
		ProductID: record.ProductID,
		Type:      alertType,
		Message:   message,
	}
	if err := repo.CreateAlert(ctx, &alert); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create alert")
	}
	return nil
}

func validateQty(productID uuid.UUID, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
