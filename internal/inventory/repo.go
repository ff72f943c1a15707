package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

// Repository exposes stock persistence bound to an optional transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindStockRecord(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error)
	EnsureStockRecord(ctx context.Context, productID uuid.UUID, threshold int) (*models.StockRecord, error)
	ListStockRecords(ctx context.Context, lowStockOnly bool, page pagination.Params) ([]models.StockRecord, int64, error)

	IncrementReserved(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	DecrementReservedExact(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	DecrementReservedClamped(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	CommitReservation(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	IncrementAvailable(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	DecrementAvailableGuarded(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	SetAvailable(ctx context.Context, productID uuid.UUID, qty int) error
	SetThreshold(ctx context.Context, productID uuid.UUID, threshold int) (int64, error)

	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, int64, error)

	FindOpenAlert(ctx context.Context, productID uuid.UUID, alertType enums.AlertType) (*models.InventoryAlert, error)
	CreateAlert(ctx context.Context, alert *models.InventoryAlert) error
	ListAlerts(ctx context.Context, onlyOpen bool, page pagination.Params) ([]models.InventoryAlert, int64, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindStockRecord(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) EnsureStockRecord(ctx context.Context, productID uuid.UUID, threshold int) (*models.StockRecord, error) {
	record, err := r.FindStockRecord(ctx, productID)
	if err == nil {
		return record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	created := models.StockRecord{ProductID: productID, LowStockThreshold: threshold}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) ListStockRecords(ctx context.Context, lowStockOnly bool, page pagination.Params) ([]models.StockRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockRecord{})
	if lowStockOnly {
		query = query.Where("available_qty - reserved_qty <= low_stock_threshold")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.StockRecord
	err := query.
		Order("product_id").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// IncrementReserved grows the reservation only while sellable quantity covers it.
func (r *repository) IncrementReserved(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ? AND available_qty - reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty + ?", qty),
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// DecrementReservedExact shrinks the reservation only when fully covered.
func (r *repository) DecrementReservedExact(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ? AND reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// DecrementReservedClamped shrinks the reservation by at most qty in a single
// statement; a reservation growing concurrently is never wiped past the clamp.
func (r *repository) DecrementReservedClamped(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ? AND reserved_qty > 0", productID).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END", qty, qty),
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// CommitReservation converts reserved units into an outbound deduction. The
// reservation is clamped at zero so over-released rows cannot go negative.
func (r *repository) CommitReservation(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ? AND available_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("CASE WHEN reserved_qty > ? THEN reserved_qty - ? ELSE 0 END", qty, qty),
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) IncrementAvailable(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// DecrementAvailableGuarded shrinks available only while the result still
// covers outstanding reservations.
func (r *repository) DecrementAvailableGuarded(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ? AND available_qty - reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) SetAvailable(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"available_qty": qty,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repository) SetThreshold(ctx context.Context, productID uuid.UUID, threshold int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.StockRecord{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"low_stock_threshold": threshold,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if productID != uuid.Nil {
		query = query.Where("product_id = ?", productID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movements []models.StockMovement
	err := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&movements).Error
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *repository) FindOpenAlert(ctx context.Context, productID uuid.UUID, alertType enums.AlertType) (*models.InventoryAlert, error) {
	var alert models.InventoryAlert
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND type = ? AND resolved = ?", productID, alertType, false).
		First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *repository) CreateAlert(ctx context.Context, alert *models.InventoryAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repository) ListAlerts(ctx context.Context, onlyOpen bool, page pagination.Params) ([]models.InventoryAlert, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryAlert{})
	if onlyOpen {
		query = query.Where("resolved = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []models.InventoryAlert
	err := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&alerts).Error
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *repository) ResolveAlert(ctx context.Context, alertID uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.InventoryAlert{}).
		Where("id = ? AND resolved = ?", alertID, false).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}
