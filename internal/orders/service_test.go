package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/internal/inventory"
	"github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Order{}, &models.OrderItem{},
		&models.StockRecord{}, &models.StockMovement{}, &models.InventoryAlert{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	runner := db.NewWithConn(conn)

	restorer, err := inventory.NewService(inventory.NewRepository(conn), runner, 5, nil)
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	svc, err := NewService(NewRepository(conn), runner, restorer, nil, nil)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	return svc, conn
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, items ...models.OrderItem) *models.Order {
	t.Helper()
	order := models.Order{
		OrderNo:         fmt.Sprintf("ORD-TEST-%s", uuid.NewString()),
		UserID:          userID,
		CartID:          uuid.New(),
		Status:          status,
		SubtotalCents:   100000,
		TotalCents:      130000,
		ShippingAddress: "12 Hang Bai, Hoan Kiem, Ha Noi",
		Items:           items,
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func seedStock(t *testing.T, conn *gorm.DB, productID uuid.UUID, available int) {
	t.Helper()
	record := models.StockRecord{ProductID: productID, AvailableQty: available, LowStockThreshold: 2}
	if err := conn.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending)

	updated, err := svc.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", updated.Status)
	}
	if updated.CompletedAt != nil || updated.CancelledAt != nil {
		t.Fatal("non-terminal transition must not stamp timestamps")
	}

	updated, err = svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if updated.Status != enums.OrderStatusCompleted || updated.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %s / %v", updated.Status, updated.CompletedAt)
	}
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	completed := seedOrder(t, conn, uuid.New(), enums.OrderStatusCompleted)
	if _, err := svc.UpdateStatus(ctx, completed.ID, enums.OrderStatusCancelled); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("terminal orders must not transition, got %v", err)
	}

	pending := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending)
	if _, err := svc.UpdateStatus(ctx, pending.ID, enums.OrderStatusPending); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("same-status transition should conflict, got %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, uuid.New(), enums.OrderStatusProcessing); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown order should be not found, got %v", err)
	}
}

func TestCancelRestoresCommittedStock(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	// Checkout already consumed the units, so available reflects the sale.
	seedStock(t, conn, first, 3)
	seedStock(t, conn, second, 0)

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending,
		models.OrderItem{ProductID: first, ProductName: "Tube Amp", SKU: "AMP-1", Quantity: 2, UnitPriceCents: 40000, LineTotalCents: 80000},
		models.OrderItem{ProductID: second, ProductName: "XLR Cable", SKU: "CBL-1", Quantity: 5, UnitPriceCents: 4000, LineTotalCents: 20000},
	)

	cancelled, err := svc.Cancel(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled with timestamp, got %s / %v", cancelled.Status, cancelled.CancelledAt)
	}

	var record models.StockRecord
	if err := conn.First(&record, "product_id = ?", first).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if record.AvailableQty != 5 {
		t.Fatalf("expected 5 available after restore, got %d", record.AvailableQty)
	}
	var secondRecord models.StockRecord
	if err := conn.First(&secondRecord, "product_id = ?", second).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if secondRecord.AvailableQty != 5 {
		t.Fatalf("expected 5 available after restore, got %d", secondRecord.AvailableQty)
	}

	var movements int64
	if err := conn.Model(&models.StockMovement{}).Where("type = ?", enums.MovementTypeIn).Count(&movements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if movements != 2 {
		t.Fatalf("expected one IN movement per line, got %d", movements)
	}
}

func TestCancelIsOwnerScopedAndPendingOnly(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	owner := uuid.New()
	order := seedOrder(t, conn, owner, enums.OrderStatusPending)

	if _, err := svc.Cancel(ctx, order.ID, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("foreign orders must stay hidden, got %v", err)
	}

	processing := seedOrder(t, conn, owner, enums.OrderStatusProcessing)
	if _, err := svc.Cancel(ctx, processing.ID, owner); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("processing orders cannot be cancelled by the owner, got %v", err)
	}
}

func TestDeleteRestoresStockForNonTerminalOrders(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	product := uuid.New()
	seedStock(t, conn, product, 3)

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusProcessing,
		models.OrderItem{ProductID: product, ProductName: "Tube Amp", SKU: "AMP-1", Quantity: 2, UnitPriceCents: 40000, LineTotalCents: 80000},
	)

	if err := svc.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var record models.StockRecord
	if err := conn.First(&record, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if record.AvailableQty != 5 {
		t.Fatalf("expected 5 available after restore, got %d", record.AvailableQty)
	}

	var count int64
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatal("order row should be gone")
	}
	if err := conn.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatal("order items should be gone")
	}
}

func TestDeleteTerminalOrderLeavesStockAlone(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	product := uuid.New()
	seedStock(t, conn, product, 3)

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusCompleted,
		models.OrderItem{ProductID: product, ProductName: "Tube Amp", SKU: "AMP-1", Quantity: 2, UnitPriceCents: 40000, LineTotalCents: 80000},
	)

	if err := svc.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var record models.StockRecord
	if err := conn.First(&record, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if record.AvailableQty != 3 {
		t.Fatalf("completed order must not restore stock, got %d", record.AvailableQty)
	}

	if err := svc.Delete(ctx, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func TestGetScopesToRequester(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	owner := uuid.New()
	order := seedOrder(t, conn, owner, enums.OrderStatusPending)

	got, err := svc.Get(ctx, order.ID, &owner)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.ID != order.ID {
		t.Fatalf("expected order %s, got %s", order.ID, got.ID)
	}

	stranger := uuid.New()
	if _, err := svc.Get(ctx, order.ID, &stranger); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}

	// Admin scope passes nil and sees everything.
	if _, err := svc.Get(ctx, order.ID, nil); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestListFiltersByUserAndStatus(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	seedOrder(t, conn, alice, enums.OrderStatusPending)
	seedOrder(t, conn, alice, enums.OrderStatusCompleted)
	seedOrder(t, conn, bob, enums.OrderStatusPending)

	orders, total, err := svc.List(ctx, ListFilter{UserID: &alice}, pagination.Params{})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if total != 2 || len(orders) != 2 {
		t.Fatalf("expected two orders for user, got total=%d len=%d", total, len(orders))
	}

	status := enums.OrderStatusPending
	orders, total, err = svc.List(ctx, ListFilter{Status: &status}, pagination.Params{})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected two pending orders, got %d", total)
	}
	for _, o := range orders {
		if o.Status != enums.OrderStatusPending {
			t.Fatalf("unexpected status %s", o.Status)
		}
	}
}
