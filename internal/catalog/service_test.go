package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.StockRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn), db.NewWithConn(conn), nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func TestCreateProductSeedsStockRecord(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateInput{
		SKU:               "MIC-SM58",
		Name:              "Dynamic Vocal Microphone",
		PriceCents:        2590000,
		InitialStock:      12,
		LowStockThreshold: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if product.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if product.Status != enums.ProductStatusActive {
		t.Fatalf("expected ACTIVE status, got %s", product.Status)
	}

	var stock models.StockRecord
	if err := conn.First(&stock, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.AvailableQty != 12 || stock.LowStockThreshold != 3 {
		t.Fatalf("unexpected stock record %+v", stock)
	}
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := CreateInput{SKU: "CAB-XLR3", Name: "XLR Cable 3m", PriceCents: 190000}
	if _, err := svc.Create(ctx, input); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateProductAppliesPartialFields(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateInput{SKU: "HP-250", Name: "Closed Back Headphones", PriceCents: 1500000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	price := int64(1390000)
	status := enums.ProductStatusInactive
	updated, err := svc.Update(ctx, product.ID, UpdateInput{PriceCents: &price, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PriceCents != 1390000 {
		t.Fatalf("unexpected price %d", updated.PriceCents)
	}
	if updated.Status != enums.ProductStatusInactive {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.Name != "Closed Back Headphones" {
		t.Fatalf("untouched field changed: %s", updated.Name)
	}
}

func TestUpdateMissingProduct(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	name := "Anything"
	_, err := svc.Update(ctx, uuid.New(), UpdateInput{Name: &name})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetActiveByIDsSkipsInactive(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	active, err := svc.Create(ctx, CreateInput{SKU: "A-1", Name: "Active", PriceCents: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inactive, err := svc.Create(ctx, CreateInput{SKU: "A-2", Name: "Inactive", PriceCents: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(ctx, inactive.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	result, err := svc.GetActiveByIDs(ctx, []uuid.UUID{active.ID, inactive.ID, uuid.New()})
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one active product, got %d", len(result))
	}
	if _, ok := result[active.ID]; !ok {
		t.Fatal("active product missing from result")
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	category := "interfaces"
	for _, sku := range []string{"IF-1", "IF-2", "IF-3"} {
		if _, err := svc.Create(ctx, CreateInput{SKU: sku, Name: "Audio Interface " + sku, Category: &category, PriceCents: 100}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := "cables"
	if _, err := svc.Create(ctx, CreateInput{SKU: "CB-1", Name: "Patch Cable", Category: &other, PriceCents: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}

	products, total, err := svc.List(ctx, ListFilter{Category: category}, pagination.Params{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 matches, got %d", total)
	}
	if len(products) != 2 {
		t.Fatalf("expected page of 2, got %d", len(products))
	}

	products, total, err = svc.List(ctx, ListFilter{Search: "patch"}, pagination.Params{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || products[0].SKU != "CB-1" {
		t.Fatalf("unexpected search result %v total=%d", products, total)
	}
}
