package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/internal/cart"
	"github.com/thanhledev/audiomart-backend/internal/inventory"
	"github.com/thanhledev/audiomart-backend/internal/orders"
	"github.com/thanhledev/audiomart-backend/internal/promotions"
	"github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/metrics"
)

var testPricing = cart.PricingOptions{
	TaxRateBps:                 1000,
	FreeShippingThresholdCents: 500000,
	FlatShippingFeeCents:       30000,
}

type fakeCatalog struct {
	products map[uuid.UUID]models.Product
}

func (f *fakeCatalog) GetActiveByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fixture struct {
	checkout Service
	carts    cart.Service
	promos   promotions.Service
	catalog  *fakeCatalog
	conn     *gorm.DB
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
		&models.StockRecord{}, &models.StockMovement{}, &models.InventoryAlert{},
		&models.Promotion{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := db.NewWithConn(conn)
	catalog := &fakeCatalog{products: map[uuid.UUID]models.Product{}}

	ledger, err := inventory.NewService(inventory.NewRepository(conn), runner, 5, nil)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	carts, err := cart.NewService(cart.NewRepository(conn), runner, ledger, catalog, testPricing, nil)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	promos, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		t.Fatalf("promotions service: %v", err)
	}
	registry := prometheus.NewRegistry()
	svc, err := NewService(orders.NewRepository(conn), runner, carts, promos, ledger, catalog, nil, metrics.NewCheckoutMetrics(registry), nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	return &fixture{checkout: svc, carts: carts, promos: promos, catalog: catalog, conn: conn, registry: registry}
}

func (f *fixture) seedProduct(t *testing.T, name string, priceCents int64, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.catalog.products[id] = models.Product{
		ID:         id,
		Name:       name,
		SKU:        "SKU-" + id.String()[:8],
		PriceCents: priceCents,
		Status:     enums.ProductStatusActive,
	}
	record := models.StockRecord{ProductID: id, AvailableQty: available, LowStockThreshold: 2}
	if err := f.conn.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return id
}

func (f *fixture) fillCart(t *testing.T, userID uuid.UUID, productID uuid.UUID, qty int) {
	t.Helper()
	if _, err := f.carts.AddItem(context.Background(), cart.Owner{UserID: &userID}, productID, qty); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func (f *fixture) loadStock(t *testing.T, productID uuid.UUID) models.StockRecord {
	t.Helper()
	var record models.StockRecord
	if err := f.conn.First(&record, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return record
}

func TestCreateOrderConvertsCartAtomically(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	amp := f.seedProduct(t, "Tube Amp", 80000, 10)
	cable := f.seedProduct(t, "XLR Cable", 10000, 20)

	userID := uuid.New()
	f.fillCart(t, userID, amp, 1)
	f.fillCart(t, userID, cable, 2)

	order, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "12 Hang Bai, Hoan Kiem, Ha Noi"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if !strings.HasPrefix(order.OrderNo, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNo)
	}
	if order.SubtotalCents != 100000 {
		t.Fatalf("subtotal: got %d", order.SubtotalCents)
	}
	if order.ShippingFeeCents != 30000 {
		t.Fatalf("shipping: got %d", order.ShippingFeeCents)
	}
	if order.TotalCents != 130000 {
		t.Fatalf("total: got %d", order.TotalCents)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected two frozen lines, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.ProductName == "" || item.SKU == "" {
			t.Fatalf("line must freeze product identity: %+v", item)
		}
		if item.LineTotalCents != item.UnitPriceCents*int64(item.Quantity) {
			t.Fatalf("line total mismatch: %+v", item)
		}
	}

	// Reservations were consumed, not released.
	if record := f.loadStock(t, amp); record.AvailableQty != 9 || record.ReservedQty != 0 {
		t.Fatalf("amp stock: %d/%d", record.AvailableQty, record.ReservedQty)
	}
	if record := f.loadStock(t, cable); record.AvailableQty != 18 || record.ReservedQty != 0 {
		t.Fatalf("cable stock: %d/%d", record.AvailableQty, record.ReservedQty)
	}

	var converted models.Cart
	if err := f.conn.First(&converted, "id = ?", order.CartID).Error; err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if converted.Status != enums.CartStatusCheckedOut {
		t.Fatalf("cart should be checked out, got %s", converted.Status)
	}

	// The cart is consumed; a second checkout has nothing to convert.
	if _, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "12 Hang Bai"}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on re-checkout, got %v", err)
	}
}

func TestCreateOrderRequiresCartAndAddress(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing address, got %v", err)
	}
	if _, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for missing cart, got %v", err)
	}

	// An empty cart exists but cannot be converted.
	if _, err := f.carts.GetOrCreate(ctx, cart.Owner{UserID: &userID}); err != nil {
		t.Fatalf("create cart: %v", err)
	}
	if _, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestCreateOrderRecordsMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Preamp", 70000, 4)
	userID := uuid.New()
	f.fillCart(t, userID, product, 1)

	if _, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	mfs, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var sawCounter, sawDuration bool
	for _, mf := range mfs {
		switch mf.GetName() {
		case "orders_created_total":
			sawCounter = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Fatalf("expected one order counted, got %f", got)
			}
		case "checkout_duration_seconds":
			sawDuration = true
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Fatalf("expected one duration sample, got %d", got)
			}
		}
	}
	if !sawCounter || !sawDuration {
		t.Fatalf("missing checkout metrics: counter=%t duration=%t", sawCounter, sawDuration)
	}
}

func TestCreateOrderAppliesPromotion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Turntable", 200000, 5)
	userID := uuid.New()
	f.fillCart(t, userID, product, 1)

	limit := 1
	promo, err := f.promos.Create(ctx, promotions.CreateInput{
		Code:       "SPIN10",
		Type:       enums.PromotionTypePercent,
		Value:      10,
		UsageLimit: &limit,
	})
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}

	code := "spin10"
	order, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{
		PromotionCode:   &code,
		ShippingAddress: "45 Le Loi, Da Nang",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if order.DiscountCents != 20000 {
		t.Fatalf("discount: got %d", order.DiscountCents)
	}
	if order.TotalCents != 200000-20000+30000 {
		t.Fatalf("total: got %d", order.TotalCents)
	}
	if order.PromotionCode == nil || *order.PromotionCode != "SPIN10" {
		t.Fatalf("promotion code not frozen: %v", order.PromotionCode)
	}

	var stored models.Promotion
	if err := f.conn.First(&stored, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("load promotion: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Fatalf("expected one redemption, got %d", stored.UsedCount)
	}
}

func TestCreateOrderRejectsExhaustedPromotion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Headphones", 150000, 10)
	userID := uuid.New()
	f.fillCart(t, userID, product, 1)

	limit := 1
	promo, err := f.promos.Create(ctx, promotions.CreateInput{Code: "ONEUSE", Type: enums.PromotionTypeFixed, Value: 10000, UsageLimit: &limit})
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	if err := f.promos.Redeem(ctx, f.conn, promo.ID); err != nil {
		t.Fatalf("exhaust promotion: %v", err)
	}

	code := "ONEUSE"
	_, err = f.checkout.CreateOrder(ctx, userID, CreateOrderInput{PromotionCode: &code, ShippingAddress: "somewhere"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Nothing was converted; the cart is still usable.
	view, err := f.carts.Get(ctx, cart.Owner{UserID: &userID})
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Cart.Status != enums.CartStatusActive {
		t.Fatalf("cart should stay active, got %s", view.Cart.Status)
	}
}

func TestCreateOrderRollsBackOnInsufficientStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Speaker Pair", 120000, 10)
	userID := uuid.New()
	f.fillCart(t, userID, product, 5)

	// An operator correction drops available below the held quantity.
	if err := f.conn.Model(&models.StockRecord{}).Where("product_id = ?", product).Update("available_qty", 3).Error; err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	_, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var orderCount int64
	if err := f.conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("failed checkout must not create orders, got %d", orderCount)
	}

	view, err := f.carts.Get(ctx, cart.Owner{UserID: &userID})
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Cart.Status != enums.CartStatusActive {
		t.Fatalf("cart must survive the rollback, got %s", view.Cart.Status)
	}
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Studio Bundle", 600000, 3)
	userID := uuid.New()
	f.fillCart(t, userID, product, 1)

	order, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.ShippingFeeCents != 0 {
		t.Fatalf("expected free shipping, got %d", order.ShippingFeeCents)
	}
	if order.TotalCents != 600000 {
		t.Fatalf("total: got %d", order.TotalCents)
	}
}

func TestCreateOrderRejectsDeactivatedProduct(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, "Mixer", 90000, 5)
	userID := uuid.New()
	f.fillCart(t, userID, product, 1)

	// Product pulled from the storefront between add and checkout.
	delete(f.catalog.products, product)

	_, err := f.checkout.CreateOrder(ctx, userID, CreateOrderInput{ShippingAddress: "somewhere"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
