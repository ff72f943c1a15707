package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thanhledev/audiomart-backend/api/controllers"
	"github.com/thanhledev/audiomart-backend/api/middleware"
	cartsvc "github.com/thanhledev/audiomart-backend/internal/cart"
	"github.com/thanhledev/audiomart-backend/internal/catalog"
	checkoutsvc "github.com/thanhledev/audiomart-backend/internal/checkout"
	"github.com/thanhledev/audiomart-backend/internal/inventory"
	"github.com/thanhledev/audiomart-backend/internal/orders"
	"github.com/thanhledev/audiomart-backend/internal/promotions"
	"github.com/thanhledev/audiomart-backend/pkg/config"
	"github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      redis.Pinger
	Registry   *prometheus.Registry
	Catalog    catalog.Service
	Carts      cartsvc.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Inventory  inventory.Service
	Promotions promotions.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(p.Catalog, logg))
			r.Get("/{productID}", controllers.ProductsGet(p.Catalog, logg))
		})

		r.Post("/promotions/validate", controllers.PromotionsValidate(p.Promotions, logg))

		// Cart endpoints accept either a bearer token or a guest cart token.
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.CartToken(logg))

			r.Post("/", controllers.CartCreateGuest(p.Carts, logg))
			r.Get("/", controllers.CartGet(p.Carts, logg))
			r.Post("/items", controllers.CartAddItem(p.Carts, logg))
			r.Patch("/items/{productID}", controllers.CartUpdateItem(p.Carts, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(p.Carts, logg))
			r.Delete("/items", controllers.CartClear(p.Carts, logg))

			r.With(middleware.Auth(cfg.JWT, logg)).Post("/claim", controllers.CartClaim(p.Carts, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/checkout", controllers.CheckoutCreateOrder(p.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(p.Orders, logg))
				r.Get("/{orderID}", controllers.OrdersGet(p.Orders, logg))
				r.Post("/{orderID}/cancel", controllers.OrdersCancel(p.Orders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.ProductsCreate(p.Catalog, logg))
			r.Patch("/{productID}", controllers.ProductsUpdate(p.Catalog, logg))
			r.Delete("/{productID}", controllers.ProductsDeactivate(p.Catalog, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.InventoryListStock(p.Inventory, logg))
			r.Get("/movements", controllers.InventoryListMovements(p.Inventory, logg))
			r.Get("/alerts", controllers.InventoryListAlerts(p.Inventory, logg))
			r.Post("/alerts/{alertID}/resolve", controllers.InventoryResolveAlert(p.Inventory, logg))
			r.Get("/{productID}", controllers.InventoryGetStock(p.Inventory, logg))
			r.Post("/{productID}/adjust", controllers.InventoryAdjust(p.Inventory, logg))
			r.Put("/{productID}/threshold", controllers.InventorySetThreshold(p.Inventory, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(p.Orders, logg))
			r.Get("/{orderID}", controllers.AdminOrdersGet(p.Orders, logg))
			r.Patch("/{orderID}/status", controllers.AdminOrdersUpdateStatus(p.Orders, logg))
			r.Delete("/{orderID}", controllers.AdminOrdersDelete(p.Orders, logg))
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Post("/", controllers.PromotionsCreate(p.Promotions, logg))
			r.Get("/", controllers.PromotionsList(p.Promotions, logg))
			r.Patch("/{promotionID}/active", controllers.PromotionsSetActive(p.Promotions, logg))
		})
	})

	return r
}
