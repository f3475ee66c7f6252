package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/perkshop-portal/api/controllers"
	cartcontrollers "github.com/angelmondragon/perkshop-portal/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/perkshop-portal/api/controllers/orders"
	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/internal/budget"
	"github.com/angelmondragon/perkshop-portal/internal/cart"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/internal/hrsync"
	"github.com/angelmondragon/perkshop-portal/internal/orders"
	"github.com/angelmondragon/perkshop-portal/pkg/config"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/money"
	"github.com/angelmondragon/perkshop-portal/pkg/redis"
)

// Params carries everything the router wires into handlers.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Idempotency redis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler
	Formatter   *money.Formatter

	Cart     cart.Service
	Checkout checkoutsvc.Service
	Budget   budget.Store
	Orders   orders.Service
	HRSync   hrsync.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(p.Cart, p.Formatter, logg))
			r.Get("/summary", cartcontrollers.CartSummary(p.Checkout, p.Formatter, logg))
			r.Post("/items", cartcontrollers.CartAddItem(p.Cart, p.Formatter, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(p.Cart, p.Formatter, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(p.Cart, p.Formatter, logg))
		})
		r.Post("/checkout", controllers.Checkout(p.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/return", ordercontrollers.RequestReturn(p.Orders, logg))
		})

		r.Get("/budget", controllers.BudgetFetch(p.Budget, p.Formatter, logg))
		r.Post("/budget/refresh", controllers.BudgetRefresh(p.Budget, p.Formatter, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireManageOrders(logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/transitions", ordercontrollers.AdminTransition(p.Orders, logg))
			r.Patch("/{orderId}/items/{itemId}", ordercontrollers.AdminToggleItem(p.Orders, logg))
			r.Get("/{orderId}/hibob-sync", ordercontrollers.SyncPreview(p.HRSync, logg))
			r.Post("/{orderId}/hibob-sync", ordercontrollers.SyncPush(p.HRSync, logg))
			r.Delete("/{orderId}/hibob-sync", ordercontrollers.SyncRemove(p.HRSync, logg))
		})
	})

	return r
}
