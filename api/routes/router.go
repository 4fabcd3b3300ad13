package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketbloom/storefront-gateway/api/controllers"
	"github.com/marketbloom/storefront-gateway/api/middleware"
	cartsvc "github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/pkg/config"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
	pkgredis "github.com/marketbloom/storefront-gateway/pkg/redis"
)

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Journal     controllers.Pinger
	Redis       *pkgredis.Client
	Idempotency pkgredis.IdempotencyStore
	Carts       *cartsvc.Manager
	Commerce    controllers.CheckoutBackend
	Checkout    controllers.CheckoutRunner
	MetricsGath prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	logg := p.Logger

	idem := p.Idempotency
	var cache controllers.Pinger
	if p.Redis != nil {
		cache = p.Redis
		if idem == nil {
			idem = p.Redis
		}
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.Journal, cache))
	})

	if p.MetricsGath != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsGath, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(p.Config.JWT, logg))
		r.Use(middleware.Idempotency(idem, logg))

		r.Get("/session", controllers.SessionInfo(p.Commerce, logg))

		r.Get("/cart", controllers.CartFetch(p.Carts, logg))
		r.Post("/cart", controllers.CartAdd(p.Carts, logg))
		r.Patch("/cart/{lineId}", controllers.CartSetQuantity(p.Carts, logg))
		r.Delete("/cart/{lineId}", controllers.CartRemove(p.Carts, logg))
		r.Post("/cart/batch-delete", controllers.CartBatchDelete(p.Carts, logg))
		r.With(middleware.RequireMember(logg)).Post("/cart/merge", controllers.CartMerge(p.Carts, logg))

		r.With(middleware.RequireMember(logg)).Get("/coupons", controllers.CouponList(p.Commerce, logg))

		r.Post("/checkout/quote", controllers.CheckoutQuote(p.Carts, p.Commerce, logg))
		r.With(middleware.RequireMember(logg)).Post("/checkout", controllers.Checkout(p.Carts, p.Commerce, p.Checkout, logg))
	})

	return r
}
