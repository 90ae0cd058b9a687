package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stride-labs/storefront-backend/api/controllers"
	webhookcontrollers "github.com/stride-labs/storefront-backend/api/controllers/webhooks"
	"github.com/stride-labs/storefront-backend/api/middleware"
	"github.com/stride-labs/storefront-backend/internal/auth"
	"github.com/stride-labs/storefront-backend/internal/cart"
	checkoutsvc "github.com/stride-labs/storefront-backend/internal/checkout"
	identitysvc "github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/internal/orders"
	stripewebhook "github.com/stride-labs/storefront-backend/internal/webhooks/stripe"
	"github.com/stride-labs/storefront-backend/pkg/auth/session"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db"
	"github.com/stride-labs/storefront-backend/pkg/logger"
	"github.com/stride-labs/storefront-backend/pkg/metrics"
	"github.com/stride-labs/storefront-backend/pkg/redis"
	"github.com/stride-labs/storefront-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	HTTPMetrics    *metrics.HTTPMetrics
	SessionChecker session.AccessSessionChecker

	AuthService     auth.Service
	IdentityService identitysvc.Service
	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service

	StripeClient       *stripe.Client
	StripeWebhooks     *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhooks, p.StripeClient, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).
			Post("/register", controllers.AuthRegister(p.AuthService, p.CartService, cfg.Guest, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).
			Post("/login", controllers.AuthLogin(p.AuthService, p.CartService, cfg.Guest, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, p.SessionChecker, logg)).
			Post("/logout", controllers.AuthLogout(p.AuthService, logg))
	})

	// Storefront surface: a bearer token wins, otherwise the guest cookie.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(cfg.JWT, p.SessionChecker, p.IdentityService, cfg.Guest, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(p.CartService, logg))
				r.Delete("/", controllers.CartClear(p.CartService, logg))
				r.Post("/items", controllers.CartAddItem(p.CartService, logg))
				r.Patch("/items/{itemID}", controllers.CartUpdateItem(p.CartService, logg))
				r.Delete("/items/{itemID}", controllers.CartRemoveItem(p.CartService, logg))
			})
			r.Post("/checkout/session", controllers.CheckoutCreateSession(p.CheckoutService, cfg.Guest, logg))
			r.Get("/orders/confirm", controllers.OrderConfirm(p.OrdersService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
			r.Get("/ping", controllers.PrivatePing())
			r.Get("/orders", controllers.OrdersList(p.OrdersService, logg))
			r.Get("/orders/{orderID}", controllers.OrderDetail(p.OrdersService, logg))
		})
	})

	return r
}
