package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/stride-labs/storefront-backend/api/routes"
	"github.com/stride-labs/storefront-backend/internal/auth"
	"github.com/stride-labs/storefront-backend/internal/cart"
	checkoutsvc "github.com/stride-labs/storefront-backend/internal/checkout"
	identitysvc "github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/internal/orders"
	"github.com/stride-labs/storefront-backend/internal/products"
	"github.com/stride-labs/storefront-backend/internal/users"
	stripewebhook "github.com/stride-labs/storefront-backend/internal/webhooks/stripe"
	"github.com/stride-labs/storefront-backend/pkg/auth/session"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db"
	"github.com/stride-labs/storefront-backend/pkg/logger"
	"github.com/stride-labs/storefront-backend/pkg/metrics"
	"github.com/stride-labs/storefront-backend/pkg/migrate"
	"github.com/stride-labs/storefront-backend/pkg/redis"
	pkgstripe "github.com/stride-labs/storefront-backend/pkg/stripe"
)

const (
	shutdownGrace         = 15 * time.Second
	webhookIdempotencyTTL = 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	closeAll := func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}
	defer closeAll()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	checkoutProvider := checkoutsvc.NewStripeClient(stripeClient)

	guestRepo := identitysvc.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())

	identityService, err := identitysvc.NewService(guestRepo, cfg.Guest)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:      cartRepo,
		Tx:        dbClient,
		Variants:  productsRepo,
		Guests:    identityService,
		GuestRepo: guestRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Carts:       cartRepo,
		Images:      productsRepo,
		Provider:    checkoutProvider,
		Config:      cfg.Checkout,
		CallTimeout: stripeClient.CallTimeout(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(dbClient.DB()),
		CartRepo:    cartRepo,
		Tx:          dbClient,
		Provider:    checkoutProvider,
		CallTimeout: stripeClient.CallTimeout(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: ordersService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		HTTPMetrics:    metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		SessionChecker: sessionManager,

		AuthService:     authService,
		IdentityService: identityService,
		CartService:     cartService,
		CheckoutService: checkoutService,
		OrdersService:   ordersService,

		StripeClient:       stripeClient,
		StripeWebhooks:     webhookService,
		StripeWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			closeAll()
			os.Exit(1)
		}
	case <-stop.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}
