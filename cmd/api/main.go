package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medusa-storefront/internal/config"
	"medusa-storefront/internal/db"
	"medusa-storefront/internal/event"
	"medusa-storefront/internal/httpserver"
	"medusa-storefront/internal/logging"
	"medusa-storefront/internal/medusa"
	"medusa-storefront/internal/migrate"
	"medusa-storefront/internal/payments"
	"medusa-storefront/internal/proxy"
	staterepo "medusa-storefront/internal/repository/state"
	cartsvc "medusa-storefront/internal/service/cart"
	"medusa-storefront/internal/service/checkout"
	paymentsvc "medusa-storefront/internal/service/payment"
	productsvc "medusa-storefront/internal/service/product"
	"medusa-storefront/internal/session"
	"medusa-storefront/internal/tracing"
)

var version = "dev"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampling,
		Environment:    cfg.Environment,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	state, closeState, err := openState(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open state store", zap.String("store", cfg.StateStore), zap.Error(err))
	}
	defer closeState()

	backend, err := medusa.New(medusa.Options{
		BaseURL:        cfg.MedusaBackendURL,
		PublishableKey: cfg.MedusaPublishableKey,
		Timeout:        cfg.MedusaTimeout(),
		Breaker: medusa.BreakerSettings{
			FailureRatio: cfg.BreakerFailureRatio,
			MinRequests:  cfg.BreakerMinRequests,
			OpenTimeout:  cfg.BreakerOpen(),
		},
	}, logger.Named("medusa"))
	if err != nil {
		logger.Fatal("init medusa client", zap.Error(err))
	}
	if backend.PublishableKey() == "" {
		logger.Warn("MEDUSA_PUBLISHABLE_KEY is not set; store API calls will be rejected by the backend")
	}

	var publisher event.Publisher = event.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger.Named("events"))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	}()

	carts := cartsvc.New(backend, logger.Named("cart"))
	checkoutDeps := checkout.Deps{
		Carts:                carts,
		Payments:             paymentsvc.New(backend, logger.Named("payment")),
		Finalizer:            checkout.NewFinalizer(backend, publisher, logger.Named("finalizer")),
		StripePublishableKey: cfg.StripePublishableKey,
		Logger:               logger.Named("checkout"),
	}
	if verifier := payments.NewStripeVerifier(cfg.StripeSecretKey); verifier.Enabled() {
		checkoutDeps.Verifier = verifier
	} else {
		logger.Info("STRIPE_SECRET_KEY is not set; card payments are not verified server-side")
	}

	srv := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions:            session.NewManager(state),
		SessionTTL:          cfg.StateTTL(),
		SecureCookies:       cfg.Environment == "production",
		State:               state,
		Carts:               carts,
		Checkout:            checkout.New(checkoutDeps),
		Products:            productsvc.New(backend, logger.Named("product")),
		Proxy:               proxy.NewHandler(backend, logger.Named("proxy")),
		ProxyRateLimitRPS:   float64(cfg.ProxyRateLimitRPS),
		ProxyRateLimitBurst: cfg.ProxyRateLimitBurst,
		CORSOrigins:         cfg.StoreCORS,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
}

// openState builds the session state store selected by STATE_STORE.
func openState(ctx context.Context, cfg config.Config, logger *zap.Logger) (staterepo.Repository, func(), error) {
	switch cfg.StateStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return staterepo.NewRedis(client, cfg.StateTTL()), func() { _ = client.Close() }, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		schema, err := migrate.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("state schema ready", zap.Uint("version", schema))
		return staterepo.NewPostgres(pool, cfg.StateTTL()), pool.Close, nil
	default:
		return staterepo.NewMemory(cfg.StateTTL()), func() {}, nil
	}
}
