package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "toko-storefront",
		Endpoint:      cfg.TracingEndpoint,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		cfg.TracingEnabled = false
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	var breaker *resilience.Breaker
	if cfg.BreakerEnabled {
		if err := resilience.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			logger.Error().Err(err).Msg("register breaker metrics")
		}
		breaker = resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
			WithTarget("store_" + cfg.StoreDriver).
			WithLogger(logger)
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	kv, closer, err := storage.Open(openCtx, storage.Options{
		Driver:    cfg.StoreDriver,
		DSN:       cfg.StoreDSN,
		KeyPrefix: cfg.StoreKeyPrefix,
		Tracing:   cfg.TracingEnabled,
		Metrics:   cfg.MetricsEnabled,
		Breaker:   breaker,
		Logger:    logger,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()

	catalogService, err := catalog.NewSeededService()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog")
	}

	cartStore := cart.NewStore(ctx, cart.StoreConfig{
		Mirror: cart.NewKVMirror(kv),
		Logger: logger,
	})
	state := cartStore.State()
	logger.Info().Int("items", len(state.Items)).Int("item_count", state.ItemCount).Msg("cart restored")

	var (
		locker  lock.Locker       = &lock.Local{}
		limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter("storefront")
	)
	if client := storage.RedisClient(kv); client != nil {
		locker = lock.Redis{Client: client, Prefix: cfg.StoreKeyPrefix}
		limiter = ratelimit.RedisLimiter{Client: client, Prefix: cfg.StoreKeyPrefix + "ratelimit:"}
	}

	authService, err := auth.NewService(auth.Config{
		Store:           kv,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		ClockSkew:       30 * time.Second,
		Locker:          locker,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), prometheus.DefaultRegisterer)
	}

	router := newRouter(routerDeps{
		Config:      cfg,
		Logger:      logger,
		HTTPMetrics: httpMetrics,
		Limiter:     limiter,
		Catalog:     catalogService,
		Cart:        cartStore,
		Auth:        authService,
		Store:       kv,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}
