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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/perkshop-portal/api/controllers"
	"github.com/angelmondragon/perkshop-portal/api/routes"
	"github.com/angelmondragon/perkshop-portal/internal/audit"
	"github.com/angelmondragon/perkshop-portal/internal/budget"
	"github.com/angelmondragon/perkshop-portal/internal/cart"
	"github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/internal/hrsync"
	"github.com/angelmondragon/perkshop-portal/internal/orders"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/config"
	"github.com/angelmondragon/perkshop-portal/pkg/inflight"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/metrics"
	"github.com/angelmondragon/perkshop-portal/pkg/money"
	"github.com/angelmondragon/perkshop-portal/pkg/pubsub"
	"github.com/angelmondragon/perkshop-portal/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

type auditSink interface {
	orders.AuditSink
	hrsync.AuditSink
}

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
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	portalMetrics := metrics.NewPortalMetrics(registry)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient.Close)

	guard, err := inflight.NewGuard(redisClient, cfg.Inflight.GuardTTL)
	if err != nil {
		return err
	}

	upstream, err := orderservice.New(cfg.OrderService, portalMetrics, logg)
	if err != nil {
		return err
	}

	formatter, err := money.NewFormatter(cfg.Currency.Code)
	if err != nil {
		return err
	}

	readiness := map[string]controllers.Pinger{
		"redis":         redisClient,
		"order_service": upstream,
	}

	var sink auditSink = audit.NewLogRecorder(logg)
	if cfg.AuditEnabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		publisher := psClient.AuditPublisher()
		closers = append(closers, func() error {
			publisher.Stop()
			return nil
		})
		recorder, err := audit.NewRecorder(publisher, logg)
		if err != nil {
			return err
		}
		sink = recorder
		readiness["pubsub"] = psClient
	} else {
		logg.Warn(ctx, "audit topic not configured; audit records go to the log")
	}

	strictOps := append([]string{}, cfg.Orders.StrictAdminActions...)
	if cfg.HRSync.RemovalRequiresAdmin {
		strictOps = append(strictOps, orders.OperationHRSyncRemove)
	}
	policy, err := orders.NewPolicy(strictOps...)
	if err != nil {
		return err
	}

	budgetStore, err := budget.NewStore(upstream, redisClient, cfg.Budget.CacheTTL, logg)
	if err != nil {
		return err
	}

	cartStore, err := cart.NewRedisStore(redisClient, 0)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(upstream, cartStore, guard, logg)
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(cartService, budgetStore, upstream, guard, logg)
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(upstream, sink, budgetStore, guard, policy, portalMetrics, logg)
	if err != nil {
		return err
	}

	syncService, err := hrsync.NewService(hrsync.ServiceParams{
		Upstream: upstream,
		Audit:    sink,
		Guard:    guard,
		Policy:   policy,
		Metrics:  portalMetrics,
		Logger:   logg,
		Enabled:  cfg.HRSync.Enabled,
	})
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Params{
		Config:      cfg,
		Logger:      logg,
		Idempotency: redisClient,
		Readiness:   readiness,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Formatter:   formatter,
		Cart:        cartService,
		Checkout:    checkoutService,
		Budget:      budgetStore,
		Orders:      ordersService,
		HRSync:      syncService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "perkshop-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
