package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/metering"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"github.com/shipbox/billing/internal/infrastructure/cache"
	"github.com/shipbox/billing/internal/infrastructure/config"
	"github.com/shipbox/billing/internal/infrastructure/event"
	"github.com/shipbox/billing/internal/infrastructure/logger"
	"github.com/shipbox/billing/internal/infrastructure/notification"
	"github.com/shipbox/billing/internal/infrastructure/persistence"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"github.com/shipbox/billing/internal/interfaces/http/handler"
	"github.com/shipbox/billing/internal/interfaces/http/middleware"
	"github.com/shipbox/billing/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// Telemetry comes first so every later component logs, traces and
	// meters through the exporters.
	tel, log := setupTelemetry(ctx, cfg, log)
	defer tel.shutdown(log)

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.Driver == "sqlite" {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   dbSystem(cfg.Database.Driver),
	}, log)
	if err := tracingPlugin.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = tel.meters.IsEnabled()
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, tel.meter, dbMetricsCfg, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	billingMetrics, err := telemetry.NewBillingMetrics(tel.meter)
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	// Redis is optional; it backs the email queue and, when configured,
	// the idempotency cache.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var idempotencyClient redis.Cmdable
	if redisClient != nil {
		idempotencyClient = redisClient
	}
	idempotency, err := cache.NewIdempotencyStore(cfg.Billing.IdempotencyCacheMode, idempotencyClient, log)
	if err != nil {
		log.Fatal("Failed to create idempotency cache", zap.Error(err))
	}
	if closer, ok := idempotency.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	var notifier billingapp.Notifier = notification.NewLogNotifier(log)
	if redisClient != nil {
		notifier = notification.NewRedisQueueNotifier(redisClient, cfg.Redis.EmailQueue, log)
	}

	store := persistence.NewGormLedgerStore(db.DB)
	sessions := persistence.NewGormSessionCounter(db.DB)

	eventBus := event.NewInMemoryEventBus(log)
	lowBalance := billingapp.NewLowBalanceHandler(cfg.Billing.LowBalanceThreshold, notifier, log)
	eventBus.Subscribe(lowBalance)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event handlers registered", zap.Strings("low_balance_events", lowBalance.EventTypes()))

	stripeConfig := billing.NewStripeConfig(cfg)
	var gateway billingapp.PaymentGateway
	if stripeConfig.SecretKey != "" {
		stripeGateway, err := billing.NewStripeGateway(stripeConfig, log)
		if err != nil {
			log.Fatal("Failed to create Stripe gateway", zap.Error(err))
		}
		gateway = stripeGateway
	} else {
		log.Warn("Stripe secret key not set, checkout and portal are unavailable")
	}

	services := buildServices(cfg, serviceDeps{
		store:        store,
		sessions:     sessions,
		gateway:      gateway,
		stripeConfig: stripeConfig,
		idempotency:  idempotency,
		notifier:     notifier,
		publisher:    eventBus,
		metrics:      billingMetrics,
		log:          log,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(tel.httpMeter())
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins

	// Order matters: the request id must exist before logging and tracing,
	// and the span must exist before SpanErrorMarker reads it.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(httpMetrics)
	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = cfg.Profiling.Enabled
	engine.Use(middleware.ProfilingWithConfig(profilingConfig))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	router.Setup(engine, router.Handlers{
		Billing:  handler.NewBillingHandler(services.ledger, services.checkout),
		Webhook:  handler.NewWebhookHandler(services.webhook, log),
		Admin:    handler.NewAdminHandler(services.ledger, services.stats),
		Internal: handler.NewInternalHandler(services.metering, services.starter, services.quota),
		Health:   handler.NewHealthHandler(db),
	}, router.Tokens{
		Admin:    cfg.HTTP.AdminToken,
		Internal: cfg.HTTP.InternalToken,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

type serviceDeps struct {
	store        ledger.Store
	sessions     billingapp.SessionCounter
	gateway      billingapp.PaymentGateway
	stripeConfig *billing.StripeConfig
	idempotency  shared.IdempotencyStore
	notifier     billingapp.Notifier
	publisher    *event.InMemoryEventBus
	metrics      *telemetry.BillingMetrics
	log          *zap.Logger
}

type services struct {
	ledger   *billingapp.LedgerService
	stats    *billingapp.AdminStatsService
	checkout *billingapp.CheckoutService
	webhook  *billingapp.WebhookProcessor
	metering *billingapp.MeteringService
	starter  *billingapp.StarterCreditService
	quota    *billingapp.QuotaGuard
}

func buildServices(cfg *config.Config, d serviceDeps) services {
	return services{
		ledger:   billingapp.NewLedgerService(d.store, d.publisher, d.metrics, d.log),
		stats:    billingapp.NewAdminStatsService(d.store),
		checkout: billingapp.NewCheckoutService(d.store, d.gateway, cfg.Billing.MinTopUpCredits, d.log),
		webhook: billingapp.NewWebhookProcessor(billingapp.WebhookProcessorConfig{
			Config:         d.stripeConfig,
			Store:          d.store,
			Idempotency:    d.idempotency,
			IdempotencyTTL: cfg.Billing.IdempotencyTTL,
			Notifier:       d.notifier,
			Publisher:      d.publisher,
			Metrics:        d.metrics,
			Logger:         d.log,
		}),
		metering: billingapp.NewMeteringService(billingapp.MeteringServiceConfig{
			Store: d.store,
			Rates: metering.Rates{
				CreditsPerMinute:   cfg.Billing.CreditsPerMinute,
				InputCreditsPer1K:  cfg.Billing.InputCreditsPer1K,
				OutputCreditsPer1K: cfg.Billing.OutputCreditsPer1K,
			},
			Publisher: d.publisher,
			Metrics:   d.metrics,
			Logger:    d.log,
		}),
		starter: billingapp.NewStarterCreditService(billingapp.StarterCreditServiceConfig{
			Store:     d.store,
			Credits:   cfg.Billing.StarterCredits,
			Notifier:  d.notifier,
			Publisher: d.publisher,
			Metrics:   d.metrics,
			Logger:    d.log,
		}),
		quota: billingapp.NewQuotaGuard(billingapp.QuotaGuardConfig{
			Store:              d.store,
			Sessions:           d.sessions,
			MaxActiveResources: cfg.Billing.MaxActiveResources,
			Metrics:            d.metrics,
			Logger:             d.log,
		}),
	}
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}
