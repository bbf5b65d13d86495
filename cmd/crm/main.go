// Command crm runs the CRM HTTP API server.
//
// It wires the Postgres stores, the permission checker, the intake
// pipeline and the document blob store behind the versioned REST API,
// and serves health probes and Prometheus metrics on a separate port.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kzcare/crm/pkg/api"
	"github.com/kzcare/crm/pkg/assignment"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/auth"
	"github.com/kzcare/crm/pkg/config"
	"github.com/kzcare/crm/pkg/middleware"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"health_port": cfg.Server.HealthPort,
	}).Info("starting crm api server")

	ctx := context.Background()

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize OpenTelemetry")
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	conns, err := postgres.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	db := conns.Primary()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var cache *postgres.RedisCache
	if cfg.Storage.RedisURL != "" && cfg.Storage.CacheEnabled {
		cache, err = postgres.NewRedisCache(cfg.Storage)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		logger.Info("redis cache enabled")
	}

	var blobs api.Blob
	if cfg.Storage.S3Endpoint != "" || cfg.Storage.S3AccessKey != "" {
		store, err := postgres.NewBlobStore(cfg.Storage)
		if err != nil {
			logger.WithError(err).Error("failed to initialize blob store")
			os.Exit(1)
		}
		blobs = store
		logger.WithFields(map[string]interface{}{"bucket": cfg.Storage.S3Bucket}).
			Info("document blob store enabled")
	} else {
		logger.Warn("no S3 configured, document uploads disabled")
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit logger")
		os.Exit(1)
	}

	users := postgres.NewUserStore(db)
	mothers := postgres.NewMotherStore(db)
	bans := postgres.NewBanStore(db)
	planned := postgres.NewPlannedStore(db)
	documents := postgres.NewDocumentStore(db)

	permStore := perms.NewStore(db)
	checkerTTL := cfg.Storage.CacheTTL["granted_ids"]
	if checkerTTL == 0 {
		checkerTTL = time.Minute
	}
	checker := perms.NewChecker(permStore, checkerTTL)

	var invalidator pipeline.Invalidator
	if cache != nil {
		invalidator = cache
	}
	svc := pipeline.NewService(db, permStore, users,
		assignment.NewRandomSelector(time.Now().UnixNano()),
		auditLogger, logger, invalidator, checker)

	tokens := auth.NewStore(db, auditLogger)

	server := api.NewServer(api.Deps{
		Perms:     permStore,
		Checker:   checker,
		Pipeline:  svc,
		Tokens:    tokens,
		Users:     users,
		Mothers:   mothers,
		Bans:      bans,
		Planned:   planned,
		Documents: documents,
		Blobs:     blobs,
		Audit:     auditLogger,
		Logger:    logger,
	})

	var handler http.Handler = server
	if cache != nil {
		handler = middleware.NewDistributedRateLimitMiddleware(cache.Client()).Handler(handler)
	} else {
		handler = middleware.NewRateLimitMiddleware().Handler(handler)
	}
	handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "crm-api")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	if cache != nil {
		observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, cache.Client()))
	} else {
		observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, nil))
	}
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": healthServer.Addr}).
			Info("health and metrics server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithFields(map[string]interface{}{"addr": httpServer.Addr}).
			Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return conns.Close()
	})
	if cache != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return cache.Close()
		})
	}
	if otelProviders != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
