// raporhub is the report-access permission service of the reporting
// dashboard. It resolves per-user report visibility, applies grant edits
// against the upstream reporting authority, and serves the pinned-report
// preferences.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/raporhub/raporhub/pkg/access"
	"github.com/raporhub/raporhub/pkg/api"
	"github.com/raporhub/raporhub/pkg/audit"
	"github.com/raporhub/raporhub/pkg/catalog"
	"github.com/raporhub/raporhub/pkg/config"
	"github.com/raporhub/raporhub/pkg/engine"
	"github.com/raporhub/raporhub/pkg/observability"
	"github.com/raporhub/raporhub/pkg/prefs"
	"github.com/raporhub/raporhub/pkg/reconcile"
	"github.com/raporhub/raporhub/pkg/upstream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("raporhub: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(nil)
	ctx := context.Background()

	tracerShutdown, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		fatal(logger, "Failed to initialize tracing", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// the preference fallback degrades gracefully without redis
			logger.WithError(err).Warn("Redis unreachable at startup, continuing without local cache")
		}
	}

	authority := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Token:   cfg.Upstream.Token,
		Timeout: cfg.Upstream.Timeout,
	}, logger, metrics)

	rules := catalog.NewRules()
	var rulesWatcher *catalog.RulesWatcher
	if cfg.Catalog.RulesPath != "" {
		rulesWatcher, err = catalog.WatchRulesFile(cfg.Catalog.RulesPath, rules, logger)
		if err != nil {
			fatal(logger, "Failed to watch classification rules", err)
		}
		logger.Infof("Watching classification rules at %s", cfg.Catalog.RulesPath)
	}

	catalogResolver, err := catalog.NewResolver(authority, rules, cfg.Catalog.CacheSize, cfg.Catalog.CacheTTL, logger, metrics)
	if err != nil {
		fatal(logger, "Failed to create catalog resolver", err)
	}

	var auditLog audit.Log = audit.Nop{}
	var auditDB *sql.DB
	if cfg.Audit.SQLitePath != "" {
		auditDB, err = audit.OpenSQLite(cfg.Audit.SQLitePath)
		if err != nil {
			fatal(logger, "Failed to open audit database", err)
		}
		auditLog, err = audit.NewDBLogger(auditDB)
		if err != nil {
			fatal(logger, "Failed to initialize audit log", err)
		}
		logger.Infof("Audit trail at %s", cfg.Audit.SQLitePath)
	}

	eng := engine.New(
		access.NewResolver(catalogResolver, authority, logger, metrics),
		authority,
		reconcile.NewApplier(authority, logger, metrics),
		prefs.NewStore(authority, redisClient, cfg.Redis.PrefsTTL, logger, metrics),
		auditLog,
		logger,
	)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.NewServer(eng, logger, metrics),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(redisClient, auditDB, authority)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	scheduler := cron.New()
	if cfg.Catalog.RefreshSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Catalog.RefreshSchedule, func() {
			defer observability.RecoverPanic(logger, "catalog re-warm")
			catalogResolver.RewarmCached(context.Background())
		}); err != nil {
			fatal(logger, "Invalid catalog refresh schedule", err)
		}
		scheduler.Start()
		logger.Infof("Catalog re-warm scheduled: %s", cfg.Catalog.RefreshSchedule)
	}

	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	if rulesWatcher != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return rulesWatcher.Close()
		})
	}
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if auditDB != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return auditDB.Close()
		})
	}
	if tracerShutdown != nil {
		sm.RegisterShutdownFunc(tracerShutdown)
	}

	go func() {
		logger.Infof("Health/metrics server listening on :%s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("API server listening on :%s", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "API server failed", err)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

func fatal(logger *observability.Logger, message string, err error) {
	logger.WithError(err).Error(message)
	os.Exit(1)
}
