// Command atrium runs the workspace platform core: token exchange and
// refresh, workspace-scoped authorization, and per-workspace namespace
// provisioning behind a single HTTP server.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atriumhq/atrium/pkg/api"
	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
	"github.com/atriumhq/atrium/pkg/workspace"
)

const namespaceCacheSize = 1024

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := observability.NewLogger(observability.InfoLevel, os.Stderr)
		bootLogger.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	store := postgres.NewStore(db)

	verifier := auth.NewIdentityValidator(auth.IdentityValidatorConfig{
		IssuerURL: cfg.Identity.IssuerURL,
		Audience:  cfg.Identity.Audience,
	})
	codec := auth.NewSessionCodec([]byte(cfg.Session.Secret), cfg.Session.TTL)
	exchange := auth.NewExchangeService(verifier, codec, store, logger)
	binder := auth.NewBinder(verifier, codec, store, logger).WithMetrics(metrics)

	resolverOpts := []workspace.ResolverOption{}
	if metrics != nil {
		resolverOpts = append(resolverOpts, workspace.WithMetrics(metrics))
	}
	if cfg.Redis.URL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Run without the shared cache rather than refusing to start.
			logger.WithError(err).Warn("redis unreachable, namespace cache degraded to in-process only")
		} else {
			resolverOpts = append(resolverOpts, workspace.WithRedisCache(redisClient, cfg.Session.TTL))
			defer redisClient.Close()
		}
	}

	resolver, err := workspace.NewResolver(store, namespaceCacheSize, logger, resolverOpts...)
	if err != nil {
		logger.WithError(err).Error("failed to build namespace resolver")
		os.Exit(1)
	}

	provisioner := workspace.NewProvisioner(db, logger, metrics)
	sink := audit.NewDBSink(db, logger)
	workspaces := workspace.NewService(store, provisioner, sink, logger)
	integrations := workspace.NewIntegrationStore(db, resolver)

	server := api.NewServer(exchange, binder, workspaces, integrations, logger, metrics)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info("server stopped")
}
