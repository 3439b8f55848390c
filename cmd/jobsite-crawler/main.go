// Package main wires together the jobsite crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/api"
	"github.com/tofino/jobsite-crawler/internal/blob/gcs"
	"github.com/tofino/jobsite-crawler/internal/blob/local"
	"github.com/tofino/jobsite-crawler/internal/clock/system"
	"github.com/tofino/jobsite-crawler/internal/config"
	"github.com/tofino/jobsite-crawler/internal/fetchunit"
	"github.com/tofino/jobsite-crawler/internal/id/uuid"
	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/logging"
	"github.com/tofino/jobsite-crawler/internal/metrics"
	"github.com/tofino/jobsite-crawler/internal/notify"
	"github.com/tofino/jobsite-crawler/internal/parser"
	"github.com/tofino/jobsite-crawler/internal/pipeline"
	"github.com/tofino/jobsite-crawler/internal/proxy"
	"github.com/tofino/jobsite-crawler/internal/store/memory"
	"github.com/tofino/jobsite-crawler/internal/store/postgres"
	"github.com/tofino/jobsite-crawler/internal/store/redisreg"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	idGen := uuid.New()
	site := cfg.Site.Descriptor()

	var ready func(r *http.Request) error

	// The Postgres pool is shared between the registry and the job store
	// when both select it.
	var pool *pgxpool.Pool
	needsDB := cfg.Registry.Provider == "postgres" || cfg.Jobs.Provider == "postgres"
	if needsDB {
		p, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer p.Close()
		pool = p
		ready = func(r *http.Request) error {
			return p.Ping(r.Context())
		}
	}

	registry, err := buildRegistry(ctx, cfg, clock, pool)
	if err != nil {
		return err
	}

	jobs, err := buildJobStore(cfg, clock, idGen, pool)
	if err != nil {
		return err
	}

	blobs, cleanup, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	notifier, notifierCleanup, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer notifierCleanup()

	var unit ingest.FetchInvoker
	if cfg.Fetch.Provider == "local" {
		unit = fetchunit.NewLocalUnit(cfg.Fetch.UserAgent)
	} else {
		unit = fetchunit.NewRemoteInvoker(cfg.Fetch.Timeout())
	}

	selector := proxy.NewSelector(registry, clock, cfg.Proxy.Cooldown())
	invoker := proxy.NewInvoker(selector, unit, registry, site, logger.Named("proxy"))
	coordinator := pipeline.NewCoordinator(jobs, blobs, invoker, parser.New(), idGen, clock, site, logger.Named("pipeline"))

	var opts []api.Option
	if ready != nil {
		opts = append(opts, api.WithReadyCheck(ready))
	}
	apiServer := api.NewServer(coordinator, notifier, logger.Named("api"), opts...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func buildRegistry(ctx context.Context, cfg config.Config, clock ingest.Clock, pool *pgxpool.Pool) (ingest.ProxyRegistry, error) {
	switch cfg.Registry.Provider {
	case "postgres":
		return postgres.NewProxyRegistry(pool, clock)
	case "redis":
		client, err := redisreg.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisreg.NewProxyRegistry(client, clock)
	default:
		reg := memory.NewProxyRegistry(clock)
		for i, target := range cfg.Proxy.SeedTargets {
			reg.Seed(ingest.ProxyRecord{
				ID:               fmt.Sprintf("proxy-%d", i),
				InvocationTarget: target,
			})
		}
		return reg, nil
	}
}

func buildJobStore(cfg config.Config, clock ingest.Clock, idGen ingest.IDGenerator, pool *pgxpool.Pool) (ingest.JobStore, error) {
	switch cfg.Jobs.Provider {
	case "postgres":
		return postgres.NewJobStore(pool, clock, idGen)
	default:
		return memory.NewJobStore(clock), nil
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (ingest.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, func() { _ = client.Close() }, nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		return store, noop, err
	default:
		return memory.NewBlobStore(), noop, nil
	}
}

func buildNotifier(ctx context.Context, cfg config.Config) (ingest.Notifier, func(), error) {
	noop := func() {}
	if cfg.Notify.Provider != "pubsub" {
		return notify.Noop{}, noop, nil
	}
	notifier, client, err := notify.NewPubSubNotifier(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID)
	if err != nil {
		return nil, noop, fmt.Errorf("create notifier: %w", err)
	}
	return notifier, func() { _ = client.Close() }, nil
}
