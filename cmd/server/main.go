package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/cache"
	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/httpx"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/jobs"
	"github.com/AngelCh415/dmlab/internal/logger"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/persist"
	"github.com/AngelCh415/dmlab/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dmlab: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	st := store.NewMemoryStore(ingest.Normalize(nil), log.Named("store"))
	col := metrics.NewCollectors()

	backend, err := persist.New(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Mode, err)
	}
	defer backend.Close()
	pm := persist.NewManager(backend, st, log.Named("persist"), col)
	if _, err := pm.Load(ctx); err != nil {
		return err
	}

	memo := newCache(ctx, cfg.Cache, log)
	defer memo.Close()
	svc := metrics.NewService(st, log.Named("metrics"), metrics.WithCache(memo, cfg.Cache.TTL()), metrics.WithCollectors(col))

	syncer := ingest.NewSyncer(ingest.NewHTTPClient(cfg.Sync.Timeout()), log.Named("sync"), cfg.Sync.URL, cfg.Sync.Secret)

	scheduler := jobs.NewScheduler(log.Named("jobs"), cfg.Server.RequestTimeoutDuration())
	if err := jobs.Register(scheduler, st, pm, cfg.Autosave.Cron, syncer, cfg.Sync.PushCron); err != nil {
		return err
	}
	scheduler.Start()

	h := httpx.NewHandler(st, svc, pm, syncer, log.Named("http"))
	h.SetReady(true)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           httpx.NewRouter(cfg, log, h, col),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:      cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("storage", backend.Name()),
			zap.String("cache", cfg.Cache.Mode),
			zap.Bool("sync", syncer.Configured()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		h.SetReady(false)
		<-scheduler.Stop().Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
		if err := pm.SaveIfDirty(ctx); err != nil {
			log.Error("final save failed", zap.Error(err))
			return err
		}
		log.Info("server stopped")
	}
	return nil
}

// newCache connects Redis when configured and falls back to the in-process cache.
func newCache(ctx context.Context, cfg config.CacheConfig, log *zap.Logger) cache.Cache {
	if cfg.Mode == "redis" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err == nil {
			return r
		}
		log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
	}
	return cache.NewMemory(cfg.MaxEntries)
}
