package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"dealroom/api/internal/app"
	"dealroom/api/internal/archive"
	"dealroom/api/internal/config"
	"dealroom/api/internal/lock"
	"dealroom/api/internal/logger"
	"dealroom/api/internal/search"
	"dealroom/api/internal/store"
	"dealroom/api/internal/telemetry"
	"dealroom/api/internal/vendors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("dealroom api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(cfg.LogLevel)
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "dealroom-api", cfg.OTelEndpoint)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.DatabaseDriver); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return err
	}

	dataStore := store.NewSQLStore(db, cfg.DatabaseDriver)
	archiveService := archive.New(cfg.ArchiveDir)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewSQLFallback(dataStore))

	var locks interface {
		Lock(context.Context, string) (lock.Unlock, error)
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info("using redis writer locks")
		redisLocks, err := lock.NewRedis(cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer redisLocks.Close()
		locks = redisLocks
	} else {
		log.Info("using in-process writer locks")
		locks = lock.NewLocal()
	}

	vendorDirectory := vendors.NewDirectory(dataStore, cfg.VendorCacheDuration())
	service := app.New(dataStore, archiveService, searchService, locks, vendorDirectory, cfg.Location())

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, limiter)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("dealroom api listening", "addr", cfg.Addr, "driver", cfg.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	return nil
}
