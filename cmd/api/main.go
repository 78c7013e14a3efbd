package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"library-catalog/internal"
	"library-catalog/internal/config"
	"library-catalog/internal/migrations"
)

func main() {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		zap.NewExample().Fatal("configuration error", zap.Error(err))
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	db, pool, err := internal.OpenDatabase(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			db.Close()
			pool.Close()
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	srv, err := internal.NewServer(db, pool, cfg, logger)
	if err != nil {
		db.Close()
		pool.Close()
		return err
	}
	defer srv.Close()

	if cfg.UsesDefaultSecret() {
		logger.Warn("CATALOG_SESSION_SECRET is the built-in default; set a private value in production")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("app", cfg.AppName),
			zap.String("session_issuer", cfg.Session.Issuer),
			zap.Duration("session_expiry", cfg.Session.Expiry),
			zap.Bool("metrics", cfg.EnableMetrics))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
