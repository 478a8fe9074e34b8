// Package main wires together the export service binary.
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

	"go.uber.org/zap"

	"github.com/sanneemmanuel/turnstatic/internal/api"
	"github.com/sanneemmanuel/turnstatic/internal/config"
	"github.com/sanneemmanuel/turnstatic/internal/export"
	"github.com/sanneemmanuel/turnstatic/internal/id/uuid"
	"github.com/sanneemmanuel/turnstatic/internal/logging"
	"github.com/sanneemmanuel/turnstatic/internal/metrics"
	"github.com/sanneemmanuel/turnstatic/internal/storage"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, closeStore, err := storage.NewStore(cfg.Store.Provider, cfg.Store.Path)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("store close failed", zap.Error(closeErr))
		}
	}()

	settings := cfg.ExportSettings()
	if err := settings.Validate(); err != nil {
		logger.Fatal("export settings invalid", zap.Error(err))
	}
	fetcher, err := export.NewHTTPFetcher(settings, logger.Named("fetcher"))
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}
	inliner, err := export.NewInliner(fetcher, settings.SiteURL, settings.Rules, logger.Named("inliner"))
	if err != nil {
		logger.Fatal("inliner init failed", zap.Error(err))
	}
	loader := export.NewPageLoader(fetcher, inliner, settings, logger.Named("loader"))
	job := export.NewJob(store, loader, uuid.New(), settings, logger.Named("job"))

	apiServer := api.NewServer(job, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
