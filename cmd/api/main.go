package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pixelpruner/pruneriq/internal/config"
	"github.com/pixelpruner/pruneriq/internal/container"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ThresholdsFile != "" {
		svc := c.Service()
		go func() {
			err := config.WatchThresholds(ctx, cfg.ThresholdsFile, cfg.BaseThresholds, func(th validation.Thresholds) {
				if err := svc.SetThresholds(th); err != nil {
					logger.WithError(err).Error("Rejected reloaded thresholds")
				}
			})
			if err != nil {
				logger.WithError(err).Error("Thresholds watcher stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":   cfg.ServerAddress(),
			"timeout":   cfg.RequestTimeout,
			"safe_mode": cfg.SafeMode,
			"azure":     cfg.AzureEnabled(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
