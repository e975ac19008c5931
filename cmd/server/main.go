// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/database"
	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/router"
	"github.com/bigdiamond/atelier-backend/internal/transient"
)

const purgeInterval = 15 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Webhook.Debug {
		logrus.Warn("Webhook debug mode is enabled, signatures are not checked")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewRealClock()
	var store transient.Store
	if cfg.Transient.Driver == "memory" {
		store = transient.NewMemoryStore(clk)
	} else {
		gormStore := transient.NewGormStore(db, clk)
		go purgeTransients(ctx, gormStore)
		store = gormStore
	}

	r, err := router.Initialize(ctx, db, cfg, router.Options{Store: store, Clock: clk})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.Format == "json" || (cfg.Log.Format == "" && cfg.Environment == "production") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// purgeTransients removes expired rows at boot and then periodically.
func purgeTransients(ctx context.Context, store *transient.GormStore) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		if n, err := store.PurgeExpired(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to purge expired transients")
		} else if n > 0 {
			logrus.WithField("rows", n).Debug("Purged expired transients")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
