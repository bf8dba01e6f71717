package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotvault/hotvault-backend/config"
	"github.com/hotvault/hotvault-backend/internal/app/controller"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	"github.com/hotvault/hotvault-backend/internal/app/service"
	"github.com/hotvault/hotvault-backend/internal/db"
	"github.com/hotvault/hotvault-backend/internal/router"
	"github.com/hotvault/hotvault-backend/internal/storage"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"github.com/hotvault/hotvault-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := cfg.Log.Level
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format != "json",
	})

	logger.Info("Starting HotVault backend server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Without a database nothing can be served
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	cartRepo := repository.NewCartRepository(db.GetDB())
	hotwheelRepo := repository.NewHotwheelRepository(db.GetDB())

	var lockers []service.CartLocker
	if cfg.Redis.Enabled() {
		redisClient, err := redis.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, open-cart lock disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redisClient.Close()
			lockers = append(lockers, redis.NewLocker(redisClient, cfg.Redis.LockTTL))
		}
	}

	imageStorage := storage.NewS3Storage(cfg.S3)

	cartService := service.NewCartService(cartRepo, lockers...)
	hotwheelService := service.NewHotwheelService(hotwheelRepo, imageStorage)

	cartController := controller.NewCartController(cartService)
	hotwheelController := controller.NewHotwheelController(hotwheelService)

	engine := router.NewRouter(cartController, hotwheelController, cfg).Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", err)
	}

	logger.Info("Server stopped successfully")
}
