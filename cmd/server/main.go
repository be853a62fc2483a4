package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"messenger/config"
	"messenger/internal/cache"
	"messenger/internal/database"
	"messenger/internal/di"
	"messenger/internal/logging"
)

func main() {
	// Absent .env is fine; the environment itself may carry everything.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.Migrate(di.Models()...); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	redis, err := cache.NewRedisCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}

	app := di.InitializeApplication(cfg, db, redis, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Run(cfg.HTTPAddress)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down", zap.Duration("grace", cfg.ShutdownGrace))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}
}
