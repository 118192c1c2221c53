package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chessroam/config"
	"chessroam/internal/database"
	"chessroam/internal/router"
	"chessroam/internal/ws"
	"chessroam/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Env, cfg.Server.LogLevel)
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database connect failed", "error", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate failed", "error", err)
	}

	var registry ws.Registry
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("redis connect failed", "addr", cfg.Redis.Addr, "error", err)
		}
		registry = ws.NewRedisRegistry(rdb, cfg.Voice.RoomTTLSec)
		logger.Info("room registry enabled", "addr", cfg.Redis.Addr)
	}

	engine := router.Setup(cfg, db, registry)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
