package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campaign-advisor/internal/advisor"
	"campaign-advisor/internal/api"
	"campaign-advisor/internal/archive"
	"campaign-advisor/internal/config"
	"campaign-advisor/internal/lifecycle"
	"campaign-advisor/internal/pipeline"
	"campaign-advisor/internal/ratelimit"
	"campaign-advisor/internal/store"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	limiter := ratelimit.New(redisClient, cfg.AdviseRateCapacity, cfg.AdviseRateRefill, 10*time.Minute)

	archiver, err := archive.New(ctx, cfg)
	if err != nil {
		logger.Fatal("init archiver", zap.Error(err))
	}

	gateway := advisor.NewGateway(cfg, logger)
	signals := advisor.NewContextFetcher(cfg, logger)
	lc := lifecycle.New(st, st, logger)
	orchestrator := pipeline.New(st, st, logger)

	srv := api.New(st, st, st, orchestrator, gateway, signals, lc, limiter, archiver, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("advisor api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
