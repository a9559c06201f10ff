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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/inbox/internal/app"
	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/health"
	"tempmail/inbox/internal/logger"
	"tempmail/inbox/internal/middleware"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/service"
	httptransport "tempmail/inbox/internal/transport/http"
)

// main 启动临时邮箱的 HTTP API 与过期清理任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("domains", cfg.Address.Domains),
		zap.Duration("lifetime", cfg.Address.Lifetime),
	)

	store, err := app.OpenStore(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	tokenCache, err := app.OpenCache(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize token cache", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()

	var healthOpts []health.Option
	if tokenCache.Redis != nil {
		healthOpts = append(healthOpts, health.WithRedis(tokenCache.Redis))
	}
	healthChecker := health.NewChecker(store, log, healthOpts...)

	// 初始化服务层
	registry := service.NewRegistry(store, cfg.Address, log)
	registry.SetMetrics(metrics)

	authenticator := service.NewAuthenticator(registry, tokenCache.Address, cfg.Cache.TTL, log)
	authenticator.SetMetrics(metrics)

	inbox := service.NewInboxService(store, log)
	inbox.SetMetrics(metrics)

	reaper := service.NewReaper(store, cfg.Lifecycle, log)
	reaper.SetMetrics(metrics)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.CreatePerMinute, cfg.RateLimit.Burst, metrics)
	}

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		Registry:      registry,
		Authenticator: authenticator,
		Inbox:         inbox,
		Health:        healthChecker,
		Metrics:       metrics,
		RateLimiter:   limiter,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 过期地址清理 goroutine
	group.Go(func() error {
		return reaper.Run(groupCtx)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
	}

	if limiter != nil {
		limiter.Close()
	}
	tokenCache.Close()
	if err := store.Close(); err != nil {
		log.Warn("failed to close storage", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
