package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"competition/internal/api"
	"competition/internal/api/middleware"
	"competition/internal/config"
	"competition/internal/database"
	"competition/internal/provider"
	"competition/internal/repository"
	"competition/internal/service"
	"competition/internal/websocket"
	"competition/pkg/crypto"
	"competition/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		utils.L().Fatal("failed to load config", utils.Err(err))
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer func() { _ = log.Sync() }()

	// Инициализация базы данных
	ctx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	db, err := database.Open(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	cancelStartup()
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err), utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}
	defer db.Close()
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to apply migrations", utils.Err(err))
		}
	}

	box, err := crypto.NewSecretBox([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		log.Fatal("invalid encryption key", utils.Err(err))
	}

	// Инициализация репозиториев
	integrationRepo := repository.NewIntegrationRepository(db)
	historyRepo := repository.NewSyncHistoryRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)

	// Адаптеры провайдеров
	factory := provider.NewFactory(provider.Options{
		HTTPTimeout:               cfg.Providers.HTTPTimeout,
		MyFXBookBaseURL:           cfg.Providers.MyFXBookBaseURL,
		ForexFactoryBaseURL:       cfg.Providers.ForexFactoryBaseURL,
		AllowForexFactoryFallback: cfg.Providers.ForexFactoryAllowFallback,
		RateLimit:                 cfg.Providers.RateLimit,
		RateBurst:                 cfg.Providers.RateBurst,
	})
	defer factory.Close()

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Инициализация сервисов
	leaderboardService := service.NewLeaderboardService(performanceRepo, hub, repository.DefaultLeaderboardLimit)
	syncService := service.NewSyncService(integrationRepo, historyRepo, performanceRepo, factory, box, service.SyncConfig{
		DefaultStartingBalance: cfg.Sync.DefaultStartingBalance,
		RequestTimeout:         cfg.Sync.RequestTimeout,
	})
	syncService.SetWebSocketHub(hub, leaderboardService)
	integrationService := service.NewIntegrationService(integrationRepo, historyRepo, syncService, box)

	stopCleanup := make(chan struct{})
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	limiter.StartCleanup(10*time.Minute, stopCleanup)

	router := api.SetupRoutes(&api.Dependencies{
		SyncService:        syncService,
		IntegrationService: integrationService,
		LeaderboardService: leaderboardService,
		Hub:                hub,
		Database:           db,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		AdminTokenHash:     cfg.Security.AdminTokenHash,
		CronSecret:         cfg.Security.CronSecret,
		RateLimiter:        limiter,
	})
	if cfg.Security.AdminTokenHash == "" && cfg.Security.CronSecret == "" {
		log.Warn("ADMIN_TOKEN_HASH and CRON_SECRET are empty, admin routes are unprotected")
	}

	// HTTP сервер
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}
	close(stopCleanup)
	hub.Stop()

	log.Info("server exited")
}
