// Команда sync - однократная синхронизация для внешнего cron.
//
//	sync -provider all -type automatic
//	sync -provider mt5 -id 42
//
// Код выхода 1, если хотя бы одна интеграция не синхронизировалась.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"competition/internal/config"
	"competition/internal/database"
	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/repository"
	"competition/internal/service"
	"competition/pkg/crypto"
	"competition/pkg/utils"
)

func main() {
	providerFlag := flag.String("provider", "all", "provider to sync: all, myfxbook, mt4, mt5, forex-factory")
	syncType := flag.String("type", models.SyncTypeAutomatic, "sync type recorded in history: manual or automatic")
	integrationID := flag.Int("id", 0, "sync a single integration (requires a concrete -provider)")
	flag.Parse()

	os.Exit(run(*providerFlag, *syncType, *integrationID))
}

func run(providerArg, syncType string, integrationID int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithComponent("sync-cli")
	defer func() { _ = log.Sync() }()

	providers, err := resolveProviders(providerArg)
	if err != nil {
		log.Error("invalid -provider", utils.Err(err))
		return 2
	}
	if integrationID > 0 && len(providers) != 1 {
		log.Error("-id requires a concrete -provider")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, time.Minute)
	db, err := database.Open(openCtx, cfg.Database.DSN(), database.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	cancel()
	if err != nil {
		log.Error("failed to connect to database", utils.Err(err))
		return 2
	}
	defer db.Close()

	box, err := crypto.NewSecretBox([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		log.Error("invalid encryption key", utils.Err(err))
		return 2
	}

	factory := provider.NewFactory(provider.Options{
		HTTPTimeout:               cfg.Providers.HTTPTimeout,
		MyFXBookBaseURL:           cfg.Providers.MyFXBookBaseURL,
		ForexFactoryBaseURL:       cfg.Providers.ForexFactoryBaseURL,
		AllowForexFactoryFallback: cfg.Providers.ForexFactoryAllowFallback,
		RateLimit:                 cfg.Providers.RateLimit,
		RateBurst:                 cfg.Providers.RateBurst,
	})
	defer factory.Close()
	if providers == nil {
		providers = factory.SupportedProviders()
	}

	syncService := service.NewSyncService(
		repository.NewIntegrationRepository(db),
		repository.NewSyncHistoryRepository(db),
		repository.NewPerformanceRepository(db),
		factory,
		box,
		service.SyncConfig{
			DefaultStartingBalance: cfg.Sync.DefaultStartingBalance,
			RequestTimeout:         cfg.Sync.RequestTimeout,
		},
	)

	ctx = utils.WithContext(ctx, log)
	encoder := json.NewEncoder(os.Stdout)
	exitCode := 0

	if integrationID > 0 {
		outcome, err := syncService.SyncOne(ctx, providers[0], integrationID, syncType)
		if err != nil {
			log.Error("sync failed", utils.IntegrationID(integrationID), utils.Err(err))
			return 1
		}
		_ = encoder.Encode(outcome)
		if !outcome.Succeeded() {
			exitCode = 1
		}
		return exitCode
	}

	for _, p := range providers {
		summary, err := syncService.SyncAll(ctx, p, syncType)
		if err != nil {
			log.Error("batch sync failed", utils.Provider(string(p)), utils.Err(err))
			exitCode = 1
			continue
		}
		_ = encoder.Encode(summary)
		if summary.Failed > 0 {
			exitCode = 1
		}
		if ctx.Err() != nil {
			log.Warn("interrupted, remaining providers skipped")
			return 1
		}
	}
	return exitCode
}

// resolveProviders разбирает значение -provider; nil = все поддерживаемые
func resolveProviders(arg string) ([]models.Provider, error) {
	if arg == "" || arg == "all" {
		return nil, nil
	}
	p, ok := models.ParseProvider(arg)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", arg)
	}
	return []models.Provider{p}, nil
}
