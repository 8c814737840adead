package service

import (
	"context"
	"errors"
	"time"

	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/repository"
	"competition/internal/websocket"
	"competition/pkg/crypto"
)

// Ошибки сервиса
var (
	ErrProviderNotSupported = errors.New("provider is not supported")
	ErrIntegrationNotFound  = errors.New("integration not found")
	ErrIntegrationConflict  = errors.New("an active integration for this credential already exists")
	ErrConnectionFailed     = errors.New("connection test failed")
	ErrNothingToUpdate      = errors.New("nothing to update")
	ErrSecretUnreadable     = errors.New("stored credentials cannot be decrypted, re-link the account")
)

// IntegrationStore - хранилище интеграций
type IntegrationStore interface {
	Upsert(ctx context.Context, in *models.Integration) (bool, error)
	GetByID(ctx context.Context, p models.Provider, id int) (*models.Integration, error)
	GetActiveByID(ctx context.Context, p models.Provider, id int) (*models.Integration, error)
	ListActive(ctx context.Context, p models.Provider) ([]*models.Integration, error)
	List(ctx context.Context, p models.Provider) ([]*models.Integration, error)
	UpdateAccount(ctx context.Context, i *models.Integration) error
	Deactivate(ctx context.Context, p models.Provider, id int) error
	MarkSyncing(ctx context.Context, id int) error
	MarkSuccess(ctx context.Context, id int, at time.Time) error
	MarkError(ctx context.Context, id int, message string, at time.Time) error
}

// HistoryStore - журнал попыток синхронизации
type HistoryStore interface {
	Start(ctx context.Context, integrationID int, p models.Provider, syncType string) (int, error)
	Finish(ctx context.Context, id int, status string, recordsUpdated int, errMsg *string, balance *float64) error
	RecordTerminal(ctx context.Context, h *models.SyncHistory) error
	ListByIntegration(ctx context.Context, integrationID, limit int) ([]*models.SyncHistory, error)
}

// PerformanceStore - доходность трейдеров (таблицы сервиса управления трейдерами)
type PerformanceStore interface {
	TraderByCredential(ctx context.Context, credentialID int) (int, error)
	Get(ctx context.Context, traderID int) (*models.PerformanceSnapshot, error)
	Save(ctx context.Context, s *models.PerformanceSnapshot) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// AdapterRegistry выдаёт адаптер по провайдеру
type AdapterRegistry interface {
	Get(p models.Provider) (provider.Adapter, error)
}

// SecretCipher шифрует токены и пароли интеграций
type SecretCipher interface {
	Seal(plaintext string) (string, error)
	Open(encoded string) (string, error)
}

// Broadcaster - отправка обновлений через WebSocket
type Broadcaster interface {
	BroadcastPerformance(p models.Provider, snap *models.PerformanceSnapshot, synthetic bool)
	BroadcastLeaderboard(entries []models.LeaderboardEntry)
	BroadcastSyncCompleted(summary *models.SyncSummary)
}

// Проверяем, что реальные реализации подходят
var _ IntegrationStore = (*repository.IntegrationRepository)(nil)
var _ HistoryStore = (*repository.SyncHistoryRepository)(nil)
var _ PerformanceStore = (*repository.PerformanceRepository)(nil)
var _ AdapterRegistry = (*provider.Factory)(nil)
var _ SecretCipher = (*crypto.SecretBox)(nil)
var _ Broadcaster = (*websocket.Hub)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// SyncServiceInterface - оркестратор синхронизации
type SyncServiceInterface interface {
	SyncAll(ctx context.Context, p models.Provider, syncType string) (*models.SyncSummary, error)
	SyncOne(ctx context.Context, p models.Provider, integrationID int, syncType string) (*models.SyncOutcome, error)
	TestConnection(ctx context.Context, p models.Provider, creds models.Credentials) (models.ConnectionResult, error)
	Status(ctx context.Context, p models.Provider) ([]models.IntegrationStatus, error)
}

// IntegrationServiceInterface - управление привязками аккаунтов
type IntegrationServiceInterface interface {
	Create(ctx context.Context, p models.Provider, in models.IntegrationInput) (*models.Integration, bool, error)
	Get(ctx context.Context, p models.Provider, id int) (*models.Integration, error)
	List(ctx context.Context, p models.Provider) ([]*models.Integration, error)
	Update(ctx context.Context, p models.Provider, id int, patch models.IntegrationPatch) (*models.Integration, error)
	Delete(ctx context.Context, p models.Provider, id int) error
	History(ctx context.Context, p models.Provider, id, limit int) ([]*models.SyncHistory, error)
}

// LeaderboardServiceInterface - таблица лидеров
type LeaderboardServiceInterface interface {
	Get(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Publish(ctx context.Context)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ SyncServiceInterface = (*SyncService)(nil)
var _ IntegrationServiceInterface = (*IntegrationService)(nil)
var _ LeaderboardServiceInterface = (*LeaderboardService)(nil)
