package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"competition/internal/metrics"
	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/repository"
	"competition/pkg/crypto"
	"competition/pkg/utils"
)

// SyncConfig - параметры оркестратора
type SyncConfig struct {
	// DefaultStartingBalance применяется, если у трейдера нет своего
	DefaultStartingBalance float64
	// RequestTimeout ограничивает одно обращение к провайдеру
	RequestTimeout time.Duration
}

// SyncService - оркестратор синхронизации внешних счетов.
//
// Одна попытка:
//  1. расшифровка секретов и Validate (ошибка = одна терминальная запись истории)
//  2. запись истории in_progress, интеграция в syncing
//  3. поиск трейдера по credential_id
//  4. FetchAccount через адаптер
//  5. расчёт доходности и запись снимка
//  6. финализация истории и статуса интеграции
//
// Повторов нет. Попытки по одной интеграции выполняются последовательно.
type SyncService struct {
	integrations IntegrationStore
	history      HistoryStore
	performance  PerformanceStore
	adapters     AdapterRegistry
	cipher       SecretCipher
	cfg          SyncConfig

	locks *keyedLock
	hub   Broadcaster
	board *LeaderboardService
	now   func() time.Time
}

// NewSyncService создает оркестратор
func NewSyncService(
	integrations IntegrationStore,
	history HistoryStore,
	performance PerformanceStore,
	adapters AdapterRegistry,
	cipher SecretCipher,
	cfg SyncConfig,
) *SyncService {
	if cfg.DefaultStartingBalance <= 0 {
		cfg.DefaultStartingBalance = utils.DefaultStartingBalance
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 25 * time.Second
	}
	return &SyncService{
		integrations: integrations,
		history:      history,
		performance:  performance,
		adapters:     adapters,
		cipher:       cipher,
		cfg:          cfg,
		locks:        newKeyedLock(),
		now:          time.Now,
	}
}

// SetWebSocketHub подключает рассылку результатов.
//
//	syncService := service.NewSyncService(...)
//	syncService.SetWebSocketHub(wsHub, leaderboardService)
func (s *SyncService) SetWebSocketHub(hub Broadcaster, board *LeaderboardService) {
	s.hub = hub
	s.board = board
}

func (s *SyncService) adapter(p models.Provider) (provider.Adapter, error) {
	a, err := s.adapters.Get(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, p)
	}
	return a, nil
}

// SyncAll синхронизирует все активные интеграции провайдера.
// Ошибка одной интеграции не прерывает пакет.
func (s *SyncService) SyncAll(ctx context.Context, p models.Provider, syncType string) (*models.SyncSummary, error) {
	adapter, err := s.adapter(p)
	if err != nil {
		return nil, err
	}

	// отмена HTTP запроса не должна прерывать запись результатов
	ctx = context.WithoutCancel(ctx)
	syncType = models.NormalizeSyncType(syncType)
	log := utils.FromContext(ctx).With(utils.Provider(string(p)), utils.SyncType(syncType))

	list, err := s.integrations.ListActive(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list active %s integrations: %w", p.Slug(), err)
	}
	metrics.RecordBatch(string(p), len(list))

	summary := &models.SyncSummary{Provider: p}
	for _, integ := range list {
		outcome := s.syncIntegration(ctx, adapter, integ, syncType)
		if outcome.Succeeded() {
			summary.Synced++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, models.SyncError{
			IntegrationID: integ.ID,
			AccountID:     integ.AccountID,
			Error:         outcome.Error,
		})
	}

	log.Info("batch sync finished",
		utils.Int("total", summary.Total()),
		utils.Int("synced", summary.Synced),
		utils.Int("failed", summary.Failed),
	)

	if s.hub != nil {
		s.hub.BroadcastSyncCompleted(summary)
	}
	if summary.Synced > 0 && s.board != nil {
		s.board.Publish(ctx)
	}
	return summary, nil
}

// SyncOne синхронизирует одну интеграцию.
// Неизвестная или неактивная интеграция = ErrIntegrationNotFound без изменений в БД.
func (s *SyncService) SyncOne(ctx context.Context, p models.Provider, integrationID int, syncType string) (*models.SyncOutcome, error) {
	adapter, err := s.adapter(p)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	integ, err := s.integrations.GetActiveByID(ctx, p, integrationID)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("load integration %d: %w", integrationID, err)
	}

	outcome := s.syncIntegration(ctx, adapter, integ, models.NormalizeSyncType(syncType))
	if outcome.Succeeded() && s.board != nil {
		s.board.Publish(ctx)
	}
	return outcome, nil
}

// TestConnection проверяет креденшелы без обращения к БД
func (s *SyncService) TestConnection(ctx context.Context, p models.Provider, creds models.Credentials) (models.ConnectionResult, error) {
	adapter, err := s.adapter(p)
	if err != nil {
		return models.ConnectionResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	result := adapter.TestConnection(ctx, creds)
	utils.FromContext(ctx).Info("connection test",
		utils.Provider(string(p)),
		utils.AccountID(creds.AccountID),
		utils.String("api_token", crypto.Mask(creds.APIToken)),
		utils.Bool("success", result.Success),
	)
	return result, nil
}

// Status возвращает состояние активных интеграций провайдера
func (s *SyncService) Status(ctx context.Context, p models.Provider) ([]models.IntegrationStatus, error) {
	if _, err := s.adapter(p); err != nil {
		return nil, err
	}

	list, err := s.integrations.ListActive(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list %s integrations: %w", p.Slug(), err)
	}

	statuses := make([]models.IntegrationStatus, 0, len(list))
	for _, integ := range list {
		statuses = append(statuses, integ.Status())
	}
	return statuses, nil
}

// ============ Одна попытка ============

// attempt - контекст одной попытки синхронизации
type attempt struct {
	integ     *models.Integration
	syncType  string
	historyID int
	started   time.Time
	log       *utils.Logger
}

func (s *SyncService) syncIntegration(ctx context.Context, adapter provider.Adapter, integ *models.Integration, syncType string) *models.SyncOutcome {
	unlock := s.locks.Lock(integ.ID)
	defer unlock()

	a := &attempt{
		integ:    integ,
		syncType: syncType,
		started:  time.Now(),
		log: utils.FromContext(ctx).With(
			utils.Provider(string(integ.Provider)),
			utils.IntegrationID(integ.ID),
			utils.AccountID(integ.AccountID),
			utils.SyncType(syncType),
		),
	}

	// 1. Конфигурация проверяется до начала попытки
	creds, err := s.credentials(integ)
	if err == nil {
		err = adapter.Validate(creds)
	}
	if err != nil {
		return s.rejectConfiguration(ctx, a, err)
	}

	// 2. Попытка начата
	a.historyID, err = s.history.Start(ctx, integ.ID, integ.Provider, syncType)
	if err != nil {
		a.log.Error("create sync history", utils.Err(err))
		return s.markFailed(ctx, a, fmt.Sprintf("failed to record sync attempt: %v", err), "internal")
	}
	if err := s.integrations.MarkSyncing(ctx, integ.ID); err != nil {
		a.log.Warn("mark integration syncing", utils.Err(err))
	}

	// 3. Трейдер
	traderID, err := s.performance.TraderByCredential(ctx, integ.CredentialID)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, repository.ErrTraderNotFound) {
			msg = fmt.Sprintf("failed to resolve trader: %v", err)
		}
		return s.fail(ctx, a, msg, nil, "trader")
	}

	// 4. Данные счёта
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	data, err := adapter.FetchAccount(fetchCtx, creds)
	cancel()
	if err != nil {
		return s.fail(ctx, a, err.Error(), nil, string(provider.KindOf(err)))
	}

	// 5. Доходность
	start := s.startingBalance(ctx, a, traderID)
	snap := &models.PerformanceSnapshot{
		TraderID:         traderID,
		StartingBalance:  start,
		CurrentBalance:   data.Balance,
		ProfitPercentage: utils.ProfitPercentage(data.Balance, start),
	}
	balance := data.Balance

	if err := s.performance.Save(ctx, snap); err != nil {
		msg := fmt.Sprintf("fetched balance %.2f but failed to update performance: %v", data.Balance, err)
		return s.fail(ctx, a, msg, &balance, "storage")
	}

	// 6. Успех
	return s.succeed(ctx, a, snap, data.Synthetic)
}

// credentials расшифровывает секреты интеграции
func (s *SyncService) credentials(integ *models.Integration) (models.Credentials, error) {
	token, err := s.cipher.Open(integ.APIToken)
	if err != nil {
		return models.Credentials{}, ErrSecretUnreadable
	}
	password, err := s.cipher.Open(integ.Password)
	if err != nil {
		return models.Credentials{}, ErrSecretUnreadable
	}
	return models.CredentialsOf(integ, token, password), nil
}

// startingBalance берёт стартовый баланс трейдера или значение по умолчанию
func (s *SyncService) startingBalance(ctx context.Context, a *attempt, traderID int) float64 {
	current, err := s.performance.Get(ctx, traderID)
	if err != nil {
		if !errors.Is(err, repository.ErrPerformanceNotFound) {
			a.log.Warn("load starting balance, using default", utils.TraderID(traderID), utils.Err(err))
		}
		return s.cfg.DefaultStartingBalance
	}
	return utils.EffectiveStartingBalance(current.StartingBalance, s.cfg.DefaultStartingBalance)
}

// rejectConfiguration пишет одну терминальную запись и переводит интеграцию в error
func (s *SyncService) rejectConfiguration(ctx context.Context, a *attempt, cause error) *models.SyncOutcome {
	msg := cause.Error()
	now := s.now()

	err := s.history.RecordTerminal(ctx, &models.SyncHistory{
		IntegrationID: a.integ.ID,
		Provider:      a.integ.Provider,
		SyncType:      a.syncType,
		Status:        models.HistoryStatusError,
		ErrorMessage:  &msg,
		SyncedAt:      now,
	})
	if err != nil {
		a.log.Error("record configuration error", utils.Err(err))
	}

	a.log.Warn("integration misconfigured", utils.String("error", msg))
	return s.markFailed(ctx, a, msg, string(provider.KindConfiguration))
}

// fail финализирует историю ошибкой
func (s *SyncService) fail(ctx context.Context, a *attempt, msg string, balance *float64, kind string) *models.SyncOutcome {
	if err := s.history.Finish(ctx, a.historyID, models.HistoryStatusError, 0, &msg, balance); err != nil {
		a.log.Error("finalize sync history", utils.Int("history_id", a.historyID), utils.Err(err))
	}

	a.log.Warn("sync failed", utils.String("error", msg), utils.Latency(time.Since(a.started)))
	outcome := s.markFailed(ctx, a, msg, kind)
	outcome.Balance = balance
	return outcome
}

// markFailed обновляет статус интеграции и метрики
func (s *SyncService) markFailed(ctx context.Context, a *attempt, msg, kind string) *models.SyncOutcome {
	if err := s.integrations.MarkError(ctx, a.integ.ID, msg, s.now()); err != nil {
		a.log.Error("mark integration error", utils.Err(err))
	}

	p := string(a.integ.Provider)
	metrics.RecordSyncAttempt(p, models.SyncStatusError, time.Since(a.started).Seconds())
	metrics.RecordSyncError(p, kind)

	return &models.SyncOutcome{
		IntegrationID: a.integ.ID,
		AccountID:     a.integ.AccountID,
		SyncStatus:    models.SyncStatusError,
		Error:         msg,
	}
}

func (s *SyncService) succeed(ctx context.Context, a *attempt, snap *models.PerformanceSnapshot, synthetic bool) *models.SyncOutcome {
	balance := snap.CurrentBalance
	if err := s.history.Finish(ctx, a.historyID, models.HistoryStatusSuccess, 1, nil, &balance); err != nil {
		a.log.Error("finalize sync history", utils.Int("history_id", a.historyID), utils.Err(err))
	}
	if err := s.integrations.MarkSuccess(ctx, a.integ.ID, s.now()); err != nil {
		a.log.Error("mark integration success", utils.Err(err))
	}

	metrics.RecordSyncAttempt(string(a.integ.Provider), models.SyncStatusSuccess, time.Since(a.started).Seconds())
	a.log.Info("sync succeeded",
		utils.TraderID(snap.TraderID),
		utils.Balance(snap.CurrentBalance),
		utils.ProfitPct(snap.ProfitPercentage),
		utils.Bool("synthetic", synthetic),
		utils.Latency(time.Since(a.started)),
	)

	if s.hub != nil {
		s.hub.BroadcastPerformance(a.integ.Provider, snap, synthetic)
	}

	pct := snap.ProfitPercentage
	amount := utils.ProfitAmount(snap.CurrentBalance, snap.StartingBalance)
	return &models.SyncOutcome{
		IntegrationID:    a.integ.ID,
		AccountID:        a.integ.AccountID,
		SyncStatus:       models.SyncStatusSuccess,
		Balance:          &balance,
		ProfitPercentage: &pct,
		ProfitAmount:     &amount,
		Synthetic:        synthetic,
	}
}
