package repository

import (
	"context"
	"database/sql"
	"time"

	"competition/internal/models"
)

// SyncHistoryRepository - журнал попыток синхронизации.
// Запись создаётся in_progress и один раз переводится в терминальный статус.
type SyncHistoryRepository struct {
	db *sql.DB
}

// NewSyncHistoryRepository создает новый экземпляр репозитория
func NewSyncHistoryRepository(db *sql.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

// DefaultHistoryLimit - размер страницы истории по умолчанию
const DefaultHistoryLimit = 50

// Start создаёт запись in_progress и возвращает её ID
func (r *SyncHistoryRepository) Start(ctx context.Context, integrationID int, provider models.Provider, syncType string) (int, error) {
	query := `
		INSERT INTO sync_history (integration_id, provider, sync_type, status, records_updated, synced_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id`

	var id int
	err := r.db.QueryRowContext(ctx, query,
		integrationID, string(provider), syncType, models.HistoryStatusInProgress, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Finish переводит запись в success/error. Повторный вызов возвращает ErrHistoryFinalized.
func (r *SyncHistoryRepository) Finish(ctx context.Context, id int, status string, recordsUpdated int, errMsg *string, balance *float64) error {
	query := `
		UPDATE sync_history
		SET status = $1, records_updated = $2, error_message = $3, balance = $4, synced_at = $5
		WHERE id = $6 AND status = $7`

	result, err := r.db.ExecContext(ctx, query,
		status, recordsUpdated, nullStringPtr(errMsg), nullFloatPtr(balance), time.Now(),
		id, models.HistoryStatusInProgress,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrHistoryFinalized)
}

// RecordTerminal записывает попытку, завершившуюся до начала работы (ошибка конфигурации)
func (r *SyncHistoryRepository) RecordTerminal(ctx context.Context, h *models.SyncHistory) error {
	query := `
		INSERT INTO sync_history (integration_id, provider, sync_type, status, records_updated, error_message, balance, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if h.SyncedAt.IsZero() {
		h.SyncedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		h.IntegrationID, string(h.Provider), h.SyncType, h.Status, h.RecordsUpdated,
		nullStringPtr(h.ErrorMessage), nullFloatPtr(h.Balance), h.SyncedAt,
	).Scan(&h.ID)
}

// ListByIntegration возвращает последние записи интеграции, новые первыми
func (r *SyncHistoryRepository) ListByIntegration(ctx context.Context, integrationID, limit int) ([]*models.SyncHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query := `
		SELECT id, integration_id, provider, sync_type, status, records_updated, error_message, balance, synced_at
		FROM sync_history
		WHERE integration_id = $1
		ORDER BY synced_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, integrationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.SyncHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanHistory(s scanner) (*models.SyncHistory, error) {
	h := &models.SyncHistory{}
	var (
		provider string
		errMsg   sql.NullString
		balance  sql.NullFloat64
	)
	if err := s.Scan(&h.ID, &h.IntegrationID, &provider, &h.SyncType, &h.Status,
		&h.RecordsUpdated, &errMsg, &balance, &h.SyncedAt); err != nil {
		return nil, err
	}
	h.Provider = models.Provider(provider)
	if errMsg.Valid {
		m := errMsg.String
		h.ErrorMessage = &m
	}
	if balance.Valid {
		b := balance.Float64
		h.Balance = &b
	}
	return h, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
