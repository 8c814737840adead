package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"competition/internal/models"
)

// IntegrationRepository - работа с таблицей account_integrations.
// Одна таблица на всех провайдеров, различаются колонкой provider.
type IntegrationRepository struct {
	db *sql.DB
}

// NewIntegrationRepository создает новый экземпляр репозитория
func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

const integrationColumns = `id, provider, credential_id, account_id, api_token, password, server_endpoint,
		sync_status, last_sync, last_error, is_active, created_at, updated_at`

func scanIntegration(s scanner) (*models.Integration, error) {
	i := &models.Integration{}
	var (
		provider                   string
		apiToken, password, server sql.NullString
		lastSync                   sql.NullTime
		lastError                  sql.NullString
	)
	err := s.Scan(
		&i.ID,
		&provider,
		&i.CredentialID,
		&i.AccountID,
		&apiToken,
		&password,
		&server,
		&i.SyncStatus,
		&lastSync,
		&lastError,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	i.Provider = models.Provider(provider)
	i.APIToken = apiToken.String
	i.Password = password.String
	i.ServerEndpoint = server.String
	if lastSync.Valid {
		t := lastSync.Time
		i.LastSync = &t
	}
	if lastError.Valid {
		e := lastError.String
		i.LastError = &e
	}
	return i, nil
}

// Upsert создаёт интеграцию или заменяет активную для той же пары (provider, credential_id).
// Возвращает true, если существующая запись была заменена.
// Секреты должны быть зашифрованы вызывающей стороной.
func (r *IntegrationRepository) Upsert(ctx context.Context, in *models.Integration) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	// 1. Блокируем текущую активную запись, если она есть
	var existingID int
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM account_integrations
		WHERE provider = $1 AND credential_id = $2 AND is_active = true
		FOR UPDATE`,
		string(in.Provider), in.CredentialID,
	).Scan(&existingID)

	now := time.Now()
	replaced := false

	switch {
	case err == nil:
		// 2a. Замена: меняем поля счёта и сбрасываем статус
		_, err = tx.ExecContext(ctx, `
			UPDATE account_integrations
			SET account_id = $1, api_token = $2, password = $3, server_endpoint = $4,
				sync_status = $5, last_error = NULL, updated_at = $6
			WHERE id = $7`,
			in.AccountID, nullString(in.APIToken), nullString(in.Password), nullString(in.ServerEndpoint),
			models.SyncStatusPending, now, existingID,
		)
		if err != nil {
			return false, err
		}
		in.ID = existingID
		replaced = true

	case errors.Is(err, sql.ErrNoRows):
		// 2b. Новая запись
		err = tx.QueryRowContext(ctx, `
			INSERT INTO account_integrations (provider, credential_id, account_id, api_token, password,
				server_endpoint, sync_status, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $8)
			RETURNING id`,
			string(in.Provider), in.CredentialID, in.AccountID, nullString(in.APIToken), nullString(in.Password),
			nullString(in.ServerEndpoint), models.SyncStatusPending, now,
		).Scan(&in.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return false, ErrIntegrationExists
			}
			return false, err
		}
		in.CreatedAt = now

	default:
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	in.SyncStatus = models.SyncStatusPending
	in.LastError = nil
	in.IsActive = true
	in.UpdatedAt = now
	return replaced, nil
}

// GetByID возвращает интеграцию провайдера по ID, включая неактивные
func (r *IntegrationRepository) GetByID(ctx context.Context, provider models.Provider, id int) (*models.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM account_integrations
		WHERE id = $1 AND provider = $2`

	i, err := scanIntegration(r.db.QueryRowContext(ctx, query, id, string(provider)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return i, nil
}

// GetActiveByID возвращает активную интеграцию; неактивная считается несуществующей
func (r *IntegrationRepository) GetActiveByID(ctx context.Context, provider models.Provider, id int) (*models.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM account_integrations
		WHERE id = $1 AND provider = $2 AND is_active = true`

	i, err := scanIntegration(r.db.QueryRowContext(ctx, query, id, string(provider)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return i, nil
}

// ListActive возвращает активные интеграции провайдера в порядке создания
func (r *IntegrationRepository) ListActive(ctx context.Context, provider models.Provider) ([]*models.Integration, error) {
	return r.list(ctx, `SELECT `+integrationColumns+`
		FROM account_integrations
		WHERE provider = $1 AND is_active = true
		ORDER BY id`, string(provider))
}

// List возвращает все интеграции провайдера, включая удалённые
func (r *IntegrationRepository) List(ctx context.Context, provider models.Provider) ([]*models.Integration, error) {
	return r.list(ctx, `SELECT `+integrationColumns+`
		FROM account_integrations
		WHERE provider = $1
		ORDER BY id`, string(provider))
}

func (r *IntegrationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Integration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, i)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateAccount сохраняет поля, которые меняет администратор
func (r *IntegrationRepository) UpdateAccount(ctx context.Context, i *models.Integration) error {
	query := `
		UPDATE account_integrations
		SET account_id = $1, api_token = $2, password = $3, server_endpoint = $4, is_active = $5, updated_at = $6
		WHERE id = $7 AND provider = $8`

	i.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		i.AccountID, nullString(i.APIToken), nullString(i.Password), nullString(i.ServerEndpoint),
		i.IsActive, i.UpdatedAt, i.ID, string(i.Provider),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIntegrationExists
		}
		return err
	}
	return expectOneRow(result, ErrIntegrationNotFound)
}

// Deactivate - мягкое удаление
func (r *IntegrationRepository) Deactivate(ctx context.Context, provider models.Provider, id int) error {
	query := `
		UPDATE account_integrations
		SET is_active = false, updated_at = $1
		WHERE id = $2 AND provider = $3 AND is_active = true`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id, string(provider))
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrIntegrationNotFound)
}

// ============ Статус синхронизации (только оркестратор) ============

// MarkSyncing переводит интеграцию в syncing
func (r *IntegrationRepository) MarkSyncing(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE account_integrations SET sync_status = $1, updated_at = $2 WHERE id = $3`,
		models.SyncStatusSyncing, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrIntegrationNotFound)
}

// MarkSuccess фиксирует успешную синхронизацию и очищает last_error
func (r *IntegrationRepository) MarkSuccess(ctx context.Context, id int, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE account_integrations
		SET sync_status = $1, last_sync = $2, last_error = NULL, updated_at = $2
		WHERE id = $3`,
		models.SyncStatusSuccess, at, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrIntegrationNotFound)
}

// MarkError фиксирует ошибку; last_sync тоже обновляется
func (r *IntegrationRepository) MarkError(ctx context.Context, id int, message string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE account_integrations
		SET sync_status = $1, last_sync = $2, last_error = $3, updated_at = $2
		WHERE id = $4`,
		models.SyncStatusError, at, message, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrIntegrationNotFound)
}

// ============ Хелперы ============

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	if rowsAffected > 1 {
		return fmt.Errorf("expected 1 row affected, got %d", rowsAffected)
	}
	return nil
}
