package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"competition/internal/models"
)

// PerformanceRepository - доходность трейдеров и связь трейдер-креденшел.
// Таблицы принадлежат модулю управления трейдерами, здесь только чтение связи
// и запись текущего баланса.
type PerformanceRepository struct {
	db *sql.DB
}

// NewPerformanceRepository создает новый экземпляр репозитория
func NewPerformanceRepository(db *sql.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// DefaultLeaderboardLimit - размер таблицы лидеров по умолчанию
const DefaultLeaderboardLimit = 100

// TraderByCredential находит трейдера, которому выдан креденшел
func (r *PerformanceRepository) TraderByCredential(ctx context.Context, credentialID int) (int, error) {
	query := `
		SELECT trader_id FROM trader_credentials
		WHERE credential_id = $1
		ORDER BY trader_id
		LIMIT 1`

	var traderID int
	if err := r.db.QueryRowContext(ctx, query, credentialID).Scan(&traderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTraderNotFound
		}
		return 0, err
	}
	return traderID, nil
}

// Get возвращает текущий снимок доходности трейдера
func (r *PerformanceRepository) Get(ctx context.Context, traderID int) (*models.PerformanceSnapshot, error) {
	query := `
		SELECT trader_id, starting_balance, current_balance, profit_percentage, updated_at
		FROM trader_performance
		WHERE trader_id = $1`

	s := &models.PerformanceSnapshot{}
	err := r.db.QueryRowContext(ctx, query, traderID).Scan(
		&s.TraderID, &s.StartingBalance, &s.CurrentBalance, &s.ProfitPercentage, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPerformanceNotFound
		}
		return nil, err
	}
	return s, nil
}

// Save записывает текущий баланс и доходность.
// starting_balance при конфликте не меняется: он фиксируется при регистрации.
func (r *PerformanceRepository) Save(ctx context.Context, s *models.PerformanceSnapshot) error {
	query := `
		INSERT INTO trader_performance (trader_id, starting_balance, current_balance, profit_percentage, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trader_id) DO UPDATE
		SET current_balance = EXCLUDED.current_balance,
			profit_percentage = EXCLUDED.profit_percentage,
			updated_at = EXCLUDED.updated_at`

	s.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		s.TraderID, s.StartingBalance, s.CurrentBalance, s.ProfitPercentage, s.UpdatedAt,
	)
	return err
}

// Leaderboard возвращает трейдеров по убыванию доходности
func (r *PerformanceRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	query := `
		SELECT trader_id, current_balance, profit_percentage, updated_at
		FROM trader_performance
		ORDER BY profit_percentage DESC, current_balance DESC, trader_id
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.TraderID, &e.CurrentBalance, &e.ProfitPercentage, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
