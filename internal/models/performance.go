package models

import "time"

// PerformanceSnapshot - текущая доходность трейдера
type PerformanceSnapshot struct {
	TraderID         int       `json:"trader_id" db:"trader_id"`
	StartingBalance  float64   `json:"starting_balance" db:"starting_balance"`
	CurrentBalance   float64   `json:"current_balance" db:"current_balance"`
	ProfitPercentage float64   `json:"profit_percentage" db:"profit_percentage"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// LeaderboardEntry - строка таблицы лидеров
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	TraderID         int       `json:"trader_id"`
	CurrentBalance   float64   `json:"current_balance"`
	ProfitPercentage float64   `json:"profit_percentage"`
	UpdatedAt        time.Time `json:"updated_at"`
}
