package models

import "time"

// Тип запуска синхронизации
const (
	SyncTypeManual    = "manual"
	SyncTypeAutomatic = "automatic"
)

// Статусы записи истории
const (
	HistoryStatusPending    = "pending"
	HistoryStatusInProgress = "in_progress"
	HistoryStatusSuccess    = "success"
	HistoryStatusError      = "error"
)

// SyncHistory - запись об одной попытке синхронизации.
// Balance заполняется, если данные от провайдера получены,
// даже когда последующая запись в БД не удалась.
type SyncHistory struct {
	ID             int       `json:"id" db:"id"`
	IntegrationID  int       `json:"integration_id" db:"integration_id"`
	Provider       Provider  `json:"provider" db:"provider"`
	SyncType       string    `json:"sync_type" db:"sync_type"`
	Status         string    `json:"status" db:"status"`
	RecordsUpdated int       `json:"records_updated" db:"records_updated"`
	ErrorMessage   *string   `json:"error_message" db:"error_message"`
	Balance        *float64  `json:"balance,omitempty" db:"balance"`
	SyncedAt       time.Time `json:"synced_at" db:"synced_at"`
}

// IsTerminal - запись больше не изменяется
func (h *SyncHistory) IsTerminal() bool {
	return h.Status == HistoryStatusSuccess || h.Status == HistoryStatusError
}

// NormalizeSyncType приводит параметр ?type= к допустимому значению
func NormalizeSyncType(s string) string {
	if s == SyncTypeAutomatic {
		return SyncTypeAutomatic
	}
	return SyncTypeManual
}
