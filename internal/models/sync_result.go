package models

// SyncError - ошибка одной интеграции в пакетной синхронизации
type SyncError struct {
	IntegrationID int    `json:"integration_id"`
	AccountID     string `json:"account_id"`
	Error         string `json:"error"`
}

// SyncSummary - результат "sync all"
type SyncSummary struct {
	Provider Provider    `json:"provider"`
	Synced   int         `json:"synced"`
	Failed   int         `json:"failed"`
	Errors   []SyncError `json:"errors,omitempty"`
}

// Total - количество обработанных интеграций
func (s *SyncSummary) Total() int {
	return s.Synced + s.Failed
}

// SyncOutcome - результат одной попытки
type SyncOutcome struct {
	IntegrationID    int      `json:"integration_id"`
	AccountID        string   `json:"account_id"`
	SyncStatus       string   `json:"sync_status"`
	Balance          *float64 `json:"balance,omitempty"`
	ProfitPercentage *float64 `json:"profit_percentage,omitempty"`
	ProfitAmount     *float64 `json:"profit_amount,omitempty"`
	Synthetic        bool     `json:"synthetic,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Succeeded - попытка завершилась успешно
func (o *SyncOutcome) Succeeded() bool {
	return o.SyncStatus == SyncStatusSuccess
}

// ConnectionResult - ответ проверки подключения
type ConnectionResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Account *AccountData `json:"account,omitempty"`
}
