package models

import (
	"strings"
	"time"
)

// Provider - внешний источник данных о счёте
type Provider string

const (
	ProviderMyFXBook     Provider = "myfxbook"
	ProviderMT4          Provider = "mt4"
	ProviderMT5          Provider = "mt5"
	ProviderForexFactory Provider = "forex_factory"
)

// AllProviders - порядок обхода для "sync all" в CLI
var AllProviders = []Provider{ProviderMyFXBook, ProviderMT4, ProviderMT5, ProviderForexFactory}

// ParseProvider принимает значение из БД или сегмент URL ("forex-factory")
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch p {
	case ProviderMyFXBook, ProviderMT4, ProviderMT5, ProviderForexFactory:
		return p, true
	}
	return "", false
}

// Slug - представление провайдера в URL
func (p Provider) Slug() string {
	return strings.ReplaceAll(string(p), "_", "-")
}

// DisplayName - имя для сообщений пользователю
func (p Provider) DisplayName() string {
	switch p {
	case ProviderMyFXBook:
		return "MyFXBook"
	case ProviderMT4:
		return "MT4"
	case ProviderMT5:
		return "MT5"
	case ProviderForexFactory:
		return "Forex Factory"
	}
	return string(p)
}

// Статусы синхронизации интеграции
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// Integration - привязка креденшела участника к внешнему торговому счёту
type Integration struct {
	ID             int        `json:"id" db:"id"`
	Provider       Provider   `json:"provider" db:"provider"`
	CredentialID   int        `json:"credential_id" db:"credential_id"`
	AccountID      string     `json:"account_id" db:"account_id"`
	APIToken       string     `json:"-" db:"api_token"` // зашифрован
	Password       string     `json:"-" db:"password"`  // зашифрован
	ServerEndpoint string     `json:"server_endpoint,omitempty" db:"server_endpoint"`
	SyncStatus     string     `json:"sync_status" db:"sync_status"`
	LastSync       *time.Time `json:"last_sync" db:"last_sync"`
	LastError      *string    `json:"last_error" db:"last_error"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IntegrationStatus - строка ответа GET /api/sync/status
type IntegrationStatus struct {
	ID         int        `json:"id"`
	AccountID  string     `json:"account_id"`
	SyncStatus string     `json:"sync_status"`
	LastSync   *time.Time `json:"last_sync"`
	LastError  *string    `json:"last_error,omitempty"`
}

// Status возвращает краткое представление для списка статусов
func (i *Integration) Status() IntegrationStatus {
	return IntegrationStatus{
		ID:         i.ID,
		AccountID:  i.AccountID,
		SyncStatus: i.SyncStatus,
		LastSync:   i.LastSync,
		LastError:  i.LastError,
	}
}

// IntegrationInput - поля, которые задаёт администратор
type IntegrationInput struct {
	CredentialID   int    `json:"credential_id"`
	AccountID      string `json:"account_id"`
	APIToken       string `json:"api_token,omitempty"`
	Password       string `json:"password,omitempty"`
	ServerEndpoint string `json:"server_endpoint,omitempty"`
	// SkipConnectionTest - сохранить без проверки подключения (провайдер недоступен)
	SkipConnectionTest bool `json:"skip_connection_test,omitempty"`
}

// IntegrationPatch - частичное обновление; nil означает "не менять"
type IntegrationPatch struct {
	AccountID      *string `json:"account_id,omitempty"`
	APIToken       *string `json:"api_token,omitempty"`
	Password       *string `json:"password,omitempty"`
	ServerEndpoint *string `json:"server_endpoint,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`

	SkipConnectionTest bool `json:"skip_connection_test,omitempty"`
}

// IsEmpty - в патче нет ни одного изменяемого поля
func (p IntegrationPatch) IsEmpty() bool {
	return p.AccountID == nil && p.APIToken == nil && p.Password == nil &&
		p.ServerEndpoint == nil && p.IsActive == nil
}

// TouchesCredentials - патч меняет поля, от которых зависит подключение
func (p IntegrationPatch) TouchesCredentials() bool {
	return p.AccountID != nil || p.APIToken != nil || p.Password != nil || p.ServerEndpoint != nil
}
