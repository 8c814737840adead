// Package provider получает данные торговых счетов из внешних платформ
// (MyFXBook, MT4, MT5, Forex Factory) и приводит их к models.AccountData.
package provider

import (
	"context"
	"errors"
	"fmt"

	"competition/internal/models"
)

// Adapter - единый контракт для всех провайдеров.
//
// FetchAccount при любой ошибке возвращает nil и *ProviderError,
// никогда не возвращает одновременно данные и ошибку.
type Adapter interface {
	// Name возвращает провайдера
	Name() models.Provider

	// Validate проверяет обязательные поля без обращения к сети
	Validate(creds models.Credentials) error

	// FetchAccount получает и нормализует данные счёта
	FetchAccount(ctx context.Context, creds models.Credentials) (*models.AccountData, error)

	// TestConnection проверяет креденшелы перед сохранением интеграции
	TestConnection(ctx context.Context, creds models.Credentials) models.ConnectionResult
}

// ErrorKind - класс ошибки провайдера
type ErrorKind string

const (
	KindConfiguration      ErrorKind = "configuration"
	KindWrongEndpoint      ErrorKind = "wrong_endpoint"
	KindExpiredCredentials ErrorKind = "expired_credentials"
	KindUnreachable        ErrorKind = "unreachable"
	KindProviderRejected   ErrorKind = "provider_rejected"
	KindInvalidPayload     ErrorKind = "invalid_payload"
	KindNoBalance          ErrorKind = "no_balance"
)

// Sentinel-ошибки для errors.Is
var (
	ErrConfiguration       = errors.New("provider configuration error")
	ErrWrongEndpoint       = errors.New("wrong provider endpoint")
	ErrExpiredCredentials  = errors.New("provider credentials expired or invalid")
	ErrUnreachable         = errors.New("provider unreachable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrInvalidPayload      = errors.New("invalid provider payload")
	ErrNoBalance           = errors.New("provider returned no balance")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

var kindSentinels = map[ErrorKind]error{
	KindConfiguration:      ErrConfiguration,
	KindWrongEndpoint:      ErrWrongEndpoint,
	KindExpiredCredentials: ErrExpiredCredentials,
	KindUnreachable:        ErrUnreachable,
	KindProviderRejected:   ErrProviderRejected,
	KindInvalidPayload:     ErrInvalidPayload,
	KindNoBalance:          ErrNoBalance,
}

// ProviderError - ошибка адаптера с классом и исходной причиной
type ProviderError struct {
	Provider   models.Provider
	Kind       ErrorKind
	Message    string
	StatusCode int // 0 если ответа не было
	Original   error
}

func (e *ProviderError) Error() string {
	return e.Provider.DisplayName() + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *ProviderError) Unwrap() error {
	return e.Original
}

// Is сопоставляет ошибку с sentinel своего класса
func (e *ProviderError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newError(p models.Provider, kind ErrorKind, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Provider: p, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf возвращает класс ошибки или "" если это не ProviderError
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// testConnection - общая реализация TestConnection поверх Validate и FetchAccount
func testConnection(ctx context.Context, a Adapter, creds models.Credentials) models.ConnectionResult {
	if err := a.Validate(creds); err != nil {
		return models.ConnectionResult{Success: false, Message: err.Error()}
	}

	account, err := a.FetchAccount(ctx, creds)
	if err != nil {
		return models.ConnectionResult{Success: false, Message: err.Error()}
	}

	return models.ConnectionResult{
		Success: true,
		Message: fmt.Sprintf("connected to %s account %s, balance %.2f %s",
			a.Name().DisplayName(), account.AccountID, account.Balance, account.Currency),
		Account: account,
	}
}
