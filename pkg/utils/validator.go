package utils

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// validator.go - валидация полей интеграций (account id, токены, endpoint)

// Ошибки валидации
var (
	ErrEmptyAccountID       = errors.New("account id is required")
	ErrInvalidAccountID     = errors.New("account id contains invalid characters")
	ErrEmptyAPIToken        = errors.New("api token is required")
	ErrAPITokenTooShort     = errors.New("api token is too short")
	ErrEmptyEndpoint        = errors.New("server endpoint is required")
	ErrInvalidEndpoint      = errors.New("server endpoint must be an absolute http(s) URL")
	ErrConfigurationPageURL = errors.New("server endpoint points to the credentials configuration page, not to the trading API")
	ErrInvalidCredentialID  = errors.New("credential id must be positive")
)

// ConfigurationPagePath - путь страницы настройки креденшелов в админке.
// Админы иногда копируют в поле endpoint адрес этой страницы вместо адреса API.
const ConfigurationPagePath = "/configure-trading-account-credentials/"

// MinAPITokenLength - минимальная длина токена провайдера
const MinAPITokenLength = 8

var accountIDRegex = regexp.MustCompile(`^[A-Za-z0-9._@\-]{1,64}$`)

// ValidateAccountID проверяет идентификатор внешнего аккаунта (логин MT, id MyFXBook, ник Forex Factory)
func ValidateAccountID(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ErrEmptyAccountID
	}
	if !accountIDRegex.MatchString(accountID) {
		return ErrInvalidAccountID
	}
	return nil
}

// ValidateAPIToken - базовая проверка токена
func ValidateAPIToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyAPIToken
	}
	if len(token) < MinAPITokenLength {
		return ErrAPITokenTooShort
	}
	return nil
}

// ValidateEndpointURL проверяет адрес API сервера MT4/MT5
func ValidateEndpointURL(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrEmptyEndpoint
	}
	if IsConfigurationPageURL(endpoint) {
		return ErrConfigurationPageURL
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidEndpoint
	}
	return nil
}

// IsConfigurationPageURL определяет, что в endpoint вставлен адрес страницы админки
func IsConfigurationPageURL(endpoint string) bool {
	return strings.Contains(strings.ToLower(endpoint), ConfigurationPagePath)
}

// ValidateCredentialID проверяет id креденшела
func ValidateCredentialID(id int) error {
	if id <= 0 {
		return ErrInvalidCredentialID
	}
	return nil
}

// ============ ValidationErrors ============

// ValidationError - ошибка конкретного поля
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors накапливает ошибки по полям
type ValidationErrors []ValidationError

// Add добавляет ошибку поля
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// AddError добавляет ошибку, если она не nil
func (v *ValidationErrors) AddError(field string, err error) {
	if err != nil {
		v.Add(field, err.Error())
	}
}

// HasErrors возвращает true если есть ошибки
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
