package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/service"
	"competition/pkg/utils"
)

// MaxRequestBodySize ограничение размера тела запроса (1 MB)
const MaxRequestBodySize = 1 << 20

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError отправляет JSON ответ с ошибкой
func respondWithError(w http.ResponseWriter, statusCode int, code, message, details string) {
	respondWithJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// decodeJSON читает тело запроса с ограничением размера
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// providerFromRequest извлекает провайдера из пути.
// Маршруты без {provider} - legacy пути MyFXBook.
func providerFromRequest(w http.ResponseWriter, r *http.Request) (models.Provider, bool) {
	raw, ok := mux.Vars(r)["provider"]
	if !ok {
		return models.ProviderMyFXBook, true
	}
	p, ok := models.ParseProvider(raw)
	if !ok {
		respondWithError(w, http.StatusNotFound, "provider_not_supported", "Provider is not supported", raw)
		return "", false
	}
	return p, true
}

// parseID читает числовой параметр пути
func parseID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid integration ID", "ID must be a positive number")
		return 0, false
	}
	return id, true
}

// handleServiceError преобразует ошибки сервисов в HTTP статус
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation utils.ValidationErrors

	switch {
	case errors.Is(err, service.ErrIntegrationNotFound):
		respondWithError(w, http.StatusNotFound, "integration_not_found", "Integration not found", "")

	case errors.Is(err, service.ErrProviderNotSupported):
		respondWithError(w, http.StatusNotFound, "provider_not_supported", "Provider is not supported", "")

	case errors.Is(err, service.ErrIntegrationConflict):
		respondWithError(w, http.StatusConflict, "integration_conflict", err.Error(), "")

	case errors.Is(err, service.ErrConnectionFailed):
		respondWithError(w, http.StatusUnprocessableEntity, "connection_failed", "Connection test failed", err.Error())

	case errors.Is(err, service.ErrNothingToUpdate):
		respondWithError(w, http.StatusBadRequest, "nothing_to_update", "Nothing to update", "")

	case errors.Is(err, service.ErrSecretUnreadable):
		respondWithError(w, http.StatusConflict, "secret_unreadable", err.Error(), "")

	case errors.As(err, &validation):
		respondWithError(w, http.StatusBadRequest, "validation_error", "Validation failed", validation.Error())

	case errors.Is(err, provider.ErrConfiguration):
		respondWithError(w, http.StatusBadRequest, "invalid_configuration", "Invalid account configuration", err.Error())

	default:
		utils.FromContext(r.Context()).Error("request failed",
			utils.String("path", r.URL.Path),
			utils.Err(err),
		)
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
