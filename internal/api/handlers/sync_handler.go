package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"competition/internal/models"
	"competition/internal/service"
)

// SyncHandler обрабатывает запуск синхронизации внешних счетов.
//
// Endpoints (provider: myfxbook, mt4, mt5, forex-factory):
// - POST /api/sync/{provider}/trigger - синхронизировать все активные интеграции
// - POST /api/sync/{provider}/trigger/{integrationId} - синхронизировать одну
// - POST /api/sync/{provider}/test - проверить креденшелы без сохранения
// - GET  /api/sync/{provider}/status - состояние интеграций
//
// Пути без {provider} (/api/sync/trigger, /api/sync/status) относятся к MyFXBook.
// Ответ отправляется после завершения всей синхронизации.
type SyncHandler struct {
	syncService service.SyncServiceInterface
}

// NewSyncHandler создает новый SyncHandler
func NewSyncHandler(syncService service.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// TriggerAllResponse ответ пакетной синхронизации
type TriggerAllResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Synced  int                `json:"synced"`
	Failed  int                `json:"failed,omitempty"`
	Errors  []models.SyncError `json:"errors,omitempty"`
}

// TriggerOneResponse ответ синхронизации одной интеграции
type TriggerOneResponse struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	IntegrationID    int      `json:"integration_id"`
	SyncStatus       string   `json:"sync_status"`
	Balance          *float64 `json:"balance,omitempty"`
	ProfitPercentage *float64 `json:"profit_percentage,omitempty"`
	Synthetic        bool     `json:"synthetic,omitempty"`
}

// TriggerAll синхронизирует все активные интеграции провайдера
// POST /api/sync/{provider}/trigger?type=automatic
//
// Response:
// - 200 OK: {success, message, synced, failed?, errors?}; success=false если были ошибки
// - 404 Not Found: провайдер не поддерживается
func (h *SyncHandler) TriggerAll(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.syncService.SyncAll(r.Context(), p, r.URL.Query().Get("type"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	message := fmt.Sprintf("Synced %d %s account(s)", summary.Synced, p.DisplayName())
	if summary.Failed > 0 {
		message += fmt.Sprintf(", %d failed", summary.Failed)
	}

	respondWithJSON(w, http.StatusOK, TriggerAllResponse{
		Success: summary.Failed == 0,
		Message: message,
		Synced:  summary.Synced,
		Failed:  summary.Failed,
		Errors:  summary.Errors,
	})
}

// TriggerOne синхронизирует одну интеграцию
// POST /api/sync/{provider}/trigger/{integrationId}
//
// Response:
// - 200 OK: результат попытки; неуспешная синхронизация - success=false с причиной
// - 400 Bad Request: некорректный id
// - 404 Not Found: интеграция не найдена или неактивна
func (h *SyncHandler) TriggerOne(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "integrationId")
	if !ok {
		return
	}

	outcome, err := h.syncService.SyncOne(r.Context(), p, id, r.URL.Query().Get("type"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := TriggerOneResponse{
		Success:          outcome.Succeeded(),
		IntegrationID:    outcome.IntegrationID,
		SyncStatus:       outcome.SyncStatus,
		Balance:          outcome.Balance,
		ProfitPercentage: outcome.ProfitPercentage,
		Synthetic:        outcome.Synthetic,
	}
	if resp.Success {
		resp.Message = fmt.Sprintf("%s account %s synced", p.DisplayName(), outcome.AccountID)
	} else {
		resp.Message = outcome.Error
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// Test проверяет подключение без сохранения интеграции
// POST /api/sync/{provider}/test
//
// Request Body (пример для MT5):
//
//	{
//	  "mt5_account_id": "123456",
//	  "mt5_api_token": "token",
//	  "mt5_server_endpoint": "https://broker.example.com/api"
//	}
//
// Префиксы: mt5, mt4, myfxbook, ff. Допустимы и имена без префикса (account_id, api_token...).
//
// Response:
// - 200 OK: {success, message, account?}
// - 400 Bad Request: невалидный JSON
func (h *SyncHandler) Test(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	body := map[string]interface{}{}
	if err := decoder.Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	prefix := fieldPrefix(p)
	creds := models.Credentials{
		AccountID:      strings.TrimSpace(prefixedField(body, prefix, "account_id")),
		APIToken:       strings.TrimSpace(prefixedField(body, prefix, "api_token")),
		Password:       prefixedField(body, prefix, "password"),
		ServerEndpoint: strings.TrimSpace(prefixedField(body, prefix, "server_endpoint")),
	}

	result, err := h.syncService.TestConnection(r.Context(), p, creds)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Status возвращает состояние активных интеграций
// GET /api/sync/{provider}/status
//
// Response 200 OK:
//
//	[{"id": 1, "account_id": "123456", "sync_status": "success", "last_sync": "2025-11-30T14:32:00Z"}]
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}

	statuses, err := h.syncService.Status(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []models.IntegrationStatus{}
	}
	respondWithJSON(w, http.StatusOK, statuses)
}

// fieldPrefix - префикс полей тела test-запроса
func fieldPrefix(p models.Provider) string {
	if p == models.ProviderForexFactory {
		return "ff"
	}
	return string(p)
}

// prefixedField ищет "<prefix>_<name>", затем "<name>"; числа приводятся к строке
func prefixedField(body map[string]interface{}, prefix, name string) string {
	for _, key := range []string{prefix + "_" + name, name} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
