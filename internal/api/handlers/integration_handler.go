package handlers

import (
	"net/http"
	"strconv"

	"competition/internal/models"
	"competition/internal/service"
)

// IntegrationHandler - администрирование привязок внешних счетов.
//
// Endpoints:
// - GET    /api/integrations/{provider} - список интеграций
// - POST   /api/integrations/{provider} - привязать счёт (с проверкой подключения)
// - GET    /api/integrations/{provider}/{id} - получить интеграцию
// - PATCH  /api/integrations/{provider}/{id} - изменить поля счёта или is_active
// - DELETE /api/integrations/{provider}/{id} - мягкое удаление
// - GET    /api/integrations/{provider}/{id}/history?limit=N - история синхронизаций
//
// Секреты (api_token, password) никогда не возвращаются в ответах.
type IntegrationHandler struct {
	integrationService service.IntegrationServiceInterface
}

// NewIntegrationHandler создает новый IntegrationHandler
func NewIntegrationHandler(integrationService service.IntegrationServiceInterface) *IntegrationHandler {
	return &IntegrationHandler{integrationService: integrationService}
}

// IntegrationListResponse ответ на GET списка
type IntegrationListResponse struct {
	Provider     models.Provider       `json:"provider"`
	Integrations []*models.Integration `json:"integrations"`
	Total        int                   `json:"total"`
}

// HistoryResponse ответ на GET истории
type HistoryResponse struct {
	IntegrationID int                   `json:"integration_id"`
	Items         []*models.SyncHistory `json:"items"`
}

// List возвращает все интеграции провайдера, включая неактивные
// GET /api/integrations/{provider}
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}

	list, err := h.integrationService.List(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Integration{}
	}
	respondWithJSON(w, http.StatusOK, IntegrationListResponse{Provider: p, Integrations: list, Total: len(list)})
}

// Create привязывает счёт к креденшелу
// POST /api/integrations/{provider}
//
// Request Body:
//
//	{
//	  "credential_id": 12,
//	  "account_id": "123456",
//	  "api_token": "token",
//	  "server_endpoint": "https://broker.example.com/api",
//	  "skip_connection_test": false
//	}
//
// Response:
// - 201 Created: новая интеграция
// - 200 OK: заменена активная интеграция того же креденшела
// - 400 Bad Request: невалидные поля
// - 422 Unprocessable Entity: проверка подключения не прошла
// - 409 Conflict: конкурентная привязка того же креденшела
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}

	var in models.IntegrationInput
	if !decodeJSON(w, r, &in) {
		return
	}

	integ, replaced, err := h.integrationService.Create(r.Context(), p, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	respondWithJSON(w, status, integ)
}

// Get возвращает интеграцию по id
// GET /api/integrations/{provider}/{id}
func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	integ, err := h.integrationService.Get(r.Context(), p, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, integ)
}

// Update применяет частичное обновление
// PATCH /api/integrations/{provider}/{id}
//
// Request Body (все поля опциональны):
//
//	{"account_id": "654321", "api_token": "new", "is_active": true}
func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var patch models.IntegrationPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	integ, err := h.integrationService.Update(r.Context(), p, id, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, integ)
}

// Delete деактивирует интеграцию; история сохраняется
// DELETE /api/integrations/{provider}/{id}
//
// Response:
// - 204 No Content
// - 404 Not Found: нет активной интеграции
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.integrationService.Delete(r.Context(), p, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History возвращает последние попытки синхронизации
// GET /api/integrations/{provider}/{id}/history?limit=20
func (h *IntegrationHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := providerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid_limit", "Invalid limit", "limit must be a non-negative number")
			return
		}
		limit = n
	}

	items, err := h.integrationService.History(r.Context(), p, id, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.SyncHistory{}
	}
	respondWithJSON(w, http.StatusOK, HistoryResponse{IntegrationID: id, Items: items})
}
