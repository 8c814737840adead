package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/service"
	"competition/pkg/utils"
)

func newIntegrationRequest(method, url, body string, vars map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return mux.SetURLVars(req, vars)
}

// ============ IntegrationHandler Tests ============

func TestIntegrationHandler_Create(t *testing.T) {
	t.Run("new integration returns 201 without secrets", func(t *testing.T) {
		mockSvc := NewMockIntegrationService()
		handler := NewIntegrationHandler(mockSvc)

		req := newIntegrationRequest(http.MethodPost, "/api/integrations/mt5",
			`{"credential_id":5,"account_id":"123","api_token":"secret"}`,
			map[string]string{"provider": "mt5"})
		w := httptest.NewRecorder()

		handler.Create(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
		}
		if strings.Contains(w.Body.String(), "sealed") || strings.Contains(w.Body.String(), "api_token") {
			t.Errorf("secret leaked: %s", w.Body.String())
		}
		var integ models.Integration
		if err := json.NewDecoder(w.Body).Decode(&integ); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if integ.ID == 0 || integ.Provider != models.ProviderMT5 {
			t.Errorf("unexpected integration: %+v", integ)
		}
	})

	t.Run("replacement returns 200", func(t *testing.T) {
		mockSvc := NewMockIntegrationService()
		handler := NewIntegrationHandler(mockSvc)
		vars := map[string]string{"provider": "mt5"}

		handler.Create(httptest.NewRecorder(), newIntegrationRequest(http.MethodPost, "/api/integrations/mt5",
			`{"credential_id":5,"account_id":"1"}`, vars))

		w := httptest.NewRecorder()
		handler.Create(w, newIntegrationRequest(http.MethodPost, "/api/integrations/mt5",
			`{"credential_id":5,"account_id":"2"}`, vars))

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	errorCases := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid json", nil, `{`, http.StatusBadRequest, "invalid_request"},
		{"validation", utils.ValidationErrors{{Field: "credential_id", Message: "must be positive"}}, `{}`, http.StatusBadRequest, "validation_error"},
		{"adapter configuration", &provider.ProviderError{Provider: models.ProviderMT5, Kind: provider.KindConfiguration, Message: "server_endpoint is required"}, `{}`, http.StatusBadRequest, "invalid_configuration"},
		{"connection failed", fmt.Errorf("%w: MT5: provider unreachable", service.ErrConnectionFailed), `{}`, http.StatusUnprocessableEntity, "connection_failed"},
		{"conflict", service.ErrIntegrationConflict, `{}`, http.StatusConflict, "integration_conflict"},
		{"store failure", ErrMockDatabase, `{}`, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := NewMockIntegrationService()
			mockSvc.createErr = tt.err
			handler := NewIntegrationHandler(mockSvc)

			w := httptest.NewRecorder()
			handler.Create(w, newIntegrationRequest(http.MethodPost, "/api/integrations/mt5", tt.body,
				map[string]string{"provider": "mt5"}))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestIntegrationHandler_ListAndGet(t *testing.T) {
	mockSvc := NewMockIntegrationService()
	handler := NewIntegrationHandler(mockSvc)
	_, _, _ = mockSvc.Create(context.Background(), models.ProviderForexFactory, models.IntegrationInput{CredentialID: 1, AccountID: "fx"})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, newIntegrationRequest(http.MethodGet, "/api/integrations/forex-factory", "",
			map[string]string{"provider": "forex-factory"}))

		var resp IntegrationListResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Total != 1 || resp.Provider != models.ProviderForexFactory {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("empty list is []", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, newIntegrationRequest(http.MethodGet, "/api/integrations/mt4", "",
			map[string]string{"provider": "mt4"}))

		if !strings.Contains(w.Body.String(), `"integrations":[]`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("list error", func(t *testing.T) {
		failing := NewMockIntegrationService()
		failing.listErr = ErrMockDatabase

		w := httptest.NewRecorder()
		NewIntegrationHandler(failing).List(w, newIntegrationRequest(http.MethodGet, "/api/integrations/mt4", "",
			map[string]string{"provider": "mt4"}))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Get(w, newIntegrationRequest(http.MethodGet, "/api/integrations/forex-factory/1", "",
			map[string]string{"provider": "forex-factory", "id": "1"}))

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("get under another provider", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Get(w, newIntegrationRequest(http.MethodGet, "/api/integrations/mt5/1", "",
			map[string]string{"provider": "mt5", "id": "1"}))

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestIntegrationHandler_UpdateDelete(t *testing.T) {
	mockSvc := NewMockIntegrationService()
	handler := NewIntegrationHandler(mockSvc)
	integ, _, _ := mockSvc.Create(context.Background(), models.ProviderMT5, models.IntegrationInput{CredentialID: 1, AccountID: "1"})
	vars := map[string]string{"provider": "mt5", "id": fmt.Sprint(integ.ID)}

	t.Run("update account", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Update(w, newIntegrationRequest(http.MethodPatch, "/api/integrations/mt5/1", `{"account_id":"2"}`, vars))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if integ.AccountID != "2" {
			t.Errorf("account_id = %q", integ.AccountID)
		}
	})

	t.Run("empty patch", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Update(w, newIntegrationRequest(http.MethodPatch, "/api/integrations/mt5/1", `{}`, vars))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Delete(w, newIntegrationRequest(http.MethodDelete, "/api/integrations/mt5/1", "", vars))

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
		}
		if integ.IsActive {
			t.Error("integration should be inactive")
		}
	})

	t.Run("delete twice", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Delete(w, newIntegrationRequest(http.MethodDelete, "/api/integrations/mt5/1", "", vars))

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestIntegrationHandler_History(t *testing.T) {
	mockSvc := NewMockIntegrationService()
	handler := NewIntegrationHandler(mockSvc)
	integ, _, _ := mockSvc.Create(context.Background(), models.ProviderMT5, models.IntegrationInput{CredentialID: 1, AccountID: "1"})
	mockSvc.history[integ.ID] = []*models.SyncHistory{
		{ID: 2, IntegrationID: integ.ID, Status: models.HistoryStatusSuccess, RecordsUpdated: 1},
		{ID: 1, IntegrationID: integ.ID, Status: models.HistoryStatusError},
	}
	vars := map[string]string{"provider": "mt5", "id": fmt.Sprint(integ.ID)}

	t.Run("with limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.History(w, newIntegrationRequest(http.MethodGet, "/api/integrations/mt5/1/history?limit=5", "", vars))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var resp HistoryResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Items) != 2 || mockSvc.lastLimit != 5 {
			t.Errorf("items = %d, limit = %d", len(resp.Items), mockSvc.lastLimit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.History(w, newIntegrationRequest(http.MethodGet, "/api/integrations/mt5/1/history?limit=x", "", vars))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

// ============ Leaderboard / Health ============

func TestLeaderboardHandler_Get(t *testing.T) {
	t.Run("returns entries", func(t *testing.T) {
		mockSvc := &MockLeaderboardService{entries: []models.LeaderboardEntry{
			{Rank: 1, TraderID: 2, ProfitPercentage: 15},
			{Rank: 2, TraderID: 1, ProfitPercentage: 5},
		}}
		handler := NewLeaderboardHandler(mockSvc)

		w := httptest.NewRecorder()
		handler.Get(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=10", nil))

		var resp LeaderboardResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Total != 2 || resp.Entries[0].TraderID != 2 || mockSvc.lastLimit != 10 {
			t.Errorf("unexpected response: %+v (limit %d)", resp, mockSvc.lastLimit)
		}
	})

	t.Run("empty is []", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLeaderboardHandler(&MockLeaderboardService{}).Get(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

		if !strings.Contains(w.Body.String(), `"entries":[]`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("limit out of range", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLeaderboardHandler(&MockLeaderboardService{}).Get(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=0", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantDB     string
	}{
		{"healthy", mockPinger{}, http.StatusOK, "ok"},
		{"database down", mockPinger{err: ErrMockDatabase}, http.StatusServiceUnavailable, "unavailable"},
		{"no database", nil, http.StatusOK, "not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.db, mockHubStats{clients: 3, dropped: 7})

			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Database != tt.wantDB || resp.WebSocketClients != 3 || resp.DroppedMessages != 7 {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}
