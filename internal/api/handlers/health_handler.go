package handlers

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout - время на ping БД
const healthCheckTimeout = 2 * time.Second

// Pinger - проверка доступности БД (*sql.DB)
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HubStats - состояние WebSocket хаба
type HubStats interface {
	ClientCount() int
	DroppedMessages() int64
}

// HealthHandler - проверка состояния сервиса
type HealthHandler struct {
	db      Pinger
	hub     HubStats
	started time.Time
}

// NewHealthHandler создает новый HealthHandler; оба аргумента могут быть nil
func NewHealthHandler(db Pinger, hub HubStats) *HealthHandler {
	return &HealthHandler{db: db, hub: hub, started: time.Now()}
}

// HealthResponse ответ GET /health
type HealthResponse struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	WebSocketClients int    `json:"websocket_clients"`
	DroppedMessages  int64  `json:"websocket_dropped_messages"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// Health возвращает 200 если БД доступна, иначе 503
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Database:      "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
		resp.DroppedMessages = h.hub.DroppedMessages()
	}

	status := http.StatusOK
	if h.db == nil {
		resp.Database = "not configured"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	respondWithJSON(w, status, resp)
}
