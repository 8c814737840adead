package handlers

import (
	"net/http"
	"strconv"

	"competition/internal/models"
	"competition/internal/service"
)

// maxLeaderboardLimit - верхняя граница ?limit
const maxLeaderboardLimit = 500

// LeaderboardHandler - публичная таблица лидеров
type LeaderboardHandler struct {
	leaderboardService service.LeaderboardServiceInterface
}

// NewLeaderboardHandler создает новый LeaderboardHandler
func NewLeaderboardHandler(leaderboardService service.LeaderboardServiceInterface) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// LeaderboardResponse ответ GET /api/leaderboard
type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
	Total   int                       `json:"total"`
}

// Get возвращает трейдеров, отсортированных по доходности
// GET /api/leaderboard?limit=50
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLeaderboardLimit {
			respondWithError(w, http.StatusBadRequest, "invalid_limit", "Invalid limit",
				"limit must be between 1 and "+strconv.Itoa(maxLeaderboardLimit))
			return
		}
		limit = n
	}

	entries, err := h.leaderboardService.Get(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	respondWithJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, Total: len(entries)})
}
