package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"competition/internal/api/handlers"
	"competition/internal/api/middleware"
	"competition/internal/service"
	"competition/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	SyncService        service.SyncServiceInterface
	IntegrationService service.IntegrationServiceInterface
	LeaderboardService service.LeaderboardServiceInterface

	Hub      *websocket.Hub
	Database handlers.Pinger

	// AllowedOrigins - CORS и WebSocket origins через запятую, "*" = любые
	AllowedOrigins string
	// AdminTokenHash и CronSecret защищают управляющие маршруты; оба пустые = без auth
	AdminTokenHash string
	CronSecret     string
	// RateLimiter для управляющих маршрутов; nil = без ограничения
	RateLimiter *middleware.IPRateLimiter
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/
//
//	├── /sync/ (auth, rate limit)
//	│   ├── POST /trigger - MyFXBook, все интеграции
//	│   ├── POST /trigger/{integrationId} - MyFXBook, одна интеграция
//	│   ├── GET  /status - MyFXBook, состояние
//	│   ├── POST /{provider}/trigger
//	│   ├── POST /{provider}/trigger/{integrationId}
//	│   ├── POST /{provider}/test
//	│   └── GET  /{provider}/status
//	├── /integrations/{provider} (auth, rate limit)
//	│   ├── GET / POST
//	│   ├── GET / PATCH / DELETE /{id}
//	│   └── GET /{id}/history
//	└── GET /leaderboard
//
// /ws/leaderboard - WebSocket обновления таблицы лидеров
// /metrics - Prometheus
// /health
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. RateLimit и AdminAuth (только для управляющих маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(deps.AllowedOrigins))

	protected := func(r *mux.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Handler)
		}
		r.Use(middleware.AdminAuth(deps.AdminTokenHash, deps.CronSecret))
	}

	// Sync routes
	if deps.SyncService != nil {
		syncHandler := handlers.NewSyncHandler(deps.SyncService)
		syncRouter := router.PathPrefix("/api/sync").Subrouter()
		protected(syncRouter)

		// legacy MyFXBook
		syncRouter.HandleFunc("/trigger", syncHandler.TriggerAll).Methods(http.MethodPost, http.MethodOptions)
		syncRouter.HandleFunc("/trigger/{integrationId:[0-9]+}", syncHandler.TriggerOne).Methods(http.MethodPost, http.MethodOptions)
		syncRouter.HandleFunc("/status", syncHandler.Status).Methods(http.MethodGet, http.MethodOptions)

		syncRouter.HandleFunc("/{provider}/trigger", syncHandler.TriggerAll).Methods(http.MethodPost, http.MethodOptions)
		syncRouter.HandleFunc("/{provider}/trigger/{integrationId}", syncHandler.TriggerOne).Methods(http.MethodPost, http.MethodOptions)
		syncRouter.HandleFunc("/{provider}/test", syncHandler.Test).Methods(http.MethodPost, http.MethodOptions)
		syncRouter.HandleFunc("/{provider}/status", syncHandler.Status).Methods(http.MethodGet, http.MethodOptions)
	}

	// Integration admin routes
	if deps.IntegrationService != nil {
		integrationHandler := handlers.NewIntegrationHandler(deps.IntegrationService)
		integrations := router.PathPrefix("/api/integrations").Subrouter()
		protected(integrations)

		integrations.HandleFunc("/{provider}", integrationHandler.List).Methods(http.MethodGet, http.MethodOptions)
		integrations.HandleFunc("/{provider}", integrationHandler.Create).Methods(http.MethodPost)
		integrations.HandleFunc("/{provider}/{id}", integrationHandler.Get).Methods(http.MethodGet, http.MethodOptions)
		integrations.HandleFunc("/{provider}/{id}", integrationHandler.Update).Methods(http.MethodPatch)
		integrations.HandleFunc("/{provider}/{id}", integrationHandler.Delete).Methods(http.MethodDelete)
		integrations.HandleFunc("/{provider}/{id}/history", integrationHandler.History).Methods(http.MethodGet, http.MethodOptions)
	}

	// Leaderboard
	if deps.LeaderboardService != nil {
		leaderboardHandler := handlers.NewLeaderboardHandler(deps.LeaderboardService)
		router.HandleFunc("/api/leaderboard", leaderboardHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/leaderboard", websocket.Handler(deps.Hub, websocket.NewOriginChecker(deps.AllowedOrigins))).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var hubStats handlers.HubStats
	if deps.Hub != nil {
		hubStats = deps.Hub
	}
	healthHandler := handlers.NewHealthHandler(deps.Database, hubStats)
	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	return router
}
