// Package metrics - Prometheus метрики синхронизации
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Синхронизация ============

// SyncAttempts - попытки синхронизации по провайдеру и результату (success / error)
var SyncAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "competition",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "Total number of integration sync attempts",
	},
	[]string{"provider", "result"},
)

// SyncDuration - длительность одной попытки в секундах
var SyncDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "competition",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Duration of a single integration sync attempt",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	},
	[]string{"provider"},
)

// SyncErrors - ошибки по классу (wrong_endpoint, no_balance, ...)
var SyncErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "competition",
		Subsystem: "sync",
		Name:      "errors_total",
		Help:      "Sync failures by provider and error kind",
	},
	[]string{"provider", "kind"},
)

// BatchSize - количество интеграций в последнем пакетном запуске
var BatchSize = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "competition",
		Subsystem: "sync",
		Name:      "last_batch_size",
		Help:      "Number of integrations processed by the last batch run",
	},
	[]string{"provider"},
)

// ============ Провайдеры ============

// FallbackUsed - сколько раз Forex Factory отдал сгенерированные данные
var FallbackUsed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "competition",
		Subsystem: "provider",
		Name:      "fallback_used_total",
		Help:      "Times synthetic fallback data was returned instead of scraped data",
	},
	[]string{"provider"},
)

// ============ WebSocket ============

// WebSocketClients - подключённые клиенты таблицы лидеров
var WebSocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "competition",
		Subsystem: "websocket",
		Name:      "clients",
		Help:      "Connected leaderboard WebSocket clients",
	},
)

// ============ Хелперы ============

func RecordSyncAttempt(provider, result string, seconds float64) {
	SyncAttempts.WithLabelValues(provider, result).Inc()
	SyncDuration.WithLabelValues(provider).Observe(seconds)
}

func RecordSyncError(provider, kind string) {
	if kind == "" {
		kind = "internal"
	}
	SyncErrors.WithLabelValues(provider, kind).Inc()
}

func RecordBatch(provider string, size int) {
	BatchSize.WithLabelValues(provider).Set(float64(size))
}

func RecordFallback(provider string) {
	FallbackUsed.WithLabelValues(provider).Inc()
}

func SetWebSocketClients(n int) {
	WebSocketClients.Set(float64(n))
}
