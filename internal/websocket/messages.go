package websocket

import (
	"time"

	"competition/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeLeaderboard - актуальная таблица участников после синхронизации
	MessageTypeLeaderboard MessageType = "leaderboardUpdate"

	// MessageTypePerformance - новая доходность одного трейдера
	MessageTypePerformance MessageType = "performanceUpdate"

	// MessageTypeSyncCompleted - итог пакетной синхронизации провайдера
	MessageTypeSyncCompleted MessageType = "syncCompleted"
)

// BaseMessage - общие поля всех сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardMessage - таблица лидеров целиком
type LeaderboardMessage struct {
	BaseMessage
	Entries []models.LeaderboardEntry `json:"entries"`
}

// PerformanceMessage - обновление одного участника
type PerformanceMessage struct {
	BaseMessage
	Data *PerformanceData `json:"data"`
}

// PerformanceData - данные обновления доходности
type PerformanceData struct {
	TraderID         int             `json:"trader_id"`
	Provider         models.Provider `json:"provider"`
	CurrentBalance   float64         `json:"current_balance"`
	ProfitPercentage float64         `json:"profit_percentage"`
	Synthetic        bool            `json:"synthetic,omitempty"`
}

// SyncCompletedMessage - итог пакетной синхронизации
type SyncCompletedMessage struct {
	BaseMessage
	Provider models.Provider `json:"provider"`
	Synced   int             `json:"synced"`
	Failed   int             `json:"failed"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().UTC()}
}

// NewLeaderboardMessage создает сообщение с таблицей лидеров
func NewLeaderboardMessage(entries []models.LeaderboardEntry) *LeaderboardMessage {
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return &LeaderboardMessage{BaseMessage: newBase(MessageTypeLeaderboard), Entries: entries}
}

// NewPerformanceMessage создает сообщение об изменении доходности
func NewPerformanceMessage(provider models.Provider, snap *models.PerformanceSnapshot, synthetic bool) *PerformanceMessage {
	return &PerformanceMessage{
		BaseMessage: newBase(MessageTypePerformance),
		Data: &PerformanceData{
			TraderID:         snap.TraderID,
			Provider:         provider,
			CurrentBalance:   snap.CurrentBalance,
			ProfitPercentage: snap.ProfitPercentage,
			Synthetic:        synthetic,
		},
	}
}

// NewSyncCompletedMessage создает сообщение об итогах синхронизации
func NewSyncCompletedMessage(summary *models.SyncSummary) *SyncCompletedMessage {
	return &SyncCompletedMessage{
		BaseMessage: newBase(MessageTypeSyncCompleted),
		Provider:    summary.Provider,
		Synced:      summary.Synced,
		Failed:      summary.Failed,
	}
}
