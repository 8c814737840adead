package service

import (
	"context"

	"competition/internal/models"
	"competition/pkg/utils"
)

// LeaderboardService - чтение и рассылка таблицы лидеров
type LeaderboardService struct {
	performance PerformanceStore
	hub         Broadcaster
	limit       int
}

// NewLeaderboardService создает сервис; hub может быть nil
func NewLeaderboardService(performance PerformanceStore, hub Broadcaster, limit int) *LeaderboardService {
	return &LeaderboardService{performance: performance, hub: hub, limit: limit}
}

// Get возвращает таблицу лидеров
func (s *LeaderboardService) Get(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.limit
	}
	entries, err := s.performance.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

// Publish рассылает актуальную таблицу WebSocket клиентам.
// Ошибка чтения только логируется: на результат синхронизации она не влияет.
func (s *LeaderboardService) Publish(ctx context.Context) {
	if s.hub == nil {
		return
	}
	entries, err := s.Get(ctx, 0)
	if err != nil {
		utils.FromContext(ctx).Warn("leaderboard publish skipped", utils.Err(err))
		return
	}
	s.hub.BroadcastLeaderboard(entries)
}
