package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"competition/internal/models"
	"competition/internal/service"
)

// ErrMockDatabase - ошибка хранилища для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Sync Service ============

// MockSyncService мок для SyncServiceInterface
type MockSyncService struct {
	mu sync.Mutex

	summary  *models.SyncSummary
	outcome  *models.SyncOutcome
	result   models.ConnectionResult
	statuses []models.IntegrationStatus
	err      error

	lastProvider models.Provider
	lastType     string
	lastID       int
	lastCreds    models.Credentials
}

func NewMockSyncService() *MockSyncService {
	return &MockSyncService{summary: &models.SyncSummary{}}
}

func (m *MockSyncService) record(p models.Provider, syncType string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProvider = p
	m.lastType = syncType
	m.lastID = id
}

func (m *MockSyncService) SyncAll(ctx context.Context, p models.Provider, syncType string) (*models.SyncSummary, error) {
	m.record(p, syncType, 0)
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *MockSyncService) SyncOne(ctx context.Context, p models.Provider, id int, syncType string) (*models.SyncOutcome, error) {
	m.record(p, syncType, id)
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

func (m *MockSyncService) TestConnection(ctx context.Context, p models.Provider, creds models.Credentials) (models.ConnectionResult, error) {
	m.record(p, "", 0)
	m.mu.Lock()
	m.lastCreds = creds
	m.mu.Unlock()
	if m.err != nil {
		return models.ConnectionResult{}, m.err
	}
	return m.result, nil
}

func (m *MockSyncService) Status(ctx context.Context, p models.Provider) ([]models.IntegrationStatus, error) {
	m.record(p, "", 0)
	if m.err != nil {
		return nil, m.err
	}
	return m.statuses, nil
}

// ============ Mock Integration Service ============

// MockIntegrationService мок для IntegrationServiceInterface
type MockIntegrationService struct {
	mu      sync.Mutex
	items   map[int]*models.Integration
	history map[int][]*models.SyncHistory
	nextID  int

	createErr error
	listErr   error
	updateErr error

	lastLimit int
}

func NewMockIntegrationService() *MockIntegrationService {
	return &MockIntegrationService{
		items:   make(map[int]*models.Integration),
		history: make(map[int][]*models.SyncHistory),
		nextID:  1,
	}
}

func (m *MockIntegrationService) Create(ctx context.Context, p models.Provider, in models.IntegrationInput) (*models.Integration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, false, m.createErr
	}

	for _, existing := range m.items {
		if existing.Provider == p && existing.CredentialID == in.CredentialID && existing.IsActive {
			existing.AccountID = in.AccountID
			return existing, true, nil
		}
	}
	integ := &models.Integration{
		ID:           m.nextID,
		Provider:     p,
		CredentialID: in.CredentialID,
		AccountID:    in.AccountID,
		APIToken:     "sealed",
		SyncStatus:   models.SyncStatusPending,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.items[integ.ID] = integ
	m.nextID++
	return integ, false, nil
}

func (m *MockIntegrationService) Get(ctx context.Context, p models.Provider, id int) (*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	integ, ok := m.items[id]
	if !ok || integ.Provider != p {
		return nil, service.ErrIntegrationNotFound
	}
	return integ, nil
}

func (m *MockIntegrationService) List(ctx context.Context, p models.Provider) ([]*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.Integration
	for _, integ := range m.items {
		if integ.Provider == p {
			result = append(result, integ)
		}
	}
	return result, nil
}

func (m *MockIntegrationService) Update(ctx context.Context, p models.Provider, id int, patch models.IntegrationPatch) (*models.Integration, error) {
	if patch.IsEmpty() {
		return nil, service.ErrNothingToUpdate
	}
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	integ, err := m.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if patch.AccountID != nil {
		integ.AccountID = *patch.AccountID
	}
	if patch.IsActive != nil {
		integ.IsActive = *patch.IsActive
	}
	return integ, nil
}

func (m *MockIntegrationService) Delete(ctx context.Context, p models.Provider, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integ, ok := m.items[id]
	if !ok || integ.Provider != p || !integ.IsActive {
		return service.ErrIntegrationNotFound
	}
	integ.IsActive = false
	return nil
}

func (m *MockIntegrationService) History(ctx context.Context, p models.Provider, id, limit int) ([]*models.SyncHistory, error) {
	if _, err := m.Get(ctx, p, id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.history[id], nil
}

// ============ Mock Leaderboard Service ============

// MockLeaderboardService мок для LeaderboardServiceInterface
type MockLeaderboardService struct {
	entries   []models.LeaderboardEntry
	err       error
	lastLimit int
}

func (m *MockLeaderboardService) Get(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *MockLeaderboardService) Publish(ctx context.Context) {}

// ============ Health ============

type mockPinger struct{ err error }

func (m mockPinger) PingContext(ctx context.Context) error { return m.err }

type mockHubStats struct {
	clients int
	dropped int64
}

func (m mockHubStats) ClientCount() int       { return m.clients }
func (m mockHubStats) DroppedMessages() int64 { return m.dropped }

func float64Ptr(v float64) *float64 { return &v }
