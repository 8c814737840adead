package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"competition/internal/models"
	"competition/internal/provider"
	"competition/internal/repository"
)

var errDB = errors.New("database is down")

// ============ Mock IntegrationStore ============

type MockIntegrationStore struct {
	mu      sync.Mutex
	items   map[int]*models.Integration
	nextID  int
	listErr error
	saveErr error
}

func NewMockIntegrationStore() *MockIntegrationStore {
	return &MockIntegrationStore{items: make(map[int]*models.Integration), nextID: 1}
}

// add кладёт интеграцию напрямую, минуя Upsert
func (m *MockIntegrationStore) add(i *models.Integration) *models.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID == 0 {
		i.ID = m.nextID
		m.nextID++
	}
	if i.SyncStatus == "" {
		i.SyncStatus = models.SyncStatusPending
	}
	m.items[i.ID] = i
	return i
}

func (m *MockIntegrationStore) get(id int) *models.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.items[id]; ok {
		cp := *i
		return &cp
	}
	return nil
}

func (m *MockIntegrationStore) Upsert(ctx context.Context, in *models.Integration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return false, m.saveErr
	}
	for _, existing := range m.items {
		if existing.IsActive && existing.Provider == in.Provider && existing.CredentialID == in.CredentialID {
			in.ID = existing.ID
			in.IsActive = true
			in.SyncStatus = models.SyncStatusPending
			cp := *in
			m.items[in.ID] = &cp
			return true, nil
		}
	}
	in.ID = m.nextID
	m.nextID++
	in.IsActive = true
	in.SyncStatus = models.SyncStatusPending
	in.CreatedAt = time.Now()
	cp := *in
	m.items[in.ID] = &cp
	return false, nil
}

func (m *MockIntegrationStore) GetByID(ctx context.Context, p models.Provider, id int) (*models.Integration, error) {
	i := m.get(id)
	if i == nil || i.Provider != p {
		return nil, repository.ErrIntegrationNotFound
	}
	return i, nil
}

func (m *MockIntegrationStore) GetActiveByID(ctx context.Context, p models.Provider, id int) (*models.Integration, error) {
	i, err := m.GetByID(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !i.IsActive {
		return nil, repository.ErrIntegrationNotFound
	}
	return i, nil
}

func (m *MockIntegrationStore) list(p models.Provider, activeOnly bool) ([]*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.Integration
	for _, i := range m.items {
		if i.Provider == p && (!activeOnly || i.IsActive) {
			cp := *i
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].ID < result[b].ID })
	return result, nil
}

func (m *MockIntegrationStore) ListActive(ctx context.Context, p models.Provider) ([]*models.Integration, error) {
	return m.list(p, true)
}

func (m *MockIntegrationStore) List(ctx context.Context, p models.Provider) ([]*models.Integration, error) {
	return m.list(p, false)
}

func (m *MockIntegrationStore) UpdateAccount(ctx context.Context, i *models.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	existing, ok := m.items[i.ID]
	if !ok || existing.Provider != i.Provider {
		return repository.ErrIntegrationNotFound
	}
	existing.AccountID = i.AccountID
	existing.APIToken = i.APIToken
	existing.Password = i.Password
	existing.ServerEndpoint = i.ServerEndpoint
	existing.IsActive = i.IsActive
	return nil
}

func (m *MockIntegrationStore) Deactivate(ctx context.Context, p models.Provider, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.items[id]
	if !ok || i.Provider != p || !i.IsActive {
		return repository.ErrIntegrationNotFound
	}
	i.IsActive = false
	return nil
}

func (m *MockIntegrationStore) setStatus(id int, status string, at *time.Time, lastErr *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.items[id]
	if !ok {
		return repository.ErrIntegrationNotFound
	}
	i.SyncStatus = status
	if at != nil {
		t := *at
		i.LastSync = &t
	}
	i.LastError = lastErr
	return nil
}

func (m *MockIntegrationStore) MarkSyncing(ctx context.Context, id int) error {
	i := m.get(id)
	if i == nil {
		return repository.ErrIntegrationNotFound
	}
	return m.setStatus(id, models.SyncStatusSyncing, i.LastSync, i.LastError)
}

func (m *MockIntegrationStore) MarkSuccess(ctx context.Context, id int, at time.Time) error {
	return m.setStatus(id, models.SyncStatusSuccess, &at, nil)
}

func (m *MockIntegrationStore) MarkError(ctx context.Context, id int, message string, at time.Time) error {
	return m.setStatus(id, models.SyncStatusError, &at, &message)
}

// ============ Mock HistoryStore ============

type MockHistoryStore struct {
	mu       sync.Mutex
	rows     []*models.SyncHistory
	startErr error
}

func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

func (m *MockHistoryStore) Start(ctx context.Context, integrationID int, p models.Provider, syncType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return 0, m.startErr
	}
	h := &models.SyncHistory{
		ID:            len(m.rows) + 1,
		IntegrationID: integrationID,
		Provider:      p,
		SyncType:      syncType,
		Status:        models.HistoryStatusInProgress,
		SyncedAt:      time.Now(),
	}
	m.rows = append(m.rows, h)
	return h.ID, nil
}

func (m *MockHistoryStore) Finish(ctx context.Context, id int, status string, recordsUpdated int, errMsg *string, balance *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.rows {
		if h.ID != id {
			continue
		}
		if h.Status != models.HistoryStatusInProgress {
			return repository.ErrHistoryFinalized
		}
		h.Status = status
		h.RecordsUpdated = recordsUpdated
		h.ErrorMessage = errMsg
		h.Balance = balance
		return nil
	}
	return repository.ErrHistoryFinalized
}

func (m *MockHistoryStore) RecordTerminal(ctx context.Context, h *models.SyncHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	cp.ID = len(m.rows) + 1
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockHistoryStore) ListByIntegration(ctx context.Context, integrationID, limit int) ([]*models.SyncHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.SyncHistory
	for i := len(m.rows) - 1; i >= 0 && len(result) < limit; i-- {
		if m.rows[i].IntegrationID == integrationID {
			cp := *m.rows[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockHistoryStore) forIntegration(id int) []*models.SyncHistory {
	rows, _ := m.ListByIntegration(context.Background(), id, 1000)
	return rows
}

// ============ Mock PerformanceStore ============

type MockPerformanceStore struct {
	mu        sync.Mutex
	traders   map[int]int // credential_id -> trader_id
	snapshots map[int]*models.PerformanceSnapshot
	saveErr   error
	saves     int
}

func NewMockPerformanceStore() *MockPerformanceStore {
	return &MockPerformanceStore{
		traders:   make(map[int]int),
		snapshots: make(map[int]*models.PerformanceSnapshot),
	}
}

func (m *MockPerformanceStore) bind(credentialID, traderID int) {
	m.mu.Lock()
	m.traders[credentialID] = traderID
	m.mu.Unlock()
}

func (m *MockPerformanceStore) TraderByCredential(ctx context.Context, credentialID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.traders[credentialID]
	if !ok {
		return 0, repository.ErrTraderNotFound
	}
	return id, nil
}

func (m *MockPerformanceStore) Get(ctx context.Context, traderID int) (*models.PerformanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[traderID]
	if !ok {
		return nil, repository.ErrPerformanceNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockPerformanceStore) Save(ctx context.Context, s *models.PerformanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	cp := *s
	if existing, ok := m.snapshots[s.TraderID]; ok {
		cp.StartingBalance = existing.StartingBalance
	}
	cp.UpdatedAt = time.Now()
	m.snapshots[s.TraderID] = &cp
	return nil
}

func (m *MockPerformanceStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []models.LeaderboardEntry
	for _, s := range m.snapshots {
		entries = append(entries, models.LeaderboardEntry{
			TraderID: s.TraderID, CurrentBalance: s.CurrentBalance, ProfitPercentage: s.ProfitPercentage,
		})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].ProfitPercentage > entries[b].ProfitPercentage })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (m *MockPerformanceStore) snapshot(traderID int) *models.PerformanceSnapshot {
	s, _ := m.Get(context.Background(), traderID)
	return s
}

// ============ Mock Adapter ============

type MockAdapter struct {
	mu          sync.Mutex
	name        models.Provider
	balances    map[string]float64 // account_id -> balance
	errors      map[string]error
	validateErr error
	calls       int
	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func NewMockAdapter(p models.Provider) *MockAdapter {
	return &MockAdapter{name: p, balances: make(map[string]float64), errors: make(map[string]error)}
}

func (m *MockAdapter) Name() models.Provider { return m.name }

func (m *MockAdapter) Validate(creds models.Credentials) error {
	if creds.AccountID == "" {
		return &provider.ProviderError{Provider: m.name, Kind: provider.KindConfiguration, Message: "account id is required"}
	}
	return m.validateErr
}

func (m *MockAdapter) FetchAccount(ctx context.Context, creds models.Credentials) (*models.AccountData, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if err, ok := m.errors[creds.AccountID]; ok {
		return nil, err
	}
	balance, ok := m.balances[creds.AccountID]
	if !ok {
		return nil, &provider.ProviderError{Provider: m.name, Kind: provider.KindNoBalance, Message: "account has no balance"}
	}
	return &models.AccountData{AccountID: creds.AccountID, Balance: balance, Currency: "USD", Source: string(m.name)}, nil
}

func (m *MockAdapter) TestConnection(ctx context.Context, creds models.Credentials) models.ConnectionResult {
	if err := m.Validate(creds); err != nil {
		return models.ConnectionResult{Message: err.Error()}
	}
	data, err := m.FetchAccount(ctx, creds)
	if err != nil {
		return models.ConnectionResult{Message: err.Error()}
	}
	return models.ConnectionResult{Success: true, Message: "ok", Account: data}
}

func (m *MockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ============ Mock AdapterRegistry ============

type MockRegistry map[models.Provider]provider.Adapter

func (r MockRegistry) Get(p models.Provider) (provider.Adapter, error) {
	if a, ok := r[p]; ok {
		return a, nil
	}
	return nil, provider.ErrUnsupportedProvider
}

// ============ Mock SecretCipher ============

// plainCipher хранит секреты с префиксом, чтобы отличать зашифрованное от исходного
type plainCipher struct{ openErr error }

func (c plainCipher) Seal(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return "enc:" + s, nil
}

func (c plainCipher) Open(s string) (string, error) {
	if c.openErr != nil && s != "" {
		return "", c.openErr
	}
	if len(s) >= 4 && s[:4] == "enc:" {
		return s[4:], nil
	}
	return s, nil
}

// ============ Mock Broadcaster ============

type MockBroadcaster struct {
	mu           sync.Mutex
	performance  []*models.PerformanceSnapshot
	leaderboards int
	summaries    []*models.SyncSummary
}

func (b *MockBroadcaster) BroadcastPerformance(p models.Provider, snap *models.PerformanceSnapshot, synthetic bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performance = append(b.performance, snap)
}

func (b *MockBroadcaster) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaderboards++
}

func (b *MockBroadcaster) BroadcastSyncCompleted(summary *models.SyncSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries = append(b.summaries, summary)
}

// ============ Стенд ============

type testEnv struct {
	integrations *MockIntegrationStore
	history      *MockHistoryStore
	performance  *MockPerformanceStore
	adapter      *MockAdapter
	hub          *MockBroadcaster
	sync         *SyncService
	svc          *IntegrationService
}

func newTestEnv(p models.Provider) *testEnv {
	env := &testEnv{
		integrations: NewMockIntegrationStore(),
		history:      NewMockHistoryStore(),
		performance:  NewMockPerformanceStore(),
		adapter:      NewMockAdapter(p),
		hub:          &MockBroadcaster{},
	}
	env.sync = NewSyncService(env.integrations, env.history, env.performance,
		MockRegistry{p: env.adapter}, plainCipher{}, SyncConfig{DefaultStartingBalance: 1000, RequestTimeout: time.Second})
	env.sync.SetWebSocketHub(env.hub, NewLeaderboardService(env.performance, env.hub, 100))
	env.svc = NewIntegrationService(env.integrations, env.history, env.sync, plainCipher{})
	return env
}

// link добавляет активную интеграцию, привязанную к трейдеру
func (e *testEnv) link(p models.Provider, credentialID, traderID int, accountID string) *models.Integration {
	e.performance.bind(credentialID, traderID)
	return e.integrations.add(&models.Integration{
		Provider:     p,
		CredentialID: credentialID,
		AccountID:    accountID,
		APIToken:     "enc:token-" + accountID,
		IsActive:     true,
	})
}
