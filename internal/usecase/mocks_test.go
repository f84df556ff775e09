package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// mockRow is one ledger row in mockStore.
type mockRow struct {
	id       int64
	app      string
	category string
	title    string
	open     bool
}

// mockStore implements SessionStore in memory.
type mockStore struct {
	mu        sync.Mutex
	rows      []*mockRow
	nextID    int64
	today     int64
	startErr  error
	endErr    error
	closeErr  error
	todayErr  error
	activeErr error
	endCalls  int
	sweepRuns int
}

func newMockStore() *mockStore {
	return &mockStore{nextID: 1}
}

func (m *mockStore) StartSession(_ context.Context, app, category, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return 0, m.startErr
	}
	id := m.nextID
	m.nextID++
	m.rows = append(m.rows, &mockRow{id: id, app: app, category: category, title: title, open: true})
	return id, nil
}

func (m *mockStore) EndSession(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endCalls++
	if m.endErr != nil {
		return m.endErr
	}
	for _, r := range m.rows {
		if r.id == id {
			r.open = false
		}
	}
	return nil
}

func (m *mockStore) UpdateActivityTime(_ context.Context, _ int64, _, _ int64) error {
	return nil
}

func (m *mockStore) CloseOpenSessions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns++
	if m.closeErr != nil {
		return 0, m.closeErr
	}
	var n int64
	for _, r := range m.rows {
		if r.open {
			r.open = false
			n++
		}
	}
	return n, nil
}

func (m *mockStore) GetActiveSession(_ context.Context) (*domain.ActivitySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if r := m.rows[i]; r.open {
			return &domain.ActivitySession{ID: r.id, AppName: r.app, Category: r.category, WindowTitle: r.title}, nil
		}
	}
	return nil, nil
}

// deleteAll mimics a reset of the ledger.
func (m *mockStore) deleteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
}

func (m *mockStore) TodayTotalSecs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.todayErr != nil {
		return 0, m.todayErr
	}
	return m.today, nil
}

func (m *mockStore) openRows() []*mockRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mockRow
	for _, r := range m.rows {
		if r.open {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockStore) allRows() []mockRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out
}

// mockWindowProbe returns a fixed snapshot or error.
type mockWindowProbe struct {
	snap  *domain.WindowSnapshot
	err   error
	calls int
}

func (m *mockWindowProbe) ActiveWindow(_ context.Context) (*domain.WindowSnapshot, error) {
	m.calls++
	return m.snap, m.err
}

// mockIdleProbe returns a fixed idle duration.
type mockIdleProbe struct {
	secs uint64
}

func (m *mockIdleProbe) IdleSeconds(_ context.Context) uint64 {
	return m.secs
}

var errDiskFull = errors.New("disk I/O error")
