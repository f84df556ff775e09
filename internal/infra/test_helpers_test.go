package infra

import (
	"os"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	names       map[int]string
	signals     map[int][]os.Signal
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
		signals:     make(map[int][]os.Signal),
	}
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[pid]
	if !ok {
		return "", os.ErrNotExist
	}
	return name, nil
}

func (m *mockProcessManager) Signal(pid int, sig os.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[pid] = append(m.signals[pid], sig)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

func (m *mockProcessManager) SetName(pid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[pid] = name
}
