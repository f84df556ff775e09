package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

func newTestFileRegistry(t *testing.T) (*FileRegistry, *mockProcessManager) {
	t.Helper()
	pm := newMockProcessManager()
	return NewFileRegistry(filepath.Join(t.TempDir(), "daemon.json"), pm), pm
}

func TestFileRegistry_RegisterAndGet(t *testing.T) {
	registry, pm := newTestFileRegistry(t)

	got, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, got, "empty registry")
	assert.False(t, registry.IsAlive())

	daemon := domain.Daemon{
		PID:        12345,
		StartedAt:  time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		AppVersion: "0.3.0",
		DBPath:     "/tmp/activity.db",
	}
	require.NoError(t, registry.Register(daemon))

	got, err = registry.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, daemon.PID, got.PID)
	assert.True(t, daemon.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, daemon.AppVersion, got.AppVersion)
	assert.Equal(t, daemon.DBPath, got.DBPath)

	assert.False(t, registry.IsAlive(), "pid not running")
	pm.SetRunning(12345, true)
	assert.True(t, registry.IsAlive())

	info, err := os.Stat(registry.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileRegistry_RegisterRejectsLiveDaemon(t *testing.T) {
	registry, pm := newTestFileRegistry(t)

	require.NoError(t, registry.Register(domain.Daemon{PID: 100}))
	pm.SetRunning(100, true)

	err := registry.Register(domain.Daemon{PID: 200})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	// Re-registering the same PID is allowed.
	require.NoError(t, registry.Register(domain.Daemon{PID: 100, AppVersion: "x"}))

	// A stale entry is replaced.
	pm.SetRunning(100, false)
	require.NoError(t, registry.Register(domain.Daemon{PID: 200}))
	got, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, 200, got.PID)
}

func TestFileRegistry_Clear(t *testing.T) {
	registry, _ := newTestFileRegistry(t)

	require.NoError(t, registry.Register(domain.Daemon{PID: 1}))
	require.NoError(t, registry.Clear())

	got, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, registry.Clear(), "clearing twice is fine")
}

func TestFileRegistry_CorruptFile(t *testing.T) {
	registry, _ := newTestFileRegistry(t)
	require.NoError(t, os.WriteFile(registry.Path(), []byte("{not json"), 0600))

	_, err := registry.Get()
	require.Error(t, err)
	assert.False(t, registry.IsAlive())
}
