package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// FileRegistry implements domain.DaemonRegistry using a JSON file in the
// data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at path.
func NewFileRegistry(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records the daemon. It fails when another live daemon already
// holds the registry.
func (r *FileRegistry) Register(daemon domain.Daemon) error {
	// Lock so two daemons starting at once cannot both win.
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	existing, err := r.Get()
	if err != nil {
		return err
	}
	if existing != nil && existing.PID != daemon.PID && r.processManager.IsRunning(existing.PID) {
		return fmt.Errorf("daemon already running (pid %d)", existing.PID)
	}

	return r.atomicWrite(&daemon)
}

// Get returns the registered daemon, or nil when none is registered.
func (r *FileRegistry) Get() (*domain.Daemon, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var daemon domain.Daemon
	if err := json.Unmarshal(data, &daemon); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}
	return &daemon, nil
}

// IsAlive reports whether the registered daemon is still running.
func (r *FileRegistry) IsAlive() bool {
	daemon, err := r.Get()
	if err != nil || daemon == nil {
		return false
	}
	return r.processManager.IsRunning(daemon.PID)
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the registry atomically (write + rename).
func (r *FileRegistry) atomicWrite(daemon *domain.Daemon) error {
	data, err := json.Marshal(daemon)
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path, data)
}

// writeFileAtomic writes data to a temp file unique per process and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
