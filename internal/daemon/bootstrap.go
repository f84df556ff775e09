package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// ErrNotRunning is returned when no live daemon is registered.
var ErrNotRunning = errors.New("daemon not running")

// StartDetached spawns `flowmode daemon` from the current executable.
func StartDetached(extraArgs ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDetachedWithPath(executable, extraArgs...)
}

// StartDetachedWithPath spawns `<executable> daemon` in its own session
// and returns its PID. The child is not waited for.
func StartDetachedWithPath(executable string, extraArgs ...string) (int, error) {
	args := append([]string{"daemon"}, extraArgs...)
	cmd := exec.Command(executable, args...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - the daemon logs to its file
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// Running returns the registered daemon if its process is alive. A stale
// registry entry is cleared.
func Running(registry domain.DaemonRegistry, pm domain.ProcessManager) (*domain.Daemon, error) {
	d, err := registry.Get()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotRunning
	}
	if !pm.IsRunning(d.PID) {
		_ = registry.Clear()
		return nil, ErrNotRunning
	}
	return d, nil
}

// SignalDaemon delivers sig to the running daemon.
func SignalDaemon(registry domain.DaemonRegistry, pm domain.ProcessManager, sig os.Signal) (*domain.Daemon, error) {
	d, err := Running(registry, pm)
	if err != nil {
		return nil, err
	}
	if err := pm.Signal(d.PID, sig); err != nil {
		return nil, fmt.Errorf("signal daemon %d: %w", d.PID, err)
	}
	return d, nil
}

// WaitForExit polls until pid is gone or timeout elapses.
func WaitForExit(pm domain.ProcessManager, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !pm.IsRunning(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
