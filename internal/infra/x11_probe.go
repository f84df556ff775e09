package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

const unknownClass = "unknown"

// commandRunner runs an external command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// X11Probe implements domain.WindowProbe and domain.IdleProbe by shelling
// out to xdotool, xprop and xprintidle.
type X11Probe struct {
	run            commandRunner
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewX11Probe creates a probe. pm resolves window PIDs to process names
// and may be nil.
func NewX11Probe(pm domain.ProcessManager, logger *zap.Logger) *X11Probe {
	return &X11Probe{run: execRunner, processManager: pm, logger: logger}
}

// ActiveWindow returns the focused window.
func (p *X11Probe) ActiveWindow(ctx context.Context) (*domain.WindowSnapshot, error) {
	out, err := p.run(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return nil, &domain.ProbeError{Probe: "window", Err: fmt.Errorf("xdotool getactivewindow: %w", err)}
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return nil, &domain.ProbeError{Probe: "window", Err: domain.ErrNoActiveWindow}
	}

	out, err = p.run(ctx, "xdotool", "getwindowname", id)
	if err != nil {
		return nil, &domain.ProbeError{Probe: "window", Err: fmt.Errorf("xdotool getwindowname: %w", err)}
	}

	return &domain.WindowSnapshot{
		WindowID:    id,
		WindowClass: p.windowClass(ctx, id),
		WindowTitle: strings.TrimSpace(string(out)),
		ProcessName: p.processName(ctx, id),
	}, nil
}

// windowClass returns the instance part of WM_CLASS, or "unknown".
func (p *X11Probe) windowClass(ctx context.Context, id string) string {
	out, err := p.run(ctx, "xprop", "-id", id, "WM_CLASS")
	if err != nil {
		return unknownClass
	}
	return parseWMClass(string(out))
}

func (p *X11Probe) processName(ctx context.Context, id string) string {
	if p.processManager == nil {
		return ""
	}
	out, err := p.run(ctx, "xdotool", "getwindowpid", id)
	if err != nil {
		return ""
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return ""
	}
	name, err := p.processManager.NameOf(pid)
	if err != nil {
		p.logger.Debug("failed to resolve window pid", zap.Int("pid", pid), zap.Error(err))
		return ""
	}
	return name
}

// IdleSeconds returns input idle time. Failures count as not idle.
func (p *X11Probe) IdleSeconds(ctx context.Context) uint64 {
	out, err := p.run(ctx, "xprintidle")
	if err != nil {
		p.logger.Debug("xprintidle failed", zap.Error(err))
		return 0
	}
	ms, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		p.logger.Debug("unexpected xprintidle output", zap.String("output", string(out)))
		return 0
	}
	return ms / 1000
}

// parseWMClass extracts the first quoted string from xprop output such as
// `WM_CLASS(STRING) = "brave-browser", "Brave-browser"`.
func parseWMClass(out string) string {
	start := strings.IndexByte(out, '"')
	if start < 0 {
		return unknownClass
	}
	rest := out[start+1:]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return unknownClass
	}
	return rest[:end]
}

// Ensure X11Probe implements both probes.
var (
	_ domain.WindowProbe = (*X11Probe)(nil)
	_ domain.IdleProbe   = (*X11Probe)(nil)
)
