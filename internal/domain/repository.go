package domain

import (
	"context"
	"os"
	"time"
)

// WindowProbe reports the currently focused window.
// Implementation: xdotool/xprop on X11.
type WindowProbe interface {
	// ActiveWindow returns the focused window or a ProbeError.
	ActiveWindow(ctx context.Context) (*WindowSnapshot, error)
}

// IdleProbe reports how long the user has been inactive.
type IdleProbe interface {
	// IdleSeconds returns elapsed idle time; 0 when the probe fails.
	IdleSeconds(ctx context.Context) uint64
}

// SessionWriter mutates the session ledger. Only the tracker calls it.
type SessionWriter interface {
	// StartSession inserts an open row stamped with the current time.
	StartSession(ctx context.Context, appName, category, windowTitle string) (int64, error)

	// EndSession closes a row and computes its duration (never negative).
	EndSession(ctx context.Context, id int64) error

	// UpdateActivityTime adds to the active/passive counters of a row.
	UpdateActivityTime(ctx context.Context, id int64, activeDelta, passiveDelta int64) error

	// CloseOpenSessions closes every open row (startup recovery sweep).
	CloseOpenSessions(ctx context.Context) (int64, error)
}

// ActivityReader exposes read-only aggregations to presentation layers.
type ActivityReader interface {
	// GetActiveSession returns the most recent open row, or nil.
	GetActiveSession(ctx context.Context) (*ActivitySession, error)

	// DaySummary groups a local day by app and category, largest first.
	DaySummary(ctx context.Context, day time.Time) ([]AppSummary, error)

	// TodayTotalSecs sums every duration recorded today.
	TodayTotalSecs(ctx context.Context) (int64, error)

	// HourlyBreakdown buckets a local day by hour of day.
	HourlyBreakdown(ctx context.Context, day time.Time) ([]HourlyActivity, error)

	// HourlyBreakdownDetailed buckets a local day by hour with the active/passive split.
	HourlyBreakdownDetailed(ctx context.Context, day time.Time) ([]HourlyActivityDetailed, error)

	// WeekSummary returns per-day totals for today and the six days before.
	WeekSummary(ctx context.Context) ([]DayTotal, error)

	// History returns per-day totals for the last n days, newest first.
	History(ctx context.Context, days int) ([]DayTotal, error)

	// Detailed groups a local day by (app, window title), dropping groups under the noise floor.
	Detailed(ctx context.Context, day time.Time) ([]DetailedActivity, error)
}

// ActivityStore is the full persistent store contract.
type ActivityStore interface {
	SessionWriter
	ActivityReader

	// ResetToday deletes every row started within today's local-day window.
	ResetToday(ctx context.Context) (int64, error)

	// Close releases the database connection.
	Close() error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// NameOf returns the executable name of a PID.
	NameOf(pid int) (string, error)

	// Signal delivers a signal to a PID.
	Signal(pid int, sig os.Signal) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry records the running daemon so CLI commands can reach it.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID.
	Register(daemon Daemon) error

	// Get returns the registered daemon, or nil when none is registered.
	Get() (*Daemon, error)

	// IsAlive reports whether the registered daemon is still running.
	IsAlive() bool

	// Clear removes the registry file.
	Clear() error

	// Path returns the registry file path.
	Path() string
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
