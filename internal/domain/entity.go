// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// MatchType selects which part of a window snapshot a rule is matched against.
type MatchType string

const (
	MatchWindowClass MatchType = "window_class"
	MatchWindowTitle MatchType = "window_title"
	MatchProcess     MatchType = "process"
)

// ParseMatchType accepts both the snake_case names and the compact
// lowercase spellings ("windowclass", "windowtitle").
func ParseMatchType(s string) (MatchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "window_class", "windowclass", "class":
		return MatchWindowClass, nil
	case "window_title", "windowtitle", "title":
		return MatchWindowTitle, nil
	case "process", "process_name":
		return MatchProcess, nil
	}
	return "", fmt.Errorf("unknown match type %q", s)
}

// UnmarshalText lets config decoders parse every accepted spelling.
func (m *MatchType) UnmarshalText(text []byte) error {
	parsed, err := ParseMatchType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ProcessField decides which snapshot field a Process rule reads.
type ProcessField string

const (
	// ProcessFieldWindowClass resolves Process rules against the window class.
	ProcessFieldWindowClass ProcessField = "window_class"
	// ProcessFieldProcessName resolves Process rules against the owning process name.
	ProcessFieldProcessName ProcessField = "process_name"
)

// TrackedApp is one classification rule loaded from configuration.
type TrackedApp struct {
	Name      string    `yaml:"name"`
	MatchType MatchType `yaml:"match_type"`
	Pattern   string    `yaml:"pattern"`
	Category  string    `yaml:"category"`
}

// WindowSnapshot is what the window probe saw on one poll.
type WindowSnapshot struct {
	WindowID    string
	WindowClass string
	WindowTitle string
	ProcessName string // empty when the owning process could not be resolved
}

// ActivitySession is one row of the session ledger.
type ActivitySession struct {
	ID           int64
	AppName      string
	Category     string
	WindowTitle  string
	StartedAt    time.Time
	EndedAt      *time.Time // nil while the session is open
	DurationSecs int64
	ActiveSecs   int64
	PassiveSecs  int64
}

// IsOpen reports whether the session has not been closed yet.
func (s ActivitySession) IsOpen() bool {
	return s.EndedAt == nil
}

// AppSummary is the per-app total for a day.
type AppSummary struct {
	AppName     string
	Category    string
	TotalSecs   int64
	ActiveSecs  int64
	PassiveSecs int64
}

// HourlyActivity is the tracked total for one hour of the day.
type HourlyActivity struct {
	Hour      int
	TotalSecs int64
}

// HourlyActivityDetailed splits an hour bucket into active and passive time.
type HourlyActivityDetailed struct {
	Hour        int
	ActiveSecs  int64
	PassiveSecs int64
}

// DayTotal is the tracked total for one calendar day (YYYY-MM-DD, local).
type DayTotal struct {
	Date      string
	TotalSecs int64
}

// DetailedActivity is the total for one (app, window title) group.
type DetailedActivity struct {
	AppName     string
	Category    string
	WindowTitle string
	TotalSecs   int64
}

// Command is a control message sent to the tracking loop.
type Command string

const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandQuit   Command = "quit"
)

// Status is the tracker state published to presentation layers.
type Status struct {
	Paused           bool      `json:"paused"`
	Idle             bool      `json:"idle"`
	IdleSecs         uint64    `json:"idle_secs"`
	SessionID        int64     `json:"session_id,omitempty"` // 0 when no session is open
	AppName          string    `json:"app_name,omitempty"`
	Category         string    `json:"category,omitempty"`
	WindowTitle      string    `json:"window_title,omitempty"`
	SessionStartedAt time.Time `json:"session_started_at"`
	TodaySecs        int64     `json:"today_secs"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Tracking reports whether a session is currently open.
func (s Status) Tracking() bool {
	return s.SessionID != 0
}

// Daemon represents the running tracking daemon process.
type Daemon struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	AppVersion string    `json:"app_version,omitempty"`
	DBPath     string    `json:"db_path,omitempty"`
}
