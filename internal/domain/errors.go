package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveWindow is returned by window probes when nothing has focus.
	ErrNoActiveWindow = errors.New("no active window")

	// ErrCommandQueueFull is returned when a command cannot be queued without blocking.
	ErrCommandQueueFull = errors.New("command queue full")
)

// ProbeError wraps a failed window or idle query. Never fatal.
type ProbeError struct {
	Probe string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe: %v", e.Probe, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// StoreError wraps a failed ledger operation. Fatal for the tracking loop.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConfigError wraps a configuration file that could not be read or parsed.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsProbeError reports whether err carries a ProbeError.
func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}
