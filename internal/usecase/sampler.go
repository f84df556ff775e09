package usecase

import (
	"context"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// Sample is the result of querying the probes once.
type Sample struct {
	IdleSecs uint64
	Window   *domain.WindowSnapshot // nil when idle or when the probe failed
	Err      error                  // window probe failure, a *domain.ProbeError
}

// Idle reports whether the sample exceeds the idle timeout.
func (s Sample) Idle(timeoutSecs uint64) bool {
	return s.IdleSecs > timeoutSecs
}

// Sampler queries the idle probe and, when the user is active, the window
// probe. It is safe to call from a worker goroutine.
type Sampler struct {
	window      domain.WindowProbe
	idle        domain.IdleProbe
	idleTimeout uint64
}

// NewSampler creates a sampler.
func NewSampler(window domain.WindowProbe, idle domain.IdleProbe, idleTimeoutSecs uint64) *Sampler {
	return &Sampler{window: window, idle: idle, idleTimeout: idleTimeoutSecs}
}

// Sample queries the probes. The window is not queried while idle.
func (s *Sampler) Sample(ctx context.Context) Sample {
	sample := Sample{IdleSecs: s.idle.IdleSeconds(ctx)}
	if sample.Idle(s.idleTimeout) {
		return sample
	}

	snap, err := s.window.ActiveWindow(ctx)
	switch {
	case err != nil:
		if !domain.IsProbeError(err) {
			err = &domain.ProbeError{Probe: "window", Err: err}
		}
		sample.Err = err
	case snap == nil:
		sample.Err = &domain.ProbeError{Probe: "window", Err: domain.ErrNoActiveWindow}
	default:
		sample.Window = snap
	}
	return sample
}
