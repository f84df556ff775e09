// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// Step is what the desktop looks like for one poll.
type Step struct {
	IdleSecs uint64
	Window   *domain.WindowSnapshot
	Err      error
}

// Window builds a snapshot with the given class and title.
func Window(class, title string) *domain.WindowSnapshot {
	return &domain.WindowSnapshot{WindowID: class, WindowClass: class, WindowTitle: title}
}

// Active is a step where the user is at the keyboard in w.
func Active(w *domain.WindowSnapshot) Step {
	return Step{IdleSecs: 1, Window: w}
}

// Idle is a step where the user has been away for secs.
func Idle(secs uint64) Step {
	return Step{IdleSecs: secs}
}

// ScriptedProbe plays back a list of steps as window and idle probe
// answers. Each IdleSeconds call advances to the next step; the last step
// repeats forever. ActiveWindow answers from the current step.
type ScriptedProbe struct {
	mu      sync.Mutex
	steps   []Step
	next    int
	current Step
	polls   int
}

// NewScriptedProbe creates a probe that plays back steps.
func NewScriptedProbe(steps ...Step) *ScriptedProbe {
	return &ScriptedProbe{steps: steps}
}

// IdleSeconds implements domain.IdleProbe.
func (p *ScriptedProbe) IdleSeconds(context.Context) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steps) > 0 {
		p.current = p.steps[p.next]
		if p.next < len(p.steps)-1 {
			p.next++
		}
	}
	p.polls++
	return p.current.IdleSecs
}

// ActiveWindow implements domain.WindowProbe.
func (p *ScriptedProbe) ActiveWindow(context.Context) (*domain.WindowSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Err != nil {
		return nil, &domain.ProbeError{Probe: "window", Err: p.current.Err}
	}
	if p.current.Window == nil {
		return nil, &domain.ProbeError{Probe: "window", Err: domain.ErrNoActiveWindow}
	}
	w := *p.current.Window
	return &w, nil
}

// Replace swaps the remaining script for steps.
func (p *ScriptedProbe) Replace(steps ...Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = steps
	p.next = 0
}

// Polls returns how many samples have been taken.
func (p *ScriptedProbe) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
