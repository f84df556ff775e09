// Package usecase contains application business logic.
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// SessionStore is what the tracker needs from the ledger.
type SessionStore interface {
	domain.SessionWriter
	GetActiveSession(ctx context.Context) (*domain.ActivitySession, error)
	TodayTotalSecs(ctx context.Context) (int64, error)
}

// Classifier maps a window snapshot to a tracked app.
type Classifier interface {
	Match(snapshot domain.WindowSnapshot) (domain.TrackedApp, bool)
}

// openSession is the tracker's view of the single open ledger row.
type openSession struct {
	id        int64
	app       domain.TrackedApp
	title     string
	startedAt time.Time
}

// Tracker is the session state machine. Apply, Pause, Resume and Shutdown
// must be called from a single goroutine; Status is safe from any.
//
// Store errors are returned to the caller, which is expected to stop
// (see Abort). Probe errors are logged and leave state untouched.
type Tracker struct {
	store       SessionStore
	classifier  Classifier
	idleTimeout uint64
	clock       clockwork.Clock
	broadcaster *StatusBroadcaster
	logger      *zap.Logger

	// mu guards the fields below. It is never held across a store call.
	mu        sync.RWMutex
	current   *openSession
	paused    bool
	idle      bool
	idleSecs  uint64
	todaySecs int64
}

// TrackerConfig holds the tracker's collaborators.
type TrackerConfig struct {
	Store           SessionStore
	Classifier      Classifier
	IdleTimeoutSecs uint64
	Clock           clockwork.Clock    // defaults to the real clock
	Broadcaster     *StatusBroadcaster // optional
	Logger          *zap.Logger
}

// NewTracker creates a tracker with no open session.
func NewTracker(cfg TrackerConfig) *Tracker {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		idleTimeout: cfg.IdleTimeoutSecs,
		clock:       clock,
		broadcaster: cfg.Broadcaster,
		logger:      logger,
	}
}

// Recover closes rows left open by an unclean shutdown. Call once before
// the first Apply.
func (t *Tracker) Recover(ctx context.Context) error {
	n, err := t.store.CloseOpenSessions(ctx)
	if err != nil {
		return asStoreError("close open sessions", err)
	}
	if n > 0 {
		t.logger.Info("closed sessions left open by previous run", zap.Int64("count", n))
	}
	t.refreshToday(ctx)
	t.publish()
	return nil
}

// Apply runs one tick against a probe sample.
func (t *Tracker) Apply(ctx context.Context, s Sample) error {
	if t.Paused() {
		return nil
	}
	err := t.step(ctx, s)
	if err == nil {
		t.refreshToday(ctx)
	}
	t.publish()
	return err
}

func (t *Tracker) step(ctx context.Context, s Sample) error {
	if s.Idle(t.idleTimeout) {
		if err := t.closeCurrent(ctx, "idle"); err != nil {
			return err
		}
		t.setIdle(true, s.IdleSecs)
		return nil
	}
	t.setIdle(false, s.IdleSecs)

	if s.Err != nil || s.Window == nil {
		t.logger.Debug("window probe failed, skipping tick", zap.Error(s.Err))
		return nil
	}

	app, ok := t.classifier.Match(*s.Window)
	if !ok {
		return t.closeCurrent(ctx, "untracked window")
	}

	if cur := t.currentSession(); cur != nil && cur.app.Name == app.Name {
		live, err := t.stillOpen(ctx, cur)
		if err != nil || live {
			return err
		}
		// The row was deleted under us (flowmode reset): start a fresh one.
		t.logger.Info("open session missing from ledger, reopening",
			zap.Int64("id", cur.id),
			zap.String("app", cur.app.Name))
		t.forget(cur)
		return t.open(ctx, app, s.Window.WindowTitle)
	}

	if err := t.closeCurrent(ctx, "switched app"); err != nil {
		return err
	}
	return t.open(ctx, app, s.Window.WindowTitle)
}

// Pause closes the open session and suppresses tracking until Resume.
func (t *Tracker) Pause(ctx context.Context) error {
	defer t.publish()
	if err := t.closeCurrent(ctx, "paused"); err != nil {
		return err
	}

	t.mu.Lock()
	t.paused = true
	t.idle = false
	t.mu.Unlock()

	t.logger.Info("tracking paused")
	t.refreshToday(ctx)
	return nil
}

// Resume re-enables tracking from the next tick.
func (t *Tracker) Resume() {
	t.mu.Lock()
	wasPaused := t.paused
	t.paused = false
	t.mu.Unlock()

	if wasPaused {
		t.logger.Info("tracking resumed")
	}
	t.publish()
}

// Shutdown closes the open session, if any.
func (t *Tracker) Shutdown(ctx context.Context) error {
	defer t.publish()
	return t.closeCurrent(ctx, "shutdown")
}

// Abort is the best-effort cleanup after a fatal store error: it tries to
// close every open row and forgets the in-memory session either way.
func (t *Tracker) Abort(ctx context.Context) {
	if _, err := t.store.CloseOpenSessions(ctx); err != nil {
		t.logger.Error("failed to close open sessions after store error", zap.Error(err))
	}
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
	t.publish()
}

// Paused reports whether tracking is suppressed.
func (t *Tracker) Paused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

// Status returns the current tracker state. TodaySecs includes the time
// elapsed in the open session.
func (t *Tracker) Status() domain.Status {
	now := t.clock.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	status := domain.Status{
		Paused:    t.paused,
		Idle:      t.idle,
		IdleSecs:  t.idleSecs,
		TodaySecs: t.todaySecs,
		UpdatedAt: now,
	}
	if cur := t.current; cur != nil {
		status.SessionID = cur.id
		status.AppName = cur.app.Name
		status.Category = cur.app.Category
		status.WindowTitle = cur.title
		status.SessionStartedAt = cur.startedAt
		if elapsed := now.Sub(cur.startedAt); elapsed > 0 {
			status.TodaySecs += int64(elapsed / time.Second)
		}
	}
	return status
}

func (t *Tracker) currentSession() *openSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// stillOpen reports whether cur is still the ledger's open row.
func (t *Tracker) stillOpen(ctx context.Context, cur *openSession) (bool, error) {
	active, err := t.store.GetActiveSession(ctx)
	if err != nil {
		return false, asStoreError("get active session", err)
	}
	return active != nil && active.ID == cur.id, nil
}

func (t *Tracker) forget(cur *openSession) {
	t.mu.Lock()
	if t.current == cur {
		t.current = nil
	}
	t.mu.Unlock()
}

func (t *Tracker) closeCurrent(ctx context.Context, reason string) error {
	cur := t.currentSession()
	if cur == nil {
		return nil
	}
	if err := t.store.EndSession(ctx, cur.id); err != nil {
		return asStoreError("end session", err)
	}
	t.forget(cur)

	t.logger.Debug("session closed",
		zap.Int64("id", cur.id),
		zap.String("app", cur.app.Name),
		zap.String("reason", reason))
	return nil
}

func (t *Tracker) open(ctx context.Context, app domain.TrackedApp, title string) error {
	id, err := t.store.StartSession(ctx, app.Name, app.Category, title)
	if err != nil {
		return asStoreError("start session", err)
	}

	t.mu.Lock()
	t.current = &openSession{id: id, app: app, title: title, startedAt: t.clock.Now()}
	t.mu.Unlock()

	t.logger.Debug("session opened",
		zap.Int64("id", id),
		zap.String("app", app.Name),
		zap.String("category", app.Category))
	return nil
}

func (t *Tracker) setIdle(idle bool, secs uint64) {
	t.mu.Lock()
	changed := t.idle != idle
	t.idle = idle
	t.idleSecs = secs
	t.mu.Unlock()

	if changed {
		t.logger.Info("idle state changed", zap.Bool("idle", idle), zap.Uint64("idle_secs", secs))
	}
}

// refreshToday reloads the stored daily total. Read failures are logged
// and ignored.
func (t *Tracker) refreshToday(ctx context.Context) {
	total, err := t.store.TodayTotalSecs(ctx)
	if err != nil {
		t.logger.Warn("failed to refresh today total", zap.Error(err))
		return
	}
	t.mu.Lock()
	t.todaySecs = total
	t.mu.Unlock()
}

func (t *Tracker) publish() {
	if t.broadcaster != nil {
		t.broadcaster.Publish(t.Status())
	}
}

func asStoreError(op string, err error) error {
	if domain.IsStoreError(err) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}
