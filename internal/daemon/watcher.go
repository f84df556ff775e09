// Package daemon implements the tracking daemon: the control loop, its
// probe worker and process lifecycle helpers.
package daemon

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
	"github.com/eliteGoblin/focusd/flowmode/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

// Sampler queries the window and idle probes once.
type Sampler interface {
	Sample(ctx context.Context) usecase.Sample
}

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	PollInterval time.Duration // How often to sample the focused window
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: 5 * time.Second,
	}
}

// Watcher is the tracking daemon. One goroutine owns the tracker and
// handles exactly one event per iteration (tick, probe result, command or
// termination); a worker goroutine runs the probes so a slow probe never
// delays command handling.
type Watcher struct {
	config   WatcherConfig
	tracker  *usecase.Tracker
	sampler  Sampler
	commands *CommandQueue
	registry domain.DaemonRegistry // optional
	daemon   domain.Daemon
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewWatcher creates a new watcher daemon. registry may be nil.
func NewWatcher(
	config WatcherConfig,
	tracker *usecase.Tracker,
	sampler Sampler,
	commands *CommandQueue,
	registry domain.DaemonRegistry,
	daemon domain.Daemon,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWatcherConfig().PollInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Watcher{
		config:   config,
		tracker:  tracker,
		sampler:  sampler,
		commands: commands,
		registry: registry,
		daemon:   daemon,
		clock:    clock,
		logger:   logger,
	}
}

type probeRequest struct {
	epoch uint64
}

type probeResult struct {
	epoch  uint64
	sample usecase.Sample
}

// Run recovers stale sessions and runs the control loop until ctx is
// canceled, a quit command arrives or the store fails. It returns nil on
// orderly shutdown and the store error otherwise; in both cases no session
// it opened is left open if the store allows closing it.
func (w *Watcher) Run(ctx context.Context) error {
	if w.registry != nil {
		if err := w.registry.Register(w.daemon); err != nil {
			w.logger.Error("failed to register daemon", zap.Error(err))
			return err
		}
		defer func() {
			if err := w.registry.Clear(); err != nil {
				w.logger.Warn("failed to clear daemon registry", zap.Error(err))
			}
		}()
	}

	if err := w.tracker.Recover(ctx); err != nil {
		w.logger.Error("startup recovery failed", zap.Error(err))
		return err
	}

	w.logger.Info("watcher daemon started",
		zap.Int("pid", w.daemon.PID),
		zap.Duration("poll_interval", w.config.PollInterval))

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := make(chan probeRequest)
	results := make(chan probeResult)

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		return w.probeWorker(gctx, requests, results)
	})
	g.Go(func() error {
		// Stop the worker once the loop is done, whatever the reason.
		defer cancel()
		return w.loop(gctx, context.WithoutCancel(ctx), requests, results)
	})
	return g.Wait()
}

// probeWorker runs one sample per request.
func (w *Watcher) probeWorker(ctx context.Context, requests <-chan probeRequest, results chan<- probeResult) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-requests:
			sample := w.sampler.Sample(ctx)
			select {
			case results <- probeResult{epoch: req.epoch, sample: sample}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// loop is the single control loop. Tracker calls use storeCtx, which is
// not canceled with ctx, so a session is always closed on the way out.
func (w *Watcher) loop(ctx, storeCtx context.Context, requests chan<- probeRequest, results <-chan probeResult) error {
	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// epoch invalidates probe results requested before a pause or resume.
	var epoch uint64
	inFlight := false

	dispatch := func() {
		if inFlight || w.tracker.Paused() {
			return
		}
		select {
		case requests <- probeRequest{epoch: epoch}:
			inFlight = true
		default:
		}
	}

	// Sample once right away rather than a full interval after start.
	dispatch()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			return w.shutdown(storeCtx)

		case cmd := <-w.commands.C():
			switch cmd {
			case domain.CommandPause:
				epoch++
				if err := w.tracker.Pause(storeCtx); err != nil {
					return w.fail(storeCtx, err)
				}
			case domain.CommandResume:
				epoch++
				w.tracker.Resume()
			case domain.CommandQuit:
				w.logger.Info("quit command received")
				return w.shutdown(storeCtx)
			default:
				w.logger.Warn("unknown command", zap.String("command", string(cmd)))
			}

		case <-ticker.Chan():
			dispatch()

		case res := <-results:
			inFlight = false
			if res.epoch != epoch {
				w.logger.Debug("discarding stale probe result")
				continue
			}
			if res.sample.Err != nil {
				w.logger.Debug("probe failed", zap.Error(res.sample.Err))
			}
			if err := w.tracker.Apply(storeCtx, res.sample); err != nil {
				return w.fail(storeCtx, err)
			}
		}
	}
}

func (w *Watcher) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := w.tracker.Shutdown(ctx); err != nil {
		return w.fail(ctx, err)
	}
	return nil
}

// fail handles a fatal store error: best-effort close of every open row,
// then the error is returned to stop the daemon.
func (w *Watcher) fail(ctx context.Context, err error) error {
	w.logger.Error("store failure, stopping tracker", zap.Error(err))
	w.tracker.Abort(ctx)
	return err
}
