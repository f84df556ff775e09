package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/daemon"
	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
	"github.com/eliteGoblin/focusd/flowmode/internal/infra"
	"github.com/eliteGoblin/focusd/flowmode/internal/usecase"
)

const stopTimeout = 10 * time.Second

// Hidden daemon command - used for self-exec by `start --detach`
func (a *app) daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "daemon",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

func (a *app) startCmd() *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tracking",
		Long: `Starts the tracking daemon. Without --detach it runs in the foreground
until interrupted; with --detach it is started in its own session and
this command returns once it has been spawned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm := infra.NewProcessManager()
			registry := infra.NewFileRegistry(a.paths.RegistryFile(), pm)
			if d, err := daemon.Running(registry, pm); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "FlowMode daemon is already running (pid %d).\n", d.PID)
				return nil
			}

			if !detach {
				return a.runDaemon(cmd.Context())
			}

			pid, err := daemon.StartDetached(a.forwardedFlags()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FlowMode daemon started (pid %d).\n", pid)
			fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", a.paths.LogFile())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run the daemon in the background")
	return cmd
}

func (a *app) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the tracking daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pm := infra.NewProcessManager()
			registry := infra.NewFileRegistry(a.paths.RegistryFile(), pm)

			d, err := daemon.SignalDaemon(registry, pm, syscall.SIGTERM)
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "FlowMode daemon is not running.")
				return nil
			}
			if err != nil {
				return err
			}
			if !daemon.WaitForExit(pm, d.PID, stopTimeout) {
				return fmt.Errorf("daemon %d did not exit within %s", d.PID, stopTimeout)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "FlowMode daemon stopped.")
			return nil
		},
	}
}

func (a *app) pauseCmd() *cobra.Command {
	return a.controlCmd("pause", "Pause tracking (closes the current session)", daemon.SignalPause, "Tracking paused.")
}

func (a *app) resumeCmd() *cobra.Command {
	return a.controlCmd("resume", "Resume tracking", daemon.SignalResume, "Tracking resumed.")
}

func (a *app) controlCmd(use, short string, sig os.Signal, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm := infra.NewProcessManager()
			registry := infra.NewFileRegistry(a.paths.RegistryFile(), pm)
			if _, err := daemon.SignalDaemon(registry, pm, sig); err != nil {
				if errors.Is(err, daemon.ErrNotRunning) {
					fmt.Fprintln(cmd.OutOrStdout(), "FlowMode daemon is not running.")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
}

// runDaemon wires the tracker and runs the watcher until SIGINT/SIGTERM.
func (a *app) runDaemon(parent context.Context) error {
	if err := a.paths.EnsureDataDir(); err != nil {
		return err
	}

	logger := createLogger(a.paths.LogFile(), a.verbose)
	defer func() { _ = logger.Sync() }()

	store, err := a.openStore(true, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer store.Close()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(a.paths.RegistryFile(), pm)
	probe := infra.NewX11Probe(pm, logger)
	clock := clockwork.NewRealClock()

	broadcaster := usecase.NewStatusBroadcaster()
	defer broadcaster.Close()

	tracker := usecase.NewTracker(usecase.TrackerConfig{
		Store:           store,
		Classifier:      a.cfg.Matcher(),
		IdleTimeoutSecs: a.cfg.IdleTimeoutSecs,
		Clock:           clock,
		Broadcaster:     broadcaster,
		Logger:          logger,
	})
	commands := daemon.NewCommandQueue(a.cfg.CommandQueueSize)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	daemon.ForwardSignals(ctx, commands, logger)

	statusFile := infra.NewStatusFile(a.paths.StatusFile())
	mirrorCtx, stopMirror := context.WithCancel(ctx)
	mirrored := make(chan struct{})
	go func() {
		defer close(mirrored)
		mirrorStatus(mirrorCtx, broadcaster, statusFile, logger)
	}()

	w := daemon.NewWatcher(
		daemon.WatcherConfig{PollInterval: a.cfg.PollInterval()},
		tracker,
		usecase.NewSampler(probe, probe, a.cfg.IdleTimeoutSecs),
		commands,
		registry,
		domain.Daemon{
			PID:        os.Getpid(),
			StartedAt:  clock.Now(),
			AppVersion: Version,
			DBPath:     store.Path(),
		},
		clock,
		logger,
	)
	runErr := w.Run(ctx)

	stopMirror()
	<-mirrored
	if err := statusFile.Remove(); err != nil {
		logger.Warn("failed to remove status file", zap.Error(err))
	}

	if runErr != nil {
		logger.Error("watcher daemon stopped with error", zap.Error(runErr))
		return runErr
	}
	logger.Info("watcher daemon stopped")
	return nil
}

// mirrorStatus writes every published status to the status file.
func mirrorStatus(ctx context.Context, b *usecase.StatusBroadcaster, f *infra.StatusFile, logger *zap.Logger) {
	updates, cancel := b.Subscribe(1)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := f.Write(st); err != nil {
				logger.Warn("failed to write status file", zap.Error(err))
			}
		}
	}
}

// openStore opens the ledger. With encryption on, only the daemon
// (create=true) may generate the key.
func (a *app) openStore(create bool, logger *zap.Logger) (*infra.SQLiteStore, error) {
	opts := []infra.StoreOption{infra.WithStoreLogger(logger)}
	if a.cfg.EncryptStore {
		key, err := infra.StoreKey(infra.NewFileKeyProvider(a.paths.DataDir), create)
		if err != nil {
			return nil, fmt.Errorf("store key: %w", err)
		}
		opts = append(opts, infra.WithEncryptionKey(key))
	}
	return infra.OpenStore(a.paths.StoreFile(), opts...)
}
