package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// CommandQueue is a bounded queue of control commands for the watcher.
// Send never blocks: when the queue is full the new command is rejected.
type CommandQueue struct {
	ch chan domain.Command
}

// NewCommandQueue creates a queue holding up to size commands.
func NewCommandQueue(size int) *CommandQueue {
	if size < 1 {
		size = 1
	}
	return &CommandQueue{ch: make(chan domain.Command, size)}
}

// Send enqueues cmd or returns domain.ErrCommandQueueFull.
func (q *CommandQueue) Send(cmd domain.Command) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
		return domain.ErrCommandQueueFull
	}
}

// C returns the receive side of the queue.
func (q *CommandQueue) C() <-chan domain.Command {
	return q.ch
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int {
	return len(q.ch)
}

// Control signals understood by a running daemon. SIGTERM/SIGINT stop it.
const (
	SignalPause  = syscall.SIGUSR1
	SignalResume = syscall.SIGUSR2
)

func commandForSignal(sig os.Signal) (domain.Command, bool) {
	switch sig {
	case SignalPause:
		return domain.CommandPause, true
	case SignalResume:
		return domain.CommandResume, true
	}
	return "", false
}

// ForwardSignals turns pause/resume signals into queued commands until ctx
// is done. Commands that do not fit are dropped with a warning.
func ForwardSignals(ctx context.Context, q *CommandQueue, logger *zap.Logger) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, SignalPause, SignalResume)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				cmd, ok := commandForSignal(sig)
				if !ok {
					continue
				}
				if err := q.Send(cmd); err != nil {
					logger.Warn("dropped control command",
						zap.String("command", string(cmd)),
						zap.Error(err))
				}
			}
		}
	}()
}
