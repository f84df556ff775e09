//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/config"
	"github.com/eliteGoblin/focusd/flowmode/internal/daemon"
	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
	"github.com/eliteGoblin/focusd/flowmode/internal/infra"
	"github.com/eliteGoblin/focusd/flowmode/internal/usecase"
	"github.com/eliteGoblin/focusd/flowmode/test/fixtures"
)

const interval = 5 * time.Second

var (
	brave   = fixtures.Window("brave-browser", "Lo-fi beats - YouTube - Brave")
	ghostty = fixtures.Window("com.mitchellh.ghostty", "~/Projects/flowmode")
	xterm   = fixtures.Window("xterm", "bash")
)

// rig is one daemon wired the way `flowmode daemon` wires it, with a
// scripted desktop and a fake clock.
type rig struct {
	paths    *infra.Paths
	cfg      *config.Config
	clock    *clockwork.FakeClock
	store    *infra.SQLiteStore
	probe    *fixtures.ScriptedProbe
	queue    *daemon.CommandQueue
	tracker  *usecase.Tracker
	registry *infra.FileRegistry
	cancel   context.CancelFunc
	done     chan error
}

func openLedger(paths *infra.Paths, cfg *config.Config, clock clockwork.Clock, create bool) (*infra.SQLiteStore, error) {
	opts := []infra.StoreOption{infra.WithClock(clock)}
	if cfg.EncryptStore {
		key, err := infra.StoreKey(infra.NewFileKeyProvider(paths.DataDir), create)
		if err != nil {
			return nil, err
		}
		opts = append(opts, infra.WithEncryptionKey(key))
	}
	return infra.OpenStore(paths.StoreFile(), opts...)
}

func startRig(paths *infra.Paths, cfg *config.Config, clock *clockwork.FakeClock, steps ...fixtures.Step) *rig {
	store, err := openLedger(paths, cfg, clock, true)
	Expect(err).NotTo(HaveOccurred())

	r := &rig{
		paths:    paths,
		cfg:      cfg,
		clock:    clock,
		store:    store,
		probe:    fixtures.NewScriptedProbe(steps...),
		queue:    daemon.NewCommandQueue(cfg.CommandQueueSize),
		registry: infra.NewFileRegistry(paths.RegistryFile(), infra.NewProcessManager()),
		done:     make(chan error, 1),
	}
	r.tracker = usecase.NewTracker(usecase.TrackerConfig{
		Store:           store,
		Classifier:      cfg.Matcher(),
		IdleTimeoutSecs: cfg.IdleTimeoutSecs,
		Clock:           clock,
		Broadcaster:     usecase.NewStatusBroadcaster(),
		Logger:          zap.NewNop(),
	})
	w := daemon.NewWatcher(
		daemon.WatcherConfig{PollInterval: cfg.PollInterval()},
		r.tracker,
		usecase.NewSampler(r.probe, r.probe, cfg.IdleTimeoutSecs),
		r.queue,
		r.registry,
		domain.Daemon{PID: os.Getpid(), StartedAt: clock.Now(), DBPath: store.Path()},
		clock,
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.done <- w.Run(ctx) }()
	return r
}

// tick advances the fake clock by one poll interval.
func (r *rig) tick() { r.clock.Advance(interval) }

func (r *rig) activeApp() string {
	r.tick()
	s, err := r.store.GetActiveSession(context.Background())
	if err != nil || s == nil {
		return ""
	}
	return s.AppName
}

func (r *rig) stop() {
	r.cancel()
	Eventually(r.done).Should(Receive(BeNil()))
	Expect(r.store.Close()).To(Succeed())
}

var _ = Describe("Tracking daemon", func() {
	var (
		paths *infra.Paths
		cfg   *config.Config
		clock *clockwork.FakeClock
	)

	BeforeEach(func() {
		paths = infra.PathsAt(GinkgoT().TempDir())
		cfg = config.Default()
		clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local))
	})

	Describe("a working session", func() {
		It("records each focused app once and summarises the day", func() {
			r := startRig(paths, cfg, clock, fixtures.Active(brave))
			Eventually(r.activeApp).Should(Equal("Brave"))

			for i := 0; i < 60; i++ {
				r.tick()
			}
			r.probe.Replace(fixtures.Active(ghostty))
			Eventually(r.activeApp).Should(Equal("Ghostty"))

			r.probe.Replace(fixtures.Active(xterm))
			Eventually(r.activeApp).Should(BeEmpty())
			r.stop()

			reader, err := openLedger(paths, cfg, clock, false)
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()

			ctx := context.Background()
			summary, err := reader.DaySummary(ctx, clock.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(HaveLen(2))
			Expect(summary[0].AppName).To(Equal("Brave"))
			Expect(summary[0].TotalSecs).To(BeNumerically(">=", 300))

			detailed, err := reader.Detailed(ctx, clock.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(detailed).NotTo(BeEmpty())
			Expect(detailed[0].WindowTitle).To(Equal(brave.WindowTitle))

			week, err := reader.WeekSummary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(week).To(HaveLen(7))
			Expect(week[6].TotalSecs).To(BeNumerically(">", 0))
		})
	})

	Describe("pause and idle", func() {
		It("keeps no session open while paused or idle", func() {
			r := startRig(paths, cfg, clock, fixtures.Active(brave))
			Eventually(r.activeApp).Should(Equal("Brave"))

			Expect(r.queue.Send(domain.CommandPause)).To(Succeed())
			Eventually(r.activeApp).Should(BeEmpty())
			Expect(r.tracker.Paused()).To(BeTrue())

			Expect(r.queue.Send(domain.CommandResume)).To(Succeed())
			Eventually(r.activeApp).Should(Equal("Brave"))

			r.probe.Replace(fixtures.Idle(cfg.IdleTimeoutSecs + 1))
			Eventually(r.activeApp).Should(BeEmpty())
			Expect(r.tracker.Status().Idle).To(BeTrue())

			r.probe.Replace(fixtures.Active(ghostty))
			Eventually(r.activeApp).Should(Equal("Ghostty"))
			r.stop()
		})
	})

	Describe("crash recovery", func() {
		It("closes sessions left open by a previous run", func() {
			crashed, err := openLedger(paths, cfg, clock, true)
			Expect(err).NotTo(HaveOccurred())
			_, err = crashed.StartSession(context.Background(), "Brave", "Browser", "left open")
			Expect(err).NotTo(HaveOccurred())
			Expect(crashed.Close()).To(Succeed())

			clock.Advance(10 * time.Minute)
			r := startRig(paths, cfg, clock, fixtures.Idle(cfg.IdleTimeoutSecs+1))
			Eventually(r.activeApp).Should(BeEmpty())
			r.stop()

			reader, err := openLedger(paths, cfg, clock, false)
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()
			total, err := reader.TodayTotalSecs(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically(">=", 600))
		})
	})

	Describe("encrypted ledger", func() {
		BeforeEach(func() {
			cfg.EncryptStore = true
		})

		It("is readable with the daemon's key and refuses readers without one", func() {
			r := startRig(paths, cfg, clock, fixtures.Active(ghostty))
			Eventually(r.activeApp).Should(Equal("Ghostty"))
			r.stop()

			reader, err := openLedger(paths, cfg, clock, false)
			Expect(err).NotTo(HaveOccurred())
			summary, err := reader.DaySummary(context.Background(), clock.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(HaveLen(1))
			Expect(reader.Close()).To(Succeed())

			_, err = infra.OpenStore(paths.StoreFile())
			Expect(err).To(HaveOccurred())

			other := infra.PathsAt(GinkgoT().TempDir())
			_, err = infra.StoreKey(infra.NewFileKeyProvider(other.DataDir), false)
			Expect(err).To(MatchError(infra.ErrStoreKeyMissing))
		})
	})

	Describe("concurrent readers", func() {
		It("can aggregate while the daemon writes", func() {
			r := startRig(paths, cfg, clock, fixtures.Active(brave))
			Eventually(r.activeApp).Should(Equal("Brave"))

			reader, err := openLedger(paths, cfg, clock, false)
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()

			for i := 0; i < 20; i++ {
				if i%2 == 0 {
					r.probe.Replace(fixtures.Active(ghostty))
				} else {
					r.probe.Replace(fixtures.Active(brave))
				}
				r.tick()
				_, err := reader.DaySummary(context.Background(), clock.Now())
				Expect(err).NotTo(HaveOccurred())
			}
			r.stop()
		})
	})
})
