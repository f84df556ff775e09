package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/config"
	"github.com/eliteGoblin/focusd/flowmode/internal/daemon"
	"github.com/eliteGoblin/focusd/flowmode/internal/infra"
	"github.com/eliteGoblin/focusd/flowmode/internal/report"
)

const defaultHistoryDays = 7

// withStore opens the ledger read side for one command.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error) error {
	store, err := a.openStore(false, a.logger)
	if err != nil {
		if errors.Is(err, infra.ErrStoreKeyMissing) {
			return fmt.Errorf("no encrypted ledger yet; start the daemon first: %w", err)
		}
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, store, report.New(cmd.OutOrStdout()))
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				pm := infra.NewProcessManager()
				registry := infra.NewFileRegistry(a.paths.RegistryFile(), pm)

				view := report.StatusView{Now: time.Now()}
				if d, err := daemon.Running(registry, pm); err == nil {
					view.Running = true
					view.PID = d.PID
					st, err := infra.NewStatusFile(a.paths.StatusFile()).Read()
					if err != nil {
						a.logger.Warn("failed to read status file", zap.Error(err))
					}
					view.Status = st
				}

				active, err := store.GetActiveSession(ctx)
				if err != nil {
					return err
				}
				view.Active = active

				if view.TodaySecs, err = store.TodayTotalSecs(ctx); err != nil {
					return err
				}
				if view.Running && active != nil {
					view.TodaySecs += openSecsToday(active.StartedAt, view.Now)
				}
				r.Status(view)
				return nil
			})
		},
	}
}

// openSecsToday is the part of an open session that falls on now's local day.
func openSecsToday(startedAt, now time.Time) int64 {
	y, m, d := now.Date()
	if midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location()); startedAt.Before(midnight) {
		startedAt = midnight
	}
	if !now.After(startedAt) {
		return 0
	}
	return int64(now.Sub(startedAt) / time.Second)
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's per-application totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				summaries, err := store.DaySummary(ctx, time.Now())
				if err != nil {
					return err
				}
				total, err := store.TodayTotalSecs(ctx)
				if err != nil {
					return err
				}
				r.Stats(summaries, total)
				return nil
			})
		},
	}
}

func (a *app) detailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detailed",
		Short: "Show today's activity per window title",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				rows, err := store.Detailed(ctx, time.Now())
				if err != nil {
					return err
				}
				total, err := store.TodayTotalSecs(ctx)
				if err != nil {
					return err
				}
				r.Detailed(rows, total)
				return nil
			})
		},
	}
}

func (a *app) hourlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hourly",
		Short: "Show today's activity by hour",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				hours, err := store.HourlyBreakdownDetailed(ctx, time.Now())
				if err != nil {
					return err
				}
				r.Hourly(hours)
				return nil
			})
		},
	}
}

func (a *app) weekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show totals for the last seven days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				days, err := store.WeekSummary(ctx)
				if err != nil {
					return err
				}
				r.Days("This Week", days)
				return nil
			})
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show daily totals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				totals, err := store.History(ctx, days)
				if err != nil {
					return err
				}
				r.Days(fmt.Sprintf("Last %d Days", days), totals)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", defaultHistoryDays, "Number of days to show")
	return cmd
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete everything recorded today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *infra.SQLiteStore, r *report.Renderer) error {
				n, err := store.ResetToday(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Today's activity data has been reset (%d sessions removed).\n", n)
				fmt.Fprintln(out, "Start fresh tracking now!")
				return nil
			})
		},
	}
}

func (a *app) appsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List tracked applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			report.New(cmd.OutOrStdout()).Apps(a.cfg.Matcher().Apps(), a.paths.ConfigFile())
			return nil
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.paths.ConfigFile()
			out := cmd.OutOrStdout()
			if err := config.Save(path, config.Default(), force); err != nil {
				if errors.Is(err, os.ErrExist) {
					fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite).\n", path)
					return nil
				}
				return err
			}
			fmt.Fprintf(out, "Created config at: %s\n", path)
			fmt.Fprintln(out, "Edit it to customize tracked apps!")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
