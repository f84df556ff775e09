// Package report renders activity aggregates for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
	"github.com/eliteGoblin/focusd/flowmode/internal/titlectx"
)

const (
	barWidth      = 20
	nameWidth     = 15
	durationWidth = 8
	titleWidth    = 50
	rule          = "════════════════════════════════════════"
)

// Renderer writes reports to w. Styles are dropped automatically when w
// is not a color terminal.
type Renderer struct {
	w      io.Writer
	title  lipgloss.Style
	accent lipgloss.Style
	dim    lipgloss.Style
}

// New creates a renderer for w.
func New(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		accent: r.NewStyle().Foreground(lipgloss.Color("39")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// FormatDuration renders seconds as "Xh Ym", or "Ym" under an hour.
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Renderer) header(title string) {
	r.printf("\n  %s\n  %s\n\n", r.title.Render("FlowMode - "+title), rule)
}

// barLen scales value against peak into a number of bar cells.
func barLen(value, peak int64) int {
	if peak <= 0 || value <= 0 {
		return 0
	}
	return int(float64(value) / float64(peak) * barWidth)
}

func bar(value, peak int64) string {
	return strings.Repeat("█", barLen(value, peak))
}

// Stats prints today's per-app totals with a share of the day and a bar.
func (r *Renderer) Stats(summaries []domain.AppSummary, totalSecs int64) {
	r.header("Today's Activity")
	r.printf("  Total tracked: %s\n\n", r.accent.Render(FormatDuration(totalSecs)))

	if len(summaries) == 0 {
		r.printf("  No activity recorded today.\n\n")
		return
	}

	var peak int64
	for _, s := range summaries {
		if s.TotalSecs > peak {
			peak = s.TotalSecs
		}
	}
	for _, s := range summaries {
		pct := 0
		if totalSecs > 0 {
			pct = int(float64(s.TotalSecs) / float64(totalSecs) * 100)
		}
		r.printf("  %s %*s %3d%% %s\n",
			padRight(s.AppName, nameWidth),
			durationWidth, FormatDuration(s.TotalSecs),
			pct,
			r.accent.Render(bar(s.TotalSecs, peak)))
	}
	r.printf("\n")
}

// Detailed prints (app, title) groups with the parsed title context.
func (r *Renderer) Detailed(rows []domain.DetailedActivity, totalSecs int64) {
	r.header("Detailed Activity")
	r.printf("  Total tracked: %s\n\n", r.accent.Render(FormatDuration(totalSecs)))

	if len(rows) == 0 {
		r.printf("  No activity recorded today.\n\n")
		return
	}

	current := ""
	for i, row := range rows {
		if row.AppName != current {
			if i > 0 {
				r.printf("\n")
			}
			r.printf("  %s %s\n", r.title.Render(row.AppName), r.dim.Render("─────────────────────────────────"))
			current = row.AppName
		}
		parsed := titlectx.Parse(row.AppName, row.Category, row.WindowTitle)
		r.printf("    %*s  %s %s\n",
			durationWidth, FormatDuration(row.TotalSecs),
			padRight(runewidth.Truncate(parsed.Display, titleWidth, "…"), titleWidth),
			r.dim.Render("["+parsed.ContextType+"]"))
	}
	r.printf("\n")
}

// Hourly prints one line per hour with data; █ is active time, ░ passive.
func (r *Renderer) Hourly(hours []domain.HourlyActivityDetailed) {
	r.header("Hourly Breakdown")
	if len(hours) == 0 {
		r.printf("  No activity recorded today.\n\n")
		return
	}

	var peak int64
	for _, h := range hours {
		if t := h.ActiveSecs + h.PassiveSecs; t > peak {
			peak = t
		}
	}
	for _, h := range hours {
		total := h.ActiveSecs + h.PassiveSecs
		activeCells := barLen(h.ActiveSecs, peak)
		passiveCells := max(barLen(total, peak)-activeCells, 0)
		active := strings.Repeat("█", activeCells)
		passive := strings.Repeat("░", passiveCells)
		r.printf("  %02d:00 %*s %s%s\n",
			h.Hour, durationWidth, FormatDuration(total),
			r.accent.Render(active), r.dim.Render(passive))
	}
	r.printf("\n")
}

// Days prints per-day totals in the order given.
func (r *Renderer) Days(title string, days []domain.DayTotal) {
	r.header(title)
	if len(days) == 0 {
		r.printf("  No activity recorded.\n\n")
		return
	}

	var peak, sum int64
	for _, d := range days {
		sum += d.TotalSecs
		if d.TotalSecs > peak {
			peak = d.TotalSecs
		}
	}
	for _, d := range days {
		weekday := ""
		if t, err := time.ParseInLocation("2006-01-02", d.Date, time.Local); err == nil {
			weekday = t.Format("Mon")
		}
		r.printf("  %s %s %*s %s\n",
			d.Date, weekday,
			durationWidth, FormatDuration(d.TotalSecs),
			r.accent.Render(bar(d.TotalSecs, peak)))
	}
	r.printf("\n  Total: %s\n\n", r.accent.Render(FormatDuration(sum)))
}

// Apps prints the tracked application rules in match order.
func (r *Renderer) Apps(apps []domain.TrackedApp, configPath string) {
	r.header("Tracked Applications")
	if len(apps) == 0 {
		r.printf("  No applications configured.\n")
	}
	for _, a := range apps {
		r.printf("  %s [%s] matches %s: %s\n",
			padRight(a.Name, nameWidth),
			padRight(a.Category, 12),
			a.MatchType, a.Pattern)
	}
	r.printf("\n  %s\n\n", r.dim.Render("Edit "+configPath+" to customize"))
}

// StatusView is what `flowmode status` knows about the daemon.
type StatusView struct {
	Running   bool
	PID       int
	Status    *domain.Status          // last status published by the daemon, if any
	Active    *domain.ActivitySession // open row in the store, if any
	TodaySecs int64
	Now       time.Time
}

// Status prints the daemon state and the current session.
func (r *Renderer) Status(v StatusView) {
	if !v.Running {
		r.printf("Daemon:   not running\n")
	} else {
		state := "tracking"
		if v.Status != nil {
			switch {
			case v.Status.Paused:
				state = "paused"
			case v.Status.Idle:
				state = fmt.Sprintf("idle (%s)", FormatDuration(int64(v.Status.IdleSecs)))
			}
		}
		r.printf("Daemon:   running (pid %d, %s)\n", v.PID, state)
	}

	if v.Active != nil {
		elapsed := int64(v.Now.Sub(v.Active.StartedAt).Seconds())
		r.printf("Current:  %s %s for %s\n",
			r.accent.Render(v.Active.AppName),
			r.dim.Render("("+v.Active.Category+")"),
			FormatDuration(elapsed))
		parsed := titlectx.Parse(v.Active.AppName, v.Active.Category, v.Active.WindowTitle)
		if parsed.Display != "" {
			r.printf("Context:  %s\n", parsed.Display)
		}
	} else {
		r.printf("Current:  not tracking\n")
	}
	r.printf("Today:    %s\n", FormatDuration(v.TodaySecs))
}

// padRight pads s to the given display width.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
