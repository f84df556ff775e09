package infra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// DetailedNoiseFloorSecs drops (app, title) groups shorter than this from
// the detailed listing.
const DetailedNoiseFloorSecs = 5

const weekDays = 7

// --- domain.ActivityReader implementation ---

// GetActiveSession returns the most recent open row, or nil.
func (s *SQLiteStore) GetActiveSession(ctx context.Context) (*domain.ActivitySession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_name, category, window_title, started_at, ended_at,
		       duration_secs, active_secs, passive_secs
		FROM activity
		WHERE ended_at IS NULL
		ORDER BY started_at DESC, id DESC
		LIMIT 1`)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get active session", Err: err}
	}
	return session, nil
}

// DaySummary groups the local day containing day by app and category,
// largest total first.
func (s *SQLiteStore) DaySummary(ctx context.Context, day time.Time) ([]domain.AppSummary, error) {
	from, to := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_name, category,
		       SUM(duration_secs) AS total, SUM(active_secs), SUM(passive_secs)
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY app_name, category
		ORDER BY total DESC, app_name`,
		from, to,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "day summary", Err: err}
	}
	defer rows.Close()

	var out []domain.AppSummary
	for rows.Next() {
		var a domain.AppSummary
		if err := rows.Scan(&a.AppName, &a.Category, &a.TotalSecs, &a.ActiveSecs, &a.PassiveSecs); err != nil {
			return nil, &domain.StoreError{Op: "day summary", Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "day summary", Err: err}
	}
	return out, nil
}

// TodayTotalSecs sums every duration recorded today. Open sessions count 0.
func (s *SQLiteStore) TodayTotalSecs(ctx context.Context) (int64, error) {
	from, to := dayBounds(s.clock.Now())
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration_secs), 0)
		FROM activity
		WHERE started_at >= ? AND started_at < ?`,
		from, to,
	).Scan(&total)
	if err != nil {
		return 0, &domain.StoreError{Op: "today total", Err: err}
	}
	return total, nil
}

// HourlyBreakdown buckets a local day by the hour each session started.
// Hours without activity are omitted.
func (s *SQLiteStore) HourlyBreakdown(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error) {
	from, to := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(substr(started_at, 12, 2) AS INTEGER) AS hour, SUM(duration_secs)
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY hour
		ORDER BY hour`,
		from, to,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "hourly breakdown", Err: err}
	}
	defer rows.Close()

	var out []domain.HourlyActivity
	for rows.Next() {
		var h domain.HourlyActivity
		if err := rows.Scan(&h.Hour, &h.TotalSecs); err != nil {
			return nil, &domain.StoreError{Op: "hourly breakdown", Err: err}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "hourly breakdown", Err: err}
	}
	return out, nil
}

// HourlyBreakdownDetailed is HourlyBreakdown with the active/passive split.
func (s *SQLiteStore) HourlyBreakdownDetailed(ctx context.Context, day time.Time) ([]domain.HourlyActivityDetailed, error) {
	from, to := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(substr(started_at, 12, 2) AS INTEGER) AS hour,
		       SUM(active_secs), SUM(passive_secs)
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY hour
		ORDER BY hour`,
		from, to,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "hourly breakdown detailed", Err: err}
	}
	defer rows.Close()

	var out []domain.HourlyActivityDetailed
	for rows.Next() {
		var h domain.HourlyActivityDetailed
		if err := rows.Scan(&h.Hour, &h.ActiveSecs, &h.PassiveSecs); err != nil {
			return nil, &domain.StoreError{Op: "hourly breakdown detailed", Err: err}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "hourly breakdown detailed", Err: err}
	}
	return out, nil
}

// WeekSummary returns exactly seven entries, oldest first, for today and the
// six days before. Days without activity have a zero total.
func (s *SQLiteStore) WeekSummary(ctx context.Context) ([]domain.DayTotal, error) {
	today := startOfDay(s.clock.Now())
	totals, err := s.dayTotals(ctx, today.AddDate(0, 0, -(weekDays-1)), today.AddDate(0, 0, 1))
	if err != nil {
		return nil, &domain.StoreError{Op: "week summary", Err: err}
	}

	out := make([]domain.DayTotal, 0, weekDays)
	for i := weekDays - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(time.DateOnly)
		out = append(out, domain.DayTotal{Date: date, TotalSecs: totals[date]})
	}
	return out, nil
}

// History returns per-day totals for the last days days (today included),
// newest first. Days without activity are omitted.
func (s *SQLiteStore) History(ctx context.Context, days int) ([]domain.DayTotal, error) {
	if days <= 0 {
		return nil, nil
	}
	today := startOfDay(s.clock.Now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(started_at, 1, 10) AS day, SUM(duration_secs)
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY day
		ORDER BY day DESC`,
		formatTimestamp(today.AddDate(0, 0, -(days-1))), formatTimestamp(today.AddDate(0, 0, 1)),
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "history", Err: err}
	}
	defer rows.Close()

	var out []domain.DayTotal
	for rows.Next() {
		var d domain.DayTotal
		if err := rows.Scan(&d.Date, &d.TotalSecs); err != nil {
			return nil, &domain.StoreError{Op: "history", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "history", Err: err}
	}
	return out, nil
}

// Detailed groups a local day by (app, window title). Groups under
// DetailedNoiseFloorSecs are dropped.
func (s *SQLiteStore) Detailed(ctx context.Context, day time.Time) ([]domain.DetailedActivity, error) {
	from, to := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_name, MAX(category), window_title, SUM(duration_secs) AS total
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY app_name, window_title
		HAVING total >= ?
		ORDER BY app_name, total DESC`,
		from, to, DetailedNoiseFloorSecs,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "detailed", Err: err}
	}
	defer rows.Close()

	var out []domain.DetailedActivity
	for rows.Next() {
		var d domain.DetailedActivity
		if err := rows.Scan(&d.AppName, &d.Category, &d.WindowTitle, &d.TotalSecs); err != nil {
			return nil, &domain.StoreError{Op: "detailed", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "detailed", Err: err}
	}
	return out, nil
}

func (s *SQLiteStore) dayTotals(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(started_at, 1, 10) AS day, SUM(duration_secs)
		FROM activity
		WHERE started_at >= ? AND started_at < ?
		GROUP BY day`,
		formatTimestamp(from), formatTimestamp(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var day string
		var total int64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		totals[day] = total
	}
	return totals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.ActivitySession, error) {
	var (
		s          domain.ActivitySession
		startedRaw string
		endedRaw   sql.NullString
	)
	err := row.Scan(&s.ID, &s.AppName, &s.Category, &s.WindowTitle, &startedRaw, &endedRaw,
		&s.DurationSecs, &s.ActiveSecs, &s.PassiveSecs)
	if err != nil {
		return nil, err
	}

	if s.StartedAt, err = parseTimestamp(startedRaw); err != nil {
		return nil, err
	}
	if endedRaw.Valid {
		ended, err := parseTimestamp(endedRaw.String)
		if err != nil {
			return nil, err
		}
		s.EndedAt = &ended
	}
	return &s, nil
}
