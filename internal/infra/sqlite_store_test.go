package infra

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.Local)

// newTestStore opens a store in a temp directory driven by a fake clock.
func newTestStore(t *testing.T, opts ...StoreOption) (*SQLiteStore, *clockwork.FakeClock) {
	t.Helper()
	return newTestStoreAt(t, testNow, opts...)
}

func newTestStoreAt(t *testing.T, start time.Time, opts ...StoreOption) (*SQLiteStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	path := filepath.Join(t.TempDir(), StoreFileName)

	store, err := OpenStore(path, append([]StoreOption{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

// recordSession opens a session, advances the clock by d and closes it.
func recordSession(t *testing.T, s *SQLiteStore, clock *clockwork.FakeClock, app, category, title string, d time.Duration) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.StartSession(ctx, app, category, title)
	require.NoError(t, err)
	clock.Advance(d)
	require.NoError(t, s.EndSession(ctx, id))
	return id
}

func countOpen(t *testing.T, s *SQLiteStore) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM activity WHERE ended_at IS NULL`).Scan(&n))
	return n
}

func getSession(t *testing.T, s *SQLiteStore, id int64) *domain.ActivitySession {
	t.Helper()
	row := s.db.QueryRow(`
		SELECT id, app_name, category, window_title, started_at, ended_at,
		       duration_secs, active_secs, passive_secs
		FROM activity WHERE id = ?`, id)
	session, err := scanSession(row)
	require.NoError(t, err)
	return session
}

func TestSQLiteStore_StartAndEndSession(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	id, err := s.StartSession(ctx, "Brave", "Browser", "Example — Brave")
	require.NoError(t, err)
	assert.Positive(t, id)

	active, err := s.GetActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, id, active.ID)
	assert.True(t, active.IsOpen())
	assert.True(t, testNow.Equal(active.StartedAt))

	clock.Advance(90 * time.Second)
	require.NoError(t, s.EndSession(ctx, id))

	got := getSession(t, s, id)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, int64(90), got.DurationSecs)
	assert.Equal(t, int64(90), got.ActiveSecs)
	assert.Equal(t, int64(0), got.PassiveSecs)
	assert.True(t, testNow.Add(90*time.Second).Equal(*got.EndedAt))

	active, err = s.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSQLiteStore_EndSessionClampsBackwardsClock(t *testing.T) {
	ctx := context.Background()
	first, _ := newTestStore(t)
	id, err := first.StartSession(ctx, "Brave", "Browser", "x")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopen with a clock an hour behind the recorded start.
	s, err := OpenStore(first.Path(), WithClock(clockwork.NewFakeClockAt(testNow.Add(-time.Hour))))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EndSession(ctx, id))

	got := getSession(t, s, id)
	assert.Equal(t, int64(0), got.DurationSecs)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.StartedAt.Equal(*got.EndedAt))
}

func TestSQLiteStore_CloseOpenSessionsClampsBackwardsClock(t *testing.T) {
	ctx := context.Background()
	first, _ := newTestStore(t)
	id, err := first.StartSession(ctx, "Brave", "Browser", "x")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	s, err := OpenStore(first.Path(), WithClock(clockwork.NewFakeClockAt(testNow.Add(-time.Hour))))
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CloseOpenSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := getSession(t, s, id)
	assert.Equal(t, int64(0), got.DurationSecs)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.StartedAt.Equal(*got.EndedAt))
}

func TestSQLiteStore_EndSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	id := recordSession(t, s, clock, "Brave", "Browser", "x", 10*time.Second)
	clock.Advance(time.Hour)
	require.NoError(t, s.EndSession(ctx, id))
	assert.Equal(t, int64(10), getSession(t, s, id).DurationSecs)

	assert.NoError(t, s.EndSession(ctx, 9999), "unknown id is a no-op")
}

func TestSQLiteStore_UpdateActivityTime(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	id, err := s.StartSession(ctx, "VS Code", "Development", "main.go")
	require.NoError(t, err)
	require.NoError(t, s.UpdateActivityTime(ctx, id, 20, 5))
	require.NoError(t, s.UpdateActivityTime(ctx, id, 10, 5))

	got := getSession(t, s, id)
	assert.Equal(t, int64(30), got.ActiveSecs)
	assert.Equal(t, int64(10), got.PassiveSecs)

	err = s.UpdateActivityTime(ctx, id, -1, 0)
	assert.True(t, domain.IsStoreError(err))

	// Closing tops active up so the split covers the full duration.
	clock.Advance(60 * time.Second)
	require.NoError(t, s.EndSession(ctx, id))
	got = getSession(t, s, id)
	assert.Equal(t, int64(60), got.DurationSecs)
	assert.Equal(t, int64(50), got.ActiveSecs)
	assert.Equal(t, int64(10), got.PassiveSecs)
}

func TestSQLiteStore_CloseOpenSessions(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	closedID := recordSession(t, s, clock, "Brave", "Browser", "a", 30*time.Second)

	// Simulate an unclean shutdown that left two rows open.
	openA, err := s.StartSession(ctx, "Ghostty", "Terminal", "~/a")
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	openB, err := s.StartSession(ctx, "Obsidian", "Notes", "daily")
	require.NoError(t, err)
	require.Equal(t, 2, countOpen(t, s))

	clock.Advance(2 * time.Hour)
	n, err := s.CloseOpenSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, countOpen(t, s))

	a := getSession(t, s, openA)
	assert.Equal(t, int64(2*3600+10), a.DurationSecs)
	assert.Equal(t, a.DurationSecs, a.ActiveSecs)
	b := getSession(t, s, openB)
	assert.Equal(t, int64(2*3600), b.DurationSecs)

	assert.Equal(t, int64(30), getSession(t, s, closedID).DurationSecs, "closed rows untouched")

	n, err = s.CloseOpenSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_ClosePathsAgreeOnSubSecondStarts(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStoreAt(t, testNow.Add(400*time.Millisecond))

	ended, err := s.StartSession(ctx, "Brave", "Browser", "a")
	require.NoError(t, err)
	swept, err := s.StartSession(ctx, "Ghostty", "Terminal", "b")
	require.NoError(t, err)

	clock.Advance(9*time.Minute + 59*time.Second + 900*time.Millisecond)
	require.NoError(t, s.EndSession(ctx, ended))
	n, err := s.CloseOpenSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, int64(599), getSession(t, s, ended).DurationSecs)
	assert.Equal(t, int64(599), getSession(t, s, swept).DurationSecs)
}

func TestSQLiteStore_ResetToday(t *testing.T) {
	ctx := context.Background()
	midnight := time.Date(2026, 10, 18, 0, 0, 0, 0, time.Local)
	s, clock := newTestStoreAt(t, midnight.Add(-10*time.Second))

	// Started yesterday, ended today: belongs to yesterday.
	yesterday := recordSession(t, s, clock, "Brave", "Browser", "late", 30*time.Second)

	early := recordSession(t, s, clock, "Brave", "Browser", "early", 5*time.Second)
	clock.Advance(10 * time.Hour)
	morning := recordSession(t, s, clock, "Ghostty", "Terminal", "work", time.Minute)

	// A row written by another handle with tomorrow's clock stays too.
	tomorrowClock := clockwork.NewFakeClockAt(midnight.AddDate(0, 0, 1))
	other, err := OpenStore(s.Path(), WithClock(tomorrowClock))
	require.NoError(t, err)
	tomorrow := recordSession(t, other, tomorrowClock, "Ghostty", "Terminal", "next", time.Minute)
	require.NoError(t, other.Close())

	n, err := s.ResetToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var ids []int64
	rows, err := s.db.Query(`SELECT id FROM activity ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{yesterday, tomorrow}, ids)
	assert.NotContains(t, ids, early)
	assert.NotContains(t, ids, morning)
}

func TestSQLiteStore_DaySummaryAndTodayTotal(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	recordSession(t, s, clock, "Brave", "Browser", "a", 10*time.Minute)
	recordSession(t, s, clock, "Ghostty", "Terminal", "b", 30*time.Minute)
	recordSession(t, s, clock, "Brave", "Browser", "c", 5*time.Minute)

	summary, err := s.DaySummary(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Ghostty", summary[0].AppName)
	assert.Equal(t, int64(1800), summary[0].TotalSecs)
	assert.Equal(t, "Brave", summary[1].AppName)
	assert.Equal(t, int64(900), summary[1].TotalSecs)
	assert.Equal(t, int64(900), summary[1].ActiveSecs)

	total, err := s.TodayTotalSecs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2700), total)

	empty, err := s.DaySummary(ctx, clock.Now().AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_HourlyBreakdown(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	recordSession(t, s, clock, "Brave", "Browser", "a", 20*time.Minute) // 10:00
	clock.Advance(time.Hour)
	recordSession(t, s, clock, "Brave", "Browser", "b", 5*time.Minute) // 11:20
	recordSession(t, s, clock, "Brave", "Browser", "c", 5*time.Minute) // 11:25

	hourly, err := s.HourlyBreakdown(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []domain.HourlyActivity{
		{Hour: 10, TotalSecs: 1200},
		{Hour: 11, TotalSecs: 600},
	}, hourly)

	detailed, err := s.HourlyBreakdownDetailed(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []domain.HourlyActivityDetailed{
		{Hour: 10, ActiveSecs: 1200},
		{Hour: 11, ActiveSecs: 600},
	}, detailed)
}

func TestSQLiteStore_WeekSummaryAndHistory(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStoreAt(t, testNow.AddDate(0, 0, -8))

	// Sessions 8, 6, 2 and 0 days ago.
	for _, daysAgo := range []int{8, 6, 2, 0} {
		clock.Advance(testNow.AddDate(0, 0, -daysAgo).Sub(clock.Now()))
		recordSession(t, s, clock, "Brave", "Browser", "x", time.Duration(daysAgo+1)*time.Minute)
	}
	clock.Advance(testNow.Add(time.Hour).Sub(clock.Now()))

	week, err := s.WeekSummary(ctx)
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, testNow.AddDate(0, 0, -6).Format(time.DateOnly), week[0].Date)
	assert.Equal(t, int64(7*60), week[0].TotalSecs)
	assert.Equal(t, int64(3*60), week[4].TotalSecs)
	assert.Equal(t, int64(0), week[5].TotalSecs)
	assert.Equal(t, testNow.Format(time.DateOnly), week[6].Date)
	assert.Equal(t, int64(60), week[6].TotalSecs)

	history, err := s.History(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.DayTotal{
		{Date: testNow.Format(time.DateOnly), TotalSecs: 60},
		{Date: testNow.AddDate(0, 0, -2).Format(time.DateOnly), TotalSecs: 180},
	}, history)

	history, err = s.History(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	history, err = s.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLiteStore_DetailedNoiseFloor(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	recordSession(t, s, clock, "Brave", "Browser", "long read", 2*time.Minute)
	recordSession(t, s, clock, "Brave", "Browser", "blip", 2*time.Second)
	recordSession(t, s, clock, "Brave", "Browser", "two blips", 3*time.Second)
	recordSession(t, s, clock, "Brave", "Browser", "two blips", 3*time.Second)
	recordSession(t, s, clock, "Ghostty", "Terminal", "~/src", 4*time.Second)

	detailed, err := s.Detailed(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, detailed, 2)
	assert.Equal(t, domain.DetailedActivity{AppName: "Brave", Category: "Browser", WindowTitle: "long read", TotalSecs: 120}, detailed[0])
	assert.Equal(t, domain.DetailedActivity{AppName: "Brave", Category: "Browser", WindowTitle: "two blips", TotalSecs: 6}, detailed[1])
	for _, d := range detailed {
		assert.GreaterOrEqual(t, d.TotalSecs, int64(DetailedNoiseFloorSecs))
	}
}

func TestSQLiteStore_MigratesLegacySchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), StoreFileName)

	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name TEXT NOT NULL,
			category TEXT NOT NULL,
			window_title TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			duration_secs INTEGER NOT NULL DEFAULT 0
		);
		INSERT INTO activity (app_name, category, window_title, started_at, ended_at, duration_secs)
		VALUES ('Brave', 'Browser', 'old', '2026-10-17T09:00:00.000000000+00:00', '2026-10-17T09:01:00.000000000+00:00', 60),
		       ('Brave', 'Browser', 'zero', '2026-10-17T10:00:00.000000000+00:00', '2026-10-17T10:00:00.000000000+00:00', 0);`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := OpenStore(path, WithClock(clockwork.NewFakeClockAt(testNow)))
	require.NoError(t, err)

	assert.Equal(t, int64(60), getSession(t, s, 1).ActiveSecs)
	assert.Equal(t, int64(0), getSession(t, s, 1).PassiveSecs)
	assert.Equal(t, int64(0), getSession(t, s, 2).ActiveSecs)

	// New sessions work on the migrated table and reopening is a no-op.
	_, err = s.StartSession(ctx, "Ghostty", "Terminal", "~")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, int64(60), getSession(t, s, 1).ActiveSecs)
}

func TestSQLiteStore_WALAllowsConcurrentReader(t *testing.T) {
	ctx := context.Background()
	writer, clock := newTestStore(t)

	var mode string
	require.NoError(t, writer.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	recordSession(t, writer, clock, "Brave", "Browser", "a", time.Minute)
	_, err := writer.StartSession(ctx, "Ghostty", "Terminal", "b")
	require.NoError(t, err)

	reader, err := OpenStore(writer.Path(), WithClock(clock))
	require.NoError(t, err)
	defer reader.Close()

	total, err := reader.TodayTotalSecs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	active, err := reader.GetActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Ghostty", active.AppName)
}

func TestSQLiteStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	key, err := GenerateKey()
	require.NoError(t, err)

	s, clock := newTestStore(t, WithEncryptionKey(key))
	recordSession(t, s, clock, "Brave", "Browser", "secret", time.Minute)
	path := s.Path()
	require.NoError(t, s.Close())

	reopened, err := OpenStore(path, WithEncryptionKey(key), WithClock(clock))
	require.NoError(t, err)
	total, err := reopened.TodayTotalSecs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)
	require.NoError(t, reopened.Close())

	wrongKey, err := GenerateKey()
	require.NoError(t, err)
	_, err = OpenStore(path, WithEncryptionKey(wrongKey))
	require.Error(t, err)
	var storeErr *domain.StoreError
	assert.True(t, errors.As(err, &storeErr))
}
