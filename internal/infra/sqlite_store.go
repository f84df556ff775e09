package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	// StoreFileName is the ledger database inside the data directory.
	StoreFileName = "activity.db"

	// Fixed-width RFC 3339 so that string order equals time order within
	// one UTC offset.
	timestampLayout = "2006-01-02T15:04:05.000000000-07:00"

	busyTimeoutMillis = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS activity (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	app_name      TEXT NOT NULL,
	category      TEXT NOT NULL,
	window_title  TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	duration_secs INTEGER NOT NULL DEFAULT 0,
	active_secs   INTEGER NOT NULL DEFAULT 0,
	passive_secs  INTEGER NOT NULL DEFAULT 0
);
`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_activity_started ON activity(started_at);
CREATE INDEX IF NOT EXISTS idx_activity_app ON activity(app_name);
`

// SQLiteStore implements domain.ActivityStore on a single SQLite file in
// WAL mode. Optionally encrypted with SQLCipher.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	clock  clockwork.Clock
	logger *zap.Logger
}

type storeOptions struct {
	key    []byte
	clock  clockwork.Clock
	logger *zap.Logger
}

// StoreOption customizes OpenStore.
type StoreOption func(*storeOptions)

// WithEncryptionKey opens the database with a SQLCipher key.
func WithEncryptionKey(key []byte) StoreOption {
	return func(o *storeOptions) { o.key = key }
}

// WithClock sets the clock used to stamp sessions and compute day windows.
func WithClock(c clockwork.Clock) StoreOption {
	return func(o *storeOptions) { o.clock = c }
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// OpenStore opens (or creates) the ledger at path, applies the schema and
// runs pending migrations.
func OpenStore(path string, opts ...StoreOption) (*SQLiteStore, error) {
	o := storeOptions{clock: clockwork.NewRealClock(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("create data directory: %w", err)}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMillis)
	if len(o.key) > 0 {
		dsn += fmt.Sprintf("&_pragma_key=x'%s'&_pragma_cipher_page_size=4096", hex.EncodeToString(o.key))
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: err}
	}
	// One connection per process keeps per-connection pragmas in effect.
	// Other processes open their own.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path, clock: o.clock, logger: o.logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	if err := s.db.Ping(); err != nil {
		return &domain.StoreError{Op: "open", Err: err}
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return &domain.StoreError{Op: "pragma", Err: fmt.Errorf("%s: %w", p, err)}
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return &domain.StoreError{Op: "create schema", Err: err}
	}
	if err := s.migrate(); err != nil {
		return &domain.StoreError{Op: "migrate", Err: err}
	}
	if _, err := s.db.Exec(indexes); err != nil {
		return &domain.StoreError{Op: "create indexes", Err: err}
	}
	return nil
}

// migrate adds the active/passive split to ledgers created before it and
// treats all historical time as active.
func (s *SQLiteStore) migrate() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('activity') WHERE name = 'active_secs'`).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`ALTER TABLE activity ADD COLUMN active_secs INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE activity ADD COLUMN passive_secs INTEGER NOT NULL DEFAULT 0`,
		`UPDATE activity SET active_secs = duration_secs WHERE active_secs = 0 AND duration_secs > 0`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("migrated activity table to active/passive split", zap.String("path", s.path))
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- domain.SessionWriter implementation ---

// StartSession inserts an open row stamped with the current time.
func (s *SQLiteStore) StartSession(ctx context.Context, appName, category, windowTitle string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (app_name, category, window_title, started_at)
		VALUES (?, ?, ?, ?)`,
		appName, category, windowTitle, formatTimestamp(s.clock.Now()),
	)
	if err != nil {
		return 0, &domain.StoreError{Op: "start session", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &domain.StoreError{Op: "start session", Err: err}
	}
	return id, nil
}

// EndSession closes an open row. A clock that moved backwards yields a zero
// duration with ended_at = started_at. Unknown or already closed rows are
// left untouched.
func (s *SQLiteStore) EndSession(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "end session", Err: err}
	}
	defer tx.Rollback()

	var startedRaw string
	var endedRaw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT started_at, ended_at FROM activity WHERE id = ?`, id).
		Scan(&startedRaw, &endedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return &domain.StoreError{Op: "end session", Err: err}
	}
	if endedRaw.Valid {
		return nil
	}

	startedAt, err := parseTimestamp(startedRaw)
	if err != nil {
		return &domain.StoreError{Op: "end session", Err: err}
	}

	now := s.clock.Now()
	if now.Before(startedAt) {
		s.logger.Warn("clock moved backwards, clamping session duration",
			zap.Int64("id", id), zap.Time("started_at", startedAt), zap.Time("now", now))
	}

	_, err = tx.ExecContext(ctx, `UPDATE activity SET `+closeAssignments+` WHERE id = ?`,
		append(closeArgs(formatTimestamp(now)), id)...)
	if err != nil {
		return &domain.StoreError{Op: "end session", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "end session", Err: err}
	}
	return nil
}

// UpdateActivityTime adds to the active/passive counters of a row.
func (s *SQLiteStore) UpdateActivityTime(ctx context.Context, id int64, activeDelta, passiveDelta int64) error {
	if activeDelta < 0 || passiveDelta < 0 {
		return &domain.StoreError{
			Op:  "update activity time",
			Err: fmt.Errorf("negative delta (active %d, passive %d)", activeDelta, passiveDelta),
		}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE activity
		SET active_secs = active_secs + ?, passive_secs = passive_secs + ?
		WHERE id = ?`,
		activeDelta, passiveDelta, id,
	)
	if err != nil {
		return &domain.StoreError{Op: "update activity time", Err: err}
	}
	return nil
}

// elapsedSecs is the whole seconds from started_at to the bound timestamp,
// measured at millisecond resolution and floored. Both close paths use it.
const elapsedSecs = `(CAST(ROUND((julianday(?) - julianday(started_at)) * 86400000) AS INTEGER) / 1000)`

// closeAssignments closes a row at the bound time. Durations are clamped at
// zero and active_secs is topped up to cover the whole duration.
const closeAssignments = `
		ended_at = CASE WHEN julianday(?) < julianday(started_at) THEN started_at ELSE ? END,
		duration_secs = MAX(` + elapsedSecs + `, 0),
		active_secs = active_secs + MAX(MAX(` + elapsedSecs + `, 0) - active_secs - passive_secs, 0)`

func closeArgs(now string) []any {
	return []any{now, now, now, now}
}

// CloseOpenSessions closes every open row at the current time in a single
// statement, with the same arithmetic as EndSession.
func (s *SQLiteStore) CloseOpenSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activity SET `+closeAssignments+` WHERE ended_at IS NULL`,
		closeArgs(formatTimestamp(s.clock.Now()))...)
	if err != nil {
		return 0, &domain.StoreError{Op: "close open sessions", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "close open sessions", Err: err}
	}
	return n, nil
}

// ResetToday deletes every row started within today's local-day window.
func (s *SQLiteStore) ResetToday(ctx context.Context) (int64, error) {
	from, to := dayBounds(s.clock.Now())
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activity WHERE started_at >= ? AND started_at < ?`, from, to)
	if err != nil {
		return 0, &domain.StoreError{Op: "reset today", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "reset today", Err: err}
	}
	return n, nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// dayBounds returns the [local midnight, next local midnight) window
// containing t, formatted for started_at comparisons.
func dayBounds(t time.Time) (string, string) {
	start := startOfDay(t)
	return formatTimestamp(start), formatTimestamp(start.AddDate(0, 0, 1))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Ensure SQLiteStore implements domain.ActivityStore.
var _ domain.ActivityStore = (*SQLiteStore)(nil)
