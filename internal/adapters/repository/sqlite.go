package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore is a Store backed by a SQLite database file. Reports are kept
// as JSON alongside the columns used for ordering.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	closed      atomic.Bool
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates it to the latest schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection: SQLite serializes writers and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	s.db = db

	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// migrateUp does not close the migrate instance: that would close s.db.
func (s *SQLiteStore) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStore) SchemaVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, r model.Report) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if r.RunID == "" {
		return ErrInvalidReport
	}
	start := time.Now()
	defer observe("put", start)

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.RunID, err)
	}
	var finished sql.NullInt64
	if r.FinishedAt != nil {
		finished = sql.NullInt64{Int64: r.FinishedAt.UnixNano(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (run_id, name, status, strategy, submitted_at, finished_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			strategy = excluded.strategy,
			submitted_at = excluded.submitted_at,
			finished_at = excluded.finished_at,
			body = excluded.body`,
		r.RunID, r.Name, string(r.Status), r.Strategy, r.SubmittedAt.UnixNano(), finished, string(body))
	if err != nil {
		metrics.RecordErrorByComponent("store", "put")
		return fmt.Errorf("put report %s: %w", r.RunID, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (model.Report, error) {
	if s.closed.Load() {
		return model.Report{}, ErrClosed
	}
	start := time.Now()
	defer observe("get", start)

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "get")
		return model.Report{}, fmt.Errorf("get report %s: %w", runID, err)
	}
	return decodeReport(body)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer observe("list", start)

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM reports ORDER BY submitted_at DESC, run_id ASC LIMIT ?`, limit)
	if err != nil {
		metrics.RecordErrorByComponent("store", "list")
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]model.Report, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	metrics.UpdateStoredReports(n)
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func decodeReport(body string) (model.Report, error) {
	var r model.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return model.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
