// Package store persists normalized call records in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
)

// CallStore is the persistence contract the ingestion and query paths
// depend on. The process-memory variant of this service lost data on every
// restart; callers must only ever see this interface, never a concrete
// in-memory backing.
type CallStore interface {
	InsertIfAbsent(ctx context.Context, rec *normalize.NormalizedCall) (bool, error)
	Merge(ctx context.Context, rec *normalize.NormalizedCall) error
	GetByID(ctx context.Context, id string) (*normalize.NormalizedCall, error)
	ListAll(ctx context.Context) ([]normalize.NormalizedCall, error)
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) error
}

// SQLite implements CallStore on an embedded database file.
type SQLite struct {
	db *sql.DB
}

var _ CallStore = (*SQLite)(nil)

// Open opens the database and runs migrations, including the idempotent
// summary-column addition and transcript backfill.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			caller_name TEXT NOT NULL DEFAULT 'Unknown Caller',
			phone TEXT NOT NULL DEFAULT '',
			call_start TIMESTAMP NOT NULL,
			call_end TIMESTAMP NOT NULL,
			duration INTEGER NOT NULL DEFAULT 0,
			transcript TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			success_flag INTEGER,
			cost TEXT NOT NULL DEFAULT '0',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_call_start ON calls(call_start);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.migrateSummary()
}

// migrateSummary adds the summary column to databases created before the
// field existed and backfills it from transcript once. Running it on every
// startup is a no-op after the first pass.
func (s *SQLite) migrateSummary() error {
	hasSummary, err := s.hasColumn("calls", "summary")
	if err != nil {
		return err
	}
	if !hasSummary {
		if _, err := s.db.Exec(`ALTER TABLE calls ADD COLUMN summary TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(`UPDATE calls SET summary = transcript WHERE summary = '' AND transcript != ''`)
	return err
}

func (s *SQLite) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// InsertIfAbsent inserts the record unless its id already exists. The
// conflict clause makes the existence check and insert one atomic
// statement, so two concurrent deliveries of the same id cannot both
// insert. Returns false when the id was already present.
func (s *SQLite) InsertIfAbsent(ctx context.Context, rec *normalize.NormalizedCall) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO calls(id, caller_name, phone, call_start, call_end, duration, transcript, summary, success_flag, cost, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.CallerName, rec.Phone, rec.CallStart, rec.CallEnd, rec.Duration,
		rec.Transcript, rec.Summary, flagToNull(rec.SuccessFlag), rec.Cost.String(), now, now)
	if err != nil {
		return false, fmt.Errorf("insert call %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Merge inserts the record or refreshes the mutable fields of an existing
// row. Id and call_start are immutable once stored.
func (s *SQLite) Merge(ctx context.Context, rec *normalize.NormalizedCall) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO calls(id, caller_name, phone, call_start, call_end, duration, transcript, summary, success_flag, cost, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			caller_name=excluded.caller_name,
			phone=excluded.phone,
			call_end=excluded.call_end,
			duration=excluded.duration,
			transcript=excluded.transcript,
			summary=excluded.summary,
			success_flag=excluded.success_flag,
			cost=excluded.cost,
			updated_at=excluded.updated_at`,
		rec.ID, rec.CallerName, rec.Phone, rec.CallStart, rec.CallEnd, rec.Duration,
		rec.Transcript, rec.Summary, flagToNull(rec.SuccessFlag), rec.Cost.String(), now, now)
	if err != nil {
		return fmt.Errorf("merge call %s: %w", rec.ID, err)
	}
	return nil
}

const callColumns = `id, caller_name, phone, call_start, call_end, duration, transcript, summary, success_flag, cost, created_at, updated_at`

// GetByID returns the stored record, or nil when the id is unknown.
func (s *SQLite) GetByID(ctx context.Context, id string) (*normalize.NormalizedCall, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id=?`, id)
	rec, err := scanCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListAll returns every stored call ordered newest-first by call_start.
func (s *SQLite) ListAll(ctx context.Context) ([]normalize.NormalizedCall, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+callColumns+` FROM calls ORDER BY call_start DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	calls := []normalize.NormalizedCall{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *rec)
	}
	return calls, rows.Err()
}

// Count reports the stored row count.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&n)
	return n, err
}

// Health returns err if DB not reachable.
func (s *SQLite) Health(ctx context.Context) error {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*normalize.NormalizedCall, error) {
	var rec normalize.NormalizedCall
	var flag sql.NullInt64
	var cost string
	if err := row.Scan(&rec.ID, &rec.CallerName, &rec.Phone, &rec.CallStart, &rec.CallEnd,
		&rec.Duration, &rec.Transcript, &rec.Summary, &flag, &cost, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if flag.Valid {
		b := flag.Int64 != 0
		rec.SuccessFlag = &b
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		d = decimal.Zero
	}
	rec.Cost = d
	rec.CallStart = rec.CallStart.UTC()
	rec.CallEnd = rec.CallEnd.UTC()
	return &rec, nil
}

func flagToNull(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}
