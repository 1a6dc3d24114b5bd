// Package history persists completed holds to SQLite so subjects can
// review past sessions after the in-memory state is gone.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure-Go driver, registers as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/okian/plank/internal/domain/model"
	"github.com/okian/plank/pkg/logger"
	"github.com/okian/plank/pkg/metrics"
)

// migration is a versioned schema change applied exactly once.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_holds",
		SQL: `
			CREATE TABLE IF NOT EXISTS holds (
				id TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL,
				session_id TEXT NOT NULL,
				started_at INTEGER NOT NULL,
				ended_at INTEGER NOT NULL,
				seconds REAL NOT NULL,
				frames INTEGER NOT NULL,
				avg_confidence REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_holds_subject ON holds(subject_id, ended_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "add_view_column",
		SQL: `
			ALTER TABLE holds ADD COLUMN view TEXT NOT NULL DEFAULT '';
		`,
	},
}

// Summary aggregates a subject's recorded holds.
type Summary struct {
	Holds        int
	TotalSeconds float64
	BestSeconds  float64
	AvgSeconds   float64
	LastHoldAt   time.Time
}

// Store is a SQLite-backed log of completed holds.
//
// Timestamps are stored at millisecond precision.
type Store struct {
	db           *sql.DB
	path         string
	maxOpenConns int
	maxIdleConns int
	log          logger.Logger
}

// Open opens (creating if needed) the hold database at path and applies
// any pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	s := &Store{
		path:         path,
		maxOpenConns: 10,
		maxIdleConns: 5,
		log:          logger.Get().Named("history"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxIdleConns)

	// WAL keeps readers unblocked while a worker writes a hold.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	s.db = db
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.log.Info(ctx, "hold history opened", logger.String("path", path))
	return s, nil
}

// migrate applies pending migrations in version order, each in its own
// transaction alongside its bookkeeping row.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("read applied migrations: %w", err)
	}
	_ = rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
		s.log.Debug(ctx, "applied history migration",
			logger.Int("version", m.Version),
			logger.String("name", m.Name))
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// RecordHold appends a completed hold.
func (s *Store) RecordHold(ctx context.Context, h model.Hold) error {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holds (id, subject_id, session_id, started_at, ended_at, seconds, frames, avg_confidence, view)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, h.SubjectID, h.SessionID,
		h.StartedAt.UnixMilli(), h.EndedAt.UnixMilli(),
		h.Seconds, h.Frames, h.AvgConfidence, h.View,
	)
	if err != nil {
		return fmt.Errorf("insert hold %s: %w", h.ID, err)
	}
	return nil
}

// RecentBySubject returns a subject's most recent holds, newest first.
func (s *Store) RecentBySubject(ctx context.Context, subjectID string, limit int) ([]model.Hold, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, session_id, started_at, ended_at, seconds, frames, avg_confidence, view
		FROM holds
		WHERE subject_id = ?
		ORDER BY ended_at DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query holds for %s: %w", subjectID, err)
	}
	defer func() { _ = rows.Close() }()

	var holds []model.Hold
	for rows.Next() {
		var (
			h                  model.Hold
			startedMS, endedMS int64
		)
		if err := rows.Scan(&h.ID, &h.SubjectID, &h.SessionID, &startedMS, &endedMS,
			&h.Seconds, &h.Frames, &h.AvgConfidence, &h.View); err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		h.StartedAt = time.UnixMilli(startedMS).UTC()
		h.EndedAt = time.UnixMilli(endedMS).UTC()
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read holds for %s: %w", subjectID, err)
	}
	return holds, nil
}

// SubjectSummary aggregates a subject's recorded holds. A subject with no
// holds yields a zero summary, not an error.
func (s *Store) SubjectSummary(ctx context.Context, subjectID string) (Summary, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var (
		sum    Summary
		lastMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(seconds), 0),
		       COALESCE(MAX(seconds), 0),
		       COALESCE(AVG(seconds), 0),
		       COALESCE(MAX(ended_at), 0)
		FROM holds
		WHERE subject_id = ?
	`, subjectID).Scan(&sum.Holds, &sum.TotalSeconds, &sum.BestSeconds, &sum.AvgSeconds, &lastMS)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize holds for %s: %w", subjectID, err)
	}
	if lastMS > 0 {
		sum.LastHoldAt = time.UnixMilli(lastMS).UTC()
	}
	return sum, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
