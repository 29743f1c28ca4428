// Package repository persists runs and their received events.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// SQLiteStore is the run journal backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			tickers TEXT NOT NULL,
			selected_agents TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			generation INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			local INTEGER NOT NULL DEFAULT 0,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun records a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	tickers, err := json.Marshal(nonNil(run.Tickers))
	if err != nil {
		return err
	}
	agents, err := json.Marshal(nonNil(run.SelectedAgents))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, tickers, selected_agents, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, string(tickers), string(agents), run.Status, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID. It returns nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, session_id, tickers, selected_agents, status, started_at, ended_at FROM runs WHERE run_id = ?`,
		runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT run_id, session_id, tickers, selected_agents, status, started_at, ended_at FROM runs ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpdateRunCompleted moves a run to a terminal status.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, endedAt int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ?`,
		status, endedAt, runID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// AppendEvent journals one received event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.JournalEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, seq, generation, ts, type, local, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Seq, event.Generation, event.Ts, event.Type, event.Local, nullStringBytes(event.Payload))
	return err
}

// GetEvents returns the events of a run in arrival order. afterSeq and
// limit are ignored when zero.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.JournalEvent, error) {
	query := `SELECT event_id, run_id, seq, generation, ts, type, local, payload FROM events WHERE run_id = ?`
	args := []any{runID}

	if afterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, afterSeq)
	}

	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.JournalEvent
	for rows.Next() {
		var event domain.JournalEvent
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Seq, &event.Generation,
			&event.Ts, &event.Type, &event.Local, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var tickers, agents string
	var endedAt sql.NullInt64
	if err := row.Scan(&run.RunID, &run.SessionID, &tickers, &agents, &run.Status, &run.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tickers), &run.Tickers); err != nil {
		return nil, fmt.Errorf("run %s: bad tickers column: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(agents), &run.SelectedAgents); err != nil {
		return nil, fmt.Errorf("run %s: bad selected_agents column: %w", run.RunID, err)
	}
	if endedAt.Valid {
		run.EndedAt = endedAt.Int64
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
