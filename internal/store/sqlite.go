package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/edaq/internal/hub"
	"github.com/me/edaq/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Journal.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "journal"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

// EnsureRun inserts run unless a run with the same ID exists.
func (s *SQLiteStore) EnsureRun(ctx context.Context, run *model.RunRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)
	state := run.State
	if state == "" {
		state = model.RunStateRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, state, executor, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(state), run.Executor, run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the final state and counters of run, creating the row if
// the run never executed anything.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.RunRecord) error {
	s.logger.Debug("sql", "op", "upsert", "table", "runs", "id", run.ID, "state", run.State)
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, executor, executed, failed, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			executed = excluded.executed,
			failed = excluded.failed,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		run.ID, string(run.State), run.Executor, run.Executed, run.Failed, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), finished.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with id, or nil if none exists.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, executor, executed, failed, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns runs newest first, with the total count for pagination.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.RunRecord, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.State != "" {
		whereSQL = " WHERE state = ?"
		countArgs = append(countArgs, string(opts.State))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, state, executor, executed, failed, error, started_at, finished_at
		FROM runs` + whereSQL + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.RunRecord, error) {
	var run model.RunRecord
	var state, startedAt string
	var finishedAt *string
	if err := row.Scan(&run.ID, &state, &run.Executor, &run.Executed, &run.Failed, &run.Error,
		&startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.State = model.RunState(state)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *finishedAt)
		run.FinishedAt = &t
	}
	return &run, nil
}

// --- Executions ---

// RecordExecution stores one executed event. The run must exist.
func (s *SQLiteStore) RecordExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "executions", "run_id", rec.RunID, "seq", rec.Sequence)

	eventJSON, err := json.Marshal(rec.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	valuesJSON, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (run_id, seq, channel, target_time, dense_index, runner_time_ms, lateness_ms, event, result_values, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Sequence, rec.Channel, rec.TargetTime, rec.DenseIndex,
		rec.RunnerTimeMS, rec.LatenessMS, string(eventJSON), string(valuesJSON),
		rec.ExecutedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert execution %s/%d: %w", rec.RunID, rec.Sequence, err)
	}
	return nil
}

// ListExecutions returns the executions of a run in sequence order.
func (s *SQLiteStore) ListExecutions(ctx context.Context, runID string, opts model.ListOptions) ([]*model.ExecutionRecord, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "executions", "run_id", runID)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, channel, target_time, dense_index, runner_time_ms, lateness_ms, event, result_values, executed_at
		 FROM executions WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		runID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*model.ExecutionRecord
	for rows.Next() {
		var rec model.ExecutionRecord
		var eventJSON, valuesJSON, executedAt string
		if err := rows.Scan(&rec.RunID, &rec.Sequence, &rec.Channel, &rec.TargetTime, &rec.DenseIndex,
			&rec.RunnerTimeMS, &rec.LatenessMS, &eventJSON, &valuesJSON, &executedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(eventJSON), &rec.Event); err != nil {
			return nil, 0, fmt.Errorf("unmarshal event: %w", err)
		}
		json.Unmarshal([]byte(valuesJSON), &rec.Values)
		rec.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
		recs = append(recs, &rec)
	}
	return recs, total, rows.Err()
}

// Record journals every frame from sub until it closes or ctx ends. Runs are
// created on their first frame; write failures are logged and skipped so a
// journal problem never stalls acquisition.
func (s *SQLiteStore) Record(ctx context.Context, sub *hub.Subscription, executor string) error {
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-sub.C:
			if !ok {
				return nil
			}
			rec := model.ExecutionFromFrame(f, time.Now())
			if !seen[rec.RunID] {
				run := &model.RunRecord{ID: rec.RunID, Executor: executor, StartedAt: rec.ExecutedAt}
				if err := s.EnsureRun(ctx, run); err != nil {
					s.logger.Error("journal run", "run_id", rec.RunID, "error", err)
					continue
				}
				seen[rec.RunID] = true
			}
			if err := s.RecordExecution(ctx, &rec); err != nil {
				s.logger.Error("journal execution", "run_id", rec.RunID, "seq", rec.Sequence, "error", err)
			}
		}
	}
}

var _ Journal = (*SQLiteStore)(nil)
