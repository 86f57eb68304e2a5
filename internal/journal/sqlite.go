package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        INTEGER NOT NULL,
	ended_at          INTEGER,
	exercises_planned INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS exercises (
	run_id             TEXT NOT NULL REFERENCES runs(id),
	ordinal            INTEGER NOT NULL,
	exercise_id        TEXT NOT NULL,
	repetitions_target INTEGER NOT NULL,
	repetitions_done   INTEGER NOT NULL,
	started_at         INTEGER NOT NULL,
	ended_at           INTEGER,
	PRIMARY KEY (run_id, ordinal)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// SQLiteStore persists the journal in a SQLite file. Times are stored as
// Unix nanoseconds in UTC.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the journal database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	// One writer at a time keeps SQLite from reporting busy.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// CreateRun implements Store.CreateRun.
func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, started_at, ended_at, exercises_planned) VALUES (?, ?, ?, ?)`,
		run.ID.String(), toUnix(run.StartedAt), toNullUnix(run.EndedAt), run.ExercisesPlanned,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun implements Store.FinishRun.
func (s *SQLiteStore) FinishRun(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET ended_at = ? WHERE id = ?`, toUnix(endedAt), id.String())
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PutExercise implements Store.PutExercise.
func (s *SQLiteStore) PutExercise(ctx context.Context, rec ExerciseRecord) error {
	if err := s.runExists(ctx, rec.RunID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO exercises
			(run_id, ordinal, exercise_id, repetitions_target, repetitions_done, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID.String(), rec.Ordinal, rec.ExerciseID, rec.RepetitionsTarget, rec.RepetitionsDone,
		toUnix(rec.StartedAt), toNullUnix(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("writing exercise %d of run %s: %w", rec.Ordinal, rec.RunID, err)
	}
	return nil
}

// GetRun implements Store.GetRun.
func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, exercises_planned FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("reading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns implements Store.ListRuns.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, exercises_planned FROM runs
		ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListExercises implements Store.ListExercises.
func (s *SQLiteStore) ListExercises(ctx context.Context, runID uuid.UUID) ([]ExerciseRecord, error) {
	if err := s.runExists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, exercise_id, repetitions_target, repetitions_done, started_at, ended_at
		FROM exercises WHERE run_id = ? ORDER BY ordinal`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("listing exercises of run %s: %w", runID, err)
	}
	defer rows.Close()

	recs := []ExerciseRecord{}
	for rows.Next() {
		rec := ExerciseRecord{RunID: runID}
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&rec.Ordinal, &rec.ExerciseID, &rec.RepetitionsTarget, &rec.RepetitionsDone, &started, &ended); err != nil {
			return nil, fmt.Errorf("listing exercises of run %s: %w", runID, err)
		}
		rec.StartedAt = fromUnix(started)
		rec.EndedAt = fromNullUnix(ended)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runExists(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up run %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		id      string
		started int64
		ended   sql.NullInt64
	)
	if err := sc.Scan(&id, &started, &ended, &run.ExercisesPlanned); err != nil {
		return Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("bad run id %q: %w", id, err)
	}
	run.ID = parsed
	run.StartedAt = fromUnix(started)
	run.EndedAt = fromNullUnix(ended)
	return run, nil
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}
