// Package journal keeps a history of coaching runs and their exercises.
package journal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store is the persistence abstraction for the journal.
// Implementations must be safe for concurrent use: the controller writes
// while the status surface reads.
type Store interface {
	// CreateRun records a new run.
	CreateRun(ctx context.Context, run Run) error

	// FinishRun sets the end time of a run. Unknown runs yield ErrNotFound.
	FinishRun(ctx context.Context, id uuid.UUID, endedAt time.Time) error

	// PutExercise inserts or replaces the record with the same run and
	// ordinal. The run must exist.
	PutExercise(ctx context.Context, rec ExerciseRecord) error

	// GetRun returns a single run.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)

	// ListRuns returns up to limit runs, most recent first. A limit <= 0
	// returns every run.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// ListExercises returns the exercises of a run ordered by ordinal.
	ListExercises(ctx context.Context, runID uuid.UUID) ([]ExerciseRecord, error)

	Close() error
}

type runState struct {
	run       Run
	exercises map[int]ExerciseRecord
}

// InMemoryStore is a concurrency-safe in-memory implementation of Store.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*runState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[uuid.UUID]*runState)}
}

// CreateRun implements Store.CreateRun. An existing run with the same ID is
// left untouched.
func (s *InMemoryStore) CreateRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return nil
	}
	s.runs[run.ID] = &runState{run: run, exercises: make(map[int]ExerciseRecord)}
	return nil
}

// FinishRun implements Store.FinishRun.
func (s *InMemoryStore) FinishRun(_ context.Context, id uuid.UUID, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	st.run.EndedAt = &endedAt
	return nil
}

// PutExercise implements Store.PutExercise.
func (s *InMemoryStore) PutExercise(_ context.Context, rec ExerciseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.runs[rec.RunID]
	if !ok {
		return ErrNotFound
	}
	st.exercises[rec.Ordinal] = rec
	return nil
}

// GetRun implements Store.GetRun.
func (s *InMemoryStore) GetRun(_ context.Context, id uuid.UUID) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return st.run, nil
}

// ListRuns implements Store.ListRuns.
func (s *InMemoryStore) ListRuns(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, st := range s.runs {
		runs = append(runs, st.run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID.String() < runs[j].ID.String()
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListExercises implements Store.ListExercises.
func (s *InMemoryStore) ListExercises(_ context.Context, runID uuid.UUID) ([]ExerciseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}

	ordinals := make([]int, 0, len(st.exercises))
	for o := range st.exercises {
		ordinals = append(ordinals, o)
	}
	sort.Ints(ordinals)

	recs := make([]ExerciseRecord, 0, len(ordinals))
	for _, o := range ordinals {
		recs = append(recs, st.exercises[o])
	}
	return recs, nil
}

// Close implements Store.Close.
func (s *InMemoryStore) Close() error { return nil }
