package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"coach-client/internal/platform/metrics"

	"github.com/google/uuid"
)

const (
	writeTimeout     = 2 * time.Second
	defaultQueueSize = 256
)

type writeOp struct {
	name string
	fn   func(context.Context) error
}

// Recorder turns session lifecycle notifications into journal writes.
// Notifications only enqueue; a single writer goroutine applies the writes
// in order. When the queue is full the write is dropped and counted. Write
// failures are logged and otherwise ignored.
//
// The notification methods must be called from one goroutine.
type Recorder struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// run and exercise belong to the notifying goroutine.
	run      *Run
	exercise *ExerciseRecord

	mu      sync.Mutex
	closed  bool
	queue   chan writeOp
	done    chan struct{}
	dropped atomic.Int64
}

// NewRecorder returns a Recorder writing to store and starts its writer.
// Call Close to flush pending writes. m may be nil.
func NewRecorder(store Store, log *slog.Logger, m *metrics.Metrics) *Recorder {
	return newRecorder(store, log, m, defaultQueueSize)
}

func newRecorder(store Store, log *slog.Logger, m *metrics.Metrics, queueSize int) *Recorder {
	r := &Recorder{
		store:   store,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan writeOp, queueSize),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// CurrentRun returns the ID of the open run, if any.
func (r *Recorder) CurrentRun() (uuid.UUID, bool) {
	if r.run == nil {
		return uuid.Nil, false
	}
	return r.run.ID, true
}

// Dropped returns how many writes were discarded on a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// SessionStarted opens a new run, closing any run left open.
func (r *Recorder) SessionStarted(exercisesPlanned int) {
	if r.run != nil {
		r.SessionEnded()
	}
	run := Run{ID: uuid.New(), StartedAt: r.now(), ExercisesPlanned: exercisesPlanned}
	r.run = &run
	r.enqueue("create run", func(ctx context.Context) error { return r.store.CreateRun(ctx, run) })
}

// ExerciseStarted opens an exercise record in the current run.
func (r *Recorder) ExerciseStarted(ordinal int, exerciseID string, repetitionsTarget int) {
	if r.run == nil {
		r.log.Debug("exercise outside a run not journaled", slog.Int("ordinal", ordinal))
		return
	}
	if r.exercise != nil {
		r.ExerciseEnded()
	}
	r.exercise = &ExerciseRecord{
		RunID:             r.run.ID,
		Ordinal:           ordinal,
		ExerciseID:        exerciseID,
		RepetitionsTarget: repetitionsTarget,
		StartedAt:         r.now(),
	}
	r.putExercise()
}

// RepetitionsUpdated stores the repetition count of the open exercise.
func (r *Recorder) RepetitionsUpdated(done int) {
	if r.exercise == nil || r.exercise.RepetitionsDone == done {
		return
	}
	r.exercise.RepetitionsDone = done
	r.putExercise()
}

// ExerciseEnded closes the open exercise.
func (r *Recorder) ExerciseEnded() {
	if r.exercise == nil {
		return
	}
	ended := r.now()
	r.exercise.EndedAt = &ended
	r.putExercise()
	r.exercise = nil
}

// SessionEnded closes the open exercise and run.
func (r *Recorder) SessionEnded() {
	if r.run == nil {
		return
	}
	r.ExerciseEnded()
	id, ended := r.run.ID, r.now()
	r.enqueue("finish run", func(ctx context.Context) error { return r.store.FinishRun(ctx, id, ended) })
	r.run = nil
}

// Close stops accepting writes and waits until the queued ones are applied.
// Safe to call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) putExercise() {
	rec := *r.exercise
	if rec.EndedAt != nil {
		ended := *rec.EndedAt
		rec.EndedAt = &ended
	}
	r.enqueue("put exercise", func(ctx context.Context) error { return r.store.PutExercise(ctx, rec) })
}

func (r *Recorder) enqueue(name string, fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.log.Debug("journal closed, write discarded", slog.String("op", name))
		return
	}
	select {
	case r.queue <- writeOp{name: name, fn: fn}:
	default:
		r.dropped.Add(1)
		r.metrics.IncJournalDropped()
		r.log.Warn("journal queue full, write dropped", slog.String("op", name))
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for op := range r.queue {
		r.apply(op)
	}
}

func (r *Recorder) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := op.fn(ctx); err != nil {
		r.log.Warn("journal write failed", slog.String("op", op.name), slog.String("error", err.Error()))
	}
}
