// Package eventloop provides the single execution context the client runs
// on: a FIFO task queue drained by one goroutine, plus one-shot timers whose
// callbacks are delivered back onto that queue.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Post once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Timer is a cancellable one-shot scheduling request.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from running.
	Stop() bool
}

// Scheduler schedules fn to run once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop runs posted tasks one at a time, in posting order.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	log   *slog.Logger
}

// New returns a Loop whose queue holds up to buffer pending tasks before
// Post blocks.
func New(buffer int, log *slog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Post enqueues fn. It blocks while the queue is full and fails with
// ErrStopped once Run has returned.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Run drains the queue until ctx is cancelled. A panicking task is logged
// and the loop carries on with the next one.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// AfterFunc implements Scheduler. fn runs on the loop goroutine. Stop is
// honoured even if the underlying timer has already fired and its callback
// is still waiting in the queue.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		err := l.Post(func() {
			if lt.fired.CompareAndSwap(false, true) {
				fn()
			}
		})
		if err != nil {
			lt.fired.Store(true)
		}
	})
	return lt
}

type loopTimer struct {
	t *time.Timer
	// fired is set once the callback has run or the timer was stopped.
	fired atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.t.Stop()
	return t.fired.CompareAndSwap(false, true)
}
