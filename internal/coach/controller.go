// Package coach drives a coaching session. The Controller consumes decoded
// engine messages in arrival order and keeps the view, the two media
// channels and the overlay consistent with the session lifecycle.
package coach

import (
	"log/slog"
	"sync"
	"time"

	"coach-client/internal/media"
	"coach-client/internal/platform/eventloop"
	"coach-client/internal/platform/metrics"
	"coach-client/internal/progress"
	"coach-client/internal/protocol"
	"coach-client/internal/widget"
)

// TransitionText is shown between exercises.
const TransitionText = "Ottimo!"

// MediaChannel is one synchronized playback line.
type MediaChannel interface {
	RequestPlay(src *string, delay time.Duration)
	Stop()
	State() media.State
}

// WidgetSink takes wholesale replacements of the overlay widget set.
type WidgetSink interface {
	SetWidgets(set widget.Set)
}

// FrameSink draws one encoded camera frame as the overlay background.
type FrameSink interface {
	DrawFrame(data []byte)
}

// Journal records the session history. Implementations handle their own
// failures; the controller never waits on them.
type Journal interface {
	SessionStarted(exercisesPlanned int)
	ExerciseStarted(ordinal int, exerciseID string, repetitionsTarget int)
	RepetitionsUpdated(done int)
	ExerciseEnded()
	SessionEnded()
}

// Timings are the presentation delays.
type Timings struct {
	// AudioDelay postpones every voice cue so it lands with its visual cue.
	AudioDelay time.Duration
	// OverlayDuration is how long the transition overlay stays visible.
	OverlayDuration time.Duration
	// ProgressDelay postpones the session bar update after an exercise ends.
	ProgressDelay time.Duration
}

// Deps are the Controller's collaborators. Frames and Journal are optional.
type Deps struct {
	View      View
	Video     MediaChannel
	Audio     MediaChannel
	Widgets   WidgetSink
	Frames    FrameSink
	Journal   Journal
	Scheduler eventloop.Scheduler
	Assets    media.Assets
	Timings   Timings
	Log       *slog.Logger
	Metrics   *metrics.Metrics
}

// Controller is the session state machine. Dispatch and the timers it
// schedules must run on one execution context; Status may be called from
// anywhere.
type Controller struct {
	deps Deps
	log  *slog.Logger

	mu    sync.Mutex
	state State

	exercisesCount  int
	exerciseOrdinal int
	extras          protocol.SessionStart

	exerciseID        *string
	repetitionsTarget int
	repetitionsDone   int

	hideTimer     eventloop.Timer
	progressTimer eventloop.Timer
}

// NewController returns a controller at the homepage.
func NewController(deps Deps) *Controller {
	c := &Controller{deps: deps, log: deps.Log}
	deps.View.ShowHomepage()
	deps.Metrics.SetSessionState(int(Homepage))
	return c
}

// Dispatch applies one message. It never fails: problems are logged and
// contained.
func (c *Controller) Dispatch(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deps.Metrics.IncEvent(string(msg.Type()))
	switch m := msg.(type) {
	case protocol.SessionStart:
		c.sessionStart(m)
	case protocol.ExerciseStart:
		c.exerciseStart(m)
	case protocol.ExerciseUpdate:
		c.exerciseUpdate(m)
	case protocol.ExerciseEnd:
		c.exerciseEnd()
	case protocol.SessionEnd:
		c.sessionEnd()
	default:
		c.deps.Metrics.IncIgnored()
		c.log.Debug("message ignored", slog.String("type", string(msg.Type())))
	}
}

func (c *Controller) sessionStart(m protocol.SessionStart) {
	c.exercisesCount = m.ExercisesCount
	c.exerciseOrdinal = 0
	c.extras = m
	c.deps.View.HideHomepage()
	c.transition(SessionActive)

	c.log.Info("session started",
		slog.Int("exercises_count", m.ExercisesCount),
		slog.Any("exercise_ids", m.ExerciseIDs),
		slog.Int("frame_rate", m.FrameRate))
	if c.deps.Journal != nil {
		c.deps.Journal.SessionStarted(m.ExercisesCount)
	}
}

func (c *Controller) exerciseStart(m protocol.ExerciseStart) {
	if c.state == Homepage {
		c.log.Warn("exercise started outside a session")
	}

	c.exerciseOrdinal++
	c.exerciseID = m.ExerciseID
	c.repetitionsTarget = m.RepetitionsTarget
	c.repetitionsDone = 0
	c.deps.View.SetExerciseCounter(progress.ExerciseCounter(c.exerciseOrdinal))
	c.transition(ExerciseActive)

	id := ""
	if m.ExerciseID != nil {
		id = *m.ExerciseID
		key := c.deps.Assets.VideoKey(id)
		c.deps.Video.RequestPlay(&key, 0)
	}

	c.log.Info("exercise started",
		slog.Int("ordinal", c.exerciseOrdinal),
		slog.String("exercise_id", id),
		slog.Int("repetitions_target", m.RepetitionsTarget))
	if c.deps.Journal != nil {
		c.deps.Journal.ExerciseStarted(c.exerciseOrdinal, id, m.RepetitionsTarget)
	}
}

func (c *Controller) exerciseUpdate(m protocol.ExerciseUpdate) {
	if m.Frame != nil && c.deps.Frames != nil {
		c.deps.Frames.DrawFrame(m.Frame)
	}

	if m.Repetitions != nil {
		// Counts only move forward within an exercise.
		if *m.Repetitions > c.repetitionsDone {
			c.repetitionsDone = *m.Repetitions
		}
		c.deps.View.SetRepetitions(progress.Repetitions(c.repetitionsDone, c.repetitionsTarget))
		if c.deps.Journal != nil {
			c.deps.Journal.RepetitionsUpdated(c.repetitionsDone)
		}
	}

	if md := m.Metadata; md != nil {
		if md.Help != nil {
			c.deps.View.SetHelp(*md.Help)
		}
		if md.Widgets != nil {
			c.deps.Widgets.SetWidgets(*md.Widgets)
		}
		if md.Audio.Present {
			c.requestAudio(md.Audio.Value)
		}
	}
}

func (c *Controller) requestAudio(rel *string) {
	if rel == nil {
		c.deps.Audio.RequestPlay(nil, 0)
		return
	}
	if c.exerciseID == nil {
		c.log.Warn("audio cue without an exercise id", slog.String("audio", *rel))
		return
	}
	key := c.deps.Assets.AudioKey(*c.exerciseID, *rel)
	c.deps.Audio.RequestPlay(&key, c.deps.Timings.AudioDelay)
}

func (c *Controller) exerciseEnd() {
	if c.state == ExerciseActive {
		c.transition(TransitionOverlay)
	} else {
		c.log.Warn("exercise ended with no exercise active", slog.String("state", c.state.String()))
	}

	c.deps.Audio.Stop()
	c.deps.View.ShowTransition(TransitionText)
	c.cancelTimers()

	// The bar reflects the ordinal at the moment the exercise ended.
	bar := progress.Session(c.exerciseOrdinal, c.exercisesCount)

	var hide, reveal eventloop.Timer
	hide = c.deps.Scheduler.AfterFunc(c.deps.Timings.OverlayDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.hideTimer != hide {
			return
		}
		c.hideTimer = nil
		c.deps.View.HideTransition()
	})
	reveal = c.deps.Scheduler.AfterFunc(c.deps.Timings.ProgressDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.progressTimer != reveal {
			return
		}
		c.progressTimer = nil
		c.deps.View.SetSessionProgress(bar)
	})
	c.hideTimer, c.progressTimer = hide, reveal

	c.log.Info("exercise ended",
		slog.Int("ordinal", c.exerciseOrdinal),
		slog.Int("repetitions_done", c.repetitionsDone))
	if c.deps.Journal != nil {
		c.deps.Journal.ExerciseEnded()
	}
}

func (c *Controller) sessionEnd() {
	c.deps.View.ShowHomepage()
	c.transition(Homepage)
	c.log.Info("session ended", slog.Int("exercises_completed", c.exerciseOrdinal))
	if c.deps.Journal != nil {
		c.deps.Journal.SessionEnded()
	}
}

func (c *Controller) cancelTimers() {
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
	if c.progressTimer != nil {
		c.progressTimer.Stop()
		c.progressTimer = nil
	}
}

func (c *Controller) transition(to State) {
	if c.state == to {
		return
	}
	c.log.Debug("state changed", slog.String("from", c.state.String()), slog.String("to", to.String()))
	c.state = to
	c.deps.Metrics.SetSessionState(int(to))
}

// SessionInfo describes the session as last announced by the engine.
type SessionInfo struct {
	ExercisesCount  int      `json:"exercises_count"`
	ExerciseOrdinal int      `json:"exercise_ordinal"`
	ExerciseIDs     []string `json:"exercise_ids,omitempty"`
	FrameRate       int      `json:"frame_rate,omitempty"`
	Resolution      *[2]int  `json:"resolution,omitempty"`
}

// ExerciseInfo describes the exercise in progress.
type ExerciseInfo struct {
	ID                string `json:"id,omitempty"`
	RepetitionsTarget int    `json:"repetitions_target"`
	RepetitionsDone   int    `json:"repetitions_done"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State    string       `json:"state"`
	Session  SessionInfo  `json:"session"`
	Exercise ExerciseInfo `json:"exercise"`
	Video    media.State  `json:"video"`
	Audio    media.State  `json:"audio"`
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot for the status surface.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State: c.state.String(),
		Session: SessionInfo{
			ExercisesCount:  c.exercisesCount,
			ExerciseOrdinal: c.exerciseOrdinal,
			ExerciseIDs:     append([]string(nil), c.extras.ExerciseIDs...),
			FrameRate:       c.extras.FrameRate,
			Resolution:      c.extras.Resolution,
		},
		Exercise: ExerciseInfo{
			RepetitionsTarget: c.repetitionsTarget,
			RepetitionsDone:   c.repetitionsDone,
		},
		Video: c.deps.Video.State(),
		Audio: c.deps.Audio.State(),
	}
	if c.exerciseID != nil {
		s.Exercise.ID = *c.exerciseID
	}
	return s
}
