package coach

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"coach-client/internal/journal"
	"coach-client/internal/media"
	"coach-client/internal/platform/eventloop"
	"coach-client/internal/platform/logger"
	"coach-client/internal/platform/metrics"
	"coach-client/internal/progress"
	"coach-client/internal/protocol"
	"coach-client/internal/widget"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	plays []string
	stops int
}

func (p *fakePlayer) Play(src string) error {
	p.plays = append(p.plays, src)
	return nil
}

func (p *fakePlayer) Stop() { p.stops++ }

type widgetRecorder struct {
	sets []widget.Set
}

func (r *widgetRecorder) SetWidgets(set widget.Set) { r.sets = append(r.sets, set) }

type frameRecorder struct {
	frames [][]byte
}

func (r *frameRecorder) DrawFrame(data []byte) { r.frames = append(r.frames, data) }

type journalRecorder struct {
	calls []string
}

func (j *journalRecorder) SessionStarted(n int) { j.add("session_started %d", n) }
func (j *journalRecorder) ExerciseStarted(ordinal int, id string, target int) {
	j.add("exercise_started %d %s %d", ordinal, id, target)
}
func (j *journalRecorder) RepetitionsUpdated(done int) { j.add("repetitions %d", done) }
func (j *journalRecorder) ExerciseEnded()              { j.add("exercise_ended") }
func (j *journalRecorder) SessionEnded()               { j.add("session_ended") }

func (j *journalRecorder) add(format string, args ...any) {
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

type harness struct {
	c       *Controller
	view    *ViewState
	sched   *eventloop.Manual
	video   *fakePlayer
	audio   *fakePlayer
	videoCh *media.Channel
	audioCh *media.Channel
	widgets *widgetRecorder
	frames  *frameRecorder
	journal *journalRecorder
	metrics *metrics.Metrics
}

var testTimings = Timings{
	AudioDelay:      1250 * time.Millisecond,
	OverlayDuration: 2500 * time.Millisecond,
	ProgressDelay:   1000 * time.Millisecond,
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		view:    NewViewState(),
		sched:   eventloop.NewManual(),
		video:   &fakePlayer{},
		audio:   &fakePlayer{},
		widgets: &widgetRecorder{},
		frames:  &frameRecorder{},
		journal: &journalRecorder{},
		metrics: metrics.New(),
	}
	log := logger.Discard()
	h.videoCh = media.NewChannel(media.Video, h.video, h.sched, log, h.metrics)
	h.audioCh = media.NewChannel(media.Audio, h.audio, h.sched, log, h.metrics)
	h.c = NewController(Deps{
		View:      h.view,
		Video:     h.videoCh,
		Audio:     h.audioCh,
		Widgets:   h.widgets,
		Frames:    h.frames,
		Journal:   h.journal,
		Scheduler: h.sched,
		Timings:   testTimings,
		Log:       log,
		Metrics:   h.metrics,
	})
	return h
}

func (h *harness) dispatch(msgs ...protocol.Message) {
	for _, m := range msgs {
		h.c.Dispatch(m)
	}
}

func audioCue(rel string) protocol.ExerciseUpdate {
	return protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Audio: protocol.Some(protocol.Ptr(rel))}}
}

func repetitions(n int) protocol.ExerciseUpdate {
	return protocol.ExerciseUpdate{Repetitions: protocol.Ptr(n)}
}

func TestController_startsAtHomepage(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Homepage, h.c.State())
	assert.True(t, h.view.Snapshot().HomepageVisible)
}

func TestController_scenarioA(t *testing.T) {
	h := newHarness(t)

	h.dispatch(protocol.SessionStart{ExercisesCount: 3})
	assert.Equal(t, SessionActive, h.c.State())
	assert.False(t, h.view.Snapshot().HomepageVisible)
	assert.Equal(t, 0, h.c.Status().Session.ExerciseOrdinal)

	h.dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1"), RepetitionsTarget: 10})
	assert.Equal(t, ExerciseActive, h.c.State())
	assert.Equal(t, 1, h.c.Status().Session.ExerciseOrdinal)
	assert.Equal(t, "Esercizio n. 1", h.view.Snapshot().ExerciseCounter)
	assert.Equal(t, "exercises/e1/reference.mp4", h.c.Status().Video.Source)
	assert.Equal(t, []string{"exercises/e1/reference.mp4"}, h.video.plays)

	h.dispatch(repetitions(5))
	snap := h.view.Snapshot()
	assert.Equal(t, "5 / 10", snap.Repetitions.Label)
	assert.InDelta(t, 55.0, snap.Repetitions.Width, 1e-9)

	h.dispatch(audioCue("cue.mp3"))
	h.sched.Advance(testTimings.AudioDelay)
	require.Equal(t, []string{"exercises/e1/audio/cue.mp3"}, h.audio.plays)

	h.dispatch(protocol.ExerciseEnd{})
	assert.Equal(t, TransitionOverlay, h.c.State())
	snap = h.view.Snapshot()
	assert.Equal(t, Transition{Text: "Ottimo!", Visible: true}, snap.Transition)
	assert.Equal(t, media.State{}, h.audioCh.State(), "audio stopped")
	assert.Equal(t, 1, h.audio.stops)

	h.sched.Advance(999 * time.Millisecond)
	assert.InDelta(t, progress.MinWidth, h.view.Snapshot().Session.Width, 1e-9)

	h.sched.Advance(time.Millisecond)
	assert.InDelta(t, 40.0, h.view.Snapshot().Session.Width, 1e-9)
	assert.True(t, h.view.Snapshot().Transition.Visible)

	h.sched.Advance(1499 * time.Millisecond)
	assert.True(t, h.view.Snapshot().Transition.Visible)
	h.sched.Advance(time.Millisecond)
	assert.False(t, h.view.Snapshot().Transition.Visible)

	h.dispatch(protocol.SessionEnd{})
	assert.Equal(t, Homepage, h.c.State())
	assert.True(t, h.view.Snapshot().HomepageVisible)
}

func TestController_scenarioB(t *testing.T) {
	h := newHarness(t)
	h.dispatch(
		protocol.SessionStart{ExercisesCount: 1},
		protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1"), RepetitionsTarget: 4},
	)

	first := audioCue("cue1.mp3")
	first.Metadata.Help = protocol.Ptr("first")
	second := audioCue("cue1.mp3")
	second.Metadata.Help = protocol.Ptr("second")
	second.Repetitions = protocol.Ptr(2)

	h.dispatch(first)
	h.sched.Advance(500 * time.Millisecond)
	h.dispatch(second)

	assert.Equal(t, 1, h.sched.Pending(), "one audio start scheduled")
	assert.Equal(t, "second", h.view.Snapshot().Help)
	assert.Equal(t, "2 / 4", h.view.Snapshot().Repetitions.Label)

	h.sched.Advance(750 * time.Millisecond)
	assert.Equal(t, []string{"exercises/e1/audio/cue1.mp3"}, h.audio.plays)

	h.sched.Advance(5 * time.Second)
	assert.Len(t, h.audio.plays, 1)
}

func TestController_repetitionWidthMonotonic(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 1}, protocol.ExerciseStart{RepetitionsTarget: 6})

	prev := 0.0
	for _, r := range []int{0, 1, 1, 3, 6, 8, 12} {
		h.dispatch(repetitions(r))
		w := h.view.Snapshot().Repetitions.Width
		assert.GreaterOrEqual(t, w, prev)
		assert.GreaterOrEqual(t, w, progress.MinWidth)
		assert.LessOrEqual(t, w, progress.MaxWidth)
		prev = w
	}
	assert.Equal(t, progress.MaxWidth, prev)
}

func TestController_repetitionsNeverGoBackwards(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 1}, protocol.ExerciseStart{RepetitionsTarget: 10})

	h.dispatch(repetitions(4), repetitions(2))
	assert.Equal(t, "4 / 10", h.view.Snapshot().Repetitions.Label)
	assert.Equal(t, 4, h.c.Status().Exercise.RepetitionsDone)

	h.dispatch(protocol.ExerciseStart{RepetitionsTarget: 5}, repetitions(1))
	assert.Equal(t, "1 / 5", h.view.Snapshot().Repetitions.Label)
}

func TestController_zeroTarget(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 0}, protocol.ExerciseStart{RepetitionsTarget: 0})

	assert.NotPanics(t, func() { h.dispatch(repetitions(3)) })
	assert.Equal(t, progress.MinWidth, h.view.Snapshot().Repetitions.Width)

	h.dispatch(protocol.ExerciseEnd{})
	h.sched.Advance(testTimings.ProgressDelay)
	assert.Equal(t, progress.MinWidth, h.view.Snapshot().Session.Width)
}

func TestController_ordinalBeyondCountClamped(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 1})
	h.dispatch(protocol.ExerciseStart{}, protocol.ExerciseEnd{}, protocol.ExerciseStart{}, protocol.ExerciseEnd{})
	h.sched.Advance(testTimings.ProgressDelay)

	assert.Equal(t, 2, h.c.Status().Session.ExerciseOrdinal)
	assert.Equal(t, progress.MaxWidth, h.view.Snapshot().Session.Width)
}

func TestController_widgets(t *testing.T) {
	h := newHarness(t)
	set := widget.Set{widget.Circle{Position: widget.Point{X: 1, Y: 2}}}

	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Widgets: &set}})
	require.Len(t, h.widgets.sets, 1)
	assert.Equal(t, set, h.widgets.sets[0])

	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Help: protocol.Ptr("x")}})
	h.dispatch(repetitions(1))
	assert.Len(t, h.widgets.sets, 1, "updates without widgets leave the set alone")

	empty := widget.Set{}
	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Widgets: &empty}})
	require.Len(t, h.widgets.sets, 2)
	assert.Empty(t, h.widgets.sets[1])
}

func TestController_frames(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseUpdate{Frame: protocol.Frame{1, 2, 3}}, repetitions(1))
	assert.Equal(t, [][]byte{{1, 2, 3}}, h.frames.frames)
}

func TestController_emptyFrameStillDelivered(t *testing.T) {
	h := newHarness(t)
	msg, err := protocol.Decode([]byte(`{"type":"ExerciseUpdate","frame":[]}`))
	require.NoError(t, err)
	h.dispatch(msg)
	require.Len(t, h.frames.frames, 1)
	assert.Empty(t, h.frames.frames[0])
}

func TestController_nilFrameSinkAndJournal(t *testing.T) {
	sched := eventloop.NewManual()
	log := logger.Discard()
	c := NewController(Deps{
		View:      NewViewState(),
		Video:     media.NewChannel(media.Video, &fakePlayer{}, sched, log, nil),
		Audio:     media.NewChannel(media.Audio, &fakePlayer{}, sched, log, nil),
		Widgets:   &widgetRecorder{},
		Scheduler: sched,
		Timings:   testTimings,
		Log:       log,
	})
	assert.NotPanics(t, func() {
		c.Dispatch(protocol.SessionStart{ExercisesCount: 1})
		c.Dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e")})
		c.Dispatch(protocol.ExerciseUpdate{Frame: protocol.Frame{0xff}, Repetitions: protocol.Ptr(1)})
		c.Dispatch(protocol.ExerciseEnd{})
		c.Dispatch(protocol.SessionEnd{})
	})
}

func TestController_audioNullStops(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1")}, audioCue("a.mp3"))
	h.sched.Advance(testTimings.AudioDelay)
	require.True(t, h.audioCh.State().Playing)

	var none *string
	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Audio: protocol.Some(none)}})
	assert.Equal(t, media.State{}, h.audioCh.State())
	assert.Equal(t, 1, h.audio.stops)
}

func TestController_audioAbsentLeavesChannel(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1")}, audioCue("a.mp3"))
	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Help: protocol.Ptr("h")}})

	assert.Equal(t, media.State{Source: "exercises/e1/audio/a.mp3", Pending: true}, h.audioCh.State())
}

func TestController_audioWithoutExerciseID(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseStart{RepetitionsTarget: 3}, audioCue("a.mp3"))
	h.sched.Advance(time.Minute)

	assert.Empty(t, h.audio.plays)
	assert.Equal(t, media.State{}, h.audioCh.State())
}

func TestController_exerciseEndCancelsPendingAudio(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1")}, audioCue("a.mp3"))
	h.sched.Advance(time.Second)
	h.dispatch(protocol.ExerciseEnd{})
	h.sched.Advance(time.Minute)

	assert.Empty(t, h.audio.plays)
}

func TestController_sameVideoNotRestarted(t *testing.T) {
	h := newHarness(t)
	h.dispatch(
		protocol.SessionStart{ExercisesCount: 3},
		protocol.ExerciseStart{ExerciseID: protocol.Ptr("squat")},
		protocol.ExerciseEnd{},
		protocol.ExerciseStart{ExerciseID: protocol.Ptr("squat")},
	)
	assert.Equal(t, []string{"exercises/squat/reference.mp4"}, h.video.plays)
	assert.Equal(t, 0, h.video.stops)

	h.dispatch(protocol.ExerciseEnd{}, protocol.ExerciseStart{ExerciseID: protocol.Ptr("lunge")})
	assert.Equal(t, []string{"exercises/squat/reference.mp4", "exercises/lunge/reference.mp4"}, h.video.plays)
	assert.Equal(t, 1, h.video.stops)
}

func TestController_exerciseStartWithoutIDKeepsVideo(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1")}, protocol.ExerciseStart{RepetitionsTarget: 2})

	assert.Equal(t, "exercises/e1/reference.mp4", h.videoCh.State().Source)
	assert.Len(t, h.video.plays, 1)
	assert.Equal(t, 2, h.c.Status().Session.ExerciseOrdinal)
}

func TestController_repeatedExerciseEndRestartsTimers(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 2}, protocol.ExerciseStart{}, protocol.ExerciseEnd{})

	h.sched.Advance(500 * time.Millisecond)
	h.dispatch(protocol.ExerciseStart{}, protocol.ExerciseEnd{})
	assert.Equal(t, 2, h.sched.Pending(), "previous hide and reveal cancelled")

	// The first pair would have fired at 1000 and 2500.
	h.sched.Advance(999 * time.Millisecond)
	assert.Equal(t, progress.MinWidth, h.view.Snapshot().Session.Width)
	h.sched.Advance(time.Millisecond)
	assert.Equal(t, progress.MaxWidth, h.view.Snapshot().Session.Width)

	h.sched.Advance(1000 * time.Millisecond)
	assert.True(t, h.view.Snapshot().Transition.Visible)
	h.sched.Advance(500 * time.Millisecond)
	assert.False(t, h.view.Snapshot().Transition.Visible)
}

func TestController_transitionStateTracking(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseEnd{})
	assert.Equal(t, Homepage, h.c.State(), "end without exercise leaves the state alone")
	assert.True(t, h.view.Snapshot().Transition.Visible)

	h.dispatch(protocol.SessionStart{ExercisesCount: 2}, protocol.ExerciseStart{}, protocol.ExerciseEnd{})
	assert.Equal(t, TransitionOverlay, h.c.State())

	h.sched.Advance(testTimings.OverlayDuration)
	assert.Equal(t, TransitionOverlay, h.c.State(), "hiding the overlay is visual only")

	h.dispatch(protocol.ExerciseStart{})
	assert.Equal(t, ExerciseActive, h.c.State())

	expected := `
# HELP coach_session_state Current session state (0 homepage, 1 session active, 2 exercise active, 3 transition overlay)
# TYPE coach_session_state gauge
coach_session_state 2
`
	assert.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected), "coach_session_state"))
}

func TestController_sessionStartResetsOrdinal(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{ExercisesCount: 2}, protocol.ExerciseStart{}, protocol.ExerciseStart{}, protocol.SessionEnd{})
	assert.Equal(t, 2, h.c.Status().Session.ExerciseOrdinal, "session end keeps the counters")

	h.dispatch(protocol.SessionStart{ExercisesCount: 4, ExerciseIDs: []string{"a", "b"}, FrameRate: 30})
	st := h.c.Status()
	assert.Equal(t, 0, st.Session.ExerciseOrdinal)
	assert.Equal(t, 4, st.Session.ExercisesCount)
	assert.Equal(t, []string{"a", "b"}, st.Session.ExerciseIDs)
	assert.Equal(t, 30, st.Session.FrameRate)
	assert.Equal(t, SessionActive.String(), st.State)
}

func TestController_help(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{Help: protocol.Ptr("Keep your back straight")}})
	assert.Equal(t, "Keep your back straight", h.view.Snapshot().Help)

	h.dispatch(protocol.ExerciseUpdate{Metadata: &protocol.Metadata{}})
	assert.Equal(t, "Keep your back straight", h.view.Snapshot().Help)
}

func TestController_journal(t *testing.T) {
	h := newHarness(t)
	h.dispatch(
		protocol.SessionStart{ExercisesCount: 2},
		protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1"), RepetitionsTarget: 5},
		repetitions(3),
		protocol.ExerciseEnd{},
		protocol.SessionEnd{},
	)
	assert.Equal(t, []string{
		"session_started 2",
		"exercise_started 1 e1 5",
		"repetitions 3",
		"exercise_ended",
		"session_ended",
	}, h.journal.calls)
}

// blockedStore holds every write until release is closed.
type blockedStore struct {
	*journal.InMemoryStore
	release chan struct{}
}

func (s blockedStore) CreateRun(ctx context.Context, run journal.Run) error {
	<-s.release
	return s.InMemoryStore.CreateRun(ctx, run)
}

func (s blockedStore) PutExercise(ctx context.Context, rec journal.ExerciseRecord) error {
	<-s.release
	return s.InMemoryStore.PutExercise(ctx, rec)
}

func TestController_journalWritesDoNotBlockDispatch(t *testing.T) {
	store := blockedStore{InMemoryStore: journal.NewInMemoryStore(), release: make(chan struct{})}
	rec := journal.NewRecorder(store, logger.Discard(), nil)
	sched := eventloop.NewManual()
	log := logger.Discard()
	c := NewController(Deps{
		View:      NewViewState(),
		Video:     media.NewChannel(media.Video, &fakePlayer{}, sched, log, nil),
		Audio:     media.NewChannel(media.Audio, &fakePlayer{}, sched, log, nil),
		Widgets:   &widgetRecorder{},
		Journal:   rec,
		Scheduler: sched,
		Timings:   testTimings,
		Log:       log,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Dispatch(protocol.SessionStart{ExercisesCount: 1})
		c.Dispatch(protocol.ExerciseStart{ExerciseID: protocol.Ptr("e1"), RepetitionsTarget: 5})
		c.Dispatch(repetitions(3))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch waited on a journal write")
	}
	assert.Equal(t, ExerciseActive, c.State())

	close(store.release)
	rec.Close()

	id, ok := rec.CurrentRun()
	require.True(t, ok)
	exercises, err := store.ListExercises(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, 3, exercises[0].RepetitionsDone)
}

func TestController_countsEvents(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.SessionStart{}, repetitions(1), repetitions(2))

	n, err := testutil.GatherAndCount(h.metrics.Registry(), "coach_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per message type")
}
