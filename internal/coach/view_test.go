package coach

import (
	"testing"

	"coach-client/internal/progress"

	"github.com/stretchr/testify/assert"
)

func TestViewState_initial(t *testing.T) {
	v := NewViewState()
	snap := v.Snapshot()
	assert.True(t, snap.HomepageVisible)
	assert.Equal(t, progress.MinWidth, snap.Repetitions.Width)
	assert.Equal(t, progress.MinWidth, snap.Session.Width)
	assert.False(t, snap.Transition.Visible)
}

func TestViewState_transitionKeepsText(t *testing.T) {
	v := NewViewState()
	v.ShowTransition("Ottimo!")
	v.HideTransition()
	assert.Equal(t, Transition{Text: "Ottimo!"}, v.Snapshot().Transition)
}

func TestViewState_snapshotIsCopy(t *testing.T) {
	v := NewViewState()
	snap := v.Snapshot()
	v.SetHelp("later")
	assert.Empty(t, snap.Help)
	assert.Equal(t, "later", v.Snapshot().Help)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "homepage", Homepage.String())
	assert.Equal(t, "transition_overlay", TransitionOverlay.String())
	assert.Equal(t, "unknown", State(42).String())
}
