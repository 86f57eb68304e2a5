package coach

import (
	"sync"

	"coach-client/internal/progress"
)

// View receives every presentation change the controller makes. Calls come
// from the controller's execution context, one at a time.
type View interface {
	ShowHomepage()
	HideHomepage()
	SetExerciseCounter(text string)
	SetRepetitions(bar progress.Bar)
	SetSessionProgress(bar progress.Bar)
	ShowTransition(text string)
	HideTransition()
	SetHelp(text string)
}

// Transition is the between-exercises overlay.
type Transition struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// ViewSnapshot is what a View shows at one instant.
type ViewSnapshot struct {
	HomepageVisible bool         `json:"homepage_visible"`
	ExerciseCounter string       `json:"exercise_counter"`
	Repetitions     progress.Bar `json:"repetitions"`
	Session         progress.Bar `json:"session"`
	Transition      Transition   `json:"transition"`
	Help            string       `json:"help"`
}

// ViewState is a View kept in memory, read back through Snapshot by the
// status surface.
type ViewState struct {
	mu   sync.RWMutex
	snap ViewSnapshot
}

// NewViewState returns a view showing the homepage with empty bars.
func NewViewState() *ViewState {
	return &ViewState{snap: ViewSnapshot{
		HomepageVisible: true,
		Repetitions:     progress.Bar{Width: progress.MinWidth},
		Session:         progress.Bar{Width: progress.MinWidth},
	}}
}

func (v *ViewState) ShowHomepage() { v.update(func(s *ViewSnapshot) { s.HomepageVisible = true }) }
func (v *ViewState) HideHomepage() { v.update(func(s *ViewSnapshot) { s.HomepageVisible = false }) }

func (v *ViewState) SetExerciseCounter(text string) {
	v.update(func(s *ViewSnapshot) { s.ExerciseCounter = text })
}

func (v *ViewState) SetRepetitions(bar progress.Bar) {
	v.update(func(s *ViewSnapshot) { s.Repetitions = bar })
}

func (v *ViewState) SetSessionProgress(bar progress.Bar) {
	v.update(func(s *ViewSnapshot) { s.Session = bar })
}

func (v *ViewState) ShowTransition(text string) {
	v.update(func(s *ViewSnapshot) { s.Transition = Transition{Text: text, Visible: true} })
}

// HideTransition hides the overlay and keeps its last text.
func (v *ViewState) HideTransition() {
	v.update(func(s *ViewSnapshot) { s.Transition.Visible = false })
}

func (v *ViewState) SetHelp(text string) { v.update(func(s *ViewSnapshot) { s.Help = text }) }

// Snapshot returns a copy of the current view.
func (v *ViewState) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

func (v *ViewState) update(fn func(*ViewSnapshot)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.snap)
}
