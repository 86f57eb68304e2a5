package coach

// State is the session lifecycle position.
type State int

const (
	// Homepage is both the initial and the terminal state.
	Homepage State = iota
	SessionActive
	ExerciseActive
	// TransitionOverlay follows ExerciseEnd until the next exercise starts
	// or the session ends.
	TransitionOverlay
)

func (s State) String() string {
	switch s {
	case Homepage:
		return "homepage"
	case SessionActive:
		return "session_active"
	case ExerciseActive:
		return "exercise_active"
	case TransitionOverlay:
		return "transition_overlay"
	default:
		return "unknown"
	}
}
