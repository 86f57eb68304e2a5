// Package protocol defines the messages the coaching engine pushes to the
// client. Payloads are decoded once, at the transport boundary, into a closed
// set of variants; downstream code switches on the concrete type.
package protocol

import (
	"coach-client/internal/widget"
)

// Type is the wire discriminant carried in the "type" field.
type Type string

const (
	TypeSessionStart   Type = "SessionStart"
	TypeExerciseStart  Type = "ExerciseStart"
	TypeExerciseUpdate Type = "ExerciseUpdate"
	TypeExerciseEnd    Type = "ExerciseEnd"
	TypeSessionEnd     Type = "SessionEnd"
)

// Message is one decoded engine event.
type Message interface {
	Type() Type
	isMessage()
}

// SessionStart opens a coaching session.
type SessionStart struct {
	ExercisesCount int
	// Optional extras some engine builds send along.
	ExerciseIDs []string
	FrameRate   int
	Resolution  *[2]int
}

// ExerciseStart begins the next exercise of the session.
type ExerciseStart struct {
	// ExerciseID is nil when the engine omits it (or sends null).
	ExerciseID        *string
	RepetitionsTarget int
}

// ExerciseUpdate carries any combination of a camera frame, a repetition
// count and metadata. Each field is acted on only when present.
type ExerciseUpdate struct {
	Frame       Frame
	Repetitions *int
	Metadata    *Metadata
}

// Metadata is the engine's per-update presentation hints.
type Metadata struct {
	Help    *string
	Widgets *widget.Set
	// Audio distinguishes absent (Present false) from an explicit null
	// (Present true, Value nil), which means "no cue".
	Audio Optional[*string]
}

// ExerciseEnd closes the current exercise.
type ExerciseEnd struct{}

// SessionEnd closes the session and returns to the homepage.
type SessionEnd struct{}

func (SessionStart) Type() Type   { return TypeSessionStart }
func (ExerciseStart) Type() Type  { return TypeExerciseStart }
func (ExerciseUpdate) Type() Type { return TypeExerciseUpdate }
func (ExerciseEnd) Type() Type    { return TypeExerciseEnd }
func (SessionEnd) Type() Type     { return TypeSessionEnd }

func (SessionStart) isMessage()   {}
func (ExerciseStart) isMessage()  {}
func (ExerciseUpdate) isMessage() {}
func (ExerciseEnd) isMessage()    {}
func (SessionEnd) isMessage()     {}

// Ptr returns a pointer to v. Handy for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}
