package journal

import (
	"time"

	"github.com/google/uuid"
)

// Run is one coaching session from SessionStart to SessionEnd.
type Run struct {
	ID               uuid.UUID  `json:"id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	ExercisesPlanned int        `json:"exercises_planned"`
}

// ExerciseRecord is one exercise of a run, keyed by its ordinal.
type ExerciseRecord struct {
	RunID             uuid.UUID  `json:"run_id"`
	Ordinal           int        `json:"ordinal"`
	ExerciseID        string     `json:"exercise_id,omitempty"`
	RepetitionsTarget int        `json:"repetitions_target"`
	RepetitionsDone   int        `json:"repetitions_done"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}
