// Package progress computes the widths and labels of the two progress bars.
package progress

import "fmt"

const (
	// MinWidth is the percentage a bar shows before any progress, so it is
	// always visible.
	MinWidth = 10.0
	// MaxWidth is the full-bar percentage.
	MaxWidth = 100.0
)

// Ratio returns done/target clamped to [0, 1]. A non-positive target yields 0.
func Ratio(done, target int) float64 {
	if target <= 0 || done <= 0 {
		return 0
	}
	r := float64(done) / float64(target)
	if r > 1 {
		return 1
	}
	return r
}

// Width maps done/target onto a bar width percentage in [MinWidth, MaxWidth].
func Width(done, target int) float64 {
	return MinWidth + (MaxWidth-MinWidth)*Ratio(done, target)
}

// RepetitionLabel formats the repetition counter shown next to its bar.
func RepetitionLabel(done, target int) string {
	return fmt.Sprintf("%d / %d", done, target)
}

// ExerciseCounter formats the current exercise ordinal.
func ExerciseCounter(ordinal int) string {
	return fmt.Sprintf("Esercizio n. %d", ordinal)
}

// Bar is the rendered state of one progress bar.
type Bar struct {
	Width float64 `json:"width"`
	Label string  `json:"label,omitempty"`
}

// Repetitions returns the repetition bar for done of target.
func Repetitions(done, target int) Bar {
	return Bar{Width: Width(done, target), Label: RepetitionLabel(done, target)}
}

// Session returns the session bar for the given exercise ordinal.
func Session(ordinal, exercisesCount int) Bar {
	return Bar{Width: Width(ordinal, exercisesCount)}
}
