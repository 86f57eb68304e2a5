package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"coach-client/internal/widget"
)

var (
	// ErrMalformed is returned for payloads that are not valid JSON objects
	// or whose fields have the wrong shape.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType is returned for well-formed payloads whose "type" is
	// not one of the known variants.
	ErrUnknownType = errors.New("unknown message type")
)

type envelope struct {
	Type Type `json:"type"`
}

type wireSessionStart struct {
	Type           Type     `json:"type"`
	ExercisesCount int      `json:"exercises_count"`
	ExerciseIDs    []string `json:"exercise_ids,omitempty"`
	FrameRate      int      `json:"frame_rate,omitempty"`
	Resolution     *[2]int  `json:"resolution,omitempty"`
}

type wireExerciseStart struct {
	Type              Type    `json:"type"`
	ExerciseID        *string `json:"exercise_id,omitempty"`
	RepetitionsTarget int     `json:"repetitions_target"`
}

type wireMetadata struct {
	Help    *string           `json:"help,omitempty"`
	Widgets *widget.Set       `json:"widgets,omitempty"`
	Audio   Optional[*string] `json:"audio,omitzero"`
}

type wireExerciseUpdate struct {
	Type        Type          `json:"type"`
	Frame       Frame         `json:"frame,omitempty"`
	Repetitions *int          `json:"repetitions,omitempty"`
	Metadata    *wireMetadata `json:"metadata,omitempty"`
}

// Decode parses one wire payload. The error wraps ErrMalformed or
// ErrUnknownType; callers drop the payload and keep going either way.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeSessionStart:
		var w wireSessionStart
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if w.ExercisesCount < 0 {
			return nil, fmt.Errorf("%w: negative exercises_count", ErrMalformed)
		}
		return SessionStart{
			ExercisesCount: w.ExercisesCount,
			ExerciseIDs:    w.ExerciseIDs,
			FrameRate:      w.FrameRate,
			Resolution:     w.Resolution,
		}, nil

	case TypeExerciseStart:
		var w wireExerciseStart
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if w.RepetitionsTarget < 0 {
			return nil, fmt.Errorf("%w: negative repetitions_target", ErrMalformed)
		}
		return ExerciseStart{ExerciseID: w.ExerciseID, RepetitionsTarget: w.RepetitionsTarget}, nil

	case TypeExerciseUpdate:
		var w wireExerciseUpdate
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if w.Repetitions != nil && *w.Repetitions < 0 {
			return nil, fmt.Errorf("%w: negative repetitions", ErrMalformed)
		}
		msg := ExerciseUpdate{Frame: w.Frame, Repetitions: w.Repetitions}
		if w.Metadata != nil {
			msg.Metadata = &Metadata{
				Help:    w.Metadata.Help,
				Widgets: w.Metadata.Widgets,
				Audio:   w.Metadata.Audio,
			}
		}
		return msg, nil

	case TypeExerciseEnd:
		return ExerciseEnd{}, nil

	case TypeSessionEnd:
		return SessionEnd{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

// Encode serializes msg in the wire format. The client never sends; this
// backs the replay tool and tests.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case SessionStart:
		return json.Marshal(wireSessionStart{
			Type:           m.Type(),
			ExercisesCount: m.ExercisesCount,
			ExerciseIDs:    m.ExerciseIDs,
			FrameRate:      m.FrameRate,
			Resolution:     m.Resolution,
		})
	case ExerciseStart:
		return json.Marshal(wireExerciseStart{
			Type:              m.Type(),
			ExerciseID:        m.ExerciseID,
			RepetitionsTarget: m.RepetitionsTarget,
		})
	case ExerciseUpdate:
		w := wireExerciseUpdate{Type: m.Type(), Frame: m.Frame, Repetitions: m.Repetitions}
		if m.Metadata != nil {
			w.Metadata = &wireMetadata{Help: m.Metadata.Help, Widgets: m.Metadata.Widgets, Audio: m.Metadata.Audio}
		}
		return json.Marshal(w)
	case ExerciseEnd, SessionEnd:
		return json.Marshal(envelope{Type: m.Type()})
	}
	return nil, fmt.Errorf("encode: unsupported message %T", msg)
}
