// Package replay plays a scripted engine session to connecting clients, for
// kiosk setup and demos without a camera.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"coach-client/internal/protocol"

	"gopkg.in/yaml.v3"
)

// Step is one message sent After the previous one.
type Step struct {
	After   time.Duration  `yaml:"after"`
	Message map[string]any `yaml:"message"`
}

// Script is a recorded session.
type Script struct {
	// Loop restarts the script after the last step instead of closing.
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// Frame is a validated step ready to send.
type Frame struct {
	After   time.Duration
	Type    protocol.Type
	Payload []byte
}

// LoadScript reads a YAML script and validates every message against the
// protocol.
func LoadScript(path string) (Script, []Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, nil, fmt.Errorf("reading script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, nil, fmt.Errorf("parsing script: %w", err)
	}
	frames, err := s.Compile()
	if err != nil {
		return Script{}, nil, err
	}
	return s, frames, nil
}

// Compile decodes each step as the client would and re-encodes it.
func (s Script) Compile() ([]Frame, error) {
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	frames := make([]Frame, 0, len(s.Steps))
	for i, st := range s.Steps {
		if st.After < 0 {
			return nil, fmt.Errorf("step %d: negative delay", i)
		}
		raw, err := json.Marshal(st.Message)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		// Re-encoding drops fields the client would ignore.
		payload, err := protocol.Encode(msg)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		frames = append(frames, Frame{After: st.After, Type: msg.Type(), Payload: payload})
	}
	return frames, nil
}
