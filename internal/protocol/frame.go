package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Frame is an encoded camera image (JPEG in practice). The engine serializes
// it as an array of byte values; a base64 string is accepted as well. A nil
// Frame means the update carried none.
type Frame []byte

// UnmarshalJSON accepts a number array, a base64 string or null.
func (f *Frame) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("frame: %w", err)
		}
		*f = b
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	b := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("frame: byte %d out of range: %d", i, n)
		}
		b[i] = byte(n)
	}
	*f = b
	return nil
}

// MarshalJSON encodes the frame as a base64 string, the compact form.
func (f Frame) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(f))
}
