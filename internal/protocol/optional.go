package protocol

import "encoding/json"

// Optional records whether a JSON key was present at all, independently of
// its value. A present null leaves Value at its zero value with Present set.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key exists.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the value; pair it with omitzero to drop absent keys.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// IsZero reports absence, for the omitzero struct tag option.
func (o Optional[T]) IsZero() bool {
	return !o.Present
}
