package widget

import (
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes a wire widget array. Entries that are not objects,
// carry an unrecognized variant, or lack required fields become Unknown so
// array positions are preserved; they never fail the whole set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("widget set: %w", err)
	}
	out := make(Set, 0, len(raw))
	for _, r := range raw {
		out = append(out, Decode(r))
	}
	*s = out
	return nil
}

// Decode converts one wire object into a Widget, falling back to Unknown.
func Decode(data []byte) Widget {
	var head struct {
		Widget string `json:"widget"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Unknown{}
	}
	unknown := Unknown{Name: head.Widget}

	switch Kind(head.Widget) {
	case KindCircle:
		var w struct {
			Position *[2]float64 `json:"position"`
		}
		if json.Unmarshal(data, &w) != nil || w.Position == nil {
			return unknown
		}
		return Circle{Position: point(*w.Position)}

	case KindHLine:
		var w struct {
			Y *float64 `json:"y"`
		}
		if json.Unmarshal(data, &w) != nil || w.Y == nil {
			return unknown
		}
		return HLine{Y: *w.Y}

	case KindVLine:
		var w struct {
			X *float64 `json:"x"`
		}
		if json.Unmarshal(data, &w) != nil || w.X == nil {
			return unknown
		}
		return VLine{X: *w.X}

	case KindSegment:
		var w struct {
			From *[2]float64 `json:"from"`
			To   *[2]float64 `json:"to"`
		}
		if json.Unmarshal(data, &w) != nil || w.From == nil || w.To == nil {
			return unknown
		}
		return Segment{From: point(*w.From), To: point(*w.To)}

	case KindArc:
		var w struct {
			Center *[2]float64 `json:"center"`
			Radius float64     `json:"radius"`
			From   float64     `json:"from"`
			To     float64     `json:"to"`
		}
		if json.Unmarshal(data, &w) != nil || w.Center == nil {
			return unknown
		}
		return Arc{Center: point(*w.Center), Radius: w.Radius, From: w.From, To: w.To}
	}
	return unknown
}

func point(p [2]float64) Point {
	return Point{X: p[0], Y: p[1]}
}

// MarshalJSON encodes s in the wire shape Decode reads.
func (s Set) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, 0, len(s))
	for _, w := range s {
		out = append(out, encode(w))
	}
	return json.Marshal(out)
}

func encode(w Widget) map[string]any {
	m := map[string]any{"widget": string(w.Kind())}
	switch v := w.(type) {
	case Circle:
		m["position"] = [2]float64{v.Position.X, v.Position.Y}
	case HLine:
		m["y"] = v.Y
	case VLine:
		m["x"] = v.X
	case Segment:
		m["from"] = [2]float64{v.From.X, v.From.Y}
		m["to"] = [2]float64{v.To.X, v.To.Y}
	case Arc:
		m["center"] = [2]float64{v.Center.X, v.Center.Y}
		m["radius"] = v.Radius
		m["from"] = v.From
		m["to"] = v.To
	}
	return m
}
