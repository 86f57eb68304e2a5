// Package widget models the graphical primitives the coaching engine asks the
// client to draw over the camera feed, and the coordinate remapping from the
// engine's logical spaces onto a presentation surface.
package widget

// Kind names a widget variant as it appears on the wire.
type Kind string

const (
	KindCircle  Kind = "Circle"
	KindHLine   Kind = "HLine"
	KindVLine   Kind = "VLine"
	KindSegment Kind = "Segment"
	KindArc     Kind = "Arc"
)

// Point is a 2D coordinate in some logical space.
type Point struct {
	X, Y float64
}

// Widget is one drawable primitive. The set of implementations is closed.
type Widget interface {
	Kind() Kind
	isWidget()
}

// Circle is a small ring centred at Position, in point-widget space.
type Circle struct {
	Position Point
}

// HLine is a full-width horizontal line at Y, in line-widget space.
type HLine struct {
	Y float64
}

// VLine is a full-height vertical line at X, in line-widget space.
type VLine struct {
	X float64
}

// Segment is decoded but never drawn.
type Segment struct {
	From, To Point
}

// Arc is decoded but never drawn.
type Arc struct {
	Center   Point
	Radius   float64
	From, To float64
}

// Unknown holds the place of a widget whose variant is unrecognized or whose
// fields could not be decoded. Renderers skip it.
type Unknown struct {
	Name string
}

func (Circle) Kind() Kind  { return KindCircle }
func (HLine) Kind() Kind   { return KindHLine }
func (VLine) Kind() Kind   { return KindVLine }
func (Segment) Kind() Kind { return KindSegment }
func (Arc) Kind() Kind     { return KindArc }
func (u Unknown) Kind() Kind {
	return Kind(u.Name)
}

func (Circle) isWidget()  {}
func (HLine) isWidget()   {}
func (VLine) isWidget()   {}
func (Segment) isWidget() {}
func (Arc) isWidget()     {}
func (Unknown) isWidget() {}

// Set is an ordered widget collection. A Set is replaced wholesale, never
// edited in place once published.
type Set []Widget

// Clone returns an independent copy of s. A nil Set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}
