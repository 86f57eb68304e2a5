package widget

// The engine emits point widgets in a 1280x720 space and line widgets in a
// 640x480 space. Both are kept as received; unifying them would move lines.
const (
	PointSpaceWidth  = 1280.0
	PointSpaceHeight = 720.0
	LineSpaceWidth   = 640.0
	LineSpaceHeight  = 480.0
)

// Remap scales logical widget coordinates onto a surface of the given size.
type Remap struct {
	Width, Height float64
}

// NewRemap returns a Remap for a width x height surface.
func NewRemap(width, height int) Remap {
	return Remap{Width: float64(width), Height: float64(height)}
}

// Point maps a point-widget coordinate.
func (r Remap) Point(p Point) Point {
	return Point{
		X: p.X / PointSpaceWidth * r.Width,
		Y: p.Y / PointSpaceHeight * r.Height,
	}
}

// LineX maps a VLine x coordinate.
func (r Remap) LineX(x float64) float64 {
	return x / LineSpaceWidth * r.Width
}

// LineY maps an HLine y coordinate.
func (r Remap) LineY(y float64) float64 {
	return y / LineSpaceHeight * r.Height
}
