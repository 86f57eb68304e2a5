package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
	_ "golang.org/x/image/webp"

	"coach-client/internal/widget"
)

// maxFrameScale bounds each dimension of an incoming frame to this multiple
// of the surface's.
const maxFrameScale = 4

// ErrFrameSize is returned for frames whose declared dimensions are empty or
// far beyond the surface.
var ErrFrameSize = errors.New("frame dimensions out of range")

// StrokeColor is the colour of every widget stroke.
var StrokeColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Canvas is an in-memory RGBA surface. Camera frames submitted with
// DrawFrame become the background of the next composition; they are decoded
// on the render goroutine, so submitting never blocks event handling.
type Canvas struct {
	width, height int
	log           *slog.Logger

	// pending holds the newest undecoded frame; older ones are dropped.
	pending atomic.Pointer[[]byte]

	// background and work are only touched by the render goroutine.
	background *image.RGBA
	work       *image.RGBA

	mu    sync.RWMutex
	front *image.RGBA
}

// NewCanvas returns a black width x height canvas.
func NewCanvas(width, height int, log *slog.Logger) *Canvas {
	rect := image.Rect(0, 0, width, height)
	c := &Canvas{
		width:      width,
		height:     height,
		log:        log,
		background: image.NewRGBA(rect),
		work:       image.NewRGBA(rect),
		front:      image.NewRGBA(rect),
	}
	fillBlack(c.background)
	fillBlack(c.front)
	return c
}

func fillBlack(img *image.RGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// DrawFrame queues an encoded image (JPEG, PNG or WebP) as the new
// background. It copies data and returns immediately.
func (c *Canvas) DrawFrame(data []byte) {
	b := make([]byte, len(data))
	copy(b, data)
	c.pending.Store(&b)
}

// Size implements Surface.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Clear implements Surface. It first adopts any pending frame.
func (c *Canvas) Clear() {
	if p := c.pending.Swap(nil); p != nil {
		if err := c.decodeBackground(*p); err != nil {
			c.log.Warn("frame dropped", slog.String("error", err.Error()))
		}
	}
	copy(c.work.Pix, c.background.Pix)
}

func (c *Canvas) decodeBackground(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding frame header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > maxFrameScale*c.width || cfg.Height > maxFrameScale*c.height {
		return fmt.Errorf("%w: %dx%d", ErrFrameSize, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	xdraw.ApproxBiLinear.Scale(c.background, c.background.Bounds(), img, img.Bounds(), draw.Src, nil)
	return nil
}

// StrokeCircle implements Surface. The ring is rasterized into a local mask
// sized to its bounding box, then composited with clipping to the canvas.
func (c *Canvas) StrokeCircle(center widget.Point, radius float64) {
	outer := radius + StrokeWidth/2
	inner := math.Max(radius-StrokeWidth/2, 0)

	side := int(math.Ceil(2*outer)) + 2
	originX := int(math.Floor(center.X - outer - 1))
	originY := int(math.Floor(center.Y - outer - 1))
	cx := float32(center.X - float64(originX))
	cy := float32(center.Y - float64(originY))

	z := vector.NewRasterizer(side, side)
	z.DrawOp = draw.Src
	addCircle(z, cx, cy, float32(outer), 1)
	if inner > 0 {
		// Opposite winding cancels coverage inside the inner edge.
		addCircle(z, cx, cy, float32(inner), -1)
	}

	mask := image.NewAlpha(image.Rect(0, 0, side, side))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	dst := image.Rect(originX, originY, originX+side, originY+side)
	draw.DrawMask(c.work, dst, image.NewUniform(StrokeColor), image.Point{}, mask, image.Point{}, draw.Over)
}

// addCircle appends a closed circle of four cubic arcs. dir 1 winds one way
// in screen space, -1 the other.
func addCircle(z *vector.Rasterizer, cx, cy, r, dir float32) {
	const kappa = 0.5522847498
	k := kappa * r
	s := dir

	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+s*k, cx+k, cy+s*r, cx, cy+s*r)
	z.CubeTo(cx-k, cy+s*r, cx-r, cy+s*k, cx-r, cy)
	z.CubeTo(cx-r, cy-s*k, cx-k, cy-s*r, cx, cy-s*r)
	z.CubeTo(cx+k, cy-s*r, cx+r, cy-s*k, cx+r, cy)
	z.ClosePath()
}

// StrokeHLine implements Surface.
func (c *Canvas) StrokeHLine(y float64) {
	y0 := int(math.Round(y - StrokeWidth/2))
	c.fill(image.Rect(0, y0, c.width, y0+int(StrokeWidth)))
}

// StrokeVLine implements Surface.
func (c *Canvas) StrokeVLine(x float64) {
	x0 := int(math.Round(x - StrokeWidth/2))
	c.fill(image.Rect(x0, 0, x0+int(StrokeWidth), c.height))
}

func (c *Canvas) fill(r image.Rectangle) {
	draw.Draw(c.work, r, image.NewUniform(StrokeColor), image.Point{}, draw.Over)
}

// Present implements Surface.
func (c *Canvas) Present() {
	c.mu.Lock()
	copy(c.front.Pix, c.work.Pix)
	c.mu.Unlock()
}

// Snapshot returns a copy of the last presented composition.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := image.NewRGBA(c.front.Bounds())
	copy(out.Pix, c.front.Pix)
	return out
}

// WritePNG encodes the last presented composition to w.
func (c *Canvas) WritePNG(w io.Writer) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, c.Snapshot())
}
