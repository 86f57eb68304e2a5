// Package overlay paints the current widget set over the live camera image.
// The render loop runs on its own ticker, independent of event arrival, and
// always reads the most recently published widget snapshot.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"coach-client/internal/platform/metrics"
	"coach-client/internal/widget"
)

// Stroke geometry shared by every surface.
const (
	CircleRadius = 10.0
	StrokeWidth  = 4.0
)

// Surface is the presentation target of one render iteration.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (width, height int)
	// Clear starts a new composition from the current background.
	Clear()
	StrokeCircle(center widget.Point, radius float64)
	// StrokeHLine draws a full-width horizontal line.
	StrokeHLine(y float64)
	// StrokeVLine draws a full-height vertical line.
	StrokeVLine(x float64)
	// Present publishes the composition.
	Present()
}

// Renderer owns the current widget set.
type Renderer struct {
	surface  Surface
	remap    widget.Remap
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	widgets atomic.Pointer[widget.Set]
}

// NewRenderer returns a Renderer drawing onto surface refreshRate times per
// second. m may be nil.
func NewRenderer(surface Surface, refreshRate int, log *slog.Logger, m *metrics.Metrics) *Renderer {
	if refreshRate <= 0 {
		refreshRate = 60
	}
	w, h := surface.Size()
	r := &Renderer{
		surface:  surface,
		remap:    widget.NewRemap(w, h),
		interval: time.Second / time.Duration(refreshRate),
		log:      log,
		metrics:  m,
	}
	empty := widget.Set{}
	r.widgets.Store(&empty)
	return r
}

// SetWidgets replaces the widget set wholesale. The renderer keeps its own
// copy, so the caller may reuse set afterwards.
func (r *Renderer) SetWidgets(set widget.Set) {
	snapshot := set.Clone()
	r.widgets.Store(&snapshot)
}

// Widgets returns the current snapshot. It must not be modified.
func (r *Renderer) Widgets() widget.Set {
	return *r.widgets.Load()
}

// Run renders until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("render loop started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("render loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RenderOnce()
		}
	}
}

// RenderOnce performs a single iteration. A failing draw is logged and the
// iteration abandoned; the loop is never affected.
func (r *Renderer) RenderOnce() {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("render iteration panicked", slog.String("panic", fmt.Sprint(p)))
		}
	}()

	set := r.Widgets()
	r.surface.Clear()
	for _, w := range set {
		switch v := w.(type) {
		case widget.Circle:
			r.surface.StrokeCircle(r.remap.Point(v.Position), CircleRadius)
		case widget.HLine:
			r.surface.StrokeHLine(r.remap.LineY(v.Y))
		case widget.VLine:
			r.surface.StrokeVLine(r.remap.LineX(v.X))
		}
	}
	r.surface.Present()
	r.metrics.IncRenderIterations()
}
