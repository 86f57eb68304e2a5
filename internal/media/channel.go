// Package media keeps the reference video and the voice-cue audio in step
// with the session. Each line of playback is a Channel: it de-duplicates
// requests for the source already current, delays starts where asked, and
// guarantees at most one pending start and one live playback at a time.
package media

import (
	"log/slog"
	"sync"
	"time"

	"coach-client/internal/platform/eventloop"
	"coach-client/internal/platform/metrics"
)

// Player is the playback hardware path for one channel.
type Player interface {
	// Play starts src without blocking. An error means playback did not
	// start.
	Play(src string) error
	// Stop halts and unloads whatever is playing. Safe when idle.
	Stop()
}

// Channel names.
const (
	Video = "video"
	Audio = "audio"
)

// State is a point-in-time view of a Channel.
type State struct {
	Source  string `json:"source,omitempty"`
	Pending bool   `json:"pending"`
	Playing bool   `json:"playing"`
}

// Channel synchronizes one playback line. Methods may be called from any
// goroutine, but the client drives every channel from its event loop.
type Channel struct {
	name    string
	player  Player
	sched   eventloop.Scheduler
	log     *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
	// current is the source key requested most recently, set as soon as a
	// start is scheduled so duplicates inside the delay window are dropped.
	current *string
	pending eventloop.Timer
	playing bool
}

// NewChannel returns an idle channel. m may be nil.
func NewChannel(name string, player Player, sched eventloop.Scheduler, log *slog.Logger, m *metrics.Metrics) *Channel {
	return &Channel{
		name:    name,
		player:  player,
		sched:   sched,
		log:     log.With(slog.String("channel", name)),
		metrics: m,
	}
}

// RequestPlay makes src the channel's source, starting it after delay.
// A request for the source that is already current is dropped. A nil src
// stops the channel and leaves it idle.
func (c *Channel) RequestPlay(src *string, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sameKey(c.current, src) {
		c.metrics.IncPlaybackSuppressed(c.name)
		c.log.Debug("play request suppressed, source already current")
		return
	}

	// The old timer must be dead before current changes hands.
	c.stopLocked()
	if src == nil {
		c.log.Debug("channel cleared")
		return
	}

	key := *src
	c.current = &key
	if delay <= 0 {
		c.startLocked(key)
		return
	}

	var t eventloop.Timer
	t = c.sched.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending != t {
			return
		}
		c.pending = nil
		c.startLocked(key)
	})
	c.pending = t
	c.log.Debug("playback scheduled", slog.String("source", key), slog.Duration("delay", delay))
}

// Stop cancels a pending start, halts live playback and clears the source.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Ended reports that playback of src finished on its own. A nil err keeps
// src current so the same cue is not replayed; an error returns the channel
// to idle.
func (c *Channel) Ended(src string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || *c.current != src || !c.playing {
		return
	}
	c.playing = false
	if err != nil {
		c.metrics.IncPlaybackFailed(c.name)
		c.log.Warn("playback failed", slog.String("source", src), slog.String("error", err.Error()))
		c.current = nil
	}
}

// State returns a snapshot of the channel.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{Pending: c.pending != nil, Playing: c.playing}
	if c.current != nil {
		s.Source = *c.current
	}
	return s
}

// Current returns the current source key, if any.
func (c *Channel) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return *c.current, true
}

func (c *Channel) stopLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.playing {
		c.player.Stop()
		c.playing = false
	}
	c.current = nil
}

func (c *Channel) startLocked(key string) {
	if err := c.player.Play(key); err != nil {
		c.metrics.IncPlaybackFailed(c.name)
		c.log.Warn("playback failed", slog.String("source", key), slog.String("error", err.Error()))
		c.current = nil
		return
	}
	c.playing = true
	c.metrics.IncPlaybackStarted(c.name)
	c.log.Info("playback started", slog.String("source", key))
}

func sameKey(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
