// Package source connects to the coaching engine and delivers its decoded
// messages in arrival order.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coach-client/internal/platform/metrics"
	"coach-client/internal/protocol"

	"github.com/coder/websocket"
)

// ErrClosed is returned by Run once the reconnect budget is spent.
var ErrClosed = errors.New("event source closed")

// DefaultReadLimit fits an update carrying a full-resolution JPEG frame
// encoded as a JSON number array.
const DefaultReadLimit = 32 << 20

// Sink receives each decoded message. It is called from the Run goroutine
// and must not block for long.
type Sink func(protocol.Message)

// Options configures a WebSocket source.
type Options struct {
	URL string
	// ReconnectAttempts is the number of consecutive failed connections
	// tolerated before Run gives up. A connection that was established
	// resets the count.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReadLimit         int64
}

// WebSocket is the engine event source.
type WebSocket struct {
	opts    Options
	sink    Sink
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewWebSocket returns a source delivering to sink. m may be nil.
func NewWebSocket(opts Options, sink Sink, log *slog.Logger, m *metrics.Metrics) *WebSocket {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	return &WebSocket{opts: opts, sink: sink, log: log, metrics: m}
}

// Run connects and delivers messages until ctx is cancelled or the
// reconnect budget is exhausted.
func (s *WebSocket) Run(ctx context.Context) error {
	failures := 0
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			failures = 0
			s.log.Warn("engine connection lost", slog.String("error", err.Error()))
		} else {
			failures++
			s.log.Error("engine connection failed",
				slog.String("url", s.opts.URL),
				slog.Int("failures", failures),
				slog.String("error", err.Error()))
		}
		if failures > s.opts.ReconnectAttempts {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.ReconnectDelay):
		}
		s.metrics.IncReconnects()
		s.log.Info("reconnecting to engine", slog.String("url", s.opts.URL))
	}
}

// session runs one connection. It reports whether the dial succeeded and
// the error that ended the connection.
func (s *WebSocket) session(ctx context.Context) (bool, error) {
	conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", s.opts.URL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.opts.ReadLimit)
	s.log.Info("connected to engine", slog.String("url", s.opts.URL))

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return true, errors.New("engine closed the connection")
			}
			return true, fmt.Errorf("reading: %w", err)
		}
		s.deliver(data)
	}
}

func (s *WebSocket) deliver(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.metrics.IncIgnored()
		level := slog.LevelWarn
		if errors.Is(err, protocol.ErrUnknownType) {
			level = slog.LevelDebug
		}
		s.log.Log(context.Background(), level, "message dropped",
			slog.String("error", err.Error()),
			slog.Int("size", len(data)))
		return
	}
	s.sink(msg)
}
