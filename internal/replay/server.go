package replay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Server sends the compiled script to every websocket client.
type Server struct {
	frames []Frame
	loop   bool
	log    *slog.Logger
}

// NewServer returns a Server for the compiled frames.
func NewServer(frames []Frame, loop bool, log *slog.Logger) *Server {
	return &Server{frames: frames, loop: loop, log: log}
}

// ServeHTTP upgrades the request and replays the script on it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	// Reads are never expected; CloseRead notices the client leaving.
	ctx := conn.CloseRead(r.Context())
	s.log.Info("client connected", slog.String("remote", r.RemoteAddr))

	for {
		if err := s.play(ctx, conn); err != nil {
			s.log.Info("client gone", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
			return
		}
		if !s.loop {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "script finished")
	s.log.Info("script finished", slog.String("remote", r.RemoteAddr))
}

func (s *Server) play(ctx context.Context, conn *websocket.Conn) error {
	for _, f := range s.frames {
		if f.After > 0 {
			t := time.NewTimer(f.After)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := conn.Write(ctx, websocket.MessageText, f.Payload); err != nil {
			return err
		}
		s.log.Debug("sent", slog.String("type", string(f.Type)))
	}
	return nil
}
