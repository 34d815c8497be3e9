package display

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/overlaylabs/stagecast/internal/protocol"
)

// BusSurface forwards rendered frames over the bus so overlay renderers can
// draw them. Frames are only published when the picture changes, not on
// every tick.
type BusSurface struct {
	conn   *nats.Conn
	logger *slog.Logger
	mu     sync.Mutex
	last   map[string]string
}

func NewBusSurface(conn *nats.Conn, logger *slog.Logger) *BusSurface {
	return &BusSurface{
		conn:   conn,
		logger: logger.With(slog.String("component", "surface")),
		last:   make(map[string]string),
	}
}

// Render publishes the frame to display.frames.<channel>.
func (s *BusSurface) Render(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Warn("failed to marshal frame", slog.String("error", err.Error()))
		return
	}
	key := string(data)
	s.mu.Lock()
	same := s.last[f.Channel] == key
	if !same {
		s.last[f.Channel] = key
	}
	s.mu.Unlock()
	if same {
		return
	}
	if err := s.conn.Publish(protocol.FrameSubject(f.Channel), data); err != nil {
		s.logger.Warn("failed to publish frame", slog.String("error", err.Error()))
	}
}
