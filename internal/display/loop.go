package display

import (
	"sync/atomic"

	"github.com/overlaylabs/stagecast/internal/protocol"
	"github.com/overlaylabs/stagecast/internal/stream"
)

// loopEvent is either one control command or one audio fragment.
type loopEvent struct {
	cmd protocol.Command
	pcm []byte
}

type loop struct {
	channel    string
	configured bool
	session    *stream.Session
	events     chan loopEvent
	busy       atomic.Bool
}

// post hands an event to the channel goroutine without blocking the bus
// callback. Events are dropped when the queue is full.
func (l *loop) post(ev loopEvent) bool {
	select {
	case l.events <- ev:
		return true
	default:
		return false
	}
}
