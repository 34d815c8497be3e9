// Package producer drives display surfaces: it synthesizes speech, streams
// PCM and word timings over the bus, and records what each surface actually
// played.
package producer

import (
	"context"

	"github.com/overlaylabs/stagecast/internal/protocol"
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     string
}

// SynthChunk contains PCM data plus the word intervals it covers. Word
// timings are relative to the start of the chunk; the speaker rebases them
// onto the utterance timeline before publishing.
type SynthChunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Words      []protocol.TimedWord
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}
