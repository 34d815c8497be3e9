package producer

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/overlaylabs/stagecast/internal/protocol"
)

// Pacing constants for the mock voice. Word length drives duration so that
// reveal behavior is observable without a real synthesis backend.
const (
	mockWordBase    = 0.08 // seconds per word before length scaling
	mockPerRune     = 0.05
	mockWordGap     = 0.05
	mockSentenceGap = 0.40 // above the default pause threshold, forces line breaks
	mockToneHz      = 220.0
	mockAmplitude   = 0.2
)

type mockSynth struct {
	sampleRate int
	channels   int
	chunkMS    int
}

// NewMockSynth returns a deterministic synthesizer: a steady tone whose
// length and word timings derive purely from the input text.
func NewMockSynth(sampleRate, channels, chunkMS int) Synthesizer {
	if chunkMS <= 0 {
		chunkMS = 400
	}
	return &mockSynth{sampleRate: sampleRate, channels: channels, chunkMS: chunkMS}
}

// mockTimings lays the text's words on a timeline, pausing longer after
// sentence-final words.
func mockTimings(text string) []protocol.TimedWord {
	var words []protocol.TimedWord
	at := 0.0
	for _, w := range strings.Fields(text) {
		dur := mockWordBase + mockPerRune*float64(utf8.RuneCountInString(w))
		words = append(words, protocol.TimedWord{Word: w, Start: at, End: at + dur})
		at += dur
		if strings.ContainsRune(".!?", lastRune(w)) {
			at += mockSentenceGap
		} else {
			at += mockWordGap
		}
	}
	return words
}

func lastRune(s string) rune {
	r := rune(0)
	for _, c := range s {
		r = c
	}
	return r
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		timings := mockTimings(req.Text)
		total := 0.0
		if len(timings) > 0 {
			total = timings[len(timings)-1].End + 0.1
		}

		totalFrames := int(total * float64(m.sampleRate))
		chunkFrames := m.sampleRate * m.chunkMS / 1000
		if chunkFrames <= 0 {
			chunkFrames = 1
		}

		sequence := 0
		for offset := 0; offset < totalFrames || (offset == 0 && totalFrames == 0); offset += chunkFrames {
			n := chunkFrames
			if offset+n > totalFrames {
				n = totalFrames - offset
			}
			chunkStart := float64(offset) / float64(m.sampleRate)
			chunkEnd := float64(offset+n) / float64(m.sampleRate)

			chunk := SynthChunk{
				SessionID:  req.SessionID,
				Sequence:   sequence,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        m.tone(offset, n),
				Final:      offset+n >= totalFrames,
			}
			for _, w := range timings {
				if w.Start >= chunkStart && w.Start < chunkEnd {
					chunk.Words = append(chunk.Words, protocol.TimedWord{
						Word:  w.Word,
						Start: w.Start - chunkStart,
						End:   w.End - chunkStart,
					})
				}
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			sequence++
			if totalFrames == 0 {
				break
			}
		}
	}()

	return chunks, errs
}

// tone renders n frames of the carrier starting at frame offset, so chunk
// boundaries are phase-continuous.
func (m *mockSynth) tone(offset, n int) []byte {
	out := make([]byte, n*m.channels*2)
	for i := 0; i < n; i++ {
		t := float64(offset+i) / float64(m.sampleRate)
		sample := int16(mockAmplitude * math.MaxInt16 * math.Sin(2*math.Pi*mockToneHz*t))
		for c := 0; c < m.channels; c++ {
			binary.LittleEndian.PutUint16(out[(i*m.channels+c)*2:], uint16(sample))
		}
	}
	return out
}
