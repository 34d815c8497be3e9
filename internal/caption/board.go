package caption

import (
	"strings"
	"time"

	"github.com/overlaylabs/stagecast/internal/chunker"
)

// CommittedSentence is a sentence whose wrapped layout is frozen. Its line
// breaks never change once committed, which is what keeps already-displayed
// text from jumping as later text streams in.
type CommittedSentence struct {
	Text  string
	Lines []Line
}

// Frame is the board's visible state at one instant.
type Frame struct {
	Lines   []Line
	Opacity float64
}

// Board turns the growing revealed-text stream into stable display lines:
// completed sentences are committed with frozen wrapping, the uncommitted
// remainder is re-wrapped every tick, and the oldest sentences are culled
// behind a fade once the display capacity is exceeded.
type Board struct {
	wrapper  *Wrapper
	capacity int
	fadeDur  time.Duration
	linger   time.Duration

	committed []CommittedSentence
	boundary  int // byte offset into the revealed text
	pending   []Line

	fading    bool
	fadeStart time.Time
	cullAfter bool // fade ends in eviction rather than a clear

	ended    bool
	lingerAt time.Time // audio completion time the linger is anchored to
	cleared  bool
}

func NewBoard(wrapper *Wrapper, capacity int, fadeDur, linger time.Duration) *Board {
	return &Board{
		wrapper:  wrapper,
		capacity: capacity,
		fadeDur:  fadeDur,
		linger:   linger,
	}
}

// Sync folds newly revealed text into the board: commits any finished
// sentences past the current boundary and re-wraps the remainder. Marker
// toggles count from position 0 of the revealed stream, so every slice is
// wrapped with the style in effect at its start offset.
func (b *Board) Sync(revealed string) {
	for {
		tail := revealed[b.boundary:]
		idx := chunker.Boundary(tail)
		if idx < 0 {
			break
		}
		raw := tail[:idx]
		sentence := strings.TrimSpace(raw)
		if sentence != "" {
			start := b.boundary + strings.Index(raw, sentence)
			b.committed = append(b.committed, CommittedSentence{
				Text:  sentence,
				Lines: b.wrapper.WrapCachedFrom(sentence, StyleAt(revealed, start)),
			})
		}
		b.boundary += idx
		for b.boundary < len(revealed) {
			c := revealed[b.boundary]
			if c != ' ' && c != '\n' {
				break
			}
			b.boundary++
		}
	}
	rest := revealed[b.boundary:]
	pending := strings.TrimSpace(rest)
	b.pending = nil
	if pending != "" {
		start := b.boundary + strings.Index(rest, pending)
		b.pending = b.wrapper.WrapFrom(pending, StyleAt(revealed, start))
	}
}

// CommitTail commits whatever uncommitted text remains, terminal punctuation
// or not. Used when the text stream ends.
func (b *Board) CommitTail(revealed string) {
	rest := revealed[b.boundary:]
	tail := strings.TrimSpace(rest)
	if tail != "" {
		start := b.boundary + strings.Index(rest, tail)
		b.committed = append(b.committed, CommittedSentence{
			Text:  tail,
			Lines: b.wrapper.WrapCachedFrom(tail, StyleAt(revealed, start)),
		})
	}
	b.boundary = len(revealed)
	b.pending = nil
}

func (b *Board) committedLineCount() int {
	n := 0
	for _, s := range b.committed {
		n += len(s.Lines)
	}
	return n
}

// Committed returns the committed sentences, oldest first.
func (b *Board) Committed() []CommittedSentence { return b.committed }

// Tick drives fade, cull and linger timers. Call once per update tick.
func (b *Board) Tick(now time.Time) {
	if b.cleared {
		return
	}

	if b.fading {
		if now.Sub(b.fadeStart) >= b.fadeDur {
			b.fading = false
			if b.cullAfter {
				b.cull()
			} else {
				b.clear()
			}
		}
		return
	}

	if b.ended {
		if now.Sub(b.lingerAt) >= b.linger {
			b.fading = true
			b.fadeStart = now
			b.cullAfter = false
		}
		return
	}

	if b.overCapacity() && len(b.committed) > 0 {
		b.fading = true
		b.fadeStart = now
		b.cullAfter = true
	}
}

func (b *Board) overCapacity() bool {
	return b.committedLineCount()+len(b.pending) > b.capacity
}

// cull evicts whole oldest sentences, never partial lines, until the block
// fits again, then restores full opacity.
func (b *Board) cull() {
	for b.overCapacity() && len(b.committed) > 0 {
		b.committed = b.committed[1:]
	}
}

// EndSession starts the linger countdown, anchored to when the audio
// actually finished rather than when the end message arrived.
func (b *Board) EndSession(audioDoneAt time.Time) {
	if b.ended {
		return
	}
	b.ended = true
	b.lingerAt = audioDoneAt
}

// Clear wipes all display state immediately, with no fade.
func (b *Board) Clear() {
	b.clear()
}

func (b *Board) clear() {
	b.committed = nil
	b.pending = nil
	b.boundary = 0
	b.fading = false
	b.ended = false
	b.cleared = true
}

// Cleared reports whether the end-of-session sequence has finished.
func (b *Board) Cleared() bool { return b.cleared }

// Snapshot returns the lines currently visible and the block opacity.
func (b *Board) Snapshot(now time.Time) Frame {
	if b.cleared {
		return Frame{Opacity: 0}
	}
	var lines []Line
	for _, s := range b.committed {
		lines = append(lines, s.Lines...)
	}
	lines = append(lines, b.pending...)

	opacity := 1.0
	if b.fading && b.fadeDur > 0 {
		frac := float64(now.Sub(b.fadeStart)) / float64(b.fadeDur)
		if frac > 1 {
			frac = 1
		}
		if frac < 0 {
			frac = 0
		}
		opacity = 1 - frac
	}
	return Frame{Lines: lines, Opacity: opacity}
}
