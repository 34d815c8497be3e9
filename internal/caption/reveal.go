package caption

import "strings"

// WordTiming is one word's playback interval in seconds, relative to the
// session's audio-clock origin. Lists arrive monotonically non-decreasing in
// Start and are never sorted here.
type WordTiming struct {
	Word  string
	Start float64
	End   float64
}

// Reveal paces the caption text against the audio clock. With word timings
// it reveals word by word; without, it falls back to a fixed character rate.
// An instant-reveal override bypasses pacing entirely.
type Reveal struct {
	pauseThreshold float64
	charRate       float64
	instant        bool

	timed   bool
	timings []WordTiming
	cursor  int

	fallback      strings.Builder
	fallbackShown int

	buf strings.Builder
}

func NewReveal(pauseThreshold, charRate float64, instant bool) *Reveal {
	return &Reveal{
		pauseThreshold: pauseThreshold,
		charRate:       charRate,
		instant:        instant,
	}
}

// AddTimings appends a batch of word timings. The first batch switches the
// session into word-timed mode; buffered fallback text is abandoned at that
// point (word timing wins over text chunks).
func (r *Reveal) AddTimings(words []WordTiming) {
	r.timed = true
	r.timings = append(r.timings, words...)
}

// AddText buffers literal text for the fallback reveal. Dropped when the
// session is in word-timed mode; the caller may log the discard.
func (r *Reveal) AddText(text string) bool {
	if r.timed {
		return false
	}
	r.fallback.WriteString(text)
	return true
}

// Timed reports whether word-timing data has been received.
func (r *Reveal) Timed() bool { return r.timed }

// Timings returns the full word-timing list received so far.
func (r *Reveal) Timings() []WordTiming { return r.timings }

// Advance reveals everything due at elapsed seconds and reports whether any
// text became visible. For word-timed mode elapsed is measured from the
// audio-clock origin; for fallback mode, from when text streaming started.
func (r *Reveal) Advance(elapsed float64) bool {
	if r.timed {
		return r.advanceTimed(elapsed)
	}
	return r.advanceFallback(elapsed)
}

func (r *Reveal) advanceTimed(elapsed float64) bool {
	changed := false
	for r.cursor < len(r.timings) && r.timings[r.cursor].Start <= elapsed {
		word := r.timings[r.cursor]
		r.buf.WriteString(r.separator(word))
		r.buf.WriteString(word.Word)
		r.cursor++
		changed = true
	}
	return changed
}

// separator decides how the next word joins the revealed text: a line break
// after a long enough silence or a finished sentence, otherwise one space.
// Never two consecutive breaks.
func (r *Reveal) separator(word WordTiming) string {
	if r.cursor == 0 || r.buf.Len() == 0 {
		return ""
	}
	prev := r.timings[r.cursor-1]
	gap := word.Start - prev.End
	if gap >= r.pauseThreshold || endsWithSentencePunct(prev.Word) {
		if strings.HasSuffix(r.buf.String(), "\n") {
			return ""
		}
		return "\n"
	}
	return " "
}

func (r *Reveal) advanceFallback(elapsed float64) bool {
	text := []rune(r.fallback.String())
	target := len(text)
	if !r.instant {
		budget := int(elapsed * r.charRate)
		if budget < target {
			target = budget
		}
	}
	if target <= r.fallbackShown {
		return false
	}
	r.buf.WriteString(string(text[r.fallbackShown:target]))
	r.fallbackShown = target
	return true
}

// Text returns the revealed character stream, markers included.
func (r *Reveal) Text() string { return r.buf.String() }

// Done reports whether everything buffered so far has been revealed.
func (r *Reveal) Done() bool {
	if r.timed {
		return r.cursor >= len(r.timings)
	}
	return r.fallbackShown >= len([]rune(r.fallback.String()))
}
