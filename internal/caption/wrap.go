package caption

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-runewidth"
)

// Line is one display row of styled spans, fit to a maximum cell width.
type Line struct {
	Spans []Span
}

// Width returns the line's display width in cells.
func (l Line) Width() int {
	w := 0
	for _, s := range l.Spans {
		w += runewidth.StringWidth(s.Text)
	}
	return w
}

// Text returns the line's visible text without style information.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

type styledRune struct {
	r     rune
	style Style
}

// Wrapper wraps marker-annotated text into lines of at most width cells,
// breaking at word boundaries and preserving styles across breaks. Committed
// sentences never change, so their wrapped form is memoized.
type Wrapper struct {
	width int
	cache *lru.Cache[string, []Line]
}

func NewWrapper(width int) *Wrapper {
	cache, _ := lru.New[string, []Line](256)
	return &Wrapper{width: width, cache: cache}
}

func (w *Wrapper) Width() int { return w.width }

// WrapCached wraps text, serving repeated requests for the same text from
// the memo. Only use for immutable text.
func (w *Wrapper) WrapCached(text string) []Line {
	return w.WrapCachedFrom(text, Style{})
}

// WrapCachedFrom is WrapCached seeded with the style in effect at the start
// of text. The memo key carries the entry style: the same sentence wraps
// differently under different carried-in toggles.
func (w *Wrapper) WrapCachedFrom(text string, enter Style) []Line {
	key := fmt.Sprintf("%d\x00%d\x00%s", w.width, styleBits(enter), text)
	if lines, ok := w.cache.Get(key); ok {
		return lines
	}
	lines := w.WrapFrom(text, enter)
	w.cache.Add(key, lines)
	return lines
}

func styleBits(s Style) int {
	bits := 0
	if s.Bold {
		bits |= 1
	}
	if s.Italic {
		bits |= 2
	}
	if s.Whisper {
		bits |= 4
	}
	if s.Quote {
		bits |= 8
	}
	return bits
}

// Wrap scans markers and wraps the resulting spans.
func (w *Wrapper) Wrap(text string) []Line {
	return w.WrapFrom(text, Style{})
}

// WrapFrom wraps a slice of the revealed stream, seeded with the style in
// effect at its start.
func (w *Wrapper) WrapFrom(text string, enter Style) []Line {
	spans, _ := ScanSpansFrom(text, enter)

	var flat []styledRune
	for _, span := range spans {
		for _, r := range span.Text {
			flat = append(flat, styledRune{r: r, style: span.Style})
		}
	}

	var (
		lines []Line
		line  []styledRune
		cells int
		// index into line of the rune after the last space, -1 if none
		lastBreak int = -1
	)

	emit := func(content []styledRune) {
		lines = append(lines, Line{Spans: compress(content)})
	}

	for _, sr := range flat {
		if sr.r == '\n' {
			emit(trimTrailingSpace(line))
			line = nil
			cells = 0
			lastBreak = -1
			continue
		}
		rw := runewidth.RuneWidth(sr.r)
		// A loop: the remainder carried past a break can itself be at
		// capacity, in which case it gets emitted too before sr lands.
		for cells+rw > w.width && cells > 0 {
			if lastBreak > 0 {
				emit(trimTrailingSpace(line[:lastBreak]))
				rest := trimLeadingSpace(line[lastBreak:])
				line = append([]styledRune(nil), rest...)
			} else {
				emit(line)
				line = nil
			}
			cells = 0
			for _, lr := range line {
				cells += runewidth.RuneWidth(lr.r)
			}
			lastBreak = -1
		}
		if sr.r == ' ' && cells == 0 && len(line) == 0 {
			continue // no leading spaces after a wrap
		}
		line = append(line, sr)
		cells += rw
		if sr.r == ' ' {
			lastBreak = len(line)
		}
	}
	if len(line) > 0 {
		emit(trimTrailingSpace(line))
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

func trimTrailingSpace(rs []styledRune) []styledRune {
	end := len(rs)
	for end > 0 && rs[end-1].r == ' ' {
		end--
	}
	return rs[:end]
}

func trimLeadingSpace(rs []styledRune) []styledRune {
	start := 0
	for start < len(rs) && rs[start].r == ' ' {
		start++
	}
	return rs[start:]
}

func compress(rs []styledRune) []Span {
	var (
		spans []Span
		cur   strings.Builder
		style Style
		open  bool
	)
	for _, sr := range rs {
		if !open {
			style = sr.style
			open = true
		} else if sr.style != style {
			spans = append(spans, Span{Text: cur.String(), Style: style})
			cur.Reset()
			style = sr.style
		}
		cur.WriteRune(sr.r)
	}
	if open && cur.Len() > 0 {
		spans = append(spans, Span{Text: cur.String(), Style: style})
	}
	return spans
}
