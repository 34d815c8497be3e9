package caption

import "strings"

// Style is the formatting state of a run of caption text. Flags toggle on
// marker boundaries; a repeated marker toggles the flag off again, there is
// no nesting count.
type Style struct {
	Bold    bool
	Italic  bool
	Whisper bool
	Quote   bool
}

// Span is a run of visible text sharing one style.
type Span struct {
	Text  string
	Style Style
}

// Inline markers: **bold**, *italic*, ^whisper^. A leading > marks the rest
// of that line as a quote. Markers never appear in unrevealed text, so toggle
// state is well defined at every offset of the revealed stream.
func ScanSpans(text string) []Span {
	spans, _ := ScanSpansFrom(text, Style{})
	return spans
}

// ScanSpansFrom scans a slice of the revealed stream with the toggle state
// already in effect at its start, and returns the state left at its end.
// A slice wrapped in isolation must be seeded this way, or a marker opened
// before the slice reads as its own closer and inverts the style.
func ScanSpansFrom(text string, enter Style) ([]Span, Style) {
	var (
		spans []Span
		cur   strings.Builder
	)
	style := enter
	flush := func() {
		if cur.Len() > 0 {
			spans = append(spans, Span{Text: cur.String(), Style: style})
			cur.Reset()
		}
	}

	runes := []rune(text)
	lineStart := true
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if lineStart && r == '>' {
			flush()
			style.Quote = true
			// swallow one following space
			if i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
			lineStart = false
			continue
		}
		lineStart = false

		switch r {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				flush()
				style.Bold = !style.Bold
				i++
			} else {
				flush()
				style.Italic = !style.Italic
			}
		case '^':
			flush()
			style.Whisper = !style.Whisper
		case '\n':
			flush()
			if style.Quote {
				style.Quote = false
			}
			spans = append(spans, Span{Text: "\n", Style: style})
			lineStart = true
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return spans, style
}

// StyleAt returns the toggle state in effect at a byte offset of the
// revealed stream, counting markers from position 0.
func StyleAt(text string, offset int) Style {
	if offset <= 0 {
		return Style{}
	}
	if offset > len(text) {
		offset = len(text)
	}
	_, exit := ScanSpansFrom(text[:offset], Style{})
	return exit
}

// StripMarkers returns text with all formatting markers removed.
func StripMarkers(text string) string {
	var b strings.Builder
	for _, span := range ScanSpans(text) {
		b.WriteString(span.Text)
	}
	return b.String()
}

func endsWithSentencePunct(word string) bool {
	w := strings.TrimRight(StripMarkers(word), `"'”’`)
	if w == "" {
		return false
	}
	switch w[len(w)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
