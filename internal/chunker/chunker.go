package chunker

import "strings"

// Chunker splits an incremental token stream into sentence-sized units for
// speech synthesis requests. Units start speaking sooner when small; larger
// units carry better prosody, so the boundary is a full sentence.
type Chunker struct {
	buf strings.Builder
}

func New() *Chunker {
	return &Chunker{}
}

// Feed appends a token to the accumulator and returns any completed
// sentence units, in order. No text is dropped and no unit is emitted twice.
func (c *Chunker) Feed(token string) []string {
	if token == "" {
		return nil
	}
	c.buf.WriteString(token)

	var units []string
	for {
		text := c.buf.String()
		idx := Boundary(text)
		if idx < 0 {
			break
		}
		unit := strings.TrimSpace(text[:idx])
		rest := text[idx:]
		c.buf.Reset()
		c.buf.WriteString(strings.TrimLeft(rest, " \n"))
		if unit != "" {
			units = append(units, unit)
		}
	}
	return units
}

// Flush emits any non-empty remainder as a final unit even without terminal
// punctuation. Called at upstream end-of-stream.
func (c *Chunker) Flush() (string, bool) {
	rest := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

var closingQuotes = []rune{'"', '\'', '”', '’'}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	for _, q := range closingQuotes {
		if r == q {
			return true
		}
	}
	return false
}

// Boundary returns the byte index just past the first sentence boundary
// in text, or -1. A boundary is terminal punctuation, optionally followed by
// a closing quote, followed by a space or newline. The same pattern decides
// both synthesis request granularity and caption sentence commits.
func Boundary(text string) int {
	runes := []rune(text)
	offset := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		size := len(string(r))
		if !isTerminal(r) {
			offset += size
			continue
		}
		end := offset + size
		j := i + 1
		if j < len(runes) && isClosingQuote(runes[j]) {
			end += len(string(runes[j]))
			j++
		}
		if j < len(runes) && (runes[j] == ' ' || runes[j] == '\n') {
			return end
		}
		offset += size
	}
	return -1
}
