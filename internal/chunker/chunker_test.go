package chunker

import (
	"strings"
	"testing"
)

func TestFeedEmitsCompleteSentences(t *testing.T) {
	c := New()
	var units []string
	for _, tok := range []string{"Hello ", "there. ", "How are ", "you? ", "Fi"} {
		units = append(units, c.Feed(tok)...)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %v", len(units), units)
	}
	if units[0] != "Hello there." {
		t.Fatalf("unexpected first unit: %q", units[0])
	}
	if units[1] != "How are you?" {
		t.Fatalf("unexpected second unit: %q", units[1])
	}
}

func TestFlushEmitsRemainder(t *testing.T) {
	c := New()
	c.Feed("trailing words without punctuation")
	rest, ok := c.Flush()
	if !ok {
		t.Fatal("expected a remainder")
	}
	if rest != "trailing words without punctuation" {
		t.Fatalf("unexpected remainder: %q", rest)
	}
	if _, ok := c.Flush(); ok {
		t.Fatal("second flush should be empty")
	}
}

func TestBoundaryAfterClosingQuote(t *testing.T) {
	c := New()
	units := c.Feed(`"Stop right there!" he said. `)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %v", len(units), units)
	}
	if units[0] != `"Stop right there!"` {
		t.Fatalf("unexpected quoted unit: %q", units[0])
	}
	if units[1] != "he said." {
		t.Fatalf("unexpected unit: %q", units[1])
	}
}

func TestBoundaryOnNewline(t *testing.T) {
	c := New()
	units := c.Feed("First line.\nSecond")
	if len(units) != 1 || units[0] != "First line." {
		t.Fatalf("unexpected units: %v", units)
	}
	rest, ok := c.Flush()
	if !ok || rest != "Second" {
		t.Fatalf("unexpected remainder: %q ok=%v", rest, ok)
	}
}

func TestNoTextDroppedAcrossTokenSplits(t *testing.T) {
	input := "One sentence here. Another one follows! And a question? Tail without end"
	for split := 1; split < 12; split++ {
		c := New()
		var got []string
		for i := 0; i < len(input); i += split {
			end := i + split
			if end > len(input) {
				end = len(input)
			}
			got = append(got, c.Feed(input[i:end])...)
		}
		if rest, ok := c.Flush(); ok {
			got = append(got, rest)
		}
		joined := strings.Join(got, " ")
		if joined != input {
			t.Fatalf("split=%d: reassembled %q != %q", split, joined, input)
		}
	}
}

func TestAbbreviationMidSentenceNotSplitWithoutSpace(t *testing.T) {
	c := New()
	units := c.Feed("3.14 is pi. ")
	if len(units) != 1 || units[0] != "3.14 is pi." {
		t.Fatalf("unexpected units: %v", units)
	}
}
