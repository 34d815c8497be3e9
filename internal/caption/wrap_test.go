package caption

import (
	"reflect"
	"testing"
)

func lineTexts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text())
	}
	return out
}

func TestWrapAtWordBoundaries(t *testing.T) {
	w := NewWrapper(12)
	lines := w.Wrap("the quick brown fox jumps")
	want := []string{"the quick", "brown fox", "jumps"}
	if !reflect.DeepEqual(lineTexts(lines), want) {
		t.Fatalf("unexpected wrap: %v", lineTexts(lines))
	}
	for _, l := range lines {
		if l.Width() > 12 {
			t.Fatalf("line %q exceeds width: %d", l.Text(), l.Width())
		}
	}
}

func TestWrapPreservesStyleAcrossBreak(t *testing.T) {
	w := NewWrapper(10)
	lines := w.Wrap("**very bold words**")
	if len(lines) < 2 {
		t.Fatalf("expected a wrap, got %v", lineTexts(lines))
	}
	for i, l := range lines {
		for _, s := range l.Spans {
			if !s.Style.Bold {
				t.Fatalf("line %d span %q lost bold", i, s.Text)
			}
		}
	}
}

func TestWrapHardBreaksOverlongWord(t *testing.T) {
	w := NewWrapper(6)
	lines := w.Wrap("abcdefghij")
	if len(lines) != 2 {
		t.Fatalf("expected hard break, got %v", lineTexts(lines))
	}
	if lines[0].Text() != "abcdef" || lines[1].Text() != "ghij" {
		t.Fatalf("unexpected hard break: %v", lineTexts(lines))
	}
}

func TestWrapHonorsExplicitNewline(t *testing.T) {
	w := NewWrapper(40)
	lines := w.Wrap("first part\nsecond part")
	want := []string{"first part", "second part"}
	if !reflect.DeepEqual(lineTexts(lines), want) {
		t.Fatalf("unexpected wrap: %v", lineTexts(lines))
	}
}

func TestWrapCachedIsStable(t *testing.T) {
	w := NewWrapper(12)
	a := w.WrapCached("a committed sentence here.")
	b := w.WrapCached("a committed sentence here.")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("cached wrap must be identical across calls")
	}
	fresh := w.Wrap("a committed sentence here.")
	if !reflect.DeepEqual(a, fresh) {
		t.Fatal("cached wrap must match a fresh wrap")
	}
}

func TestWrapCachedKeyedByEntryStyle(t *testing.T) {
	w := NewWrapper(12)
	plain := w.WrapCachedFrom("word", Style{})
	italic := w.WrapCachedFrom("word", Style{Italic: true})
	if plain[0].Spans[0].Style.Italic {
		t.Fatal("plain entry must wrap unstyled")
	}
	if !italic[0].Spans[0].Style.Italic {
		t.Fatal("memo must not serve the plain wrap for an italic entry")
	}
}

func TestWrapCarriedRemainderStaysWithinWidth(t *testing.T) {
	// The zero-width rune keeps the pre-break prefix narrow, so the
	// remainder carried past the break is already at capacity when the
	// wide rune arrives.
	w := NewWrapper(4)
	lines := w.Wrap("\u0301 abc南")
	for _, l := range lines {
		if l.Width() > 4 {
			t.Fatalf("line %q exceeds width: %d", l.Text(), l.Width())
		}
	}
	last := lines[len(lines)-1]
	if last.Text() != "南" {
		t.Fatalf("expected the wide rune on its own line, got %v", lineTexts(lines))
	}
}

func TestWrapWideRunesCountCells(t *testing.T) {
	w := NewWrapper(4)
	lines := w.Wrap("ありがとう")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines of 2 cells each, got %v", lineTexts(lines))
	}
	for _, l := range lines {
		if l.Width() > 4 {
			t.Fatalf("line %q exceeds width", l.Text())
		}
	}
}
