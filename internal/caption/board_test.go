package caption

import (
	"reflect"
	"testing"
	"time"
)

func testBoard(capacity int) *Board {
	return NewBoard(NewWrapper(20), capacity, 400*time.Millisecond, time.Second)
}

func TestCommitOnSentenceBoundary(t *testing.T) {
	b := testBoard(10)
	b.Sync("First sentence done. And then some")
	if len(b.Committed()) != 1 {
		t.Fatalf("expected 1 committed sentence, got %d", len(b.Committed()))
	}
	if b.Committed()[0].Text != "First sentence done." {
		t.Fatalf("unexpected committed text: %q", b.Committed()[0].Text)
	}
	frame := b.Snapshot(time.Now())
	var all string
	for _, l := range frame.Lines {
		all += l.Text() + "|"
	}
	if all != "First sentence done.|And then some|" {
		t.Fatalf("unexpected visible lines: %q", all)
	}
}

func TestCommittedLayoutNeverReflows(t *testing.T) {
	b := testBoard(10)
	b.Sync("A stable sentence is here. ")
	before := append([]Line(nil), b.Committed()[0].Lines...)

	b.Sync("A stable sentence is here. More words keep arriving afterwards and growing")
	after := b.Committed()[0].Lines
	if !reflect.DeepEqual(before, after) {
		t.Fatal("committed sentence reflowed after later text arrived")
	}
}

func TestCommitCarriesStyleAcrossSentences(t *testing.T) {
	b := NewBoard(NewWrapper(40), 10, 400*time.Millisecond, time.Second)
	b.Sync("*Quiet start. Still* loud now. tail")

	committed := b.Committed()
	if len(committed) != 2 {
		t.Fatalf("expected 2 committed sentences, got %d", len(committed))
	}
	for _, s := range committed[0].Lines[0].Spans {
		if !s.Style.Italic {
			t.Fatalf("first sentence span %q must be italic", s.Text)
		}
	}

	// The italic opened in sentence one is still in effect at the start of
	// sentence two; its closing marker must read as a closer there.
	spans := committed[1].Lines[0].Spans
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans in second sentence, got %+v", spans)
	}
	if spans[0].Text != "Still" || !spans[0].Style.Italic {
		t.Fatalf("style did not carry across the commit: %+v", spans[0])
	}
	if spans[1].Style.Italic {
		t.Fatalf("closing marker misread as an opener: %+v", spans[1])
	}

	frame := b.Snapshot(time.Now())
	lastLine := frame.Lines[len(frame.Lines)-1]
	if lastLine.Text() != "tail" || lastLine.Spans[0].Style.Italic {
		t.Fatalf("pending tail must be plain: %+v", lastLine)
	}
}

func TestCullEvictsWholeSentencesAfterFade(t *testing.T) {
	b := testBoard(3)
	start := time.Unix(100, 0)
	b.Sync("Sentence number one fills lines. Sentence number two fills more lines. ")

	b.Tick(start)
	frame := b.Snapshot(start.Add(200 * time.Millisecond))
	if frame.Opacity >= 1 {
		t.Fatal("over-capacity board must be fading")
	}

	b.Tick(start.Add(500 * time.Millisecond))
	if len(b.Committed()) != 1 {
		t.Fatalf("expected oldest sentence evicted, got %d committed", len(b.Committed()))
	}
	if b.Committed()[0].Text != "Sentence number two fills more lines." {
		t.Fatalf("wrong sentence evicted: %q", b.Committed()[0].Text)
	}
	for _, s := range b.Committed() {
		fresh := NewWrapper(20).Wrap(s.Text)
		if !reflect.DeepEqual(fresh, s.Lines) {
			t.Fatal("surviving sentence lines were altered by eviction")
		}
	}
	if got := b.Snapshot(start.Add(600 * time.Millisecond)).Opacity; got != 1 {
		t.Fatalf("opacity must return to 1 after cull, got %v", got)
	}
}

func TestEndSessionLingerThenFadeThenClear(t *testing.T) {
	b := testBoard(10)
	audioDone := time.Unix(200, 0)
	b.Sync("Short farewell. ")
	b.EndSession(audioDone)

	b.Tick(audioDone.Add(500 * time.Millisecond))
	if b.Snapshot(audioDone.Add(500*time.Millisecond)).Opacity != 1 {
		t.Fatal("still lingering, no fade yet")
	}

	b.Tick(audioDone.Add(1100 * time.Millisecond)) // linger (1s) elapsed, fade starts
	if b.Snapshot(audioDone.Add(1300*time.Millisecond)).Opacity >= 1 {
		t.Fatal("expected fade in progress")
	}

	b.Tick(audioDone.Add(1600 * time.Millisecond)) // fade (400ms) elapsed
	if !b.Cleared() {
		t.Fatal("board must clear after linger + fade")
	}
	if got := b.Snapshot(audioDone.Add(2 * time.Second)); len(got.Lines) != 0 {
		t.Fatalf("cleared board must be empty, got %d lines", len(got.Lines))
	}
}

func TestClearIsImmediate(t *testing.T) {
	b := testBoard(10)
	b.Sync("Something visible. ")
	b.Clear()
	if !b.Cleared() {
		t.Fatal("clear must take effect immediately")
	}
	if f := b.Snapshot(time.Now()); len(f.Lines) != 0 || f.Opacity != 0 {
		t.Fatalf("unexpected frame after clear: %+v", f)
	}
}
