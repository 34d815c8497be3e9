package producer

import (
	"context"
	"math"
	"testing"

	"github.com/overlaylabs/stagecast/internal/protocol"
)

func collect(t *testing.T, text string, sampleRate, chunkMS int) []SynthChunk {
	t.Helper()
	synth := NewMockSynth(sampleRate, 1, chunkMS)
	chunks, errs := synth.Synthesize(context.Background(), SynthRequest{SessionID: "s", Text: text})

	var out []SynthChunk
	for c := range chunks {
		out = append(out, c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	return out
}

func TestMockTimingsAreOrdered(t *testing.T) {
	words := mockTimings("Good evening. How are you?")
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	for i, w := range words {
		if w.End <= w.Start {
			t.Fatalf("word %d has empty interval: %+v", i, w)
		}
		if i > 0 && w.Start <= words[i-1].End {
			t.Fatalf("word %d overlaps predecessor", i)
		}
	}
	// Sentence-final pause must exceed the default break threshold.
	gap := words[2].Start - words[1].End
	if gap < 0.3 {
		t.Fatalf("expected a long pause after the sentence, got %v", gap)
	}
}

func TestChunksCoverWholeUtterance(t *testing.T) {
	const rate = 8000
	chunks := collect(t, "one two three four five six", rate, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !chunks[len(chunks)-1].Final {
		t.Fatal("last chunk must be marked final")
	}
	for i, c := range chunks[:len(chunks)-1] {
		if c.Final {
			t.Fatalf("chunk %d marked final early", i)
		}
		if len(c.PCM) != rate/10*2 {
			t.Fatalf("chunk %d has %d bytes, want %d", i, len(c.PCM), rate/10*2)
		}
	}

	timings := mockTimings("one two three four five six")
	wantFrames := int((timings[len(timings)-1].End + 0.1) * rate)
	total := 0
	for _, c := range chunks {
		total += len(c.PCM) / 2
	}
	if total != wantFrames {
		t.Fatalf("pcm covers %d frames, want %d", total, wantFrames)
	}
}

func TestChunkWordsRebaseToUtteranceTimeline(t *testing.T) {
	const rate = 8000
	text := "one two three four five six"
	chunks := collect(t, text, rate, 100)

	var rebased []protocol.TimedWord
	base := 0.0
	for _, c := range chunks {
		wt := rebaseWords(c.Words, base)
		rebased = append(rebased, wt.Words...)
		base += pcmSeconds(len(c.PCM), c.SampleRate, c.Channels)
	}

	want := mockTimings(text)
	if len(rebased) != len(want) {
		t.Fatalf("got %d words, want %d", len(rebased), len(want))
	}
	for i := range want {
		if rebased[i].Word != want[i].Word {
			t.Fatalf("word %d: got %q want %q", i, rebased[i].Word, want[i].Word)
		}
		if math.Abs(rebased[i].Start-want[i].Start) > 1e-3 {
			t.Fatalf("word %d start drifted: got %v want %v", i, rebased[i].Start, want[i].Start)
		}
	}
}

func TestEmptyTextYieldsSingleFinalChunk(t *testing.T) {
	chunks := collect(t, "", 8000, 100)
	if len(chunks) != 1 || !chunks[0].Final || len(chunks[0].PCM) != 0 {
		t.Fatalf("unexpected chunks for empty text: %+v", chunks)
	}
}

func TestPCMSeconds(t *testing.T) {
	if got := pcmSeconds(16000, 8000, 1); got != 1.0 {
		t.Fatalf("got %v want 1.0", got)
	}
	if got := pcmSeconds(16000, 8000, 2); got != 0.5 {
		t.Fatalf("got %v want 0.5", got)
	}
	if got := pcmSeconds(100, 0, 1); got != 0 {
		t.Fatal("degenerate format must not divide by zero")
	}
}
