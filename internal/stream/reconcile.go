package stream

import (
	"strings"

	"github.com/overlaylabs/stagecast/internal/caption"
)

// StopReport describes what the listener actually perceived before a hard
// interrupt: only this prefix belongs in conversation history, not the full
// generated response.
type StopReport struct {
	PlaybackTime float64
	SpokenText   string
	WordCount    int
}

// Reconcile walks the word timings in order and keeps every word that had
// started playing by elapsed. The first word that had not yet started ends
// the walk.
func Reconcile(timings []caption.WordTiming, elapsed float64) StopReport {
	var words []string
	for _, w := range timings {
		if w.Start > elapsed {
			break
		}
		words = append(words, w.Word)
	}
	return StopReport{
		PlaybackTime: elapsed,
		SpokenText:   strings.Join(words, " "),
		WordCount:    len(words),
	}
}
