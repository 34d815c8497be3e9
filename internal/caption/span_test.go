package caption

import "testing"

func TestScanSpansToggles(t *testing.T) {
	spans := ScanSpans("plain **bold** *ital* ^soft^ tail")
	want := []Span{
		{Text: "plain ", Style: Style{}},
		{Text: "bold", Style: Style{Bold: true}},
		{Text: " ", Style: Style{}},
		{Text: "ital", Style: Style{Italic: true}},
		{Text: " ", Style: Style{}},
		{Text: "soft", Style: Style{Whisper: true}},
		{Text: " tail", Style: Style{}},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d: %+v", len(want), len(spans), spans)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("span %d: got %+v want %+v", i, spans[i], want[i])
		}
	}
}

func TestRepeatedMarkerTogglesOff(t *testing.T) {
	spans := ScanSpans("**a**b**c**")
	if spans[0].Style.Bold != true || spans[1].Style.Bold != false || spans[2].Style.Bold != true {
		t.Fatalf("bold must alternate per marker pair: %+v", spans)
	}
}

func TestQuoteLine(t *testing.T) {
	spans := ScanSpans("> quoted words\nnot quoted")
	if !spans[0].Style.Quote || spans[0].Text != "quoted words" {
		t.Fatalf("unexpected quote span: %+v", spans[0])
	}
	last := spans[len(spans)-1]
	if last.Style.Quote || last.Text != "not quoted" {
		t.Fatalf("quote must end at newline: %+v", last)
	}
}

func TestScanSpansFromCarriesEnterState(t *testing.T) {
	spans, exit := ScanSpansFrom("Still* loud", Style{Italic: true})
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %+v", spans)
	}
	if spans[0].Text != "Still" || !spans[0].Style.Italic {
		t.Fatalf("carried-in italic lost: %+v", spans[0])
	}
	if spans[1].Style.Italic {
		t.Fatalf("marker must close the carried-in italic: %+v", spans[1])
	}
	if exit.Italic {
		t.Fatal("exit state must reflect the toggle")
	}
}

func TestStyleAtCountsFromPositionZero(t *testing.T) {
	text := "*Quiet start. Still* loud now."
	if !StyleAt(text, 14).Italic {
		t.Fatal("offset inside the open italic run must report italic")
	}
	if StyleAt(text, len(text)).Italic {
		t.Fatal("offset past the closing marker must report plain")
	}
	if StyleAt(text, 0) != (Style{}) {
		t.Fatal("offset zero is always unstyled")
	}
}

func TestStripMarkers(t *testing.T) {
	if got := StripMarkers("say **it** *now*^quietly^"); got != "say it nowquietly" {
		t.Fatalf("unexpected strip result: %q", got)
	}
}

func TestEndsWithSentencePunct(t *testing.T) {
	cases := map[string]bool{
		"done.":     true,
		"done.**":   true,
		`done!"`:    true,
		"pending":   false,
		"semi;":     false,
		"question?": true,
	}
	for word, want := range cases {
		if got := endsWithSentencePunct(word); got != want {
			t.Fatalf("endsWithSentencePunct(%q) = %v, want %v", word, got, want)
		}
	}
}
