package producer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/overlaylabs/stagecast/internal/config"
	"github.com/overlaylabs/stagecast/internal/protocol"
	"github.com/overlaylabs/stagecast/internal/store"
)

type recorderSpy struct {
	mu       sync.Mutex
	playback int
}

func (r *recorderSpy) AppendPlayback(ctx context.Context, channel, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback++
	return nil
}

func (r *recorderSpy) RecordUtterance(ctx context.Context, u store.Utterance) error {
	return nil
}

func (r *recorderSpy) ChannelStyle(ctx context.Context, channel string) (store.Preset, bool, error) {
	return store.Preset{}, false, nil
}

func (r *recorderSpy) playbackCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback
}

func testSpeaker(rec Recorder) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(context.Background(), config.SpeechConfig{}, nil, rec, nil, log)
}

func eventMsg(t *testing.T, channel string, ev protocol.Event) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return &nats.Msg{Subject: protocol.EventSubject(channel), Data: data}
}

func TestEventBeforeCloseIsRecorded(t *testing.T) {
	rec := &recorderSpy{}
	s := testSpeaker(rec)

	s.handleEvent(eventMsg(t, "stage", protocol.Event{Event: protocol.EventStreamEnded}))
	s.Close() // waits for the in-flight handler
	if got := rec.playbackCount(); got != 1 {
		t.Fatalf("expected one playback log entry, got %d", got)
	}
}

func TestEventAfterCloseIsDropped(t *testing.T) {
	rec := &recorderSpy{}
	s := testSpeaker(rec)
	s.Close()

	// A bus callback can still fire while the subscription drains.
	s.handleEvent(eventMsg(t, "stage", protocol.Event{Event: protocol.EventStreamEnded}))
	time.Sleep(20 * time.Millisecond)
	if got := rec.playbackCount(); got != 0 {
		t.Fatalf("event handled after close, playback logged %d times", got)
	}
}
