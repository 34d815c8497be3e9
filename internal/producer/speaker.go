package producer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/overlaylabs/stagecast/internal/bus"
	"github.com/overlaylabs/stagecast/internal/chunker"
	"github.com/overlaylabs/stagecast/internal/config"
	"github.com/overlaylabs/stagecast/internal/protocol"
	"github.com/overlaylabs/stagecast/internal/store"
)

// Recorder is the slice of the store the speaker needs.
type Recorder interface {
	AppendPlayback(ctx context.Context, channel, eventType string, payload []byte) error
	RecordUtterance(ctx context.Context, u store.Utterance) error
	ChannelStyle(ctx context.Context, channel string) (store.Preset, bool, error)
}

type utteranceState struct {
	sessionID string
	text      string
}

// Service speaks on display channels: it runs the synthesizer, streams the
// control/audio sequence for each utterance, and folds surface events back
// into the store.
type Service struct {
	cfg    config.SpeechConfig
	bus    *bus.Client
	rec    Recorder
	synth  Synthesizer
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]utteranceState
	closed bool
}

func NewService(parent context.Context, cfg config.SpeechConfig, busClient *bus.Client, rec Recorder, synth Synthesizer, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		rec:    rec,
		synth:  synth,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "producer")),
		active: make(map[string]utteranceState),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectEventPrefix+".>", s.handleEvent)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

// Speak synthesizes text and streams it to one channel. It returns once the
// full utterance is published; playback continues on the surface.
func (s *Service) Speak(ctx context.Context, channel, text string) (string, error) {
	tokens := make(chan string, 1)
	tokens <- text
	close(tokens)
	return s.SpeakTokens(ctx, channel, tokens)
}

// SpeakTokens streams an incremental token source (an LLM, a script reader)
// to one channel. Tokens are folded into sentence units so the first unit
// starts playing before the source finishes; all units share one stream
// session, with word timings rebased onto the running audio timeline.
func (s *Service) SpeakTokens(ctx context.Context, channel string, tokens <-chan string) (string, error) {
	sessionID := uuid.NewString()

	s.mu.Lock()
	s.active[channel] = utteranceState{sessionID: sessionID}
	s.mu.Unlock()

	if s.cfg.ShowText {
		style := s.channelStyle(ctx, channel)
		if err := s.publishCommand(channel, style); err != nil {
			return sessionID, err
		}
	}
	if err := s.publishCommand(channel, protocol.StreamStart{
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}); err != nil {
		return sessionID, err
	}

	synthCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	sent := 0.0 // seconds of audio already published
	var spoken []string

	speakUnit := func(unit string) error {
		spoken = append(spoken, unit)
		s.mu.Lock()
		if state, ok := s.active[channel]; ok && state.sessionID == sessionID {
			state.text = strings.Join(spoken, " ")
			s.active[channel] = state
		}
		s.mu.Unlock()
		return s.streamUnit(synthCtx, channel, sessionID, unit, &sent)
	}

	ch := chunker.New()
loop:
	for {
		select {
		case token, ok := <-tokens:
			if !ok {
				break loop
			}
			for _, unit := range ch.Feed(token) {
				if err := speakUnit(unit); err != nil {
					return sessionID, err
				}
			}
		case <-synthCtx.Done():
			return sessionID, synthCtx.Err()
		}
	}
	if rest, ok := ch.Flush(); ok {
		if err := speakUnit(rest); err != nil {
			return sessionID, err
		}
	}

	if err := s.publishCommand(channel, protocol.StreamEnd{}); err != nil {
		return sessionID, err
	}
	if s.cfg.ShowText {
		if err := s.publishCommand(channel, protocol.TextStreamEnd{}); err != nil {
			return sessionID, err
		}
	}
	return sessionID, nil
}

// streamUnit synthesizes one sentence unit and publishes its timings and
// PCM, advancing the running audio timeline in sent.
func (s *Service) streamUnit(ctx context.Context, channel, sessionID, unit string, sent *float64) error {
	chunks, errs := s.synth.Synthesize(ctx, SynthRequest{
		SessionID: sessionID,
		Text:      unit,
		Voice:     s.cfg.Voice,
	})

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if s.cfg.ShowText && len(chunk.Words) > 0 {
				if err := s.publishCommand(channel, rebaseWords(chunk.Words, *sent)); err != nil {
					return err
				}
			}
			if len(chunk.PCM) > 0 {
				if err := s.bus.Conn().Publish(protocol.AudioSubject(channel), chunk.PCM); err != nil {
					return err
				}
				*sent += pcmSeconds(len(chunk.PCM), chunk.SampleRate, chunk.Channels)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				s.logger.Warn("synthesis error", slogError(err))
				return err
			}
			errs = nil
		case <-ctx.Done():
			return ctx.Err()
		}
		if chunks == nil && errs == nil {
			return nil
		}
	}
}

// Stop interrupts playback on a channel. The surface answers with a
// stream_stopped event carrying what was actually heard.
func (s *Service) Stop(channel string) error {
	return s.publishCommand(channel, protocol.StopStream{})
}

func (s *Service) channelStyle(ctx context.Context, channel string) protocol.TextStreamStart {
	if s.rec == nil {
		return protocol.TextStreamStart{}
	}
	preset, ok, err := s.rec.ChannelStyle(ctx, channel)
	if err != nil {
		s.logger.Warn("preset lookup failed",
			slog.String("channel", channel), slogError(err))
	}
	if !ok {
		return protocol.TextStreamStart{}
	}
	return protocol.TextStreamStart{
		FontFamily:    preset.FontFamily,
		FontSize:      preset.FontSize,
		Color:         preset.Color,
		StrokeColor:   preset.StrokeColor,
		StrokeWidth:   preset.StrokeWidth,
		PositionX:     preset.PositionX,
		PositionY:     preset.PositionY,
		InstantReveal: preset.InstantReveal,
	}
}

func (s *Service) publishCommand(channel string, cmd protocol.Command) error {
	data, err := protocol.MarshalCommand(cmd)
	if err != nil {
		return err
	}
	return s.bus.Conn().Publish(protocol.ControlSubject(channel), data)
}

// rebaseWords shifts chunk-relative word intervals onto the utterance
// timeline.
func rebaseWords(words []protocol.TimedWord, base float64) protocol.WordTiming {
	out := protocol.WordTiming{Words: make([]protocol.TimedWord, len(words))}
	for i, w := range words {
		out.Words[i] = protocol.TimedWord{Word: w.Word, Start: base + w.Start, End: base + w.End}
	}
	return out
}

func pcmSeconds(bytes, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(bytes) / 2 / float64(sampleRate*channels)
}

func (s *Service) handleEvent(msg *nats.Msg) {
	channel := strings.TrimPrefix(msg.Subject, protocol.SubjectEventPrefix+".")
	var ev protocol.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Warn("failed to decode surface event", slogError(err))
		return
	}

	payload := append([]byte(nil), msg.Data...)

	// The add shares the lock Close takes before waiting, so a straggling
	// bus callback can never add after the wait has started.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()

		if s.rec != nil {
			if err := s.rec.AppendPlayback(ctx, channel, ev.Event, payload); err != nil {
				s.logger.Warn("failed to log playback event", slogError(err))
			}
		}

		switch ev.Event {
		case protocol.EventStreamStopped:
			s.recordUtterance(ctx, channel, ev, true)
		case protocol.EventStreamEnded, protocol.EventTextComplete:
			s.recordUtterance(ctx, channel, ev, false)
		}
	}()
}

// recordUtterance closes out the active utterance on a channel. Interrupted
// runs keep the surface's reconciliation; completed runs spoke the full text.
func (s *Service) recordUtterance(ctx context.Context, channel string, ev protocol.Event, interrupted bool) {
	s.mu.Lock()
	state, ok := s.active[channel]
	if ok {
		delete(s.active, channel)
	}
	s.mu.Unlock()
	if !ok || s.rec == nil {
		return
	}

	u := store.Utterance{
		Channel:      channel,
		SessionID:    state.sessionID,
		Text:         state.text,
		Interrupted:  interrupted,
		SpokenText:   state.text,
		WordCount:    len(strings.Fields(state.text)),
		PlaybackTime: ev.PlaybackTime,
	}
	if interrupted {
		u.SpokenText = ev.SpokenText
		u.WordCount = ev.WordCount
	}
	if err := s.rec.RecordUtterance(ctx, u); err != nil {
		s.logger.Warn("failed to record utterance", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
