package stream

import (
	"log/slog"
	"time"

	"github.com/overlaylabs/stagecast/internal/caption"
	"github.com/overlaylabs/stagecast/internal/config"
	"github.com/overlaylabs/stagecast/internal/protocol"
)

// Session holds all mutable state for one in-flight utterance on a channel:
// the audio scheduler, the reveal cursor and the caption board. All methods
// must be called from a single goroutine; the display service serializes
// control messages, audio fragments and ticks onto one loop.
type Session struct {
	cfg   config.DisplayConfig
	clock Clock
	wall  func() time.Time
	log   *slog.Logger

	sched  *Scheduler
	reveal *caption.Reveal
	board  *caption.Board

	style      protocol.TextStreamStart
	textActive bool
	textEnded  bool
	textStart  float64

	streamEndedSent  bool
	endStarted       bool
	textCompleteSent bool
	textStreamDone   bool
}

func NewSession(cfg config.DisplayConfig, clock Clock, wall func() time.Time, sink Sink, log *slog.Logger) *Session {
	if wall == nil {
		wall = time.Now
	}
	s := &Session{
		cfg:   cfg,
		clock: clock,
		wall:  wall,
		log:   log,
		sched: NewScheduler(clock, sink),
	}
	s.resetCaptions(false)
	return s
}

func (s *Session) resetCaptions(instant bool) {
	s.reveal = caption.NewReveal(
		float64(s.cfg.PauseThresholdMS)/1000,
		s.cfg.CharsPerSecond,
		instant,
	)
	s.board = caption.NewBoard(
		caption.NewWrapper(s.cfg.WidthCells),
		s.cfg.CapacityLines,
		time.Duration(s.cfg.FadeMS)*time.Millisecond,
		time.Duration(s.cfg.LingerMS)*time.Millisecond,
	)
	s.textEnded = false
	s.endStarted = false
	s.textCompleteSent = false
	s.textStreamDone = false
}

// Apply processes one control message and returns events to report back.
// Malformed or out-of-order commands are dropped defensively: ordering is
// not guaranteed across the control/data split.
func (s *Session) Apply(cmd protocol.Command) []protocol.Event {
	switch c := cmd.(type) {
	case protocol.StreamStart:
		if err := s.sched.Arm(c.SampleRate, c.Channels); err != nil {
			s.log.Warn("rejecting stream start", slog.String("error", err.Error()))
			return []protocol.Event{{Event: protocol.EventError, Message: err.Error()}}
		}
		// A new stream is a new session: timings and captions from the
		// previous utterance must not leak into its reconciliation.
		s.resetCaptions(s.style.InstantReveal)
		s.streamEndedSent = false

	case protocol.StreamEnd:
		s.sched.End()

	case protocol.StopStream:
		return s.stop()

	case protocol.TextStreamStart:
		s.style = c
		s.textActive = true
		s.textStart = s.clock.Now()
		s.resetCaptions(c.InstantReveal)

	case protocol.TextChunk:
		if !s.reveal.AddText(c.Text) {
			s.log.Debug("dropping text chunk while in word-timing mode",
				slog.Int("len", len(c.Text)))
		}

	case protocol.WordTiming:
		words := make([]caption.WordTiming, 0, len(c.Words))
		for _, w := range c.Words {
			words = append(words, caption.WordTiming{Word: w.Word, Start: w.Start, End: w.End})
		}
		s.reveal.AddTimings(words)

	case protocol.TextStreamEnd:
		s.textEnded = true

	default:
		s.log.Warn("ignoring unhandled control message")
	}
	return nil
}

// Audio schedules one raw PCM fragment. Fragments outside an active stream
// are dropped.
func (s *Session) Audio(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if _, err := s.sched.Schedule(pcm); err != nil {
		s.log.Debug("dropping audio fragment", slog.String("error", err.Error()))
	}
}

// stop is the interrupt reconciler: hard-cut audio, compute the perceived
// prefix from word timings, clear the display with no fade, report.
func (s *Session) stop() []protocol.Event {
	elapsed := s.sched.Stop()
	report := Reconcile(s.reveal.Timings(), elapsed)
	s.board.Clear()
	s.textActive = false
	s.resetCaptions(false)
	return []protocol.Event{{
		Event:        protocol.EventStreamStopped,
		PlaybackTime: report.PlaybackTime,
		SpokenText:   report.SpokenText,
		WordCount:    report.WordCount,
	}}
}

// Tick advances the reveal cursor against the audio clock, folds new text
// into the board and drives the drain/linger/fade timers.
func (s *Session) Tick() []protocol.Event {
	var events []protocol.Event
	now := s.wall()

	elapsed, ok := s.elapsed()
	if ok && s.reveal.Advance(elapsed) {
		s.board.Sync(s.reveal.Text())
	}

	if s.sched.Drained() && !s.streamEndedSent {
		s.streamEndedSent = true
		events = append(events, protocol.Event{Event: protocol.EventStreamEnded})
	}

	// The end-of-session sequence starts once both sides are finished,
	// whichever order the drain and text_stream_end were observed in.
	if s.textEnded && !s.endStarted {
		audioDone := s.streamEndedSent && s.sched.State() == StateIdle
		// No audio session: the linger anchors to full text revelation.
		textOnly := !s.sched.Started() && s.sched.State() == StateIdle && s.reveal.Done()
		if audioDone || textOnly {
			s.endStarted = true
			s.board.CommitTail(s.reveal.Text())
			s.board.EndSession(now)
			if textOnly && !s.textCompleteSent {
				s.textCompleteSent = true
				events = append(events, protocol.Event{Event: protocol.EventTextComplete})
			}
		}
	}

	s.board.Tick(now)

	if s.textActive && !s.textStreamDone && s.board.Cleared() {
		s.textStreamDone = true
		s.textActive = false
		events = append(events, protocol.Event{Event: protocol.EventTextStreamComplete})
	}
	return events
}

// elapsed picks the reveal timebase: the audio-clock origin in word-timed
// mode, the text stream start in fallback mode. Word-timed reveal cannot
// advance before the first fragment anchors the origin.
func (s *Session) elapsed() (float64, bool) {
	if s.reveal.Timed() {
		if !s.sched.Started() {
			return 0, false
		}
		return s.clock.Now() - s.sched.StartedAt(), true
	}
	if !s.textActive {
		return 0, false
	}
	return s.clock.Now() - s.textStart, true
}

// Snapshot returns the frame to draw plus the caption style in effect.
func (s *Session) Snapshot() (caption.Frame, protocol.TextStreamStart) {
	return s.board.Snapshot(s.wall()), s.style
}

// Busy reports whether audio or captions are mid-flight.
func (s *Session) Busy() bool {
	return s.sched.State() != StateIdle || s.textActive
}
