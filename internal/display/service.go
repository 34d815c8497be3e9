// Package display runs the renderer side of the duplex channel: it owns one
// stream session per display surface, serializes control messages, audio
// fragments and ticks onto a single loop per channel, and reports playback
// events back to the producer.
package display

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/overlaylabs/stagecast/internal/bus"
	"github.com/overlaylabs/stagecast/internal/caption"
	"github.com/overlaylabs/stagecast/internal/config"
	"github.com/overlaylabs/stagecast/internal/protocol"
	"github.com/overlaylabs/stagecast/internal/stream"
)

// Frame is what a drawing adapter receives each tick.
type Frame struct {
	Channel    string
	Lines      []caption.Line
	Opacity    float64
	Style      protocol.TextStreamStart
	Configured bool
}

// Surface draws frames. The core never touches rendering beyond this.
type Surface interface {
	Render(Frame)
}

// ChannelDirectory answers whether a display surface has stored
// configuration. Unconfigured channels show a static placeholder.
type ChannelDirectory interface {
	ChannelExists(ctx context.Context, name string) (bool, error)
}

// SinkFactory builds the playback sink and matching audio clock for one
// channel.
type SinkFactory func(channel string) (stream.Sink, stream.Clock, error)

// NullSinkFactory paces sessions against the process clock without audio
// output.
func NullSinkFactory(sinkOf func() stream.Sink) SinkFactory {
	return func(string) (stream.Sink, stream.Clock, error) {
		return sinkOf(), stream.NewClock(), nil
	}
}

// ChannelStatus mirrors the dashboard view of one surface.
type ChannelStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Streaming bool   `json:"streaming"`
}

type Service struct {
	cfg     config.DisplayConfig
	bus     *bus.Client
	dir     ChannelDirectory
	surface Surface
	sinks   SinkFactory
	logger  *slog.Logger

	subControl *nats.Subscription
	subAudio   *nats.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	loops  map[string]*loop
	closed bool
}

func NewService(parent context.Context, cfg config.DisplayConfig, busClient *bus.Client, dir ChannelDirectory, surface Surface, sinks SinkFactory, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:     cfg,
		bus:     busClient,
		dir:     dir,
		surface: surface,
		sinks:   sinks,
		logger:  logger.With(slog.String("component", "display")),
		ctx:     ctx,
		cancel:  cancel,
		loops:   make(map[string]*loop),
	}
}

func (s *Service) Start() error {
	subControl, err := s.bus.Conn().Subscribe(protocol.SubjectControlPrefix+".>", s.handleControl)
	if err != nil {
		return err
	}
	s.subControl = subControl

	subAudio, err := s.bus.Conn().Subscribe(protocol.SubjectAudioPrefix+".>", s.handleAudio)
	if err != nil {
		subControl.Drain()
		return err
	}
	s.subAudio = subAudio
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.subControl != nil {
		_ = s.subControl.Drain()
	}
	if s.subAudio != nil {
		_ = s.subAudio.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.subControl != nil && s.subAudio != nil
}

// Status lists channels that have received traffic, for the dashboard API.
func (s *Service) Status() []ChannelStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChannelStatus, 0, len(s.loops))
	for name, l := range s.loops {
		out = append(out, ChannelStatus{
			Name:      name,
			Connected: true,
			Streaming: l.busy.Load(),
		})
	}
	return out
}

func (s *Service) handleControl(msg *nats.Msg) {
	channel := strings.TrimPrefix(msg.Subject, protocol.SubjectControlPrefix+".")
	cmd, err := protocol.ParseCommand(msg.Data)
	if err != nil {
		// Order is not guaranteed across the control/data split; unknown
		// and malformed messages are dropped, not raised.
		s.logger.Warn("ignoring control message",
			slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	l := s.loopFor(channel)
	if l == nil {
		return
	}
	l.post(loopEvent{cmd: cmd})
}

func (s *Service) handleAudio(msg *nats.Msg) {
	channel := strings.TrimPrefix(msg.Subject, protocol.SubjectAudioPrefix+".")
	l := s.loopFor(channel)
	if l == nil {
		return
	}
	pcm := append([]byte(nil), msg.Data...)
	l.post(loopEvent{pcm: pcm})
}

func (s *Service) loopFor(channel string) *loop {
	s.mu.Lock()
	if l, ok := s.loops[channel]; ok {
		s.mu.Unlock()
		return l
	}
	s.mu.Unlock()

	configured := false
	if s.dir != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		ok, err := s.dir.ChannelExists(ctx, channel)
		cancel()
		if err != nil {
			s.logger.Warn("channel lookup failed",
				slog.String("channel", channel), slog.String("error", err.Error()))
		}
		configured = ok
	}

	var session *stream.Session
	if configured {
		sink, clock, err := s.sinks(channel)
		if err != nil {
			s.logger.Error("audio sink unavailable",
				slog.String("channel", channel), slog.String("error", err.Error()))
			return nil
		}
		session = stream.NewSession(s.cfg, clock, time.Now, sink,
			s.logger.With(slog.String("channel", channel)))
	} else {
		s.logger.Info("channel has no configuration, showing placeholder",
			slog.String("channel", channel))
	}

	l := &loop{
		channel:    channel,
		configured: configured,
		session:    session,
		events:     make(chan loopEvent, 256),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if existing, ok := s.loops[channel]; ok {
		s.mu.Unlock()
		return existing
	}
	s.loops[channel] = l
	// Added under the lock Close takes before waiting, so a straggling bus
	// callback can never add after the wait has started.
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(l)
	}()
	return l
}

// run is the single execution context for one channel: every session
// mutation happens here, in arrival order, interleaved with update ticks.
func (s *Service) run(l *loop) {
	ticker := time.NewTicker(time.Duration(s.cfg.TickMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-l.events:
			if !l.configured {
				continue
			}
			if ev.cmd != nil {
				s.publishEvents(l.channel, l.session.Apply(ev.cmd))
			} else if len(ev.pcm) > 0 {
				l.session.Audio(ev.pcm)
			}
			l.busy.Store(l.session.Busy())
		case <-ticker.C:
			if !l.configured {
				s.surface.Render(Frame{Channel: l.channel, Configured: false})
				continue
			}
			s.publishEvents(l.channel, l.session.Tick())
			frame, style := l.session.Snapshot()
			s.surface.Render(Frame{
				Channel:    l.channel,
				Lines:      frame.Lines,
				Opacity:    frame.Opacity,
				Style:      style,
				Configured: true,
			})
			l.busy.Store(l.session.Busy())
		}
	}
}

func (s *Service) publishEvents(channel string, events []protocol.Event) {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("failed to marshal event", slogError(err))
			continue
		}
		if err := s.bus.Conn().Publish(protocol.EventSubject(channel), data); err != nil {
			s.logger.Warn("failed to publish event", slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
