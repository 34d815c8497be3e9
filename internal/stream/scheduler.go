package stream

import "errors"

// Sink receives PCM buffers scheduled at absolute audio-clock times.
// Implementations must play each buffer starting exactly at its start time;
// Reset discards everything not yet played.
type Sink interface {
	Configure(sampleRate, channels int) error
	ScheduleAt(pcm []byte, start float64)
	Reset()
	Close() error
}

// State is the scheduler lifecycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StatePlaying
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

var errNotArmed = errors.New("scheduler not armed")

// Scheduler lays arrival-ordered PCM fragments onto the audio clock with no
// gap and no overlap, as long as fragments arrive faster than real time. A
// late fragment simply starts at the current clock reading; the resulting
// silence is the producer's problem, not an error.
type Scheduler struct {
	clock Clock
	sink  Sink

	sampleRate int
	channels   int

	state     State
	cursor    float64
	startedAt float64
	started   bool
}

func NewScheduler(clock Clock, sink Sink) *Scheduler {
	return &Scheduler{clock: clock, sink: sink}
}

// Arm begins a session with the given sample format. Any previous session's
// schedule is discarded.
func (s *Scheduler) Arm(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errors.New("invalid sample format")
	}
	if s.state != StateIdle {
		s.sink.Reset()
	}
	if err := s.sink.Configure(sampleRate, channels); err != nil {
		return err
	}
	s.sampleRate = sampleRate
	s.channels = channels
	s.state = StateArmed
	s.cursor = 0
	s.startedAt = 0
	s.started = false
	return nil
}

// Duration returns the playback length of a fragment in seconds.
func (s *Scheduler) Duration(pcm []byte) float64 {
	if s.sampleRate == 0 || s.channels == 0 {
		return 0
	}
	samples := len(pcm) / 2
	return float64(samples) / float64(s.sampleRate*s.channels)
}

// Schedule queues one fragment for gapless playback and returns its start
// time. The first fragment of a session records the audio-clock origin:
// word timings are anchored to actual playback start, not to when the
// stream_start command was received.
func (s *Scheduler) Schedule(pcm []byte) (float64, error) {
	if s.state != StateArmed && s.state != StatePlaying {
		return 0, errNotArmed
	}
	now := s.clock.Now()
	start := s.cursor
	if now > start {
		start = now
	}
	if !s.started {
		s.startedAt = start
		s.started = true
		s.state = StatePlaying
	}
	s.sink.ScheduleAt(pcm, start)
	s.cursor = start + s.Duration(pcm)
	return start, nil
}

// End marks that no further fragments will arrive. The session keeps
// draining until the cursor is reached.
func (s *Scheduler) End() {
	if s.state == StateArmed || s.state == StatePlaying {
		s.state = StateDraining
	}
}

// Drained retires a draining session once scheduled audio has finished, and
// reports whether that happened on this call.
func (s *Scheduler) Drained() bool {
	if s.state != StateDraining {
		return false
	}
	if s.clock.Now() >= s.cursor {
		s.state = StateIdle
		return true
	}
	return false
}

// Stop hard-cuts playback from any non-idle state: discards the sink queue
// and forces idle. Returns the elapsed play time, 0 if audio never started.
func (s *Scheduler) Stop() float64 {
	if s.state == StateIdle {
		return 0
	}
	s.sink.Reset()
	s.state = StateIdle
	if !s.started {
		return 0
	}
	elapsed := s.clock.Now() - s.startedAt
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.cursor-s.startedAt {
		elapsed = s.cursor - s.startedAt
	}
	return elapsed
}

func (s *Scheduler) State() State { return s.state }

// StartedAt returns the audio-clock origin of the session. Only meaningful
// once Started reports true.
func (s *Scheduler) StartedAt() float64 { return s.startedAt }

func (s *Scheduler) Started() bool { return s.started }

// Cursor returns the audio-clock time of the next unscheduled sample.
func (s *Scheduler) Cursor() float64 { return s.cursor }
