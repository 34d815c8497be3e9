package stream

import (
	"math"
	"testing"
)

type scheduled struct {
	start    float64
	duration float64
}

// fakeSink records scheduled intervals on the audio clock.
type fakeSink struct {
	sampleRate int
	channels   int
	buffers    []scheduled
	resets     int
}

func (f *fakeSink) Configure(sampleRate, channels int) error {
	f.sampleRate = sampleRate
	f.channels = channels
	return nil
}

func (f *fakeSink) ScheduleAt(pcm []byte, start float64) {
	dur := float64(len(pcm)/2) / float64(f.sampleRate*f.channels)
	f.buffers = append(f.buffers, scheduled{start: start, duration: dur})
}

func (f *fakeSink) Reset() {
	f.resets++
	f.buffers = nil
}

func (f *fakeSink) Close() error { return nil }

func pcmOfDuration(seconds float64, sampleRate, channels int) []byte {
	samples := int(seconds * float64(sampleRate*channels))
	return make([]byte, samples*2)
}

func TestGaplessCursorEqualsSumOfDurations(t *testing.T) {
	clock := &FakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	if err := s.Arm(24000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}

	durations := []float64{0.4, 0.25, 0.1, 0.5}
	sum := 0.0
	for _, d := range durations {
		if _, err := s.Schedule(pcmOfDuration(d, 24000, 1)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
		sum += d
		// fragments arrive faster than real time
		clock.Advance(d / 2)
	}

	if got := s.Cursor() - s.StartedAt(); math.Abs(got-sum) > 1e-9 {
		t.Fatalf("cursor advanced %v, want sum of durations %v", got, sum)
	}

	for i := 1; i < len(sink.buffers); i++ {
		prev := sink.buffers[i-1]
		cur := sink.buffers[i]
		if cur.start < prev.start+prev.duration-1e-9 {
			t.Fatalf("fragment %d overlaps previous", i)
		}
		if cur.start > prev.start+prev.duration+1e-9 {
			t.Fatalf("fragment %d leaves a gap under fast arrival", i)
		}
	}
}

func TestLateFragmentToleratedAsGap(t *testing.T) {
	clock := &FakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	if err := s.Arm(8000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}

	if _, err := s.Schedule(pcmOfDuration(0.1, 8000, 1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	clock.Advance(0.5) // producer fell behind
	start, err := s.Schedule(pcmOfDuration(0.1, 8000, 1))
	if err != nil {
		t.Fatalf("late fragment must not error: %v", err)
	}
	if start != 0.5 {
		t.Fatalf("late fragment must start at clock now, got %v", start)
	}
}

func TestFirstFragmentAnchorsOrigin(t *testing.T) {
	clock := &FakeClock{T: 3.25} // skew between command receipt and first audio
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	if err := s.Arm(16000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if s.Started() {
		t.Fatal("origin must not exist before first fragment")
	}
	if _, err := s.Schedule(pcmOfDuration(0.2, 16000, 1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !s.Started() || s.StartedAt() != 3.25 {
		t.Fatalf("origin must anchor to first playback start, got %v", s.StartedAt())
	}
}

func TestStateMachineLifecycle(t *testing.T) {
	clock := &FakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)

	if s.State() != StateIdle {
		t.Fatalf("initial state: %v", s.State())
	}
	if _, err := s.Schedule(pcmOfDuration(0.1, 8000, 1)); err == nil {
		t.Fatal("scheduling while idle must fail")
	}

	if err := s.Arm(8000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if s.State() != StateArmed {
		t.Fatalf("after arm: %v", s.State())
	}

	if _, err := s.Schedule(pcmOfDuration(0.3, 8000, 1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if s.State() != StatePlaying {
		t.Fatalf("after first fragment: %v", s.State())
	}

	s.End()
	if s.State() != StateDraining {
		t.Fatalf("after end: %v", s.State())
	}
	if s.Drained() {
		t.Fatal("cursor not reached yet")
	}

	clock.Advance(0.3)
	if !s.Drained() {
		t.Fatal("cursor reached, session must retire")
	}
	if s.State() != StateIdle {
		t.Fatalf("after drain: %v", s.State())
	}
}

func TestStopForcesIdleAndDiscardsQueue(t *testing.T) {
	clock := &FakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	if err := s.Arm(8000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if _, err := s.Schedule(pcmOfDuration(1.0, 8000, 1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	clock.Advance(0.4)

	elapsed := s.Stop()
	if elapsed != 0.4 {
		t.Fatalf("expected 0.4s elapsed, got %v", elapsed)
	}
	if s.State() != StateIdle {
		t.Fatalf("stop must force idle, got %v", s.State())
	}
	if sink.resets != 1 {
		t.Fatalf("sink queue must be discarded, resets=%d", sink.resets)
	}
}

func TestStopBeforeAudioStarted(t *testing.T) {
	clock := &FakeClock{T: 9}
	s := NewScheduler(clock, &fakeSink{})
	if err := s.Arm(8000, 1); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if elapsed := s.Stop(); elapsed != 0 {
		t.Fatalf("no audio started, elapsed must be 0, got %v", elapsed)
	}
}
