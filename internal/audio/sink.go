// Package audio provides playback sinks for the gapless scheduler.
package audio

// Null is a sink for display surfaces with no local audio output. Scheduled
// buffers are dropped; pacing still follows the process clock.
type Null struct{}

func (Null) Configure(sampleRate, channels int) error { return nil }

func (Null) ScheduleAt(pcm []byte, start float64) {}

func (Null) Reset() {}

func (Null) Close() error { return nil }
