package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type queued struct {
	startFrame int64
	pcm        []byte
	offset     int
}

// Device plays scheduled PCM through the default output device. The device
// callback consumes queued buffers at their scheduled frame positions,
// filling silence in between, so the sample counter doubles as the
// session's audio clock.
type Device struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device

	mu         sync.Mutex
	sampleRate int
	channels   int
	pos        int64 // frames played since Configure
	queue      []queued
}

func NewDevice() (*Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Device{ctx: ctx}, nil
}

func (d *Device) Configure(sampleRate, channels int) error {
	d.mu.Lock()
	if d.dev != nil && d.sampleRate == sampleRate && d.channels == channels {
		d.queue = nil
		d.mu.Unlock()
		return nil
	}
	old := d.dev
	d.dev = nil
	d.mu.Unlock()

	if old != nil {
		old.Stop()
		old.Uninit()
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			d.fill(out, int(frameCount))
		},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}

	d.mu.Lock()
	d.dev = dev
	d.sampleRate = sampleRate
	d.channels = channels
	d.pos = 0
	d.queue = nil
	d.mu.Unlock()
	return nil
}

func (d *Device) ScheduleAt(pcm []byte, start float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sampleRate == 0 {
		return
	}
	d.queue = append(d.queue, queued{
		startFrame: int64(start * float64(d.sampleRate)),
		pcm:        pcm,
	})
}

// fill writes frameCount frames into out, consuming queued buffers at their
// scheduled positions and zero-filling any gap.
func (d *Device) fill(out []byte, frameCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frameBytes := d.channels * 2
	for i := range out {
		out[i] = 0
	}

	written := 0
	for written < frameCount && len(d.queue) > 0 {
		q := &d.queue[0]
		cur := d.pos + int64(written)
		if q.startFrame > cur {
			gap := q.startFrame - cur
			if gap >= int64(frameCount-written) {
				break // silence until the next buffer is due
			}
			written += int(gap)
			continue
		}
		n := copy(out[written*frameBytes:frameCount*frameBytes], q.pcm[q.offset:])
		q.offset += n
		written += n / frameBytes
		if q.offset >= len(q.pcm) {
			d.queue = d.queue[1:]
		}
	}
	d.pos += int64(frameCount)
}

// Now returns the device playback position in seconds: the audio-clock
// domain for the scheduler and the reveal engine.
func (d *Device) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sampleRate == 0 {
		return 0
	}
	return float64(d.pos) / float64(d.sampleRate)
}

// Reset discards everything scheduled but not yet played.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	dev := d.dev
	d.dev = nil
	d.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.Uninit()
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
	}
	return nil
}
