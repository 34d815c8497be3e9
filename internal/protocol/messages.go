package protocol

import (
	"encoding/json"
	"fmt"
)

// Subjects carrying the per-surface duplex channel. Control and events are
// JSON; the audio subject carries raw interleaved little-endian int16 PCM
// frames with no envelope.
const (
	SubjectControlPrefix = "display.control"
	SubjectAudioPrefix   = "display.audio"
	SubjectEventPrefix   = "display.events"
	SubjectFramePrefix   = "display.frames"
)

func ControlSubject(channel string) string { return SubjectControlPrefix + "." + channel }
func AudioSubject(channel string) string   { return SubjectAudioPrefix + "." + channel }
func EventSubject(channel string) string   { return SubjectEventPrefix + "." + channel }
func FrameSubject(channel string) string   { return SubjectFramePrefix + "." + channel }

// Control actions sent from producer to display surface.
const (
	ActionStreamStart     = "stream_start"
	ActionStreamEnd       = "stream_end"
	ActionStopStream      = "stop_stream"
	ActionTextStreamStart = "text_stream_start"
	ActionTextChunk       = "text_chunk"
	ActionWordTiming      = "word_timing"
	ActionTextStreamEnd   = "text_stream_end"
)

// Events reported by the display surface back to the producer.
const (
	EventEnded              = "ended"
	EventStreamEnded        = "stream_ended"
	EventStreamStopped      = "stream_stopped"
	EventTextComplete       = "text_complete"
	EventTextStreamComplete = "text_stream_complete"
	EventError              = "error"
)

// Command is the closed set of control message variants.
type Command interface {
	Action() string
}

type StreamStart struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

func (StreamStart) Action() string { return ActionStreamStart }

type StreamEnd struct{}

func (StreamEnd) Action() string { return ActionStreamEnd }

type StopStream struct{}

func (StopStream) Action() string { return ActionStopStream }

type TextStreamStart struct {
	FontFamily    string  `json:"font_family"`
	FontSize      int     `json:"font_size"`
	Color         string  `json:"color"`
	StrokeColor   string  `json:"stroke_color,omitempty"`
	StrokeWidth   int     `json:"stroke_width"`
	PositionX     float64 `json:"position_x"`
	PositionY     float64 `json:"position_y"`
	InstantReveal bool    `json:"instant_reveal"`
}

func (TextStreamStart) Action() string { return ActionTextStreamStart }

type TextChunk struct {
	Text string `json:"text"`
}

func (TextChunk) Action() string { return ActionTextChunk }

// TimedWord carries one word's playback interval, in seconds relative to
// the session's audio-clock origin.
type TimedWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type WordTiming struct {
	Words []TimedWord `json:"words"`
}

func (WordTiming) Action() string { return ActionWordTiming }

type TextStreamEnd struct{}

func (TextStreamEnd) Action() string { return ActionTextStreamEnd }

type envelope struct {
	Action string `json:"action"`
}

// ParseCommand decodes a control message into its typed variant. Unknown
// actions are rejected rather than dispatched on open-ended keys.
func ParseCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode control envelope: %w", err)
	}
	switch env.Action {
	case ActionStreamStart:
		var cmd StreamStart
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Action, err)
		}
		return cmd, nil
	case ActionStreamEnd:
		return StreamEnd{}, nil
	case ActionStopStream:
		return StopStream{}, nil
	case ActionTextStreamStart:
		var cmd TextStreamStart
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Action, err)
		}
		return cmd, nil
	case ActionTextChunk:
		var cmd TextChunk
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Action, err)
		}
		return cmd, nil
	case ActionWordTiming:
		var cmd WordTiming
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Action, err)
		}
		return cmd, nil
	case ActionTextStreamEnd:
		return TextStreamEnd{}, nil
	default:
		return nil, fmt.Errorf("unknown control action %q", env.Action)
	}
}

// MarshalCommand encodes a command with its action tag.
func MarshalCommand(cmd Command) ([]byte, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(cmd.Action())
	fields["action"] = tag
	return json.Marshal(fields)
}

// Event is a renderer-to-producer report.
type Event struct {
	Event        string  `json:"event"`
	PlaybackTime float64 `json:"playback_time,omitempty"`
	SpokenText   string  `json:"spoken_text,omitempty"`
	WordCount    int     `json:"word_count,omitempty"`
	Message      string  `json:"message,omitempty"`
}
