package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Display     DisplayConfig   `yaml:"display"`
	Audio       AudioConfig     `yaml:"audio"`
	Speech      SpeechConfig    `yaml:"speech"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxLogEntries int    `yaml:"max_log_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// DisplayConfig controls caption layout and pacing on the render surface.
type DisplayConfig struct {
	WidthCells       int     `yaml:"width_cells"`
	CapacityLines    int     `yaml:"capacity_lines"`
	PauseThresholdMS int     `yaml:"pause_threshold_ms"`
	CharsPerSecond   float64 `yaml:"chars_per_second"`
	FadeMS           int     `yaml:"fade_ms"`
	LingerMS         int     `yaml:"linger_ms"`
	TickMS           int     `yaml:"tick_ms"`
}

type AudioConfig struct {
	Output string `yaml:"output"` // none, device
	Device string `yaml:"device"`
}

type SpeechConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"` // mock
	Voice           string `yaml:"voice"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkDurationMS int    `yaml:"chunk_duration_ms"`
	ShowText        bool   `yaml:"show_text"`
}

func Default() Config {
	return Config{
		ServiceName: "stagecast",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/stagecast.db",
			RetentionDays: 30,
			MaxLogEntries: 10000,
		},
		Display: DisplayConfig{
			WidthCells:       48,
			CapacityLines:    6,
			PauseThresholdMS: 300,
			CharsPerSecond:   30,
			FadeMS:           400,
			LingerMS:         2500,
			TickMS:           33,
		},
		Audio: AudioConfig{
			Output: "none",
		},
		Speech: SpeechConfig{
			Enabled:         false,
			Mode:            "mock",
			Voice:           "en-US",
			SampleRate:      24000,
			Channels:        1,
			ChunkDurationMS: 400,
			ShowText:        true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "STAGECAST_SERVICE_NAME")
	overrideString(&cfg.Environment, "STAGECAST_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "STAGECAST_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "STAGECAST_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "STAGECAST_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "STAGECAST_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "STAGECAST_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "STAGECAST_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "STAGECAST_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "STAGECAST_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "STAGECAST_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "STAGECAST_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "STAGECAST_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "STAGECAST_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "STAGECAST_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "STAGECAST_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "STAGECAST_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "STAGECAST_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxLogEntries, "STAGECAST_STORE_MAX_LOG_ENTRIES")
	overrideBool(&cfg.Store.VacuumOnStart, "STAGECAST_STORE_VACUUM_ON_START")
	overrideInt(&cfg.Display.WidthCells, "STAGECAST_DISPLAY_WIDTH_CELLS")
	overrideInt(&cfg.Display.CapacityLines, "STAGECAST_DISPLAY_CAPACITY_LINES")
	overrideInt(&cfg.Display.PauseThresholdMS, "STAGECAST_DISPLAY_PAUSE_THRESHOLD_MS")
	overrideFloat(&cfg.Display.CharsPerSecond, "STAGECAST_DISPLAY_CHARS_PER_SECOND")
	overrideInt(&cfg.Display.FadeMS, "STAGECAST_DISPLAY_FADE_MS")
	overrideInt(&cfg.Display.LingerMS, "STAGECAST_DISPLAY_LINGER_MS")
	overrideInt(&cfg.Display.TickMS, "STAGECAST_DISPLAY_TICK_MS")
	overrideString(&cfg.Audio.Output, "STAGECAST_AUDIO_OUTPUT")
	overrideString(&cfg.Audio.Device, "STAGECAST_AUDIO_DEVICE")
	overrideBool(&cfg.Speech.Enabled, "STAGECAST_SPEECH_ENABLED")
	overrideString(&cfg.Speech.Mode, "STAGECAST_SPEECH_MODE")
	overrideString(&cfg.Speech.Voice, "STAGECAST_SPEECH_VOICE")
	overrideInt(&cfg.Speech.SampleRate, "STAGECAST_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "STAGECAST_SPEECH_CHANNELS")
	overrideInt(&cfg.Speech.ChunkDurationMS, "STAGECAST_SPEECH_CHUNK_DURATION_MS")
	overrideBool(&cfg.Speech.ShowText, "STAGECAST_SPEECH_SHOW_TEXT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Display.WidthCells <= 0 {
		return errors.New("display.width_cells must be positive")
	}
	if cfg.Display.CapacityLines <= 0 {
		return errors.New("display.capacity_lines must be positive")
	}
	if cfg.Display.PauseThresholdMS < 0 {
		return errors.New("display.pause_threshold_ms must be >= 0")
	}
	if cfg.Display.CharsPerSecond <= 0 {
		return errors.New("display.chars_per_second must be positive")
	}
	if cfg.Display.TickMS <= 0 {
		return errors.New("display.tick_ms must be positive")
	}
	switch cfg.Audio.Output {
	case "none", "device":
	default:
		return errors.New("audio.output must be one of none|device")
	}
	if cfg.Speech.Enabled {
		switch cfg.Speech.Mode {
		case "mock":
		default:
			return errors.New("speech.mode must be mock")
		}
		if cfg.Speech.SampleRate <= 0 {
			return errors.New("speech.sample_rate must be positive")
		}
		if cfg.Speech.Channels <= 0 || cfg.Speech.Channels > 2 {
			return errors.New("speech.channels must be 1 or 2")
		}
		if cfg.Speech.ChunkDurationMS <= 0 {
			return errors.New("speech.chunk_duration_ms must be positive")
		}
	}
	return nil
}
