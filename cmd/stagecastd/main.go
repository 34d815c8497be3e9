package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overlaylabs/stagecast/internal/audio"
	"github.com/overlaylabs/stagecast/internal/bus"
	"github.com/overlaylabs/stagecast/internal/config"
	"github.com/overlaylabs/stagecast/internal/display"
	"github.com/overlaylabs/stagecast/internal/natsserver"
	"github.com/overlaylabs/stagecast/internal/producer"
	"github.com/overlaylabs/stagecast/internal/runtime"
	"github.com/overlaylabs/stagecast/internal/store"
	"github.com/overlaylabs/stagecast/internal/stream"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "stagecast.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootstrapLogger().Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Telemetry.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedded, err := natsserver.Start(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to start embedded bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to connect to bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	surface := display.NewBusSurface(busClient.Conn(), logger)
	displaySvc := display.NewService(ctx, cfg.Display, busClient, st, surface, sinkFactory(cfg.Audio), logger)
	if err := displaySvc.Start(); err != nil {
		logger.Error("failed to start display service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer displaySvc.Close()

	health := []func() bool{busClient.Healthy, displaySvc.Healthy}

	if cfg.Speech.Enabled {
		synth := producer.NewMockSynth(cfg.Speech.SampleRate, cfg.Speech.Channels, cfg.Speech.ChunkDurationMS)
		speaker := producer.NewService(ctx, cfg.Speech, busClient, st, synth, logger)
		if err := speaker.Start(); err != nil {
			logger.Error("failed to start producer service", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer speaker.Close()
		health = append(health, speaker.Healthy)
	}

	rt := runtime.New(cfg, runtime.Deps{
		Status:   displaySvc,
		Channels: st,
		Health:   health,
	}, logger)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func bootstrapLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sinkFactory picks local playback per channel: a real output device when
// configured, otherwise silence paced by the process clock.
func sinkFactory(cfg config.AudioConfig) display.SinkFactory {
	if cfg.Output != "device" {
		return display.NullSinkFactory(func() stream.Sink { return audio.Null{} })
	}
	return func(string) (stream.Sink, stream.Clock, error) {
		dev, err := audio.NewDevice()
		if err != nil {
			return nil, nil, err
		}
		return dev, dev, nil
	}
}
