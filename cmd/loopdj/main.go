package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/satindergrewal/loopdj/internal/audio"
	"github.com/satindergrewal/loopdj/internal/audio/speaker"
	"github.com/satindergrewal/loopdj/internal/autodj"
	"github.com/satindergrewal/loopdj/internal/catalog"
	"github.com/satindergrewal/loopdj/internal/config"
	"github.com/satindergrewal/loopdj/internal/mqtt"
	"github.com/satindergrewal/loopdj/internal/storage/postgres"
	"github.com/satindergrewal/loopdj/internal/stream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err == nil {
		err = run(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v.\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scan := func() (catalog.Catalog, error) {
		paths, err := catalog.ScanDir(cfg.SongsDir)
		if err != nil {
			return nil, err
		}
		return catalog.Build(paths, catalog.WithLogger(logger))
	}
	songs, err := scan()
	if err != nil {
		return err
	}
	logger.Info().Str("dir", cfg.SongsDir).Msgf("Found %d songs.", len(songs))

	opts := []autodj.Option{autodj.WithLogger(logger)}

	if cfg.Watch {
		w, err := catalog.Watch(cfg.SongsDir, logger)
		if err != nil {
			return err
		}
		defer w.Close()
		opts = append(opts, autodj.WithRescan(w, scan))
	}

	// MQTT now-playing events (optional)
	if cfg.MQTT.URL != "" {
		pub := mqtt.NewPublisher(cfg.MQTT.URL, cfg.MQTT.ClientID, cfg.MQTT.Prefix, logger)
		if err := pub.Connect(); err != nil {
			logger.Warn().Err(err).Msg("MQTT not available, events will not be published")
		} else {
			defer pub.Disconnect()
			opts = append(opts, autodj.WithNotifier(pub))
		}
	}

	// Playback history (optional)
	if cfg.Postgres.Enabled {
		pgCtx, pgCancel := context.WithTimeout(ctx, 10*time.Second)
		store, err := postgres.New(pgCtx, cfg.Postgres.DSN)
		pgCancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Postgres not available, playback history disabled")
		} else {
			defer store.Close()
			opts = append(opts, autodj.WithNotifier(store))
		}
	}

	djCfg := autodj.SchedulerConfig{
		MaxRepeats:   cfg.MaxRepeats,
		Override:     cfg.Override,
		DebugWait:    cfg.DebugWait,
		FadeDuration: cfg.FadeDuration(),
	}

	if cfg.Output == config.OutputSpeaker {
		sink, err := speaker.NewSink()
		if err != nil {
			return err
		}
		defer sink.Close()
		return autodj.NewScheduler(songs, sink, djCfg, opts...).Run(ctx)
	}
	return runStream(ctx, cfg, songs, djCfg, opts, logger)
}

func runStream(ctx context.Context, cfg config.Config, songs catalog.Catalog, djCfg autodj.SchedulerConfig, opts []autodj.Option, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Audio pipeline
	pipeline := audio.NewPipeline()
	defer pipeline.Close()
	go pipeline.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	sched := autodj.NewScheduler(songs, pipeline, djCfg, opts...)
	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.ICEServers, logger)

	mux := http.NewServeMux()
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, logger))
	mux.Handle("/offer", webrtcHandler)
	mux.Handle("/api/status", stream.NewStatusHandler(sched, pipeline, broadcaster, webrtcHandler))

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", addr).Msg("loopdj live")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	go func() {
		errCh <- sched.Run(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	logger.Info().Msg("Shutting down...")
	cancel()
	server.Close()
	return err
}
