// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/app/cardevent"
	"github.com/osa030/cardbox/internal/app/resolve"
	"github.com/osa030/cardbox/internal/app/session"
	"github.com/osa030/cardbox/internal/infra/audio"
	"github.com/osa030/cardbox/internal/infra/config"
	"github.com/osa030/cardbox/internal/infra/logger"
	"github.com/osa030/cardbox/internal/infra/mapping"
	"github.com/osa030/cardbox/internal/infra/reader"
)

var (
	app         = kingpin.New("cardbox-player", "Play audio files when RFID cards are presented")
	audioDir    = app.Arg("audio-dir", "Directory containing audio files").Required().ExistingDir()
	mappingFile = app.Arg("mapping-file", "Card mapping file (<uid> <path> per line)").Required().ExistingFile()
	configPath  = app.Flag("config", "Path to config file").String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// run executes the main player logic. Using a separate function ensures
// defer statements run even when returning with an error.
func run(cfg *config.Config) error {
	bindings, err := mapping.Load(*mappingFile)
	if err != nil {
		return fmt.Errorf("failed to load mapping: %w", err)
	}
	resolver := resolve.New(*audioDir, bindings)

	rdr, err := reader.New(cfg.Reader)
	if err != nil {
		return fmt.Errorf("failed to open card reader: %w", err)
	}
	defer func() {
		if err := rdr.Close(); err != nil {
			zlog.Error().Msgf("Failed to close card reader: %v", err)
		}
	}()

	backend, err := audio.New(cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to open audio backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zlog.Error().Msgf("Failed to close audio backend: %v", err)
		}
	}()

	normalizer := cardevent.New(cardevent.Config{
		RemovalDebouncePolls: cfg.Reader.RemovalDebouncePolls,
		RePresentMinPolls:    cfg.Reader.RePresentMinPolls,
	})

	ctrl := session.New(session.Config{
		PollInterval:           cfg.PollInterval(),
		ResumePolicy:           cfg.Playback.Resume,
		LoopPlaylists:          cfg.Playback.Loop,
		ReaderFailureThreshold: cfg.Reader.FailureThreshold,
	}, rdr, backend, resolver, normalizer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Run(ctx)
	}()

	executeHooks(cfg.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received %s, shutting down...", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control loop error: %w", err)
		}
	}

	executeHooks(cfg.Hooks.OnStopped, "on_stopped")

	zlog.Info().Msg("Player stopped")
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
