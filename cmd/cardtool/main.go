// Package main provides the operator CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/cardbox/internal/app/cardevent"
	"github.com/osa030/cardbox/internal/app/resolve"
	"github.com/osa030/cardbox/internal/infra/config"
	"github.com/osa030/cardbox/internal/infra/logger"
	"github.com/osa030/cardbox/internal/infra/mapping"
	"github.com/osa030/cardbox/internal/infra/reader"
)

var (
	app     = kingpin.New("cardbox-cardtool", "Inspect card mappings and the card reader")
	verbose = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	// list command
	listCmd     = app.Command("list", "List card mappings")
	listMapping = listCmd.Arg("mapping-file", "Card mapping file").Required().ExistingFile()

	// check command
	checkCmd      = app.Command("check", "Verify every mapping target resolves to playable content")
	checkMapping  = checkCmd.Arg("mapping-file", "Card mapping file").Required().ExistingFile()
	checkAudioDir = checkCmd.Arg("audio-dir", "Directory containing audio files").Default(".").ExistingDir()

	// watch command
	watchCmd    = app.Command("watch", "Print card events as cards are presented (for enrolling new cards)")
	watchConfig = watchCmd.Flag("config", "Path to config file").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch command {
	case listCmd.FullCommand():
		err = list(*listMapping)
	case checkCmd.FullCommand():
		err = check(*checkMapping, *checkAudioDir)
	case watchCmd.FullCommand():
		err = watch(*watchConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func list(mappingFile string) error {
	bindings, err := mapping.Load(mappingFile)
	if err != nil {
		return err
	}

	fmt.Printf("%d card mappings:\n", len(bindings))
	for _, b := range bindings {
		fmt.Printf("  %-20s %s\n", b.Card, b.Target)
	}
	return nil
}

func check(mappingFile, audioDir string) error {
	bindings, err := mapping.Load(mappingFile)
	if err != nil {
		return err
	}
	resolver := resolve.New(audioDir, bindings)

	failures := 0
	for _, b := range bindings {
		entry, err := resolver.Resolve(b.Card)
		if err != nil {
			failures++
			fmt.Printf("  FAIL %-20s %s: %v\n", b.Card, b.Target, err)
			continue
		}
		kind := "track"
		if entry.IsPlaylist() {
			kind = fmt.Sprintf("playlist (%d tracks)", entry.Len())
		}
		fmt.Printf("  OK   %-20s %s -> %s\n", b.Card, b.Target, kind)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d mappings failed", failures, len(bindings))
	}
	fmt.Printf("All %d mappings resolve.\n", len(bindings))
	return nil
}

// watch polls the configured reader and prints normalized events, which is
// the easy way to learn a new card's UID.
func watch(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return err
	}

	rdr, err := reader.New(cfg.Reader)
	if err != nil {
		return err
	}
	defer rdr.Close()

	normalizer := cardevent.New(cardevent.Config{
		RemovalDebouncePolls: cfg.Reader.RemovalDebouncePolls,
		RePresentMinPolls:    cfg.Reader.RePresentMinPolls,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Watching for cards (Ctrl-C to stop)...")
	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println()
			return nil
		case <-ticker.C:
			id, present, err := rdr.Poll()
			if err != nil {
				fmt.Printf("  read error: %v\n", err)
				continue
			}
			for _, ev := range normalizer.Observe(id, present) {
				if ev.Card != "" {
					fmt.Printf("  %-14s %s\n", ev.Type, ev.Card)
				} else {
					fmt.Printf("  %s\n", ev.Type)
				}
			}
		}
	}
}
