package audio

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// HeadlessBackendConfig configures the silent backend.
type HeadlessBackendConfig struct {
	// FinishAfterPolls is how many Finished queries a "track" survives
	// before reporting completion.
	FinishAfterPolls int `yaml:"finish_after_polls" mapstructure:"finish_after_polls" default:"4" validate:"gte=1"`
}

// headlessBackend produces no sound. Tracks "finish" after a fixed number of
// Finished polls, which is enough to exercise the whole session machinery on
// hardware without an audio device.
type headlessBackend struct {
	mu        sync.Mutex
	cfg       HeadlessBackendConfig
	playing   bool
	paused    bool
	remaining int
}

func newHeadlessBackend(settings map[string]any) (*headlessBackend, error) {
	var cfg HeadlessBackendConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &headlessBackend{cfg: cfg}, nil
}

func (b *headlessBackend) Play(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	zlog.Info().Msgf("audio: headless play %s", path)
	b.playing = true
	b.paused = false
	b.remaining = b.cfg.FinishAfterPolls
	return nil
}

func (b *headlessBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing {
		return errors.New("nothing to pause")
	}
	b.paused = true
	return nil
}

func (b *headlessBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing {
		return errors.New("nothing to resume")
	}
	b.paused = false
	return nil
}

func (b *headlessBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = false
	b.paused = false
	b.remaining = 0
	return nil
}

func (b *headlessBackend) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing || b.paused {
		return false
	}
	b.remaining--
	return b.remaining <= 0
}

func (b *headlessBackend) Close() error {
	return b.Stop()
}
