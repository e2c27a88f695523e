package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/ebitengine/oto/v3"
	"github.com/go-playground/validator/v10"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// OtoBackendConfig configures the pure-Go backend (oto output, mp3 decode).
type OtoBackendConfig struct {
	BufferSizeMs int `yaml:"buffer_size_ms" mapstructure:"buffer_size_ms" default:"100" validate:"gte=10,lte=1000"`
}

// otoBackend plays mp3 files through the oto sound device. The oto context
// is created on the first Play, using that file's sample rate; later files
// with a different rate are rejected (one context per process).
type otoBackend struct {
	mu     sync.Mutex
	cfg    OtoBackendConfig
	ctx    *oto.Context
	rate   int
	player *oto.Player
	file   *os.File
	paused bool
}

func newOtoBackend(settings map[string]any) (*otoBackend, error) {
	var cfg OtoBackendConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &otoBackend{cfg: cfg}, nil
}

func (b *otoBackend) Play(path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".mp3" {
		return errors.Newf("oto backend only decodes mp3, got %s", ext)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to decode %s", path)
	}

	if b.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   dec.SampleRate(),
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(b.cfg.BufferSizeMs) * time.Millisecond,
		})
		if err != nil {
			_ = f.Close()
			return errors.Wrap(err, "failed to open audio device")
		}
		<-ready
		b.ctx = ctx
		b.rate = dec.SampleRate()
		zlog.Debug().Msgf("audio: oto context opened: sample_rate=%d", b.rate)
	} else if dec.SampleRate() != b.rate {
		_ = f.Close()
		return errors.Newf("sample rate %d does not match device rate %d (%s)", dec.SampleRate(), b.rate, path)
	}

	b.file = f
	b.player = b.ctx.NewPlayer(dec)
	b.paused = false
	b.player.Play()
	return nil
}

func (b *otoBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return errors.New("nothing to pause")
	}
	b.player.Pause()
	b.paused = true
	return nil
}

func (b *otoBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return errors.New("nothing to resume")
	}
	b.player.Play()
	b.paused = false
	return nil
}

func (b *otoBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *otoBackend) stopLocked() {
	if b.player != nil {
		_ = b.player.Close()
		b.player = nil
	}
	if b.file != nil {
		_ = b.file.Close()
		b.file = nil
	}
	b.paused = false
}

// Finished reports true once the decoder has drained and the device buffer
// emptied. A paused player also reports not-playing, so paused is excluded
// explicitly.
func (b *otoBackend) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil || b.paused {
		return false
	}
	return !b.player.IsPlaying()
}

func (b *otoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	if b.ctx != nil {
		_ = b.ctx.Suspend()
	}
	return nil
}
