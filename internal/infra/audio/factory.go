package audio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/infra/config"
)

// New creates a playback backend from configuration.
func New(cfg config.AudioConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	zlog.Debug().Msgf("audio: creating backend: type=%s settings=%+v", cfg.Backend, cfg.Settings)
	switch cfg.Backend {
	case "oto":
		b, err = newOtoBackend(cfg.Settings)
	case "mpv":
		b, err = newMpvBackend(cfg.Settings)
	case "headless":
		b, err = newHeadlessBackend(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported audio backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s backend", cfg.Backend)
	}

	zlog.Info().Msgf("Audio backend initialized: type=%s", cfg.Backend)
	return b, nil
}
