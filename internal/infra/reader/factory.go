package reader

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/infra/config"
)

// New creates a reader from configuration.
func New(cfg config.ReaderConfig) (Reader, error) {
	var (
		r   Reader
		err error
	)
	zlog.Debug().Msgf("reader: creating: type=%s settings=%+v", cfg.Type, cfg.Settings)
	switch cfg.Type {
	case "serial":
		r, err = newSerialReader(cfg.Settings)
	case "replay":
		r, err = newReplayReader(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported reader type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s reader", cfg.Type)
	}

	zlog.Info().Msgf("Card reader initialized: type=%s", cfg.Type)
	return r, nil
}
