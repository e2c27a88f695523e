package reader

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/cardbox/internal/domain/card"
)

// ReplayReaderConfig configures the replay reader.
//
// Script entries are consumed one per poll: a hex UID means that card is
// present, "-" means no card. After the script runs out every poll reads
// empty, unless loop is set, in which case the script repeats.
type ReplayReaderConfig struct {
	Script []string `yaml:"script" mapstructure:"script"`
	Loop   bool     `yaml:"loop" mapstructure:"loop"`
}

type replayReader struct {
	mu     sync.Mutex
	script []card.ID // Empty ID means absent
	pos    int
	loop   bool
}

func newReplayReader(settings map[string]any) (*replayReader, error) {
	var cfg ReplayReaderConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if len(cfg.Script) == 0 {
		return nil, errors.New("replay reader requires a non-empty script")
	}

	script := make([]card.ID, len(cfg.Script))
	for i, tok := range cfg.Script {
		if tok == "-" {
			continue
		}
		id, err := card.Parse(tok)
		if err != nil {
			return nil, errors.Wrapf(err, "script entry %d", i)
		}
		script[i] = id
	}

	return &replayReader{script: script, loop: cfg.Loop}, nil
}

func (r *replayReader) Poll() (card.ID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= len(r.script) {
		if !r.loop {
			return "", false, nil
		}
		r.pos = 0
	}
	id := r.script[r.pos]
	r.pos++
	return id, id != "", nil
}

func (r *replayReader) Close() error {
	return nil
}
