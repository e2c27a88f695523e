package reader

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/domain/card"
)

// SerialReaderConfig configures the serial reader.
//
// The device is a line-oriented UART/HID RFID reader (RDM6300-style) that
// repeats the card UID as a hex line every ~100ms while the card is in the
// field. Presence is derived from line recency: a card counts as present
// until no line has arrived for presence_window_ms.
type SerialReaderConfig struct {
	Device           string `yaml:"device" mapstructure:"device" validate:"required"`
	PresenceWindowMs int    `yaml:"presence_window_ms" mapstructure:"presence_window_ms" default:"500" validate:"gte=100,lte=5000"`
}

type serialReader struct {
	mu       sync.Mutex
	lastID   card.ID
	lastAt   time.Time
	readErr  error
	window   time.Duration
	f        *os.File
	closedCh chan struct{}
	wg       sync.WaitGroup
}

func newSerialReader(settings map[string]any) (*serialReader, error) {
	var cfg SerialReaderConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	f, err := os.Open(cfg.Device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open reader device %s", cfg.Device)
	}

	r := &serialReader{
		window:   time.Duration(cfg.PresenceWindowMs) * time.Millisecond,
		f:        f,
		closedCh: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.readLoop()

	return r, nil
}

// readLoop consumes UID lines from the device and records the most recent
// one. Lines that fail card validation are dropped with a debug log.
func (r *serialReader) readLoop() {
	defer r.wg.Done()

	scanner := bufio.NewScanner(r.f)
	for scanner.Scan() {
		id, err := card.Parse(scanner.Text())
		if err != nil {
			zlog.Debug().Msgf("reader: dropping unparseable line: %v", err)
			continue
		}
		r.mu.Lock()
		r.lastID = id
		r.lastAt = time.Now()
		r.mu.Unlock()
	}

	err := scanner.Err()
	select {
	case <-r.closedCh:
		return // Close in progress, EOF/err expected
	default:
	}
	if err == nil {
		err = io.EOF
	}
	r.mu.Lock()
	r.readErr = errors.Wrap(err, "reader device stream ended")
	r.mu.Unlock()
}

func (r *serialReader) Poll() (card.ID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readErr != nil {
		return "", false, r.readErr
	}
	if r.lastAt.IsZero() || time.Since(r.lastAt) > r.window {
		return "", false, nil
	}
	return r.lastID, true, nil
}

func (r *serialReader) Close() error {
	close(r.closedCh)
	err := r.f.Close()
	r.wg.Wait()
	return err
}
