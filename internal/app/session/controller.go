package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/app/cardevent"
	"github.com/osa030/cardbox/internal/app/resolve"
	"github.com/osa030/cardbox/internal/domain/card"
	"github.com/osa030/cardbox/internal/domain/content"
	"github.com/osa030/cardbox/internal/infra/audio"
	"github.com/osa030/cardbox/internal/infra/config"
	"github.com/osa030/cardbox/internal/infra/reader"
)

// Config holds controller configuration.
type Config struct {
	PollInterval           time.Duration
	ResumePolicy           config.ResumePolicy
	LoopPlaylists          bool
	ReaderFailureThreshold int
}

// Controller owns the playback session and runs the poll loop.
//
// All state is mutated from a single goroutine (the Run loop, or a test
// driving cycles directly); no locking is needed or provided. The invariant
// throughout: state != StateIdle implies an active card and a non-empty
// content entry.
type Controller struct {
	cfg        Config
	reader     reader.Reader
	backend    audio.Backend
	resolver   *resolve.Resolver
	normalizer *cardevent.Normalizer

	state      State
	activeCard card.ID
	entry      content.Entry
	sessionID  string

	readerFailures int
}

// New creates a controller.
func New(cfg Config, rdr reader.Reader, backend audio.Backend, resolver *resolve.Resolver, normalizer *cardevent.Normalizer) *Controller {
	if cfg.ReaderFailureThreshold < 1 {
		cfg.ReaderFailureThreshold = 1
	}
	return &Controller{
		cfg:        cfg,
		reader:     rdr,
		backend:    backend,
		resolver:   resolver,
		normalizer: normalizer,
	}
}

// Run executes the poll loop until ctx is cancelled. Any in-flight playback
// is stopped synchronously before returning.
func (c *Controller) Run(ctx context.Context) error {
	zlog.Info().Msgf("Session controller started: poll_interval=%v resume_policy=%s loop=%t",
		c.cfg.PollInterval, c.cfg.ResumePolicy, c.cfg.LoopPlaylists)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.state != StateIdle {
				c.endSession("shutdown")
			}
			zlog.Info().Msg("Session controller stopped")
			return nil
		case <-ticker.C:
			c.cycle()
		}
	}
}

// State returns the current session state. Only meaningful between cycles;
// callers outside the Run goroutine get a snapshot for display purposes.
func (c *Controller) State() State {
	return c.state
}

// ActiveCard returns the card driving the current session, if any.
func (c *Controller) ActiveCard() (card.ID, bool) {
	return c.activeCard, c.state != StateIdle
}

// cycle performs one poll iteration: read hardware, normalize, dispatch,
// then check the backend for track completion.
func (c *Controller) cycle() {
	id, present, err := c.reader.Poll()
	if err != nil {
		c.readerFailures++
		if c.readerFailures == c.cfg.ReaderFailureThreshold {
			zlog.Warn().Msgf("session: card reader failing for %d consecutive polls: %v", c.readerFailures, err)
		} else {
			zlog.Debug().Msgf("session: card reader poll failed: %v", err)
		}
	} else {
		if c.readerFailures >= c.cfg.ReaderFailureThreshold {
			zlog.Info().Msgf("session: card reader recovered after %d failed polls", c.readerFailures)
		}
		c.readerFailures = 0
		for _, ev := range c.normalizer.Observe(id, present) {
			c.handleEvent(ev)
		}
	}

	if c.state == StatePlaying && c.backend.Finished() {
		c.onTrackFinished()
	}
}

func (c *Controller) handleEvent(ev cardevent.Event) {
	switch ev.Type {
	case cardevent.TypeStillPresent:
		// The card sitting on the reader is not a gesture.
	case cardevent.TypeArrived:
		c.onArrived(ev.Card)
	case cardevent.TypeRemoved:
		if c.state != StateIdle {
			c.endSession("card removed")
		}
	}
}

func (c *Controller) onArrived(id card.ID) {
	if c.state != StateIdle && id == c.activeCard {
		c.togglePause()
		return
	}

	if c.state != StateIdle {
		c.endSession("card swapped")
	}

	entry, err := c.resolver.Resolve(id)
	if err != nil {
		// Unknown or unreadable cards are silent to the listener; the
		// session is untouched.
		if errors.Is(err, resolve.ErrUnknownCard) {
			zlog.Warn().Msgf("session: card %s is not mapped", id)
		} else {
			zlog.Error().Msgf("session: failed to resolve card %s: %v", id, err)
		}
		return
	}

	c.beginSession(id, entry)
}

func (c *Controller) beginSession(id card.ID, entry content.Entry) {
	c.sessionID = uuid.New().String()
	c.activeCard = id
	c.entry = entry
	zlog.Info().Msgf("session: started: card=%s session=%s tracks=%d", id, c.sessionID, entry.Len())
	c.startCurrent()
}

// startCurrent starts the track at the cursor, skipping over tracks the
// backend cannot start. A start failure counts as that track finishing.
func (c *Controller) startCurrent() {
	attempts := 0
	for {
		trk := c.entry.Current()
		err := c.backend.Play(trk)
		if err == nil {
			c.state = StatePlaying
			zlog.Info().Msgf("session: playing track %d/%d: %s", c.entry.Cursor()+1, c.entry.Len(), trk)
			return
		}

		zlog.Error().Msgf("session: failed to start track %s: %v", trk, err)
		attempts++
		if attempts >= c.entry.Len() || !c.advance() {
			c.endSession("no playable tracks")
			return
		}
	}
}

// advance moves to the next track, wrapping to the start when the loop
// policy is enabled. Returns false when the entry is exhausted.
func (c *Controller) advance() bool {
	if c.entry.Advance() {
		return true
	}
	if c.cfg.LoopPlaylists {
		c.entry.Rewind()
		return true
	}
	return false
}

func (c *Controller) onTrackFinished() {
	zlog.Debug().Msgf("session: track finished: %s", c.entry.Current())
	if c.advance() {
		c.startCurrent()
		return
	}
	c.endSession("playlist finished")
}

// togglePause handles the pause gesture: the active card re-presented.
func (c *Controller) togglePause() {
	switch c.state {
	case StatePlaying:
		if err := c.backend.Pause(); err != nil {
			zlog.Error().Msgf("session: failed to pause: %v", err)
			return
		}
		c.state = StatePaused
		zlog.Info().Msgf("session: paused: card=%s session=%s", c.activeCard, c.sessionID)
	case StatePaused:
		if c.cfg.ResumePolicy == config.ResumeRestart {
			zlog.Info().Msgf("session: restarting track: card=%s session=%s", c.activeCard, c.sessionID)
			c.startCurrent()
			return
		}
		if err := c.backend.Resume(); err != nil {
			zlog.Error().Msgf("session: failed to resume: %v", err)
			return
		}
		c.state = StatePlaying
		zlog.Info().Msgf("session: resumed: card=%s session=%s", c.activeCard, c.sessionID)
	}
}

// endSession stops playback and resets the session to empty.
func (c *Controller) endSession(reason string) {
	if err := c.backend.Stop(); err != nil {
		zlog.Error().Msgf("session: failed to stop backend: %v", err)
	}
	zlog.Info().Msgf("session: ended (%s): card=%s session=%s", reason, c.activeCard, c.sessionID)
	c.state = StateIdle
	c.activeCard = ""
	c.entry = content.Entry{}
	c.sessionID = ""
}
