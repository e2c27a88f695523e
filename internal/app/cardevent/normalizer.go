// Package cardevent turns raw card-presence polls into edge events.
//
// Hardware polling repeats the same UID for as long as a card sits on the
// reader, and single reads can flicker empty while the card is still there.
// The normalizer collapses that stream into discrete edges. Two thresholds
// shape the result:
//
//   - RemovalDebouncePolls: consecutive empty polls before a Removed is
//     confirmed. Shorter gaps never leak a Removed.
//   - RePresentMinPolls: the minimum gap for the same card returning to count
//     as a deliberate re-presentation (a second Arrived, the pause gesture).
//     Gaps below it are read noise and collapse into StillPresent.
//
// A different UID is never noise: it always produces Removed then Arrived,
// regardless of gap, so sessions cannot stack.
package cardevent

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/domain/card"
)

// Config holds normalizer configuration.
type Config struct {
	// RemovalDebouncePolls is the number of consecutive empty polls required
	// before a Removed event is emitted. Minimum 1.
	RemovalDebouncePolls int
	// RePresentMinPolls is the minimum empty-poll gap for a returning card to
	// count as a re-presentation rather than flicker. Minimum 1; must be
	// below RemovalDebouncePolls to be reachable.
	RePresentMinPolls int
}

// Normalizer tracks the last confirmed card and emits edge events.
// Not safe for concurrent use; the poll loop is its only caller.
type Normalizer struct {
	removalDebounce int
	rePresentMin    int
	present         bool
	lastSeen        card.ID
	emptyRuns       int
}

// New creates a normalizer.
func New(cfg Config) *Normalizer {
	removal := cfg.RemovalDebouncePolls
	if removal < 1 {
		removal = 1
	}
	rePresent := cfg.RePresentMinPolls
	if rePresent < 1 {
		rePresent = 1
	}
	return &Normalizer{removalDebounce: removal, rePresentMin: rePresent}
}

// Observe feeds one raw poll result into the normalizer and returns the edge
// events it produces, in order. present=false means no card was read; id is
// ignored in that case.
func (n *Normalizer) Observe(id card.ID, present bool) []Event {
	if !present {
		if !n.present {
			return nil
		}
		n.emptyRuns++
		if n.emptyRuns < n.removalDebounce {
			// Card may still be there; wait for absence to be confirmed.
			return nil
		}
		zlog.Debug().Msgf("cardevent: removal confirmed after %d empty polls: card=%s", n.emptyRuns, n.lastSeen)
		n.reset()
		return []Event{{Type: TypeRemoved}}
	}

	gap := n.emptyRuns
	n.emptyRuns = 0

	if !n.present {
		n.present = true
		n.lastSeen = id
		return []Event{{Type: TypeArrived, Card: id}}
	}

	if id != n.lastSeen {
		// A different UID with no confirmed removal is a card swap: emit
		// remove-then-insert so sessions never stack.
		zlog.Debug().Msgf("cardevent: card swap: old=%s new=%s", n.lastSeen, id)
		n.lastSeen = id
		return []Event{
			{Type: TypeRemoved},
			{Type: TypeArrived, Card: id},
		}
	}

	if gap >= n.rePresentMin {
		// The card left the field briefly and came back before removal was
		// confirmed: a deliberate re-presentation, not a new session.
		zlog.Debug().Msgf("cardevent: re-presentation after %d empty polls: card=%s", gap, id)
		return []Event{{Type: TypeArrived, Card: id}}
	}

	return []Event{{Type: TypeStillPresent, Card: id}}
}

func (n *Normalizer) reset() {
	n.present = false
	n.lastSeen = ""
	n.emptyRuns = 0
}
