// Package reader provides the card reader transport.
package reader

import "github.com/osa030/cardbox/internal/domain/card"

// Reader is the narrow hardware transport: one presence read per call.
// present is false when no card is in the field. Implementations must not
// block a poll cycle for longer than one read.
type Reader interface {
	Poll() (id card.ID, present bool, err error)
	Close() error
}
