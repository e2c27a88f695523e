package cardevent

import "github.com/osa030/cardbox/internal/domain/card"

// Type represents a card edge event type.
type Type int

const (
	TypeArrived      Type = iota // Card entered the reader field
	TypeStillPresent             // Card remains on the reader
	TypeRemoved                  // Card left the reader field
)

// String returns the string representation of the event type.
func (t Type) String() string {
	switch t {
	case TypeArrived:
		return "arrived"
	case TypeStillPresent:
		return "still_present"
	case TypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a discrete card transition derived from presence polling.
type Event struct {
	Type Type
	Card card.ID // Empty for TypeRemoved
}
