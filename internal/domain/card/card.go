// Package card provides the card identifier value type.
package card

import (
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
)

// ID is the hex-encoded UID of an RFID card.
// IDs are compared for equality only; they carry no ordering semantics.
type ID string

var ErrInvalidID = errors.New("invalid card id")

// FromUID encodes a raw reader UID as an ID.
func FromUID(uid []byte) ID {
	return ID(hex.EncodeToString(uid))
}

// Parse normalizes and validates a textual card ID.
// Accepts any even-length hex string, case-insensitive.
func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", errors.Wrap(ErrInvalidID, "empty")
	}
	if len(s)%2 != 0 {
		return "", errors.Wrapf(ErrInvalidID, "odd-length hex %q", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", errors.Wrapf(ErrInvalidID, "not hex: %q", s)
	}
	return ID(s), nil
}

// String returns the hex form of the ID.
func (id ID) String() string {
	return string(id)
}
