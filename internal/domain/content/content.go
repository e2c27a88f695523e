// Package content provides the content entry domain type.
package content

import "github.com/cockroachdb/errors"

var ErrEmptyPlaylist = errors.New("playlist is empty")

// Entry is the playable content a card resolves to: a single track or an
// ordered playlist with a cursor. The cursor is always a valid index.
type Entry struct {
	tracks   []string
	cursor   int
	playlist bool
}

// NewTrack creates an entry holding a single playable file.
func NewTrack(path string) Entry {
	return Entry{tracks: []string{path}}
}

// NewPlaylist creates an entry holding an ordered sequence of files,
// cursor at the first track.
func NewPlaylist(paths []string) (Entry, error) {
	if len(paths) == 0 {
		return Entry{}, ErrEmptyPlaylist
	}
	tracks := make([]string, len(paths))
	copy(tracks, paths)
	return Entry{tracks: tracks, playlist: true}, nil
}

// Current returns the track at the cursor.
func (e *Entry) Current() string {
	return e.tracks[e.cursor]
}

// Advance moves the cursor to the next track.
// Returns false when the entry is exhausted; the cursor stays valid.
func (e *Entry) Advance() bool {
	if e.cursor+1 >= len(e.tracks) {
		return false
	}
	e.cursor++
	return true
}

// Rewind resets the cursor to the first track.
func (e *Entry) Rewind() {
	e.cursor = 0
}

// Cursor returns the current track index.
func (e *Entry) Cursor() int {
	return e.cursor
}

// Len returns the number of tracks.
func (e *Entry) Len() int {
	return len(e.tracks)
}

// IsPlaylist reports whether the entry came from a multi-track source.
func (e *Entry) IsPlaylist() bool {
	return e.playlist
}

// Tracks returns a copy of the track paths in play order.
func (e *Entry) Tracks() []string {
	out := make([]string, len(e.tracks))
	copy(out, e.tracks)
	return out
}
