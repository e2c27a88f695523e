// Package audio provides playback backends.
package audio

// Backend produces sound for the session controller. Finished must be a
// non-blocking query; the poll loop calls it every cycle while playing.
type Backend interface {
	// Play starts playing the file, replacing any current playback.
	Play(path string) error
	Pause() error
	Resume() error
	// Stop ends playback and discards the current track.
	Stop() error
	// Finished reports whether the current track has played to the end.
	Finished() bool
	Close() error
}
