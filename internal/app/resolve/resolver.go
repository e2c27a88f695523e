// Package resolve maps card IDs to playable content.
package resolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/domain/card"
	"github.com/osa030/cardbox/internal/domain/content"
	"github.com/osa030/cardbox/internal/infra/mapping"
)

// Errors
var (
	ErrUnknownCard       = errors.New("card is not mapped")
	ErrNoPlayableFiles   = errors.New("no playable files in directory")
	ErrContentUnreadable = errors.New("content target is unreadable")
)

// playableExts are the file extensions considered playable content.
var playableExts = map[string]bool{
	".mp3":  true,
	".ogg":  true,
	".flac": true,
	".wav":  true,
	".m4a":  true,
}

// IsPlayable reports whether a file name has a playable extension.
func IsPlayable(name string) bool {
	return playableExts[strings.ToLower(filepath.Ext(name))]
}

// Resolver is a pure lookup from card IDs to content entries.
// The table is built once at construction and never mutated.
type Resolver struct {
	baseDir string
	table   map[card.ID]string
}

// New builds a resolver over the loaded mapping. Relative targets resolve
// against baseDir.
func New(baseDir string, bindings []mapping.Binding) *Resolver {
	table := make(map[card.ID]string, len(bindings))
	for _, b := range bindings {
		table[b.Card] = b.Target
	}
	return &Resolver{baseDir: baseDir, table: table}
}

// Resolve looks up the content entry for a card. Directory targets expand to
// a playlist of playable files in lexicographic order; expansion happens at
// resolve time so the play order is deterministic.
func (r *Resolver) Resolve(id card.ID) (content.Entry, error) {
	target, ok := r.table[id]
	if !ok {
		return content.Entry{}, errors.Wrapf(ErrUnknownCard, "card %s", id)
	}

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return content.Entry{}, errors.Wrapf(ErrContentUnreadable, "card %s: %v", id, err)
	}

	if !info.IsDir() {
		return content.NewTrack(path), nil
	}

	tracks, err := expandDir(path)
	if err != nil {
		return content.Entry{}, errors.Wrapf(err, "card %s", id)
	}
	zlog.Debug().Msgf("resolve: card=%s expanded %s to %d tracks", id, path, len(tracks))
	return content.NewPlaylist(tracks)
}

// Lookup returns the raw target for a card, for operator tooling.
func (r *Resolver) Lookup(id card.ID) (string, bool) {
	target, ok := r.table[id]
	return target, ok
}

// expandDir enumerates the playable files directly inside dir, sorted by name.
func expandDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrContentUnreadable, "%v", err)
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() || !IsPlayable(e.Name()) {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, e.Name()))
	}
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrNoPlayableFiles, "%s", dir)
	}

	// ReadDir sorts by filename, but keep the ordering explicit rather than
	// relying on that contract.
	sort.Strings(tracks)
	return tracks, nil
}
