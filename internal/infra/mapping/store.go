// Package mapping loads the card-to-content mapping file.
//
// The file is line-oriented: the first whitespace-separated field is the
// card UID in hex, the last field is the target path (a file or directory).
// Blank lines and lines starting with '#' are skipped.
package mapping

import (
	"bufio"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cardbox/internal/domain/card"
)

// Binding associates a card with a content target path.
type Binding struct {
	Card   card.ID
	Target string
}

// Load reads all bindings from the mapping file.
// Duplicate card IDs are a load error.
func Load(path string) ([]Binding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mapping file")
	}
	defer f.Close()

	var bindings []Binding
	seen := make(map[card.ID]int)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Newf("mapping line %d: expected \"<uid> <path>\", got %q", lineNo, line)
		}

		id, err := card.Parse(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "mapping line %d", lineNo)
		}

		if prev, dup := seen[id]; dup {
			return nil, errors.Newf("mapping line %d: card %s already mapped on line %d", lineNo, id, prev)
		}
		seen[id] = lineNo

		target := fields[len(fields)-1]
		bindings = append(bindings, Binding{Card: id, Target: target})
		zlog.Debug().Msgf("mapping: card=%s target=%s", id, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read mapping file")
	}

	zlog.Info().Msgf("Loaded %d card mappings from %s", len(bindings), path)
	return bindings, nil
}
