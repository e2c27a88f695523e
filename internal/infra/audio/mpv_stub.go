//go:build !libmpv

package audio

import "github.com/cockroachdb/errors"

func newMpvBackend(settings map[string]any) (Backend, error) {
	return nil, errors.New("mpv backend is not enabled; build with -tags libmpv")
}
