//go:build libmpv

package audio

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	mpv "github.com/gen2brain/go-mpv"
	zlog "github.com/rs/zerolog/log"
)

// mpvBackend plays files through libmpv, which handles every format the
// player cares about. Built only with -tags libmpv.
type mpvBackend struct {
	mu          sync.Mutex
	client      *mpv.Mpv
	finished    atomic.Bool
	closeOnce   sync.Once
	eventLoopWG sync.WaitGroup
}

func newMpvBackend(settings map[string]any) (Backend, error) {
	client := mpv.New()
	if client == nil {
		return nil, errors.New("failed to create libmpv instance")
	}

	_ = client.SetOptionString("terminal", "no")
	_ = client.SetOptionString("video", "no")
	_ = client.SetOptionString("audio-display", "no")
	_ = client.SetOptionString("keep-open", "no")

	if err := client.Initialize(); err != nil {
		client.TerminateDestroy()
		return nil, errors.Wrap(err, "failed to initialize libmpv")
	}

	b := &mpvBackend{client: client}

	_ = client.RequestEvent(mpv.EventEnd, true)

	b.eventLoopWG.Add(1)
	go b.eventLoop()

	return b, nil
}

func (b *mpvBackend) eventLoop() {
	defer b.eventLoopWG.Done()

	for {
		event := b.client.WaitEvent(0.5)
		if event == nil {
			continue
		}

		switch event.EventID {
		case mpv.EventShutdown:
			return
		case mpv.EventEnd:
			end := event.EndFile()
			if end.Reason != mpv.EndFileEOF {
				continue
			}
			zlog.Debug().Msg("audio: mpv reached end of file")
			b.finished.Store(true)
		}
	}
}

func (b *mpvBackend) Play(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finished.Store(false)
	if err := b.client.Command([]string{"loadfile", path, "replace"}); err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}
	if err := b.client.SetPropertyString("pause", "no"); err != nil {
		return errors.Wrap(err, "failed to start playback")
	}
	return nil
}

func (b *mpvBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.SetPropertyString("pause", "yes"); err != nil {
		return errors.Wrap(err, "failed to pause playback")
	}
	return nil
}

func (b *mpvBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.SetPropertyString("pause", "no"); err != nil {
		return errors.Wrap(err, "failed to resume playback")
	}
	return nil
}

func (b *mpvBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finished.Store(false)
	if err := b.client.Command([]string{"stop"}); err != nil {
		return errors.Wrap(err, "failed to stop playback")
	}
	return nil
}

func (b *mpvBackend) Finished() bool {
	return b.finished.Load()
}

func (b *mpvBackend) Close() error {
	b.closeOnce.Do(func() {
		b.client.Wakeup()
		b.client.TerminateDestroy()
		b.eventLoopWG.Wait()
	})
	return nil
}
