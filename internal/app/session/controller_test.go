package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cardbox/internal/app/cardevent"
	"github.com/osa030/cardbox/internal/app/resolve"
	"github.com/osa030/cardbox/internal/domain/card"
	"github.com/osa030/cardbox/internal/infra/config"
	"github.com/osa030/cardbox/internal/infra/mapping"
)

// scriptedReader replays one poll result per cycle; empty means absent.
// After the script runs out it reads absent.
type scriptedReader struct {
	polls []card.ID
	pos   int
}

func (r *scriptedReader) Poll() (card.ID, bool, error) {
	if r.pos >= len(r.polls) {
		return "", false, nil
	}
	id := r.polls[r.pos]
	r.pos++
	return id, id != "", nil
}

func (r *scriptedReader) Close() error { return nil }

type failingReader struct {
	calls int
}

func (r *failingReader) Poll() (card.ID, bool, error) {
	r.calls++
	return "", false, errors.New("bus glitch")
}

func (r *failingReader) Close() error { return nil }

// fakeBackend records commands; tests flip finished to simulate track end.
// The mutex only matters for tests that drive Run in a goroutine.
type fakeBackend struct {
	mu        sync.Mutex
	current   string
	playing   bool
	paused    bool
	finished  bool
	playLog   []string
	stopCalls int
	failPaths map[string]bool
}

func (b *fakeBackend) Play(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPaths[path] {
		return errors.New("cannot open")
	}
	b.current = path
	b.playing = true
	b.paused = false
	b.finished = false
	b.playLog = append(b.playLog, filepath.Base(path))
	return nil
}

func (b *fakeBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
	return nil
}

func (b *fakeBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
	return nil
}

func (b *fakeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = false
	b.current = ""
	b.stopCalls++
	return nil
}

func (b *fakeBackend) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) playedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.playLog)
}

func (b *fakeBackend) isPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

// testBed wires a controller over real content on disk:
//
//	card aa -> single.mp3
//	card bb -> album/ (t1.mp3 t2.mp3 t3.mp3)
type testBed struct {
	ctrl    *Controller
	backend *fakeBackend
	reader  *scriptedReader
}

func newTestBed(t *testing.T, cfg Config, polls []card.ID) *testBed {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "single.mp3"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "album"), 0755))
	for _, name := range []string{"t1.mp3", "t2.mp3", "t3.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "album", name), []byte("x"), 0644))
	}

	resolver := resolve.New(dir, []mapping.Binding{
		{Card: card.ID("aa"), Target: "single.mp3"},
		{Card: card.ID("bb"), Target: "album"},
		{Card: card.ID("dd"), Target: "missing.mp3"},
	})

	// One empty poll is enough for a re-presentation; three confirm removal.
	normalizer := cardevent.New(cardevent.Config{
		RemovalDebouncePolls: 3,
		RePresentMinPolls:    1,
	})

	backend := &fakeBackend{failPaths: map[string]bool{}}
	rdr := &scriptedReader{polls: polls}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	return &testBed{
		ctrl:    New(cfg, rdr, backend, resolver, normalizer),
		backend: backend,
		reader:  rdr,
	}
}

func (tb *testBed) cycles(n int) {
	for i := 0; i < n; i++ {
		tb.ctrl.cycle()
	}
}

func TestController_PlaySingleTrack(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"aa"})
	tb.cycles(1)

	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Equal(t, []string{"single.mp3"}, tb.backend.playLog)

	active, ok := tb.ctrl.ActiveCard()
	assert.True(t, ok)
	assert.Equal(t, card.ID("aa"), active)
}

func TestController_UnknownCardIgnored(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"ff", "ff"})
	tb.cycles(2)

	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.Empty(t, tb.backend.playLog)
}

func TestController_UnreadableContentIgnored(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"dd"})
	tb.cycles(1)

	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.Empty(t, tb.backend.playLog)
}

func TestController_StillPresentIsNoOp(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"aa", "aa", "aa", "aa"})
	tb.cycles(4)

	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Len(t, tb.backend.playLog, 1)
}

func TestController_PauseResumeRoundtrip(t *testing.T) {
	// aa arrives; a short lift and retap pauses; another one resumes.
	tb := newTestBed(t, Config{ResumePolicy: config.ResumePosition},
		[]card.ID{"aa", "", "aa", "", "aa"})

	tb.cycles(1)
	assert.Equal(t, StatePlaying, tb.ctrl.State())

	tb.cycles(2)
	assert.Equal(t, StatePaused, tb.ctrl.State())
	assert.True(t, tb.backend.paused)

	tb.cycles(2)
	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.False(t, tb.backend.paused)

	// Resume came from the backend's paused position, not a fresh start.
	assert.Len(t, tb.backend.playLog, 1)
}

func TestController_ResumeRestartPolicy(t *testing.T) {
	tb := newTestBed(t, Config{ResumePolicy: config.ResumeRestart},
		[]card.ID{"aa", "", "aa", "", "aa"})

	tb.cycles(5)
	assert.Equal(t, StatePlaying, tb.ctrl.State())
	// The resume gesture restarted the track from the top.
	assert.Equal(t, []string{"single.mp3", "single.mp3"}, tb.backend.playLog)
}

func TestController_PausedTrackDoesNotFinish(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"bb", "", "bb", "bb", "bb"})

	tb.cycles(3)
	require.Equal(t, StatePaused, tb.ctrl.State())

	// A finished flag must not advance a paused session.
	tb.backend.finished = true
	tb.cycles(2)
	assert.Equal(t, StatePaused, tb.ctrl.State())
	assert.Equal(t, []string{"t1.mp3"}, tb.backend.playLog)
}

func TestController_RemovalStopsSession(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"aa", "", "", ""})

	tb.cycles(1)
	require.Equal(t, StatePlaying, tb.ctrl.State())

	// Two empty polls are still within the debounce window.
	tb.cycles(2)
	assert.Equal(t, StatePlaying, tb.ctrl.State())

	tb.cycles(1)
	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.Equal(t, 1, tb.backend.stopCalls)

	_, ok := tb.ctrl.ActiveCard()
	assert.False(t, ok)
}

func TestController_RepresentationAfterRemovalStartsOver(t *testing.T) {
	// Play bb into its second track, remove the card, present it again:
	// playback starts from the first track with nothing carried over.
	tb := newTestBed(t, Config{}, []card.ID{"bb", "bb", "", "", "", "bb"})

	tb.cycles(1)
	require.Equal(t, []string{"t1.mp3"}, tb.backend.playLog)

	tb.backend.finished = true
	tb.cycles(1)
	tb.backend.finished = false
	require.Equal(t, []string{"t1.mp3", "t2.mp3"}, tb.backend.playLog)

	tb.cycles(3)
	require.Equal(t, StateIdle, tb.ctrl.State())

	tb.cycles(1)
	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Equal(t, []string{"t1.mp3", "t2.mp3", "t1.mp3"}, tb.backend.playLog)
}

func TestController_CardSwapStartsNewSession(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"aa", "bb"})

	tb.cycles(1)
	require.Equal(t, []string{"single.mp3"}, tb.backend.playLog)

	tb.cycles(1)
	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Equal(t, []string{"single.mp3", "t1.mp3"}, tb.backend.playLog)
	assert.Equal(t, 1, tb.backend.stopCalls)

	active, _ := tb.ctrl.ActiveCard()
	assert.Equal(t, card.ID("bb"), active)
}

func TestController_PlaylistExhaustion(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"bb", "bb", "bb", "bb"})

	tb.cycles(1)
	require.Equal(t, []string{"t1.mp3"}, tb.backend.playLog)

	for _, want := range []string{"t2.mp3", "t3.mp3"} {
		tb.backend.finished = true
		tb.cycles(1)
		tb.backend.finished = false
		assert.Equal(t, want, tb.backend.playLog[len(tb.backend.playLog)-1])
		assert.Equal(t, StatePlaying, tb.ctrl.State())
	}

	tb.backend.finished = true
	tb.cycles(1)
	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.Equal(t, []string{"t1.mp3", "t2.mp3", "t3.mp3"}, tb.backend.playLog)
}

func TestController_LoopPolicyWrapsPlaylist(t *testing.T) {
	tb := newTestBed(t, Config{LoopPlaylists: true}, []card.ID{"bb", "bb", "bb", "bb", "bb"})

	tb.cycles(1)
	for i := 0; i < 3; i++ {
		tb.backend.finished = true
		tb.cycles(1)
		tb.backend.finished = false
	}

	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Equal(t, []string{"t1.mp3", "t2.mp3", "t3.mp3", "t1.mp3"}, tb.backend.playLog)
}

func TestController_StartFailureSkipsTrack(t *testing.T) {
	// Fail the first album track; playback lands on the second.
	tb := newTestBed(t, Config{}, []card.ID{"bb"})
	tb.backend.failPaths[filepath.Join(albumDir(tb), "t1.mp3")] = true
	tb.cycles(1)

	assert.Equal(t, StatePlaying, tb.ctrl.State())
	assert.Equal(t, []string{"t2.mp3"}, tb.backend.playLog)
}

func TestController_AllTracksFailReturnsToIdle(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"bb"})
	for _, name := range []string{"t1.mp3", "t2.mp3", "t3.mp3"} {
		tb.backend.failPaths[filepath.Join(albumDir(tb), name)] = true
	}

	tb.cycles(1)
	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.Empty(t, tb.backend.playLog)
}

// Full scenario: playlist card arrives, first track finishes, card removed.
func TestController_PlaylistScenario(t *testing.T) {
	tb := newTestBed(t, Config{}, []card.ID{"bb", "bb", "", "", ""})

	tb.cycles(1)
	assert.Equal(t, []string{"t1.mp3"}, tb.backend.playLog)

	tb.backend.finished = true
	tb.cycles(1)
	tb.backend.finished = false
	assert.Equal(t, []string{"t1.mp3", "t2.mp3"}, tb.backend.playLog)

	tb.cycles(3)
	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.False(t, tb.backend.playing)
}

func TestController_ReaderFailuresKeepLoopRunning(t *testing.T) {
	dir := t.TempDir()
	resolver := resolve.New(dir, nil)
	normalizer := cardevent.New(cardevent.Config{RemovalDebouncePolls: 3, RePresentMinPolls: 1})
	backend := &fakeBackend{}
	rdr := &failingReader{}

	ctrl := New(Config{
		PollInterval:           10 * time.Millisecond,
		ReaderFailureThreshold: 3,
	}, rdr, backend, resolver, normalizer)

	for i := 0; i < 10; i++ {
		ctrl.cycle()
	}
	assert.Equal(t, 10, rdr.calls)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestController_RunStopsPlaybackOnShutdown(t *testing.T) {
	tb := newTestBed(t, Config{PollInterval: 5 * time.Millisecond}, repeat("aa", 200))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.ctrl.Run(ctx) }()

	require.Eventually(t, func() bool {
		return tb.backend.playedCount() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}

	assert.Equal(t, StateIdle, tb.ctrl.State())
	assert.False(t, tb.backend.isPlaying())
}

func repeat(id card.ID, n int) []card.ID {
	out := make([]card.ID, n)
	for i := range out {
		out[i] = id
	}
	return out
}

// albumDir returns the on-disk album directory for card bb.
func albumDir(tb *testBed) string {
	entry, err := tb.ctrl.resolver.Resolve(card.ID("bb"))
	if err != nil {
		panic(err)
	}
	return filepath.Dir(entry.Current())
}
