package beat

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

const testTick = 10 * time.Microsecond

// harness drives a Manager with a hand-fed ticker
type harness struct {
	t     *testing.T
	m     *Manager
	ticks chan time.Time
	rec   *recorder
	log   *bytes.Buffer
	now   time.Time
}

func newHarness(t *testing.T, dir string, opts Options) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		ticks: make(chan time.Time),
		rec:   &recorder{},
		log:   &bytes.Buffer{},
		now:   time.Unix(1700000000, 0),
	}

	if opts.TickInterval == 0 {
		opts.TickInterval = testTick
	}
	if opts.ClockMode == "" {
		opts.ClockMode = ClockNominal
	}
	opts.Ticker = func(time.Duration) (<-chan time.Time, func()) {
		return h.ticks, func() {}
	}
	if opts.Trigger == nil {
		opts.Trigger = h.rec
	}
	if opts.Resolver == nil && dir != "" {
		opts.Resolver = ResolverFunc(func(api.Song) (string, bool) { return dir, true })
	}
	opts.Logger = zerolog.New(h.log)

	h.m = NewManager(opts)
	ctx, cancel := context.WithCancel(context.Background())
	h.m.Start(ctx)
	t.Cleanup(func() {
		h.m.Stop()
		cancel()
	})
	return h
}

// tick sends n ticks spaced one nominal interval apart
func (h *harness) tick(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.now = h.now.Add(h.m.opts.TickInterval)
		h.ticks <- h.now
	}
	h.sync()
}

// tickAt sends a single tick stamped at
func (h *harness) tickAt(at time.Time) {
	h.t.Helper()
	h.now = at
	h.ticks <- at
	h.sync()
}

// sync waits until the worker has finished everything sent so far
func (h *harness) sync() {
	h.t.Helper()
	if _, err := h.m.Channels(); err != nil {
		h.t.Fatalf("Channels: %v", err)
	}
}

func (h *harness) positions() map[string]int {
	h.t.Helper()
	status, err := h.m.Channels()
	if err != nil {
		h.t.Fatalf("Channels: %v", err)
	}
	out := make(map[string]int, len(status))
	for _, s := range status {
		out[s.Name] = s.Position
	}
	return out
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func writeBeatDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var testSong = api.Song{ID: "song-1", Title: "Test Song"}

func TestResumeDoesNotRefire(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "A\n14\n1E\n28\n"})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(2)

	if got := len(h.rec.snapshot()); got != 2 {
		t.Fatalf("fired %d before pause, want 2", got)
	}

	must(t, h.m.OnPause())
	pausedAt := h.m.Elapsed()
	h.tick(3)
	if h.m.Elapsed() != pausedAt {
		t.Errorf("clock moved while paused: %v -> %v", pausedAt, h.m.Elapsed())
	}

	// Same song again, as the resume path does
	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.OnResume())
	if got := len(h.rec.snapshot()); got != 2 {
		t.Fatalf("resume re-fired events: %d calls", got)
	}

	h.tick(1)
	calls := h.rec.snapshot()
	if len(calls) != 3 || calls[2].beats[0] != us(30) {
		t.Errorf("after resume got %v, want only the 30µs beat added", calls)
	}
}

func TestChordFiresAsOneCall(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"c": "[A, 14, 1E]\n"})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(2)
	if len(h.rec.snapshot()) != 0 {
		t.Fatal("chord fired before its last member was due")
	}

	h.tick(5)
	calls := h.rec.snapshot()
	if len(calls) != 1 || len(calls[0].beats) != 3 {
		t.Errorf("got %v, want exactly one call carrying three beats", calls)
	}
}

func TestReadBeatsIsMemoized(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\n", "b": "1\n"})

	var parses atomic.Int32
	h := newHarness(t, dir, Options{
		Parse: func(path string) (Channel, error) {
			parses.Add(1)
			return ParseFile(path)
		},
	})

	must(t, h.m.ReadBeats(testSong, 3))
	must(t, h.m.ReadBeats(testSong, 3))
	if got := parses.Load(); got != 2 {
		t.Errorf("parser called %d times for a repeated song, want 2", got)
	}

	must(t, h.m.ReadBeats(api.Song{ID: "song-2"}, 4))
	if got := parses.Load(); got != 4 {
		t.Errorf("parser called %d times after a song change, want 4", got)
	}
}

func TestMalformedFileIsIsolated(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{
		"bad.txt":   "0\nnot-hex\n",
		"good1.txt": "0\nA\n",
		"good2.txt": "[1,2]\n",
	})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))

	status, err := h.m.Channels()
	must(t, err)
	if len(status) != 2 {
		t.Fatalf("loaded %d channels, want 2", len(status))
	}
	for _, s := range status {
		if s.Name == "bad.txt" {
			t.Error("malformed file was loaded")
		}
	}

	logged := h.log.String()
	if !strings.Contains(logged, "skipping beat file") || !strings.Contains(logged, "bad.txt") {
		t.Errorf("expected a warning naming bad.txt, log was: %s", logged)
	}
}

func TestRewindResetsEveryChannel(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{
		"a": "0\nA\n14\n",
		"b": "5\nF\n",
		"c": "14\n28\n",
	})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(2)

	pos := h.positions()
	if pos["a"] != 3 || pos["b"] != 2 || pos["c"] != 1 {
		t.Fatalf("positions before rewind = %v", pos)
	}

	must(t, h.m.OnPause())
	must(t, h.m.OnRewind())
	for name, p := range h.positions() {
		if p != 0 {
			t.Errorf("channel %s at %d after rewind", name, p)
		}
	}
	if h.m.Elapsed() != 0 {
		t.Errorf("clock at %v after rewind", h.m.Elapsed())
	}

	before := len(h.rec.snapshot())
	h.tick(1)
	added := h.rec.snapshot()[before:]
	if len(added) != 1 || added[0].channel != "a" || added[0].beats[0] != 0 {
		t.Errorf("poll at zero fired %v, want only a's 0 beat", added)
	}
}

func TestResetBeatsKeepsClock(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\nA\n"})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(1)
	must(t, h.m.ResetBeats())

	if h.positions()["a"] != 0 {
		t.Error("ResetBeats did not reset the cursor")
	}
	if h.m.Elapsed() != testTick {
		t.Errorf("ResetBeats changed the clock to %v", h.m.Elapsed())
	}
}

func TestMissingDirectoryYieldsNoChannels(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "nope"), Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	status, err := h.m.Channels()
	must(t, err)
	if len(status) != 0 {
		t.Errorf("got %d channels from a missing directory", len(status))
	}
	if strings.Contains(h.log.String(), `"level":"warn"`) {
		t.Errorf("a missing directory should not warn: %s", h.log.String())
	}
	if h.m.State() != StateLoaded {
		t.Errorf("state = %v, want loaded", h.m.State())
	}
}

func TestSongChangeStopsPollingUntilTracked(t *testing.T) {
	first := writeBeatDir(t, map[string]string{"a": "1E\n"})
	second := writeBeatDir(t, map[string]string{"b": "0\nA\n"})

	dir := first
	h := newHarness(t, "", Options{
		Resolver: ResolverFunc(func(api.Song) (string, bool) { return dir, true }),
	})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(2)

	dir = second
	must(t, h.m.ReadBeats(api.Song{ID: "song-2"}, 1))
	if h.m.State() != StateLoaded {
		t.Fatalf("state = %v after song change, want loaded", h.m.State())
	}
	h.tick(1)
	if len(h.rec.snapshot()) != 0 {
		t.Fatal("new song's cursors were polled against the old clock")
	}

	must(t, h.m.OnRewind())
	must(t, h.m.StartTracking())
	h.tick(1)
	if got := len(h.rec.snapshot()); got != 2 {
		t.Errorf("fired %d beats of the new song, want 2", got)
	}
}

func TestSeekRepositionsCursors(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\nA\n14\n1E\n"})
	h := newHarness(t, dir, Options{})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	must(t, h.m.OnPause())
	must(t, h.m.Seek(us(15)))

	if got := h.positions()["a"]; got != 2 {
		t.Fatalf("position after seek = %d, want 2", got)
	}
	h.tick(1)
	if len(h.rec.snapshot()) != 0 {
		t.Fatal("beats before the seek target fired")
	}

	must(t, h.m.OnResume())
	h.tick(1)
	calls := h.rec.snapshot()
	if len(calls) != 1 || calls[0].beats[0] != us(20) {
		t.Errorf("after seek fired %v, want the 20µs beat", calls)
	}
}

func TestCorrectMovesClockBeyondThreshold(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\nA\n"})
	h := newHarness(t, dir, Options{DriftThreshold: us(5)})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(1)

	must(t, h.m.Correct(us(13)))
	if h.m.Elapsed() != us(10) {
		t.Errorf("drift within threshold moved the clock to %v", h.m.Elapsed())
	}

	must(t, h.m.Correct(us(100)))
	if h.m.Elapsed() != us(100) {
		t.Errorf("Elapsed() = %v after correction, want 100µs", h.m.Elapsed())
	}

	must(t, h.m.Correct(us(0)))
	h.tick(1)
	if got := len(h.rec.snapshot()); got != 2 {
		t.Errorf("backward correction re-fired beats: %d calls", got)
	}
}

func TestLargeForwardCorrectionSkipsBeats(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\nA\n14\n1E\n64\n"})
	h := newHarness(t, dir, Options{DriftThreshold: us(5), CatchUpWindow: us(50)})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(1)
	if got := len(h.rec.snapshot()); got != 2 {
		t.Fatalf("fired %d calls by 10µs, want 2", got)
	}

	// within the window the skipped beats fire late
	must(t, h.m.Correct(us(40)))
	h.tick(1)
	if got := len(h.rec.snapshot()); got != 4 {
		t.Errorf("fired %d calls after a small jump, want 4", got)
	}

	// beyond it they count as played
	must(t, h.m.Correct(us(200)))
	h.tick(1)
	if got := len(h.rec.snapshot()); got != 4 {
		t.Errorf("large jump fired skipped beats: %d calls", got)
	}
	if got := h.positions()["a"]; got != 5 {
		t.Errorf("position after large jump = %d, want 5", got)
	}
}

func TestWallclockModeUsesTickSpacing(t *testing.T) {
	h := newHarness(t, writeBeatDir(t, nil), Options{ClockMode: ClockWallclock})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())

	start := h.now
	h.tickAt(start)                     // first tick counts one nominal interval
	h.tickAt(start.Add(us(25)))         // late tick
	h.tickAt(start.Add(us(30)))         // early tick
	h.tickAt(start.Add(us(30) - us(1))) // clock never goes back

	if got, want := h.m.Elapsed(), testTick+us(30); got != want {
		t.Errorf("Elapsed() = %v, want %v", got, want)
	}
}

func TestLifecycleErrors(t *testing.T) {
	idle := NewManager(Options{})
	if err := idle.StartTracking(); !errors.Is(err, playerrors.ErrBeatsNotStarted) {
		t.Errorf("call before Start = %v, want ErrBeatsNotStarted", err)
	}

	h := newHarness(t, "", Options{})
	if err := h.m.StartTracking(); !errors.Is(err, playerrors.ErrNoSongLoaded) {
		t.Errorf("StartTracking while idle = %v, want ErrNoSongLoaded", err)
	}
	if err := h.m.OnResume(); !errors.Is(err, playerrors.ErrNoSongLoaded) {
		t.Errorf("OnResume while idle = %v, want ErrNoSongLoaded", err)
	}
	if err := h.m.OnPause(); !errors.Is(err, playerrors.ErrInvalidTransition) {
		t.Errorf("OnPause while idle = %v, want ErrInvalidTransition", err)
	}

	h.m.Stop()
	if h.m.State() != StateStopped {
		t.Errorf("state = %v after Stop", h.m.State())
	}
	if err := h.m.ReadBeats(testSong, 0); !errors.Is(err, playerrors.ErrBeatsStopped) {
		t.Errorf("ReadBeats after Stop = %v, want ErrBeatsStopped", err)
	}
	h.m.Stop()
}

func TestContextCancelStopsWorker(t *testing.T) {
	m := NewManager(Options{Ticker: func(time.Duration) (<-chan time.Time, func()) {
		return make(chan time.Time), func() {}
	}})
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	<-m.done

	if err := m.OnRewind(); !errors.Is(err, playerrors.ErrBeatsStopped) {
		t.Errorf("call after cancel = %v, want ErrBeatsStopped", err)
	}
}

func TestPanickingTriggerDoesNotStopScheduler(t *testing.T) {
	dir := writeBeatDir(t, map[string]string{"a": "0\nA\n"})
	h := newHarness(t, dir, Options{
		Trigger: TriggerFunc(func(string, []time.Duration) { panic("light on fire") }),
	})

	must(t, h.m.ReadBeats(testSong, 0))
	must(t, h.m.StartTracking())
	h.tick(1)

	if got := h.positions()["a"]; got != 2 {
		t.Errorf("position = %d, want 2 despite the panics", got)
	}
	if !strings.Contains(h.log.String(), "light trigger panicked") {
		t.Error("panic was not logged")
	}
}
