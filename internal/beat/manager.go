package beat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// State is the lifecycle state of a Manager
type State int32

const (
	StateIdle State = iota
	StateLoaded
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ClockMode selects how much each tick advances the clock
type ClockMode string

const (
	// ClockWallclock advances by the measured time between ticks, absorbing
	// ticker jitter and dropped ticks.
	ClockWallclock ClockMode = "wallclock"
	// ClockNominal advances by the configured tick interval.
	ClockNominal ClockMode = "nominal"
)

const (
	// DefaultTickInterval is the scheduler period when none is configured
	DefaultTickInterval = 10 * time.Millisecond
	// DefaultCatchUpWindow bounds the forward corrections whose skipped
	// beats still fire
	DefaultCatchUpWindow = 500 * time.Millisecond
)

// TickerFunc starts a periodic tick source and returns its channel and a stop
// function.
type TickerFunc func(period time.Duration) (<-chan time.Time, func())

func newTimeTicker(period time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(period)
	return t.C, t.Stop
}

// Options configures a Manager
type Options struct {
	TickInterval time.Duration
	ClockMode    ClockMode
	// DriftThreshold is how far an engine position report may differ from
	// the clock before Correct moves the clock. Zero disables correction.
	DriftThreshold time.Duration
	// CatchUpWindow is the largest forward correction after which the
	// skipped beats fire late. Larger jumps skip them, as Seek does.
	CatchUpWindow time.Duration

	Resolver Resolver
	Trigger  Trigger
	Parse    ParseFunc
	Ticker   TickerFunc
	Logger   zerolog.Logger
}

// ChannelStatus is a snapshot of one cursor
type ChannelStatus struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Len      int    `json:"len"`
}

type songKey struct {
	index int
	id    string
}

type request struct {
	fn   func() error
	done chan error
}

// Manager keeps light channels in step with playback. One worker goroutine
// owns the cursors and advances the clock; the lifecycle methods are
// requests executed on that worker, so they are safe from any goroutine.
type Manager struct {
	opts    Options
	logger  zerolog.Logger
	trigger Trigger

	clock    Clock
	cursors  []*Cursor
	lastSong songKey
	loaded   bool
	lastTick time.Time

	state    atomic.Int32
	started  atomic.Bool
	requests chan request
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager in the Idle state. Call Start before any
// lifecycle method.
func NewManager(opts Options) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ClockMode == "" {
		opts.ClockMode = ClockWallclock
	}
	if opts.CatchUpWindow <= 0 {
		opts.CatchUpWindow = DefaultCatchUpWindow
	}
	if opts.Resolver == nil {
		opts.Resolver = ResolverFunc(func(api.Song) (string, bool) { return "", false })
	}
	if opts.Trigger == nil {
		opts.Trigger = TriggerFunc(func(string, []time.Duration) {})
	}
	if opts.Parse == nil {
		opts.Parse = ParseFile
	}
	if opts.Ticker == nil {
		opts.Ticker = newTimeTicker
	}

	logger := opts.Logger.With().Str("component", "beats").Logger()
	return &Manager{
		opts:     opts,
		logger:   logger,
		trigger:  guardedTrigger{next: opts.Trigger, logger: logger},
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduling worker. It stops when ctx is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context) {
	if m.State() == StateStopped || !m.started.CompareAndSwap(false, true) {
		return
	}
	tick, stopTicker := m.opts.Ticker(m.opts.TickInterval)
	go m.run(ctx, tick, stopTicker)
}

// run is the only goroutine that touches cursors
func (m *Manager) run(ctx context.Context, tick <-chan time.Time, stopTicker func()) {
	defer close(m.done)
	defer stopTicker()
	defer m.state.Store(int32(StateStopped))

	m.logger.Debug().
		Dur("tick", m.opts.TickInterval).
		Str("clock_mode", string(m.opts.ClockMode)).
		Msg("beat scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		case req := <-m.requests:
			req.done <- req.fn()
		case now := <-tick:
			m.tick(now)
		}
	}
}

// tick advances the clock, then polls every cursor against the new value
func (m *Manager) tick(now time.Time) {
	delta := m.opts.TickInterval
	if m.opts.ClockMode == ClockWallclock && !m.lastTick.IsZero() {
		delta = now.Sub(m.lastTick)
	}
	m.lastTick = now

	m.clock.Advance(delta)

	switch m.State() {
	case StateRunning, StatePaused:
	default:
		return
	}

	elapsed := m.clock.Elapsed()
	for _, c := range m.cursors {
		c.Poll(elapsed, m.trigger)
	}
}

// do runs fn on the worker and waits for it
func (m *Manager) do(fn func() error) error {
	if m.State() == StateStopped {
		return playerrors.ErrBeatsStopped
	}
	if !m.started.Load() {
		return playerrors.ErrBeatsNotStarted
	}

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case m.requests <- req:
	case <-m.done:
		return playerrors.ErrBeatsStopped
	}

	// The worker finishes a request before it can exit
	select {
	case err := <-req.done:
		return err
	case <-m.done:
		select {
		case err := <-req.done:
			return err
		default:
			return playerrors.ErrBeatsStopped
		}
	}
}

// ReadBeats loads the channels of song. Repeating the call for the song that
// is already loaded does nothing, so resume paths can call it freely. A new
// song replaces every cursor and pauses polling until StartTracking or
// OnResume; the clock is not touched.
func (m *Manager) ReadBeats(song api.Song, index int) error {
	return m.do(func() error {
		key := songKey{index: index, id: song.ID}
		if m.loaded && key == m.lastSong {
			return nil
		}

		m.cursors = nil
		if dir, ok := m.opts.Resolver.ResolveBeatDirectory(song); ok {
			for _, ch := range loadChannels(dir, m.opts.Parse, m.logger) {
				m.cursors = append(m.cursors, NewCursor(ch))
			}
		}

		m.lastSong = key
		m.loaded = true
		m.setState(StateLoaded)

		m.logger.Info().
			Str("song", song.Title).
			Int("index", index).
			Int("channels", len(m.cursors)).
			Msg("beats loaded")
		return nil
	})
}

// StartTracking starts the clock and polls the loaded channels each tick
func (m *Manager) StartTracking() error {
	return m.do(func() error {
		if m.State() == StateIdle {
			return playerrors.ErrNoSongLoaded
		}
		m.clock.Start()
		m.setState(StateRunning)
		return nil
	})
}

// OnPause freezes the clock. Cursors keep their positions.
func (m *Manager) OnPause() error {
	return m.do(func() error {
		switch m.State() {
		case StateRunning:
			m.clock.Stop()
			m.setState(StatePaused)
			return nil
		case StatePaused:
			return nil
		}
		return playerrors.ErrInvalidTransition
	})
}

// OnResume restarts the clock without resetting any cursor, so beats that
// already fired stay fired.
func (m *Manager) OnResume() error {
	return m.do(func() error {
		if m.State() == StateIdle {
			return playerrors.ErrNoSongLoaded
		}
		m.clock.Start()
		m.setState(StateRunning)
		return nil
	})
}

// OnRewind moves every cursor and the clock back to the start in one step,
// so no tick can observe reset cursors against the old clock value.
func (m *Manager) OnRewind() error {
	return m.do(func() error {
		m.resetCursors()
		m.clock.Zero()
		return nil
	})
}

// ResetBeats moves every cursor back to its first event
func (m *Manager) ResetBeats() error {
	return m.do(func() error {
		m.resetCursors()
		return nil
	})
}

// Seek moves the clock to pos and every cursor to its first event due at or
// after pos.
func (m *Manager) Seek(pos time.Duration) error {
	return m.do(func() error {
		if m.State() == StateIdle {
			return playerrors.ErrNoSongLoaded
		}
		if pos < 0 {
			pos = 0
		}
		m.clock.Set(pos)
		for _, c := range m.cursors {
			c.Seek(pos)
		}
		return nil
	})
}

// Correct pulls the clock toward a position reported by the audio engine
// when the two differ by more than the drift threshold.
//
// Cursors never move backwards, so a backward correction cannot re-fire
// beats. A forward correction within the catch-up window leaves the cursors
// alone and the skipped beats fire on the next tick. A larger forward jump
// moves the cursors like Seek: beats before pos count as played and do not
// fire.
func (m *Manager) Correct(pos time.Duration) error {
	return m.do(func() error {
		if m.opts.DriftThreshold <= 0 || m.State() != StateRunning {
			return nil
		}
		elapsed := m.clock.Elapsed()
		drift := pos - elapsed
		if drift < 0 {
			drift = -drift
		}
		if drift <= m.opts.DriftThreshold {
			return nil
		}

		skip := pos-elapsed > m.opts.CatchUpWindow
		m.logger.Debug().
			Dur("clock", elapsed).
			Dur("engine", pos).
			Bool("skip", skip).
			Msg("correcting beat clock drift")

		m.clock.Set(pos)
		if skip {
			for _, c := range m.cursors {
				c.Seek(pos)
			}
		}
		return nil
	})
}

// Channels returns the position of every loaded cursor
func (m *Manager) Channels() ([]ChannelStatus, error) {
	var out []ChannelStatus
	err := m.do(func() error {
		out = make([]ChannelStatus, 0, len(m.cursors))
		for _, c := range m.cursors {
			out = append(out, ChannelStatus{Name: c.Name(), Position: c.Position(), Len: c.Len()})
		}
		return nil
	})
	return out, err
}

// Stop terminates the worker immediately; pending beats are not fired. The
// manager cannot be used afterwards. Stop must not be called from a Trigger.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.setState(StateStopped)
		close(m.quit)
	})
	if m.started.Load() {
		<-m.done
	}
}

// Elapsed returns the clock's estimate of the playback position
func (m *Manager) Elapsed() time.Duration {
	return m.clock.Elapsed()
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	// Stopped is terminal
	for {
		cur := m.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if m.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (m *Manager) resetCursors() {
	for _, c := range m.cursors {
		c.Reset()
	}
}

// guardedTrigger keeps a panicking sink from killing the scheduler
type guardedTrigger struct {
	next   Trigger
	logger zerolog.Logger
}

func (g guardedTrigger) OnBeatsDue(channel string, beats []time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("channel", channel).Msg("light trigger panicked")
		}
	}()
	g.next.OnBeatsDue(channel, beats)
}
