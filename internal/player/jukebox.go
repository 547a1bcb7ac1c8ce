// Package player sequences audio playback and beat tracking.
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/playlist"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Beats is the beat tracker lifecycle the jukebox drives. *beat.Manager
// implements it.
type Beats interface {
	ReadBeats(song api.Song, index int) error
	StartTracking() error
	OnPause() error
	OnResume() error
	OnRewind() error
	ResetBeats() error
	Seek(pos time.Duration) error
	Correct(pos time.Duration) error
	Stop()
}

// Publisher is satisfied by *events.EventBus
type Publisher interface {
	Publish(event api.AudioEvent)
}

// Options wires a Jukebox
type Options struct {
	Engine  api.Player
	Beats   Beats
	Queue   *playlist.Queue
	Bus     Publisher
	Logger  zerolog.Logger
	Looping bool
	Volume  float64
	// OnSongChange runs after a different song starts, e.g. to clear the
	// light grid.
	OnSongChange func(song *api.Song)
}

// Jukebox owns the play queue and keeps the engine and the beat tracker in
// step: every transport call goes to the engine first, then to the beats.
type Jukebox struct {
	mu       sync.Mutex
	engine   api.Player
	beats    Beats
	queue    *playlist.Queue
	bus      Publisher
	logger   zerolog.Logger
	onChange func(song *api.Song)

	current  *api.Song
	index    int
	status   api.PlaybackStatus
	position time.Duration
	volume   float64
	looping  bool

	// epoch counts the Play, Seek and Stop calls made on the engine, so
	// position reports from before the latest one can be recognised.
	epoch    uint64
	failures int
}

// New creates a jukebox. Queue defaults to an empty queue.
func New(opts Options) *Jukebox {
	if opts.Queue == nil {
		opts.Queue = playlist.NewQueue()
	}
	return &Jukebox{
		engine:   opts.Engine,
		beats:    opts.Beats,
		queue:    opts.Queue,
		bus:      opts.Bus,
		logger:   opts.Logger.With().Str("component", "jukebox").Logger(),
		onChange: opts.OnSongChange,
		index:    -1,
		volume:   opts.Volume,
		looping:  opts.Looping,
	}
}

// Play starts song from the beginning
func (j *Jukebox) Play(song *api.Song) error {
	if song == nil {
		return playerrors.ErrSongNotFound
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.play(song, j.queue.IndexOf(song.ID))
}

// PlayIndex jumps the queue to index and plays that song
func (j *Jukebox) PlayIndex(index int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	song, err := j.queue.JumpTo(index)
	if err != nil {
		return err
	}
	return j.play(song, index)
}

// SongOverride plays a song picked from the list, moving the queue to it
func (j *Jukebox) SongOverride(song *api.Song) error {
	if song == nil {
		return playerrors.ErrSongNotFound
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	index := j.queue.IndexOf(song.ID)
	if index < 0 {
		return playerrors.ErrSongNotFound
	}
	if _, err := j.queue.JumpTo(index); err != nil {
		return err
	}
	return j.play(song, index)
}

// Pause pauses audio and freezes the beat clock
func (j *Jukebox) Pause() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.current == nil:
		return playerrors.ErrNoSongLoaded
	case j.status != api.StatusPlaying:
		return nil
	}

	if err := j.engine.Pause(); err != nil {
		return playerrors.NewPlayerError("pause", j.current.ID, err)
	}
	j.status = api.StatusPaused
	j.beatsErr("pause", j.beats.OnPause())
	j.publishState()
	return nil
}

// Resume continues where Pause left off. With nothing loaded, or after Stop,
// it plays the queue's current song from the start.
func (j *Jukebox) Resume() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.current == nil:
		song := j.queue.Current()
		if song == nil {
			return playerrors.ErrEmptyQueue
		}
		return j.play(song, j.queue.Index())
	case j.status == api.StatusStopped:
		return j.play(j.current, j.index)
	case j.status == api.StatusPlaying:
		return nil
	}

	if err := j.engine.Resume(); err != nil {
		return playerrors.NewPlayerError("resume", j.current.ID, err)
	}
	j.status = api.StatusPlaying
	j.beatsErr("resume", j.beats.OnResume())
	j.publishState()
	return nil
}

// Stop halts audio. The song stays current so Resume restarts it.
func (j *Jukebox) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil || j.status == api.StatusStopped {
		return nil
	}
	if err := j.engine.Stop(); err != nil {
		return playerrors.NewPlayerError("stop", j.current.ID, err)
	}
	j.epoch++
	if j.status == api.StatusPlaying {
		j.beatsErr("stop", j.beats.OnPause())
	}
	j.beatsErr("stop", j.beats.OnRewind())
	j.status = api.StatusStopped
	j.position = 0
	j.publishState()
	return nil
}

// Rewind restarts the current song, resuming it if paused
func (j *Jukebox) Rewind() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil {
		return playerrors.ErrNoSongLoaded
	}
	if j.status == api.StatusStopped {
		return j.play(j.current, j.index)
	}

	if err := j.engine.Seek(0); err != nil {
		return playerrors.NewPlayerError("rewind", j.current.ID, err)
	}
	j.epoch++
	j.position = 0
	j.beatsErr("rewind", j.beats.OnRewind())

	if j.status == api.StatusPaused {
		if err := j.engine.Resume(); err != nil {
			return playerrors.NewPlayerError("rewind", j.current.ID, err)
		}
		j.status = api.StatusPlaying
		j.beatsErr("rewind", j.beats.OnResume())
	}
	j.publishState()
	return nil
}

// Skip plays the next song, wrapping to the first after the last
func (j *Jukebox) Skip() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.skip()
}

func (j *Jukebox) skip() error {
	song := j.queue.Next()
	if song == nil {
		return playerrors.ErrEmptyQueue
	}
	return j.play(song, j.queue.Index())
}

// Shuffle reorders the queue and plays its new first song
func (j *Jukebox) Shuffle() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.queue.Len() == 0 {
		return playerrors.ErrEmptyQueue
	}
	j.queue.Shuffle()
	return j.play(j.queue.Current(), j.queue.Index())
}

// SetLooping makes a finished song replay instead of advancing
func (j *Jukebox) SetLooping(looping bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.looping = looping
	j.publishState()
}

// SetVolume sets the output level, 0 to 1
func (j *Jukebox) SetVolume(level float64) error {
	if level < 0 || level > 1 {
		return playerrors.ErrInvalidVolume
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.engine.SetVolume(level); err != nil {
		return err
	}
	j.volume = level
	return nil
}

// Seek moves audio and beats to pos within the current song
func (j *Jukebox) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil || j.status == api.StatusStopped {
		return playerrors.ErrNoSongLoaded
	}
	if d := j.current.Duration; d > 0 && pos > d {
		pos = d
	}
	if err := j.engine.Seek(pos); err != nil {
		return playerrors.NewPlayerError("seek", j.current.ID, err)
	}
	j.epoch++
	j.position = pos
	j.beatsErr("seek", j.beats.Seek(pos))
	return nil
}

// OnPlaybackFinished handles the end of song. Notifications for a song that
// is no longer current are ignored.
func (j *Jukebox) OnPlaybackFinished(song *api.Song) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if song == nil || j.current == nil || song.ID != j.current.ID || j.status != api.StatusPlaying {
		j.logger.Debug().Msg("ignoring stale end of song")
		return nil
	}

	if !j.looping {
		return j.skip()
	}

	if err := j.engine.Play(j.current); err != nil {
		return playerrors.NewPlayerError("loop", j.current.ID, err)
	}
	j.epoch++
	j.position = 0
	j.beatsErr("loop", j.beats.ResetBeats())
	j.beatsErr("loop", j.beats.OnRewind())
	j.logger.Debug().Str("song", j.current.Title).Msg("looping")
	return nil
}

// OnPlaybackFailed handles the engine failing to start songID: the beats are
// stopped and the queue moves on. After every song in the queue has failed in
// a row the jukebox stops instead.
func (j *Jukebox) OnPlaybackFailed(songID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil || songID != j.current.ID || j.status == api.StatusStopped {
		return nil
	}

	j.beatsErr("playback failed", j.beats.OnPause())
	j.beatsErr("playback failed", j.beats.OnRewind())
	j.status = api.StatusStopped
	j.position = 0
	j.failures++

	if j.failures < j.queue.Len() {
		return j.skip()
	}
	j.logger.Warn().Int("failures", j.failures).Msg("no playable song in queue, stopping")
	j.publishState()
	return nil
}

// State returns a snapshot of the playback state
func (j *Jukebox) State() api.PlaybackState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state()
}

func (j *Jukebox) state() api.PlaybackState {
	st := api.PlaybackState{
		Status:   j.status,
		Position: j.position,
		Volume:   j.volume,
		Looping:  j.looping,
		Shuffle:  j.queue.IsShuffled(),
		Index:    j.index,
	}
	if j.current != nil {
		song := *j.current
		st.CurrentSong = &song
		st.Duration = song.Duration
	}
	return st
}

// Songs returns the queue in play order
func (j *Jukebox) Songs() []*api.Song {
	return j.queue.All()
}

// Run consumes engine events until ctx ends: finished songs advance the
// queue, position updates correct beat drift, and every event is republished
// on the bus.
func (j *Jukebox) Run(ctx context.Context) error {
	events := j.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			j.handle(ev)
			if j.bus != nil {
				j.bus.Publish(ev)
			}
		}
	}
}

func (j *Jukebox) handle(ev api.AudioEvent) {
	switch ev.Type {
	case api.EventTrackEnded:
		song, _ := ev.Payload.(*api.Song)
		if err := j.OnPlaybackFinished(song); err != nil {
			j.logger.Error().Err(err).Msg("advance after end of song")
		}

	case api.EventTrackStarted:
		j.mu.Lock()
		j.failures = 0
		j.mu.Unlock()

	case api.EventPositionUpdate:
		update, ok := ev.Payload.(api.PositionUpdate)
		if !ok {
			return
		}
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.status != api.StatusPlaying || j.current == nil {
			return
		}
		// a report read before the latest play, seek or stop would drag the
		// clock back to where the song used to be
		if update.Epoch != j.epoch || update.SongID != j.current.ID {
			j.logger.Debug().
				Uint64("epoch", update.Epoch).
				Uint64("want", j.epoch).
				Msg("ignoring stale position")
			return
		}
		j.position = update.Position
		j.beatsErr("correct", j.beats.Correct(update.Position))

	case api.EventError:
		err, _ := ev.Payload.(error)
		j.logger.Error().Err(err).Msg("audio engine error")

		var perr *playerrors.PlayerError
		if errors.As(err, &perr) && perr.Song != "" {
			if err := j.OnPlaybackFailed(perr.Song); err != nil {
				j.logger.Error().Err(err).Msg("advance after failed song")
			}
		}
	}
}

// Shutdown stops audio and the beat tracker
func (j *Jukebox) Shutdown() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current != nil && j.status != api.StatusStopped {
		if err := j.engine.Stop(); err != nil {
			j.logger.Warn().Err(err).Msg("stop audio")
		} else {
			j.epoch++
		}
	}
	j.status = api.StatusStopped
	j.beats.Stop()
}

// play starts song at queue position index. Caller holds mu.
func (j *Jukebox) play(song *api.Song, index int) error {
	if err := j.engine.Play(song); err != nil {
		return playerrors.NewPlayerError("play", song.ID, err)
	}
	j.epoch++

	changed := j.current == nil || j.current.ID != song.ID
	j.current = song
	j.index = index
	j.status = api.StatusPlaying
	j.position = 0

	j.beatsErr("read beats", j.beats.ReadBeats(*song, index))
	j.beatsErr("rewind", j.beats.OnRewind())
	j.beatsErr("start", j.beats.StartTracking())

	if changed && j.onChange != nil {
		j.onChange(song)
	}
	j.logger.Info().Str("song", song.Title).Int("index", index).Msg("now playing")
	j.publishState()
	return nil
}

// beatsErr logs a beat tracker failure. Lights failing never stops the music.
func (j *Jukebox) beatsErr(op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, playerrors.ErrBeatsStopped) {
		j.logger.Debug().Err(err).Str("op", op).Msg("beat tracker already stopped")
		return
	}
	j.logger.Warn().Err(err).Str("op", op).Msg("beat tracker")
}

func (j *Jukebox) publishState() {
	if j.bus == nil {
		return
	}
	st := j.state()
	j.bus.Publish(api.AudioEvent{Type: api.EventStateChange, Payload: &st})
}
