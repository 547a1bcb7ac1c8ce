package audio

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Ensure AudioEngine implements Player interface at compile time
var _ api.Player = (*AudioEngine)(nil)

// PositionInterval is how often position updates are published while playing
const PositionInterval = 500 * time.Millisecond

// AudioEngine manages audio playback in a separate goroutine
type AudioEngine struct {
	state      *api.PlaybackState
	commands   chan api.AudioCommand
	events     chan api.AudioEvent
	mu         sync.RWMutex
	streamer   beep.StreamSeekCloser
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	sampleRate beep.SampleRate
	epoch      uint64
	done       chan struct{}
	logger     zerolog.Logger
}

// NewAudioEngine creates a new audio engine instance
func NewAudioEngine(logger zerolog.Logger) *AudioEngine {
	return &AudioEngine{
		state: &api.PlaybackState{
			Status: api.StatusStopped,
			Volume: 0.5,
		},
		commands: make(chan api.AudioCommand, 10),
		events:   make(chan api.AudioEvent, 20),
		done:     make(chan struct{}),
		logger:   logger.With().Str("component", "audio").Logger(),
	}
}

// Start begins the audio engine goroutines
func (e *AudioEngine) Start(ctx context.Context) {
	go e.run(ctx)
	go e.trackPosition(ctx)
}

// Events returns the events channel for subscribing to audio events
func (e *AudioEngine) Events() <-chan api.AudioEvent {
	return e.events
}

// emit delivers an event unless the engine has shut down
func (e *AudioEngine) emit(event api.AudioEvent) {
	select {
	case e.events <- event:
	case <-e.done:
	}
}

// run is the main command processing loop
func (e *AudioEngine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.cleanup()
			return

		case cmd := <-e.commands:
			switch cmd.Type {
			case api.CmdPlay:
				song := cmd.Payload.(*api.Song)
				if err := e.playSong(song); err != nil {
					e.logger.Error().Err(err).Str("song", song.FilePath).Msg("playback failed")
					e.emit(api.AudioEvent{Type: api.EventError, Payload: err})
				}

			case api.CmdPause:
				e.setPaused(true)
				e.emit(api.AudioEvent{Type: api.EventStateChange, Payload: e.GetState()})

			case api.CmdResume:
				e.setPaused(false)
				e.emit(api.AudioEvent{Type: api.EventStateChange, Payload: e.GetState()})

			case api.CmdStop:
				e.stopPlayback()
				e.emit(api.AudioEvent{Type: api.EventStateChange, Payload: e.GetState()})

			case api.CmdVolume:
				e.applyVolume(cmd.Payload.(float64))

			case api.CmdSeek:
				e.seekTo(cmd.Payload.(time.Duration))
			}
		}
	}
}

// trackPosition publishes the playback position periodically
func (e *AudioEngine) trackPosition(ctx context.Context) {
	ticker := time.NewTicker(PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update, ok := e.position()
			if ok {
				e.emit(api.AudioEvent{Type: api.EventPositionUpdate, Payload: update})
			}
		}
	}
}

// position reads the position together with the epoch it belongs to
func (e *AudioEngine) position() (api.PositionUpdate, bool) {
	speaker.Lock()
	defer speaker.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != api.StatusPlaying || e.streamer == nil || e.state.CurrentSong == nil {
		return api.PositionUpdate{}, false
	}
	e.state.Position = e.sampleRate.D(e.streamer.Position())
	return api.PositionUpdate{
		SongID:   e.state.CurrentSong.ID,
		Epoch:    e.epoch,
		Position: e.state.Position,
	}, true
}

// playSong loads and starts playing a song
func (e *AudioEngine) playSong(song *api.Song) error {
	e.stopPlayback()

	file, err := os.Open(song.FilePath)
	if err != nil {
		return playerrors.NewPlayerError("open", song.ID, err)
	}

	streamer, format, err := DecodeAudio(file, song.FilePath)
	if err != nil {
		file.Close()
		return playerrors.NewPlayerError("decode", song.ID, err)
	}

	// Initialize speaker with the format
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		streamer.Close()
		return playerrors.NewPlayerError("speaker_init", song.ID, err)
	}

	e.mu.Lock()
	e.streamer = streamer
	e.sampleRate = format.SampleRate
	e.ctrl = &beep.Ctrl{Streamer: streamer, Paused: false}
	e.volume = &effects.Volume{
		Streamer: e.ctrl,
		Base:     2,
		Volume:   e.state.Volume*2 - 1,
		Silent:   e.state.Volume == 0,
	}
	e.state.CurrentSong = song
	e.state.Status = api.StatusPlaying
	e.state.Position = 0
	e.state.Duration = format.SampleRate.D(streamer.Len())
	vol := e.volume
	e.mu.Unlock()

	// the callback runs on the speaker goroutine, which must not block
	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		go e.emit(api.AudioEvent{Type: api.EventTrackEnded, Payload: song})
	})))

	e.logger.Info().Str("song", song.Title).Dur("duration", e.GetState().Duration).Msg("playing")
	e.emit(api.AudioEvent{Type: api.EventTrackStarted, Payload: song})
	return nil
}

func (e *AudioEngine) setPaused(paused bool) {
	speaker.Lock()
	defer speaker.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl == nil {
		return
	}
	e.ctrl.Paused = paused
	if paused {
		e.state.Status = api.StatusPaused
	} else {
		e.state.Status = api.StatusPlaying
	}
}

func (e *AudioEngine) applyVolume(level float64) {
	speaker.Lock()
	defer speaker.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.volume != nil {
		// 0..1 maps to -1..1 on a base 2 scale
		e.volume.Volume = level*2 - 1
		e.volume.Silent = level == 0
	}
	e.state.Volume = level
}

// stopPlayback stops the current playback and starts a new epoch. Play and
// Stop each go through here exactly once.
func (e *AudioEngine) stopPlayback() {
	speaker.Clear()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	if e.streamer != nil {
		e.streamer.Close()
		e.streamer = nil
	}
	e.ctrl = nil
	e.volume = nil
	e.state.Status = api.StatusStopped
	e.state.Position = 0
}

// seekTo seeks to a specific position
func (e *AudioEngine) seekTo(pos time.Duration) {
	speaker.Lock()
	defer speaker.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	if e.streamer == nil {
		return
	}
	if err := e.streamer.Seek(e.sampleRate.N(pos)); err != nil {
		e.logger.Warn().Err(err).Dur("position", pos).Msg("seek failed")
		return
	}
	e.state.Position = pos
}

// Epoch returns the number of transport commands applied so far
func (e *AudioEngine) Epoch() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.epoch
}

// cleanup releases resources
func (e *AudioEngine) cleanup() {
	e.stopPlayback()
	close(e.done)
}

// Play starts playing the specified song
func (e *AudioEngine) Play(song *api.Song) error {
	if song == nil {
		return playerrors.ErrSongNotFound
	}
	e.commands <- api.AudioCommand{Type: api.CmdPlay, Payload: song}
	return nil
}

// Pause pauses playback
func (e *AudioEngine) Pause() error {
	e.commands <- api.AudioCommand{Type: api.CmdPause}
	return nil
}

// Resume resumes playback
func (e *AudioEngine) Resume() error {
	e.commands <- api.AudioCommand{Type: api.CmdResume}
	return nil
}

// Stop stops playback
func (e *AudioEngine) Stop() error {
	e.commands <- api.AudioCommand{Type: api.CmdStop}
	return nil
}

// Seek seeks to the specified position
func (e *AudioEngine) Seek(position time.Duration) error {
	if position < 0 {
		position = 0
	}
	e.commands <- api.AudioCommand{Type: api.CmdSeek, Payload: position}
	return nil
}

// SetVolume sets the volume level (0.0 to 1.0)
func (e *AudioEngine) SetVolume(level float64) error {
	if level < 0 || level > 1 {
		return playerrors.ErrInvalidVolume
	}
	e.commands <- api.AudioCommand{Type: api.CmdVolume, Payload: level}
	return nil
}

// GetState returns a copy of the current playback state
func (e *AudioEngine) GetState() *api.PlaybackState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := *e.state
	if e.state.CurrentSong != nil {
		song := *e.state.CurrentSong
		state.CurrentSong = &song
	}
	return &state
}
