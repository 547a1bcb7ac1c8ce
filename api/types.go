package api

import "time"

type Song struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Artist    string        `json:"artist"`
	Album     string        `json:"album"`
	Duration  time.Duration `json:"duration"`
	FilePath  string        `json:"file_path"`
	Genre     string        `json:"genre"`
	Year      int           `json:"year"`
	TrackNum  int           `json:"track_number"`
	CreatedAt time.Time     `json:"created_at"`
}

// PlaybackStatus is the coarse state of the audio engine
type PlaybackStatus int

const (
	StatusStopped PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

type PlaybackState struct {
	Status      PlaybackStatus `json:"status"`
	CurrentSong *Song          `json:"current_song,omitempty"`
	Position    time.Duration  `json:"position"`
	Duration    time.Duration  `json:"duration"`
	Volume      float64        `json:"volume"`
	Looping     bool           `json:"looping"`
	Shuffle     bool           `json:"shuffle"`
	Index       int            `json:"index"`
}

// EventType identifies what an AudioEvent carries
type EventType int

const (
	EventTrackStarted EventType = iota
	EventTrackEnded
	EventPositionUpdate
	EventError
	EventStateChange
	EventBeatsDue
)

// AudioEvent is published by the engine and republished on the event bus.
//
// Payload types: *Song for TrackStarted/TrackEnded, PositionUpdate for
// PositionUpdate, error for Error, *PlaybackState for StateChange and
// BeatsFired for BeatsDue.
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}

// PositionUpdate is a playback position read by the engine. Epoch is the
// number of transport commands (Play, Seek, Stop) the engine had applied when
// the position was read.
type PositionUpdate struct {
	SongID   string
	Epoch    uint64
	Position time.Duration
}

// BeatsFired describes one firing of a light channel
type BeatsFired struct {
	Channel string
	Beats   []time.Duration
}

// CommandType identifies an AudioCommand
type CommandType int

const (
	CmdPlay CommandType = iota
	CmdPause
	CmdResume
	CmdStop
	CmdVolume
	CmdSeek
)

type AudioCommand struct {
	Type    CommandType
	Payload interface{}
}

// Player is the audio backend driven by the jukebox. Each accepted Play,
// Seek and Stop call advances the transport epoch by one, in call order.
type Player interface {
	Play(song *Song) error
	Pause() error
	Resume() error
	Stop() error
	Seek(position time.Duration) error
	SetVolume(level float64) error
	GetState() *PlaybackState
	Events() <-chan AudioEvent
}
