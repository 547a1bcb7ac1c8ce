package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrSongNotFound   = errors.New("song not found")
	ErrInvalidFormat  = errors.New("unsupported audio format")
	ErrPlaybackFailed = errors.New("playback failed")
	ErrEmptyQueue     = errors.New("playback queue is empty")
	ErrInvalidVolume  = errors.New("volume must be between 0.0 and 1.0")
)

// Beat tracker state errors. These are programmer errors: the caller asked
// for a transition the tracker cannot make.
var (
	ErrBeatsStopped      = errors.New("beat tracker is stopped")
	ErrBeatsNotStarted   = errors.New("beat tracker is not started")
	ErrNoSongLoaded      = errors.New("no song loaded")
	ErrInvalidTransition = errors.New("invalid beat tracker transition")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op   string // Operation that failed
	Song string // Song ID if applicable
	Err  error
}

func (e *PlayerError) Error() string {
	if e.Song != "" {
		return fmt.Sprintf("%s failed for song %s: %v", e.Op, e.Song, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op, song string, err error) *PlayerError {
	return &PlayerError{Op: op, Song: song, Err: err}
}

// ScanError represents an error during library scanning
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan error at %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed token in a beat file. Line is 1-based.
type ParseError struct {
	Path  string
	Line  int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: bad beat %q: %v", e.Path, e.Line, e.Token, e.Err)
	}
	return fmt.Sprintf("line %d: bad beat %q: %v", e.Line, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadError reports an unreadable beat file or directory
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load beats from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
