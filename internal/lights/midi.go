package lights

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2"
)

// MIDIOptions places the light notes
type MIDIOptions struct {
	Channel  uint8
	BaseNote uint8
	Blink    time.Duration
}

// MIDISink plays a note per firing: NoteOn on key BaseNote+slot, NoteOff one
// blink later. Lighting desks commonly map notes to cues.
type MIDISink struct {
	mu     sync.Mutex
	send   func(msg midi.Message) error
	opts   MIDIOptions
	patch  *Patch
	logger zerolog.Logger
	after  func(d time.Duration, f func())
}

// NewMIDISink sends through send
func NewMIDISink(send func(msg midi.Message) error, opts MIDIOptions, patch *Patch, logger zerolog.Logger) *MIDISink {
	if opts.Blink <= 0 {
		opts.Blink = DefaultBlink
	}
	if opts.Channel > 15 {
		opts.Channel = 15
	}
	return &MIDISink{
		send:   send,
		opts:   opts,
		patch:  patch,
		logger: logger.With().Str("sink", "midi").Logger(),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OpenMIDI connects to the output port called name. A MIDI driver must be
// registered by the caller.
func OpenMIDI(name string, opts MIDIOptions, patch *Patch, logger zerolog.Logger) (*MIDISink, func(), error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "find midi port %q", name)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open midi port %q", name)
	}
	logger.Info().Str("port", out.String()).Msg("midi light output opened")
	return NewMIDISink(send, opts, patch, logger), func() { _ = out.Close() }, nil
}

// OnBeatsDue starts the channel's note and schedules its release
func (s *MIDISink) OnBeatsDue(channel string, beats []time.Duration) {
	key := noteFor(s.opts.BaseNote, s.patch.Slot(channel))

	s.write(midi.NoteOn(s.opts.Channel, key, 127), channel)
	s.after(s.opts.Blink, func() {
		s.write(midi.NoteOff(s.opts.Channel, key), channel)
	})
}

// noteFor is the MIDI key of slot, clamped to the 0..127 range
func noteFor(base uint8, slot int) uint8 {
	key := int(base) + slot
	if key > 127 {
		key = 127
	}
	return uint8(key)
}

// write serializes sends from the scheduler and the release timers
func (s *MIDISink) write(msg midi.Message, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(msg); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Msg("midi send failed")
	}
}
