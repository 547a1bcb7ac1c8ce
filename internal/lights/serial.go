package lights

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	SOF0     = 0xAA
	SOF1     = 0x55
	CmdBlink = 0x20
)

// Frame tells the light controller which outputs to flash and for how long
//
//	[SOF0][SOF1][LEN][CMD][maskLo][maskHi][duration ms][seq][CKS]
//
// LEN counts CMD plus payload; CKS is LEN xor CMD xor every payload byte.
type Frame struct {
	Mask     uint16
	Duration byte
	Seq      byte
}

// Encode builds the on-wire representation
func (f Frame) Encode() []byte {
	payload := []byte{byte(f.Mask), byte(f.Mask >> 8), f.Duration, f.Seq}

	length := byte(len(payload) + 1)
	cks := length ^ CmdBlink
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, 5+len(payload))
	out = append(out, SOF0, SOF1, length, CmdBlink)
	out = append(out, payload...)
	return append(out, cks)
}

// SerialSink writes one frame per firing to a serial light controller
type SerialSink struct {
	mu     sync.Mutex
	w      io.Writer
	patch  *Patch
	blink  byte
	seq    byte
	logger zerolog.Logger
}

// NewSerialSink writes frames to w
func NewSerialSink(w io.Writer, patch *Patch, blink time.Duration, logger zerolog.Logger) *SerialSink {
	ms := blink.Milliseconds()
	if ms <= 0 {
		ms = DefaultBlink.Milliseconds()
	}
	if ms > 255 {
		ms = 255
	}
	return &SerialSink{
		w:      w,
		patch:  patch,
		blink:  byte(ms),
		logger: logger.With().Str("sink", "serial").Logger(),
	}
}

// OpenSerial opens device at baud and returns a sink writing to it
func OpenSerial(device string, baud int, patch *Patch, blink time.Duration, logger zerolog.Logger) (*SerialSink, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", device)
	}
	logger.Info().Str("device", device).Int("baud", baud).Msg("serial light controller opened")
	return NewSerialSink(port, patch, blink, logger), nil
}

// OnBeatsDue sends a frame flashing the channel's output
func (s *SerialSink) OnBeatsDue(channel string, beats []time.Duration) {
	slot := s.patch.Slot(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	frame := Frame{Mask: 1 << uint(slot), Duration: s.blink, Seq: s.seq}
	s.seq++
	if _, err := s.w.Write(frame.Encode()); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Msg("serial write failed")
	}
}

// Close closes the underlying port when it can be closed
func (s *SerialSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
