package lights

import (
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"
)

// DefaultOSCAddress is the address pattern beat messages are sent to
const DefaultOSCAddress = "/lights/beat"

// OSCSender is satisfied by *osc.Client
type OSCSender interface {
	Send(packet osc.Packet) error
}

// OSCSink sends one message per firing with arguments
// (channel string, slot int32, beats... int64 microseconds).
type OSCSink struct {
	client  OSCSender
	address string
	patch   *Patch
	logger  zerolog.Logger
}

// NewOSCSink sends through client
func NewOSCSink(client OSCSender, address string, patch *Patch, logger zerolog.Logger) *OSCSink {
	if address == "" {
		address = DefaultOSCAddress
	}
	return &OSCSink{
		client:  client,
		address: address,
		patch:   patch,
		logger:  logger.With().Str("sink", "osc").Logger(),
	}
}

// DialOSC creates a sink sending UDP to host:port
func DialOSC(host string, port int, address string, patch *Patch, logger zerolog.Logger) *OSCSink {
	logger.Info().Str("host", host).Int("port", port).Msg("osc light output configured")
	return NewOSCSink(osc.NewClient(host, port), address, patch, logger)
}

// OnBeatsDue sends the beat message
func (s *OSCSink) OnBeatsDue(channel string, beats []time.Duration) {
	msg := osc.NewMessage(s.address)
	msg.Append(channel)
	msg.Append(int32(s.patch.Slot(channel)))
	for _, b := range beats {
		msg.Append(b.Microseconds())
	}

	if err := s.client.Send(msg); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Msg("osc send failed")
	}
}
