package lights

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/beat"
)

// Fanout delivers each firing to every sink in order
type Fanout []beat.Trigger

// OnBeatsDue calls every sink
func (f Fanout) OnBeatsDue(channel string, beats []time.Duration) {
	for _, sink := range f {
		sink.OnBeatsDue(channel, beats)
	}
}

// LogSink records firings at debug level
type LogSink struct {
	Logger zerolog.Logger
}

// OnBeatsDue logs the firing
func (s LogSink) OnBeatsDue(channel string, beats []time.Duration) {
	s.Logger.Debug().
		Str("channel", channel).
		Int("beats", len(beats)).
		Dur("at", beats[len(beats)-1]).
		Msg("beats due")
}

// Publisher is satisfied by *events.EventBus
type Publisher interface {
	Publish(event api.AudioEvent)
}

// BusSink republishes firings as EventBeatsDue
type BusSink struct {
	Bus Publisher
}

// OnBeatsDue publishes a copy of beats
func (s BusSink) OnBeatsDue(channel string, beats []time.Duration) {
	s.Bus.Publish(api.AudioEvent{
		Type: api.EventBeatsDue,
		Payload: api.BeatsFired{
			Channel: channel,
			Beats:   append([]time.Duration(nil), beats...),
		},
	})
}
