package lights

import (
	"sync"
	"time"
)

// DefaultBlink is how long a light stays on after a beat
const DefaultBlink = 50 * time.Millisecond

// Box is the visible state of one grid cell
type Box struct {
	Slot    int    `json:"slot"`
	Channel string `json:"channel,omitempty"`
	Lit     bool   `json:"lit"`
	Fired   uint64 `json:"fired"`
}

// Grid is the light debug display: sixteen boxes that blink when their
// channel fires.
type Grid struct {
	mu       sync.Mutex
	patch    *Patch
	blink    time.Duration
	litUntil [Slots]time.Time
	channels [Slots]string
	fired    [Slots]uint64
	now      func() time.Time
}

// NewGrid creates a grid. A zero blink uses DefaultBlink.
func NewGrid(patch *Patch, blink time.Duration) *Grid {
	if blink <= 0 {
		blink = DefaultBlink
	}
	return &Grid{patch: patch, blink: blink, now: time.Now}
}

// OnBeatsDue lights the channel's box for one blink
func (g *Grid) OnBeatsDue(channel string, beats []time.Duration) {
	slot := g.patch.Slot(channel)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.litUntil[slot] = g.now().Add(g.blink)
	g.channels[slot] = channel
	g.fired[slot]++
}

// Snapshot returns every box as of now
func (g *Grid) Snapshot() [Slots]Box {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	var boxes [Slots]Box
	for i := range boxes {
		boxes[i] = Box{
			Slot:    i,
			Channel: g.channels[i],
			Lit:     now.Before(g.litUntil[i]),
			Fired:   g.fired[i],
		}
	}
	return boxes
}

// Clear turns every box off and forgets counts, e.g. on song change
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.litUntil = [Slots]time.Time{}
	g.channels = [Slots]string{}
	g.fired = [Slots]uint64{}
}
