// Package lights turns due beats into light output: a debug grid, serial
// frames for a microcontroller, MIDI notes and OSC messages.
package lights

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Slots is the number of light outputs, laid out as a 4x4 grid
const Slots = 16

// Patch maps channel names to output slots. A channel whose file stem is a
// number ("3", "3.txt") uses that slot, wrapped to Slots. Other channels get
// slots in order of first use.
type Patch struct {
	mu    sync.Mutex
	slots map[string]int
	next  int
}

// NewPatch creates an empty patch
func NewPatch() *Patch {
	return &Patch{slots: make(map[string]int)}
}

// Slot returns the output slot of channel, assigning one if needed
func (p *Patch) Slot(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slot, ok := p.slots[channel]; ok {
		return slot
	}

	stem := strings.TrimSuffix(channel, filepath.Ext(channel))
	slot, err := strconv.Atoi(stem)
	if err != nil || slot < 0 {
		slot = p.next % Slots
		p.next++
	} else {
		slot %= Slots
	}

	p.slots[channel] = slot
	return slot
}

// Assigned returns a copy of the current channel to slot mapping
func (p *Patch) Assigned() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int, len(p.slots))
	for k, v := range p.slots {
		out[k] = v
	}
	return out
}
