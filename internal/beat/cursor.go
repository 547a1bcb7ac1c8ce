package beat

import (
	"sort"
	"time"
)

// Trigger receives due beats. For a chord, beats holds every member. It is
// called on the scheduler goroutine and must return quickly.
type Trigger interface {
	OnBeatsDue(channel string, beats []time.Duration)
}

// TriggerFunc adapts a function to Trigger
type TriggerFunc func(channel string, beats []time.Duration)

// OnBeatsDue calls f
func (f TriggerFunc) OnBeatsDue(channel string, beats []time.Duration) {
	f(channel, beats)
}

// Cursor walks one channel's events in order. Between resets the position
// only moves forward, so each event fires at most once.
type Cursor struct {
	channel  Channel
	position int
}

// NewCursor creates a cursor at the start of ch
func NewCursor(ch Channel) *Cursor {
	return &Cursor{channel: ch}
}

// Poll fires every event whose due time is at or before now and returns how
// many fired. Several events can fire in one poll when the clock jumps.
func (c *Cursor) Poll(now time.Duration, trigger Trigger) int {
	fired := 0
	for c.position < len(c.channel.Events) {
		event := c.channel.Events[c.position]
		if event.Due() > now {
			break
		}
		trigger.OnBeatsDue(c.channel.Name, event.Beats)
		c.position++
		fired++
	}
	return fired
}

// Reset moves the cursor back to the first event
func (c *Cursor) Reset() {
	c.position = 0
}

// Seek positions the cursor on the first event due at or after to. Events
// before it are treated as already played.
func (c *Cursor) Seek(to time.Duration) {
	events := c.channel.Events
	c.position = sort.Search(len(events), func(i int) bool {
		return events[i].Due() >= to
	})
}

// Name returns the channel identifier
func (c *Cursor) Name() string {
	return c.channel.Name
}

// Position returns the index of the next event to fire
func (c *Cursor) Position() int {
	return c.position
}

// Len returns the number of events in the channel
func (c *Cursor) Len() int {
	return len(c.channel.Events)
}

// Exhausted reports whether every event has fired
func (c *Cursor) Exhausted() bool {
	return c.position >= len(c.channel.Events)
}
