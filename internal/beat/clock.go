package beat

import (
	"sync/atomic"
	"time"
)

// Clock estimates how far playback has progressed. It is a software
// integrator advanced by the scheduler tick while running, not a read of the
// audio transport position, so it is only as exact as the tick period.
//
// Only the scheduler worker writes the clock; any goroutine may read it.
type Clock struct {
	elapsed atomic.Int64
	running atomic.Bool
}

// Start lets Advance move the clock
func (c *Clock) Start() {
	c.running.Store(true)
}

// Stop freezes the clock at its current value
func (c *Clock) Stop() {
	c.running.Store(false)
}

// Zero rewinds the clock to the start of the song
func (c *Clock) Zero() {
	c.elapsed.Store(0)
}

// Set moves the clock to d. Negative values clamp to zero.
func (c *Clock) Set(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.elapsed.Store(int64(d))
}

// Advance adds delta if the clock is running
func (c *Clock) Advance(delta time.Duration) {
	if delta <= 0 || !c.running.Load() {
		return
	}
	c.elapsed.Add(int64(delta))
}

// Elapsed returns the estimated playback position
func (c *Clock) Elapsed() time.Duration {
	return time.Duration(c.elapsed.Load())
}

// Running reports whether Advance currently moves the clock
func (c *Clock) Running() bool {
	return c.running.Load()
}
