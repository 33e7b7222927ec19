package app

import (
	"github.com/ystepanoff/taplink/transport"
)

// LineClock derives the store's millisecond clock from the line driver's
// wrapping microsecond timer. It must be read at least once per timer wrap
// (about 71 minutes), which the loop does on every iteration.
type LineClock struct {
	d       transport.LineDriver
	last    uint32
	total   uint64
	started bool
}

func NewLineClock(d transport.LineDriver) *LineClock {
	return &LineClock{d: d}
}

func (c *LineClock) Millis() uint32 {
	now := c.d.Micros()
	if !c.started {
		c.started = true
		c.last = now
	}
	c.total += uint64(transport.Elapsed(now, c.last))
	c.last = now
	return uint32(c.total / 1000)
}

func (c *LineClock) SleepMillis(ms uint32) {
	c.d.DelayMicros(ms * 1000)
}
