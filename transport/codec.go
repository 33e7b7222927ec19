package transport

import (
	proto "github.com/ystepanoff/taplink/protocol"
)

// Codec turns bits into timed line events. A bit is a slot of BitDrive
// microseconds in which the sender either pulls the line low (0) or releases
// it (1), followed by BitRecovery with the line released. Both ends of a
// transfer run the same slot, so the receiver is simply a sender of 1 that
// looks at what the wired-AND line shows.
//
// Nothing here returns an error; the timing is whatever the driver gives us.
type Codec struct {
	d LineDriver
	t Timing
}

func NewCodec(d LineDriver, t Timing) *Codec {
	return &Codec{d: d, t: t}
}

// Slot sends one bit and returns the sampled line level (true = high).
func (c *Codec) Slot(bit bool) bool {
	c.d.DriveLow(!bit)
	c.d.DelayMicros(c.t.BitSample)
	high := c.sample()
	c.d.DelayMicros(c.t.sampleTail())
	c.d.DriveLow(false)
	c.d.DelayMicros(c.t.BitRecovery)
	return high
}

// sample takes SampleCount readings around the sampling point and returns the
// majority, so an edge landing exactly on a reading cannot flip the bit.
func (c *Codec) sample() bool {
	highs := 0
	for i := 0; i < proto.SampleCount; i++ {
		if i > 0 {
			c.d.DelayMicros(c.t.SampleSpacing)
		}
		if c.d.ReadLine() {
			highs++
		}
	}
	return highs > proto.SampleCount/2
}

// SendBit sends one bit, ignoring what the line showed.
func (c *Codec) SendBit(bit bool) {
	c.Slot(bit)
}

// SampleBit releases the line for one slot and returns the peer's bit.
func (c *Codec) SampleBit() bool {
	return c.Slot(true)
}

// SendByte sends b MSB-first.
func (c *Codec) SendByte(b byte) {
	for i := 7; i >= 0; i-- {
		c.Slot(b>>uint(i)&1 == 1)
	}
}

// ReceiveByte reads eight bits MSB-first.
func (c *Codec) ReceiveByte() byte {
	var b byte
	for i := 7; i >= 0; i-- {
		if c.SampleBit() {
			b |= 1 << uint(i)
		}
	}
	return b
}

func (c *Codec) SendBytes(p []byte) {
	for _, b := range p {
		c.SendByte(b)
	}
}

func (c *Codec) ReceiveBytes(p []byte) {
	for i := range p {
		p[i] = c.ReceiveByte()
	}
}

// Pulse holds the line low for us microseconds and releases it.
func (c *Codec) Pulse(us uint32) {
	c.d.DriveLow(true)
	c.d.DelayMicros(us)
	c.d.DriveLow(false)
}

// WaitLevel busy-waits until the line reads high (or low) and reports false
// if timeout elapsed first.
func (c *Codec) WaitLevel(high bool, timeout uint32) bool {
	start := c.d.Micros()
	for c.d.ReadLine() != high {
		if Elapsed(c.d.Micros(), start) > timeout {
			return false
		}
	}
	return true
}

// MeasureLow waits for the line to go high and returns how long it stayed
// low counting from the call. ok is false when it was still low at timeout.
func (c *Codec) MeasureLow(timeout uint32) (uint32, bool) {
	start := c.d.Micros()
	for !c.d.ReadLine() {
		if Elapsed(c.d.Micros(), start) > timeout {
			return 0, false
		}
	}
	return Elapsed(c.d.Micros(), start), true
}

// Stable takes n readings spacing apart and reports whether they all agree.
func (c *Codec) Stable(n int, spacing uint32) bool {
	first := c.d.ReadLine()
	for i := 1; i < n; i++ {
		c.d.DelayMicros(spacing)
		if c.d.ReadLine() != first {
			return false
		}
	}
	return true
}
