//go:build !tinygo && !baremetal

// Package stub provides a host-side wired-AND bus with virtual time, so that
// two or more devices can be co-simulated deterministically.
//
// Every Pin is one device's open-drain driver. Time only moves when a pin
// calls something that costs time (DelayMicros, ReadLine, Micros, DriveLow).
// Inside Bus.Run exactly one device goroutine executes at any moment: the one
// whose wake-up time is earliest, ties going to the lower pin index.
package stub

import (
	"sync"
	"time"
)

// Virtual cost of each driver call, in global microseconds. Busy-wait loops
// make progress because polling the line is never free.
const (
	readCost  = 2
	driveCost = 1
	clockCost = 1
)

// Edge is one change of the shared line level.
type Edge struct {
	At   time.Duration
	High bool
}

type Bus struct {
	mu    sync.Mutex
	now   uint64 // global µs
	limit uint64
	pins  []*Pin
	edges ringBuffer
}

func NewBus() *Bus {
	return &Bus{}
}

// Pin is a LineDriver attached to a Bus.
type Pin struct {
	bus    *Bus
	index  int
	offset uint32
	drift  int64 // ppm
	low    bool
	wake   uint64
	active bool
	resume chan struct{}
}

type PinOption func(*Pin)

// WithClockOffset starts the pin's local clock at us instead of zero. Values
// close to 2^32 exercise timer wraparound.
func WithClockOffset(us uint32) PinOption {
	return func(p *Pin) { p.offset = us }
}

// WithDrift makes the pin's crystal run ppm parts per million fast (or slow
// when negative).
func WithDrift(ppm int32) PinOption {
	return func(p *Pin) { p.drift = int64(ppm) }
}

// NewPin attaches a new released pin to the bus.
func (b *Bus) NewPin(opts ...PinOption) *Pin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &Pin{
		bus:    b,
		index:  len(b.pins),
		resume: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	b.pins = append(b.pins, p)
	return p
}

// New returns a pin on a private bus, for code that just needs a line.
func New() *Pin {
	return NewBus().NewPin()
}

// Now is the global virtual time.
func (b *Bus) Now() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.now) * time.Microsecond
}

// Level reports the current wired-AND level.
func (b *Bus) Level() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levelLocked()
}

// Edges returns the most recent line transitions, oldest first.
func (b *Bus) Edges() []Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.edges.snapshot()
}

func (b *Bus) levelLocked() bool {
	for _, p := range b.pins {
		if p.low {
			return false
		}
	}
	return true
}

// Run executes fns[i] as the device owning pin i, until every function has
// returned. Devices are expected to loop until their pin reports Expired,
// which happens once limit of virtual time has passed.
func (b *Bus) Run(limit time.Duration, fns ...func()) {
	b.mu.Lock()
	if len(fns) != len(b.pins) {
		b.mu.Unlock()
		panic("stub: Run needs one function per pin")
	}
	if len(fns) == 0 {
		b.mu.Unlock()
		return
	}
	b.limit = b.now + uint64(limit/time.Microsecond)
	for _, p := range b.pins {
		p.active = true
		p.wake = b.now
	}
	first := b.pins[0]
	b.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		go func(p *Pin, fn func()) {
			defer wg.Done()
			<-p.resume
			fn()
			p.finish()
		}(b.pins[i], fn)
	}
	first.resume <- struct{}{}
	wg.Wait()
}

// earliestLocked returns the active pin that should run next.
func (b *Bus) earliestLocked() *Pin {
	var next *Pin
	for _, p := range b.pins {
		if !p.active {
			continue
		}
		if next == nil || p.wake < next.wake {
			next = p
		}
	}
	return next
}

// advance spends d global microseconds on behalf of p, yielding to any pin
// that is due earlier.
func (p *Pin) advance(d uint64) {
	b := p.bus
	b.mu.Lock()
	if !p.active {
		b.now += d
		b.mu.Unlock()
		return
	}
	p.wake = b.now + d
	next := b.earliestLocked()
	b.now = next.wake
	b.mu.Unlock()
	if next == p {
		return
	}
	next.resume <- struct{}{}
	<-p.resume
}

func (p *Pin) finish() {
	b := p.bus
	b.mu.Lock()
	p.setLowLocked(false)
	p.active = false
	next := b.earliestLocked()
	if next == nil {
		b.mu.Unlock()
		return
	}
	if next.wake > b.now {
		b.now = next.wake
	}
	b.mu.Unlock()
	next.resume <- struct{}{}
}

func (p *Pin) setLowLocked(low bool) {
	b := p.bus
	before := b.levelLocked()
	p.low = low
	if after := b.levelLocked(); after != before {
		b.edges.push(Edge{At: time.Duration(b.now) * time.Microsecond, High: after})
	}
}

// Expired reports whether the Run limit has passed.
func (p *Pin) Expired() bool {
	b := p.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now >= b.limit
}

func (p *Pin) ReadLine() bool {
	p.bus.mu.Lock()
	high := p.bus.levelLocked()
	p.bus.mu.Unlock()
	p.advance(readCost)
	return high
}

func (p *Pin) DriveLow(enable bool) {
	p.bus.mu.Lock()
	p.setLowLocked(enable)
	p.bus.mu.Unlock()
	p.advance(driveCost)
}

// Micros returns the pin's local clock, which wraps like the hardware timer.
func (p *Pin) Micros() uint32 {
	p.bus.mu.Lock()
	local := p.localLocked()
	p.bus.mu.Unlock()
	p.advance(clockCost)
	return local
}

func (p *Pin) localLocked() uint32 {
	scaled := int64(p.bus.now) * (1_000_000 + p.drift) / 1_000_000
	return p.offset + uint32(scaled)
}

// DelayMicros waits us microseconds of local time.
func (p *Pin) DelayMicros(us uint32) {
	global := int64(us) * 1_000_000 / (1_000_000 + p.drift)
	if global < 1 {
		global = 1
	}
	p.advance(uint64(global))
}

// Delay is DelayMicros for callers holding a time.Duration.
func (p *Pin) Delay(d time.Duration) {
	p.DelayMicros(uint32(d / time.Microsecond))
}

const ringCapacity = 4096

type ringBuffer struct {
	data       [ringCapacity]Edge
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(e Edge) {
	if rb.count == ringCapacity {
		// Overwrite the oldest when buffer is full to keep memory bounded
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = e
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) snapshot() []Edge {
	out := make([]Edge, rb.count)
	i := rb.head
	for c := 0; c < rb.count; c++ {
		out[c] = rb.data[i]
		i = (i + 1) % ringCapacity
	}
	return out
}
