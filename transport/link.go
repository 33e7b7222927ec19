package transport

import (
	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
)

// State is where a link currently is. Eval links move through Idle,
// Detecting, Negotiating and Connected; battery links through Sleeping,
// Waking, Connected and Disconnected.
type State uint8

const (
	StateIdle State = iota
	StateDetecting
	StateNegotiating
	StateConnected
	StateSleeping
	StateWaking
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateSleeping:
		return "sleeping"
	case StateWaking:
		return "waking"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Link is the capability set shared by both power variants.
type Link interface {
	Poll()
	Reset()
	Role() proto.Role
	HasRole() bool
	State() State
	Connected() bool
	Negotiating() bool
	Idle() bool
	SelfID() proto.DeviceID
}

var (
	_ Link = (*EvalLink)(nil)
	_ Link = (*BatteryLink)(nil)
)

type options struct {
	logger  zerolog.Logger
	timing  Timing
	seed    uint32
	hasSeed bool
}

// Option configures a link.
type Option func(*options)

// WithLogger attaches a logger. Nothing is logged inside a bit window.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}

// WithTieBreakSeed fixes the tie-break generator seed instead of deriving it
// from the timer at negotiation time.
func WithTieBreakSeed(seed uint32) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		timing: DefaultTiming(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
