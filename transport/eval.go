package transport

import (
	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
)

// EvalLink is the continuous-power link. While idle it announces itself with
// short presence pulses; the first low it sees from a peer starts the sync
// handshake and negotiation, after which the master drives all traffic with
// commands. Disconnection is only noticed through command failures on the
// master and the idle timeout on the slave.
//
// EvalLink is not safe for concurrent use; one loop owns it.
type EvalLink struct {
	d     LineDriver
	codec *Codec
	opts  options
	log   zerolog.Logger
	self  proto.DeviceID

	state State
	role  proto.Role

	pulsing      bool
	pulseStart   uint32
	lastPresence uint32
	lowSince     uint32

	detected   bool
	negotiated bool

	failures     int
	lastCommand  uint32
	peerReady    bool
	exchangeDone bool
}

func NewEvalLink(d LineDriver, self proto.DeviceID, opts ...Option) *EvalLink {
	o := buildOptions(opts)
	l := &EvalLink{
		d:     d,
		codec: NewCodec(d, o.timing),
		opts:  o,
		log:   o.logger.With().Str("link", "eval").Str("self", self.String()).Logger(),
		self:  self,
	}
	l.d.DriveLow(false)
	l.lastPresence = l.d.Micros()
	return l
}

// Poll advances the state machine by one step. Call it once per loop
// iteration; it blocks for the whole handshake when a peer is found.
func (l *EvalLink) Poll() {
	now := l.d.Micros()

	if l.pulsing {
		if Elapsed(now, l.pulseStart) >= l.opts.timing.PresencePulse {
			l.d.DriveLow(false)
			l.pulsing = false
			l.lastPresence = now
		}
		// our own pulse hides the peer
		return
	}

	switch l.state {
	case StateIdle:
		if !l.d.ReadLine() {
			l.state = StateDetecting
			l.lowSince = now
			return
		}
		if Elapsed(now, l.lastPresence) >= l.opts.timing.PresenceInterval {
			l.SendPresencePulse()
		}

	case StateDetecting:
		if l.d.ReadLine() {
			// short low: a presence pulse, we start the handshake
			l.detected = true
			l.log.Debug().Msg("peer presence pulse")
			l.negotiate(false)
			return
		}
		if Elapsed(now, l.lowSince) >= l.opts.timing.Debounce {
			// held low: the peer is already in its first sync pulse
			l.detected = true
			l.log.Debug().Uint32("low_us", Elapsed(now, l.lowSince)).Msg("peer holding line")
			l.negotiate(true)
		}

	case StateConnected:
		if l.role == proto.RoleSlave && Elapsed(now, l.lastCommand) > l.opts.timing.SlaveIdleTimeout {
			l.log.Info().Msg("no command from master, link lost")
			l.drop(now)
		}
	}
}

// SendPresencePulse pulls the line low; Poll releases it after PresencePulse.
func (l *EvalLink) SendPresencePulse() {
	l.d.DriveLow(true)
	l.pulsing = true
	l.pulseStart = l.d.Micros()
}

// ConnectionDetected reports, once, that a peer was seen.
func (l *EvalLink) ConnectionDetected() bool {
	v := l.detected
	l.detected = false
	return v
}

// NegotiationComplete reports, once, that roles were just assigned.
func (l *EvalLink) NegotiationComplete() bool {
	v := l.negotiated
	l.negotiated = false
	return v
}

// Reset forgets the peer and goes back to presence detection.
func (l *EvalLink) Reset() {
	l.drop(l.d.Micros())
	l.detected = false
	l.negotiated = false
}

func (l *EvalLink) drop(now uint32) {
	l.d.DriveLow(false)
	l.pulsing = false
	l.state = StateIdle
	l.role = proto.RoleUnknown
	l.failures = 0
	l.peerReady = false
	l.exchangeDone = false
	l.lastPresence = now
}

// fail counts a failed master transaction and drops the link at the limit.
func (l *EvalLink) fail(cmd proto.Command, reason string) {
	l.failures++
	l.log.Debug().
		Stringer("cmd", cmd).
		Str("reason", reason).
		Int("failures", l.failures).
		Msg("command failed")
	if l.failures >= l.opts.timing.MaxFailures {
		l.log.Info().Int("failures", l.failures).Msg("peer lost")
		l.drop(l.d.Micros())
	}
}

func (l *EvalLink) ok() {
	l.failures = 0
	l.lastCommand = l.d.Micros()
}

func (l *EvalLink) Role() proto.Role       { return l.role }
func (l *EvalLink) HasRole() bool          { return l.role != proto.RoleUnknown }
func (l *EvalLink) State() State           { return l.state }
func (l *EvalLink) Connected() bool        { return l.state == StateConnected }
func (l *EvalLink) Negotiating() bool      { return l.state == StateNegotiating }
func (l *EvalLink) Idle() bool             { return l.state == StateIdle }
func (l *EvalLink) SelfID() proto.DeviceID { return l.self }

// Failures is the current count of consecutive failed transactions.
func (l *EvalLink) Failures() int { return l.failures }

// PeerReady reports whether the last CheckReady was acknowledged.
func (l *EvalLink) PeerReady() bool { return l.peerReady }

func (l *EvalLink) ClearPeerReady() { l.peerReady = false }

// ExchangeComplete reports whether identifiers were swapped on this
// connection.
func (l *EvalLink) ExchangeComplete() bool { return l.exchangeDone }

func (l *EvalLink) isMaster() bool {
	return l.state == StateConnected && l.role == proto.RoleMaster
}

func (l *EvalLink) isSlave() bool {
	return l.state == StateConnected && l.role == proto.RoleSlave
}
