package transport

import (
	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
)

// BatteryLink is the sleep/wake variant. The MCU sleeps until a line edge
// wakes it; the link then checks the line is stable for WakeValidation before
// reporting a connection, and reports it lost once readings stay unstable for
// DisconnectDebounce. It never negotiates a role.
type BatteryLink struct {
	d     LineDriver
	codec *Codec
	opts  options
	log   zerolog.Logger
	self  proto.DeviceID

	state       State
	wakeAt      uint32
	unstableAt  uint32
	wasStable   bool
	established bool
	lost        bool
}

func NewBatteryLink(d LineDriver, self proto.DeviceID, opts ...Option) *BatteryLink {
	o := buildOptions(opts)
	l := &BatteryLink{
		d:     d,
		codec: NewCodec(d, o.timing),
		opts:  o,
		log:   o.logger.With().Str("link", "battery").Str("self", self.String()).Logger(),
		self:  self,
		state: StateSleeping,
	}
	l.d.DriveLow(false)
	return l
}

func (l *BatteryLink) Poll() {
	t := l.opts.timing
	switch l.state {
	case StateWaking:
		if !l.stable() {
			l.log.Debug().Msg("wake-up not stable, back to sleep")
			l.state = StateSleeping
			return
		}
		if Elapsed(l.d.Micros(), l.wakeAt) >= t.WakeValidation {
			l.state = StateConnected
			l.established = true
			l.wasStable = true
			l.log.Info().Msg("connection established")
		}

	case StateConnected:
		if l.stable() {
			l.wasStable = true
			return
		}
		now := l.d.Micros()
		if l.wasStable {
			l.wasStable = false
			l.unstableAt = now
			return
		}
		if Elapsed(now, l.unstableAt) >= t.DisconnectDebounce {
			l.state = StateDisconnected
			l.lost = true
			l.log.Info().Msg("connection lost")
		}
	}
}

func (l *BatteryLink) stable() bool {
	return l.codec.Stable(proto.StabilityReadings, l.opts.timing.StabilitySpacing)
}

// HandleWakeUp is called from the wake-up path after the MCU leaves sleep.
func (l *BatteryLink) HandleWakeUp() {
	l.wakeAt = l.d.Micros()
	l.state = StateWaking
}

// PrepareForSleep drops pending events before the MCU sleeps.
func (l *BatteryLink) PrepareForSleep() {
	l.state = StateSleeping
	l.established = false
	l.lost = false
}

func (l *BatteryLink) Reset() {
	l.PrepareForSleep()
	l.wasStable = false
}

// ConnectionEstablished reports, once, a validated connection.
func (l *BatteryLink) ConnectionEstablished() bool {
	v := l.established
	l.established = false
	return v
}

// ConnectionLost reports, once, that a connection went away.
func (l *BatteryLink) ConnectionLost() bool {
	v := l.lost
	l.lost = false
	return v
}

func (l *BatteryLink) Role() proto.Role       { return proto.RoleUnknown }
func (l *BatteryLink) HasRole() bool          { return false }
func (l *BatteryLink) State() State           { return l.state }
func (l *BatteryLink) Connected() bool        { return l.state == StateConnected }
func (l *BatteryLink) Negotiating() bool      { return false }
func (l *BatteryLink) Idle() bool             { return l.state == StateSleeping }
func (l *BatteryLink) SelfID() proto.DeviceID { return l.self }
