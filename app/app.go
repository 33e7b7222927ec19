// Package app is the card's main loop. It owns the persistent store and one
// link variant, turns link events into tap and peer records, and drives the
// buzzer and status indicator.
package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
	"github.com/ystepanoff/taplink/transport"
)

// Mode selects the link variant.
type Mode uint8

const (
	ModeEval    Mode = iota // continuous power, presence pulses, negotiated roles
	ModeBattery             // sleep/wake, no negotiation
)

func (m Mode) String() string {
	if m == ModeBattery {
		return "battery"
	}
	return "eval"
}

// ParseMode accepts "eval" and "battery".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eval":
		return ModeEval, nil
	case "battery":
		return ModeBattery, nil
	default:
		return ModeEval, fmt.Errorf("%w: unknown mode %q", ErrConfig, s)
	}
}

var ErrConfig = errors.New("app: invalid config")

const (
	DefaultCommandInterval = proto.CommandInterval // µs
	DefaultLoopPause       = 1000                  // µs
	SuccessDisplay         = 2000                  // ms
	BatterySleep           = 100                   // ms
	BatteryReconnectPause  = 500                   // ms
)

// Config wires an Application. Driver, Medium and Identity are required.
type Config struct {
	Driver   transport.LineDriver
	Medium   storage.Medium
	Identity proto.IdentitySource
	Mode     Mode

	// Zero values select the defaults.
	CommandInterval uint32 // µs between master transactions
	LoopPause       uint32 // µs slept at the end of each Step
	SaveDelay       uint32 // ms a dirty record waits before it is flushed
	Timing          transport.Timing
	LinkOptions     []transport.Option

	Logger   *zerolog.Logger
	Signaler Signaler
	Renderer StatusRenderer
}

// Application is not safe for concurrent use. One goroutine calls Begin and
// then Step (or Run) for the life of the card.
type Application struct {
	cfg   Config
	d     transport.LineDriver
	log   zerolog.Logger
	clock *LineClock
	store *storage.Store

	link    transport.Link
	eval    *transport.EvalLink
	battery *transport.BatteryLink

	sig  Signaler
	rend StatusRenderer

	lastCommand uint32
	detectedAt  uint32
	detectedSet bool
	err         error
}

func New(cfg Config) (*Application, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("%w: no line driver", ErrConfig)
	}
	if cfg.Medium == nil {
		return nil, fmt.Errorf("%w: no storage medium", ErrConfig)
	}
	if cfg.Identity == nil {
		return nil, fmt.Errorf("%w: no identity source", ErrConfig)
	}
	if cfg.CommandInterval == 0 {
		cfg.CommandInterval = DefaultCommandInterval
	}
	if cfg.LoopPause == 0 {
		cfg.LoopPause = DefaultLoopPause
	}
	if cfg.SaveDelay == 0 {
		cfg.SaveDelay = storage.DefaultSaveDelay
	}

	a := &Application{
		cfg:   cfg,
		d:     cfg.Driver,
		log:   zerolog.Nop(),
		clock: NewLineClock(cfg.Driver),
		sig:   nopSignaler{},
		rend:  nopRenderer{},
	}
	if cfg.Logger != nil {
		a.log = *cfg.Logger
	}
	if cfg.Signaler != nil {
		a.sig = cfg.Signaler
	}
	if cfg.Renderer != nil {
		a.rend = cfg.Renderer
	}
	a.log = a.log.With().Str("mode", cfg.Mode.String()).Logger()

	a.store = storage.New(cfg.Medium, cfg.Identity, a.clock,
		storage.WithLogger(a.log),
		storage.WithSaveDelay(cfg.SaveDelay),
	)
	return a, nil
}

// Begin loads storage and creates the link under the stored identifier. A
// storage failure leaves the application in StatusError.
func (a *Application) Begin() error {
	a.rend.Render(StatusBooting, proto.RoleUnknown)
	if err := a.store.Begin(); err != nil {
		a.err = err
		a.rend.Render(StatusError, proto.RoleUnknown)
		return fmt.Errorf("app: begin: %w", err)
	}

	opts := []transport.Option{transport.WithLogger(a.log)}
	if a.cfg.Timing != (transport.Timing{}) {
		opts = append(opts, transport.WithTiming(a.cfg.Timing))
	}
	opts = append(opts, a.cfg.LinkOptions...)

	self := a.store.SelfID()
	switch a.cfg.Mode {
	case ModeBattery:
		a.battery = transport.NewBatteryLink(a.d, self, opts...)
		a.link = a.battery
	default:
		a.eval = transport.NewEvalLink(a.d, self, opts...)
		a.link = a.eval
	}
	a.log.Info().Str("self", self.String()).Msg("card ready")
	a.render()
	return nil
}

// Run steps until stop returns true.
func (a *Application) Run(stop func() bool) {
	for !stop() {
		a.Step()
	}
}

// Step runs one loop iteration.
func (a *Application) Step() {
	if a.link == nil {
		a.render()
		a.d.DelayMicros(a.cfg.LoopPause)
		return
	}
	a.store.Loop()
	if a.battery != nil {
		a.stepBattery()
	} else {
		a.stepEval()
	}
	a.render()
	a.d.DelayMicros(a.cfg.LoopPause)
}

func (a *Application) stepEval() {
	l := a.eval
	l.Poll()

	if l.ConnectionDetected() {
		a.sig.DetectionTone()
	}
	if l.NegotiationComplete() {
		a.onNegotiated()
	}
	if !l.Connected() {
		return
	}
	switch l.Role() {
	case proto.RoleMaster:
		a.serveMaster()
	case proto.RoleSlave:
		a.serveSlave()
	}
}

// onNegotiated counts the tap on both sides. The partial save keeps the
// write short because the cards may part at any moment.
func (a *Application) onNegotiated() {
	a.markDetected()
	a.lastCommand = a.d.Micros()
	a.store.IncrementTapCount()
	if err := a.store.SaveTapCountOnly(); err != nil {
		a.log.Error().Err(err).Msg("saving tap count")
	}
	a.log.Info().
		Stringer("role", a.eval.Role()).
		Uint32("taps", a.store.TapCount()).
		Msg("tap")
}

// serveMaster issues at most one transaction per command interval: CheckReady
// until the peer answers, then the identifier exchange, then keep-alives.
func (a *Application) serveMaster() {
	l := a.eval
	now := a.d.Micros()
	if transport.Elapsed(now, a.lastCommand) < a.cfg.CommandInterval {
		return
	}

	switch {
	case !l.PeerReady():
		l.SendCommand(proto.CommandCheckReady)
	case !l.ExchangeComplete():
		peer, ok := l.RequestPeerID()
		if ok && l.SendSelfID() {
			a.recordPeer(peer)
		}
	default:
		l.SendCommand(proto.CommandCheckReady)
	}
	a.lastCommand = a.d.Micros()
}

func (a *Application) serveSlave() {
	l := a.eval
	if !l.HasCommand() {
		return
	}
	switch cmd := l.ReceiveCommand(); cmd {
	case proto.CommandNone:
		// presence pulse or noise
	case proto.CommandCheckReady:
		l.SendResponse(proto.ResponseACK)
	case proto.CommandRequestID:
		l.HandleRequestID()
	case proto.CommandSendID:
		if peer, ok := l.HandleSendID(); ok {
			a.recordPeer(peer)
		}
	default:
		a.log.Debug().Uint8("cmd", uint8(cmd)).Msg("unknown command")
		l.SendResponse(proto.ResponseNAK)
	}
}

func (a *Application) recordPeer(peer proto.DeviceID) {
	if a.store.AddLink(peer) {
		if err := a.store.SaveLinkOnly(); err != nil {
			a.log.Error().Err(err).Msg("saving link")
		}
		a.log.Info().
			Str("peer", peer.String()).
			Uint16("links", a.store.LinkCount()).
			Msg("new link")
	} else {
		a.log.Debug().Str("peer", peer.String()).Msg("peer already linked")
	}
	a.sig.SuccessTone()
}

func (a *Application) stepBattery() {
	l := a.battery
	l.Poll()

	if l.ConnectionEstablished() {
		a.markDetected()
		a.sig.DetectionTone()
		a.sig.SuccessTone()
	}
	if l.ConnectionLost() {
		// stay Disconnected for one iteration so the indicator shows it
		a.log.Debug().Msg("connection lost")
		return
	}

	switch l.State() {
	case transport.StateSleeping:
		l.PrepareForSleep()
		a.clock.SleepMillis(BatterySleep)
		// a peer pulling the line low is the wake-up edge
		if !a.d.ReadLine() {
			l.HandleWakeUp()
		}
	case transport.StateDisconnected:
		a.clock.SleepMillis(BatteryReconnectPause)
		l.Reset()
	}
}

func (a *Application) markDetected() {
	a.detectedAt = a.clock.Millis()
	a.detectedSet = true
}

// Status maps the link state to what the indicator shows.
func (a *Application) Status() Status {
	if a.err != nil {
		return StatusError
	}
	if a.link == nil {
		return StatusBooting
	}
	st := a.link.State()
	if a.eval != nil && st == transport.StateConnected &&
		a.eval.Role() == proto.RoleMaster && a.eval.PeerReady() {
		return StatusPeerReady
	}
	if a.battery != nil && st == transport.StateDisconnected {
		return StatusError
	}
	if a.detectedSet && a.clock.Millis()-a.detectedAt < SuccessDisplay {
		return StatusConnected
	}
	switch st {
	case transport.StateDetecting, transport.StateWaking:
		return StatusDetecting
	case transport.StateNegotiating:
		return StatusNegotiating
	case transport.StateConnected:
		return StatusConnected
	default:
		return StatusIdle
	}
}

func (a *Application) render() {
	a.rend.Render(a.Status(), a.Role())
}

// Role is the negotiated role, or RoleUnknown before Begin.
func (a *Application) Role() proto.Role {
	if a.link == nil {
		return proto.RoleUnknown
	}
	return a.link.Role()
}

func (a *Application) Store() *storage.Store { return a.store }

// Link is nil until Begin succeeds.
func (a *Application) Link() transport.Link { return a.link }

func (a *Application) Mode() Mode { return a.cfg.Mode }
