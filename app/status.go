package app

import (
	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
)

// Status is what the card shows on its ready indicator.
type Status uint8

const (
	StatusBooting Status = iota
	StatusIdle
	StatusDetecting
	StatusNegotiating
	StatusConnected
	StatusPeerReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusBooting:
		return "booting"
	case StatusIdle:
		return "idle"
	case StatusDetecting:
		return "detecting"
	case StatusNegotiating:
		return "negotiating"
	case StatusConnected:
		return "connected"
	case StatusPeerReady:
		return "peer-ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Signaler plays the audible cues. Implementations must not block for long;
// the loop calls them between line transactions.
type Signaler interface {
	DetectionTone()
	SuccessTone()
}

// StatusRenderer shows the current status and role. Render is called on
// every loop iteration, so it should only act on changes.
type StatusRenderer interface {
	Render(s Status, r proto.Role)
}

type nopSignaler struct{}

func (nopSignaler) DetectionTone() {}
func (nopSignaler) SuccessTone()   {}

type nopRenderer struct{}

func (nopRenderer) Render(Status, proto.Role) {}

// LogRenderer logs status and role transitions.
type LogRenderer struct {
	Log zerolog.Logger

	status Status
	role   proto.Role
	shown  bool
}

func (r *LogRenderer) Render(s Status, role proto.Role) {
	if r.shown && s == r.status && role == r.role {
		return
	}
	r.status, r.role, r.shown = s, role, true
	r.Log.Debug().Stringer("status", s).Stringer("role", role).Msg("status")
}

// LogSignaler logs each tone instead of playing it.
type LogSignaler struct {
	Log zerolog.Logger
}

func (s LogSignaler) DetectionTone() { s.Log.Info().Str("tone", "detection").Msg("beep") }
func (s LogSignaler) SuccessTone()   { s.Log.Info().Str("tone", "success").Msg("beep") }
