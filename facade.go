// Package taplink provides a façade over the card's line protocol, storage and
// application loop.
package taplink

import (
	"github.com/ystepanoff/taplink/app"
	"github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
	"github.com/ystepanoff/taplink/transport"
)

// The constructors are split into build-tag specific files:
// - constructors_nrf.go - for the card (//go:build tinygo || baremetal)
// - constructors_host.go - for development/testing (//go:build !tinygo && !baremetal)

type (
	DeviceID    = protocol.DeviceID
	Role        = protocol.Role
	Command     = protocol.Command
	Response    = protocol.Response
	LineDriver  = transport.LineDriver
	Link        = transport.Link
	EvalLink    = transport.EvalLink
	BatteryLink = transport.BatteryLink
	Store       = storage.Store
	Medium      = storage.Medium
	Application = app.Application
	Config      = app.Config
)

// Errors exposed in the public API
var (
	ErrInvalidID      = protocol.ErrInvalidID
	ErrBadCRC         = storage.ErrBadCRC
	ErrNoKey          = storage.ErrNoKey
	ErrMediumTooSmall = storage.ErrMediumTooSmall
)

// Constants exposed in the public API
const (
	RoleUnknown = protocol.RoleUnknown
	RoleMaster  = protocol.RoleMaster
	RoleSlave   = protocol.RoleSlave

	ModeEval    = app.ModeEval
	ModeBattery = app.ModeBattery
)

// ParseDeviceID decodes the 24 character hex form.
func ParseDeviceID(s string) (DeviceID, error) {
	return protocol.ParseDeviceID(s)
}
