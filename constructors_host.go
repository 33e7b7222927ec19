//go:build !tinygo && !baremetal

// This file is built only for non-embedded targets (host-based testing).
package taplink

import (
	"github.com/ystepanoff/taplink/app"
	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/driver/stub"
	"github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/transport"
)

func NewEvalLink(id protocol.DeviceID) *transport.EvalLink {
	return transport.NewEvalLink(stub.New(), id)
}

func NewBatteryLink(id protocol.DeviceID) *transport.BatteryLink {
	return transport.NewBatteryLink(stub.New(), id)
}

// NewCard builds a card on a private simulated line with its EEPROM in RAM.
func NewCard(id protocol.DeviceID, mode app.Mode) (*app.Application, error) {
	return app.New(app.Config{
		Driver:   stub.New(),
		Medium:   eeprom.NewMemory(eeprom.DefaultSize),
		Identity: protocol.StaticID(id),
		Mode:     mode,
	})
}
