//go:build tinygo || baremetal

// This file is built only for the card itself.
package taplink

import (
	"github.com/ystepanoff/taplink/app"
	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/driver/nrf"
	"github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/transport"
)

func NewEvalLink(id protocol.DeviceID) *transport.EvalLink {
	return transport.NewEvalLink(nrf.New(), id)
}

func NewBatteryLink(id protocol.DeviceID) *transport.BatteryLink {
	return transport.NewBatteryLink(nrf.New(), id)
}

// NewCard builds a card on the contact pad with its record in flash. id is
// only used when the stored record has none; pass the hardware identifier.
func NewCard(id protocol.DeviceID, mode app.Mode) (*app.Application, error) {
	flash, err := nrf.NewFlash(eeprom.DefaultSize)
	if err != nil {
		return nil, err
	}
	return app.New(app.Config{
		Driver:   nrf.New(),
		Medium:   flash,
		Identity: protocol.StaticID(id),
		Mode:     mode,
	})
}
