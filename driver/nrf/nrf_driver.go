//go:build tinygo || baremetal

package nrf

import (
	"encoding/binary"
	"machine"

	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/transport"

	"device/nrf"
)

// DefaultLinePin is the contact pad of the reference card.
const DefaultLinePin = machine.P0_02

// Line is a LineDriver on one GPIO. The pad is emulated open-drain: released
// means input with pull-up, driven means output low.
type Line struct {
	pin machine.Pin
}

func New() transport.LineDriver { return NewLine(DefaultLinePin) }

func NewLine(pin machine.Pin) *Line {
	StartHFCLK()
	StartTimer()
	l := &Line{pin: pin}
	l.DriveLow(false)
	return l
}

func (l *Line) ReadLine() bool {
	return l.pin.Get()
}

func (l *Line) DriveLow(enable bool) {
	if enable {
		l.pin.Low()
		l.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		return
	}
	l.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (l *Line) Micros() uint32 { return Micros() }

// DelayMicros busy-waits; sleeping would lose the microsecond resolution the
// bit slots need.
func (l *Line) DelayMicros(us uint32) {
	start := Micros()
	for Micros()-start < us {
	}
}

// HardwareID reads the factory identifier from FICR: the 64 bit DEVICEID
// followed by the low word of the BLE device address.
type HardwareID struct{}

func (HardwareID) DeviceID() proto.DeviceID {
	var id proto.DeviceID
	binary.BigEndian.PutUint32(id[0:], nrf.FICR.DEVICEID[1].Get())
	binary.BigEndian.PutUint32(id[4:], nrf.FICR.DEVICEID[0].Get())
	binary.BigEndian.PutUint32(id[8:], nrf.FICR.DEVICEADDR[0].Get())
	return id
}
