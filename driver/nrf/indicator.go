//go:build tinygo || baremetal

package nrf

import (
	"machine"

	"github.com/ystepanoff/taplink/app"
	proto "github.com/ystepanoff/taplink/protocol"
)

// Buzzer drives a passive piezo by toggling a GPIO.
type Buzzer struct {
	pin machine.Pin
}

func NewBuzzer(pin machine.Pin) *Buzzer {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &Buzzer{pin: pin}
}

func (b *Buzzer) tone(hz, ms uint32) {
	half := 500000 / hz
	for elapsed := uint32(0); elapsed < ms*1000; elapsed += 2 * half {
		b.pin.High()
		busyWait(half)
		b.pin.Low()
		busyWait(half)
	}
}

func (b *Buzzer) DetectionTone() { b.tone(2000, 40) }

func (b *Buzzer) SuccessTone() {
	b.tone(2000, 60)
	busyWait(40000)
	b.tone(3000, 90)
}

func busyWait(us uint32) {
	start := Micros()
	for Micros()-start < us {
	}
}

// LEDs shows status on the ready LED and the role on the second LED:
// steady for master, off for slave, blinking while undecided.
type LEDs struct {
	ready machine.Pin
	role  machine.Pin
}

func NewLEDs(ready, role machine.Pin) *LEDs {
	ready.Configure(machine.PinConfig{Mode: machine.PinOutput})
	role.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &LEDs{ready: ready, role: role}
}

func (l *LEDs) Render(s app.Status, r proto.Role) {
	blink := Micros()/250000%2 == 0
	switch s {
	case app.StatusConnected, app.StatusPeerReady:
		l.ready.High()
	case app.StatusDetecting, app.StatusNegotiating:
		l.ready.Set(blink)
	case app.StatusError:
		l.ready.Set(Micros()/100000%2 == 0)
	default:
		l.ready.Low()
	}
	switch r {
	case proto.RoleMaster:
		l.role.High()
	case proto.RoleSlave:
		l.role.Low()
	default:
		l.role.Set(s == app.StatusNegotiating && blink)
	}
}

var (
	_ app.Signaler       = (*Buzzer)(nil)
	_ app.StatusRenderer = (*LEDs)(nil)
)
