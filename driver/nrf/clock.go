//go:build tinygo || baremetal

package nrf

import (
	"device/nrf"
)

// StartHFCLK switches to the crystal oscillator so TIMER1 ticks accurately.
// The internal RC drifts by more than the bit slots tolerate.
func StartHFCLK() {
	if nrf.CLOCK.HFCLKSTAT.HasBits(nrf.CLOCK_HFCLKSTAT_SRC | nrf.CLOCK_HFCLKSTAT_STATE) {
		return
	}
	nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_HFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() == 0 {
	}
}

// StartTimer runs TIMER1 as a free-running 32 bit microsecond counter.
func StartTimer() {
	nrf.TIMER1.TASKS_STOP.Set(1)
	nrf.TIMER1.MODE.Set(nrf.TIMER_MODE_MODE_Timer)
	nrf.TIMER1.BITMODE.Set(nrf.TIMER_BITMODE_BITMODE_32Bit)
	nrf.TIMER1.PRESCALER.Set(4) // 16 MHz / 2^4
	nrf.TIMER1.TASKS_CLEAR.Set(1)
	nrf.TIMER1.TASKS_START.Set(1)
}

// Micros captures the current TIMER1 count. It wraps every ~71 minutes.
func Micros() uint32 {
	nrf.TIMER1.TASKS_CAPTURE[0].Set(1)
	return nrf.TIMER1.CC[0].Get()
}
