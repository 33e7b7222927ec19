package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/driver/stub"
)

func chatter(p *stub.Pin, d uint32) {
	for spent := uint32(0); spent < d; spent += 60 {
		p.DriveLow(spent/60%2 == 0)
		p.DelayMicros(60)
	}
	p.DriveLow(false)
}

func TestBatteryConnectAndLose(t *testing.T) {
	bus := stub.NewBus()
	card, peer := bus.NewPin(), bus.NewPin()
	l := NewBatteryLink(card, mustID(t, highID))
	var established, lost bool
	var states []State

	bus.Run(time.Second,
		func() {
			l.HandleWakeUp()
			for !card.Expired() && l.State() != StateDisconnected {
				prev := l.State()
				l.Poll()
				if l.State() != prev {
					states = append(states, l.State())
				}
				if l.ConnectionEstablished() {
					established = true
				}
				if l.ConnectionLost() {
					lost = true
				}
				card.DelayMicros(100)
			}
		},
		func() {
			peer.DriveLow(true)
			peer.DelayMicros(50000)
			chatter(peer, 20000)
		},
	)

	require.True(t, established)
	require.True(t, lost)
	require.Equal(t, []State{StateConnected, StateDisconnected}, states)
	require.False(t, l.HasRole())
	require.False(t, l.Negotiating())
}

func TestBatteryNoisyWakeGoesBackToSleep(t *testing.T) {
	bus := stub.NewBus()
	card, peer := bus.NewPin(), bus.NewPin()
	l := NewBatteryLink(card, mustID(t, highID))

	bus.Run(time.Second,
		func() {
			l.HandleWakeUp()
			card.DelayMicros(10)
			l.Poll()
		},
		func() { chatter(peer, 5000) },
	)

	require.True(t, l.Idle())
	require.False(t, l.ConnectionEstablished())
}

func TestBatteryPrepareForSleepDropsEvents(t *testing.T) {
	l := NewBatteryLink(stub.New(), mustID(t, highID))
	l.established = true
	l.lost = true
	l.state = StateConnected

	l.PrepareForSleep()
	require.Equal(t, StateSleeping, l.State())
	require.False(t, l.ConnectionEstablished())
	require.False(t, l.ConnectionLost())

	l.HandleWakeUp()
	l.Reset()
	require.True(t, l.Idle())
}
