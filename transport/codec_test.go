package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/driver/stub"
)

func TestCodecBytes(t *testing.T) {
	payload := []byte{0xA5, 0x00, 0xFF, 0x3C, 0x81}

	tests := []struct {
		name        string
		senderLag   uint32
		receiverLag uint32
	}{
		{"aligned", 0, 0},
		{"receiver late", 0, 1500},
		{"sender late", 1500, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus := stub.NewBus()
			tx := bus.NewPin()
			rx := bus.NewPin(stub.WithClockOffset(0xFFFFF000))
			got := make([]byte, len(payload))

			bus.Run(time.Second,
				func() {
					tx.DelayMicros(tc.senderLag + 1)
					NewCodec(tx, DefaultTiming()).SendBytes(payload)
				},
				func() {
					rx.DelayMicros(tc.receiverLag + 1)
					NewCodec(rx, DefaultTiming()).ReceiveBytes(got)
				},
			)
			require.Equal(t, payload, got)
		})
	}
}

func TestSlotIsWiredAND(t *testing.T) {
	tests := []struct {
		a, b bool
		want bool
	}{
		{true, true, true},
		{true, false, false},
		{false, true, false},
		{false, false, false},
	}
	for _, tc := range tests {
		bus := stub.NewBus()
		pa, pb := bus.NewPin(), bus.NewPin()
		var gotA, gotB bool
		bus.Run(time.Second,
			func() { gotA = NewCodec(pa, DefaultTiming()).Slot(tc.a) },
			func() { gotB = NewCodec(pb, DefaultTiming()).Slot(tc.b) },
		)
		require.Equal(t, tc.want, gotA, "a=%v b=%v", tc.a, tc.b)
		require.Equal(t, tc.want, gotB, "a=%v b=%v", tc.a, tc.b)
		require.True(t, bus.Level(), "line must be released after a slot")
	}
}

func TestWaitLevelTimesOut(t *testing.T) {
	bus := stub.NewBus()
	p := bus.NewPin()
	c := NewCodec(p, DefaultTiming())

	start := bus.Now()
	require.False(t, c.WaitLevel(false, 1000))
	require.GreaterOrEqual(t, bus.Now()-start, time.Millisecond)

	require.True(t, c.WaitLevel(true, 1000))
}

func TestMeasureLow(t *testing.T) {
	bus := stub.NewBus()
	holder, watcher := bus.NewPin(), bus.NewPin()
	var low uint32
	var ok bool

	bus.Run(time.Second,
		func() { NewCodec(holder, DefaultTiming()).Pulse(4000) },
		func() {
			watcher.DelayMicros(10)
			low, ok = NewCodec(watcher, DefaultTiming()).MeasureLow(100000)
		},
	)
	require.True(t, ok)
	require.InDelta(t, 3990, float64(low), 20)
}

func TestStable(t *testing.T) {
	bus := stub.NewBus()
	a, b := bus.NewPin(), bus.NewPin()
	var quiet, noisy bool

	bus.Run(time.Second,
		func() {
			c := NewCodec(a, DefaultTiming())
			quiet = c.Stable(5, 100)
			a.DelayMicros(1000)
			noisy = c.Stable(5, 100)
		},
		func() {
			b.DelayMicros(1000)
			for i := 0; i < 40; i++ {
				b.DriveLow(i%2 == 0)
				b.DelayMicros(60)
			}
			b.DriveLow(false)
		},
	)
	require.True(t, quiet)
	require.False(t, noisy)
}
