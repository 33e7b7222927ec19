package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/driver/stub"
	"github.com/ystepanoff/taplink/internal/logging"
	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
	"github.com/ystepanoff/taplink/transport"
)

func mustID(t *testing.T, s string) proto.DeviceID {
	t.Helper()
	id, err := proto.ParseDeviceID(s)
	require.NoError(t, err)
	return id
}

type tones struct {
	detection int
	success   int
}

func (s *tones) DetectionTone() { s.detection++ }
func (s *tones) SuccessTone()   { s.success++ }

type statusLog struct {
	seen []Status
}

func (r *statusLog) Render(s Status, _ proto.Role) {
	if n := len(r.seen); n == 0 || r.seen[n-1] != s {
		r.seen = append(r.seen, s)
	}
}

type card struct {
	pin    *stub.Pin
	medium *eeprom.Memory
	id     proto.DeviceID
	tones  tones
	status statusLog
	app    *Application
}

func newCard(t *testing.T, pin *stub.Pin, id string, mode Mode) *card {
	t.Helper()
	c := &card{pin: pin, medium: eeprom.NewMemory(eeprom.DefaultSize), id: mustID(t, id)}
	logger := logging.Test(t)
	a, err := New(Config{
		Driver:   pin,
		Medium:   c.medium,
		Identity: proto.StaticID(c.id),
		Mode:     mode,
		Logger:   &logger,
		Signaler: &c.tones,
		Renderer: &c.status,
	})
	require.NoError(t, err)
	c.app = a
	return c
}

// boot waits lag µs of virtual time, then powers the card up and runs it
// until the bus expires. Errors surface through Status.
func (c *card) boot(lag uint32) {
	if lag > 0 {
		c.pin.DelayMicros(lag)
	}
	if err := c.app.Begin(); err != nil {
		return
	}
	c.app.Run(c.pin.Expired)
}

func TestTwoCardsTap(t *testing.T) {
	bus := stub.NewBus()
	a := newCard(t, bus.NewPin(), "FF112233445566778899AABB", ModeEval)
	b := newCard(t, bus.NewPin(stub.WithClockOffset(0xFFF00000), stub.WithDrift(120)),
		"00112233445566778899AACC", ModeEval)

	bus.Run(4*time.Second,
		func() { a.boot(0) },
		func() { b.boot(7000) },
	)

	require.Equal(t, proto.RoleMaster, a.app.Role())
	require.Equal(t, proto.RoleSlave, b.app.Role())

	for _, tc := range []struct {
		name string
		self *card
		peer *card
	}{
		{"master", a, b},
		{"slave", b, a},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.self.app.Store()
			require.EqualValues(t, 1, s.TapCount())
			require.EqualValues(t, 1, s.LinkCount())
			require.Equal(t, []proto.DeviceID{tc.peer.id}, s.Links(0, 10))
			require.Equal(t, 1, tc.self.tones.detection)
			require.Equal(t, 1, tc.self.tones.success)
			require.Contains(t, tc.self.status.seen, StatusConnected)

			// the partial saves left a valid image behind
			rec, _, err := storage.DecodeImage(tc.self.medium.Bytes())
			require.NoError(t, err)
			require.Equal(t, tc.self.id, rec.SelfID)
			require.EqualValues(t, 1, rec.TapCount)
			require.Equal(t, tc.peer.id, rec.Links[0])
		})
	}
	require.Contains(t, a.status.seen, StatusPeerReady)
	require.Equal(t, StatusBooting, a.status.seen[0])
}

func TestRepeatTapKeepsOneLink(t *testing.T) {
	bus := stub.NewBus()
	a := newCard(t, bus.NewPin(), "FF112233445566778899AABB", ModeEval)
	b := newCard(t, bus.NewPin(stub.WithClockOffset(0x7FFFFFFF)), "00112233445566778899AACC", ModeEval)
	second := powerCycle(t, b)

	// tap runs c for d µs of its own time and then powers it off
	tap := func(c *Application, d uint32) {
		if err := c.Begin(); err != nil {
			return
		}
		deadline := b.pin.Micros() + d
		c.Run(func() bool {
			return b.pin.Expired() || transport.Elapsed(b.pin.Micros(), deadline) < 1<<31
		})
	}
	bus.Run(12*time.Second,
		func() { a.boot(0) },
		func() {
			b.pin.DelayMicros(7000)
			tap(b.app, 2_500_000)
			b.pin.DelayMicros(3_000_000)
			tap(second, 4_000_000)
		},
	)

	require.EqualValues(t, 2, a.app.Store().TapCount())
	require.EqualValues(t, 1, a.app.Store().LinkCount())
	require.Equal(t, 2, a.tones.success)
	require.EqualValues(t, 2, second.Store().TapCount())
	require.Equal(t, []proto.DeviceID{a.id}, second.Store().Links(0, 64))
}

// powerCycle builds a fresh application on the same pin and medium, as after
// a battery swap.
func powerCycle(t *testing.T, c *card) *Application {
	t.Helper()
	logger := logging.Test(t)
	a, err := New(Config{
		Driver:   c.pin,
		Medium:   c.medium,
		Identity: proto.StaticID(c.id),
		Logger:   &logger,
		Signaler: &c.tones,
		Renderer: &c.status,
	})
	require.NoError(t, err)
	return a
}

func TestBatteryCardWakesOnPeer(t *testing.T) {
	bus := stub.NewBus()
	c := newCard(t, bus.NewPin(), "FF112233445566778899AABB", ModeBattery)
	peer := bus.NewPin()
	var states []transport.State

	bus.Run(2*time.Second,
		func() {
			if err := c.app.Begin(); err != nil {
				return
			}
			for !c.pin.Expired() {
				prev := c.app.Link().State()
				c.app.Step()
				if st := c.app.Link().State(); st != prev {
					states = append(states, st)
				}
			}
		},
		func() {
			peer.DelayMicros(300_000)
			peer.DriveLow(true)
			peer.DelayMicros(400_000)
			for i := 0; i < 100; i++ {
				peer.DriveLow(i%2 == 0)
				peer.DelayMicros(60)
			}
			peer.DriveLow(false)
			for !peer.Expired() {
				peer.DelayMicros(10_000)
			}
		},
	)

	require.Equal(t, 1, c.tones.detection)
	require.Equal(t, 1, c.tones.success)
	require.Subset(t, states, []transport.State{
		transport.StateWaking,
		transport.StateConnected,
		transport.StateDisconnected,
	})
	require.Equal(t, proto.RoleUnknown, c.app.Role())
	require.Contains(t, c.status.seen, StatusConnected)
	require.Contains(t, c.status.seen, StatusError, "disconnect is rendered before the card sleeps again")
	require.Equal(t, transport.StateSleeping, c.app.Link().State())
}

func TestBeginFailureShowsError(t *testing.T) {
	logger := logging.Test(t)
	status := &statusLog{}
	a, err := New(Config{
		Driver:   stub.New(),
		Medium:   eeprom.NewMemory(64),
		Identity: proto.StaticID{1},
		Logger:   &logger,
		Renderer: status,
	})
	require.NoError(t, err)

	err = a.Begin()
	require.ErrorIs(t, err, storage.ErrMediumTooSmall)
	require.Equal(t, StatusError, a.Status())
	require.Nil(t, a.Link())
	require.Equal(t, []Status{StatusBooting, StatusError}, status.seen)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Medium: eeprom.NewMemory(eeprom.DefaultSize), Identity: proto.StaticID{1}})
	require.ErrorIs(t, err, ErrConfig)
	_, err = New(Config{Driver: stub.New(), Identity: proto.StaticID{1}})
	require.ErrorIs(t, err, ErrConfig)
	_, err = New(Config{Driver: stub.New(), Medium: eeprom.NewMemory(eeprom.DefaultSize)})
	require.ErrorIs(t, err, ErrConfig)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  error
	}{
		{"", ModeEval, nil},
		{"eval", ModeEval, nil},
		{" Battery ", ModeBattery, nil},
		{"usb", ModeEval, ErrConfig},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.err != nil {
			require.True(t, errors.Is(err, tc.err), tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestLineClockSurvivesWrap(t *testing.T) {
	bus := stub.NewBus()
	pin := bus.NewPin(stub.WithClockOffset(0xFFFFFFFF - 1_500_000))
	clock := NewLineClock(pin)
	var before, after uint32

	bus.Run(5*time.Second, func() {
		before = clock.Millis()
		clock.SleepMillis(1000)
		clock.Millis()
		clock.SleepMillis(1000)
		after = clock.Millis()
	})

	require.Zero(t, before)
	require.InDelta(t, 2000, after, 1)
}
