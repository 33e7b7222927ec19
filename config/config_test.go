package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/app"
	"github.com/ystepanoff/taplink/transport"
)

const sample = `
mode = "battery"
duration = "12s"
command_interval = "250ms"
storage_delay = "1s"
log_level = "debug"

[timing]
presence_interval = "20ms"
slave_idle_timeout = "3s"

[[device]]
name = "left"
id = "A0112233445566778899AABB"
db = "left.db"

[[device]]
name = "right"
id = "10112233445566778899AABB"
clock_offset_us = 4294000000
drift_ppm = -150
start_delay = "13ms"
`

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, app.ModeBattery, cfg.Mode)
	require.Equal(t, 12*time.Second, cfg.Duration)
	require.Equal(t, 250*time.Millisecond, cfg.CommandInterval)
	require.Equal(t, time.Second, cfg.SaveDelay)
	require.Equal(t, "debug", cfg.LogLevel)

	require.EqualValues(t, 20000, cfg.Timing.PresenceInterval)
	require.EqualValues(t, 3000000, cfg.Timing.SlaveIdleTimeout)
	require.Equal(t, transport.DefaultTiming().BitDrive, cfg.Timing.BitDrive)

	require.Len(t, cfg.Devices, 2)
	left, right := cfg.Devices[0], cfg.Devices[1]
	require.Equal(t, "left", left.Name)
	require.Equal(t, "A0112233445566778899AABB", left.ID.String())
	require.Equal(t, "left.db", left.DB)
	require.Zero(t, left.StartDelay)
	require.EqualValues(t, 4294000000, right.ClockOffset)
	require.EqualValues(t, -150, right.DriftPPM)
	require.Equal(t, 13*time.Millisecond, right.StartDelay)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse(`duration = "2s"`)
	require.NoError(t, err)

	def := Default()
	require.Equal(t, 2*time.Second, cfg.Duration)
	require.Equal(t, def.Mode, cfg.Mode)
	require.Equal(t, def.Timing, cfg.Timing)
	require.Equal(t, def.Devices, cfg.Devices)
	require.NoError(t, def.Validate())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", `colour = "red"`},
		{"bad mode", `mode = "usb"`},
		{"bad duration", `duration = "soon"`},
		{"zero duration", `duration = "0s"`},
		{"zero storage delay", `storage_delay = "0s"`},
		{"sub-millisecond storage delay", `storage_delay = "500us"`},
		{"unknown timing", "[timing]\nwarp = \"1ms\""},
		{"negative timing", "[timing]\ndebounce = \"-1ms\""},
		{"sample past drive", "[timing]\nbit_sample = \"5ms\""},
		{"start pulse too short", "[timing]\nstart_pulse = \"2ms\""},
		{"bad id", "[[device]]\nid = \"xyz\""},
		{"idle line id", "[[device]]\nid = \"FFFFFFFFFFFFFFFFFFFFFFFF\""},
		{"duplicate id", "[[device]]\nid = \"0A0000000000000000000001\"\n[[device]]\nid = \"0A0000000000000000000001\""},
		{"duplicate name", "[[device]]\nname = \"x\"\nid = \"0A0000000000000000000001\"\n[[device]]\nname = \"x\"\nid = \"0B0000000000000000000001\""},
		{"offset range", "[[device]]\nid = \"0A0000000000000000000001\"\nclock_offset_us = -1"},
		{"drift range", "[[device]]\nid = \"0A0000000000000000000001\"\ndrift_ppm = 20000"},
		{"no devices", "device = []"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			require.Error(t, err)
		})
	}
}

func TestStorageDelayIsExplicit(t *testing.T) {
	_, err := Parse(`storage_delay = "0s"`)
	require.ErrorIs(t, err, ErrInvalid)

	cfg, err := Parse(`storage_delay = "1ms"`)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, cfg.SaveDelay)
}

func TestDevicesGetNames(t *testing.T) {
	cfg, err := Parse("[[device]]\nid = \"0A0000000000000000000001\"\n[[device]]\nid = \"0B0000000000000000000001\"")
	require.NoError(t, err)
	require.Equal(t, "card0", cfg.Devices[0].Name)
	require.Equal(t, "card1", cfg.Devices[1].Name)
}

func TestTimingKeysAreSorted(t *testing.T) {
	keys := TimingKeys()
	require.Contains(t, keys, "presence_interval")
	require.IsIncreasing(t, keys)
}
