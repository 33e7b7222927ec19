// Package config loads the simulator configuration from TOML. Every key is
// optional; keys that are present override Default.
//
//	mode             = "eval"          # or "battery"
//	duration         = "5s"            # virtual time to simulate
//	command_interval = "500ms"
//	storage_delay    = "30s"
//	log_level        = "info"
//
//	[timing]                           # any transport.Timing field, snake_case
//	presence_interval = "50ms"
//
//	[[device]]
//	name            = "a"
//	id              = "FF112233445566778899AABB"
//	clock_offset_us = 0
//	drift_ppm       = 0
//	start_delay     = "0s"
//	db              = "a.db"           # bbolt file; empty keeps the card in RAM
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ystepanoff/taplink/app"
	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/transport"
)

var ErrInvalid = errors.New("config: invalid")

// Device is one simulated card.
type Device struct {
	Name        string
	ID          proto.DeviceID
	ClockOffset uint32 // µs added to the card's timer, to start it near a wrap
	DriftPPM    int32
	StartDelay  time.Duration
	DB          string
}

type Config struct {
	Mode            app.Mode
	Duration        time.Duration
	CommandInterval time.Duration
	SaveDelay       time.Duration
	LogLevel        string
	Timing          transport.Timing
	Devices         []Device
}

// Default is two cards with opposite leading bits, the second booted 7 ms
// later on a clock that wraps within the first second.
func Default() Config {
	return Config{
		Mode:            app.ModeEval,
		Duration:        5 * time.Second,
		CommandInterval: proto.CommandInterval * time.Microsecond,
		SaveDelay:       30 * time.Second,
		LogLevel:        "info",
		Timing:          transport.DefaultTiming(),
		Devices: []Device{
			{Name: "a", ID: proto.DeviceID{0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB}},
			{
				Name:        "b",
				ID:          proto.DeviceID{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xCC},
				ClockOffset: 0xFFF00000,
				StartDelay:  7 * time.Millisecond,
			},
		},
	}
}

type fileDevice struct {
	Name        string `toml:"name"`
	ID          string `toml:"id"`
	ClockOffset int64  `toml:"clock_offset_us"`
	DriftPPM    int32  `toml:"drift_ppm"`
	StartDelay  string `toml:"start_delay"`
	DB          string `toml:"db"`
}

type fileConfig struct {
	Mode            string            `toml:"mode"`
	Duration        string            `toml:"duration"`
	CommandInterval string            `toml:"command_interval"`
	StorageDelay    string            `toml:"storage_delay"`
	LogLevel        string            `toml:"log_level"`
	Timing          map[string]string `toml:"timing"`
	Devices         []fileDevice      `toml:"device"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Parse is Load for configuration held in memory.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	if meta.IsDefined("mode") {
		m, err := app.ParseMode(raw.Mode)
		if err != nil {
			return Config{}, fmt.Errorf("parse mode: %w", err)
		}
		cfg.Mode = m
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"duration", raw.Duration, &cfg.Duration},
		{"command_interval", raw.CommandInterval, &cfg.CommandInterval},
		{"storage_delay", raw.StorageDelay, &cfg.SaveDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := applyTiming(&cfg.Timing, raw.Timing); err != nil {
		return Config{}, err
	}

	if meta.IsDefined("device") {
		devices := make([]Device, 0, len(raw.Devices))
		for i, fd := range raw.Devices {
			d, err := parseDevice(i, fd)
			if err != nil {
				return Config{}, err
			}
			devices = append(devices, d)
		}
		cfg.Devices = devices
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDevice(i int, fd fileDevice) (Device, error) {
	d := Device{
		Name:     strings.TrimSpace(fd.Name),
		DriftPPM: fd.DriftPPM,
		DB:       strings.TrimSpace(fd.DB),
	}
	if d.Name == "" {
		d.Name = fmt.Sprintf("card%d", i)
	}
	id, err := proto.ParseDeviceID(fd.ID)
	if err != nil {
		return Device{}, fmt.Errorf("device %s: %w", d.Name, err)
	}
	d.ID = id
	if fd.ClockOffset < 0 || fd.ClockOffset > 0xFFFFFFFF {
		return Device{}, fmt.Errorf("%w: device %s: clock_offset_us out of range", ErrInvalid, d.Name)
	}
	d.ClockOffset = uint32(fd.ClockOffset)
	if s := strings.TrimSpace(fd.StartDelay); s != "" {
		v, err := time.ParseDuration(s)
		if err != nil {
			return Device{}, fmt.Errorf("device %s: parse start_delay: %w", d.Name, err)
		}
		d.StartDelay = v
	}
	return d, nil
}

var timingFields = map[string]func(*transport.Timing) *uint32{
	"debounce":            func(t *transport.Timing) *uint32 { return &t.Debounce },
	"presence_pulse":      func(t *transport.Timing) *uint32 { return &t.PresencePulse },
	"presence_interval":   func(t *transport.Timing) *uint32 { return &t.PresenceInterval },
	"release_wait":        func(t *transport.Timing) *uint32 { return &t.ReleaseWait },
	"line_clear":          func(t *transport.Timing) *uint32 { return &t.LineClear },
	"peer_sync_wait":      func(t *transport.Timing) *uint32 { return &t.PeerSyncWait },
	"pre_sync_pause":      func(t *transport.Timing) *uint32 { return &t.PreSyncPause },
	"sync_pulse":          func(t *transport.Timing) *uint32 { return &t.SyncPulse },
	"sync_wait":           func(t *transport.Timing) *uint32 { return &t.SyncWait },
	"bit_drive":           func(t *transport.Timing) *uint32 { return &t.BitDrive },
	"bit_sample":          func(t *transport.Timing) *uint32 { return &t.BitSample },
	"sample_spacing":      func(t *transport.Timing) *uint32 { return &t.SampleSpacing },
	"bit_recovery":        func(t *transport.Timing) *uint32 { return &t.BitRecovery },
	"start_pulse":         func(t *transport.Timing) *uint32 { return &t.StartPulse },
	"min_start_pulse":     func(t *transport.Timing) *uint32 { return &t.MinStartPulse },
	"turnaround":          func(t *transport.Timing) *uint32 { return &t.Turnaround },
	"command_timeout":     func(t *transport.Timing) *uint32 { return &t.CommandTimeout },
	"slave_idle_timeout":  func(t *transport.Timing) *uint32 { return &t.SlaveIdleTimeout },
	"wake_validation":     func(t *transport.Timing) *uint32 { return &t.WakeValidation },
	"disconnect_debounce": func(t *transport.Timing) *uint32 { return &t.DisconnectDebounce },
	"stability_spacing":   func(t *transport.Timing) *uint32 { return &t.StabilitySpacing },
}

// TimingKeys lists the names accepted in the [timing] table.
func TimingKeys() []string {
	keys := make([]string, 0, len(timingFields))
	for k := range timingFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func applyTiming(t *transport.Timing, overrides map[string]string) error {
	for key, raw := range overrides {
		field, ok := timingFields[key]
		if !ok {
			return fmt.Errorf("%w: unknown timing %q", ErrInvalid, key)
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse timing.%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: timing.%s must be positive", ErrInvalid, key)
		}
		*field(t) = transport.Micros(d)
	}
	return nil
}

// Validate checks what Load cannot express in types.
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalid)
	}
	if c.CommandInterval < time.Millisecond {
		return fmt.Errorf("%w: command_interval below 1ms", ErrInvalid)
	}
	// the card clock counts whole milliseconds and treats zero as unset
	if c.SaveDelay < time.Millisecond {
		return fmt.Errorf("%w: storage_delay below 1ms", ErrInvalid)
	}
	t := c.Timing
	if t.BitSample+2*t.SampleSpacing >= t.BitDrive {
		return fmt.Errorf("%w: bit_sample plus sampling must end inside bit_drive", ErrInvalid)
	}
	if t.MinStartPulse >= t.StartPulse || t.PresencePulse >= t.MinStartPulse {
		return fmt.Errorf("%w: need presence_pulse < min_start_pulse < start_pulse", ErrInvalid)
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("%w: no devices", ErrInvalid)
	}
	names := make(map[string]bool, len(c.Devices))
	ids := make(map[proto.DeviceID]string, len(c.Devices))
	for _, d := range c.Devices {
		if names[d.Name] {
			return fmt.Errorf("%w: duplicate device name %q", ErrInvalid, d.Name)
		}
		names[d.Name] = true
		if !d.ID.Plausible() {
			return fmt.Errorf("%w: device %s: id %s cannot be told from an idle line", ErrInvalid, d.Name, d.ID)
		}
		if other, dup := ids[d.ID]; dup {
			return fmt.Errorf("%w: devices %s and %s share id %s", ErrInvalid, other, d.Name, d.ID)
		}
		ids[d.ID] = d.Name
		if d.DriftPPM < -10000 || d.DriftPPM > 10000 {
			return fmt.Errorf("%w: device %s: drift_ppm out of range", ErrInvalid, d.Name)
		}
		if d.StartDelay < 0 {
			return fmt.Errorf("%w: device %s: negative start_delay", ErrInvalid, d.Name)
		}
	}
	return nil
}
