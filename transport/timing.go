package transport

import (
	"time"

	proto "github.com/ystepanoff/taplink/protocol"
)

// Timing holds every duration the link uses, in microseconds. The defaults
// are the protocol constants; tests and the simulator shrink or stretch
// individual values.
type Timing struct {
	Debounce           uint32
	PresencePulse      uint32
	PresenceInterval   uint32
	ReleaseWait        uint32
	LineClear          uint32
	PeerSyncWait       uint32
	PreSyncPause       uint32
	SyncPulse          uint32
	SyncWait           uint32
	BitDrive           uint32
	BitSample          uint32
	SampleSpacing      uint32
	BitRecovery        uint32
	StartPulse         uint32
	MinStartPulse      uint32
	Turnaround         uint32
	CommandTimeout     uint32
	SlaveIdleTimeout   uint32
	WakeValidation     uint32
	DisconnectDebounce uint32
	StabilitySpacing   uint32

	NegotiationBits int
	MaxFailures     int
}

// DefaultTiming returns the timings every card ships with.
func DefaultTiming() Timing {
	return Timing{
		Debounce:           proto.DebounceTime,
		PresencePulse:      proto.PresencePulse,
		PresenceInterval:   proto.PresenceInterval,
		ReleaseWait:        proto.ReleaseWaitTimeout,
		LineClear:          proto.LineClearTimeout,
		PeerSyncWait:       proto.PeerSyncWaitTimeout,
		PreSyncPause:       proto.PreSyncPause,
		SyncPulse:          proto.SyncPulse,
		SyncWait:           proto.SyncWait,
		BitDrive:           proto.BitDrive,
		BitSample:          proto.BitSample,
		SampleSpacing:      proto.SampleSpacing,
		BitRecovery:        proto.BitRecovery,
		StartPulse:         proto.StartPulse,
		MinStartPulse:      proto.MinStartPulse,
		Turnaround:         proto.Turnaround,
		CommandTimeout:     proto.CommandTimeout,
		SlaveIdleTimeout:   proto.SlaveIdleTimeout,
		WakeValidation:     proto.WakeValidation,
		DisconnectDebounce: proto.DisconnectDebounce,
		StabilitySpacing:   proto.StabilitySpacing,
		NegotiationBits:    proto.NegotiationBits,
		MaxFailures:        proto.MaxCommandFailures,
	}
}

// sampleTail is how long a bit keeps its level after the samples, so a full
// bit occupies exactly BitDrive.
func (t Timing) sampleTail() uint32 {
	return t.BitDrive - t.BitSample - (proto.SampleCount-1)*t.SampleSpacing
}

// Micros converts a duration to whole microseconds for config overrides.
func Micros(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}
