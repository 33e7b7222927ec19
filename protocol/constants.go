package protocol

// Line protocol constants (platform independent). Every duration is in
// microseconds of the local device clock. All higher layers should depend on
// this file rather than hard-coding timings.
const (
	// Presence detection
	DebounceTime        = 5000  // line held low this long means the peer is holding it
	PresencePulse       = 2000  // short "I am here" pulse while idle
	PresenceInterval    = 50000 // gap between presence pulses
	ReleaseWaitTimeout  = 100000
	LineClearTimeout    = 20000
	PeerSyncWaitTimeout = 50000
	PreSyncPause        = 1000

	// Synchronisation handshake
	SyncPulse = 10000
	SyncWait  = 5000

	// Bit slots. The drive window must be much longer than the worst
	// synchronisation error so both sides are still driving when either samples.
	BitDrive      = 5000
	BitSample     = 2500
	SampleSpacing = 100
	SampleCount   = 3
	BitRecovery   = 2000

	// Role negotiation
	NegotiationBits = 32 // leading bits of the identifier compared on the wire

	// Command phase
	StartPulse         = 5000 // longer than a presence pulse
	MinStartPulse      = 3000 // anything shorter is presence or noise
	Turnaround         = 2000
	CommandTimeout     = 100000
	MaxCommandFailures = 3
	SlaveIdleTimeout   = 2000000
	CommandInterval    = 500000 // minimum gap between master transactions

	// Battery (sleep/wake) mode
	WakeValidation     = 10000
	DisconnectDebounce = 2000
	StabilityReadings  = 5
	StabilitySpacing   = 100
)
