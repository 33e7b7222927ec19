package transport

// LineDriver is the interface that wraps the single open-drain line and the
// microsecond timer of one device.
//
// The line is wired-AND: it reads high only when every party has released it.
// Micros wraps around; compute durations with Elapsed.
type LineDriver interface {
	ReadLine() bool
	DriveLow(enable bool)
	Micros() uint32
	DelayMicros(us uint32)
}

// Elapsed returns now-start on the wrapping 32 bit microsecond timer.
func Elapsed(now, start uint32) uint32 {
	return now - start
}
