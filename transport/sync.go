package transport

// synchronize runs the two-pulse handshake that lines both clocks up before
// the first negotiation slot. Both sides leave it on the release edge of the
// second sync pulse plus SyncWait; the wired-AND makes that edge common to
// both as long as the second pulses overlap.
//
// peerSyncSeen is set when this side entered negotiation because the line
// stayed low past the debounce window. That low was the peer's first sync
// pulse, so waiting for it again would put us a whole pulse behind.
//
// No wait blocks forever. A timed out wait just moves on to the next step;
// the number of such misses is returned for logging.
func (l *EvalLink) synchronize(peerSyncSeen bool) (missed int) {
	t := l.opts.timing
	wait := func(high bool, timeout uint32) {
		if !l.codec.WaitLevel(high, timeout) {
			missed++
		}
	}

	l.d.DriveLow(false)
	wait(true, t.ReleaseWait)
	l.d.DelayMicros(t.PreSyncPause)

	l.codec.Pulse(t.SyncPulse)
	wait(true, t.LineClear)

	if !peerSyncSeen {
		if l.codec.WaitLevel(false, t.PeerSyncWait) {
			wait(true, t.LineClear)
		} else {
			missed++
		}
	}

	l.d.DelayMicros(t.SyncWait)
	l.codec.Pulse(t.SyncPulse)
	wait(true, t.LineClear)
	l.d.DelayMicros(t.SyncWait)
	return missed
}
