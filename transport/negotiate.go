package transport

import (
	proto "github.com/ystepanoff/taplink/protocol"
)

// negotiation elects a master by wired-AND arbitration over the identifiers.
//
// Sending a 1 means releasing the line. A side that released but samples low
// knows the peer sent a 0 at a position where it sent a 1, so its identifier
// is the greater one and it is master. The side that sent the 0 sees low
// either way and learns nothing from the bit itself, so after every round the
// two sides run a verdict slot: a decided master holds the line low for the
// whole window and an undecided side that samples low becomes slave.
//
// A decided master keeps releasing through the rest of a round so both sides
// always run the same number of slots and stay aligned.
type negotiation struct {
	codec *Codec
	self  proto.DeviceID
	tie   *proto.TieBreaker
	bits  int

	role  proto.Role
	slots int
	round string
}

func (n *negotiation) decided() bool {
	return n.role != proto.RoleUnknown
}

// exchange sends one arbitration bit.
func (n *negotiation) exchange(bit bool) {
	n.slots++
	if n.decided() {
		n.codec.Slot(true)
		return
	}
	high := n.codec.Slot(bit)
	if bit && !high {
		n.role = proto.RoleMaster
	}
}

// verdict closes a round.
func (n *negotiation) verdict(round string) bool {
	n.slots++
	if n.role == proto.RoleMaster {
		n.codec.Slot(false)
		n.round = round
		return true
	}
	if !n.codec.Slot(true) {
		n.role = proto.RoleSlave
		n.round = round
		return true
	}
	return false
}

func (n *negotiation) run() proto.Role {
	for i := 0; i < n.bits; i++ {
		n.exchange(n.self.Bit(i))
	}
	if n.verdict("prefix") {
		return n.role
	}

	n.exchange(n.tie.Next())
	if n.verdict("tie-break") {
		return n.role
	}

	n.exchange(n.self.OddParity())
	if n.verdict("parity") {
		return n.role
	}

	for i := n.bits; i < proto.IDLen*8; i++ {
		n.exchange(n.self.Bit(i))
	}
	if n.verdict("suffix") {
		return n.role
	}

	// Only identical identifiers get here.
	n.round = "local-parity"
	if n.self.OddParity() {
		n.role = proto.RoleMaster
	} else {
		n.role = proto.RoleSlave
	}
	return n.role
}

// negotiate runs the handshake and the arbitration and moves the link to
// Connected.
func (l *EvalLink) negotiate(peerSyncSeen bool) proto.Role {
	l.state = StateNegotiating
	l.role = proto.RoleUnknown

	missed := l.synchronize(peerSyncSeen)

	tie := proto.NewTieBreakerSeed(l.opts.seed)
	if !l.opts.hasSeed {
		tie = proto.NewTieBreaker(l.d.Micros(), l.self)
	}
	n := &negotiation{
		codec: l.codec,
		self:  l.self,
		tie:   tie,
		bits:  l.opts.timing.NegotiationBits,
	}
	role := n.run()

	now := l.d.Micros()
	l.role = role
	l.state = StateConnected
	l.negotiated = true
	l.failures = 0
	l.lastPresence = now
	l.lastCommand = now
	l.peerReady = false
	l.exchangeDone = false

	l.log.Info().
		Str("role", role.String()).
		Str("round", n.round).
		Int("slots", n.slots).
		Int("sync_missed", missed).
		Bool("debounced", peerSyncSeen).
		Msg("negotiation complete")
	return role
}
