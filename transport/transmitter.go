package transport

import (
	proto "github.com/ystepanoff/taplink/protocol"
)

// Master side of the command protocol. Every transaction starts with a start
// pulse the slave can tell apart from a presence pulse, then the command byte
// and, after a turnaround, the slave's answer.

func (l *EvalLink) startCommand(cmd proto.Command) {
	t := l.opts.timing
	l.codec.Pulse(t.StartPulse)
	l.d.DelayMicros(t.Turnaround)
	l.codec.SendByte(byte(cmd))
}

func (l *EvalLink) readResponse() proto.Response {
	l.d.DelayMicros(l.opts.timing.Turnaround)
	return proto.Response(l.codec.ReceiveByte())
}

// SendCommand runs one plain transaction. It returns ResponseNone without
// touching the line unless this side is a connected master; an answer that is
// neither ACK nor NAK counts as a failure.
func (l *EvalLink) SendCommand(cmd proto.Command) proto.Response {
	if !l.isMaster() {
		return proto.ResponseNone
	}
	l.startCommand(cmd)
	resp := l.readResponse()
	if !resp.Valid() {
		l.fail(cmd, "invalid response")
		return proto.ResponseNone
	}
	l.ok()
	if cmd == proto.CommandCheckReady {
		l.peerReady = resp == proto.ResponseACK
	}
	return resp
}

// RequestPeerID asks the slave for its identifier.
func (l *EvalLink) RequestPeerID() (proto.DeviceID, bool) {
	var id proto.DeviceID
	if !l.isMaster() {
		return id, false
	}
	l.startCommand(proto.CommandRequestID)
	if resp := l.readResponse(); resp != proto.ResponseACK {
		l.fail(proto.CommandRequestID, "no ack")
		return id, false
	}
	l.codec.ReceiveBytes(id[:])
	if !id.Plausible() {
		l.fail(proto.CommandRequestID, "implausible id")
		return proto.DeviceID{}, false
	}
	l.ok()
	return id, true
}

// SendSelfID hands our identifier to the slave. A positive answer completes
// the exchange on this side.
func (l *EvalLink) SendSelfID() bool {
	if !l.isMaster() {
		return false
	}
	l.startCommand(proto.CommandSendID)
	l.codec.SendBytes(l.self[:])
	if resp := l.readResponse(); resp != proto.ResponseACK {
		l.fail(proto.CommandSendID, "no ack")
		return false
	}
	l.ok()
	l.exchangeDone = true
	return true
}
