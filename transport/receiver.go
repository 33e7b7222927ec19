package transport

import (
	proto "github.com/ystepanoff/taplink/protocol"
)

// Slave side of the command protocol. The slave never initiates: it watches
// for a start pulse, reads the command and answers. Handlers must be called
// straight after ReceiveCommand returns, the master is already counting.

// HasCommand reports whether the line is low, i.e. a start pulse may be in
// progress.
func (l *EvalLink) HasCommand() bool {
	if !l.isSlave() {
		return false
	}
	return !l.d.ReadLine()
}

// ReceiveCommand measures the low pulse and, if it is long enough to be a
// start pulse, reads the command byte. Shorter pulses are presence pulses or
// noise and yield CommandNone. Only a known command restarts the idle timer.
func (l *EvalLink) ReceiveCommand() proto.Command {
	if !l.isSlave() {
		return proto.CommandNone
	}
	t := l.opts.timing
	low, ok := l.codec.MeasureLow(t.CommandTimeout)
	if !ok || low < t.MinStartPulse {
		return proto.CommandNone
	}
	l.d.DelayMicros(t.Turnaround)
	cmd := proto.Command(l.codec.ReceiveByte())
	if cmd.Known() {
		l.lastCommand = l.d.Micros()
	}
	return cmd
}

// SendResponse answers the command just received.
func (l *EvalLink) SendResponse(r proto.Response) {
	if !l.isSlave() {
		return
	}
	l.d.DelayMicros(l.opts.timing.Turnaround)
	l.codec.SendByte(byte(r))
}

// HandleRequestID answers RequestID with ACK and our identifier.
func (l *EvalLink) HandleRequestID() {
	if !l.isSlave() {
		return
	}
	l.SendResponse(proto.ResponseACK)
	l.codec.SendBytes(l.self[:])
	l.lastCommand = l.d.Micros()
}

// HandleSendID reads the master's identifier that follows SendID and
// acknowledges it. An implausible identifier is refused with NAK.
func (l *EvalLink) HandleSendID() (proto.DeviceID, bool) {
	var id proto.DeviceID
	if !l.isSlave() {
		return id, false
	}
	l.codec.ReceiveBytes(id[:])
	if !id.Plausible() {
		l.SendResponse(proto.ResponseNAK)
		return proto.DeviceID{}, false
	}
	l.SendResponse(proto.ResponseACK)
	l.lastCommand = l.d.Micros()
	l.exchangeDone = true
	return id, true
}
