package protocol

// Command is the byte the master sends after a start pulse.
//
// Transaction layout on the wire:
//
//	+-------------+------------+---------+------------+----------+------------------+
//	| start pulse | turnaround | command | turnaround | response | payload (0..12)  |
//	+-------------+------------+---------+------------+----------+------------------+
//	|    5 ms     |    2 ms    | 8 bits  |    2 ms    |  8 bits  | 8 bits per byte  |
//	+-------------+------------+---------+------------+----------+------------------+
//
// SendID is the exception: the master's 12 identifier bytes follow the
// command byte directly and the slave answers with a single ACK/NAK.
type Command byte

const (
	CommandNone       Command = 0x00
	CommandCheckReady Command = 0x01 // response: ACK/NAK
	CommandRequestID  Command = 0x02 // response: ACK + 12 byte identifier
	CommandSendID     Command = 0x03 // payload: 12 byte identifier, response: ACK/NAK
)

// Known reports whether c is a command a slave can serve.
func (c Command) Known() bool {
	return c >= CommandCheckReady && c <= CommandSendID
}

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandCheckReady:
		return "check-ready"
	case CommandRequestID:
		return "request-id"
	case CommandSendID:
		return "send-id"
	default:
		return "unknown"
	}
}

// Response is the byte the slave answers with. A timed out or garbled reply
// is reported as ResponseNone, which is a failure and not a NAK.
type Response byte

const (
	ResponseNone Response = 0x00
	ResponseACK  Response = 0x06
	ResponseNAK  Response = 0x15
)

// Valid reports whether r is one of the two answers a slave can give.
func (r Response) Valid() bool {
	return r == ResponseACK || r == ResponseNAK
}

func (r Response) String() string {
	switch r {
	case ResponseACK:
		return "ack"
	case ResponseNAK:
		return "nak"
	default:
		return "none"
	}
}
