package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IDLen is the size of a device unique identifier (96 bits).
const IDLen = 12

// DeviceID is the factory-programmed unique identifier of a card. It is read
// once from hardware and never changes; the leading bits decide the role
// during negotiation and the whole value is what gets stored as a link.
type DeviceID [IDLen]byte

// ParseDeviceID decodes a 24 character hex string.
func ParseDeviceID(s string) (DeviceID, error) {
	var id DeviceID
	s = strings.TrimSpace(s)
	if len(s) != IDLen*2 {
		return id, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidID, IDLen*2, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return id, nil
}

// String returns the upper-case hex form used by the shell.
func (id DeviceID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// Bit returns bit i of the identifier counted MSB-first from byte 0.
func (id DeviceID) Bit(i int) bool {
	return id[i/8]>>(7-uint(i%8))&1 == 1
}

// IsZero reports whether the identifier was never initialised.
func (id DeviceID) IsZero() bool {
	return id == DeviceID{}
}

// ByteSum is the plain sum of the identifier bytes, used by the parity rule.
func (id DeviceID) ByteSum() uint32 {
	var sum uint32
	for _, b := range id {
		sum += uint32(b)
	}
	return sum
}

// OddParity reports whether ByteSum is odd. Odd parity claims the master role
// when every other comparison has tied.
func (id DeviceID) OddParity() bool {
	return id.ByteSum()&1 == 1
}

// IdentitySource is the one-shot hardware UID reader.
type IdentitySource interface {
	DeviceID() DeviceID
}

// StaticID is an IdentitySource that always returns the same value. Host
// builds and tests use it in place of the MCU's UID registers.
type StaticID DeviceID

func (s StaticID) DeviceID() DeviceID { return DeviceID(s) }

// Role is the outcome of negotiation.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleSlave
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	default:
		return "unknown"
	}
}

// Plausible reports whether id could have come from a peer. A line nobody
// drives reads as all ones and a line held low as all zeros.
func (id DeviceID) Plausible() bool {
	if id.IsZero() {
		return false
	}
	for _, b := range id {
		if b != 0xFF {
			return true
		}
	}
	return false
}
