// Package eeprom provides storage media for the record store: a RAM-backed
// emulation of the MCU's data EEPROM and a bbolt file for host-side cards.
package eeprom

import (
	"errors"
	"fmt"
)

// DefaultSize matches the data EEPROM reserved for the record.
const DefaultSize = 2048

// Erased is the value of a never-written cell.
const Erased = 0xFF

var ErrOutOfRange = errors.New("eeprom: access out of range")

func checkRange(size int, off int64, n int) error {
	if off < 0 || off+int64(n) > int64(size) {
		return fmt.Errorf("%w: %d+%d > %d", ErrOutOfRange, off, n, size)
	}
	return nil
}

func erased(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = Erased
	}
	return b
}

// Stats counts the traffic a medium has seen. BytesWritten is the figure the
// store tries to keep small.
type Stats struct {
	BytesWritten int
	Writes       int
	Commits      int
}
