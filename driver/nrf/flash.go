//go:build tinygo || baremetal

package nrf

import (
	"errors"
	"fmt"
	"machine"
)

var ErrFlashRange = errors.New("nrf: flash access out of range")

// Flash emulates a small EEPROM at offset 0 of TinyGo's flash data area
// (machine.Flash, the pages after the program image). Reads and writes hit a
// RAM copy; Commit erases the pages covering the written range and programs
// them back.
//
// Flash bits only return to 1 through a page erase, so on this board a partial
// save costs the same page erase and wear as a full one.
type Flash struct {
	data   []byte
	lo, hi int64 // written range since the last Commit; empty when lo >= hi
}

// NewFlash loads size bytes from the start of the data area.
func NewFlash(size int) (*Flash, error) {
	if int64(size) > machine.Flash.Size() {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrFlashRange, size, machine.Flash.Size())
	}
	f := &Flash{data: make([]byte, size)}
	if _, err := machine.Flash.ReadAt(f.data, 0); err != nil {
		return nil, fmt.Errorf("nrf: read flash: %w", err)
	}
	return f, nil
}

func (f *Flash) Size() int { return len(f.data) }

func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, ErrFlashRange
	}
	return copy(p, f.data[off:]), nil
}

func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, ErrFlashRange
	}
	end := off + int64(len(p))
	if f.lo >= f.hi {
		f.lo, f.hi = off, end
	} else {
		f.lo, f.hi = min(f.lo, off), max(f.hi, end)
	}
	return copy(f.data[off:], p), nil
}

func (f *Flash) Commit() error {
	if f.lo >= f.hi {
		return nil
	}
	page := machine.Flash.EraseBlockSize()
	first := f.lo / page
	last := (f.hi - 1) / page
	if err := machine.Flash.EraseBlocks(first, last-first+1); err != nil {
		return fmt.Errorf("nrf: erase flash: %w", err)
	}
	// the erased pages may extend past the record; only the record is ours
	start := first * page
	end := min((last+1)*page, int64(len(f.data)))
	if _, err := machine.Flash.WriteAt(f.data[start:end], start); err != nil {
		return fmt.Errorf("nrf: program flash: %w", err)
	}
	f.lo, f.hi = 0, 0
	return nil
}
