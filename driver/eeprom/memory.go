package eeprom

import "sync"

// Memory is an in-RAM medium. Writes are visible immediately; Commit only
// counts.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	stats Stats

	// FailWrites makes every WriteAt fail, to exercise error paths.
	FailWrites error
}

func NewMemory(size int) *Memory {
	return &Memory{data: erased(size)}
}

func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	n := copy(m.data[off:], p)
	m.stats.BytesWritten += n
	m.stats.Writes++
	return n, nil
}

func (m *Memory) Commit() error {
	m.mu.Lock()
	m.stats.Commits++
	m.mu.Unlock()
	return nil
}

// Bytes returns a copy of the contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Corrupt flips one bit, as a worn cell would.
func (m *Memory) Corrupt(off int, bit uint) {
	m.mu.Lock()
	m.data[off] ^= 1 << (bit % 8)
	m.mu.Unlock()
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats zeroes the counters.
func (m *Memory) ResetStats() {
	m.mu.Lock()
	m.stats = Stats{}
	m.mu.Unlock()
}
