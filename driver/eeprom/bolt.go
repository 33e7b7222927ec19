//go:build !tinygo && !baremetal

package eeprom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	BoltBucket = []byte("eeprom")
	imageKey   = []byte("image")
	commitsKey = []byte("commits")

	ErrBoltNoBucket = errors.New("eeprom: no bucket in bolt")
)

// Bolt keeps a card's EEPROM contents in a bbolt file. Writes go to a RAM
// copy; Commit stores the whole copy in one transaction, so a crash leaves
// either the previous or the new contents, never a mix.
type Bolt struct {
	mu    sync.Mutex
	db    *bolt.DB
	data  []byte
	dirty bool
	stats Stats
}

// OpenBolt opens (or creates) the file at path holding a medium of size
// bytes.
func OpenBolt(path string, size int) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("eeprom: open %s: %w", path, err)
	}
	m := &Bolt{db: db, data: erased(size)}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(BoltBucket)
		if err != nil {
			return err
		}
		copy(m.data, bucket.Get(imageKey))
		if v := bucket.Get(commitsKey); len(v) == 8 {
			m.stats.Commits = int(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("eeprom: init %s: %w", path, err)
	}
	return m, nil
}

func (m *Bolt) Size() int { return len(m.data) }

func (m *Bolt) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Bolt) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	n := copy(m.data[off:], p)
	m.dirty = true
	m.stats.BytesWritten += n
	m.stats.Writes++
	return n, nil
}

func (m *Bolt) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil
	}
	commits := m.stats.Commits + 1
	err := m.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BoltBucket)
		if bucket == nil {
			return ErrBoltNoBucket
		}
		if err := bucket.Put(imageKey, append([]byte(nil), m.data...)); err != nil {
			return err
		}
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(commits))
		return bucket.Put(commitsKey, v[:])
	})
	if err != nil {
		return fmt.Errorf("eeprom: commit: %w", err)
	}
	m.dirty = false
	m.stats.Commits = commits
	return nil
}

// Stats reports traffic since open; Commits is the lifetime total.
func (m *Bolt) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Bolt) Close() error {
	return m.db.Close()
}
