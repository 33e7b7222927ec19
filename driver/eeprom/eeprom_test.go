package eeprom_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/storage"
)

var (
	_ storage.Medium = (*eeprom.Memory)(nil)
	_ storage.Medium = (*eeprom.Bolt)(nil)
)

func TestMemory(t *testing.T) {
	m := eeprom.NewMemory(64)
	require.Equal(t, 64, m.Size())

	buf := make([]byte, 4)
	_, err := m.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)

	n, err := m.WriteAt([]byte{1, 2, 3}, 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, m.Commit())

	_, err = m.ReadAt(buf, 9)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 1, 2, 3}, buf)
	require.Equal(t, eeprom.Stats{BytesWritten: 3, Writes: 1, Commits: 1}, m.Stats())

	_, err = m.WriteAt(buf, 62)
	require.ErrorIs(t, err, eeprom.ErrOutOfRange)
	_, err = m.ReadAt(buf, -1)
	require.ErrorIs(t, err, eeprom.ErrOutOfRange)

	m.Corrupt(10, 0)
	require.Equal(t, byte(0), m.Bytes()[10])

	boom := errors.New("worn out")
	m.FailWrites = boom
	_, err = m.WriteAt(buf, 0)
	require.ErrorIs(t, err, boom)
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.db")

	m, err := eeprom.OpenBolt(path, 128)
	require.NoError(t, err)
	_, err = m.WriteAt([]byte("tap"), 5)
	require.NoError(t, err)
	require.NoError(t, m.Commit())
	// nothing new to write
	require.NoError(t, m.Commit())
	_, err = m.WriteAt([]byte("link"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// uncommitted writes are lost, committed ones survive
	m, err = eeprom.OpenBolt(path, 128)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 4)
	_, err = m.ReadAt(buf, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 't', 'a', 'p'}, buf)
	_, err = m.ReadAt(buf, 64)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
	require.Equal(t, 1, m.Stats().Commits)
}
