package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/taplink/driver/eeprom"
)

func TestSignState(t *testing.T) {
	s := newStore(t, eeprom.NewMemory(eeprom.DefaultSize), &fakeClock{})
	var key [KeyLen]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	nonce := []byte{0x01, 0x02, 0x03, 0x04}

	_, err := s.SignState(nonce)
	require.ErrorIs(t, err, ErrNoKey)

	require.NoError(t, s.SetSecretKey(1, key))
	s.IncrementTapCount()
	s.AddLink(peer(7))
	s.AddLink(peer(8))

	sig, err := s.SignState(nonce)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, key[:])
	self := s.SelfID()
	mac.Write(self[:])
	mac.Write(nonce)
	mac.Write([]byte{1, 0, 0, 0, 2, 0})
	p7, p8 := peer(7), peer(8)
	mac.Write(p7[:])
	mac.Write(p8[:])
	require.Equal(t, mac.Sum(nil), sig[:])

	other, err := s.SignState([]byte{0x01, 0x02, 0x03, 0x05})
	require.NoError(t, err)
	require.NotEqual(t, sig, other)
}

func TestSignStateRejectsBadNonce(t *testing.T) {
	s := newStore(t, eeprom.NewMemory(eeprom.DefaultSize), &fakeClock{})
	var key [KeyLen]byte
	key[0] = 1
	require.NoError(t, s.SetSecretKey(1, key))

	_, err := s.SignState(nil)
	require.ErrorIs(t, err, ErrEmptyNonce)

	_, err = s.SignState(make([]byte, NonceMax+1))
	require.ErrorIs(t, err, ErrNonceTooLong)

	_, err = s.SignState(make([]byte, NonceMax))
	require.NoError(t, err)
}
