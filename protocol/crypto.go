package protocol

import (
	crand "crypto/rand"
	"fmt"
)

// SecretKeyLen is the size of the provisioned HMAC key.
const SecretKeyLen = 32

// GenerateSecretKey returns a fresh random provisioning key.
func GenerateSecretKey() ([SecretKeyLen]byte, error) {
	var key [SecretKeyLen]byte
	if _, err := crand.Read(key[:]); err != nil {
		return key, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return key, nil
}

// TieBreaker is the linear congruential generator used for the random
// tie-break bit. It only has to differ between two cards that happen to share
// the negotiated identifier prefix, so a tiny LCG seeded from the clock and
// the identifier is enough and costs nothing on the MCU.
type TieBreaker struct {
	seed uint32
}

// NewTieBreaker seeds the generator from the local timer and the identifier.
func NewTieBreaker(now uint32, id DeviceID) *TieBreaker {
	seed := now
	for i, b := range id {
		seed ^= uint32(b) << (uint(i%4) * 8)
	}
	return &TieBreaker{seed: seed}
}

// NewTieBreakerSeed starts the generator from an explicit seed.
func NewTieBreakerSeed(seed uint32) *TieBreaker {
	return &TieBreaker{seed: seed}
}

// Next advances the generator and returns its tie-break bit.
func (t *TieBreaker) Next() bool {
	t.seed = t.seed*1103515245 + 12345
	return (t.seed>>16)&1 == 1
}
