package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// SignatureLen is the size of a state signature.
const SignatureLen = sha256.Size

// SignState authenticates the recorded state for a verifier holding the same
// key. The MAC is HMAC-SHA256 over
//
//	selfId(12) | nonce(1..32) | tapCount(LE32) | linkCount(LE16) | links
//
// where linkCount and links cover only the slots in use.
func (s *Store) SignState(nonce []byte) ([SignatureLen]byte, error) {
	var sig [SignatureLen]byte
	if !s.HasSecretKey() {
		return sig, ErrNoKey
	}
	if len(nonce) == 0 {
		return sig, ErrEmptyNonce
	}
	if len(nonce) > NonceMax {
		return sig, fmt.Errorf("%w: %d > %d bytes", ErrNonceTooLong, len(nonce), NonceMax)
	}

	mac := hmac.New(sha256.New, s.rec.SecretKey[:])
	mac.Write(s.rec.SelfID[:])
	mac.Write(nonce)
	var n [6]byte
	binary.LittleEndian.PutUint32(n[0:], s.rec.TapCount)
	links := s.rec.StoredLinks()
	binary.LittleEndian.PutUint16(n[4:], uint16(links))
	mac.Write(n[:])
	for i := 0; i < links; i++ {
		mac.Write(s.rec.Links[i][:])
	}
	copy(sig[:], mac.Sum(nil))
	return sig, nil
}
