package storage

import "errors"

var (
	ErrTruncated      = errors.New("storage: image truncated")
	ErrBadMagic       = errors.New("storage: bad magic")
	ErrBadVersion     = errors.New("storage: unsupported version")
	ErrBadLength      = errors.New("storage: payload length mismatch")
	ErrBadCRC         = errors.New("storage: crc mismatch")
	ErrMediumTooSmall = errors.New("storage: medium too small for image")
	ErrShortWrite     = errors.New("storage: short write")
	ErrNoKey          = errors.New("storage: no secret key provisioned")
	ErrEmptyNonce     = errors.New("storage: empty nonce")
	ErrNonceTooLong   = errors.New("storage: nonce too long")
)
