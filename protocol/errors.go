package protocol

import "errors"

var (
	ErrInvalidID     = errors.New("protocol: invalid device id")
	ErrKeyGeneration = errors.New("protocol: secret key generation failed")
)
