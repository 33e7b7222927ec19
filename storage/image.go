package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	proto "github.com/ystepanoff/taplink/protocol"
)

// Image layout, version 1. All integers are little-endian.
//
//	header  (12 bytes)
//	  0  magic       u32   0x424F4B41
//	  4  version     u16
//	  6  length      u16   payload size
//	  8  crc32       u32   IEEE, over the whole payload
//	payload (884 bytes)
//	 12  selfId      [12]
//	 24  tapCount    u32
//	 28  linkCount   u16
//	 30  keyVersion  u8    0 = no key
//	 31  reserved8   u8
//	 32  links       [64][12]
//	800  secretKey   [32]
//	832  reserved    [64]
const (
	Magic   uint32 = 0x424F4B41
	Version uint16 = 1

	MaxLinks  = 64
	KeyLen    = proto.SecretKeyLen
	NonceMax  = 32
	reserveSz = 64

	HeaderSize  = 12
	PayloadSize = proto.IDLen + 4 + 2 + 1 + 1 + MaxLinks*proto.IDLen + KeyLen + reserveSz
	ImageSize   = HeaderSize + PayloadSize
)

// Offsets within the image.
const (
	offMagic      = 0
	offVersion    = 4
	offLength     = 6
	offCRC        = 8
	offSelfID     = HeaderSize
	offTapCount   = offSelfID + proto.IDLen
	offLinkCount  = offTapCount + 4
	offKeyVersion = offLinkCount + 2
	offReserved8  = offKeyVersion + 1
	offLinks      = offReserved8 + 1
	offSecretKey  = offLinks + MaxLinks*proto.IDLen
	offReserved   = offSecretKey + KeyLen
)

// Record is the persistent state of a card.
type Record struct {
	SelfID     proto.DeviceID
	TapCount   uint32
	LinkCount  uint16
	KeyVersion uint8
	Reserved8  uint8
	Links      [MaxLinks]proto.DeviceID
	SecretKey  [KeyLen]byte
	Reserved   [reserveSz]byte
}

// StoredLinks is the number of link slots in use.
func (r *Record) StoredLinks() int {
	if int(r.LinkCount) > MaxLinks {
		return MaxLinks
	}
	return int(r.LinkCount)
}

// Header is the fixed image header.
type Header struct {
	Magic   uint32
	Version uint16
	Length  uint16
	CRC     uint32
}

// EncodeImage serialises r with a freshly computed header.
func EncodeImage(r *Record) []byte {
	buf := make([]byte, ImageSize)
	encodePayload(r, buf)
	h := Header{
		Magic:   Magic,
		Version: Version,
		Length:  PayloadSize,
		CRC:     Checksum(buf[HeaderSize:]),
	}
	encodeHeader(h, buf)
	return buf
}

// DecodeImage validates and parses an image. Any mismatch rejects the whole
// image; nothing is partially adopted.
func DecodeImage(b []byte) (Record, Header, error) {
	var r Record
	if len(b) < ImageSize {
		return r, Header{}, fmt.Errorf("%w: %d of %d bytes", ErrTruncated, len(b), ImageSize)
	}
	h := decodeHeader(b)
	if h.Magic != Magic {
		return r, h, fmt.Errorf("%w: %#08x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return r, h, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	if h.Length != PayloadSize {
		return r, h, fmt.Errorf("%w: %d", ErrBadLength, h.Length)
	}
	payload := b[HeaderSize:ImageSize]
	if crc := Checksum(payload); crc != h.CRC {
		return r, h, fmt.Errorf("%w: stored %#08x computed %#08x", ErrBadCRC, h.CRC, crc)
	}
	decodePayload(b, &r)
	return r, h, nil
}

// Checksum is the payload CRC: standard CRC-32 (IEEE).
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// payloadCRC encodes just the payload of r and returns its checksum.
func payloadCRC(r *Record) uint32 {
	buf := make([]byte, ImageSize)
	encodePayload(r, buf)
	return Checksum(buf[HeaderSize:])
}

func encodeHeader(h Header, b []byte) {
	binary.LittleEndian.PutUint32(b[offMagic:], h.Magic)
	binary.LittleEndian.PutUint16(b[offVersion:], h.Version)
	binary.LittleEndian.PutUint16(b[offLength:], h.Length)
	binary.LittleEndian.PutUint32(b[offCRC:], h.CRC)
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:   binary.LittleEndian.Uint32(b[offMagic:]),
		Version: binary.LittleEndian.Uint16(b[offVersion:]),
		Length:  binary.LittleEndian.Uint16(b[offLength:]),
		CRC:     binary.LittleEndian.Uint32(b[offCRC:]),
	}
}

// encodePayload writes r at its image offsets in b (len(b) >= ImageSize).
func encodePayload(r *Record, b []byte) {
	copy(b[offSelfID:], r.SelfID[:])
	binary.LittleEndian.PutUint32(b[offTapCount:], r.TapCount)
	binary.LittleEndian.PutUint16(b[offLinkCount:], r.LinkCount)
	b[offKeyVersion] = r.KeyVersion
	b[offReserved8] = r.Reserved8
	for i := range r.Links {
		copy(b[offLinks+i*proto.IDLen:], r.Links[i][:])
	}
	copy(b[offSecretKey:], r.SecretKey[:])
	copy(b[offReserved:], r.Reserved[:])
}

func decodePayload(b []byte, r *Record) {
	copy(r.SelfID[:], b[offSelfID:])
	r.TapCount = binary.LittleEndian.Uint32(b[offTapCount:])
	r.LinkCount = binary.LittleEndian.Uint16(b[offLinkCount:])
	r.KeyVersion = b[offKeyVersion]
	r.Reserved8 = b[offReserved8]
	for i := range r.Links {
		copy(r.Links[i][:], b[offLinks+i*proto.IDLen:])
	}
	copy(r.SecretKey[:], b[offSecretKey:])
	copy(r.Reserved[:], b[offReserved:ImageSize])
}
