package storage

import (
	"encoding/binary"
	"fmt"

	proto "github.com/ystepanoff/taplink/protocol"
)

// span is one named run of image bytes a partial save writes. Each
// constructor below knows exactly which field it covers and where that field
// lives, so a partial save is a list of spans ending with the CRC.
type span struct {
	name string
	off  int64
	data []byte
}

func (s span) String() string {
	return fmt.Sprintf("%s@%d+%d", s.name, s.off, len(s.data))
}

func tapCountField(r *Record) span {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, r.TapCount)
	return span{name: "tap_count", off: offTapCount, data: b}
}

func linkCountField(r *Record) span {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, r.LinkCount)
	return span{name: "link_count", off: offLinkCount, data: b}
}

func linkField(r *Record, i int) span {
	b := make([]byte, proto.IDLen)
	copy(b, r.Links[i][:])
	return span{name: fmt.Sprintf("link[%d]", i), off: int64(offLinks + i*proto.IDLen), data: b}
}

func crcField(crc uint32) span {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, crc)
	return span{name: "crc32", off: offCRC, data: b}
}
