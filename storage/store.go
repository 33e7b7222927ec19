// Package storage keeps the card's persistent record on a small, wear-limited
// medium. Mutations happen in memory; writes are batched behind a long delay,
// and the two latency-sensitive events (a tap and a new link) have partial
// save paths that touch only their own fields plus the CRC.
package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
)

// Medium is byte-addressable non-volatile storage without wear levelling.
// Commit flushes buffered writes and may be a no-op.
type Medium interface {
	Size() int
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Commit() error
}

// Clock is the millisecond time base of the store.
type Clock interface {
	Millis() uint32
	SleepMillis(ms uint32)
}

const (
	DefaultSaveDelay  = 30000 // ms
	DefaultChunkSize  = 32
	DefaultChunkPause = 1 // ms
)

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithSaveDelay sets how long a dirty record waits before Loop flushes it.
func WithSaveDelay(ms uint32) Option {
	return func(s *Store) { s.saveDelay = ms }
}

// WithChunking sets the full-write chunk size and the pause after each chunk.
func WithChunking(size int, pauseMs uint32) Option {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
		s.chunkPause = pauseMs
	}
}

// pending tracks which fields differ from what is on the medium.
type pending struct {
	tap       bool
	linkCount bool
	links     []int
	other     bool
}

func (p *pending) any() bool {
	return p.tap || p.linkCount || len(p.links) > 0 || p.other
}

func (p *pending) clear() {
	*p = pending{}
}

// Store owns the in-memory record. It is not safe for concurrent use; the
// application loop is its only caller.
type Store struct {
	m     Medium
	ids   proto.IdentitySource
	clock Clock
	log   zerolog.Logger

	saveDelay  uint32
	chunkSize  int
	chunkPause uint32

	rec        Record
	pend       pending
	dirtySince uint32
}

func New(m Medium, ids proto.IdentitySource, clock Clock, opts ...Option) *Store {
	s := &Store{
		m:          m,
		ids:        ids,
		clock:      clock,
		log:        zerolog.Nop(),
		saveDelay:  DefaultSaveDelay,
		chunkSize:  DefaultChunkSize,
		chunkPause: DefaultChunkPause,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin loads the record, or creates and writes a fresh one when the medium
// holds no valid image. Only medium failures are returned.
func (s *Store) Begin() error {
	if s.m.Size() < ImageSize {
		return fmt.Errorf("%w: %d < %d", ErrMediumTooSmall, s.m.Size(), ImageSize)
	}
	buf := make([]byte, ImageSize)
	if _, err := s.m.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("storage: read image: %w", err)
	}

	rec, _, err := DecodeImage(buf)
	if err != nil {
		s.log.Warn().Err(err).Msg("no valid image, initialising")
		s.rec = Record{SelfID: s.ids.DeviceID()}
		if err := s.writeImage(); err != nil {
			return err
		}
	} else {
		s.rec = rec
		if s.rec.SelfID.IsZero() {
			s.log.Info().Msg("stored self id is empty, filling from hardware")
			s.rec.SelfID = s.ids.DeviceID()
			if err := s.writeImage(); err != nil {
				return err
			}
		}
	}

	s.pend.clear()
	s.log.Info().
		Str("self", s.rec.SelfID.String()).
		Uint32("taps", s.rec.TapCount).
		Uint16("links", s.rec.LinkCount).
		Msg("storage ready")
	return nil
}

// MarkDirty schedules a full save.
func (s *Store) MarkDirty() {
	s.touch()
	s.pend.other = true
}

func (s *Store) touch() {
	if !s.pend.any() {
		s.dirtySince = s.clock.Millis()
	}
}

// Dirty reports whether memory differs from the medium.
func (s *Store) Dirty() bool {
	return s.pend.any()
}

// Loop flushes the record once it has been dirty for the save delay.
func (s *Store) Loop() {
	if !s.pend.any() {
		return
	}
	if s.clock.Millis()-s.dirtySince < s.saveDelay {
		return
	}
	if err := s.SaveNow(); err != nil {
		s.log.Error().Err(err).Msg("delayed save failed")
	}
}

// SaveNow writes the whole image.
func (s *Store) SaveNow() error {
	if err := s.writeImage(); err != nil {
		return err
	}
	s.saved()
	return nil
}

func (s *Store) saved() {
	s.pend.clear()
}

// writeImage writes header and payload in chunks, pausing between them so
// the caller's loop is never blocked for the whole image at once.
func (s *Store) writeImage() error {
	buf := EncodeImage(&s.rec)
	for off := 0; off < len(buf); off += s.chunkSize {
		end := off + s.chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := s.write(buf[off:end], int64(off)); err != nil {
			return err
		}
		if end-off == s.chunkSize && s.chunkPause > 0 {
			s.clock.SleepMillis(s.chunkPause)
		}
	}
	if err := s.m.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.log.Debug().Int("bytes", len(buf)).Msg("image written")
	return nil
}

func (s *Store) write(p []byte, off int64) error {
	n, err := s.m.WriteAt(p, off)
	if err != nil {
		return fmt.Errorf("storage: write at %d: %w", off, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: %d of %d bytes at %d", ErrShortWrite, n, len(p), off)
	}
	return nil
}

// writeSpans writes the given fields followed by the CRC of the complete
// in-memory payload.
func (s *Store) writeSpans(spans []span) error {
	spans = append(spans, crcField(payloadCRC(&s.rec)))
	for _, sp := range spans {
		if err := s.write(sp.data, sp.off); err != nil {
			return err
		}
	}
	if err := s.m.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	if e := s.log.Debug(); e.Enabled() {
		names := make([]string, len(spans))
		for i, sp := range spans {
			names[i] = sp.String()
		}
		e.Strs("fields", names).Msg("partial save")
	}
	return nil
}

// SaveTapCountOnly writes the tap counter and CRC. If anything besides the
// tap counter is unsaved it falls back to a full save, since a CRC over
// fields that never reached the medium would invalidate the image.
func (s *Store) SaveTapCountOnly() error {
	p := s.pend
	if p.other || p.linkCount || len(p.links) > 0 {
		return s.SaveNow()
	}
	if err := s.writeSpans([]span{tapCountField(&s.rec)}); err != nil {
		return err
	}
	s.saved()
	return nil
}

// SaveLinkOnly writes the changed link slot(s), the link counter and the
// CRC, with the same fallback as SaveTapCountOnly.
func (s *Store) SaveLinkOnly() error {
	p := s.pend
	if p.other || p.tap {
		return s.SaveNow()
	}
	var spans []span
	if p.linkCount {
		spans = append(spans, linkCountField(&s.rec))
	}
	for _, i := range p.links {
		spans = append(spans, linkField(&s.rec, i))
	}
	if err := s.writeSpans(spans); err != nil {
		return err
	}
	s.saved()
	return nil
}

// HasLink scans the slots in use for id.
func (s *Store) HasLink(id proto.DeviceID) bool {
	n := s.rec.StoredLinks()
	for i := 0; i < n; i++ {
		if s.rec.Links[i] == id {
			return true
		}
	}
	return false
}

// AddLink records a new peer. It returns false for a peer already stored.
// Past MaxLinks the oldest slot is overwritten while the counter keeps
// counting every distinct peer.
func (s *Store) AddLink(id proto.DeviceID) bool {
	if s.HasLink(id) {
		return false
	}
	idx := int(s.rec.LinkCount) % MaxLinks
	s.touch()
	s.rec.Links[idx] = id
	if s.rec.LinkCount < ^uint16(0) {
		s.rec.LinkCount++
		s.pend.linkCount = true
	}
	s.pend.links = appendUnique(s.pend.links, idx)
	return true
}

func appendUnique(xs []int, x int) []int {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}

// IncrementTapCount counts one completed negotiation.
func (s *Store) IncrementTapCount() {
	s.touch()
	s.rec.TapCount++
	s.pend.tap = true
}

// ClearAll zeroes counters, links and key but keeps the self identifier, and
// saves immediately.
func (s *Store) ClearAll() error {
	self := s.rec.SelfID
	s.rec = Record{SelfID: self}
	s.MarkDirty()
	return s.SaveNow()
}

// SetSecretKey stores the provisioning key and saves immediately.
func (s *Store) SetSecretKey(version uint8, key [KeyLen]byte) error {
	s.rec.KeyVersion = version
	s.rec.SecretKey = key
	s.MarkDirty()
	return s.SaveNow()
}

// HasSecretKey requires a non-zero version and a non-zero key.
func (s *Store) HasSecretKey() bool {
	return s.rec.KeyVersion != 0 && s.rec.SecretKey != [KeyLen]byte{}
}

func (s *Store) SecretKey() [KeyLen]byte { return s.rec.SecretKey }
func (s *Store) KeyVersion() uint8       { return s.rec.KeyVersion }
func (s *Store) SelfID() proto.DeviceID  { return s.rec.SelfID }
func (s *Store) TapCount() uint32        { return s.rec.TapCount }
func (s *Store) LinkCount() uint16       { return s.rec.LinkCount }

// Record returns a copy of the in-memory record.
func (s *Store) Record() Record { return s.rec }

// Links returns up to count stored links starting at offset, in slot order.
func (s *Store) Links(offset, count int) []proto.DeviceID {
	n := s.rec.StoredLinks()
	if offset < 0 || offset >= n || count <= 0 {
		return nil
	}
	end := offset + count
	if end > n {
		end = n
	}
	out := make([]proto.DeviceID, end-offset)
	copy(out, s.rec.Links[offset:end])
	return out
}
