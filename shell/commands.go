package shell

import (
	"encoding/hex"
	"strings"

	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
)

type helloEvent struct {
	Event    string `json:"event"`
	DeviceID string `json:"device_id"`
	Firmware string `json:"fw"`
	Build    string `json:"build"`
	Hash     string `json:"hash"`
}

func (s *Shell) hello() {
	s.emit(helloEvent{
		Event:    "hello",
		DeviceID: s.ids.DeviceID().String(),
		Firmware: s.build.Version,
		Build:    s.build.Date,
		Hash:     s.build.Hash,
	})
}

type stateEvent struct {
	Event     string `json:"event"`
	TapCount  uint32 `json:"totalTapCount"`
	LinkCount uint16 `json:"linkCount"`
}

func (s *Shell) state() {
	s.emit(stateEvent{
		Event:     "state",
		TapCount:  s.store.TapCount(),
		LinkCount: s.store.LinkCount(),
	})
}

func (s *Shell) clear() {
	if err := s.store.ClearAll(); err != nil {
		s.log.Error().Err(err).Msg("clear failed")
		s.fail("clear failed")
		return
	}
	s.emit(ackEvent{Event: "ack", Cmd: "CLEAR"})
}

type linkItem struct {
	Peer string `json:"peer"`
}

type linksEvent struct {
	Event  string     `json:"event"`
	Offset *int       `json:"offset,omitempty"`
	Count  *int       `json:"count,omitempty"`
	Items  []linkItem `json:"items"`
}

func (s *Shell) dump(offset, count int) {
	if offset < 0 {
		offset = 0
	}
	if count < 0 {
		count = 0
	}
	if offset >= storage.MaxLinks {
		s.emit(linksEvent{Event: "links", Items: []linkItem{}})
		return
	}
	links := s.store.Links(offset, count)
	items := make([]linkItem, len(links))
	for i, id := range links {
		items[i] = linkItem{Peer: id.String()}
	}
	n := len(items)
	s.emit(linksEvent{Event: "links", Offset: &offset, Count: &n, Items: items})
}

func (s *Shell) provisionKey(version int, keyHex string) {
	if version <= 0 || version > 255 {
		s.fail("invalid keyVersion")
		return
	}
	var key [storage.KeyLen]byte
	if len(keyHex) != 2*storage.KeyLen {
		s.fail("invalid key hex")
		return
	}
	if _, err := hex.Decode(key[:], []byte(keyHex)); err != nil {
		s.fail("invalid key hex")
		return
	}
	if s.storeKey(version, key) {
		s.emit(ackEvent{Event: "ack", Cmd: "PROVISION_KEY", KeyVersion: &version})
	}
}

// generateKey provisions a key drawn on the card. The ack carries it once so
// the verifier can record it; it is never shown again.
func (s *Shell) generateKey(version int) {
	if version <= 0 || version > 255 {
		s.fail("invalid keyVersion")
		return
	}
	key, err := proto.GenerateSecretKey()
	if err != nil {
		s.log.Error().Err(err).Msg("generating key failed")
		s.fail("keygen failed")
		return
	}
	if s.storeKey(version, key) {
		s.emit(ackEvent{
			Event:      "ack",
			Cmd:        "PROVISION_KEY",
			KeyVersion: &version,
			Key:        strings.ToUpper(hex.EncodeToString(key[:])),
		})
	}
}

func (s *Shell) storeKey(version int, key [storage.KeyLen]byte) bool {
	if err := s.store.SetSecretKey(uint8(version), key); err != nil {
		s.log.Error().Err(err).Msg("saving key failed")
		s.fail("save failed")
		return false
	}
	s.log.Info().Int("version", version).Msg("secret key provisioned")
	return true
}

type signedEvent struct {
	Event      string `json:"event"`
	DeviceID   string `json:"device_id"`
	Nonce      string `json:"nonce"`
	TapCount   uint32 `json:"totalTapCount"`
	LinkCount  int    `json:"linkCount"`
	KeyVersion uint8  `json:"keyVersion"`
	HMAC       string `json:"hmac"`
}

func (s *Shell) signState(nonceHex string) {
	if !s.store.HasSecretKey() {
		s.fail("no_key")
		return
	}
	if len(nonceHex) == 0 || len(nonceHex)%2 != 0 || len(nonceHex) > 2*storage.NonceMax {
		s.fail("invalid nonce")
		return
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		s.fail("invalid nonce hex")
		return
	}
	sig, err := s.store.SignState(nonce)
	if err != nil {
		s.log.Error().Err(err).Msg("signing failed")
		s.fail("hmac_failed")
		return
	}
	rec := s.store.Record()
	s.emit(signedEvent{
		Event:      "SIGNED_STATE",
		DeviceID:   rec.SelfID.String(),
		Nonce:      nonceHex,
		TapCount:   rec.TapCount,
		LinkCount:  rec.StoredLinks(),
		KeyVersion: rec.KeyVersion,
		HMAC:       strings.ToUpper(hex.EncodeToString(sig[:])),
	})
}
