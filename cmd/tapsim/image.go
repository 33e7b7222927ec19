package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/storage"
)

type Image struct {
	logger loggerFunc
	raw    bool
}

func CmdImage(logger loggerFunc) *cobra.Command {
	img := &Image{logger: logger}
	cmd := &cobra.Command{
		GroupID: "card",
		Use:     "image",
		Short:   "Inspect a stored card image",
	}
	cmd.PersistentFlags().BoolVar(&img.raw, "raw", false, "treat FILE as a raw EEPROM dump instead of a bbolt file")

	cmd.AddCommand(&cobra.Command{
		Use:     "dump FILE",
		Short:   "Print the decoded record as JSON",
		Args:    cobra.ExactArgs(1),
		Example: `  tapsim image dump card.db`,
		RunE:    img.dump,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "verify FILE",
		Short:   "Check the header and CRC of an image",
		Args:    cobra.ExactArgs(1),
		Example: `  tapsim image verify --raw eeprom.bin`,
		RunE:    img.verify,
	})
	return cmd
}

func (img *Image) load(path string) ([]byte, error) {
	if img.raw {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		return b, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open card: %w", err)
	}
	m, err := eeprom.OpenBolt(path, eeprom.DefaultSize)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	buf := make([]byte, storage.ImageSize)
	if _, err := m.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

type recordDump struct {
	Magic      string   `json:"magic"`
	Version    uint16   `json:"version"`
	Length     uint16   `json:"length"`
	CRC        string   `json:"crc"`
	SelfID     string   `json:"selfId"`
	TapCount   uint32   `json:"totalTapCount"`
	LinkCount  uint16   `json:"linkCount"`
	KeyVersion uint8    `json:"keyVersion"`
	HasKey     bool     `json:"hasKey"`
	Links      []string `json:"links"`
}

func (img *Image) dump(cmd *cobra.Command, args []string) error {
	b, err := img.load(args[0])
	if err != nil {
		return err
	}
	rec, h, err := storage.DecodeImage(b)
	if err != nil {
		return err
	}
	out := recordDump{
		Magic:      fmt.Sprintf("%08X", h.Magic),
		Version:    h.Version,
		Length:     h.Length,
		CRC:        fmt.Sprintf("%08X", h.CRC),
		SelfID:     rec.SelfID.String(),
		TapCount:   rec.TapCount,
		LinkCount:  rec.LinkCount,
		KeyVersion: rec.KeyVersion,
		HasKey:     rec.KeyVersion != 0 && rec.SecretKey != [storage.KeyLen]byte{},
		Links:      make([]string, 0, rec.StoredLinks()),
	}
	for i := 0; i < rec.StoredLinks(); i++ {
		out.Links = append(out.Links, rec.Links[i].String())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (img *Image) verify(cmd *cobra.Command, args []string) error {
	log := img.logger(cmd)
	b, err := img.load(args[0])
	if err != nil {
		return err
	}
	_, h, err := storage.DecodeImage(b)
	if err != nil {
		log.Error().Err(err).Str("file", args[0]).Msg("image invalid")
		if len(b) >= storage.HeaderSize {
			log.Debug().Str("header", strings.ToUpper(hex.EncodeToString(b[:storage.HeaderSize]))).Msg("raw header")
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: version %d, %d byte payload, crc %08X\n", h.Version, h.Length, h.CRC)
	return nil
}
