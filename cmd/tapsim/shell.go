package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ystepanoff/taplink/driver/eeprom"
	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/shell"
	"github.com/ystepanoff/taplink/storage"
)

type Shell struct {
	logger loggerFunc
	db     string
	id     string
}

func CmdShell(logger loggerFunc) *cobra.Command {
	s := &Shell{logger: logger}
	cmd := &cobra.Command{
		GroupID: "card",
		Use:     "shell",
		Short:   "Open the provisioning shell of a stored card",
		Long: `Read shell commands from standard input and answer with JSON lines, as
the card does over USB. The card's EEPROM lives in a bbolt file.`,
		Args: cobra.NoArgs,
		Example: `  echo GET_STATE | tapsim shell --db card.db
  tapsim shell --db card.db --id 0A0B0C0D0E0F101112131415`,
		RunE: s.run,
	}
	cmd.Flags().StringVar(&s.db, "db", "card.db", "bbolt file holding the card's EEPROM")
	cmd.Flags().StringVar(&s.id, "id", "0A0B0C0D0E0F101112131415", "hardware identifier used for a blank card")
	return cmd
}

// wallClock is the store's time base on the host.
type wallClock struct {
	start time.Time
}

func (c wallClock) Millis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

func (c wallClock) SleepMillis(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (s *Shell) run(cmd *cobra.Command, _ []string) error {
	log := s.logger(cmd)
	id, err := proto.ParseDeviceID(s.id)
	if err != nil {
		return err
	}

	medium, err := eeprom.OpenBolt(s.db, eeprom.DefaultSize)
	if err != nil {
		return err
	}
	defer medium.Close()

	st := storage.New(medium, proto.StaticID(id), wallClock{start: time.Now()},
		storage.WithLogger(log),
		storage.WithChunking(storage.ImageSize, 0))
	if err := st.Begin(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := shell.New(st, proto.StaticID(id), cmd.OutOrStdout(),
		shell.WithLogger(log),
		shell.WithBuild(shell.Build{Version: version, Date: "host", Hash: "none"}))
	err = sh.Serve(ctx, cmd.InOrStdin())
	if st.Dirty() {
		if serr := st.SaveNow(); serr != nil && err == nil {
			err = fmt.Errorf("save on exit: %w", serr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
