package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ystepanoff/taplink/app"
	"github.com/ystepanoff/taplink/config"
	"github.com/ystepanoff/taplink/driver/eeprom"
	"github.com/ystepanoff/taplink/driver/stub"
	"github.com/ystepanoff/taplink/internal/logging"
	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
	"github.com/ystepanoff/taplink/transport"
)

type Sim struct {
	logger   loggerFunc
	duration time.Duration
	mode     string
}

func CmdRun(logger loggerFunc) *cobra.Command {
	s := &Sim{logger: logger}
	cmd := &cobra.Command{
		GroupID: "sim",
		Use:     "run [CONFIG-FILE]",
		Short:   "Tap simulated cards together on one line",
		Long: `Run every configured card on a shared simulated open-drain line in
virtual time, then print what each card recorded. Without a config file two
cards with opposite leading identifier bits are used.`,
		Args:    cobra.MaximumNArgs(1),
		Example: `  tapsim run
  tapsim run -d 10s cards.toml`,
		RunE: s.run,
	}
	cmd.Flags().DurationVarP(&s.duration, "duration", "d", 0, "virtual time to simulate, overrides the config")
	cmd.Flags().StringVar(&s.mode, "mode", "", "eval or battery, overrides the config")
	return cmd
}

// statsMedium is a storage medium that counts its traffic.
type statsMedium interface {
	storage.Medium
	Stats() eeprom.Stats
}

type simCard struct {
	dev    config.Device
	pin    *stub.Pin
	medium statsMedium
	app    *app.Application
	err    error
	close  func() error
}

func (s *Sim) run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if len(args) == 1 {
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return err
		}
	}
	if s.duration > 0 {
		cfg.Duration = s.duration
	}
	if s.mode != "" {
		m, err := app.ParseMode(s.mode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}

	log := s.logger(cmd)
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && !cmd.Flags().Changed("log-level") {
		log = log.Level(lvl)
	}

	bus := stub.NewBus()
	cards := make([]*simCard, 0, len(cfg.Devices))
	defer func() {
		for _, c := range cards {
			if c.close != nil {
				if err := c.close(); err != nil {
					log.Warn().Err(err).Str("card", c.dev.Name).Msg("closing medium")
				}
			}
		}
	}()
	for _, d := range cfg.Devices {
		c, err := newSimCard(bus, cfg, d, log)
		if err != nil {
			return err
		}
		cards = append(cards, c)
	}

	fns := make([]func(), len(cards))
	for i, c := range cards {
		fns[i] = c.power
	}
	log.Info().
		Stringer("mode", cfg.Mode).
		Dur("duration", cfg.Duration).
		Int("cards", len(cards)).
		Msg("simulation start")
	bus.Run(cfg.Duration, fns...)
	log.Info().Int("edges", len(bus.Edges())).Msg("simulation done")

	for _, c := range cards {
		if c.err != nil {
			return fmt.Errorf("card %s: %w", c.dev.Name, c.err)
		}
		if c.app.Store().Dirty() {
			if err := c.app.Store().SaveNow(); err != nil {
				return fmt.Errorf("card %s: final save: %w", c.dev.Name, err)
			}
		}
	}
	return printSummary(cmd.OutOrStdout(), cards)
}

func newSimCard(bus *stub.Bus, cfg config.Config, d config.Device, log zerolog.Logger) (*simCard, error) {
	c := &simCard{
		dev: d,
		pin: bus.NewPin(stub.WithClockOffset(d.ClockOffset), stub.WithDrift(d.DriftPPM)),
	}
	if d.DB != "" {
		m, err := eeprom.OpenBolt(d.DB, eeprom.DefaultSize)
		if err != nil {
			return nil, err
		}
		c.medium, c.close = m, m.Close
	} else {
		c.medium = eeprom.NewMemory(eeprom.DefaultSize)
	}

	l := log.With().Str("card", d.Name).Logger()
	a, err := app.New(app.Config{
		Driver:          c.pin,
		Medium:          c.medium,
		Identity:        proto.StaticID(d.ID),
		Mode:            cfg.Mode,
		CommandInterval: transport.Micros(cfg.CommandInterval),
		SaveDelay:       uint32(cfg.SaveDelay / time.Millisecond),
		Timing:          cfg.Timing,
		Logger:          &l,
		Signaler:        app.LogSignaler{Log: l},
		Renderer:        &app.LogRenderer{Log: l},
	})
	if err != nil {
		if c.close != nil {
			_ = c.close()
		}
		return nil, err
	}
	c.app = a
	return c, nil
}

// power is the card's whole life on the bus.
func (c *simCard) power() {
	c.pin.Delay(c.dev.StartDelay)
	if err := c.app.Begin(); err != nil {
		c.err = err
		return
	}
	c.app.Run(c.pin.Expired)
}

func printSummary(w io.Writer, cards []*simCard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CARD\tID\tROLE\tSTATUS\tTAPS\tLINKS\tBYTES WRITTEN\tCOMMITS")
	for _, c := range cards {
		st := c.app.Store()
		stats := c.medium.Stats()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			c.dev.Name, st.SelfID(), c.app.Role(), c.app.Status(),
			st.TapCount(), st.LinkCount(), stats.BytesWritten, stats.Commits)
	}
	return tw.Flush()
}
