package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ystepanoff/taplink/internal/logging"
)

var version = "dev"

// CmdTapsim is the root command.
func CmdTapsim() *cobra.Command {
	var logLevel string
	var noColor bool

	root := &cobra.Command{
		Use:          "tapsim",
		Short:        "Simulate and inspect taplink cards",
		Version:      version,
		SilenceUsage: true,
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		opts := logging.DefaultOptions()
		opts.Out = cmd.ErrOrStderr()
		opts.NoColor = noColor
		if lvl, ok := logging.ParseLevel(logLevel); ok {
			opts.Level = lvl
		}
		return logging.New("tapsim", opts)
	}

	root.AddGroup(&cobra.Group{ID: "sim", Title: "Simulation"})
	root.AddGroup(&cobra.Group{ID: "card", Title: "Card Tools"})
	root.AddCommand(CmdRun(logger))
	root.AddCommand(CmdShell(logger))
	root.AddCommand(CmdImage(logger))
	return root
}

// loggerFunc builds the logger once flags are parsed.
type loggerFunc func(cmd *cobra.Command) zerolog.Logger
