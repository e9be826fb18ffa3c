package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/norasector/irdecode/pkg/config"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/protocols"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	configOptionName   = "config"
	logLevelOptionName = "log-level"
)

// globals carries the persistent flags and the config they select.
type globals struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand(out io.Writer) *cobra.Command {
	g := &globals{cfg: config.NewDefaultConfig()}

	cmd := &cobra.Command{
		Use:           "irdecode",
		Short:         "Decode infrared remote control captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// init writes the config file, so there is nothing to read yet.
			if cmd.Name() != "init" {
				if err := g.load(cmd.Flags().Changed(configOptionName)); err != nil {
					return err
				}
			}
			if g.logLevel != "" {
				g.cfg.LogLevel = g.logLevel
			}
			level, err := zerolog.ParseLevel(g.cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("bad log level %q: %w", g.cfg.LogLevel, err)
			}
			// The global level filters trace events out by default.
			if level < zerolog.GlobalLevel() {
				zerolog.SetGlobalLevel(level)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(newDecodeCommand(g))
	cmd.AddCommand(newServeCommand(g))
	cmd.AddCommand(newProtocolsCommand(g))
	cmd.AddCommand(newInitCommand(g))
	cmd.PersistentFlags().StringVar(&g.configPath, configOptionName, config.DefaultConfigFile, "YAML config file")
	cmd.PersistentFlags().StringVar(&g.logLevel, logLevelOptionName, "", "Log level: trace, debug, info, warn, error")
	return cmd
}

// load reads the config file. A missing file is only an error when it was asked for.
func (g *globals) load(explicit bool) error {
	cfg, err := config.Load(g.configPath)
	switch {
	case err == nil:
		g.cfg = cfg
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		g.cfg.SetPath(g.configPath)
	default:
		return err
	}
	return nil
}

// registry builds the dispatch registry from the config.
func (g *globals) registry() (*ir.Registry, error) {
	reg := protocols.New(log.Logger, g.cfg.DecodeOptions())
	if err := g.cfg.Apply(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// overrideDecodeFlags applies --strict and --tolerance when they were given.
func (g *globals) overrideDecodeFlags(cmd *cobra.Command, strict bool, tolerance int) error {
	if cmd.Flags().Changed("strict") {
		g.cfg.Strict = strict
	}
	if cmd.Flags().Changed("tolerance") {
		g.cfg.Tolerance = tolerance
	}
	return g.cfg.Validate()
}
