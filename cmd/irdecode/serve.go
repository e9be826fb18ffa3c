package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/irdecode/pkg/capture"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/receiver"
	"github.com/norasector/irdecode/pkg/receiver/output"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/norasector/irdecode/pkg/util"
	"github.com/norasector/irdecode/pkg/viz"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	files     []string
	udpListen string
	vizPort   int
	storePath string
	format    string
	strict    bool
	tolerance int
	filter    []string
}

func newServeCommand(g *globals) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the receiver: replay files or listen on UDP, decode and fan out results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.overrideDecodeFlags(cmd, o.strict, o.tolerance); err != nil {
				return err
			}
			o.applyTo(cmd, g)
			return o.run(cmd, g)
		},
	}
	cmd.Flags().StringSliceVar(&o.files, "file", nil, "Capture file to replay, may be repeated")
	cmd.Flags().StringVar(&o.udpListen, "udp", "", "UDP address to receive text captures on")
	cmd.Flags().IntVar(&o.vizPort, "viz-port", 0, "Serve the web view on this port")
	cmd.Flags().StringVar(&o.storePath, "store", "", "bbolt database for decode history")
	cmd.Flags().StringVarP(&o.format, "output", "o", string(output.FormatText), "Stdout format: text, json, yaml")
	cmd.Flags().BoolVar(&o.strict, "strict", true, "Enforce exact bit counts and integrity checks")
	cmd.Flags().IntVar(&o.tolerance, "tolerance", 0, "Timing tolerance in percent")
	cmd.Flags().StringSliceVar(&o.filter, "only", nil, "Print only these protocols (UNKNOWN for unrecognised captures)")
	return cmd
}

// applyTo folds the command line into the config.
func (o *serveOptions) applyTo(cmd *cobra.Command, g *globals) {
	cfg := g.cfg
	cfg.Inputs.Files = append(cfg.Inputs.Files, o.files...)
	if o.udpListen != "" {
		cfg.UDPListen = o.udpListen
	}
	if cmd.Flags().Changed("viz-port") {
		cfg.VizServer.Port = o.vizPort
		cfg.VizServer.Enabled = o.vizPort > 0
	}
	if cmd.Flags().Changed("store") {
		cfg.StorePath = o.storePath
	}
}

func (o *serveOptions) run(cmd *cobra.Command, g *globals) error {
	cfg := g.cfg
	reg, err := g.registry()
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return err
	}
	var only []ir.Protocol
	for _, name := range o.filter {
		if name == string(ir.ProtocolUnknown) {
			only = append(only, ir.ProtocolUnknown)
			continue
		}
		p, err := ir.ParseProtocol(name)
		if err != nil {
			return err
		}
		only = append(only, p)
	}

	var sources []capture.Source
	for _, path := range cfg.Inputs.Files {
		log.Info().Str("file", path).Msg("initializing source...")
		src, err := capture.NewFileSource(path, cfg.Inputs.ReplayDelay,
			capture.WithFileBuilder(cfg.NewCapture),
			capture.WithFileLogger(log.Logger))
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	if cfg.UDPListen != "" {
		log.Info().Str("addr", cfg.UDPListen).Msg("initializing source...")
		src, err := capture.NewUDPSource(cfg.UDPListen, cfg.NewCapture, log.Logger)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	var writeAPI api.WriteAPI = &util.NopWriteAPI{}
	if cfg.InfluxDB.Host != "" {
		client := influxdb2.NewClient(cfg.InfluxDB.Host, cfg.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket)
		defer writeAPI.Flush()
	}

	outputs := []receiver.Output{output.NewWriterOutput(cmd.OutOrStdout(), format, only)}
	if len(cfg.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewUDPOutput(cfg.OutputDestinations, writeAPI))
	}

	opts := []receiver.ReceiverOption{
		receiver.WithInfluxDB(writeAPI),
		receiver.WithLogger(log.Logger),
	}
	var history viz.History
	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
		opts = append(opts, receiver.WithRecorder(st))
	}
	if cfg.VizServer.Enabled {
		vizOpts := []viz.ServerOption{
			viz.WithCaptureBuilder(cfg.NewCapture),
			viz.WithServerLogger(log.Logger),
			viz.WithDecodeOptions(cfg.DecodeOptions()),
		}
		if history != nil {
			vizOpts = append(vizOpts, viz.WithHistory(history))
		}
		opts = append(opts, receiver.WithPublisher(viz.NewServer(cfg.VizServer.Port, reg, vizOpts...)))
	}

	r, err := receiver.NewReceiver(reg, receiver.Options{
		Sources:   sources,
		Outputs:   outputs,
		Tolerance: cfg.Tolerance,
	}, opts...)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	eg, ctx := errgroup.WithContext(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return r.Stop()
	})

	eg.Go(func() error {
		return r.Start(ctx)
	})

	err = eg.Wait()
	stats := r.Stats()
	log.Info().
		Uint64("decoded", stats.Decoded).
		Uint64("unknown", stats.Unknown).
		Uint64("failed", stats.Failed).
		Uint64("skipped_outputs", stats.Skipped).
		Msg("receiver stopped")
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
