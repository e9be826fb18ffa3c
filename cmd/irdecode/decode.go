package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/norasector/irdecode/pkg/capture"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/analysis"
	"github.com/norasector/irdecode/pkg/receiver/output"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type decodeOptions struct {
	protocol  string
	bits      int
	strict    bool
	tolerance int
	format    string
	timing    bool
}

func newDecodeCommand(g *globals) *cobra.Command {
	o := &decodeOptions{}
	cmd := &cobra.Command{
		Use:   "decode [FILE...]",
		Short: "Decode the captures in each file, or stdin",
		Long: "Decode the captures in each file, or stdin when no file or '-' is given.\n" +
			"Captures are separated by blank lines.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.overrideDecodeFlags(cmd, o.strict, o.tolerance); err != nil {
				return err
			}
			format, err := output.ParseFormat(o.format)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			if err := checkStdinOnce(args); err != nil {
				return err
			}

			decode, err := o.decoder(g)
			if err != nil {
				return err
			}

			// Files decode concurrently; records print in argument order.
			results := make([][]*store.Record, len(args))
			var eg errgroup.Group
			for i, path := range args {
				i, path := i, path
				eg.Go(func() error {
					recs, err := decodeFile(cmd.InOrStdin(), path, g, decode)
					results[i] = recs
					return err
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			failed := 0
			for _, recs := range results {
				for _, rec := range recs {
					if rec.Result == nil {
						failed++
					}
					if o.timing && rec.Result != nil && format == output.FormatText {
						fmt.Fprint(cmd.OutOrStdout(), rec.Capture().TimingInfo())
					}
					if err := output.Render(cmd.OutOrStdout(), rec, format); err != nil {
						return err
					}
				}
			}
			if failed > 0 {
				log.Warn().Int("captures", failed).Msg("some captures were not decoded")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.protocol, "protocol", "p", "", "Decode only as this protocol")
	cmd.Flags().IntVar(&o.bits, "bits", 0, "Expected bit count with --protocol, 0 for the protocol default")
	cmd.Flags().BoolVar(&o.strict, "strict", true, "Enforce exact bit counts and integrity checks")
	cmd.Flags().IntVar(&o.tolerance, "tolerance", 0, "Timing tolerance in percent")
	cmd.Flags().StringVarP(&o.format, "output", "o", string(output.FormatText), "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&o.timing, "timing", false, "Also print the raw timing of decoded captures")
	return cmd
}

type decodeFunc func(c *ir.Capture) (ir.Result, error)

func (o *decodeOptions) decoder(g *globals) (decodeFunc, error) {
	reg, err := g.registry()
	if err != nil {
		return nil, err
	}
	if o.protocol == "" {
		if o.bits != 0 {
			return nil, fmt.Errorf("--bits requires --protocol")
		}
		return reg.Decode, nil
	}

	proto, err := ir.ParseProtocol(o.protocol)
	if err != nil {
		return nil, err
	}
	opts := g.cfg.DecodeOptions()
	opts.Bits = o.bits
	return func(c *ir.Capture) (ir.Result, error) {
		return reg.DecodeAs(proto, c, opts)
	}, nil
}

// checkStdinOnce rejects args naming stdin more than once.
func checkStdinOnce(args []string) error {
	seen := false
	for _, arg := range args {
		if arg != "-" {
			continue
		}
		if seen {
			return errors.New("stdin ('-') may only be given once")
		}
		seen = true
	}
	return nil
}

func decodeFile(stdin io.Reader, path string, g *globals, decode decodeFunc) ([]*store.Record, error) {
	r := stdin
	source := "stdin"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
		source = "file:" + path
	}

	texts, err := capture.Split(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	recs := make([]*store.Record, 0, len(texts))
	for i, text := range texts {
		entries, err := capture.Parse(text)
		if err != nil {
			log.Warn().Err(err).Str("source", source).Int("capture", i).Msg("skipping unparseable capture")
			continue
		}
		c := g.cfg.NewCapture(entries)
		rec := &store.Record{
			ID:      uint64(i + 1),
			Time:    time.Now(),
			Source:  source,
			Entries: c.Window(),
			Tick:    c.Tick,
		}
		res, err := decode(c)
		if err != nil {
			rec.Error = err.Error()
			if errors.Is(err, ir.ErrUnknown) {
				summary := analysis.Summarize(c, g.cfg.Tolerance)
				rec.Summary = &summary
			}
		} else {
			rec.Result = &res
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
