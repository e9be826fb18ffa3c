// Package receiver runs the long-lived capture, decode and fan-out pipeline.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/analysis"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/norasector/irdecode/pkg/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	outcomeDecoded = "decoded"
	outcomeUnknown = "unknown"
	outcomeError   = "error"
)

type taggedCapture struct {
	source  string
	capture *ir.Capture
}

type Stats struct {
	Decoded uint64
	Unknown uint64
	Failed  uint64
	Skipped uint64
}

type Receiver struct {
	// 64-bit counters first for atomic alignment.
	seq   uint64
	stats Stats

	opts        Options
	decoder     Decoder
	writeAPI    api.WriteAPI
	recorder    Recorder
	publisher   Publisher
	runner      Runner
	captureChan chan taggedCapture
	logger      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
}

// Runner is a component that runs alongside the pipeline, such as the viz server.
type Runner interface {
	Run(ctx context.Context) error
	Stop(ctx context.Context)
}

type ReceiverOption func(r *Receiver) error

func WithInfluxDB(writeAPI api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		r.writeAPI = writeAPI
		return nil
	}
}

func WithRecorder(recorder Recorder) ReceiverOption {
	return func(r *Receiver) error {
		r.recorder = recorder
		return nil
	}
}

// WithPublisher shows records on p and, when p is also a Runner, runs it with the pipeline.
func WithPublisher(p Publisher) ReceiverOption {
	return func(r *Receiver) error {
		r.publisher = p
		if runner, ok := p.(Runner); ok {
			r.runner = runner
		}
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func NewReceiver(decoder Decoder, options Options, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		opts:        options,
		decoder:     decoder,
		writeAPI:    &util.NopWriteAPI{}, // overwritten with option
		captureChan: make(chan taggedCapture, 32),
		logger:      log.Logger,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if len(r.opts.Sources) == 0 {
		return nil, fmt.Errorf("must specify at least one capture source")
	}
	if r.opts.Tolerance == 0 {
		r.opts.Tolerance = 25
	}
	if r.opts.Workers <= 0 {
		r.opts.Workers = runtime.NumCPU()
	}
	return r, nil
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if r.runner != nil {
		r.runner.Stop(context.TODO())
	}
	var errs []error
	for _, src := range r.opts.Sources {
		if err := src.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (r *Receiver) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	ctx = r.ctx
	r.mu.Unlock()

	for _, src := range r.opts.Sources {
		src := src
		raw := make(chan *ir.Capture)
		eg.Go(func() error {
			err := src.Start(ctx, raw)
			if err == nil {
				r.logger.Info().Str("source", src.Name()).Msg("source finished")
			}
			return err
		})
		eg.Go(func() error {
			return r.tagCaptures(ctx, src.Name(), raw)
		})
	}

	if r.runner != nil {
		eg.Go(func() error {
			return r.runner.Run(ctx)
		})
	}

	for i := 0; i < r.opts.Workers; i++ {
		eg.Go(func() error {
			return r.decodeCaptures(ctx)
		})
	}

	for _, output := range r.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	r.logger.Info().
		Int("sources", len(r.opts.Sources)).
		Int("outputs", len(r.opts.Outputs)).
		Int("workers", r.opts.Workers).
		Msg("Starting")

	return eg.Wait()
}

func (r *Receiver) tagCaptures(ctx context.Context, source string, raw <-chan *ir.Capture) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-raw:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.captureChan <- taggedCapture{source: source, capture: c}:
			}
		}
	}
}

func (r *Receiver) decodeCaptures(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tc := <-r.captureChan:
			rec, outcome, durationUS := r.process(tc)

			if r.recorder != nil {
				if err := r.recorder.Append(rec); err != nil {
					r.logger.Error().Err(err).Msg("error storing record")
				}
			} else {
				rec.ID = atomic.AddUint64(&r.seq, 1)
			}
			if r.publisher != nil {
				r.publisher.Publish(rec)
			}

			skippedOutputs := 0
			for _, output := range r.opts.Outputs {
				select {
				case output.Receive() <- rec:
					// We will not wait on blocked channels.
				default:
					skippedOutputs++
				}
			}
			atomic.AddUint64(&r.stats.Skipped, uint64(skippedOutputs))

			protocol := ir.ProtocolUnknown.String()
			repeat := false
			if rec.Result != nil {
				protocol = rec.Result.Protocol.String()
				repeat = rec.Result.Repeat
			}
			go r.writeAPI.WritePoint(influxdb2.NewPoint("ir.decode",
				map[string]string{
					"protocol": protocol,
					"outcome":  outcome,
					"source":   tc.source,
				},
				map[string]interface{}{
					"duration_us":     durationUS,
					"entries":         len(rec.Entries),
					"repeat":          repeat,
					"skipped_outputs": skippedOutputs,
				}, time.Now()))
		}
	}
}

// process decodes one capture into a record, summarising it when no decoder recognised it.
func (r *Receiver) process(tc taggedCapture) (*store.Record, string, int64) {
	c := tc.capture
	rec := &store.Record{
		Time:    time.Now(),
		Source:  tc.source,
		Entries: c.Window(),
		Tick:    c.Tick,
	}

	var res ir.Result
	durationUS, err := util.TimeDecode(func() error {
		var err error
		res, err = r.decoder.Decode(c)
		return err
	})

	switch {
	case err == nil:
		rec.Result = &res
		atomic.AddUint64(&r.stats.Decoded, 1)
		r.logger.Info().
			Str("source", tc.source).
			Str("protocol", res.Protocol.String()).
			Str("code", res.Hex()).
			Bool("repeat", res.Repeat).
			Msg("decoded")
		return rec, outcomeDecoded, durationUS
	case errors.Is(err, ir.ErrUnknown):
		rec.Error = err.Error()
		summary := analysis.Summarize(c, r.opts.Tolerance)
		rec.Summary = &summary
		atomic.AddUint64(&r.stats.Unknown, 1)
		r.logger.Debug().
			Str("source", tc.source).
			Int("entries", summary.Entries).
			Int("clusters", len(summary.Clusters)).
			Msg("unrecognized capture")
		return rec, outcomeUnknown, durationUS
	default:
		rec.Error = err.Error()
		atomic.AddUint64(&r.stats.Failed, 1)
		r.logger.Error().Err(err).Str("source", tc.source).Msg("decode failed")
		return rec, outcomeError, durationUS
	}
}

func (r *Receiver) Stats() Stats {
	return Stats{
		Decoded: atomic.LoadUint64(&r.stats.Decoded),
		Unknown: atomic.LoadUint64(&r.stats.Unknown),
		Failed:  atomic.LoadUint64(&r.stats.Failed),
		Skipped: atomic.LoadUint64(&r.stats.Skipped),
	}
}
