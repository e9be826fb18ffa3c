package receiver

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/norasector/irdecode/pkg/capture"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/irtest"
	"github.com/norasector/irdecode/pkg/ir/nec"
	"github.com/norasector/irdecode/pkg/ir/protocols"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/norasector/irdecode/pkg/util"
	"github.com/rs/zerolog"
)

type sliceSource struct {
	name     string
	captures []*ir.Capture
	stopped  bool
}

func (s *sliceSource) Name() string { return s.name }

func (s *sliceSource) Start(ctx context.Context, out chan<- *ir.Capture) error {
	for _, c := range s.captures {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- c:
		}
	}
	return nil
}

func (s *sliceSource) Stop() error {
	s.stopped = true
	return nil
}

type chanOutput struct {
	ch chan *store.Record
}

func (o *chanOutput) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (o *chanOutput) Receive() chan<- *store.Record { return o.ch }

type publisher struct {
	mu   sync.Mutex
	recs []*store.Record
}

func (p *publisher) Publish(rec *store.Record) {
	p.mu.Lock()
	p.recs = append(p.recs, rec)
	p.mu.Unlock()
}

type failingDecoder struct{}

func (failingDecoder) Decode(c *ir.Capture) (ir.Result, error) {
	return ir.Result{}, errors.New("decoder exploded")
}

func necCapture() *ir.Capture {
	return irtest.New().Mark(nec.HdrMark).Bits(nec.NewDecoder().Blocks()[0], nec.Encode(0x04, 0x08)).Capture()
}

func collect(c *qt.C, ch <-chan *store.Record, n int) []*store.Record {
	var ret []*store.Record
	for len(ret) < n {
		select {
		case rec := <-ch:
			ret = append(ret, rec)
		case <-time.After(5 * time.Second):
			c.Fatalf("received %d of %d records", len(ret), n)
		}
	}
	return ret
}

func TestNewReceiverNeedsSource(t *testing.T) {
	c := qt.New(t)
	_, err := NewReceiver(protocols.Default(zerolog.Nop()), Options{})
	c.Assert(err, qt.ErrorMatches, `must specify at least one capture source`)
}

func TestReceiverPipeline(t *testing.T) {
	c := qt.New(t)
	src := &sliceSource{name: "test", captures: []*ir.Capture{
		necCapture(),
		ir.NewCapture(0, 1000, 1000, 1000),
	}}
	out := &chanOutput{ch: make(chan *store.Record, 8)}
	blocked := &chanOutput{ch: make(chan *store.Record)}
	metrics := &util.RecordingWriteAPI{}
	pub := &publisher{}

	r, err := NewReceiver(protocols.Default(zerolog.Nop()),
		Options{Sources: []capture.Source{src}, Outputs: []Output{out, blocked}, Workers: 1},
		WithInfluxDB(metrics),
		WithPublisher(pub),
		WithLogger(zerolog.Nop()))
	c.Assert(err, qt.IsNil)

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()

	recs := collect(c, out.ch, 2)
	c.Assert(r.Stop(), qt.IsNil)
	c.Assert(<-done, qt.Equals, context.Canceled)
	c.Assert(src.stopped, qt.IsTrue)

	c.Assert(recs[0].Result, qt.Not(qt.IsNil))
	c.Assert(recs[0].Result.Protocol, qt.Equals, ir.ProtocolNEC)
	c.Assert(recs[0].Source, qt.Equals, "test")
	c.Assert(recs[0].ID, qt.Equals, uint64(1))
	c.Assert(recs[1].Result, qt.IsNil)
	c.Assert(recs[1].Error, qt.Equals, "unrecognized signal")
	c.Assert(recs[1].Summary, qt.Not(qt.IsNil))
	c.Assert(recs[1].ID, qt.Equals, uint64(2))

	c.Assert(r.Stats(), qt.Equals, Stats{Decoded: 1, Unknown: 1, Skipped: 2})
	pub.mu.Lock()
	c.Assert(pub.recs, qt.HasLen, 2)
	pub.mu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for len(metrics.Points("ir.decode")) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Assert(metrics.Points("ir.decode"), qt.HasLen, 2)
}

func TestReceiverRecorder(t *testing.T) {
	c := qt.New(t)
	st, err := store.Open(filepath.Join(c.TempDir(), "irdecode.db"))
	c.Assert(err, qt.IsNil)
	defer st.Close()

	src := &sliceSource{name: "test", captures: []*ir.Capture{necCapture()}}
	out := &chanOutput{ch: make(chan *store.Record, 8)}
	r, err := NewReceiver(protocols.Default(zerolog.Nop()),
		Options{Sources: []capture.Source{src}, Outputs: []Output{out}},
		WithRecorder(st),
		WithLogger(zerolog.Nop()))
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	rec := collect(c, out.ch, 1)[0]
	cancel()
	c.Assert(<-done, qt.Equals, context.Canceled)

	stored, err := st.Get(rec.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Result.Equal(*rec.Result), qt.IsTrue)
	c.Assert(stored.Source, qt.Equals, "test")
}

func TestReceiverDecodeFailure(t *testing.T) {
	c := qt.New(t)
	src := &sliceSource{name: "test", captures: []*ir.Capture{necCapture()}}
	out := &chanOutput{ch: make(chan *store.Record, 8)}
	r, err := NewReceiver(failingDecoder{},
		Options{Sources: []capture.Source{src}, Outputs: []Output{out}},
		WithLogger(zerolog.Nop()))
	c.Assert(err, qt.IsNil)

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	rec := collect(c, out.ch, 1)[0]
	c.Assert(r.Stop(), qt.IsNil)
	<-done

	c.Assert(rec.Error, qt.Equals, "decoder exploded")
	c.Assert(rec.Summary, qt.IsNil)
	c.Assert(r.Stats().Failed, qt.Equals, uint64(1))
}
