package receiver

import (
	"context"

	"github.com/norasector/irdecode/pkg/capture"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/store"
)

// Output handles decoded records.
type Output interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives records.
	Receive() chan<- *store.Record
}

// Decoder turns captures into results, typically an *ir.Registry.
type Decoder interface {
	Decode(c *ir.Capture) (ir.Result, error)
}

// Recorder persists records, assigning their IDs.
type Recorder interface {
	Append(rec *store.Record) error
}

// Publisher shows records as they arrive, typically a *viz.Server.
type Publisher interface {
	Publish(rec *store.Record)
}

type Options struct {
	Sources []capture.Source
	Outputs []Output
	// Tolerance is used to cluster durations of unrecognised captures.
	Tolerance int
	// Workers is the number of decode workers, 0 meaning one per CPU.
	Workers int
}
