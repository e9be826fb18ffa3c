package capture

import (
	"context"

	"github.com/norasector/irdecode/pkg/ir"
)

// Source produces captures until its context ends or it runs dry.
type Source interface {
	Name() string
	// Start sends captures on out and blocks until ctx is done, the source
	// is exhausted (nil) or it fails.
	Start(ctx context.Context, out chan<- *ir.Capture) error
	Stop() error
}

func send(ctx context.Context, out chan<- *ir.Capture, c *ir.Capture) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- c:
		return nil
	}
}
