package capture

import (
	"context"
	"os"
	"time"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileSource replays the captures of a text file, one per tick.
type FileSource struct {
	path        string
	readFile    *os.File
	timeBetween time.Duration
	build       Builder
	logger      zerolog.Logger
}

type FileOption func(f *FileSource)

func WithFileLogger(logger zerolog.Logger) FileOption {
	return func(f *FileSource) {
		f.logger = logger
	}
}

func WithFileBuilder(build Builder) FileOption {
	return func(f *FileSource) {
		f.build = build
	}
}

func NewFileSource(path string, timeBetween time.Duration, opts ...FileOption) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	ret := &FileSource{
		path:        path,
		readFile:    f,
		timeBetween: timeBetween,
		build:       NewCapture,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (f *FileSource) Name() string {
	return "file:" + f.path
}

func (f *FileSource) Start(ctx context.Context, out chan<- *ir.Capture) error {
	texts, err := Split(f.readFile)
	if err != nil {
		return err
	}

	if f.timeBetween <= 0 {
		f.timeBetween = time.Nanosecond
	}
	tick := time.NewTicker(f.timeBetween)
	defer tick.Stop()

	for i, text := range texts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		entries, err := Parse(text)
		if err != nil {
			f.logger.Warn().Err(err).Str("file", f.path).Int("capture", i).Msg("skipping unparseable capture")
			continue
		}
		if err := send(ctx, out, f.build(entries)); err != nil {
			return err
		}
	}

	f.logger.Debug().Str("file", f.path).Int("captures", len(texts)).Msg("replay finished")
	return nil
}

func (f *FileSource) Stop() error {
	return f.readFile.Close()
}
