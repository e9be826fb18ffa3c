package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/store"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

const filterWorkers = 4

// WriterOutput renders records onto an io.Writer.
type WriterOutput struct {
	dest     io.Writer
	format   Format
	recvChan chan *store.Record
	outChan  chan *store.Record
	filter   protocolFilter
}

func NewWriterOutput(dest io.Writer, format Format, protocols []ir.Protocol) *WriterOutput {
	return &WriterOutput{
		dest:     dest,
		format:   format,
		recvChan: make(chan *store.Record, recordBufferLength),
		outChan:  make(chan *store.Record, recordBufferLength),
		filter:   newProtocolFilter(protocols),
	}
}

func (w *WriterOutput) Receive() chan<- *store.Record {
	return w.recvChan
}

func (w *WriterOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	// Concurrently filter incoming records down to the requested protocols.
	for i := 0; i < filterWorkers; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec := <-w.recvChan:
					if !w.filter.pass(rec) {
						continue
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case w.outChan <- rec:
					}
				}
			}
		})
	}

	eg.Go(func() error {
		var b bytes.Buffer
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rec := <-w.outChan:
				if err := Render(&b, rec, w.format); err != nil {
					return err
				}
				if _, err := b.WriteTo(w.dest); err != nil {
					return err
				}
				b.Reset()
			}
		}
	})

	return eg.Wait()
}

// Render writes one record in the given format.
func Render(w io.Writer, rec *store.Record, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		data, err := yaml.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", data)
		return err
	}

	if rec.Source != "" {
		if _, err := fmt.Fprintf(w, "Source    : %s\n", rec.Source); err != nil {
			return err
		}
	}
	switch {
	case rec.Result != nil:
		_, err := io.WriteString(w, rec.Result.String())
		if err != nil {
			return err
		}
	case rec.Error != "":
		if _, err := fmt.Fprintf(w, "Error     : %s\n", rec.Error); err != nil {
			return err
		}
	}
	if rec.Summary != nil {
		if _, err := io.WriteString(w, rec.Summary.String()); err != nil {
			return err
		}
	}
	if rec.Result == nil && len(rec.Entries) > 0 {
		if _, err := io.WriteString(w, rec.Capture().TimingInfo()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
