package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
)

// NopWriteAPI discards every point. It stands in when no InfluxDB host is configured.
type NopWriteAPI struct{}

func (m *NopWriteAPI) WriteRecord(line string)       {}
func (m *NopWriteAPI) WritePoint(point *write.Point) {}
func (m *NopWriteAPI) Flush()                        {}
func (m *NopWriteAPI) Close()                        {}
func (m *NopWriteAPI) Errors() <-chan error          { return nil }

// RecordingWriteAPI keeps every point written, for inspection in tests.
type RecordingWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
	lines  []string
}

func (r *RecordingWriteAPI) WriteRecord(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	r.points = append(r.points, point)
	r.mu.Unlock()
}

func (r *RecordingWriteAPI) Flush()               {}
func (r *RecordingWriteAPI) Close()               {}
func (r *RecordingWriteAPI) Errors() <-chan error { return nil }

// Points returns the points written under name.
func (r *RecordingWriteAPI) Points(name string) []*write.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []*write.Point
	for _, p := range r.points {
		if p.Name() == name {
			ret = append(ret, p)
		}
	}
	return ret
}

var (
	_ api.WriteAPI = (*NopWriteAPI)(nil)
	_ api.WriteAPI = (*RecordingWriteAPI)(nil)
)
