package util

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	influxdb2 "github.com/influxdata/influxdb-client-go"
)

func TestTimeDecode(t *testing.T) {
	c := qt.New(t)
	boom := errors.New("boom")
	us, err := TimeDecode(func() error {
		time.Sleep(2 * time.Millisecond)
		return boom
	})
	c.Assert(err, qt.Equals, boom)
	c.Assert(us >= 2000, qt.IsTrue)
}

func TestRecordingWriteAPI(t *testing.T) {
	c := qt.New(t)
	r := &RecordingWriteAPI{}
	r.WritePoint(influxdb2.NewPoint("ir.decode", map[string]string{"protocol": "NEC"}, map[string]interface{}{"ok": 1}, time.Now()))
	r.WritePoint(influxdb2.NewPoint("ir.output", nil, map[string]interface{}{"skipped_outputs": 0}, time.Now()))
	r.WriteRecord("ir.decode ok=1")

	c.Assert(r.Points("ir.decode"), qt.HasLen, 1)
	c.Assert(r.Points("ir.decode")[0].TagList()[0].Value, qt.Equals, "NEC")
	c.Assert(r.Points("missing"), qt.HasLen, 0)
}
