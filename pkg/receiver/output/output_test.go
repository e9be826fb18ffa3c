package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/norasector/irdecode/pkg/config"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/analysis"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/norasector/irdecode/pkg/util"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func jvcRecord() *store.Record {
	res := ir.NewScalarResult(ir.ProtocolJVC, 16, ir.Scalar{Value: 0xC5A3, Address: 0xA3, Command: 0xC5}, false)
	return &store.Record{ID: 7, Time: time.Unix(0, 0), Source: "file:tv.txt", Result: &res, Entries: []uint32{8400, 4200}}
}

func TestParseFormat(t *testing.T) {
	c := qt.New(t)
	f, err := ParseFormat("")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, FormatText)
	f, err = ParseFormat("yaml")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, FormatYAML)
	_, err = ParseFormat("xml")
	c.Assert(err, qt.ErrorMatches, `unknown output format "xml"`)
}

func TestRender(t *testing.T) {
	c := qt.New(t)
	var b bytes.Buffer

	c.Assert(Render(&b, jvcRecord(), FormatText), qt.IsNil)
	c.Assert(b.String(), qt.Equals, "Source    : file:tv.txt\n"+
		"Protocol  : JVC\n"+
		"Code      : 0xC5A3 (16 Bits)\n"+
		"Address   : 0xA3\n"+
		"Command   : 0xC5\n\n")

	b.Reset()
	c.Assert(Render(&b, jvcRecord(), FormatJSON), qt.IsNil)
	c.Assert(b.String(), qt.Contains, `"result":{"protocol":"JVC","bits":16,"value":50595,"address":163,"command":197}`)

	b.Reset()
	c.Assert(Render(&b, jvcRecord(), FormatYAML), qt.IsNil)
	c.Assert(strings.HasPrefix(b.String(), "---\n"), qt.IsTrue)
	c.Assert(b.String(), qt.Contains, "protocol: JVC")

	b.Reset()
	capture := ir.NewCapture(0, 1000, 500, 1000)
	summary := analysis.Summarize(capture, 25)
	unknown := &store.Record{Error: ir.ErrUnknown.Error(), Entries: capture.Window(), Summary: &summary}
	c.Assert(Render(&b, unknown, FormatText), qt.IsNil)
	c.Assert(b.String(), qt.Contains, "Error     : unrecognized signal\n")
	c.Assert(b.String(), qt.Contains, "Entries   : 3\n")
	c.Assert(b.String(), qt.Contains, "Raw Timing[3]:\n")
}

func TestWriterOutputFilters(t *testing.T) {
	c := qt.New(t)
	var buf syncBuffer
	out := NewWriterOutput(&buf, FormatText, []ir.Protocol{ir.ProtocolJVC})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	nec := ir.NewScalarResult(ir.ProtocolNEC, 32, ir.Scalar{}, false)
	out.Receive() <- &store.Record{Result: &nec}
	out.Receive() <- &store.Record{Error: "unrecognized signal"}
	out.Receive() <- jvcRecord()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(buf.String(), "JVC") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	c.Assert(<-done, qt.Equals, context.Canceled)
	c.Assert(buf.String(), qt.Contains, "Protocol  : JVC")
	c.Assert(buf.String(), qt.Not(qt.Contains), "NEC")
	c.Assert(buf.String(), qt.Not(qt.Contains), "unrecognized")
}

func TestFrame(t *testing.T) {
	c := qt.New(t)
	frame, err := Frame(jvcRecord())
	c.Assert(err, qt.IsNil)

	size := binary.LittleEndian.Uint16(frame)
	c.Assert(int(size), qt.Equals, len(frame)-2)

	var msg structpb.Struct
	c.Assert(proto.Unmarshal(frame[2:], &msg), qt.IsNil)
	fields := msg.AsMap()
	c.Assert(fields["protocol"], qt.Equals, "JVC")
	c.Assert(fields["code"], qt.Equals, "0xC5A3")
	c.Assert(fields["address"], qt.Equals, float64(0xA3))
	c.Assert(fields["id"], qt.Equals, float64(7))
	c.Assert(fields["source"], qt.Equals, "file:tv.txt")
	c.Assert(fields["repeat"], qt.Equals, false)
}

func TestUDPOutput(t *testing.T) {
	c := qt.New(t)
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	c.Assert(err, qt.IsNil)
	defer listener.Close()

	metrics := &util.RecordingWriteAPI{}
	port := listener.LocalAddr().(*net.UDPAddr).Port
	out := NewUDPOutput([]config.OutputDestination{{Host: "127.0.0.1", Port: port}}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	out.Receive() <- jvcRecord()

	c.Assert(listener.SetReadDeadline(time.Now().Add(5*time.Second)), qt.IsNil)
	buf := make([]byte, 2048)
	n, _, err := listener.ReadFromUDP(buf)
	c.Assert(err, qt.IsNil)

	want, err := Frame(jvcRecord())
	c.Assert(err, qt.IsNil)
	var got, expected structpb.Struct
	c.Assert(proto.Unmarshal(buf[2:n], &got), qt.IsNil)
	c.Assert(proto.Unmarshal(want[2:], &expected), qt.IsNil)
	c.Assert(got.AsMap(), qt.DeepEquals, expected.AsMap())

	cancel()
	c.Assert(<-done, qt.Equals, context.Canceled)
}
