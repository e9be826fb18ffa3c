package capture

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/norasector/irdecode/pkg/ir"
)

func TestParse(t *testing.T) {
	c := qt.New(t)
	want := []uint32{0, 9000, 4500, 560, 560}

	tests := []struct {
		name string
		text string
	}{
		{"commas", "9000, 4500, 560, 560"},
		{"spaces", "9000 4500\n560\t560\n"},
		{"c array", "uint16_t rawData[4] = {9000, 4500, 560, 560};  // NEC"},
		{"c array multiline", "uint16_t rawData[4] = {\n  9000, 4500,\n  560, 560\n};"},
		{"bare braces", "{9000, 4500, 560, 560}"},
		{"timing dump", "Raw Timing[4]:\n   +  9000, -  4500,    +   560, -   560\n"},
		{"signed", "+9000 -4500 +560 -560"},
		{"json array", "[9000, 4500, 560, 560]"},
		{"json pairs", `{"header": {"mark": 9000, "space": 4500}, "raw-pulses": [{"mark": 560, "space": 560}]}`},
	}
	for _, tc := range tests {
		c.Run(tc.name, func(c *qt.C) {
			got, err := Parse(tc.text)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, want)
		})
	}
}

func TestParseTimingInfo(t *testing.T) {
	c := qt.New(t)
	capture := ir.NewCapture(100000, 9000, 4500, 560, 1690, 560, 560, 560, 1690, 560, 40000)
	got, err := Parse(capture.TimingInfo())
	c.Assert(err, qt.IsNil)
	c.Assert(got[1:], qt.DeepEquals, capture.Window())
}

func TestParseJSONFinalMark(t *testing.T) {
	c := qt.New(t)
	got, err := Parse(`{"raw-pulses": [{"mark": 560.4, "space": 1690}, {"mark": 560}]}`)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []uint32{0, 560, 1690, 560})
}

func TestParseErrors(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		text string
		want string
	}{
		{"", ErrEmpty.Error()},
		{"Raw Timing[0]:\n", ErrEmpty.Error()},
		{"9000, abc", `entry 1: .*invalid syntax`},
		{"9000, 4500, -1", `entry 2: sign - out of sequence`},
		{"-9000 +4500", `entry 0: sign - out of sequence`},
		{"+9000 -", `entry 1: dangling -`},
		{"int x[] = {1, 2", `unterminated array`},
		{"[1, -2]", `error decoding duration array: .*`},
		{`{"raw-pulses": [{"mark": -5, "space": 1}]}`, `pair 0 out of range`},
		{"99999999999", `entry 0: .*out of range`},
	}
	for _, tc := range tests {
		_, err := Parse(tc.text)
		c.Assert(err, qt.ErrorMatches, tc.want, qt.Commentf("%q", tc.text))
	}
}

func TestSplit(t *testing.T) {
	c := qt.New(t)
	in := "# living room\n9000, 4500\n560, 560\n\n\n\nRaw Timing[2]:\n + 560, - 560\n# trailing\n100 200\n"
	got, err := Split(strings.NewReader(in))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{
		"9000, 4500\n560, 560\n",
		"Raw Timing[2]:\n + 560, - 560\n",
		"100 200\n",
	})

	got, err = Split(strings.NewReader("\n\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}
