package protocols

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/irtest"
	"github.com/norasector/irdecode/pkg/ir/jvc"
	"github.com/norasector/irdecode/pkg/ir/nec"
	"github.com/norasector/irdecode/pkg/ir/samsung"
	"github.com/rs/zerolog"
)

func TestProfilesDoNotOverlap(t *testing.T) {
	c := qt.New(t)
	m := ir.Options{}.Matcher(&ir.Capture{})
	for _, d := range Decoders() {
		p, ok := d.(ir.Profiled)
		c.Assert(ok, qt.IsTrue, qt.Commentf("%s", d.Protocol()))
		for i, b := range p.Blocks() {
			c.Assert(m.Overlaps(b), qt.IsFalse, qt.Commentf("%s block %d", d.Protocol(), i))
		}
	}
}

func TestDefaultOrder(t *testing.T) {
	c := qt.New(t)
	reg := Default(zerolog.Nop())
	c.Assert(reg.Protocols(), qt.DeepEquals, []ir.Protocol{
		ir.ProtocolNEC,
		ir.ProtocolSamsung,
		ir.ProtocolSamsung36,
		ir.ProtocolSamsungAC,
		ir.ProtocolJVC,
	})
}

func TestDispatch(t *testing.T) {
	c := qt.New(t)
	reg := Default(zerolog.Nop())

	jvcBlock := jvc.NewDecoder().Blocks()[0]
	s36 := samsung.NewDecoder36().Blocks()
	acState := []byte{
		0x02, 0x92, 0x0F, 0x00, 0x00, 0x00, 0xF0,
		0x01, 0xE2, 0xFE, 0x71, 0x40, 0x11, 0xF0,
	}
	ac := irtest.New().Pair(samsung.ACHdrMark, samsung.ACHdrSpace)
	for pos := 0; pos < len(acState); pos += samsung.ACSectionLength {
		ac.Bytes(samsung.NewACDecoder().Blocks()[0], acState[pos:pos+samsung.ACSectionLength])
	}

	necFrame := irtest.New().Mark(nec.HdrMark).Bits(nec.NewDecoder().Blocks()[0], nec.Encode(0x04, 0x08))

	tests := []struct {
		name    string
		capture *ir.Capture
		want    ir.Protocol
		repeat  bool
	}{
		{"nec", necFrame.Capture(), ir.ProtocolNEC, false},
		{"nec repeat", irtest.New().Pair(nec.HdrMark, nec.RptSpace).Mark(nec.BitMark).Capture(), ir.ProtocolNEC, true},
		{"samsung", irtest.New().Bits(samsung.NewDecoder().Blocks()[0], 0xE0E040BF).Capture(), ir.ProtocolSamsung, false},
		{"samsung36", irtest.New().Bits(s36[0], 0x0400).Bits(s36[1], 0xE00FF).Capture(), ir.ProtocolSamsung36, false},
		{"samsung ac", ac.Capture(), ir.ProtocolSamsungAC, false},
		{"jvc", irtest.New().Pair(jvc.HdrMark, jvc.HdrSpace).Bits(jvcBlock, 0xC5A3).Capture(), ir.ProtocolJVC, false},
		{"jvc repeat", irtest.New().Bits(jvcBlock, 0xC5A3).Capture(), ir.ProtocolJVC, true},
	}
	for _, tc := range tests {
		c.Run(tc.name, func(c *qt.C) {
			res, err := reg.Decode(tc.capture)
			c.Assert(err, qt.IsNil)
			c.Assert(res.Protocol, qt.Equals, tc.want)
			c.Assert(res.Repeat, qt.Equals, tc.repeat)
		})
	}
}

func TestDispatchUnknown(t *testing.T) {
	c := qt.New(t)
	reg := Default(zerolog.Nop())

	_, err := reg.Decode(ir.NewCapture(100000, 1000, 1000, 1000, 1000))
	c.Assert(err, qt.ErrorIs, ir.ErrUnknown)

	_, err = reg.Decode(ir.NewCapture())
	c.Assert(err, qt.ErrorIs, ir.ErrUnknown)
}

func TestDispatchDisabled(t *testing.T) {
	c := qt.New(t)
	reg := Default(zerolog.Nop())
	c.Assert(reg.Configure(ir.ProtocolSamsung, ir.Options{Strict: true}, false), qt.IsNil)

	capture := irtest.New().Bits(samsung.NewDecoder().Blocks()[0], 0xE0E040BF).Capture()
	_, err := reg.Decode(capture)
	c.Assert(err, qt.ErrorIs, ir.ErrUnknown)

	res, err := reg.DecodeAs(ir.ProtocolSamsung, capture, ir.Options{Strict: true})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Protocol, qt.Equals, ir.ProtocolSamsung)
}
