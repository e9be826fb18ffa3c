// Package irtest synthesises tick-exact captures for decoder tests.
package irtest

import (
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/match"
)

// LeadingGap is the idle period recorded before the first mark.
const LeadingGap = 100_000

// Builder appends marks and spaces in microseconds. Marks and spaces are
// written as given; no excess is applied.
type Builder struct {
	entries []uint32
}

func New() *Builder {
	return &Builder{entries: []uint32{LeadingGap}}
}

func (b *Builder) Mark(us uint32) *Builder {
	b.entries = append(b.entries, us)
	return b
}

func (b *Builder) Space(us uint32) *Builder {
	b.entries = append(b.entries, us)
	return b
}

// Pair appends a mark followed by a space.
func (b *Builder) Pair(mark, space uint32) *Builder {
	return b.Mark(mark).Space(space)
}

func (b *Builder) header(blk match.Block) {
	if blk.HdrMark != 0 {
		b.Mark(blk.HdrMark)
	}
	if blk.HdrSpace != 0 {
		b.Space(blk.HdrSpace)
	}
}

func (b *Builder) bit(blk match.Block, one bool) {
	if one {
		b.Pair(blk.OneMark, blk.OneSpace)
	} else {
		b.Pair(blk.ZeroMark, blk.ZeroSpace)
	}
}

func (b *Builder) footer(blk match.Block) {
	if blk.FooterMark != 0 {
		b.Mark(blk.FooterMark)
	}
	if blk.FooterSpace != 0 {
		b.Space(blk.FooterSpace)
	}
}

// Bits appends blk carrying the low blk.Bits bits of data. For LSB-first
// blocks bit 0 is sent first, for MSB-first blocks the top bit is.
func (b *Builder) Bits(blk match.Block, data uint64) *Builder {
	b.header(blk)
	for i := 0; i < blk.Bits; i++ {
		shift := i
		if blk.MSBFirst {
			shift = blk.Bits - 1 - i
		}
		b.bit(blk, data>>shift&1 == 1)
	}
	b.footer(blk)
	return b
}

// Wire appends blk carrying bits in the exact order given.
func (b *Builder) Wire(blk match.Block, bits ...byte) *Builder {
	b.header(blk)
	for _, bit := range bits {
		b.bit(blk, bit != 0)
	}
	b.footer(blk)
	return b
}

// Bytes appends blk carrying data, bit order applied within each byte.
func (b *Builder) Bytes(blk match.Block, data []byte) *Builder {
	b.header(blk)
	for _, v := range data {
		for i := 0; i < 8; i++ {
			shift := i
			if blk.MSBFirst {
				shift = 7 - i
			}
			b.bit(blk, v>>shift&1 == 1)
		}
	}
	b.footer(blk)
	return b
}

// Trim drops the final n entries, as when the receiver times out before a gap ends.
func (b *Builder) Trim(n int) *Builder {
	if n > len(b.entries)-1 {
		n = len(b.entries) - 1
	}
	b.entries = b.entries[:len(b.entries)-n]
	return b
}

// Entries returns a copy of the entries written so far.
func (b *Builder) Entries() []uint32 {
	out := make([]uint32, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Builder) Capture() *ir.Capture {
	return ir.NewCapture(b.Entries()...)
}

// Scale converts microsecond entries into ticks of tick us, rounding down.
func Scale(c *ir.Capture, tick uint32) *ir.Capture {
	out := &ir.Capture{
		Entries:     make([]uint32, len(c.Entries)),
		StartOffset: c.StartOffset,
		Tick:        tick,
		Timeout:     c.Timeout,
	}
	for i, e := range c.Entries {
		out.Entries[i] = e / tick
	}
	return out
}
