package jvc

import (
	"fmt"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/match"
)

// JVC protocol references
// http://www.sbprojects.com/knowledge/ir/jvc.php
// Repeat codes are the same frame without the header.

const (
	Bits = 16

	Tick             = 75 // us
	HdrMarkTicks     = 112
	HdrSpaceTicks    = 56
	BitMarkTicks     = 7
	OneSpaceTicks    = 23
	ZeroSpaceTicks   = 7
	RptLengthTicks   = 800
	MinGapTicks      = RptLengthTicks - (HdrMarkTicks + HdrSpaceTicks + Bits*(BitMarkTicks+OneSpaceTicks) + BitMarkTicks)
	HdrMark          = HdrMarkTicks * Tick   // 8.4 ms
	HdrSpace         = HdrSpaceTicks * Tick  // 4.2 ms
	BitMark          = BitMarkTicks * Tick   // 525 us
	OneSpace         = OneSpaceTicks * Tick  // 1.725 ms
	ZeroSpace        = ZeroSpaceTicks * Tick // 525 us
	MinGap           = MinGapTicks * Tick    // 10.875 ms
	RptLength        = RptLengthTicks * Tick // 60 ms
	ModulationFreqHz = 38_000
)

// Profile holds the reference durations in us.
type Profile struct {
	HdrMark   uint32
	HdrSpace  uint32
	BitMark   uint32
	OneSpace  uint32
	ZeroSpace uint32
	MinGap    uint32
}

func DefaultProfile() Profile {
	return Profile{
		HdrMark:   HdrMark,
		HdrSpace:  HdrSpace,
		BitMark:   BitMark,
		OneSpace:  OneSpace,
		ZeroSpace: ZeroSpace,
		MinGap:    MinGap,
	}
}

type Decoder struct {
	profile Profile
}

func NewDecoder() *Decoder {
	return NewDecoderWithProfile(DefaultProfile())
}

func NewDecoderWithProfile(p Profile) *Decoder {
	return &Decoder{profile: p}
}

func (d *Decoder) Protocol() ir.Protocol { return ir.ProtocolJVC }
func (d *Decoder) DefaultBits() int      { return Bits }

func (d *Decoder) block(nbits int) match.Block {
	p := &d.profile
	return match.Block{
		OneMark:     p.BitMark,
		OneSpace:    p.OneSpace,
		ZeroMark:    p.BitMark,
		ZeroSpace:   p.ZeroSpace,
		FooterMark:  p.BitMark,
		FooterSpace: p.MinGap,
		Bits:        nbits,
		Last:        true,
		MSBFirst:    false,
	}
}

func (d *Decoder) Blocks() []match.Block {
	return []match.Block{d.block(Bits)}
}

// Decode decodes a JVC frame, with or without its header.
// A frame without a header is reported as a repeat.
func (d *Decoder) Decode(c *ir.Capture, opts ir.Options) (ir.Result, error) {
	nbits := opts.BitsOr(Bits)
	if opts.Strict && nbits != Bits {
		return ir.Result{}, fmt.Errorf("jvc: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if nbits <= 0 || nbits > 64 {
		return ir.Result{}, fmt.Errorf("jvc: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if c.Len() < 2*nbits+ir.Footer-1 {
		return ir.Result{}, fmt.Errorf("jvc: %d entries: %w", c.Len(), ir.ErrTooShort)
	}

	m := opts.Matcher(c)
	raw := c.Window()
	offset := 0
	repeat := true

	// The header is optional; repeat codes omit it.
	if len(raw) > 0 && m.Mark(raw[0], d.profile.HdrMark) {
		repeat = false
		if c.Len() < 2*nbits+ir.Header+ir.Footer {
			return ir.Result{}, fmt.Errorf("jvc: %d entries with header: %w", c.Len(), ir.ErrTooShort)
		}
		if !m.SpaceAt(raw, 1, d.profile.HdrSpace) {
			return ir.Result{}, fmt.Errorf("jvc: header space: %w", ir.ErrTiming)
		}
		offset = 2
	}
	if offset > len(raw) {
		return ir.Result{}, fmt.Errorf("jvc: %w", ir.ErrTooShort)
	}

	data, used := m.Bits(raw[offset:], d.block(nbits))
	if used == 0 {
		return ir.Result{}, fmt.Errorf("jvc: data: %w", ir.ErrTiming)
	}

	s := ir.Scalar{Value: byteOrder(data, nbits)}
	// The first byte sent is the address, the second the command. Each is
	// reversed within its own byte to recover the transmitted field value.
	if nbits < 8 {
		s.Address = uint32(ir.ReverseBits(data, nbits))
	} else {
		s.Address = uint32(ir.ReverseBits(data&0xff, 8))
		s.Command = uint32(ir.ReverseBits((data>>8)&0xff, 8))
	}
	return ir.NewScalarResult(ir.ProtocolJVC, nbits, s, repeat), nil
}

// byteOrder regroups LSB-first accumulated data so the first byte received
// is the most significant. A trailing partial byte stays least significant.
func byteOrder(data uint64, nbits int) uint64 {
	var value uint64
	for shift := 0; shift < nbits; shift += 8 {
		width := nbits - shift
		if width > 8 {
			width = 8
		}
		group := (data >> shift) & (1<<width - 1)
		value = value<<width | group
	}
	return value
}
