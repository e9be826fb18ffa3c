package samsung

import (
	"fmt"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/match"
)

// Samsung protocol references
// http://elektrolab.wz.cz/katalog/samsung_protocol.pdf
// Samsung36 is used by some Blu-ray remotes (ak59-00167a).

const (
	Bits   = 32
	Bits36 = 36

	Tick                  = 560 // us
	HdrMarkTicks          = 8
	HdrSpaceTicks         = 8
	BitMarkTicks          = 1
	OneSpaceTicks         = 3
	ZeroSpaceTicks        = 1
	RptSpaceTicks         = 4
	MinMessageLengthTicks = 193
	MinGapTicks           = MinMessageLengthTicks - (HdrMarkTicks + HdrSpaceTicks + Bits*(BitMarkTicks+OneSpaceTicks) + BitMarkTicks)
	HdrMark               = HdrMarkTicks * Tick
	HdrSpace              = HdrSpaceTicks * Tick
	BitMark               = BitMarkTicks * Tick
	OneSpace              = OneSpaceTicks * Tick
	ZeroSpace             = ZeroSpaceTicks * Tick
	RptSpace              = RptSpaceTicks * Tick
	MinMessageLength      = MinMessageLengthTicks * Tick
	MinGap                = MinGapTicks * Tick // 26.88 ms
	ModulationFreqHz      = 38_000

	firstBlockBits   = 16
	maxSamsung36Bits = firstBlockBits + 32
)

// Profile holds the reference durations in us shared by the 32 and 36 bit variants.
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

func (p Profile) block(nbits int, hdr bool, last bool) match.Block {
	b := match.Block{
		OneMark:    p.BitMark,
		OneSpace:   p.OneSpace,
		ZeroMark:   p.BitMark,
		ZeroSpace:  p.ZeroSpace,
		FooterMark: p.BitMark,
		Bits:       nbits,
		Last:       last,
		MSBFirst:   true,
	}
	if hdr {
		b.HdrMark, b.HdrSpace = p.HdrMark, p.HdrSpace
	}
	if last {
		b.FooterSpace = p.MinGap
	} else {
		// The header space doubles as the separator between blocks.
		b.FooterSpace = p.HdrSpace
	}
	return b
}

// Decoder decodes 32-bit Samsung frames: customer code twice, then the
// command followed by its inverse.
type Decoder struct {
	profile Profile
}

func NewDecoder() *Decoder {
	return NewDecoderWithProfile(DefaultProfile())
}

func NewDecoderWithProfile(p Profile) *Decoder {
	return &Decoder{profile: p}
}

func (d *Decoder) Protocol() ir.Protocol { return ir.ProtocolSamsung }
func (d *Decoder) DefaultBits() int      { return Bits }

func (d *Decoder) Blocks() []match.Block {
	return []match.Block{d.profile.block(Bits, true, true)}
}

func (d *Decoder) Decode(c *ir.Capture, opts ir.Options) (ir.Result, error) {
	nbits := opts.BitsOr(Bits)
	if opts.Strict && nbits != Bits {
		return ir.Result{}, fmt.Errorf("samsung: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if nbits <= 0 || nbits > 64 {
		return ir.Result{}, fmt.Errorf("samsung: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if c.Len() < 2*nbits+ir.Header+ir.Footer-1 {
		return ir.Result{}, fmt.Errorf("samsung: %d entries: %w", c.Len(), ir.ErrTooShort)
	}

	m := opts.Matcher(c)
	data, used := m.Bits(c.Window(), d.profile.block(nbits, true, true))
	if used == 0 {
		return ir.Result{}, fmt.Errorf("samsung: data: %w", ir.ErrTiming)
	}

	// The customer code is the first byte sent and is repeated in the second.
	address := (data >> 24) & 0xff
	if opts.Strict && address != (data>>16)&0xff {
		return ir.Result{}, fmt.Errorf("samsung: customer code 0x%02x repeated as 0x%02x: %w",
			address, (data>>16)&0xff, ir.ErrChecksum)
	}
	command := (data >> 8) & 0xff
	if opts.Strict && command != (data&0xff)^0xff {
		return ir.Result{}, fmt.Errorf("samsung: command 0x%02x inverse 0x%02x: %w",
			command, data&0xff, ir.ErrChecksum)
	}

	// Fields are sent LSB first.
	return ir.NewScalarResult(ir.ProtocolSamsung, nbits, ir.Scalar{
		Value:   data,
		Address: uint32(ir.ReverseBits(address, 8)),
		Command: uint32(ir.ReverseBits(command, 8)),
	}, false), nil
}

// Decoder36 decodes the Samsung36 variant: a 16-bit block closed by a
// header-length space, then a variable-width second block.
type Decoder36 struct {
	profile Profile
}

func NewDecoder36() *Decoder36 {
	return NewDecoder36WithProfile(DefaultProfile())
}

func NewDecoder36WithProfile(p Profile) *Decoder36 {
	return &Decoder36{profile: p}
}

func (d *Decoder36) Protocol() ir.Protocol { return ir.ProtocolSamsung36 }
func (d *Decoder36) DefaultBits() int      { return Bits36 }

func (d *Decoder36) Blocks() []match.Block {
	return []match.Block{
		d.profile.block(firstBlockBits, true, false),
		d.profile.block(Bits36-firstBlockBits, false, true),
	}
}

// Decode matches both blocks and joins them; the address is the first
// block and the command the second.
func (d *Decoder36) Decode(c *ir.Capture, opts ir.Options) (ir.Result, error) {
	nbits := opts.BitsOr(Bits36)
	if nbits <= firstBlockBits || nbits > maxSamsung36Bits {
		return ir.Result{}, fmt.Errorf("samsung36: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if opts.Strict && nbits != Bits36 {
		return ir.Result{}, fmt.Errorf("samsung36: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if c.Len() < 2*nbits+ir.Header+ir.Footer*2-1 {
		return ir.Result{}, fmt.Errorf("samsung36: %d entries: %w", c.Len(), ir.ErrTooShort)
	}

	m := opts.Matcher(c)
	raw := c.Window()

	first, used := m.Bits(raw, d.profile.block(firstBlockBits, true, false))
	if used == 0 {
		return ir.Result{}, fmt.Errorf("samsung36: first block: %w", ir.ErrTiming)
	}

	width := nbits - firstBlockBits
	second, used := m.Bits(raw[used:], d.profile.block(width, false, true))
	if used == 0 {
		return ir.Result{}, fmt.Errorf("samsung36: second block: %w", ir.ErrTiming)
	}

	value := first<<width | second
	return ir.NewScalarResult(ir.ProtocolSamsung36, nbits, ir.Scalar{
		Value:   value,
		Address: uint32(value >> width),
		Command: uint32(value & (1<<width - 1)),
	}, false), nil
}
