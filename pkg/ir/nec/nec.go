package nec

import (
	"fmt"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/match"
)

// NEC protocol references
// https://www.sbprojects.net/knowledge/ir/nec.php
// https://techdocs.altium.com/display/FPGA/NEC+Infrared+Transmission+Protocol

const (
	Bits = 32

	Tick                  = 560 // us
	HdrMarkTicks          = 16
	HdrSpaceTicks         = 8
	BitMarkTicks          = 1
	OneSpaceTicks         = 3
	ZeroSpaceTicks        = 1
	RptSpaceTicks         = 4
	MinCommandLengthTicks = 193
	MinGapTicks           = MinCommandLengthTicks - (HdrMarkTicks + HdrSpaceTicks + Bits*(BitMarkTicks+OneSpaceTicks) + BitMarkTicks)
	HdrMark               = HdrMarkTicks * Tick   // 8.96 ms
	HdrSpace              = HdrSpaceTicks * Tick  // 4.48 ms
	BitMark               = BitMarkTicks * Tick   // 560 us
	OneSpace              = OneSpaceTicks * Tick  // 1.68 ms
	ZeroSpace             = ZeroSpaceTicks * Tick // 560 us
	RptSpace              = RptSpaceTicks * Tick  // 2.24 ms
	MinGap                = MinGapTicks * Tick    // 22.4 ms
	ModulationFreqHz      = 38_000

	// RptLength is the number of entries in a repeat code, leading gap included.
	RptLength = 4
	// RepeatValue is reported as the value of a repeat code.
	RepeatValue = ^uint64(0)
)

// Profile holds the reference durations in us.
type Profile struct {
	HdrMark   uint32
	HdrSpace  uint32
	RptSpace  uint32
	BitMark   uint32
	OneSpace  uint32
	ZeroSpace uint32
	MinGap    uint32
}

func DefaultProfile() Profile {
	return Profile{
		HdrMark:   HdrMark,
		HdrSpace:  HdrSpace,
		RptSpace:  RptSpace,
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

func (d *Decoder) Protocol() ir.Protocol { return ir.ProtocolNEC }
func (d *Decoder) DefaultBits() int      { return Bits }

// block matches everything after the header mark.
func (d *Decoder) block(nbits int) match.Block {
	p := &d.profile
	return match.Block{
		HdrSpace:    p.HdrSpace,
		OneMark:     p.BitMark,
		OneSpace:    p.OneSpace,
		ZeroMark:    p.BitMark,
		ZeroSpace:   p.ZeroSpace,
		FooterMark:  p.BitMark,
		FooterSpace: p.MinGap,
		Bits:        nbits,
		Last:        true,
		MSBFirst:    true,
	}
}

func (d *Decoder) Blocks() []match.Block {
	return []match.Block{d.block(Bits)}
}

// Decode decodes a normal, extended or repeat NEC frame.
// Value keeps the transmission order with the first bit sent most significant.
func (d *Decoder) Decode(c *ir.Capture, opts ir.Options) (ir.Result, error) {
	nbits := opts.BitsOr(Bits)
	if c.Len() < 2*nbits+ir.Header+ir.Footer-1 && c.Len() != RptLength {
		return ir.Result{}, fmt.Errorf("nec: %d entries: %w", c.Len(), ir.ErrTooShort)
	}
	if opts.Strict && nbits != Bits {
		return ir.Result{}, fmt.Errorf("nec: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if nbits <= 0 || nbits > 64 {
		return ir.Result{}, fmt.Errorf("nec: %d bits: %w", nbits, ir.ErrBitCount)
	}

	m := opts.Matcher(c)
	raw := c.Window()
	if len(raw) == 0 || !m.Mark(raw[0], d.profile.HdrMark) {
		return ir.Result{}, fmt.Errorf("nec: header mark: %w", ir.ErrTiming)
	}

	if c.Len() == RptLength {
		if len(raw) >= 3 && m.Space(raw[1], d.profile.RptSpace) && m.Mark(raw[2], d.profile.BitMark) {
			return ir.NewScalarResult(ir.ProtocolNEC, 0, ir.Scalar{Value: RepeatValue}, true), nil
		}
		return ir.Result{}, fmt.Errorf("nec: repeat code: %w", ir.ErrTiming)
	}

	data, used := m.Bits(raw[1:], d.block(nbits))
	if used == 0 {
		return ir.Result{}, fmt.Errorf("nec: data: %w", ir.ErrTiming)
	}

	s := ir.Scalar{Value: data}
	if nbits == Bits {
		// Fields are sent LSB first; reversing the whole frame gives the
		// little-endian raw layout of address, inverse or high address,
		// command and inverse command.
		valid, address, command := SplitRawNECData(uint32(ir.ReverseBits(data, Bits)))
		if !valid {
			if opts.Strict {
				return ir.Result{}, fmt.Errorf("nec: command 0x%02x inverse 0x%02x: %w",
					(data>>8)&0xff, data&0xff, ir.ErrChecksum)
			}
			command = 0
		}
		s.Address, s.Command = uint32(address), uint32(command)
	}
	return ir.NewScalarResult(ir.ProtocolNEC, nbits, s, false), nil
}

// SplitRawNECData breaks a little-endian raw NEC code into its address and
// command, reporting whether the inverse command matched.
func SplitRawNECData(data uint32) (valid bool, address uint16, command byte) {
	valid = true
	addrLow := byte(data & 0xff)
	addrHigh := byte((data & 0xff00) >> 8)
	command = byte((data & 0xff0000) >> 16)
	invCmd := byte((data & 0xff000000) >> 24)
	address = MakeNECAddress(addrLow, addrHigh)
	if command != ^invCmd {
		valid = false
	}
	return
}

// MakeRawNECData assembles a little-endian raw NEC code.
func MakeRawNECData(address uint16, command byte) uint32 {
	addrLow, addrHigh := SplitNECAddress(address)
	return (uint32(^command) << 24) | (uint32(command) << 16) | (uint32(addrHigh) << 8) | uint32(addrLow)
}

// SplitNECAddress splits an address into the two address bytes sent.
// 8-bit addresses are followed by their inverse.
func SplitNECAddress(address uint16) (addrLow, addrHigh byte) {
	addrLow = byte(address & 0xff)
	addrHigh = byte((address & 0xff00) >> 8)
	if addrHigh == 0 {
		addrHigh = ^addrLow
	}
	return addrLow, addrHigh
}

// MakeNECAddress joins the two address bytes sent. A high byte equal to the
// inverse of the low byte means an 8-bit address.
func MakeNECAddress(addrLow, addrHigh byte) uint16 {
	if addrHigh == ^addrLow {
		return uint16(addrLow)
	}
	return (uint16(addrHigh) << 8) | uint16(addrLow)
}

// Encode returns the frame value Decode reports for address and command.
func Encode(address uint16, command byte) uint64 {
	return ir.ReverseBits(uint64(MakeRawNECData(address, command)), Bits)
}
