package samsung

import (
	"fmt"
	"math/bits"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/match"
)

// Samsung A/C messages are a short message header followed by 7 byte
// sections, each with its own header.
// https://github.com/crankyoldgit/IRremoteESP8266/issues/505

const (
	ACStateLength         = 14
	ACExtendedStateLength = 21
	ACBits                = ACStateLength * 8
	ACExtendedBits        = ACExtendedStateLength * 8
	ACSectionLength       = 7

	ACHdrMark      = 690
	ACHdrSpace     = 17844
	ACSectionMark  = 3086
	ACSectionSpace = 8864
	ACSectionGap   = 2886
	ACBitMark      = 586
	ACOneSpace     = 1432
	ACZeroSpace    = 436

	ACSignature0 = 0x02
	ACSignature2 = 0x0F
)

// ACProfile holds the reference durations in us.
type ACProfile struct {
	HdrMark      uint32
	HdrSpace     uint32
	SectionMark  uint32
	SectionSpace uint32
	SectionGap   uint32
	BitMark      uint32
	OneSpace     uint32
	ZeroSpace    uint32
	// MSBFirst selects the bit order within each state byte.
	MSBFirst bool
}

func DefaultACProfile() ACProfile {
	return ACProfile{
		HdrMark:      ACHdrMark,
		HdrSpace:     ACHdrSpace,
		SectionMark:  ACSectionMark,
		SectionSpace: ACSectionSpace,
		SectionGap:   ACSectionGap,
		BitMark:      ACBitMark,
		OneSpace:     ACOneSpace,
		ZeroSpace:    ACZeroSpace,
		MSBFirst:     true,
	}
}

func (p ACProfile) section(last bool) match.Block {
	return match.Block{
		HdrMark:     p.SectionMark,
		HdrSpace:    p.SectionSpace,
		OneMark:     p.BitMark,
		OneSpace:    p.OneSpace,
		ZeroMark:    p.BitMark,
		ZeroSpace:   p.ZeroSpace,
		FooterMark:  p.BitMark,
		FooterSpace: p.SectionGap,
		Bits:        ACSectionLength * 8,
		Last:        last,
		MSBFirst:    p.MSBFirst,
	}
}

type ACDecoder struct {
	profile ACProfile
}

func NewACDecoder() *ACDecoder {
	return NewACDecoderWithProfile(DefaultACProfile())
}

func NewACDecoderWithProfile(p ACProfile) *ACDecoder {
	return &ACDecoder{profile: p}
}

func (d *ACDecoder) Protocol() ir.Protocol { return ir.ProtocolSamsungAC }
func (d *ACDecoder) DefaultBits() int      { return ACBits }

func (d *ACDecoder) Blocks() []match.Block {
	return []match.Block{d.profile.section(false)}
}

// Decode decodes a 14 or 21 byte A/C state. The signature bytes are always
// checked, the checksums only in strict mode.
func (d *ACDecoder) Decode(c *ir.Capture, opts ir.Options) (ir.Result, error) {
	nbits := opts.BitsOr(ACBits)
	if nbits != ACBits && nbits != ACExtendedBits {
		return ir.Result{}, fmt.Errorf("samsung_ac: %d bits: %w", nbits, ir.ErrBitCount)
	}
	if c.Len() < 2*nbits+ir.Header*3+ir.Footer*2-1 {
		return ir.Result{}, fmt.Errorf("samsung_ac: %d entries: %w", c.Len(), ir.ErrTooShort)
	}

	m := opts.Matcher(c)
	raw := c.Window()
	if len(raw) < 2 {
		return ir.Result{}, fmt.Errorf("samsung_ac: %w", ir.ErrTooShort)
	}
	if !m.Mark(raw[0], d.profile.HdrMark) {
		return ir.Result{}, fmt.Errorf("samsung_ac: header mark: %w", ir.ErrTiming)
	}
	if !m.Space(raw[1], d.profile.HdrSpace) {
		return ir.Result{}, fmt.Errorf("samsung_ac: header space: %w", ir.ErrTiming)
	}
	offset := 2

	// Sections are matched without mark excess.
	sm := m
	sm.Excess = 0

	nbytes := nbits / 8
	state := make([]byte, nbytes)
	for pos := 0; pos+ACSectionLength <= nbytes; pos += ACSectionLength {
		last := pos+ACSectionLength >= nbytes
		used := sm.Bytes(raw[offset:], d.profile.section(last), state[pos:pos+ACSectionLength])
		if used == 0 {
			return ir.Result{}, fmt.Errorf("samsung_ac: section %d: %w", pos/ACSectionLength, ir.ErrTiming)
		}
		offset += used
	}

	if state[0] != ACSignature0 || state[2] != ACSignature2 {
		return ir.Result{}, fmt.Errorf("samsung_ac: signature 0x%02x 0x%02x: %w", state[0], state[2], ir.ErrSignature)
	}
	if opts.Strict && !ValidChecksum(state) {
		return ir.Result{}, fmt.Errorf("samsung_ac: %w", ir.ErrChecksum)
	}

	return ir.NewStateResult(ir.ProtocolSamsungAC, nbits, state), nil
}

// CalcChecksum computes the checksum nibble of the section ending at
// state[length-1]. It returns 255 when length is shorter than a section.
func CalcChecksum(state []byte, length int) byte {
	if length < ACSectionLength || length > len(state) {
		return 255
	}
	sum := bits.OnesCount8(state[length-7])
	sum -= bits.OnesCount8(state[length-6] & 0x0F)
	sum += bits.OnesCount8(state[length-5] >> 1)
	for _, b := range state[length-4 : length-1] {
		sum += bits.OnesCount8(b)
	}
	return byte(28-sum) & 0x0F
}

// ValidChecksum checks the checksum nibbles of the first and final sections.
// States shorter than a standard message have nothing to check.
func ValidChecksum(state []byte) bool {
	length := len(state)
	if length < ACStateLength {
		return true
	}
	offset := 0
	if length >= ACExtendedStateLength {
		offset = 7
	}
	return state[length-6]>>4 == CalcChecksum(state, length) &&
		state[length-(13+offset)]>>4 == CalcChecksum(state, length-(7+offset))
}

// UpdateChecksum writes the checksum nibble of every section in place.
func UpdateChecksum(state []byte) {
	for end := ACSectionLength; end <= len(state); end += ACSectionLength {
		state[end-6] = CalcChecksum(state, end)<<4 | state[end-6]&0x0F
	}
}
