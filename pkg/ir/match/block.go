package match

// Block describes one header + data + footer run of a message.
// A zero duration for HdrMark, HdrSpace, FooterMark or FooterSpace skips that element.
type Block struct {
	HdrMark     uint32
	HdrSpace    uint32
	OneMark     uint32
	OneSpace    uint32
	ZeroMark    uint32
	ZeroSpace   uint32
	FooterMark  uint32
	FooterSpace uint32

	Bits int
	// Last marks the final block of a message. Its FooterSpace is a minimum
	// gap and may be missing from the buffer entirely. Otherwise FooterSpace
	// is the exact separator before the next block and must be present.
	Last     bool
	MSBFirst bool
}

// MinEntries is the number of buffer entries the block needs before any
// comparison is worth attempting. A trailing gap is never required.
func (b Block) MinEntries() int {
	n := 2 * b.Bits
	if b.HdrMark != 0 {
		n++
	}
	if b.HdrSpace != 0 {
		n++
	}
	if b.FooterMark != 0 {
		n++
	}
	if b.FooterSpace != 0 && !b.Last {
		n++
	}
	return n
}

func (m Matcher) run(raw []uint32, b Block, emit func(bit byte)) int {
	if b.Bits < 0 || len(raw) < b.MinEntries() {
		return 0
	}

	offset := 0
	if b.HdrMark != 0 {
		if !m.Mark(raw[offset], b.HdrMark) {
			return 0
		}
		offset++
	}
	if b.HdrSpace != 0 {
		if !m.Space(raw[offset], b.HdrSpace) {
			return 0
		}
		offset++
	}

	for i := 0; i < b.Bits; i++ {
		mark, space := raw[offset], raw[offset+1]
		switch {
		case m.Mark(mark, b.OneMark) && m.Space(space, b.OneSpace):
			emit(1)
		case m.Mark(mark, b.ZeroMark) && m.Space(space, b.ZeroSpace):
			emit(0)
		default:
			return 0
		}
		offset += 2
	}

	if b.FooterMark != 0 {
		if !m.Mark(raw[offset], b.FooterMark) {
			return 0
		}
		offset++
	}

	if b.FooterSpace == 0 {
		return offset
	}
	switch {
	case offset >= len(raw):
		// Receiver timed out before the gap ended; nothing more to consume.
		if !b.Last {
			return 0
		}
	case b.Last:
		if !m.AtLeast(raw[offset], b.FooterSpace) {
			return 0
		}
		offset++
	default:
		if !m.Space(raw[offset], b.FooterSpace) {
			return 0
		}
		offset++
	}
	return offset
}

// Bits matches a block of up to 64 bits starting at raw[0].
// It returns the decoded value and the number of entries consumed, or 0 used on failure.
// LSB-first data is returned with the first received bit in bit 0.
func (m Matcher) Bits(raw []uint32, b Block) (data uint64, used int) {
	if b.Bits > 64 {
		return 0, 0
	}
	n := 0
	used = m.run(raw, b, func(bit byte) {
		if b.MSBFirst {
			data = data<<1 | uint64(bit)
		} else {
			data |= uint64(bit) << n
		}
		n++
	})
	if used == 0 {
		return 0, 0
	}
	return data, used
}

// Bytes matches a block whose bit count is a multiple of 8, writing each
// decoded byte into out in transmission order. Bit order applies within each byte.
// out may be partially written when 0 is returned.
func (m Matcher) Bytes(raw []uint32, b Block, out []byte) (used int) {
	if b.Bits%8 != 0 || len(out) < b.Bits/8 {
		return 0
	}
	n := 0
	return m.run(raw, b, func(bit byte) {
		pos, k := n/8, n%8
		if k == 0 {
			out[pos] = 0
		}
		if b.MSBFirst {
			out[pos] = out[pos]<<1 | bit
		} else {
			out[pos] |= bit << k
		}
		n++
	})
}
