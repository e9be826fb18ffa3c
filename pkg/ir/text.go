package ir

import (
	"fmt"
	"strings"
)

// ReverseBits reverses the order of the n least significant bits of v.
// Bits above n are kept in place.
func ReverseBits(v uint64, n int) uint64 {
	if n <= 1 {
		return v
	}
	if n > 64 {
		n = 64
	}
	var out uint64
	for i := 0; i < n; i++ {
		out = out<<1 | v&1
		v >>= 1
	}
	if n == 64 {
		return out
	}
	return v<<n | out
}

// Hex renders the payload the way remotes are usually catalogued:
// 0x-prefixed value for scalar protocols, a byte list for state protocols.
func (r Result) Hex() string {
	if state, ok := r.State(); ok {
		parts := make([]string, len(state))
		for i, b := range state {
			parts[i] = fmt.Sprintf("0x%02X", b)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("0x%X", r.scalar.Value)
}

func (r Result) String() string {
	var sb strings.Builder
	proto := string(r.Protocol)
	if r.Repeat {
		proto += " (Repeat)"
	}
	fmt.Fprintf(&sb, "Protocol  : %s\n", proto)
	fmt.Fprintf(&sb, "Code      : %s (%d Bits)\n", r.Hex(), r.Bits)
	if s, ok := r.Scalar(); ok {
		fmt.Fprintf(&sb, "Address   : 0x%X\n", s.Address)
		fmt.Fprintf(&sb, "Command   : 0x%X\n", s.Command)
	}
	return sb.String()
}

// TimingInfo dumps the capture in microseconds, marks prefixed with '+'
// and spaces with '-', eight entries per line.
func (c *Capture) TimingInfo() string {
	tick := c.Tick
	if tick == 0 {
		tick = 1
	}
	window := c.Window()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Raw Timing[%d]:\n", len(window))
	for i, d := range window {
		sign := "-"
		if i%2 == 0 {
			sign = "   +"
		}
		fmt.Fprintf(&sb, "%s%6d", sign, uint64(d)*uint64(tick))
		if i < len(window)-1 {
			sb.WriteString(", ")
		}
		if (i+1)%8 == 0 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	return sb.String()
}
