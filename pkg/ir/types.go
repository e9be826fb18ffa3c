package ir

import (
	"fmt"
	"strings"

	"github.com/norasector/irdecode/pkg/ir/match"
)

// Protocol identifies an infrared encoding.
type Protocol string

const (
	ProtocolUnknown   Protocol = "UNKNOWN"
	ProtocolNEC       Protocol = "NEC"
	ProtocolJVC       Protocol = "JVC"
	ProtocolSamsung   Protocol = "SAMSUNG"
	ProtocolSamsung36 Protocol = "SAMSUNG36"
	ProtocolSamsungAC Protocol = "SAMSUNG_AC"
)

// stateProtocols carry a byte state instead of a scalar value.
var stateProtocols = map[Protocol]struct{}{
	ProtocolSamsungAC: {},
}

var knownProtocols = []Protocol{
	ProtocolNEC,
	ProtocolJVC,
	ProtocolSamsung,
	ProtocolSamsung36,
	ProtocolSamsungAC,
}

// HasState reports whether results for p carry a byte state.
func (p Protocol) HasState() bool {
	_, ok := stateProtocols[p]
	return ok
}

func (p Protocol) String() string {
	return string(p)
}

// ParseProtocol accepts a protocol name in any case, with '-' or '_' separators.
func ParseProtocol(s string) (Protocol, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, p := range knownProtocols {
		if string(p) == name || strings.ReplaceAll(string(p), "_", "") == name {
			return p, nil
		}
	}
	return ProtocolUnknown, fmt.Errorf("unknown protocol %q", s)
}

const (
	// StartOffset is the first meaningful entry of a capture; entry 0 is the leading gap.
	StartOffset = 1
	// Header and Footer are the usual number of entries used by a header or footer.
	Header = 2
	Footer = 2
)

// Capture is a raw receiver capture: durations alternating mark/space,
// beginning with the idle gap before the first mark.
type Capture struct {
	Entries     []uint32
	StartOffset int
	// Tick converts entries to microseconds. 0 means entries are already in us.
	Tick uint32
	// Timeout is the receiver idle timeout in us. 0 means unknown.
	Timeout uint32
}

// NewCapture builds a capture in microseconds starting at StartOffset.
func NewCapture(entries ...uint32) *Capture {
	return &Capture{
		Entries:     entries,
		StartOffset: StartOffset,
		Tick:        1,
	}
}

// Len is the number of entries, including the leading gap.
func (c *Capture) Len() int {
	return len(c.Entries)
}

// Window returns the entries from StartOffset on, or nil if StartOffset is out of range.
func (c *Capture) Window() []uint32 {
	if c.StartOffset < 0 || c.StartOffset > len(c.Entries) {
		return nil
	}
	return c.Entries[c.StartOffset:]
}

// Options controls a single decode call.
type Options struct {
	// Bits is the expected number of data bits. 0 selects the protocol default.
	Bits int
	// Strict enforces the exact bit count and any integrity checks.
	Strict bool
	// Tolerance is the percentage band for every comparison. 0 selects match.DefaultTolerance.
	Tolerance int
	// MarkExcess in us. 0 selects match.DefaultMarkExcess, negative disables it.
	MarkExcess int
}

// BitsOr returns o.Bits, or def when unset.
func (o Options) BitsOr(def int) int {
	if o.Bits == 0 {
		return def
	}
	return o.Bits
}

// Matcher builds the pulse matcher for decoding c with these options.
func (o Options) Matcher(c *Capture) match.Matcher {
	tolerance := o.Tolerance
	if tolerance == 0 {
		tolerance = match.DefaultTolerance
	}
	var excess uint32
	switch {
	case o.MarkExcess == 0:
		excess = match.DefaultMarkExcess
	case o.MarkExcess > 0:
		excess = uint32(o.MarkExcess)
	}
	m := match.New(tolerance, excess, c.Tick)
	m.Timeout = c.Timeout
	return m
}
