package match

const (
	// DefaultTolerance is the percentage band applied around every reference duration.
	DefaultTolerance = 25
	// DefaultMarkExcess compensates for receivers stretching marks (and shortening spaces), in us.
	DefaultMarkExcess = 50
)

// Matcher compares captured durations against reference durations.
// All references are in microseconds; measured values are in capture units
// and are scaled by Tick before comparison.
type Matcher struct {
	Tolerance int
	Excess    uint32
	Tick      uint32
	// Timeout clamps open-ended gaps to the receiver idle timeout (us). 0 disables clamping.
	Timeout uint32
}

func New(tolerance int, excess uint32, tick uint32) Matcher {
	if tolerance < 0 || tolerance > 100 {
		tolerance = DefaultTolerance
	}
	if tick == 0 {
		tick = 1
	}
	return Matcher{
		Tolerance: tolerance,
		Excess:    excess,
		Tick:      tick,
	}
}

func (m Matcher) usec(measured uint32) uint64 {
	tick := m.Tick
	if tick == 0 {
		tick = 1
	}
	return uint64(measured) * uint64(tick)
}

// Bounds returns the inclusive band [low, high] accepted for reference.
func (m Matcher) Bounds(reference uint32) (low, high uint64) {
	ref := uint64(reference)
	delta := ref * uint64(m.Tolerance) / 100
	return ref - delta, ref + delta
}

func (m Matcher) within(measured uint32, reference uint32) bool {
	low, high := m.Bounds(reference)
	us := m.usec(measured)
	return us >= low && us <= high
}

func (m Matcher) markRef(desired uint32) uint32 {
	return desired + m.Excess
}

func (m Matcher) spaceRef(desired uint32) uint32 {
	if m.Excess >= desired {
		return 0
	}
	return desired - m.Excess
}

// Mark reports whether a measured mark matches desired once the excess is added.
func (m Matcher) Mark(measured, desired uint32) bool {
	return m.within(measured, m.markRef(desired))
}

// Space reports whether a measured space matches desired once the excess is removed.
func (m Matcher) Space(measured, desired uint32) bool {
	return m.within(measured, m.spaceRef(desired))
}

// AtLeast reports whether a measured gap is at least the lower band edge of desired.
// A zero measurement only occurs as the last buffer entry and is treated as infinite.
func (m Matcher) AtLeast(measured, desired uint32) bool {
	if measured == 0 {
		return true
	}
	ref := m.spaceRef(desired)
	if m.Timeout > 0 && m.Timeout < ref {
		ref = m.Timeout
	}
	low, _ := m.Bounds(ref)
	return m.usec(measured) >= low
}

// SpaceAt matches raw[i] as a space. When it is the final entry of the
// buffer the receiver timed out waiting for the next mark, so any duration
// reaching the expected minimum is accepted.
func (m Matcher) SpaceAt(raw []uint32, i int, desired uint32) bool {
	if i < 0 || i >= len(raw) {
		return false
	}
	if i == len(raw)-1 {
		return m.AtLeast(raw[i], desired)
	}
	return m.Space(raw[i], desired)
}

// Overlaps reports whether the one-space and zero-space bands of b
// intersect at this matcher's tolerance, which would make a bit ambiguous.
func (m Matcher) Overlaps(b Block) bool {
	oneLow, oneHigh := m.Bounds(m.spaceRef(b.OneSpace))
	zeroLow, zeroHigh := m.Bounds(m.spaceRef(b.ZeroSpace))
	if b.OneMark != b.ZeroMark {
		markOneLow, markOneHigh := m.Bounds(m.markRef(b.OneMark))
		markZeroLow, markZeroHigh := m.Bounds(m.markRef(b.ZeroMark))
		if markOneLow > markZeroHigh || markZeroLow > markOneHigh {
			return false
		}
	}
	return oneLow <= zeroHigh && zeroLow <= oneHigh
}
