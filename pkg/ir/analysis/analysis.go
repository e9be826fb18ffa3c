// Package analysis summarises the timing of captures no decoder recognised.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/norasector/irdecode/pkg/ir"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func newStats(x []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	s := Stats{
		Count: len(x),
		Min:   floats.Min(x),
		Max:   floats.Max(x),
	}
	if len(x) == 1 {
		s.Mean = x[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	return s
}

// Cluster is a group of durations within tolerance of each other.
type Cluster struct {
	Center float64 `json:"center"`
	Marks  int     `json:"marks"`
	Spaces int     `json:"spaces"`
}

func (c Cluster) Count() int {
	return c.Marks + c.Spaces
}

type Summary struct {
	// Entries excludes the leading and trailing gaps.
	Entries  int       `json:"entries"`
	Marks    Stats     `json:"marks"`
	Spaces   Stats     `json:"spaces"`
	Clusters []Cluster `json:"clusters"`
	// Gap is the trailing space in us, 0 if the capture ends on a mark.
	Gap float64 `json:"gap,omitempty"`
}

type sample struct {
	us   float64
	mark bool
}

// Summarize measures c in microseconds, grouping durations that lie within
// tolerance percent of a running cluster center.
func Summarize(c *ir.Capture, tolerance int) Summary {
	window := c.Window()
	tick := float64(c.Tick)
	if tick == 0 {
		tick = 1
	}

	var s Summary
	if len(window)%2 == 0 && len(window) > 0 {
		s.Gap = float64(window[len(window)-1]) * tick
		window = window[:len(window)-1]
	}
	s.Entries = len(window)

	var marks, spaces []float64
	samples := make([]sample, 0, len(window))
	for i, v := range window {
		us := float64(v) * tick
		if i%2 == 0 {
			marks = append(marks, us)
		} else {
			spaces = append(spaces, us)
		}
		samples = append(samples, sample{us: us, mark: i%2 == 0})
	}
	s.Marks = newStats(marks)
	s.Spaces = newStats(spaces)
	s.Clusters = cluster(samples, tolerance)
	return s
}

func cluster(samples []sample, tolerance int) []Cluster {
	if len(samples) == 0 {
		return nil
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].us < samples[j].us })

	var ret []Cluster
	var members []float64
	var cur Cluster
	flush := func() {
		cur.Center = stat.Mean(members, nil)
		ret = append(ret, cur)
		members = members[:0]
		cur = Cluster{}
	}
	for _, smp := range samples {
		if len(members) > 0 && smp.us > stat.Mean(members, nil)*float64(100+tolerance)/100 {
			flush()
		}
		members = append(members, smp.us)
		if smp.mark {
			cur.Marks++
		} else {
			cur.Spaces++
		}
	}
	flush()
	return ret
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries   : %d\n", s.Entries)
	fmt.Fprintf(&b, "Marks     : %s\n", s.Marks)
	fmt.Fprintf(&b, "Spaces    : %s\n", s.Spaces)
	if s.Gap > 0 {
		fmt.Fprintf(&b, "Gap       : %.0fus\n", s.Gap)
	}
	for i, c := range s.Clusters {
		fmt.Fprintf(&b, "Cluster %-2d: %6.0fus x%d (%d marks, %d spaces)\n", i, c.Center, c.Count(), c.Marks, c.Spaces)
	}
	return b.String()
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d mean=%.1fus stddev=%.1fus min=%.0fus max=%.0fus", s.Count, s.Mean, s.StdDev, s.Min, s.Max)
}
