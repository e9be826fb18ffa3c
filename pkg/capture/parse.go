// Package capture reads raw captures from text and feeds them to a receiver.
package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/norasector/irdecode/pkg/ir"
)

var ErrEmpty = errors.New("no durations found")

// Parse reads one capture written in any of the accepted forms:
//
//	9000, 4500, 560, 560
//	uint16_t rawData[4] = {9000, 4500, 560, 560};  // comment
//	Raw Timing[4]:
//	   +  9000, -  4500,    +   560, -   560
//	[9000, 4500, 560, 560]
//	{"header": {"mark": 9000, "space": 4500}, "raw-pulses": [{"mark": 560, "space": 560}]}
//
// Durations are microseconds beginning with the first mark. The returned
// entries start with a zero leading gap so they can be used as an ir.Capture
// with StartOffset 1.
func Parse(text string) ([]uint32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmpty
	}

	var durations []uint32
	var err error
	if (trimmed[0] == '[' || trimmed[0] == '{') && json.Valid([]byte(trimmed)) {
		durations, err = parseJSON([]byte(trimmed))
	} else {
		durations, err = parseText(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if len(durations) == 0 {
		return nil, ErrEmpty
	}
	return append([]uint32{0}, durations...), nil
}

func parseText(text string) ([]uint32, error) {
	if open := strings.IndexByte(text, '{'); open >= 0 {
		end := strings.LastIndexByte(text, '}')
		if end < open {
			return nil, fmt.Errorf("unterminated array")
		}
		text = text[open+1 : end]
	}

	var ret []uint32
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Raw Timing") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		pendingSign := byte(0)
		for _, f := range fields {
			if f == "+" || f == "-" {
				pendingSign = f[0]
				continue
			}
			if f[0] == '+' || f[0] == '-' {
				pendingSign = f[0]
				f = f[1:]
			}
			v, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", len(ret), err)
			}
			if pendingSign != 0 {
				wantMark := len(ret)%2 == 0
				if (pendingSign == '+') != wantMark {
					return nil, fmt.Errorf("entry %d: sign %c out of sequence", len(ret), pendingSign)
				}
				pendingSign = 0
			}
			ret = append(ret, uint32(v))
		}
		if pendingSign != 0 {
			return nil, fmt.Errorf("entry %d: dangling %c", len(ret), pendingSign)
		}
	}
	return ret, scanner.Err()
}

type markSpacePair struct {
	Mark  float64 `json:"mark"`
	Space float64 `json:"space"`
}

type pulseFrame struct {
	Header    *markSpacePair  `json:"header"`
	RawPulses []markSpacePair `json:"raw-pulses"`
}

func parseJSON(data []byte) ([]uint32, error) {
	if data[0] == '[' {
		var ret []uint32
		if err := json.Unmarshal(data, &ret); err != nil {
			return nil, fmt.Errorf("error decoding duration array: %w", err)
		}
		return ret, nil
	}

	var frame pulseFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("error decoding pulse frame: %w", err)
	}
	pairs := frame.RawPulses
	if frame.Header != nil {
		pairs = append([]markSpacePair{*frame.Header}, pairs...)
	}
	ret := make([]uint32, 0, 2*len(pairs))
	for i, p := range pairs {
		if p.Mark < 0 || p.Space < 0 || p.Mark > math.MaxUint32 || p.Space > math.MaxUint32 {
			return nil, fmt.Errorf("pair %d out of range", i)
		}
		ret = append(ret, uint32(math.Round(p.Mark)))
		// A zero space on the final pair means the frame ended on a mark.
		if p.Space == 0 && i == len(pairs)-1 {
			break
		}
		ret = append(ret, uint32(math.Round(p.Space)))
	}
	return ret, nil
}

// Split reads r and returns the text of each capture. Captures are
// separated by blank lines.
func Split(r io.Reader) ([]string, error) {
	var ret []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			ret = append(ret, cur.String())
			cur.Reset()
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return ret, scanner.Err()
}

// Builder turns parsed entries into a capture.
type Builder func(entries []uint32) *ir.Capture

// NewCapture is the default Builder: microsecond entries, no timeout.
func NewCapture(entries []uint32) *ir.Capture {
	return ir.NewCapture(entries...)
}
