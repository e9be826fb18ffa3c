package ir

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTooShort means the capture cannot hold the smallest valid message.
	ErrTooShort = errors.New("capture too short")
	// ErrBitCount means the requested bit count is not valid for the protocol.
	ErrBitCount = errors.New("unsupported bit count")
	// ErrTiming means a mark or space did not match the protocol timing.
	ErrTiming = errors.New("timing mismatch")
	// ErrSignature means fixed signature bits were wrong.
	ErrSignature = errors.New("signature mismatch")
	// ErrChecksum means the message integrity check failed.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknown is returned by a Dispatcher when no decoder accepts a capture.
	ErrUnknown = errors.New("unrecognized signal")
)

// Scalar is the payload of fixed-width protocols.
type Scalar struct {
	Value   uint64
	Address uint32
	Command uint32
}

// Result is a successful decode. Depending on the protocol it carries
// either a Scalar or a byte state, never both.
type Result struct {
	Protocol Protocol
	Bits     int
	Repeat   bool

	scalar Scalar
	state  []byte
}

// NewScalarResult builds a result for a fixed-width protocol.
// It panics if p carries a byte state.
func NewScalarResult(p Protocol, bits int, s Scalar, repeat bool) Result {
	if p.HasState() {
		panic(fmt.Sprintf("ir: %s results carry a byte state, not a scalar", p))
	}
	return Result{
		Protocol: p,
		Bits:     bits,
		Repeat:   repeat,
		scalar:   s,
	}
}

// NewStateResult builds a result for a byte-oriented protocol. The state is copied.
// It panics if p carries a scalar.
func NewStateResult(p Protocol, bits int, state []byte) Result {
	if !p.HasState() {
		panic(fmt.Sprintf("ir: %s results carry a scalar, not a byte state", p))
	}
	buf := make([]byte, len(state))
	copy(buf, state)
	return Result{
		Protocol: p,
		Bits:     bits,
		state:    buf,
	}
}

// Scalar returns the scalar payload, if the protocol has one.
func (r Result) Scalar() (Scalar, bool) {
	if r.Protocol.HasState() || r.Protocol == "" {
		return Scalar{}, false
	}
	return r.scalar, true
}

// State returns a copy of the byte state, if the protocol has one.
func (r Result) State() ([]byte, bool) {
	if !r.Protocol.HasState() {
		return nil, false
	}
	buf := make([]byte, len(r.state))
	copy(buf, r.state)
	return buf, true
}

// Equal reports whether two results are identical.
func (r Result) Equal(o Result) bool {
	if r.Protocol != o.Protocol || r.Bits != o.Bits || r.Repeat != o.Repeat || r.scalar != o.scalar {
		return false
	}
	if len(r.state) != len(o.state) {
		return false
	}
	for i := range r.state {
		if r.state[i] != o.state[i] {
			return false
		}
	}
	return true
}

type resultJSON struct {
	Protocol Protocol `json:"protocol"`
	Bits     int      `json:"bits"`
	Repeat   bool     `json:"repeat,omitempty"`
	Value    *uint64  `json:"value,omitempty"`
	Address  *uint32  `json:"address,omitempty"`
	Command  *uint32  `json:"command,omitempty"`
	State    string   `json:"state,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Protocol: r.Protocol,
		Bits:     r.Bits,
		Repeat:   r.Repeat,
	}
	if r.Protocol.HasState() {
		out.State = hex.EncodeToString(r.state)
	} else {
		s := r.scalar
		out.Value, out.Address, out.Command = &s.Value, &s.Address, &s.Command
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Protocol.HasState() {
		state, err := hex.DecodeString(in.State)
		if err != nil {
			return fmt.Errorf("decoding %s state: %w", in.Protocol, err)
		}
		*r = NewStateResult(in.Protocol, in.Bits, state)
		return nil
	}
	var s Scalar
	if in.Value != nil {
		s.Value = *in.Value
	}
	if in.Address != nil {
		s.Address = *in.Address
	}
	if in.Command != nil {
		s.Command = *in.Command
	}
	*r = NewScalarResult(in.Protocol, in.Bits, s, in.Repeat)
	return nil
}
