package ir

import (
	"errors"
	"fmt"
	"sync"

	"github.com/norasector/irdecode/pkg/ir/match"
	"github.com/rs/zerolog"
)

// Decoder recognises one protocol in a capture.
// Decode must not retain c and must not return a partial Result on error.
type Decoder interface {
	Protocol() Protocol
	DefaultBits() int
	Decode(c *Capture, opts Options) (Result, error)
}

// Profiled is implemented by decoders that can expose their bit blocks,
// so a registry can flag ambiguous timing profiles.
type Profiled interface {
	Blocks() []match.Block
}

type registration struct {
	decoder Decoder
	opts    Options
	enabled bool
}

// Registry maps protocols to decoders and dispatches captures to them in
// registration order.
type Registry struct {
	mu      sync.RWMutex
	ordered []*registration
	byProto map[Protocol]*registration
	logger  zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		byProto: make(map[Protocol]*registration),
		logger:  logger,
	}
}

// Register adds d with the options used when dispatching to it.
func (r *Registry) Register(d Decoder, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byProto[d.Protocol()]; ok {
		return fmt.Errorf("protocol %s already registered", d.Protocol())
	}

	if p, ok := d.(Profiled); ok {
		m := opts.Matcher(&Capture{})
		for i, b := range p.Blocks() {
			if m.Overlaps(b) {
				r.logger.Warn().
					Str("protocol", string(d.Protocol())).
					Int("block", i).
					Int("tolerance", m.Tolerance).
					Msg("one and zero space bands overlap")
			}
		}
	}

	reg := &registration{decoder: d, opts: opts, enabled: true}
	r.ordered = append(r.ordered, reg)
	r.byProto[d.Protocol()] = reg
	return nil
}

// Configure replaces the dispatch options of a registered protocol.
func (r *Registry) Configure(p Protocol, opts Options, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byProto[p]
	if !ok {
		return fmt.Errorf("no decoder registered for %s", p)
	}
	reg.opts = opts
	reg.enabled = enabled
	return nil
}

// Get returns the decoder registered for p.
func (r *Registry) Get(p Protocol) (Decoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byProto[p]
	if !ok {
		return nil, fmt.Errorf("no decoder registered for %s", p)
	}
	return reg.decoder, nil
}

// Protocols lists registered protocols in dispatch order.
func (r *Registry) Protocols() []Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Protocol, 0, len(r.ordered))
	for _, reg := range r.ordered {
		ret = append(ret, reg.decoder.Protocol())
	}
	return ret
}

// Enabled reports whether p is registered and enabled for dispatch.
func (r *Registry) Enabled(p Protocol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byProto[p]
	return ok && reg.enabled
}

// DecodeAs decodes c strictly as protocol p with the given options.
func (r *Registry) DecodeAs(p Protocol, c *Capture, opts Options) (Result, error) {
	d, err := r.Get(p)
	if err != nil {
		return Result{}, err
	}
	return d.Decode(c, opts)
}

// Decode tries each enabled decoder in order and returns the first success.
// It returns ErrUnknown when none accepts c.
func (r *Registry) Decode(c *Capture) (Result, error) {
	r.mu.RLock()
	candidates := make([]registration, 0, len(r.ordered))
	for _, reg := range r.ordered {
		if reg.enabled {
			candidates = append(candidates, *reg)
		}
	}
	r.mu.RUnlock()

	for _, reg := range candidates {
		res, err := reg.decoder.Decode(c, reg.opts)
		if err == nil {
			r.logger.Debug().
				Str("protocol", string(res.Protocol)).
				Int("bits", res.Bits).
				Msg("decoded capture")
			return res, nil
		}
		if !isRejection(err) {
			return Result{}, err
		}
		r.logger.Trace().
			Str("protocol", string(reg.decoder.Protocol())).
			Err(err).
			Msg("candidate rejected capture")
	}
	return Result{}, ErrUnknown
}

func isRejection(err error) bool {
	for _, target := range []error{ErrTooShort, ErrBitCount, ErrTiming, ErrSignature, ErrChecksum} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
