// Package protocols assembles the decoders shipped with irdecode.
package protocols

import (
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/jvc"
	"github.com/norasector/irdecode/pkg/ir/nec"
	"github.com/norasector/irdecode/pkg/ir/samsung"
	"github.com/rs/zerolog"
)

// Decoders returns one decoder per supported protocol in dispatch order.
// Protocols with long distinctive headers come first; JVC, whose header
// is optional, is tried last.
func Decoders() []ir.Decoder {
	return []ir.Decoder{
		nec.NewDecoder(),
		samsung.NewDecoder(),
		samsung.NewDecoder36(),
		samsung.NewACDecoder(),
		jvc.NewDecoder(),
	}
}

// Default builds a registry holding every decoder in dispatch order with
// strict decoding enabled.
func Default(logger zerolog.Logger) *ir.Registry {
	return New(logger, ir.Options{Strict: true})
}

// New builds a registry holding every decoder, each registered with opts.
// opts.Bits should be left at 0 so each decoder uses its own default.
func New(logger zerolog.Logger, opts ir.Options) *ir.Registry {
	reg := ir.NewRegistry(logger)
	for _, d := range Decoders() {
		// Protocols are unique here, so registration cannot fail.
		_ = reg.Register(d, opts)
	}
	return reg
}
