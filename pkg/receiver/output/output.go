// Package output delivers receiver records to people and other programs.
package output

import (
	"fmt"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/store"
)

const recordBufferLength = 8

// Format selects how a WriterOutput renders records.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// protocolFilter passes everything when empty.
type protocolFilter map[ir.Protocol]struct{}

func newProtocolFilter(protocols []ir.Protocol) protocolFilter {
	f := make(protocolFilter)
	for _, p := range protocols {
		f[p] = struct{}{}
	}
	return f
}

func (f protocolFilter) pass(rec *store.Record) bool {
	if len(f) == 0 {
		return true
	}
	if rec.Result == nil {
		_, ok := f[ir.ProtocolUnknown]
		return ok
	}
	_, ok := f[rec.Result.Protocol]
	return ok
}
