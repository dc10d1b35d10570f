//go:build !cgo

package parser

import (
	"cix/internal/errors"
	"cix/internal/logging"
)

// NewTreeSitter reports tree-sitter as unavailable. The grammars are C
// libraries; without cgo the only usable source is a SCIP index.
func NewTreeSitter(logger *logging.Logger) (Parser, error) {
	return nil, errors.New(errors.ParserUnavailable,
		"tree-sitter parsing requires a cgo-enabled build; use a SCIP index instead", nil)
}
