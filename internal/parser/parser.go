// Package parser turns source files into symbol definitions and raw call
// sites. Extraction is syntactic: tree-sitter when built with cgo, or a
// pre-built SCIP index as an alternate source. Neither does type checking,
// so callee names are reported as written and resolved later against the
// symbol index.
package parser

import (
	"context"
)

// Definition is one extracted symbol definition
type Definition struct {
	Name      string
	Kind      string // "function", "method", "type", "interface", "class"
	StartLine int    // 1-indexed
	EndLine   int    // 1-indexed, inclusive
	Container string // enclosing class/impl/trait name for methods
	Signature string
}

// Call is one raw call site: the enclosing definition, the callee as
// written, and the line it occurs on.
type Call struct {
	Caller string
	Callee string
	Kind   string // "direct", "method", "new"
	Line   int
}

// Result is the outcome of parsing one file. Malformed regions yield
// partial results rather than a failure; tree-sitter recovers around them.
type Result struct {
	Path        string
	Language    Language
	Definitions []Definition
	Calls       []Call
}

// Parser extracts definitions and call sites from source
type Parser interface {
	// Parse extracts from source bytes. path is used for language
	// detection and reporting only; no file IO happens here.
	Parse(ctx context.Context, path string, source []byte) (*Result, error)

	// Supports reports whether the file's language is handled
	Supports(path string) bool
}
