// Package errors defines the stable error codes cix surfaces to callers.
//
// Failures local to one file or one call site are never wrapped in these
// codes; they are logged and skipped. Only failures that make the specific
// requested query meaningless reach a caller as a CixError.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseFailure indicates a file could not be parsed. Per-file,
	// non-fatal: indexing of other files continues.
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// RefNotFound indicates a revision ref could not be resolved.
	// Fatal to the single diff request, never cached.
	RefNotFound ErrorCode = "REF_NOT_FOUND"
	// SymbolNotFound indicates a symbol doesn't exist in the index
	SymbolNotFound ErrorCode = "SYMBOL_NOT_FOUND"
	// FileNotIndexed indicates a file has no symbols in the index
	FileNotIndexed ErrorCode = "FILE_NOT_INDEXED"
	// ClassifierUnavailable indicates the model classifier is not
	// configured or not reachable. Triggers the heuristic fallback and
	// is never surfaced to a caller.
	ClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	// Timeout indicates an external call (diff retrieval, classification)
	// exceeded its deadline. Retryable.
	Timeout ErrorCode = "TIMEOUT"
	// ParserUnavailable indicates no parser backend is compiled in or
	// configured for the file type
	ParserUnavailable ErrorCode = "PARSER_UNAVAILABLE"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// CixError represents a cix error with code, message, and suggestions
type CixError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new CixError
func New(code ErrorCode, message string, cause error) *CixError {
	return &CixError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes[code],
	}
}

// Error implements the error interface
func (e *CixError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CixError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *CixError) WithDetails(details interface{}) *CixError {
	e.Details = details
	return e
}

// HasCode reports whether err is a CixError with the given code
func HasCode(err error, code ErrorCode) bool {
	var ce *CixError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// suggestedFixes maps error codes to suggested fix actions
var suggestedFixes = map[ErrorCode][]FixAction{
	RefNotFound: {
		{
			Type:        RunCommand,
			Command:     "git rev-parse --verify <ref>",
			Safe:        true,
			Description: "Verify the ref exists in this repository",
		},
	},
	FileNotIndexed: {
		{
			Type:        RunCommand,
			Command:     "cix index <path>",
			Safe:        true,
			Description: "Index the file before querying it",
		},
	},
	ParserUnavailable: {
		{
			Type:        RunCommand,
			Command:     "cix status",
			Safe:        true,
			Description: "Check which parser backends are available",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "cix impact <from> <to>",
			Safe:        true,
			Description: "Retry the request",
		},
	},
}
