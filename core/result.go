package core

import "fmt"

// ResultKind classifies how a dispatched item settled. Callers should branch
// on the kind rather than matching substrings of Output.
type ResultKind string

const (
	// KindSuccess marks a tool invocation that returned normally.
	KindSuccess ResultKind = "success"
	// KindToolMissing marks an item whose tool name could not be resolved.
	KindToolMissing ResultKind = "tool_missing"
	// KindValidationError marks a request rejected before dispatch because a
	// required argument was missing or malformed.
	KindValidationError ResultKind = "validation_error"
	// KindConversionError marks an item whose input could not be coerced into
	// the tool's declared input shape.
	KindConversionError ResultKind = "conversion_error"
	// KindExecutionError marks an item whose tool body returned an error or
	// panicked.
	KindExecutionError ResultKind = "execution_error"
	// KindCleared marks an item terminated by ClearPending before dispatch.
	KindCleared ResultKind = "cleared"
)

// IsFailure reports whether the kind represents a captured failure.
func (k ResultKind) IsFailure() bool {
	return k == KindToolMissing || k == KindValidationError || k == KindConversionError || k == KindExecutionError
}

// ToolResult is the settled outcome of a single tool invocation. Failures are
// values, not errors: a captured failure carries a human-readable Output plus
// a machine-readable Kind.
type ToolResult struct {
	Output string     `json:"output"`
	Kind   ResultKind `json:"kind"`
}

// NewToolResult returns a successful result wrapping the given output.
func NewToolResult(output string) ToolResult {
	return ToolResult{Output: output, Kind: KindSuccess}
}

// FailureResult builds a captured failure of the given kind.
func FailureResult(kind ResultKind, format string, args ...any) ToolResult {
	return ToolResult{Output: fmt.Sprintf(format, args...), Kind: kind}
}

// ClearedResult is the sentinel written by ClearPending. Cleared items are
// terminal and never retried.
func ClearedResult() ToolResult {
	return ToolResult{Output: "Cleared", Kind: KindCleared}
}
