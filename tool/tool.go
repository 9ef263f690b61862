// Package tool implements the tool calling subsystem that lets the execution
// engine invoke structured capabilities (APIs, computations, side-effects)
// with schema validated arguments, consistent error handling and an explicit
// sync/async capability split.
package tool

import (
	"context"
	"fmt"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/internal/util"
)

// Tool is the blocking capability contract the dispatcher resolves by name.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define a proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use; the engine invokes tools from many
//     goroutines at once
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// InputShape declares the input type the tool expects. Returning nil (or
	// any map type) means the tool accepts the caller's argument map as-is;
	// returning a struct (or struct pointer) prototype makes the dispatcher
	// coerce arguments into that shape before Call.
	InputShape() any

	// Call executes the tool with the (possibly coerced) input and the
	// propagated call context. It blocks until the tool body finishes.
	Call(ctx context.Context, call core.CallContext, input any) (string, error)
}

// AsyncTool marks a tool whose invocation returns a completion handle instead
// of blocking the calling goroutine. The dispatcher resolves this capability
// once per dispatch: async tools are invoked directly and never occupy a
// worker of the depth-indexed pool, which is what keeps nested batches from
// starving the pool that scheduled them.
type AsyncTool interface {
	Tool

	// CallAsync starts the tool and returns a handle that settles with the
	// tool's result. Implementations must capture their own failures into the
	// settled ToolResult rather than panicking.
	CallAsync(ctx context.Context, call core.CallContext, input any) *core.Handle
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

// Error codes used across the dispatch pipeline.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeConversionError = "CONVERSION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeToolNotFound    = "TOOL_NOT_FOUND"
)

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
