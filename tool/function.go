package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/internal/util"
	"github.com/fanmesh/fanmesh/logging"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Fanmesh tool accepting a generic argument map.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Validates supplied arguments against that schema before execution
//   - Invokes the wrapped function with the propagated core.CallContext
//   - Normalizes error handling so callers receive *ToolError with consistent
//     codes: VALIDATION_ERROR for schema mismatch, EXECUTION_ERROR for an
//     underlying function error (custom codes preserved if the function
//     returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is
//	safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn func(ctx context.Context, call core.CallContext, args map[string]any) (string, error)
	// Logger for invocation tracing (NoOp if nil)
	logger logging.Logger
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(_ context.Context, _ core.CallContext, args map[string]any) (string, error) {
//	    return fmt.Sprintf("%v", args["a"].(float64)+args["b"].(float64)), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, call core.CallContext, args map[string]any) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.NoOpLogger{},
	}
}

// WithLogger replaces the tool's logger and returns the tool for chaining.
func (t *FunctionTool) WithLogger(l logging.Logger) *FunctionTool {
	t.logger = l
	return t
}

// Name returns the unique tool name used in dispatch routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description of the tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// InputShape reports a generic mapping: the dispatcher passes the argument
// map through unchanged.
func (t *FunctionTool) InputShape() any { return nil }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
func (t *FunctionTool) Call(ctx context.Context, call core.CallContext, input any) (string, error) {
	args, ok := input.(map[string]any)
	if !ok {
		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("expected map input, got %T", input),
			Code:    CodeValidationError,
		}
	}

	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name, "lineage_id", call.LineageID, "depth", call.Depth)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidationError,
			Details: err,
		}
	}

	out, err := t.fn(ctx, call, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // Already a ToolError -> just log and forward
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return "", toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecutionError,
		}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

// TypedTool adapts a function taking a typed input struct. The dispatcher
// coerces the caller's argument map into *T before Call; the parameter schema
// is derived from T via reflection.
type TypedTool[T any] struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, call core.CallContext, input *T) (string, error)
}

// NewTypedTool constructs a tool whose input shape is *T.
//
// Example:
//
//	type SplitArgs struct {
//	  FileName  string `json:"file_name" description:"File to split"`
//	  ChunkSize int    `json:"chunk_size,omitempty" description:"Rows per chunk"`
//	}
//
//	splitter := NewTypedTool("file_splitter", "Split a file into chunks",
//	  func(ctx context.Context, call core.CallContext, in *SplitArgs) (string, error) {
//	    ...
//	  })
func NewTypedTool[T any](
	name, description string,
	fn func(ctx context.Context, call core.CallContext, input *T) (string, error),
) *TypedTool[T] {
	var prototype T
	return &TypedTool[T]{
		name:        name,
		description: description,
		parameters:  util.CreateSchema(prototype),
		fn:          fn,
	}
}

// Name returns the unique tool name.
func (t *TypedTool[T]) Name() string { return t.name }

// Description returns the tool description.
func (t *TypedTool[T]) Description() string { return t.description }

// Parameters returns the schema reflected from T.
func (t *TypedTool[T]) Parameters() map[string]any { return t.parameters }

// InputShape returns a *T prototype so the dispatcher coerces arguments.
func (t *TypedTool[T]) InputShape() any { return new(T) }

// Call asserts the coerced input to *T and invokes the wrapped function.
func (t *TypedTool[T]) Call(ctx context.Context, call core.CallContext, input any) (string, error) {
	typed, ok := input.(*T)
	if !ok {
		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("expected %T input, got %T", new(T), input),
			Code:    CodeConversionError,
		}
	}
	out, err := t.fn(ctx, call, typed)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return "", toolErr
		}
		return "", &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecutionError}
	}
	return out, nil
}
