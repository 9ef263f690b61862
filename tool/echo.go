package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fanmesh/fanmesh/core"
)

// EchoTool returns its input verbatim. It exists for wiring checks and batch
// smoke tests: register N inputs against it and the summary outputs must
// equal the inputs.
type EchoTool struct{}

// NewEchoTool returns the echo tool.
func NewEchoTool() *EchoTool { return &EchoTool{} }

// Name returns "echo".
func (t *EchoTool) Name() string { return "echo" }

// Description describes the tool for planners.
func (t *EchoTool) Description() string {
	return "Echo the provided message (or the full argument map) back unchanged"
}

// Parameters accepts any object; a "message" field is echoed preferentially.
func (t *EchoTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "description": "Message to echo"},
		},
	}
}

// InputShape accepts a generic mapping.
func (t *EchoTool) InputShape() any { return nil }

// Call echoes the "message" argument when present, otherwise the JSON
// rendering of the whole argument map.
func (t *EchoTool) Call(_ context.Context, _ core.CallContext, input any) (string, error) {
	args, ok := input.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", input), nil
	}
	if msg, ok := args["message"]; ok {
		if s, ok := msg.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", msg), nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
