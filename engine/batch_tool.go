package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/logging"
	"github.com/fanmesh/fanmesh/tool"
)

// Actions accepted by BatchTool.
const (
	ActionRegisterBatch = "registerBatch"
	ActionStart         = "start"
	ActionGetPending    = "getPending"
	ActionClearPending  = "clearPending"
	ActionRenderState   = "renderState"
)

// ActionInput selects and parameterizes one BatchTool operation. ToolName and
// Functions are only consulted by the registerBatch action.
type ActionInput struct {
	Action    string           `json:"action" description:"One of registerBatch, start, getPending, clearPending, renderState."`
	ToolName  string           `json:"tool_name,omitempty" description:"Tool to register the batch against (registerBatch only)."`
	Functions []map[string]any `json:"functions,omitempty" description:"One parameter map per work item (registerBatch only)."`
}

// BatchTool exposes an Executor as an async-capable tool. Registering it in
// the same tool registry the executor dispatches from lets a work item running
// at depth d drive its own nested batch: the nested start is the async path,
// so it consumes no worker of the pool that is running its parent.
type BatchTool struct {
	executor *Executor
	logger   logging.Logger
}

// BatchToolOptions configures a BatchTool.
type BatchToolOptions struct {
	// Logger receives action-level events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewBatchTool wraps the executor as a dispatchable tool.
func NewBatchTool(executor *Executor, optFns ...func(o *BatchToolOptions)) *BatchTool {
	opts := BatchToolOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &BatchTool{
		executor: executor,
		logger:   opts.Logger,
	}
}

// Name implements tool.Tool.
func (b *BatchTool) Name() string { return "parallel_execution_tool" }

// Description implements tool.Tool.
func (b *BatchTool) Description() string {
	return "Registers batches of tool calls and executes them in parallel. " +
		"Use registerBatch to queue work, start to run everything pending, " +
		"getPending/renderState to inspect, and clearPending to abandon queued items."
}

// Parameters implements tool.Tool.
func (b *BatchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "One of registerBatch, start, getPending, clearPending, renderState.",
				"enum":        []string{ActionRegisterBatch, ActionStart, ActionGetPending, ActionClearPending, ActionRenderState},
			},
			"tool_name": map[string]any{
				"type":        "string",
				"description": "Tool to register the batch against (registerBatch only).",
			},
			"functions": map[string]any{
				"type":        "array",
				"description": "One parameter map per work item (registerBatch only).",
				"items":       map[string]any{"type": "object"},
			},
		},
		"required": []string{"action"},
	}
}

// InputShape implements tool.Tool. The dispatcher coerces argument maps into
// *ActionInput before Call/CallAsync.
func (b *BatchTool) InputShape() any { return &ActionInput{} }

// Call implements tool.Tool by waiting on CallAsync. Action-level problems
// are values in the output, never Go errors, so the caller always receives a
// completed envelope.
func (b *BatchTool) Call(ctx context.Context, call core.CallContext, input any) (string, error) {
	res, err := b.CallAsync(ctx, call, input).Wait(ctx)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// CallAsync implements tool.AsyncTool. Every action except start settles
// immediately; start returns the executor's aggregate handle.
func (b *BatchTool) CallAsync(ctx context.Context, call core.CallContext, input any) *core.Handle {
	in, ok := input.(*ActionInput)
	if !ok {
		return core.SettledHandle(core.FailureResult(core.KindConversionError,
			"Error: expected *ActionInput, got %T", input))
	}

	b.logger.Debug("batchtool.action", "action", in.Action, "depth", call.Depth, "lineage_id", call.LineageID)

	switch in.Action {
	case "":
		return core.SettledHandle(core.FailureResult(core.KindValidationError, "Action is required"))
	case ActionRegisterBatch:
		return core.SettledHandle(b.registerBatch(in))
	case ActionStart:
		return b.executor.Start(ctx, call)
	case ActionGetPending:
		return core.SettledHandle(b.getPending())
	case ActionClearPending:
		return core.SettledHandle(b.clearPending())
	case ActionRenderState:
		return core.SettledHandle(core.NewToolResult(b.executor.RenderState()))
	default:
		return core.SettledHandle(core.FailureResult(core.KindValidationError, "Unknown action: %s", in.Action))
	}
}

func (b *BatchTool) registerBatch(in *ActionInput) core.ToolResult {
	if in.ToolName == "" {
		return core.FailureResult(core.KindValidationError,
			"Error: tool_name parameter is required for registerBatch action")
	}
	if len(in.Functions) == 0 {
		return core.FailureResult(core.KindValidationError, "No functions provided")
	}

	regs, err := b.executor.RegisterBatch(in.ToolName, in.Functions)
	if err != nil {
		return core.FailureResult(core.KindValidationError, "Error registering functions: %s", err)
	}

	envelope := map[string]any{
		"message":   fmt.Sprintf("Successfully registered %d functions", len(regs)),
		"functions": regs,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return core.NewToolResult(fmt.Sprintf("Successfully registered %d functions", len(regs)))
	}
	return core.NewToolResult(string(data))
}

func (b *BatchTool) getPending() core.ToolResult {
	pending := b.executor.Pending()
	data, err := json.Marshal(pending)
	if err != nil {
		return core.NewToolResult(fmt.Sprintf("Found %d pending functions", len(pending)))
	}
	return core.NewToolResult(string(data))
}

var _ tool.AsyncTool = (*BatchTool)(nil)

func (b *BatchTool) clearPending() core.ToolResult {
	count := b.executor.ClearPending()
	envelope := map[string]any{
		"message": fmt.Sprintf("Cleared %d pending functions", count),
		"count":   count,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return core.NewToolResult(fmt.Sprintf("Cleared %d pending functions", count))
	}
	return core.NewToolResult(string(data))
}
