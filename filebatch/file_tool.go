package filebatch

import (
	"context"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/tool"
)

// FileInput names the parameter file and the tool to fan it out against.
type FileInput struct {
	FileName string `json:"file_name" description:"Name of the JSON parameter file in the caller's shared directory."`
	ToolName string `json:"tool_name" description:"Tool to execute once per parameter set."`
}

// FileTool exposes a Runner as an async-capable tool so plans can trigger
// file-driven batches through the same dispatch pipeline. The call's lineage
// id doubles as the storage scope: sibling batches of one plan read and write
// the same shared directory.
type FileTool struct {
	runner *Runner
}

// NewFileTool wraps the runner as a dispatchable tool.
func NewFileTool(runner *Runner) *FileTool {
	return &FileTool{runner: runner}
}

// Name implements tool.Tool.
func (f *FileTool) Name() string { return "file_based_parallel_execution_tool" }

// Description implements tool.Tool.
func (f *FileTool) Description() string {
	return "Reads a JSON array of parameter sets from a file and executes the named tool " +
		"once per set in parallel, persisting a consolidated report next to the input file."
}

// Parameters implements tool.Tool.
func (f *FileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_name": map[string]any{
				"type":        "string",
				"description": "Name of the JSON parameter file in the caller's shared directory.",
			},
			"tool_name": map[string]any{
				"type":        "string",
				"description": "Tool to execute once per parameter set.",
			},
		},
		"required": []string{"file_name", "tool_name"},
	}
}

// InputShape implements tool.Tool.
func (f *FileTool) InputShape() any { return &FileInput{} }

// Call implements tool.Tool by waiting on CallAsync.
func (f *FileTool) Call(ctx context.Context, call core.CallContext, input any) (string, error) {
	res, err := f.CallAsync(ctx, call, input).Wait(ctx)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// CallAsync implements tool.AsyncTool.
func (f *FileTool) CallAsync(ctx context.Context, call core.CallContext, input any) *core.Handle {
	in, ok := input.(*FileInput)
	if !ok {
		return core.SettledHandle(core.FailureResult(core.KindConversionError,
			"Error: expected *FileInput, got %T", input))
	}
	if call.LineageID == "" {
		call = call.WithLineage(f.runner.ids.NewLineageID())
	}
	return f.runner.Execute(ctx, call, call.LineageID, in.FileName, in.ToolName)
}

var _ tool.AsyncTool = (*FileTool)(nil)
