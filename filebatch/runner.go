// Package filebatch is the file-driven front end of the execution engine: it
// reads an array of parameter sets from caller-scoped storage, fans every set
// out through a fresh engine batch, and persists the consolidated report back
// into the same scope.
package filebatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/engine"
	"github.com/fanmesh/fanmesh/internal/util"
	"github.com/fanmesh/fanmesh/logging"
	"github.com/fanmesh/fanmesh/pool"
	"github.com/fanmesh/fanmesh/tool"
	"github.com/fanmesh/fanmesh/workspace"
)

// Per-item report statuses. Unlike the engine summary, the file-batch report
// distinguishes captured failures from successes so operators can read the
// tallies without parsing output text.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// ItemReport is one entry of a persisted batch report.
type ItemReport struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// Report is the consolidated outcome of one file-driven run.
type Report struct {
	Message      string       `json:"message"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Results      []ItemReport `json:"results"`
}

// Runner drives file-based batch execution. Every run gets its own engine
// Executor so parameter files never share a registry with unrelated batches;
// the tool registry, id dispatcher and worker pool are shared across runs.
type Runner struct {
	store  workspace.Store
	tools  *tool.Registry
	ids    core.Dispatcher
	pool   *pool.LevelPool
	logger logging.Logger
	now    func() time.Time
}

// Options configures a Runner.
type Options struct {
	// Tools resolves the target tool for every parameter set.
	Tools *tool.Registry

	// IDs generates registration and lineage identifiers.
	IDs core.Dispatcher

	// Pool supplies per-depth capacity for blocking tools.
	Pool *pool.LevelPool

	// Logger receives run lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Now supplies the clock used for report file names. Tests inject a fixed
	// clock to get deterministic names.
	Now func() time.Time
}

// NewRunner creates a Runner reading from and writing to store.
func NewRunner(store workspace.Store, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Tools:  tool.NewRegistry(),
		IDs:    core.NewUUIDDispatcher(),
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		store:  store,
		tools:  opts.Tools,
		ids:    opts.IDs,
		pool:   opts.Pool,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Execute reads fileName from the caller's scope, dispatches one work item per
// parameter set against toolName, and returns a handle that settles once the
// report is built and persisted. Validation and read/parse failures settle the
// handle immediately and dispatch nothing; a persistence failure degrades to
// returning the full report inline.
func (r *Runner) Execute(ctx context.Context, call core.CallContext, callerID, fileName, toolName string) *core.Handle {
	if strings.TrimSpace(fileName) == "" {
		return core.SettledHandle(core.FailureResult(core.KindValidationError,
			"Error: file_name parameter is required"))
	}
	if strings.TrimSpace(toolName) == "" {
		return core.SettledHandle(core.FailureResult(core.KindValidationError,
			"Error: tool_name parameter is required"))
	}

	r.logger.Info("filebatch.run", "file", fileName, "tool", toolName, "caller_id", callerID)

	params, err := r.readParams(callerID, fileName)
	if err != nil {
		return core.SettledHandle(core.FailureResult(core.KindExecutionError, "Error: %s", err))
	}

	// An empty file is an empty run, not a failure: persist a zero-count
	// report and settle.
	if len(params) == 0 {
		return core.SettledHandle(r.finish(callerID, toolName, &Report{
			Message: "Executed 0 parameter sets",
			Results: []ItemReport{},
		}))
	}

	exec := engine.New(func(o *engine.Options) {
		o.Tools = r.tools
		o.IDs = r.ids
		o.Pool = r.pool
		o.Logger = r.logger
	})
	if _, err := exec.RegisterBatch(toolName, params); err != nil {
		return core.SettledHandle(core.FailureResult(core.KindExecutionError, "Error: %s", err))
	}

	batch := exec.Start(ctx, call)
	out := core.NewHandle()
	go func() {
		<-batch.Done()
		out.Settle(r.finish(callerID, toolName, buildReport(exec, len(params))))
	}()
	return out
}

// ExecuteSync is the blocking convenience wrapper over Execute.
func (r *Runner) ExecuteSync(ctx context.Context, call core.CallContext, callerID, fileName, toolName string) (core.ToolResult, error) {
	return r.Execute(ctx, call, callerID, fileName, toolName).Wait(ctx)
}

// readParams loads and parses the named file as a JSON array of parameter
// objects. A blank file parses as an empty run; anything else that is not an
// array of objects is a parse failure that aborts the run.
func (r *Runner) readParams(callerID, fileName string) ([]map[string]any, error) {
	data, err := r.store.Read(callerID, fileName)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fileName, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if !gjson.Valid(trimmed) {
		return nil, fmt.Errorf("parsing JSON array from file %s: invalid JSON", fileName)
	}

	parsed := gjson.Parse(trimmed)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("parsing JSON array from file %s: expected a top-level array", fileName)
	}

	items := parsed.Array()
	params := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parsing JSON array from file %s: element %d is not an object", fileName, i)
		}
		params = append(params, obj)
	}
	return params, nil
}

// buildReport tallies the run by inspecting each record's result kind.
func buildReport(exec *engine.Executor, total int) *Report {
	report := &Report{
		Message: fmt.Sprintf("Executed %d parameter sets", total),
		Total:   total,
		Results: make([]ItemReport, 0, total),
	}
	for _, rec := range exec.Snapshot() {
		if rec.Result == nil {
			continue
		}
		status := StatusSuccess
		if rec.Result.Kind != core.KindSuccess {
			status = StatusFailure
		}
		if status == StatusSuccess {
			report.SuccessCount++
		} else {
			report.FailureCount++
		}
		report.Results = append(report.Results, ItemReport{
			ID:     rec.ID,
			Status: status,
			Output: util.NormalizeEscapes(rec.Result.Output),
		})
	}
	return report
}

// finish persists the report under "<toolName>-<timestamp>.json" and returns
// the run's settled result: a short summary referencing the report file, or
// the full report inline when persistence fails.
func (r *Runner) finish(callerID, toolName string, report *Report) core.ToolResult {
	raw, err := json.Marshal(report)
	if err != nil {
		return core.NewToolResult(fmt.Sprintf("Executed %d parameter sets. Success: %d, Failure: %d",
			report.Total, report.SuccessCount, report.FailureCount))
	}

	name := fmt.Sprintf("%s-%s.json", toolName, r.now().Format("20060102-150405"))
	if err := r.store.Write(callerID, name, pretty.Pretty(raw)); err != nil {
		r.logger.Error("filebatch.persist.failed", "file", name, "error", err.Error())
		return core.NewToolResult(string(raw))
	}

	r.logger.Info("filebatch.persisted", "file", name,
		"total", report.Total, "success", report.SuccessCount, "failure", report.FailureCount)
	return core.NewToolResult(fmt.Sprintf("Executed %d parameter sets. Success: %d, Failure: %d. Details saved to file: %s",
		report.Total, report.SuccessCount, report.FailureCount, name))
}
