package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/internal/util"
	"github.com/fanmesh/fanmesh/logging"
	"github.com/fanmesh/fanmesh/pool"
	"github.com/fanmesh/fanmesh/tool"
)

// Registration statuses reported by the introspection operations.
const (
	StatusRegistered = "REGISTERED"
	StatusPending    = "PENDING"
	StatusCompleted  = "COMPLETED"
)

// Registration is the caller-visible echo of a registry entry. ID is set on
// the registration acknowledgement and omitted from pending listings.
type Registration struct {
	ID       string         `json:"id,omitempty"`
	Input    map[string]any `json:"input"`
	ToolName string         `json:"toolName"`
	Status   string         `json:"status"`
}

// ResultItem is one settled entry of a batch summary. Captured failures carry
// their error text in Output under the same COMPLETED status as successes;
// callers that need the distinction inspect counts or the per-record kind.
type ResultItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// Summary is the aggregate produced once every dispatched item has settled.
type Summary struct {
	Message string       `json:"message"`
	Results []ResultItem `json:"results"`
}

// record is one registry entry. The result cell is guarded by its own mutex so
// concurrent completion callbacks for distinct records never contend on the
// registry's backing slice; the slice itself is only appended to under the
// executor mutex.
type record struct {
	id       string
	toolName string
	input    map[string]any

	mu     sync.Mutex
	result *core.ToolResult
}

// settle writes the record's result. The first write wins; later writes (a
// racing ClearPending, a duplicate callback) are dropped.
func (r *record) settle(res core.ToolResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		return false
	}
	r.result = &res
	return true
}

// snapshot returns the record's result, if settled.
func (r *record) snapshot() (core.ToolResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return core.ToolResult{}, false
	}
	return *r.result, true
}

// Executor owns the registration registry for one batch lifecycle and drives
// dispatch across the depth-indexed pool. Executors are not shared across
// unrelated batches; create one per plan and Reset it on teardown.
type Executor struct {
	mu      sync.Mutex
	records []*record

	tools  *tool.Registry
	ids    core.Dispatcher
	pool   *pool.LevelPool
	logger logging.Logger
}

// Options configures an Executor.
type Options struct {
	// Tools resolves tool names at dispatch time. Defaults to an empty
	// registry, in which every dispatch settles as "Tool not found".
	Tools *tool.Registry

	// IDs generates registration and lineage identifiers. Defaults to
	// UUID-backed ids.
	IDs core.Dispatcher

	// Pool supplies per-depth execution capacity for blocking tools. When nil
	// the executor degrades to spawning a plain goroutine per blocking item:
	// correct, but without the per-depth capacity bound.
	Pool *pool.LevelPool

	// Logger receives dispatch lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New creates an Executor with the given options.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Tools:  tool.NewRegistry(),
		IDs:    core.NewUUIDDispatcher(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		tools:  opts.Tools,
		ids:    opts.IDs,
		pool:   opts.Pool,
		logger: opts.Logger,
	}
}

// RegisterBatch appends one registry record per input, in input order, and
// returns their acknowledgements. Duplicate inputs are allowed; there is no
// identity dedup. A blank tool name or an empty input list fails validation
// and registers nothing.
func (e *Executor) RegisterBatch(toolName string, inputs []map[string]any) ([]Registration, error) {
	if toolName == "" {
		return nil, &util.ValidationError{Field: "tool_name", Message: "tool_name is required"}
	}
	if len(inputs) == 0 {
		return nil, &util.ValidationError{Field: "functions", Message: "at least one input is required"}
	}

	regs := make([]Registration, 0, len(inputs))

	e.mu.Lock()
	for _, input := range inputs {
		if input == nil {
			input = map[string]any{}
		}
		rec := &record{
			id:       e.ids.NewRegistrationID(),
			toolName: toolName,
			input:    input,
		}
		e.records = append(e.records, rec)
		regs = append(regs, Registration{
			ID:       rec.id,
			Input:    rec.input,
			ToolName: rec.toolName,
			Status:   StatusRegistered,
		})
	}
	e.mu.Unlock()

	e.logger.Debug("engine.register", "tool", toolName, "count", len(regs))
	return regs, nil
}

// Pending returns the unsettled records in registration order. A pure read.
func (e *Executor) Pending() []Registration {
	pending := make([]Registration, 0)
	for _, rec := range e.snapshotRecords() {
		if _, settled := rec.snapshot(); settled {
			continue
		}
		pending = append(pending, Registration{
			Input:    rec.input,
			ToolName: rec.toolName,
			Status:   StatusPending,
		})
	}
	return pending
}

// ClearPending writes the "Cleared" sentinel into every unsettled record and
// returns the number of records touched. Cleared records are terminal; they
// are skipped by later Start calls and never retried. Work already submitted
// to a worker is not interrupted.
func (e *Executor) ClearPending() int {
	cleared := 0
	for _, rec := range e.snapshotRecords() {
		if rec.settle(core.ClearedResult()) {
			cleared++
		}
	}
	e.logger.Debug("engine.clear", "count", cleared)
	return cleared
}

// RenderState returns a JSON snapshot of the pending records, for operator
// visibility only.
func (e *Executor) RenderState() string {
	if len(e.snapshotRecords()) == 0 {
		return "No functions registered"
	}
	state := "[]"
	for _, p := range e.Pending() {
		next, err := sjson.Set(state, "-1", p)
		if err != nil {
			return "[]"
		}
		state = next
	}
	return state
}

// RecordView is a read-only copy of one registry record. Result is nil while
// the record is unsettled.
type RecordView struct {
	ID       string
	ToolName string
	Input    map[string]any
	Result   *core.ToolResult
}

// Snapshot returns a copy of every record in registration order. Consumers
// that need to distinguish success from captured failure (the file-batch
// tally) read the per-record Result kind here instead of parsing summary text.
func (e *Executor) Snapshot() []RecordView {
	records := e.snapshotRecords()
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		view := RecordView{
			ID:       rec.id,
			ToolName: rec.toolName,
			Input:    rec.input,
		}
		if res, settled := rec.snapshot(); settled {
			view.Result = &res
		}
		views = append(views, view)
	}
	return views
}

// Len returns the total number of records, settled or not.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Reset drops every record. Called on plan teardown; the executor can be
// reused for a fresh batch afterwards.
func (e *Executor) Reset() {
	e.mu.Lock()
	e.records = nil
	e.mu.Unlock()
}

// Start dispatches every unsettled record and returns immediately with a
// handle that settles once all of them have. Records whose tool name does not
// resolve settle as "Tool not found" failures without aborting their siblings.
// Async-capable tools are invoked directly and never occupy a pool worker;
// blocking tools are submitted to the pool at the caller's depth. Calling
// Start again with nothing pending yields a summary of the existing results
// unchanged.
func (e *Executor) Start(ctx context.Context, call core.CallContext) *core.Handle {
	if call.LineageID == "" {
		call = call.WithLineage(e.ids.NewLineageID())
	}

	records := e.snapshotRecords()
	if len(records) == 0 {
		return core.SettledHandle(core.NewToolResult("No functions registered"))
	}

	handles := make([]*core.Handle, 0, len(records))
	dispatched := 0
	for _, rec := range records {
		if _, settled := rec.snapshot(); settled {
			continue
		}
		dispatched++

		t, ok := e.tools.Resolve(rec.toolName)
		if !ok {
			e.logger.Warn("engine.dispatch.missing", "tool", rec.toolName, "lineage_id", call.LineageID)
			rec.settle(core.FailureResult(core.KindToolMissing, "Tool not found: %s", rec.toolName))
			continue
		}

		if asyncTool, ok := t.(tool.AsyncTool); ok {
			handles = append(handles, e.dispatchAsync(ctx, asyncTool, rec, call))
		} else {
			handles = append(handles, e.dispatchBlocking(ctx, t, rec, call))
		}
	}

	if dispatched == 0 {
		return core.SettledHandle(e.summarize(0))
	}

	e.logger.Info("engine.start", "dispatched", dispatched, "depth", call.Depth, "lineage_id", call.LineageID)
	count := dispatched
	return core.WhenAll(handles, func() core.ToolResult {
		return e.summarize(count)
	})
}

// StartSync is the blocking convenience wrapper over Start. It must not be
// used from inside a tool body running on the pool at the same depth it
// dispatches to, or the starvation problem the depth-indexed pool exists to
// solve comes back.
func (e *Executor) StartSync(ctx context.Context, call core.CallContext) (core.ToolResult, error) {
	return e.Start(ctx, call).Wait(ctx)
}

// dispatchAsync invokes an async-capable tool directly with a
// depth-incremented context. The returned handle settles after the record has
// absorbed the tool's result, so WhenAll never observes a half-written
// registry.
func (e *Executor) dispatchAsync(ctx context.Context, t tool.AsyncTool, rec *record, call core.CallContext) *core.Handle {
	input, err := util.CoerceInput(rec.input, t.InputShape())
	if err != nil {
		res := core.FailureResult(core.KindConversionError, "Error: %s", err)
		rec.settle(res)
		return core.SettledHandle(res)
	}

	e.logger.Debug("engine.dispatch.async", "tool", rec.toolName, "depth", call.Depth)
	inner := t.CallAsync(ctx, call.Child(), input)

	out := core.NewHandle()
	go func() {
		<-inner.Done()
		res := inner.Result()
		rec.settle(res)
		out.Settle(res)
	}()
	return out
}

// dispatchBlocking submits a blocking invocation to the pool at the caller's
// depth. Without a pool it falls back to a plain goroutine.
func (e *Executor) dispatchBlocking(ctx context.Context, t tool.Tool, rec *record, call core.CallContext) *core.Handle {
	e.logger.Debug("engine.dispatch.blocking", "tool", rec.toolName, "depth", call.Depth)

	task := func() core.ToolResult {
		res := invoke(ctx, t, rec.input, call.Child())
		rec.settle(res)
		return res
	}

	if e.pool != nil {
		return e.pool.Submit(call.Depth, task)
	}

	out := core.NewHandle()
	go func() {
		out.Settle(task())
	}()
	return out
}

// invoke coerces the record input into the tool's declared shape and runs the
// tool body, converting any failure into a captured result. A panicking tool
// body fails its own item only.
func invoke(ctx context.Context, t tool.Tool, args map[string]any, call core.CallContext) (res core.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = core.FailureResult(core.KindExecutionError, "Error: panic in tool %s: %v", t.Name(), r)
		}
	}()

	input, err := util.CoerceInput(args, t.InputShape())
	if err != nil {
		return core.FailureResult(core.KindConversionError, "Error: %s", err)
	}

	output, err := t.Call(ctx, call, input)
	if err != nil {
		return core.FailureResult(core.KindExecutionError, "Error: %s", err)
	}
	return core.NewToolResult(output)
}

// summarize rebuilds the settled results by iterating the registry, not the
// completion stream, so the summary preserves registration order regardless
// of completion order.
func (e *Executor) summarize(dispatched int) core.ToolResult {
	items := make([]ResultItem, 0, e.Len())
	for _, rec := range e.snapshotRecords() {
		res, settled := rec.snapshot()
		if !settled {
			continue
		}
		output := util.NormalizeEscapes(res.Output)
		if output == "" {
			output = "No output"
		}
		items = append(items, ResultItem{
			ID:     rec.id,
			Status: StatusCompleted,
			Output: output,
		})
	}

	summary := Summary{
		Message: fmt.Sprintf("Successfully executed %d functions", dispatched),
		Results: items,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return core.NewToolResult(summary.Message)
	}
	return core.NewToolResult(string(data))
}

// snapshotRecords copies the record slice under the executor mutex so dispatch
// and introspection iterate a stable view while registrations continue.
func (e *Executor) snapshotRecords() []*record {
	e.mu.Lock()
	defer e.mu.Unlock()
	records := make([]*record, len(e.records))
	copy(records, e.records)
	return records
}
