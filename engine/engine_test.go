package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/pool"
	"github.com/fanmesh/fanmesh/tool"
)

func newTestExecutor(t *testing.T, tools *tool.Registry) *Executor {
	t.Helper()
	p := pool.New(func(o *pool.Options) { o.WorkersPerLevel = 2 })
	t.Cleanup(p.Close)
	return New(func(o *Options) {
		o.Tools = tools
		o.IDs = core.NewSequenceDispatcher()
		o.Pool = p
	})
}

func permissiveSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func TestRegisterBatch_CreatesRecordsInOrder(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	inputs := []map[string]any{
		{"message": "one"},
		{"message": "two"},
		{"message": "three"},
	}
	regs, err := e.RegisterBatch("echo", inputs)
	require.NoError(t, err)
	require.Len(t, regs, 3)

	seen := map[string]bool{}
	for i, reg := range regs {
		assert.Equal(t, StatusRegistered, reg.Status)
		assert.Equal(t, "echo", reg.ToolName)
		assert.Equal(t, inputs[i], reg.Input)
		assert.False(t, seen[reg.ID], "duplicate id %s", reg.ID)
		seen[reg.ID] = true
	}

	pending := e.Pending()
	require.Len(t, pending, 3)
	for i, p := range pending {
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, inputs[i], p.Input)
	}
}

func TestRegisterBatch_AllowsDuplicateInputs(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	same := map[string]any{"message": "dup"}
	regs, err := e.RegisterBatch("echo", []map[string]any{same, same})
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.NotEqual(t, regs[0].ID, regs[1].ID)
}

func TestRegisterBatch_Validation(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	_, err := e.RegisterBatch("", []map[string]any{{"a": 1}})
	assert.Error(t, err)

	_, err = e.RegisterBatch("echo", nil)
	assert.Error(t, err)

	assert.Empty(t, e.Pending())
}

func TestStart_EchoBatchSettlesInRegistrationOrder(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("echo", []map[string]any{
		{"message": "alpha"},
		{"message": "beta"},
		{"message": "gamma"},
	})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)
	assert.Equal(t, core.KindSuccess, res.Kind)

	summary := gjson.Parse(res.Output)
	assert.Equal(t, "Successfully executed 3 functions", summary.Get("message").String())

	results := summary.Get("results").Array()
	require.Len(t, results, 3)
	assert.Equal(t, "alpha", results[0].Get("output").String())
	assert.Equal(t, "beta", results[1].Get("output").String())
	assert.Equal(t, "gamma", results[2].Get("output").String())
	for _, r := range results {
		assert.Equal(t, StatusCompleted, r.Get("status").String())
		assert.NotEmpty(t, r.Get("id").String())
	}

	assert.Empty(t, e.Pending())
}

func TestStart_IdempotentRestartLeavesResultsUnchanged(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("echo", []map[string]any{{"message": "once"}})
	require.NoError(t, err)

	first, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	second, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	assert.Equal(t,
		gjson.Get(first.Output, "results").Raw,
		gjson.Get(second.Output, "results").Raw,
	)
	assert.Equal(t, "Successfully executed 0 functions", gjson.Get(second.Output, "message").String())
}

func TestStart_NothingRegistered(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)
	assert.Equal(t, "No functions registered", res.Output)
}

func TestClearPending_TerminalSentinel(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("echo", []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}})
	require.NoError(t, err)

	assert.Equal(t, 3, e.ClearPending())
	assert.Empty(t, e.Pending())
	assert.Equal(t, 0, e.ClearPending())

	// Cleared items are terminal; a later start retries nothing.
	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)
	for _, r := range gjson.Get(res.Output, "results").Array() {
		assert.Equal(t, "Cleared", r.Get("output").String())
	}
}

func TestStart_AllToolsUnresolved(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	inputs := make([]map[string]any, 4)
	for i := range inputs {
		inputs[i] = map[string]any{"n": i}
	}
	_, err := e.RegisterBatch("no_such_tool", inputs)
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	results := gjson.Get(res.Output, "results").Array()
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, "Tool not found: no_such_tool", r.Get("output").String())
	}
	assert.Empty(t, e.Pending())
}

func TestStart_MissingToolDoesNotAbortSiblings(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("echo", []map[string]any{{"message": "ok"}})
	require.NoError(t, err)
	_, err = e.RegisterBatch("missing", []map[string]any{{"message": "nope"}})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	results := gjson.Get(res.Output, "results").Array()
	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].Get("output").String())
	assert.Equal(t, "Tool not found: missing", results[1].Get("output").String())
}

func TestStart_ExecutionErrorCapturedPerItem(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewFunctionTool("flaky", "fails on demand", permissiveSchema(),
		func(_ context.Context, _ core.CallContext, args map[string]any) (string, error) {
			if fail, _ := args["fail"].(bool); fail {
				return "", errors.New("boom")
			}
			return "fine", nil
		}))
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("flaky", []map[string]any{
		{"fail": false},
		{"fail": true},
	})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	results := gjson.Get(res.Output, "results").Array()
	require.Len(t, results, 2)
	assert.Equal(t, "fine", results[0].Get("output").String())
	assert.Contains(t, results[1].Get("output").String(), "boom")
	assert.Equal(t, StatusCompleted, results[1].Get("status").String())
}

type shapedInput struct {
	Count int `json:"count" description:"How many"`
}

func TestStart_ConversionErrorFailsItemNotBatch(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewTypedTool[shapedInput]("shaped", "requires a typed input",
		func(_ context.Context, _ core.CallContext, input *shapedInput) (string, error) {
			return fmt.Sprintf("count=%d", input.Count), nil
		}))
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("shaped", []map[string]any{
		{"count": 2},
		{"count": "not a number"},
	})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)

	results := gjson.Get(res.Output, "results").Array()
	require.Len(t, results, 2)
	assert.Equal(t, "count=2", results[0].Get("output").String())
	assert.Contains(t, results[1].Get("output").String(), "Error:")
}

func TestStart_ReturnsWithoutBlocking(t *testing.T) {
	gate := make(chan struct{})
	tools := tool.NewRegistry()
	tools.Register(tool.NewFunctionTool("slow", "blocks until released", permissiveSchema(),
		func(_ context.Context, _ core.CallContext, _ map[string]any) (string, error) {
			<-gate
			return "released", nil
		}))
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("slow", []map[string]any{{}, {}, {}})
	require.NoError(t, err)

	begin := time.Now()
	h := e.Start(context.Background(), core.CallContext{})
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
	assert.False(t, h.Settled())

	close(gate)
	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Successfully executed 3 functions", gjson.Get(res.Output, "message").String())
}

func TestStart_NestedDispatchDoesNotDeadlock(t *testing.T) {
	// Every depth-0 worker runs an item that drives its own depth-1 batch and
	// blocks on it. With a single shared bounded pool this deadlocks; the
	// depth-indexed pool must settle the outer batch anyway.
	p := pool.New(func(o *pool.Options) { o.WorkersPerLevel = 2 })
	defer p.Close()

	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	tools.Register(tool.NewFunctionTool("subplan", "runs a nested echo batch", permissiveSchema(),
		func(ctx context.Context, call core.CallContext, _ map[string]any) (string, error) {
			inner := New(func(o *Options) {
				o.Tools = tools
				o.Pool = p
			})
			inputs := make([]map[string]any, 5)
			for i := range inputs {
				inputs[i] = map[string]any{"message": fmt.Sprintf("sub-%d", i)}
			}
			if _, err := inner.RegisterBatch("echo", inputs); err != nil {
				return "", err
			}
			res, err := inner.StartSync(ctx, call)
			if err != nil {
				return "", err
			}
			return gjson.Get(res.Output, "message").String(), nil
		}))

	outer := New(func(o *Options) {
		o.Tools = tools
		o.Pool = p
	})
	_, err := outer.RegisterBatch("subplan", []map[string]any{{}, {}, {}, {}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := outer.StartSync(ctx, core.CallContext{})
	require.NoError(t, err, "nested dispatch deadlocked")

	results := gjson.Get(res.Output, "results").Array()
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, "Successfully executed 5 functions", r.Get("output").String())
	}
}

func TestStart_WithoutPoolFallsBackToGoroutines(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoTool())
	e := New(func(o *Options) {
		o.Tools = tools
	})

	_, err := e.RegisterBatch("echo", []map[string]any{{"message": "no pool"}})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)
	assert.Equal(t, "no pool", gjson.Get(res.Output, "results.0.output").String())
}

func TestSummarize_NormalizesEscapedOutput(t *testing.T) {
	tools := tool.NewRegistry()
	tools.Register(tool.NewFunctionTool("nested_json", "emits re-escaped JSON", permissiveSchema(),
		func(_ context.Context, _ core.CallContext, _ map[string]any) (string, error) {
			return `{\"key\": \"value\"}`, nil
		}))
	e := newTestExecutor(t, tools)

	_, err := e.RegisterBatch("nested_json", []map[string]any{{}})
	require.NoError(t, err)

	res, err := e.StartSync(context.Background(), core.CallContext{})
	require.NoError(t, err)
	assert.Equal(t, `{"key": "value"}`, gjson.Get(res.Output, "results.0.output").String())
}

func TestRenderState(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	assert.Equal(t, "No functions registered", e.RenderState())

	_, err := e.RegisterBatch("echo", []map[string]any{{"message": "hi"}})
	require.NoError(t, err)

	state := gjson.Parse(e.RenderState())
	require.True(t, state.IsArray())
	items := state.Array()
	require.Len(t, items, 1)
	assert.Equal(t, "echo", items[0].Get("toolName").String())
	assert.Equal(t, StatusPending, items[0].Get("status").String())

	e.ClearPending()
	assert.Equal(t, "[]", e.RenderState())
}

func TestReset_DropsAllRecords(t *testing.T) {
	e := newTestExecutor(t, tool.NewRegistry())

	_, err := e.RegisterBatch("echo", []map[string]any{{"a": 1}})
	require.NoError(t, err)
	require.Equal(t, 1, e.Len())

	e.Reset()
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, "No functions registered", e.RenderState())
}
