package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandle_SettleOnce(t *testing.T) {
	h := NewHandle()
	assert.False(t, h.Settled())

	h.Settle(NewToolResult("first"))
	h.Settle(NewToolResult("second")) // ignored

	assert.True(t, h.Settled())
	assert.Equal(t, "first", h.Result().Output)
	assert.Equal(t, KindSuccess, h.Result().Kind)
}

func TestHandle_ConcurrentSettle(t *testing.T) {
	h := NewHandle()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Settle(NewToolResult("racer"))
		}()
	}
	wg.Wait()
	assert.Equal(t, "racer", h.Result().Output)
}

func TestHandle_WaitCancellation(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The handle is still usable after a cancelled wait.
	h.Settle(NewToolResult("late"))
	res, err := h.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "late", res.Output)
}

func TestSettledHandle(t *testing.T) {
	h := SettledHandle(FailureResult(KindToolMissing, "Tool not found: %s", "missing"))
	assert.True(t, h.Settled())
	assert.Equal(t, KindToolMissing, h.Result().Kind)
	assert.Contains(t, h.Result().Output, "missing")
}

func TestWhenAll_EmptySettlesImmediately(t *testing.T) {
	out := WhenAll(nil, func() ToolResult { return NewToolResult("empty") })
	res, err := out.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "empty", res.Output)
}

func TestWhenAll_WaitsForAll(t *testing.T) {
	h1 := NewHandle()
	h2 := NewHandle()

	var settledFirst, settledSecond bool
	out := WhenAll([]*Handle{h1, h2}, func() ToolResult {
		settledFirst = h1.Settled()
		settledSecond = h2.Settled()
		return NewToolResult("all")
	})

	assert.False(t, out.Settled())
	h2.Settle(NewToolResult("b"))
	assert.False(t, out.Settled())
	h1.Settle(NewToolResult("a"))

	res, err := out.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "all", res.Output)
	assert.True(t, settledFirst)
	assert.True(t, settledSecond)
}

func TestWhenAll_DoesNotBlockCaller(t *testing.T) {
	h := NewHandle() // never settled during the assertion window
	start := time.Now()
	out := WhenAll([]*Handle{h}, func() ToolResult { return NewToolResult("done") })
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, out.Settled())
	h.Settle(NewToolResult("x"))
}
