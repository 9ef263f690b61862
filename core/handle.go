package core

import (
	"context"
	"sync"
)

// Handle is a settle-once completion primitive for an asynchronous unit of
// work. It is the Go rendering of a future: producers call Settle exactly
// once, consumers wait on Done or Wait. Additional Settle calls are ignored,
// which makes completion callbacks safe to race.
//
// A Handle never carries a Go error; captured failures travel inside the
// ToolResult (see ResultKind). This mirrors the engine's propagation policy
// where per-item errors are values in the result list.
type Handle struct {
	done   chan struct{}
	once   sync.Once
	result ToolResult
}

// NewHandle returns an unsettled handle.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// SettledHandle returns a handle already settled with the given result.
// Used for items that fail before dispatch (missing tool, bad input).
func SettledHandle(result ToolResult) *Handle {
	h := NewHandle()
	h.Settle(result)
	return h
}

// Settle completes the handle with the given result. Only the first call has
// any effect.
func (h *Handle) Settle(result ToolResult) {
	h.once.Do(func() {
		h.result = result
		close(h.done)
	})
}

// Done returns a channel closed once the handle has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Settled reports whether the handle has already settled without blocking.
func (h *Handle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the handle settles or ctx is cancelled. On cancellation
// the zero ToolResult and the context error are returned; the underlying work
// is not interrupted.
func (h *Handle) Wait(ctx context.Context) (ToolResult, error) {
	select {
	case <-ctx.Done():
		return ToolResult{}, ctx.Err()
	case <-h.done:
		return h.result, nil
	}
}

// Result returns the settled result. It must only be called after Done is
// closed; calling it earlier returns the zero value.
func (h *Handle) Result() ToolResult {
	select {
	case <-h.done:
		return h.result
	default:
		return ToolResult{}
	}
}

// WhenAll returns a handle that settles once every input handle has settled.
// The summary callback builds the aggregate result and runs on the waiting
// goroutine, after the last input settles. The caller is never blocked.
func WhenAll(handles []*Handle, summary func() ToolResult) *Handle {
	out := NewHandle()
	if len(handles) == 0 {
		out.Settle(summary())
		return out
	}
	go func() {
		for _, h := range handles {
			<-h.Done()
		}
		out.Settle(summary())
	}()
	return out
}
