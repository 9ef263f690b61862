// Package engine implements the depth-aware parallel execution engine: an
// append-only registry of work items plus the dispatcher that fans a batch of
// heterogeneous tool calls out across the depth-indexed worker pool and
// aggregates their results through a non-blocking completion chain.
//
// One Executor instance owns one batch lifecycle. Callers register items with
// RegisterBatch, start them with Start (which returns immediately with a
// handle), and inspect progress with Pending, ClearPending and RenderState.
// BatchTool wraps an Executor as an async-capable tool so plans can drive
// nested batches through the same dispatch pipeline they run in.
package engine
