// Package pool provides the depth-indexed worker pool backing blocking tool
// dispatch. Each recursion depth gets its own independently bounded set of
// workers, created lazily on first use. A blocking unit of work running at
// depth d therefore never competes for capacity with the depth d+1 work it
// spawns; without that isolation a single bounded pool deadlocks as soon as
// every worker holds an outer task that waits synchronously on inner tasks.
package pool

import (
	"fmt"
	"sync"

	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/logging"
)

// Task is a blocking unit of work executed on a pool worker.
type Task func() core.ToolResult

type queued struct {
	run    Task
	handle *core.Handle
}

// level owns the workers and the unbounded FIFO queue for one depth. The
// queue is unbounded so Submit never blocks the dispatcher; capacity is
// bounded by the worker count, not the queue.
type level struct {
	depth  int
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queued
	closed bool
}

// LevelPool maintains one execution pool per observed recursion depth.
// Levels are created lazily and idempotently under the pool mutex, so
// concurrent first submissions at the same depth observe a single level.
type LevelPool struct {
	mu      sync.Mutex
	levels  map[int]*level
	workers int
	logger  logging.Logger
	closed  bool
}

// Options configures a LevelPool.
type Options struct {
	// WorkersPerLevel bounds each depth's worker count. Values below 1 fall
	// back to DefaultWorkersPerLevel.
	WorkersPerLevel int

	// Logger receives pool lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// DefaultWorkersPerLevel is the per-depth worker bound used when none is
// configured.
const DefaultWorkersPerLevel = 4

// New creates a LevelPool with the given options.
func New(optFns ...func(o *Options)) *LevelPool {
	opts := Options{
		WorkersPerLevel: DefaultWorkersPerLevel,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.WorkersPerLevel < 1 {
		opts.WorkersPerLevel = DefaultWorkersPerLevel
	}
	return &LevelPool{
		levels:  make(map[int]*level),
		workers: opts.WorkersPerLevel,
		logger:  opts.Logger,
	}
}

// Submit schedules a blocking task on the pool assigned to depth and returns
// a handle that settles with the task's result. Negative depths are clamped
// to 0. Submit never blocks: tasks beyond the worker bound queue in FIFO
// order. Submitting to a closed pool settles the handle with a captured
// failure.
func (p *LevelPool) Submit(depth int, run Task) *core.Handle {
	if depth < 0 {
		depth = 0
	}

	handle := core.NewHandle()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		handle.Settle(core.FailureResult(core.KindExecutionError, "Error: worker pool is closed"))
		return handle
	}
	lv := p.levelLocked(depth)
	p.mu.Unlock()

	lv.mu.Lock()
	if lv.closed {
		lv.mu.Unlock()
		handle.Settle(core.FailureResult(core.KindExecutionError, "Error: worker pool is closed"))
		return handle
	}
	lv.queue = append(lv.queue, queued{run: run, handle: handle})
	lv.cond.Signal()
	lv.mu.Unlock()

	return handle
}

// Levels returns the depths that currently have a pool, for introspection.
func (p *LevelPool) Levels() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	depths := make([]int, 0, len(p.levels))
	for d := range p.levels {
		depths = append(depths, d)
	}
	return depths
}

// Close stops accepting new tasks. Queued tasks still drain; workers exit
// once their queue is empty. Close is idempotent.
func (p *LevelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	levels := make([]*level, 0, len(p.levels))
	for _, lv := range p.levels {
		levels = append(levels, lv)
	}
	p.mu.Unlock()

	for _, lv := range levels {
		lv.mu.Lock()
		lv.closed = true
		lv.cond.Broadcast()
		lv.mu.Unlock()
	}
}

// levelLocked returns the level for depth, creating it (and starting its
// workers) on first use. Caller holds p.mu.
func (p *LevelPool) levelLocked(depth int) *level {
	if lv, ok := p.levels[depth]; ok {
		return lv
	}

	lv := &level{depth: depth}
	lv.cond = sync.NewCond(&lv.mu)
	p.levels[depth] = lv

	p.logger.Debug("pool.level.created", "depth", depth, "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		go lv.work()
	}

	return lv
}

func (lv *level) work() {
	for {
		lv.mu.Lock()
		for len(lv.queue) == 0 && !lv.closed {
			lv.cond.Wait()
		}
		if len(lv.queue) == 0 && lv.closed {
			lv.mu.Unlock()
			return
		}
		next := lv.queue[0]
		lv.queue = lv.queue[1:]
		lv.mu.Unlock()

		next.handle.Settle(safeRun(next.run))
	}
}

// safeRun executes a task, converting a panic into a captured failure so one
// bad tool body never takes a worker down.
func safeRun(run Task) (result core.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = core.FailureResult(core.KindExecutionError, "Error: panic in worker: %v", r)
		}
	}()
	return run()
}

// String describes the pool's current shape for operator logs.
func (p *LevelPool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("LevelPool(levels=%d, workers_per_level=%d)", len(p.levels), p.workers)
}
