// Package fanmesh provides a high-level façade over the depth-aware parallel
// execution engine: tool registration, batch dispatch across the depth-indexed
// worker pool, and the file-driven batch runner. Most applications interact
// with this package by:
//  1. Creating a Mesh via New() (optionally overriding pool, storage or logger)
//  2. Registering one or more tools
//  3. Opening a batch with NewBatch(), registering inputs and starting it
//
// The façade delegates dispatch to engine.Executor while keeping setup and
// usage ergonomics concise. Unset collaborators are derived from the supplied
// Config, so a production deployment only needs config.Load plus the tools it
// registers; tests usually inject an in-memory workspace and a no-op logger.
package fanmesh

import (
	"context"

	"github.com/fanmesh/fanmesh/config"
	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/engine"
	"github.com/fanmesh/fanmesh/filebatch"
	"github.com/fanmesh/fanmesh/logging"
	"github.com/fanmesh/fanmesh/pool"
	"github.com/fanmesh/fanmesh/tool"
	"github.com/fanmesh/fanmesh/workspace"
)

// Options configures the Mesh instance.
type Options struct {
	// Config supplies pool sizing, workspace location and logging settings.
	// Defaults to config.Default().
	Config config.Config

	// Workspace overrides the caller-scoped storage backing the file-batch
	// runner. When nil, a workspace.DirStore rooted at Config.Workspace.Root
	// is used.
	Workspace workspace.Store

	// IDs generates registration and lineage identifiers. Defaults to
	// UUID-backed ids.
	IDs core.Dispatcher

	// Logger overrides log output. When nil, a structured logger is built
	// from Config.Logging.
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the tool registry, the worker
// pool and the file-batch runner. One Mesh is shared by many batches; each
// batch gets its own Executor.
type Mesh struct {
	opts   Options
	tools  *tool.Registry
	pool   *pool.LevelPool
	runner *filebatch.Runner
}

// New creates a Mesh with optional overrides. Collaborators left unset are
// derived from Config: the workspace becomes a DirStore at
// Config.Workspace.Root and the logger follows Config.Logging.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Config: config.Default(),
		IDs:    core.NewUUIDDispatcher(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  logging.ParseLevel(opts.Config.Logging.Level),
			Format: opts.Config.Logging.Format,
		})
	}
	if opts.Workspace == nil {
		opts.Workspace = workspace.NewDirStore(opts.Config.Workspace.Root)
	}

	tools := tool.NewRegistry()
	p := pool.New(func(o *pool.Options) {
		o.WorkersPerLevel = opts.Config.Pool.WorkersPerLevel
		o.Logger = opts.Logger
	})
	runner := filebatch.NewRunner(opts.Workspace, func(o *filebatch.Options) {
		o.Tools = tools
		o.IDs = opts.IDs
		o.Pool = p
		o.Logger = opts.Logger
	})

	m := &Mesh{
		opts:   opts,
		tools:  tools,
		pool:   p,
		runner: runner,
	}

	// The file-batch front end is itself a tool, so plans can fan out
	// parameter files through the same dispatch pipeline they run in.
	tools.Register(filebatch.NewFileTool(runner))

	return m
}

// RegisterTool adds a tool to the shared registry.
func (m *Mesh) RegisterTool(t tool.Tool) { m.tools.Register(t) }

// Tools returns the shared tool registry.
func (m *Mesh) Tools() *tool.Registry { return m.tools }

// NewBatch opens a fresh Executor wired to the mesh's registry, ids and pool.
// Executors are single-batch: open one per plan and Reset it on teardown.
func (m *Mesh) NewBatch() *engine.Executor {
	return engine.New(func(o *engine.Options) {
		o.Tools = m.tools
		o.IDs = m.opts.IDs
		o.Pool = m.pool
		o.Logger = m.opts.Logger
	})
}

// NewBatchTool opens a fresh Executor and wraps it as a dispatchable tool.
// Registering the returned tool lets work items drive nested batches.
func (m *Mesh) NewBatchTool() *engine.BatchTool {
	return engine.NewBatchTool(m.NewBatch(), func(o *engine.BatchToolOptions) {
		o.Logger = m.opts.Logger
	})
}

// ExecuteFile runs the file-driven batch pipeline: read fileName from the
// caller's workspace scope, dispatch one item per parameter set against
// toolName, persist the report. The returned handle settles when the report
// is written (or degraded to an inline result).
func (m *Mesh) ExecuteFile(ctx context.Context, callerID, fileName, toolName string) *core.Handle {
	call := core.NewCallContext(m.opts.IDs.NewLineageID())
	return m.runner.Execute(ctx, call, callerID, fileName, toolName)
}

// ExecuteFileSync is the blocking convenience wrapper over ExecuteFile.
func (m *Mesh) ExecuteFileSync(ctx context.Context, callerID, fileName, toolName string) (core.ToolResult, error) {
	return m.ExecuteFile(ctx, callerID, fileName, toolName).Wait(ctx)
}

// Close releases the worker pool. Queued work drains; new submissions settle
// as captured failures.
func (m *Mesh) Close() { m.pool.Close() }
