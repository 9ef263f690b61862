package fanmesh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/fanmesh/fanmesh/config"
	"github.com/fanmesh/fanmesh/core"
	"github.com/fanmesh/fanmesh/logging"
	"github.com/fanmesh/fanmesh/tool"
	"github.com/fanmesh/fanmesh/workspace"
)

func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	mesh := New(func(o *Options) {
		o.Workspace = workspace.NewInMemoryStore()
		o.Logger = logging.NoOpLogger{}
	})
	t.Cleanup(mesh.Close)
	return mesh
}

func TestMesh_BatchLifecycle(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterTool(tool.NewEchoTool())

	batch := mesh.NewBatch()
	regs, err := batch.RegisterBatch("echo", []map[string]any{
		{"message": "one"},
		{"message": "two"},
	})
	require.NoError(t, err)
	require.Len(t, regs, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := batch.StartSync(ctx, core.CallContext{})
	require.NoError(t, err)
	assert.Equal(t, "Successfully executed 2 functions", gjson.Get(res.Output, "message").String())
	assert.Empty(t, batch.Pending())
}

func TestMesh_FileToolRegisteredByDefault(t *testing.T) {
	mesh := newTestMesh(t)

	_, ok := mesh.Tools().Resolve("file_based_parallel_execution_tool")
	assert.True(t, ok)
}

func TestMesh_ExecuteFile(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterTool(tool.NewEchoTool())

	require.NoError(t, mesh.opts.Workspace.Write("caller", "params.json",
		[]byte(`[{"message":"hi"}]`)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := mesh.ExecuteFileSync(ctx, "caller", "params.json", "echo")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Executed 1 parameter sets")
	assert.Contains(t, res.Output, "Success: 1, Failure: 0")
}

func TestMesh_ConfigDrivesCollaborators(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.Root = root
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"

	mesh := New(func(o *Options) { o.Config = cfg })
	defer mesh.Close()

	// The workspace is a directory store rooted at the configured path.
	_, ok := mesh.opts.Workspace.(*workspace.DirStore)
	require.True(t, ok)
	require.NoError(t, mesh.opts.Workspace.Write("caller", "params.json", []byte(`[]`)))
	_, err := os.Stat(filepath.Join(root, "caller", "shared", "params.json"))
	assert.NoError(t, err)

	// The logger is built from the configured level and format.
	_, ok = mesh.opts.Logger.(*logging.FanmeshLogger)
	assert.True(t, ok)
}

func TestMesh_BatchesAreIsolated(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterTool(tool.NewEchoTool())

	a := mesh.NewBatch()
	b := mesh.NewBatch()

	_, err := a.RegisterBatch("echo", []map[string]any{{"message": "a"}})
	require.NoError(t, err)

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}
