package artifact

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/objectstore"
	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

func TestArtifactUploadPutsFileIntoStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("hello"), 0o644))

	ctx := sandbox.WithBaseDir(context.Background(), dir)
	ctx = sandbox.WithSessionID(ctx, "conv-1")

	store := objectstore.NewMemoryStore()
	tool := New(store, "artifacts")

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"report.txt"}`))
	require.NoError(t, err)

	env := respAny.(tools.Envelope)
	require.True(t, env.Success)
	data := env.Data.(map[string]any)
	key := data["key"].(string)

	rc, _, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestArtifactUploadRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	ctx := sandbox.WithBaseDir(context.Background(), t.TempDir())
	tool := New(objectstore.NewMemoryStore(), "")

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"../../etc/passwd"}`))
	require.NoError(t, err)
	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
}

func TestArtifactUploadRequiresWorkspace(t *testing.T) {
	t.Parallel()

	tool := New(objectstore.NewMemoryStore(), "")
	respAny, err := tool.Call(context.Background(), json.RawMessage(`{"path":"x.txt"}`))
	require.NoError(t, err)
	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
}
