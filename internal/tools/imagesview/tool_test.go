package imagesview

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/conversation"
	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

func newTestContext(t *testing.T) (context.Context, *conversation.MemoryConversationStore, string, string) {
	t.Helper()
	store := conversation.NewMemoryStore()
	convID, err := store.Create(context.Background(), "test-model", "")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.png"), []byte("fake-png"), 0o644))

	ctx := sandbox.WithSessionID(context.Background(), convID)
	ctx = sandbox.WithBaseDir(ctx, dir)
	return ctx, store, convID, dir
}

func TestManageImagesViewAddListRemoveClear(t *testing.T) {
	t.Parallel()

	ctx, store, _, _ := newTestContext(t)
	tool := New(store)

	addResp, err := tool.Call(ctx, json.RawMessage(`{"action":"add","image_paths":["chart.png"],"detail":"high"}`))
	require.NoError(t, err)
	addEnv := addResp.(tools.Envelope)
	require.True(t, addEnv.Success)

	listResp, err := tool.Call(ctx, json.RawMessage(`{"action":"list"}`))
	require.NoError(t, err)
	listEnv := listResp.(tools.Envelope)
	require.True(t, listEnv.Success)
	data := listEnv.Data.(map[string]any)
	require.Equal(t, 1, data["count"])

	removeResp, err := tool.Call(ctx, json.RawMessage(`{"action":"remove","image_paths":["chart.png"]}`))
	require.NoError(t, err)
	removeEnv := removeResp.(tools.Envelope)
	require.True(t, removeEnv.Success)

	listResp2, err := tool.Call(ctx, json.RawMessage(`{"action":"list"}`))
	require.NoError(t, err)
	listEnv2 := listResp2.(tools.Envelope)
	data2 := listEnv2.Data.(map[string]any)
	require.Equal(t, 0, data2["count"])
}

func TestManageImagesViewAddRejectsMissingFile(t *testing.T) {
	t.Parallel()

	ctx, store, _, _ := newTestContext(t)
	tool := New(store)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"action":"add","image_paths":["missing.png"]}`))
	require.NoError(t, err)

	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
}

func TestManageImagesViewClear(t *testing.T) {
	t.Parallel()

	ctx, store, _, _ := newTestContext(t)
	tool := New(store)

	_, err := tool.Call(ctx, json.RawMessage(`{"action":"add","image_paths":["chart.png"]}`))
	require.NoError(t, err)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"action":"clear"}`))
	require.NoError(t, err)
	env := respAny.(tools.Envelope)
	require.True(t, env.Success)

	listResp, err := tool.Call(ctx, json.RawMessage(`{"action":"list"}`))
	require.NoError(t, err)
	listEnv := listResp.(tools.Envelope)
	data := listEnv.Data.(map[string]any)
	require.Equal(t, 0, data["count"])
}

func TestManageImagesViewRequiresConversation(t *testing.T) {
	t.Parallel()

	store := conversation.NewMemoryStore()
	tool := New(store)

	respAny, err := tool.Call(context.Background(), json.RawMessage(`{"action":"list"}`))
	require.NoError(t, err)
	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
}
