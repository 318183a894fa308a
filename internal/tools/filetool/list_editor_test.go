package filetool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/sandbox"
)

func TestListToolListsNonRecursive(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "sub", "b.txt"), []byte("b"), 0o644))

	tool := NewListTool([]string{tmp})
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	resp := respAny.(listResult)
	require.True(t, resp.OK)
	var names []string
	for _, e := range resp.Entries {
		names = append(names, e.Path)
	}
	require.Contains(t, names, "a.txt")
	require.Contains(t, names, "sub")
	require.NotContains(t, names, "sub/b.txt")
}

func TestListToolRecursive(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "sub", "b.txt"), []byte("b"), 0o644))

	tool := NewListTool([]string{tmp})
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"recursive":true}`))
	require.NoError(t, err)

	resp := respAny.(listResult)
	require.True(t, resp.OK)
	var names []string
	for _, e := range resp.Entries {
		names = append(names, e.Path)
	}
	require.Contains(t, names, filepath.ToSlash(filepath.Join("sub", "b.txt")))
}

func TestEditorToolStringReplace(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "doc.txt"), []byte("hello world"), 0o644))

	tool := NewEditorTool([]string{tmp}, 0)
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"doc.txt","old_string":"world","new_string":"there"}`))
	require.NoError(t, err)

	resp := respAny.(editorResult)
	require.True(t, resp.OK)
	data, err := os.ReadFile(filepath.Join(base, "doc.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello there", string(data))
}

func TestEditorToolStringReplaceRejectsAmbiguousMatch(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "doc.txt"), []byte("a a a"), 0o644))

	tool := NewEditorTool([]string{tmp}, 0)
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"doc.txt","old_string":"a","new_string":"b"}`))
	require.NoError(t, err)

	resp := respAny.(editorResult)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "not unique")
}

func TestEditorToolLineRangeReplace(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "doc.txt"), []byte("one\ntwo\nthree\n"), 0o644))

	tool := NewEditorTool([]string{tmp}, 0)
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"doc.txt","start_line":2,"end_line":2,"line_content":"TWO","verify_context":"two"}`))
	require.NoError(t, err)

	resp := respAny.(editorResult)
	require.True(t, resp.OK)
	data, err := os.ReadFile(filepath.Join(base, "doc.txt"))
	require.NoError(t, err)
	require.Equal(t, "one\nTWO\nthree\n", string(data))
}

func TestEditorToolLineRangeVerifyContextMismatchAborts(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "doc.txt"), []byte("one\ntwo\nthree\n"), 0o644))

	tool := NewEditorTool([]string{tmp}, 0)
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"doc.txt","start_line":2,"end_line":2,"line_content":"TWO","verify_context":"nope"}`))
	require.NoError(t, err)

	resp := respAny.(editorResult)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "verify_context")

	data, err := os.ReadFile(filepath.Join(base, "doc.txt"))
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\nthree\n", string(data))
}

func TestEditorToolRejectsBothModes(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	base := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "doc.txt"), []byte("one\n"), 0o644))

	tool := NewEditorTool([]string{tmp}, 0)
	ctx := sandbox.WithBaseDir(context.Background(), base)

	respAny, err := tool.Call(ctx, json.RawMessage(`{"path":"doc.txt","old_string":"one","new_string":"two","start_line":1,"end_line":1,"line_content":"x"}`))
	require.NoError(t, err)

	resp := respAny.(editorResult)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "mutually exclusive")
}
