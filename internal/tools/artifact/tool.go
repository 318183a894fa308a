// Package artifact exposes a tool that mirrors a workspace file to the
// configured object store (S3/MinIO in production, an in-memory store in
// local dev), so generated artifacts survive past the lifetime of the local
// sandbox working directory.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/objectstore"
	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

type tool struct {
	store  objectstore.ObjectStore
	prefix string
}

// New builds the artifact_upload tool against the given object store. prefix
// is prepended to every key so multiple conversations can share one bucket
// without colliding.
func New(store objectstore.ObjectStore, prefix string) *tool {
	return &tool{store: store, prefix: strings.Trim(prefix, "/")}
}

type args struct {
	Path string `json:"path"`
}

func (t *tool) Name() string { return "artifact_upload" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Upload a file from the current workspace to durable object storage and return its reference key.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []any{"path"},
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Workspace-relative path of the file to upload.",
				},
			},
		},
	}
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "invalid arguments: "+err.Error()), nil
	}
	a.Path = strings.TrimSpace(a.Path)
	if a.Path == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "path is required"), nil
	}
	if strings.Contains(a.Path, "..") {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "path must not contain '..'"), nil
	}

	baseDir, ok := sandbox.BaseDirFromContext(ctx)
	if !ok {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "no workspace directory bound to this run"), nil
	}
	full := filepath.Join(baseDir, a.Path)

	f, err := os.Open(full)
	if err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "open file: "+err.Error()), nil
	}
	defer f.Close()

	key := a.Path
	if convID, ok := sandbox.SessionIDFromContext(ctx); ok && convID != "" {
		key = fmt.Sprintf("%s/%s", convID, key)
	}
	if t.prefix != "" {
		key = t.prefix + "/" + key
	}

	etag, err := t.store.Put(ctx, key, f, objectstore.PutOptions{})
	if err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "upload failed: "+err.Error()), nil
	}

	return tools.Ok(t.Name(), tools.ToolTypeAtomic, map[string]any{
		"key":  key,
		"etag": etag,
	}), nil
}
