package web

import (
	"context"
	"encoding/json"
	"testing"

	"manifold/internal/sandbox"
)

func TestScreenshotToolRejectsMissingURL(t *testing.T) {
	tool := NewScreenshotTool()
	raw, _ := json.Marshal(map[string]any{})
	res, err := tool.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := res.(map[string]any)
	if m["ok"] != false {
		t.Fatalf("expected ok=false for missing url, got %#v", m)
	}
}

func TestScreenshotToolRejectsMissingBaseDir(t *testing.T) {
	tool := NewScreenshotTool()
	raw, _ := json.Marshal(map[string]any{"url": "https://example.com"})
	res, err := tool.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := res.(map[string]any)
	if m["ok"] != false {
		t.Fatalf("expected ok=false without a workspace base dir, got %#v", m)
	}
}

func TestScreenshotToolSchemaRequiresURL(t *testing.T) {
	tool := NewScreenshotTool()
	schema := tool.JSONSchema()
	params := schema["parameters"].(map[string]any)
	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "url" {
		t.Fatalf("expected url to be required, got %#v", required)
	}
}

// ensures WithBaseDir is the shape the tool actually checks, without touching chromedp.
func TestScreenshotToolBaseDirPlumbing(t *testing.T) {
	ctx := sandbox.WithBaseDir(context.Background(), t.TempDir())
	if dir, ok := sandbox.BaseDirFromContext(ctx); !ok || dir == "" {
		t.Fatalf("expected base dir to round-trip through context")
	}
}
