package web

import (
	"context"
	"encoding/json"
	"testing"
)

func TestFetchToolRejectsMissingURL(t *testing.T) {
	tool := NewFetchTool(nil)
	out, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["ok"] != false {
		t.Fatalf("expected ok=false, got %v", m)
	}
}

func TestFetchToolSchemaRequiresURL(t *testing.T) {
	tool := NewFetchTool(nil)
	params := tool.JSONSchema()["parameters"].(map[string]any)
	req := params["required"].([]any)
	if len(req) != 1 || req[0] != "url" {
		t.Fatalf("expected required=[url], got %v", req)
	}
}

func TestFetchToolRejectsBadScheme(t *testing.T) {
	tool := NewFetchTool(NewFetcher())
	out, err := tool.Call(context.Background(), json.RawMessage(`{"url":"ftp://example.com/file"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["ok"] != false {
		t.Fatalf("expected ok=false for unsupported scheme, got %v", m)
	}
}
