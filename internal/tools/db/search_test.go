package db

import (
	"context"
	"encoding/json"
	"testing"

	"manifold/internal/persistence/databases"
)

func TestSearchIndexAndQueryRoundTrip(t *testing.T) {
	s := databases.NewMemorySearch()
	idx := NewSearchIndexTool(s)
	qry := NewSearchQueryTool(s)
	ctx := context.Background()

	idxRaw, _ := json.Marshal(map[string]any{"id": "doc-1", "text": "the quick brown fox"})
	if _, err := idx.Call(ctx, idxRaw); err != nil {
		t.Fatalf("index call failed: %v", err)
	}

	qRaw, _ := json.Marshal(map[string]any{"query": "quick fox"})
	res, err := qry.Call(ctx, qRaw)
	if err != nil {
		t.Fatalf("query call failed: %v", err)
	}
	m, ok := res.(map[string]any)
	if !ok || m["ok"] != true {
		t.Fatalf("expected ok result, got %#v", res)
	}
	results, ok := m["results"].([]databases.SearchResult)
	if !ok || len(results) != 1 || results[0].ID != "doc-1" {
		t.Fatalf("expected doc-1 hit, got %#v", m["results"])
	}
}

func TestSearchQueryNoMatch(t *testing.T) {
	s := databases.NewMemorySearch()
	qry := NewSearchQueryTool(s)

	raw, _ := json.Marshal(map[string]any{"query": "nonexistent"})
	res, err := qry.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("query call failed: %v", err)
	}
	m := res.(map[string]any)
	results := m["results"].([]databases.SearchResult)
	if len(results) != 0 {
		t.Fatalf("expected no hits, got %d", len(results))
	}
}
