package db

import (
	"context"
	"encoding/json"
	"testing"

	"manifold/internal/persistence/databases"
)

func TestGraphUpsertNodeThenQuery(t *testing.T) {
	g := databases.NewMemoryGraph()
	upsert := NewGraphUpsertTool(g)
	query := NewGraphQueryTool(g)
	ctx := context.Background()

	nodeRaw, _ := json.Marshal(map[string]any{"id": "n1", "labels": []string{"Person"}})
	if _, err := upsert.Call(ctx, nodeRaw); err != nil {
		t.Fatalf("node upsert failed: %v", err)
	}

	qRaw, _ := json.Marshal(map[string]any{"id": "n1"})
	res, err := query.Call(ctx, qRaw)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	m := res.(map[string]any)
	if m["found"] != true {
		t.Fatalf("expected node to be found, got %#v", m)
	}
}

func TestGraphUpsertEdgeThenNeighbors(t *testing.T) {
	g := databases.NewMemoryGraph()
	upsert := NewGraphUpsertTool(g)
	query := NewGraphQueryTool(g)
	ctx := context.Background()

	edgeRaw, _ := json.Marshal(map[string]any{"src": "n1", "rel": "knows", "dst": "n2"})
	if _, err := upsert.Call(ctx, edgeRaw); err != nil {
		t.Fatalf("edge upsert failed: %v", err)
	}

	qRaw, _ := json.Marshal(map[string]any{"id": "n1", "rel": "knows"})
	res, err := query.Call(ctx, qRaw)
	if err != nil {
		t.Fatalf("neighbors query failed: %v", err)
	}
	m := res.(map[string]any)
	neighbors, ok := m["neighbors"].([]string)
	if !ok || len(neighbors) != 1 || neighbors[0] != "n2" {
		t.Fatalf("expected neighbor n2, got %#v", m["neighbors"])
	}
}

func TestGraphUpsertRejectsEmptyInput(t *testing.T) {
	g := databases.NewMemoryGraph()
	upsert := NewGraphUpsertTool(g)

	raw, _ := json.Marshal(map[string]any{})
	res, err := upsert.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := res.(map[string]any)
	if m["ok"] != false {
		t.Fatalf("expected ok=false for empty input, got %#v", m)
	}
}
