package db

import (
	"context"
	"encoding/json"

	"manifold/internal/persistence/databases"
)

type graphUpsertTool struct{ g databases.GraphDB }
type graphQueryTool struct{ g databases.GraphDB }

func NewGraphUpsertTool(g databases.GraphDB) *graphUpsertTool { return &graphUpsertTool{g: g} }
func NewGraphQueryTool(g databases.GraphDB) *graphQueryTool   { return &graphQueryTool{g: g} }

// graphUpsertTool accepts either a node (id+labels+props) or an edge
// (src+rel+dst+props); at least one of the two shapes must be populated.
func (t *graphUpsertTool) Name() string { return "graph_upsert" }
func (t *graphUpsertTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Upsert a graph node, or an edge between two nodes, in the agent's knowledge graph.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":     map[string]any{"type": "string", "description": "Node ID to upsert."},
				"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"src":    map[string]any{"type": "string", "description": "Source node ID for an edge upsert."},
				"rel":    map[string]any{"type": "string", "description": "Relationship name for an edge upsert."},
				"dst":    map[string]any{"type": "string", "description": "Destination node ID for an edge upsert."},
				"props":  map[string]any{"type": "object"},
			},
		},
	}
}
func (t *graphUpsertTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID     string         `json:"id"`
		Labels []string       `json:"labels"`
		Src    string         `json:"src"`
		Rel    string         `json:"rel"`
		Dst    string         `json:"dst"`
		Props  map[string]any `json:"props"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.Src != "" && args.Rel != "" && args.Dst != "" {
		if err := t.g.UpsertEdge(ctx, args.Src, args.Rel, args.Dst, args.Props); err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return map[string]any{"ok": true, "kind": "edge"}, nil
	}
	if args.ID == "" {
		return map[string]any{"ok": false, "error": "either id (node) or src/rel/dst (edge) is required"}, nil
	}
	if err := t.g.UpsertNode(ctx, args.ID, args.Labels, args.Props); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "kind": "node"}, nil
}

func (t *graphQueryTool) Name() string { return "graph_query" }
func (t *graphQueryTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch a node by ID, or its neighbors over a given relationship.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []any{"id"},
			"properties": map[string]any{
				"id":  map[string]any{"type": "string"},
				"rel": map[string]any{"type": "string", "description": "If set, return neighbor IDs reachable via this relationship instead of the node itself."},
			},
		},
	}
}
func (t *graphQueryTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID  string `json:"id"`
		Rel string `json:"rel"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.Rel != "" {
		neighbors, err := t.g.Neighbors(ctx, args.ID, args.Rel)
		if err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return map[string]any{"ok": true, "neighbors": neighbors}, nil
	}
	node, found := t.g.GetNode(ctx, args.ID)
	return map[string]any{"ok": true, "found": found, "node": node}, nil
}
