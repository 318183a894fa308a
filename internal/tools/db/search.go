package db

import (
	"context"
	"encoding/json"

	"manifold/internal/persistence/databases"
)

type searchIndexTool struct{ s databases.FullTextSearch }
type searchQueryTool struct{ s databases.FullTextSearch }

func NewSearchIndexTool(s databases.FullTextSearch) *searchIndexTool { return &searchIndexTool{s: s} }
func NewSearchQueryTool(s databases.FullTextSearch) *searchQueryTool { return &searchQueryTool{s: s} }

func (t *searchIndexTool) Name() string { return "search_index" }
func (t *searchIndexTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Index a document's text for later full-text search.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []any{"id", "text"},
			"properties": map[string]any{
				"id":       map[string]any{"type": "string"},
				"text":     map[string]any{"type": "string"},
				"metadata": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			},
		},
	}
}
func (t *searchIndexTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID       string            `json:"id"`
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if err := t.s.Index(ctx, args.ID, args.Text, args.Metadata); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true}, nil
}

func (t *searchQueryTool) Name() string { return "search_query" }
func (t *searchQueryTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Run a full-text search query over indexed documents.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []any{"query"},
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "minimum": 1, "default": 10},
			},
		},
	}
}
func (t *searchQueryTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	res, err := t.s.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "results": res}, nil
}
