package web

import (
	"context"
	"encoding/json"
)

type fetchTool struct {
	f *Fetcher
}

// NewFetchTool constructs the url_fetch tool around a Fetcher.
func NewFetchTool(f *Fetcher) *fetchTool {
	if f == nil {
		f = NewFetcher()
	}
	return &fetchTool{f: f}
}

func (t *fetchTool) Name() string { return "url_fetch" }

func (t *fetchTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Fetch a URL and return its content as Markdown, using readability extraction when the page looks like an article.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "Absolute http(s) URL to fetch"},
			},
			"required": []any{"url"},
		},
	}
}

func (t *fetchTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.URL == "" {
		return map[string]any{"ok": false, "error": "url is required"}, nil
	}

	res, err := t.f.FetchMarkdown(ctx, args.URL)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{
		"ok":            true,
		"input_url":     res.InputURL,
		"final_url":     res.FinalURL,
		"status":        res.Status,
		"content_type":  res.ContentType,
		"title":         res.Title,
		"markdown":      res.Markdown,
		"used_readable": res.UsedReadable,
	}, nil
}
