// Package imagesview implements the manage_images_view tool: a meta-tool
// that lets the model directly add, remove, list, or clear entries in its
// own pending-image queue, controlling what it will see injected into the
// next turn.
package imagesview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/conversation"
	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

type args struct {
	Action     string   `json:"action"`
	ImagePaths []string `json:"image_paths"`
	Detail     string   `json:"detail"`
}

type tool struct {
	store conversation.Store
}

// New returns the manage_images_view tool backed by store.
func New(store conversation.Store) *tool {
	return &tool{store: store}
}

func (t *tool) Name() string { return "manage_images_view" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"name": t.Name(),
		"description": "Manage the queue of images you will be shown on the next turn. " +
			"add: queue images (e.g. charts or frames a tool just produced) for your next view. " +
			"remove: drop specific images from the queue. list: inspect the current queue. clear: empty it.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":      map[string]any{"type": "string", "enum": []any{"add", "remove", "list", "clear"}},
				"image_paths": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Workspace-relative filenames; required for add/remove."},
				"detail":      map[string]any{"type": "string", "enum": []any{"low", "high", "auto"}, "default": "auto", "description": "Detail level for add."},
			},
			"required": []any{"action"},
		},
	}
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var a args
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "invalid arguments: "+err.Error()), nil
		}
	}

	convID, ok := sandbox.SessionIDFromContext(ctx)
	if !ok || strings.TrimSpace(convID) == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "no conversation bound to this call"), nil
	}
	// The store treats "" as the anonymous owner; conv IDs are unique
	// regardless of owner, so no caller-identity plumbing is needed here.
	const username = ""

	switch a.Action {
	case "list":
		images, err := t.store.ListImages(ctx, convID, username)
		if err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error()), nil
		}
		msg := fmt.Sprintf("%d image(s) queued", len(images))
		if len(images) == 0 {
			msg = "view queue is empty"
		}
		return tools.Ok(t.Name(), tools.ToolTypeAtomic, map[string]any{
			"action":  "list",
			"count":   len(images),
			"images":  images,
			"message": msg,
		}), nil

	case "clear":
		if err := t.store.ClearImages(ctx, convID, username); err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error()), nil
		}
		return tools.Ok(t.Name(), tools.ToolTypeAtomic, map[string]any{
			"action":  "clear",
			"message": "view queue cleared",
		}), nil

	case "add":
		if len(a.ImagePaths) == 0 {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "add requires image_paths"), nil
		}
		detail := a.Detail
		if detail != "low" && detail != "high" && detail != "auto" {
			detail = "auto"
		}
		workdir, _ := sandbox.BaseDirFromContext(ctx)

		var valid, invalid []string
		for _, p := range a.ImagePaths {
			if strings.ContainsAny(p, "/\\") {
				invalid = append(invalid, p)
				continue
			}
			if workdir != "" {
				if _, err := os.Stat(filepath.Join(workdir, p)); err != nil {
					invalid = append(invalid, p)
					continue
				}
			}
			valid = append(valid, p)
		}
		if len(valid) == 0 {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, fmt.Sprintf("no valid image files: %v", invalid)), nil
		}

		entries := make([]conversation.PendingImage, 0, len(valid))
		for _, p := range valid {
			entries = append(entries, conversation.PendingImage{Path: p, Detail: detail, RemainingViews: 1})
		}
		if err := t.store.EnqueueImages(ctx, convID, username, entries); err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error()), nil
		}

		out := map[string]any{
			"action":       "add",
			"added_count":  len(valid),
			"added_images": valid,
			"detail_level": detail,
			"message":      fmt.Sprintf("queued %d image(s) at detail=%s; they will be injected on your next turn", len(valid), detail),
		}
		if len(invalid) > 0 {
			out["warning"] = fmt.Sprintf("skipped invalid or missing files: %v", invalid)
		}
		return tools.Ok(t.Name(), tools.ToolTypeAtomic, out), nil

	case "remove":
		if len(a.ImagePaths) == 0 {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "remove requires image_paths"), nil
		}
		current, err := t.store.ListImages(ctx, convID, username)
		if err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error()), nil
		}
		present := make(map[string]bool, len(current))
		for _, img := range current {
			present[img.Path] = true
		}
		var toRemove, notFound []string
		for _, p := range a.ImagePaths {
			if present[p] {
				toRemove = append(toRemove, p)
			} else {
				notFound = append(notFound, p)
			}
		}
		if len(toRemove) == 0 {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, fmt.Sprintf("none of the given images are queued: %v", a.ImagePaths)), nil
		}
		if err := t.store.RemoveImages(ctx, convID, username, toRemove); err != nil {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error()), nil
		}
		out := map[string]any{
			"action":          "remove",
			"removed_count":   len(toRemove),
			"removed_images":  toRemove,
			"remaining_count": len(current) - len(toRemove),
			"message":         fmt.Sprintf("removed %d image(s), %d remain queued", len(toRemove), len(current)-len(toRemove)),
		}
		if len(notFound) > 0 {
			out["warning"] = fmt.Sprintf("not in queue: %v", notFound)
		}
		return tools.Ok(t.Name(), tools.ToolTypeAtomic, out), nil

	default:
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "unknown action: "+a.Action), nil
	}
}
