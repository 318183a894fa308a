// Package plan implements the create_plan tool: a structured task planner
// that records an ordered step list with per-step status and persists it as
// plan.json in the conversation workspace.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

// Status values a plan step may carry.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusFailed:     true,
}

// Step is one ordered unit of work in a plan.
type Step struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
}

// Plan is the document persisted to plan.json.
type Plan struct {
	TaskDescription  string `json:"task_description"`
	Steps            []Step `json:"steps"`
	TotalSteps       int    `json:"total_steps"`
	CompletedSteps   int    `json:"completed_steps"`
	InProgressSteps  int    `json:"in_progress_steps"`
	PendingSteps     int    `json:"pending_steps"`
	FailedSteps      int    `json:"failed_steps"`
}

type args struct {
	TaskDescription string `json:"task_description"`
	Steps           []Step `json:"steps"`
}

type tool struct{}

// New returns the create_plan tool.
func New() *tool { return &tool{} }

func (t *tool) Name() string { return "create_plan" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"name": t.Name(),
		"description": "Create or replace the task plan for this conversation: an overall description plus an " +
			"ordered list of steps, each with a status. Persists plan.json in the workspace and returns a " +
			"formatted progress summary. Best for multi-step tasks (3+ steps); skip it for simple one- or two-step requests.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_description": map[string]any{"type": "string", "description": "Overall goal the plan accomplishes."},
				"steps": map[string]any{
					"type":        "array",
					"description": "Ordered list of plan steps.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"step":   map[string]any{"type": "integer", "minimum": 1, "description": "1-based step number."},
							"action": map[string]any{"type": "string", "description": "What this step does."},
							"status": map[string]any{"type": "string", "enum": []any{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}},
							"result": map[string]any{"type": "string", "description": "Outcome or notes, once known."},
						},
						"required": []any{"step", "action", "status"},
					},
				},
			},
			"required": []any{"task_description", "steps"},
		},
	}
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "invalid arguments: "+err.Error()), nil
	}
	if strings.TrimSpace(a.TaskDescription) == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "task_description is required"), nil
	}
	if len(a.Steps) == 0 {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "steps must be a non-empty list"), nil
	}
	for i, s := range a.Steps {
		if strings.TrimSpace(s.Action) == "" {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, fmt.Sprintf("step %d is missing action", i+1)), nil
		}
		if !validStatuses[s.Status] {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, fmt.Sprintf("step %d has invalid status %q", i+1, s.Status)), nil
		}
	}

	workdir, ok := sandbox.BaseDirFromContext(ctx)
	if !ok || strings.TrimSpace(workdir) == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "no conversation workspace bound to this call"), nil
	}

	p := Plan{TaskDescription: a.TaskDescription, Steps: a.Steps, TotalSteps: len(a.Steps)}
	for _, s := range a.Steps {
		switch s.Status {
		case StatusCompleted:
			p.CompletedSteps++
		case StatusInProgress:
			p.InProgressSteps++
		case StatusPending:
			p.PendingSteps++
		case StatusFailed:
			p.FailedSteps++
		}
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "marshal plan: "+err.Error()), nil
	}
	planPath := filepath.Join(workdir, "plan.json")
	if err := os.WriteFile(planPath, data, 0o644); err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "write plan.json: "+err.Error()), nil
	}

	summary := formatSummary(p)
	out := map[string]any{
		"summary":  summary,
		"plan":     p,
		"saved_to": "plan.json",
	}
	return tools.Ok(t.Name(), tools.ToolTypeAtomic, out, "plan.json"), nil
}

func formatSummary(p Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n\n", p.TaskDescription)
	fmt.Fprintf(&b, "Progress: %d/%d completed\n\n", p.CompletedSteps, p.TotalSteps)

	group := func(label, status string) {
		var lines []string
		for _, s := range p.Steps {
			if s.Status != status {
				continue
			}
			line := fmt.Sprintf("  %d. %s", s.Step, s.Action)
			if s.Result != "" {
				line += " - " + s.Result
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			b.WriteString(label + ":\n")
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n\n")
		}
	}
	group("Completed", StatusCompleted)
	group("In progress", StatusInProgress)
	group("Pending", StatusPending)
	group("Failed", StatusFailed)
	return strings.TrimRight(b.String(), "\n")
}
