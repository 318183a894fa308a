// Package codeexec implements the code_executor tool: a sandboxed subprocess
// runner for model-generated Python covering data analysis, plotting, and
// media processing.
package codeexec

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

const defaultTimeout = 60 * time.Second

type args struct {
	Code           string `json:"code"`
	ScriptFile     string `json:"script_file"`
	Language       string `json:"language"`
	OutputFilename string `json:"output_filename"`
	TimeoutSeconds int    `json:"timeout"`
}

type tool struct {
	maxTimeout time.Duration
}

// New returns the code_executor tool. maxTimeout caps the per-call timeout
// a caller may request; <= 0 uses a conservative five-minute ceiling.
func New(maxTimeout time.Duration) *tool {
	if maxTimeout <= 0 {
		maxTimeout = 5 * time.Minute
	}
	return &tool{maxTimeout: maxTimeout}
}

func (t *tool) Name() string { return "code_executor" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"name": t.Name(),
		"description": "Python code execution sandbox for data analysis, scientific computing, and visualization (pandas/numpy/matplotlib/PIL/moviepy). " +
			"Provide exactly one of code (inline, one-shot) or script_file (a filename already written into the workspace, for iterative runs). " +
			"Not for simple file operations or shell commands — prefer shell_executor for those.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code":            map[string]any{"type": "string", "description": "Inline Python source (mutually exclusive with script_file)."},
				"script_file":     map[string]any{"type": "string", "description": "Filename inside the workspace to execute (mutually exclusive with code)."},
				"language":        map[string]any{"type": "string", "enum": []any{"python"}, "default": "python"},
				"output_filename": map[string]any{"type": "string", "description": "Expected output filename (e.g. chart.png); verified to exist after execution."},
				"timeout":         map[string]any{"type": "integer", "minimum": 1, "description": "Execution timeout in seconds."},
			},
			"required": []any{},
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
	if a.Language != "" && a.Language != "python" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "unsupported language: "+a.Language), nil
	}
	if strings.TrimSpace(a.Code) == "" && strings.TrimSpace(a.ScriptFile) == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "one of code or script_file is required"), nil
	}
	if strings.TrimSpace(a.Code) != "" && strings.TrimSpace(a.ScriptFile) != "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "code and script_file are mutually exclusive"), nil
	}

	workdir, ok := sandbox.BaseDirFromContext(ctx)
	if !ok || strings.TrimSpace(workdir) == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "no conversation workspace bound to this call"), nil
	}

	timeout := time.Duration(a.TimeoutSeconds) * time.Second
	if timeout <= 0 || timeout > t.maxTimeout {
		timeout = t.maxTimeout
	}

	res, err := sandbox.RunCode(ctx, sandbox.CodeExecRequest{
		Code:       a.Code,
		ScriptFile: a.ScriptFile,
		WorkDir:    workdir,
		Timeout:    timeout,
		OutputFile: a.OutputFilename,
	})
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrNoWorkDir), errors.Is(err, sandbox.ErrBothModes), errors.Is(err, sandbox.ErrNoCode):
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, err.Error()), nil
		}
		if res.TimedOut {
			return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorResourceExhausted, err.Error()), nil
		}
		env := tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, err.Error())
		env.GeneratedFiles = res.GeneratedFiles
		env.PartialResults = map[string]any{"stdout": res.Stdout, "stderr": res.Stderr, "returncode": res.ReturnCode}
		return env, nil
	}

	data := map[string]any{
		"stdout":     res.Stdout,
		"stderr":     res.Stderr,
		"returncode": res.ReturnCode,
	}
	return tools.Ok(t.Name(), tools.ToolTypeAtomic, data, res.GeneratedFiles...), nil
}
