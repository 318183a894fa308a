package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"manifold/internal/llm"
)

// Tool is an executable capability the agent can call.
type Tool interface {
	Name() string
	JSONSchema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (any, error)
}

// Registry keeps track of tools and dispatches calls by name.
type Registry interface {
	Schemas() []llm.ToolSchema
	Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error)
	Register(t Tool)
}

type defaultRegistry struct {
	byName  map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns a basic in-memory registry.
func NewRegistry() Registry {
	return &defaultRegistry{byName: make(map[string]Tool), schemas: make(map[string]*jsonschema.Schema)}
}

func (r *defaultRegistry) Register(t Tool) {
	name := t.Name()
	r.byName[name] = t
	params := mapFrom(t.JSONSchema()["parameters"])
	if params == nil {
		return
	}
	c := jsonschema.NewCompiler()
	resource := "mem://tools/" + name
	if err := c.AddResource(resource, params); err != nil {
		// A malformed schema disables validation for this tool rather than
		// failing registration; the tool's own Call still validates its args.
		return
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return
	}
	r.schemas[name] = sch
}

func (r *defaultRegistry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.byName))
	for name, t := range r.byName {
		schema := t.JSONSchema()
		out = append(out, llm.ToolSchema{
			Name:        name,
			Description: strFrom(schema["description"]),
			Parameters:  mapFrom(schema["parameters"]),
		})
	}
	return out
}

// Dispatch never lets a tool's internal error escape as a Go error: every
// failure path (unknown name, schema mismatch, panic, or a returned error)
// is converted into a JSON Envelope so the orchestrator always has a
// uniform result to persist as the tool message's content.
func (r *defaultRegistry) Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error) {
	t := r.byName[name]
	if t == nil {
		return marshalEnvelope(Fail(name, ToolTypeAtomic, ErrorDataNotFound, "tool not found")), nil
	}
	if sch, ok := r.schemas[name]; ok {
		if err := validateAgainstSchema(sch, raw); err != nil {
			return marshalEnvelope(Fail(name, ToolTypeAtomic, ErrorParameterValidation, fmt.Sprintf("invalid arguments: %v", err))), nil
		}
	}
	val, err := r.safeCall(ctx, t, raw)
	if err != nil {
		return marshalEnvelope(Fail(name, ToolTypeAtomic, ErrorToolExecution, err.Error())), nil
	}
	if env, ok := val.(Envelope); ok {
		env.ToolName = name
		return marshalEnvelope(env), nil
	}
	b, _ := json.Marshal(val)
	return b, nil
}

// safeCall recovers a panicking tool implementation and reports it as a
// regular execution error rather than crashing the turn.
func (r *defaultRegistry) safeCall(ctx context.Context, t Tool, raw json.RawMessage) (val any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return t.Call(ctx, raw)
}

func marshalEnvelope(env Envelope) []byte {
	b, _ := json.Marshal(env)
	return b
}

func strFrom(v any) string         { s, _ := v.(string); return s }
func mapFrom(v any) map[string]any { m, _ := v.(map[string]any); return m }

// validateAgainstSchema decodes raw the way jsonschema expects (json.Number
// preserved) and validates it against the tool's compiled parameter schema.
func validateAgainstSchema(sch *jsonschema.Schema, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
