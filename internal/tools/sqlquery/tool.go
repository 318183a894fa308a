// Package sqlquery exposes a read-only SQL query tool over the optional
// Postgres-backed conversation store, letting the agent inspect its own
// structured session/message exports without a separate export step.
package sqlquery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/tools"
)

type tool struct {
	pool *pgxpool.Pool
}

// New builds the sql_query tool against the given pool. Returns nil when
// pool is nil, since the tool has nothing to query without a Postgres
// backend configured.
func New(pool *pgxpool.Pool) *tool {
	if pool == nil {
		return nil
	}
	return &tool{pool: pool}
}

type args struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *tool) Name() string { return "sql_query" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Run a read-only SQL SELECT against the conversation store's Postgres backend and return matching rows.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []any{"query"},
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "A single SELECT statement. Statements other than SELECT are rejected.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum rows to return (default 100, max 1000).",
				},
			},
		},
	}
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "invalid arguments: "+err.Error()), nil
	}
	q := strings.TrimSpace(a.Query)
	if q == "" {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "query is required"), nil
	}
	if !isSingleSelect(q) {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorParameterValidation, "only a single SELECT statement is allowed"), nil
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := t.pool.Query(ctx, q)
	if err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "query failed: "+err.Error()), nil
	}
	defer rows.Close()

	results, err := collectRows(rows, limit)
	if err != nil {
		return tools.Fail(t.Name(), tools.ToolTypeAtomic, tools.ErrorToolExecution, "reading results: "+err.Error()), nil
	}

	return tools.Ok(t.Name(), tools.ToolTypeAtomic, map[string]any{
		"rows":  results,
		"count": len(results),
	}), nil
}

func collectRows(rows pgx.Rows, limit int) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	results := make([]map[string]any, 0, limit)
	for rows.Next() && len(results) < limit {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// isSingleSelect rejects anything but a lone SELECT statement: no trailing
// statements, no DML/DDL keywords smuggled in via a leading comment.
func isSingleSelect(q string) bool {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(q), ";"))
	if strings.Contains(trimmed, ";") {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(trimmed), "SELECT")
}
