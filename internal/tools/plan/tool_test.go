package plan

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/sandbox"
	"manifold/internal/tools"
)

func TestCreatePlanPersistsPlanFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := sandbox.WithBaseDir(context.Background(), dir)

	tool := New()
	args := `{
		"task_description": "build a chart",
		"steps": [
			{"step": 1, "action": "fetch data", "status": "completed", "result": "ok"},
			{"step": 2, "action": "plot chart", "status": "in_progress"},
			{"step": 3, "action": "write report", "status": "pending"}
		]
	}`

	respAny, err := tool.Call(ctx, json.RawMessage(args))
	require.NoError(t, err)

	env, ok := respAny.(tools.Envelope)
	require.True(t, ok)
	require.True(t, env.Success)
	require.Equal(t, []string{"plan.json"}, env.GeneratedFiles)

	data, err := os.ReadFile(filepath.Join(dir, "plan.json"))
	require.NoError(t, err)

	var p Plan
	require.NoError(t, json.Unmarshal(data, &p))
	require.Equal(t, "build a chart", p.TaskDescription)
	require.Equal(t, 3, p.TotalSteps)
	require.Equal(t, 1, p.CompletedSteps)
	require.Equal(t, 1, p.InProgressSteps)
	require.Equal(t, 1, p.PendingSteps)
}

func TestCreatePlanRejectsInvalidStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := sandbox.WithBaseDir(context.Background(), dir)

	tool := New()
	args := `{"task_description":"x","steps":[{"step":1,"action":"do it","status":"bogus"}]}`

	respAny, err := tool.Call(ctx, json.RawMessage(args))
	require.NoError(t, err)

	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
	require.Equal(t, tools.ErrorParameterValidation, env.ErrorKind)
}

func TestCreatePlanRequiresWorkspace(t *testing.T) {
	t.Parallel()

	tool := New()
	args := `{"task_description":"x","steps":[{"step":1,"action":"do it","status":"pending"}]}`

	respAny, err := tool.Call(context.Background(), json.RawMessage(args))
	require.NoError(t, err)

	env := respAny.(tools.Envelope)
	require.False(t, env.Success)
}
