package agent

import (
	"testing"

	"manifold/internal/llm"
)

func TestRepairMessagesKeepsCompleteGroup(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "run it"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "code_executor"}}},
		{Role: "tool", ToolID: "call-1", Content: `{"ok":true}`},
		{Role: "assistant", Content: "done"},
	}

	out := RepairMessages(msgs)
	if len(out) != len(msgs) {
		t.Fatalf("expected complete group to survive unchanged, got %d messages", len(out))
	}
	if len(out[1].ToolCalls) != 1 {
		t.Fatalf("expected tool_calls preserved, got %#v", out[1].ToolCalls)
	}
}

// A user message arrives before the tool result for a prior assistant
// tool_calls group has been persisted.
func TestRepairMessagesStripsIncompleteGroup(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "run it"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "code_executor"}}},
		{Role: "user", Content: "actually never mind, do something else"},
	}

	out := RepairMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("expected 3 messages (no tool message to drop), got %d", len(out))
	}
	if len(out[1].ToolCalls) != 0 {
		t.Fatalf("expected tool_calls stripped from incomplete group, got %#v", out[1].ToolCalls)
	}
	if out[1].Content != "(tool call in progress)" {
		t.Fatalf("expected placeholder content, got %q", out[1].Content)
	}
}

func TestRepairMessagesNeverPartiallyCompletesAGroup(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "run two things"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "code_executor"},
			{ID: "call-2", Name: "shell_executor"},
		}},
		{Role: "tool", ToolID: "call-1", Content: `{"ok":true}`},
		// call-2's result never arrives before the next user turn.
		{Role: "user", Content: "new message"},
	}

	out := RepairMessages(msgs)
	for _, m := range out {
		if m.Role == "assistant" && len(m.ToolCalls) != 0 {
			t.Fatalf("expected all tool_calls stripped when group is incomplete, got %#v", m.ToolCalls)
		}
		if m.Role == "tool" {
			t.Fatalf("expected tool message from incomplete group to be dropped, found %#v", m)
		}
	}
}

func TestRepairMessagesDropsOrphanToolMessage(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "code_executor"}}},
		{Role: "tool", ToolID: "call-1", Content: `{"ok":true}`},
		// A stray tool message that doesn't belong to the expected set.
		{Role: "tool", ToolID: "call-stale", Content: `{"ok":true}`},
		{Role: "assistant", Content: "done"},
	}

	out := RepairMessages(msgs)
	for _, m := range out {
		if m.Role == "tool" && m.ToolID == "call-stale" {
			t.Fatalf("expected orphan tool message to be dropped")
		}
	}
}

func TestRepairMessagesResetsExpectedSetOnUserMessage(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "code_executor"}}},
		{Role: "tool", ToolID: "call-1", Content: `{"ok":true}`},
		{Role: "assistant", Content: "done"},
		{Role: "user", Content: "second"},
		// This tool message has no preceding assistant tool_calls in the new turn.
		{Role: "tool", ToolID: "call-1", Content: `{"ok":true}`},
	}

	out := RepairMessages(msgs)
	for i, m := range out {
		if i >= 4 && m.Role == "tool" {
			t.Fatalf("expected stale tool message after user reset to be dropped, got %#v at %d", m, i)
		}
	}
}
