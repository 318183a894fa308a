package agent

import (
	"context"
	"strings"
	"testing"

	"manifold/internal/llm"
)

// summarizingProvider answers Chat with a fixed short summary, regardless of
// input, so compression always shrinks the history.
type summarizingProvider struct{}

func (summarizingProvider) Chat(context.Context, []llm.Message, []llm.ToolSchema, string) (llm.Message, error) {
	return llm.Message{Role: "assistant", Content: "short summary"}, nil
}

func (summarizingProvider) ChatStream(context.Context, []llm.Message, []llm.ToolSchema, string, llm.StreamHandler) error {
	return nil
}

func bigMessage(role string, n int) llm.Message {
	return llm.Message{Role: role, Content: strings.Repeat("x", n)}
}

// buildAlternatingHistory returns pairs alternating-role messages sized so
// that, combined, usage crosses the configured context window.
func buildAlternatingHistory(pairs int, tokensPerMessage int) []llm.Message {
	msgs := make([]llm.Message, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		msgs = append(msgs, bigMessage("user", tokensPerMessage*4))
		msgs = append(msgs, bigMessage("assistant", tokensPerMessage*4))
	}
	return msgs
}

func newSummarizeTestEngine() *Engine {
	return &Engine{
		LLM:                 summarizingProvider{},
		ContextWindowTokens: 1000,
		SummaryRecentTurns:  3,
	}
}

func TestMaybeSummarizeDoesNotTriggerBelowUsageThreshold(t *testing.T) {
	eng := newSummarizeTestEngine()
	// Small history, well under 85% of the 1000-token window.
	msgs := buildAlternatingHistory(2, 10)
	out := eng.maybeSummarize(context.Background(), msgs)
	if len(out) != len(msgs) {
		t.Fatalf("expected no compression, got %d messages (from %d)", len(out), len(msgs))
	}
}

func TestMaybeSummarizeDoesNotTriggerWhenHistoryAtOrBelowTailCount(t *testing.T) {
	eng := newSummarizeTestEngine()
	// 6 messages = 2*recentTurns; even if huge, there is nothing to compress
	// beyond the verbatim tail.
	msgs := buildAlternatingHistory(3, 500)
	out := eng.maybeSummarize(context.Background(), msgs)
	if len(out) != len(msgs) {
		t.Fatalf("expected no compression at history length == tail count, got %d messages", len(out))
	}
}

func TestMaybeSummarizeTriggersAndKeepsTailVerbatim(t *testing.T) {
	eng := newSummarizeTestEngine()
	// 100 pairs of large messages pushes usage_percent well past 85, and
	// history length (200) is well beyond the 6-message tail.
	msgs := buildAlternatingHistory(100, 50)

	out := eng.maybeSummarize(context.Background(), msgs)

	if len(out) == len(msgs) {
		t.Fatalf("expected compression to trigger and shrink history")
	}
	// Expect: synthetic system summary + last 2*recentTurns (6) verbatim messages.
	wantTail := 2 * eng.SummaryRecentTurns
	if len(out) != 1+wantTail {
		t.Fatalf("expected 1 summary message + %d tail messages, got %d messages", wantTail, len(out))
	}
	if out[0].Role != "system" {
		t.Fatalf("expected first message to be the synthetic summary with role=system, got %s", out[0].Role)
	}
	if !strings.Contains(out[0].Content, "Compressed history summary") {
		t.Fatalf("expected summary marker in compressed message, got %q", out[0].Content)
	}
	wantTailMsgs := msgs[len(msgs)-wantTail:]
	for i, m := range out[1:] {
		if m.Content != wantTailMsgs[i].Content {
			t.Fatalf("tail message %d mismatch: got role=%s len=%d, want matching original tail message", i, m.Role, len(m.Content))
		}
	}
}

func TestMaybeSummarizeRespectsConfiguredTriggerPercentAndRecentTurns(t *testing.T) {
	eng := newSummarizeTestEngine()
	eng.SummaryTriggerPercent = 50
	eng.SummaryRecentTurns = 1 // tail = 2 messages

	msgs := buildAlternatingHistory(20, 30) // well past 50% usage, well past tail=2

	out := eng.maybeSummarize(context.Background(), msgs)
	if len(out) != 1+2 {
		t.Fatalf("expected 1 summary + 2 tail messages with recentTurns=1, got %d", len(out))
	}
}
