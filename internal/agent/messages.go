package agent

import (
	"fmt"
	"strings"

	"manifold/internal/llm"
)

// BuildInitialLLMMessages composes the initial message list from system,
// optional prior history (already in llm.Message form), and the current
// user input. When history is present, the first history message is
// annotated with a "[CONVERSATION HISTORY]" marker and the new user input
// with "[CURRENT REQUEST]" so the model can tell a carried-over turn from
// the message it must actually answer. With no history, the user message
// is passed through unannotated.
func BuildInitialLLMMessages(system, user string, history []llm.Message) []llm.Message {
	msgs := make([]llm.Message, 0, 2+len(history))
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}

	if len(history) > 0 {
		for i, m := range history {
			if i == 0 && m.Role == "user" {
				m.Content = "[CONVERSATION HISTORY]\n" + m.Content
			}
			msgs = append(msgs, m)
		}
		if user != "" {
			msgs = append(msgs, llm.Message{Role: "user", Content: "[CURRENT REQUEST]\n" + user})
		}
		return msgs
	}

	if user != "" {
		msgs = append(msgs, llm.Message{Role: "user", Content: user})
	}
	return msgs
}

// FormatHistorySummary renders a short human-readable summary of a message
// slice for logging/debugging, e.g. "3 messages: user, assistant, user".
func FormatHistorySummary(history []llm.Message) string {
	if len(history) == 0 {
		return "(no history)"
	}
	roles := make([]string, len(history))
	for i, m := range history {
		roles[i] = m.Role
	}
	return fmt.Sprintf("%d messages: %s", len(history), strings.Join(roles, ", "))
}
