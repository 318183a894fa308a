package agent

import "manifold/internal/llm"

// RepairMessages runs the before-each-call reconciliation pass described for
// the ReAct orchestrator: it strips assistant tool_calls that never received
// a matching tool response before the next user/assistant turn, drops the
// tool messages that belonged to those incomplete groups, and drops any tool
// message that doesn't match the currently expected set of call ids (an
// orphan left behind by a crash between persisting the assistant message and
// persisting its tool results).
//
// This absorbs two real situations: a user sending a new message while a
// tool call was still in flight, and a process crash between the
// assistant-with-tool_calls persist and the matching tool-result persist.
// Either the whole tool_calls group of an assistant message survives, or
// none of it does — there is no partial-completion state.
func RepairMessages(msgs []llm.Message) []llm.Message {
	incomplete := findIncompleteToolCallGroups(msgs)
	return rebuildCleanMessages(msgs, incomplete)
}

// findIncompleteToolCallGroups scans forward from each assistant message
// carrying tool_calls until the next user/assistant message, and returns the
// set of tool_call ids whose group did not receive a response for every id
// in the call list.
func findIncompleteToolCallGroups(msgs []llm.Message) map[string]struct{} {
	incomplete := make(map[string]struct{})

	for i, m := range msgs {
		if m.Role != "assistant" || len(m.ToolCalls) == 0 {
			continue
		}
		expected := make(map[string]struct{}, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			expected[tc.ID] = struct{}{}
		}

		found := make(map[string]struct{})
		for j := i + 1; j < len(msgs); j++ {
			next := msgs[j]
			if next.Role == "user" || next.Role == "assistant" {
				break
			}
			if next.Role == "tool" {
				if _, ok := expected[next.ToolID]; ok {
					found[next.ToolID] = struct{}{}
				}
			}
		}

		if len(found) < len(expected) {
			for id := range expected {
				incomplete[id] = struct{}{}
			}
		}
	}

	return incomplete
}

// rebuildCleanMessages applies the incomplete-group set to produce a
// reconciled message list: incomplete assistant tool_calls are stripped
// (with a placeholder content when the message had none), their
// now-orphaned tool responses are dropped, and any tool message whose
// ToolID isn't in the currently-expected set (reset by every user message)
// is dropped too.
func rebuildCleanMessages(msgs []llm.Message, incomplete map[string]struct{}) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	expected := map[string]struct{}{}

	for _, m := range msgs {
		switch m.Role {
		case "user":
			expected = map[string]struct{}{}
			out = append(out, m)

		case "assistant":
			if len(m.ToolCalls) == 0 {
				expected = map[string]struct{}{}
				out = append(out, m)
				continue
			}

			survives := make([]llm.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				if _, bad := incomplete[tc.ID]; !bad {
					survives = append(survives, tc)
				}
			}

			if len(survives) == 0 {
				clean := m
				clean.ToolCalls = nil
				if clean.Content == "" {
					clean.Content = "(tool call in progress)"
				}
				expected = map[string]struct{}{}
				out = append(out, clean)
				continue
			}

			expected = make(map[string]struct{}, len(survives))
			for _, tc := range survives {
				expected[tc.ID] = struct{}{}
			}
			out = append(out, m)

		case "tool":
			if _, bad := incomplete[m.ToolID]; bad {
				continue
			}
			if _, ok := expected[m.ToolID]; !ok {
				continue
			}
			out = append(out, m)

		default:
			out = append(out, m)
		}
	}

	return out
}
