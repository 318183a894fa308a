package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// envelopeView is the subset of the tools.Envelope wire shape compression
// cares about. It is duplicated here (rather than imported) to avoid a
// dependency from llm on the tools package.
type envelopeView struct {
	Success        bool     `json:"success"`
	ToolName       string   `json:"tool_name"`
	ErrorMessage   string   `json:"error_message"`
	GeneratedFiles []string `json:"generated_files"`
}

// FoldConsecutiveToolCalls collapses runs of three or more adjacent tool
// messages that invoke the same tool. web_search runs collapse to a single
// synthetic summary message; code_executor runs keep
// only the last entry; any other tool is left untouched. Non-tool messages
// flush the current run and pass through unchanged.
func FoldConsecutiveToolCalls(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	var run []Message
	var runName string

	flush := func() {
		out = append(out, foldRun(run, runName)...)
		run = nil
		runName = ""
	}

	for _, m := range msgs {
		if m.Role != "tool" {
			flush()
			out = append(out, m)
			continue
		}
		name := toolNameOf(m)
		if len(run) == 0 || name == runName {
			run = append(run, m)
			runName = name
			continue
		}
		flush()
		run = append(run, m)
		runName = name
	}
	flush()
	return out
}

func toolNameOf(m Message) string {
	var env envelopeView
	if err := json.Unmarshal([]byte(m.Content), &env); err == nil && env.ToolName != "" {
		return env.ToolName
	}
	return ""
}

func foldRun(run []Message, name string) []Message {
	if len(run) < 3 {
		return run
	}
	switch name {
	case "web_search":
		successful := 0
		for _, m := range run {
			var env envelopeView
			if json.Unmarshal([]byte(m.Content), &env) == nil && env.Success {
				successful++
			}
		}
		summary := map[string]any{
			"status":      "summary",
			"total_calls": len(run),
			"successful":  successful,
			"failed":      len(run) - successful,
		}
		b, _ := json.Marshal(summary)
		return []Message{{Role: "tool", ToolID: run[len(run)-1].ToolID, Content: string(b)}}
	case "code_executor":
		return []Message{run[len(run)-1]}
	default:
		return run
	}
}

// ClearLongToolResults rewrites tool messages whose content exceeds 200
// characters into a terse summary. JSON envelope content yields a
// status/generated_files/error summary; anything else is truncated with a
// "[Compressed: N chars]" prefix.
func ClearLongToolResults(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.Role != "tool" || len(m.Content) <= 200 {
			out[i] = m
			continue
		}
		out[i] = Message{Role: "tool", ToolID: m.ToolID, Content: summarizeToolContent(m.Content)}
	}
	return out
}

func summarizeToolContent(content string) string {
	var env envelopeView
	if err := json.Unmarshal([]byte(content), &env); err == nil {
		var parts []string
		status := "success"
		if !env.Success {
			status = "failed"
		}
		parts = append(parts, fmt.Sprintf("Status: %s", status))
		if len(env.GeneratedFiles) > 0 {
			n := env.GeneratedFiles
			if len(n) > 3 {
				n = n[:3]
			}
			parts = append(parts, fmt.Sprintf("Files: %s", strings.Join(n, ", ")))
		}
		if env.ErrorMessage != "" {
			msg := env.ErrorMessage
			if len(msg) > 100 {
				msg = msg[:100]
			}
			parts = append(parts, fmt.Sprintf("Error: %s", msg))
		}
		return fmt.Sprintf("[Compressed: %d chars] %s", len(content), strings.Join(parts, " | "))
	}
	truncated := content
	if len(truncated) > 200 {
		truncated = truncated[:200]
	}
	return fmt.Sprintf("[Compressed: %d chars] %s...", len(content), truncated)
}

// CompressionPrompt builds the summarization prompt for the "old" prefix of
// history, naming the sections a useful summary must cover.
func CompressionPrompt(conversationText string) string {
	return "You are compressing an agent's conversation history into a dense, factual summary. " +
		"Produce 200-500 tokens covering exactly these sections:\n\n" +
		"1. Core task — what the user originally asked for.\n" +
		"2. Completed — what has been done so far.\n" +
		"3. Pending — what remains to be done.\n" +
		"4. Key decisions — choices made and why, including rejected alternatives.\n" +
		"5. Important files — workspace files created or modified and their purpose.\n\n" +
		"Omit chit-chat and restate only what a continuation of this task needs.\n\n" +
		"Conversation:\n\n" + conversationText
}
