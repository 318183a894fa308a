package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"manifold/internal/llm"
	"manifold/internal/observability"
	"manifold/internal/tools"
	"manifold/internal/tools/tts"
)

type Engine struct {
	LLM      llm.Provider
	Tools    tools.Registry
	MaxSteps int
	System   string
	Model    string // default model name to pass to provider (used for metrics)
	// MaxToolParallelism controls how many tool calls may run concurrently within a single step.
	// <= 0 means unbounded (default to len(toolCalls)); 1 preserves sequential behavior.
	MaxToolParallelism int
	// Delegator, when set, is used to execute nested agent calls (e.g., specialists)
	// without routing through tool implementations. This makes agent-to-agent
	// collaboration a core engine capability and enables rich tracing.
	Delegator Delegator
	// AgentTracer receives trace events emitted during delegated agent runs.
	AgentTracer AgentTracer
	// AgentDepth tracks nesting depth for trace events (0 for top-level orchestrator).
	AgentDepth int
	// ContextWindowTokens is the approximate context window for Model in tokens.
	// If not set, will be derived using llm.ContextSize.
	ContextWindowTokens int
	// Rolling summarization configuration (token-based only)
	SummaryEnabled bool
	// SummaryReserveBufferTokens is retained for config compatibility but no
	// longer drives the compression trigger; see SummaryTriggerPercent.
	SummaryReserveBufferTokens int
	// SummaryTriggerPercent is the usage-percent (of the context window) at or
	// above which compression fires. Default: 85.
	SummaryTriggerPercent float64
	// SummaryRecentTurns is the number of (user, assistant) turns to always keep
	// verbatim in the tail. Compression only fires once history length exceeds
	// 2*SummaryRecentTurns messages, and the kept tail is the last
	// 2*SummaryRecentTurns messages. Default: 3.
	SummaryRecentTurns int
	// MinKeepLastMessages is the minimum number of tail messages to always try to
	// keep in raw form, even if the token budget is small. Acts as a floor under
	// 2*SummaryRecentTurns for unusually small configurations.
	SummaryMinKeepLastMessages int
	// MaxSummaryChunkTokens caps the size of the summary prompt (older
	// conversation) in tokens.
	SummaryMaxSummaryChunkTokens int
	// OnAssistant, if set, is called with each assistant message the provider
	// returns (including those containing tool calls and the final answer).
	OnAssistant func(llm.Message)
	// OnDelta, if set, is called for streaming content deltas (for partial responses)
	OnDelta func(string)
	// OnReasoning, if set, is called for streaming reasoning/thinking deltas
	// surfaced by providers that expose a thought summary (Anthropic extended
	// thinking, Gemini thought parts, OpenAI reasoning deltas).
	OnReasoning func(delta string)
	// OnEvent, if set, receives the orchestrator's lifecycle events (context
	// accounting, iteration boundaries, tool exec phases, retries, and the
	// final turn outcome) in the order they occur. This is additive to the
	// narrower On* callbacks above and is the hook an SSE transport wires to.
	OnEvent func(Event)
	// OnTool, if set, is called after each tool execution with tool name, args, result, and tool ID.
	OnTool func(toolName string, args []byte, result []byte, toolID string)
	// OnToolStart, if set, is invoked immediately after the model emits a tool call
	// but before the tool is executed. This allows UIs to display a pending tool
	// invocation and later append the result when OnTool fires. Args are the raw
	// JSON arguments provided by the model (may still be partial JSON in some
	// provider streaming implementations, but are generally complete here).
	OnToolStart func(toolName string, args []byte, toolID string)
	// OnTurnMessage, if set, is called for every message added to the conversation
	// during this turn (including intermediate assistant messages with tool calls
	// and tool response messages). This enables full conversation history capture.
	OnTurnMessage func(llm.Message)
	// OnSummaryTriggered, if set, is invoked when conversation summarization is triggered
	// due to the message history exceeding the token budget. Parameters include:
	// inputTokens, tokenBudget, messageCount, and messagesBeingSummarized.
	OnSummaryTriggered func(inputTokens, tokenBudget, messageCount, summarizedCount int)
	// Tokenizer provides accurate token counting when available. If nil, the engine
	// falls back to heuristic estimation (llm.EstimateTokens: CJK chars/1.5 + other chars/4).
	Tokenizer llm.Tokenizer
	// TokenizationFallbackToHeuristic allows falling back to heuristic on tokenization errors.
	TokenizationFallbackToHeuristic bool
	toolCallSeq                     uint64
}

// AttachTokenizer wires an accurate tokenizer into the engine when the provider exposes one.
// Providers that support the OpenAI Responses or Anthropic count_tokens endpoints accept an
// optional cache; the given cache (which may be nil) is passed through to the provider.
func (e *Engine) AttachTokenizer(provider any, cache *llm.TokenCache) {
	if e == nil || provider == nil {
		return
	}

	type tokenizableProvider interface {
		Tokenizer(cache *llm.TokenCache) llm.Tokenizer
	}

	p, ok := provider.(tokenizableProvider)
	if !ok {
		return
	}

	if tok := p.Tokenizer(cache); tok != nil {
		e.Tokenizer = tok
		// Log when we have to fall back so we can spot API failures without breaking runs.
		e.TokenizationFallbackToHeuristic = true
	}
}

// countTokens returns the token count for text using the engine's tokenizer if available,
// otherwise falls back to heuristic estimation.
func (e *Engine) countTokens(ctx context.Context, text string) int {
	if e.Tokenizer == nil {
		return llm.EstimateTokens(text)
	}
	count, err := e.Tokenizer.CountTokens(ctx, text)
	if err != nil {
		if e.TokenizationFallbackToHeuristic {
			observability.LoggerWithTrace(ctx).Debug().
				Err(err).
				Msg("tokenization_failed_using_heuristic")
			return llm.EstimateTokens(text)
		}
		// Return heuristic anyway if we can't tokenize
		return llm.EstimateTokens(text)
	}
	return count
}

// countMessagesTokens returns the token count for a slice of messages using the engine's
// tokenizer if available, otherwise falls back to heuristic estimation.
func (e *Engine) countMessagesTokens(ctx context.Context, msgs []llm.Message) int {
	if e.Tokenizer == nil {
		return llm.EstimateTokensForMessages(msgs)
	}
	count, err := e.Tokenizer.CountMessagesTokens(ctx, msgs)
	if err != nil {
		if e.TokenizationFallbackToHeuristic {
			observability.LoggerWithTrace(ctx).Debug().
				Err(err).
				Msg("tokenization_failed_using_heuristic")
			return llm.EstimateTokensForMessages(msgs)
		}
		// Return heuristic anyway if we can't tokenize
		return llm.EstimateTokensForMessages(msgs)
	}
	return count
}

// Run executes the agent loop until the model produces a final answer.
func (e *Engine) Run(ctx context.Context, userInput string, history []llm.Message) (string, error) {
	msgs := BuildInitialLLMMessages(e.System, userInput, history)

	// Possibly summarize older history to avoid unbounded token growth.
	if e.SummaryEnabled {
		msgs = e.maybeSummarize(ctx, msgs)
	}

	final, err := e.runLoop(ctx, msgs)
	if err != nil {
		return "", err
	}

	return final, nil
}

// RunStream executes the agent loop with streaming support
func (e *Engine) RunStream(ctx context.Context, userInput string, history []llm.Message) (string, error) {
	msgs := BuildInitialLLMMessages(e.System, userInput, history)

	// Possibly summarize older history to avoid unbounded token growth.
	if e.SummaryEnabled {
		msgs = e.maybeSummarize(ctx, msgs)
	}

	return e.runStreamLoop(ctx, msgs)
}

// streamHandler implements llm.StreamHandler
type streamHandler struct {
	onDelta          func(string)
	onToolCall       func(llm.ToolCall)
	onImage          func(llm.GeneratedImage)
	onThoughtSummary func(string)
}

func (h *streamHandler) OnDelta(content string) {
	if h.onDelta != nil {
		h.onDelta(content)
	}
}

func (h *streamHandler) OnToolCall(tc llm.ToolCall) {
	if h.onToolCall != nil {
		h.onToolCall(tc)
	}
}

func (h *streamHandler) OnImage(img llm.GeneratedImage) {
	if h.onImage != nil {
		h.onImage(img)
	}
}

func (h *streamHandler) OnThoughtSummary(summary string) {
	if h.onThoughtSummary != nil {
		h.onThoughtSummary(summary)
	}
}

func (e *Engine) model() string { return e.Model }

// runLoop contains the core non-streaming agent step loop shared by Run.
// It returns the final assistant content or an error.
func (e *Engine) runLoop(ctx context.Context, msgs []llm.Message) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	var final string

	e.emitContextStats(ctx, msgs)

	for step := 0; step < e.MaxSteps; step++ {
		iter := step + 1
		msgs = RepairMessages(msgs)
		e.emit(Event{Type: EventIterStart, Iter: iter})
		log.Debug().Int("step", step).Int("history", len(msgs)).Msg("engine_step_start")

		// Capture tool schemas once per step so we can log what the model sees.
		schemas := e.Tools.Schemas()
		toolNames := make([]string, len(schemas))
		for i, s := range schemas {
			toolNames[i] = s.Name
		}
		log.Info().Strs("tools_sent_to_llm", toolNames).Msg("engine_tools_before_chat")

		msg, err := e.LLM.Chat(ctx, msgs, schemas, e.model())
		if err != nil {
			log.Error().Err(err).Int("step", step).Msg("engine_step_error")
			e.emit(Event{Type: EventFinal, Iter: iter, Status: FinalFailed, Error: err.Error()})
			return "", err
		}

		msg.ToolCalls = e.ensureToolCallIDs(msgs, msg.ToolCalls)
		msgs = append(msgs, msg)
		if e.OnAssistant != nil {
			e.OnAssistant(msg)
		}
		if e.OnTurnMessage != nil {
			e.OnTurnMessage(msg)
		}

		if len(msg.ToolCalls) == 0 {
			log.Info().Int("step", step).Int("final_len", len(msg.Content)).Msg("engine_final")
			final = msg.Content
			e.emit(Event{Type: EventIterDone, Iter: iter, Message: "success"})
			e.emit(Event{Type: EventFinal, Iter: iter, Status: FinalSuccess, Result: final})
			break
		}

		log.Info().Int("step", step).Int("tool_calls", len(msg.ToolCalls)).Msg("engine_tool_calls")
		e.emit(Event{Type: EventIterDone, Iter: iter, Message: "tool_calls"})
		msgs = e.dispatchToolsIter(ctx, msgs, msg.ToolCalls, iter)
	}

	if final == "" {
		final = "(no final text — increase max steps or check logs)"
		e.emit(Event{Type: EventFinal, Status: FinalFailed, Error: "iteration cap reached without a final answer"})
	}

	return final, nil
}

// runStreamLoop contains the core streaming agent step loop shared by RunStream.
// It returns the final assistant content or an error.
func (e *Engine) runStreamLoop(ctx context.Context, msgs []llm.Message) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	var final string

	e.emitContextStats(ctx, msgs)

	for step := 0; step < e.MaxSteps; step++ {
		iter := step + 1
		msgs = RepairMessages(msgs)
		e.emit(Event{Type: EventIterStart, Iter: iter})

		// Accumulate streaming content and tool calls for this step
		var (
			accumulatedContent   string
			accumulatedReasoning string
			accumulatedToolCalls []llm.ToolCall
			accumulatedImages    []llm.GeneratedImage
		)

		handler := &streamHandler{
			onDelta: func(content string) {
				accumulatedContent += content
				if e.OnDelta != nil {
					e.OnDelta(content)
				}
			},
			onToolCall: func(tc llm.ToolCall) {
				accumulatedToolCalls = append(accumulatedToolCalls, tc)
			},
			onImage: func(img llm.GeneratedImage) {
				accumulatedImages = append(accumulatedImages, img)
			},
			onThoughtSummary: func(delta string) {
				accumulatedReasoning += delta
				if e.OnReasoning != nil {
					e.OnReasoning(delta)
				}
				e.emit(Event{Type: EventThinking, Iter: iter, Delta: delta, FullContent: accumulatedReasoning})
			},
		}

		log.Debug().Int("step", step).Int("history", len(msgs)).Msg("engine_stream_step_start")

		// Capture tool schemas once per step so we can log what the model sees.
		schemas := e.Tools.Schemas()
		toolNames := make([]string, len(schemas))
		for i, s := range schemas {
			toolNames[i] = s.Name
		}
		log.Info().Strs("tools_sent_to_llm_stream", toolNames).Msg("engine_tools_before_stream")

		if err := e.LLM.ChatStream(ctx, msgs, schemas, e.model(), handler); err != nil {
			log.Error().Err(err).Int("step", step).Msg("engine_stream_step_error")
			e.emit(Event{Type: EventFinal, Iter: iter, Status: FinalFailed, Error: err.Error()})
			return "", err
		}

		accumulatedToolCalls = e.ensureToolCallIDs(msgs, accumulatedToolCalls)
		msg := llm.Message{
			Role:      "assistant",
			Content:   accumulatedContent,
			ToolCalls: accumulatedToolCalls,
			Images:    accumulatedImages,
		}

		msgs = append(msgs, msg)
		if e.OnAssistant != nil {
			e.OnAssistant(msg)
		}
		if e.OnTurnMessage != nil {
			e.OnTurnMessage(msg)
		}

		if len(msg.ToolCalls) == 0 {
			log.Info().Int("step", step).Int("final_len", len(msg.Content)).Msg("engine_stream_final")
			final = msg.Content
			e.emit(Event{Type: EventIterDone, Iter: iter, Message: "success"})
			e.emit(Event{Type: EventFinal, Iter: iter, Status: FinalSuccess, Result: final})
			break
		}
		if accumulatedContent != "" {
			e.emit(Event{Type: EventNote, Iter: iter, Delta: accumulatedContent})
		}

		log.Info().Int("step", step).Int("tool_calls", len(msg.ToolCalls)).Msg("engine_stream_tool_calls")
		e.emit(Event{Type: EventIterDone, Iter: iter, Message: "tool_calls"})
		msgs = e.dispatchToolsIter(ctx, msgs, msg.ToolCalls, iter)
	}

	if final == "" {
		final = "(no final text — increase max steps or check logs)"
		e.emit(Event{Type: EventFinal, Status: FinalFailed, Error: "iteration cap reached without a final answer"})
	}

	return final, nil
}

// emitContextStats computes a rough token-usage snapshot for msgs against the
// engine's configured or inferred context window and emits a context_stats
// event. This runs once per turn, before the first provider call.
func (e *Engine) emitContextStats(ctx context.Context, msgs []llm.Message) {
	if e.OnEvent == nil {
		return
	}
	ctxSize := e.ContextWindowTokens
	if ctxSize <= 0 {
		if sz, _ := llm.ContextSize(e.model()); sz > 0 {
			ctxSize = sz
		}
	}
	if ctxSize <= 0 {
		ctxSize = 128_000
	}
	total := e.countMessagesTokens(ctx, msgs)
	usage := 0.0
	if ctxSize > 0 {
		usage = float64(total) / float64(ctxSize)
	}
	e.emit(Event{Type: EventContextStats, Stats: &ContextStats{
		TotalTokens:    total,
		MaxTokens:      ctxSize,
		UsagePercent:   usage * 100,
		ShouldCompress: usage >= 0.85,
	}})
}

func (e *Engine) ensureToolCallIDs(msgs []llm.Message, toolCalls []llm.ToolCall) []llm.ToolCall {
	used := make(map[string]struct{}, len(toolCalls))
	for _, msg := range msgs {
		if msg.Role != "assistant" {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if id := strings.TrimSpace(tc.ID); id != "" {
				used[id] = struct{}{}
			}
		}
	}
	for i := range toolCalls {
		id := strings.TrimSpace(toolCalls[i].ID)
		hasSig := strings.TrimSpace(toolCalls[i].ThoughtSignature) != ""
		if id == "" {
			id = e.nextToolCallID()
		}
		if !hasSig {
			if _, ok := used[id]; ok {
				id = e.nextToolCallID()
			}
			for {
				if _, ok := used[id]; !ok {
					break
				}
				id = e.nextToolCallID()
			}
		}
		toolCalls[i].ID = id
		used[id] = struct{}{}
	}
	return toolCalls
}

func (e *Engine) nextToolCallID() string {
	seq := atomic.AddUint64(&e.toolCallSeq, 1)
	return fmt.Sprintf("engine-call-%d", seq)
}

// dispatchTools executes a batch of tool calls, appending their tool messages to msgs
// and invoking the appropriate callbacks/logging. It returns the updated msgs slice.
// Tool calls within one assistant message are executed sequentially in
// call-list order when MaxToolParallelism == 1; parallel execution is opt-in.
func (e *Engine) dispatchTools(ctx context.Context, msgs []llm.Message, toolCalls []llm.ToolCall) []llm.Message {
	return e.dispatchToolsIter(ctx, msgs, toolCalls, 0)
}

func (e *Engine) dispatchToolsIter(ctx context.Context, msgs []llm.Message, toolCalls []llm.ToolCall, iter int) []llm.Message {
	if len(toolCalls) == 0 {
		return msgs
	}

	maxParallel := e.MaxToolParallelism
	if maxParallel <= 0 || maxParallel > len(toolCalls) {
		maxParallel = len(toolCalls)
	}
	if maxParallel <= 0 {
		maxParallel = 1
	}

	results := make([]llm.Message, len(toolCalls))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, tc := range toolCalls {
		i, tc := i, tc

		dispatchCtx := ctx
		if e.LLM != nil {
			dispatchCtx = tools.WithProvider(ctx, e.LLM)
		}

		if tc.Name == "text_to_speech" && e.OnTool != nil {
			var raw map[string]any
			_ = json.Unmarshal(tc.Args, &raw)
			if v, ok := raw["stream"].(bool); ok && v {
				cb := func(chunk []byte) {
					meta := map[string]any{"event": "chunk", "bytes": len(chunk), "b64": base64.StdEncoding.EncodeToString(chunk)}
					b, _ := json.Marshal(meta)
					if e.OnTool != nil {
						e.OnTool("text_to_speech_chunk", tc.Args, b, tc.ID)
					}
				}
				dispatchCtx = tts.WithStreamChunkCallback(dispatchCtx, cb)
			}
		}

		if tc.Name == "multi_tool_use_parallel" && (e.OnToolStart != nil || e.OnTool != nil) {
			sink := func(ev tools.SubtoolEvent) {
				if ev.Phase == "start" && e.OnToolStart != nil {
					e.OnToolStart(ev.Name, ev.Args, ev.ToolCallID)
					return
				}
				if ev.Phase == "end" && e.OnTool != nil {
					e.OnTool(ev.Name, ev.Args, ev.Payload, ev.ToolCallID)
					return
				}
			}
			dispatchCtx = tools.WithSubtoolSink(dispatchCtx, sink)
		}

		if e.OnToolStart != nil {
			e.OnToolStart(tc.Name, tc.Args, tc.ID)
		}
		e.emit(Event{Type: EventExec, Iter: iter, Phase: ExecStart, Tool: tc.Name, ArgsPreview: truncate(string(tc.Args), 200)})

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, tc llm.ToolCall, dctx context.Context) {
			defer wg.Done()
			defer func() { <-sem }()
			start := time.Now()
			results[idx] = e.executeToolCall(dctx, tc)
			elapsed := time.Since(start).Seconds()

			phase, ok := ExecDone, true
			var resultMap map[string]any
			if json.Unmarshal([]byte(results[idx].Content), &resultMap) == nil {
				// Envelope shape (tools.Envelope): {"success": bool, ...}.
				if v, exists := resultMap["success"]; exists {
					if b, isBool := v.(bool); isBool && !b {
						phase, ok = ExecError, false
					}
				}
				// Legacy ad-hoc shape some callers still emit: {"ok": bool, "error": ...}.
				if v, exists := resultMap["ok"]; exists {
					if b, isBool := v.(bool); isBool && !b {
						phase, ok = ExecError, false
					}
				}
				if v, exists := resultMap["error"]; exists && v != nil {
					phase, ok = ExecError, false
				}
			}
			e.emit(Event{Type: EventExec, Iter: iter, Phase: phase, Tool: tc.Name, ElapsedSec: elapsed, Success: boolPtr(ok)})

			if files := extractGeneratedFiles(resultMap); len(files) > 0 {
				e.emit(Event{Type: EventFilesGenerated, Iter: iter, Files: files})
				e.emit(Event{Type: EventExec, Iter: iter, Phase: ExecFiles, Tool: tc.Name, Message: fmt.Sprintf("%d file(s) generated", len(files))})
			}
		}(i, tc, dispatchCtx)
	}

	wg.Wait()
	// Invoke OnTurnMessage for each tool response message
	if e.OnTurnMessage != nil {
		for _, toolMsg := range results {
			e.OnTurnMessage(toolMsg)
		}
	}
	return append(msgs, results...)
}

func (e *Engine) executeToolCall(ctx context.Context, tc llm.ToolCall) llm.Message {
	// Handle agent delegation as a first-class engine feature (not a tool).
	if e.Delegator != nil && isAgentCall(tc.Name) {
		payload := e.runDelegatedAgent(ctx, tc)
		if e.OnTool != nil {
			e.OnTool(tc.Name, tc.Args, payload, tc.ID)
		}
		return llm.Message{Role: "tool", Content: string(payload), ToolID: tc.ID}
	}

	observability.LoggerWithTrace(ctx).Info().Str("tool", tc.Name).RawJSON("args", observability.RedactJSON(tc.Args)).Msg("engine_tool_call")
	payload, err := e.Tools.Dispatch(ctx, tc.Name, tc.Args)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	if e.OnTool != nil {
		e.OnTool(tc.Name, tc.Args, payload, tc.ID)
	}
	return llm.Message{Role: "tool", Content: string(payload), ToolID: tc.ID}
}

func isAgentCall(name string) bool {
	return name == "agent_call" || name == "ask_agent"
}

// runDelegatedAgent executes an agent-to-agent handoff using the configured
// Delegator and wraps the output in the legacy tool payload shape so the
// parent loop can continue unchanged.
func (e *Engine) runDelegatedAgent(ctx context.Context, tc llm.ToolCall) []byte {
	var args struct {
		AgentName      string        `json:"agent_name"`
		To             string        `json:"to"`
		Prompt         string        `json:"prompt"`
		History        []llm.Message `json:"history"`
		EnableTools    *bool         `json:"enable_tools"`
		MaxSteps       int           `json:"max_steps"`
		TimeoutSeconds int           `json:"timeout_seconds"`
		ProjectID      string        `json:"project_id"`
		UserID         int64         `json:"user_id"`
	}
	if err := json.Unmarshal(tc.Args, &args); err != nil {
		return []byte(fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error()))
	}
	// Support both `agent_name` (internal) and `to` (ask_agent tool)
	if strings.TrimSpace(args.AgentName) == "" && strings.TrimSpace(args.To) != "" {
		args.AgentName = strings.TrimSpace(args.To)
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return []byte(`{"ok":false,"error":"prompt is required"}`)
	}
	callID := tc.ID
	if strings.TrimSpace(callID) == "" {
		callID = fmt.Sprintf("agent-%d", time.Now().UnixNano())
	}
	req := DelegateRequest{
		AgentName:      strings.TrimSpace(args.AgentName),
		Prompt:         args.Prompt,
		History:        args.History,
		EnableTools:    args.EnableTools,
		MaxSteps:       args.MaxSteps,
		TimeoutSeconds: args.TimeoutSeconds,
		ProjectID:      strings.TrimSpace(args.ProjectID),
		UserID:         args.UserID,
		CallID:         callID,
		ParentCallID:   tc.ID,
		Depth:          e.AgentDepth + 1,
	}
	result, err := e.Delegator.Run(ctx, req, e.AgentTracer)
	if err != nil {
		return []byte(fmt.Sprintf(`{"ok":false,"agent":%q,"error":%q}`, req.AgentName, err.Error()))
	}
	out := map[string]any{"ok": true, "agent": req.AgentName, "output": result}
	if b, err := json.Marshal(out); err == nil {
		return b
	}
	return []byte(result)
}

// maybeSummarize inspects msgs and, if usage is at or above the trigger
// threshold and history is long enough to have something worth compressing,
// calls the LLM to produce a short summary of older messages. Returns a new
// messages slice where older messages have been replaced by a single summary
// system message plus the most recent messages preserved verbatim.
//
// Trigger: usage_percent >= SummaryTriggerPercent (default 85) AND history
// length > 2*SummaryRecentTurns (default recent_turns=3, so > 6 messages).
// Tail kept verbatim: the last 2*SummaryRecentTurns messages.
func (e *Engine) maybeSummarize(ctx context.Context, msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return msgs
	}

	// Determine context window size
	ctxSize := e.ContextWindowTokens
	if ctxSize <= 0 {
		if sz, _ := llm.ContextSize(e.model()); sz > 0 {
			ctxSize = sz
		}
	}
	if ctxSize <= 0 {
		ctxSize = 128_000 // Conservative default for modern models
	}

	triggerPercent := e.SummaryTriggerPercent
	if triggerPercent <= 0 {
		triggerPercent = 85
	}

	recentTurns := e.SummaryRecentTurns
	if recentTurns <= 0 {
		recentTurns = 3
	}
	tailCount := 2 * recentTurns
	if minTail := e.SummaryMinKeepLastMessages; minTail > tailCount {
		tailCount = minTail
	}

	// Preserve leading system message if present; it doesn't count toward
	// history length and is never summarized away.
	start := 0
	var sysMsg *llm.Message
	if msgs[0].Role == "system" {
		sysMsg = &msgs[0]
		start = 1
	}
	historyLen := len(msgs) - start

	inputTokens := e.countMessagesTokens(ctx, msgs)
	usagePercent := float64(inputTokens) / float64(ctxSize) * 100

	if usagePercent < triggerPercent || historyLen <= tailCount {
		// No summarization needed: usage is below threshold, or there isn't
		// enough history beyond the verbatim tail to compress.
		return msgs
	}

	log := observability.LoggerWithTrace(ctx)
	log.Info().
		Int("messages", len(msgs)).
		Int("input_tokens", inputTokens).
		Float64("usage_percent", usagePercent).
		Float64("trigger_percent", triggerPercent).
		Int("context_window", ctxSize).
		Int("tail_count", tailCount).
		Msg("summarization_triggered")

	// Keep the last tailCount messages verbatim; summarize everything else.
	cutIndex := len(msgs) - tailCount
	if cutIndex < start {
		cutIndex = start
	}
	cutIndex = e.adjustCutIndexForToolDeps(msgs, start, cutIndex)
	if cutIndex < start {
		cutIndex = start
	}
	recent := msgs[cutIndex:]
	toSummarize := msgs[start:cutIndex]
	if len(toSummarize) == 0 {
		return msgs
	}

	// Notify callback that summarization is occurring. tokenBudget here is the
	// token count implied by the trigger percent, kept for signature
	// compatibility with callers expecting a budget figure.
	if e.OnSummaryTriggered != nil {
		tokenBudget := int(float64(ctxSize) * triggerPercent / 100)
		e.OnSummaryTriggered(inputTokens, tokenBudget, len(msgs), len(toSummarize))
	}
	e.emit(Event{
		Type:    EventCompressionStart,
		Message: fmt.Sprintf("compressing %d of %d messages", len(toSummarize), len(msgs)),
		Stats:   &ContextStats{TotalTokens: inputTokens, MaxTokens: ctxSize, UsagePercent: float64(inputTokens) / float64(ctxSize) * 100, ShouldCompress: true},
	})

	out := e.buildSummarizedMessages(ctx, sysMsg, toSummarize, recent, len(recent))
	newTokens := e.countMessagesTokens(ctx, out)
	if newTokens >= inputTokens {
		e.emit(Event{Type: EventCompressionFailed, Message: "compressed history was not shorter than the original"})
		return msgs
	}
	e.emit(Event{
		Type:    EventCompressionDone,
		Message: fmt.Sprintf("%d -> %d messages", len(msgs), len(out)),
		Stats:   &ContextStats{TotalTokens: newTokens, MaxTokens: ctxSize, UsagePercent: float64(newTokens) / float64(ctxSize) * 100},
	})
	return out
}

// adjustCutIndexForToolDeps ensures that if the kept "recent" tail includes any
// tool response messages, it also includes the preceding assistant message(s)
// that contain the corresponding ToolCalls.
//
// This matters for providers like Gemini 3 where tool responses may need to
// echo provider-specific metadata (e.g., thought signatures) that are carried on
// the original ToolCall message. Summarization must not split that chain.
func (e *Engine) adjustCutIndexForToolDeps(msgs []llm.Message, start, cutIndex int) int {
	if cutIndex <= start || cutIndex >= len(msgs) {
		return cutIndex
	}

	required := make(map[string]struct{})
	for i := cutIndex; i < len(msgs); i++ {
		if msgs[i].Role == "tool" {
			id := strings.TrimSpace(msgs[i].ToolID)
			if id != "" {
				required[id] = struct{}{}
			}
		}
	}
	if len(required) == 0 {
		return cutIndex
	}

	earliestNeeded := cutIndex
	for toolID := range required {
		foundIdx := -1
		for i := cutIndex - 1; i >= start; i-- {
			if msgs[i].Role != "assistant" {
				continue
			}
			for _, tc := range msgs[i].ToolCalls {
				if strings.TrimSpace(tc.ID) == toolID {
					foundIdx = i
					break
				}
			}
			if foundIdx != -1 {
				break
			}
		}
		if foundIdx != -1 && foundIdx < earliestNeeded {
			earliestNeeded = foundIdx
		}
	}

	return earliestNeeded
}

// buildSummarizedMessages constructs a summary prompt, calls the LLM, and
// returns the new message list (system + [summary] + recent). If the summary
// call fails it returns the input unchanged (system + toSummarize + recent).
func (e *Engine) buildSummarizedMessages(
	ctx context.Context,
	sysMsg *llm.Message,
	toSummarize []llm.Message,
	recent []llm.Message,
	keep int,
) []llm.Message {
	maxChunkTokens := e.SummaryMaxSummaryChunkTokens
	if maxChunkTokens <= 0 {
		maxChunkTokens = 4096
	}

	original := toSummarize
	// Fold consecutive same-tool runs and clear long tool results before
	// building the summary prompt.
	toSummarize = llm.FoldConsecutiveToolCalls(toSummarize)
	toSummarize = llm.ClearLongToolResults(toSummarize)

	var b strings.Builder
	currentTokens := 0
	for _, m := range toSummarize {
		// Approximate token cost per message and cap at maxChunkTokens.
		msgTokens := e.countTokens(ctx, m.Content) + 8 // overhead for role/formatting
		if currentTokens+msgTokens > maxChunkTokens {
			break
		}
		b.WriteString("Role: ")
		b.WriteString(m.Role)
		b.WriteString("\n")
		content := m.Content
		// Hard safety cap in characters as a backstop.
		if len(content) > maxChunkTokens*4 {
			content = content[:maxChunkTokens*4] + "\n[TRUNCATED]"
		}
		b.WriteString(content)
		b.WriteString("\n\n")
		currentTokens += msgTokens
	}

	user := llm.CompressionPrompt(b.String())

	summReq := []llm.Message{{Role: "user", Content: user}}
	sumMsg, err := e.LLM.Chat(ctx, summReq, nil, e.model())
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("summary_failed")
		unchanged := make([]llm.Message, 0, 1+len(original)+len(recent))
		if sysMsg != nil {
			unchanged = append(unchanged, *sysMsg)
		}
		unchanged = append(unchanged, original...)
		return append(unchanged, recent...)
	}

	summaryContent := "[Compressed history summary]\n\n" + strings.TrimSpace(sumMsg.Content) + "\n\n---\n\n[Recent messages follow]"
	summary := llm.Message{Role: "system", Content: summaryContent}

	newMsgs := make([]llm.Message, 0, 1+keep+2)
	if sysMsg != nil {
		newMsgs = append(newMsgs, *sysMsg)
	}
	newMsgs = append(newMsgs, summary)
	newMsgs = append(newMsgs, recent...)

	observability.LoggerWithTrace(ctx).Info().
		Int("orig_messages", len(toSummarize)+len(recent)).
		Int("new_messages", len(newMsgs)).
		Msg("history_summarized")
	return newMsgs
}

// Message exists for future agent-level message modeling.
// Message type removed in favor of llm.Message throughout the engine API.
