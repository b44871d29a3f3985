// Package agent implements the Agent Loop: the reason/act cycle that
// tails agent-addressed messages, builds per-turn context, calls an LLM
// provider, dispatches any requested tools, and emits the agent's
// response back onto the message log.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/contextbuilder"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/utils/async"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// maxIterations bounds one turn's reason/act cycle. Hitting the cap
// truncates the turn rather than looping forever against a model that
// keeps requesting tools.
const maxIterations = 10

// ToolDispatcher routes one tool call to its owning skill. Satisfied by
// *skill.Registry.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error)
}

// Loop owns the agent's main tail-and-respond cycle.
type Loop struct {
	stream  interfaces.Client
	llm     interfaces.LLMProvider
	memory  interfaces.MemoryManager
	tools   ToolDispatcher
	builder *contextbuilder.Builder
	obs     *observability.Writer

	agentName   string
	temperature float64
	maxTokens   int
}

// New builds a Loop. memory may be nil when the memory feature is disabled.
func New(stream interfaces.Client, llm interfaces.LLMProvider, memory interfaces.MemoryManager, tools ToolDispatcher, builder *contextbuilder.Builder, obs *observability.Writer, agentName string, temperature float64, maxTokens int) *Loop {
	return &Loop{
		stream:      stream,
		llm:         llm,
		memory:      memory,
		tools:       tools,
		builder:     builder,
		obs:         obs,
		agentName:   agentName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// agentMessageTypes are the message types the loop reacts to; everything
// else on the log (agent_response, tool_call, error, ...) is produced by
// the loop itself and must not re-trigger it.
var agentMessageTypes = map[types.MessageType]bool{
	types.MessageTypeUserInput:     true,
	types.MessageTypeToolResult:    true,
	types.MessageTypeHeartbeat:     true,
	types.MessageTypeScheduledTask: true,
}

// Run tails target="agent" messages until ctx is canceled, handling one
// turn per accepted message.
func (l *Loop) Run(ctx context.Context) error {
	iter, err := l.stream.Tail(ctx, "SELECT * FROM table("+messagelog.StreamName+") WHERE target = '"+model.TargetAgent+"'", interfaces.SeekLatest())
	if err != nil {
		return goerr.Wrap(err, "failed to open agent message tail")
	}
	defer iter.Close()

	for {
		row, ok, err := iter.Next(ctx)
		if err != nil {
			return goerr.Wrap(err, "agent message tail failed")
		}
		if !ok {
			return nil
		}

		msg, err := messagelog.FromRow(row)
		if err != nil {
			logging.From(ctx).Warn("dropping malformed message row", "error", err)
			continue
		}
		// The in-memory stream backend does not parse WHERE clauses, so
		// the target filter in the Tail statement is re-checked here;
		// this also protects against a real backend that over-delivers.
		if msg.Target != model.TargetAgent || !agentMessageTypes[msg.MessageType] {
			continue
		}

		async.Dispatch(ctx, func(turnCtx context.Context) error {
			l.handleTurn(turnCtx, msg)
			return nil
		})
	}
}

// handleTurn runs one bounded reason/act cycle for msg and writes its
// outcome back to the message log.
func (l *Loop) handleTurn(ctx context.Context, msg *model.Message) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("agent turn panicked", "panic", r, "session_id", msg.SessionID)
			l.emitError(ctx, msg, goerr.New("internal error handling turn"))
		}
	}()

	built, err := l.builder.Build(ctx, contextbuilder.Request{
		SessionID:     msg.SessionID,
		UserMessage:   textOf(msg.Content),
		UserID:        msg.UserID,
		ChannelName:   channelNameOf(msg),
		IncludeMemory: true,
		MemoryLimit:   5,
	})
	if err != nil {
		l.emitError(ctx, msg, goerr.Wrap(err, "failed to build turn context"))
		return
	}

	// built.Messages already ends with this turn's triggering user_input
	// row: the channel writes it to the log before the agent tails it, so
	// contextbuilder.Build's history query picks it up. Re-appending it
	// here would send it to the LLM twice.
	messages := built.Messages

	var toolsCalled []string
	for i := 0; i < maxIterations; i++ {
		resp, err := l.callLLM(ctx, msg, built.SystemPrompt, messages, built.Tools)
		if err != nil {
			l.emitError(ctx, msg, goerr.Wrap(err, "llm call failed"))
			return
		}

		if len(resp.ToolCalls) == 0 {
			l.emitResponse(ctx, msg, resp.Content)
			l.extractMemories(ctx, msg.SessionID)
			return
		}

		messages = append(messages, interfaces.ChatMessage{Role: interfaces.RoleAssistant, Content: resp.Content})

		for _, call := range resp.ToolCalls {
			toolsCalled = append(toolsCalled, call.Name)
			result := l.dispatchTool(ctx, msg, call)
			messages = append(messages, interfaces.ChatMessage{
				Role:       interfaces.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    toolResultText(result),
			})
		}
	}

	l.emitTruncation(ctx, msg, toolsCalled)
}

func (l *Loop) callLLM(ctx context.Context, msg *model.Message, system string, messages []interfaces.ChatMessage, tools []interfaces.ToolDefinition) (*interfaces.ChatResponse, error) {
	start := time.Now()
	resp, err := l.llm.Chat(ctx, interfaces.ChatRequest{
		Messages:    messages,
		System:      system,
		Tools:       tools,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	latency := time.Since(start)

	status := types.LLMStatusSuccess
	errMsg := ""
	if err != nil {
		status = classifyLLMError(err)
		errMsg = err.Error()
	}

	var userText, assistantText string
	var toolNames []string
	if len(messages) > 0 {
		userText = messages[len(messages)-1].Content
	}
	if resp != nil {
		assistantText = resp.Content
		for _, tc := range resp.ToolCalls {
			toolNames = append(toolNames, tc.Name)
		}
	}

	cost := 0.0
	inTok, outTok := 0, 0
	if resp != nil {
		inTok, outTok = resp.Usage.InputTokens, resp.Usage.OutputTokens
		cost = l.llm.EstimateCost(inTok, outTok)
	}

	l.obs.WriteLLMLog(ctx, observability.LLMLogInput{
		SessionID:         msg.SessionID,
		Model:             l.llm.Model(),
		Provider:          l.llm.ProviderName(),
		InputTokens:       inTok,
		OutputTokens:      outTok,
		EstimatedCost:     cost,
		LatencyMs:         latency.Milliseconds(),
		SystemPrompt:      system,
		UserMessage:       userText,
		AssistantResponse: assistantText,
		ToolsCalled:       toolNames,
		Status:            status,
		ErrorMessage:      errMsg,
	})

	return resp, err
}

// dispatchTool executes one tool call and writes exactly one tool_call
// broadcast message, one tool_result message, and one tool_log row for it.
func (l *Loop) dispatchTool(ctx context.Context, msg *model.Message, call interfaces.ToolCall) interfaces.ToolResult {
	start := time.Now()
	result, err := l.tools.Dispatch(ctx, call.Name, call.Arguments)
	duration := time.Since(start)

	status := types.ToolStatusSuccess
	errMsg := ""
	if err != nil {
		status = types.ToolStatusError
		errMsg = err.Error()
		result = interfaces.Fail(errMsg)
	} else if !result.Success {
		status = types.ToolStatusError
		errMsg = result.Error
	}

	l.broadcast(ctx, msg, types.MessageTypeToolCall, map[string]any{
		"tool_name":          call.Name,
		"arguments_summary":  formatToolArgsSummary(call.Arguments),
		"status":             status.String(),
		"duration_ms":        duration.Milliseconds(),
		"error":              errMsg,
	})

	l.broadcast(ctx, msg, types.MessageTypeToolResult, map[string]any{
		"tool_name": call.Name,
		"text":      toolResultText(result),
		"success":   result.Success,
	})

	l.obs.WriteToolLog(ctx, observability.ToolLogInput{
		SessionID:     msg.SessionID,
		ToolName:      call.Name,
		Arguments:     formatToolArgsSummary(call.Arguments),
		Status:        status,
		ResultPreview: toolResultText(result),
		ErrorMessage:  errMsg,
		DurationMs:    duration.Milliseconds(),
	})

	return result
}

func (l *Loop) emitResponse(ctx context.Context, msg *model.Message, text string) {
	l.broadcast(ctx, msg, types.MessageTypeAgentResponse, map[string]any{"text": text})
}

func (l *Loop) emitTruncation(ctx context.Context, msg *model.Message, toolsCalled []string) {
	l.broadcast(ctx, msg, types.MessageTypeAgentResponse, map[string]any{
		"text":       "I wasn't able to finish this within my tool-call budget, so I'm stopping here.",
		"truncated":  true,
	})
	l.obs.WriteEvent(ctx, "iteration_cap_reached", "agent", types.SeverityWarning, map[string]any{
		"session_id":  msg.SessionID,
		"tools_called": toolsCalled,
	}, []string{"agent_loop"})
}

func (l *Loop) emitError(ctx context.Context, msg *model.Message, err error) {
	logging.From(ctx).Error("agent turn failed", "error", err, "session_id", msg.SessionID)
	l.broadcast(ctx, msg, types.MessageTypeError, map[string]any{"text": "Sorry, something went wrong handling that."})
	l.obs.WriteEvent(ctx, "agent_turn_error", "agent", types.SeverityError, map[string]any{
		"session_id": msg.SessionID,
		"error":      err.Error(),
	}, []string{"agent_loop"})
}

// broadcast appends one message addressed per replyTarget (the originating
// channel, or a broadcast when that is unknown), mirroring the
// conversational turn back out through the log.
func (l *Loop) broadcast(ctx context.Context, in *model.Message, msgType types.MessageType, content map[string]any) {
	out := &model.Message{
		ID:          model.NewMessageID(),
		Timestamp:   time.Now().UTC(),
		Source:      "agent",
		Target:      replyTarget(in),
		SessionID:   in.SessionID,
		MessageType: msgType,
		Content:     content,
		UserID:      in.UserID,
		Priority:    types.PriorityNormal,
	}
	if err := messagelog.Insert(ctx, l.stream, out); err != nil {
		logging.From(ctx).Error("failed to write agent message", "error", err, "message_type", msgType)
	}
}

// replyTarget routes a turn's output back to the channel that originated
// it when known, falling back to a broadcast so every channel can choose
// whether to render it.
func replyTarget(in *model.Message) string {
	if ch := channelNameOf(in); ch != "" {
		return model.TargetChannel(ch)
	}
	return model.TargetBroadcast
}

func textOf(content map[string]any) string {
	if v, ok := content["text"].(string); ok {
		return v
	}
	return ""
}

func channelNameOf(m *model.Message) string {
	if v, ok := m.ChannelMetadata["channel"].(string); ok {
		return v
	}
	return ""
}

func toolResultText(result interfaces.ToolResult) string {
	if !result.Success {
		return result.Error
	}
	if text, ok := result.Output["text"].(string); ok {
		return text
	}
	if len(result.Output) == 0 {
		return ""
	}
	return formatToolArgsSummary(result.Output)
}

func classifyLLMError(err error) types.LLMStatus {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.LLMStatusTimeout
	case strings.Contains(err.Error(), "rate limit"):
		return types.LLMStatusRateLimited
	default:
		return types.LLMStatusError
	}
}
