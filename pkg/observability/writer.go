// Package observability is a thin facade around the stream client for
// the LLM log, tool log, and event stream. Writes are best-effort — a
// failure degrades to a local structured log line instead of failing the
// turn that produced it.
package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
	"github.com/timeplus-io/pulsebot/pkg/utils/text"
)

const (
	llmLogStream   = "llm_logs"
	toolLogStream  = "tool_logs"
	eventStream    = "events"
	previewMaxLen  = 200
	resultMaxLen   = 500
)

// Writer appends per-turn observability records. It owns its own mapping
// from domain model to stream row; the agent loop never constructs a
// row by hand.
type Writer struct {
	stream interfaces.Client
}

// New builds a Writer over stream.
func New(stream interfaces.Client) *Writer {
	return &Writer{stream: stream}
}

// LLMLogInput carries the raw fields of one provider call; Writer
// truncates previews and hashes the system prompt before inserting.
type LLMLogInput struct {
	SessionID          string
	Model              string
	Provider           string
	InputTokens        int
	OutputTokens       int
	EstimatedCost      float64
	LatencyMs          int64
	TimeToFirstTokenMs int64
	SystemPrompt       string
	UserMessage        string
	AssistantResponse  string
	ToolsCalled        []string
	Status             types.LLMStatus
	ErrorMessage       string
}

// WriteLLMLog appends one LLM-log record. Failures are logged and
// swallowed; the caller's turn continues regardless.
func (w *Writer) WriteLLMLog(ctx context.Context, in LLMLogInput) {
	entry := &model.LLMLog{
		ID:                       model.NewLLMLogID(),
		Timestamp:                time.Now().UTC(),
		SessionID:                in.SessionID,
		Model:                    in.Model,
		Provider:                 in.Provider,
		InputTokens:              in.InputTokens,
		OutputTokens:             in.OutputTokens,
		TotalTokens:              in.InputTokens + in.OutputTokens,
		EstimatedCost:            in.EstimatedCost,
		LatencyMs:                in.LatencyMs,
		TimeToFirstTokenMs:       in.TimeToFirstTokenMs,
		SystemPromptHash:         text.HashContent(in.SystemPrompt),
		UserMessagePreview:       text.Truncate(in.UserMessage, previewMaxLen),
		AssistantResponsePreview: text.Truncate(in.AssistantResponse, previewMaxLen),
		ToolsCalled:              in.ToolsCalled,
		ToolCallCount:            len(in.ToolsCalled),
		Status:                   in.Status,
		ErrorMessage:             in.ErrorMessage,
	}

	if err := w.stream.Insert(ctx, llmLogStream, []interfaces.Row{llmLogRow(entry)}); err != nil {
		logging.From(ctx).Error("failed to write llm log, degrading to local log", "error", err, "session_id", in.SessionID)
	}
}

// ToolLogInput carries the raw fields of one tool invocation.
type ToolLogInput struct {
	SessionID    string
	LLMRequestID string
	ToolName     string
	SkillName    string
	Arguments    string
	Status       types.ToolStatus
	ResultPreview string
	ErrorMessage string
	DurationMs   int64
}

// WriteToolLog appends one tool-log record.
func (w *Writer) WriteToolLog(ctx context.Context, in ToolLogInput) {
	entry := &model.ToolLog{
		ID:            model.NewToolLogID(),
		Timestamp:     time.Now().UTC(),
		SessionID:     in.SessionID,
		LLMRequestID:  in.LLMRequestID,
		ToolName:      in.ToolName,
		SkillName:     in.SkillName,
		Arguments:     in.Arguments,
		Status:        in.Status,
		ResultPreview: text.Truncate(in.ResultPreview, resultMaxLen),
		ErrorMessage:  in.ErrorMessage,
		DurationMs:    in.DurationMs,
	}

	if err := w.stream.Insert(ctx, toolLogStream, []interfaces.Row{toolLogRow(entry)}); err != nil {
		logging.From(ctx).Error("failed to write tool log, degrading to local log", "error", err, "tool", in.ToolName)
	}
}

// WriteEvent appends one record to the event log.
func (w *Writer) WriteEvent(ctx context.Context, eventType, source string, severity types.Severity, payload map[string]any, tags []string) {
	entry := &model.Event{
		ID:        model.NewEventID(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Source:    source,
		Severity:  severity,
		Payload:   payload,
		Tags:      tags,
	}

	if err := w.stream.Insert(ctx, eventStream, []interfaces.Row{eventRow(entry)}); err != nil {
		logging.From(ctx).Error("failed to write event, degrading to local log", "error", err, "event_type", eventType, "severity", severity)
	}
}

func llmLogRow(e *model.LLMLog) interfaces.Row {
	return interfaces.Row{
		"id":                          e.ID,
		"timestamp":                   e.Timestamp,
		"session_id":                  e.SessionID,
		"model":                       e.Model,
		"provider":                    e.Provider,
		"input_tokens":                e.InputTokens,
		"output_tokens":               e.OutputTokens,
		"total_tokens":                e.TotalTokens,
		"estimated_cost_usd":          e.EstimatedCost,
		"latency_ms":                  e.LatencyMs,
		"time_to_first_token_ms":      e.TimeToFirstTokenMs,
		"system_prompt_hash":          e.SystemPromptHash,
		"user_message_preview":        e.UserMessagePreview,
		"assistant_response_preview":  e.AssistantResponsePreview,
		"tools_called":                e.ToolsCalled,
		"tool_call_count":             e.ToolCallCount,
		"status":                      e.Status.String(),
		"error_message":               e.ErrorMessage,
	}
}

func toolLogRow(e *model.ToolLog) interfaces.Row {
	return interfaces.Row{
		"id":              e.ID,
		"timestamp":       e.Timestamp,
		"session_id":      e.SessionID,
		"llm_request_id":  e.LLMRequestID,
		"tool_name":       e.ToolName,
		"skill_name":      e.SkillName,
		"arguments":       e.Arguments,
		"status":          e.Status.String(),
		"result_preview":  e.ResultPreview,
		"error_message":   e.ErrorMessage,
		"duration_ms":     e.DurationMs,
	}
}

func eventRow(e *model.Event) interfaces.Row {
	payload, _ := json.Marshal(e.Payload)
	return interfaces.Row{
		"id":         e.ID,
		"timestamp":  e.Timestamp,
		"event_type": e.EventType,
		"source":     e.Source,
		"severity":   e.Severity.String(),
		"payload":    string(payload),
		"tags":       e.Tags,
	}
}
