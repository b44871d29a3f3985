package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// LLMLog is one row in the LLM log, written once per provider call.
type LLMLog struct {
	ID                        string          `json:"id"`
	Timestamp                 time.Time       `json:"timestamp"`
	SessionID                 string          `json:"session_id"`
	Model                     string          `json:"model"`
	Provider                  string          `json:"provider"`
	InputTokens               int             `json:"input_tokens"`
	OutputTokens              int             `json:"output_tokens"`
	TotalTokens               int             `json:"total_tokens"`
	EstimatedCost             float64         `json:"estimated_cost"`
	LatencyMs                 int64           `json:"latency_ms"`
	TimeToFirstTokenMs        int64           `json:"time_to_first_token_ms"`
	SystemPromptHash          string          `json:"system_prompt_hash"`
	UserMessagePreview        string          `json:"user_message_preview"`
	AssistantResponsePreview  string          `json:"assistant_response_preview"`
	ToolsCalled               []string        `json:"tools_called"`
	ToolCallCount             int             `json:"tool_call_count"`
	Status                    types.LLMStatus `json:"status"`
	ErrorMessage              string          `json:"error_message"`
}

// NewLLMLogID returns a fresh random LLM-log identifier.
func NewLLMLogID() string {
	return uuid.NewString()
}
