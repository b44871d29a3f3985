package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// ToolLog is one row in the tool log, written once per tool invocation.
type ToolLog struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	SessionID     string           `json:"session_id"`
	LLMRequestID  string           `json:"llm_request_id"`
	ToolName      string           `json:"tool_name"`
	SkillName     string           `json:"skill_name"`
	Arguments     string           `json:"arguments"`
	Status        types.ToolStatus `json:"status"`
	ResultPreview string           `json:"result_preview"`
	ErrorMessage  string           `json:"error_message"`
	DurationMs    int64            `json:"duration_ms"`
}

// NewToolLogID returns a fresh random tool-log identifier.
func NewToolLogID() string {
	return uuid.NewString()
}
