package observability_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

func TestWriteLLMLog(t *testing.T) {
	ctx := context.Background()
	stream := local.New()
	w := observability.New(stream)

	w.WriteLLMLog(ctx, observability.LLMLogInput{
		SessionID:         "s1",
		Model:             "claude-sonnet-4-20250514",
		Provider:          "anthropic",
		InputTokens:       100,
		OutputTokens:      50,
		EstimatedCost:     0.01,
		LatencyMs:         250,
		SystemPrompt:      "you are pulsebot",
		UserMessage:       "hello there, this is a fairly long message to exercise truncation behavior in the preview field",
		AssistantResponse: "hi",
		Status:            types.LLMStatusSuccess,
	})

	rows := stream.All("llm_logs")
	gt.Array(t, rows).Length(1)
	gt.Value(t, rows[0]["session_id"]).Equal("s1")
	gt.Value(t, rows[0]["status"]).Equal("success")
	gt.Value(t, rows[0]["total_tokens"]).Equal(150)
	gt.Value(t, rows[0]["system_prompt_hash"]).NotEqual("")
}

func TestWriteToolLog(t *testing.T) {
	ctx := context.Background()
	stream := local.New()
	w := observability.New(stream)

	w.WriteToolLog(ctx, observability.ToolLogInput{
		SessionID: "s1",
		ToolName:  "web_search",
		SkillName: "web_search",
		Status:    types.ToolStatusSuccess,
	})

	rows := stream.All("tool_logs")
	gt.Array(t, rows).Length(1)
	gt.Value(t, rows[0]["tool_name"]).Equal("web_search")
	gt.Value(t, rows[0]["status"]).Equal("success")
}

func TestWriteEvent(t *testing.T) {
	ctx := context.Background()
	stream := local.New()
	w := observability.New(stream)

	w.WriteEvent(ctx, "iteration_cap_reached", "agent", types.SeverityWarning, map[string]any{"session_id": "s1"}, []string{"agent_loop"})

	rows := stream.All("events")
	gt.Array(t, rows).Length(1)
	gt.Value(t, rows[0]["event_type"]).Equal("iteration_cap_reached")
	gt.Value(t, rows[0]["severity"]).Equal("warning")
}
