package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/agent"
	"github.com/timeplus-io/pulsebot/pkg/contextbuilder"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/skill"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

type scriptedLLM struct {
	responses []*interfaces.ChatResponse
	calls     int
}

func (f *scriptedLLM) ProviderName() string { return "fake" }
func (f *scriptedLLM) Model() string        { return "fake-model" }
func (f *scriptedLLM) EstimateCost(in, out int) float64 { return 0 }

func (f *scriptedLLM) Chat(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	resp := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return resp, nil
}

type fakeTool struct{}

func (fakeTool) Name() string        { return "echo" }
func (fakeTool) Description() string { return "echoes its input" }
func (fakeTool) Tools() []interfaces.ToolDefinition {
	return []interfaces.ToolDefinition{{
		Name:        "echo",
		Description: "echoes its input",
		Parameters: map[string]*interfaces.ToolParameter{
			"text": {Type: "string", Required: true},
		},
	}}
}
func (fakeTool) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	return interfaces.OK(map[string]any{"text": arguments["text"]}), nil
}

func waitForRows(stream *local.Client, name string, n int) []interfaces.Row {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		rows := stream.All(name)
		if len(rows) >= n {
			return rows
		}
		time.Sleep(5 * time.Millisecond)
	}
	return stream.All(name)
}

func TestLoopRespondsWithoutTools(t *testing.T) {
	ctx := context.Background()
	stream := local.New()
	obs := observability.New(stream)
	registry := skill.New()
	builder := contextbuilder.New(stream, nil, registry, "pulsebot", "")

	llm := &scriptedLLM{responses: []*interfaces.ChatResponse{
		{Content: "hello there"},
	}}

	loop := agent.New(stream, llm, nil, registry, builder, obs, "pulsebot", 0.7, 1024)

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	go loop.Run(runCtx)
	time.Sleep(20 * time.Millisecond) // let Run's Tail subscribe before we publish

	in := &model.Message{
		ID: "m1", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
		SessionID: "s1", MessageType: types.MessageTypeUserInput,
		Content: map[string]any{"text": "hi"},
	}
	gt.NoError(t, messagelog.Insert(ctx, stream, in)).Required()

	rows := waitForRows(stream, "messages", 2)
	var found bool
	for _, r := range rows {
		if r["message_type"] == "agent_response" {
			found = true
		}
	}
	gt.True(t, found)

	logs := stream.All("llm_logs")
	gt.Array(t, logs).Length(1)
}

func TestLoopDispatchesToolAndWritesLogs(t *testing.T) {
	ctx := context.Background()
	stream := local.New()
	obs := observability.New(stream)
	registry := skill.New()
	gt.NoError(t, registry.Register(fakeTool{})).Required()
	builder := contextbuilder.New(stream, nil, registry, "pulsebot", "")

	llm := &scriptedLLM{responses: []*interfaces.ChatResponse{
		{Content: "calling echo", ToolCalls: []interfaces.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "ping"}}}},
		{Content: "done"},
	}}

	loop := agent.New(stream, llm, nil, registry, builder, obs, "pulsebot", 0.7, 1024)

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	go loop.Run(runCtx)
	time.Sleep(20 * time.Millisecond) // let Run's Tail subscribe before we publish

	in := &model.Message{
		ID: "m1", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
		SessionID: "s1", MessageType: types.MessageTypeUserInput,
		Content: map[string]any{"text": "please echo ping"},
	}
	gt.NoError(t, messagelog.Insert(ctx, stream, in)).Required()

	toolLogs := waitForRows(stream, "tool_logs", 1)
	gt.Array(t, toolLogs).Length(1)
	gt.Value(t, toolLogs[0]["tool_name"]).Equal("echo")
	gt.Value(t, toolLogs[0]["status"]).Equal("success")

	// user_input + tool_call + tool_result + agent_response
	rows := waitForRows(stream, "messages", 4)
	var toolCalls, toolResults, responses int
	for _, r := range rows {
		switch r["message_type"] {
		case "tool_call":
			toolCalls++
		case "tool_result":
			toolResults++
		case "agent_response":
			responses++
		}
	}
	gt.Value(t, toolCalls).Equal(1)
	gt.Value(t, toolResults).Equal(1)
	gt.Value(t, responses).Equal(1)
}
