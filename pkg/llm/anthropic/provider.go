// Package anthropic implements interfaces.LLMProvider against the
// Claude Messages API.
package anthropic

import (
	"context"
	"encoding/json"

	anthropicsdk "github.com/liushuangls/go-anthropic/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/llm"
)

// Provider wraps an Anthropic client.
type Provider struct {
	client *anthropicsdk.Client
	model  string
}

var _ interfaces.LLMProvider = (*Provider)(nil)

// New builds a Provider. baseURL overrides the default API host, used for
// proxying or testing.
func New(apiKey, model, baseURL string) *Provider {
	var opts []anthropicsdk.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropicsdk.WithBaseURL(baseURL))
	}
	return &Provider{
		client: anthropicsdk.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (p *Provider) ProviderName() string { return "anthropic" }
func (p *Provider) Model() string        { return p.model }

func (p *Provider) EstimateCost(inputTokens, outputTokens int) float64 {
	return llm.EstimateCost(p.model, inputTokens, outputTokens)
}

func (p *Provider) Chat(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	body := anthropicsdk.MessagesRequest{
		Model:     anthropicsdk.Model(p.model),
		Messages:  messages,
		MaxTokens: maxTokensOr(req.MaxTokens, 4096),
	}
	if req.System != "" {
		body.System = req.System
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		body.Temperature = &temp
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, anthropicsdk.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: toolParametersSchema(t.Parameters),
		})
	}

	resp, err := p.client.CreateMessages(ctx, body)
	if err != nil {
		return nil, goerr.Wrap(err, "anthropic chat completion failed", goerr.V("model", p.model))
	}

	return fromAnthropicResponse(resp), nil
}

func maxTokensOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func toAnthropicMessages(messages []interfaces.ChatMessage) ([]anthropicsdk.Message, error) {
	out := make([]anthropicsdk.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case interfaces.RoleUser:
			out = append(out, anthropicsdk.Message{
				Role:    anthropicsdk.RoleUser,
				Content: []anthropicsdk.MessageContent{anthropicsdk.NewTextMessageContent(m.Content)},
			})
		case interfaces.RoleAssistant:
			out = append(out, anthropicsdk.Message{
				Role:    anthropicsdk.RoleAssistant,
				Content: []anthropicsdk.MessageContent{anthropicsdk.NewTextMessageContent(m.Content)},
			})
		case interfaces.RoleTool:
			out = append(out, anthropicsdk.Message{
				Role: anthropicsdk.RoleUser,
				Content: []anthropicsdk.MessageContent{
					anthropicsdk.NewToolResultMessageContent(m.ToolCallID, m.Content, false),
				},
			})
		default:
			return nil, goerr.New("unsupported chat role for anthropic provider", goerr.V("role", m.Role))
		}
	}
	return out, nil
}

func toolParametersSchema(params map[string]*interfaces.ToolParameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func fromAnthropicResponse(resp anthropicsdk.MessagesResponse) *interfaces.ChatResponse {
	out := &interfaces.ChatResponse{
		Usage: interfaces.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		StopReason: string(resp.StopReason),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case anthropicsdk.MessagesContentTypeText:
			if block.Text != nil {
				out.Content += *block.Text
			}
		case anthropicsdk.MessagesContentTypeToolUse:
			if block.MessageContentToolUse != nil {
				var args map[string]any
				_ = json.Unmarshal(block.MessageContentToolUse.Input, &args)
				out.ToolCalls = append(out.ToolCalls, interfaces.ToolCall{
					ID:        block.MessageContentToolUse.ID,
					Name:      block.MessageContentToolUse.Name,
					Arguments: args,
				})
			}
		}
	}
	return out
}
