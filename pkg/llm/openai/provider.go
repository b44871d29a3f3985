// Package openai implements interfaces.LLMProvider against the OpenAI
// chat completions API.
package openai

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/llm"
)

// Provider wraps an OpenAI chat client. baseURL, when set, redirects the
// client at an OpenAI-compatible endpoint (used by the local provider).
type Provider struct {
	client *openai.Client
	model  string
	name   string
}

var _ interfaces.LLMProvider = (*Provider)(nil)

// New builds a Provider for the OpenAI API.
func New(apiKey, model string) *Provider {
	return &Provider{client: openai.NewClient(apiKey), model: model, name: "openai"}
}

// NewWithBaseURL builds a Provider pointed at a custom OpenAI-compatible
// endpoint, tagging ProviderName with name (e.g. "ollama", "nvidia").
func NewWithBaseURL(apiKey, model, baseURL, name string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model, name: name}
}

func (p *Provider) ProviderName() string { return p.name }
func (p *Provider) Model() string        { return p.model }

func (p *Provider) EstimateCost(inputTokens, outputTokens int) float64 {
	return llm.EstimateCost(p.model, inputTokens, outputTokens)
}

func (p *Provider) Chat(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	messages := toOpenAIMessages(req)

	body := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = float32(req.Temperature)
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParametersSchema(t.Parameters),
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, goerr.Wrap(err, "openai chat completion failed", goerr.V("model", p.model))
	}
	if len(resp.Choices) == 0 {
		return nil, goerr.New("openai returned no choices", goerr.V("model", p.model))
	}

	return fromOpenAIResponse(resp), nil
}

func toOpenAIMessages(req interfaces.ChatRequest) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case interfaces.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case interfaces.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		case interfaces.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.Name,
			})
		}
	}
	return out
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

func fromOpenAIResponse(resp openai.ChatCompletionResponse) *interfaces.ChatResponse {
	choice := resp.Choices[0]
	out := &interfaces.ChatResponse{
		Content: choice.Message.Content,
		Usage: interfaces.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		StopReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, interfaces.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out
}
