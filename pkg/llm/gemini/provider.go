// Package gemini implements interfaces.LLMProvider on top of gollem's
// Gemini session API, the same client construction the teacher's
// knowledge service uses for embeddings and structured-output sessions.
package gemini

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	gollemgemini "github.com/m-mizutani/gollem/llm/gemini"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/llm"
)

// Provider wraps a gollem Gemini client. Each Chat call opens a fresh
// session scoped to the request, since interfaces.ChatRequest already
// carries the full message history and gollem sessions are stateful.
type Provider struct {
	client gollem.LLMClient
	model  string
}

var _ interfaces.LLMProvider = (*Provider)(nil)

// New connects to Gemini for the given GCP project/location.
func New(ctx context.Context, projectID, location, model string) (*Provider, error) {
	client, err := gollemgemini.New(ctx, projectID, location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) ProviderName() string { return "gemini" }
func (p *Provider) Model() string        { return p.model }

func (p *Provider) EstimateCost(inputTokens, outputTokens int) float64 {
	return llm.EstimateCost(p.model, inputTokens, outputTokens)
}

func (p *Provider) Chat(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	var opts []gollem.SessionOption
	if req.System != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(req.System))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, gollem.WithSessionTools(toolSpecs(req.Tools)...))
	}

	session, err := p.client.NewSession(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini session", goerr.V("model", p.model))
	}

	inputs := make([]gollem.Input, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case interfaces.RoleUser, interfaces.RoleAssistant:
			inputs = append(inputs, gollem.Text(m.Content))
		case interfaces.RoleTool:
			inputs = append(inputs, gollem.Text(m.Content))
		}
	}

	resp, err := session.GenerateContent(ctx, inputs...)
	if err != nil {
		return nil, goerr.Wrap(err, "gemini chat completion failed", goerr.V("model", p.model))
	}

	out := &interfaces.ChatResponse{}
	for _, t := range resp.Texts {
		out.Content += t
	}
	for _, fc := range resp.FunctionCalls {
		out.ToolCalls = append(out.ToolCalls, interfaces.ToolCall{
			ID:        fc.Name,
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}
	return out, nil
}

func toolSpecs(defs []interfaces.ToolDefinition) []gollem.ToolSpec {
	specs := make([]gollem.ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, gollem.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGollemParameters(d.Parameters),
		})
	}
	return specs
}

func toGollemParameters(params map[string]*interfaces.ToolParameter) map[string]*gollem.Parameter {
	out := make(map[string]*gollem.Parameter, len(params))
	for name, p := range params {
		out[name] = toGollemParameter(p)
	}
	return out
}

func toGollemParameter(p *interfaces.ToolParameter) *gollem.Parameter {
	gp := &gollem.Parameter{
		Type:        gollemType(p.Type),
		Description: p.Description,
		Required:    p.Required,
		Enum:        p.Enum,
	}
	if p.Items != nil {
		gp.Items = toGollemParameter(p.Items)
	}
	return gp
}

func gollemType(t string) gollem.ParameterType {
	switch t {
	case "integer":
		return gollem.TypeInteger
	case "number":
		return gollem.TypeNumber
	case "boolean":
		return gollem.TypeBoolean
	case "array":
		return gollem.TypeArray
	case "object":
		return gollem.TypeObject
	default:
		return gollem.TypeString
	}
}
