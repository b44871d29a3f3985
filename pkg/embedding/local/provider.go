// Package local implements interfaces.EmbeddingProvider against any
// OpenAI-wire-compatible embeddings endpoint, covering Ollama and NVIDIA
// NIM deployments per the configuration surface's "local providers" carve
// out.
package local

import (
	"context"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// Provider wraps an OpenAI-compatible embeddings client pointed at a
// custom host, e.g. "http://localhost:11434/v1" for Ollama.
type Provider struct {
	client     *openai.Client
	model      string
	name       string
	dimensions atomic.Int64
}

var _ interfaces.EmbeddingProvider = (*Provider)(nil)

// New builds a Provider for host, model and a display name (e.g. "local",
// "ollama" or "nvidia") used to tag provider_name.
func New(host, apiKey, model, name string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = host
	return &Provider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   name,
	}
}

func (p *Provider) ProviderName() string { return p.name }
func (p *Provider) Model() string        { return p.model }

func (p *Provider) Dimensions(ctx context.Context) (int, error) {
	if d := p.dimensions.Load(); d != 0 {
		return int(d), nil
	}
	vec, err := p.Embed(ctx, "probe")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embeddings", goerr.V("model", p.model), goerr.V("provider", p.name))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
		p.dimensions.Store(int64(len(d.Embedding)))
	}
	return vectors, nil
}
