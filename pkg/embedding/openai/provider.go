// Package openai implements interfaces.EmbeddingProvider against the
// OpenAI embeddings endpoint.
package openai

import (
	"context"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// Provider wraps an OpenAI embeddings client.
type Provider struct {
	client     *openai.Client
	model      string
	dimensions atomic.Int64 // 0 until discovered
}

var _ interfaces.EmbeddingProvider = (*Provider)(nil)

// New builds a Provider for the given model, e.g. "text-embedding-3-small".
func New(apiKey, model string) *Provider {
	return &Provider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (p *Provider) ProviderName() string { return "openai" }
func (p *Provider) Model() string        { return p.model }

// Dimensions returns the cached dimensionality, probing with a one-word
// embedding call on first use when it hasn't been discovered yet.
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

// Embed generates a single embedding vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts in one call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embeddings", goerr.V("model", p.model))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding provider returned unexpected result count",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Data)))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
		p.dimensions.Store(int64(len(d.Embedding)))
	}
	return vectors, nil
}
