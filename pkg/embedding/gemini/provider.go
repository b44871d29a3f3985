// Package gemini implements interfaces.EmbeddingProvider on top of
// gollem's Gemini client, the same GenerateEmbedding call the teacher's
// knowledge service uses for its related-case embeddings.
package gemini

import (
	"context"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	gollemgemini "github.com/m-mizutani/gollem/llm/gemini"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// Provider wraps a gollem Gemini LLM client's embedding call.
type Provider struct {
	client     gollem.LLMClient
	model      string
	dimensions atomic.Int64
}

var _ interfaces.EmbeddingProvider = (*Provider)(nil)

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
	dim := int(p.dimensions.Load())
	embeddings, err := p.client.GenerateEmbedding(ctx, dim, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embeddings", goerr.V("model", p.model))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding provider returned unexpected result count",
			goerr.V("want", len(texts)), goerr.V("got", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		v := make([]float32, len(e))
		for j, f := range e {
			v[j] = float32(f)
		}
		vectors[i] = v
		p.dimensions.Store(int64(len(v)))
	}
	return vectors, nil
}
