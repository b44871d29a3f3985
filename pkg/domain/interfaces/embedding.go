package interfaces

import "context"

// EmbeddingProvider turns text into a fixed-length vector. Dimensions may be
// auto-discovered on first use when not statically configured; every
// implementation must report a stable value thereafter.
type EmbeddingProvider interface {
	ProviderName() string
	Model() string
	Dimensions(ctx context.Context) (int, error)

	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
