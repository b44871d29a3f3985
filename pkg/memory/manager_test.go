package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/memory"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

// fakeEmbedder maps known strings to fixed vectors, and unknown strings to
// a vector derived from their byte sum, so near-identical text produces
// near-identical (but not always literally equal) embeddings.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) ProviderName() string { return "fake" }
func (f *fakeEmbedder) Model() string        { return "fake-model" }

func (f *fakeEmbedder) Dimensions(ctx context.Context) (int, error) { return 3, nil }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	var sum float32
	for _, b := range []byte(text) {
		sum += float32(b)
	}
	return []float32{sum, sum / 2, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestManagerStoreAndSearch(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.vectors["prefers dark mode"] = []float32{1, 0, 0}
	embedder.vectors["likes dark themes"] = []float32{1, 0, 0}
	embedder.vectors["deploys on fridays"] = []float32{0, 1, 0}

	mgr := memory.New(local.New(), embedder)

	id1, err := mgr.Store(ctx, "prefers dark mode", types.MemoryTypePreference, types.MemoryCategoryUserInfo, 0.8, "session-1", false)
	gt.NoError(t, err).Required()
	gt.String(t, string(id1)).NotEqual("")

	_, err = mgr.Store(ctx, "deploys on fridays", types.MemoryTypeFact, types.MemoryCategoryProject, 0.3, "session-1", false)
	gt.NoError(t, err).Required()

	results, err := mgr.Search(ctx, "prefers dark mode", 10, 0, nil, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2)
	gt.Value(t, results[0].Memory.ID).Equal(id1)
}

func TestManagerStoreDeduplicates(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.vectors["prefers dark mode"] = []float32{1, 0, 0}
	embedder.vectors["likes dark themes"] = []float32{1, 0, 0}

	mgr := memory.New(local.New(), embedder, memory.WithSimilarityThreshold(0.95))

	id1, err := mgr.Store(ctx, "prefers dark mode", types.MemoryTypePreference, types.MemoryCategoryUserInfo, 0.8, "session-1", true)
	gt.NoError(t, err).Required()

	id2, err := mgr.Store(ctx, "likes dark themes", types.MemoryTypePreference, types.MemoryCategoryUserInfo, 0.8, "session-1", true)
	gt.NoError(t, err).Required()

	gt.Value(t, id2).Equal(id1)
}

func TestManagerMarkDeletedExcludesFromSearch(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.vectors["deploys on fridays"] = []float32{0, 1, 0}

	mgr := memory.New(local.New(), embedder)

	id, err := mgr.Store(ctx, "deploys on fridays", types.MemoryTypeFact, types.MemoryCategoryProject, 0.5, "session-1", false)
	gt.NoError(t, err).Required()

	gt.NoError(t, mgr.MarkDeleted(ctx, id)).Required()

	results, err := mgr.Search(ctx, "deploys on fridays", 10, 0, nil, nil)
	gt.NoError(t, err).Required()
	for _, r := range results {
		gt.Value(t, r.Memory.ID).NotEqual(id)
	}
}

func TestManagerIsAvailable(t *testing.T) {
	mgr := memory.New(local.New(), newFakeEmbedder())
	gt.Bool(t, mgr.IsAvailable(context.Background())).True()

	unavailable := memory.New(local.New(), nil)
	gt.Bool(t, unavailable.IsAvailable(context.Background())).False()
}
