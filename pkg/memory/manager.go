// Package memory implements the Memory Manager: vector-indexed,
// deduplicated, soft-deleted facts stored on the append-only "memory"
// stream and ranked by a hybrid cosine/importance score.
package memory

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

const defaultSimilarityThreshold = 0.95

// Manager implements interfaces.MemoryManager against a stream client and
// an embedding provider. It owns its own query connections and never
// shares them with the agent loop's tail subscriptions.
type Manager struct {
	stream              interfaces.Client
	embeddings          interfaces.EmbeddingProvider
	similarityThreshold float64
}

var _ interfaces.MemoryManager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithSimilarityThreshold overrides the default duplicate-detection
// threshold of 0.95.
func WithSimilarityThreshold(threshold float64) Option {
	return func(m *Manager) { m.similarityThreshold = threshold }
}

// New builds a Manager. embeddings may be nil, in which case IsAvailable
// reports false and Store/Search return MemoryUnavailable errors.
func New(stream interfaces.Client, embeddings interfaces.EmbeddingProvider, opts ...Option) *Manager {
	m := &Manager{
		stream:              stream,
		embeddings:          embeddings,
		similarityThreshold: defaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ErrMemoryUnavailable is returned by Store and Search when no embedding
// provider is configured. Embedding failures from a configured provider
// are returned as their own wrapped errors.
var ErrMemoryUnavailable = goerr.New("memory manager unavailable")

func (m *Manager) IsAvailable(ctx context.Context) bool {
	if m.embeddings == nil {
		return false
	}
	if _, err := m.embeddings.Dimensions(ctx); err != nil {
		return false
	}
	return true
}

func (m *Manager) Store(ctx context.Context, content string, memoryType types.MemoryType, category types.MemoryCategory, importance float64, sourceSessionID string, checkDuplicates bool) (model.MemoryID, error) {
	if m.embeddings == nil {
		return "", goerr.Wrap(ErrMemoryUnavailable, "no embedding provider configured")
	}

	embedding, err := m.embeddings.Embed(ctx, content)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed memory content")
	}

	if checkDuplicates {
		if dup, err := m.findDuplicate(ctx, embedding); err != nil {
			logging.From(ctx).Warn("memory duplicate check failed", "error", err)
		} else if dup != "" {
			return dup, nil
		}
	}

	mem := &model.Memory{
		ID:              model.NewMemoryID(),
		Timestamp:       nowFunc(),
		MemoryType:      memoryType,
		Category:        category,
		Content:         content,
		SourceSessionID: sourceSessionID,
		Embedding:       embedding,
		Importance:      importance,
		IsDeleted:       false,
	}

	if err := m.insert(ctx, mem); err != nil {
		return "", err
	}
	return model.MemoryID(mem.ID), nil
}

// findDuplicate runs a pure-cosine search across every stored memory and
// returns the ID of the first record at or above the similarity
// threshold. Records in [0.8*threshold, threshold) are logged but not
// treated as duplicates, so a human can see near-misses without merging.
func (m *Manager) findDuplicate(ctx context.Context, embedding []float32) (model.MemoryID, error) {
	all, err := m.loadAll(ctx)
	if err != nil {
		return "", err
	}

	nearThreshold := 0.8 * m.similarityThreshold
	for _, mem := range latestBySoftDelete(all) {
		if mem.IsDeleted || len(mem.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(embedding, mem.Embedding)
		switch {
		case sim >= m.similarityThreshold:
			return model.MemoryID(mem.ID), nil
		case sim >= nearThreshold:
			logging.From(ctx).Info("memory near-duplicate below threshold", "similarity", sim, "memory_id", mem.ID)
		}
	}
	return "", nil
}

func (m *Manager) Search(ctx context.Context, query string, limit int, minImportance float64, memoryTypes []types.MemoryType, categories []types.MemoryCategory) ([]model.Scored, error) {
	if m.embeddings == nil {
		return nil, goerr.Wrap(ErrMemoryUnavailable, "no embedding provider configured")
	}

	queryVector, err := m.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}

	all, err := m.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	typeSet := toMemoryTypeSet(memoryTypes)
	categorySet := toMemoryCategorySet(categories)

	var scored []model.Scored
	for _, mem := range latestBySoftDelete(all) {
		if mem.IsDeleted || mem.Importance < minImportance {
			continue
		}
		if len(typeSet) > 0 && !typeSet[mem.MemoryType] {
			continue
		}
		if len(categorySet) > 0 && !categorySet[mem.Category] {
			continue
		}
		if len(mem.Embedding) == 0 {
			continue
		}
		score := (1 - cosineDistance(queryVector, mem.Embedding)) * mem.Importance
		scored = append(scored, model.Scored{Memory: mem, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Memory.Timestamp.Equal(scored[j].Memory.Timestamp) {
			return scored[i].Memory.Timestamp.After(scored[j].Memory.Timestamp)
		}
		return scored[i].Memory.ID < scored[j].Memory.ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *Manager) GetBySession(ctx context.Context, sessionID string, limit int) ([]*model.Memory, error) {
	all, err := m.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []*model.Memory
	for _, mem := range latestBySoftDelete(all) {
		if mem.IsDeleted || mem.SourceSessionID != sessionID {
			continue
		}
		out = append(out, mem)
	}
	sortMemoriesByTimestampDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Manager) GetRecent(ctx context.Context, limit int, memoryTypes []types.MemoryType) ([]*model.Memory, error) {
	all, err := m.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	typeSet := toMemoryTypeSet(memoryTypes)
	var out []*model.Memory
	for _, mem := range latestBySoftDelete(all) {
		if mem.IsDeleted {
			continue
		}
		if len(typeSet) > 0 && !typeSet[mem.MemoryType] {
			continue
		}
		out = append(out, mem)
	}
	sortMemoriesByTimestampDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Manager) MarkDeleted(ctx context.Context, id model.MemoryID) error {
	all, err := m.loadAll(ctx)
	if err != nil {
		return err
	}

	var original *model.Memory
	for _, mem := range all {
		if mem.ID == id {
			original = mem
		}
	}
	if original == nil {
		return goerr.New("memory not found", goerr.V("memory_id", id))
	}

	deleted := *original
	deleted.Timestamp = nowFunc()
	deleted.IsDeleted = true
	return m.insert(ctx, &deleted)
}

func (m *Manager) loadAll(ctx context.Context) ([]*model.Memory, error) {
	rows, err := m.stream.Query(ctx, "SELECT * FROM table(memory)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory stream")
	}

	var out []*model.Memory
	for _, row := range rows {
		mem, err := memoryFromRow(row)
		if err != nil {
			logging.From(ctx).Warn("skipping malformed memory row", "error", err)
			continue
		}
		out = append(out, mem)
	}
	return out, nil
}

func (m *Manager) insert(ctx context.Context, mem *model.Memory) error {
	embedding := make([]any, len(mem.Embedding))
	for i, v := range mem.Embedding {
		embedding[i] = v
	}
	return m.stream.Insert(ctx, "memory", []interfaces.Row{{
		"id":                string(mem.ID),
		"timestamp":         mem.Timestamp,
		"memory_type":       mem.MemoryType.String(),
		"category":          mem.Category.String(),
		"content":           mem.Content,
		"source_session_id": mem.SourceSessionID,
		"embedding":         embedding,
		"importance":        mem.Importance,
		"is_deleted":        mem.IsDeleted,
	}})
}

func memoryFromRow(row interfaces.Row) (*model.Memory, error) {
	memType, err := types.ParseMemoryType(stringField(row, "memory_type"))
	if err != nil {
		return nil, err
	}
	category, err := types.ParseMemoryCategory(stringField(row, "category"))
	if err != nil {
		return nil, err
	}

	return &model.Memory{
		ID:              model.MemoryID(stringField(row, "id")),
		Timestamp:       timeField(row, "timestamp"),
		MemoryType:      memType,
		Category:        category,
		Content:         stringField(row, "content"),
		SourceSessionID: stringField(row, "source_session_id"),
		Embedding:       float32SliceField(row, "embedding"),
		Importance:      float64Field(row, "importance"),
		IsDeleted:       boolField(row, "is_deleted"),
	}, nil
}

// latestBySoftDelete collapses the append-only log to one record per ID,
// keeping the most recently written version (soft-deletes and any future
// update-in-place append both resolve this way).
func latestBySoftDelete(all []*model.Memory) []*model.Memory {
	byID := make(map[model.MemoryID]*model.Memory, len(all))
	for _, mem := range all {
		existing, ok := byID[mem.ID]
		if !ok || mem.Timestamp.After(existing.Timestamp) {
			byID[mem.ID] = mem
		}
	}
	out := make([]*model.Memory, 0, len(byID))
	for _, mem := range byID {
		out = append(out, mem)
	}
	return out
}

func sortMemoriesByTimestampDesc(memories []*model.Memory) {
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].Timestamp.After(memories[j].Timestamp)
	})
}

func toMemoryTypeSet(types_ []types.MemoryType) map[types.MemoryType]bool {
	if len(types_) == 0 {
		return nil
	}
	set := make(map[types.MemoryType]bool, len(types_))
	for _, t := range types_ {
		set[t] = true
	}
	return set
}

func toMemoryCategorySet(categories []types.MemoryCategory) map[types.MemoryCategory]bool {
	if len(categories) == 0 {
		return nil
	}
	set := make(map[types.MemoryCategory]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}

func stringField(row interfaces.Row, key string) string {
	v, _ := row[key].(string)
	return v
}

func boolField(row interfaces.Row, key string) bool {
	v, _ := row[key].(bool)
	return v
}

func float64Field(row interfaces.Row, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	default:
		return 0
	}
}

func float32SliceField(row interfaces.Row, key string) []float32 {
	switch v := row[key].(type) {
	case []float32:
		return v
	case []any:
		out := make([]float32, len(v))
		for i, e := range v {
			switch n := e.(type) {
			case float32:
				out[i] = n
			case float64:
				out[i] = float32(n)
			}
		}
		return out
	case json.RawMessage:
		var raw []float32
		if err := json.Unmarshal(v, &raw); err == nil {
			return raw
		}
	}
	return nil
}
