package interfaces

import (
	"context"

	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// MemoryManager stores and retrieves vector-indexed memories on top of the
// append-only memory log.
type MemoryManager interface {
	// Store computes the embedding for content and appends a memory row.
	// When checkDuplicates is true, a prior non-deleted record whose pure
	// cosine similarity to content meets the configured threshold short-
	// circuits the write and its id is returned unchanged.
	Store(ctx context.Context, content string, memoryType types.MemoryType, category types.MemoryCategory, importance float64, sourceSessionID string, checkDuplicates bool) (model.MemoryID, error)

	// Search ranks non-deleted memories by hybrid score and returns up to
	// limit results.
	Search(ctx context.Context, query string, limit int, minImportance float64, memoryTypes []types.MemoryType, categories []types.MemoryCategory) ([]model.Scored, error)

	GetBySession(ctx context.Context, sessionID string, limit int) ([]*model.Memory, error)
	GetRecent(ctx context.Context, limit int, memoryTypes []types.MemoryType) ([]*model.Memory, error)

	// MarkDeleted appends a matching record with IsDeleted set.
	MarkDeleted(ctx context.Context, id model.MemoryID) error

	// IsAvailable reports whether an embedding provider is configured and
	// reachable.
	IsAvailable(ctx context.Context) bool
}
