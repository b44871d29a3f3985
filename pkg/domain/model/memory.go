package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// MemoryID is a UUID-based identifier for a Memory.
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID.
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory is one row in the memory log: a semantically-indexed fact,
// preference, conversation summary, or learned skill. Logical deletion is
// modeled by appending a new record with the same ID
// and IsDeleted set, never by removing the original row.
type Memory struct {
	ID               MemoryID             `json:"id"`
	Timestamp        time.Time            `json:"timestamp"`
	MemoryType       types.MemoryType     `json:"memory_type"`
	Category         types.MemoryCategory `json:"category"`
	Content          string               `json:"content"`
	SourceSessionID  string               `json:"source_session_id"`
	Embedding        []float32            `json:"embedding"`
	Importance       float64              `json:"importance"`
	IsDeleted        bool                 `json:"is_deleted"`
}

// Scored pairs a Memory with the hybrid score it was ranked by.
type Scored struct {
	Memory *Memory
	Score  float64
}
