package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// Event is one row in the event log: a structured, freeform health or
// diagnostic record that does not belong in the conversational message log.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Severity  types.Severity  `json:"severity"`
	Payload   map[string]any  `json:"payload"`
	Tags      []string        `json:"tags"`
}

// NewEventID returns a fresh random event identifier.
func NewEventID() string {
	return uuid.NewString()
}
