package types

import "fmt"

// Priority ranks a message for consumers that want to triage the input log.
type Priority int

const (
	PriorityLow      Priority = -1
	PriorityNormal   Priority = 0
	PriorityElevated Priority = 1
	PriorityUrgent   Priority = 2
)

// IsValid reports whether p is one of the declared priority levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityElevated, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ParsePriority parses an integer into a Priority.
func ParsePriority(v int) (Priority, error) {
	p := Priority(v)
	if !p.IsValid() {
		return 0, fmt.Errorf("invalid priority: %d", v)
	}
	return p, nil
}
