package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

// Message is one row in the message log, the only channel through which
// channels, the agent loop, and tools exchange conversational state.
type Message struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Source          string            `json:"source"`
	Target          string            `json:"target"`
	SessionID       string            `json:"session_id"`
	MessageType     types.MessageType `json:"message_type"`
	Content         map[string]any    `json:"content"`
	UserID          string            `json:"user_id"`
	ChannelMetadata map[string]any    `json:"channel_metadata"`
	Priority        types.Priority    `json:"priority"`
}

// NewMessageID returns a fresh random message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// TargetAgent is the well-known target tag that routes a message to the
// agent loop rather than to a specific channel.
const TargetAgent = "agent"

// TargetBroadcast routes a message to every subscribed channel.
const TargetBroadcast = "broadcast"

// TargetChannel builds the target tag for a named channel, e.g. "channel:cli".
func TargetChannel(name string) string {
	return "channel:" + name
}
