package interfaces

import (
	"context"

	"github.com/timeplus-io/pulsebot/pkg/domain/model"
)

// ChannelWriter appends a user_input row to the message log on behalf of an
// external front-end (bot API, terminal UI, WebSocket façade).
type ChannelWriter interface {
	Name() string
	WriteUserInput(ctx context.Context, sessionID, userID, text string, metadata map[string]any) error
}

// ChannelReader tails target='channel:<name>' and renders agent_response,
// tool_call, and error rows for the end user.
type ChannelReader interface {
	Name() string
	Render(ctx context.Context, msg *model.Message) error
}
