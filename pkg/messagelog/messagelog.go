// Package messagelog owns the Message <-> stream row mapping for the
// "messages" log, the single channel through which front-end channels,
// the agent loop, and tools exchange conversational state. Context
// builder and agent loop share this package instead of each re-deriving
// the row shape, mirroring how pkg/memory owns the memory row mapping.
package messagelog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
)

const StreamName = "messages"

// ToRow serializes a Message for the batch write path. Content and
// ChannelMetadata are JSON-encoded into text columns, matching the
// documented "structured payload serialized as text" storage shape.
func ToRow(msg *model.Message) (interfaces.Row, error) {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode message content")
	}
	meta, err := json.Marshal(msg.ChannelMetadata)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode channel metadata")
	}

	return interfaces.Row{
		"id":               msg.ID,
		"timestamp":        msg.Timestamp,
		"source":           msg.Source,
		"target":           msg.Target,
		"session_id":       msg.SessionID,
		"message_type":     msg.MessageType.String(),
		"content":          string(content),
		"user_id":          msg.UserID,
		"channel_metadata": string(meta),
		"priority":         int(msg.Priority),
	}, nil
}

// FromRow decodes a stream row back into a Message.
func FromRow(row interfaces.Row) (*model.Message, error) {
	msgType, err := types.ParseMessageType(stringField(row, "message_type"))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid message_type in row")
	}

	return &model.Message{
		ID:              stringField(row, "id"),
		Timestamp:       timeField(row, "timestamp"),
		Source:          stringField(row, "source"),
		Target:          stringField(row, "target"),
		SessionID:       stringField(row, "session_id"),
		MessageType:     msgType,
		Content:         jsonObjectField(row, "content"),
		UserID:          stringField(row, "user_id"),
		ChannelMetadata: jsonObjectField(row, "channel_metadata"),
		Priority:        types.Priority(intField(row, "priority")),
	}, nil
}

// Insert appends one message row through the batch write path.
func Insert(ctx context.Context, client interfaces.Client, msg *model.Message) error {
	row, err := ToRow(msg)
	if err != nil {
		return err
	}
	return client.Insert(ctx, StreamName, []interfaces.Row{row})
}

// QuerySession returns every visible-to-LLM message for sessionID, ordered
// by timestamp ascending (ties broken by id), capped to the most recent
// limit entries. limit <= 0 means unbounded.
func QuerySession(ctx context.Context, client interfaces.Client, sessionID string, limit int) ([]*model.Message, error) {
	rows, err := client.Query(ctx, "SELECT * FROM table("+StreamName+")")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query message log")
	}

	var out []*model.Message
	for _, row := range rows {
		msg, err := FromRow(row)
		if err != nil {
			continue
		}
		if msg.SessionID != sessionID || !msg.MessageType.VisibleToLLM() {
			continue
		}
		out = append(out, msg)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func stringField(row interfaces.Row, key string) string {
	v, _ := row[key].(string)
	return v
}

func intField(row interfaces.Row, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func timeField(row interfaces.Row, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// jsonObjectField decodes a text column holding a JSON object. A value
// that already decoded to a map (e.g. in-process callers that pass native
// Go values directly) is returned unchanged.
func jsonObjectField(row interfaces.Row, key string) map[string]any {
	switch v := row[key].(type) {
	case map[string]any:
		return v
	case string:
		if v == "" {
			return nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	return nil
}
