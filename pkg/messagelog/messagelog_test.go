package messagelog_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

func TestInsertAndQuerySession(t *testing.T) {
	ctx := context.Background()
	client := local.New()

	msgs := []*model.Message{
		{
			ID: "m1", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
			SessionID: "s1", MessageType: types.MessageTypeUserInput,
			Content: map[string]any{"text": "hello"},
		},
		{
			ID: "m2", Timestamp: time.Now().UTC().Add(time.Second), Source: "agent", Target: model.TargetBroadcast,
			SessionID: "s1", MessageType: types.MessageTypeAgentResponse,
			Content: map[string]any{"text": "hi there"},
		},
		{
			ID: "m3", Timestamp: time.Now().UTC().Add(2 * time.Second), Source: "agent", Target: model.TargetBroadcast,
			SessionID: "s1", MessageType: types.MessageTypeHeartbeat,
			Content: map[string]any{"text": "not visible"},
		},
		{
			ID: "m4", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
			SessionID: "other-session", MessageType: types.MessageTypeUserInput,
			Content: map[string]any{"text": "different session"},
		},
	}
	for _, m := range msgs {
		gt.NoError(t, messagelog.Insert(ctx, client, m)).Required()
	}

	out, err := messagelog.QuerySession(ctx, client, "s1", 0)
	gt.NoError(t, err).Required()
	gt.Array(t, out).Length(2)
	gt.Value(t, out[0].ID).Equal("m1")
	gt.Value(t, out[1].ID).Equal("m2")
}

func TestQuerySessionLimitKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	client := local.New()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		m := &model.Message{
			ID:          "m" + string(rune('0'+i)),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Source:      "cli",
			Target:      model.TargetAgent,
			SessionID:   "s1",
			MessageType: types.MessageTypeUserInput,
			Content:     map[string]any{"text": "msg"},
		}
		gt.NoError(t, messagelog.Insert(ctx, client, m)).Required()
	}

	out, err := messagelog.QuerySession(ctx, client, "s1", 2)
	gt.NoError(t, err).Required()
	gt.Array(t, out).Length(2)
	gt.Value(t, out[0].ID).Equal("m3")
	gt.Value(t, out[1].ID).Equal("m4")
}

func TestToRowFromRowRoundTrip(t *testing.T) {
	msg := &model.Message{
		ID: "m1", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
		SessionID: "s1", MessageType: types.MessageTypeUserInput,
		Content:         map[string]any{"text": "hello"},
		UserID:          "u1",
		ChannelMetadata: map[string]any{"channel": "cli"},
		Priority:        types.PriorityElevated,
	}

	row, err := messagelog.ToRow(msg)
	gt.NoError(t, err).Required()

	decoded, err := messagelog.FromRow(row)
	gt.NoError(t, err).Required()
	gt.Value(t, decoded.ID).Equal(msg.ID)
	gt.Value(t, decoded.SessionID).Equal(msg.SessionID)
	gt.Value(t, decoded.MessageType).Equal(msg.MessageType)
	gt.Value(t, decoded.Content["text"]).Equal("hello")
	gt.Value(t, decoded.ChannelMetadata["channel"]).Equal("cli")
	gt.Value(t, decoded.Priority).Equal(types.PriorityElevated)
}
