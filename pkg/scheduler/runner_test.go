package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/config"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/scheduler"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

func TestRunnerFiresHeartbeatOnInterval(t *testing.T) {
	stream := local.New()
	obs := observability.New(stream)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	tasks := map[string]config.ScheduledTaskConfig{
		"heartbeat": {Enabled: true, Interval: "20ms"},
	}
	r := scheduler.New(stream, obs, tasks)

	_ = r.Run(ctx)

	rows := stream.All("messages")
	gt.True(t, len(rows) >= 2)
	gt.Value(t, rows[0]["message_type"]).Equal("heartbeat")
	gt.Value(t, rows[0]["target"]).Equal("agent")
}

func TestRunnerCostAlertRaisesEvent(t *testing.T) {
	stream := local.New()
	obs := observability.New(stream)
	ctx := context.Background()

	gt.NoError(t, stream.Insert(ctx, "llm_logs", []interfaces.Row{
		{"timestamp": time.Now().UTC(), "estimated_cost_usd": 10.0},
	})).Required()

	tasks := map[string]config.ScheduledTaskConfig{
		"cost_alert": {Enabled: true, Interval: "10ms", Payload: map[string]any{"hourly_threshold_usd": 1.0}},
	}
	r := scheduler.New(stream, obs, tasks)

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	_ = r.Run(runCtx)

	events := stream.All("events")
	gt.True(t, len(events) >= 1)
	gt.Value(t, events[0]["event_type"]).Equal("cost_alert")
}
