// Package scheduler runs the scheduled producers that feed the agent
// loop without a human in front of a channel: a periodic heartbeat, a
// cron-driven daily summary request, and an hourly cost-alert check.
// Each producer writes a row onto the message or event log; it never
// calls an LLM provider directly.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timeplus-io/pulsebot/pkg/config"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

const schedulerSessionPrefix = "scheduled:"

// Runner owns the lifetime of every configured scheduled producer.
type Runner struct {
	stream interfaces.Client
	obs    *observability.Writer
	tasks  map[string]config.ScheduledTaskConfig
	cron   *cron.Cron
}

// New builds a Runner from the scheduled_tasks section of the config.
func New(stream interfaces.Client, obs *observability.Writer, tasks map[string]config.ScheduledTaskConfig) *Runner {
	return &Runner{
		stream: stream,
		obs:    obs,
		tasks:  tasks,
		cron:   cron.New(),
	}
}

// Run starts every enabled producer and blocks until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	var tickers []*time.Ticker

	for name, task := range r.tasks {
		if !task.Enabled {
			continue
		}
		switch {
		case task.Cron != "":
			if err := r.scheduleCron(ctx, name, task); err != nil {
				return err
			}
		case task.Interval != "":
			ticker, err := r.scheduleInterval(ctx, name, task)
			if err != nil {
				return err
			}
			tickers = append(tickers, ticker)
		default:
			logging.From(ctx).Warn("scheduled task has neither interval nor cron, skipping", "task", name)
		}
	}

	r.cron.Start()
	defer r.cron.Stop()

	<-ctx.Done()
	for _, t := range tickers {
		t.Stop()
	}
	return nil
}

func (r *Runner) scheduleCron(ctx context.Context, name string, task config.ScheduledTaskConfig) error {
	_, err := r.cron.AddFunc(task.Cron, func() {
		r.fire(ctx, name, task)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression for scheduled task %q: %w", name, err)
	}
	return nil
}

func (r *Runner) scheduleInterval(ctx context.Context, name string, task config.ScheduledTaskConfig) (*time.Ticker, error) {
	d, err := time.ParseDuration(task.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval for scheduled task %q: %w", name, err)
	}

	ticker := time.NewTicker(d)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.fire(ctx, name, task)
			}
		}
	}()
	return ticker, nil
}

// fire dispatches a named scheduled task to its handler. cost_alert is
// handled inline (it inspects the LLM log itself and never reaches the
// agent loop); every other task is delivered to the agent loop as a
// scheduled_task message.
func (r *Runner) fire(ctx context.Context, name string, task config.ScheduledTaskConfig) {
	if name == "cost_alert" {
		r.checkCostAlert(ctx, task)
		return
	}

	msg := &model.Message{
		ID:          model.NewMessageID(),
		Timestamp:   time.Now().UTC(),
		Source:      "scheduler",
		Target:      model.TargetAgent,
		SessionID:   schedulerSessionPrefix + name,
		MessageType: scheduledMessageType(name),
		Content: map[string]any{
			"task":    name,
			"payload": task.Payload,
		},
		Priority: taskPriority(name),
	}

	if err := messagelog.Insert(ctx, r.stream, msg); err != nil {
		logging.From(ctx).Error("failed to enqueue scheduled task", "error", err, "task", name)
	}
}

func scheduledMessageType(name string) types.MessageType {
	if name == "heartbeat" {
		return types.MessageTypeHeartbeat
	}
	return types.MessageTypeScheduledTask
}

// taskPriority returns the message priority a named scheduled task's
// enqueued message carries. daily_summary runs elevated per spec §4.9;
// every other scheduled task is low priority.
func taskPriority(name string) types.Priority {
	if name == "daily_summary" {
		return types.PriorityElevated
	}
	return types.PriorityLow
}

// checkCostAlert sums estimated_cost_usd from the LLM log over the last
// hour and raises a warning event when it clears the configured
// threshold. It never calls the agent loop: cost alerting is purely
// observational.
func (r *Runner) checkCostAlert(ctx context.Context, task config.ScheduledTaskConfig) {
	threshold := 5.0
	if v, ok := task.Payload["hourly_threshold_usd"].(float64); ok {
		threshold = v
	}

	rows, err := r.stream.Query(ctx, "SELECT * FROM table(llm_logs)")
	if err != nil {
		logging.From(ctx).Warn("cost alert could not query llm log", "error", err)
		return
	}

	since := time.Now().UTC().Add(-time.Hour)
	var total float64
	for _, row := range rows {
		ts, _ := row["timestamp"].(time.Time)
		if ts.Before(since) {
			continue
		}
		switch v := row["estimated_cost_usd"].(type) {
		case float64:
			total += v
		case float32:
			total += float64(v)
		}
	}

	if total < threshold {
		return
	}

	r.obs.WriteEvent(ctx, "cost_alert", "scheduler", types.SeverityWarning, map[string]any{
		"hourly_cost_usd": total,
		"threshold_usd":   threshold,
	}, []string{"scheduler", "cost"})
}
