// Package slack is a demo channel adapter: it receives direct messages
// over Slack's Socket Mode, writes them onto the message log as
// user_input rows, and renders whatever the agent broadcasts back to
// channel:slack as a reply in the originating Slack channel.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

const channelName = "slack"

// Adapter is the demo Slack channel, implementing both
// interfaces.ChannelWriter and interfaces.ChannelReader.
type Adapter struct {
	api    *slack.Client
	socket *socketmode.Client
	stream interfaces.Client

	allowedUsers map[string]bool
}

// New builds a Slack adapter. appToken must be a Socket-Mode ("xapp-")
// token; botToken is the standard bot ("xoxb-") token used to post
// replies. allowedUsers restricts which Slack user IDs may reach the
// agent; an empty set allows everyone.
func New(appToken, botToken string, allowedUsers []string) (*Adapter, error) {
	if appToken == "" || botToken == "" {
		return nil, goerr.New("slack channel requires both an app token and a bot token")
	}

	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	socket := socketmode.New(api)

	allowed := make(map[string]bool, len(allowedUsers))
	for _, u := range allowedUsers {
		allowed[u] = true
	}

	return &Adapter{api: api, socket: socket, allowedUsers: allowed}, nil
}

// Name implements interfaces.ChannelWriter and interfaces.ChannelReader.
func (a *Adapter) Name() string { return channelName }

// BindStream attaches the stream client the adapter reads/writes through.
// Kept separate from New so the adapter can be constructed before the
// stream client is available during bootstrap.
func (a *Adapter) BindStream(stream interfaces.Client) { a.stream = stream }

// Run drives the Socket Mode event loop until ctx is canceled, dispatching
// inbound direct messages to WriteUserInput and tailing the agent's
// outbound replies on channel:slack to Render.
func (a *Adapter) Run(ctx context.Context) error {
	go func() {
		for evt := range a.socket.Events {
			a.handleEvent(ctx, evt)
		}
	}()
	go a.tailReplies(ctx)
	return a.socket.RunContext(ctx)
}

func (a *Adapter) tailReplies(ctx context.Context) {
	iter, err := a.stream.Tail(ctx, "SELECT * FROM table("+messagelog.StreamName+") WHERE target = '"+model.TargetChannel(channelName)+"'", interfaces.SeekLatest())
	if err != nil {
		logging.From(ctx).Error("slack channel could not open reply tail", "error", err)
		return
	}
	defer iter.Close()

	for {
		row, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return
		}
		msg, err := messagelog.FromRow(row)
		if err != nil || msg.Target != model.TargetChannel(channelName) {
			continue
		}
		if err := a.Render(ctx, msg); err != nil {
			logging.From(ctx).Error("failed to render slack reply", "error", err)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	a.socket.Ack(*evt.Request)

	inner, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if inner.BotID != "" {
		return
	}
	if len(a.allowedUsers) > 0 && !a.allowedUsers[inner.User] {
		logging.From(ctx).Warn("rejecting message from unauthorized slack user", "user", inner.User)
		return
	}

	if err := a.WriteUserInput(ctx, inner.Channel, inner.User, inner.Text, map[string]any{
		"channel":      channelName,
		"slack_channel": inner.Channel,
		"thread_ts":    inner.ThreadTimeStamp,
	}); err != nil {
		logging.From(ctx).Error("failed to record slack message", "error", err)
	}
}

// WriteUserInput implements interfaces.ChannelWriter. sessionID is the
// Slack channel ID: one session per Slack channel, matching how a human
// would experience a running thread of conversation there.
func (a *Adapter) WriteUserInput(ctx context.Context, sessionID, userID, text string, metadata map[string]any) error {
	msg := &model.Message{
		ID:              model.NewMessageID(),
		Timestamp:       time.Now().UTC(),
		Source:          "channel:" + channelName,
		Target:          model.TargetAgent,
		SessionID:       sessionID,
		MessageType:     types.MessageTypeUserInput,
		Content:         map[string]any{"text": text},
		UserID:          userID,
		ChannelMetadata: metadata,
		Priority:        types.PriorityNormal,
	}
	return messagelog.Insert(ctx, a.stream, msg)
}

// Render implements interfaces.ChannelReader: it posts the agent's output
// back into the Slack channel the turn originated from.
func (a *Adapter) Render(ctx context.Context, msg *model.Message) error {
	slackChannel, _ := msg.ChannelMetadata["slack_channel"].(string)
	if slackChannel == "" {
		slackChannel = msg.SessionID
	}

	text := renderText(msg)
	if text == "" {
		return nil
	}

	_, _, err := a.api.PostMessageContext(ctx, slackChannel, slack.MsgOptionText(text, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("channel", slackChannel))
	}
	return nil
}

func renderText(msg *model.Message) string {
	switch msg.MessageType {
	case types.MessageTypeAgentResponse:
		if v, ok := msg.Content["text"].(string); ok {
			return v
		}
	case types.MessageTypeToolCall:
		name, _ := msg.Content["tool_name"].(string)
		summary, _ := msg.Content["arguments_summary"].(string)
		return fmt.Sprintf("_using %s(%s)_", name, summary)
	case types.MessageTypeError:
		if v, ok := msg.Content["text"].(string); ok {
			return ":warning: " + v
		}
	}
	return ""
}
