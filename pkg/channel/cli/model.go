// Package cli implements the interactive chat channel: a terminal UI
// built on bubbletea that writes user_input rows and renders whatever
// the agent broadcasts back to channel:cli.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
)

const channelName = "cli"

// line is one rendered row in the transcript.
type line struct {
	speaker string
	text    string
}

// agentEventMsg wraps a tailed message for delivery through the
// bubbletea message loop.
type agentEventMsg struct {
	msg *model.Message
}

// tailErrMsg reports a broken tail subscription.
type tailErrMsg struct{ err error }

// Model is the bubbletea model for the interactive chat session.
type Model struct {
	stream    interfaces.Client
	sessionID string
	userID    string
	agentName string

	input    textinput.Model
	lines    []line
	thinking bool
	events   <-chan tea.Msg
	quitting bool
}

var (
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	agentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	toolStyle  = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

// New builds a chat Model over stream. sessionID is generated fresh per
// process; userID identifies the local operator for memory/channel
// metadata.
func New(stream interfaces.Client, userID, agentName string) Model {
	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Focus()
	input.CharLimit = 2000

	return Model{
		stream:    stream,
		sessionID: uuid.NewString(),
		userID:    userID,
		agentName: agentName,
		input:     input,
		lines: []line{
			{speaker: "", text: fmt.Sprintf("Connected to %s. Type a message and press enter.", agentName)},
		},
	}
}

// Init starts the tail subscription that feeds agentEventMsg values back
// through the bubbletea update loop.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 16)
		go m.tailChannel(events)
		msg, ok := <-events
		if !ok {
			return tailErrMsg{err: fmt.Errorf("channel tail closed immediately")}
		}
		return pump{events: events, first: msg}
	}
}

// pump threads the tail's output channel through bubbletea's pull-based
// Cmd model: each Update schedules the next receive as a new Cmd.
type pump struct {
	events <-chan tea.Msg
	first  tea.Msg
}

func (m Model) tailChannel(events chan<- tea.Msg) {
	ctx := context.Background()
	iter, err := m.stream.Tail(ctx, "SELECT * FROM table("+messagelog.StreamName+") WHERE target = '"+model.TargetChannel(channelName)+"'", interfaces.SeekLatest())
	if err != nil {
		events <- tailErrMsg{err: err}
		close(events)
		return
	}
	defer iter.Close()

	for {
		row, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			close(events)
			return
		}
		msg, err := messagelog.FromRow(row)
		if err != nil {
			continue
		}
		if msg.SessionID != m.sessionID || msg.Target != model.TargetChannel(channelName) {
			continue
		}
		events <- agentEventMsg{msg: msg}
	}
}

func waitForNext(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return tailErrMsg{err: fmt.Errorf("channel tail closed")}
		}
		return msg
	}
}

// Update implements tea.Model.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case pump:
		m.events = msg.events
		var cmd tea.Cmd
		updated, cmd2 := m.Update(msg.first)
		m = updated.(Model)
		cmd = tea.Batch(cmd, cmd2, waitForNext(m.events))
		return m, cmd

	case agentEventMsg:
		m.thinking = false
		m.lines = append(m.lines, renderLine(msg.msg))
		return m, waitForNext(m.events)

	case tailErrMsg:
		m.lines = append(m.lines, line{speaker: "error", text: msg.err.Error()})
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.lines = append(m.lines, line{speaker: "you", text: text})
			m.input.SetValue("")
			m.thinking = true
			return m, m.sendUserInput(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(message)
	return m, cmd
}

// sendUserInput appends a user_input row targeted at the agent, carrying
// this session's channel metadata so the agent's reply routes back here.
func (m Model) sendUserInput(text string) tea.Cmd {
	return func() tea.Msg {
		msg := &model.Message{
			ID:          model.NewMessageID(),
			Timestamp:   time.Now().UTC(),
			Source:      "channel:" + channelName,
			Target:      model.TargetAgent,
			SessionID:   m.sessionID,
			MessageType: types.MessageTypeUserInput,
			Content:     map[string]any{"text": text},
			UserID:      m.userID,
			ChannelMetadata: map[string]any{
				"channel": channelName,
			},
			Priority: types.PriorityNormal,
		}
		if err := messagelog.Insert(context.Background(), m.stream, msg); err != nil {
			return tailErrMsg{err: err}
		}
		return nil
	}
}

func renderLine(msg *model.Message) line {
	switch msg.MessageType {
	case types.MessageTypeAgentResponse:
		return line{speaker: "agent", text: textField(msg.Content)}
	case types.MessageTypeToolCall:
		name, _ := msg.Content["tool_name"].(string)
		summary, _ := msg.Content["arguments_summary"].(string)
		return line{speaker: "tool", text: fmt.Sprintf("%s(%s)", name, summary)}
	case types.MessageTypeError:
		return line{speaker: "error", text: textField(msg.Content)}
	default:
		return line{speaker: "", text: textField(msg.Content)}
	}
}

func textField(content map[string]any) string {
	if v, ok := content["text"].(string); ok {
		return v
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	for _, l := range m.lines {
		switch l.speaker {
		case "you":
			sb.WriteString(userStyle.Render("you> ") + l.text + "\n")
		case "agent":
			sb.WriteString(agentStyle.Render(m.agentName+"> ") + l.text + "\n")
		case "tool":
			sb.WriteString(toolStyle.Render("  -> "+l.text) + "\n")
		case "error":
			sb.WriteString(errStyle.Render("error> "+l.text) + "\n")
		default:
			sb.WriteString(hintStyle.Render(l.text) + "\n")
		}
	}
	if m.thinking {
		sb.WriteString(hintStyle.Render(m.agentName+" is thinking...") + "\n")
	}
	sb.WriteString("\n" + m.input.View())
	return sb.String()
}
