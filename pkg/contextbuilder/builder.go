// Package contextbuilder reads recent conversation from the message log,
// fetches semantically relevant memories, and assembles the system
// prompt, message list, and tool catalog the agent loop hands to an LLM
// provider for one turn.
package contextbuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/skill/agentskills"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// defaultMessageLimit bounds how many prior messages are pulled into
// context when a caller does not specify one.
const defaultMessageLimit = 20

// ToolCatalog is the subset of skill.Registry the context builder needs:
// the tool definitions to advertise to the LLM and the discovered
// instruction-skill index to summarize in the system prompt.
type ToolCatalog interface {
	Tools() []interfaces.ToolDefinition
	ExternalSkills() map[string]agentskills.Metadata
}

// Builder assembles per-turn context. It owns no state beyond its
// collaborators and may be shared across concurrent turns.
type Builder struct {
	stream       interfaces.Client
	memory       interfaces.MemoryManager
	tools        ToolCatalog
	agentName    string
	instructions string
}

// New builds a Builder. memory may be nil when the memory feature is
// disabled; tools may be nil for a registry-less deployment (tests).
func New(stream interfaces.Client, memory interfaces.MemoryManager, tools ToolCatalog, agentName, instructions string) *Builder {
	return &Builder{
		stream:       stream,
		memory:       memory,
		tools:        tools,
		agentName:    agentName,
		instructions: instructions,
	}
}

// Request describes one turn's context-building inputs.
type Request struct {
	SessionID     string
	UserMessage   string
	UserID        string
	ChannelName   string
	IncludeMemory bool
	MemoryLimit   int
	MessageLimit  int
}

// Built is the ready-to-send payload for an LLMProvider.Chat call.
type Built struct {
	SystemPrompt string
	Messages     []interfaces.ChatMessage
	Tools        []interfaces.ToolDefinition
}

// Build assembles context for one turn per spec §4.7.
func (b *Builder) Build(ctx context.Context, req Request) (*Built, error) {
	limit := req.MessageLimit
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	history, err := messagelog.QuerySession(ctx, b.stream, req.SessionID, limit)
	if err != nil {
		return nil, err
	}

	var memoryBullets string
	if req.IncludeMemory && req.UserMessage != "" && b.memory != nil {
		memoryBullets = b.formatMemories(ctx, req.UserMessage, req.MemoryLimit)
	}

	return &Built{
		SystemPrompt: b.systemPrompt(req, memoryBullets),
		Messages:     toChatMessages(history),
		Tools:        b.toolDefinitions(),
	}, nil
}

func (b *Builder) toolDefinitions() []interfaces.ToolDefinition {
	if b.tools == nil {
		return nil
	}
	return b.tools.Tools()
}

// formatMemories searches the memory manager and renders hits as a bullet
// list grouped by memory type. Search failures degrade to an empty
// section rather than failing context assembly (MemoryUnavailable, §7).
func (b *Builder) formatMemories(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	hits, err := b.memory.Search(ctx, query, limit, 0, nil, nil)
	if err != nil {
		logging.From(ctx).Warn("memory search unavailable, skipping retrieval", "error", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	byType := map[types.MemoryType][]*model.Memory{}
	var order []types.MemoryType
	for _, h := range hits {
		if _, seen := byType[h.Memory.MemoryType]; !seen {
			order = append(order, h.Memory.MemoryType)
		}
		byType[h.Memory.MemoryType] = append(byType[h.Memory.MemoryType], h.Memory)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var sb strings.Builder
	for _, t := range order {
		sb.WriteString(fmt.Sprintf("%s:\n", t))
		for _, m := range byType[t] {
			sb.WriteString("- " + m.Content + "\n")
		}
	}
	return sb.String()
}

func (b *Builder) systemPrompt(req Request, memoryBullets string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a helpful AI agent.\n", b.agentName)
	fmt.Fprintf(&sb, "Current time (UTC): %s\n", time.Now().UTC().Format(time.RFC3339))
	if req.UserID != "" {
		fmt.Fprintf(&sb, "User: %s\n", req.UserID)
	}
	fmt.Fprintf(&sb, "Session: %s\n", req.SessionID)
	if req.ChannelName != "" {
		fmt.Fprintf(&sb, "Channel: %s\n", req.ChannelName)
	}

	if defs := b.toolDefinitions(); len(defs) > 0 {
		sb.WriteString("\nAvailable tools:\n")
		names := make([]string, len(defs))
		byName := map[string]interfaces.ToolDefinition{}
		for i, d := range defs {
			names[i] = d.Name
			byName[d.Name] = d
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&sb, "- %s: %s\n", n, byName[n].Description)
		}
	}

	if b.tools != nil {
		if skills := b.tools.ExternalSkills(); len(skills) > 0 {
			sb.WriteString("\nAvailable skill packages (use load_skill to read full instructions):\n")
			names := make([]string, 0, len(skills))
			for n := range skills {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(&sb, "- %s: %s\n", n, skills[n].Description)
			}
		}
	}

	if memoryBullets != "" {
		sb.WriteString("\nRelevant memories:\n")
		sb.WriteString(memoryBullets)
	}

	if b.instructions != "" {
		sb.WriteString("\n" + b.instructions + "\n")
	}

	return sb.String()
}

// toChatMessages converts visible message-log rows into the conversation
// history handed to the LLM provider. Historical tool_call/tool_result
// broadcasts are folded into assistant/tool text summaries rather than
// replayed as provider-specific tool-call blocks: each provider's wire
// format for tool use is opaque and tool-call identifiers are not stable
// across turns once the reason/act cycle that produced them has ended.
func toChatMessages(messages []*model.Message) []interfaces.ChatMessage {
	out := make([]interfaces.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.MessageType {
		case types.MessageTypeUserInput:
			out = append(out, interfaces.ChatMessage{Role: interfaces.RoleUser, Content: textOf(m.Content)})
		case types.MessageTypeAgentResponse:
			out = append(out, interfaces.ChatMessage{Role: interfaces.RoleAssistant, Content: textOf(m.Content)})
		case types.MessageTypeToolCall:
			out = append(out, interfaces.ChatMessage{Role: interfaces.RoleAssistant, Content: "[called tool " + toolNameOf(m.Content) + "]"})
		case types.MessageTypeToolResult:
			out = append(out, interfaces.ChatMessage{Role: interfaces.RoleTool, Content: textOf(m.Content), Name: toolNameOf(m.Content)})
		}
	}
	return out
}

func textOf(content map[string]any) string {
	if v, ok := content["text"].(string); ok {
		return v
	}
	return ""
}

func toolNameOf(content map[string]any) string {
	if v, ok := content["tool_name"].(string); ok {
		return v
	}
	return ""
}
