package interfaces

import "context"

// ChatRole is the role of one entry in a conversation sent to an LLM.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
)

// ChatMessage is one entry in the conversation sent to an LLM provider.
type ChatMessage struct {
	Role       ChatRole
	Content    string
	ToolCallID string // set on RoleTool messages, matches a prior ToolCall.ID
	Name       string // tool name, set on RoleTool messages
}

// ToolParameter describes one JSON-schema-shaped parameter of a tool
// definition exposed to the LLM.
type ToolParameter struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
	Items       *ToolParameter
}

// ToolDefinition is the catalog entry an LLM provider receives for a single
// callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]*ToolParameter
}

// ToolCall is one tool invocation requested by the model in a chat response.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage reports token accounting for one chat call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns InputTokens + OutputTokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// ChatResponse is the uniform result of an LLMProvider.Chat call.
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      Usage
	StopReason string
}

// ChatRequest bundles everything an LLMProvider.Chat call needs.
type ChatRequest struct {
	Messages    []ChatMessage
	System      string
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// LLMProvider is the uniform chat-completion contract implemented by every
// concrete model backend (Anthropic, OpenAI, Gemini, local/OpenAI-compatible).
type LLMProvider interface {
	ProviderName() string
	Model() string

	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// EstimateCost returns the estimated USD cost of a call with the given
	// token counts, using a static per-model price table.
	EstimateCost(inputTokens, outputTokens int) float64
}
