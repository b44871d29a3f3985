package interfaces

import "context"

// ToolResult is the uniform return value of a tool execution.
type ToolResult struct {
	Success bool
	Output  map[string]any
	Error   string
}

// OK builds a successful ToolResult.
func OK(output map[string]any) ToolResult {
	return ToolResult{Success: true, Output: output}
}

// Fail builds a failed ToolResult carrying a human-readable error.
func Fail(msg string) ToolResult {
	return ToolResult{Success: false, Error: msg}
}

// Skill is a uniform contract for a locally-coded capability exposing one
// or more named tools.
type Skill interface {
	Name() string
	Description() string
	Tools() []ToolDefinition
	Execute(ctx context.Context, toolName string, arguments map[string]any) (ToolResult, error)
}
