package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// blockedCommands lists base commands rejected by default when no
// explicit allow-list is configured.
var blockedCommands = map[string]bool{
	"rm": true, "rmdir": true, "mv": true, "dd": true, "mkfs": true, "fdisk": true,
	"shutdown": true, "reboot": true, "halt": true, "init": true,
	"sudo": true, "su": true, "chmod": true, "chown": true,
	"format": true, "del": true, "erase": true,
}

var dangerousPatterns = []string{
	"| rm", "| sudo", "; rm", "; sudo",
	"&& rm", "&& sudo", "$(rm", "$(sudo",
	"`rm", "`sudo", "> /dev/", "| dd",
}

// ShellSkill runs a single shell command per invocation, behind a
// timeout and either a command allow-list or the default block-list.
type ShellSkill struct {
	AllowedCommands   []string // nil means use the block-list instead
	WorkingDirectory  string
	Timeout           time.Duration
	MaxOutputLength   int
}

var _ interfaces.Skill = (*ShellSkill)(nil)

// NewShellSkill builds a ShellSkill with the teacher's defaults: a
// 30-second timeout and a 10000-character output cap.
func NewShellSkill() *ShellSkill {
	return &ShellSkill{Timeout: 30 * time.Second, MaxOutputLength: 10000}
}

func (s *ShellSkill) Name() string        { return "shell" }
func (s *ShellSkill) Description() string { return "Execute shell commands" }

func (s *ShellSkill) Tools() []interfaces.ToolDefinition {
	return []interfaces.ToolDefinition{
		{
			Name:        "run_command",
			Description: "Run a shell command and return its output. Use for tasks like listing files, checking system info, or running scripts.",
			Parameters: map[string]*interfaces.ToolParameter{
				"command": {Type: "string", Description: "The shell command to execute", Required: true},
			},
		},
	}
}

func (s *ShellSkill) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	if toolName != "run_command" {
		return interfaces.Fail(fmt.Sprintf("unknown tool: %s", toolName)), nil
	}

	command, _ := arguments["command"].(string)
	if command == "" {
		return interfaces.Fail("command is required"), nil
	}

	if err := s.validateCommand(command); err != nil {
		return interfaces.Fail(err.Error()), nil
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if s.WorkingDirectory != "" {
		cmd.Dir = s.WorkingDirectory
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return interfaces.Fail(fmt.Sprintf("command timed out after %s", timeout)), nil
	}

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return interfaces.Fail(fmt.Sprintf("command execution failed: %s", err)), nil
	}

	maxLen := s.MaxOutputLength
	if maxLen == 0 {
		maxLen = 10000
	}

	return interfaces.OK(map[string]any{
		"exit_code": exitCode,
		"stdout":    truncate(stdout.String(), maxLen),
		"stderr":    truncate(stderr.String(), maxLen),
	}), nil
}

func (s *ShellSkill) validateCommand(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty command")
	}

	base := parts[0]
	if idx := strings.LastIndex(base, "/"); idx != -1 {
		base = base[idx+1:]
	}

	if s.AllowedCommands != nil {
		if !contains(s.AllowedCommands, base) {
			return fmt.Errorf("command %q is not in the allowed list", base)
		}
	} else if blockedCommands[strings.ToLower(base)] {
		return fmt.Errorf("command %q is blocked for safety", base)
	}

	lower := strings.ToLower(command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("command contains dangerous pattern: %s", pattern)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... (output truncated)"
}
