package skill

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/skill/agentskills"
)

// ErrInvalidSkillPath is returned when read_skill_file is asked to read a
// path containing ".." or an absolute component, before any filesystem
// access is attempted.
var ErrInvalidSkillPath = goerr.New("skill file path must be a bare filename with no directory traversal")

// Bridge exposes discovered filesystem skill packages to the LLM via two
// tools: load_skill returns the full manifest body, read_skill_file
// returns one file from the package's scripts/ or references/ subtree.
// It is only registered when at least one instruction skill is found.
type Bridge struct {
	mu       sync.Mutex
	registry map[string]agentskills.Metadata
	cache    map[string]*agentskills.Content
}

var _ interfaces.Skill = (*Bridge)(nil)

// NewBridge builds a Bridge over the given discovered skill metadata,
// keyed by skill name.
func NewBridge(registry map[string]agentskills.Metadata) *Bridge {
	return &Bridge{
		registry: registry,
		cache:    map[string]*agentskills.Content{},
	}
}

func (b *Bridge) Name() string        { return "agentskills_bridge" }
func (b *Bridge) Description() string { return "Load and read agentskills.io skill packages" }

func (b *Bridge) Tools() []interfaces.ToolDefinition {
	return []interfaces.ToolDefinition{
		{
			Name: "load_skill",
			Description: "Load the full instructions for an agentskills.io skill by name. " +
				"Call this when you need detailed instructions to perform a task matching an available skill from the skill index.",
			Parameters: map[string]*interfaces.ToolParameter{
				"skill_name": {Type: "string", Description: "Name of the skill to load", Required: true},
			},
		},
		{
			Name: "read_skill_file",
			Description: "Read a specific file from a skill package. " +
				"Use for scripts or references listed in skill instructions.",
			Parameters: map[string]*interfaces.ToolParameter{
				"skill_name": {Type: "string", Description: "Name of the skill", Required: true},
				"file_path":  {Type: "string", Description: "Filename to read (from scripts/ or references/)", Required: true},
			},
		},
	}
}

func (b *Bridge) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	switch toolName {
	case "load_skill":
		return b.loadSkill(stringArg(arguments, "skill_name"))
	case "read_skill_file":
		return b.readSkillFile(stringArg(arguments, "skill_name"), stringArg(arguments, "file_path"))
	default:
		return interfaces.Fail(fmt.Sprintf("unknown tool: %s", toolName)), nil
	}
}

func (b *Bridge) loadSkill(skillName string) (interfaces.ToolResult, error) {
	meta, ok := b.registry[skillName]
	if !ok {
		return interfaces.Fail(fmt.Sprintf("skill %q not found. Available skills: %s", skillName, b.availableNames())), nil
	}

	content, err := b.content(meta)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to load skill %q: %s", skillName, err)), nil
	}

	return interfaces.OK(map[string]any{"instructions": formatInstructions(content)}), nil
}

// readSkillFile rejects any path-traversal attempt before touching the
// filesystem: file_path must be a bare filename with no ".." segment and
// no absolute-path prefix. Only files already loaded into a skill's
// scripts/references maps (themselves populated from a directory listing,
// never from caller-supplied paths) are ever returned.
func (b *Bridge) readSkillFile(skillName, filePath string) (interfaces.ToolResult, error) {
	if err := validateSkillFilePath(filePath); err != nil {
		return interfaces.Fail(err.Error()), nil
	}

	meta, ok := b.registry[skillName]
	if !ok {
		return interfaces.Fail(fmt.Sprintf("skill %q not found", skillName)), nil
	}

	content, err := b.content(meta)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to read file: %s", err)), nil
	}

	if text, ok := content.Scripts[filePath]; ok {
		return interfaces.OK(map[string]any{"content": text}), nil
	}
	if text, ok := content.References[filePath]; ok {
		return interfaces.OK(map[string]any{"content": text}), nil
	}

	return interfaces.Fail(fmt.Sprintf("file %q not found in skill %q. Available files: %s",
		filePath, skillName, strings.Join(availableFiles(content), ", "))), nil
}

func validateSkillFilePath(filePath string) error {
	if filePath == "" {
		return goerr.Wrap(ErrInvalidSkillPath, "file path is required")
	}
	if strings.HasPrefix(filePath, "/") || strings.Contains(filePath, "..") || strings.ContainsAny(filePath, "\\") {
		return goerr.Wrap(ErrInvalidSkillPath, "rejected path-traversal attempt", goerr.V("file_path", filePath))
	}
	if strings.Contains(filePath, "/") {
		return goerr.Wrap(ErrInvalidSkillPath, "file path must not contain directory separators", goerr.V("file_path", filePath))
	}
	return nil
}

func (b *Bridge) content(meta agentskills.Metadata) (*agentskills.Content, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cached, ok := b.cache[meta.Name]; ok {
		return cached, nil
	}
	content, err := agentskills.LoadContent(meta)
	if err != nil {
		return nil, err
	}
	b.cache[meta.Name] = content
	return content, nil
}

func (b *Bridge) availableNames() string {
	names := make([]string, 0, len(b.registry))
	for name := range b.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func availableFiles(content *agentskills.Content) []string {
	files := make([]string, 0, len(content.Scripts)+len(content.References))
	for name := range content.Scripts {
		files = append(files, name)
	}
	for name := range content.References {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

func formatInstructions(content *agentskills.Content) string {
	var sb strings.Builder
	sb.WriteString("# Skill: " + content.Metadata.Name + "\n")
	sb.WriteString(content.Instructions)

	if len(content.References) > 0 {
		sb.WriteString("\n\n## Available References\n")
		for name := range content.References {
			sb.WriteString("- " + name + "\n")
		}
	}
	if len(content.Scripts) > 0 {
		sb.WriteString("\n\n## Available Scripts\n")
		for name := range content.Scripts {
			sb.WriteString("- " + name + "\n")
		}
		sb.WriteString("\nUse the read_skill_file tool to read any script or reference file.\n")
	}
	return sb.String()
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
