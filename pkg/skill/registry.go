// Package skill implements the Skill Registry and Tool Executor: a
// tool_name -> (skill, tool_definition) dispatch table over both coded
// skills and discovered agentskills.io packages.
package skill

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/skill/agentskills"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// ErrUnknownTool is the distinguished error Dispatch returns for a tool
// name with no registered skill.
var ErrUnknownTool = goerr.New("unknown tool")

// ErrToolCollision is returned by Register when two skills declare the
// same tool name.
var ErrToolCollision = goerr.New("tool name collision")

// Registry maps tool names to the skill that implements them, and to the
// skill's JSON-schema tool definition, whose required-parameter flags
// Dispatch checks.
type Registry struct {
	skills      map[string]interfaces.Skill
	toolSkill   map[string]string // tool name -> skill name
	toolDef     map[string]interfaces.ToolDefinition
	externalMD  map[string]agentskills.Metadata
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		skills:     map[string]interfaces.Skill{},
		toolSkill:  map[string]string{},
		toolDef:    map[string]interfaces.ToolDefinition{},
		externalMD: map[string]agentskills.Metadata{},
	}
}

// Register adds a skill and all of its tools to the registry. Loading
// fails on any tool-name collision across already-loaded skills.
func (r *Registry) Register(s interfaces.Skill) error {
	for _, tool := range s.Tools() {
		if owner, exists := r.toolSkill[tool.Name]; exists {
			return goerr.Wrap(ErrToolCollision, "tool already registered",
				goerr.V("tool", tool.Name), goerr.V("existing_skill", owner), goerr.V("new_skill", s.Name()))
		}
	}

	r.skills[s.Name()] = s
	for _, tool := range s.Tools() {
		r.toolSkill[tool.Name] = s.Name()
		r.toolDef[tool.Name] = tool
	}
	return nil
}

// LoadInstructionSkills discovers agentskills.io packages under skillDirs
// and, if any are found, registers the bridge skill exposing load_skill
// and read_skill_file. No bridge is registered when nothing is found.
func (r *Registry) LoadInstructionSkills(ctx context.Context, skillDirs []string, disabled map[string]bool) error {
	discovered := agentskills.Discover(ctx, skillDirs)
	if len(discovered) == 0 {
		return nil
	}

	registry := make(map[string]agentskills.Metadata, len(discovered))
	for _, meta := range discovered {
		if disabled[meta.Name] {
			continue
		}
		registry[meta.Name] = meta
	}
	if len(registry) == 0 {
		return nil
	}

	r.externalMD = registry
	logging.From(ctx).Info("discovered instruction skills", "count", len(registry))
	return r.Register(NewBridge(registry))
}

// Tools returns every tool definition across all registered skills, for
// inclusion in the LLM provider's tool catalog.
func (r *Registry) Tools() []interfaces.ToolDefinition {
	defs := make([]interfaces.ToolDefinition, 0, len(r.toolDef))
	for _, d := range r.toolDef {
		defs = append(defs, d)
	}
	return defs
}

// ExternalSkills returns the metadata of discovered filesystem skills,
// for rendering a compact index in the agent's system prompt.
func (r *Registry) ExternalSkills() map[string]agentskills.Metadata {
	return r.externalMD
}

// Dispatch checks that every parameter the tool's definition marks
// required is present and routes the call to the owning skill. Argument
// types and other schema constraints are not checked. Returns
// ErrUnknownTool (wrapped) for unregistered tool names.
func (r *Registry) Dispatch(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	skillName, ok := r.toolSkill[toolName]
	if !ok {
		return interfaces.ToolResult{}, goerr.Wrap(ErrUnknownTool, "no skill provides this tool", goerr.V("tool", toolName))
	}

	def := r.toolDef[toolName]
	if err := validateArguments(def, arguments); err != nil {
		return interfaces.Fail(err.Error()), nil
	}

	s := r.skills[skillName]
	return s.Execute(ctx, toolName, arguments)
}

func validateArguments(def interfaces.ToolDefinition, arguments map[string]any) error {
	for name, param := range def.Parameters {
		if !param.Required {
			continue
		}
		if _, ok := arguments[name]; !ok {
			return fmt.Errorf("missing required argument %q for tool %q", name, def.Name)
		}
	}
	return nil
}
