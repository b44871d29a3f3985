package skill_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/skill"
)

type stubSkill struct {
	name  string
	tools []interfaces.ToolDefinition
}

func (s *stubSkill) Name() string        { return s.name }
func (s *stubSkill) Description() string { return "stub" }
func (s *stubSkill) Tools() []interfaces.ToolDefinition { return s.tools }
func (s *stubSkill) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	return interfaces.OK(map[string]any{"tool": toolName}), nil
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	r := skill.New()
	_, err := r.Dispatch(context.Background(), "does_not_exist", nil)
	gt.Error(t, err).Required()
}

func TestRegistryRejectsToolCollision(t *testing.T) {
	r := skill.New()
	tools := []interfaces.ToolDefinition{{Name: "do_thing"}}

	gt.NoError(t, r.Register(&stubSkill{name: "a", tools: tools})).Required()

	err := r.Register(&stubSkill{name: "b", tools: tools})
	gt.Error(t, err).Required()
}

func TestRegistryDispatchValidatesRequiredArguments(t *testing.T) {
	r := skill.New()
	tools := []interfaces.ToolDefinition{
		{
			Name: "do_thing",
			Parameters: map[string]*interfaces.ToolParameter{
				"arg": {Type: "string", Required: true},
			},
		},
	}
	gt.NoError(t, r.Register(&stubSkill{name: "a", tools: tools})).Required()

	result, err := r.Dispatch(context.Background(), "do_thing", map[string]any{})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Success).False()

	result, err = r.Dispatch(context.Background(), "do_thing", map[string]any{"arg": "value"})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Success).True()
}
