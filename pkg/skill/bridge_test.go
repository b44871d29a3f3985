package skill_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/skill"
	"github.com/timeplus-io/pulsebot/pkg/skill/agentskills"
)

func TestBridgeRejectsPathTraversal(t *testing.T) {
	registry := map[string]agentskills.Metadata{
		"demo": {Name: "demo", Description: "demo skill", Path: t.TempDir()},
	}
	bridge := skill.NewBridge(registry)

	cases := []string{"../../etc/passwd", "/etc/passwd", "scripts/../../secret.txt"}
	for _, path := range cases {
		result, err := bridge.Execute(context.Background(), "read_skill_file", map[string]any{
			"skill_name": "demo",
			"file_path":  path,
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.Success).False()
	}
}

func TestBridgeLoadSkillUnknownName(t *testing.T) {
	bridge := skill.NewBridge(map[string]agentskills.Metadata{})
	result, err := bridge.Execute(context.Background(), "load_skill", map[string]any{"skill_name": "missing"})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Success).False()
}
