package agentskills_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/skill/agentskills"
)

func writeSkill(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	gt.NoError(t, os.MkdirAll(dir, 0o755)).Required()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(manifest), 0o644)).Required()
	return dir
}

const validManifest = `---
name: weather-lookup
description: Look up current weather for a city.
---

Call the weather API with the requested city.
`

func TestLoadMetadataValid(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "weather-lookup", validManifest)

	meta, ok := agentskills.LoadMetadata(context.Background(), dir)
	gt.Bool(t, ok).True()
	gt.Value(t, meta.Name).Equal("weather-lookup")
	gt.Value(t, meta.Description).Equal("Look up current weather for a city.")
}

func TestLoadMetadataRejectsNameMismatch(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "wrong-dir-name", validManifest)

	_, ok := agentskills.LoadMetadata(context.Background(), dir)
	gt.Bool(t, ok).False()
}

func TestLoadMetadataRejectsMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, ok := agentskills.LoadMetadata(context.Background(), dir)
	gt.Bool(t, ok).False()
}

func TestDiscoverSkipsInvalidAndFindsValid(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "weather-lookup", validManifest)
	writeSkill(t, root, "bad-one", "not even frontmatter")

	skills := agentskills.Discover(context.Background(), []string{root})
	gt.Array(t, skills).Length(1)
	gt.Value(t, skills[0].Name).Equal("weather-lookup")
}

func TestLoadContentReadsScriptsAndReferences(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "weather-lookup", validManifest)
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755)).Required()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "fetch.sh"), []byte("curl weather"), 0o644)).Required()

	meta, ok := agentskills.LoadMetadata(context.Background(), dir)
	gt.Bool(t, ok).True()

	content, err := agentskills.LoadContent(*meta)
	gt.NoError(t, err).Required()
	gt.Value(t, content.Scripts["fetch.sh"]).Equal("curl weather")
}
