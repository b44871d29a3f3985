// Package agentskills parses and loads agentskills.io-style filesystem
// skill packages: a SKILL.md manifest with YAML frontmatter plus optional
// scripts/ and references/ subdirectories.
package agentskills

import "github.com/timeplus-io/pulsebot/pkg/domain/types"

// Metadata is the lightweight manifest loaded at startup (tier 1). Only
// Name and Description are injected into the agent's system prompt.
type Metadata struct {
	Name          string
	Description   string
	Source        types.SkillSource
	Path          string
	License       string
	Compatibility string
	Metadata      map[string]string
	AllowedTools  string
}

// Content is the full skill package body, loaded on demand (tier 2).
type Content struct {
	Metadata     Metadata
	Instructions string
	Scripts      map[string]string
	References   map[string]string
}
