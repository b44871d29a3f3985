package agentskills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

const manifestFilename = "SKILL.md"

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n(.*)$`)
	namePattern         = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
)

var validFrontmatterFields = map[string]bool{
	"name": true, "description": true, "license": true,
	"compatibility": true, "metadata": true, "allowed-tools": true,
}

type frontmatter struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	License       string            `yaml:"license"`
	Compatibility string            `yaml:"compatibility"`
	Metadata      map[string]string `yaml:"metadata"`
	AllowedTools  string            `yaml:"allowed-tools"`
}

// parseFrontmatter splits a SKILL.md file into its YAML frontmatter and
// markdown body.
func parseFrontmatter(path string) (map[string]any, frontmatter, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, frontmatter{}, "", goerr.Wrap(err, "failed to read skill manifest", goerr.V("path", path))
	}

	match := frontmatterPattern.FindStringSubmatch(string(raw))
	if match == nil {
		return nil, frontmatter{}, "", goerr.New("no valid YAML frontmatter", goerr.V("path", path))
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(match[1]), &fields); err != nil {
		return nil, frontmatter{}, "", goerr.Wrap(err, "failed to parse frontmatter", goerr.V("path", path))
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(match[1]), &fm); err != nil {
		return nil, frontmatter{}, "", goerr.Wrap(err, "failed to parse frontmatter", goerr.V("path", path))
	}

	return fields, fm, strings.TrimSpace(match[2]), nil
}

// validateMetadata checks frontmatter against the agentskills.io spec and
// returns a list of human-readable errors (empty means valid).
func validateMetadata(fields map[string]any, fm frontmatter, dirName string) []string {
	var errs []string

	for key := range fields {
		if !validFrontmatterFields[key] {
			errs = append(errs, fmt.Sprintf("unknown frontmatter field: %s", key))
		}
	}

	switch {
	case fm.Name == "":
		errs = append(errs, "missing required field: name")
	case !namePattern.MatchString(fm.Name) || len(fm.Name) > 64:
		errs = append(errs, fmt.Sprintf("invalid name: %s", fm.Name))
	case fm.Name != dirName:
		errs = append(errs, fmt.Sprintf("name %q doesn't match directory %q", fm.Name, dirName))
	}

	switch {
	case fm.Description == "":
		errs = append(errs, "missing required field: description")
	case len(fm.Description) > 1024:
		errs = append(errs, "description exceeds 1024 characters")
	}

	return errs
}

// LoadMetadata reads only the frontmatter from a skill directory (tier 1).
// It returns (nil, false) for directories that don't look like skill
// packages, and logs+skips directories with invalid manifests.
func LoadMetadata(ctx context.Context, skillDir string) (*Metadata, bool) {
	manifestPath := filepath.Join(skillDir, manifestFilename)
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, false
	}

	dirName := filepath.Base(skillDir)
	fields, fm, _, err := parseFrontmatter(manifestPath)
	if err != nil {
		logging.From(ctx).Warn("failed to load skill metadata", "dir", skillDir, "error", err)
		return nil, false
	}

	if errs := validateMetadata(fields, fm, dirName); len(errs) > 0 {
		logging.From(ctx).Warn("skill has validation errors", "dir", skillDir, "errors", errs)
		return nil, false
	}

	return &Metadata{
		Name:          fm.Name,
		Description:   fm.Description,
		Source:        types.SkillSourceExternal,
		Path:          skillDir,
		License:       fm.License,
		Compatibility: fm.Compatibility,
		Metadata:      fm.Metadata,
		AllowedTools:  fm.AllowedTools,
	}, true
}

// LoadContent loads the full skill body plus its scripts/ and references/
// subtrees (tier 2 — only called when the agent asks to load a skill).
func LoadContent(meta Metadata) (*Content, error) {
	if meta.Path == "" {
		return nil, goerr.New("cannot load content for skill without path")
	}

	_, _, body, err := parseFrontmatter(filepath.Join(meta.Path, manifestFilename))
	if err != nil {
		return nil, err
	}

	scripts, err := readSubtreeFiles(filepath.Join(meta.Path, "scripts"))
	if err != nil {
		return nil, err
	}
	references, err := readSubtreeFiles(filepath.Join(meta.Path, "references"))
	if err != nil {
		return nil, err
	}

	return &Content{
		Metadata:     meta,
		Instructions: body,
		Scripts:      scripts,
		References:   references,
	}, nil
}

func readSubtreeFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read skill subtree", goerr.V("dir", dir))
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read skill file", goerr.V("path", filepath.Join(dir, e.Name())))
		}
		files[e.Name()] = string(content)
	}
	return files, nil
}

// Discover scans skillDirs in order for subdirectories containing a
// SKILL.md manifest. The first occurrence of a given skill name wins.
func Discover(ctx context.Context, skillDirs []string) []Metadata {
	var skills []Metadata
	seen := map[string]bool{}

	for _, base := range skillDirs {
		children, err := os.ReadDir(base)
		if err != nil {
			logging.From(ctx).Debug("skill directory does not exist", "dir", base)
			continue
		}

		names := make([]string, 0, len(children))
		for _, c := range children {
			if c.IsDir() {
				names = append(names, c.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			dir := filepath.Join(base, name)
			meta, ok := LoadMetadata(ctx, dir)
			if !ok || seen[meta.Name] {
				continue
			}
			skills = append(skills, *meta)
			seen[meta.Name] = true
		}
	}
	return skills
}
