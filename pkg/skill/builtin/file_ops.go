package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// FileOpsSkill reads, writes, and lists files rooted at BasePath. Every
// resolved path is checked to still be within BasePath before any
// filesystem access.
type FileOpsSkill struct {
	BasePath          string
	AllowedExtensions []string // nil means any extension
}

var _ interfaces.Skill = (*FileOpsSkill)(nil)

// NewFileOpsSkill builds a FileOpsSkill rooted at basePath.
func NewFileOpsSkill(basePath string) (*FileOpsSkill, error) {
	resolved, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	return &FileOpsSkill{BasePath: resolved}, nil
}

func (s *FileOpsSkill) Name() string        { return "file_ops" }
func (s *FileOpsSkill) Description() string { return "Read, write, and list files" }

func (s *FileOpsSkill) Tools() []interfaces.ToolDefinition {
	return []interfaces.ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read the contents of a file",
			Parameters: map[string]*interfaces.ToolParameter{
				"path": {Type: "string", Description: "Path to the file (relative to base path)", Required: true},
			},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file (creates if not exists)",
			Parameters: map[string]*interfaces.ToolParameter{
				"path":    {Type: "string", Description: "Path to the file (relative to base path)", Required: true},
				"content": {Type: "string", Description: "Content to write", Required: true},
				"append":  {Type: "boolean", Description: "Append to file instead of overwriting"},
			},
		},
		{
			Name:        "list_directory",
			Description: "List files and directories in a path",
			Parameters: map[string]*interfaces.ToolParameter{
				"path": {Type: "string", Description: "Directory path (relative to base path)"},
			},
		},
	}
}

func (s *FileOpsSkill) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	switch toolName {
	case "read_file":
		return s.readFile(arguments)
	case "write_file":
		return s.writeFile(arguments)
	case "list_directory":
		return s.listDirectory(arguments)
	default:
		return interfaces.Fail(fmt.Sprintf("unknown tool: %s", toolName)), nil
	}
}

// resolvePath joins path onto BasePath, cleans the result, and rejects
// anything that lands outside BasePath (e.g. via ".."); an absolute path
// is joined under BasePath. The check is lexical: symlinks are not
// resolved, so a symlink inside BasePath is followed wherever it points.
func (s *FileOpsSkill) resolvePath(path string) (string, bool) {
	resolved, err := filepath.Abs(filepath.Join(s.BasePath, path))
	if err != nil {
		return "", false
	}
	if resolved != s.BasePath && !strings.HasPrefix(resolved, s.BasePath+string(os.PathSeparator)) {
		return "", false
	}
	return resolved, true
}

func (s *FileOpsSkill) extensionAllowed(path string) bool {
	if s.AllowedExtensions == nil {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return contains(s.AllowedExtensions, ext)
}

func (s *FileOpsSkill) readFile(arguments map[string]any) (interfaces.ToolResult, error) {
	pathArg, _ := arguments["path"].(string)
	resolved, ok := s.resolvePath(pathArg)
	if !ok {
		return interfaces.Fail("invalid or disallowed path"), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("file not found: %s", pathArg)), nil
	}
	if info.IsDir() {
		return interfaces.Fail(fmt.Sprintf("not a file: %s", pathArg)), nil
	}
	if !s.extensionAllowed(resolved) {
		return interfaces.Fail(fmt.Sprintf("file extension not allowed: %s", filepath.Ext(resolved))), nil
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to read file: %s", err)), nil
	}
	return interfaces.OK(map[string]any{"path": pathArg, "content": string(content)}), nil
}

func (s *FileOpsSkill) writeFile(arguments map[string]any) (interfaces.ToolResult, error) {
	pathArg, _ := arguments["path"].(string)
	content, _ := arguments["content"].(string)
	append_, _ := arguments["append"].(bool)

	resolved, ok := s.resolvePath(pathArg)
	if !ok {
		return interfaces.Fail("invalid or disallowed path"), nil
	}
	if !s.extensionAllowed(resolved) {
		return interfaces.Fail(fmt.Sprintf("file extension not allowed: %s", filepath.Ext(resolved))), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to write file: %s", err)), nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if append_ {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to write file: %s", err)), nil
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return interfaces.Fail(fmt.Sprintf("failed to write file: %s", err)), nil
	}

	return interfaces.OK(map[string]any{"path": pathArg, "bytes_written": len(content)}), nil
}

func (s *FileOpsSkill) listDirectory(arguments map[string]any) (interfaces.ToolResult, error) {
	pathArg, ok := arguments["path"].(string)
	if !ok || pathArg == "" {
		pathArg = "."
	}

	resolved, ok := s.resolvePath(pathArg)
	if !ok {
		return interfaces.Fail("invalid or disallowed path"), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("directory not found: %s", pathArg)), nil
	}

	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"name": e.Name(),
			"type": "file",
		}
		if e.IsDir() {
			item["type"] = "directory"
			item["size"] = nil
		} else if info, err := e.Info(); err == nil {
			item["size"] = info.Size()
		}
		items = append(items, item)
	}

	return interfaces.OK(map[string]any{"path": pathArg, "items": items}), nil
}
