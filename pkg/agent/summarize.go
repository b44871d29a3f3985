package agent

import (
	"fmt"
	"sort"
	"strings"
)

// maxArgSummaryLen bounds a single rendered argument value inside the
// human-readable tool-call summary broadcast to channels.
const maxArgSummaryLen = 80

// formatToolArgsSummary renders tool call arguments as a short
// human-readable string for the tool_call broadcast's arguments_summary
// field, e.g. `count=3, query="cats"` (keys sorted). Ported from pulsebot's
// utils/helpers.py::_format_tool_args so UIs don't have to re-derive it
// from raw JSON arguments.
func formatToolArgsSummary(arguments map[string]any) string {
	if len(arguments) == 0 {
		return ""
	}

	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatArgValue(arguments[k])))
	}
	return strings.Join(parts, ", ")
}

func formatArgValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", truncateArgValue(val))
	case nil:
		return "null"
	default:
		return truncateArgValue(fmt.Sprintf("%v", val))
	}
}

func truncateArgValue(s string) string {
	if len(s) <= maxArgSummaryLen {
		return s
	}
	return s[:maxArgSummaryLen] + "..."
}
