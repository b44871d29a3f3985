package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// extractionMessageLimit is the "most recent up-to-5 messages" window
// the memory extractor summarizes for the LLM.
const extractionMessageLimit = 5

// extractionInstruction is the fixed system instruction sent to the LLM
// to mine a finished turn for durable facts.
const extractionInstruction = `Review the following conversation turn and extract any durable facts,
preferences, or learned skills worth remembering long-term. Respond with
a JSON array of objects shaped like {"type": "fact|preference|conversation_summary|skill_learned",
"content": "...", "importance": 0.0-1.0}. Respond with an empty array []
if nothing is worth remembering. Do not include any text besides the JSON array.`

type extractedMemory struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

// extractMemories takes the most recent turn for sessionID, asks the LLM
// to mine it for durable facts, and stores every valid entry with
// deduplication enabled. Parsing failures are logged and swallowed: a
// malformed extraction must never fail the turn that triggered it.
func (l *Loop) extractMemories(ctx context.Context, sessionID string) {
	if l.memory == nil {
		return
	}

	recent, err := messagelog.QuerySession(ctx, l.stream, sessionID, extractionMessageLimit)
	if err != nil {
		logging.From(ctx).Warn("memory extraction could not load recent messages", "error", err, "session_id", sessionID)
		return
	}
	if len(recent) == 0 {
		return
	}

	var transcript strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&transcript, "%s: %s\n", m.MessageType, textOf(m.Content))
	}

	resp, err := l.llm.Chat(ctx, interfaces.ChatRequest{
		System:   extractionInstruction,
		Messages: []interfaces.ChatMessage{{Role: interfaces.RoleUser, Content: transcript.String()}},
	})
	if err != nil {
		logging.From(ctx).Warn("memory extraction llm call failed", "error", err, "session_id", sessionID)
		return
	}

	entries, err := parseExtraction(resp.Content)
	if err != nil {
		logging.From(ctx).Warn("memory extraction response could not be parsed", "error", err, "raw", resp.Content)
		return
	}

	for _, e := range entries {
		memType, err := types.ParseMemoryType(e.Type)
		if err != nil {
			logging.From(ctx).Warn("memory extraction produced invalid memory_type", "type", e.Type)
			continue
		}
		if _, err := l.memory.Store(ctx, e.Content, memType, types.MemoryCategoryGeneral, e.Importance, sessionID, true); err != nil {
			logging.From(ctx).Warn("failed to store extracted memory", "error", err, "session_id", sessionID)
		}
	}
}

// parseExtraction tolerates an LLM wrapping its JSON array in a fenced
// code block or surrounding prose, mirroring pulsebot's
// core/agent.py::_extract_memories recovery behavior.
func parseExtraction(raw string) ([]extractedMemory, error) {
	cleaned := stripCodeFence(raw)

	var entries []extractedMemory
	if err := json.Unmarshal([]byte(cleaned), &entries); err == nil {
		return entries, nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &entries); err == nil {
			return entries, nil
		}
	}

	return nil, fmt.Errorf("could not locate a JSON array in the extraction response")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) >= 1 {
		lines = lines[1:]
	}
	s = strings.Join(lines, "\n")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
