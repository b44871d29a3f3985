package agent

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestParseExtractionPlainJSON(t *testing.T) {
	entries, err := parseExtraction(`[{"type":"fact","content":"likes tea","importance":0.5}]`)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(1)
	gt.Value(t, entries[0].Content).Equal("likes tea")
}

func TestParseExtractionFencedCodeBlock(t *testing.T) {
	raw := "```json\n[{\"type\":\"fact\",\"content\":\"likes tea\",\"importance\":0.5}]\n```"
	entries, err := parseExtraction(raw)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(1)
}

func TestParseExtractionSurroundingProse(t *testing.T) {
	raw := "Sure, here are the facts:\n[{\"type\":\"fact\",\"content\":\"likes tea\",\"importance\":0.5}]\nHope that helps!"
	entries, err := parseExtraction(raw)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(1)
}

func TestParseExtractionEmptyArray(t *testing.T) {
	entries, err := parseExtraction("[]")
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(0)
}

func TestParseExtractionUnrecoverable(t *testing.T) {
	_, err := parseExtraction("no json here at all")
	gt.Error(t, err)
}

func TestFormatToolArgsSummary(t *testing.T) {
	got := formatToolArgsSummary(map[string]any{"query": "cats", "count": 3})
	gt.Value(t, got).Equal(`count=3, query="cats"`)
}

func TestFormatToolArgsSummaryEmpty(t *testing.T) {
	gt.Value(t, formatToolArgsSummary(nil)).Equal("")
}

func TestFormatToolArgsSummaryTruncatesLongValues(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := formatToolArgsSummary(map[string]any{"text": string(long)})
	gt.True(t, len(got) < 200)
}
