// Package text implements the small text-shaping helpers the agent loop
// and observability writer share: preview truncation and a stable content
// digest, ported from pulsebot's utils/helpers.py.
package text

import (
	"crypto/sha256"
	"encoding/hex"
)

// Truncate shortens s to at most maxLength runes, appending an ellipsis
// when it had to cut. maxLength <= 3 always yields "...".
func Truncate(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return "..."
	}
	return string(r[:maxLength-3]) + "..."
}

// HashContent returns the hex-encoded SHA-256 digest of content, used as
// the stable system_prompt_hash in the LLM log.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
