// Package llm holds provider-agnostic helpers shared by the LLM Provider
// implementations: a static per-model price table and the cost estimator
// each provider's EstimateCost delegates to.
package llm

import "strings"

// pricePerMillion holds USD cost per million tokens, input and output,
// for models known at build time. Unknown models fall back to a
// conservative default rather than erroring, since cost estimation is
// advisory (used for the cost_alert scheduled task, not billing).
type pricePerMillion struct {
	input  float64
	output float64
}

var knownPrices = map[string]pricePerMillion{
	"claude-opus-4":     {input: 15.00, output: 75.00},
	"claude-sonnet-4":   {input: 3.00, output: 15.00},
	"claude-haiku-3.5":  {input: 0.80, output: 4.00},
	"gpt-4o":            {input: 2.50, output: 10.00},
	"gpt-4o-mini":       {input: 0.15, output: 0.60},
	"gemini-1.5-pro":    {input: 1.25, output: 5.00},
	"gemini-1.5-flash":  {input: 0.075, output: 0.30},
	"gemini-2.0-flash":  {input: 0.10, output: 0.40},
}

var defaultPrice = pricePerMillion{input: 1.00, output: 3.00}

// EstimateCost returns an approximate USD cost for a completion given the
// model name and input/output token counts. Matching is prefix-based so
// dated model aliases (e.g. "claude-sonnet-4-20250514") resolve to their
// base price entry.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price := defaultPrice
	best := 0
	for name, p := range knownPrices {
		if strings.HasPrefix(model, name) && len(name) > best {
			price = p
			best = len(name)
		}
	}
	return float64(inputTokens)/1_000_000*price.input + float64(outputTokens)/1_000_000*price.output
}
