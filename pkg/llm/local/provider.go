// Package local builds interfaces.LLMProvider instances for
// OpenAI-wire-compatible chat endpoints: Ollama and NVIDIA NIM.
package local

import (
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/llm/openai"
)

// New builds a provider against host using the OpenAI chat completions
// wire format, tagging ProviderName with name (e.g. "local", "ollama" or
// "nvidia").
func New(host, apiKey, model, name string) interfaces.LLMProvider {
	return openai.NewWithBaseURL(apiKey, model, host, name)
}
