package factory

import (
	"fmt"
	"time"

	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/llm/ollama"
	"nexus-ai-be/pkg/llm/openai"
)

// NewTextBackend builds the general-purpose text backend.
func NewTextBackend(providerType, modelName, baseURL, apiKey string, timeout time.Duration) (llm.Backend, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName, timeout), nil
	case "openai", "huggingface":
		return openai.NewProvider("text", apiKey, baseURL, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
