package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/interfaces"
)

// ParseModelSpec splits a "provider:model" spec into its parts.
// A bare model name returns an empty provider, and a bare provider name
// ("claude", "gemini", "ollama") returns an empty model.
func ParseModelSpec(spec string) (provider, model string) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", ""
	}

	if idx := strings.Index(spec, ":"); idx >= 0 {
		return spec[:idx], spec[idx+1:]
	}

	switch spec {
	case string(common.LLMProviderClaude), string(common.LLMProviderGemini), string(common.LLMProviderOllama):
		return spec, ""
	default:
		return "", spec
	}
}

// NewLLMService creates the LLM service selected by the model spec,
// falling back to the configured default provider when the spec carries
// no provider prefix.
func NewLLMService(cfg *common.Config, spec string, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider, model := ParseModelSpec(spec)
	if provider == "" {
		provider = string(cfg.LLM.DefaultProvider)
	}

	logger.Info().
		Str("provider", provider).
		Str("model", model).
		Msg("Initializing LLM service")

	switch common.LLMProvider(provider) {
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, model, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, model, logger)
	case common.LLMProviderOllama:
		return NewOllamaService(&cfg.Ollama, model, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'claude', 'gemini', or 'ollama'", provider)
	}
}

// NewEmbeddingService creates the LLM service used for embeddings.
// Claude has no embedding API, so a Claude generation provider is
// paired with Gemini (when a key is configured) or Ollama embeddings.
func NewEmbeddingService(cfg *common.Config, generation interfaces.LLMService, logger arbor.ILogger) (interfaces.LLMService, error) {
	if !strings.HasPrefix(generation.ModelName(), string(common.LLMProviderClaude)+":") {
		return generation, nil
	}

	if cfg.Gemini.APIKey != "" {
		logger.Info().Msg("Claude provider selected, using Gemini for embeddings")
		return NewGeminiService(&cfg.Gemini, "", logger)
	}

	logger.Info().Msg("Claude provider selected, using Ollama for embeddings")
	return NewOllamaService(&cfg.Ollama, "", logger)
}
