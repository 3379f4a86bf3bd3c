package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
)

// Synthesizer combines the advisory and database answers of a hybrid
// query into a single coherent response.
type Synthesizer struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewSynthesizer creates the hybrid answer synthesizer
func NewSynthesizer(llm interfaces.LLMService, logger arbor.ILogger) *Synthesizer {
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize merges both answers, using the router's reasoning to
// explain why both sources were consulted.
func (s *Synthesizer) Synthesize(ctx context.Context, userQuery, routerReasoning, unstructuredAnswer, structuredAnswer string) (string, error) {
	prompt := strings.Replace(synthesisPrompt, "{query}", userQuery, 1)
	prompt = strings.Replace(prompt, "{reasoning}", routerReasoning, 1)
	prompt = strings.Replace(prompt, "{unstructured_answer}", unstructuredAnswer, 1)
	prompt = strings.Replace(prompt, "{structured_answer}", structuredAnswer, 1)

	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("answer synthesis failed: %w", err)
	}

	s.logger.Debug().Msg("Hybrid answers synthesized")
	return strings.TrimSpace(answer), nil
}
