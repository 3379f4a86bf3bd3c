package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// AdvisoriesRag answers unstructured queries with semantic search over
// the advisory corpus followed by grounded answer synthesis.
type AdvisoriesRag struct {
	llm    interfaces.LLMService
	index  interfaces.AdvisoryIndex
	topK   int
	logger arbor.ILogger
}

// NewAdvisoriesRag creates the unstructured query handler.
// topK bounds how many advisories are retrieved per query.
func NewAdvisoriesRag(llm interfaces.LLMService, index interfaces.AdvisoryIndex, topK int, logger arbor.ILogger) *AdvisoriesRag {
	if topK <= 0 {
		topK = 3
	}
	return &AdvisoriesRag{
		llm:    llm,
		index:  index,
		topK:   topK,
		logger: logger,
	}
}

// Query searches advisories and synthesizes an answer grounded in the
// retrieved sections. Sources preserve retrieval rank order.
func (r *AdvisoriesRag) Query(ctx context.Context, unstructuredQuery string) (*models.AdvisoryAnswer, error) {
	searchResults, err := r.index.Search(ctx, unstructuredQuery, r.topK)
	if err != nil {
		return nil, fmt.Errorf("advisory search failed: %w", err)
	}

	if len(searchResults) == 0 {
		return &models.AdvisoryAnswer{
			Answer:  advisoryNoResultsAnswer,
			Query:   unstructuredQuery,
			Sources: []models.SourceReference{},
		}, nil
	}

	context_, sources := formatAdvisoryContext(searchResults)

	prompt := strings.Replace(advisoryAnswerPrompt, "{context}", context_, 1)
	prompt = strings.Replace(prompt, "{query}", unstructuredQuery, 1)

	answer, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("advisory answer generation failed: %w", err)
	}

	r.logger.Debug().
		Int("advisories", len(searchResults)).
		Int("sources", len(sources)).
		Msg("Advisory query answered")

	return &models.AdvisoryAnswer{
		Answer:  strings.TrimSpace(answer),
		Query:   unstructuredQuery,
		Sources: sources,
	}, nil
}

// formatAdvisoryContext renders the retrieved sections into the prompt
// context and collects one source reference per included section.
func formatAdvisoryContext(searchResults []interfaces.IndexSearchResult) (string, []models.SourceReference) {
	var contextParts []string
	var sources []models.SourceReference

	for _, result := range searchResults {
		contextParts = append(contextParts, fmt.Sprintf("=== ADVISORY: %s ===\n", result.Advisory.Title))

		for _, idx := range result.SectionIndices {
			if idx < 0 || idx >= len(result.Advisory.Sections) {
				continue
			}
			section := result.Advisory.Sections[idx]
			sectionText := section.Text()
			if strings.TrimSpace(sectionText) == "" {
				continue
			}

			contextParts = append(contextParts, sectionText, "")
			sources = append(sources, models.SourceReference{
				AdvisoryTitle:    result.Advisory.Title,
				SectionHeader:    section.Header.Content,
				AdvisoryFilename: result.Advisory.Filename,
			})
		}

		contextParts = append(contextParts, "---\n")
	}

	return strings.TrimSpace(strings.Join(contextParts, "\n")), sources
}
