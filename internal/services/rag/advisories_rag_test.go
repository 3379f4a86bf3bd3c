package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vulnaq/internal/interfaces"
)

func TestAdvisoriesRag_Query(t *testing.T) {
	xss := testAdvisory("advisory_001.md", "Cross-Site Scripting in widget-lib", "Executive Summary", "Impact", "Remediation")
	sqli := testAdvisory("advisory_002.md", "SQL Injection in query-builder", "Executive Summary", "Attack Vector")

	index := &stubIndex{
		results: []interfaces.IndexSearchResult{
			{Advisory: xss, SectionIndices: []int{2, 0}},
			{Advisory: sqli, SectionIndices: []int{1}},
		},
	}
	llm := &stubLLM{generateResponses: []string{"  Sanitize all user input.  "}}

	handler := NewAdvisoriesRag(llm, index, 3, createTestLogger())
	result, err := handler.Query(context.Background(), "How do I prevent XSS?")
	require.NoError(t, err)

	assert.Equal(t, "Sanitize all user input.", result.Answer)
	assert.Equal(t, "How do I prevent XSS?", result.Query)

	// One source per included section, in retrieval rank order
	require.Len(t, result.Sources, 3)
	assert.Equal(t, "Remediation", result.Sources[0].SectionHeader)
	assert.Equal(t, "Executive Summary", result.Sources[1].SectionHeader)
	assert.Equal(t, "Cross-Site Scripting in widget-lib", result.Sources[0].AdvisoryTitle)
	assert.Equal(t, "Attack Vector", result.Sources[2].SectionHeader)
	assert.Equal(t, "advisory_002.md", result.Sources[2].AdvisoryFilename)

	// The prompt carries the retrieved section content and the query
	require.Len(t, llm.generateCalls, 1)
	prompt := llm.generateCalls[0]
	assert.Contains(t, prompt, "=== ADVISORY: Cross-Site Scripting in widget-lib ===")
	assert.Contains(t, prompt, "Content of Remediation.")
	assert.Contains(t, prompt, "How do I prevent XSS?")
}

func TestAdvisoriesRag_NoResults(t *testing.T) {
	index := &stubIndex{results: nil}
	llm := &stubLLM{}

	handler := NewAdvisoriesRag(llm, index, 3, createTestLogger())
	result, err := handler.Query(context.Background(), "something obscure")
	require.NoError(t, err)

	assert.Equal(t, advisoryNoResultsAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	// No generation happens when retrieval finds nothing
	assert.Empty(t, llm.generateCalls)
}

func TestAdvisoriesRag_SearchErrorPropagates(t *testing.T) {
	index := &stubIndex{err: errors.New("index unavailable")}
	handler := NewAdvisoriesRag(&stubLLM{}, index, 3, createTestLogger())

	_, err := handler.Query(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
}

func TestAdvisoriesRag_OutOfRangeSectionIndexSkipped(t *testing.T) {
	advisory := testAdvisory("advisory_001.md", "Test Advisory", "Only Section")
	index := &stubIndex{
		results: []interfaces.IndexSearchResult{
			{Advisory: advisory, SectionIndices: []int{0, 7}},
		},
	}
	llm := &stubLLM{generateResponses: []string{"answer"}}

	handler := NewAdvisoriesRag(llm, index, 3, createTestLogger())
	result, err := handler.Query(context.Background(), "query")
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Only Section", result.Sources[0].SectionHeader)
}
