package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vulnaq/internal/models"
)

// stubRouter returns a fixed routing decision or error
type stubRouter struct {
	result models.RouteResult
	err    error
}

func (s *stubRouter) Route(ctx context.Context, query string) (models.RouteResult, error) {
	return s.result, s.err
}

// stubAdvisoriesHandler records queries and returns a fixed answer
type stubAdvisoriesHandler struct {
	answer  *models.AdvisoryAnswer
	err     error
	queries []string
}

func (s *stubAdvisoriesHandler) Query(ctx context.Context, unstructuredQuery string) (*models.AdvisoryAnswer, error) {
	s.queries = append(s.queries, unstructuredQuery)
	return s.answer, s.err
}

// stubDatabaseHandler records queries and returns a fixed answer
type stubDatabaseHandler struct {
	answer  string
	err     error
	queries []string
}

func (s *stubDatabaseHandler) Query(ctx context.Context, structuredQuery string) (string, error) {
	s.queries = append(s.queries, structuredQuery)
	return s.answer, s.err
}

// stubSynthesizer records its inputs and returns a fixed answer
type stubSynthesizer struct {
	answer string
	err    error
	calls  int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, userQuery, routerReasoning, unstructuredAnswer, structuredAnswer string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func advisoryAnswer(answer string, sources ...models.SourceReference) *models.AdvisoryAnswer {
	return &models.AdvisoryAnswer{Answer: answer, Sources: sources}
}

func TestAgent_NoneRoute(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType: models.RouteNone,
		Reasoning: "Not about security",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{}
	databaseHandler := &stubDatabaseHandler{}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, &stubSynthesizer{}, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "What's for lunch?")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "Not about security")
	assert.Contains(t, result.Answer, "security vulnerability assistant")
	assert.Empty(t, result.Sources)
	assert.Empty(t, advisoriesHandler.queries)
	assert.Empty(t, databaseHandler.queries)
}

func TestAgent_UnstructuredRoute(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType:         models.RouteUnstructured,
		UnstructuredQuery: "How does XSS work?",
		Reasoning:         "Concept question",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{
		answer: advisoryAnswer("XSS injects scripts into pages.", models.SourceReference{
			AdvisoryTitle:    "Cross-Site Scripting in widget-lib",
			SectionHeader:    "Impact",
			AdvisoryFilename: "advisory_001.md",
		}),
	}
	databaseHandler := &stubDatabaseHandler{}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, &stubSynthesizer{}, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "Tell me about XSS")
	require.NoError(t, err)

	// The handler receives the router's transformed query, not the raw one
	require.Len(t, advisoriesHandler.queries, 1)
	assert.Equal(t, "How does XSS work?", advisoriesHandler.queries[0])
	assert.Empty(t, databaseHandler.queries)

	// The handler's answer comes back unmodified; provenance rides alongside
	assert.Equal(t, "XSS injects scripts into pages.", result.Answer)
	assert.Equal(t, []models.SourceReference{{
		AdvisoryTitle:    "Cross-Site Scripting in widget-lib",
		SectionHeader:    "Impact",
		AdvisoryFilename: "advisory_001.md",
	}}, result.Sources)
}

func TestAgent_UnstructuredRoute_NoSources(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType:         models.RouteUnstructured,
		UnstructuredQuery: "q",
		Reasoning:         "r",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{answer: advisoryAnswer("Nothing found.")}

	agent := NewAgent(router, advisoriesHandler, &stubDatabaseHandler{}, &stubSynthesizer{}, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "Nothing found.", result.Answer)
	assert.Empty(t, result.Sources)
}

func TestAgent_StructuredRoute(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType:       models.RouteStructured,
		StructuredQuery: "Count critical CVEs",
		Reasoning:       "Data lookup",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{}
	databaseHandler := &stubDatabaseHandler{answer: "There are 42 critical CVEs."}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, &stubSynthesizer{}, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "How many critical CVEs?")
	require.NoError(t, err)

	assert.Equal(t, "There are 42 critical CVEs.", result.Answer)
	assert.Empty(t, result.Sources)
	require.Len(t, databaseHandler.queries, 1)
	assert.Equal(t, "Count critical CVEs", databaseHandler.queries[0])
	assert.Empty(t, advisoriesHandler.queries)
}

func TestAgent_HybridRoute(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType:         models.RouteHybrid,
		UnstructuredQuery: "How to fix XSS?",
		StructuredQuery:   "Get CVE-2024-1234",
		Reasoning:         "Needs both",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{
		answer: advisoryAnswer("Escape output.", models.SourceReference{
			AdvisoryTitle:    "XSS Advisory",
			SectionHeader:    "Remediation",
			AdvisoryFilename: "advisory_001.md",
		}),
	}
	databaseHandler := &stubDatabaseHandler{answer: "CVE-2024-1234: CVSS 8.1"}
	synthesizer := &stubSynthesizer{answer: "Combined answer."}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, synthesizer, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "Tell me about CVE-2024-1234 and how to fix it")
	require.NoError(t, err)

	assert.Equal(t, 1, synthesizer.calls)
	// The synthesized text is returned exactly as produced
	assert.Equal(t, "Combined answer.", result.Answer)
	assert.Equal(t, []models.SourceReference{{
		AdvisoryTitle:    "XSS Advisory",
		SectionHeader:    "Remediation",
		AdvisoryFilename: "advisory_001.md",
	}}, result.Sources)

	require.Len(t, advisoriesHandler.queries, 1)
	assert.Equal(t, "How to fix XSS?", advisoriesHandler.queries[0])
	require.Len(t, databaseHandler.queries, 1)
	assert.Equal(t, "Get CVE-2024-1234", databaseHandler.queries[0])
}

func TestAgent_ValidationErrorDegradesToHybrid(t *testing.T) {
	router := &stubRouter{err: &RouteValidationError{Message: "missing route_type"}}
	advisoriesHandler := &stubAdvisoriesHandler{answer: advisoryAnswer("Advisory answer.")}
	databaseHandler := &stubDatabaseHandler{answer: "Database answer."}
	synthesizer := &stubSynthesizer{answer: "Fallback combined answer."}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, synthesizer, createTestLogger())
	result, err := agent.ProcessUserQuery(context.Background(), "raw user query")
	require.NoError(t, err)

	// Both handlers receive the raw query
	require.Len(t, advisoriesHandler.queries, 1)
	assert.Equal(t, "raw user query", advisoriesHandler.queries[0])
	require.Len(t, databaseHandler.queries, 1)
	assert.Equal(t, "raw user query", databaseHandler.queries[0])

	assert.Equal(t, 1, synthesizer.calls)
	assert.Equal(t, "Fallback combined answer.", result.Answer)
}

func TestAgent_NonValidationRouterErrorPropagates(t *testing.T) {
	router := &stubRouter{err: errors.New("api unavailable")}
	advisoriesHandler := &stubAdvisoriesHandler{}
	databaseHandler := &stubDatabaseHandler{}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, &stubSynthesizer{}, createTestLogger())
	_, err := agent.ProcessUserQuery(context.Background(), "query")
	require.Error(t, err)

	assert.Empty(t, advisoriesHandler.queries)
	assert.Empty(t, databaseHandler.queries)
}

func TestAgent_HybridHandlerFailureFailsQuery(t *testing.T) {
	router := &stubRouter{result: models.RouteResult{
		RouteType:         models.RouteHybrid,
		UnstructuredQuery: "uq",
		StructuredQuery:   "sq",
		Reasoning:         "r",
	}}
	advisoriesHandler := &stubAdvisoriesHandler{answer: advisoryAnswer("ok")}
	databaseHandler := &stubDatabaseHandler{err: errors.New("database unavailable")}
	synthesizer := &stubSynthesizer{}

	agent := NewAgent(router, advisoriesHandler, databaseHandler, synthesizer, createTestLogger())
	_, err := agent.ProcessUserQuery(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, 0, synthesizer.calls)
}
