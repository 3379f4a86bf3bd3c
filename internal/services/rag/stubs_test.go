package rag

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// stubLLM plays back scripted responses and records every request it
// received, so tests can assert on prompts and tool availability.
type stubLLM struct {
	generateResponses []string
	generateErr       error
	generateCalls     []string

	contentResponses []*interfaces.GenerateResponse
	contentErr       error
	contentCalls     []*interfaces.GenerateRequest
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.generateCalls = append(s.generateCalls, prompt)
	if s.generateErr != nil {
		return "", s.generateErr
	}
	if len(s.generateResponses) == 0 {
		return "", fmt.Errorf("stub has no generate responses left")
	}
	response := s.generateResponses[0]
	s.generateResponses = s.generateResponses[1:]
	return response, nil
}

func (s *stubLLM) GenerateContent(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	s.contentCalls = append(s.contentCalls, req)
	if s.contentErr != nil {
		return nil, s.contentErr
	}
	if len(s.contentResponses) == 0 {
		return nil, fmt.Errorf("stub has no content responses left")
	}
	response := s.contentResponses[0]
	s.contentResponses = s.contentResponses[1:]
	return response, nil
}

func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (s *stubLLM) ModelName() string { return "stub:test" }
func (s *stubLLM) Close() error      { return nil }

// stubStore records tool calls and replies from a canned result map.
type stubStore struct {
	results map[string]string
	err     error
	calls   []models.ToolCall
}

func (s *stubStore) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.calls = append(s.calls, models.ToolCall{Name: name, Arguments: args})
	if s.err != nil {
		return "", s.err
	}
	if result, ok := s.results[name]; ok {
		return result, nil
	}
	return "{}", nil
}

func (s *stubStore) Tools() []models.ToolSchema {
	return []models.ToolSchema{
		{Name: "get_statistics", Description: "stats", InputSchema: map[string]interface{}{"type": "object"}},
	}
}

func (s *stubStore) SchemaDescription() string { return "Schema: test" }

// stubIndex returns a fixed search result set
type stubIndex struct {
	results []interfaces.IndexSearchResult
	err     error
	queries []string
}

func (s *stubIndex) Store(ctx context.Context) error { return nil }

func (s *stubIndex) Search(ctx context.Context, query string, topK int) ([]interfaces.IndexSearchResult, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// testAdvisory builds a minimal advisory with the given sections
func testAdvisory(filename, title string, sectionHeaders ...string) *models.Advisory {
	advisory := &models.Advisory{
		Filename: filename,
		Title:    title,
	}
	for _, header := range sectionHeaders {
		advisory.Sections = append(advisory.Sections, &models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: header, Level: 2},
			Blocks: []models.Block{
				{Type: models.BlockTypeParagraph, Content: "Content of " + header + "."},
			},
		})
	}
	return advisory
}
