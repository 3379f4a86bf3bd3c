package advisories

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// stubSummarizer answers every Generate call with a fixed summary
type stubSummarizer struct {
	summary string
	err     error
	prompts []string
}

func (s *stubSummarizer) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func (s *stubSummarizer) GenerateContent(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSummarizer) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSummarizer) ModelName() string { return "stub:summarizer" }
func (s *stubSummarizer) Close() error      { return nil }

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "empty",
			text:     "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			text:     "   \n  ",
			expected: nil,
		},
		{
			name:     "single sentence",
			text:     "Attackers can steal cookies.",
			expected: []string{"Attackers can steal cookies."},
		},
		{
			name: "multiple sentences",
			text: "Attackers can steal cookies. Upgrade to 2.0.1 now! Is your deployment affected? Check the advisory.",
			expected: []string{
				"Attackers can steal cookies.",
				"Upgrade to 2.0.1 now!",
				"Is your deployment affected?",
				"Check the advisory.",
			},
		},
		{
			name:     "version numbers are not boundaries",
			text:     "Upgrade to version 2.0.1 before deploying.",
			expected: []string{"Upgrade to version 2.0.1 before deploying."},
		},
		{
			name:     "period before lowercase is not a boundary",
			text:     "See example.com for details. it explains the fix.",
			expected: []string{"See example.com for details. it explains the fix."},
		},
		{
			name:     "no trailing punctuation",
			text:     "First point here. Second point without a period",
			expected: []string{"First point here.", "Second point without a period"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitSentences(tt.text))
		})
	}
}

func TestTableRowChunkText(t *testing.T) {
	text := tableRowChunkText(
		[]string{"Package Name", "Fixed Version"},
		[]string{"widget-lib", "2.0.1"},
	)
	assert.Equal(t, `package_name: "widget-lib", fixed_version: "2.0.1"`, text)

	// Short rows stop at the last available value
	text = tableRowChunkText([]string{"A", "B", "C"}, []string{"1", "2"})
	assert.Equal(t, `a: "1", b: "2"`, text)
}

func chunkTestAdvisory(sections ...*models.Section) *models.Advisory {
	return &models.Advisory{
		Filename: "advisory_001.md",
		Title:    "Test Advisory",
		Sections: sections,
	}
}

func TestChunks_SentencesAndTables(t *testing.T) {
	advisory := chunkTestAdvisory(
		&models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: "Impact"},
			Blocks: []models.Block{
				{Type: models.BlockTypeParagraph, Content: "Attackers can steal cookies. Sessions may be hijacked."},
				{Type: models.BlockTypeListItem, Content: "Upgrade immediately."},
			},
		},
		&models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: "Affected Versions"},
			Blocks: []models.Block{
				{
					Type:        models.BlockTypeTable,
					TableHeader: []string{"Package", "Version"},
					TableRows:   [][]string{{"widget-lib", "1.x"}, {"widget-core", "0.9"}},
				},
			},
		},
	)

	chunks, err := Chunks(context.Background(), advisory, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	assert.Equal(t, "Attackers can steal cookies.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SectionIndex)
	assert.Equal(t, models.BlockTypeParagraph, chunks[0].SourceType)

	assert.Equal(t, "Sessions may be hijacked.", chunks[1].Text)
	assert.Equal(t, "Upgrade immediately.", chunks[2].Text)
	assert.Equal(t, models.BlockTypeListItem, chunks[2].SourceType)

	assert.Equal(t, `package: "widget-lib", version: "1.x"`, chunks[3].Text)
	assert.Equal(t, 1, chunks[3].SectionIndex)
	assert.Equal(t, models.BlockTypeTable, chunks[3].SourceType)
	assert.Equal(t, `package: "widget-core", version: "0.9"`, chunks[4].Text)

	for _, chunk := range chunks {
		assert.Equal(t, "advisory_001.md", chunk.AdvisoryFilename)
	}
}

func TestChunks_CodeBlocksSummarized(t *testing.T) {
	advisory := chunkTestAdvisory(
		&models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: "Proof of Concept"},
			Blocks: []models.Block{
				{Type: models.BlockTypeCodeBlock, Content: "alert(document.cookie)", Language: "javascript"},
			},
		},
	)

	summarizer := &stubSummarizer{summary: "  Pops an alert showing the session cookie.  "}
	chunks, err := Chunks(context.Background(), advisory, summarizer)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Pops an alert showing the session cookie.", chunks[0].Text)
	assert.Equal(t, models.BlockTypeCodeBlock, chunks[0].SourceType)

	require.Len(t, summarizer.prompts, 1)
	assert.True(t, strings.Contains(summarizer.prompts[0], "alert(document.cookie)"))
}

func TestChunks_CodeBlockWithoutSummarizer(t *testing.T) {
	advisory := chunkTestAdvisory(
		&models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: "Proof of Concept"},
			Blocks: []models.Block{
				{Type: models.BlockTypeCodeBlock, Content: "alert(1)"},
			},
		},
	)

	_, err := Chunks(context.Background(), advisory, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Proof of Concept")
}

func TestChunks_SummarizerErrorPropagates(t *testing.T) {
	advisory := chunkTestAdvisory(
		&models.Section{
			Header: models.Block{Type: models.BlockTypeHeader, Content: "Exploit"},
			Blocks: []models.Block{
				{Type: models.BlockTypeCodeBlock, Content: "alert(1)"},
			},
		},
	)

	summarizer := &stubSummarizer{err: errors.New("api unavailable")}
	_, err := Chunks(context.Background(), advisory, summarizer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api unavailable")
}
