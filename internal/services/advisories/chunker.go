package advisories

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// sentenceBoundary matches a sentence end (period, exclamation or
// question mark) followed by whitespace and a capital letter.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+([A-Z])`)

const summarizePromptTemplate = `Summarize what the following code does in one or two plain sentences, focusing on the security-relevant behavior:

%s`

// SplitSentences splits text on sentence boundaries, keeping the
// closing punctuation with the preceding sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		// loc[3] is the end of the punctuation group, loc[4] the start
		// of the next sentence's capital letter
		end := loc[3]
		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = loc[4]
	}
	if sentence := strings.TrimSpace(text[start:]); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

// tableRowChunkText renders one table row as key-value pairs:
// key1: "val1", key2: "val2", ...
func tableRowChunkText(headers, values []string) string {
	parts := make([]string, 0, len(headers))
	for i, header := range headers {
		if i >= len(values) {
			break
		}
		key := strings.ReplaceAll(strings.ToLower(header), " ", "_")
		parts = append(parts, fmt.Sprintf("%s: %q", key, values[i]))
	}
	return strings.Join(parts, ", ")
}

// Chunks generates embedding chunks from every section of an advisory:
//   - paragraphs and list items are split into sentences
//   - tables yield one chunk per data row as key-value pairs
//   - code blocks are summarized with the given model
//
// Returns an error if a section contains code blocks and summarizer is nil.
func Chunks(ctx context.Context, advisory *models.Advisory, summarizer interfaces.LLMService) ([]models.Chunk, error) {
	var chunks []models.Chunk

	for sectionIdx, section := range advisory.Sections {
		if section.HasCodeBlocks() && summarizer == nil {
			return nil, fmt.Errorf("section '%s' contains code blocks but no model was provided for summarization", section.Header.Content)
		}

		for _, block := range section.Blocks {
			switch block.Type {
			case models.BlockTypeParagraph, models.BlockTypeListItem:
				for _, sentence := range SplitSentences(block.Content) {
					chunks = append(chunks, models.Chunk{
						Text:             sentence,
						AdvisoryFilename: advisory.Filename,
						SectionIndex:     sectionIdx,
						SourceType:       block.Type,
					})
				}

			case models.BlockTypeTable:
				for _, row := range block.TableRows {
					chunks = append(chunks, models.Chunk{
						Text:             tableRowChunkText(block.TableHeader, row),
						AdvisoryFilename: advisory.Filename,
						SectionIndex:     sectionIdx,
						SourceType:       models.BlockTypeTable,
					})
				}

			case models.BlockTypeCodeBlock:
				summary, err := summarizer.Generate(ctx, fmt.Sprintf(summarizePromptTemplate, block.Content))
				if err != nil {
					return nil, fmt.Errorf("failed to summarize code block in section '%s': %w", section.Header.Content, err)
				}
				chunks = append(chunks, models.Chunk{
					Text:             strings.TrimSpace(summary),
					AdvisoryFilename: advisory.Filename,
					SectionIndex:     sectionIdx,
					SourceType:       models.BlockTypeCodeBlock,
				})
			}
		}
	}

	return chunks, nil
}
