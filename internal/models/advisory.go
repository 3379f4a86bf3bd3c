package models

import (
	"fmt"
	"strings"
)

// BlockType identifies the kind of markdown block in an advisory document.
type BlockType string

const (
	BlockTypeHeader    BlockType = "header"
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeListItem  BlockType = "list_item"
	BlockTypeCodeBlock BlockType = "code_block"
	BlockTypeTable     BlockType = "table"
)

// Block is a single flat markdown block parsed from an advisory.
type Block struct {
	Type    BlockType
	Content string

	// Level is set for headers (1 = top-level)
	Level int

	// Language is set for code blocks when the fence declares one
	Language string

	// TableHeader and TableRows are set for tables
	TableHeader []string
	TableRows   [][]string
}

// Section is a coherent slice of an advisory: a header plus every block
// until the next header. Sections are the retrieval unit fed to the LLM.
type Section struct {
	Header Block
	Blocks []Block
}

// Text renders the section for inclusion in an LLM context window.
func (s *Section) Text() string {
	parts := []string{fmt.Sprintf("## %s", s.Header.Content)}
	for _, block := range s.Blocks {
		switch block.Type {
		case BlockTypeParagraph, BlockTypeListItem, BlockTypeTable:
			parts = append(parts, block.Content)
		case BlockTypeCodeBlock:
			parts = append(parts, fmt.Sprintf("```%s\n%s\n```", block.Language, block.Content))
		}
	}
	return strings.Join(parts, "\n\n")
}

// HasCodeBlocks reports whether the section contains any code blocks,
// which require a model for chunk summarization.
func (s *Section) HasCodeBlocks() bool {
	for _, b := range s.Blocks {
		if b.Type == BlockTypeCodeBlock {
			return true
		}
	}
	return false
}

// Advisory is a parsed security advisory document.
type Advisory struct {
	Filename         string
	Path             string
	Title            string
	ExecutiveSummary string
	Blocks           []Block
	Sections         []*Section
}

// Chunk is a small unit of advisory text prepared for embedding.
// SectionIndex points back into the owning advisory's Sections slice.
type Chunk struct {
	Text             string
	AdvisoryFilename string
	SectionIndex     int
	SourceType       BlockType
}

// SourceReference identifies the provenance of a retrieved advisory section.
type SourceReference struct {
	AdvisoryTitle    string `json:"advisory_title"`
	SectionHeader    string `json:"section_header"`
	AdvisoryFilename string `json:"advisory_filename"`
}

// AdvisoryAnswer is the result of an unstructured advisory query.
// Sources preserves retrieval rank order, most relevant first.
type AdvisoryAnswer struct {
	Answer  string
	Query   string
	Sources []SourceReference
}

// QueryResult is the agent's final output for one user query. Answer
// carries the contributing handler's text unmodified; Sources is the
// advisory provenance for the caller to render however it likes.
type QueryResult struct {
	Answer  string
	Sources []SourceReference
}
