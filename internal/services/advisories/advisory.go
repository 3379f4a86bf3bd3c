package advisories

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/models"
)

const titlePrefix = "Security Advisory: "

// Service loads and holds the parsed advisory corpus. Every document is
// validated against the advisory structure on load; a malformed file
// fails the whole load rather than being silently skipped.
type Service struct {
	directory  string
	logger     arbor.ILogger
	advisories map[string]*models.Advisory
	filenames  []string
}

// NewService loads every *.md file from the directory, in filename
// order, parsing and validating each one.
func NewService(directory string, logger arbor.ILogger) (*Service, error) {
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("advisory directory not found: %s", directory)
	}

	service := &Service{
		directory:  directory,
		logger:     logger,
		advisories: make(map[string]*models.Advisory),
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read advisory directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(directory, name)
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read advisory %s: %w", name, err)
		}

		advisory, err := ParseAdvisory(name, path, source)
		if err != nil {
			return nil, err
		}

		service.advisories[name] = advisory
		service.filenames = append(service.filenames, name)
	}

	logger.Info().
		Int("count", len(service.filenames)).
		Str("directory", directory).
		Msg("Advisories loaded")

	return service, nil
}

// ParseAdvisory parses markdown source into a validated advisory
func ParseAdvisory(filename, path string, source []byte) (*models.Advisory, error) {
	blocks := ParseMarkdown(source)

	if err := validateStructure(filename, blocks); err != nil {
		return nil, err
	}

	return &models.Advisory{
		Filename:         filename,
		Path:             path,
		Title:            strings.TrimPrefix(blocks[0].Content, titlePrefix),
		ExecutiveSummary: blocks[3].Content,
		Blocks:           blocks,
		Sections:         extractSections(blocks),
	}, nil
}

// Get returns the advisory with the given filename
func (s *Service) Get(filename string) (*models.Advisory, bool) {
	advisory, ok := s.advisories[filename]
	return advisory, ok
}

// All returns every advisory in filename order
func (s *Service) All() []*models.Advisory {
	result := make([]*models.Advisory, 0, len(s.filenames))
	for _, name := range s.filenames {
		result = append(result, s.advisories[name])
	}
	return result
}

// Filenames returns the loaded advisory filenames in order
func (s *Service) Filenames() []string {
	return append([]string(nil), s.filenames...)
}

// Len returns the number of loaded advisories
func (s *Service) Len() int {
	return len(s.filenames)
}

// validateStructure checks the advisory document structure:
//   - blocks[0]: header starting with "Security Advisory: "
//   - blocks[2]: "Executive Summary" header
//   - blocks[3]: executive summary paragraph
//   - ends with a "References" header plus list items, then a
//     "Credits" header plus paragraph
func validateStructure(filename string, blocks []models.Block) error {
	if len(blocks) < 4 {
		return fmt.Errorf("%s: advisory too short", filename)
	}

	if blocks[0].Type != models.BlockTypeHeader {
		return fmt.Errorf("%s: first block must be a header", filename)
	}
	if !strings.HasPrefix(blocks[0].Content, titlePrefix) {
		return fmt.Errorf("%s: first header must start with 'Security Advisory: '", filename)
	}

	if blocks[2].Type != models.BlockTypeHeader || blocks[2].Content != "Executive Summary" {
		return fmt.Errorf("%s: third block must be 'Executive Summary' header", filename)
	}
	if blocks[3].Type != models.BlockTypeParagraph {
		return fmt.Errorf("%s: fourth block must be executive summary paragraph", filename)
	}

	last := len(blocks) - 1
	if blocks[last].Type != models.BlockTypeParagraph {
		return fmt.Errorf("%s: last block must be a paragraph (Credits content)", filename)
	}
	if blocks[last-1].Type != models.BlockTypeHeader || blocks[last-1].Content != "Credits" {
		return fmt.Errorf("%s: second-to-last block must be 'Credits' header", filename)
	}

	referencesIdx := -1
	for i := last - 2; i >= 0; i-- {
		if blocks[i].Type == models.BlockTypeHeader && blocks[i].Content == "References" {
			referencesIdx = i
			break
		}
	}
	if referencesIdx < 0 {
		return fmt.Errorf("%s: missing 'References' header", filename)
	}

	hasListItems := false
	for i := referencesIdx + 1; i < last-1; i++ {
		if blocks[i].Type == models.BlockTypeListItem {
			hasListItems = true
			break
		}
	}
	if !hasListItems {
		return fmt.Errorf("%s: 'References' section must contain list items", filename)
	}

	return nil
}

// extractSections groups blocks into sections, each holding everything
// between two headers. The References link list is dropped from
// retrieval; the Credits section is kept as the final section.
func extractSections(blocks []models.Block) []*models.Section {
	last := len(blocks) - 1
	creditsSection := &models.Section{
		Header: blocks[last-1],
		Blocks: []models.Block{blocks[last]},
	}

	referencesIdx := last - 2
	for referencesIdx >= 0 {
		block := blocks[referencesIdx]
		if block.Type == models.BlockTypeHeader && block.Content == "References" {
			break
		}
		referencesIdx--
	}

	var sections []*models.Section
	var current *models.Section
	var header models.Block

	for _, block := range blocks[:referencesIdx] {
		if block.Type == models.BlockTypeHeader {
			if current != nil {
				sections = append(sections, current)
				current = nil
			}
			header = block
		} else {
			if current == nil {
				current = &models.Section{Header: header, Blocks: []models.Block{block}}
			} else {
				current.Blocks = append(current.Blocks, block)
			}
		}
	}
	if current != nil {
		sections = append(sections, current)
	}

	return append(sections, creditsSection)
}
