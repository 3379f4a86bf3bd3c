package advisories

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/vulnaq/internal/models"
)

// ParseMarkdown parses a markdown document into a flat list of blocks:
// headers, paragraphs, code blocks, list items and tables. Each list
// item becomes its own block so chunking can treat items independently.
func ParseMarkdown(source []byte) []models.Block {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []models.Block
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			blocks = append(blocks, models.Block{
				Type:    models.BlockTypeHeader,
				Content: string(n.Text(source)),
				Level:   n.Level,
			})

		case *ast.Paragraph:
			blocks = append(blocks, models.Block{
				Type:    models.BlockTypeParagraph,
				Content: joinLines(n, source),
			})

		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(source))
			}
			blocks = append(blocks, models.Block{
				Type:     models.BlockTypeCodeBlock,
				Content:  strings.TrimRight(code.String(), "\n"),
				Language: string(n.Language(source)),
			})

		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				blocks = append(blocks, models.Block{
					Type:    models.BlockTypeListItem,
					Content: string(item.Text(source)),
				})
			}

		case *east.Table:
			blocks = append(blocks, parseTable(n, source))
		}
	}

	return blocks
}

// joinLines renders a block's source lines as a single space-joined string
func joinLines(node ast.Node, source []byte) string {
	parts := make([]string, 0, node.Lines().Len())
	for i := 0; i < node.Lines().Len(); i++ {
		line := node.Lines().At(i)
		parts = append(parts, strings.TrimSpace(string(line.Value(source))))
	}
	return strings.Join(parts, " ")
}

// parseTable converts a goldmark table node into a table block carrying
// the column headers and data rows.
func parseTable(table *east.Table, source []byte) models.Block {
	var header []string
	var rows [][]string

	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *east.TableHeader:
			header = tableCells(row, source)
		case *east.TableRow:
			rows = append(rows, tableCells(row, source))
		}
	}

	return models.Block{
		Type:        models.BlockTypeTable,
		Content:     renderTable(header, rows),
		TableHeader: header,
		TableRows:   rows,
	}
}

func tableCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, strings.TrimSpace(string(cell.Text(source))))
	}
	return cells
}

// renderTable reconstructs the table in markdown form for contexts that
// want the table as plain text.
func renderTable(header []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	separators := make([]string, len(header))
	for i := range separators {
		separators[i] = "---"
	}
	sb.WriteString("| " + strings.Join(separators, " | ") + " |")
	for _, row := range rows {
		sb.WriteString("\n| " + strings.Join(row, " | ") + " |")
	}
	return sb.String()
}
