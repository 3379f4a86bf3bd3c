package interfaces

import (
	"context"

	"github.com/ternarybob/vulnaq/internal/models"
)

// StructuredStore executes named, parameterized tools over relational
// vulnerability data.
type StructuredStore interface {
	// CallTool executes one tool and returns its result as JSON text.
	// Unknown tools, bad arguments and query failures return a ToolError
	// whose text is meant to be fed back to the model, not shown raw to
	// the end user.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error)

	// Tools returns the schemas of every available tool.
	Tools() []models.ToolSchema

	// SchemaDescription renders the table layout and supported operations
	// for inclusion in the router's classification prompt.
	SchemaDescription() string
}
