package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
	"github.com/ternarybob/vulnaq/internal/services/advisories"
)

// RouteValidationError reports a router response that doesn't match the
// expected format. Routing makes a single LLM call and never retries;
// callers decide how to degrade.
type RouteValidationError struct {
	Message string
}

func (e *RouteValidationError) Error() string {
	return "route validation failed: " + e.Message
}

// jsonObjectRegex extracts the first JSON object from a response that
// may carry surrounding prose or a markdown fence.
var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// Router classifies user queries and transforms them for the downstream
// handlers using a single LLM call.
type Router struct {
	llm            interfaces.LLMService
	logger         arbor.ILogger
	promptTemplate string
}

// NewRouter builds the router. The classification prompt is pre-built
// from the advisory titles and executive summaries plus the database
// schema description, leaving only the {query} placeholder.
func NewRouter(llm interfaces.LLMService, advisoryService *advisories.Service, schemaDescription string, logger arbor.ILogger) *Router {
	template := strings.Replace(routerPromptTemplate, "{advisory_summaries}", formatAdvisorySummaries(advisoryService), 1)
	template = strings.Replace(template, "{database_schema}", schemaDescription, 1)

	return &Router{
		llm:            llm,
		logger:         logger,
		promptTemplate: template,
	}
}

// Route classifies a query and returns the routing decision.
// Returns a RouteValidationError when the model's response cannot be
// parsed or violates the field requirements of its route type.
func (r *Router) Route(ctx context.Context, query string) (models.RouteResult, error) {
	prompt := strings.Replace(r.promptTemplate, "{query}", query, 1)

	response, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		return models.RouteResult{}, fmt.Errorf("routing failed: %w", err)
	}

	result, err := parseRouteResponse(response)
	if err != nil {
		return models.RouteResult{}, err
	}

	r.logger.Debug().
		Str("route_type", result.RouteType.String()).
		Str("reasoning", result.Reasoning).
		Msg("Query routed")

	return result, nil
}

// routePayload mirrors the JSON object the router prompt requests.
// Pointer fields distinguish null from empty so the must-be-null rules
// can be enforced exactly.
type routePayload struct {
	RouteType         *string `json:"route_type"`
	UnstructuredQuery *string `json:"unstructured_query"`
	StructuredQuery   *string `json:"structured_query"`
	Reasoning         string  `json:"reasoning"`
}

// parseRouteResponse parses and validates a router response
func parseRouteResponse(response string) (models.RouteResult, error) {
	raw := jsonObjectRegex.FindString(response)
	if raw == "" {
		return models.RouteResult{}, &RouteValidationError{Message: fmt.Sprintf("no JSON object found in response: %s", truncate(response, 200))}
	}

	var payload routePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.RouteResult{}, &RouteValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if payload.RouteType == nil {
		return models.RouteResult{}, &RouteValidationError{Message: "missing required field: route_type"}
	}
	routeType, ok := models.ParseRouteType(strings.ToLower(*payload.RouteType))
	if !ok {
		return models.RouteResult{}, &RouteValidationError{Message: fmt.Sprintf("unknown route_type: '%s'. Must be one of: none, unstructured, structured, hybrid", *payload.RouteType)}
	}

	if err := validatePayload(routeType, &payload); err != nil {
		return models.RouteResult{}, err
	}

	return models.RouteResult{
		RouteType:         routeType,
		UnstructuredQuery: deref(payload.UnstructuredQuery),
		StructuredQuery:   deref(payload.StructuredQuery),
		Reasoning:         payload.Reasoning,
	}, nil
}

// validatePayload enforces the field requirements per route type
func validatePayload(routeType models.RouteType, payload *routePayload) error {
	report := func(message string) error {
		return &RouteValidationError{Message: message}
	}

	if payload.Reasoning == "" {
		return report("reasoning is required")
	}

	switch routeType {
	case models.RouteNone:
		if payload.UnstructuredQuery != nil {
			return report("unstructured_query must be null when route_type is 'none'")
		}
		if payload.StructuredQuery != nil {
			return report("structured_query must be null when route_type is 'none'")
		}

	case models.RouteUnstructured:
		if deref(payload.UnstructuredQuery) == "" {
			return report("unstructured_query is required when route_type is 'unstructured'")
		}
		if payload.StructuredQuery != nil {
			return report("structured_query must be null when route_type is 'unstructured'")
		}

	case models.RouteStructured:
		if payload.UnstructuredQuery != nil {
			return report("unstructured_query must be null when route_type is 'structured'")
		}
		if deref(payload.StructuredQuery) == "" {
			return report("structured_query is required when route_type is 'structured'")
		}

	case models.RouteHybrid:
		if deref(payload.UnstructuredQuery) == "" {
			return report("unstructured_query is required when route_type is 'hybrid'")
		}
		if deref(payload.StructuredQuery) == "" {
			return report("structured_query is required when route_type is 'hybrid'")
		}
	}

	return nil
}

// formatAdvisorySummaries renders advisory titles and executive
// summaries for the router prompt.
func formatAdvisorySummaries(advisoryService *advisories.Service) string {
	var lines []string
	for _, advisory := range advisoryService.All() {
		lines = append(lines, fmt.Sprintf("- **%s**", advisory.Title))
		lines = append(lines, fmt.Sprintf("  %s", advisory.ExecutiveSummary))
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
