package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/models"
)

// QueryRouter classifies a user query
type QueryRouter interface {
	Route(ctx context.Context, query string) (models.RouteResult, error)
}

// UnstructuredHandler answers a query from the advisory corpus
type UnstructuredHandler interface {
	Query(ctx context.Context, unstructuredQuery string) (*models.AdvisoryAnswer, error)
}

// StructuredHandler answers a query from the vulnerability database
type StructuredHandler interface {
	Query(ctx context.Context, structuredQuery string) (string, error)
}

// AnswerSynthesizer merges hybrid answers
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, userQuery, routerReasoning, unstructuredAnswer, structuredAnswer string) (string, error)
}

// Agent orchestrates the full pipeline: route the query, dispatch to
// the matching handler(s), and synthesize hybrid answers.
type Agent struct {
	router      QueryRouter
	advisories  UnstructuredHandler
	database    StructuredHandler
	synthesizer AnswerSynthesizer
	logger      arbor.ILogger
}

// NewAgent wires the pipeline components together
func NewAgent(router QueryRouter, advisoriesHandler UnstructuredHandler, databaseHandler StructuredHandler, synthesizer AnswerSynthesizer, logger arbor.ILogger) *Agent {
	return &Agent{
		router:      router,
		advisories:  advisoriesHandler,
		database:    databaseHandler,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// ProcessUserQuery routes a query and returns the contributing
// handler's answer unmodified, with advisory sources alongside for the
// caller to render. An invalid routing response degrades to the hybrid
// path with the raw query, since consulting both sources is the safe
// default. Any handler failure on the chosen path propagates to the
// caller.
func (a *Agent) ProcessUserQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	route, err := a.router.Route(ctx, query)
	if err != nil {
		var validationErr *RouteValidationError
		if !errors.As(err, &validationErr) {
			return nil, err
		}
		a.logger.Warn().
			Str("reason", validationErr.Message).
			Msg("Routing response invalid, degrading to hybrid")
		route = models.RouteResult{
			RouteType:         models.RouteHybrid,
			UnstructuredQuery: query,
			StructuredQuery:   query,
			Reasoning:         "Routing failed; consulting both sources as a fallback",
		}
	}

	a.logger.Info().
		Str("route_type", route.RouteType.String()).
		Msg("Processing user query")

	switch route.RouteType {
	case models.RouteNone:
		return &models.QueryResult{
			Answer: fmt.Sprintf(offTopicResponseTemplate, route.Reasoning),
		}, nil

	case models.RouteUnstructured:
		result, err := a.advisories.Query(ctx, route.UnstructuredQuery)
		if err != nil {
			return nil, err
		}
		return &models.QueryResult{Answer: result.Answer, Sources: result.Sources}, nil

	case models.RouteStructured:
		answer, err := a.database.Query(ctx, route.StructuredQuery)
		if err != nil {
			return nil, err
		}
		return &models.QueryResult{Answer: answer}, nil

	case models.RouteHybrid:
		return a.processHybrid(ctx, query, route)

	default:
		return nil, fmt.Errorf("unhandled route type: %s", route.RouteType)
	}
}

// processHybrid consults both sources in order and synthesizes the
// answers. Either handler failing fails the whole query; a partial
// answer presented as complete would be misleading.
func (a *Agent) processHybrid(ctx context.Context, query string, route models.RouteResult) (*models.QueryResult, error) {
	advisoryResult, err := a.advisories.Query(ctx, route.UnstructuredQuery)
	if err != nil {
		return nil, err
	}

	databaseAnswer, err := a.database.Query(ctx, route.StructuredQuery)
	if err != nil {
		return nil, err
	}

	combined, err := a.synthesizer.Synthesize(ctx, query, route.Reasoning, advisoryResult.Answer, databaseAnswer)
	if err != nil {
		return nil, err
	}

	return &models.QueryResult{Answer: combined, Sources: advisoryResult.Sources}, nil
}
