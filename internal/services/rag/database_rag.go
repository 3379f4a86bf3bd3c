package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// DatabaseRag answers structured queries with an agentic tool loop over
// the vulnerability database. The model may call one tool per round
// trip; the loop ends when the model answers in text, repeats a call it
// already made, or exhausts the iteration budget.
type DatabaseRag struct {
	llm           interfaces.LLMService
	store         interfaces.StructuredStore
	maxIterations int
	logger        arbor.ILogger
}

// NewDatabaseRag creates the structured query handler.
// maxIterations bounds the tool-call round trips per query.
func NewDatabaseRag(llm interfaces.LLMService, store interfaces.StructuredStore, maxIterations int, logger arbor.ILogger) *DatabaseRag {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &DatabaseRag{
		llm:           llm,
		store:         store,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Query runs the tool loop and returns the synthesized answer.
// Tool failures are folded into the transcript rather than aborting, so
// the model can see the error and correct itself. The transcript is
// local to this invocation; nothing carries over between queries.
func (r *DatabaseRag) Query(ctx context.Context, structuredQuery string) (string, error) {
	tools := r.store.Tools()
	messages := []interfaces.Message{{Role: "user", Content: structuredQuery}}
	seen := make(map[string]bool)
	var history []models.ToolCallRecord

	for i := 0; i < r.maxIterations; i++ {
		resp, err := r.llm.GenerateContent(ctx, &interfaces.GenerateRequest{
			Messages:          messages,
			SystemInstruction: databaseRagSystemPrompt,
			Tools:             tools,
		})
		if err != nil {
			return "", fmt.Errorf("database query generation failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			r.logger.Debug().Int("iterations", i).Msg("Database query answered")
			return strings.TrimSpace(resp.Text), nil
		}

		// One tool at a time: extra calls in the same response are dropped
		call := resp.ToolCalls[0]
		key := toolCallKey(call)
		if seen[key] {
			r.logger.Debug().
				Str("tool", call.Name).
				Msg("Duplicate tool call, forcing final answer")
			break
		}
		seen[key] = true

		argsJSON, _ := json.Marshal(call.Arguments)
		messages = append(messages, interfaces.Message{
			Role:    "assistant",
			Content: fmt.Sprintf("Calling tool %s(%s)", call.Name, string(argsJSON)),
		})

		result, err := r.store.CallTool(ctx, call.Name, call.Arguments)
		if err != nil {
			r.logger.Debug().
				Str("tool", call.Name).
				Err(err).
				Msg("Tool call failed, folding error into transcript")
			history = append(history, models.ToolCallRecord{
				ToolName:  call.Name,
				Arguments: call.Arguments,
				Err:       err.Error(),
			})
			messages = append(messages, interfaces.Message{
				Role:    "user",
				Content: fmt.Sprintf("Tool '%s' failed: %v", call.Name, err),
			})
			continue
		}

		r.logger.Debug().
			Str("tool", call.Name).
			Int("result_length", len(result)).
			Msg("Tool call completed")
		history = append(history, models.ToolCallRecord{
			ToolName:  call.Name,
			Arguments: call.Arguments,
			Result:    result,
		})
		messages = append(messages, interfaces.Message{
			Role:    "user",
			Content: fmt.Sprintf("Tool '%s' returned:\n%s", call.Name, result),
		})
	}

	// Budget exhausted or call repeated: force an answer with tools
	// withheld so the model cannot stall.
	r.logger.Debug().Int("tool_calls", len(history)).Msg("Forcing final answer")
	messages = append(messages, interfaces.Message{Role: "user", Content: databaseRagForceAnswer})
	resp, err := r.llm.GenerateContent(ctx, &interfaces.GenerateRequest{
		Messages:          messages,
		SystemInstruction: databaseRagSystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("forced final answer generation failed: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// toolCallKey identifies a tool call by name plus canonical argument
// JSON. Go marshals map keys in sorted order, so equal argument sets
// produce equal keys regardless of insertion order.
func toolCallKey(call models.ToolCall) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		return call.Name
	}
	return call.Name + ":" + string(args)
}
