package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. It supports chat completions and native tool use; the
// Anthropic API has no embedding endpoint, so Embed always fails.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	maxTokens int
	model     string
}

// NewClaudeService creates a new Claude LLM service instance.
// modelOverride replaces the configured model when non-empty, which is
// how "claude:<model>" specs select a model at startup.
func NewClaudeService(claudeConfig *common.ClaudeConfig, modelOverride string, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set via ANTHROPIC_API_KEY, VULNAQ_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	model := claudeConfig.Model
	if modelOverride != "" {
		model = modelOverride
	}
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	rateLimit, err := time.ParseDuration(claudeConfig.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", claudeConfig.RateLimit, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(rateLimit), 1),
		timeout:   timeout,
		maxTokens: maxTokens,
		model:     model,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized successfully")

	return service, nil
}

// Generate produces a completion for a single prompt with no tools.
func (s *ClaudeService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.GenerateContent(ctx, &interfaces.GenerateRequest{
		Messages: []interfaces.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateContent generates a completion for a full request, exposing
// tools to the model when the request carries tool schemas.
func (s *ClaudeService) GenerateContent(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(timeoutCtx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	claudeMessages, systemText, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}
	if req.SystemInstruction != "" {
		systemText = req.SystemInstruction
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	} else if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToClaude(req.Tools)
	}

	startTime := time.Now()
	s.logger.Debug().
		Int("message_count", len(req.Messages)).
		Int("tool_count", len(req.Tools)).
		Msg("Starting Claude chat completion")

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(req.Messages)).
			Msg("Claude chat completion failed")
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	result := &interfaces.GenerateResponse{Model: s.ModelName()}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			args, err := decodeToolInput(toolUse.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to decode tool input for '%s': %w", toolUse.Name, err)
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: args,
			})
		}
	}
	result.Text = text.String()

	if result.Text == "" && len(result.ToolCalls) == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	s.logger.Debug().
		Int("response_length", len(result.Text)).
		Int("tool_calls", len(result.ToolCalls)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude chat completion completed successfully")

	return result, nil
}

// Embed is unsupported: the Anthropic API does not expose an embedding
// endpoint. Pair Claude with a Gemini or Ollama embedding service.
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding generation is not supported by the Claude provider")
}

// ModelName returns the model identifier as "claude:<model>"
func (s *ClaudeService) ModelName() string {
	return "claude:" + s.model
}

// Close releases resources and performs cleanup operations
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	// Claude client doesn't require explicit cleanup
	return nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam format.
// Maps Role values to provider's expected values and maintains chronological ordering.
// Extracts system messages separately for use with System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue // Don't add system messages to messages array
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			// Default to user for unknown roles
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// convertToolsToClaude converts provider-neutral tool schemas into the
// Anthropic tool parameter format.
func convertToolsToClaude(tools []models.ToolSchema) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := tool.InputSchema["properties"].(map[string]interface{}); ok {
			schema.Properties = props
		}
		schema.Required = stringSlice(tool.InputSchema["required"])

		params = append(params, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}
	return params
}

// decodeToolInput round-trips a tool_use input through JSON to get a
// plain map regardless of the SDK's internal representation.
func decodeToolInput(input interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	args := map[string]interface{}{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// stringSlice coerces a JSON-schema "required" value into []string.
// Handles both []string and []interface{} shapes.
func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		result := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
