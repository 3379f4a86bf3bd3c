package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// GeminiService implements the LLMService interface using the Google
// Gemini API. It provides chat completions, native tool use, and
// embeddings. Rate-limit errors are retried with backoff because the
// free tier's quota window trips easily during corpus embedding.
type GeminiService struct {
	config         *common.GeminiConfig
	logger         arbor.ILogger
	client         *genai.Client
	limiter        *rate.Limiter
	retry          *RetryConfig
	timeout        time.Duration
	model          string
	embeddingModel string
}

// NewGeminiService creates a new Gemini LLM service instance.
// modelOverride replaces the configured model when non-empty, which is
// how "gemini:<model>" specs select a model at startup.
func NewGeminiService(geminiConfig *common.GeminiConfig, modelOverride string, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini service (set via GEMINI_API_KEY, VULNAQ_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	model := geminiConfig.Model
	if modelOverride != "" {
		model = modelOverride
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	embeddingModel := geminiConfig.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}

	rateLimit, err := time.ParseDuration(geminiConfig.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", geminiConfig.RateLimit, err)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:         geminiConfig,
		logger:         logger,
		client:         client,
		limiter:        rate.NewLimiter(rate.Every(rateLimit), 1),
		retry:          NewDefaultRetryConfig(),
		timeout:        timeout,
		model:          model,
		embeddingModel: embeddingModel,
	}

	logger.Debug().
		Str("model", model).
		Str("embedding_model", embeddingModel).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// Generate produces a completion for a single prompt with no tools.
func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
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
func (s *GeminiService) GenerateContent(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents, systemText, err := convertMessagesToGemini(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}
	if req.SystemInstruction != "" {
		systemText = req.SystemInstruction
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = convertToolsToGemini(req.Tools)
	}

	startTime := time.Now()
	s.logger.Debug().
		Int("message_count", len(req.Messages)).
		Int("tool_count", len(req.Tools)).
		Msg("Starting Gemini chat completion")

	var resp *genai.GenerateContentResponse
	err = s.withRetry(timeoutCtx, "generate", func() error {
		var genErr error
		resp, genErr = s.client.Models.GenerateContent(timeoutCtx, s.model, contents, config)
		return genErr
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(req.Messages)).
			Msg("Gemini chat completion failed")
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	result := &interfaces.GenerateResponse{
		Model: s.ModelName(),
		Text:  resp.Text(),
	}
	for _, call := range resp.FunctionCalls() {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Args,
		})
	}

	if result.Text == "" && len(result.ToolCalls) == 0 {
		return nil, fmt.Errorf("no response generated from chat model")
	}

	s.logger.Debug().
		Int("response_length", len(result.Text)).
		Int("tool_calls", len(result.ToolCalls)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed successfully")

	return result, nil
}

// Embed generates an embedding vector for the given text
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result *genai.EmbedContentResponse
	err := s.withRetry(timeoutCtx, "embed", func() error {
		var embErr error
		result, embErr = s.client.Models.EmbedContent(timeoutCtx, s.embeddingModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
		return embErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	return embedding, nil
}

// ModelName returns the model identifier as "gemini:<model>"
func (s *GeminiService) ModelName() string {
	return "gemini:" + s.model
}

// Close releases resources and performs cleanup operations
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	// genai.Client doesn't require explicit cleanup
	s.client = nil
	return nil
}

// withRetry runs fn, retrying on rate-limit errors with backoff.
// The rate limiter gates every attempt, including retries.
func (s *GeminiService) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRateLimitError(lastErr) || attempt == s.retry.MaxRetries {
			return lastErr
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(lastErr))
		s.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Gemini rate limit hit, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content format.
// Maps Role values to provider's expected values and maintains chronological ordering.
// Extracts system messages separately for use with SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
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

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue // Don't add system messages to contents
		}

		var geminiRole genai.Role
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser // Default to user for unknown roles
		}

		contents = append(contents, &genai.Content{
			Role:  string(geminiRole),
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// convertToolsToGemini converts provider-neutral tool schemas into Gemini
// function declarations.
func convertToolsToGemini(tools []models.ToolSchema) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertToGenaiSchema(tool.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGenaiSchema recursively converts a JSON-schema map into the
// genai.Schema representation.
func convertToGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		switch t {
		case "object":
			result.Type = genai.TypeObject
		case "string":
			result.Type = genai.TypeString
		case "number":
			result.Type = genai.TypeNumber
		case "integer":
			result.Type = genai.TypeInteger
		case "boolean":
			result.Type = genai.TypeBoolean
		case "array":
			result.Type = genai.TypeArray
		}
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				result.Properties[name] = convertToGenaiSchema(propMap)
			}
		}
	}
	result.Required = stringSlice(schema["required"])
	if items, ok := schema["items"].(map[string]interface{}); ok {
		result.Items = convertToGenaiSchema(items)
	}
	if enum := stringSlice(schema["enum"]); len(enum) > 0 {
		result.Enum = enum
	}

	return result
}
