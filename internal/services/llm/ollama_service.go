package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

// OllamaService implements the LLMService interface against a local
// Ollama server's HTTP API. Ollama's generate endpoint has no native
// tool-use protocol, so tool schemas are rendered into the system
// prompt and tool calls are parsed back out of the response text.
type OllamaService struct {
	config         *common.OllamaConfig
	logger         arbor.ILogger
	httpClient     *http.Client
	baseURL        string
	model          string
	embeddingModel string
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// ollamaToolCall is the JSON shape the system prompt asks the model to
// emit when it wants to invoke a tool.
type ollamaToolCall struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// NewOllamaService creates a new Ollama LLM service instance.
// modelOverride replaces the configured model when non-empty, which is
// how "ollama:<model>" specs select a model at startup.
func NewOllamaService(ollamaConfig *common.OllamaConfig, modelOverride string, logger arbor.ILogger) (*OllamaService, error) {
	baseURL := strings.TrimRight(ollamaConfig.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := ollamaConfig.Model
	if modelOverride != "" {
		model = modelOverride
	}
	if model == "" {
		model = "llama3.2"
	}
	embeddingModel := ollamaConfig.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	timeout, err := time.ParseDuration(ollamaConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", ollamaConfig.Timeout, err)
	}

	service := &OllamaService{
		config:         ollamaConfig,
		logger:         logger,
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		model:          model,
		embeddingModel: embeddingModel,
	}

	logger.Debug().
		Str("base_url", baseURL).
		Str("model", model).
		Str("embedding_model", embeddingModel).
		Msg("Ollama LLM service initialized successfully")

	return service, nil
}

// Generate produces a completion for a single prompt with no tools.
func (s *OllamaService) Generate(ctx context.Context, prompt string) (string, error) {
	return s.generate(ctx, prompt, "")
}

// GenerateContent generates a completion for a full request. Tool
// schemas are described in the system prompt and any tool-call JSON in
// the response is parsed into ToolCalls.
func (s *OllamaService) GenerateContent(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty for chat completion")
	}

	system := req.SystemInstruction
	prompt := renderMessagesAsPrompt(req.Messages, &system)
	if len(req.Tools) > 0 {
		system = appendToolInstructions(system, req.Tools)
	}

	text, err := s.generate(ctx, prompt, system)
	if err != nil {
		return nil, err
	}

	result := &interfaces.GenerateResponse{Model: s.ModelName()}
	if call, ok := parseToolCall(text); ok && len(req.Tools) > 0 {
		result.ToolCalls = []models.ToolCall{{Name: call.Tool, Arguments: call.Arguments}}
	} else {
		result.Text = text
	}

	return result, nil
}

// Embed generates an embedding vector for the given text
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	body, err := json.Marshal(ollamaEmbeddingRequest{Model: s.embeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	respBody, err := s.post(ctx, "/api/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embResp ollamaEmbeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned from Ollama")
	}

	embedding := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// ModelName returns the model identifier as "ollama:<model>"
func (s *OllamaService) ModelName() string {
	return "ollama:" + s.model
}

// Close releases resources and performs cleanup operations
func (s *OllamaService) Close() error {
	s.logger.Debug().Msg("Closing Ollama LLM service")
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *OllamaService) generate(ctx context.Context, prompt, system string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	startTime := time.Now()
	respBody, err := s.post(ctx, "/api/generate", body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Ollama generation failed")
		return "", fmt.Errorf("Ollama generation failed: %w", err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}
	if strings.TrimSpace(genResp.Response) == "" {
		return "", fmt.Errorf("no response generated from Ollama")
	}

	s.logger.Debug().
		Int("response_length", len(genResp.Response)).
		Dur("duration", time.Since(startTime)).
		Msg("Ollama generation completed successfully")

	return genResp.Response, nil
}

func (s *OllamaService) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// renderMessagesAsPrompt flattens a conversation into the single-prompt
// format of Ollama's generate endpoint. The first system message is
// lifted into systemOut when no system instruction was set.
func renderMessagesAsPrompt(messages []interfaces.Message, systemOut *string) string {
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if *systemOut == "" {
				*systemOut = msg.Content
			}
		case "assistant":
			sb.WriteString("Assistant: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		default:
			sb.WriteString("User: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

// appendToolInstructions describes the available tools and the JSON
// calling convention in the system prompt.
func appendToolInstructions(system string, tools []models.ToolSchema) string {
	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	sb.WriteString("You have access to the following tools:\n\n")
	for _, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		sb.WriteString(fmt.Sprintf("- %s: %s\n  Input schema: %s\n", tool.Name, tool.Description, string(schema)))
	}
	sb.WriteString("\nTo call a tool, respond with ONLY a JSON object of the form:\n")
	sb.WriteString(`{"tool": "<tool name>", "arguments": {<arguments>}}`)
	sb.WriteString("\nOtherwise respond with your answer as plain text.")
	return sb.String()
}

// parseToolCall extracts a tool-call JSON object from response text.
// Accepts bare JSON or a ```json fenced block.
func parseToolCall(text string) (*ollamaToolCall, bool) {
	candidate := strings.TrimSpace(text)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")
		candidate = strings.TrimSpace(candidate)
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var call ollamaToolCall
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &call); err != nil {
		return nil, false
	}
	if call.Tool == "" {
		return nil, false
	}
	if call.Arguments == nil {
		call.Arguments = map[string]interface{}{}
	}
	return &call, true
}
