package interfaces

import (
	"context"

	"github.com/ternarybob/vulnaq/internal/models"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// GenerateRequest is a provider-agnostic content generation request.
// When Tools is non-empty the provider exposes them to the model, which
// may answer with tool calls instead of text.
type GenerateRequest struct {
	Messages          []Message
	SystemInstruction string
	Tools             []models.ToolSchema
	Temperature       float32
	MaxTokens         int
}

// GenerateResponse is a provider-agnostic generation response. A response
// carries text, tool calls, or both (some providers emit explanatory text
// alongside a tool call).
type GenerateResponse struct {
	Text      string
	ToolCalls []models.ToolCall
	Model     string
}

// LLMService defines the interface for language model operations.
// Implementations may use cloud APIs (Claude, Gemini) or a local Ollama
// server; core components depend only on this interface.
type LLMService interface {
	// Generate produces a completion for a single prompt with no tools.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateContent produces a completion for a full request, including
	// optional tool schemas and a system instruction.
	GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the model identifier as "provider:model".
	ModelName() string

	// Close releases any client resources.
	Close() error
}
