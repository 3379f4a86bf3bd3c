package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseModelSpec(t *testing.T) {
	tests := []struct {
		name             string
		spec             string
		expectedProvider string
		expectedModel    string
	}{
		{"empty", "", "", ""},
		{"provider and model", "gemini:gemini-3-flash-preview", "gemini", "gemini-3-flash-preview"},
		{"claude spec", "claude:claude-haiku-3-5-20241022", "claude", "claude-haiku-3-5-20241022"},
		{"bare provider", "ollama", "ollama", ""},
		{"bare model", "llama3.2", "", "llama3.2"},
		{"whitespace trimmed", "  gemini  ", "gemini", ""},
		{"model with colon in name", "ollama:llama3.2:latest", "ollama", "llama3.2:latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := ParseModelSpec(tt.spec)
			assert.Equal(t, tt.expectedProvider, provider)
			assert.Equal(t, tt.expectedModel, model)
		})
	}
}
