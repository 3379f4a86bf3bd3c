package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/models"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		expectedTool string
		ok           bool
	}{
		{
			name:         "bare json",
			text:         `{"tool": "get_statistics", "arguments": {"group_by": "severity"}}`,
			expectedTool: "get_statistics",
			ok:           true,
		},
		{
			name:         "fenced json",
			text:         "```json\n{\"tool\": \"list_packages\", \"arguments\": {}}\n```",
			expectedTool: "list_packages",
			ok:           true,
		},
		{
			name:         "fence without language",
			text:         "```\n{\"tool\": \"list_packages\", \"arguments\": {}}\n```",
			expectedTool: "list_packages",
			ok:           true,
		},
		{
			name: "plain text answer",
			text: "There are 42 vulnerabilities in total.",
			ok:   false,
		},
		{
			name: "json without tool field",
			text: `{"answer": "42"}`,
			ok:   false,
		},
		{
			name: "malformed json",
			text: `{"tool": "x", "arguments":`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseToolCall(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				require.NotNil(t, call)
				assert.Equal(t, tt.expectedTool, call.Tool)
				assert.NotNil(t, call.Arguments)
			}
		})
	}
}

func TestRenderMessagesAsPrompt(t *testing.T) {
	system := ""
	prompt := renderMessagesAsPrompt([]interfaces.Message{
		{Role: "system", Content: "You are a data analyst."},
		{Role: "user", Content: "How many CVEs?"},
		{Role: "assistant", Content: "Calling tool get_statistics({})"},
		{Role: "user", Content: "Tool 'get_statistics' returned:\n{}"},
	}, &system)

	assert.Equal(t, "You are a data analyst.", system)
	assert.Contains(t, prompt, "User: How many CVEs?")
	assert.Contains(t, prompt, "Assistant: Calling tool get_statistics({})")
	// The prompt ends with an open assistant turn
	assert.True(t, len(prompt) > 0)
	assert.Contains(t, prompt[len(prompt)-10:], "Assistant:")
}

func TestRenderMessagesAsPrompt_KeepsExplicitSystem(t *testing.T) {
	system := "Explicit instruction."
	renderMessagesAsPrompt([]interfaces.Message{
		{Role: "system", Content: "Embedded instruction."},
		{Role: "user", Content: "q"},
	}, &system)

	assert.Equal(t, "Explicit instruction.", system)
}

func TestAppendToolInstructions(t *testing.T) {
	tools := []models.ToolSchema{
		{
			Name:        "get_statistics",
			Description: "Get aggregate statistics",
			InputSchema: map[string]interface{}{"type": "object"},
		},
	}

	system := appendToolInstructions("Base instruction.", tools)
	assert.Contains(t, system, "Base instruction.")
	assert.Contains(t, system, "get_statistics: Get aggregate statistics")
	assert.Contains(t, system, `{"tool": "<tool name>", "arguments": {<arguments>}}`)
}
