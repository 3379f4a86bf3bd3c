package models

// ToolSchema describes one callable tool in a provider-neutral form.
// InputSchema is a JSON-schema object ({"type": "object", "properties": ...})
// that each LLM adapter converts into its provider's tool-calling format.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallRecord is one executed tool call in a query transcript.
// Exactly one of Result or Err carries the outcome: tool failures are
// recorded rather than aborting the loop, so the model can see the error
// and correct itself.
type ToolCallRecord struct {
	ToolName  string
	Arguments map[string]interface{}
	Result    string
	Err       string
}
