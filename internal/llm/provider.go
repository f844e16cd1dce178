package llm

import (
	"context"
)

// Provider defines the interface for LLM providers. The orchestrator depends
// only on this interface so tests can substitute a mock.
type Provider interface {
	// GenerateContent sends the conversation to the model and returns its
	// raw text response. The system instruction carries the tool catalogue
	// and formatting rules; turns carry the user/model history.
	GenerateContent(ctx context.Context, turns []Turn, systemInstruction string) (*Response, error)

	// Model returns the model identifier this provider is configured with.
	Model() string
}

// Role represents the role of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"  // User turn represents user input or tool output
	RoleModel Role = "model" // Model turn represents a prior model response
)

// Turn is a single entry in the conversation sent to the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage tracks token usage for one generation request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response represents the model's reply.
type Response struct {
	// Text is the raw model output. The caller is responsible for parsing
	// tool invocations out of it.
	Text string `json:"text"`

	// Model is the model that actually served the request.
	Model string `json:"model"`

	Usage Usage `json:"usage"`
}
