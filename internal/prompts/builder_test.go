package prompts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/tools"
)

type fakeTool struct {
	def tools.Definition
}

func (f *fakeTool) Name() string                 { return f.def.Name }
func (f *fakeTool) Description() string          { return f.def.Description }
func (f *fakeTool) Definition() tools.Definition { return f.def }
func (f *fakeTool) Execute(_ context.Context, _ map[string]any) tools.Result {
	return tools.Success("ok")
}

func fixedClock() time.Time {
	return time.Date(2025, 4, 25, 10, 30, 0, 0, time.UTC)
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(logger.Discard())
	require.NoError(t, reg.Register(&fakeTool{def: tools.Definition{
		Name:        "reply",
		Description: "Send a message to the user.",
		Required:    []string{"message"},
		Params:      map[string]string{"message": "string", "chat_id": "integer"},
	}}))
	require.NoError(t, reg.Register(&fakeTool{def: tools.Definition{
		Name:        "finish",
		Description: "End the conversation.",
	}}))
	return reg
}

func TestBuildSystemPromptStructure(t *testing.T) {
	b := NewBuilder(newRegistry(t), fixedClock)

	prompt := b.BuildSystemPrompt("", "")

	assert.Contains(t, prompt, "The current date and time is: 2025-04-25 10:30:00")
	assert.Contains(t, prompt, "No specific vault file context provided")
	assert.Contains(t, prompt, "Available Tools:")
	assert.Contains(t, prompt, "Task Creation Template:")
	assert.Contains(t, prompt, "Your response MUST be a JSON array")
	assert.Contains(t, prompt, "Instructions:")
	assert.NotContains(t, prompt, "VAULT CONTEXT")
	assert.NotContains(t, prompt, "Recent Conversation:")
}

func TestBuildSystemPromptWithHistory(t *testing.T) {
	b := NewBuilder(newRegistry(t), fixedClock)

	prompt := b.BuildSystemPrompt("", "user: hi\nmodel: hello")

	assert.Contains(t, prompt, "Recent Conversation:\nuser: hi\nmodel: hello")
}

func TestBuildSystemPromptWithVaultContext(t *testing.T) {
	b := NewBuilder(newRegistry(t), fixedClock)

	prompt := b.BuildSystemPrompt("File: a.md\n\n```\nhello\n```\n\n", "")

	start := strings.Index(prompt, "--- VAULT CONTEXT START ---")
	end := strings.Index(prompt, "--- VAULT CONTEXT END ---")
	require.NotEqual(t, -1, start)
	require.NotEqual(t, -1, end)
	assert.Less(t, start, end)
	assert.Contains(t, prompt[start:end], "File: a.md")
}

func TestToolDescriptionsListParams(t *testing.T) {
	b := NewBuilder(newRegistry(t), fixedClock)

	desc := b.formatToolDescriptions()

	assert.Contains(t, desc, "- reply: Send a message to the user.")
	assert.Contains(t, desc, "message (required)")
	assert.Contains(t, desc, "chat_id (optional)")
	assert.Contains(t, desc, "- finish: End the conversation.")
	assert.Contains(t, desc, "Parameters: None")
}

func TestToolDescriptionsEmptyRegistry(t *testing.T) {
	b := NewBuilder(tools.NewRegistry(logger.Discard()), fixedClock)
	assert.Equal(t, "No tools available.", b.formatToolDescriptions())
}
