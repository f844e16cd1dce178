package tools

import (
	"context"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/history"
)

// FinishTool marks the end of a conversation and clears the history log so the
// next exchange starts fresh. It always succeeds.
type FinishTool struct {
	history *history.Store
}

// NewFinishTool creates a FinishTool bound to a history store.
func NewFinishTool(h *history.Store) *FinishTool {
	return &FinishTool{history: h}
}

func (t *FinishTool) Name() string {
	return "finish"
}

func (t *FinishTool) Description() string {
	return "Ends the current conversation. Call this when the user's request is fully handled and no further reply is needed."
}

func (t *FinishTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    nil,
		Params:      map[string]string{},
	}
}

func (t *FinishTool) Execute(ctx context.Context, params map[string]any) Result {
	if t.history != nil {
		if err := t.history.Clear(); err != nil {
			// Clearing is best-effort; finish never fails.
			return Result{Status: StatusFinished, Message: "Conversation finished (history not cleared: " + err.Error() + ")."}
		}
	}
	return Result{Status: StatusFinished, Message: "Conversation history cleared."}
}
