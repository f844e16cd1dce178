package tools

import (
	"context"
)

// Messenger is the outbound messaging transport consumed by the reply tool.
// The Telegram sender implements it.
type Messenger interface {
	SendMessage(ctx context.Context, targetID int64, text string) error
}

// ReplyTool sends a message to the user through the messaging transport.
type ReplyTool struct {
	messenger Messenger
}

// NewReplyTool creates a ReplyTool bound to a messenger.
func NewReplyTool(m Messenger) *ReplyTool {
	return &ReplyTool{messenger: m}
}

func (t *ReplyTool) Name() string {
	return "reply"
}

func (t *ReplyTool) Description() string {
	return "Sends a message to the user. Use this for every answer, confirmation or question addressed to the user."
}

func (t *ReplyTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"message"},
		Params: map[string]string{
			"message": "The text to send to the user. Telegram markdown is supported.",
			"chat_id": "Target chat id. Preferred over user_id when both are present.",
			"user_id": "Target user id, used when chat_id is absent.",
		},
	}
}

func (t *ReplyTool) Execute(ctx context.Context, params map[string]any) Result {
	message, errRes := requireString(params, "message", "message")
	if errRes != nil {
		return *errRes
	}

	// chat_id takes priority over user_id when both are given.
	targetID, ok := int64Param(params, "chat_id")
	if !ok {
		targetID, ok = int64Param(params, "user_id")
	}
	if !ok {
		return Errorf("missing target: provide 'chat_id' or 'user_id'")
	}

	if err := t.messenger.SendMessage(ctx, targetID, message); err != nil {
		return Errorf("failed to send message: %v", err)
	}

	res := Success("Message sent.")
	res.Data = map[string]any{"message_to_send": message, "sent_directly": true}
	return res
}
