// Package telegram connects the bot to Telegram via the Telego library:
// long polling for inbound updates, and an outbound sender that survives the
// model's imperfect Markdown.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

// API is the slice of the Telego bot the sender needs.
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Sender delivers messages to chats. It implements the messaging collaborator
// the reply tool depends on.
type Sender struct {
	bot    API
	logger *logger.Logger
}

// NewSender creates a sender over bot.
func NewSender(bot API, log *logger.Logger) *Sender {
	return &Sender{bot: bot, logger: log}
}

// SendMessage sends text to the target chat with Markdown formatting. The
// markup is repaired first; if Telegram still rejects it, the send is retried
// once with formatting disabled so the user always gets the content.
func (s *Sender) SendMessage(ctx context.Context, targetID int64, text string) error {
	clean := sanitizeMarkup(text)

	_, err := s.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: targetID},
		Text:      clean,
		ParseMode: telego.ModeMarkdown,
	})
	if err == nil {
		return nil
	}

	s.logger.Warn("formatted send rejected, retrying as plain text",
		logger.Field{Key: "chat_id", Value: targetID},
		logger.Field{Key: "error", Value: err.Error()})

	_, err = s.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: targetID},
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send message to %d: %w", targetID, err)
	}
	return nil
}

// sanitizeMarkup repairs the markup subset the model tends to emit: leading
// "* " list markers become bullet glyphs, and unterminated */_ emphasis is
// closed so Telegram's Markdown parser accepts the message.
func sanitizeMarkup(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "* ") {
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + "• " + trimmed[2:]
		}
	}
	repaired := strings.Join(lines, "\n")

	for _, marker := range []string{"*", "_"} {
		if strings.Count(repaired, marker)%2 != 0 {
			repaired += marker
		}
	}
	return repaired
}
