package telegram

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/history"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

const longPollTimeout = 30 // seconds, Telegram-side

const greeting = "Hi! I manage your Obsidian vault. Tell me what to note down, " +
	"which tasks to create, or what to remind you about."

// Handler processes inbound user messages.
type Handler interface {
	HandleUserMessage(ctx context.Context, chatID int64, text string)
}

// Connector runs the long-polling loop and routes updates to the handler.
// Senders from unlisted user ids are logged and ignored.
type Connector struct {
	bot     *telego.Bot
	sender  *Sender
	handler Handler
	history *history.Store
	logger  *logger.Logger

	allowedUserIDs []int64
}

// NewConnector creates a connector. allowedUserIDs must be non-empty; the
// bot refuses to run wide open.
func NewConnector(bot *telego.Bot, sender *Sender, handler Handler, hist *history.Store, allowedUserIDs []int64, log *logger.Logger) (*Connector, error) {
	if len(allowedUserIDs) == 0 {
		return nil, fmt.Errorf("telegram: no allowed user ids configured")
	}
	return &Connector{
		bot:            bot,
		sender:         sender,
		handler:        handler,
		history:        hist,
		logger:         log,
		allowedUserIDs: allowedUserIDs,
	}, nil
}

// Start begins long polling. Non-blocking; the loop stops when ctx is
// cancelled.
func (c *Connector) Start(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: longPollTimeout,
	})
	if err != nil {
		return fmt.Errorf("telegram: start long polling: %w", err)
	}

	c.logger.Info("telegram connector started",
		logger.Field{Key: "allowed_users", Value: len(c.allowedUserIDs)})

	go c.loop(ctx, updates)
	return nil
}

func (c *Connector) loop(ctx context.Context, updates <-chan telego.Update) {
	for update := range updates {
		message := update.Message
		if message == nil || message.Text == "" {
			continue
		}
		if message.From == nil || !slices.Contains(c.allowedUserIDs, message.From.ID) {
			var fromID int64
			if message.From != nil {
				fromID = message.From.ID
			}
			c.logger.Warn("ignoring message from unlisted user",
				logger.Field{Key: "user_id", Value: fromID})
			continue
		}

		// Each update gets its own goroutine; a slow LLM round-trip must not
		// stall the polling loop.
		go c.handle(ctx, message.Chat.ID, message.Text)
	}
	c.logger.Info("telegram update stream closed")
}

func (c *Connector) handle(ctx context.Context, chatID int64, text string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic handling telegram update", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "chat_id", Value: chatID})
		}
	}()

	switch strings.TrimSpace(text) {
	case "/start":
		if err := c.sender.SendMessage(ctx, chatID, greeting); err != nil {
			c.logger.Warn("cannot send greeting", logger.Field{Key: "error", Value: err.Error()})
		}
	case "/cancel":
		if err := c.history.Clear(); err != nil {
			c.logger.Warn("cannot clear history", logger.Field{Key: "error", Value: err.Error()})
		}
		if err := c.sender.SendMessage(ctx, chatID, "Conversation history cleared."); err != nil {
			c.logger.Warn("cannot confirm cancel", logger.Field{Key: "error", Value: err.Error()})
		}
	default:
		c.handler.HandleUserMessage(ctx, chatID, text)
	}
}
