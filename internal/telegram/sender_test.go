package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

type fakeBot struct {
	calls      []*telego.SendMessageParams
	failMarked bool // reject sends that carry a parse mode
	failAll    bool
}

func (f *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.calls = append(f.calls, params)
	if f.failAll {
		return nil, errors.New("telegram: 400 bad request")
	}
	if f.failMarked && params.ParseMode != "" {
		return nil, errors.New("telegram: can't parse entities")
	}
	return &telego.Message{}, nil
}

func TestSendMessageUsesMarkdown(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, logger.Discard())

	require.NoError(t, s.SendMessage(context.Background(), 42, "hello *there*"))

	require.Len(t, bot.calls, 1)
	assert.Equal(t, int64(42), bot.calls[0].ChatID.ID)
	assert.Equal(t, telego.ModeMarkdown, bot.calls[0].ParseMode)
	assert.Equal(t, "hello *there*", bot.calls[0].Text)
}

func TestSendMessageFallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{failMarked: true}
	s := NewSender(bot, logger.Discard())

	require.NoError(t, s.SendMessage(context.Background(), 1, "broken *markup"))

	require.Len(t, bot.calls, 2)
	assert.NotEmpty(t, bot.calls[0].ParseMode)
	assert.Empty(t, bot.calls[1].ParseMode)
	// The fallback carries the original text, not the repaired one.
	assert.Equal(t, "broken *markup", bot.calls[1].Text)
}

func TestSendMessageBothAttemptsFail(t *testing.T) {
	bot := &fakeBot{failAll: true}
	s := NewSender(bot, logger.Discard())

	err := s.SendMessage(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.Len(t, bot.calls, 2)
}

func TestSanitizeMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "balanced untouched", in: "a *b* and _c_", want: "a *b* and _c_"},
		{name: "unterminated star closed", in: "a *b", want: "a *b*"},
		{name: "unterminated underscore closed", in: "a _b", want: "a _b_"},
		{name: "list marker to bullet", in: "* first\n* second", want: "• first\n• second"},
		{name: "indented list marker", in: "  * nested", want: "  • nested"},
		{name: "star mid-line kept", in: "2 * 3 = 6 * 1", want: "2 * 3 = 6 * 1"},
		{name: "plain text untouched", in: "no markup here", want: "no markup here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeMarkup(tt.in))
		})
	}
}
