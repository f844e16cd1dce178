package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/history"
)

type fakeMessenger struct {
	sent    []sentMessage
	sendErr error
}

type sentMessage struct {
	targetID int64
	text     string
}

func (f *fakeMessenger) SendMessage(ctx context.Context, targetID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{targetID: targetID, text: text})
	return nil
}

func TestReplyToolSendsToChatID(t *testing.T) {
	m := &fakeMessenger{}
	tool := NewReplyTool(m)

	res := tool.Execute(context.Background(), map[string]any{
		"message": "done",
		"chat_id": float64(100),
	})
	require.Equal(t, StatusSuccess, res.Status)
	require.Len(t, m.sent, 1)
	assert.Equal(t, int64(100), m.sent[0].targetID)
	assert.Equal(t, "done", m.sent[0].text)
}

func TestReplyToolChatIDPriority(t *testing.T) {
	m := &fakeMessenger{}
	tool := NewReplyTool(m)

	res := tool.Execute(context.Background(), map[string]any{
		"message": "done",
		"chat_id": float64(100),
		"user_id": float64(200),
	})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int64(100), m.sent[0].targetID)
}

func TestReplyToolUserIDFallback(t *testing.T) {
	m := &fakeMessenger{}
	tool := NewReplyTool(m)

	res := tool.Execute(context.Background(), map[string]any{
		"message": "done",
		"user_id": "200",
	})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int64(200), m.sent[0].targetID)
}

func TestReplyToolMissingParams(t *testing.T) {
	tool := NewReplyTool(&fakeMessenger{})

	res := tool.Execute(context.Background(), map[string]any{"chat_id": float64(1)})
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "message")

	res = tool.Execute(context.Background(), map[string]any{"message": "hi"})
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "chat_id")
}

func TestReplyToolSendFailure(t *testing.T) {
	tool := NewReplyTool(&fakeMessenger{sendErr: fmt.Errorf("network down")})

	res := tool.Execute(context.Background(), map[string]any{
		"message": "hi",
		"chat_id": float64(1),
	})
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "network down")
}

func TestFinishToolClearsHistory(t *testing.T) {
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	require.NoError(t, store.Append(history.Entry{Role: history.RoleUser, Content: "hi"}))

	tool := NewFinishTool(store)
	res := tool.Execute(context.Background(), nil)

	assert.Equal(t, StatusFinished, res.Status)
	assert.Equal(t, 0, store.Len())
}
