package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderRotatesResponses(t *testing.T) {
	m := NewMockProvider("one", "two")

	r1, err := m.GenerateContent(context.Background(), nil, "")
	require.NoError(t, err)
	r2, err := m.GenerateContent(context.Background(), nil, "")
	require.NoError(t, err)
	r3, err := m.GenerateContent(context.Background(), nil, "")
	require.NoError(t, err)

	assert.Equal(t, "one", r1.Text)
	assert.Equal(t, "two", r2.Text)
	assert.Equal(t, "one", r3.Text)
}

func TestMockProviderRecordsCalls(t *testing.T) {
	m := NewMockProvider("ok")

	turns := []Turn{{Role: RoleUser, Content: "hello"}}
	_, err := m.GenerateContent(context.Background(), turns, "system text")
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, turns, calls[0].Turns)
	assert.Equal(t, "system text", calls[0].SystemInstruction)
}

func TestMockProviderErrors(t *testing.T) {
	wantErr := errors.New("boom")
	m := NewErrorProvider(wantErr)

	_, err := m.GenerateContent(context.Background(), nil, "")
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockProviderFailFirst(t *testing.T) {
	m := NewMockProvider("ok").FailFirst(2)

	_, err := m.GenerateContent(context.Background(), nil, "")
	require.Error(t, err)
	_, err = m.GenerateContent(context.Background(), nil, "")
	require.Error(t, err)

	resp, err := m.GenerateContent(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}
