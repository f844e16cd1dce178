package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidConfig(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug json", "debug", "json"},
		{"info text", "info", "text"},
		{"warn json", "warn", "json"},
		{"error text", "error", "text"},
		{"defaults", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(Config{Level: tt.level, Format: tt.format, Output: "stderr"})
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose", Format: "text", Output: "stderr"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewInvalidFormat(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "xml", Output: "stderr"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestNewFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "helper.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("started", Field{Key: "component", Value: "test"})

	assert.FileExists(t, path)
}

func TestWithFields(t *testing.T) {
	log, err := New(Config{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	child := log.With(Field{Key: "component", Value: "scheduler"})
	assert.NotNil(t, child)
	assert.NotSame(t, log, child)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Info("dropped")
	log.Error("dropped", assert.AnError)
}
