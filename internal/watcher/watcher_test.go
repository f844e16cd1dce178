package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/events"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

type recordingRederiver struct {
	mu       sync.Mutex
	paths    []string
	rebuilds int
}

func (r *recordingRederiver) RederivePath(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, relPath)
}

func (r *recordingRederiver) RebuildAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuilds++
}

func (r *recordingRederiver) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...), r.rebuilds
}

type recordingRegistrar struct {
	id   string
	expr string
}

func (r *recordingRegistrar) AddCron(id, expr string) error {
	r.id = id
	r.expr = expr
	return nil
}

func startWatcher(t *testing.T) (string, *recordingRederiver, *recordingRegistrar, *Watcher) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "03 - Tasks"), 0o755))

	rederiver := &recordingRederiver{}
	registrar := &recordingRegistrar{}

	w, err := New(root, "03 - Tasks", rederiver, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), registrar))
	t.Cleanup(w.Stop)

	return root, rederiver, registrar, w
}

func waitForPath(t *testing.T, rederiver *recordingRederiver, want string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		paths, _ := rederiver.snapshot()
		for _, p := range paths {
			if p == want {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond, "never saw %s", want)
}

func TestStartRunsColdScanAndRegistersRebuild(t *testing.T) {
	_, rederiver, registrar, _ := startWatcher(t)

	_, rebuilds := rederiver.snapshot()
	assert.Equal(t, 1, rebuilds)
	assert.Equal(t, events.RebuildJobID, registrar.id)
	assert.Equal(t, "1 0 * * *", registrar.expr)
}

func TestMarkdownChangeTriggersRederive(t *testing.T) {
	root, rederiver, _, _ := startWatcher(t)

	path := filepath.Join(root, "03 - Tasks", "note.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nschedule: daily at 09:00\n---\n"), 0o644))

	waitForPath(t, rederiver, "03 - Tasks/note.md")
}

func TestNonMarkdownIgnored(t *testing.T) {
	root, rederiver, _, _ := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "03 - Tasks", "image.png"), []byte("x"), 0o644))

	time.Sleep(debounceWindow + 500*time.Millisecond)
	paths, _ := rederiver.snapshot()
	assert.Empty(t, paths)
}

func TestRapidWritesDebouncedToOneRederive(t *testing.T) {
	root, rederiver, _, _ := startWatcher(t)

	path := filepath.Join(root, "03 - Tasks", "burst.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("---\nschedule: daily at 09:00\n---\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	waitForPath(t, rederiver, "03 - Tasks/burst.md")

	// Allow a full extra window to catch any duplicate flushes.
	time.Sleep(debounceWindow + 500*time.Millisecond)
	paths, _ := rederiver.snapshot()
	count := 0
	for _, p := range paths {
		if p == "03 - Tasks/burst.md" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDeleteTriggersRederive(t *testing.T) {
	root, rederiver, _, _ := startWatcher(t)

	path := filepath.Join(root, "03 - Tasks", "gone.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	waitForPath(t, rederiver, "03 - Tasks/gone.md")

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		paths, _ := rederiver.snapshot()
		count := 0
		for _, p := range paths {
			if p == "03 - Tasks/gone.md" {
				count++
			}
		}
		return count >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	root, rederiver, _, _ := startWatcher(t)

	subdir := filepath.Join(root, "03 - Tasks", "projects")
	require.NoError(t, os.Mkdir(subdir, 0o755))

	// Give the watcher a moment to pick up the new directory.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(subdir, "deep.md"), []byte("x"), 0o644))
	waitForPath(t, rederiver, "03 - Tasks/projects/deep.md")
}

func TestStopIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "03 - Tasks"), 0o755))

	w, err := New(root, "03 - Tasks", &recordingRederiver{}, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), &recordingRegistrar{}))

	w.Stop()
	w.Stop()
}

func TestStopAfterFailedStartReturns(t *testing.T) {
	root := t.TempDir()
	// Tasks directory deliberately absent, so Start fails at the watch step.

	w, err := New(root, "03 - Tasks", &recordingRederiver{}, logger.Discard())
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background(), &recordingRegistrar{}))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after a failed Start")
	}

	// A failed start must not burn the watcher's idempotency guard either.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "03 - Tasks"), 0o755))
	require.NoError(t, w.Start(context.Background(), &recordingRegistrar{}))
	w.Stop()
}
