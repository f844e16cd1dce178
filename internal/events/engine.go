// Package events derives recurring events from note frontmatter and the
// global events file, keeps them registered with the job scheduler, and
// dispatches firings to the conversation layer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/schedule"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/vault"
)

// RebuildJobID is the reserved scheduler id for the daily full rebuild. A
// firing with this id triggers RebuildAll instead of a dispatch.
const RebuildJobID = "internal:daily-rebuild"

// Scheduler is the slice of the job scheduler the engine needs.
type Scheduler interface {
	AddDSL(id, dsl string) bool
	Unschedule(id string) bool
	Fires() <-chan schedule.Firing
}

// Dispatcher receives the message of a fired event.
type Dispatcher interface {
	HandleScheduledEvent(ctx context.Context, message string)
}

// Recorder tracks the number of active events for metrics. May be nil.
type Recorder interface {
	SetActiveEvents(n int)
}

// Engine owns the id -> event index. All mutation goes through RederivePath
// and RebuildAll, which replace wholesale rather than patching, so the index
// can always be reconstructed from the vault.
type Engine struct {
	scheduler  Scheduler
	vault      *vault.Storage
	dispatcher Dispatcher
	logger     *logger.Logger
	recorder   Recorder
	tasksDir   string
	globalPath string

	mu     sync.Mutex
	events map[string]Event
}

// NewEngine creates an engine. globalPath may be empty to disable global
// events; recorder may be nil.
func NewEngine(sched Scheduler, store *vault.Storage, dispatcher Dispatcher, log *logger.Logger, recorder Recorder, tasksDir, globalPath string) *Engine {
	return &Engine{
		scheduler:  sched,
		vault:      store,
		dispatcher: dispatcher,
		logger:     log,
		recorder:   recorder,
		tasksDir:   strings.TrimSuffix(tasksDir, "/"),
		globalPath: globalPath,
		events:     make(map[string]Event),
	}
}

// Run consumes scheduler firings until ctx is cancelled. Each dispatch runs
// in its own goroutine so a slow conversation cannot delay later firings.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case firing := <-e.scheduler.Fires():
			if firing.ID == RebuildJobID {
				e.logger.Info("daily rebuild triggered")
				e.RebuildAll()
				continue
			}

			e.mu.Lock()
			event, ok := e.events[firing.ID]
			e.mu.Unlock()
			if !ok {
				e.logger.Warn("firing for unknown event", logger.Field{Key: "id", Value: firing.ID})
				continue
			}

			e.logger.Info("event fired",
				logger.Field{Key: "id", Value: firing.ID},
				logger.Field{Key: "at", Value: firing.At.Format("15:04:05")})
			go e.dispatch(ctx, event)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic dispatching event", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "id", Value: event.ID})
		}
	}()
	e.dispatcher.HandleScheduledEvent(ctx, event.Message)
}

// RederivePath re-derives every event for one note: previously derived events
// for the path are unscheduled and removed first, then the current file
// content (if the file still exists) produces fresh ones.
func (e *Engine) RederivePath(relPath string) {
	if !e.inTasksDir(relPath) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeForPathLocked(relPath)

	if !e.vault.FileExists(relPath) {
		e.logger.Info("note removed, events unscheduled", logger.Field{Key: "path", Value: relPath})
		e.updateGaugeLocked()
		return
	}

	content, err := e.vault.ReadFile(relPath)
	if err != nil {
		e.logger.Warn("cannot read note for event derivation",
			logger.Field{Key: "path", Value: relPath},
			logger.Field{Key: "error", Value: err.Error()})
		e.updateGaugeLocked()
		return
	}

	e.registerAllLocked(deriveFromContent(relPath, content))
	e.updateGaugeLocked()
}

// RebuildAll discards the whole index and re-derives it from the global
// events file plus a full scan of the tasks directory.
func (e *Engine) RebuildAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.events {
		e.scheduler.Unschedule(id)
		delete(e.events, id)
	}

	e.registerAllLocked(e.loadGlobalEvents())

	files, err := e.vault.ReadAllMarkdownFiles()
	if err != nil {
		e.logger.Error("vault scan failed during rebuild", err)
	} else {
		for relPath, content := range files {
			if !e.inTasksDir(relPath) {
				continue
			}
			e.registerAllLocked(deriveFromContent(relPath, content))
		}
	}

	e.updateGaugeLocked()
	e.logger.Info("event index rebuilt", logger.Field{Key: "events", Value: len(e.events)})
}

// IDs returns the ids of all active events, sorted.
func (e *Engine) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.events))
	for id := range e.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// loadGlobalEvents reads the global events JSON file:
// {"<id>": {"schedule": "...", "message": "..."}}.
func (e *Engine) loadGlobalEvents() []Event {
	if e.globalPath == "" {
		return nil
	}

	data, err := os.ReadFile(e.globalPath)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("cannot read global events file",
				logger.Field{Key: "path", Value: e.globalPath},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return nil
	}

	var raw map[string]struct {
		Schedule string `json:"schedule"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		e.logger.Warn("malformed global events file",
			logger.Field{Key: "path", Value: e.globalPath},
			logger.Field{Key: "error", Value: err.Error()})
		return nil
	}

	events := make([]Event, 0, len(raw))
	for id, entry := range raw {
		if strings.TrimSpace(entry.Schedule) == "" {
			continue
		}
		event := classifySchedule(strings.TrimSpace(entry.Schedule))
		event.ID = "global:" + id
		event.Message = entry.Message
		if event.Message == "" {
			event.Message = defaultMessage
		}
		event.IsGlobal = true
		events = append(events, event)
	}
	return events
}

// registerAllLocked registers each event with the scheduler and indexes the
// ones that took. A rejected registration (bad DSL surfaced by the tolerant
// daily fallback) is logged by the scheduler and skipped here.
func (e *Engine) registerAllLocked(derived []Event) {
	for _, event := range derived {
		if !e.scheduler.AddDSL(event.ID, event.DSL()) {
			continue
		}
		e.events[event.ID] = event
	}
}

func (e *Engine) removeForPathLocked(relPath string) {
	for id, event := range e.events {
		if event.TaskPath == relPath {
			e.scheduler.Unschedule(id)
			delete(e.events, id)
		}
	}
}

func (e *Engine) inTasksDir(relPath string) bool {
	return strings.HasPrefix(relPath, e.tasksDir+"/")
}

func (e *Engine) updateGaugeLocked() {
	if e.recorder != nil {
		e.recorder.SetActiveEvents(len(e.events))
	}
}
