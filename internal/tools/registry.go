package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

// Registry manages the collection of available tools.
// It provides thread-safe operations for registering and executing tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logger.Logger
}

// NewRegistry creates a new empty tool registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: log,
	}
}

// Register adds a tool to the registry.
// If a tool with the same name already exists, it will be replaced.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[name] = tool
	return nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Names returns the sorted names of the registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the schema of every registered tool, ordered by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute looks up a tool by name and runs it. Handler panics are recovered
// and converted into error results; the caller never sees a panic or an
// unwrapped error from a single tool failure.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (result Result) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return Errorf("Tool '%s' not found", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("tool execution panic recovered", fmt.Errorf("panic: %v", rec),
					logger.Field{Key: "tool", Value: name})
			}
			result = Errorf("tool '%s' panicked: %v", name, rec)
		}
	}()

	return tool.Execute(ctx, params)
}
