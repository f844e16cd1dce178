// Package tools implements the tool registry and the built-in tools the LLM
// can invoke: vault file operations, replying to the user, and finishing a
// conversation.
package tools

import (
	"context"
	"fmt"
)

// Tool is a single named action the LLM can request.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This description helps the LLM understand when and how to use the tool.
	Description() string

	// Definition returns the static schema used to describe the tool in the
	// system prompt.
	Definition() Definition

	// Execute runs the tool with the given parameters. Implementations return
	// an error Result instead of panicking or propagating errors.
	Execute(ctx context.Context, params map[string]any) Result
}

// Definition describes a tool for prompt construction.
type Definition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Required    []string          `json:"required"`
	Params      map[string]string `json:"params"`
}

// Result statuses. "finished" is reserved for the finish tool.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusFinished = "finished"
)

// Result is the uniform outcome of a tool execution.
type Result struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Success builds a success result.
func Success(message string) Result {
	return Result{Status: StatusSuccess, Message: message}
}

// Errorf builds an error result from a format string.
func Errorf(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether the result carries an error status.
func (r Result) IsError() bool {
	return r.Status == StatusError
}
