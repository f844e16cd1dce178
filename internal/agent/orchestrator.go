// Package agent orchestrates one conversation turn: inbound message to
// executed tool invocations. Every entry point swallows failures into logged
// warnings plus a best-effort reply; nothing escapes to the caller.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/history"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/llm"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/prompts"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/retry"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/sanitizer"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/toolcall"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/tools"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/vault"
)

// vaultContextLimit caps the concatenated vault content injected into the
// prompt, respecting model context limits.
const vaultContextLimit = 150000

const refusalMessage = "I can't process that message, it looks like an attempt to manipulate my instructions."

// Message sources for metrics.
const (
	SourceUser      = "user"
	SourceScheduled = "scheduled"
)

// Recorder receives orchestrator metrics. May be nil.
type Recorder interface {
	RecordMessage(source string)
	RecordToolExecution(tool, status string)
	RecordLLMCall(status string, duration time.Duration)
}

// Orchestrator wires the conversation pipeline together.
type Orchestrator struct {
	provider  llm.Provider
	registry  *tools.Registry
	parser    *toolcall.Parser
	prompts   *prompts.Builder
	history   *history.Store
	vault     *vault.Storage
	validator *sanitizer.Validator
	logger    *logger.Logger
	recorder  Recorder

	retryCfg         retry.Config
	maxPromptEntries int
	defaultChatID    int64
}

// Config collects the orchestrator's collaborators.
type Config struct {
	Provider  llm.Provider
	Registry  *tools.Registry
	Parser    *toolcall.Parser
	Prompts   *prompts.Builder
	History   *history.Store
	Vault     *vault.Storage
	Validator *sanitizer.Validator
	Logger    *logger.Logger
	Recorder  Recorder

	Retry            retry.Config
	MaxPromptEntries int
	// DefaultChatID is the target for scheduled events and replies that name
	// no chat; typically the first allowed user id.
	DefaultChatID int64
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.MaxPromptEntries <= 0 {
		cfg.MaxPromptEntries = 40
	}
	return &Orchestrator{
		provider:         cfg.Provider,
		registry:         cfg.Registry,
		parser:           cfg.Parser,
		prompts:          cfg.Prompts,
		history:          cfg.History,
		vault:            cfg.Vault,
		validator:        cfg.Validator,
		logger:           cfg.Logger,
		recorder:         cfg.Recorder,
		retryCfg:         cfg.Retry,
		maxPromptEntries: cfg.MaxPromptEntries,
		defaultChatID:    cfg.DefaultChatID,
	}
}

// HandleUserMessage processes one inbound chat message.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, chatID int64, text string) {
	if o.recorder != nil {
		o.recorder.RecordMessage(SourceUser)
	}
	o.run(ctx, chatID, text)
}

// HandleScheduledEvent processes a fired recurring event. The event message
// plays the part of the user turn and the reply targets the default chat.
func (o *Orchestrator) HandleScheduledEvent(ctx context.Context, message string) {
	if o.recorder != nil {
		o.recorder.RecordMessage(SourceScheduled)
	}
	o.run(ctx, o.defaultChatID, message)
}

func (o *Orchestrator) run(ctx context.Context, chatID int64, text string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in orchestrator run", fmt.Errorf("panic: %v", r))
			o.sendReply(ctx, chatID, "Sorry, something went wrong while processing that.")
		}
	}()

	if check := o.validator.Validate(text); !check.Safe {
		o.logger.Warn("refusing risky message",
			logger.Field{Key: "risk_score", Value: check.RiskScore},
			logger.Field{Key: "detected", Value: strings.Join(check.Detected, ",")})
		o.sendReply(ctx, chatID, refusalMessage)
		return
	}

	if err := o.history.Append(history.Entry{Role: history.RoleUser, Content: text}); err != nil {
		o.logger.Warn("cannot persist history entry", logger.Field{Key: "error", Value: err.Error()})
	}

	system := o.prompts.BuildSystemPrompt(o.buildVaultContext(), o.formatRecentHistory())
	turns := []llm.Turn{{Role: llm.RoleUser, Content: text}}

	start := time.Now()
	resp, err := retry.Do(ctx, o.retryCfg, o.logger, func() (*llm.Response, error) {
		return o.provider.GenerateContent(ctx, turns, system)
	})
	elapsed := time.Since(start)

	var invocations []toolcall.Invocation
	if err != nil {
		if o.recorder != nil {
			o.recorder.RecordLLMCall("error", elapsed)
		}
		o.logger.Error("LLM call failed", err)
		if appendErr := o.history.Append(history.Entry{Role: history.RoleModel, Content: "[Internal Error: LLM call failed]"}); appendErr != nil {
			o.logger.Warn("cannot persist history entry", logger.Field{Key: "error", Value: appendErr.Error()})
		}
		invocations = []toolcall.Invocation{{
			Tool:   "reply",
			Params: map[string]any{"message": fmt.Sprintf("Sorry, I couldn't reach the language model: %v", err)},
		}}
	} else {
		if o.recorder != nil {
			o.recorder.RecordLLMCall("success", elapsed)
		}
		if appendErr := o.history.Append(history.Entry{Role: history.RoleModel, Content: resp.Text}); appendErr != nil {
			o.logger.Warn("cannot persist history entry", logger.Field{Key: "error", Value: appendErr.Error()})
		}
		invocations = o.parser.Parse(resp.Text)
	}

	o.execute(ctx, chatID, invocations)
}

// execute runs invocations strictly in order; a later call may depend on an
// earlier one's side effects. Tool errors are recorded and skipped over.
func (o *Orchestrator) execute(ctx context.Context, chatID int64, invocations []toolcall.Invocation) {
	for _, inv := range invocations {
		if inv.Tool == "reply" {
			ensureReplyTarget(inv.Params, chatID)
		}

		result := o.registry.Execute(ctx, inv.Tool, inv.Params)
		if o.recorder != nil {
			o.recorder.RecordToolExecution(inv.Tool, result.Status)
		}
		if result.IsError() {
			o.logger.Warn("tool execution failed",
				logger.Field{Key: "tool", Value: inv.Tool},
				logger.Field{Key: "message", Value: result.Message})
		}

		// The finish tool just cleared history; feeding its result back in
		// would repopulate it.
		if result.Status == tools.StatusFinished {
			continue
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			continue
		}
		entry := history.Entry{
			Role:    history.RoleUser,
			Content: fmt.Sprintf("[Tool Response (%s): %s]", inv.Tool, encoded),
		}
		if err := o.history.Append(entry); err != nil {
			o.logger.Warn("cannot persist tool response", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

// sendReply pushes a message through the reply tool, bypassing the LLM.
func (o *Orchestrator) sendReply(ctx context.Context, chatID int64, message string) {
	params := map[string]any{"message": message}
	ensureReplyTarget(params, chatID)
	result := o.registry.Execute(ctx, "reply", params)
	if result.IsError() {
		o.logger.Error("cannot deliver fallback reply", errors.New(result.Message))
	}
}

// buildVaultContext concatenates every Markdown file as
// "File: <path>\n\n```\n<content>\n```\n\n", hard-capped.
func (o *Orchestrator) buildVaultContext() string {
	files, err := o.vault.ReadAllMarkdownFiles()
	if err != nil {
		o.logger.Warn("cannot read vault for context", logger.Field{Key: "error", Value: err.Error()})
		return ""
	}
	if len(files) == 0 {
		return ""
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "File: %s\n\n```\n%s\n```\n\n", path, files[path])
	}

	text := b.String()
	if runes := []rune(text); len(runes) > vaultContextLimit {
		o.logger.Warn("vault context truncated", logger.Field{Key: "size", Value: len(runes)})
		text = string(runes[:vaultContextLimit]) + "\n... (truncated)"
	}

	// Note content is data, never instructions; the fence markers match the
	// warning in the system prompt.
	return sanitizer.WrapUntrusted(text)
}

func (o *Orchestrator) formatRecentHistory() string {
	entries := o.history.Recent(o.maxPromptEntries)
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s: %s\n", entry.Role, entry.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ensureReplyTarget injects the originating chat id into a reply invocation
// that names no target of its own.
func ensureReplyTarget(params map[string]any, chatID int64) {
	if params == nil {
		return
	}
	if _, ok := params["chat_id"]; ok {
		return
	}
	if _, ok := params["user_id"]; ok {
		return
	}
	params["chat_id"] = chatID
}
