// Package toolcall extracts tool invocations from raw LLM output.
//
// The model is asked for a JSON array of {tool, data} objects, but prompting
// strategies have drifted over time and models wrap output in prose or code
// fences, so extraction runs an ordered fallback chain. The final stage
// guarantees that a non-empty response always yields at least one invocation:
// anything unparseable degrades to a plain reply carrying the original text.
package toolcall

import (
	"encoding/json"
	"strings"

	re2 "github.com/wasilibs/go-re2"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

// Invocation is one structured action extracted from LLM output.
type Invocation struct {
	Tool   string
	Params map[string]any
}

// Extraction stages, reported for observability.
const (
	StageDirect   = "direct"
	StageEnclosed = "enclosed"
	StageScan     = "scan"
	StageLegacy   = "legacy"
	StageFallback = "fallback"
)

// fallbackReplyLimit bounds the text echoed back when nothing parses.
const fallbackReplyLimit = 1000

const apologyMessage = "Sorry, I could not work out how to act on that. Please try rephrasing your request."

// legacyMarkerRe matches the historical inline format
// [[tool:NAME]]{...json...}[[/tool]].
var legacyMarkerRe = re2.MustCompile(`(?s)\[\[tool:([A-Za-z_][A-Za-z0-9_]*)\]\]\s*(\{.*?\})\s*\[\[/tool\]\]`)

// KnownFunc reports whether a tool name is registered.
type KnownFunc func(name string) bool

// StageRecorder counts which extraction stage produced the result.
// May be nil.
type StageRecorder interface {
	RecordParseStage(stage string)
}

// Parser extracts and validates tool invocations.
type Parser struct {
	known    KnownFunc
	logger   *logger.Logger
	recorder StageRecorder
}

// NewParser creates a parser that validates tool names through known.
func NewParser(known KnownFunc, log *logger.Logger, recorder StageRecorder) *Parser {
	return &Parser{known: known, logger: log, recorder: recorder}
}

// Parse runs the extraction chain over raw LLM text and validates the result.
// It never returns an empty slice for non-empty input: when every invocation
// is dropped, a synthetic reply is substituted so the caller always has an
// action to take.
func (p *Parser) Parse(text string) []Invocation {
	invocations, stage := p.extract(text)
	if p.recorder != nil {
		p.recorder.RecordParseStage(stage)
	}

	valid := invocations[:0]
	for _, inv := range invocations {
		if inv.Tool == "" {
			p.logger.Warn("dropping invocation without tool name")
			continue
		}
		if p.known != nil && !p.known(inv.Tool) {
			p.logger.Warn("dropping invocation for unknown tool",
				logger.Field{Key: "tool", Value: inv.Tool})
			continue
		}
		valid = append(valid, inv)
	}

	if len(valid) == 0 && strings.TrimSpace(text) != "" {
		return []Invocation{replyInvocation(apologyMessage)}
	}
	return valid
}

// extract walks the fallback chain and returns the raw invocations plus the
// stage that produced them.
func (p *Parser) extract(text string) ([]Invocation, string) {
	cleaned := stripCodeFences(strings.TrimSpace(text))

	// Stage 1: the whole text is the array.
	if strings.HasPrefix(cleaned, "[") && strings.HasSuffix(cleaned, "]") {
		if invs, ok := decodeArray(cleaned, p.logger); ok {
			return invs, StageDirect
		}
	}

	// Stage 2: array embedded in prose; take first '[' to last ']'.
	// Known to be fragile for nested arrays inside string values.
	if start, end := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); start != -1 && end > start {
		if invs, ok := decodeArray(cleaned[start:end+1], p.logger); ok {
			return invs, StageEnclosed
		}
	}

	// Stage 3: scan every balanced [...] substring, shortest match first.
	for _, candidate := range bracketCandidates(cleaned) {
		if invs, ok := decodeArray(candidate, p.logger); ok && len(invs) > 0 {
			return invs, StageScan
		}
	}

	// Stage 4: the legacy inline marker format.
	if invs := p.extractLegacyMarkers(text); len(invs) > 0 {
		return invs, StageLegacy
	}

	// Stage 5: degrade to a plain reply so no model output is dropped.
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, StageFallback
	}
	return []Invocation{replyInvocation(truncate(trimmed, fallbackReplyLimit))}, StageFallback
}

// extractLegacyMarkers yields one invocation per [[tool:x]]{...}[[/tool]] match.
func (p *Parser) extractLegacyMarkers(text string) []Invocation {
	matches := legacyMarkerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	invocations := make([]Invocation, 0, len(matches))
	for _, m := range matches {
		var params map[string]any
		if err := json.Unmarshal([]byte(m[2]), &params); err != nil {
			p.logger.Warn("dropping legacy tool marker with invalid params",
				logger.Field{Key: "tool", Value: m[1]})
			continue
		}
		invocations = append(invocations, Invocation{Tool: m[1], Params: params})
	}
	return invocations
}

// decodeArray parses a JSON array of tool-call objects. Elements missing a
// tool name or carrying non-object params are dropped, not fatal.
func decodeArray(s string, log *logger.Logger) ([]Invocation, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	invocations := make([]Invocation, 0, len(raw))
	for i, elem := range raw {
		var obj map[string]any
		if err := json.Unmarshal(elem, &obj); err != nil {
			log.Warn("dropping non-object tool call element",
				logger.Field{Key: "position", Value: i})
			continue
		}

		tool, _ := obj["tool"].(string)
		if tool == "" {
			log.Warn("dropping tool call element without tool name",
				logger.Field{Key: "position", Value: i})
			continue
		}

		// Both "data" and "params" are accepted; naming drifted between
		// prompt iterations.
		paramsRaw, ok := obj["data"]
		if !ok {
			paramsRaw, ok = obj["params"]
		}
		params := map[string]any{}
		if ok && paramsRaw != nil {
			params, ok = paramsRaw.(map[string]any)
			if !ok {
				log.Warn("dropping tool call element with non-object params",
					logger.Field{Key: "position", Value: i},
					logger.Field{Key: "tool", Value: tool})
				continue
			}
		}

		invocations = append(invocations, Invocation{Tool: tool, Params: params})
	}

	return invocations, true
}

// bracketCandidates returns every balanced bracket substring in order of
// opening position, shortest first per opening bracket. String literals are
// honored so brackets inside values do not end a candidate.
func bracketCandidates(s string) []string {
	var candidates []string

	for start := 0; start < len(s); start++ {
		if s[start] != '[' {
			continue
		}

		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					candidates = append(candidates, s[start:i+1])
					i = len(s) // done with this opening bracket
				}
			}
		}
	}

	return candidates
}

// stripCodeFences unwraps a markdown-fenced block when the whole text is one
// fence (the common "```json\n[...]\n```" shape).
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	rest := strings.TrimPrefix(s, "```")
	if idx := strings.Index(rest, "\n"); idx != -1 {
		rest = rest[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(rest, "```"); idx != -1 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

// replyInvocation builds the synthetic reply carrying message text. The
// orchestrator fills in the target chat id before execution.
func replyInvocation(message string) Invocation {
	return Invocation{
		Tool:   "reply",
		Params: map[string]any{"message": message},
	}
}

// truncate limits s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
