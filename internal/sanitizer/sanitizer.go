// Package sanitizer screens untrusted text before it reaches the model.
//
// Two inputs are untrusted here: incoming chat messages, and vault file
// content injected into the prompt as context. Both can carry prompt
// injection attempts, so they are scored against a pattern set and either
// cleaned or rejected.
package sanitizer

import (
	"strings"

	"github.com/google/uuid"
	re2 "github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// DefaultRiskThreshold is the score at which input is rejected outright.
const DefaultRiskThreshold = 30

// Config holds validator settings.
type Config struct {
	RiskThreshold int
}

type pattern struct {
	re       *re2.Regexp
	category string
	weight   int
}

var injectionPatterns = []pattern{
	// Role manipulation
	{
		re:       re2.MustCompile(`(?i)(system|assistant|model)\s*:\s*`),
		category: "role_manipulation",
		weight:   20,
	},
	{
		re:       re2.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?|prompts?)`),
		category: "role_manipulation",
		weight:   30,
	},
	{
		re:       re2.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior)\s+(instructions?|rules?|prompts?)`),
		category: "role_manipulation",
		weight:   30,
	},
	{
		re:       re2.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s+(assistant|system|AI|agent)`),
		category: "role_manipulation",
		weight:   25,
	},
	// Imperative overrides
	{
		re:       re2.MustCompile(`(?i)new\s+instructions?\s*:\s*`),
		category: "direct_injection",
		weight:   25,
	},
	{
		re:       re2.MustCompile(`(?i)override\s+(previous|prior|default|system)\s+(instructions?|rules?)`),
		category: "direct_injection",
		weight:   25,
	},
	// Encoded payloads: long base64 runs and zero-width characters
	{
		re:       re2.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`),
		category: "encoded_injection",
		weight:   15,
	},
	{
		re:       re2.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}]`),
		category: "encoded_injection",
		weight:   20,
	},
	// Fake tool markers trying to short-circuit the response parser
	{
		re:       re2.MustCompile(`(?i)\[\[tool:[a-z_]+\]\]`),
		category: "tool_spoofing",
		weight:   30,
	},
	// Delimiter attacks
	{
		re:       re2.MustCompile(`<\|(?:system|assistant|user|im_start|im_end)[^|]*\|>`),
		category: "delimiter_attack",
		weight:   25,
	},
	{
		re:       re2.MustCompile(`(?i)</?\s*(system|assistant|instructions?)\s*>`),
		category: "delimiter_attack",
		weight:   25,
	},
}

// Validator scores text for injection risk.
type Validator struct {
	threshold int
}

// NewValidator creates a Validator. A zero threshold uses the default.
func NewValidator(cfg Config) *Validator {
	if cfg.RiskThreshold == 0 {
		cfg.RiskThreshold = DefaultRiskThreshold
	}
	return &Validator{threshold: cfg.RiskThreshold}
}

// Result is the outcome of validating one piece of text.
type Result struct {
	Safe      bool
	Detected  []string
	RiskScore int
}

// Validate scores content against the pattern set. Matching patterns in vault
// notes are common enough (users write about prompts) that a single weak match
// stays below the rejection threshold.
func (v *Validator) Validate(content string) Result {
	result := Result{Safe: true}

	if len(content) == 0 {
		return result
	}

	normalized := normalizeForDetection(content)

	for _, p := range injectionPatterns {
		if p.re.MatchString(normalized) {
			result.Detected = append(result.Detected, p.category)
			result.RiskScore += p.weight
		}
	}

	controlRatio := float64(countControlChars(content)) / float64(len(content)+1)
	if controlRatio > 0.1 {
		result.Detected = append(result.Detected, "high_control_char_ratio")
		result.RiskScore += 25
	}

	if result.RiskScore >= v.threshold {
		result.Safe = false
	}
	return result
}

// Clean strips zero-width characters and redacts matched injection patterns.
// Used on vault content that scored below the rejection threshold.
func Clean(content string) string {
	result := content
	for _, p := range injectionPatterns {
		if p.category == "encoded_injection" && p.weight == 20 {
			result = p.re.ReplaceAllString(result, "")
		}
	}
	return result
}

// WrapUntrusted fences external content with a random marker so the system
// prompt can tell the model to treat everything inside as data.
func WrapUntrusted(content string) string {
	marker := "[EXTERNAL_DATA:" + uuid.New().String()[:8] + "]"
	return marker + "\n" + content + "\n" + marker
}

func countControlChars(s string) int {
	count := 0
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			count++
		}
	}
	return count
}

// normalizeForDetection folds unicode tricks (NFKC) and drops control
// characters so patterns match the text the model would effectively see.
func normalizeForDetection(s string) string {
	normalized := norm.NFKC.String(s)

	var b strings.Builder
	for _, r := range normalized {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
