package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultMaxOutputTokens = 20000
	defaultTimeout         = 30 * time.Second

	// jsonMIMEType asks the API for structured output. Extraction still
	// tolerates prose because the constraint is best-effort on some models.
	jsonMIMEType = "application/json"
)

// GeminiConfig holds the settings for the Gemini provider.
type GeminiConfig struct {
	APIKey          string
	Model           string        // Defaults to gemini-2.0-flash
	MaxOutputTokens int32         // Defaults to 20000
	Timeout         time.Duration // Per-request deadline, defaults to 30s
}

// Gemini is a Provider backed by the Google Gemini API.
type Gemini struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	timeout         time.Duration
	logger          *logger.Logger
}

// NewGemini creates a Gemini provider. It validates the API key eagerly so
// misconfiguration fails at startup, not on the first message.
func NewGemini(ctx context.Context, cfg GeminiConfig, log *logger.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Gemini{
		client:          client,
		model:           model,
		maxOutputTokens: maxTokens,
		timeout:         timeout,
		logger:          log,
	}, nil
}

// Model implements the Provider interface.
func (g *Gemini) Model() string {
	return g.model
}

// GenerateContent implements the Provider interface.
func (g *Gemini) GenerateContent(ctx context.Context, turns []Turn, systemInstruction string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role = genai.RoleUser
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: jsonMIMEType,
		MaxOutputTokens:  g.maxOutputTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini: empty response from model %s", g.model)
	}

	resp := &Response{
		Text:  text,
		Model: g.model,
	}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	g.logger.Debug("gemini response",
		logger.Field{Key: "model", Value: g.model},
		logger.Field{Key: "duration_ms", Value: elapsed.Milliseconds()},
		logger.Field{Key: "total_tokens", Value: resp.Usage.TotalTokens},
	)

	return resp, nil
}
