// Package generation drafts posts, critiques them against the constitution
// and drives the bounded retry loop between the two.
package generation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// GenerateRequest carries everything one attempt needs.
type GenerateRequest struct {
	SessionID       string
	News            []domain.NewsItem
	Styles          []string
	Feedback        string
	PreviousAttempt int
}

// Generator produces candidate drafts through a Completer.
type Generator struct {
	completer   ports.Completer
	temperature float64
	maxTokens   int
	now         func() time.Time
	newID       func() string
}

// NewGenerator wires the completion service with generation settings.
func NewGenerator(completer ports.Completer, cfg config.GenerationConfig) *Generator {
	return &Generator{
		completer:   completer,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Generate returns a fresh draft in the generated status. It never persists anything.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (domain.Draft, error) {
	if len(req.News) == 0 {
		return domain.Draft{}, fmt.Errorf("generate: no news items: %w", domain.ErrInvalidInput)
	}
	if req.Feedback != "" && req.PreviousAttempt < 1 {
		return domain.Draft{}, fmt.Errorf("generate: feedback without a prior attempt: %w", domain.ErrInvalidInput)
	}
	if g.completer == nil {
		return domain.Draft{}, fmt.Errorf("generate: completer not configured: %w", domain.ErrGenerationFailure)
	}

	raw, err := g.completer.Complete(ctx, ports.CompletionRequest{
		System:      writerSystemPrompt,
		Prompt:      buildWriterPrompt(req),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return domain.Draft{}, fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailure, err)
	}

	text, err := cleanDraftText(raw)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailure, err)
	}

	return domain.Draft{
		ID:            g.newID(),
		SessionID:     req.SessionID,
		SourceNewsIDs: domain.NewsIDs(req.News),
		Text:          text,
		AttemptNumber: req.PreviousAttempt + 1,
		CreatedAt:     g.now().UTC(),
		Status:        domain.StatusGenerated,
	}, nil
}

var (
	preambleExpr = regexp.MustCompile(`(?i)^(here('s| is)|sure[,!]?|certainly[,!]?)[^\n]*:\s*\n`)
	refusalExpr  = regexp.MustCompile(`(?i)^(i'?m sorry|i cannot|i can'?t|as an ai)`)
)

func cleanDraftText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	text = preambleExpr.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	if text == "" {
		return "", fmt.Errorf("empty output")
	}
	if refusalExpr.MatchString(text) {
		return "", fmt.Errorf("model refused: %.80s", text)
	}
	return text, nil
}
