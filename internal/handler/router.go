// Package handler exposes the approval webhook and operator endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"NewsPoster/internal/approval"
	"NewsPoster/internal/domain"
)

// Reviewer is the part of the approval gateway the webhook drives.
type Reviewer interface {
	Resolve(ctx context.Context, draftID string, res approval.Resolution) (domain.ApprovalDecision, error)
	Pending(ctx context.Context, draftID string) (domain.PendingApproval, error)
	ListPending(ctx context.Context) ([]domain.PendingApproval, error)
}

// Editor opens the inline edit dialog in the review channel.
type Editor interface {
	OpenEditor(ctx context.Context, triggerID, draftID, text string) error
}

// RouterDeps collects what NewRouter needs. Metrics and Backlog are optional.
type RouterDeps struct {
	Reviewer      Reviewer
	Editor        Editor
	SigningSecret string
	Metrics       http.Handler
	// Backlog reports approved drafts still waiting for the publisher.
	Backlog func(ctx context.Context) (int64, error)
	Logger  *slog.Logger
}

// NewRouter builds the approval server routes.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewLoggingMiddleware(logger))

	status := &statusHandler{reviewer: deps.Reviewer, backlog: deps.Backlog, logger: logger}
	r.Get("/health", status.Health)
	r.Get("/drafts", status.ListDrafts)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	actions := &slackHandler{reviewer: deps.Reviewer, editor: deps.Editor, logger: logger}
	r.Route("/slack", func(r chi.Router) {
		r.Use(NewSlackVerifier(deps.SigningSecret, logger))
		r.Post("/events", actions.Events)
		r.Post("/actions", actions.Actions)
	})

	return r
}
