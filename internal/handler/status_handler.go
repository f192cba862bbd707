package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const previewRunes = 100

type statusHandler struct {
	reviewer Reviewer
	backlog  func(ctx context.Context) (int64, error)
	logger   *slog.Logger
}

func (h *statusHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if pending, err := h.reviewer.ListPending(r.Context()); err != nil {
		h.logger.Warn("health: list pending failed", "error", err)
		body["status"] = "degraded"
	} else {
		body["pending_drafts"] = len(pending)
	}

	if h.backlog != nil {
		if n, err := h.backlog(r.Context()); err != nil {
			h.logger.Warn("health: approved backlog failed", "error", err)
			body["status"] = "degraded"
		} else {
			body["approved_drafts"] = n
		}
	}

	code := http.StatusOK
	if body["status"] != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

type draftSummary struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	Revision    int       `json:"revision"`
	WordCount   int       `json:"word_count"`
	SubmittedAt time.Time `json:"submitted_at"`
	Preview     string    `json:"preview"`
}

func (h *statusHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	pending, err := h.reviewer.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot list drafts")
		return
	}

	drafts := make([]draftSummary, 0, len(pending))
	for _, p := range pending {
		drafts = append(drafts, draftSummary{
			ID:          p.Draft.ID,
			Status:      string(p.Status),
			Attempt:     p.Draft.AttemptNumber,
			Revision:    p.Revision,
			WordCount:   len(strings.Fields(p.Text)),
			SubmittedAt: p.SubmittedAt,
			Preview:     preview(p.Text),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts, "count": len(drafts)})
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
