// Package approval holds vetted drafts for human review and records the
// reviewer's decision.
package approval

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/metrics"
	"NewsPoster/internal/ports"
)

// Handle identifies a submitted draft awaiting a decision.
type Handle struct {
	DraftID     string
	SubmittedAt time.Time
	ChannelRef  string
}

// Resolution is an inbound reviewer action.
type Resolution struct {
	Decision   domain.Decision
	Actor      string
	EditedText string
}

// GatewayDeps wires the gateway. Drafts is read-only: the gateway never
// writes generation state.
type GatewayDeps struct {
	Drafts   ports.DraftReader
	Store    ports.ApprovalStore
	Channel  ports.ReviewChannel
	Approved ports.DraftQueue
	Alerter  ports.Alerter
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Gateway persists pending drafts, notifies reviewers and resolves decisions.
// Waiting is persisted state; nothing blocks between Submit and Resolve.
type Gateway struct {
	drafts   ports.DraftReader
	store    ports.ApprovalStore
	channel  ports.ReviewChannel
	approved ports.DraftQueue
	alerter  ports.Alerter
	metrics  metrics.Recorder
	logger   *slog.Logger
	policy   *bluemonday.Policy
	now      func() time.Time
}

func NewGateway(deps GatewayDeps) *Gateway {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Discard{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		drafts:   deps.Drafts,
		store:    deps.Store,
		channel:  deps.Channel,
		approved: deps.Approved,
		alerter:  deps.Alerter,
		metrics:  rec,
		logger:   logger,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// Submit registers a vetted draft for review and notifies the channel.
// Drafts that are not pending approval with a passing latest critique are
// refused with domain.ErrNotVetted. Submitting twice is a no-op.
func (g *Gateway) Submit(ctx context.Context, draftID string) (Handle, error) {
	draft, err := g.drafts.Draft(ctx, draftID)
	if err != nil {
		return Handle{}, fmt.Errorf("load draft %s: %w", draftID, err)
	}
	if draft.Status != domain.StatusPendingApproval {
		return Handle{}, fmt.Errorf("draft %s is %s: %w", draftID, draft.Status, domain.ErrNotVetted)
	}
	history, err := g.drafts.Critiques(ctx, draftID)
	if err != nil {
		return Handle{}, fmt.Errorf("load critiques for %s: %w", draftID, err)
	}
	if latest, ok := domain.LatestCritique(history); !ok || !latest.Passed() {
		return Handle{}, fmt.Errorf("draft %s: %w", draftID, domain.ErrNotVetted)
	}

	now := g.now().UTC()
	entry, created, err := g.store.Register(ctx, domain.PendingApproval{
		Draft:       draft,
		Text:        draft.Text,
		Status:      domain.StatusPendingApproval,
		SubmittedAt: now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("register draft %s: %w", draftID, err)
	}
	if created {
		g.metrics.RecordSubmission()
		g.logger.Info("draft submitted for review", "draft", draftID, "session", draft.SessionID, "attempt", draft.AttemptNumber)
	}

	handle := Handle{DraftID: draftID, SubmittedAt: entry.SubmittedAt, ChannelRef: entry.ChannelRef}
	if entry.ChannelRef != "" || entry.Status != domain.StatusPendingApproval {
		return handle, nil
	}

	ref, err := g.notify(ctx, entry)
	if err != nil {
		return handle, err
	}
	handle.ChannelRef = ref
	return handle, nil
}

// Resolve applies a reviewer action. Approve and reject are terminal and the
// first one wins; later actions, including edits, get domain.ErrAlreadyResolved.
// An edit replaces the pending text and re-enters review without re-critique.
func (g *Gateway) Resolve(ctx context.Context, draftID string, res Resolution) (domain.ApprovalDecision, error) {
	if !res.Decision.Valid() {
		return domain.ApprovalDecision{}, fmt.Errorf("decision %q: %w", res.Decision, domain.ErrInvalidInput)
	}
	actor := strings.TrimSpace(res.Actor)
	if actor == "" {
		actor = "unknown"
	}

	entry, err := g.store.Pending(ctx, draftID)
	if err != nil {
		return domain.ApprovalDecision{}, fmt.Errorf("load pending %s: %w", draftID, err)
	}
	now := g.now().UTC()

	if res.Decision == domain.DecisionEdit {
		return g.applyEdit(ctx, draftID, actor, res.EditedText, now)
	}

	decision, err := g.store.Decide(ctx, domain.ApprovalDecision{
		DraftID:   draftID,
		Decision:  res.Decision,
		Actor:     actor,
		DecidedAt: now,
	})
	if err != nil {
		return domain.ApprovalDecision{}, g.resolveError(draftID, actor, res.Decision, err)
	}
	g.metrics.RecordDecision(decision.Decision)
	g.logger.Info("draft resolved", "draft", draftID, "decision", decision.Decision, "actor", actor, "edited", decision.EditedText != "")

	if decision.Decision == domain.DecisionApprove && g.approved != nil {
		if err := g.approved.Enqueue(ctx, draftID); err != nil {
			g.logger.Error("hand off approved draft failed", "draft", draftID, "error", err)
			g.alert(ctx, fmt.Sprintf("Approved draft %s was not queued for publishing: %v", draftID, err))
			return decision, fmt.Errorf("enqueue approved draft %s: %w", draftID, err)
		}
	}

	if g.channel != nil && entry.ChannelRef != "" {
		if err := g.channel.Resolved(ctx, entry.ChannelRef, decision); err != nil {
			g.logger.Warn("update review message failed", "draft", draftID, "error", err)
		}
	}

	return decision, nil
}

// Reconcile submits drafts vetted at or after since that never reached a
// reviewer: no review entry was registered, or the notification was never
// delivered. It returns how many drafts it picked up.
func (g *Gateway) Reconcile(ctx context.Context, since time.Time) (int, error) {
	vetted, err := g.drafts.DraftsByStatus(ctx, domain.StatusPendingApproval, since)
	if err != nil {
		return 0, fmt.Errorf("list vetted drafts: %w", err)
	}

	var (
		picked int
		errs   []error
	)
	for _, draft := range vetted {
		entry, err := g.store.Pending(ctx, draft.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			errs = append(errs, fmt.Errorf("load pending %s: %w", draft.ID, err))
			continue
		case g.channel == nil || entry.ChannelRef != "" || entry.Status != domain.StatusPendingApproval:
			continue
		}

		picked++
		g.logger.Warn("vetted draft never reached review, submitting", "draft", draft.ID)
		if _, err := g.Submit(ctx, draft.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return picked, errors.Join(errs...)
}

func (g *Gateway) alert(ctx context.Context, message string) {
	if g.alerter == nil {
		return
	}
	if err := g.alerter.Alert(context.WithoutCancel(ctx), message); err != nil {
		g.logger.Warn("operator alert failed", "error", err)
	}
}

func (g *Gateway) applyEdit(ctx context.Context, draftID, actor, raw string, now time.Time) (domain.ApprovalDecision, error) {
	text := g.sanitize(raw)
	if text == "" {
		return domain.ApprovalDecision{}, fmt.Errorf("edit of %s is empty: %w", draftID, domain.ErrInvalidInput)
	}

	entry, err := g.store.AppendEdit(ctx, domain.Edit{
		DraftID:  draftID,
		Text:     text,
		Actor:    actor,
		EditedAt: now,
	})
	if err != nil {
		return domain.ApprovalDecision{}, g.resolveError(draftID, actor, domain.DecisionEdit, err)
	}
	g.metrics.RecordDecision(domain.DecisionEdit)
	g.logger.Info("draft edited", "draft", draftID, "actor", actor, "revision", entry.Revision)

	if _, err := g.notify(ctx, entry); err != nil {
		g.logger.Warn("re-notify after edit failed", "draft", draftID, "error", err)
	}

	return domain.ApprovalDecision{
		DraftID:    draftID,
		Decision:   domain.DecisionEdit,
		Actor:      actor,
		DecidedAt:  now,
		EditedText: text,
	}, nil
}

func (g *Gateway) resolveError(draftID, actor string, decision domain.Decision, err error) error {
	if errors.Is(err, domain.ErrAlreadyResolved) {
		g.metrics.RecordAlreadyResolved()
		g.logger.Warn("late reviewer action ignored", "draft", draftID, "decision", decision, "actor", actor)
	}
	return fmt.Errorf("resolve %s: %w", draftID, err)
}

func (g *Gateway) notify(ctx context.Context, entry domain.PendingApproval) (string, error) {
	if g.channel == nil {
		return "", nil
	}
	ref, err := g.channel.Notify(ctx, domain.Review{
		DraftID:     entry.Draft.ID,
		SessionID:   entry.Draft.SessionID,
		Text:        entry.Text,
		Attempt:     entry.Draft.AttemptNumber,
		Revision:    entry.Revision,
		EditedBy:    entry.LastEditedBy,
		SourceCount: len(entry.Draft.SourceNewsIDs),
		SubmittedAt: entry.SubmittedAt,
	})
	if err != nil {
		return "", fmt.Errorf("notify reviewers for %s: %w", entry.Draft.ID, err)
	}
	if err := g.store.SetChannelRef(ctx, entry.Draft.ID, ref); err != nil {
		return ref, fmt.Errorf("store channel ref for %s: %w", entry.Draft.ID, err)
	}
	return ref, nil
}

// sanitize strips markup from reviewer text and keeps it as plain text.
func (g *Gateway) sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(g.policy.Sanitize(raw)))
}

// Pending returns the review entry for a draft.
func (g *Gateway) Pending(ctx context.Context, draftID string) (domain.PendingApproval, error) {
	return g.store.Pending(ctx, draftID)
}

// ListPending returns drafts still awaiting a terminal decision.
func (g *Gateway) ListPending(ctx context.Context) ([]domain.PendingApproval, error) {
	return g.store.ListPending(ctx)
}
