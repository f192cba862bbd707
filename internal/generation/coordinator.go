package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/metrics"
	"NewsPoster/internal/ports"
)

// MaxAttempts bounds the generate/critique loop of one session.
const MaxAttempts = 3

// DraftGenerator produces one candidate draft.
type DraftGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (domain.Draft, error)
}

// DraftCritic evaluates one candidate draft.
type DraftCritic interface {
	Critique(ctx context.Context, draft domain.Draft, news []domain.NewsItem) (domain.CritiqueResult, error)
}

// Session is one logical generation run over a batch of news.
type Session struct {
	ID     string
	News   []domain.NewsItem
	Styles []string
}

// Outcome is what a session produced: the last draft and every critique in order.
type Outcome struct {
	Draft     domain.Draft
	Critiques []domain.CritiqueResult
}

// CoordinatorDeps wires the retry loop.
type CoordinatorDeps struct {
	Generator   DraftGenerator
	Critic      DraftCritic
	Drafts      ports.DraftStore
	Metrics     metrics.Recorder
	Logger      *slog.Logger
	MaxAttempts int
}

// RetryCoordinator runs generate -> critique with feedback until a draft passes
// or the attempt budget is spent. Only it moves drafts into pending_approval.
type RetryCoordinator struct {
	generator   DraftGenerator
	critic      DraftCritic
	drafts      ports.DraftStore
	metrics     metrics.Recorder
	logger      *slog.Logger
	maxAttempts int
}

// NewRetryCoordinator clamps the attempt budget to [1, MaxAttempts].
func NewRetryCoordinator(deps CoordinatorDeps) *RetryCoordinator {
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > MaxAttempts {
		maxAttempts = MaxAttempts
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Discard{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryCoordinator{
		generator:   deps.Generator,
		critic:      deps.Critic,
		drafts:      deps.Drafts,
		metrics:     rec,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Run executes one session. On success the returned draft is pending_approval.
// When every attempt fails critique the error is a *domain.CriticRejectionError.
// Any other error abandons the drafts the session stored.
func (c *RetryCoordinator) Run(ctx context.Context, s Session) (out Outcome, err error) {
	if len(s.News) == 0 {
		return Outcome{}, fmt.Errorf("session %s: no news items: %w", s.ID, domain.ErrInvalidInput)
	}

	var (
		feedback string
		stored   []domain.Draft
	)
	defer func() {
		if err == nil || errors.Is(err, domain.ErrCriticRejection) {
			return
		}
		for _, id := range c.abandon(ctx, s.ID, stored) {
			if id == out.Draft.ID {
				out.Draft.Status = domain.StatusAbandoned
			}
		}
	}()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.metrics.RecordAttempt()

		draft, err := c.generator.Generate(ctx, GenerateRequest{
			SessionID:       s.ID,
			News:            s.News,
			Styles:          s.Styles,
			Feedback:        feedback,
			PreviousAttempt: attempt - 1,
		})
		if err != nil {
			c.metrics.RecordSession(metrics.OutcomeGenerationFailed)
			return out, fmt.Errorf("session %s attempt %d: %w", s.ID, attempt, err)
		}
		draft.SessionID = s.ID
		draft.AttemptNumber = attempt

		if err := c.drafts.SaveDraft(ctx, draft); err != nil {
			return out, fmt.Errorf("save draft %s: %w", draft.ID, err)
		}
		stored = append(stored, draft)

		result, err := c.critic.Critique(ctx, draft, s.News)
		if err != nil {
			return out, fmt.Errorf("critique draft %s: %w", draft.ID, err)
		}
		result.DraftID = draft.ID
		c.metrics.RecordCritique(result.Verdict, result.ViolatedRules)

		if err := c.drafts.AppendCritique(ctx, result); err != nil {
			return out, fmt.Errorf("save critique for %s: %w", draft.ID, err)
		}
		if err := c.advance(ctx, &draft, domain.StatusCritiqued); err != nil {
			return out, err
		}
		stored[len(stored)-1] = draft

		out.Draft = draft
		out.Critiques = append(out.Critiques, result)

		if result.Passed() {
			if err := c.drafts.MarkPendingApproval(ctx, draft.ID); err != nil {
				return out, fmt.Errorf("mark draft %s pending approval: %w", draft.ID, err)
			}
			out.Draft.Status = domain.StatusPendingApproval
			c.metrics.RecordSession(metrics.OutcomeVetted)
			c.logger.Info("draft passed critique", "session", s.ID, "draft", draft.ID, "attempt", attempt)
			return out, nil
		}

		c.logger.Info("draft failed critique",
			"session", s.ID,
			"draft", draft.ID,
			"attempt", attempt,
			"violated", result.ViolatedRules,
		)

		if attempt == c.maxAttempts {
			if err := c.advance(ctx, &draft, domain.StatusRejectedByCritic); err != nil {
				return out, err
			}
			out.Draft = draft
			c.metrics.RecordSession(metrics.OutcomeCriticRejected)
			return out, &domain.CriticRejectionError{
				SessionID: s.ID,
				DraftID:   draft.ID,
				Attempts:  attempt,
				Violated:  result.ViolatedRules,
			}
		}

		feedback = result.Feedback()
	}

	return out, fmt.Errorf("session %s: attempt budget exhausted: %w", s.ID, domain.ErrCriticRejection)
}

// abandon closes the open drafts of a failed session and returns their ids.
func (c *RetryCoordinator) abandon(ctx context.Context, sessionID string, drafts []domain.Draft) []string {
	ctx = context.WithoutCancel(ctx)

	var closed []string
	for _, d := range drafts {
		if !domain.CanTransition(d.Status, domain.StatusAbandoned) {
			continue
		}
		if err := c.drafts.UpdateStatus(ctx, d.ID, d.Status, domain.StatusAbandoned); err != nil {
			c.logger.Warn("abandon draft failed", "session", sessionID, "draft", d.ID, "error", err)
			continue
		}
		closed = append(closed, d.ID)
	}
	if len(closed) > 0 {
		c.logger.Warn("session failed, drafts abandoned", "session", sessionID, "drafts", closed)
	}
	return closed
}

func (c *RetryCoordinator) advance(ctx context.Context, draft *domain.Draft, to domain.DraftStatus) error {
	from := draft.Status
	if err := draft.Transition(to); err != nil {
		return err
	}
	if err := c.drafts.UpdateStatus(ctx, draft.ID, from, to); err != nil {
		draft.Status = from
		return fmt.Errorf("update draft %s status: %w", draft.ID, err)
	}
	return nil
}
