package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/infrastructure/storage/memory"
	"NewsPoster/internal/ports"
)

// scriptedWriter replies with the next text for each generation call.
func scriptedWriter(replies ...string) (*fakeCompleter, *[]string) {
	var prompts []string
	call := 0
	return &fakeCompleter{completeFn: func(_ context.Context, req ports.CompletionRequest) (string, error) {
		prompts = append(prompts, req.Prompt)
		reply := replies[min(call, len(replies)-1)]
		call++
		return reply, nil
	}}, &prompts
}

func newCoordinator(writer ports.Completer, drafts ports.DraftStore) *RetryCoordinator {
	return NewRetryCoordinator(CoordinatorDeps{
		Generator: NewGenerator(writer, config.GenerationConfig{}),
		Critic:    NewCritic(passingJudge(), config.CriticConfig{MinWords: 50, MaxWords: 300}),
		Drafts:    drafts,
	})
}

func TestCoordinatorFirstAttemptPasses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drafts := memory.NewDraftStore()
	writer, _ := scriptedWriter(goodDraftText)

	out, err := newCoordinator(writer, drafts).Run(ctx, Session{ID: "s1", News: seriesBNews()})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if out.Draft.Status != domain.StatusPendingApproval || out.Draft.AttemptNumber != 1 {
		t.Fatalf("unexpected outcome: %+v", out.Draft)
	}
	stored, err := drafts.Draft(ctx, out.Draft.ID)
	if err != nil || stored.Status != domain.StatusPendingApproval {
		t.Fatalf("stored draft not pending approval: %+v (%v)", stored, err)
	}
	history, _ := drafts.Critiques(ctx, out.Draft.ID)
	if len(history) != 1 || !history[0].Passed() {
		t.Fatalf("expected a single passing critique, got %+v", history)
	}
}

func TestCoordinatorRetriesWithFeedback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drafts := memory.NewDraftStore()
	writer, prompts := scriptedWriter(financialDraftText, goodDraftText)

	out, err := newCoordinator(writer, drafts).Run(ctx, Session{ID: "s1", News: seriesBNews()})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if out.Draft.AttemptNumber != 2 || out.Draft.Status != domain.StatusPendingApproval {
		t.Fatalf("expected attempt 2 pending approval, got %+v", out.Draft)
	}
	if len(out.Critiques) != 2 {
		t.Fatalf("expected 2 critiques, got %d", len(out.Critiques))
	}
	if got := out.Critiques[0].ViolatedRules; len(got) != 1 || got[0] != domain.RuleNoFinancialAdvice {
		t.Fatalf("first critique should flag financial advice, got %v", got)
	}
	if len(*prompts) != 2 || !strings.Contains((*prompts)[1], "Violated rules: no_financial_advice") {
		t.Fatalf("second attempt prompt lacks feedback")
	}
}

func TestCoordinatorRejectsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drafts := memory.NewDraftStore()
	writer, prompts := scriptedWriter(financialDraftText)

	out, err := newCoordinator(writer, drafts).Run(ctx, Session{ID: "s1", News: seriesBNews()})

	var rejection *domain.CriticRejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected CriticRejectionError, got %v", err)
	}
	if rejection.Attempts != MaxAttempts || len(*prompts) != MaxAttempts {
		t.Fatalf("expected %d attempts, got %d (%d prompts)", MaxAttempts, rejection.Attempts, len(*prompts))
	}
	if out.Draft.Status != domain.StatusRejectedByCritic || out.Draft.AttemptNumber != MaxAttempts {
		t.Fatalf("unexpected final draft: %+v", out.Draft)
	}
	if len(out.Critiques) != MaxAttempts {
		t.Fatalf("expected one critique per attempt, got %d", len(out.Critiques))
	}
	for _, c := range out.Critiques {
		d, _ := drafts.Draft(ctx, c.DraftID)
		if d.Status == domain.StatusPendingApproval {
			t.Fatalf("draft %s reached pending approval despite failing", d.ID)
		}
	}
}

func TestCoordinatorHonoursLowerAttemptBudget(t *testing.T) {
	t.Parallel()

	writer, prompts := scriptedWriter(financialDraftText)
	c := NewRetryCoordinator(CoordinatorDeps{
		Generator:   NewGenerator(writer, config.GenerationConfig{}),
		Critic:      NewCritic(nil, config.CriticConfig{}),
		Drafts:      memory.NewDraftStore(),
		MaxAttempts: 1,
	})

	_, err := c.Run(context.Background(), Session{ID: "s1", News: seriesBNews()})
	if !errors.Is(err, domain.ErrCriticRejection) || len(*prompts) != 1 {
		t.Fatalf("expected rejection after one attempt, got %v after %d", err, len(*prompts))
	}
}

func TestCoordinatorAbortsOnGenerationFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drafts := memory.NewDraftStore()
	writer := &fakeCompleter{completeFn: func(context.Context, ports.CompletionRequest) (string, error) {
		return "", errors.New("upstream 503")
	}}

	out, err := newCoordinator(writer, drafts).Run(ctx, Session{ID: "s1", News: seriesBNews()})
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected ErrGenerationFailure, got %v", err)
	}
	if out.Draft.ID != "" {
		t.Fatalf("no draft should be returned, got %+v", out.Draft)
	}
	used, _ := drafts.UsedNewsIDs(ctx, domain.NewsIDs(seriesBNews()))
	if len(used) != 0 {
		t.Fatalf("failed generation must not persist drafts")
	}
}

func TestCoordinatorAbandonsDraftsWhenRetryFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drafts := memory.NewDraftStore()
	call := 0
	writer := &fakeCompleter{completeFn: func(context.Context, ports.CompletionRequest) (string, error) {
		call++
		if call == 2 {
			return "", errors.New("upstream 503")
		}
		return financialDraftText, nil
	}}

	out, err := newCoordinator(writer, drafts).Run(ctx, Session{ID: "s1", News: seriesBNews()})
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected ErrGenerationFailure, got %v", err)
	}
	if out.Draft.AttemptNumber != 1 || out.Draft.Status != domain.StatusAbandoned {
		t.Fatalf("attempt 1 draft should be abandoned, got %+v", out.Draft)
	}
	stored, err := drafts.Draft(ctx, out.Draft.ID)
	if err != nil || stored.Status != domain.StatusAbandoned {
		t.Fatalf("stored draft not abandoned: %+v (%v)", stored, err)
	}
	used, _ := drafts.UsedNewsIDs(ctx, domain.NewsIDs(seriesBNews()))
	if len(used) != 0 {
		t.Fatalf("news of an abandoned session must stay available, got %v", used)
	}
}

func TestCoordinatorAbandonsDraftWhenCritiqueIsCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drafts := memory.NewDraftStore()
	writer, _ := scriptedWriter(goodDraftText)
	judge := &fakeCompleter{completeFn: func(ctx context.Context, _ ports.CompletionRequest) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	c := NewRetryCoordinator(CoordinatorDeps{
		Generator: NewGenerator(writer, config.GenerationConfig{}),
		Critic:    NewCritic(judge, config.CriticConfig{MinWords: 50, MaxWords: 300}),
		Drafts:    drafts,
	})

	if _, err := c.Run(ctx, Session{ID: "s1", News: seriesBNews()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	used, _ := drafts.UsedNewsIDs(context.Background(), domain.NewsIDs(seriesBNews()))
	if len(used) != 0 {
		t.Fatalf("generated draft should be abandoned, news still used: %v", used)
	}
}
