package approval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/infrastructure/storage/memory"
)

const vettedText = "Startup X has raised $50M in a Series B round led by Example Ventures."

type fakeChannel struct {
	mu         sync.Mutex
	notifyFn   func(review domain.Review) (string, error)
	reviews    []domain.Review
	resolution []domain.ApprovalDecision
}

func (f *fakeChannel) Notify(_ context.Context, review domain.Review) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, review)
	if f.notifyFn != nil {
		return f.notifyFn(review)
	}
	return "C1:" + review.DraftID, nil
}

func (f *fakeChannel) Resolved(_ context.Context, _ string, decision domain.ApprovalDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolution = append(f.resolution, decision)
	return nil
}

func seedDraft(t *testing.T, drafts *memory.DraftStore, id string, verdict domain.Verdict) {
	t.Helper()
	ctx := context.Background()

	if err := drafts.SaveDraft(ctx, domain.Draft{
		ID:            id,
		SessionID:     "s1",
		SourceNewsIDs: []string{"n1"},
		Text:          vettedText,
		AttemptNumber: 1,
		Status:        domain.StatusGenerated,
	}); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	res := domain.CritiqueResult{DraftID: id, Verdict: verdict}
	if verdict == domain.VerdictFail {
		res.ViolatedRules = []domain.RuleID{domain.RuleNoFinancialAdvice}
	}
	if err := drafts.AppendCritique(ctx, res); err != nil {
		t.Fatalf("append critique: %v", err)
	}
	if err := drafts.UpdateStatus(ctx, id, domain.StatusGenerated, domain.StatusCritiqued); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if verdict == domain.VerdictPass {
		if err := drafts.MarkPendingApproval(ctx, id); err != nil {
			t.Fatalf("mark pending: %v", err)
		}
	}
}

type fixture struct {
	gateway  *Gateway
	drafts   *memory.DraftStore
	store    *memory.ApprovalStore
	channel  *fakeChannel
	approved *memory.Queue
}

func newFixture() fixture {
	f := fixture{
		drafts:   memory.NewDraftStore(),
		store:    memory.NewApprovalStore(),
		channel:  &fakeChannel{},
		approved: memory.NewQueue(16),
	}
	f.gateway = NewGateway(GatewayDeps{
		Drafts:   f.drafts,
		Store:    f.store,
		Channel:  f.channel,
		Approved: f.approved,
	})
	f.gateway.now = func() time.Time { return time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC) }
	return f
}

func TestSubmitRegistersAndNotifiesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)

	h, err := f.gateway.Submit(ctx, "d1")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if h.ChannelRef != "C1:d1" {
		t.Fatalf("unexpected channel ref %q", h.ChannelRef)
	}
	if _, err := f.gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("second Submit error: %v", err)
	}
	if len(f.channel.reviews) != 1 {
		t.Fatalf("expected a single notification, got %d", len(f.channel.reviews))
	}
	if f.channel.reviews[0].Text != vettedText || f.channel.reviews[0].SourceCount != 1 {
		t.Fatalf("unexpected review payload: %+v", f.channel.reviews[0])
	}

	pending, _ := f.gateway.ListPending(ctx)
	if len(pending) != 1 || pending[0].Status != domain.StatusPendingApproval {
		t.Fatalf("expected one pending entry, got %+v", pending)
	}
}

func TestSubmitRefusesUnvettedDrafts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "bad", domain.VerdictFail)

	if _, err := f.gateway.Submit(ctx, "bad"); !errors.Is(err, domain.ErrNotVetted) {
		t.Fatalf("expected ErrNotVetted, got %v", err)
	}
	if _, err := f.gateway.Submit(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.channel.reviews) != 0 {
		t.Fatalf("no reviewer may see an unvetted draft")
	}
	if _, err := f.store.Pending(ctx, "bad"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unvetted draft must not be registered")
	}
}

func TestSubmitRetriesFailedNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)

	f.channel.notifyFn = func(domain.Review) (string, error) { return "", errors.New("slack down") }
	if _, err := f.gateway.Submit(ctx, "d1"); err == nil {
		t.Fatalf("expected notify error")
	}

	f.channel.notifyFn = nil
	h, err := f.gateway.Submit(ctx, "d1")
	if err != nil || h.ChannelRef == "" {
		t.Fatalf("expected retry to notify, got %+v (%v)", h, err)
	}
}

func TestConcurrentResolveFirstWriterWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)
	if _, err := f.gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	decisions := []domain.Decision{domain.DecisionApprove, domain.DecisionReject, domain.DecisionApprove, domain.DecisionReject, domain.DecisionApprove}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.gateway.Resolve(ctx, "d1", Resolution{Decision: d, Actor: "reviewer"})
		}()
	}
	wg.Wait()

	var ok, late int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyResolved):
			late++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || late != len(decisions)-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d late", ok, late)
	}

	stored, err := f.store.Decision(ctx, "d1")
	if err != nil {
		t.Fatalf("load decision: %v", err)
	}
	wantQueued := 0
	if stored.Decision == domain.DecisionApprove {
		wantQueued = 1
	}
	if f.approved.Len() != wantQueued {
		t.Fatalf("expected %d queued drafts, got %d", wantQueued, f.approved.Len())
	}
}

func TestEditThenApprove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)
	if _, err := f.gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	edit, err := f.gateway.Resolve(ctx, "d1", Resolution{
		Decision:   domain.DecisionEdit,
		Actor:      "alice (U1)",
		EditedText: "<b>Startup X</b> raised $50M from Example Ventures & friends.",
	})
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	wantText := "Startup X raised $50M from Example Ventures & friends."
	if edit.EditedText != wantText {
		t.Fatalf("edit not sanitized: %q", edit.EditedText)
	}

	pending, _ := f.gateway.Pending(ctx, "d1")
	if pending.Status != domain.StatusPendingApproval || pending.Revision != 1 || pending.Text != wantText {
		t.Fatalf("edit must re-enter review with new text, got %+v", pending)
	}
	if len(f.channel.reviews) != 2 || f.channel.reviews[1].Revision != 1 {
		t.Fatalf("reviewers should see the edited revision")
	}

	decision, err := f.gateway.Resolve(ctx, "d1", Resolution{Decision: domain.DecisionApprove, Actor: "alice (U1)"})
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if decision.EditedText != wantText {
		t.Fatalf("approval must carry edited text, got %q", decision.EditedText)
	}
	if f.approved.Len() != 1 {
		t.Fatalf("approved draft not handed off")
	}
	if len(f.channel.resolution) != 1 {
		t.Fatalf("review message not updated")
	}
}

func TestResolveAfterRejectIsIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)
	if _, err := f.gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if _, err := f.gateway.Resolve(ctx, "d1", Resolution{Decision: domain.DecisionReject, Actor: "bob"}); err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if _, err := f.gateway.Resolve(ctx, "d1", Resolution{Decision: domain.DecisionApprove, Actor: "bob"}); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := f.gateway.Resolve(ctx, "d1", Resolution{Decision: domain.DecisionEdit, Actor: "bob", EditedText: "x"}); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved for late edit, got %v", err)
	}
	if f.approved.Len() != 0 {
		t.Fatalf("rejected draft must not be queued")
	}
}

func TestResolveValidatesInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)
	if _, err := f.gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	tests := []struct {
		name string
		res  Resolution
		id   string
		want error
	}{
		{name: "unknown decision", id: "d1", res: Resolution{Decision: "maybe"}, want: domain.ErrInvalidInput},
		{name: "blank edit", id: "d1", res: Resolution{Decision: domain.DecisionEdit, EditedText: "  <i></i> "}, want: domain.ErrInvalidInput},
		{name: "unknown draft", id: "nope", res: Resolution{Decision: domain.DecisionApprove}, want: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gateway.Resolve(ctx, tt.id, tt.res)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if !strings.HasPrefix(f.channel.reviews[0].DraftID, "d1") {
		t.Fatalf("unexpected review %+v", f.channel.reviews[0])
	}
}

type failingQueue struct {
	err error
}

func (q failingQueue) Enqueue(context.Context, string) error { return q.err }

func (q failingQueue) Dequeue(context.Context, time.Duration) (string, bool, error) {
	return "", false, nil
}

type recordingAlerter struct {
	messages []string
}

func (a *recordingAlerter) Alert(_ context.Context, message string) error {
	a.messages = append(a.messages, message)
	return nil
}

func TestResolveAlertsWhenApprovedHandOffFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	alerter := &recordingAlerter{}
	gateway := NewGateway(GatewayDeps{
		Drafts:   f.drafts,
		Store:    f.store,
		Channel:  f.channel,
		Approved: failingQueue{err: errors.New("redis: connection refused")},
		Alerter:  alerter,
	})
	seedDraft(t, f.drafts, "d1", domain.VerdictPass)
	if _, err := gateway.Submit(ctx, "d1"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if _, err := gateway.Resolve(ctx, "d1", Resolution{Decision: domain.DecisionApprove, Actor: "alice"}); err == nil {
		t.Fatalf("expected hand-off error")
	}
	if len(alerter.messages) != 1 || !strings.Contains(alerter.messages[0], "d1") {
		t.Fatalf("expected an alert naming the draft, got %v", alerter.messages)
	}
	decision, err := f.store.Decision(ctx, "d1")
	if err != nil || decision.Decision != domain.DecisionApprove {
		t.Fatalf("approval must stay recorded, got %+v (%v)", decision, err)
	}
}

func TestReconcileSubmitsVettedDraftsThatNeverReachedReview(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	for _, id := range []string{"lost", "reviewed", "unnotified"} {
		seedDraft(t, f.drafts, id, domain.VerdictPass)
	}
	seedDraft(t, f.drafts, "rejected", domain.VerdictFail)

	if _, err := f.gateway.Submit(ctx, "reviewed"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	f.channel.notifyFn = func(domain.Review) (string, error) { return "", errors.New("slack down") }
	if _, err := f.gateway.Submit(ctx, "unnotified"); err == nil {
		t.Fatalf("expected notify error")
	}
	f.channel.notifyFn = nil

	picked, err := f.gateway.Reconcile(ctx, time.Time{})
	if err != nil || picked != 2 {
		t.Fatalf("Reconcile = %d, %v; want 2", picked, err)
	}
	for _, id := range []string{"lost", "reviewed", "unnotified"} {
		entry, err := f.store.Pending(ctx, id)
		if err != nil || entry.ChannelRef != "C1:"+id {
			t.Fatalf("%s must be registered and notified, got %+v (%v)", id, entry, err)
		}
	}
	if _, err := f.store.Pending(ctx, "rejected"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rejected draft must not be submitted")
	}

	picked, err = f.gateway.Reconcile(ctx, time.Time{})
	if err != nil || picked != 0 {
		t.Fatalf("second Reconcile = %d, %v; want 0", picked, err)
	}
	if len(f.channel.reviews) != 4 {
		t.Fatalf("expected one notification per draft plus the failed one, got %d", len(f.channel.reviews))
	}
}
