package ports

import (
	"context"
	"time"

	"NewsPoster/internal/domain"
)

// NewsSource fetches fresh headlines from external providers.
type NewsSource interface {
	FetchNewsItems(ctx context.Context) ([]domain.NewsItem, error)
}

// NewsWriter appends deduplicated items and reports how many were new.
type NewsWriter interface {
	AppendNews(ctx context.Context, items []domain.NewsItem) (int, error)
}

// NewsReader exposes the last known news snapshot.
type NewsReader interface {
	RecentNews(ctx context.Context, since time.Time, limit int) ([]domain.NewsItem, error)
}

// StyleCorpus provides read-only writing samples.
type StyleCorpus interface {
	SampleStyles(ctx context.Context, n int) ([]string, error)
}

// CompletionRequest is a single prompt to a text-generation service.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer talks to a text-generation service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DraftReader is the read-only view of generation state used by downstream stages.
type DraftReader interface {
	Draft(ctx context.Context, id string) (domain.Draft, error)
	Critiques(ctx context.Context, draftID string) ([]domain.CritiqueResult, error)
	// DraftsByStatus lists drafts in status created at or after since, oldest first.
	DraftsByStatus(ctx context.Context, status domain.DraftStatus, since time.Time) ([]domain.Draft, error)
}

// DraftStore persists drafts and critique history; owned by the generation stage.
type DraftStore interface {
	DraftReader
	SaveDraft(ctx context.Context, draft domain.Draft) error
	AppendCritique(ctx context.Context, result domain.CritiqueResult) error
	UpdateStatus(ctx context.Context, id string, from, to domain.DraftStatus) error
	// MarkPendingApproval moves a critiqued draft forward only when its latest critique passed.
	MarkPendingApproval(ctx context.Context, id string) error
	UsedNewsIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// ApprovalReader is the read-only view of review state used by the publish stage.
type ApprovalReader interface {
	Pending(ctx context.Context, draftID string) (domain.PendingApproval, error)
	Decision(ctx context.Context, draftID string) (domain.ApprovalDecision, error)
	ListPending(ctx context.Context) ([]domain.PendingApproval, error)
	// ApprovedSince lists approve decisions taken at or after since, oldest first.
	ApprovedSince(ctx context.Context, since time.Time) ([]domain.ApprovalDecision, error)
}

// ApprovalStore persists review state; owned by the approval stage.
type ApprovalStore interface {
	ApprovalReader
	// Register stores a pending entry; created is false when it already existed.
	Register(ctx context.Context, entry domain.PendingApproval) (stored domain.PendingApproval, created bool, err error)
	SetChannelRef(ctx context.Context, draftID, ref string) error
	// AppendEdit replaces the pending text unless a terminal decision exists.
	AppendEdit(ctx context.Context, edit domain.Edit) (domain.PendingApproval, error)
	// Decide persists the terminal decision; the first writer wins and
	// later callers get domain.ErrAlreadyResolved. An approval of edited
	// text is stored with the text current at decision time.
	Decide(ctx context.Context, decision domain.ApprovalDecision) (domain.ApprovalDecision, error)
}

// PublishStore persists per-target posting outcomes; owned by the publish stage.
type PublishStore interface {
	Records(ctx context.Context, draftID string) ([]domain.PublishRecord, error)
	AppendRecord(ctx context.Context, record domain.PublishRecord) error
	// Claim reserves a (draft, target) pair for posting. It reports false
	// while another holder's claim is younger than lease.
	Claim(ctx context.Context, draftID, target string, lease time.Duration) (bool, error)
	Release(ctx context.Context, draftID, target string) error
}

// ReviewChannel delivers pending drafts to human reviewers.
type ReviewChannel interface {
	Notify(ctx context.Context, review domain.Review) (string, error)
	Resolved(ctx context.Context, ref string, decision domain.ApprovalDecision) error
}

// PostTarget publishes text to one external platform.
type PostTarget interface {
	Name() string
	Post(ctx context.Context, text, mediaRef string) (string, error)
}

// DraftQueue hands draft identifiers from one stage to the next.
type DraftQueue interface {
	Enqueue(ctx context.Context, draftID string) error
	// Dequeue blocks up to timeout; ok is false when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (draftID string, ok bool, err error)
}

// Alerter pages an operator about failures that need a human.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// Scheduler triggers periodic jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
