package domain

import "time"

// Decision is a reviewer action on a pending draft.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionEdit    Decision = "edit"
)

// Terminal reports whether the decision closes the review.
func (d Decision) Terminal() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionEdit
}

// ApprovalDecision records who resolved a draft and how.
// EditedText is set when the reviewer changed the text before approving.
type ApprovalDecision struct {
	DraftID    string
	Decision   Decision
	Actor      string
	DecidedAt  time.Time
	EditedText string
}

// Edit is a reviewer revision of the pending text.
type Edit struct {
	DraftID  string
	Text     string
	Actor    string
	EditedAt time.Time
}

// PendingApproval is the gateway's persisted view of a draft under review.
type PendingApproval struct {
	Draft        Draft
	Text         string
	Status       DraftStatus
	Revision     int
	ChannelRef   string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
	LastEditedBy string
}

// Edited reports whether a reviewer changed the generated text.
func (p PendingApproval) Edited() bool {
	return p.Revision > 0 && p.Text != p.Draft.Text
}

// Review is what the reviewer channel shows for a pending draft.
type Review struct {
	DraftID     string
	SessionID   string
	Text        string
	Attempt     int
	Revision    int
	EditedBy    string
	SourceCount int
	SubmittedAt time.Time
}
