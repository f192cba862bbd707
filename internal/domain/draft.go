package domain

import (
	"fmt"
	"time"
)

// DraftStatus enumerates pipeline milestones of a candidate post.
type DraftStatus string

const (
	StatusGenerated        DraftStatus = "generated"
	StatusCritiqued        DraftStatus = "critiqued"
	StatusRejectedByCritic DraftStatus = "rejected_by_critic"
	StatusPendingApproval  DraftStatus = "pending_approval"
	StatusApproved         DraftStatus = "approved"
	StatusRejectedByHuman  DraftStatus = "rejected_by_human"
	StatusEdited           DraftStatus = "edited"
	StatusPublished        DraftStatus = "published"
	// StatusAbandoned closes drafts of a session that ended in an error.
	// Their news items stay available to later sessions.
	StatusAbandoned DraftStatus = "abandoned"
)

var transitions = map[DraftStatus][]DraftStatus{
	StatusGenerated:       {StatusCritiqued, StatusAbandoned},
	StatusCritiqued:       {StatusPendingApproval, StatusRejectedByCritic, StatusAbandoned},
	StatusPendingApproval: {StatusApproved, StatusRejectedByHuman, StatusEdited},
	StatusEdited:          {StatusPendingApproval},
	StatusApproved:        {StatusPublished},
}

// CanTransition reports whether a draft may move from one status to another.
func CanTransition(from, to DraftStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports statuses no transition leaves.
func (s DraftStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Draft is a candidate post produced by one generation attempt.
type Draft struct {
	ID            string
	SessionID     string
	SourceNewsIDs []string
	Text          string
	AttemptNumber int
	CreatedAt     time.Time
	Status        DraftStatus
}

// Transition moves the draft to the next status or fails without changing it.
func (d *Draft) Transition(to DraftStatus) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("draft %s %s -> %s: %w", d.ID, d.Status, to, ErrInvalidTransition)
	}
	d.Status = to
	return nil
}
