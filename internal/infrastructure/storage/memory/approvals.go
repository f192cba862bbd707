package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// ApprovalStore keeps pending reviews, edit history and terminal decisions.
type ApprovalStore struct {
	mu        sync.Mutex
	pending   map[string]domain.PendingApproval
	edits     map[string][]domain.Edit
	decisions map[string]domain.ApprovalDecision
}

var _ ports.ApprovalStore = (*ApprovalStore)(nil)

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		pending:   map[string]domain.PendingApproval{},
		edits:     map[string][]domain.Edit{},
		decisions: map[string]domain.ApprovalDecision{},
	}
}

func (s *ApprovalStore) Register(_ context.Context, entry domain.PendingApproval) (domain.PendingApproval, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[entry.Draft.ID]; ok {
		return existing, false, nil
	}
	s.pending[entry.Draft.ID] = entry
	return entry, true, nil
}

func (s *ApprovalStore) SetChannelRef(_ context.Context, draftID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[draftID]
	if !ok {
		return fmt.Errorf("pending %s: %w", draftID, domain.ErrNotFound)
	}
	p.ChannelRef = ref
	s.pending[draftID] = p
	return nil
}

func (s *ApprovalStore) AppendEdit(_ context.Context, edit domain.Edit) (domain.PendingApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[edit.DraftID]
	if !ok {
		return domain.PendingApproval{}, fmt.Errorf("pending %s: %w", edit.DraftID, domain.ErrNotFound)
	}
	if _, done := s.decisions[edit.DraftID]; done {
		return domain.PendingApproval{}, fmt.Errorf("draft %s: %w", edit.DraftID, domain.ErrAlreadyResolved)
	}

	s.edits[edit.DraftID] = append(s.edits[edit.DraftID], edit)
	p.Text = edit.Text
	p.Revision++
	p.LastEditedBy = edit.Actor
	p.UpdatedAt = edit.EditedAt
	p.Status = domain.StatusPendingApproval
	s.pending[edit.DraftID] = p
	return p, nil
}

func (s *ApprovalStore) Decide(_ context.Context, decision domain.ApprovalDecision) (domain.ApprovalDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[decision.DraftID]
	if !ok {
		return domain.ApprovalDecision{}, fmt.Errorf("pending %s: %w", decision.DraftID, domain.ErrNotFound)
	}
	if _, done := s.decisions[decision.DraftID]; done {
		return domain.ApprovalDecision{}, fmt.Errorf("draft %s: %w", decision.DraftID, domain.ErrAlreadyResolved)
	}

	switch decision.Decision {
	case domain.DecisionApprove:
		p.Status = domain.StatusApproved
		if p.Edited() {
			decision.EditedText = p.Text
		}
	case domain.DecisionReject:
		p.Status = domain.StatusRejectedByHuman
	default:
		return domain.ApprovalDecision{}, fmt.Errorf("decision %q is not terminal: %w", decision.Decision, domain.ErrInvalidInput)
	}
	s.decisions[decision.DraftID] = decision
	p.UpdatedAt = decision.DecidedAt
	s.pending[decision.DraftID] = p
	return decision, nil
}

func (s *ApprovalStore) Pending(_ context.Context, draftID string) (domain.PendingApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[draftID]
	if !ok {
		return domain.PendingApproval{}, fmt.Errorf("pending %s: %w", draftID, domain.ErrNotFound)
	}
	return p, nil
}

func (s *ApprovalStore) Decision(_ context.Context, draftID string) (domain.ApprovalDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.decisions[draftID]
	if !ok {
		return domain.ApprovalDecision{}, fmt.Errorf("decision %s: %w", draftID, domain.ErrNotFound)
	}
	return d, nil
}

// ListPending returns unresolved entries, oldest first.
func (s *ApprovalStore) ListPending(_ context.Context) ([]domain.PendingApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PendingApproval
	for id, p := range s.pending {
		if _, done := s.decisions[id]; done {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// ApprovedSince returns approve decisions taken at or after since, oldest first.
func (s *ApprovalStore) ApprovedSince(_ context.Context, since time.Time) ([]domain.ApprovalDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ApprovalDecision
	for _, d := range s.decisions {
		if d.Decision != domain.DecisionApprove || d.DecidedAt.Before(since) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DecidedAt.Before(out[j].DecidedAt)
	})
	return out, nil
}

// Edits returns the edit history of a draft.
func (s *ApprovalStore) Edits(draftID string) []domain.Edit {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Edit(nil), s.edits[draftID]...)
}
