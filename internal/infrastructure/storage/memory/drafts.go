package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// DraftStore keeps drafts and their critique history.
type DraftStore struct {
	mu        sync.RWMutex
	drafts    map[string]domain.Draft
	critiques map[string][]domain.CritiqueResult
}

var _ ports.DraftStore = (*DraftStore)(nil)

func NewDraftStore() *DraftStore {
	return &DraftStore{
		drafts:    map[string]domain.Draft{},
		critiques: map[string][]domain.CritiqueResult{},
	}
}

func (s *DraftStore) SaveDraft(_ context.Context, draft domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[draft.ID]; ok {
		return fmt.Errorf("draft %s already stored", draft.ID)
	}
	draft.SourceNewsIDs = slices.Clone(draft.SourceNewsIDs)
	s.drafts[draft.ID] = draft
	return nil
}

func (s *DraftStore) Draft(_ context.Context, id string) (domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return domain.Draft{}, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	d.SourceNewsIDs = slices.Clone(d.SourceNewsIDs)
	return d, nil
}

func (s *DraftStore) AppendCritique(_ context.Context, result domain.CritiqueResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[result.DraftID]; !ok {
		return fmt.Errorf("draft %s: %w", result.DraftID, domain.ErrNotFound)
	}
	result.ViolatedRules = slices.Clone(result.ViolatedRules)
	s.critiques[result.DraftID] = append(s.critiques[result.DraftID], result)
	return nil
}

func (s *DraftStore) Critiques(_ context.Context, draftID string) ([]domain.CritiqueResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.critiques[draftID]), nil
}

func (s *DraftStore) DraftsByStatus(_ context.Context, status domain.DraftStatus, since time.Time) ([]domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Draft
	for _, d := range s.drafts {
		if d.Status != status || d.CreatedAt.Before(since) {
			continue
		}
		d.SourceNewsIDs = slices.Clone(d.SourceNewsIDs)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *DraftStore) UpdateStatus(_ context.Context, id string, from, to domain.DraftStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionLocked(id, from, to)
}

func (s *DraftStore) MarkPendingApproval(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, ok := domain.LatestCritique(s.critiques[id])
	if !ok || !latest.Passed() {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotVetted)
	}
	return s.transitionLocked(id, domain.StatusCritiqued, domain.StatusPendingApproval)
}

func (s *DraftStore) transitionLocked(id string, from, to domain.DraftStatus) error {
	d, ok := s.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	if d.Status != from {
		return fmt.Errorf("draft %s is %s, expected %s: %w", id, d.Status, from, domain.ErrInvalidTransition)
	}
	if err := d.Transition(to); err != nil {
		return err
	}
	s.drafts[id] = d
	return nil
}

// UsedNewsIDs reports which of ids already fed a stored draft. Abandoned drafts do not count.
func (s *DraftStore) UsedNewsIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	used := map[string]bool{}
	for _, d := range s.drafts {
		if d.Status == domain.StatusAbandoned {
			continue
		}
		for _, id := range d.SourceNewsIDs {
			if _, ok := want[id]; ok {
				used[id] = true
			}
		}
	}
	return used, nil
}
