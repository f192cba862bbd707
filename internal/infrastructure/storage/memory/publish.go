package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// PublishStore keeps posting outcomes and target claims per draft.
type PublishStore struct {
	mu      sync.Mutex
	records map[string][]domain.PublishRecord
	claims  map[claimKey]time.Time
	now     func() time.Time
}

type claimKey struct {
	draftID string
	target  string
}

var _ ports.PublishStore = (*PublishStore)(nil)

func NewPublishStore() *PublishStore {
	return &PublishStore{
		records: map[string][]domain.PublishRecord{},
		claims:  map[claimKey]time.Time{},
		now:     time.Now,
	}
}

func (s *PublishStore) Records(_ context.Context, draftID string) ([]domain.PublishRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.records[draftID]), nil
}

// AppendRecord drops a second successful record for the same target.
func (s *PublishStore) AppendRecord(_ context.Context, record domain.PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.Success {
		if _, ok := domain.SuccessfulTargets(s.records[record.DraftID])[record.Target]; ok {
			return nil
		}
	}
	s.records[record.DraftID] = append(s.records[record.DraftID], record)
	return nil
}

// Claim takes the pair when it is free or the previous claim is older than lease.
func (s *PublishStore) Claim(_ context.Context, draftID, target string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey{draftID: draftID, target: target}
	now := s.now()
	if at, held := s.claims[key]; held && now.Sub(at) < lease {
		return false, nil
	}
	s.claims[key] = now
	return true, nil
}

func (s *PublishStore) Release(_ context.Context, draftID, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, claimKey{draftID: draftID, target: target})
	return nil
}
