// Package memory provides mutex-guarded store implementations for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// NewsStore keeps news items in insertion order.
type NewsStore struct {
	mu    sync.RWMutex
	items []domain.NewsItem
	index map[string]struct{}
}

var (
	_ ports.NewsWriter = (*NewsStore)(nil)
	_ ports.NewsReader = (*NewsStore)(nil)
)

func NewNewsStore() *NewsStore {
	return &NewsStore{index: map[string]struct{}{}}
}

// AppendNews ignores items whose ID is already stored.
func (s *NewsStore) AppendNews(_ context.Context, items []domain.NewsItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, item := range items {
		if _, ok := s.index[item.ID]; ok {
			continue
		}
		s.index[item.ID] = struct{}{}
		s.items = append(s.items, item)
		inserted++
	}
	return inserted, nil
}

// RecentNews returns items published at or after since, newest first.
func (s *NewsStore) RecentNews(_ context.Context, since time.Time, limit int) ([]domain.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.NewsItem
	for _, item := range s.items {
		if !since.IsZero() && item.PublishedAt.Before(since) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
