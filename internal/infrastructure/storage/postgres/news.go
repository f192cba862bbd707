package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// NewsStore keeps the ingested news snapshot.
type NewsStore struct {
	db *sql.DB
}

var (
	_ ports.NewsWriter = (*NewsStore)(nil)
	_ ports.NewsReader = (*NewsStore)(nil)
)

// NewNewsStore wires a sql.DB implementation.
func NewNewsStore(db *sql.DB) *NewsStore {
	return &NewsStore{db: db}
}

// AppendNews inserts unseen items and reports how many were new.
func (s *NewsStore) AppendNews(ctx context.Context, items []domain.NewsItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	res, err := exec(ctx, s.db, insertNewsQuery(items))
	if err != nil {
		return 0, fmt.Errorf("insert news: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// RecentNews returns items published at or after since, newest first.
func (s *NewsStore) RecentNews(ctx context.Context, since time.Time, limit int) ([]domain.NewsItem, error) {
	rows, err := query(ctx, s.db, recentNewsQuery(since, limit))
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}

	var out []domain.NewsItem
	for rows.Next() {
		var item domain.NewsItem
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Summary, &item.Source, &item.PublishedAt); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan news: %w", err))
		}
		out = append(out, item)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func insertNewsQuery(items []domain.NewsItem) sq.InsertBuilder {
	b := psql.Insert("news_items").
		Columns("id", "url", "title", "summary", "source", "published_at")
	for _, item := range domain.DedupNews(items) {
		b = b.Values(item.ID, item.URL, item.Title, item.Summary, item.Source, item.PublishedAt)
	}
	return b.Suffix("ON CONFLICT (id) DO NOTHING")
}

func recentNewsQuery(since time.Time, limit int) sq.SelectBuilder {
	b := psql.Select("id", "url", "title", "summary", "source", "published_at").
		From("news_items").
		OrderBy("published_at DESC")
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{"published_at": since})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}
