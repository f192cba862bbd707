package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/scanner"
)

const defaultFeedItems = 5

// RSSScanner reads RSS/Atom feeds listed as site categories.
type RSSScanner struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSScanner{client: client, logger: logger, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan returns the newest entries of each feed, skipping items older than req.Since.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}
	limit := req.MaxItems
	if limit <= 0 {
		limit = defaultFeedItems
	}

	fp := gofeed.NewParser()
	fp.Client = s.client
	fp.UserAgent = "NewsPoster/1.0"

	var results []domain.NewsItem
	for _, cat := range req.Categories {
		feed, err := fp.ParseURLWithContext(cat.URL, ctx)
		if err != nil {
			return results, fmt.Errorf("feed %s: %w", cat.Name, err)
		}

		taken := 0
		for _, entry := range feed.Items {
			if taken >= limit {
				break
			}
			if entry == nil || entry.Link == "" {
				continue
			}
			published := s.publishedAt(entry)
			if !req.Since.IsZero() && published.Before(req.Since) {
				continue
			}

			summary := entry.Description
			if summary == "" {
				summary = entry.Content
			}
			results = append(results, domain.NewNewsItem(
				entry.Link,
				entry.Title,
				htmlToText(summary),
				sourceName(req.SiteName, feed.Title),
				published,
			))
			taken++
		}
		if s.logger != nil {
			s.logger.Debug("feed scanned", "site", req.SiteName, "feed", cat.Name, "items", taken)
		}
	}

	return results, nil
}

func (s *RSSScanner) publishedAt(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return s.now().UTC()
	}
}

func sourceName(site, feedTitle string) string {
	if feedTitle == "" {
		return site
	}
	return feedTitle
}
