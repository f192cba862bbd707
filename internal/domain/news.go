package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// NewsItem is a core entity describing a headline fetched from providers.
type NewsItem struct {
	ID          string
	URL         string
	Title       string
	Summary     string
	Source      string
	PublishedAt time.Time
}

// NewsIDFromURL derives the stable item identifier from its link.
func NewsIDFromURL(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL trims the parts of a link that do not identify the story.
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if i := strings.Index(u, "#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/")
}

// NewNewsItem builds an item with its ID derived from the URL.
func NewNewsItem(rawURL, title, summary, source string, publishedAt time.Time) NewsItem {
	return NewsItem{
		ID:          NewsIDFromURL(rawURL),
		URL:         strings.TrimSpace(rawURL),
		Title:       strings.TrimSpace(title),
		Summary:     strings.TrimSpace(summary),
		Source:      source,
		PublishedAt: publishedAt,
	}
}

// NewsIDs lists item identifiers in input order.
func NewsIDs(items []NewsItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// DedupNews drops items whose ID was already seen, keeping the first occurrence.
func DedupNews(items []NewsItem) []NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]NewsItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
