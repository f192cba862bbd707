package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/scanner"
)

const defaultNewsAPIPageSize = 20

// NewsAPIScanner queries a NewsAPI-compatible search endpoint.
type NewsAPIScanner struct {
	client *http.Client
}

// NewNewsAPIScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewNewsAPIScanner(client *http.Client) *NewsAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &NewsAPIScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (n *NewsAPIScanner) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Scan runs the configured query against each category endpoint.
func (n *NewsAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no endpoints provided for site %s", req.SiteName)
	}
	apiKey := req.Options["apiKey"]
	if apiKey == "" {
		return nil, fmt.Errorf("site %s: news api key is not configured", req.SiteName)
	}
	pageSize := req.MaxItems
	if pageSize <= 0 {
		pageSize = defaultNewsAPIPageSize
	}

	var results []domain.NewsItem
	for _, cat := range req.Categories {
		pageURL, err := buildPageURL(cat.URL, req.Options, req.Since, pageSize)
		if err != nil {
			return results, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		resp, err := n.fetch(ctx, pageURL, apiKey)
		if err != nil {
			return results, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		for _, a := range resp.Articles {
			if a.URL == "" || a.Title == "" || a.Title == "[Removed]" {
				continue
			}
			source := a.Source.Name
			if source == "" {
				source = req.SiteName
			}
			results = append(results, domain.NewNewsItem(a.URL, a.Title, htmlToText(a.Description), source, a.PublishedAt.UTC()))
		}
	}

	return results, nil
}

func (n *NewsAPIScanner) fetch(ctx context.Context, pageURL, apiKey string) (newsAPIResponse, error) {
	var out newsAPIResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsPoster/1.0")
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("request articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out, fmt.Errorf("news api returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode articles: %w", err)
	}
	if out.Status != "ok" {
		return out, fmt.Errorf("news api status %s: %s", out.Code, out.Message)
	}
	return out, nil
}

func buildPageURL(base string, options map[string]string, since time.Time, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint url %s: %w", base, err)
	}

	query := parsed.Query()
	if q := options["query"]; q != "" {
		query.Set("q", q)
	}
	if lang := options["language"]; lang != "" {
		query.Set("language", lang)
	}
	if !since.IsZero() {
		query.Set("from", since.UTC().Format(time.RFC3339))
	}
	query.Set("sortBy", "publishedAt")
	query.Set("pageSize", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
