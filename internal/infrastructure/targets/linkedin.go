package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

// LinkedIn publishes UGC posts on behalf of a member or organization URN.
type LinkedIn struct {
	endpoint string
	author   string
	tokens   oauth2.TokenSource
	base     *http.Client
}

var _ ports.PostTarget = (*LinkedIn)(nil)

// NewLinkedIn returns an error when the token or author is missing.
func NewLinkedIn(cfg config.LinkedInConfig) (*LinkedIn, error) {
	if cfg.AccessToken == "" || cfg.AuthorURN == "" {
		return nil, fmt.Errorf("linkedin credentials are not configured")
	}
	return &LinkedIn{
		endpoint: cfg.Endpoint,
		author:   cfg.AuthorURN,
		tokens:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}),
		base:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (l *LinkedIn) Name() string {
	return LinkedInName
}

type ugcPost struct {
	Author          string         `json:"author"`
	LifecycleState  string         `json:"lifecycleState"`
	SpecificContent map[string]any `json:"specificContent"`
	Visibility      map[string]any `json:"visibility"`
}

// Post returns the post URN from the X-RestLi-Id header or the body.
func (l *LinkedIn) Post(ctx context.Context, text, _ string) (string, error) {
	payload := ugcPost{
		Author:         l.author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		Visibility: map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, l.base), l.tokens)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to linkedin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("linkedin", resp)
	}

	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		return "", fmt.Errorf("linkedin response carried no post id")
	}
	return out.ID, nil
}
