// Package targets posts approved text to external social platforms.
package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

// Target names as used in publish configuration and records.
const (
	TwitterName  = "twitter"
	LinkedInName = "linkedin"
)

const (
	tweetLimit     = 280
	tweetSoftLimit = 275
)

// Twitter posts through the v2 tweets endpoint with OAuth1 user context.
type Twitter struct {
	endpoint string
	config   *oauth1.Config
	token    *oauth1.Token
	base     *http.Client
}

var _ ports.PostTarget = (*Twitter)(nil)

// NewTwitter returns an error when any credential is missing.
func NewTwitter(cfg config.TwitterConfig) (*Twitter, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, fmt.Errorf("twitter credentials are not fully configured")
	}
	return &Twitter{
		endpoint: cfg.Endpoint,
		config:   oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		token:    oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret),
		base:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (t *Twitter) Name() string {
	return TwitterName
}

// Post shortens the text to the tweet limit and returns the tweet id.
func (t *Twitter) Post(ctx context.Context, text, _ string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": FitTweet(text)})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	client := t.config.Client(context.WithValue(ctx, oauth1.HTTPClient, t.base), t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("twitter", resp)
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter response carried no tweet id")
	}
	return out.Data.ID, nil
}

// FitTweet keeps whole leading sentences when the text is too long and
// falls back to a hard cut with an ellipsis.
func FitTweet(text string) string {
	text = strings.TrimSpace(text)
	if runeLen(text) <= tweetLimit {
		return text
	}

	sentences := strings.Split(text, ". ")
	fitted := strings.TrimSuffix(sentences[0], ".") + "."
	for _, s := range sentences[1:] {
		next := fitted + " " + strings.TrimSuffix(s, ".") + "."
		if runeLen(next) > tweetSoftLimit {
			break
		}
		fitted = next
	}
	if runeLen(fitted) > tweetLimit {
		return string([]rune(text)[:tweetLimit-3]) + "..."
	}
	return fitted
}

func runeLen(s string) int {
	return len([]rune(s))
}

func statusError(target string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
	return fmt.Errorf("%s returned %s: %s", target, resp.Status, strings.TrimSpace(string(payload)))
}
