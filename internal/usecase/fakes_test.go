package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/infrastructure/storage/memory"
	"NewsPoster/internal/ports"
)

const (
	goodDraftText = "Startup X has raised $50M in a Series B round led by Example Ventures. " +
		"The developer tools company plans to use the new capital to expand its engineering team and grow its platform. " +
		"It is a useful signal for founders building infrastructure for software teams, and a reminder that focused products " +
		"with clear value continue to attract serious backing from investors. #Startups #DevTools"

	financialDraftText = "Startup X has raised $50M in a Series B round led by Example Ventures. " +
		"The developer tools company plans to use the new capital to expand its engineering team and grow its platform. " +
		"Momentum like this rarely lasts, so buy $X now while the valuation still looks reasonable to everyone " +
		"watching this market closely. #Startups #DevTools"
)

var baseTime = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func seriesBNews() []domain.NewsItem {
	return []domain.NewsItem{
		domain.NewNewsItem(
			"https://news.example/startup-x-series-b",
			"Startup X raises $50M Series B",
			"Startup X, a developer tools company, closed a $50M Series B led by Example Ventures to expand its engineering team.",
			"news.example",
			baseTime,
		),
	}
}

func newsBatch(n int) []domain.NewsItem {
	items := make([]domain.NewsItem, 0, n)
	for i := range n {
		items = append(items, domain.NewNewsItem(
			fmt.Sprintf("https://news.example/item-%d", i),
			fmt.Sprintf("Headline %d", i),
			"Summary",
			"news.example",
			baseTime.Add(time.Duration(i)*time.Minute),
		))
	}
	return items
}

// scriptedWriter replies with the next text per call and repeats the last one.
// An empty reply is returned as a service error.
type scriptedWriter struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (w *scriptedWriter) Complete(context.Context, ports.CompletionRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	reply := w.replies[min(w.calls, len(w.replies)-1)]
	w.calls++
	if reply == "" {
		return "", errors.New("upstream 503")
	}
	return reply, nil
}

type passingJudge struct{}

func (passingJudge) Complete(context.Context, ports.CompletionRequest) (string, error) {
	verdicts := map[string]string{}
	for _, rule := range domain.Rules {
		verdicts[string(rule.ID)] = "pass"
	}
	raw, err := json.Marshal(map[string]any{"verdicts": verdicts, "feedback": ""})
	return string(raw), err
}

type fakeSource struct {
	items []domain.NewsItem
	err   error
}

func (f fakeSource) FetchNewsItems(context.Context) ([]domain.NewsItem, error) {
	return f.items, f.err
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(_ context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
	return nil
}

func (a *recordingAlerter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

type recordingChannel struct {
	mu       sync.Mutex
	notified []domain.Review
}

func (c *recordingChannel) Notify(_ context.Context, review domain.Review) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified = append(c.notified, review)
	return "C1:" + review.DraftID, nil
}

func (c *recordingChannel) Resolved(context.Context, string, domain.ApprovalDecision) error {
	return nil
}

type recordingTarget struct {
	name  string
	err   error
	mu    sync.Mutex
	posts []string
}

func (t *recordingTarget) Name() string { return t.name }

func (t *recordingTarget) Post(_ context.Context, text, _ string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", t.err
	}
	t.posts = append(t.posts, text)
	return fmt.Sprintf("%s-%d", t.name, len(t.posts)), nil
}

// flakyQueue refuses enqueues while an error is set.
type flakyQueue struct {
	*memory.Queue
	mu  sync.Mutex
	err error
}

func (q *flakyQueue) FailWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *flakyQueue) Enqueue(ctx context.Context, draftID string) error {
	q.mu.Lock()
	err := q.err
	q.mu.Unlock()
	if err != nil {
		return err
	}
	return q.Queue.Enqueue(ctx, draftID)
}
