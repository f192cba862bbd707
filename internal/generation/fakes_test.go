package generation

import (
	"context"
	"encoding/json"
	"time"

	"NewsPoster/internal/domain"
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

type fakeCompleter struct {
	completeFn func(ctx context.Context, req ports.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	return f.completeFn(ctx, req)
}

func seriesBNews() []domain.NewsItem {
	return []domain.NewsItem{
		domain.NewNewsItem(
			"https://news.example/startup-x-series-b",
			"Startup X raises $50M Series B",
			"Startup X, a developer tools company, closed a $50M Series B led by Example Ventures to expand its engineering team.",
			"news.example",
			time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		),
	}
}

func judgeReplyJSON(failing ...domain.RuleID) string {
	verdicts := map[string]string{}
	for _, rule := range domain.Rules {
		verdicts[string(rule.ID)] = "pass"
	}
	for _, id := range failing {
		verdicts[string(id)] = "fail"
	}
	raw, _ := json.Marshal(map[string]any{"verdicts": verdicts, "feedback": ""})
	return string(raw)
}

func passingJudge() *fakeCompleter {
	return &fakeCompleter{completeFn: func(context.Context, ports.CompletionRequest) (string, error) {
		return "```json\n" + judgeReplyJSON() + "\n```", nil
	}}
}
