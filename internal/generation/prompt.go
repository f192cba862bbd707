package generation

import (
	"fmt"
	"strings"

	"NewsPoster/internal/domain"
)

const writerSystemPrompt = `You write short professional social posts about technology and startup news.
Write in plain prose, no markdown headings, at most three hashtags.
Only state facts that appear in the news items you are given.
Reply with the post text only.`

const judgeSystemPrompt = `You review social posts against a fixed constitution.
Judge every rule independently. Reply with JSON only.`

func buildWriterPrompt(req GenerateRequest) string {
	var b strings.Builder

	b.WriteString("Constitution:\n")
	for _, rule := range domain.Rules {
		fmt.Fprintf(&b, "- %s\n", rule.Description)
	}

	if len(req.Styles) > 0 {
		b.WriteString("\nMatch the voice of these example posts:\n")
		for i, style := range req.Styles {
			fmt.Fprintf(&b, "Example %d:\n%s\n", i+1, strings.TrimSpace(style))
		}
	}

	b.WriteString("\nNews items:\n")
	writeNews(&b, req.News)

	if req.Feedback != "" {
		b.WriteString("\n[PREVIOUS DRAFT WAS REJECTED]\n")
		b.WriteString(req.Feedback)
		b.WriteString("\nWrite a new draft that fixes every listed problem.\n")
	}

	return b.String()
}

func buildJudgePrompt(draft domain.Draft, news []domain.NewsItem) string {
	var b strings.Builder

	b.WriteString("Rules:\n")
	for _, rule := range domain.Rules {
		fmt.Fprintf(&b, "- %s: %s\n", rule.ID, rule.Description)
	}

	b.WriteString("\nNews items the post may draw on:\n")
	writeNews(&b, news)

	b.WriteString("\nPost:\n")
	b.WriteString(draft.Text)
	b.WriteString("\n\nReply as {\"verdicts\": {\"<rule id>\": \"pass\" | \"fail\", ...}, \"feedback\": \"<what to change>\"} covering every rule id.\n")

	return b.String()
}

func writeNews(b *strings.Builder, news []domain.NewsItem) {
	for i, item := range news {
		fmt.Fprintf(b, "%d. %s (%s)\n", i+1, item.Title, item.Source)
		if item.Summary != "" {
			fmt.Fprintf(b, "   %s\n", item.Summary)
		}
		if item.URL != "" {
			fmt.Fprintf(b, "   %s\n", item.URL)
		}
	}
}
