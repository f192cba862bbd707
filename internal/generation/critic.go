package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// Critic evaluates drafts against the ordered constitution.
// Every rule is checked deterministically; when a judge is configured each
// rule must also be explicitly passed by it.
type Critic struct {
	judge          ports.Completer
	ruleSetVersion string
	minWords       int
	maxWords       int
	now            func() time.Time
}

// NewCritic builds a critic. A nil judge disables the model review.
func NewCritic(judge ports.Completer, cfg config.CriticConfig) *Critic {
	version := cfg.RuleSetVersion
	if version == "" {
		version = domain.RuleSetVersion
	}
	return &Critic{
		judge:          judge,
		ruleSetVersion: version,
		minWords:       cfg.MinWords,
		maxWords:       cfg.MaxWords,
		now:            time.Now,
	}
}

// Critique always yields a result for the draft. An error is returned only
// when ctx ends before the evaluation completes.
func (c *Critic) Critique(ctx context.Context, draft domain.Draft, news []domain.NewsItem) (domain.CritiqueResult, error) {
	reasons := map[domain.RuleID][]string{}
	for _, f := range runChecks(draft.Text, news, c.minWords, c.maxWords) {
		reasons[f.rule] = append(reasons[f.rule], f.reason)
	}

	var judgeFeedback string
	if c.judge != nil {
		verdicts, feedback, err := c.askJudge(ctx, draft, news)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.CritiqueResult{}, fmt.Errorf("critique draft %s: %w", draft.ID, ctxErr)
		}
		judgeFeedback = feedback
		for _, rule := range domain.Rules {
			switch {
			case err != nil:
				reasons[rule.ID] = append(reasons[rule.ID], "judge unavailable: "+err.Error())
			case verdicts[rule.ID] == domain.VerdictFail:
				reasons[rule.ID] = append(reasons[rule.ID], "judge flagged this rule")
			case verdicts[rule.ID] != domain.VerdictPass:
				reasons[rule.ID] = append(reasons[rule.ID], "judge gave no clear verdict")
			}
		}
	}

	result := domain.CritiqueResult{
		DraftID:        draft.ID,
		Verdict:        domain.VerdictPass,
		RuleSetVersion: c.ruleSetVersion,
		CreatedAt:      c.now().UTC(),
	}

	var lines []string
	for _, rule := range domain.Rules {
		rs, ok := reasons[rule.ID]
		if !ok {
			continue
		}
		result.ViolatedRules = append(result.ViolatedRules, rule.ID)
		lines = append(lines, fmt.Sprintf("- %s: %s", rule.ID, strings.Join(rs, "; ")))
	}
	if len(result.ViolatedRules) > 0 {
		result.Verdict = domain.VerdictFail
		if judgeFeedback != "" {
			lines = append(lines, judgeFeedback)
		}
		result.FeedbackText = strings.Join(lines, "\n")
	}

	return result, nil
}

type judgeReply struct {
	Verdicts map[string]string `json:"verdicts"`
	Feedback string            `json:"feedback"`
}

func (c *Critic) askJudge(ctx context.Context, draft domain.Draft, news []domain.NewsItem) (map[domain.RuleID]domain.Verdict, string, error) {
	raw, err := c.judge.Complete(ctx, ports.CompletionRequest{
		System:      judgeSystemPrompt,
		Prompt:      buildJudgePrompt(draft, news),
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, "", err
	}

	var reply judgeReply
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &reply); err != nil {
		return nil, "", fmt.Errorf("unreadable judge reply: %w", err)
	}

	verdicts := make(map[domain.RuleID]domain.Verdict, len(reply.Verdicts))
	for id, v := range reply.Verdicts {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "pass":
			verdicts[domain.RuleID(id)] = domain.VerdictPass
		case "fail":
			verdicts[domain.RuleID(id)] = domain.VerdictFail
		}
	}
	return verdicts, strings.TrimSpace(reply.Feedback), nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Models sometimes wrap the JSON in prose.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
