package domain

import (
	"strings"
	"time"
)

// RuleSetVersion identifies the constitution the critic evaluates against.
const RuleSetVersion = "2025-01"

// RuleID names a single constitutional rule.
type RuleID string

const (
	RuleNoFinancialAdvice     RuleID = "no_financial_advice"
	RuleNoPoliticalContent    RuleID = "no_political_content"
	RuleNoUnsupportedClaims   RuleID = "no_unsupported_claims"
	RuleNoHallucinatedContent RuleID = "no_hallucinated_content"
	RuleNoProfanity           RuleID = "no_profanity"
	RuleProfessionalTone      RuleID = "professional_tone"
	RuleLengthBounds          RuleID = "length_bounds"
)

// Rule pairs an identifier with the wording shown to the judge and the writer.
type Rule struct {
	ID          RuleID
	Description string
}

// Rules is the ordered constitution. Order is part of the contract:
// violated rules are always reported in this order.
var Rules = []Rule{
	{RuleNoFinancialAdvice, "No financial advice, investment recommendations or price predictions."},
	{RuleNoPoliticalContent, "No political opinions, partisan framing or commentary on politicians."},
	{RuleNoUnsupportedClaims, "Every factual claim must be supported by the provided news items."},
	{RuleNoHallucinatedContent, "No names, numbers, dates or events absent from the provided news items."},
	{RuleNoProfanity, "No profanity, slurs or offensive language."},
	{RuleProfessionalTone, "Professional, educational tone without hype or clickbait."},
	{RuleLengthBounds, "Between the configured minimum and maximum word count."},
}

// RuleIndex returns the position of id in Rules, or -1.
func RuleIndex(id RuleID) int {
	for i, r := range Rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Verdict is the overall outcome of a critique.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// CritiqueResult is the immutable evaluation of one draft attempt.
type CritiqueResult struct {
	DraftID        string
	Verdict        Verdict
	ViolatedRules  []RuleID
	FeedbackText   string
	RuleSetVersion string
	CreatedAt      time.Time
}

// Passed reports whether the draft may proceed to human review.
func (c CritiqueResult) Passed() bool {
	return c.Verdict == VerdictPass && len(c.ViolatedRules) == 0
}

// Feedback renders the text handed to the next generation attempt.
func (c CritiqueResult) Feedback() string {
	if c.Passed() {
		return ""
	}
	ids := make([]string, len(c.ViolatedRules))
	for i, id := range c.ViolatedRules {
		ids[i] = string(id)
	}

	var b strings.Builder
	b.WriteString("Violated rules: ")
	b.WriteString(strings.Join(ids, ", "))
	if text := strings.TrimSpace(c.FeedbackText); text != "" {
		b.WriteString("\n")
		b.WriteString(text)
	}
	return b.String()
}

// LatestCritique returns the most recent result of a history ordered oldest first.
func LatestCritique(history []CritiqueResult) (CritiqueResult, bool) {
	if len(history) == 0 {
		return CritiqueResult{}, false
	}
	return history[len(history)-1], true
}
