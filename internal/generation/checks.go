package generation

import (
	"fmt"
	"regexp"
	"strings"

	"NewsPoster/internal/domain"
)

var (
	financialExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbuy\b[^.!?\n]{0,40}\bnow\b`),
		regexp.MustCompile(`(?i)\b(you should|we recommend|consider) (buying|selling|shorting|investing|buy|sell|short|invest)\b`),
		regexp.MustCompile(`(?i)\b(buy the dip|price target|guaranteed returns?|to the moon|can'?t lose|cannot lose)\b`),
		regexp.MustCompile(`(?i)\b(stock|shares|token|coin)s? (will|is going to|are going to) (rise|soar|double|moon|crash)\b`),
	}
	politicalExpr   = regexp.MustCompile(`(?i)\b(democrats?|republicans?|gop|liberals?|maga|left-wing|right-wing|partisan|vote (for|against|them out))\b`)
	unsupportedExpr = regexp.MustCompile(`(?i)\b(studies show|research shows|experts (say|agree|predict)|according to (analysts|experts|insiders)|sources say|everyone knows|it is (widely )?known|data shows)\b`)
	profanityExpr   = regexp.MustCompile(`(?i)\b(fuck\w*|shit\w*|damn\w*|crap|bullshit|bastards?|ass(hole)?s?)\b`)
	hypeExpr        = regexp.MustCompile(`(?i)(!{2,}|\byou won'?t believe\b|\bshocking\b|\bmind-blowing\b)`)
	hashtagExpr     = regexp.MustCompile(`(^|\s)#\w+`)
	numberExpr      = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	// numericToken is a whole word that is a figure, optionally with a currency
	// sign or a unit suffix: "$50M", "12.5%", "2024". "B2B", "#Web3" and "24/7" are not.
	numericToken    = regexp.MustCompile(`^[$€£]?(\d+(?:[.,]\d+)*)(?:%|[kKmMbB]|bn|x|s|st|nd|rd|th)?$`)
)

const maxHashtags = 3

// finding is a deterministic reason a rule is violated.
type finding struct {
	rule   domain.RuleID
	reason string
}

func runChecks(text string, news []domain.NewsItem, minWords, maxWords int) []finding {
	var out []finding

	for _, expr := range financialExprs {
		if m := expr.FindString(text); m != "" {
			out = append(out, finding{domain.RuleNoFinancialAdvice, fmt.Sprintf("reads as investment advice (%q)", m)})
			break
		}
	}
	if m := politicalExpr.FindString(text); m != "" {
		out = append(out, finding{domain.RuleNoPoliticalContent, fmt.Sprintf("political reference (%q)", m)})
	}
	if m := unsupportedExpr.FindString(text); m != "" {
		out = append(out, finding{domain.RuleNoUnsupportedClaims, fmt.Sprintf("claim without a source in the news items (%q)", m)})
	}
	if missing := ungroundedNumbers(text, news); len(missing) > 0 {
		out = append(out, finding{domain.RuleNoHallucinatedContent, fmt.Sprintf("numbers not present in the news items: %s", strings.Join(missing, ", "))})
	}
	if m := profanityExpr.FindString(text); m != "" {
		out = append(out, finding{domain.RuleNoProfanity, fmt.Sprintf("offensive language (%q)", m)})
	}
	if m := hypeExpr.FindString(text); m != "" {
		out = append(out, finding{domain.RuleProfessionalTone, fmt.Sprintf("hype or clickbait (%q)", m)})
	} else if n := len(hashtagExpr.FindAllString(text, -1)); n > maxHashtags {
		out = append(out, finding{domain.RuleProfessionalTone, fmt.Sprintf("%d hashtags, at most %d allowed", n, maxHashtags)})
	}

	words := len(strings.Fields(text))
	if minWords > 0 && words < minWords {
		out = append(out, finding{domain.RuleLengthBounds, fmt.Sprintf("%d words, at least %d required", words, minWords)})
	} else if maxWords > 0 && words > maxWords {
		out = append(out, finding{domain.RuleLengthBounds, fmt.Sprintf("%d words, at most %d allowed", words, maxWords)})
	}

	return out
}

// ungroundedNumbers lists numbers in text that no news item mentions.
func ungroundedNumbers(text string, news []domain.NewsItem) []string {
	known := map[string]struct{}{}
	for _, item := range news {
		for _, n := range numberExpr.FindAllString(item.Title+" "+item.Summary, -1) {
			known[normalizeNumber(n)] = struct{}{}
		}
	}

	var missing []string
	seen := map[string]struct{}{}
	for _, n := range figures(text) {
		key := normalizeNumber(n)
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, n)
	}
	return missing
}

// figures returns the numbers written as standalone figures in text.
func figures(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		token := strings.TrimLeft(field, "(\"'")
		token = strings.TrimRight(token, ".,;:!?)\"'")
		if strings.HasPrefix(token, "#") {
			continue
		}
		if m := numericToken.FindStringSubmatch(token); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

func normalizeNumber(n string) string {
	n = strings.ReplaceAll(n, ",", "")
	if strings.Contains(n, ".") {
		n = strings.TrimRight(strings.TrimRight(n, "0"), ".")
	}
	return n
}
