package visitor

import "strings"

const (
	InterestInvestment   = "investment"
	InterestWhiskyCasks  = "whisky-casks"
	InterestPremium      = "premium"
	InterestConsultation = "consultation"
)

// Engagement increments.
const (
	MaxEngagement        = 100
	ScoreInterestClick   = 5
	ScoreInterestField   = 3
	ScorePageView        = 1
	ScoreDeepScroll      = 2
	ScoreIdentification  = 20
	DeepScrollPercentage = 75
)

var interestKeywords = []struct {
	interest string
	keywords []string
}{
	{InterestInvestment, []string{"invest", "return", "portfolio", "roi", "profit"}},
	{InterestWhiskyCasks, []string{"cask", "whisky", "whiskey", "barrel", "distillery"}},
	{InterestPremium, []string{"premium", "exclusive", "rare", "limited"}},
	{InterestConsultation, []string{"consult", "advice", "advisor", "appointment", "book a call"}},
}

// matchInterests returns the interests whose keywords appear in text,
// case-insensitively, in table order.
func matchInterests(text string) []string {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, entry := range interestKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				out = append(out, entry.interest)
				break
			}
		}
	}
	return out
}
