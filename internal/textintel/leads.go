package textintel

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

var (
	executiveTitles = newMatcher([]string{"ceo", "cfo", "cto", "coo", "cmo", "cio", "chief", "founder", "co founder", "owner"})
	seniorTitles    = newMatcher([]string{"vp", "svp", "evp", "vice president", "director", "head of"})
	managerTitles   = newMatcher([]string{"manager", "lead", "principal"})
)

// ScoreLead produces a deterministic 0-100 score from the lead's profile and
// notes. It backs the offline provider and fills in leads a provider skipped.
func (e *Engine) ScoreLead(l domain.Lead) domain.ScoredLead {
	score := 20.0
	var why []string
	known := 0

	if l.EngagementScore > 0 {
		score += 0.3 * l.EngagementScore
		why = append(why, fmt.Sprintf("engagement score %.0f", l.EngagementScore))
		known++
	}
	title := tokenize(l.Title)
	switch {
	case len(executiveTitles.scan(title)) > 0:
		score += 20
		why = append(why, "executive title")
		known++
	case len(seniorTitles.scan(title)) > 0:
		score += 15
		why = append(why, "senior title")
		known++
	case len(managerTitles.scan(title)) > 0:
		score += 8
		why = append(why, "manager title")
		known++
	case len(title) > 0:
		known++
	}
	switch {
	case l.Budget >= 100000:
		score += 15
		why = append(why, "budget of 100k or more")
		known++
	case l.Budget >= 25000:
		score += 10
		why = append(why, "budget of 25k or more")
		known++
	case l.Budget > 0:
		score += 5
		why = append(why, "budget provided")
		known++
	}
	if l.Interactions > 0 {
		score += math.Min(10, 2*float64(l.Interactions))
		why = append(why, fmt.Sprintf("%d prior interactions", l.Interactions))
		known++
	}
	if l.Email != "" {
		score += 3
		known++
	}
	if l.Company != "" {
		score += 2
		known++
	}

	if strings.TrimSpace(l.Notes) != "" {
		a := e.Analyze(l.Notes)
		known++
		switch a.Sentiment.Overall {
		case domain.SentimentPositive:
			score += 5
			why = append(why, "positive tone in notes")
		case domain.SentimentNegative:
			score -= 10
			why = append(why, "negative tone in notes")
		}
		if n := len(a.BuyingSignals); n > 0 {
			score += math.Min(12, 3*float64(n))
			why = append(why, fmt.Sprintf("%d buying signals in notes", n))
		}
		if a.Intent.PrimaryIntent == "purchase" || a.Intent.PrimaryIntent == "demo" {
			score += 5
			why = append(why, a.Intent.PrimaryIntent+" intent in notes")
		}
	}

	score = math.Round(clamp(score, 0, 100))
	if len(why) == 0 {
		why = append(why, "limited information available")
	}
	return domain.ScoredLead{
		LeadID:     l.ID,
		Score:      score,
		Grade:      domain.GradeForScore(score),
		Reasoning:  why,
		Confidence: round2(math.Min(0.9, 0.4+0.05*float64(known))),
	}
}

// PredictOutcome estimates conversion from the lead score and the share of
// favourable past interactions.
func (e *Engine) PredictOutcome(l domain.Lead, history []domain.HistoryEvent) domain.LeadPrediction {
	scored := e.ScoreLead(l)
	p := scored.Score / 100
	if len(history) > 0 {
		favourable := 0
		for _, h := range history {
			if e.Analyze(h.Outcome).Sentiment.Overall == domain.SentimentPositive || strings.EqualFold(h.Type, "meeting") {
				favourable++
			}
		}
		p = 0.7*p + 0.3*float64(favourable)/float64(len(history))
	}
	days := clamp(90-0.6*scored.Score-2*float64(len(history)), 7, 180)
	return domain.LeadPrediction{
		ConversionProbability: round2(clamp(p, 0, 1)),
		ExpectedValue:         math.Round(p * math.Max(0, l.Budget)),
		TimeToCloseDays:       math.Round(days),
		Confidence:            round2(math.Min(0.9, 0.3+0.05*float64(len(history))+0.1*scored.Confidence)),
	}
}

// Research derives profiles from the lead's handles and interests from its
// free text. No network lookups are made.
func (e *Engine) Research(l domain.Lead) domain.SocialResearch {
	res := domain.SocialResearch{Profiles: []domain.SocialProfile{}, Interests: []string{}, Opportunities: []string{}}
	for _, h := range l.SocialHandles {
		if p, ok := parseHandle(h); ok {
			res.Profiles = append(res.Profiles, p)
		}
	}
	text := strings.Join([]string{l.Industry, l.Title, l.Notes}, ". ")
	a := e.Analyze(text)
	res.Interests = append(res.Interests, a.Topics.MainTopics...)
	for _, sig := range a.BuyingSignals {
		res.Opportunities = append(res.Opportunities, "Follow up on "+strings.ReplaceAll(sig.Type, "_", " ")+": "+sig.Evidence)
	}
	if l.Industry != "" {
		res.Opportunities = append(res.Opportunities, "Share a "+l.Industry+" case study")
	}
	return res
}

var platformHosts = map[string]string{
	"linkedin.com":  "linkedin",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"github.com":    "github",
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
}

// parseHandle accepts "platform:handle", "@handle" or a profile URL.
func parseHandle(h string) (domain.SocialProfile, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return domain.SocialProfile{}, false
	}
	if u, err := url.Parse(h); err == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		platform, ok := platformHosts[host]
		if !ok {
			platform = host
		}
		path := strings.Trim(u.Path, "/")
		handle := path[strings.LastIndex(path, "/")+1:]
		return domain.SocialProfile{Platform: platform, Handle: handle, URL: h}, handle != ""
	}
	if platform, handle, ok := strings.Cut(h, ":"); ok {
		return domain.SocialProfile{Platform: strings.ToLower(platform), Handle: strings.TrimPrefix(handle, "@")}, handle != ""
	}
	return domain.SocialProfile{Platform: "twitter", Handle: strings.TrimPrefix(h, "@")}, true
}
