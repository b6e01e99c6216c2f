// Package textintel implements a deterministic, rule-based analysis of sales
// conversations: sentiment, intent, buying signals, topics and entities, and a
// rule table that turns those into recommendations, risk flags and next best
// actions. It performs no I/O and holds no mutable state after construction,
// so an Engine is safe for concurrent use.
package textintel

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/pkg/textx"
)

const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2

	maxKeywords          = 10
	maxMainTopics        = 5
	maxSignalsPerFamily  = 5
	evidenceRadius       = 40
	negationLookback     = 2
	strongNegativeCutoff = -0.5
	minSignalDensity     = 0.01
)

type signalMatcher struct {
	kind    string
	matcher *matcher
}

type intentMatcher struct {
	name    string
	matcher *matcher
}

// Engine is a compiled Lexicon.
type Engine struct {
	polarity    map[string]int
	sentiment   *matcher
	negations   map[string]struct{}
	intents     []intentMatcher
	commands    []intentMatcher
	urgStrong   *matcher
	urgWeak     *matcher
	signals     []signalMatcher
	stopwords   map[string]struct{}
	topicOf     map[string]string
	orgSuffixes map[string]struct{}
	rules       []rule
}

// dollarPattern matches explicit money figures such as $50,000, $50k, $1.2M, 50k dollars or 20000 USD.
var dollarPattern = regexp.MustCompile(`(?i)(?:\$\s?\d[\d,]*(?:\.\d+)?\s?(?:k|m|mm|million|thousand)?\b)|(?:\b\d[\d,]*(?:\.\d+)?\s?(?:k|m|million|thousand)?\s?(?:dollars|usd)\b)`)

// New compiles a lexicon into an Engine.
func New(lex Lexicon) *Engine {
	e := &Engine{
		polarity:    make(map[string]int, len(lex.Positive)+len(lex.Negative)),
		negations:   toSet(lex.Negations),
		urgStrong:   newMatcher(lex.UrgencyStrong),
		urgWeak:     newMatcher(lex.UrgencyWeak),
		stopwords:   toSet(lex.Stopwords),
		topicOf:     make(map[string]string),
		orgSuffixes: toSet(lex.OrgSuffixes),
		rules:       defaultRules(),
	}
	all := make([]string, 0, len(lex.Positive)+len(lex.Negative))
	for _, p := range lex.Positive {
		e.polarity[strings.Join(phraseWords(p), " ")] = 1
		all = append(all, p)
	}
	for _, p := range lex.Negative {
		e.polarity[strings.Join(phraseWords(p), " ")] = -1
		all = append(all, p)
	}
	e.sentiment = newMatcher(all)
	for _, g := range lex.Intents {
		e.intents = append(e.intents, intentMatcher{name: g.Name, matcher: newMatcher(g.Phrases)})
	}
	for _, g := range lex.Commands {
		e.commands = append(e.commands, intentMatcher{name: g.Name, matcher: newMatcher(g.Phrases)})
	}
	for _, f := range lex.Signals {
		e.signals = append(e.signals, signalMatcher{kind: f.Type, matcher: newMatcher(f.Phrases)})
	}
	// A word listed under several topics belongs to the first topic by name.
	topics := make([]string, 0, len(lex.Topics))
	for topic := range lex.Topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		for _, w := range lex.Topics[topic] {
			if _, taken := e.topicOf[strings.ToLower(w)]; !taken {
				e.topicOf[strings.ToLower(w)] = topic
			}
		}
	}
	return e
}

// NewDefault returns an Engine over DefaultLexicon.
func NewDefault() *Engine { return New(DefaultLexicon()) }

// Analyze runs the full pipeline over text.
func (e *Engine) Analyze(text string) domain.ConversationAnalysis {
	text = textx.SanitizeText(text)
	toks := tokenize(text)

	var a domain.ConversationAnalysis
	a.Sentiment = e.analyzeSentiment(toks)
	a.Intent = e.analyzeIntent(toks)
	a.BuyingSignals = e.extractSignals(text, toks)
	a.Topics = e.extractTopics(toks)
	a.EnsureSlices()

	e.applyRules(&a, len(toks))
	return a
}

// Reapply reruns the rule table over a, whose sentiment or intent may have
// been replaced after Analyze. Recommendations, risk flags and next best
// actions are rebuilt; everything else in a is taken as given.
func (e *Engine) Reapply(a domain.ConversationAnalysis, text string) domain.ConversationAnalysis {
	a.Recommendations = []string{}
	a.RiskFlags = []string{}
	a.NextBestActions = []string{}
	a.EnsureSlices()
	e.applyRules(&a, len(tokenize(textx.SanitizeText(text))))
	return a
}

func (e *Engine) analyzeSentiment(toks []token) domain.Sentiment {
	if len(toks) == 0 {
		return domain.Sentiment{Overall: domain.SentimentNeutral}
	}
	var pos, neg int
	for _, m := range e.sentiment.scan(toks) {
		p := e.polarity[m.Phrase]
		// Phrases that carry their own negation ("not happy") are already polarized.
		if _, selfNegated := e.negations[toks[m.From].Lower]; !selfNegated && e.negatedAt(toks, m.From) {
			p = -p
		}
		switch {
		case p > 0:
			pos++
		case p < 0:
			neg++
		}
	}
	total := pos + neg
	score := float64(pos-neg) / math.Max(1, float64(total))
	score = clamp(score, -1, 1)

	label := domain.SentimentNeutral
	switch {
	case score > positiveThreshold:
		label = domain.SentimentPositive
	case score < negativeThreshold:
		label = domain.SentimentNegative
	}

	var confidence float64
	if total > 0 {
		evidence := 1 - 1/(1+float64(total))
		density := math.Min(1, 4*float64(total)/float64(len(toks)))
		agreement := math.Abs(float64(pos-neg)) / float64(total)
		confidence = 0.4*evidence + 0.3*density + 0.3*agreement
	}
	return domain.Sentiment{Overall: label, Score: round2(score), Confidence: round2(clamp(confidence, 0, 1))}
}

func (e *Engine) negatedAt(toks []token, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationLookback; j-- {
		w := toks[j].Lower
		if _, ok := e.negations[w]; ok || strings.HasSuffix(w, "n't") {
			return true
		}
	}
	return false
}

func (e *Engine) analyzeIntent(toks []token) domain.Intent {
	in := domain.Intent{PrimaryIntent: "general_inquiry", Urgency: e.urgency(toks)}
	if len(toks) == 0 {
		return in
	}
	in.Confidence = 0.3
	for _, g := range e.intents {
		ms := g.matcher.scan(toks)
		if len(ms) == 0 {
			continue
		}
		specific := 0
		for _, m := range ms {
			if m.Words() > 1 {
				specific++
			}
		}
		in.PrimaryIntent = g.name
		in.Confidence = round2(math.Min(1, 0.4+0.2*float64(len(ms))+0.1*float64(specific)))
		break
	}
	return in
}

func (e *Engine) urgency(toks []token) domain.Urgency {
	if len(e.urgStrong.scan(toks)) > 0 {
		return domain.UrgencyHigh
	}
	if len(e.urgWeak.scan(toks)) > 0 {
		return domain.UrgencyMedium
	}
	return domain.UrgencyLow
}

func (e *Engine) extractSignals(text string, toks []token) []domain.BuyingSignal {
	out := make([]domain.BuyingSignal, 0)
	for _, fam := range e.signals {
		seen := make(map[string]struct{})
		n := 0
		if fam.kind == domain.SignalBudgetMentioned {
			for _, loc := range dollarPattern.FindAllStringIndex(text, maxSignalsPerFamily) {
				out = append(out, domain.BuyingSignal{
					Type:       fam.kind,
					Confidence: 0.95,
					Evidence:   textx.Snippet(text, loc[0], loc[1], evidenceRadius),
				})
				n++
			}
		}
		for _, m := range fam.matcher.scan(toks) {
			if n >= maxSignalsPerFamily {
				break
			}
			if _, dup := seen[m.Phrase]; dup {
				continue
			}
			seen[m.Phrase] = struct{}{}
			conf := 0.6
			if m.Words() > 1 {
				conf = 0.8
			}
			out = append(out, domain.BuyingSignal{
				Type:       fam.kind,
				Confidence: conf,
				Evidence:   textx.Snippet(text, toks[m.From].Start, toks[m.To-1].End, evidenceRadius),
			})
			n++
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
