package textintel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

// IntentGroup is one ordered intent pattern group.
type IntentGroup struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// SignalFamily is the phrase set for one buying-signal type.
type SignalFamily struct {
	Type    string   `yaml:"type"`
	Phrases []string `yaml:"phrases"`
}

// Lexicon holds every curated word list the engine matches against.
// Phrases are written with single spaces; hyphens and punctuation in the
// input are treated as separators.
type Lexicon struct {
	Positive      []string            `yaml:"positive"`
	Negative      []string            `yaml:"negative"`
	Negations     []string            `yaml:"negations"`
	Intents       []IntentGroup       `yaml:"intents"`
	UrgencyStrong []string            `yaml:"urgency_strong"`
	UrgencyWeak   []string            `yaml:"urgency_weak"`
	Signals       []SignalFamily      `yaml:"signals"`
	Stopwords     []string            `yaml:"stopwords"`
	Topics        map[string][]string `yaml:"topics"`
	OrgSuffixes   []string            `yaml:"org_suffixes"`
	Commands      []IntentGroup       `yaml:"commands"`
}

// DefaultLexicon returns the built-in dictionaries.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"good", "great", "excellent", "amazing", "awesome", "fantastic", "love", "loved", "liked",
			"happy", "glad", "pleased", "impressed", "impressive", "perfect", "wonderful", "helpful", "useful",
			"interested", "excited", "exciting", "valuable", "brilliant", "outstanding", "smooth", "easy",
			"recommend", "thanks", "thank you", "appreciate", "looks good", "sounds good", "well done",
			"exactly what we need", "love it",
		},
		Negative: []string{
			"bad", "poor", "terrible", "awful", "horrible", "hate", "hated", "dislike", "disappointed",
			"disappointing", "frustrated", "frustrating", "annoyed", "annoying", "angry", "upset", "unhappy",
			"useless", "confusing", "complicated", "slow", "broken", "worst", "waste", "expensive", "overpriced",
			"concerned", "worried", "unacceptable", "not happy", "not impressed", "waste of time", "too expensive",
			"fed up",
		},
		Negations: []string{"not", "no", "never", "dont", "don't", "didnt", "didn't", "isnt", "isn't",
			"wasnt", "wasn't", "cant", "can't", "cannot", "wont", "won't", "doesnt", "doesn't", "hardly"},
		Intents: []IntentGroup{
			{Name: "purchase", Phrases: []string{"buy", "purchase", "purchasing", "sign up", "order", "subscribe",
				"ready to move forward", "get started", "sign the contract", "place an order", "want to buy"}},
			{Name: "demo", Phrases: []string{"demo", "demonstration", "walk through", "walkthrough", "trial",
				"free trial", "see it in action", "show me", "proof of concept"}},
			{Name: "pricing", Phrases: []string{"price", "pricing", "cost", "costs", "quote", "discount", "how much",
				"plans", "rates", "licensing fee"}},
			{Name: "support", Phrases: []string{"not working", "bug", "error", "broken", "support ticket",
				"help with", "troubleshoot", "fix"}},
			{Name: "information", Phrases: []string{"information", "learn more", "details", "brochure", "tell me",
				"documentation", "features", "how does", "case study", "more info"}},
			{Name: "objection", Phrases: []string{"too expensive", "not interested", "concern", "concerns",
				"hesitant", "not sure", "no budget", "not a priority", "already have", "not the right time"}},
			{Name: "scheduling", Phrases: []string{"schedule", "meeting", "calendar", "availability",
				"set up a time", "book a call", "follow up call"}},
		},
		UrgencyStrong: []string{"asap", "as soon as possible", "urgent", "urgently", "immediately", "deadline",
			"right away", "emergency", "critical", "today"},
		UrgencyWeak: []string{"soon", "this week", "next week", "this month", "quickly", "end of quarter",
			"priority", "shortly"},
		Signals: []SignalFamily{
			{Type: domain.SignalBudgetMentioned, Phrases: []string{"budget", "budgeted", "allocated", "funding",
				"price range", "approved budget", "spend", "investment", "dollars", "per year", "per month"}},
			{Type: domain.SignalTimelineDiscussed, Phrases: []string{"timeline", "timeframe", "deadline",
				"next quarter", "this quarter", "end of the month", "end of the year", "end of quarter", "go live",
				"rollout", "launch date", "by january", "by june", "q1", "q2", "q3", "q4", "within weeks",
				"next month", "implementation date"}},
			{Type: domain.SignalDecisionMakerInvolved, Phrases: []string{"ceo", "cfo", "cto", "coo", "vp",
				"vice president", "director", "decision maker", "board", "procurement", "my boss", "sign off",
				"approval", "leadership team", "founder", "owner", "head of"}},
			{Type: domain.SignalCompetitorComparison, Phrases: []string{"competitor", "competitors",
				"compared to", "comparing", "alternative", "alternatives", "other vendors", "other options",
				"versus", "vs", "salesforce", "hubspot", "pipedrive", "zoho", "switching from", "currently using"}},
			{Type: domain.SignalPainPointExpressed, Phrases: []string{"struggling", "struggle", "frustrated",
				"pain point", "pain points", "challenge", "challenges", "problem", "problems", "issue", "issues",
				"time consuming", "inefficient", "manual process", "losing", "bottleneck", "wasting"}},
		},
		Stopwords: []string{
			"a", "about", "above", "after", "again", "all", "also", "am", "an", "and", "any", "are", "as", "at",
			"be", "because", "been", "before", "being", "but", "by", "can", "could", "did", "do", "does",
			"doing", "for", "from", "get", "got", "had", "has", "have", "having", "he", "her", "here", "hers",
			"him", "his", "how", "i", "if", "in", "into", "is", "it", "its", "just", "let", "me", "more", "most",
			"my", "need", "our", "ours", "out", "over", "own", "really", "same", "she", "should", "so", "some",
			"such", "than", "that", "the", "their", "them", "then", "there", "these", "they", "this", "those",
			"through", "to", "too", "under", "until", "up", "very", "was", "we", "were", "what", "when",
			"where", "which", "while", "who", "whom", "why", "will", "with", "would", "you", "your", "yours",
			"hi", "hello", "hey", "dear", "thanks", "thank", "regards", "please", "yes", "yeah", "okay", "ok",
			"want", "like", "one", "two", "next", "now", "well", "going", "think", "know", "see", "make",
			"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "best",
		},
		Topics: map[string][]string{
			"pricing":     {"price", "pricing", "cost", "costs", "budget", "quote", "discount", "plan", "plans", "invoice"},
			"integration": {"integration", "integrations", "integrate", "api", "connect", "sync", "crm", "webhook"},
			"security":    {"security", "compliance", "gdpr", "soc", "encryption", "privacy", "sso", "audit"},
			"onboarding":  {"onboarding", "training", "setup", "implementation", "migration", "rollout"},
			"support":     {"support", "help", "issue", "issues", "bug", "ticket", "outage"},
			"performance": {"performance", "speed", "scale", "scalability", "reliability", "latency", "uptime"},
			"contract":    {"contract", "agreement", "terms", "renewal", "license", "licensing", "legal"},
		},
		OrgSuffixes: []string{"inc", "corp", "corporation", "llc", "ltd", "gmbh", "co", "company",
			"technologies", "solutions", "group", "labs", "systems", "partners"},
		Commands: []IntentGroup{
			{Name: "create_lead", Phrases: []string{"add lead", "add a lead", "add a new lead", "create lead",
				"create a lead", "create a new lead", "new lead", "add contact", "add a contact", "new contact"}},
			{Name: "log_call", Phrases: []string{"log call", "log a call", "log the call", "record call",
				"record a call", "i called", "just called", "call notes"}},
			{Name: "create_task", Phrases: []string{"remind me", "reminder", "create task", "create a task",
				"add task", "add a task", "to do", "todo"}},
			{Name: "schedule_meeting", Phrases: []string{"schedule", "book", "set up a meeting", "meeting with",
				"arrange a meeting", "put on my calendar"}},
			{Name: "send_email", Phrases: []string{"send email", "send an email", "send a email", "email",
				"write to", "draft an email", "follow up email"}},
			{Name: "update_lead", Phrases: []string{"update", "change", "mark as", "set status", "move to",
				"mark"}},
			{Name: "search_leads", Phrases: []string{"find", "search", "search for", "show me", "look up",
				"list", "who are"}},
		},
	}
}

// LoadLexicon reads a YAML file and merges it on top of the built-in lexicon.
// Lists in the file are appended; intent groups and signal families with a
// known name extend the existing entry, unknown names are appended in order.
func LoadLexicon(path string) (Lexicon, error) {
	base := DefaultLexicon()
	if path == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("op=textintel.LoadLexicon: %w", err)
	}
	var override Lexicon
	if err := yaml.Unmarshal(b, &override); err != nil {
		return Lexicon{}, fmt.Errorf("op=textintel.LoadLexicon: parse %s: %w", path, err)
	}
	return base.Merge(override), nil
}

// Merge returns l extended with the entries of o.
func (l Lexicon) Merge(o Lexicon) Lexicon {
	out := l
	out.Positive = append(append([]string{}, l.Positive...), o.Positive...)
	out.Negative = append(append([]string{}, l.Negative...), o.Negative...)
	out.Negations = append(append([]string{}, l.Negations...), o.Negations...)
	out.UrgencyStrong = append(append([]string{}, l.UrgencyStrong...), o.UrgencyStrong...)
	out.UrgencyWeak = append(append([]string{}, l.UrgencyWeak...), o.UrgencyWeak...)
	out.Stopwords = append(append([]string{}, l.Stopwords...), o.Stopwords...)
	out.OrgSuffixes = append(append([]string{}, l.OrgSuffixes...), o.OrgSuffixes...)

	out.Intents = mergeGroups(l.Intents, o.Intents)
	out.Commands = mergeGroups(l.Commands, o.Commands)

	out.Signals = append([]SignalFamily{}, l.Signals...)
	for _, f := range o.Signals {
		merged := false
		for i := range out.Signals {
			if out.Signals[i].Type == f.Type {
				out.Signals[i].Phrases = append(append([]string{}, out.Signals[i].Phrases...), f.Phrases...)
				merged = true
				break
			}
		}
		if !merged {
			out.Signals = append(out.Signals, f)
		}
	}

	out.Topics = make(map[string][]string, len(l.Topics)+len(o.Topics))
	for k, v := range l.Topics {
		out.Topics[k] = append([]string{}, v...)
	}
	for k, v := range o.Topics {
		out.Topics[k] = append(out.Topics[k], v...)
	}
	return out
}

func mergeGroups(base, extra []IntentGroup) []IntentGroup {
	out := append([]IntentGroup{}, base...)
	for _, g := range extra {
		merged := false
		for i := range out {
			if out[i].Name == g.Name {
				out[i].Phrases = append(append([]string{}, out[i].Phrases...), g.Phrases...)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, g)
		}
	}
	return out
}
