package textintel

import (
	"math"
	"regexp"
	"strings"

	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/pkg/textx"
)

// UnknownCommand is the intent reported when no command group matches.
const UnknownCommand = "unknown"

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	datePattern  = regexp.MustCompile(`(?i)\b(?:today|tomorrow|tonight|` +
		`next\s+(?:week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday)|` +
		`(?:this\s+|on\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|` +
		`\d{4}-\d{2}-\d{2}|` +
		`(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?)\b`)
	timePattern   = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s?(?:am|pm)\b|\b\d{1,2}:\d{2}\b`)
	statusPattern = regexp.MustCompile(`(?i)\b(?:mark|set)\b(?:\s+[\w'’]+){0,3}?\s+(?:as|to)\s+([a-z][\w\-]*)`)
	queryPattern  = regexp.MustCompile(`(?i)\b(?:search\s+for|search|find|show\s+me|look\s+up|list)\s+(.+)$`)
)

var months = toSet([]string{"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "jan", "feb", "mar", "apr", "jun", "jul", "aug",
	"sep", "sept", "oct", "nov", "dec"})

// ParseCommand interprets a short spoken CRM instruction such as
// "schedule a meeting with John Smith tomorrow at 3pm".
func (e *Engine) ParseCommand(text string) domain.VoiceCommandResult {
	text = textx.CollapseSpace(textx.SanitizeText(text))
	res := domain.VoiceCommandResult{Intent: UnknownCommand, Entities: map[string]string{}}
	toks := tokenize(text)
	if len(toks) == 0 {
		return res
	}

	matches := 0
	for _, g := range e.commands {
		if ms := g.matcher.scan(toks); len(ms) > 0 {
			res.Intent, matches = g.name, len(ms)
			break
		}
	}

	e.commandEntities(text, toks, res.Intent, res.Entities)

	if matches == 0 {
		res.Confidence = 0.2
		return res
	}
	res.Confidence = round2(math.Min(0.95, 0.5+0.15*float64(matches)+0.05*float64(len(res.Entities))))
	return res
}

func (e *Engine) commandEntities(text string, toks []token, intent string, out map[string]string) {
	people, orgs := e.entities(toks)
	if len(people) > 0 {
		out["person"] = people[0]
	} else if p := e.singleName(toks); p != "" {
		out["person"] = p
	}
	if len(orgs) > 0 {
		out["organization"] = orgs[0]
	}
	if m := emailPattern.FindString(text); m != "" {
		out["email"] = strings.ToLower(m)
	}
	if m := dollarPattern.FindString(text); m != "" {
		out["amount"] = strings.TrimSpace(m)
	}
	if m := datePattern.FindString(text); m != "" {
		out["date"] = strings.ToLower(m)
	}
	if m := timePattern.FindString(text); m != "" {
		out["time"] = strings.ToLower(strings.ReplaceAll(m, " ", ""))
	}
	switch intent {
	case "update_lead":
		if m := statusPattern.FindStringSubmatch(text); m != nil {
			out["status"] = strings.ToLower(m[1])
		}
	case "search_leads":
		if m := queryPattern.FindStringSubmatch(text); m != nil {
			out["query"] = strings.TrimRight(strings.TrimSpace(m[1]), ".?!")
		}
	}
}

// singleName picks the first capitalized word past the command verb that is
// not a stopword, month or org suffix ("call John tomorrow").
func (e *Engine) singleName(toks []token) string {
	for i := 1; i < len(toks); i++ {
		t := toks[i]
		if !isCapitalized(t.Raw) {
			continue
		}
		if _, stop := e.stopwords[t.Lower]; stop {
			continue
		}
		if _, month := months[t.Lower]; month {
			continue
		}
		if _, suffix := e.orgSuffixes[t.Lower]; suffix {
			continue
		}
		return t.Raw
	}
	return ""
}
