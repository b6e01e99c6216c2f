package textintel

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

func (e *Engine) extractTopics(toks []token) domain.Topics {
	keywords := e.keywords(toks)
	people, orgs := e.entities(toks)
	return domain.Topics{
		MainTopics: e.mainTopics(toks, keywords),
		Keywords:   keywords,
		Entities:   domain.Entities{People: people, Organizations: orgs},
	}
}

// keywords ranks content words by frequency, ties broken by first occurrence.
func (e *Engine) keywords(toks []token) []string {
	type kw struct {
		word  string
		count int
		first int
	}
	idx := make(map[string]int)
	var all []kw
	for i, t := range toks {
		if !e.isContentWord(t.Lower) {
			continue
		}
		if j, ok := idx[t.Lower]; ok {
			all[j].count++
			continue
		}
		idx[t.Lower] = len(all)
		all = append(all, kw{word: t.Lower, count: 1, first: i})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].first < all[j].first
	})
	out := make([]string, 0, maxKeywords)
	for _, k := range all {
		if len(out) == maxKeywords {
			break
		}
		out = append(out, k.word)
	}
	return out
}

func (e *Engine) isContentWord(w string) bool {
	if utf8.RuneCountInString(w) < 3 {
		return false
	}
	if _, stop := e.stopwords[w]; stop {
		return false
	}
	return strings.IndexFunc(w, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}

// mainTopics lists dictionary topics in order of first mention, then fills
// up with the highest ranked keywords.
func (e *Engine) mainTopics(toks []token, keywords []string) []string {
	out := make([]string, 0, maxMainTopics)
	seen := make(map[string]struct{})
	add := func(s string) {
		if len(out) == maxMainTopics {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, t := range toks {
		if topic, ok := e.topicOf[t.Lower]; ok {
			add(topic)
		}
	}
	for _, k := range keywords {
		if _, mapped := e.topicOf[k]; mapped {
			continue
		}
		add(k)
	}
	return out
}

// entities finds runs of capitalized words. A run ending in an org suffix is
// an organization; any other run of two or three words is a person.
func (e *Engine) entities(toks []token) (people, orgs []string) {
	people, orgs = []string{}, []string{}
	seenP := make(map[string]struct{})
	seenO := make(map[string]struct{})
	for _, run := range e.capitalizedRuns(toks) {
		last := run[len(run)-1]
		if _, org := e.orgSuffixes[last.Lower]; org && len(run) >= 2 {
			name := joinRaw(run)
			if _, dup := seenO[name]; !dup {
				seenO[name] = struct{}{}
				orgs = append(orgs, name)
			}
			continue
		}
		if len(run) < 2 || len(run) > 3 {
			continue
		}
		name := joinRaw(run)
		if _, dup := seenP[name]; !dup {
			seenP[name] = struct{}{}
			people = append(people, name)
		}
	}
	return people, orgs
}

// capitalizedRuns groups adjacent capitalized tokens separated only by
// spaces. A comma is tolerated right before an org suffix ("Acme, Inc.").
// Leading stopwords ("Hi", "The") are dropped from each run.
func (e *Engine) capitalizedRuns(toks []token) [][]token {
	var runs [][]token
	var cur []token
	flush := func() {
		for len(cur) > 0 {
			if _, stop := e.stopwords[cur[0].Lower]; !stop {
				break
			}
			cur = cur[1:]
		}
		if len(cur) > 0 {
			runs = append(runs, cur)
		}
		cur = nil
	}
	for _, t := range toks {
		if !isCapitalized(t.Raw) {
			flush()
			continue
		}
		if len(cur) > 0 && !e.joinable(t) {
			flush()
		}
		cur = append(cur, t)
	}
	flush()
	return runs
}

func (e *Engine) joinable(next token) bool {
	gap := strings.TrimSpace(next.Gap)
	if gap == "" {
		return true
	}
	_, suffix := e.orgSuffixes[next.Lower]
	return suffix && gap == ","
}

func isCapitalized(raw string) bool {
	r, _ := utf8.DecodeRuneInString(raw)
	return unicode.IsUpper(r)
}

func joinRaw(run []token) string {
	parts := make([]string, len(run))
	for i, t := range run {
		parts[i] = t.Raw
	}
	return strings.Join(parts, " ")
}
