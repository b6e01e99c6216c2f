package textintel

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// token is one word of the input. Start/End are byte offsets into the
// original text; Gap is the separator text since the previous token.
type token struct {
	Lower string
	Raw   string
	Gap   string
	Start int
	End   int
}

// tokenize splits text into words in a single pass. Letters, digits and
// inner apostrophes form words; everything else separates them.
func tokenize(text string) []token {
	toks := make([]token, 0, len(text)/5+1)
	start, last := -1, 0
	for i, r := range text {
		if isWordRune(r) || (start >= 0 && isApostrophe(r) && nextIsLetter(text, i)) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, newToken(text, last, start, i))
			start, last = -1, i
		}
	}
	if start >= 0 {
		toks = append(toks, newToken(text, last, start, len(text)))
	}
	return toks
}

func newToken(text string, prevEnd, start, end int) token {
	raw := text[start:end]
	lower := strings.ToLower(strings.ReplaceAll(raw, "’", "'"))
	return token{Lower: lower, Raw: raw, Gap: text[prevEnd:start], Start: start, End: end}
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func isApostrophe(r rune) bool { return r == '\'' || r == '’' }

func nextIsLetter(text string, i int) bool {
	_, size := utf8.DecodeRuneInString(text[i:])
	if i+size >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i+size:])
	return unicode.IsLetter(r)
}

// phraseWords normalizes a lexicon entry into the word sequence the tokenizer would produce.
func phraseWords(phrase string) []string {
	toks := tokenize(phrase)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Lower
	}
	return out
}

// match is one phrase occurrence over tokens [From, To).
type match struct {
	Phrase string
	From   int
	To     int
}

// Words returns the number of words in the matched phrase.
func (m match) Words() int { return m.To - m.From }

// matcher finds lexicon phrases in a token stream. Phrases are indexed by
// their first word so a scan costs one map lookup per token plus a bounded
// comparison per candidate phrase.
type matcher struct {
	byFirst map[string][][]string
}

func newMatcher(phrases []string) *matcher {
	m := &matcher{byFirst: make(map[string][][]string, len(phrases))}
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		words := phraseWords(p)
		if len(words) == 0 {
			continue
		}
		key := strings.Join(words, " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		m.byFirst[words[0]] = append(m.byFirst[words[0]], words)
	}
	// Longest candidates first so the scan is greedy.
	for k, cands := range m.byFirst {
		sortByLenDesc(cands)
		m.byFirst[k] = cands
	}
	return m
}

// scan returns non-overlapping, left-to-right, longest-first matches.
func (m *matcher) scan(toks []token) []match {
	var out []match
	for i := 0; i < len(toks); {
		cands := m.byFirst[toks[i].Lower]
		matched := false
		for _, words := range cands {
			if i+len(words) > len(toks) {
				continue
			}
			ok := true
			for j := 1; j < len(words); j++ {
				if toks[i+j].Lower != words[j] {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, match{Phrase: strings.Join(words, " "), From: i, To: i + len(words)})
				i += len(words)
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return out
}

func sortByLenDesc(c [][]string) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && len(c[j]) > len(c[j-1]); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}
