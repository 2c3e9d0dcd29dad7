// Package lexical scores records against a query by keyword overlap. It is
// the fallback when no query embedding is available and the primary scorer for
// the procedural and resource dimensions.
package lexical

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

var english = stopwords.MustGet("en")

// Terms splits text into lower-cased tokens, drops English stop words and
// returns the distinct remaining terms in first-seen order.
func Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range tokenize(text) {
		if len(tok) < 2 || english.Contains(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Matcher scans text for the terms of one query.
type Matcher struct {
	terms []string
	ac    *ahocorasick.Automaton
}

// NewMatcher compiles the query's terms into an automaton. Each term matches
// at the start of a word, so "peanut" also hits "peanuts".
func NewMatcher(query string) (*Matcher, error) {
	m := &Matcher{terms: Terms(query)}
	if len(m.terms) == 0 {
		return m, nil
	}
	patterns := make([]string, len(m.terms))
	for i, t := range m.terms {
		patterns[i] = " " + t
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	m.ac = automaton
	return m, nil
}

// Terms returns the compiled query terms.
func (m *Matcher) Terms() []string { return m.terms }

// Empty reports whether the query had no usable terms.
func (m *Matcher) Empty() bool { return m.ac == nil }

// Score returns the fraction of distinct query terms found across texts, in
// [0, 1]. A query with no terms scores 0 against everything.
func (m *Matcher) Score(texts ...string) float64 {
	if m.ac == nil {
		return 0
	}
	var b strings.Builder
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			b.WriteByte(' ')
			b.WriteString(tok)
		}
	}
	hits := make(map[int]bool)
	for _, match := range m.ac.FindAllOverlapping([]byte(b.String())) {
		hits[match.PatternID] = true
	}
	return float64(len(hits)) / float64(len(m.terms))
}
