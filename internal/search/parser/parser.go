// Package parser turns a free-text query string into normalised include and
// exclude term sets. Matching is always an intersection; the NOT keyword
// marks the following term as an exclusion.
package parser

import (
	"strings"

	"github.com/gitter-badger/ashaw-notes/internal/index/tokenizer"
)

// Query is a parsed search request. Terms and ExcludeTerms hold normalised
// tokens, ordered-unique; both may be empty.
type Query struct {
	Terms        []string
	ExcludeTerms []string
	RawQuery     string
}

// Parse splits a query on whitespace and normalises each term the way note
// text is tokenized, so "Buy!" finds notes indexed under "buy" and "#Errand"
// finds the tag posting. AND is accepted and ignored; NOT excludes the next
// term. A term that normalises to nothing is dropped.
func Parse(query string) *Query {
	q := &Query{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return q
	}

	seen := make(map[string]bool)
	excluded := make(map[string]bool)
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		tokens := tokenizer.TextTokens(word)
		if len(tokens) == 0 {
			excludeNext = false
			continue
		}
		// A #tag term tokenizes to both the bare word and the tag; the
		// tag posting is the more precise one, so it wins.
		term := tokens[0]
		for _, tok := range tokens {
			if strings.HasPrefix(tok, "#") {
				term = tok
				break
			}
		}
		if excludeNext {
			excludeNext = false
			if !excluded[term] {
				excluded[term] = true
				q.ExcludeTerms = append(q.ExcludeTerms, term)
			}
			continue
		}
		if !seen[term] {
			seen[term] = true
			q.Terms = append(q.Terms, term)
		}
	}
	return q
}
