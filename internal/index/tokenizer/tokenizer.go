// Package tokenizer derives the searchable tokens for a note. A note's text
// contributes lower-cased word runs and #tags; its timestamp contributes five
// calendar tokens. The resulting sequence is what the index stores postings
// under, so the same function serves both indexing and the delete path's
// token recomputation.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	tagPattern  = regexp.MustCompile(`#[A-Za-z0-9_-]+`)
)

// Tokenize returns the ordered-unique token sequence for a note: word runs in
// first-occurrence order, then #tags in first-occurrence order, then the five
// temporal tokens for ts. Duplicates collapse on first occurrence. Any string
// is valid input; empty text yields exactly the temporal tokens.
func Tokenize(ts int64, text string) []string {
	tokens := make([]string, 0, 16)
	seen := make(map[string]struct{}, 16)
	tokens = appendTextTokens(tokens, text, seen)
	for _, temporal := range TemporalTokens(ts) {
		if _, ok := seen[temporal]; ok {
			continue
		}
		seen[temporal] = struct{}{}
		tokens = append(tokens, temporal)
	}
	return tokens
}

// TextTokens returns only the word and #tag tokens of text, ordered-unique.
// Query terms are normalised with this so a search looks up exactly what
// indexing stored.
func TextTokens(text string) []string {
	return appendTextTokens(make([]string, 0, 8), text, make(map[string]struct{}, 8))
}

func appendTextTokens(tokens []string, text string, seen map[string]struct{}) []string {
	add := func(tok string) {
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, word := range wordPattern.FindAllString(text, -1) {
		add(strings.ToLower(word))
	}
	for _, tag := range tagPattern.FindAllString(text, -1) {
		add(strings.ToLower(tag))
	}
	return tokens
}

// TemporalTokens returns the five calendar tokens for ts interpreted as a UTC
// instant. Weekday follows the Monday=0 convention, matching the stored
// index.
func TemporalTokens(ts int64) []string {
	t := time.Unix(ts, 0).UTC()
	return []string{
		fmt.Sprintf("year_%d", t.Year()),
		fmt.Sprintf("month_%d", int(t.Month())),
		fmt.Sprintf("day_%d", t.Day()),
		fmt.Sprintf("hour_%d", t.Hour()),
		fmt.Sprintf("weekday_%d", (int(t.Weekday())+6)%7),
	}
}
