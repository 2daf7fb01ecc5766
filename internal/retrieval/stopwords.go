package retrieval

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords are dropped before matching a query against stored problems.
var stopwords = func() map[string]struct{} {
	const list = `a about an and are as at be been being but by can could did do does for from
had has have he her him how i if in into is it its may me might my no not of on or out
shall she should so step problem tell than that the their them then there they this
to up us was we were what when where which who why will with would you your some`
	m := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		m[w] = struct{}{}
	}
	return m
}()

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// tokenize splits text into unique lowercase non-stopword tokens.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || isStopword(w) || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// sharedKeywords returns the count of tokens present in both slices.
func sharedKeywords(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	count := 0
	for _, t := range b {
		if set[t] {
			count++
		}
	}
	return count
}

// overlap returns the share of query tokens found in doc, in [0, 1].
func overlap(query, doc []string) float32 {
	if len(query) == 0 {
		return 0
	}
	return float32(sharedKeywords(query, doc)) / float32(len(query))
}

// #endregion stopwords
