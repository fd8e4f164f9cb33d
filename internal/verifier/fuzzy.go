package verifier

import (
	"context"
	"strings"
	"unicode"
)

// fillerWords carry no identifying information in short answers
var fillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "it": {}, "its": {}, "is": {}, "of": {},
	"color": {}, "colour": {}, "coloured": {}, "colored": {},
}

// FuzzyMatcher compares answers locally when no model is configured.
// An answer matches when it equals the reference after normalisation, or
// when one side's words are all contained in the other ("dark blue" and "blue").
// Empty reference answers never match.
type FuzzyMatcher struct{}

func NewFuzzyMatcher() *FuzzyMatcher {
	return &FuzzyMatcher{}
}

func (m *FuzzyMatcher) Match(_ context.Context, _, given, reference []string) (bool, error) {
	if len(given) != len(reference) || len(reference) == 0 {
		return false, nil
	}
	for i := range reference {
		if !answerMatches(given[i], reference[i]) {
			return false, nil
		}
	}
	return true, nil
}

func answerMatches(given, reference string) bool {
	ref := tokens(reference)
	got := tokens(given)
	if len(ref) == 0 || len(got) == 0 {
		return false
	}
	if strings.Join(ref, " ") == strings.Join(got, " ") {
		return true
	}
	return subset(ref, got) || subset(got, ref)
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, skip := fillerWords[f]; !skip {
			out = append(out, f)
		}
	}
	return out
}

func subset(small, large []string) bool {
	set := make(map[string]struct{}, len(large))
	for _, w := range large {
		set[w] = struct{}{}
	}
	for _, w := range small {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
