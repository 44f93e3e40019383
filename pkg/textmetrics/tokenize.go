package textmetrics

import (
	"strconv"
	"strings"
	"unicode"
)

// Tokenize lower-cases s and splits it on every rune that is neither a
// letter nor a digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// IDsToText renders token id sequences as space separated text so that they
// can be scored by any Metric.
func IDsToText(ids [][]int) []string {
	out := make([]string, len(ids))
	for i, seq := range ids {
		parts := make([]string, len(seq))
		for j, id := range seq {
			parts[j] = strconv.Itoa(id)
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}

func counts(tokens []string) map[string]int {
	c := make(map[string]int, len(tokens))
	for _, t := range tokens {
		c[t]++
	}
	return c
}

// overlap is the size of the multiset intersection of a and b.
func overlap(a, b map[string]int) int {
	n := 0
	for tok, ca := range a {
		n += min(ca, b[tok])
	}
	return n
}

func ngrams(tokens []string, n int) map[string]int {
	c := map[string]int{}
	for i := 0; i+n <= len(tokens); i++ {
		c[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return c
}
