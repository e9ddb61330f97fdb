// Package match provides normalized fuzzy string comparison for fact
// deduplication and block-list matching.
package match

import (
	"strings"
	"unicode"
)

const (
	// winklerPrefixScale is the boost per matching leading character.
	winklerPrefixScale = 0.1
	// winklerMaxPrefix caps how many leading characters contribute.
	winklerMaxPrefix = 4
)

// Normalize lowercases, trims, collapses whitespace runs, and strips
// punctuation. All comparisons in this package run on normalized strings.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Similarity returns the Jaro-Winkler similarity of two strings in [0,1]
// after normalization. Exact normalized equality short-circuits to 1.0; an
// empty side scores 0 unless both are empty.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	ra, rb := []rune(na), []rune(nb)
	j := jaro(ra, rb)

	prefix := 0
	for i := 0; i < len(ra) && i < len(rb) && i < winklerMaxPrefix; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}

	return j + float64(prefix)*winklerPrefixScale*(1.0-j)
}

func jaro(a, b []rune) float64 {
	la, lb := len(a), len(b)

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || a[i] != b[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	j := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2.0
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3.0
}

// Result pairs a matched item with its similarity score.
type Result[T any] struct {
	Item  T
	Score float64
}

// FindBestMatch returns the highest-scoring item whose key similarity to
// query is at or above threshold. Ties keep the first item encountered.
func FindBestMatch[T any](query string, items []T, key func(T) string, threshold float64) (Result[T], bool) {
	var best Result[T]
	found := false
	for _, item := range items {
		score := Similarity(query, key(item))
		if score < threshold {
			continue
		}
		if !found || score > best.Score {
			best = Result[T]{Item: item, Score: score}
			found = true
		}
	}
	return best, found
}
