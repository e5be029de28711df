package quality

import (
	"strings"

	"satsim-server/pkg/errors"
)

// WordErrorRate computes the word error rate between a reference and a
// hypothesis transcript: the minimum number of word substitutions,
// insertions and deletions needed to turn the hypothesis into the
// reference, divided by the reference word count. Zero means a perfect
// match; values above 1.0 are possible with many insertions.
//
// Tokenization is whitespace splitting after lowercasing, so the metric
// is insensitive to case and run-on spacing but not to punctuation.
func WordErrorRate(reference, hypothesis string) (float64, error) {
	refWords := tokenize(reference)
	hypWords := tokenize(hypothesis)

	if len(refWords) == 0 {
		return 0, errors.New("reference transcript has no words")
	}

	distance := editDistance(refWords, hypWords)
	return float64(distance) / float64(len(refWords)), nil
}

func tokenize(transcript string) []string {
	return strings.Fields(strings.ToLower(transcript))
}

// editDistance is the Levenshtein distance over word tokens, computed
// with a two-row dynamic program.
func editDistance(ref, hyp []string) int {
	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min3(
				prev[j-1], // substitution
				prev[j],   // deletion
				curr[j-1], // insertion
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(hyp)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
