package rank

import (
	"context"
	"strings"
	"unicode"
)

// LexicalRanker scores candidates by the overlap coefficient of their word
// sets with the query: |A∩B| / min(|A|,|B|).
type LexicalRanker struct {
	Threshold float64
}

// NewLexicalRanker creates a LexicalRanker dropping scores below threshold.
func NewLexicalRanker(threshold float64) *LexicalRanker {
	return &LexicalRanker{Threshold: threshold}
}

// Rank implements Ranker.
func (r *LexicalRanker) Rank(ctx context.Context, candidates []string, query string, topK int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := Tokens(query)
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Text: c, Index: i, Score: overlap(q, Tokens(c))}
	}
	return sortAndCut(results, r.Threshold, topK), nil
}

// Tokens lowercases s and splits it into a set of letter/digit words.
func Tokens(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	n := 0
	for w := range small {
		if _, ok := large[w]; ok {
			n++
		}
	}
	return float64(n) / float64(len(small))
}
