package rank

import (
	"context"
	"sort"
)

// Result is a ranked candidate.
type Result struct {
	Text  string
	Index int // position in the candidate slice passed to Rank
	Score float64
}

// Ranker orders candidates by relevance to query and returns at most topK
// results, best first. topK <= 0 returns every candidate that passes the
// ranker's threshold.
type Ranker interface {
	Rank(ctx context.Context, candidates []string, query string, topK int) ([]Result, error)
}

// Embedder turns texts into dense vectors. The returned slice is parallel to texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Texts extracts the candidate texts from results, preserving order.
func Texts(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text
	}
	return out
}

func sortAndCut(results []Result, threshold float64, topK int) []Result {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
