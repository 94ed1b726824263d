package rank

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// EmbeddingOptions configures an EmbeddingRanker.
type EmbeddingOptions struct {
	// Threshold drops candidates whose cosine similarity is below it.
	Threshold float64
	// DisableCache turns off per-text vector caching.
	DisableCache bool
}

// EmbeddingRanker ranks by cosine similarity between the query embedding and
// each candidate embedding. Candidate vectors are cached by text.
type EmbeddingRanker struct {
	embedder Embedder
	opts     EmbeddingOptions

	mu    sync.RWMutex
	cache map[string][]float64
}

// NewEmbeddingRanker creates a ranker backed by embedder.
func NewEmbeddingRanker(embedder Embedder, optFns ...func(o *EmbeddingOptions)) *EmbeddingRanker {
	opts := EmbeddingOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &EmbeddingRanker{embedder: embedder, opts: opts, cache: map[string][]float64{}}
}

// Rank implements Ranker.
func (r *EmbeddingRanker) Rank(ctx context.Context, candidates []string, query string, topK int) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	vectors, err := r.vectors(ctx, append([]string{query}, candidates...))
	if err != nil {
		return nil, err
	}

	q := vectors[0]
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Text: c, Index: i, Score: Cosine(q, vectors[i+1])}
	}

	return sortAndCut(results, r.opts.Threshold, topK), nil
}

func (r *EmbeddingRanker) vectors(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	r.mu.RLock()
	for i, t := range texts {
		if v, ok := r.cache[t]; ok && !r.opts.DisableCache {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	r.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	embedded, err := r.embedder.Embed(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(missing), err)
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for j, idx := range missingIdx {
		out[idx] = embedded[j]
		if !r.opts.DisableCache {
			r.cache[missing[j]] = embedded[j]
		}
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
