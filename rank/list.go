package rank

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// List is an ordered set of texts (typically prompt examples) that can be
// reordered by relevance to a query. Items may be appended with Add while
// the list is in use; set the other fields before sharing it.
type List struct {
	Items     []string
	Max       int
	Delimiter string
	Ranker    Ranker

	mu sync.RWMutex
}

// NewList creates a List showing at most five items separated by newlines.
func NewList(ranker Ranker, items ...string) *List {
	return &List{Items: items, Max: 5, Delimiter: "\n", Ranker: ranker}
}

// Reordered returns the Max most relevant items with the most relevant one
// last, so it sits closest to whatever follows in a prompt.
func (l *List) Reordered(ctx context.Context, query string) ([]string, error) {
	items := l.snapshot()
	if len(items) == 0 {
		return nil, nil
	}
	ranked, err := l.Ranker.Rank(ctx, items, query, 0)
	if err != nil {
		return nil, err
	}
	if l.Max > 0 && len(ranked) > l.Max {
		ranked = ranked[:l.Max]
	}
	out := Texts(ranked)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// String joins the first Max items with the delimiter.
func (l *List) String() string {
	items := l.snapshot()
	if l.Max > 0 && len(items) > l.Max {
		items = items[:l.Max]
	}
	return strings.Join(items, l.Delimiter)
}

// Add appends items.
func (l *List) Add(items ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Items = append(l.Items, items...)
}

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.Items)
}

func (l *List) snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.Items)
}
