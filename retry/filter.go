package retry

import (
	"context"
	"fmt"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// ScriptMarker starts the next speaker line in script-style prompts.
const ScriptMarker = "\n<"

// Filter objects to candidates. Reject returns true to request another
// attempt. Errors are treated as no objection.
type Filter interface {
	Name() string
	Reject(ctx context.Context, candidate, prompt string) (bool, error)
}

type funcFilter struct {
	name string
	fn   func(ctx context.Context, candidate, prompt string) (bool, error)
}

// NewFilter wraps fn as a named Filter.
func NewFilter(name string, fn func(ctx context.Context, candidate, prompt string) (bool, error)) Filter {
	return funcFilter{name: name, fn: fn}
}

func (f funcFilter) Name() string { return f.name }

func (f funcFilter) Reject(ctx context.Context, candidate, prompt string) (bool, error) {
	return f.fn(ctx, candidate, prompt)
}

// DeviatesFromScript objects to candidates that do not contain marker. A
// well-behaved continuation of a script prompt ends its line and starts the
// next speaker marker; its absence means the model wandered off.
func DeviatesFromScript(marker string) Filter {
	if marker == "" {
		marker = ScriptMarker
	}
	return NewFilter("deviates_from_script", func(_ context.Context, candidate, _ string) (bool, error) {
		return !strings.Contains(candidate, marker), nil
	})
}

// DefaultSimilarityThreshold is the TooSimilar cut-off on a 0-100 scale.
const DefaultSimilarityThreshold = 68

// TooSimilar objects to candidates that largely repeat the prompt. The part of
// the candidate before the first script marker is scored against the prompt
// with a partial token-sort ratio on a 0-100 scale, so a reply copying any
// line of a long prompt scores close to 100.
func TooSimilar(threshold float64) Filter {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return NewFilter("too_similar", func(ctx context.Context, candidate, prompt string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		reply := Reply(candidate)
		return float64(fuzzy.PartialTokenSortRatio(reply, prompt)) >= threshold, nil
	})
}

// Blocklist objects to candidates containing any of words as a whole,
// whitespace separated, case-insensitive token.
func Blocklist(words ...string) Filter {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return NewFilter("blocklist", func(_ context.Context, candidate, _ string) (bool, error) {
		for _, tok := range strings.Fields(strings.ToLower(candidate)) {
			if _, ok := set[tok]; ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Any combines filters into one that objects if any member objects. Members
// run sequentially; member errors are returned only if no member objected.
func Any(filters ...Filter) Filter {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name()
	}
	return NewFilter(fmt.Sprintf("any(%s)", strings.Join(names, ",")), func(ctx context.Context, candidate, prompt string) (bool, error) {
		var firstErr error
		for _, f := range filters {
			reject, err := f.Reject(ctx, candidate, prompt)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if reject {
				return true, nil
			}
		}
		return false, firstErr
	})
}

// Default returns the filters applied to persona replies.
func Default(blocked ...string) []Filter {
	filters := []Filter{DeviatesFromScript(ScriptMarker), TooSimilar(DefaultSimilarityThreshold)}
	if len(blocked) > 0 {
		filters = append(filters, Blocklist(blocked...))
	}
	return filters
}

// Reply returns the text before the first script marker, trimmed.
func Reply(candidate string) string {
	if i := strings.Index(candidate, ScriptMarker); i >= 0 {
		candidate = candidate[:i]
	}
	return strings.TrimSpace(candidate)
}
