package agent

import (
	"context"
	"fmt"
	"strings"
)

// Translator rewrites an outgoing reply before it is sent, for example to
// shorten it or tag it. Translators run in order; a failing translator is
// logged and skipped, leaving the reply as the previous one produced it.
type Translator interface {
	Name() string
	Translate(ctx context.Context, reply *Reply) error
}

type translatorFunc struct {
	name string
	fn   func(ctx context.Context, reply *Reply) error
}

// NewTranslator adapts fn to a Translator.
func NewTranslator(name string, fn func(ctx context.Context, reply *Reply) error) Translator {
	return &translatorFunc{name: name, fn: fn}
}

func (t *translatorFunc) Name() string { return t.name }

func (t *translatorFunc) Translate(ctx context.Context, reply *Reply) error {
	return t.fn(ctx, reply)
}

// Truncate cuts replies longer than maxRunes at the last space before the
// limit and appends an ellipsis.
func Truncate(maxRunes int) Translator {
	return NewTranslator("truncate", func(_ context.Context, reply *Reply) error {
		if maxRunes <= 0 {
			return fmt.Errorf("truncate: invalid limit %d", maxRunes)
		}
		r := []rune(reply.Content)
		if len(r) <= maxRunes {
			return nil
		}
		cut := string(r[:maxRunes])
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		reply.Content = strings.TrimSpace(cut) + "…"
		return nil
	})
}

// ContentWarning wraps replies mentioning any of topics in a spoiler and
// prefixes them with a "CW: <topic>" line.
func ContentWarning(topics ...string) Translator {
	return NewTranslator("content_warning", func(_ context.Context, reply *Reply) error {
		lower := strings.ToLower(reply.Content)
		for _, topic := range topics {
			if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
				reply.Content = "CW: " + topic + "\n||" + reply.Content + "||"
				return nil
			}
		}
		return nil
	})
}

func (a *Agent) translate(ctx context.Context, reply *Reply) {
	for _, t := range a.translators {
		before := reply.Content
		if err := t.Translate(ctx, reply); err != nil {
			reply.Content = before
			a.logger.Warn("translator failed", "translator", t.Name(), "error", err)
		}
	}
}

// AddExample appends an example exchange to the agent's prompt at runtime.
// The shorthand "user text -> agent text" becomes a two line exchange;
// "user text -> source -> agent text" also cites the source the answer came
// from. Other text is added verbatim.
func (a *Agent) AddExample(example string) error {
	if a.frame == nil || a.frame.Examples == nil {
		return fmt.Errorf("agent %s: custom prompt has no example list", a.name)
	}
	example = strings.TrimSpace(example)
	if example == "" {
		return fmt.Errorf("agent %s: empty example", a.name)
	}

	parts := strings.Split(example, " -> ")
	switch len(parts) {
	case 2:
		example = fmt.Sprintf("<%s>: %s\n<%s>: %s", exampleUser, parts[0], a.name, parts[1])
	case 3:
		example = fmt.Sprintf("<%s>: %s\n(Source: %q)\n<%s>: %s", exampleUser, parts[0], parts[1], a.name, parts[2])
	}
	a.frame.Examples.Add(example)
	a.logger.Info("example added", "examples", a.frame.Examples.Len())
	return nil
}

// exampleUser is the speaker of the user side of shorthand examples.
const exampleUser = "User"
