package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/internal/util"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/rank"
)

// exampleQueryChars is how much of the conversation tail is used to pick
// relevant examples.
const exampleQueryChars = 120

// PromptFunc renders the prompt for a reply to the last message of chain.
type PromptFunc func(ctx context.Context, name string, chain []memory.Message) (string, error)

// templateState exposes name, author and channel to introduction templates.
func templateState(name string, last *memory.Message) map[string]any {
	state := map[string]any{"name": name}
	if last != nil {
		state["author"] = last.Author
		state["channel"] = last.ChannelID
	}
	return state
}

// Frame assembles a script style prompt from ordered fields. The introduction
// may reference {{.name}}, {{.author}} and {{.channel}}. Empty fields
// are skipped; the rest are joined by newlines and followed by the speech cue
// "<name>:".
type Frame struct {
	Introduction Instruction

	// Examples are reordered by relevance to the end of the conversation.
	Examples *rank.List

	PreConversation string
	PreResponse     string
}

// Build implements PromptFunc.
func (f *Frame) Build(ctx context.Context, name string, chain []memory.Message) (string, error) {
	var last *memory.Message
	if len(chain) > 0 {
		last = &chain[len(chain)-1]
	}

	intro, err := f.Introduction.Resolve(ctx, last)
	if err != nil {
		return "", fmt.Errorf("resolve introduction: %w", err)
	}
	intro, err = util.RenderTemplate(intro, templateState(name, last))
	if err != nil {
		return "", fmt.Errorf("render introduction: %w", err)
	}

	lines := make([]string, len(chain))
	for i := range chain {
		lines[i] = chain[i].String()
	}
	conversation := strings.Join(lines, "\n")

	var examples string
	if f.Examples != nil && f.Examples.Len() > 0 {
		query := conversation
		if len(query) > exampleQueryChars {
			query = query[len(query)-exampleQueryChars:]
		}
		ordered, err := f.Examples.Reordered(ctx, query)
		if err != nil {
			return "", fmt.Errorf("reorder examples: %w", err)
		}
		examples = strings.Join(ordered, f.Examples.Delimiter)
	}

	var b strings.Builder
	for _, field := range []string{intro, examples, f.PreConversation, conversation, f.PreResponse} {
		if field == "" {
			continue
		}
		b.WriteString(field)
		b.WriteByte('\n')
	}
	b.WriteString("<" + memory.DisplayName(name) + ">:")
	return b.String(), nil
}
