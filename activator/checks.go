package activator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/hupe1980/agentswarm/rank"
)

// Text is implemented by payloads carrying message text.
type Text interface {
	Text() string
}

// Referencer is implemented by payloads that reference another author, for
// example through a reply or an embedded quote.
type Referencer interface {
	ReferencedAuthors() []string
}

// OnPing admits messages that mention name ("@name", case insensitive) or
// that reply to / quote a message written by name.
func OnPing(name string) Check {
	mention := "@" + strings.ToLower(name)
	return Check{
		Name: "on_ping",
		Predicate: func(_ context.Context, payload any) (bool, error) {
			if t, ok := payload.(Text); ok && strings.Contains(strings.ToLower(t.Text()), mention) {
				return true, nil
			}
			if r, ok := payload.(Referencer); ok {
				for _, a := range r.ReferencedAuthors() {
					if a == name {
						return true, nil
					}
				}
			}
			return false, nil
		},
	}
}

// TopicThreshold is the minimum ranking score for a topic match.
const TopicThreshold = 0.3

var offTopicSentences = []string{
	"This sentence is unoffensive and contains no upsetting content",
	"This sentence is calm and factual",
	"This sentence is conversational and casual",
	"This sentence is not very interesting and talks about generic topics",
	"This sentence is about science, sports, art, computers, or music",
}

func topicSentence(topic string) string {
	return fmt.Sprintf("This sentence is specifically related to %s and mentions %s", topic, topic)
}

// OnTopic admits text payloads whose best matching reference sentence (by
// ranker) is the one describing topic. Generic distractor sentences and one
// sentence per ignored topic compete with it.
func OnTopic(ranker rank.Ranker, topic string, ignore ...string) Check {
	target := topicSentence(topic)
	candidates := append([]string{target}, offTopicSentences...)
	for _, t := range ignore {
		candidates = append(candidates, topicSentence(t))
	}

	return Check{
		Name: "on_topic",
		Predicate: func(ctx context.Context, payload any) (bool, error) {
			t, ok := payload.(Text)
			if !ok {
				return false, nil
			}
			top, err := ranker.Rank(ctx, candidates, t.Text(), 1)
			if err != nil {
				return false, fmt.Errorf("rank topic: %w", err)
			}
			if len(top) == 0 || top[0].Score < TopicThreshold {
				return false, nil
			}
			return top[0].Index == 0, nil
		},
	}
}

// OnDiceroll admits a payload with probability 1/sides. rng may be nil to use
// the global source.
func OnDiceroll(sides int, rng *rand.Rand) Check {
	var mu sync.Mutex
	return Check{
		Name: "on_diceroll",
		Predicate: func(context.Context, any) (bool, error) {
			if sides <= 1 {
				return true, nil
			}
			if rng == nil {
				return rand.IntN(sides) == 0, nil
			}
			mu.Lock()
			defer mu.Unlock()
			return rng.IntN(sides) == 0, nil
		},
	}
}
