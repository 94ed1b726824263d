package memory

import (
	"context"
	"errors"
)

// Defaults for ReplyChain.
const (
	DefaultWindow   = 15
	DefaultMaxChars = 800
)

// ErrNotFound is returned when a message id is unknown.
var ErrNotFound = errors.New("memory: message not found")

// Store persists messages and walks reply chains.
type Store interface {
	// Put inserts or replaces a message keyed by its ID.
	Put(ctx context.Context, msg Message) error
	// Get returns the message with id or ErrNotFound.
	Get(ctx context.Context, id string) (Message, error)
	// ReplyChain returns msg and the messages it transitively replies to,
	// oldest first.
	ReplyChain(ctx context.Context, msg Message, window, maxChars int) ([]Message, error)
	// Search returns up to limit messages of channelID containing query,
	// newest first. An empty query matches everything.
	Search(ctx context.Context, channelID, query string, limit int) ([]Message, error)
	// Delete removes a message.
	Delete(ctx context.Context, id string) error
}

// Getter is the lookup ReplyChain needs.
type Getter interface {
	Get(ctx context.Context, id string) (Message, error)
}

// ReplyChain follows ReplyTo links starting at msg. At most window messages
// are collected; the walk stops once the collected content exceeds maxChars
// or a link cannot be resolved. The result is ordered oldest first and always
// contains msg. Non-positive window and maxChars select the defaults.
func ReplyChain(ctx context.Context, g Getter, msg Message, window, maxChars int) ([]Message, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	chain := make([]Message, 0, window)
	seen := make(map[string]struct{}, window)
	chars := 0
	cur := msg
	for len(chain) < window {
		chain = append(chain, cur)
		seen[cur.ID] = struct{}{}
		chars += len(cur.Content)

		if !cur.IsReply() || chars > maxChars {
			break
		}
		if _, loop := seen[cur.ReplyTo]; loop {
			break
		}

		next, err := g.Get(ctx, cur.ReplyTo)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
