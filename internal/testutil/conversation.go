package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentswarm/memory"
)

// ConversationBuilder helps construct reply chains with fluent chaining.
// Every message replies to the one before it.
// Example:
//
//	msgs := NewConversation("general").Say("Ann", "hi").Say("Bob", "hey").Messages()
type ConversationBuilder struct {
	channel string
	start   time.Time
	msgs    []memory.Message
}

// NewConversation creates a builder for messages in the given channel.
func NewConversation(channel string) *ConversationBuilder {
	return &ConversationBuilder{
		channel: channel,
		start:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Say appends a message by author (chainable). IDs are m0, m1, ... and
// timestamps advance by one second per message.
func (b *ConversationBuilder) Say(author, content string) *ConversationBuilder {
	n := len(b.msgs)
	msg := memory.Message{
		ID:        fmt.Sprintf("m%d", n),
		ChannelID: b.channel,
		AuthorID:  author,
		Author:    author,
		Content:   content,
		CreatedAt: b.start.Add(time.Duration(n) * time.Second),
	}
	if n > 0 {
		prev := b.msgs[n-1]
		msg.ReplyTo = prev.ID
		msg.ReplyToAuthor = prev.Author
	}
	b.msgs = append(b.msgs, msg)
	return b
}

// Repeat appends n messages by author with the same content (chainable).
func (b *ConversationBuilder) Repeat(n int, author, content string) *ConversationBuilder {
	for range n {
		b.Say(author, content)
	}
	return b
}

// Messages returns a copy of the built messages, oldest first.
func (b *ConversationBuilder) Messages() []memory.Message {
	out := make([]memory.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Last returns the newest message. It panics on an empty conversation.
func (b *ConversationBuilder) Last() memory.Message {
	return b.msgs[len(b.msgs)-1]
}

// Store puts every message into s and returns the builder's last message.
func (b *ConversationBuilder) Store(ctx context.Context, s memory.Store) (memory.Message, error) {
	for _, m := range b.msgs {
		if err := s.Put(ctx, m); err != nil {
			return memory.Message{}, fmt.Errorf("put %s: %w", m.ID, err)
		}
	}
	return b.Last(), nil
}
