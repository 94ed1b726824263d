package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a naive process-local Store.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case-insensitive substring matching. Suitable for
// tests and demos; use memory/sqlite when history must survive restarts.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message  // id -> message
	channels map[string][]string // channelID -> ids in insertion order
}

// NewInMemoryStore creates a new in-memory message store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string]Message),
		channels: make(map[string][]string),
	}
}

// Put stores msg, replacing an existing message with the same ID.
func (m *InMemoryStore) Put(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	msg.QuotedAuthors = slices.Clone(msg.QuotedAuthors)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, exists := m.messages[msg.ID]; exists {
		m.channels[old.ChannelID] = slices.DeleteFunc(m.channels[old.ChannelID], func(id string) bool { return id == msg.ID })
	}
	m.messages[msg.ID] = msg
	m.channels[msg.ChannelID] = append(m.channels[msg.ChannelID], msg.ID)
	return nil
}

// Get returns a copy of the stored message.
func (m *InMemoryStore) Get(ctx context.Context, id string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	msg.QuotedAuthors = slices.Clone(msg.QuotedAuthors)
	return msg, nil
}

// ReplyChain implements Store.
func (m *InMemoryStore) ReplyChain(ctx context.Context, msg Message, window, maxChars int) ([]Message, error) {
	return ReplyChain(ctx, m, msg, window, maxChars)
}

// Search performs a substring match over the channel's messages, newest
// first.
func (m *InMemoryStore) Search(ctx context.Context, channelID, query string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	query = strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.channels[channelID]
	results := make([]Message, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(results) < limit; i-- {
		msg := m.messages[ids[i]]
		if query == "" || strings.Contains(strings.ToLower(msg.Content), query) {
			results = append(results, msg)
		}
	}
	return results, nil
}

// Delete removes a message by id.
func (m *InMemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, exists := m.messages[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.messages, id)
	m.channels[msg.ChannelID] = slices.DeleteFunc(m.channels[msg.ChannelID], func(v string) bool { return v == id })
	return nil
}

// Len returns the number of stored messages.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}
