package engine

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/hupe1980/agentswarm/core"
)

// delivery is one envelope routed to a handler together with the indices of
// the input slots it matched.
type delivery struct {
	env   core.Envelope
	slots []int
}

// mailbox is an unbounded FIFO queue with a single consumer. push never
// blocks, which keeps publishing non-blocking no matter how slow a
// subscriber is.
type mailbox struct {
	mu     sync.Mutex
	items  deque.Deque[delivery]
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// push appends d. It returns false once the mailbox is closed.
func (m *mailbox) push(d delivery) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items.PushBack(d)
	m.mu.Unlock()

	m.wake()
	return true
}

// pop blocks until an item is available or the mailbox is closed.
func (m *mailbox) pop() (delivery, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return delivery{}, false
		}
		if m.items.Len() > 0 {
			d := m.items.PopFront()
			m.mu.Unlock()
			return d, true
		}
		m.mu.Unlock()
		<-m.signal
	}
}

// close stops the mailbox and returns the number of discarded items.
func (m *mailbox) close() int {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	m.closed = true
	n := m.items.Len()
	m.items.Clear()
	m.mu.Unlock()

	m.wake()
	return n
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len()
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
