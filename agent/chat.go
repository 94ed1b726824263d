package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/handler"
	"github.com/hupe1980/agentswarm/memory"
)

// TagInbound carries *memory.Message values received from the chat platform.
const TagInbound core.Tag = "inbound"

// OutboundTag returns the tag an agent's replies are published on.
func OutboundTag(name string) core.Tag { return core.Tag("outbound:" + name) }

// Reply is an agent's answer waiting to be delivered.
type Reply struct {
	Agent     string
	ChannelID string
	Content   string
	// InReplyTo is the message being answered.
	InReplyTo *memory.Message
}

// ChatClient delivers replies to the chat platform and returns the id the
// platform assigned to the sent message.
type ChatClient interface {
	Send(ctx context.Context, reply Reply) (string, error)
}

// ChatFunc adapts a function to ChatClient.
type ChatFunc func(ctx context.Context, reply Reply) (string, error)

// Send implements ChatClient.
func (f ChatFunc) Send(ctx context.Context, reply Reply) (string, error) { return f(ctx, reply) }

// ErrInboxClosed is returned by Push after Close.
var ErrInboxClosed = errors.New("agent: inbox closed")

// DefaultInboxName is the handler name of an inbox registered without a name.
const DefaultInboxName = "inbox"

// Inbox feeds chat events into a swarm. Push messages from the chat
// platform's event loop; the registered source publishes them on TagInbound
// in push order.
type Inbox struct {
	name string
	ch   chan *memory.Message

	done      chan struct{}
	closeOnce sync.Once
}

// NewInbox creates an inbox buffering up to size messages. A size of zero or
// less selects 64.
func NewInbox(name string, size int) *Inbox {
	if name == "" {
		name = DefaultInboxName
	}
	if size <= 0 {
		size = 64
	}
	return &Inbox{name: name, ch: make(chan *memory.Message, size), done: make(chan struct{})}
}

// Name returns the source handler name.
func (in *Inbox) Name() string { return in.name }

// Push enqueues msg, blocking while the buffer is full. It returns
// ErrInboxClosed once Close was called, also while blocked.
func (in *Inbox) Push(ctx context.Context, msg memory.Message) error {
	select {
	case <-in.done:
		return ErrInboxClosed
	default:
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	select {
	case in.ch <- &msg:
		return nil
	case <-in.done:
		return ErrInboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and releases blocked Push calls. The source
// publishes what is buffered and then finishes. Close is idempotent and
// never blocks.
func (in *Inbox) Close() {
	in.closeOnce.Do(func() { close(in.done) })
}

// Handler returns the source body.
func (in *Inbox) Handler() *handler.Handler {
	return handler.Source(func(ctx context.Context, emit handler.Emit) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg := <-in.ch:
				if err := emit(core.Emit(msg, core.To(TagInbound))); err != nil {
					return err
				}
			case <-in.done:
				return in.drain(emit)
			}
		}
	})
}

func (in *Inbox) drain(emit handler.Emit) error {
	for {
		select {
		case msg := <-in.ch:
			if err := emit(core.Emit(msg, core.To(TagInbound))); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Register adds the inbox source to s.
func (in *Inbox) Register(s *engine.Swarm) (core.HandlerID, error) {
	return s.Register(engine.Declaration{Name: in.name, Handler: in.Handler()})
}
