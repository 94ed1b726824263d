package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/agentswarm/activator"
	"github.com/hupe1980/agentswarm/collect"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/handler"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/rank"
	"github.com/hupe1980/agentswarm/retry"
)

// ErrEmptyReply is returned when a completion leaves nothing to send.
var ErrEmptyReply = errors.New("agent: empty reply")

// Options configures an Agent.
type Options struct {
	// Introduction opens every prompt.
	Introduction Instruction
	// Examples are example exchanges shown before the conversation.
	Examples        []string
	PreConversation string
	PreResponse     string
	// Prompt overrides the default Frame based prompt builder.
	Prompt PromptFunc

	// Ranker orders examples and backs the topic check. Defaults to a
	// lexical ranker.
	Ranker rank.Ranker
	// Ping adds the mention/reply check. Enabled by default.
	Ping bool
	// Topic adds a topic check when non-empty.
	Topic        string
	IgnoreTopics []string
	// DicerollSides adds a 1-in-N random check when greater than zero.
	DicerollSides int
	Rand          *rand.Rand

	// Memory stores the conversation. Defaults to an InMemoryStore.
	Memory   memory.Store
	Window   int
	MaxChars int

	// Request carries the sampling settings. Defaults to model.DefaultRequest.
	Request model.Request
	// Filters default to retry.Default().
	Filters     []retry.Filter
	MaxAttempts int
	Limiter     *core.CallLimiter

	// Translators rewrite replies before they are sent, in order.
	Translators []Translator

	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Agent is a chat persona.
type Agent struct {
	name     string
	gate     *activator.Gate
	loop     *retry.Loop
	prompt   PromptFunc
	frame    *Frame
	memory   memory.Store
	client   ChatClient
	window   int
	maxChars int
	logger   logging.Logger

	translators []Translator
}

// New creates an agent named name that completes prompts with gen and sends
// replies through client.
func New(name string, gen model.Generator, client ChatClient, optFns ...func(o *Options)) (*Agent, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("agent %s: generator is required", name)
	}
	if client == nil {
		return nil, fmt.Errorf("agent %s: chat client is required", name)
	}

	opts := Options{
		Ping:     true,
		Request:  model.DefaultRequest(""),
		Filters:  retry.Default(),
		Window:   memory.DefaultWindow,
		MaxChars: memory.DefaultMaxChars,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Ranker == nil {
		opts.Ranker = rank.NewLexicalRanker(0)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}

	logger := logging.OrNoOp(opts.Logger)
	if sl, ok := logger.(*logging.SwarmLogger); ok {
		logger = sl.WithComponent("agent").WithContext("agent", name)
	}

	gate, err := newGate(name, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	var frame *Frame
	prompt := opts.Prompt
	if prompt == nil {
		frame = &Frame{
			Introduction:    opts.Introduction,
			Examples:        rank.NewList(opts.Ranker, opts.Examples...),
			PreConversation: opts.PreConversation,
			PreResponse:     opts.PreResponse,
		}
		prompt = frame.Build
	}

	loop := retry.New(retry.FromGenerator(gen, opts.Request), func(o *retry.Options) {
		o.MaxAttempts = opts.MaxAttempts
		o.Filters = opts.Filters
		o.Limiter = opts.Limiter
		o.Logger = logger
	})

	return &Agent{
		name:     name,
		gate:     gate,
		loop:     loop,
		prompt:   prompt,
		frame:    frame,
		memory:   opts.Memory,
		client:   client,
		window:   opts.Window,
		maxChars: opts.MaxChars,
		logger:   logger,

		translators: opts.Translators,
	}, nil
}

// newGate builds the activator: the mandatory check skips the agent's own
// messages and commands addressed to it ("name!..."); optional checks decide
// whether the agent feels addressed.
func newGate(name string, opts Options, logger logging.Logger) (*activator.Gate, error) {
	command := name + "!"
	checks := []activator.Check{{
		Name:      "not_self_or_command",
		Mandatory: true,
		Predicate: activator.Func(func(m *memory.Message) bool {
			return m.Author != name && !strings.HasPrefix(m.Content, command)
		}),
	}}
	if opts.Ping {
		checks = append(checks, activator.OnPing(name))
	}
	if opts.Topic != "" {
		checks = append(checks, activator.OnTopic(opts.Ranker, opts.Topic, opts.IgnoreTopics...))
	}
	if opts.DicerollSides > 0 {
		checks = append(checks, activator.OnDiceroll(opts.DicerollSides, opts.Rand))
	}
	return activator.New(checks, func(o *activator.Options) { o.Logger = logger })
}

// Name returns the persona name.
func (a *Agent) Name() string { return a.name }

// Gate returns the agent's activator. Add checks before registering.
func (a *Agent) Gate() *activator.Gate { return a.gate }

// Memory returns the conversation store.
func (a *Agent) Memory() memory.Store { return a.memory }

// Respond produces the reply to msg without consulting the gate. msg is
// stored first so it becomes part of later reply chains.
func (a *Agent) Respond(ctx context.Context, in *memory.Message) (*Reply, error) {
	// Payloads are shared between agents; work on a copy.
	msg := *in
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := a.memory.Put(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	chain, err := a.memory.ReplyChain(ctx, msg, a.window, a.maxChars)
	if err != nil {
		return nil, fmt.Errorf("reply chain: %w", err)
	}
	prompt, err := a.prompt(ctx, a.name, chain)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	completion, err := a.loop.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	text := retry.Reply(completion)
	if text == "" {
		return nil, ErrEmptyReply
	}

	return &Reply{Agent: a.name, ChannelID: msg.ChannelID, Content: text, InReplyTo: &msg}, nil
}

// Deliver runs the translators, sends the result and records the sent
// message in memory.
func (a *Agent) Deliver(ctx context.Context, reply *Reply) error {
	out := *reply
	a.translate(ctx, &out)
	if strings.TrimSpace(out.Content) == "" {
		return ErrEmptyReply
	}
	reply = &out

	id, err := a.client.Send(ctx, *reply)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if id == "" {
		return nil
	}

	sent := memory.Message{
		ID:        id,
		ChannelID: reply.ChannelID,
		Author:    a.name,
		Content:   reply.Content,
		CreatedAt: time.Now().UTC(),
	}
	if reply.InReplyTo != nil {
		sent.ReplyTo = reply.InReplyTo.ID
		sent.ReplyToAuthor = reply.InReplyTo.Author
	}
	if err := a.memory.Put(ctx, sent); err != nil {
		a.logger.Warn("failed to store sent reply", "id", id, "error", err)
	}
	return nil
}

// ReplyHandlerName is the name of the handler composing replies.
func (a *Agent) ReplyHandlerName() string { return "reply:" + a.name }

// SendHandlerName is the name of the sink delivering replies.
func (a *Agent) SendHandlerName() string { return "send:" + a.name }

// Register wires the agent into s: a gated reply handler consuming
// TagInbound and a sink delivering its replies.
func (a *Agent) Register(s *engine.Swarm) error {
	if _, err := s.Register(engine.Declaration{
		Name: a.ReplyHandlerName(),
		Inputs: []collect.Slot{
			collect.SlotOf[*memory.Message]("message", core.OnTag(TagInbound), nil),
		},
		Gate: a.gate,
		Handler: handler.OneShot(func(ctx context.Context, args core.Args) (*core.Emission, error) {
			reply, err := a.Respond(ctx, core.Arg[*memory.Message](args, "message"))
			if err != nil {
				return nil, err
			}
			return handler.Returning(reply, core.To(OutboundTag(a.name))), nil
		}),
	}); err != nil {
		return err
	}

	_, err := s.Register(engine.Declaration{
		Name: a.SendHandlerName(),
		Inputs: []collect.Slot{
			collect.SlotOf[*Reply]("reply", core.OnTag(OutboundTag(a.name)), nil),
		},
		Role: engine.RoleSink,
		// Replies go out in order.
		MaxConcurrency: 1,
		Handler: handler.OneShot(func(ctx context.Context, args core.Args) (*core.Emission, error) {
			return nil, a.Deliver(ctx, core.Arg[*Reply](args, "reply"))
		}),
	})
	return err
}
