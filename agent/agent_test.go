package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/internal/testutil"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/rank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu   sync.Mutex
	sent []Reply
}

func (f *fakeChat) Send(_ context.Context, r Reply) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return fmt.Sprintf("bot-%d", len(f.sent)), nil
}

func (f *fakeChat) replies() []Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reply(nil), f.sent...)
}

func TestNewValidation(t *testing.T) {
	gen := model.NewMockGenerator()
	chat := &fakeChat{}

	_, err := New("", gen, chat)
	assert.Error(t, err)
	_, err = New("Ziggy", nil, chat)
	assert.Error(t, err)
	_, err = New("Ziggy", gen, nil)
	assert.Error(t, err)
}

func TestGate(t *testing.T) {
	a, err := New("Ziggy", model.NewMockGenerator(), &fakeChat{})
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		msg  memory.Message
		want bool
	}{
		{memory.Message{Author: "Ann", Content: "hey @ziggy"}, true},
		{memory.Message{Author: "Ann", Content: "nice", ReplyToAuthor: "Ziggy"}, true},
		{memory.Message{Author: "Ann", Content: "just chatting"}, false},
		{memory.Message{Author: "Ziggy", Content: "@Ziggy talking to myself"}, false},
		{memory.Message{Author: "Ann", Content: "Ziggy! reset @Ziggy"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, a.Gate().Admits(ctx, &tc.msg), tc.msg.Content)
	}
}

func TestRespond(t *testing.T) {
	ctx := context.Background()
	gen := model.NewMockGenerator().Script("Hello Ann!\n<Ann")
	store := memory.NewInMemoryStore()
	a, err := New("Ziggy", gen, &fakeChat{}, func(o *Options) {
		o.Memory = store
		o.Introduction = NewInstructionFromText("Ziggy is a friendly robot.")
	})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, memory.Message{ID: "1", ChannelID: "c", Author: "Ann", Content: "hi"}))
	msg := &memory.Message{ID: "2", ChannelID: "c", Author: "Ann", Content: "how are you @Ziggy", ReplyTo: "1"}

	reply, err := a.Respond(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann!", reply.Content)
	assert.Equal(t, "c", reply.ChannelID)
	assert.Equal(t, "2", reply.InReplyTo.ID)

	prompt := gen.Requests()[0].Prompt
	assert.Equal(t, "Ziggy is a friendly robot.\n<Ann>: hi\n<Ann>: how are you @Ziggy\n<Ziggy>:", prompt)

	_, err = store.Get(ctx, "2")
	assert.NoError(t, err, "the answered message is stored")
}

func TestRespond_EmptyReply(t *testing.T) {
	gen := model.NewMockGenerator().Script("\n<Ann")
	a, err := New("Ziggy", gen, &fakeChat{})
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), &memory.Message{ID: "1", Author: "Ann"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestDeliver_RecordsSentMessage(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{}
	a, err := New("Ziggy", model.NewMockGenerator(), chat)
	require.NoError(t, err)

	in := &memory.Message{ID: "u1", ChannelID: "c", Author: "Ann"}
	require.NoError(t, a.Deliver(ctx, &Reply{Agent: "Ziggy", ChannelID: "c", Content: "yo", InReplyTo: in}))

	sent, err := a.Memory().Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, "Ziggy", sent.Author)
	assert.Equal(t, "u1", sent.ReplyTo)
	assert.Equal(t, []string{"Ann"}, sent.ReferencedAuthors())
}

func TestRegister_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := engine.New(func(o *engine.Options) { o.DisableMetrics = true })
	t.Cleanup(s.Stop)

	gen := model.NewMockGenerator()
	gen.SetFallback(func(req model.Request) (string, error) {
		return "Sure thing\n<Ann", nil
	})
	chat := &fakeChat{}
	a, err := New("Ziggy", gen, chat)
	require.NoError(t, err)

	inbox := NewInbox("", 0)
	_, err = inbox.Register(s)
	require.NoError(t, err)
	require.NoError(t, a.Register(s))
	require.NoError(t, s.Start(ctx))

	for i, m := range []memory.Message{
		{Author: "Ann", Content: "nobody asked you"},
		{Author: "Ziggy", Content: "@Ziggy me"},
		{Author: "Ann", Content: "Ziggy! help"},
		{Author: "Ann", Content: "what's up @Ziggy"},
	} {
		m.ID = fmt.Sprint(i)
		m.ChannelID = "c"
		require.NoError(t, inbox.Push(ctx, m))
	}

	require.Eventually(t, func() bool { return len(chat.replies()) == 1 }, 2*time.Second, 5*time.Millisecond)
	drainCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Drain(drainCtx))

	got := chat.replies()
	require.Len(t, got, 1)
	assert.Equal(t, "Sure thing", got[0].Content)
	assert.Equal(t, "3", got[0].InReplyTo.ID)
	assert.Equal(t, 1, gen.Calls())
}

func TestRegister_FailedTurnSendsNothing(t *testing.T) {
	ctx := context.Background()
	s := engine.New(func(o *engine.Options) { o.DisableMetrics = true })
	t.Cleanup(s.Stop)

	var (
		mu   sync.Mutex
		errs []error
	)
	s.AddHook(engine.NewFunctionHook(engine.HookOnError, func(_ context.Context, hc *engine.HookContext) error {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, hc.Err)
		return nil
	}))

	gen := model.NewMockGenerator()
	gen.SetFallback(func(model.Request) (string, error) { return "", errors.New("model down") })
	chat := &fakeChat{}
	a, err := New("Ziggy", gen, chat, func(o *Options) { o.MaxAttempts = 2 })
	require.NoError(t, err)

	inbox := NewInbox("chat", 4)
	_, err = inbox.Register(s)
	require.NoError(t, err)
	require.NoError(t, a.Register(s))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, inbox.Push(ctx, memory.Message{ID: "1", Author: "Ann", Content: "@Ziggy?"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.ErrorIs(t, errs[0], core.ErrGenerationFailed)
	mu.Unlock()
	assert.Empty(t, chat.replies())
	assert.Equal(t, 2, gen.Calls())
}

func TestInbox_Closed(t *testing.T) {
	in := NewInbox("", 1)
	in.Close()
	in.Close()
	assert.ErrorIs(t, in.Push(context.Background(), memory.Message{}), ErrInboxClosed)
}

func TestInbox_CloseReleasesBlockedPush(t *testing.T) {
	in := NewInbox("", 1)
	require.NoError(t, in.Push(context.Background(), memory.Message{ID: "1"}))

	pushed := make(chan error, 1)
	go func() { pushed <- in.Push(context.Background(), memory.Message{ID: "2"}) }()

	closed := make(chan struct{})
	go func() {
		in.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a full inbox")
	}
	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, ErrInboxClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Push was not released by Close")
	}
}

func TestInbox_SourceDrainsAfterClose(t *testing.T) {
	in := NewInbox("", 4)
	ctx := context.Background()
	require.NoError(t, in.Push(ctx, memory.Message{ID: "1"}))
	require.NoError(t, in.Push(ctx, memory.Message{ID: "2"}))
	in.Close()

	emissions, err := in.Handler().Collect(ctx, nil)
	require.NoError(t, err)
	require.Len(t, emissions, 2)
	assert.Equal(t, "1", emissions[0].Payload.(*memory.Message).ID)
	assert.Equal(t, "2", emissions[1].Payload.(*memory.Message).ID)
}

func TestFrame_Build(t *testing.T) {
	chain := []memory.Message{{Author: "Ann", Content: "tell me about burgers"}}
	f := &Frame{
		PreConversation: "(conversation)",
		PreResponse:     "(Ziggy answers kindly)",
	}

	prompt, err := f.Build(context.Background(), "Ziggy", chain)
	require.NoError(t, err)
	assert.Equal(t, "(conversation)\n<Ann>: tell me about burgers\n(Ziggy answers kindly)\n<Ziggy>:", prompt)

	f.Examples = rank.NewList(rank.NewLexicalRanker(0), "<Bob>: weather?", "<Bob>: burgers are tasty")
	f.Examples.Max = 1
	prompt, err = f.Build(context.Background(), "Ziggy", chain)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "<Bob>: burgers are tasty\n(conversation)"), prompt)
}

func TestFrame_DynamicIntroduction(t *testing.T) {
	f := &Frame{Introduction: NewInstructionFromFunc(func(_ context.Context, m *memory.Message) (string, error) {
		return "Channel " + m.ChannelID, nil
	})}
	prompt, err := f.Build(context.Background(), "Z", []memory.Message{{ChannelID: "42", Author: "A", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "Channel 42\n<A>: x\n<Z>:", prompt)

	f.Introduction = NewInstructionFromFunc(func(context.Context, *memory.Message) (string, error) {
		return "", errors.New("boom")
	})
	_, err = f.Build(context.Background(), "Z", nil)
	assert.Error(t, err)
}

func TestFrame_IntroductionTemplate(t *testing.T) {
	chain := testutil.NewConversation("burgers").Say("Ann", "hi").Say("Bob", "hello there").Messages()
	f := &Frame{Introduction: NewInstructionFromText("{{.name}} chats with {{.author}} in #{{.channel}}.")}

	prompt, err := f.Build(context.Background(), "Ziggy", chain)
	require.NoError(t, err)
	assert.Equal(t, "Ziggy chats with Bob in #burgers.\n<Ann>: hi\n<Bob>: hello there\n<Ziggy>:", prompt)
}
