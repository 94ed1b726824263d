package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_Translators(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{}
	a, err := New("Ziggy", model.NewMockGenerator(), chat, func(o *Options) {
		o.Translators = []Translator{
			NewTranslator("broken", func(_ context.Context, r *Reply) error {
				r.Content = "garbage"
				return errors.New("boom")
			}),
			NewTranslator("shout", func(_ context.Context, r *Reply) error {
				r.Content += "!"
				return nil
			}),
			ContentWarning("spiders"),
		}
	})
	require.NoError(t, err)

	original := &Reply{Agent: "Ziggy", ChannelID: "c", Content: "I saw Spiders"}
	require.NoError(t, a.Deliver(ctx, original))

	sent := chat.replies()
	require.Len(t, sent, 1)
	assert.Equal(t, "CW: spiders\n||I saw Spiders!||", sent[0].Content)
	assert.Equal(t, "I saw Spiders", original.Content, "the caller's reply is not modified")

	stored, err := a.Memory().Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, sent[0].Content, stored.Content)
}

func TestDeliver_TranslatedToNothing(t *testing.T) {
	chat := &fakeChat{}
	a, err := New("Ziggy", model.NewMockGenerator(), chat, func(o *Options) {
		o.Translators = []Translator{NewTranslator("erase", func(_ context.Context, r *Reply) error {
			r.Content = " "
			return nil
		})}
	})
	require.NoError(t, err)

	assert.ErrorIs(t, a.Deliver(context.Background(), &Reply{Content: "hi"}), ErrEmptyReply)
	assert.Empty(t, chat.replies())
}

func TestTruncate(t *testing.T) {
	r := &Reply{Content: "one two three four"}
	require.NoError(t, Truncate(10).Translate(context.Background(), r))
	assert.Equal(t, "one two…", r.Content)

	r = &Reply{Content: "short"}
	require.NoError(t, Truncate(10).Translate(context.Background(), r))
	assert.Equal(t, "short", r.Content)

	assert.Error(t, Truncate(0).Translate(context.Background(), r))
}

func TestAddExample(t *testing.T) {
	ctx := context.Background()
	gen := model.NewMockGenerator().Script("Sure.", "Sure.")
	a, err := New("Ziggy", gen, &fakeChat{})
	require.NoError(t, err)

	require.NoError(t, a.AddExample("do you like burgers? -> I love them"))
	require.NoError(t, a.AddExample("what is the price? -> menu -> Five coins"))
	assert.Error(t, a.AddExample("  "))

	_, err = a.Respond(ctx, &memory.Message{ID: "1", ChannelID: "c", Author: "Ann", Content: "burgers"})
	require.NoError(t, err)

	prompt := gen.Requests()[0].Prompt
	assert.Contains(t, prompt, "<User>: do you like burgers?\n<Ziggy>: I love them")
	assert.Contains(t, prompt, "<User>: what is the price?\n(Source: \"menu\")\n<Ziggy>: Five coins")

	custom, err := New("Ziggy", gen, &fakeChat{}, func(o *Options) {
		o.Prompt = func(context.Context, string, []memory.Message) (string, error) { return "p", nil }
	})
	require.NoError(t, err)
	assert.Error(t, custom.AddExample("a -> b"))
}
