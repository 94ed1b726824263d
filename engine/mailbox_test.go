package engine

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()
	for i := 0; i < 100; i++ {
		require.True(t, m.push(delivery{env: core.NewEnvelope("p", i, core.Untagged())}))
	}
	assert.Equal(t, 100, m.len())
	for i := 0; i < 100; i++ {
		d, ok := m.pop()
		require.True(t, ok)
		assert.Equal(t, i, d.env.Payload)
	}
}

func TestMailbox_PopBlocksUntilPush(t *testing.T) {
	m := newMailbox()
	got := make(chan any, 1)
	go func() {
		d, _ := m.pop()
		got <- d.env.Payload
	}()

	time.Sleep(10 * time.Millisecond)
	m.push(delivery{env: core.NewEnvelope("p", "late", core.Untagged())})

	select {
	case v := <-got:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestMailbox_Close(t *testing.T) {
	m := newMailbox()
	m.push(delivery{})
	m.push(delivery{})
	assert.Equal(t, 2, m.close())
	assert.Equal(t, 0, m.close())
	assert.False(t, m.push(delivery{}))
	_, ok := m.pop()
	assert.False(t, ok)
}

func TestTracker(t *testing.T) {
	tr := newTracker()
	require.NoError(t, tr.wait(context.Background()))

	tr.add(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.wait(ctx), context.DeadlineExceeded)

	go func() {
		tr.done(1)
		tr.add(1)
		tr.done(2)
	}()
	require.NoError(t, tr.wait(context.Background()))
	assert.Equal(t, 0, tr.count())
}
