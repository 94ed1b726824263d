package handler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShot(t *testing.T) {
	h := OneShot(func(_ context.Context, args core.Args) (*core.Emission, error) {
		return Returning(core.Arg[int](args, "n")*2, core.To("double")), nil
	})
	assert.Equal(t, KindOneShot, h.Kind())

	out, err := h.Collect(context.Background(), core.Args{"n": 21})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 42, out[0].Payload)
	assert.Equal(t, core.Tag("double"), out[0].Dest.Tag())
}

func TestOneShot_NilEmission(t *testing.T) {
	h := OneShot(func(context.Context, core.Args) (*core.Emission, error) { return nil, nil })
	out, err := h.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStream(t *testing.T) {
	h := Stream(func(ctx context.Context, _ core.Args, emit Emit) error {
		for i := 0; i < 3; i++ {
			if err := emit(core.Emit(i, core.Untagged())); err != nil {
				return err
			}
		}
		return nil
	})

	out, err := h.Collect(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, e := range out {
		assert.Equal(t, i, e.Payload)
	}
}

func TestInvoke_ErrorAfterPartialEmission(t *testing.T) {
	boom := errors.New("boom")
	h := Stream(func(_ context.Context, _ core.Args, emit Emit) error {
		_ = emit(core.Emit("first", core.Untagged()))
		return boom
	})

	out, err := h.Collect(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, out, 1)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	h := OneShot(func(context.Context, core.Args) (*core.Emission, error) { panic("kaboom") })
	_, err := h.Collect(context.Background(), nil)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "kaboom", perr.Value)
}

func TestSource_StopsOnCancel(t *testing.T) {
	h := Source(func(ctx context.Context, emit Emit) error {
		for i := 0; ; i++ {
			if err := emit(core.Emit(i, core.To("tick"))); err != nil {
				return err
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	out, errc := h.Invoke(ctx, nil)
	for i := 0; i < 5; i++ {
		<-out
	}
	cancel()
	for range out {
	}
	assert.NoError(t, <-errc, "cancellation is a clean stop")
}

func TestBlocking_RunsOnPool(t *testing.T) {
	pool := NewPool(2)
	var running, peak atomic.Int32
	h := Blocking(func(core.Args) (*core.Emission, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return Returning("done", core.Untagged()), nil
	}, pool)

	results := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := h.Collect(context.Background(), nil)
			results <- err
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-results)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBlocking_WithoutPool(t *testing.T) {
	h := Blocking(func(core.Args) (*core.Emission, error) { return nil, nil }, nil)
	_, err := h.Collect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPool)

	bound := h.WithPool(NewPool(1))
	_, err = bound.Collect(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, h.Pool(), "WithPool does not mutate the original")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, OneShot(func(context.Context, core.Args) (*core.Emission, error) { return nil, nil }).Validate())
	assert.ErrorIs(t, OneShot(nil).Validate(), core.ErrInvalidDeclaration)

	var h *Handler
	assert.ErrorIs(t, h.Validate(), core.ErrInvalidDeclaration)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "blocking", KindBlocking.String())
	assert.Equal(t, "source", KindSource.String())
}
