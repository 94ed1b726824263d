package collect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct{ id int }

func env(payload any, dest core.Destination) core.Envelope {
	return core.NewEnvelope(core.ExternalProducer, payload, dest)
}

func TestSlot_Matches(t *testing.T) {
	price := SlotOf[float64]("money", core.OnTag("price"), nil)
	assert.True(t, price.Matches(env(2.5, core.To("price"))))
	assert.False(t, price.Matches(env(2.5, core.To("tip"))))
	assert.False(t, price.Matches(env("2.5", core.To("price"))))

	anything := AnySlot("x", core.AnySource())
	assert.True(t, anything.Matches(env(struct{}{}, core.ToStage(3))))

	type stringer interface{ String() string }
	iface := SlotOf[stringer]("s", core.AnySource(), nil)
	assert.True(t, iface.Matches(env(core.OnTag("a"), core.Untagged())))
	assert.False(t, iface.Matches(env(nil, core.Untagged())))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, core.ErrInvalidDeclaration)

	_, err = New([]Slot{AnySlot("a", core.AnySource()), AnySlot("a", core.AnySource())})
	assert.ErrorIs(t, err, core.ErrInvalidDeclaration)

	_, err = New([]Slot{AnySlot("a", core.AtStage(-1))})
	assert.ErrorIs(t, err, core.ErrInvalidDeclaration)
}

func TestCollector_SingleSlotFiresImmediately(t *testing.T) {
	c, err := New([]Slot{SlotOf[int]("n", core.AnySource(), nil)})
	require.NoError(t, err)

	f, out := c.Offer(context.Background(), 0, env(7, core.Untagged()))
	require.Equal(t, Fired, out)
	assert.Equal(t, 7, core.Arg[int](f.Args, "n"))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_GuardRejectsWithoutBuffering(t *testing.T) {
	c, err := New([]Slot{
		SlotOf[float64]("money", core.OnTag("price"), func(p float64) bool { return p > 0 }),
		SlotOf[string]("coupon", core.AnySource(), nil),
	})
	require.NoError(t, err)

	_, out := c.Offer(context.Background(), 0, env(-1.0, core.To("price")))
	assert.Equal(t, Rejected, out)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, uint64(1), c.Stats().Rejected)
}

func TestCollector_FIFOPairing(t *testing.T) {
	c, err := New([]Slot{
		SlotOf[float64]("money", core.OnTag("price"), nil),
		SlotOf[string]("coupon", core.AnySource(), nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, out := c.Offer(ctx, 0, env(1.0, core.To("price")))
	assert.Equal(t, Buffered, out)
	_, out = c.Offer(ctx, 0, env(2.0, core.To("price")))
	assert.Equal(t, Buffered, out)
	assert.Equal(t, map[string]int{"money": 2, "coupon": 0}, c.Snapshot())

	f, out := c.Offer(ctx, 1, env("FREE", core.Untagged()))
	require.Equal(t, Fired, out)
	assert.Equal(t, 1.0, core.Arg[float64](f.Args, "money"))
	assert.Equal(t, "FREE", core.Arg[string](f.Args, "coupon"))

	f, out = c.Offer(ctx, 1, env("HALF_PRICE", core.Untagged()))
	require.Equal(t, Fired, out)
	assert.Equal(t, 2.0, core.Arg[float64](f.Args, "money"))
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_StageSlotsCorrelateByIdentity(t *testing.T) {
	c, err := New([]Slot{
		SlotOf[*order]("a", core.AtStage(1), nil),
		SlotOf[*order]("b", core.AtStage(2), nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	x, y := &order{1}, &order{2}

	_, out := c.Offer(ctx, 0, env(x, core.ToStage(1)))
	assert.Equal(t, Buffered, out)
	_, out = c.Offer(ctx, 0, env(y, core.ToStage(1)))
	assert.Equal(t, Buffered, out)

	f, out := c.Offer(ctx, 1, env(y, core.ToStage(2)))
	require.Equal(t, Fired, out)
	assert.Same(t, y, f.Args["a"])
	assert.Same(t, y, f.Args["b"])
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, c.Snapshot())

	// A distinct but equal-looking value does not correlate.
	_, out = c.Offer(ctx, 1, env(&order{1}, core.ToStage(2)))
	assert.Equal(t, Buffered, out)

	f, out = c.Offer(ctx, 1, env(x, core.ToStage(2)))
	require.Equal(t, Fired, out)
	assert.Same(t, x, f.Args["a"])
}

func TestCollector_MixedIdentityAndFIFO(t *testing.T) {
	c, err := New([]Slot{
		SlotOf[*order]("a", core.AtStage(0), nil),
		SlotOf[*order]("b", core.AtStage(1), nil),
		SlotOf[string]("note", core.OnTag("note"), nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	x := &order{1}
	_, out := c.Offer(ctx, 0, env(x, core.ToStage(0)))
	assert.Equal(t, Buffered, out)
	_, out = c.Offer(ctx, 1, env(x, core.ToStage(1)))
	assert.Equal(t, Buffered, out, "waiting for the FIFO slot")

	f, out := c.Offer(ctx, 2, env("hi", core.To("note")))
	require.Equal(t, Fired, out)
	assert.Same(t, x, f.Args["a"])
	assert.Equal(t, "hi", f.Args["note"])
}

// Every published value is consumed at most once, and with equal counts on
// both sides everything is consumed.
func TestCollector_TwoSlotExactness(t *testing.T) {
	c, err := New([]Slot{
		SlotOf[int]("left", core.OnTag("l"), nil),
		SlotOf[int]("right", core.OnTag("r"), nil),
	})
	require.NoError(t, err)

	const n = 200
	var (
		mu    sync.Mutex
		left  = map[int]int{}
		right = map[int]int{}
		wg    sync.WaitGroup
	)
	offer := func(slot int, v int, dest core.Destination) {
		defer wg.Done()
		if f, out := c.Offer(context.Background(), slot, env(v, dest)); out == Fired {
			mu.Lock()
			left[core.Arg[int](f.Args, "left")]++
			right[core.Arg[int](f.Args, "right")]++
			mu.Unlock()
		}
	}
	for i := 0; i < n; i++ {
		wg.Add(2)
		go offer(0, i, core.To("l"))
		go offer(1, n+i, core.To("r"))
	}
	wg.Wait()

	assert.Len(t, left, n)
	assert.Len(t, right, n)
	for _, cnt := range left {
		assert.Equal(t, 1, cnt)
	}
	for _, cnt := range right {
		assert.Equal(t, 1, cnt)
	}
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, uint64(n), c.Stats().Fired)
}

func TestCollector_CapacityEvictsOldest(t *testing.T) {
	var evicted []Eviction
	c, err := New([]Slot{
		SlotOf[int]("a", core.AnySource(), nil),
		SlotOf[string]("b", core.AnySource(), nil),
	}, func(o *Options) {
		o.Capacity = 2
		o.OnEvict = func(e Eviction) { evicted = append(evicted, e) }
	})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, out := c.Offer(ctx, 0, env(i, core.Untagged()))
		assert.Equal(t, Buffered, out)
	}
	require.Len(t, evicted, 1)
	assert.Equal(t, 1, evicted[0].Envelope.Payload)
	assert.Equal(t, EvictOverflow, evicted[0].Reason)

	f, out := c.Offer(ctx, 1, env("x", core.Untagged()))
	require.Equal(t, Fired, out)
	assert.Equal(t, 2, f.Args["a"])
	assert.Equal(t, uint64(1), c.Stats().Evicted)
}

func TestCollector_TTLExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	var evicted []Eviction
	c, err := New([]Slot{
		SlotOf[int]("a", core.AnySource(), nil),
		SlotOf[string]("b", core.AnySource(), nil),
	}, func(o *Options) {
		o.TTL = time.Minute
		o.OnEvict = func(e Eviction) { evicted = append(evicted, e) }
		o.now = func() time.Time { return now }
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, out := c.Offer(ctx, 0, env(1, core.Untagged()))
	assert.Equal(t, Buffered, out)

	now = now.Add(2 * time.Minute)
	_, out = c.Offer(ctx, 1, env("late", core.Untagged()))
	assert.Equal(t, Buffered, out, "expired partner must not fire")
	require.Len(t, evicted, 1)
	assert.Equal(t, EvictExpired, evicted[0].Reason)
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, c.Snapshot())
}

func TestCollector_OfferAnyBindsOneSlot(t *testing.T) {
	ctx := context.Background()
	c, err := New([]Slot{
		SlotOf[int]("a", core.AnySource(), nil),
		SlotOf[int]("b", core.AnySource(), func(n int) bool { return n > 0 }),
	})
	require.NoError(t, err)
	both := []int{0, 1}

	slot, _, outcome := c.OfferAny(ctx, both, env(7, core.Untagged()))
	assert.Equal(t, Buffered, outcome, "one value never fills two slots")
	assert.Equal(t, 0, slot)
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, c.Snapshot())

	slot, _, outcome = c.OfferAny(ctx, both, env(-1, core.Untagged()))
	assert.Equal(t, Buffered, outcome, "b rejects, so the value falls back to a")
	assert.Equal(t, 0, slot)
	assert.Equal(t, map[string]int{"a": 2, "b": 0}, c.Snapshot())

	slot, f, outcome := c.OfferAny(ctx, both, env(8, core.Untagged()))
	require.Equal(t, Fired, outcome)
	assert.Equal(t, 1, slot, "the emptier slot is preferred")
	assert.Equal(t, 7, core.Arg[int](f.Args, "a"))
	assert.Equal(t, 8, core.Arg[int](f.Args, "b"))
	assert.NotEqual(t, f.Envelopes["a"].ID, f.Envelopes["b"].ID)

	_, _, outcome = c.OfferAny(ctx, []int{1}, env(-5, core.Untagged()))
	assert.Equal(t, Rejected, outcome)
}
