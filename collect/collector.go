package collect

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentswarm/activator"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// DefaultCapacity bounds the number of buffered entries per slot.
const DefaultCapacity = 1024

// EvictReason says why a buffered entry was dropped.
type EvictReason string

const (
	EvictOverflow EvictReason = "overflow"
	EvictExpired  EvictReason = "expired"
)

// Eviction describes one dropped entry.
type Eviction struct {
	Slot     string
	Envelope core.Envelope
	Reason   EvictReason
}

// Options configures a Collector.
type Options struct {
	// Capacity bounds each slot buffer. Defaults to DefaultCapacity.
	Capacity int
	// TTL expires entries older than the given duration. Zero disables expiry.
	TTL time.Duration
	// OnEvict is called, outside the collector lock, for every dropped entry.
	OnEvict func(Eviction)
	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger

	now func() time.Time
}

// Firing is one complete set of inputs consumed by a handler.
type Firing struct {
	ID        string
	Args      core.Args
	Envelopes map[string]core.Envelope
}

// Outcome is the result of an offer.
type Outcome int

const (
	// Rejected means the slot guard refused the payload.
	Rejected Outcome = iota
	// Buffered means the payload waits for partners.
	Buffered
	// Fired means the offer completed a set of inputs.
	Fired
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Buffered:
		return "buffered"
	case Fired:
		return "fired"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats are cumulative collector counters.
type Stats struct {
	Offered  uint64
	Rejected uint64
	Fired    uint64
	Evicted  uint64
}

type entry struct {
	env    core.Envelope
	key    any
	hasKey bool
	at     time.Time
}

// Collector is the join state of a single handler.
type Collector struct {
	slots  []Slot
	guards []*activator.Gate
	opts   Options

	// identity holds the indices of slots correlating by payload identity.
	// It is empty unless at least two stage slots are declared.
	identity []int
	fifo     []int

	mu      sync.Mutex
	pending [][]entry
	stats   Stats
}

// New creates a collector for the given slots.
func New(slots []Slot, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{
		Capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: collector needs at least one slot", core.ErrInvalidDeclaration)
	}

	c := &Collector{
		slots:   slots,
		guards:  make([]*activator.Gate, len(slots)),
		opts:    opts,
		pending: make([][]entry, len(slots)),
	}

	seen := make(map[string]struct{}, len(slots))
	var stages []int
	for i, s := range slots {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %q", core.ErrInvalidDeclaration, s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.Guard != nil {
			g, err := activator.New([]activator.Check{{Name: s.Name, Predicate: s.Guard, Mandatory: true}},
				func(o *activator.Options) { o.Logger = opts.Logger })
			if err != nil {
				return nil, err
			}
			c.guards[i] = g
		}
		if s.Selector.IsStage() {
			stages = append(stages, i)
		} else {
			c.fifo = append(c.fifo, i)
		}
	}

	if len(stages) >= 2 {
		c.identity = stages
	} else {
		c.fifo = append(c.fifo, stages...)
	}
	return c, nil
}

// Slots returns the declared slots.
func (c *Collector) Slots() []Slot { return c.slots }

// Offer delivers env to the slot at index slot. It returns the firing when the
// offer completed a set of inputs. Payloads rejected by the slot guard are
// discarded without being buffered.
func (c *Collector) Offer(ctx context.Context, slot int, env core.Envelope) (Firing, Outcome) {
	if slot < 0 || slot >= len(c.slots) {
		return Firing{}, Rejected
	}

	if g := c.guards[slot]; g != nil && !g.Admits(ctx, env.Payload) {
		c.mu.Lock()
		c.stats.Offered++
		c.stats.Rejected++
		c.mu.Unlock()
		c.opts.Logger.Debug("join guard rejected payload", "slot", c.slots[slot].Name, "envelope", env.ID)
		return Firing{}, Rejected
	}

	now := c.opts.now()
	key, hasKey := core.IdentityKey(env.Payload)

	c.mu.Lock()
	c.stats.Offered++

	if len(c.slots) == 1 {
		c.stats.Fired++
		c.mu.Unlock()
		return c.newFiring(map[int]core.Envelope{slot: env}), Fired
	}

	evicted := c.expire(now)
	if len(c.pending[slot]) >= c.opts.Capacity {
		old := c.pending[slot][0]
		c.pending[slot] = c.pending[slot][1:]
		evicted = append(evicted, Eviction{Slot: c.slots[slot].Name, Envelope: old.env, Reason: EvictOverflow})
	}
	c.pending[slot] = append(c.pending[slot], entry{env: env, key: key, hasKey: hasKey, at: now})
	c.stats.Evicted += uint64(len(evicted))

	consumed, ok := c.match(slot, key, hasKey)
	if ok {
		c.stats.Fired++
	}
	c.mu.Unlock()

	c.report(evicted)
	if !ok {
		return Firing{}, Buffered
	}
	return c.newFiring(consumed), Fired
}

// OfferAny binds env to exactly one of the candidate slots, so a value that
// matches several inputs of a handler is consumed at most once. Slots with
// fewer buffered entries are tried first, ties in declaration order; slots
// whose guard rejects the payload are skipped. It returns the slot env was
// bound to, or -1 with Rejected when every guard refused it.
func (c *Collector) OfferAny(ctx context.Context, candidates []int, env core.Envelope) (int, Firing, Outcome) {
	for _, slot := range c.byLoad(candidates) {
		f, outcome := c.Offer(ctx, slot, env)
		if outcome != Rejected {
			return slot, f, outcome
		}
	}
	return -1, Firing{}, Rejected
}

func (c *Collector) byLoad(candidates []int) []int {
	order := slices.Clone(candidates)
	if len(order) < 2 {
		return order
	}
	loads := make(map[int]int, len(order))
	c.mu.Lock()
	for _, i := range order {
		if i >= 0 && i < len(c.pending) {
			loads[i] = len(c.pending[i])
		}
	}
	c.mu.Unlock()
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(loads[a], loads[b]) })
	return order
}

// match finds a complete input set, removes it and returns the consumed
// envelopes by slot index. Callers hold c.mu.
func (c *Collector) match(offered int, key any, hasKey bool) (map[int]core.Envelope, bool) {
	for _, i := range c.fifo {
		if len(c.pending[i]) == 0 {
			return nil, false
		}
	}

	picks := make(map[int]int, len(c.slots))
	if len(c.identity) > 0 {
		var found bool
		if c.isIdentity(offered) {
			if !hasKey {
				return nil, false
			}
			found = c.pickIdentity(key, picks)
		} else {
			// A FIFO slot completed the set; pair it with the oldest
			// identity group that is already whole.
			for _, e := range c.pending[c.identity[0]] {
				if e.hasKey && c.pickIdentity(e.key, picks) {
					found = true
					break
				}
			}
		}
		if !found {
			return nil, false
		}
	}
	for _, i := range c.fifo {
		picks[i] = 0
	}

	consumed := make(map[int]core.Envelope, len(picks))
	for i, pos := range picks {
		consumed[i] = c.pending[i][pos].env
		c.pending[i] = append(c.pending[i][:pos:pos], c.pending[i][pos+1:]...)
	}
	return consumed, true
}

// pickIdentity records, per identity slot, the oldest entry keyed by key.
func (c *Collector) pickIdentity(key any, picks map[int]int) bool {
	for _, i := range c.identity {
		pos := -1
		for j, e := range c.pending[i] {
			if e.hasKey && e.key == key {
				pos = j
				break
			}
		}
		if pos < 0 {
			for _, k := range c.identity {
				delete(picks, k)
			}
			return false
		}
		picks[i] = pos
	}
	return true
}

func (c *Collector) isIdentity(slot int) bool {
	for _, i := range c.identity {
		if i == slot {
			return true
		}
	}
	return false
}

// expire drops entries older than the TTL. Callers hold c.mu.
func (c *Collector) expire(now time.Time) []Eviction {
	if c.opts.TTL <= 0 {
		return nil
	}
	var out []Eviction
	cutoff := now.Add(-c.opts.TTL)
	for i := range c.pending {
		n := 0
		for n < len(c.pending[i]) && c.pending[i][n].at.Before(cutoff) {
			out = append(out, Eviction{Slot: c.slots[i].Name, Envelope: c.pending[i][n].env, Reason: EvictExpired})
			n++
		}
		if n > 0 {
			c.pending[i] = c.pending[i][n:]
		}
	}
	return out
}

func (c *Collector) report(evicted []Eviction) {
	for _, ev := range evicted {
		c.opts.Logger.Warn("join entry evicted", "slot", ev.Slot, "envelope", ev.Envelope.ID, "reason", string(ev.Reason))
		if c.opts.OnEvict != nil {
			c.opts.OnEvict(ev)
		}
	}
}

func (c *Collector) newFiring(consumed map[int]core.Envelope) Firing {
	f := Firing{
		ID:        uuid.NewString(),
		Args:      make(core.Args, len(consumed)),
		Envelopes: make(map[string]core.Envelope, len(consumed)),
	}
	for i, env := range consumed {
		name := c.slots[i].Name
		f.Args[name] = env.Payload
		f.Envelopes[name] = env
	}
	return f
}

// Snapshot returns the number of buffered entries per slot name.
func (c *Collector) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.slots))
	for i, s := range c.slots {
		out[s.Name] = len(c.pending[i])
	}
	return out
}

// Pending returns the total number of buffered entries.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.pending {
		n += len(p)
	}
	return n
}

// Stats returns a copy of the collector counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
