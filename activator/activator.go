package activator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentswarm/logging"
	"golang.org/x/sync/errgroup"
)

// Predicate is an admissibility test over a candidate payload. Predicates
// must not mutate the payload.
type Predicate func(ctx context.Context, payload any) (bool, error)

// Func adapts a plain typed predicate. Payloads not of type T are rejected.
func Func[T any](fn func(T) bool) Predicate {
	return func(_ context.Context, payload any) (bool, error) {
		v, ok := payload.(T)
		if !ok {
			return false, nil
		}
		return fn(v), nil
	}
}

// FuncCtx adapts a suspending typed predicate. Payloads not of type T are rejected.
func FuncCtx[T any](fn func(context.Context, T) (bool, error)) Predicate {
	return func(ctx context.Context, payload any) (bool, error) {
		v, ok := payload.(T)
		if !ok {
			return false, nil
		}
		return fn(ctx, v)
	}
}

// Not negates p. Errors are passed through.
func Not(p Predicate) Predicate {
	return func(ctx context.Context, payload any) (bool, error) {
		ok, err := p(ctx, payload)
		return !ok, err
	}
}

// Check is a named predicate with its combination mode.
type Check struct {
	Name      string
	Predicate Predicate
	Mandatory bool
}

// ErrNilPredicate is returned when a check has no predicate.
var ErrNilPredicate = errors.New("activator: check has no predicate")

// Options configures a Gate.
type Options struct {
	// Logger receives predicate failures and decisions at debug level.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Gate is the mandatory(AND) + optional(OR) predicate combinator. The zero
// value is not usable; construct with New or Once. A nil *Gate admits everything.
type Gate struct {
	mu        sync.RWMutex
	mandatory []Check
	optional  []Check
	logger    logging.Logger
}

// New creates a gate seeded with the given checks.
func New(checks []Check, optFns ...func(o *Options)) (*Gate, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	g := &Gate{logger: logging.OrNoOp(opts.Logger)}
	for _, c := range checks {
		if err := g.AddCheck(c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// MustNew is like New but panics on invalid checks. Intended for static
// pipeline definitions.
func MustNew(checks ...Check) *Gate {
	g, err := New(checks)
	if err != nil {
		panic(err)
	}
	return g
}

// Once builds a single-use gate holding one check.
func Once(name string, p Predicate, mandatory bool) *Gate {
	return MustNew(Check{Name: name, Predicate: p, Mandatory: mandatory})
}

// AddCheck appends a check. Gates are built at pipeline-build time; adding
// checks while the gate is evaluated concurrently is safe but the change only
// affects later decisions.
func (g *Gate) AddCheck(c Check) error {
	if c.Predicate == nil {
		return ErrNilPredicate
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("check-%d", g.count())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c.Mandatory {
		g.mandatory = append(g.mandatory, c)
	} else {
		g.optional = append(g.optional, c)
	}
	return nil
}

// Require adds a mandatory check and returns g for chaining.
func (g *Gate) Require(name string, p Predicate) *Gate {
	if err := g.AddCheck(Check{Name: name, Predicate: p, Mandatory: true}); err != nil {
		panic(err)
	}
	return g
}

// Allow adds an optional check and returns g for chaining.
func (g *Gate) Allow(name string, p Predicate) *Gate {
	if err := g.AddCheck(Check{Name: name, Predicate: p}); err != nil {
		panic(err)
	}
	return g
}

// SetLogger replaces the gate's logger.
func (g *Gate) SetLogger(l logging.Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logger = logging.OrNoOp(l)
}

// Len returns the number of mandatory and optional checks.
func (g *Gate) Len() (mandatory, optional int) {
	if g == nil {
		return 0, 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.mandatory), len(g.optional)
}

func (g *Gate) count() int {
	m, o := g.Len()
	return m + o
}

// Copy returns an independent gate with the same checks. Later changes to
// either gate do not affect the other.
func (g *Gate) Copy() *Gate {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return &Gate{
		mandatory: slices.Clone(g.mandatory),
		optional:  slices.Clone(g.optional),
		logger:    g.logger,
	}
}

// Decision describes the outcome of one admission evaluation.
type Decision struct {
	Admitted bool
	// FailedCheck names the mandatory check that rejected the payload.
	FailedCheck string
	// NoOptionalMatched is set when optional checks exist and none passed.
	NoOptionalMatched bool
	// Errors counts predicates that errored or panicked.
	Errors int
}

// Admits reports whether payload passes the gate.
func (g *Gate) Admits(ctx context.Context, payload any) bool {
	return g.Evaluate(ctx, payload).Admitted
}

type outcome struct {
	check Check
	ok    bool
	err   error
}

// Evaluate runs all checks concurrently and combines the results.
func (g *Gate) Evaluate(ctx context.Context, payload any) Decision {
	if g == nil {
		return Decision{Admitted: true}
	}

	g.mu.RLock()
	checks := make([]Check, 0, len(g.mandatory)+len(g.optional))
	checks = append(checks, g.mandatory...)
	checks = append(checks, g.optional...)
	nMandatory, nOptional := len(g.mandatory), len(g.optional)
	logger := g.logger
	g.mu.RUnlock()

	if len(checks) == 0 {
		return Decision{Admitted: true}
	}

	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(checks))
	var eg errgroup.Group
	for _, c := range checks {
		eg.Go(func() error {
			ok, err := call(evalCtx, c.Predicate, payload)
			results <- outcome{check: c, ok: ok, err: err}
			return nil
		})
	}
	go func() {
		_ = eg.Wait()
		close(results)
	}()

	var (
		d             Decision
		mandatoryLeft = nMandatory
		optionalLeft  = nOptional
		optionalOK    = nOptional == 0
	)
	for r := range results {
		if r.err != nil {
			d.Errors++
			logger.Warn("activator check failed", "check", r.check.Name, "mandatory", r.check.Mandatory, "error", r.err)
			r.ok = false
		}

		if r.check.Mandatory {
			if !r.ok {
				d.FailedCheck = r.check.Name
				logger.Debug("activator rejected payload", "check", r.check.Name)
				return d
			}
			mandatoryLeft--
		} else {
			optionalLeft--
			if r.ok {
				optionalOK = true
			}
		}

		if mandatoryLeft == 0 && optionalOK {
			d.Admitted = true
			return d
		}
		if optionalLeft == 0 && !optionalOK {
			d.NoOptionalMatched = true
			logger.Debug("activator rejected payload", "reason", "no optional check matched")
			return d
		}
	}

	d.Admitted = mandatoryLeft == 0 && optionalOK
	return d
}

// call invokes p converting a panic into an error.
func call(ctx context.Context, p Predicate, payload any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return p(ctx, payload)
}
