package handler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hupe1980/agentswarm/core"
)

// Kind identifies the shape of a handler body.
type Kind int

const (
	KindOneShot Kind = iota
	KindStream
	KindBlocking
	KindSource
)

func (k Kind) String() string {
	switch k {
	case KindOneShot:
		return "oneshot"
	case KindStream:
		return "stream"
	case KindBlocking:
		return "blocking"
	case KindSource:
		return "source"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Emit publishes one value from a streaming or source body. It returns
// ctx.Err() once the invocation context is cancelled; bodies should stop
// producing when Emit fails.
type Emit func(e core.Emission) error

type (
	OneShotFunc  func(ctx context.Context, args core.Args) (*core.Emission, error)
	StreamFunc   func(ctx context.Context, args core.Args, emit Emit) error
	BlockingFunc func(args core.Args) (*core.Emission, error)
	SourceFunc   func(ctx context.Context, emit Emit) error
)

// ErrNoPool is returned when a blocking handler is invoked without a pool.
var ErrNoPool = errors.New("handler: blocking body requires a pool")

// PanicError wraps a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// Handler is an immutable handler body of a fixed Kind.
type Handler struct {
	kind     Kind
	oneShot  OneShotFunc
	stream   StreamFunc
	blocking BlockingFunc
	source   SourceFunc
	pool     *Pool
}

// OneShot builds a handler returning at most one emission. Returning a nil
// emission publishes nothing.
func OneShot(fn OneShotFunc) *Handler { return &Handler{kind: KindOneShot, oneShot: fn} }

// Stream builds a handler that may emit many values.
func Stream(fn StreamFunc) *Handler { return &Handler{kind: KindStream, stream: fn} }

// Blocking builds a handler whose body runs on pool. A nil pool is replaced
// by the engine's shared pool at registration.
func Blocking(fn BlockingFunc, pool *Pool) *Handler {
	return &Handler{kind: KindBlocking, blocking: fn, pool: pool}
}

// Source builds an input-less producer.
func Source(fn SourceFunc) *Handler { return &Handler{kind: KindSource, source: fn} }

// Returning builds an emission for use as a OneShot or Blocking result.
func Returning(payload any, dest core.Destination) *core.Emission {
	e := core.Emit(payload, dest)
	return &e
}

// Kind returns the body shape.
func (h *Handler) Kind() Kind { return h.kind }

// Pool returns the pool blocking bodies run on.
func (h *Handler) Pool() *Pool { return h.pool }

// WithPool returns a copy of h bound to pool if h is blocking and has none.
func (h *Handler) WithPool(pool *Pool) *Handler {
	if h.kind != KindBlocking || h.pool != nil {
		return h
	}
	cp := *h
	cp.pool = pool
	return &cp
}

// Validate reports whether the handler has a body for its kind.
func (h *Handler) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", core.ErrInvalidDeclaration)
	}
	ok := false
	switch h.kind {
	case KindOneShot:
		ok = h.oneShot != nil
	case KindStream:
		ok = h.stream != nil
	case KindBlocking:
		ok = h.blocking != nil
	case KindSource:
		ok = h.source != nil
	}
	if !ok {
		return fmt.Errorf("%w: %s handler without body", core.ErrInvalidDeclaration, h.kind)
	}
	return nil
}

// Invoke runs the body with args. Emissions are delivered on the first
// channel as they are produced; the channel is closed when the body returns.
// The error channel receives at most one error and is closed afterwards.
// Callers must drain the emission channel.
func (h *Handler) Invoke(ctx context.Context, args core.Args) (<-chan core.Emission, <-chan error) {
	out := make(chan core.Emission)
	errc := make(chan error, 1)

	emit := func(e core.Emission) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- e:
			return nil
		}
	}

	go func() {
		defer close(errc)
		defer close(out)

		if err := h.run(ctx, args, emit); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

func (h *Handler) run(ctx context.Context, args core.Args, emit Emit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	switch h.kind {
	case KindOneShot:
		e, err := h.oneShot(ctx, args)
		if err != nil || e == nil {
			return err
		}
		return emit(*e)
	case KindStream:
		return h.stream(ctx, args, emit)
	case KindSource:
		err := h.source(ctx, emit)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	case KindBlocking:
		if h.pool == nil {
			return ErrNoPool
		}
		var e *core.Emission
		if err := h.pool.Do(ctx, func() error {
			var ferr error
			e, ferr = h.blocking(args)
			return ferr
		}); err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		return emit(*e)
	default:
		return fmt.Errorf("unknown handler kind %s", h.kind)
	}
}

// Collect invokes h and gathers every emission. It is mainly useful in tests
// and for driving handlers outside of an engine.
func (h *Handler) Collect(ctx context.Context, args core.Args) ([]core.Emission, error) {
	out, errc := h.Invoke(ctx, args)
	var emitted []core.Emission
	for e := range out {
		emitted = append(emitted, e)
	}
	return emitted, <-errc
}
