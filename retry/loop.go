package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/metrics"
	"github.com/hupe1980/agentswarm/model"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAttempts bounds generation attempts per completion.
const DefaultMaxAttempts = 5

// GenerateFunc produces one candidate for prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// FromGenerator adapts a model.Generator. base supplies the sampling settings;
// its Prompt is replaced on every call.
func FromGenerator(g model.Generator, base model.Request) GenerateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		req := base
		req.Prompt = prompt
		return model.Text(ctx, g, req)
	}
}

// Options configures a Loop.
type Options struct {
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// Filters are evaluated concurrently after each attempt.
	Filters []Filter
	// Limiter, if set, throttles generation calls.
	Limiter *core.CallLimiter
	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
	// DisableMetrics turns off Prometheus instrumentation.
	DisableMetrics bool
}

// Loop is a reusable retry-validation loop. It is safe for concurrent use.
type Loop struct {
	generate    GenerateFunc
	filters     []Filter
	maxAttempts int
	limiter     *core.CallLimiter
	logger      logging.Logger
	metrics     bool
}

// New creates a loop around generate.
func New(generate GenerateFunc, optFns ...func(o *Options)) *Loop {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	logger := logging.OrNoOp(opts.Logger)
	if sl, ok := logger.(*logging.SwarmLogger); ok {
		logger = sl.WithComponent("retry")
	}

	return &Loop{
		generate:    generate,
		filters:     opts.Filters,
		maxAttempts: opts.MaxAttempts,
		limiter:     opts.Limiter,
		logger:      logger,
		metrics:     !opts.DisableMetrics,
	}
}

// MaxAttempts returns the attempt bound.
func (l *Loop) MaxAttempts() int { return l.maxAttempts }

// Complete generates text for prompt, retrying while a filter objects.
//
// The first unobjected candidate is returned. If every attempt is rejected
// the last candidate is returned with a nil error. If every attempt fails to
// generate, the error wraps core.ErrGenerationFailed and the last cause.
func (l *Loop) Complete(ctx context.Context, prompt string) (string, error) {
	var (
		last    string
		haveOne bool
		lastErr error
	)

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		candidate, err := l.generate(ctx, prompt)
		dur := time.Since(start)
		l.logCall(attempt, dur, err)

		if err != nil {
			lastErr = err
			l.observe("error", dur)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		last, haveOne = candidate, true

		rejectedBy := l.rejectedBy(ctx, candidate, prompt)
		if rejectedBy == "" {
			l.observe("accepted", dur)
			return candidate, nil
		}
		l.observe("rejected", dur)
		l.logger.Debug("candidate rejected", "attempt", attempt, "filter", rejectedBy)
	}

	if haveOne {
		l.logger.Info("retries exhausted; using last candidate", "attempts", l.maxAttempts)
		return last, nil
	}
	return "", fmt.Errorf("%w after %d attempts: %w", core.ErrGenerationFailed, l.maxAttempts, lastErr)
}

var errObjection = errors.New("filter objected")

type objection struct{ filter string }

func (o *objection) Error() string { return errObjection.Error() + ": " + o.filter }
func (o *objection) Unwrap() error { return errObjection }

// rejectedBy runs all filters concurrently and returns the name of the first
// one that objected, or "" if none did. Filter errors and panics are logged
// and count as no objection.
func (l *Loop) rejectedBy(ctx context.Context, candidate, prompt string) string {
	if len(l.filters) == 0 {
		return ""
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range l.filters {
		g.Go(func() error {
			reject, err := safeReject(gctx, f, candidate, prompt)
			if err != nil {
				if gctx.Err() == nil {
					l.logger.Warn("filter failed", "filter", f.Name(), "error", err)
				}
				return nil
			}
			if reject {
				return &objection{filter: f.Name()}
			}
			return nil
		})
	}

	var o *objection
	if err := g.Wait(); errors.As(err, &o) {
		return o.filter
	}
	return ""
}

func safeReject(ctx context.Context, f Filter, candidate, prompt string) (reject bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			reject, err = false, fmt.Errorf("filter panic: %v", r)
		}
	}()
	return f.Reject(ctx, candidate, prompt)
}

func (l *Loop) logCall(attempt int, dur time.Duration, err error) {
	if sl, ok := l.logger.(*logging.SwarmLogger); ok {
		sl.LogLLMCall("retry", attempt, dur, err)
		return
	}
	if err != nil {
		l.logger.Warn("generation failed", "attempt", attempt, "duration_ms", dur.Milliseconds(), "error", err)
	}
}

func (l *Loop) observe(outcome string, dur time.Duration) {
	if !l.metrics {
		return
	}
	metrics.GenerationAttemptsTotal.WithLabelValues(outcome).Inc()
	metrics.GenerationLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}
