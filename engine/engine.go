package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentswarm/collect"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/handler"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// TracerName is the instrumentation scope of firing spans.
const TracerName = "github.com/hupe1980/agentswarm/engine"

// Config defines tuning parameters for the swarm's operational behavior.
//
// This configuration focuses on runtime aspects:
//   - Concurrency: how many firings of one handler may run at once
//   - Offloading: how many blocking bodies may run at once
//   - Join state: how much unmatched input a handler may buffer
//   - Shutdown: how long a bounded run waits for in-flight work
//
// Example:
//
//	cfg := Config{
//	    MaxConcurrency:   8,
//	    BlockingPoolSize: 4,
//	    JoinCapacity:     256,
//	    DrainTimeout:     10 * time.Second,
//	}
type Config struct {
	// MaxConcurrency limits simultaneous firings per handler. Declarations
	// may override it. Zero or less means unlimited.
	MaxConcurrency int

	// BlockingPoolSize bounds concurrently running blocking bodies across
	// the whole swarm. Zero uses GOMAXPROCS.
	BlockingPoolSize int

	// JoinCapacity bounds the buffered entries per input slot. The oldest
	// entry is evicted when a slot is full.
	JoinCapacity int

	// JoinTTL expires buffered join entries. Zero disables expiry.
	JoinTTL time.Duration

	// DrainTimeout bounds how long Run waits for in-flight work after its
	// context is cancelled. Zero waits indefinitely.
	DrainTimeout time.Duration
}

// DefaultConfig provides default configuration values.
//
// Configuration values:
//   - MaxConcurrency: 16
//   - BlockingPoolSize: 0 (GOMAXPROCS)
//   - JoinCapacity: collect.DefaultCapacity
//   - JoinTTL: 0 (disabled)
//   - DrainTimeout: 30s
var DefaultConfig = Config{
	MaxConcurrency:   16,
	BlockingPoolSize: 0,
	JoinCapacity:     collect.DefaultCapacity,
	JoinTTL:          0,
	DrainTimeout:     30 * time.Second,
}

// Options configures a Swarm using the functional options pattern.
//
// Example:
//
//	swarm := engine.New(func(o *engine.Options) {
//	    o.Config.DrainTimeout = 5 * time.Second
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Hooks receives lifecycle events. A fresh manager is created if nil.
	Hooks *HookManager

	// Tracer creates firing spans. Defaults to the global OpenTelemetry
	// tracer, which is a no-op unless a provider is installed.
	Tracer trace.Tracer

	// Pool runs blocking handler bodies that were declared without their
	// own pool. Created from Config.BlockingPoolSize if nil.
	Pool *handler.Pool

	// DisableMetrics turns off Prometheus instrumentation.
	DisableMetrics bool
}

// Swarm is the bus, router and run loop that connects handlers.
//
// Producers publish values to a destination (untagged, a tag or a stage).
// Every handler whose input slots match the destination and the value type
// receives its own copy of the envelope in a private, unbounded FIFO
// mailbox; publishing therefore never blocks. A dedicated dispatcher
// goroutine per handler drains the mailbox in order:
//
//  1. the input gate decides whether the payload is admissible
//  2. admissible payloads are offered to the handler's join state
//  3. a completed join fires the handler on its own goroutine, bounded by
//     the handler's concurrency limit
//  4. emissions pass the output gate and are published again with the
//     handler as producer; NextStage destinations resolve to the handler's
//     stage plus one
//
// Concurrency Model:
//   - Handler table is built before Start and frozen afterwards
//   - Publication takes a read lock on the routing table only
//   - Per handler FIFO delivery, concurrent firings
//   - Blocking bodies run on a shared bounded pool
//
// Error Handling:
//   - Gate predicates that fail or panic count as not admissible
//   - Handler failures are contained to the firing: they are logged,
//     counted, reported to OnError hooks, and nothing the firing produced is
//     published
//
// Example Usage:
//
//	swarm := engine.New(func(o *engine.Options) { o.Logger = logger })
//	swarm.Register(sourceDecl)
//	swarm.Register(transformDecl)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := swarm.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Swarm struct {
	config  Config
	logger  logging.Logger
	hooks   *HookManager
	tracer  trace.Tracer
	pool    *handler.Pool
	metrics bool
	runID   string

	// Handler registry and routing - protected by mu, frozen after Start.
	mu      sync.RWMutex
	nodes   map[core.HandlerID]*node
	order   []core.HandlerID
	byKey   map[core.Selector][]route
	anyKey  []route
	started bool

	// Runtime state.
	work       *tracker
	workCtx    context.Context
	cancelWork context.CancelFunc
	cancelSrc  context.CancelFunc
	sources    sync.WaitGroup
	loops      sync.WaitGroup
	firings    sync.WaitGroup
	stopped    atomic.Bool
	stopOnce   sync.Once
	done       chan struct{}
}

// route connects a selector to one slot of one handler.
type route struct {
	node *node
	slot int
}

// node is the runtime state of a registered handler.
type node struct {
	decl      Declaration
	id        core.HandlerID
	stage     int
	collector *collect.Collector
	mailbox   *mailbox
	sem       *semaphore.Weighted
	logger    logging.Logger
	stats     nodeStats
}

type nodeStats struct {
	delivered atomic.Uint64
	rejected  atomic.Uint64
	fired     atomic.Uint64
	failed    atomic.Uint64
	emitted   atomic.Uint64
	dropped   atomic.Uint64
	evicted   atomic.Uint64
}

// New creates a Swarm with sensible defaults and optional configuration.
//
// The returned swarm accepts registrations until Start is called. It is safe
// for concurrent use; all public methods synchronize internally.
//
// Examples:
//
//	// All defaults
//	swarm := engine.New()
//
//	// Custom configuration
//	swarm := engine.New(func(o *engine.Options) {
//	    o.Config.MaxConcurrency = 4
//	    o.Config.JoinTTL = time.Minute
//	})
func New(optFns ...func(o *Options)) *Swarm {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	runID := uuid.NewString()

	logger := logging.OrNoOp(opts.Logger)
	if sl, ok := logger.(*logging.SwarmLogger); ok {
		logger = sl.WithComponent("engine").WithRun(runID)
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookManager()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}
	if opts.Pool == nil {
		opts.Pool = handler.NewPool(opts.Config.BlockingPoolSize)
	}

	workCtx, cancelWork := context.WithCancel(context.Background())

	return &Swarm{
		config:     opts.Config,
		logger:     logger,
		hooks:      opts.Hooks,
		tracer:     opts.Tracer,
		pool:       opts.Pool,
		metrics:    !opts.DisableMetrics,
		runID:      runID,
		nodes:      make(map[core.HandlerID]*node),
		byKey:      make(map[core.Selector][]route),
		work:       newTracker(),
		workCtx:    workCtx,
		cancelWork: cancelWork,
		done:       make(chan struct{}),
	}
}

// RunID identifies this swarm instance in logs.
func (s *Swarm) RunID() string { return s.runID }

// Hooks returns the hook manager.
func (s *Swarm) Hooks() *HookManager { return s.hooks }

// AddHook registers a lifecycle hook. Hooks may be added at any time.
func (s *Swarm) AddHook(h Hook) { s.hooks.Register(h) }

// Register validates decl and adds it to the handler table.
//
// Registration fails with core.ErrDuplicateHandler if the name is taken,
// core.ErrFrozen once the swarm has started, and core.ErrInvalidDeclaration
// for malformed declarations.
func (s *Swarm) Register(decl Declaration) (core.HandlerID, error) {
	decl, err := decl.normalize()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return "", fmt.Errorf("register %s: %w", decl.Name, core.ErrFrozen)
	}
	id := decl.ID()
	if _, exists := s.nodes[id]; exists {
		return "", fmt.Errorf("register %s: %w", decl.Name, core.ErrDuplicateHandler)
	}

	n := &node{
		decl:    decl,
		id:      id,
		stage:   decl.stage(),
		mailbox: newMailbox(),
		logger:  handlerLogger(s.logger, decl.Name),
	}
	n.decl.Handler = decl.Handler.WithPool(s.pool)

	if len(decl.Inputs) > 0 {
		c, err := collect.New(decl.Inputs, func(o *collect.Options) {
			o.Capacity = s.config.JoinCapacity
			o.TTL = s.config.JoinTTL
			o.Logger = n.logger
			o.OnEvict = func(ev collect.Eviction) { s.onEvict(n, ev) }
		})
		if err != nil {
			return "", fmt.Errorf("register %s: %w", decl.Name, err)
		}
		n.collector = c
	}

	limit := decl.MaxConcurrency
	if limit == 0 {
		limit = s.config.MaxConcurrency
	}
	if limit > 0 {
		n.sem = semaphore.NewWeighted(int64(limit))
	}

	for i, slot := range decl.Inputs {
		r := route{node: n, slot: i}
		if slot.Selector.IsNone() {
			s.anyKey = append(s.anyKey, r)
		} else {
			s.byKey[slot.Selector] = append(s.byKey[slot.Selector], r)
		}
	}

	s.nodes[id] = n
	s.order = append(s.order, id)

	s.logger.Debug("handler registered", "handler", decl.Name, "kind", decl.Handler.Kind().String(), "role", decl.Role.String(), "inputs", len(decl.Inputs))
	return id, nil
}

// MustRegister is like Register but panics on error. Intended for static
// pipeline definitions.
func (s *Swarm) MustRegister(decl Declaration) core.HandlerID {
	id, err := s.Register(decl)
	if err != nil {
		panic(err)
	}
	return id
}

func handlerLogger(l logging.Logger, name string) logging.Logger {
	if sl, ok := l.(*logging.SwarmLogger); ok {
		return sl.WithHandler(name)
	}
	return l
}

// Publish injects a value from outside the swarm. It never blocks.
func (s *Swarm) Publish(payload any, dest core.Destination) error {
	return s.PublishFrom(core.ExternalProducer, payload, dest)
}

// PublishFrom publishes on behalf of producer. NextStage destinations are
// resolved against the producer's stage; external producers have none.
func (s *Swarm) PublishFrom(producer core.HandlerID, payload any, dest core.Destination) error {
	stage := -1
	if producer != core.ExternalProducer {
		s.mu.RLock()
		if n, ok := s.nodes[producer]; ok {
			stage = n.stage
		}
		s.mu.RUnlock()
	}
	resolved, err := dest.Resolve(stage)
	if err != nil {
		return fmt.Errorf("publish from %s: %w", producer, err)
	}
	_, err = s.publish(producer, payload, resolved)
	return err
}

// publish routes one envelope to every matching handler mailbox and returns
// the number of recipients.
func (s *Swarm) publish(producer core.HandlerID, payload any, dest core.Destination) (int, error) {
	if s.stopped.Load() {
		return 0, core.ErrStopped
	}

	env := core.NewEnvelope(producer, payload, dest)
	deliveries := s.route(env)

	if s.metrics {
		metrics.PublishedTotal.WithLabelValues(string(producer)).Inc()
	}
	if len(deliveries) == 0 {
		s.logger.Debug("envelope has no subscribers", "envelope", env.ID, "producer", string(producer), "dest", dest.String())
		return 0, nil
	}

	s.work.add(len(deliveries))
	recipients := 0
	for n, slots := range deliveries {
		if !n.mailbox.push(delivery{env: env, slots: slots}) {
			s.work.done(1)
			continue
		}
		recipients++
		n.stats.delivered.Add(1)
		if s.metrics {
			metrics.DeliveredTotal.WithLabelValues(string(n.id)).Inc()
			metrics.MailboxDepth.WithLabelValues(string(n.id)).Inc()
		}
	}
	return recipients, nil
}

// route resolves the handler slots an envelope is delivered to.
func (s *Swarm) route(env core.Envelope) map[*node][]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[*node][]int)
	add := func(routes []route) {
		for _, r := range routes {
			slot := r.node.decl.Inputs[r.slot]
			if slot.Matches(env) {
				out[r.node] = append(out[r.node], r.slot)
			}
		}
	}
	if !env.Dest.IsUntagged() {
		add(s.byKey[env.Dest.Key()])
	}
	add(s.anyKey)
	return out
}

// Start freezes the handler table, starts one dispatcher per handler and
// launches every source under ctx. Sources stop when ctx is cancelled;
// dispatchers keep running until Stop.
func (s *Swarm) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("swarm already started")
	}
	if s.stopped.Load() {
		s.mu.Unlock()
		return core.ErrStopped
	}
	s.started = true
	nodes := make([]*node, 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, s.nodes[id])
	}
	srcCtx, cancel := context.WithCancel(ctx)
	s.cancelSrc = cancel
	s.mu.Unlock()

	for _, n := range nodes {
		if n.decl.Role == RoleSource {
			s.sources.Add(1)
			go s.runSource(srcCtx, n)
			continue
		}
		s.loops.Add(1)
		go s.dispatch(n)
	}

	s.logger.Info("swarm started", "handlers", len(nodes))
	return nil
}

// Run starts the swarm, blocks until ctx is done and then drains: sources
// stop, in-flight deliveries and firings complete (bounded by DrainTimeout)
// and the swarm is stopped.
func (s *Swarm) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.done:
		return core.ErrStopped
	}
	return s.Shutdown()
}

// RunFor runs the swarm for at most d and then drains.
func (s *Swarm) RunFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Run(ctx)
}

// Shutdown stops the sources, waits for in-flight work up to DrainTimeout
// and stops the swarm. It returns context.DeadlineExceeded if work was still
// pending when the timeout elapsed.
func (s *Swarm) Shutdown() error {
	s.stopSources()
	s.sources.Wait()

	ctx := context.Background()
	if s.config.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.DrainTimeout)
		defer cancel()
	}

	err := s.Drain(ctx)
	if err != nil {
		s.logger.Warn("drain incomplete", "pending", s.work.count(), "error", err)
	}
	s.Stop()
	return err
}

// Drain blocks until no delivery is queued and no firing is running, or ctx
// is done. Values published by sources or external producers while draining
// extend the wait.
func (s *Swarm) Drain(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	err := s.work.wait(waitCtx)
	if err != nil && ctx.Err() == nil {
		return core.ErrStopped
	}
	return err
}

// Stop tears the swarm down immediately: sources are cancelled, queued
// deliveries are discarded and running firings see a cancelled context.
// Stop waits for dispatchers and firings to return. It is idempotent.
func (s *Swarm) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.stopSources()
		s.cancelWork()

		s.mu.RLock()
		nodes := make([]*node, 0, len(s.nodes))
		for _, n := range s.nodes {
			nodes = append(nodes, n)
		}
		s.mu.RUnlock()

		for _, n := range nodes {
			if dropped := n.mailbox.close(); dropped > 0 {
				n.stats.dropped.Add(uint64(dropped))
				s.work.done(dropped)
				s.logger.Warn("discarded queued deliveries", "handler", string(n.id), "count", dropped)
			}
			if s.metrics {
				metrics.MailboxDepth.WithLabelValues(string(n.id)).Set(0)
			}
		}

		s.sources.Wait()
		s.loops.Wait()
		s.firings.Wait()
		close(s.done)
		s.logger.Info("swarm stopped")
	})
}

func (s *Swarm) stopSources() {
	s.mu.RLock()
	cancel := s.cancelSrc
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once Stop has completed.
func (s *Swarm) Done() <-chan struct{} { return s.done }

// runSource drives a source body until ctx is cancelled or the body returns.
func (s *Swarm) runSource(ctx context.Context, n *node) {
	defer s.sources.Done()

	n.logger.Debug("source started")
	out, errc := n.decl.Handler.Invoke(ctx, nil)
	for e := range out {
		s.emit(n, e)
	}
	if err := <-errc; err != nil {
		n.stats.failed.Add(1)
		n.logger.Error("source failed", "error", err)
		_ = s.hooks.Execute(s.workCtx, &HookContext{Type: HookOnError, Handler: n.id, Err: err})
		return
	}
	n.logger.Debug("source finished")
}

// dispatch drains the mailbox of n in FIFO order.
func (s *Swarm) dispatch(n *node) {
	defer s.loops.Done()

	for {
		d, ok := n.mailbox.pop()
		if !ok {
			return
		}
		if s.metrics {
			metrics.MailboxDepth.WithLabelValues(string(n.id)).Dec()
		}
		s.deliver(n, d)
		s.work.done(1)
	}
}

// deliver runs admission and join for one delivery and spawns the resulting
// firing. A delivery is bound to a single slot even when it matches several.
func (s *Swarm) deliver(n *node, d delivery) {
	ctx := s.workCtx

	if decision := n.decl.Gate.Evaluate(ctx, d.env.Payload); !decision.Admitted {
		reason := "no optional check matched"
		if decision.FailedCheck != "" {
			reason = "check " + decision.FailedCheck + " failed"
		}
		s.reject(n, d.env, "gate", reason)
		return
	}

	slot, firing, outcome := n.collector.OfferAny(ctx, d.slots, d.env)
	switch outcome {
	case collect.Rejected:
		s.reject(n, d.env, "guard", "no slot guard admitted the payload")
		return
	case collect.Buffered:
		n.logger.Debug("payload buffered", "envelope", d.env.ID, "slot", n.decl.Inputs[slot].Name)
		return
	}

	if n.sem != nil {
		if err := n.sem.Acquire(ctx, 1); err != nil {
			n.logger.Warn("firing abandoned", "firing", firing.ID, "error", err)
			return
		}
	}
	s.work.add(1)
	s.firings.Add(1)
	go func() {
		defer s.firings.Done()
		defer s.work.done(1)
		if n.sem != nil {
			defer n.sem.Release(1)
		}
		s.fire(n, firing)
	}()
}

func (s *Swarm) reject(n *node, env core.Envelope, stage, reason string) {
	n.stats.rejected.Add(1)
	if s.metrics {
		metrics.RejectedTotal.WithLabelValues(string(n.id), stage).Inc()
	}
	n.logger.Debug("payload rejected", "envelope", env.ID, "stage", stage, "reason", reason)
	if err := s.hooks.Execute(s.workCtx, &HookContext{Type: HookOnReject, Handler: n.id, Envelope: &env, Reason: reason}); err != nil {
		n.logger.Warn("reject hook failed", "error", err)
	}
}

func (s *Swarm) onEvict(n *node, ev collect.Eviction) {
	n.stats.evicted.Add(1)
	if s.metrics {
		metrics.EvictedTotal.WithLabelValues(string(n.id), string(ev.Reason)).Inc()
	}
	env := ev.Envelope
	if err := s.hooks.Execute(s.workCtx, &HookContext{Type: HookOnEvict, Handler: n.id, Envelope: &env, Reason: string(ev.Reason)}); err != nil {
		n.logger.Warn("evict hook failed", "error", err)
	}
}

// fire invokes the handler for one complete set of inputs and publishes its
// emissions as they arrive.
func (s *Swarm) fire(n *node, f collect.Firing) {
	ctx, span := s.tracer.Start(s.workCtx, "swarm.fire "+n.decl.Name,
		trace.WithAttributes(
			attribute.String("swarm.handler", n.decl.Name),
			attribute.String("swarm.firing_id", f.ID),
			attribute.String("swarm.kind", n.decl.Handler.Kind().String()),
			attribute.String("swarm.run_id", s.runID),
		),
	)
	defer span.End()

	hc := &HookContext{Type: HookBeforeFire, Handler: n.id, FiringID: f.ID, Args: f.Args}
	if err := s.hooks.Execute(ctx, hc); err != nil {
		n.logger.Info("firing vetoed by hook", "firing", f.ID, "error", err)
		span.SetStatus(codes.Error, "vetoed")
		return
	}

	if s.metrics {
		metrics.InFlight.Inc()
		defer metrics.InFlight.Dec()
	}

	// Streams publish each value as it is produced. OneShot and Blocking
	// bodies emit only after they returned without error, so a failed
	// invocation of those kinds publishes nothing.
	start := time.Now()
	published := 0
	out, errc := n.decl.Handler.Invoke(ctx, f.Args)
	for e := range out {
		if s.emit(n, e) {
			published++
		}
	}
	err := <-errc
	dur := time.Since(start)

	n.stats.fired.Add(1)
	if s.metrics {
		metrics.FiringDuration.WithLabelValues(string(n.id)).Observe(dur.Seconds())
	}

	if err != nil {
		n.stats.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.metrics {
			metrics.FiringsTotal.WithLabelValues(string(n.id), "error").Inc()
		}
		if herr := s.hooks.Execute(ctx, &HookContext{Type: HookOnError, Handler: n.id, FiringID: f.ID, Args: f.Args, Duration: dur, Err: err}); herr != nil {
			n.logger.Warn("error hook failed", "error", herr)
		}
	} else if s.metrics {
		metrics.FiringsTotal.WithLabelValues(string(n.id), "ok").Inc()
	}

	span.SetAttributes(attribute.Int("swarm.emitted", published))
	logFiring(n.logger, n.decl.Name, f.ID, published, dur, err)

	hc = &HookContext{Type: HookAfterFire, Handler: n.id, FiringID: f.ID, Args: f.Args, Emitted: published, Duration: dur, Err: err}
	if herr := s.hooks.Execute(ctx, hc); herr != nil {
		n.logger.Warn("after-fire hook failed", "error", herr)
	}
}

// emit applies the output gate and publishes e on behalf of n.
func (s *Swarm) emit(n *node, e core.Emission) bool {
	if n.decl.Role == RoleSink {
		n.logger.Warn("sink emitted a value; dropping it", "dest", e.Dest.String())
		return false
	}
	if !n.decl.OutputGate.Admits(s.workCtx, e.Payload) {
		n.logger.Debug("emission rejected by output gate", "dest", e.Dest.String())
		return false
	}
	dest, err := e.Dest.Resolve(n.stage)
	if err != nil {
		n.logger.Error("cannot resolve destination", "dest", e.Dest.String(), "error", err)
		return false
	}
	if _, err := s.publish(n.id, e.Payload, dest); err != nil {
		n.logger.Warn("publish failed", "dest", dest.String(), "error", err)
		return false
	}
	n.stats.emitted.Add(1)
	return true
}

func logFiring(l logging.Logger, name, firingID string, emitted int, dur time.Duration, err error) {
	if sl, ok := l.(*logging.SwarmLogger); ok {
		sl.LogFiring(name, emitted, dur, err)
		return
	}
	if err != nil {
		l.Error("handler failed", "handler", name, "firing", firingID, "duration_ms", dur.Milliseconds(), "error", err)
		return
	}
	l.Debug("handler fired", "handler", name, "firing", firingID, "emitted", emitted, "duration_ms", dur.Milliseconds())
}

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	ID     core.HandlerID
	Kind   handler.Kind
	Role   Role
	Stage  int
	Inputs []string
}

// Handlers lists the registered handlers in registration order.
func (s *Swarm) Handlers() []HandlerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HandlerInfo, 0, len(s.order))
	for _, id := range s.order {
		n := s.nodes[id]
		info := HandlerInfo{ID: id, Kind: n.decl.Handler.Kind(), Role: n.decl.Role, Stage: n.stage}
		for _, slot := range n.decl.Inputs {
			info.Inputs = append(info.Inputs, slot.String())
		}
		out = append(out, info)
	}
	return out
}

// PendingInfo is the backlog of one handler.
type PendingInfo struct {
	// Mailbox is the number of queued deliveries.
	Mailbox int
	// Join maps slot names to buffered, unmatched entries.
	Join map[string]int
}

// Pending reports queued deliveries and join backlog per handler. It is the
// tool for diagnosing join starvation, which is otherwise silent.
func (s *Swarm) Pending() map[core.HandlerID]PendingInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[core.HandlerID]PendingInfo, len(s.nodes))
	for id, n := range s.nodes {
		p := PendingInfo{Mailbox: n.mailbox.len()}
		if n.collector != nil {
			p.Join = n.collector.Snapshot()
		}
		out[id] = p
	}
	return out
}

// HandlerStats are cumulative per-handler counters.
type HandlerStats struct {
	Delivered uint64
	Rejected  uint64
	Fired     uint64
	Failed    uint64
	Emitted   uint64
	Dropped   uint64
	Evicted   uint64
}

// Stats is a snapshot of swarm counters.
type Stats struct {
	Handlers map[core.HandlerID]HandlerStats
	// InFlight is the number of queued deliveries plus running firings.
	InFlight int
}

// Stats returns a snapshot of the swarm counters.
func (s *Swarm) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Handlers: make(map[core.HandlerID]HandlerStats, len(s.nodes)), InFlight: s.work.count()}
	for id, n := range s.nodes {
		st.Handlers[id] = HandlerStats{
			Delivered: n.stats.delivered.Load(),
			Rejected:  n.stats.rejected.Load(),
			Fired:     n.stats.fired.Load(),
			Failed:    n.stats.failed.Load(),
			Emitted:   n.stats.emitted.Load(),
			Dropped:   n.stats.dropped.Load(),
			Evicted:   n.stats.evicted.Load(),
		}
	}
	return st
}

// HandlerIDs returns the registered handler IDs sorted by name.
func (s *Swarm) HandlerIDs() []core.HandlerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]core.HandlerID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
