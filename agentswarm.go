// Package agentswarm provides a high-level façade over the swarm engine and
// the chat persona layer. Most applications interact with this package by:
//  1. Loading a config.Config (config.Load) or starting from config.Defaults
//  2. Creating a Swarm via New, which wires the engine, logger, conversation
//     memory, text generator and the configured agents
//  3. Registering additional handlers and pushing chat messages into Inbox
//  4. Running it with Run until the context is cancelled
//
// Lower level users can skip this package and use engine.Swarm directly.
package agentswarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/config"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/memory/sqlite"
	"github.com/hupe1980/agentswarm/metrics"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/rank"
	"github.com/hupe1980/agentswarm/retry"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the Swarm instance.
type Options struct {
	// Config defaults to config.Defaults() if nil.
	Config *config.Config

	// Logger is built from Config.Logging if nil.
	Logger logging.Logger

	// Generator is built from Config.Model if nil.
	Generator model.Generator

	// Embedder enables embedding based ranking. Built from
	// Config.Model.EmbeddingModel for the openai provider if nil.
	Embedder rank.Embedder

	// Memory is built from Config.Memory if nil.
	Memory memory.Store

	// Chat delivers agent replies. Agents are only wired when set.
	Chat agent.ChatClient

	// Tracer creates firing spans; defaults to the global tracer.
	Tracer trace.Tracer

	// Rand drives diceroll checks; nil uses the global source.
	Rand *rand.Rand
}

// Swarm is the high-level façade aggregating the engine and its services.
type Swarm struct {
	cfg     config.Config
	logger  logging.Logger
	engine  *engine.Swarm
	memory  memory.Store
	inbox   *agent.Inbox
	agents  []*agent.Agent
	closers []io.Closer
}

// New creates a new Swarm. Unset services are built from the configuration.
func New(optFns ...func(o *Options)) (*Swarm, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := config.Defaults()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}

	s := &Swarm{cfg: cfg, logger: logger}

	s.memory = opts.Memory
	if s.memory == nil {
		store, closer, err := NewMemory(cfg.Memory)
		if err != nil {
			return nil, err
		}
		s.memory = store
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}

	s.engine = engine.New(func(o *engine.Options) {
		o.Config = EngineConfig(cfg.Engine)
		o.Logger = logger
		o.Tracer = opts.Tracer
	})

	if opts.Chat == nil || len(cfg.Agents) == 0 {
		return s, nil
	}

	gen := opts.Generator
	if gen == nil {
		var err error
		if gen, err = NewGenerator(cfg.Model); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	ranker := rank.Ranker(rank.NewLexicalRanker(0))
	embedder := opts.Embedder
	if embedder == nil {
		embedder = NewEmbedder(cfg.Model)
	}
	if embedder != nil {
		ranker = rank.NewEmbeddingRanker(embedder)
	}

	var limiter *core.CallLimiter
	if cfg.Retry.CallsPerWindow > 0 {
		limiter = core.NewCallLimiter(cfg.Retry.CallsPerWindow, cfg.Retry.Window)
	}

	s.inbox = agent.NewInbox("", 0)
	if _, err := s.inbox.Register(s.engine); err != nil {
		_ = s.Close()
		return nil, err
	}

	for _, ac := range cfg.Agents {
		a, err := agent.New(ac.Name, gen, opts.Chat, func(o *agent.Options) {
			o.Introduction = agent.NewInstructionFromText(ac.Introduction)
			o.Examples = ac.Examples
			o.PreConversation = ac.PreConversation
			o.PreResponse = ac.PreResponse
			o.Ranker = ranker
			o.Ping = ac.PingEnabled()
			o.Topic = ac.Topic
			o.IgnoreTopics = ac.IgnoreTopics
			o.DicerollSides = ac.DicerollSides
			o.Rand = opts.Rand
			o.Memory = s.memory
			o.Window = cfg.Memory.Window
			o.MaxChars = cfg.Memory.MaxChars
			o.Request = Request(cfg.Model)
			o.Filters = Filters(cfg.Retry)
			o.MaxAttempts = cfg.Retry.MaxAttempts
			o.Limiter = limiter
			o.Logger = logger
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := a.Register(s.engine); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("register agent %s: %w", ac.Name, err)
		}
		s.agents = append(s.agents, a)
	}

	return s, nil
}

// Engine returns the underlying swarm engine.
func (s *Swarm) Engine() *engine.Swarm { return s.engine }

// Config returns the effective configuration.
func (s *Swarm) Config() config.Config { return s.cfg }

// Memory returns the conversation store.
func (s *Swarm) Memory() memory.Store { return s.memory }

// Inbox returns the chat inbox, or nil when no agents are wired.
func (s *Swarm) Inbox() *agent.Inbox { return s.inbox }

// Agents returns the configured agents.
func (s *Swarm) Agents() []*agent.Agent { return s.agents }

// Register adds a handler to the engine.
func (s *Swarm) Register(decl engine.Declaration) (core.HandlerID, error) {
	return s.engine.Register(decl)
}

// Publish injects a value from outside any handler.
func (s *Swarm) Publish(payload any, dest core.Destination) error {
	return s.engine.Publish(payload, dest)
}

// Run serves metrics if enabled, runs the engine until ctx is cancelled and
// releases resources.
func (s *Swarm) Run(ctx context.Context) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}()

	if s.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              s.cfg.Metrics.Addr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("metrics listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return s.engine.Run(ctx)
}

// Close stops the engine and releases stores opened by New.
func (s *Swarm) Close() error {
	if s.inbox != nil {
		s.inbox.Close()
	}
	if s.engine != nil {
		s.engine.Stop()
	}
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// NewMemory opens the configured store. The closer is nil for in-memory
// stores.
func NewMemory(cfg config.MemoryConfig) (memory.Store, io.Closer, error) {
	switch cfg.Type {
	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open memory: %w", err)
		}
		return store, store, nil
	default:
		return memory.NewInMemoryStore(), nil, nil
	}
}

// EngineConfig maps configuration onto engine settings.
func EngineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		MaxConcurrency:   cfg.MaxConcurrency,
		BlockingPoolSize: cfg.BlockingPoolSize,
		JoinCapacity:     cfg.JoinCapacity,
		JoinTTL:          cfg.JoinTTL,
		DrainTimeout:     cfg.DrainTimeout,
	}
}

// Request maps configuration onto the sampling settings of a model request.
func Request(cfg config.ModelConfig) model.Request {
	req := model.DefaultRequest("")
	if len(cfg.Stop) > 0 {
		req.Stop = cfg.Stop
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	req.Temperature = cfg.Temperature
	req.PresencePenalty = cfg.PresencePenalty
	return req
}

// Filters builds the reply filters.
func Filters(cfg config.RetryConfig) []retry.Filter {
	filters := []retry.Filter{
		retry.DeviatesFromScript(retry.ScriptMarker),
		retry.TooSimilar(cfg.SimilarityThreshold),
	}
	if len(cfg.Blocklist) > 0 {
		filters = append(filters, retry.Blocklist(cfg.Blocklist...))
	}
	return filters
}
