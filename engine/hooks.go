package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
)

// HookType defines the lifecycle points where hooks run.
//
// Hooks provide a way to observe and influence the swarm without modifying
// handler bodies. Each type represents one point in the life of a delivery or
// a firing:
//   - BeforeFire/AfterFire: around a handler invocation
//   - OnReject: when an input gate or slot guard turns a payload away
//   - OnError: when a handler body fails or panics
//   - OnEvict: when a buffered join entry is dropped
//
// Hooks run synchronously on the goroutine that reached the lifecycle point.
type HookType string

const (
	// HookBeforeFire runs before a handler is invoked. Returning an error
	// vetoes the firing; the consumed inputs are discarded.
	HookBeforeFire HookType = "before_fire"

	// HookAfterFire runs after a handler invocation finished, whether it
	// succeeded or not. HookContext.Err carries the failure.
	HookAfterFire HookType = "after_fire"

	// HookOnReject runs when a payload fails admission.
	HookOnReject HookType = "on_reject"

	// HookOnError runs when a handler invocation fails.
	HookOnError HookType = "on_error"

	// HookOnEvict runs when the join state of a handler drops an entry.
	HookOnEvict HookType = "on_evict"
)

// HookContext carries the information available at a lifecycle point.
// Fields that do not apply to a hook type are left zero.
type HookContext struct {
	// Type is the lifecycle point that triggered the hook.
	Type HookType

	// Handler identifies the handler the event belongs to.
	Handler core.HandlerID

	// FiringID identifies the firing for BeforeFire, AfterFire and OnError.
	FiringID string

	// Args are the consumed inputs of the firing.
	Args core.Args

	// Envelope is the rejected or evicted envelope.
	Envelope *core.Envelope

	// Reason explains a rejection or eviction.
	Reason string

	// Emitted is the number of values published by the firing.
	Emitted int

	// Duration of the invocation for AfterFire and OnError.
	Duration time.Duration

	// Err is the invocation failure, if any.
	Err error
}

// Hook is a lifecycle observer.
//
// Implementations should be fast: hooks run on dispatcher and invocation
// goroutines and delay the work they observe.
type Hook interface {
	// Type returns the lifecycle point this hook handles.
	Type() HookType

	// Execute performs the hook logic. Only BeforeFire hooks can influence
	// execution by returning an error; errors of other hook types are
	// logged and otherwise ignored.
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook wraps a function as a Hook.
//
// Example:
//
//	audit := NewFunctionHook(HookAfterFire, func(ctx context.Context, hc *HookContext) error {
//	    log.Printf("%s fired %d values", hc.Handler, hc.Emitted)
//	    return nil
//	})
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a function-based hook.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the hook type this function handles.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error {
	return h.fn(ctx, hc)
}

// HookManager holds registered hooks and runs them in registration order.
//
// Unlike handler declarations, hooks may be added while the swarm is running;
// the manager is safe for concurrent registration and execution.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds a hook.
func (m *HookManager) Register(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// Len returns the number of hooks registered for t.
func (m *HookManager) Len(t HookType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks[t])
}

// Execute runs every hook registered for hc.Type. Execution stops at the
// first error, which is returned. A panicking hook is reported as an error.
func (m *HookManager) Execute(ctx context.Context, hc *HookContext) error {
	m.mu.RLock()
	hooks := m.hooks[hc.Type]
	m.mu.RUnlock()

	for _, h := range hooks {
		if err := runHook(ctx, h, hc); err != nil {
			return err
		}
	}
	return nil
}

func runHook(ctx context.Context, h Hook, hc *HookContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panic: %v", hc.Type, r)
		}
	}()
	return h.Execute(ctx, hc)
}

// LoggingHook forwards lifecycle events to a formatting function.
//
// Example:
//
//	hooks.Register(NewLoggingHook(HookOnError, func(msg string) {
//	    log.Printf("[SWARM] %s", msg)
//	}))
type LoggingHook struct {
	hookType HookType
	logger   func(message string)
}

// NewLoggingHook creates a logging hook for the given type.
func NewLoggingHook(hookType HookType, logger func(message string)) *LoggingHook {
	return &LoggingHook{hookType: hookType, logger: logger}
}

// Type returns the hook type this logger handles.
func (h *LoggingHook) Type() HookType { return h.hookType }

// Execute logs the event. A nil logger function makes the hook a no-op.
func (h *LoggingHook) Execute(_ context.Context, hc *HookContext) error {
	if h.logger == nil {
		return nil
	}
	msg := fmt.Sprintf("[%s] handler: %s", hc.Type, hc.Handler)
	if hc.FiringID != "" {
		msg += fmt.Sprintf(", firing: %s", hc.FiringID)
	}
	if hc.Reason != "" {
		msg += fmt.Sprintf(", reason: %s", hc.Reason)
	}
	if hc.Err != nil {
		msg += fmt.Sprintf(", error: %v", hc.Err)
	}
	h.logger(msg)
	return nil
}
