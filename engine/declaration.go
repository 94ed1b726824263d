package engine

import (
	"fmt"

	"github.com/hupe1980/agentswarm/activator"
	"github.com/hupe1980/agentswarm/collect"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/handler"
)

// Role describes what a handler does with its emissions.
type Role int

const (
	// RoleTransform publishes its emissions back onto the bus.
	RoleTransform Role = iota
	// RoleSink consumes values and publishes nothing. Emissions of a sink are
	// dropped with a warning.
	RoleSink
	// RoleSource has no inputs and produces values until cancelled.
	RoleSource
)

func (r Role) String() string {
	switch r {
	case RoleTransform:
		return "transform"
	case RoleSink:
		return "sink"
	case RoleSource:
		return "source"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Declaration describes a handler: its inputs, its admission rules and its
// body. Declarations are immutable once the swarm starts.
//
// Example:
//
//	swarm.Register(engine.Declaration{
//	    Name: "grill",
//	    Inputs: []collect.Slot{
//	        collect.SlotOf[*Order]("order", core.AtStage(1), nil),
//	    },
//	    Handler: handler.OneShot(func(ctx context.Context, args core.Args) (*core.Emission, error) {
//	        o := core.Arg[*Order](args, "order")
//	        o.Grilled = true
//	        return handler.Returning(o, core.NextStage()), nil
//	    }),
//	})
type Declaration struct {
	// Name identifies the handler. It must be unique within a swarm.
	Name string

	// Inputs are the join slots. Sources have none; every other handler
	// needs at least one.
	Inputs []collect.Slot

	// Handler is the body.
	Handler *handler.Handler

	// Gate is evaluated on every delivered payload before it enters the
	// join state. A nil gate admits everything.
	Gate *activator.Gate

	// OutputGate is evaluated on every emitted payload before it is
	// published. A nil gate admits everything.
	OutputGate *activator.Gate

	// Role defaults to RoleSource for source bodies and RoleTransform
	// otherwise.
	Role Role

	// MaxConcurrency bounds concurrent firings of this handler. Zero uses
	// the swarm default; a negative value means unlimited.
	MaxConcurrency int
}

// ID returns the handler identity.
func (d Declaration) ID() core.HandlerID { return core.HandlerID(d.Name) }

// normalize validates d and fills in derived defaults.
func (d Declaration) normalize() (Declaration, error) {
	if d.Name == "" {
		return d, fmt.Errorf("%w: handler without name", core.ErrInvalidDeclaration)
	}
	if core.HandlerID(d.Name) == core.ExternalProducer {
		return d, fmt.Errorf("%w: handler name %q is reserved", core.ErrInvalidDeclaration, d.Name)
	}
	if err := d.Handler.Validate(); err != nil {
		return d, fmt.Errorf("handler %s: %w", d.Name, err)
	}

	isSource := d.Handler.Kind() == handler.KindSource
	switch {
	case isSource && len(d.Inputs) > 0:
		return d, fmt.Errorf("%w: source %s cannot declare inputs", core.ErrInvalidDeclaration, d.Name)
	case isSource && d.Gate != nil:
		return d, fmt.Errorf("%w: source %s cannot have an input gate", core.ErrInvalidDeclaration, d.Name)
	case !isSource && len(d.Inputs) == 0:
		return d, fmt.Errorf("%w: handler %s declares no inputs", core.ErrInvalidDeclaration, d.Name)
	case !isSource && d.Role == RoleSource:
		return d, fmt.Errorf("%w: handler %s has role source but a %s body", core.ErrInvalidDeclaration, d.Name, d.Handler.Kind())
	}
	if isSource {
		d.Role = RoleSource
	}
	return d, nil
}

// stage returns the highest stage among the inputs, or -1.
func (d Declaration) stage() int {
	stage := -1
	for _, s := range d.Inputs {
		if n := s.Selector.Stage(); n > stage {
			stage = n
		}
	}
	return stage
}
