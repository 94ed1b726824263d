package collect

import (
	"fmt"
	"reflect"

	"github.com/hupe1980/agentswarm/activator"
	"github.com/hupe1980/agentswarm/core"
)

// Slot is a named input of a handler.
type Slot struct {
	// Name binds the consumed value in core.Args.
	Name string
	// Type is the accepted payload type. Interface types accept any payload
	// implementing them. A nil Type accepts every payload.
	Type reflect.Type
	// Selector restricts the destinations the slot listens on.
	Selector core.Selector
	// Guard is an optional predicate a payload must satisfy to be buffered.
	Guard activator.Predicate
}

// SlotOf declares a slot accepting payloads of type T. guard may be nil.
func SlotOf[T any](name string, sel core.Selector, guard func(T) bool) Slot {
	s := Slot{
		Name:     name,
		Type:     reflect.TypeFor[T](),
		Selector: sel,
	}
	if guard != nil {
		s.Guard = activator.Func(guard)
	}
	return s
}

// AnySlot declares a slot accepting payloads of any type.
func AnySlot(name string, sel core.Selector) Slot {
	return Slot{Name: name, Selector: sel}
}

// Validate reports whether the slot declaration is well formed.
func (s Slot) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: slot without name", core.ErrInvalidDeclaration)
	}
	if !s.Selector.Valid() {
		return fmt.Errorf("%w: slot %q has invalid selector %s", core.ErrInvalidDeclaration, s.Name, s.Selector)
	}
	return nil
}

// Matches reports whether env can be delivered to the slot, ignoring the guard.
func (s Slot) Matches(env core.Envelope) bool {
	return s.Selector.Matches(env.Dest) && s.AcceptsType(env.Payload)
}

// AcceptsType reports whether payload is assignable to the slot type.
func (s Slot) AcceptsType(payload any) bool {
	if s.Type == nil {
		return true
	}
	if payload == nil {
		return false
	}
	return reflect.TypeOf(payload).AssignableTo(s.Type)
}

func (s Slot) String() string {
	typ := "any"
	if s.Type != nil {
		typ = s.Type.String()
	}
	return fmt.Sprintf("%s %s@%s", s.Name, typ, s.Selector)
}
