package core

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// HandlerID is the explicit, collision checked identifier of a registered
// handler. External producers publish as ExternalProducer.
type HandlerID string

// ExternalProducer identifies publications made from outside any handler.
const ExternalProducer HandlerID = "external"

// Emission is a value produced by a handler together with its destination.
type Emission struct {
	Payload any
	Dest    Destination
}

// Emit builds an emission for payload published to dest.
func Emit(payload any, dest Destination) Emission {
	return Emission{Payload: payload, Dest: dest}
}

// Envelope is a value in flight on the bus.
type Envelope struct {
	ID        string
	Payload   any
	Dest      Destination
	Producer  HandlerID
	CreatedAt time.Time
}

// NewEnvelope wraps a payload for publication.
func NewEnvelope(producer HandlerID, payload any, dest Destination) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Payload:   payload,
		Dest:      dest,
		Producer:  producer,
		CreatedAt: time.Now(),
	}
}

type pointerIdentity struct {
	typ  reflect.Type
	addr uintptr
}

// IdentityKey returns a comparable key identifying the payload object itself
// rather than its value. Pointer-like payloads (pointers, maps, channels,
// slices, funcs) are keyed by type and address so mutations between stages
// keep the same key. Comparable values are keyed by value. Payloads that are
// neither yield ok == false and never correlate.
func IdentityKey(payload any) (key any, ok bool) {
	if payload == nil {
		return nil, false
	}
	rv := reflect.ValueOf(payload)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Slice, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return nil, false
		}
		return pointerIdentity{typ: rv.Type(), addr: rv.Pointer()}, true
	}
	if rv.Comparable() {
		return payload, true
	}
	return nil, false
}
