package core

import (
	"fmt"
)

// Tag is an opaque name identifying a logical stream on the bus.
type Tag string

type selectorKind uint8

const (
	selectorNone selectorKind = iota
	selectorTag
	selectorStage
)

// Selector describes which publications an input slot listens to. The zero
// value is the type-only selector.
type Selector struct {
	kind  selectorKind
	tag   Tag
	stage int
}

// AnySource returns the type-only selector: the slot receives every
// publication whose payload type matches, regardless of tag or stage.
func AnySource() Selector { return Selector{} }

// OnTag returns a selector matching publications on tag t.
func OnTag(t Tag) Selector { return Selector{kind: selectorTag, tag: t} }

// AtStage returns a selector matching publications to stage n. n must be >= 0.
func AtStage(n int) Selector { return Selector{kind: selectorStage, stage: n} }

// IsNone reports whether s is the type-only selector.
func (s Selector) IsNone() bool { return s.kind == selectorNone }

// IsTag reports whether s selects a tag.
func (s Selector) IsTag() bool { return s.kind == selectorTag }

// IsStage reports whether s selects a stage index.
func (s Selector) IsStage() bool { return s.kind == selectorStage }

// Tag returns the selected tag (empty unless IsTag).
func (s Selector) Tag() Tag { return s.tag }

// Stage returns the selected stage (-1 unless IsStage).
func (s Selector) Stage() int {
	if s.kind != selectorStage {
		return -1
	}
	return s.stage
}

// Valid reports whether the selector is well formed.
func (s Selector) Valid() bool {
	switch s.kind {
	case selectorNone:
		return true
	case selectorTag:
		return s.tag != ""
	case selectorStage:
		return s.stage >= 0
	default:
		return false
	}
}

// Matches reports whether a publication to d is visible to a slot using s.
// A type-only selector matches every destination; tag and stage selectors
// require exact equality.
func (s Selector) Matches(d Destination) bool {
	switch s.kind {
	case selectorNone:
		return true
	case selectorTag:
		return d.kind == destTag && d.tag == s.tag
	case selectorStage:
		return d.kind == destStage && d.stage == s.stage
	default:
		return false
	}
}

// String renders the selector for logs.
func (s Selector) String() string {
	switch s.kind {
	case selectorTag:
		return fmt.Sprintf("tag:%s", s.tag)
	case selectorStage:
		return fmt.Sprintf("stage:%d", s.stage)
	default:
		return "any"
	}
}

type destKind uint8

const (
	destUntagged destKind = iota
	destTag
	destStage
	destNext
)

// Destination says where an emitted value goes. The zero value is an
// untagged broadcast delivered by payload type alone.
type Destination struct {
	kind  destKind
	tag   Tag
	stage int
}

// Untagged returns the broadcast destination.
func Untagged() Destination { return Destination{} }

// To returns a destination publishing on tag t.
func To(t Tag) Destination {
	if t == "" {
		return Untagged()
	}
	return Destination{kind: destTag, tag: t}
}

// ToStage returns a destination publishing to stage n.
func ToStage(n int) Destination { return Destination{kind: destStage, stage: n} }

// NextStage returns the marker resolved by the engine to the emitting
// handler's stage + 1.
func NextStage() Destination { return Destination{kind: destNext} }

// IsNext reports whether d is the unresolved next-stage marker.
func (d Destination) IsNext() bool { return d.kind == destNext }

// IsUntagged reports whether d is a type-only broadcast.
func (d Destination) IsUntagged() bool { return d.kind == destUntagged }

// Tag returns the destination tag (empty unless d is a tag destination).
func (d Destination) Tag() Tag { return d.tag }

// Stage returns the destination stage, or -1 if d is not a stage destination.
func (d Destination) Stage() int {
	if d.kind != destStage {
		return -1
	}
	return d.stage
}

// Key returns the subscription selector exactly matching d. Untagged and
// next-stage destinations map to the type-only selector.
func (d Destination) Key() Selector {
	switch d.kind {
	case destTag:
		return OnTag(d.tag)
	case destStage:
		return AtStage(d.stage)
	default:
		return AnySource()
	}
}

// Resolve replaces the next-stage marker with a concrete stage given the
// emitting handler's own stage. Other destinations are returned unchanged.
func (d Destination) Resolve(current int) (Destination, error) {
	if d.kind != destNext {
		return d, nil
	}
	if current < 0 {
		return Destination{}, ErrNoStage
	}
	return ToStage(current + 1), nil
}

// String renders the destination for logs.
func (d Destination) String() string {
	switch d.kind {
	case destTag:
		return fmt.Sprintf("tag:%s", d.tag)
	case destStage:
		return fmt.Sprintf("stage:%d", d.stage)
	case destNext:
		return "stage:next"
	default:
		return "untagged"
	}
}
