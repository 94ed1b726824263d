package core

// Args holds the values a handler firing consumed, keyed by input slot name.
type Args map[string]any

// Arg returns the value bound to name converted to T. The zero value is
// returned when the slot is missing or holds a different type.
func Arg[T any](a Args, name string) T {
	v, _ := LookupArg[T](a, name)
	return v
}

// LookupArg is like Arg but reports whether the value was present and of type T.
func LookupArg[T any](a Args, name string) (T, bool) {
	v, ok := a[name].(T)
	return v, ok
}

// Single returns the only value in a, which is the common case for
// single-input handlers. ok is false if a does not hold exactly one value.
func (a Args) Single() (any, bool) {
	if len(a) != 1 {
		return nil, false
	}
	for _, v := range a {
		return v, true
	}
	return nil, false
}
