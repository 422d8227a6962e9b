// Package demangle turns C++ and Rust symbol names into their source-level
// form.
package demangle

import (
	"github.com/ianlancetaylor/demangle"
)

// Func demangles name. It returns the input unchanged and false when name is
// not a mangled symbol or cannot be decoded.
type Func func(name string) (string, bool)

// Demangle is the default Func. Parameter lists are kept, clone suffixes
// are dropped.
func Demangle(name string) (string, bool) {
	return demangleWith(name, demangle.NoClones)
}

// WithOptions returns a Func that passes opts to the demangler.
func WithOptions(opts ...demangle.Option) Func {
	return func(name string) (string, bool) {
		return demangleWith(name, opts...)
	}
}

// None is a Func that never demangles.
func None(name string) (string, bool) {
	return name, false
}

func demangleWith(name string, opts ...demangle.Option) (string, bool) {
	if name == "" {
		return name, false
	}
	s, err := demangle.ToString(name, opts...)
	if err != nil {
		return name, false
	}
	return s, true
}
