// Package surrogate implements the substitution system from spec §4.D:
// an object→surrogate registry consulted by the writer, and a mirror
// surrogate→object registry consulted by the reader, each with exact,
// interface, and open-generic-template matching.
package surrogate

import (
	"reflect"
	"regexp"

	"github.com/mabhi256/objwire/internal/wire/model"
)

// WriteFunc substitutes obj with its surrogate representation.
type WriteFunc func(obj reflect.Value) reflect.Value

// ReadFunc restores a decoded surrogate value back into the final
// object.
type ReadFunc func(surrogate reflect.Value) reflect.Value

type entryKind byte

const (
	kindExact entryKind = iota
	kindInterface
	kindTemplate
	kindBlocked
)

type entry[F any] struct {
	kind     entryKind
	typ      reflect.Type // exact or interface
	generic  string       // template name, e.g. "mypkg.Box"
	factory  func(reflect.Type) F
	callback F
}

// genericNamePattern strips Go's generic instantiation suffix
// ("Box[int]" -> "Box") so a template registration can match every
// closed instantiation, standing in for .NET's open-generic-definition
// matching since Go's reflect only ever exposes closed instantiations.
var genericNamePattern = regexp.MustCompile(`\[.*\]$`)

func genericName(t reflect.Type) string {
	name := t.String()
	return genericNamePattern.ReplaceAllString(name, "")
}

// Registry is generic over the callback shape so the same matching
// policy serves both WriteFunc and ReadFunc.
type Registry[F any] struct {
	entries []entry[F]
	used    bool
}

func NewRegistry[F any]() *Registry[F] { return &Registry[F]{} }

func (r *Registry[F]) guardRegister() error {
	if r.used {
		return model.NewError(model.InvalidOperation, "surrogate registration after first use")
	}
	return nil
}

// Register binds a concrete type to a callback; an exact match always
// wins lookup regardless of registration order.
func (r *Registry[F]) Register(t reflect.Type, fn F) error {
	if err := r.guardRegister(); err != nil {
		return err
	}
	r.entries = append(r.entries, entry[F]{kind: kindExact, typ: t, callback: fn})
	return nil
}

// RegisterInterface binds an interface type to a callback; it matches
// any concrete type implementing it, once no exact match applies.
// Ambiguity between two matching interfaces (Go interfaces have no
// derivation order the way .NET base classes do) is broken by
// registration order, earliest wins.
func (r *Registry[F]) RegisterInterface(it reflect.Type, fn F) error {
	if it.Kind() != reflect.Interface {
		panic("surrogate: RegisterInterface requires an interface type")
	}
	if err := r.guardRegister(); err != nil {
		return err
	}
	r.entries = append(r.entries, entry[F]{kind: kindInterface, typ: it, callback: fn})
	return nil
}

// RegisterTemplate binds an open-generic name (as produced by
// genericName) to a factory that synthesises a closed callback the
// first time a matching instantiation is encountered.
func (r *Registry[F]) RegisterTemplate(genericTypeName string, factory func(reflect.Type) F) error {
	if err := r.guardRegister(); err != nil {
		return err
	}
	r.entries = append(r.entries, entry[F]{kind: kindTemplate, generic: genericTypeName, factory: factory})
	return nil
}

// RegisterNil blocks inheritance of a more general (interface/template)
// registration for exactly this type, without itself supplying a
// substitution.
func (r *Registry[F]) RegisterNil(t reflect.Type) error {
	if err := r.guardRegister(); err != nil {
		return err
	}
	r.entries = append(r.entries, entry[F]{kind: kindBlocked, typ: t})
	return nil
}

// Lookup finds the callback that applies to t, if any, per the policy
// in spec §4.D: exact match first, then the first matching interface in
// registration order, then the first matching template, with an
// explicit nil registration blocking further search for that exact type.
func (r *Registry[F]) Lookup(t reflect.Type) (fn F, applies bool) {
	r.used = true

	for _, e := range r.entries {
		if e.kind == kindExact && e.typ == t {
			return e.callback, true
		}
	}
	for _, e := range r.entries {
		if e.kind == kindBlocked && e.typ == t {
			var zero F
			return zero, false
		}
	}
	for _, e := range r.entries {
		if e.kind == kindInterface && t.Implements(e.typ) {
			return e.callback, true
		}
	}
	gname := genericName(t)
	for _, e := range r.entries {
		if e.kind == kindTemplate && e.generic == gname {
			return e.factory(t), true
		}
	}
	var zero F
	return zero, false
}
