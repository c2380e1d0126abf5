// Package collection classifies a Go type as a sequence, mapping, or
// set per spec §4.H, and frames/iterates its elements. Collections are
// "re-synthesised from their class and element descriptors" rather than
// stamped (§4.B): this package is what performs that synthesis, for
// both the type descriptor (which needs the shape to build a field's
// wire type reference) and the writer/reader (which need to frame and
// walk elements).
package collection

import (
	"fmt"
	"reflect"
)

type Category byte

const (
	Sequence Category = iota // slice or array: length + ordered elements
	Mapping                  // map: length + ordered key/value pairs
	Set                      // map[T]struct{}: length + ordered elements, no values
)

// Shape describes how a container type is framed on the wire.
type Shape struct {
	Category Category
	GoType   reflect.Type
	ElemType reflect.Type // element type for Sequence/Set, value type for Mapping
	KeyType  reflect.Type // only set for Mapping
	Fixed    int          // array length, -1 for slice/map
}

func isEmptyStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 0
}

// Classify reports t's collection shape. t must be a slice, array, or
// map; anything else is a programmer error from a caller that didn't
// check isCollectionKind first.
func Classify(t reflect.Type) (Shape, error) {
	switch t.Kind() {
	case reflect.Slice:
		return Shape{Category: Sequence, GoType: t, ElemType: t.Elem(), Fixed: -1}, nil
	case reflect.Array:
		return Shape{Category: Sequence, GoType: t, ElemType: t.Elem(), Fixed: t.Len()}, nil
	case reflect.Map:
		if isEmptyStruct(t.Elem()) {
			return Shape{Category: Set, GoType: t, ElemType: t.Key(), Fixed: -1}, nil
		}
		return Shape{Category: Mapping, GoType: t, ElemType: t.Elem(), KeyType: t.Key(), Fixed: -1}, nil
	default:
		return Shape{}, fmt.Errorf("collection: %s is not a sequence, mapping, or set", t)
	}
}

// Len reports how many elements v (a slice, array, or map) holds.
func Len(v reflect.Value) int { return v.Len() }

// SequenceElems returns the elements of a slice or array value in
// index order.
func SequenceElems(v reflect.Value) []reflect.Value {
	out := make([]reflect.Value, v.Len())
	for i := range out {
		out[i] = v.Index(i)
	}
	return out
}

// SetElems returns the keys of a map[T]struct{} value, in the runtime
// container's own iteration order (spec §1 non-goals: unordered
// container byte layout is not guaranteed reproducible across runs).
func SetElems(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	return keys
}

// MappingPairs returns the key/value pairs of a map value, in the
// runtime container's own iteration order.
func MappingPairs(v reflect.Value) (keys, vals []reflect.Value) {
	ks := v.MapKeys()
	keys = make([]reflect.Value, len(ks))
	vals = make([]reflect.Value, len(ks))
	for i, k := range ks {
		keys[i] = k
		vals[i] = v.MapIndex(k)
	}
	return keys, vals
}
