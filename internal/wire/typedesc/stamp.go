package typedesc

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"

	"github.com/mabhi256/objwire/internal/wire/collection"
)

// FieldKind classifies how a struct field's value travels on the wire.
type FieldKind byte

const (
	FieldPrimitive FieldKind = iota
	FieldObject              // pointer to a struct: reference-table entry
	FieldCollection          // slice/array/map/set: inline framing (§4.H)
)

// FieldDescriptor is the local (reflect-derived) description of one
// struct field, ordered into the stamp ascending by Name regardless of
// source declaration order (spec §3).
type FieldDescriptor struct {
	Name          string
	Index         []int // reflect field index path, for Field/FieldByIndex
	DeclaringType reflect.Type
	Kind          FieldKind
	Primitive     PrimitiveKind
	ElemType      reflect.Type // struct type for FieldObject, container type for FieldCollection
}

// Stamp is the local structural description of a non-primitive type:
// built once per reflect.Type from the Go struct definition, independent
// of anything read off the wire. It is the writer's source of truth for
// field order and the reconciliation target for a reader's incoming
// WireStamp.
type Stamp struct {
	GoType      reflect.Type
	Name        string // package-path-qualified type name
	ModuleGUID  [16]byte
	Fields      []FieldDescriptor
	Fingerprint uint64
}

// moduleGUID derives a stable 16-byte "module identifier" from a
// package path, standing in for the assembly/module GUID spec §3 calls
// for. It is deterministic (not a real GUID) so that two sessions
// compiled from the same source agree on it.
func moduleGUID(pkgPath string) [16]byte {
	h := fnv.New128a()
	h.Write([]byte(pkgPath))
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// BuildStamp derives a Stamp from a struct type. t must not be a pointer
// (callers dereference before calling). Every exported field must be a
// primitive (§4.A), a pointer-to-struct (object reference), or a
// slice/array/map classified by the collection package; anything else
// is rejected. Surrogates (§4.D) do not change this: they substitute a
// value of the same Go type, so a type BuildStamp rejects stays rejected.
func BuildStamp(t reflect.Type) (*Stamp, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typedesc: BuildStamp requires a struct type, got %s", t.Kind())
	}

	visible := reflect.VisibleFields(t)
	fields := make([]FieldDescriptor, 0, len(visible))
	for _, f := range visible {
		if !f.IsExported() {
			continue
		}
		fd, err := describeField(t, f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fd)
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	name := t.PkgPath() + "." + t.Name()
	s := &Stamp{
		GoType:     t,
		Name:       name,
		ModuleGUID: moduleGUID(t.PkgPath()),
		Fields:     fields,
	}
	s.Fingerprint = fingerprint(s)
	return s, nil
}

func describeField(owner reflect.Type, f reflect.StructField) (FieldDescriptor, error) {
	declaring := owner
	if len(f.Index) > 1 {
		declaring = owner.FieldByIndex(f.Index[:len(f.Index)-1]).Type
	}

	ft := f.Type
	if ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct && ft.Elem() != decimalType && ft.Elem() != timeType {
		return FieldDescriptor{
			Name: f.Name, Index: f.Index, DeclaringType: declaring,
			Kind: FieldObject, ElemType: ft.Elem(),
		}, nil
	}

	if isCollectionKind(ft) {
		return FieldDescriptor{
			Name: f.Name, Index: f.Index, DeclaringType: declaring,
			Kind: FieldCollection, ElemType: ft,
		}, nil
	}

	if kind, ok := DetectPrimitive(ft); ok {
		return FieldDescriptor{
			Name: f.Name, Index: f.Index, DeclaringType: declaring,
			Kind: FieldPrimitive, Primitive: kind,
		}, nil
	}

	return FieldDescriptor{}, fmt.Errorf(
		"typedesc: field %s.%s has unsupported type %s (expected primitive, *struct, slice, array, or map)",
		owner, f.Name, ft)
}

func isCollectionKind(t reflect.Type) bool {
	if t == byteSliceType {
		return false // bytes are primitive, not a generic collection
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// fingerprint hashes the field list so the reader can decide, in O(1),
// whether stream layout matches local layout exactly (spec §4.B).
func fingerprint(s *Stamp) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(h, "%s\x00%s\x00", f.Name, fieldTypeTag(f))
	}
	return h.Sum64()
}

// fieldTypeTag is a stable tag identifying a field's wire shape for
// fingerprinting purposes, independent of type-id assignment order. Its
// shape must agree field-for-field with wireFieldTag (reconcile.go),
// which derives the same tag from a WireStamp read off the stream, or
// FieldMap.ExactMatch can never be true for two structurally identical
// types.
func fieldTypeTag(f FieldDescriptor) string {
	switch f.Kind {
	case FieldPrimitive:
		return fmt.Sprintf("P%d", f.Primitive)
	case FieldObject:
		return "O:" + f.ElemType.PkgPath() + "." + f.ElemType.Name()
	case FieldCollection:
		return collectionTag(f.ElemType)
	default:
		return "?"
	}
}

// collectionTag tags a collection field's Go type as "C:<category
// byte>:<element tag>", the same shape wireFieldTag builds from a
// WireCollection's Category and ElemType.
func collectionTag(t reflect.Type) string {
	shape, err := collection.Classify(t)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("C:%d:%s", catForCategory(shape.Category), elemTypeTag(shape.ElemType))
}

// elemTypeTag is fieldTypeTag's counterpart for a bare reflect.Type: a
// collection's element (or, for a set, its key) has no FieldDescriptor
// of its own to dispatch on.
func elemTypeTag(t reflect.Type) string {
	if kind, ok := DetectPrimitive(t); ok {
		return fmt.Sprintf("P%d", kind)
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct && t.Elem() != decimalType && t.Elem() != timeType {
		return "O:" + t.Elem().PkgPath() + "." + t.Elem().Name()
	}
	if isCollectionKind(t) {
		return collectionTag(t)
	}
	return "?"
}
