package typedesc

import (
	"reflect"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/collection"
	"github.com/mabhi256/objwire/internal/wire/model"
)

const (
	catStruct   byte = 0
	catSequence byte = 1
	catMapping  byte = 2
	catSet      byte = 3
)

// Exported aliases so packages outside typedesc (the writer/reader
// state machines) can interpret a WireCollection's Category byte
// without reaching into unexported constants.
const (
	CatSequence = catSequence
	CatMapping  = catMapping
	CatSet      = catSet
)

// Table is the writer-side type table: reflect.Type -> TypeID, with
// stamps (and collection shape descriptors) emitted eagerly and inline
// on first use, per spec §4.B.
type Table struct {
	ids  map[reflect.Type]model.TypeID
	next model.TypeID
}

func NewTable() *Table {
	return &Table{ids: make(map[reflect.Type]model.TypeID), next: firstUserTypeID}
}

// WriteTypeRef ensures t (a struct, or pointer to struct, passed
// dereferenced) has a type-id, assigning and emitting one if this is
// its first appearance in the stream, then writes that id.
func (tb *Table) WriteTypeRef(w *codec.Writer, t reflect.Type) (model.TypeID, error) {
	if pk, ok := DetectPrimitive(t); ok {
		id := PrimitiveTypeID(pk)
		return id, w.WriteUvarint(uint64(id))
	}

	if id, ok := tb.ids[t]; ok {
		return id, w.WriteUvarint(uint64(id))
	}

	id := tb.next
	tb.next++
	tb.ids[t] = id
	if err := w.WriteUvarint(uint64(id)); err != nil {
		return 0, err
	}

	if isCollectionKind(t) {
		shape, err := collection.Classify(t)
		if err != nil {
			return 0, err
		}
		return id, tb.writeCollectionPayload(w, shape)
	}

	stamp, err := BuildStamp(t)
	if err != nil {
		return 0, err
	}
	return id, tb.writeStampPayload(w, stamp)
}

func (tb *Table) writeStampPayload(w *codec.Writer, s *Stamp) error {
	if err := w.WriteByte(catStruct); err != nil {
		return err
	}
	if err := w.WriteString(s.Name); err != nil {
		return err
	}
	if err := w.WriteBytes(s.ModuleGUID[:]); err != nil {
		return err
	}
	if err := w.WriteUvarint(0); err != nil { // base-type-count: Go has no inheritance
		return err
	}
	if err := w.WriteUvarint(uint64(len(s.Fields))); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := w.WriteString(f.Name); err != nil {
			return err
		}
		if _, err := tb.writeDeclaringTypeRef(w, f.DeclaringType); err != nil {
			return err
		}
		if _, err := tb.writeFieldTypeRef(w, f); err != nil {
			return err
		}
	}
	return nil
}

// writeDeclaringTypeRef writes the type-id of the struct that declares
// a field — almost always the owning stamp's own type, or an embedded
// struct's type for a promoted field.
func (tb *Table) writeDeclaringTypeRef(w *codec.Writer, declaring reflect.Type) (model.TypeID, error) {
	if declaring.Kind() != reflect.Struct {
		// A named non-struct anonymous embed (rare); fall back to its
		// primitive tag so the wire format still has a valid type-id here.
		if pk, ok := DetectPrimitive(declaring); ok {
			id := PrimitiveTypeID(pk)
			return id, w.WriteUvarint(uint64(id))
		}
	}
	return tb.WriteTypeRef(w, declaring)
}

func (tb *Table) writeFieldTypeRef(w *codec.Writer, f FieldDescriptor) (model.TypeID, error) {
	switch f.Kind {
	case FieldPrimitive:
		id := PrimitiveTypeID(f.Primitive)
		return id, w.WriteUvarint(uint64(id))
	case FieldObject:
		return tb.WriteTypeRef(w, f.ElemType)
	case FieldCollection:
		return tb.WriteTypeRef(w, f.ElemType)
	default:
		return 0, w.WriteUvarint(0)
	}
}

func (tb *Table) writeCollectionPayload(w *codec.Writer, shape collection.Shape) error {
	var cat byte
	switch shape.Category {
	case collection.Sequence:
		cat = catSequence
	case collection.Mapping:
		cat = catMapping
	case collection.Set:
		cat = catSet
	}
	if err := w.WriteByte(cat); err != nil {
		return err
	}
	if _, err := tb.WriteTypeRef(w, shape.ElemType); err != nil {
		return err
	}
	if shape.Category == collection.Mapping {
		if _, err := tb.WriteTypeRef(w, shape.KeyType); err != nil {
			return err
		}
	}
	return nil
}

// TypeIDFor returns the id already assigned to t, if any, without
// writing anything to the stream.
func (tb *Table) TypeIDFor(t reflect.Type) (model.TypeID, bool) {
	id, ok := tb.ids[t]
	return id, ok
}
