// Package reader implements the object-reader state machine from spec
// §4.F: it rebuilds a graph from a stream written by writer.ObjectWriter,
// lazily allocating shells for forward references, reconciling each
// stamp against the locally-known struct before populating it, and
// firing post-deserialization hooks once the whole graph is resolved.
package reader

import (
	"fmt"
	"io"
	"reflect"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/collection"
	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/reftable"
	"github.com/mabhi256/objwire/internal/wire/surrogate"
	"github.com/mabhi256/objwire/internal/wire/typedesc"
)

type ObjectReader struct {
	cr    *codec.Reader
	types *typedesc.ReaderTable
	refs  *reftable.ReaderTable
	cfg   Config

	surrogates *surrogate.Registry[surrogate.ReadFunc]
	stamps     map[reflect.Type]*typedesc.Stamp
}

func NewObjectReader(r io.Reader, surrogates *surrogate.Registry[surrogate.ReadFunc], opts ...Option) *ObjectReader {
	return NewObjectReaderFromCodec(codec.NewReader(r), surrogates, opts...)
}

// NewObjectReaderFromCodec builds an ObjectReader atop an
// already-constructed codec.Reader — used by the session façade, which
// must read the stream header and optional metadata block through the
// very same buffered reader the object reader goes on to use (a second,
// independently-buffered codec.Reader over the same io.Reader would
// silently drop whatever the first one had already read ahead).
func NewObjectReaderFromCodec(cr *codec.Reader, surrogates *surrogate.Registry[surrogate.ReadFunc], opts ...Option) *ObjectReader {
	var cfg Config
	for _, o := range opts {
		o(&cfg)
	}
	if surrogates == nil {
		surrogates = surrogate.NewRegistry[surrogate.ReadFunc]()
	}
	return &ObjectReader{
		cr:         cr,
		types:      typedesc.NewReaderTable(),
		refs:       reftable.NewReaderTable(),
		cfg:        cfg,
		surrogates: surrogates,
		stamps:     make(map[reflect.Type]*typedesc.Stamp),
	}
}

// ReuseWithNewStream rebinds the reader to r for a fresh stream,
// mirroring writer.ObjectWriter.ReuseWithNewStream: the type table
// persists, the reference table does not.
func (or *ObjectReader) ReuseWithNewStream(r io.Reader) {
	or.cr = codec.NewReader(r)
	or.refs = reftable.NewReaderTable()
}

func (or *ObjectReader) BytesRead() int64 { return or.cr.BytesRead() }

// ReadObject decodes a root of type T and the full graph reachable from
// it. T must be a struct type; the result is always a *T, mirroring the
// pointer-rooted shape writer.ObjectWriter.WriteObject requires. A
// free function, not a method, because Go methods cannot carry their
// own type parameters.
func ReadObject[T any](or *ObjectReader) (*T, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, model.NewError(model.InvalidOperation, "ReadObject requires a struct type parameter")
	}

	if or.cfg.ReferencePreservation == model.DoNotPreserve {
		shell := reflect.New(t)
		if err := or.readObjectBody(shell); err != nil {
			return nil, err
		}
		return shell.Interface().(*T), nil
	}

	shell, err := or.refs.Reserve(model.RootID, t)
	if err != nil {
		return nil, err
	}
	// The root is queued and framed by the writer exactly like every
	// other tracked reference (continuation flag + id before its body),
	// so readAll drains it along with the rest instead of this call
	// reading its body directly.
	if err := or.readAll(); err != nil {
		return nil, err
	}
	or.firePostHooks()
	return shell.Interface().(*T), nil
}

// readAll drains the stream's object records (the root first, then
// everything else in the id order the writer discovered them) until the
// continuation flag says there are no more.
func (or *ObjectReader) readAll() error {
	for {
		more, err := or.cr.ReadBool()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		idRaw, err := or.cr.ReadUvarint()
		if err != nil {
			return err
		}
		id := model.ObjectID(idRaw)
		v, err := or.refs.Resolve(id)
		if err != nil {
			return err
		}
		switch v.Kind() {
		case reflect.Ptr:
			if err := or.readObjectBody(v); err != nil {
				return err
			}
		case reflect.Map:
			if err := or.populateMapByLocalType(v); err != nil {
				return err
			}
		default:
			return model.NewError(model.StreamCorrupted, fmt.Sprintf("reference table holds unsupported kind %s for id %d", v.Kind(), id))
		}
	}
}

func (or *ObjectReader) firePostHooks() {
	for _, id := range or.refs.IDsInOrder() {
		v, err := or.refs.Resolve(id)
		if err != nil {
			continue
		}
		if v.Kind() == reflect.Ptr {
			if pd, ok := v.Interface().(PostDeserializer); ok {
				pd.OnPostDeserialization()
			}
		}
	}
}

func (or *ObjectReader) stampFor(t reflect.Type) (*typedesc.Stamp, error) {
	if s, ok := or.stamps[t]; ok {
		return s, nil
	}
	s, err := typedesc.BuildStamp(t)
	if err != nil {
		return nil, err
	}
	or.stamps[t] = s
	return s, nil
}

// readObjectBody reads one struct's type-id, reconciles it against the
// shell's local type, and populates the shell's fields accordingly,
// applying any registered surrogate restoration last.
func (or *ObjectReader) readObjectBody(shell reflect.Value) error {
	typeID, err := or.types.ReadTypeRef(or.cr)
	if err != nil {
		return err
	}
	localStruct := shell.Elem()
	localStamp, err := or.stampFor(localStruct.Type())
	if err != nil {
		return err
	}
	fm, err := typedesc.Reconcile(or.types, localStamp, typeID, or.cfg.Tolerance)
	if err != nil {
		return err
	}

	for _, plan := range fm.Plans {
		switch plan.Action {
		case typedesc.Skip:
			if err := or.skipByTypeID(plan.Wire.FieldTypeID); err != nil {
				return err
			}
		case typedesc.ReadLocal:
			dst := localStruct.FieldByIndex(plan.Local.Index)
			if err := or.readFieldValue(dst, plan.Local, plan.Wire.FieldTypeID); err != nil {
				return err
			}
		}
	}

	if fn, applies := or.surrogates.Lookup(localStruct.Type()); applies {
		restored := fn(localStruct)
		if restored.Type() != localStruct.Type() {
			return model.NewError(model.InvalidOperation,
				fmt.Sprintf("surrogate for %s returned a value of type %s", localStruct.Type(), restored.Type()))
		}
		localStruct.Set(restored)
	}
	return nil
}

// readFieldValue populates dst (one field of an object currently being
// read) according to its local descriptor; only the primitive case
// needs the wire-side kind, to pick the right-width decode.
func (or *ObjectReader) readFieldValue(dst reflect.Value, local *typedesc.FieldDescriptor, wireTypeID model.TypeID) error {
	switch local.Kind {
	case typedesc.FieldPrimitive:
		wireKind, ok := typedesc.KindFromTypeID(wireTypeID)
		if !ok {
			return model.NewError(model.StreamCorrupted, "primitive field's wire type-id is not a primitive kind")
		}
		return or.readPrimitiveInto(dst, wireKind)
	case typedesc.FieldObject:
		return or.readRefField(dst)
	case typedesc.FieldCollection:
		_, wireColl, ok := or.types.Lookup(wireTypeID)
		if !ok || wireColl == nil {
			return model.NewError(model.StreamCorrupted, "collection field's wire type-id is not a collection")
		}
		return or.readCollectionField(dst, wireColl)
	default:
		return model.NewError(model.InvalidOperation, "field has no recognised wire shape")
	}
}

// readElemValue is readFieldValue's counterpart for a value with no
// FieldDescriptor of its own — a collection element or key — dispatched
// purely from its wire type-id.
func (or *ObjectReader) readElemValue(dst reflect.Value, wireTypeID model.TypeID) error {
	if wireKind, ok := typedesc.KindFromTypeID(wireTypeID); ok {
		return or.readPrimitiveInto(dst, wireKind)
	}
	wireStamp, wireColl, ok := or.types.Lookup(wireTypeID)
	if !ok {
		return model.NewError(model.StreamCorrupted, "element references unknown type-id")
	}
	if wireStamp != nil {
		return or.readRefField(dst)
	}
	if wireColl != nil {
		return or.readCollectionField(dst, wireColl)
	}
	return model.NewError(model.StreamCorrupted, "element type-id resolved to neither a stamp nor a collection")
}

func (or *ObjectReader) readPrimitiveInto(dst reflect.Value, kind typedesc.PrimitiveKind) error {
	switch kind {
	case typedesc.KindBool:
		b, err := or.cr.ReadBool()
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case typedesc.KindInt8, typedesc.KindInt16, typedesc.KindInt32, typedesc.KindInt64:
		n, err := or.cr.ReadVarint()
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case typedesc.KindUint8, typedesc.KindUint16, typedesc.KindUint32, typedesc.KindUint64:
		n, err := or.cr.ReadUvarint()
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case typedesc.KindFloat32:
		f, err := or.cr.ReadFloat32()
		if err != nil {
			return err
		}
		dst.SetFloat(float64(f))
	case typedesc.KindFloat64:
		f, err := or.cr.ReadFloat64()
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case typedesc.KindString:
		s, _, err := or.cr.ReadString()
		if err != nil {
			return err
		}
		dst.SetString(s)
	case typedesc.KindBytes:
		b, _, err := or.cr.ReadByteSlice()
		if err != nil {
			return err
		}
		dst.SetBytes(b)
	case typedesc.KindDateTime:
		ticks, _, err := or.cr.ReadDateTime()
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(model.FromTicks(ticks)))
	case typedesc.KindDecimal:
		d, err := or.cr.ReadDecimal()
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
	default:
		return model.NewError(model.InvalidOperation, "unhandled primitive kind")
	}
	return nil
}

// readRefField reads one object-reference-typed value: a null flag,
// then either a back-reference id resolved (allocating a shell on
// first mention) against the shared reference table, or — with
// reference preservation disabled — the referenced object's body read
// in place.
func (or *ObjectReader) readRefField(dst reflect.Value) error {
	isNil, err := or.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if or.cfg.ReferencePreservation == model.DoNotPreserve {
		shell := reflect.New(dst.Type().Elem())
		if err := or.readObjectBody(shell); err != nil {
			return err
		}
		dst.Set(shell)
		return nil
	}

	idRaw, err := or.cr.ReadUvarint()
	if err != nil {
		return err
	}
	v, err := or.shellFor(model.ObjectID(idRaw), dst.Type().Elem())
	if err != nil {
		return err
	}
	dst.Set(v)
	return nil
}

func (or *ObjectReader) shellFor(id model.ObjectID, t reflect.Type) (reflect.Value, error) {
	if or.refs.Has(id) {
		return or.refs.Resolve(id)
	}
	if t.Kind() == reflect.Map {
		return or.refs.ReserveMap(id, t)
	}
	return or.refs.Reserve(id, t)
}

func (or *ObjectReader) readCollectionField(dst reflect.Value, wireColl *typedesc.WireCollection) error {
	isNil, err := or.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	isMapKind := wireColl.Category == typedesc.CatMapping || wireColl.Category == typedesc.CatSet
	if or.cfg.TreatCollectionAsUserObject && isMapKind && dst.Kind() == reflect.Map && or.cfg.ReferencePreservation != model.DoNotPreserve {
		idRaw, err := or.cr.ReadUvarint()
		if err != nil {
			return err
		}
		v, err := or.shellFor(model.ObjectID(idRaw), dst.Type())
		if err != nil {
			return err
		}
		dst.Set(v)
		return nil // body drained later by readAll, in id order
	}
	return or.readCollectionInto(dst, wireColl)
}

// readCollectionInto allocates a fresh container matching dst's local
// type and populates it according to the wire collection's shape.
func (or *ObjectReader) readCollectionInto(dst reflect.Value, wireColl *typedesc.WireCollection) error {
	t := dst.Type()
	n, err := or.cr.ReadUvarint()
	if err != nil {
		return err
	}
	switch t.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(t, int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := or.readElemValue(s.Index(i), wireColl.ElemType); err != nil {
				return err
			}
		}
		dst.Set(s)
	case reflect.Array:
		if int(n) != t.Len() {
			return model.NewError(model.StreamCorrupted, fmt.Sprintf("array length %d on wire does not match local length %d", n, t.Len()))
		}
		for i := 0; i < t.Len(); i++ {
			if err := or.readElemValue(dst.Index(i), wireColl.ElemType); err != nil {
				return err
			}
		}
	case reflect.Map:
		m := reflect.MakeMapWithSize(t, int(n))
		if err := or.populateMapPairs(m, int(n), wireColl); err != nil {
			return err
		}
		dst.Set(m)
	default:
		return model.NewError(model.InvalidOperation, fmt.Sprintf("%s is not a collection kind", t))
	}
	return nil
}

func (or *ObjectReader) populateMapPairs(m reflect.Value, n int, wireColl *typedesc.WireCollection) error {
	shape, err := collection.Classify(m.Type())
	if err != nil {
		return err
	}
	if shape.Category == collection.Set {
		for i := 0; i < n; i++ {
			key := reflect.New(shape.ElemType).Elem()
			if err := or.readElemValue(key, wireColl.ElemType); err != nil {
				return err
			}
			m.SetMapIndex(key, reflect.Zero(m.Type().Elem()))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		key := reflect.New(shape.KeyType).Elem()
		val := reflect.New(shape.ElemType).Elem()
		if err := or.readElemValue(key, wireColl.KeyType); err != nil {
			return err
		}
		if err := or.readElemValue(val, wireColl.ElemType); err != nil {
			return err
		}
		m.SetMapIndex(key, val)
	}
	return nil
}

// populateMapByLocalType fills an already-allocated, already-installed
// map (reached through the reference table as a tracked collection
// object) purely from its local Go type. TreatCollectionAsUserObject
// bodies are assumed to match the local shape exactly: version
// tolerance, which the stamp reconciliation machinery provides for
// struct fields, does not extend to this optional mode.
func (or *ObjectReader) populateMapByLocalType(m reflect.Value) error {
	n, err := or.cr.ReadUvarint()
	if err != nil {
		return err
	}
	shape, err := collection.Classify(m.Type())
	if err != nil {
		return err
	}
	if shape.Category == collection.Set {
		for i := uint64(0); i < n; i++ {
			key := reflect.New(shape.ElemType).Elem()
			if err := or.readValueByLocalType(key); err != nil {
				return err
			}
			m.SetMapIndex(key, reflect.Zero(m.Type().Elem()))
		}
		return nil
	}
	for i := uint64(0); i < n; i++ {
		key := reflect.New(shape.KeyType).Elem()
		val := reflect.New(shape.ElemType).Elem()
		if err := or.readValueByLocalType(key); err != nil {
			return err
		}
		if err := or.readValueByLocalType(val); err != nil {
			return err
		}
		m.SetMapIndex(key, val)
	}
	return nil
}

func (or *ObjectReader) readValueByLocalType(dst reflect.Value) error {
	t := dst.Type()
	if pk, ok := typedesc.DetectPrimitive(t); ok {
		return or.readPrimitiveInto(dst, pk)
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return or.readRefField(dst)
	}
	return model.NewError(model.InvalidOperation, fmt.Sprintf("%s is not supported inside a tracked collection body", t))
}

// skipByTypeID consumes exactly the bytes a value of wire type typeID
// occupies, without storing it anywhere — used for a field the local
// struct no longer has (spec §4.F, AllowFieldRemoval). Driven entirely
// by wire-side type information, since no local Go type exists for a
// removed field.
func (or *ObjectReader) skipByTypeID(typeID model.TypeID) error {
	if wireKind, ok := typedesc.KindFromTypeID(typeID); ok {
		return or.skipPrimitive(wireKind)
	}
	wireStamp, wireColl, ok := or.types.Lookup(typeID)
	if !ok {
		return model.NewError(model.StreamCorrupted, "skip: unknown type-id")
	}
	if wireStamp != nil {
		return or.skipRef()
	}
	if wireColl != nil {
		return or.skipCollection(wireColl)
	}
	return model.NewError(model.StreamCorrupted, "skip: type-id resolved to neither a stamp nor a collection")
}

func (or *ObjectReader) skipPrimitive(kind typedesc.PrimitiveKind) error {
	var err error
	switch kind {
	case typedesc.KindBool:
		_, err = or.cr.ReadBool()
	case typedesc.KindInt8, typedesc.KindInt16, typedesc.KindInt32, typedesc.KindInt64:
		_, err = or.cr.ReadVarint()
	case typedesc.KindUint8, typedesc.KindUint16, typedesc.KindUint32, typedesc.KindUint64:
		_, err = or.cr.ReadUvarint()
	case typedesc.KindFloat32:
		_, err = or.cr.ReadFloat32()
	case typedesc.KindFloat64:
		_, err = or.cr.ReadFloat64()
	case typedesc.KindString:
		_, _, err = or.cr.ReadString()
	case typedesc.KindBytes:
		_, _, err = or.cr.ReadByteSlice()
	case typedesc.KindDateTime:
		_, _, err = or.cr.ReadDateTime()
	case typedesc.KindDecimal:
		_, err = or.cr.ReadDecimal()
	default:
		err = model.NewError(model.InvalidOperation, "unhandled primitive kind")
	}
	return err
}

// skipRef discards a reference-typed value: with references preserved,
// that's a null flag and (if present) an id the main loop will drain
// independently; with preservation disabled the object was written
// inline and must be parsed (and discarded) recursively.
func (or *ObjectReader) skipRef() error {
	isNil, err := or.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		return nil
	}
	if or.cfg.ReferencePreservation == model.DoNotPreserve {
		return or.skipStampBody()
	}
	_, err = or.cr.ReadUvarint()
	return err
}

func (or *ObjectReader) skipStampBody() error {
	typeID, err := or.types.ReadTypeRef(or.cr)
	if err != nil {
		return err
	}
	wireStamp, _, ok := or.types.Lookup(typeID)
	if !ok || wireStamp == nil {
		return model.NewError(model.StreamCorrupted, "skip: expected a struct stamp")
	}
	for _, wf := range wireStamp.Fields {
		if err := or.skipByTypeID(wf.FieldTypeID); err != nil {
			return err
		}
	}
	return nil
}

func (or *ObjectReader) skipCollection(wireColl *typedesc.WireCollection) error {
	isNil, err := or.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		return nil
	}
	isMapKind := wireColl.Category == typedesc.CatMapping || wireColl.Category == typedesc.CatSet
	if or.cfg.TreatCollectionAsUserObject && isMapKind && or.cfg.ReferencePreservation != model.DoNotPreserve {
		_, err := or.cr.ReadUvarint()
		return err
	}
	n, err := or.cr.ReadUvarint()
	if err != nil {
		return err
	}
	switch wireColl.Category {
	case typedesc.CatSequence, typedesc.CatSet:
		for i := uint64(0); i < n; i++ {
			if err := or.skipByTypeID(wireColl.ElemType); err != nil {
				return err
			}
		}
	case typedesc.CatMapping:
		for i := uint64(0); i < n; i++ {
			if err := or.skipByTypeID(wireColl.KeyType); err != nil {
				return err
			}
			if err := or.skipByTypeID(wireColl.ElemType); err != nil {
				return err
			}
		}
	}
	return nil
}
