// Package writer implements the object-writer state machine from spec
// §4.E: it walks a root object graph depth-first, assigning ids to
// reference-typed values on first discovery, queuing their bodies to
// be drained breadth-first, and delegating every primitive, stamp, and
// collection encoding decision to codec/typedesc/collection.
package writer

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/collection"
	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/reftable"
	"github.com/mabhi256/objwire/internal/wire/surrogate"
	"github.com/mabhi256/objwire/internal/wire/typedesc"
)

// ObjectWriter serialises one object graph per instance of a stream
// (though ReuseWithNewStream lets the type table survive across many
// streams, the reference table and cycle guard are always reset).
type ObjectWriter struct {
	cw    *codec.Writer
	types *typedesc.Table
	refs  *reftable.WriterTable
	cfg   Config

	surrogates *surrogate.Registry[surrogate.WriteFunc]

	stamps     map[reflect.Type]*typedesc.Stamp
	inProgress map[uintptr]bool // cycle guard, only used when ReferencePreservation == DoNotPreserve
}

func NewObjectWriter(w io.Writer, surrogates *surrogate.Registry[surrogate.WriteFunc], opts ...Option) *ObjectWriter {
	return NewObjectWriterFromCodec(codec.NewWriter(w), surrogates, opts...)
}

// NewObjectWriterFromCodec builds an ObjectWriter atop an
// already-constructed codec.Writer — used by the session façade, which
// must write the stream header and optional metadata block through the
// very same buffered writer the object writer goes on to use (a second,
// independently-buffered codec.Writer over the same io.Writer would
// reorder output).
func NewObjectWriterFromCodec(cw *codec.Writer, surrogates *surrogate.Registry[surrogate.WriteFunc], opts ...Option) *ObjectWriter {
	var cfg Config
	for _, o := range opts {
		o(&cfg)
	}
	if surrogates == nil {
		surrogates = surrogate.NewRegistry[surrogate.WriteFunc]()
	}
	return &ObjectWriter{
		cw:         cw,
		types:      typedesc.NewTable(),
		refs:       reftable.NewWriterTable(),
		cfg:        cfg,
		surrogates: surrogates,
		stamps:     make(map[reflect.Type]*typedesc.Stamp),
		inProgress: make(map[uintptr]bool),
	}
}

// ReuseWithNewStream rebinds the writer to w for a fresh stream. The
// type table (and its assigned type-ids) is carried over so a repeated
// shape doesn't re-pay the stamp cost; the reference table and cycle
// guard are reset since object identity never spans streams.
func (ow *ObjectWriter) ReuseWithNewStream(w io.Writer) {
	ow.cw = codec.NewWriter(w)
	ow.refs = reftable.NewWriterTable()
	ow.inProgress = make(map[uintptr]bool)
}

func (ow *ObjectWriter) Flush() error { return ow.cw.Flush() }

func (ow *ObjectWriter) BytesWritten() int64 { return ow.cw.BytesWritten() }

// WriteObject serialises root, which must be a non-nil pointer to a
// struct (the Go binding's reference-typed root, per spec §1).
func (ow *ObjectWriter) WriteObject(root any) error {
	rv := reflect.ValueOf(root)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return model.NewError(model.InvalidOperation, "root must be a non-nil pointer to a struct")
	}
	if rv.Elem().Kind() != reflect.Struct {
		return model.NewError(model.InvalidOperation, fmt.Sprintf("root must point to a struct, got %s", rv.Elem().Kind()))
	}

	if ow.cfg.ReferencePreservation == model.DoNotPreserve {
		return ow.writeObjectBody(rv)
	}

	ow.refs.AssignOrFetch(rv) // root always claims id 0
	return ow.drainQueue()
}

// drainQueue writes every object discovered so far, in id order,
// continuing until a body write discovers no further objects. Each
// record is preceded by a continuation flag so the reader knows when
// the object stream ends.
func (ow *ObjectWriter) drainQueue() error {
	for {
		id, v, ok := ow.refs.TakeNextUnwritten()
		if !ok {
			break
		}
		if err := ow.cw.WriteBool(true); err != nil {
			return err
		}
		if err := ow.cw.WriteUvarint(uint64(id)); err != nil {
			return err
		}
		switch v.Kind() {
		case reflect.Ptr:
			if err := ow.writeObjectBody(v); err != nil {
				return err
			}
		case reflect.Map:
			if err := ow.writeCollectionFrame(v); err != nil {
				return err
			}
		default:
			return model.NewError(model.InvalidOperation, fmt.Sprintf("reference table holds unsupported kind %s", v.Kind()))
		}
	}
	return ow.cw.WriteBool(false)
}

// writeObjectBody writes one struct's type-id (stamping it if this is
// its first appearance) followed by its fields in stamp order, honouring
// any registered surrogate and lifecycle hooks.
func (ow *ObjectWriter) writeObjectBody(ptr reflect.Value) error {
	if pre, ok := ptr.Interface().(PreSerializer); ok {
		pre.OnPreSerialization()
	}

	structVal := ptr.Elem()
	toWrite := structVal
	if fn, applies := ow.surrogates.Lookup(structVal.Type()); applies {
		toWrite = fn(structVal)
		if toWrite.Type() != structVal.Type() {
			return model.NewError(model.InvalidOperation,
				fmt.Sprintf("surrogate for %s returned a value of type %s; surrogates may only substitute a value, not its wire type", structVal.Type(), toWrite.Type()))
		}
	}

	if _, err := ow.types.WriteTypeRef(ow.cw, toWrite.Type()); err != nil {
		return err
	}
	stamp, err := ow.stampFor(toWrite.Type())
	if err != nil {
		return err
	}
	for _, f := range stamp.Fields {
		if err := ow.writeValue(toWrite.FieldByIndex(f.Index)); err != nil {
			return err
		}
	}

	if post, ok := ptr.Interface().(PostSerializer); ok {
		post.OnPostSerialization()
	}
	return nil
}

func (ow *ObjectWriter) stampFor(t reflect.Type) (*typedesc.Stamp, error) {
	if s, ok := ow.stamps[t]; ok {
		return s, nil
	}
	s, err := typedesc.BuildStamp(t)
	if err != nil {
		return nil, err
	}
	ow.stamps[t] = s
	return s, nil
}

// writeValue dispatches a single field or collection-element value to
// its primitive, object-reference, or collection encoding, by
// inspecting its static Go type.
func (ow *ObjectWriter) writeValue(v reflect.Value) error {
	t := v.Type()
	if pk, ok := typedesc.DetectPrimitive(t); ok {
		return ow.writePrimitive(v, pk)
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return ow.writeRef(v)
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Map {
		return ow.writeCollection(v)
	}
	return model.NewError(model.InvalidOperation, fmt.Sprintf("value of type %s is not serialisable", t))
}

func (ow *ObjectWriter) writePrimitive(v reflect.Value, pk typedesc.PrimitiveKind) error {
	switch pk {
	case typedesc.KindBool:
		return ow.cw.WriteBool(v.Bool())
	case typedesc.KindInt8, typedesc.KindInt16, typedesc.KindInt32, typedesc.KindInt64:
		return ow.cw.WriteVarint(v.Int())
	case typedesc.KindUint8, typedesc.KindUint16, typedesc.KindUint32, typedesc.KindUint64:
		return ow.cw.WriteUvarint(v.Uint())
	case typedesc.KindFloat32:
		return ow.cw.WriteFloat32(float32(v.Float()))
	case typedesc.KindFloat64:
		return ow.cw.WriteFloat64(v.Float())
	case typedesc.KindString:
		return ow.cw.WriteString(v.String())
	case typedesc.KindBytes:
		b := v.Interface().([]byte)
		if b == nil {
			return ow.cw.WriteNullByteSlice()
		}
		return ow.cw.WriteByteSlice(b)
	case typedesc.KindDateTime:
		t := v.Interface().(time.Time)
		return ow.cw.WriteDateTime(model.ToTicks(t), model.KindOf(t))
	case typedesc.KindDecimal:
		d := v.Interface().(model.Decimal)
		return ow.cw.WriteDecimal(d)
	default:
		return model.NewError(model.InvalidOperation, "unhandled primitive kind")
	}
}

// writeRef writes one object-reference-typed field: a null flag, then
// (per the session's reference-preservation mode) either an id into
// the shared reference table or the referenced object's body written
// in place.
func (ow *ObjectWriter) writeRef(v reflect.Value) error {
	if v.IsNil() {
		return ow.cw.WriteBool(true)
	}
	if err := ow.cw.WriteBool(false); err != nil {
		return err
	}

	if ow.cfg.ReferencePreservation == model.DoNotPreserve {
		return ow.writeInline(v)
	}

	id, _ := ow.refs.AssignOrFetch(v)
	return ow.cw.WriteUvarint(uint64(id))
}

// writeInline recurses into v's body immediately, with no reference
// table, detecting and rejecting cycles instead of overflowing the
// stack — the behaviour spec §1 calls for when reference preservation
// is disabled.
func (ow *ObjectWriter) writeInline(v reflect.Value) error {
	key := v.Pointer()
	if ow.inProgress[key] {
		return model.NewError(model.InvalidOperation, "cycle encountered with reference preservation disabled")
	}
	ow.inProgress[key] = true
	defer delete(ow.inProgress, key)
	return ow.writeObjectBody(v)
}

func (ow *ObjectWriter) writeCollection(v reflect.Value) error {
	if v.IsNil() {
		return ow.cw.WriteBool(true)
	}
	if err := ow.cw.WriteBool(false); err != nil {
		return err
	}

	if ow.cfg.TreatCollectionAsUserObject && v.Kind() == reflect.Map && ow.cfg.ReferencePreservation != model.DoNotPreserve {
		id, _ := ow.refs.AssignOrFetch(v)
		return ow.cw.WriteUvarint(uint64(id))
	}
	return ow.writeCollectionFrame(v)
}

// writeCollectionFrame writes a non-nil collection's length followed
// by its elements (or key/value pairs), in the runtime container's own
// iteration order.
func (ow *ObjectWriter) writeCollectionFrame(v reflect.Value) error {
	shape, err := collection.Classify(v.Type())
	if err != nil {
		return err
	}
	switch shape.Category {
	case collection.Sequence:
		elems := collection.SequenceElems(v)
		if err := ow.cw.WriteUvarint(uint64(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := ow.writeValue(e); err != nil {
				return err
			}
		}
	case collection.Set:
		elems := collection.SetElems(v)
		if err := ow.cw.WriteUvarint(uint64(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := ow.writeValue(e); err != nil {
				return err
			}
		}
	case collection.Mapping:
		keys, vals := collection.MappingPairs(v)
		if err := ow.cw.WriteUvarint(uint64(len(keys))); err != nil {
			return err
		}
		for i := range keys {
			if err := ow.writeValue(keys[i]); err != nil {
				return err
			}
			if err := ow.writeValue(vals[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
