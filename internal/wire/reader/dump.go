package reader

import (
	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/typedesc"
)

// Report is what Dump collects while walking a stream generically: every
// distinct struct stamp it discovered, and how many object records it
// saw of each.
type Report struct {
	RootTypeID   model.TypeID
	Stamps       []*typedesc.WireStamp
	ObjectCounts map[model.TypeID]int
	TotalObjects int
}

// Dump walks one object graph purely off wire-side type information —
// the root's stamp and every record reachable from the main object
// loop — without decoding into any Go type. It is the generic
// counterpart to ReadObject[T], for tooling that wants to report on a
// stream's shape without knowing its concrete root type in advance.
//
// Dump only supports the default framing, where every reference-table
// id denotes a struct body: a stream written with
// TreatCollectionAsUserObject isn't self-describing enough for this,
// since a tracked collection's id carries no type discriminator of its
// own on the wire (the writer only ever distinguishes it from a struct
// body by the local Go field type that referenced it, which a generic
// walk doesn't have). Dump cannot tell such a stream apart from a
// default one: it reads each tracked map's id as though it were an
// inline length and walks on from there, so the walk may fail with an
// error or may succeed with a report that does not match the stream.
func Dump(cr *codec.Reader, preservation model.ReferencePreservation) (*Report, error) {
	d := &dumper{
		cr:           cr,
		types:        typedesc.NewReaderTable(),
		preserveRefs: preservation != model.DoNotPreserve,
		counts:       make(map[model.TypeID]int),
	}

	// With references preserved, the writer frames every tracked object —
	// including the root, id 0 — with a continuation flag and id before
	// its body, draining them as one queue; without preservation, the
	// root's body is written directly with no such framing.
	var rootID model.TypeID
	if !d.preserveRefs {
		id, err := d.dumpStampBody()
		if err != nil {
			return nil, err
		}
		rootID = id
	} else {
		first := true
		for {
			more, err := cr.ReadBool()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			if _, err := cr.ReadUvarint(); err != nil { // id: identity isn't needed for a shape report
				return nil, err
			}
			id, err := d.dumpStampBody()
			if err != nil {
				return nil, err
			}
			if first {
				rootID = id
				first = false
			}
		}
	}

	return &Report{
		RootTypeID:   rootID,
		Stamps:       d.types.Stamps(),
		ObjectCounts: d.counts,
		TotalObjects: d.total,
	}, nil
}

type dumper struct {
	cr           *codec.Reader
	types        *typedesc.ReaderTable
	preserveRefs bool
	counts       map[model.TypeID]int
	total        int
}

func (d *dumper) dumpStampBody() (model.TypeID, error) {
	typeID, err := d.types.ReadTypeRef(d.cr)
	if err != nil {
		return 0, err
	}
	wireStamp, _, ok := d.types.Lookup(typeID)
	if !ok || wireStamp == nil {
		return 0, model.NewError(model.StreamCorrupted, "dump: expected a struct stamp")
	}
	d.counts[typeID]++
	d.total++
	for _, wf := range wireStamp.Fields {
		if err := d.skip(wf.FieldTypeID); err != nil {
			return 0, err
		}
	}
	return typeID, nil
}

func (d *dumper) skip(typeID model.TypeID) error {
	if wireKind, ok := typedesc.KindFromTypeID(typeID); ok {
		return d.skipPrimitive(wireKind)
	}
	wireStamp, wireColl, ok := d.types.Lookup(typeID)
	if !ok {
		return model.NewError(model.StreamCorrupted, "dump: unknown type-id")
	}
	if wireStamp != nil {
		return d.skipRef()
	}
	return d.skipCollection(wireColl)
}

func (d *dumper) skipPrimitive(kind typedesc.PrimitiveKind) error {
	var err error
	switch kind {
	case typedesc.KindBool:
		_, err = d.cr.ReadBool()
	case typedesc.KindInt8, typedesc.KindInt16, typedesc.KindInt32, typedesc.KindInt64:
		_, err = d.cr.ReadVarint()
	case typedesc.KindUint8, typedesc.KindUint16, typedesc.KindUint32, typedesc.KindUint64:
		_, err = d.cr.ReadUvarint()
	case typedesc.KindFloat32:
		_, err = d.cr.ReadFloat32()
	case typedesc.KindFloat64:
		_, err = d.cr.ReadFloat64()
	case typedesc.KindString:
		_, _, err = d.cr.ReadString()
	case typedesc.KindBytes:
		_, _, err = d.cr.ReadByteSlice()
	case typedesc.KindDateTime:
		_, _, err = d.cr.ReadDateTime()
	case typedesc.KindDecimal:
		_, err = d.cr.ReadDecimal()
	default:
		err = model.NewError(model.InvalidOperation, "dump: unhandled primitive kind")
	}
	return err
}

func (d *dumper) skipRef() error {
	isNil, err := d.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		return nil
	}
	if !d.preserveRefs {
		_, err := d.dumpStampBody()
		return err
	}
	_, err = d.cr.ReadUvarint() // an id the main loop drains on its own
	return err
}

func (d *dumper) skipCollection(wireColl *typedesc.WireCollection) error {
	isNil, err := d.cr.ReadBool()
	if err != nil {
		return err
	}
	if isNil {
		return nil
	}
	n, err := d.cr.ReadUvarint()
	if err != nil {
		return err
	}
	switch wireColl.Category {
	case typedesc.CatSequence, typedesc.CatSet:
		for i := uint64(0); i < n; i++ {
			if err := d.skip(wireColl.ElemType); err != nil {
				return err
			}
		}
	case typedesc.CatMapping:
		for i := uint64(0); i < n; i++ {
			if err := d.skip(wireColl.KeyType); err != nil {
				return err
			}
			if err := d.skip(wireColl.ElemType); err != nil {
				return err
			}
		}
	}
	return nil
}
