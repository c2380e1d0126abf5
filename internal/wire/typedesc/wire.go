package typedesc

import (
	"fmt"
	"sort"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
)

// WireField is one field entry as read off the stream, before any
// reconciliation against a local Go type.
type WireField struct {
	Name            string
	DeclaringTypeID model.TypeID
	FieldTypeID     model.TypeID
}

// WireStamp is a struct type's stamp as read off the stream.
type WireStamp struct {
	TypeID     model.TypeID
	Name       string
	ModuleGUID [16]byte
	Fields     []WireField
}

// WireCollection is a collection type's synthesised descriptor as read
// off the stream (spec §4.B: collections are "re-synthesised from
// their class and element descriptors", not stamped).
type WireCollection struct {
	TypeID   model.TypeID
	Category byte // catSequence / catMapping / catSet
	ElemType model.TypeID
	KeyType  model.TypeID // only meaningful for catMapping
}

// typeEntry is what the reader knows about one stream-side type-id:
// exactly one of Stamp/Collection is set once resolved; both are nil
// momentarily while a self-referential type is mid-parse.
type typeEntry struct {
	Stamp      *WireStamp
	Collection *WireCollection
}

// ReaderTable is the reader-side mirror of Table: it tracks type-ids
// seen on the stream and parses each one's stamp/collection payload
// the first time it is referenced.
type ReaderTable struct {
	byID map[model.TypeID]*typeEntry
	next model.TypeID

	reconciled map[reconcileKey]*FieldMap
}

type reconcileKey struct {
	localName string
	typeID    model.TypeID
}

func NewReaderTable() *ReaderTable {
	return &ReaderTable{
		byID:       make(map[model.TypeID]*typeEntry),
		next:       firstUserTypeID,
		reconciled: make(map[reconcileKey]*FieldMap),
	}
}

// ReadTypeRef reads a type-id and, the first time that id appears,
// parses the stamp or collection payload that immediately follows it
// (spec §6: "a type-id used for the first time is immediately followed
// by its stamp payload before the body").
func (rt *ReaderTable) ReadTypeRef(r *codec.Reader) (model.TypeID, error) {
	raw, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	id := model.TypeID(raw)
	if id == model.NullTypeID {
		return id, nil
	}
	if _, ok := KindFromTypeID(id); ok {
		return id, nil // primitive: fixed id, no payload
	}
	if _, seen := rt.byID[id]; seen {
		return id, nil
	}
	if id != rt.next {
		return 0, model.NewError(model.StreamCorrupted, fmt.Sprintf("type-id %d out of sequence, expected %d", id, rt.next))
	}

	entry := &typeEntry{}
	rt.byID[id] = entry // reserve before recursing, so self/mutual references resolve
	rt.next = id + 1

	cat, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch cat {
	case catStruct:
		stamp, err := rt.readStampFields(r, id)
		if err != nil {
			return 0, err
		}
		entry.Stamp = stamp
	case catSequence, catMapping, catSet:
		elemID, err := rt.ReadTypeRef(r)
		if err != nil {
			return 0, err
		}
		var keyID model.TypeID
		if cat == catMapping {
			keyID, err = rt.ReadTypeRef(r)
			if err != nil {
				return 0, err
			}
		}
		entry.Collection = &WireCollection{TypeID: id, Category: cat, ElemType: elemID, KeyType: keyID}
	default:
		return 0, model.NewError(model.StreamCorrupted, fmt.Sprintf("unknown type category byte 0x%02x", cat))
	}
	return id, nil
}

func (rt *ReaderTable) readStampFields(r *codec.Reader, id model.TypeID) (*WireStamp, error) {
	name, _, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	guidBytes, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	var guid [16]byte
	copy(guid[:], guidBytes)

	baseCount, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < baseCount; i++ {
		if _, err := rt.ReadTypeRef(r); err != nil { // base types are parsed and discarded: Go has no inheritance
			return nil, err
		}
	}

	fieldCount, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if fieldCount > 1<<20 {
		return nil, model.NewError(model.StreamCorrupted, fmt.Sprintf("implausible field count %d", fieldCount))
	}
	fields := make([]WireField, fieldCount)
	for i := range fields {
		fname, _, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		declID, err := rt.ReadTypeRef(r)
		if err != nil {
			return nil, err
		}
		fieldTypeID, err := rt.ReadTypeRef(r)
		if err != nil {
			return nil, err
		}
		fields[i] = WireField{Name: fname, DeclaringTypeID: declID, FieldTypeID: fieldTypeID}
	}

	return &WireStamp{TypeID: id, Name: name, ModuleGUID: guid, Fields: fields}, nil
}

// Lookup returns what the reader knows about a previously-seen type-id.
func (rt *ReaderTable) Lookup(id model.TypeID) (stamp *WireStamp, coll *WireCollection, ok bool) {
	e, ok := rt.byID[id]
	if !ok {
		return nil, nil, false
	}
	return e.Stamp, e.Collection, true
}

// Stamps returns every struct stamp discovered so far, ordered by
// ascending type-id — used by diagnostic tooling that walks a stream
// generically and wants to report what types it found.
func (rt *ReaderTable) Stamps() []*WireStamp {
	ids := make([]model.TypeID, 0, len(rt.byID))
	for id, e := range rt.byID {
		if e.Stamp != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*WireStamp, len(ids))
	for i, id := range ids {
		out[i] = rt.byID[id].Stamp
	}
	return out
}
