// Package reftable implements the object↔id bookkeeping from spec
// §4.C: the writer's object→id map with its discovery-order queue, and
// the reader's id→object slots with lazy shell allocation.
package reftable

import (
	"fmt"
	"reflect"

	"github.com/mabhi256/objwire/internal/wire/model"
)

// WriterTable maps reference-typed values to their stream-local id by
// referential identity (not equality), and queues newly-discovered
// objects for the writer's main loop to drain in id order.
type WriterTable struct {
	ids   map[any]model.ObjectID
	queue []queued
	next  model.ObjectID
}

type queued struct {
	id  model.ObjectID
	val reflect.Value
}

func NewWriterTable() *WriterTable {
	return &WriterTable{ids: make(map[any]model.ObjectID)}
}

// identityKey returns a comparable key for v's referential identity: a
// pointer's address, or a map's header pointer. v must be a Ptr or Map.
func identityKey(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Ptr:
		return v.Pointer()
	case reflect.Map:
		return v.Pointer()
	default:
		panic(fmt.Sprintf("reftable: %s is not a reference-typed value", v.Kind()))
	}
}

// AssignOrFetch returns v's id, allocating a new one and enqueuing v if
// this is the first time it has been seen this session.
func (t *WriterTable) AssignOrFetch(v reflect.Value) (id model.ObjectID, isNew bool) {
	key := identityKey(v)
	if id, ok := t.ids[key]; ok {
		return id, false
	}
	id = t.next
	t.next++
	t.ids[key] = id
	t.queue = append(t.queue, queued{id: id, val: v})
	return id, true
}

// TakeNextUnwritten dequeues the next object awaiting serialisation, in
// id order.
func (t *WriterTable) TakeNextUnwritten() (model.ObjectID, reflect.Value, bool) {
	if len(t.queue) == 0 {
		return 0, reflect.Value{}, false
	}
	q := t.queue[0]
	t.queue = t.queue[1:]
	return q.id, q.val, true
}

// ReaderTable maps stream ids to reconstructed Go values. A slot may
// hold an uninitialised shell before its fields are populated.
type ReaderTable struct {
	slots []reflect.Value
}

func NewReaderTable() *ReaderTable {
	return &ReaderTable{slots: []reflect.Value{{}}} // index 0 reserved for the root
}

// Reserve allocates a bare instance of t's pointed-to struct type (a
// shell, with no fields populated yet) for id, growing the table if
// needed. Legal to call at most once per id.
func (t *ReaderTable) Reserve(id model.ObjectID, structType reflect.Type) (reflect.Value, error) {
	t.growTo(id)
	if t.slots[id].IsValid() {
		return reflect.Value{}, model.NewError(model.InvalidOperation, fmt.Sprintf("id %d already reserved", id))
	}
	shell := reflect.New(structType) // *T, zero-valued, no constructor run
	t.slots[id] = shell
	return shell, nil
}

// ReserveMap allocates an empty map shell for id (used when a
// collection is treated as a user object per TreatCollectionAsUserObject).
func (t *ReaderTable) ReserveMap(id model.ObjectID, mapType reflect.Type) (reflect.Value, error) {
	t.growTo(id)
	if t.slots[id].IsValid() {
		return reflect.Value{}, model.NewError(model.InvalidOperation, fmt.Sprintf("id %d already reserved", id))
	}
	m := reflect.MakeMap(mapType)
	t.slots[id] = m
	return m, nil
}

// Put installs v directly at id, replacing whatever the slot held. The
// reader does not call it: it restores a surrogate by overwriting the
// struct value inside the shell already installed at that id.
func (t *ReaderTable) Put(id model.ObjectID, v reflect.Value) {
	t.growTo(id)
	t.slots[id] = v
}

// Resolve returns the instance at id (populated or shell). Fatal if id
// is beyond the high-water mark — it was never reserved.
func (t *ReaderTable) Resolve(id model.ObjectID) (reflect.Value, error) {
	if int(id) >= len(t.slots) || !t.slots[id].IsValid() {
		return reflect.Value{}, model.NewError(model.StreamCorrupted, fmt.Sprintf("reference to unreserved id %d", id))
	}
	return t.slots[id], nil
}

// Has reports whether id has already been reserved.
func (t *ReaderTable) Has(id model.ObjectID) bool {
	return int(id) < len(t.slots) && t.slots[id].IsValid()
}

func (t *ReaderTable) growTo(id model.ObjectID) {
	for model.ObjectID(len(t.slots)) <= id {
		t.slots = append(t.slots, reflect.Value{})
	}
}

// IDsInOrder returns every reserved id in ascending order — used to
// fire OnPostDeserialization hooks in definition order once the whole
// graph is populated (spec §4.F step 5).
func (t *ReaderTable) IDsInOrder() []model.ObjectID {
	ids := make([]model.ObjectID, 0, len(t.slots))
	for i, v := range t.slots {
		if v.IsValid() {
			ids = append(ids, model.ObjectID(i))
		}
	}
	return ids
}
