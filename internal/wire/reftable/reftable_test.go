package reftable

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mabhi256/objwire/internal/wire/model"
)

type refPerson struct {
	Name string
}

func TestWriterTableAssignsStableIDs(t *testing.T) {
	wt := NewWriterTable()
	a := &refPerson{Name: "A"}
	b := &refPerson{Name: "B"}

	idA1, isNew := wt.AssignOrFetch(reflect.ValueOf(a))
	if !isNew {
		t.Error("first sighting of a should be new")
	}
	idB, isNew := wt.AssignOrFetch(reflect.ValueOf(b))
	if !isNew {
		t.Error("first sighting of b should be new")
	}
	idA2, isNew := wt.AssignOrFetch(reflect.ValueOf(a))
	if isNew {
		t.Error("second sighting of a should not be new")
	}
	if idA1 != idA2 {
		t.Errorf("a's id should be stable: got %d then %d", idA1, idA2)
	}
	if idA1 == idB {
		t.Errorf("distinct objects must get distinct ids: both got %d", idA1)
	}
}

func TestWriterTableQueueOrder(t *testing.T) {
	wt := NewWriterTable()
	a := &refPerson{Name: "A"}
	b := &refPerson{Name: "B"}

	idA, _ := wt.AssignOrFetch(reflect.ValueOf(a))
	idB, _ := wt.AssignOrFetch(reflect.ValueOf(b))

	gotID, gotVal, ok := wt.TakeNextUnwritten()
	if !ok || gotID != idA || gotVal.Interface() != a {
		t.Errorf("first dequeue: id=%d ok=%v want id=%d", gotID, ok, idA)
	}
	gotID, gotVal, ok = wt.TakeNextUnwritten()
	if !ok || gotID != idB || gotVal.Interface() != b {
		t.Errorf("second dequeue: id=%d ok=%v want id=%d", gotID, ok, idB)
	}
	if _, _, ok := wt.TakeNextUnwritten(); ok {
		t.Error("queue should be drained")
	}
}

func TestWriterTableRefetchDoesNotRequeue(t *testing.T) {
	wt := NewWriterTable()
	a := &refPerson{Name: "A"}
	wt.AssignOrFetch(reflect.ValueOf(a))
	wt.TakeNextUnwritten()
	wt.AssignOrFetch(reflect.ValueOf(a)) // a cyclic reference back to an already-written object
	if _, _, ok := wt.TakeNextUnwritten(); ok {
		t.Error("re-fetching an already-queued object should not enqueue it again")
	}
}

func TestReaderTableReserveAndResolve(t *testing.T) {
	rt := NewReaderTable()
	structType := reflect.TypeOf(refPerson{})

	shell, err := rt.Reserve(1, structType)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if shell.Kind() != reflect.Ptr || shell.Elem().Kind() != reflect.Struct {
		t.Errorf("Reserve should return a *T shell, got %v", shell.Type())
	}

	got, err := rt.Resolve(1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Pointer() != shell.Pointer() {
		t.Error("Resolve should return the same shell Reserve allocated")
	}
}

func TestReaderTableReserveTwiceFails(t *testing.T) {
	rt := NewReaderTable()
	structType := reflect.TypeOf(refPerson{})

	if _, err := rt.Reserve(1, structType); err != nil {
		t.Fatal(err)
	}
	_, err := rt.Reserve(1, structType)
	if err == nil {
		t.Fatal("expected an error reserving the same id twice")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.InvalidOperation {
		t.Errorf("want InvalidOperation, got %v", err)
	}
}

func TestReaderTableResolveUnreservedFails(t *testing.T) {
	rt := NewReaderTable()
	_, err := rt.Resolve(5)
	if err == nil {
		t.Fatal("expected an error resolving an id that was never reserved")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.StreamCorrupted {
		t.Errorf("want StreamCorrupted, got %v", err)
	}
}

func TestReaderTableHasAndIDsInOrder(t *testing.T) {
	rt := NewReaderTable()
	structType := reflect.TypeOf(refPerson{})

	if rt.Has(3) {
		t.Error("id 3 should not be reserved yet")
	}
	rt.Reserve(3, structType)
	rt.Reserve(1, structType)
	if !rt.Has(3) || !rt.Has(1) {
		t.Error("both reserved ids should report Has == true")
	}

	ids := rt.IDsInOrder()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("IDsInOrder should be ascending: got %v", ids)
	}
}

func TestReaderTablePutInstallsDirectly(t *testing.T) {
	rt := NewReaderTable()
	p := &refPerson{Name: "installed"}
	rt.Put(7, reflect.ValueOf(p))

	got, err := rt.Resolve(7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Interface().(*refPerson) != p {
		t.Errorf("Put should install the exact value given")
	}
}

func TestReaderTableReserveMap(t *testing.T) {
	rt := NewReaderTable()
	mapType := reflect.TypeOf(map[string]int32{})

	m, err := rt.ReserveMap(2, mapType)
	if err != nil {
		t.Fatalf("ReserveMap: %v", err)
	}
	if m.Kind() != reflect.Map {
		t.Errorf("ReserveMap should return a map value, got %v", m.Kind())
	}
	got, err := rt.Resolve(2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pointer() != m.Pointer() {
		t.Error("Resolve should return the map ReserveMap allocated")
	}
}
