package typedesc

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
)

// writeStampOnly writes just a struct's type-id and stamp payload (no
// object body), mimicking what the writer emits for a field reference
// to a struct type, so Reconcile can be exercised against it.
func writeStampOnly(t *testing.T, typ reflect.Type) ([]byte, model.TypeID) {
	t.Helper()
	var buf bytes.Buffer
	cw := codec.NewWriter(&buf)
	tb := NewTable()
	id, err := tb.WriteTypeRef(cw, typ)
	if err != nil {
		t.Fatalf("WriteTypeRef: %v", err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), id
}

func readBackInto(t *testing.T, data []byte) *ReaderTable {
	t.Helper()
	cr := codec.NewReader(bytes.NewReader(data))
	rt := NewReaderTable()
	if _, err := rt.ReadTypeRef(cr); err != nil {
		t.Fatalf("ReadTypeRef: %v", err)
	}
	return rt
}

type v1Struct struct {
	Name string
	Age  int32
}

type v2AddedField struct {
	Name    string
	Age     int32
	Country string
}

type v2RemovedField struct {
	Name string
}

type v2WidenedInt struct {
	Name string
	Age  int64
}

func TestReconcileExactMatch(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v1Struct{}))
	if err != nil {
		t.Fatal(err)
	}
	fm, err := Reconcile(rt, local, id, 0)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !fm.ExactMatch {
		t.Error("identical type should reconcile as an exact match")
	}
	for _, p := range fm.Plans {
		if p.Action != ReadLocal {
			t.Errorf("exact match should read every field locally, got %+v", p)
		}
	}
}

func TestReconcileRejectsAddedFieldWithoutTolerance(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v2AddedField{}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Reconcile(rt, local, id, 0)
	if err == nil {
		t.Fatal("expected an error when a local field was added without AllowFieldAddition")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.TypeStructureChanged {
		t.Errorf("want TypeStructureChanged, got %v", err)
	}
}

func TestReconcileAllowsAddedFieldWithTolerance(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v2AddedField{}))
	if err != nil {
		t.Fatal(err)
	}
	fm, err := Reconcile(rt, local, id, model.AllowFieldAddition)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if fm.ExactMatch {
		t.Error("adding a local field should not be reported as an exact match")
	}
	if len(fm.Plans) != 2 {
		t.Errorf("plans should only cover the stream's own fields: got %+v", fm.Plans)
	}
}

func TestReconcileRejectsRemovedFieldWithoutTolerance(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v2RemovedField{}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Reconcile(rt, local, id, 0)
	if err == nil {
		t.Fatal("expected an error when a stream field has no local counterpart")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.TypeStructureChanged {
		t.Errorf("want TypeStructureChanged, got %v", err)
	}
}

func TestReconcileAllowsRemovedFieldWithTolerance(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v2RemovedField{}))
	if err != nil {
		t.Fatal(err)
	}
	fm, err := Reconcile(rt, local, id, model.AllowFieldRemoval)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	var skipped, readLocal int
	for _, p := range fm.Plans {
		switch p.Action {
		case Skip:
			skipped++
		case ReadLocal:
			readLocal++
		}
	}
	if skipped != 1 || readLocal != 1 {
		t.Errorf("want 1 skip + 1 read-local, got %d skip + %d read-local", skipped, readLocal)
	}
}

func TestReconcileAllowsIntegerWidening(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v2WidenedInt{}))
	if err != nil {
		t.Fatal(err)
	}
	fm, err := Reconcile(rt, local, id, 0)
	if err != nil {
		t.Fatalf("widening int32 -> int64 should be allowed without any tolerance flag: %v", err)
	}
	for _, p := range fm.Plans {
		if p.Wire.Name == "Age" && p.Action != ReadLocal {
			t.Errorf("widened field should still be read locally: %+v", p)
		}
	}
}

func TestReconcileIsMemoized(t *testing.T) {
	data, id := writeStampOnly(t, reflect.TypeOf(v1Struct{}))
	rt := readBackInto(t, data)

	local, err := BuildStamp(reflect.TypeOf(v1Struct{}))
	if err != nil {
		t.Fatal(err)
	}
	fm1, err := Reconcile(rt, local, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	fm2, err := Reconcile(rt, local, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fm1 != fm2 {
		t.Error("Reconcile should return the same cached *FieldMap for a repeated (local, type-id) pair")
	}
}
