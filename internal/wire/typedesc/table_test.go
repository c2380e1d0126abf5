package typedesc

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
)

type tableAddress struct {
	City string
	Zip  string
}

func TestWriteTypeRefReusesIDForSameType(t *testing.T) {
	var buf bytes.Buffer
	cw := codec.NewWriter(&buf)
	tb := NewTable()

	addrType := reflect.TypeOf(tableAddress{})
	id1, err := tb.WriteTypeRef(cw, addrType)
	if err != nil {
		t.Fatalf("first WriteTypeRef: %v", err)
	}
	id2, err := tb.WriteTypeRef(cw, addrType)
	if err != nil {
		t.Fatalf("second WriteTypeRef: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same type should reuse its id: got %d and %d", id1, id2)
	}
	if got, ok := tb.TypeIDFor(addrType); !ok || got != id1 {
		t.Errorf("TypeIDFor: got %d, %v, want %d, true", got, ok, id1)
	}
}

func TestReadTypeRefParsesStampOnFirstAppearance(t *testing.T) {
	var buf bytes.Buffer
	cw := codec.NewWriter(&buf)
	tb := NewTable()

	addrType := reflect.TypeOf(tableAddress{})
	wantID, err := tb.WriteTypeRef(cw, addrType)
	if err != nil {
		t.Fatalf("WriteTypeRef: %v", err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	cr := codec.NewReader(&buf)
	rt := NewReaderTable()
	gotID, err := rt.ReadTypeRef(cr)
	if err != nil {
		t.Fatalf("ReadTypeRef: %v", err)
	}
	if gotID != wantID {
		t.Errorf("type-id: got %d, want %d", gotID, wantID)
	}

	stamp, coll, ok := rt.Lookup(gotID)
	if !ok || stamp == nil || coll != nil {
		t.Fatalf("Lookup: stamp=%v coll=%v ok=%v", stamp, coll, ok)
	}
	if stamp.Name != addrType.PkgPath()+".tableAddress" {
		t.Errorf("stamp name: got %q", stamp.Name)
	}
	if len(stamp.Fields) != 2 {
		t.Errorf("stamp fields: got %+v", stamp.Fields)
	}
}

func TestWriteTypeRefPrimitiveUsesFixedID(t *testing.T) {
	var buf bytes.Buffer
	cw := codec.NewWriter(&buf)
	tb := NewTable()

	id, err := tb.WriteTypeRef(cw, reflect.TypeOf(int32(0)))
	if err != nil {
		t.Fatal(err)
	}
	if id != PrimitiveTypeID(KindInt32) {
		t.Errorf("primitive type-id: got %d, want %d", id, PrimitiveTypeID(KindInt32))
	}
	if _, ok := tb.TypeIDFor(reflect.TypeOf(int32(0))); ok {
		t.Error("a primitive should never be registered in the user type map")
	}
}

func TestReadTypeRefRejectsOutOfSequenceID(t *testing.T) {
	var buf bytes.Buffer
	cw := codec.NewWriter(&buf)
	// Write a raw, never-before-seen id far past firstUserTypeID without
	// its payload following, simulating stream corruption.
	if err := cw.WriteUvarint(uint64(firstUserTypeID) + 5); err != nil {
		t.Fatal(err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	cr := codec.NewReader(&buf)
	rt := NewReaderTable()
	_, err := rt.ReadTypeRef(cr)
	if err == nil {
		t.Fatal("expected an out-of-sequence type-id to be rejected")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.StreamCorrupted {
		t.Errorf("want StreamCorrupted, got %v", err)
	}
}
