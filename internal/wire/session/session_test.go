package session

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mabhi256/objwire/internal/wire/model"
)

type Address struct {
	City string
	Zip  string
}

type Person struct {
	Name    string
	Age     int32
	Address *Address
	Tags    []string
	Scores  map[string]int32
	Friend  *Person
}

func TestRoundTripIdentity(t *testing.T) {
	root := &Person{
		Name:    "Ada",
		Age:     36,
		Address: &Address{City: "London", Zip: "W1"},
		Tags:    []string{"mathematician", "programmer"},
		Scores:  map[string]int32{"algebra": 100, "analysis": 97},
	}

	data, err := Serialize(root, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Deserialize[Person](data, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got.Name != root.Name || got.Age != root.Age {
		t.Errorf("scalar fields: got %+v, want %+v", got, root)
	}
	if got.Address == nil || got.Address.City != "London" || got.Address.Zip != "W1" {
		t.Errorf("nested object: got %+v", got.Address)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "mathematician" || got.Tags[1] != "programmer" {
		t.Errorf("sequence field: got %+v", got.Tags)
	}
	if len(got.Scores) != 2 || got.Scores["algebra"] != 100 || got.Scores["analysis"] != 97 {
		t.Errorf("mapping field: got %+v", got.Scores)
	}
	if got.Friend != nil {
		t.Errorf("nil object field should stay nil, got %+v", got.Friend)
	}
}

func TestCyclePreservation(t *testing.T) {
	a := &Person{Name: "A"}
	b := &Person{Name: "B"}
	a.Friend = b
	b.Friend = a

	data, err := Serialize(a, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Deserialize[Person](data, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Friend == nil || got.Friend.Name != "B" {
		t.Fatalf("expected friend B, got %+v", got.Friend)
	}
	if got.Friend.Friend != got {
		t.Errorf("cycle not preserved: got.Friend.Friend should be the same *Person as got")
	}
}

func TestDoNotPreserveRejectsCycles(t *testing.T) {
	a := &Person{Name: "A"}
	a.Friend = a

	_, err := Serialize(a, Options{ReferencePreservation: model.DoNotPreserve})
	if err == nil {
		t.Fatal("expected an error serializing a self-cycle with reference preservation disabled")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.InvalidOperation {
		t.Errorf("want InvalidOperation, got %v", err)
	}
}

type HasTwoAddresses struct {
	Home *Address
	Away *Address
}

func TestDoNotPreserveWritesEachReferenceInFull(t *testing.T) {
	shared := &Address{City: "Paris", Zip: "75000"}
	root := &HasTwoAddresses{Home: shared, Away: shared}

	data, err := Serialize(root, Options{ReferencePreservation: model.DoNotPreserve})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize[HasTwoAddresses](data, Options{ReferencePreservation: model.DoNotPreserve})
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Home == got.Away {
		t.Error("with reference preservation disabled, each reference should decode to a distinct instance")
	}
	if got.Home.City != "Paris" || got.Away.City != "Paris" {
		t.Errorf("field values should still round-trip: %+v", got)
	}
}

func TestNullAdmissibility(t *testing.T) {
	root := &Person{Name: "Solo"}

	data, err := Serialize(root, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize[Person](data, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Address != nil {
		t.Errorf("nil pointer field should decode to nil, got %+v", got.Address)
	}
	if got.Tags != nil {
		t.Errorf("nil slice field should decode to nil, got %+v", got.Tags)
	}
	if got.Scores != nil {
		t.Errorf("nil map field should decode to nil, got %+v", got.Scores)
	}
}

// TestByteConservation checks that every byte the writer emitted
// matters to the reader: truncating the stream by even one byte must
// surface as an error rather than silently succeeding with a
// short read.
func TestByteConservation(t *testing.T) {
	root := &Person{Name: "Grace", Age: 85}
	data, err := Serialize(root, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	if _, err := Deserialize[Person](data[:len(data)-1], Options{ReferencePreservation: model.Preserve}); err == nil {
		t.Fatal("expected truncating the stream by one byte to fail")
	}

	got, err := Deserialize[Person](data, Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("full buffer must deserialize cleanly: %v", err)
	}
	if got.Name != "Grace" || got.Age != 85 {
		t.Errorf("got %+v", got)
	}
}

func TestWrongMagic(t *testing.T) {
	_, err := Deserialize[Person]([]byte{0, 0, 0, 0, 0, 0}, Options{ReferencePreservation: model.Preserve})
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.WrongMagic {
		t.Errorf("want WrongMagic, got %v", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	root := &Person{Name: "Meta"}
	meta := []byte("build=42")

	data, err := Serialize(root, Options{ReferencePreservation: model.Preserve, Metadata: meta})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	s, err := OpenReader(bytes.NewReader(data), Options{ReferencePreservation: model.Preserve})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(s.Metadata) != "build=42" {
		t.Errorf("metadata: got %q", s.Metadata)
	}
	got, err := ReadObject[Person](s)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "Meta" {
		t.Errorf("got %+v", got)
	}
}
