package typedesc

import (
	"reflect"
	"testing"
)

type stampPerson struct {
	Name string
	Age  int32
	Pet  *stampPet
	Tags []string
}

type stampPet struct {
	Name string
}

func TestBuildStampOrdersFieldsByName(t *testing.T) {
	s, err := BuildStamp(reflect.TypeOf(stampPerson{}))
	if err != nil {
		t.Fatalf("BuildStamp: %v", err)
	}
	var names []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	want := []string{"Age", "Name", "Pet", "Tags"}
	if len(names) != len(want) {
		t.Fatalf("field count: got %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("field order: got %v, want %v", names, want)
		}
	}
}

func TestBuildStampClassifiesFieldKinds(t *testing.T) {
	s, err := BuildStamp(reflect.TypeOf(stampPerson{}))
	if err != nil {
		t.Fatalf("BuildStamp: %v", err)
	}
	byName := make(map[string]FieldDescriptor)
	for _, f := range s.Fields {
		byName[f.Name] = f
	}
	if byName["Age"].Kind != FieldPrimitive || byName["Age"].Primitive != KindInt32 {
		t.Errorf("Age: got %+v", byName["Age"])
	}
	if byName["Pet"].Kind != FieldObject || byName["Pet"].ElemType != reflect.TypeOf(stampPet{}) {
		t.Errorf("Pet: got %+v", byName["Pet"])
	}
	if byName["Tags"].Kind != FieldCollection {
		t.Errorf("Tags: got %+v", byName["Tags"])
	}
}

func TestBuildStampRejectsUnsupportedField(t *testing.T) {
	type hasChan struct {
		C chan int
	}
	if _, err := BuildStamp(reflect.TypeOf(hasChan{})); err == nil {
		t.Fatal("expected an error for an unsupported field type")
	}
}

// BuildStamp sorts fields by name before hashing, so the resulting
// Stamp.Fields order (and therefore its fingerprint) is the same
// regardless of how the fields were declared in source.
func TestFingerprintIsFieldOrderInsensitive(t *testing.T) {
	type ab struct {
		A int32
		B string
	}
	type ba struct {
		B string
		A int32
	}
	sa, err := BuildStamp(reflect.TypeOf(ab{}))
	if err != nil {
		t.Fatal(err)
	}
	sb, err := BuildStamp(reflect.TypeOf(ba{}))
	if err != nil {
		t.Fatal(err)
	}
	sb.Name = sa.Name // isolate the check from the two types' distinct names
	sb.Fingerprint = fingerprint(sb)

	if fingerprint(sa) != sb.Fingerprint {
		t.Errorf("fingerprint depends on declaration order: %d vs %d", sa.Fingerprint, sb.Fingerprint)
	}
}

func TestFingerprintStableAcrossRebuilds(t *testing.T) {
	t1 := reflect.TypeOf(stampPerson{})
	s1, err := BuildStamp(t1)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := BuildStamp(t1)
	if err != nil {
		t.Fatal(err)
	}
	if s1.Fingerprint != s2.Fingerprint {
		t.Errorf("fingerprint changed across rebuilds of the same type: %d vs %d", s1.Fingerprint, s2.Fingerprint)
	}
}

func TestFingerprintChangesWithFieldSet(t *testing.T) {
	type v1 struct {
		A int32
	}
	type v2 struct {
		A int32
		B int32
	}
	s1, err := BuildStamp(reflect.TypeOf(v1{}))
	if err != nil {
		t.Fatal(err)
	}
	s2, err := BuildStamp(reflect.TypeOf(v2{}))
	if err != nil {
		t.Fatal(err)
	}
	if s1.Fingerprint == s2.Fingerprint {
		t.Error("adding a field should change the fingerprint")
	}
}
