package typedesc

import (
	"reflect"
	"time"

	"github.com/mabhi256/objwire/internal/wire/model"
)

// PrimitiveKind enumerates the codec-level primitive types (spec §4.A).
// These never receive a stamp; their type-id is a small fixed constant
// synthesised by the session rather than assigned on first use.
type PrimitiveKind byte

const (
	KindNone PrimitiveKind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindDateTime
	KindDecimal
)

// firstPrimitiveTypeID..lastPrimitiveTypeID are the reserved, synthesised
// type-ids for primitive kinds; user/collection types are assigned
// starting at firstUserTypeID.
const (
	firstPrimitiveTypeID model.TypeID = 1
	firstUserTypeID      model.TypeID = 64
)

func PrimitiveTypeID(k PrimitiveKind) model.TypeID {
	return firstPrimitiveTypeID + model.TypeID(k) - 1
}

func KindFromTypeID(id model.TypeID) (PrimitiveKind, bool) {
	if id < firstPrimitiveTypeID || id >= firstUserTypeID {
		return KindNone, false
	}
	return PrimitiveKind(id-firstPrimitiveTypeID) + 1, true
}

var decimalType = reflect.TypeOf(model.Decimal{})
var timeType = reflect.TypeOf(time.Time{})
var byteSliceType = reflect.TypeOf([]byte(nil))

// DetectPrimitive reports whether t is handled directly by the codec.
// Named types with an underlying primitive kind (Go's enum idiom) count
// as primitive too, addressing spec §4.B's "types that are primitives...
// are not stamped".
func DetectPrimitive(t reflect.Type) (PrimitiveKind, bool) {
	switch {
	case t == decimalType:
		return KindDecimal, true
	case t == timeType:
		return KindDateTime, true
	case t == byteSliceType:
		return KindBytes, true
	}

	switch t.Kind() {
	case reflect.Bool:
		return KindBool, true
	case reflect.Int8:
		return KindInt8, true
	case reflect.Int16:
		return KindInt16, true
	case reflect.Int32:
		return KindInt32, true
	case reflect.Int, reflect.Int64:
		return KindInt64, true
	case reflect.Uint8:
		return KindUint8, true
	case reflect.Uint16:
		return KindUint16, true
	case reflect.Uint32:
		return KindUint32, true
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return KindUint64, true
	case reflect.Float32:
		return KindFloat32, true
	case reflect.Float64:
		return KindFloat64, true
	case reflect.String:
		return KindString, true
	}
	return KindNone, false
}

// widensTo reports whether a value of kind `from` can be losslessly
// widened into a local field of kind `to`, per spec §4.B's "widening
// between integer widths of the same signedness".
func widensTo(from, to PrimitiveKind) bool {
	if from == to {
		return true
	}
	signedOrder := []PrimitiveKind{KindInt8, KindInt16, KindInt32, KindInt64}
	unsignedOrder := []PrimitiveKind{KindUint8, KindUint16, KindUint32, KindUint64}
	rank := func(order []PrimitiveKind, k PrimitiveKind) int {
		for i, o := range order {
			if o == k {
				return i
			}
		}
		return -1
	}
	if fi, ti := rank(signedOrder, from), rank(signedOrder, to); fi >= 0 && ti >= 0 {
		return fi <= ti
	}
	if fi, ti := rank(unsignedOrder, from), rank(unsignedOrder, to); fi >= 0 && ti >= 0 {
		return fi <= ti
	}
	return false
}
