package typedesc

import (
	"reflect"

	"github.com/mabhi256/objwire/internal/wire/collection"
	"github.com/mabhi256/objwire/internal/wire/model"
)

func classifyField(t reflect.Type) (collection.Shape, error) {
	return collection.Classify(t)
}

func catForCategory(c collection.Category) byte {
	switch c {
	case collection.Sequence:
		return catSequence
	case collection.Mapping:
		return catMapping
	case collection.Set:
		return catSet
	default:
		return 0
	}
}

// shapeCompatible checks a local collection shape against the wire
// collection descriptor it would be populated from.
func shapeCompatible(rt *ReaderTable, shape collection.Shape, wireColl WireCollection, tolerance model.VersionTolerance) (bool, error) {
	if catForCategory(shape.Category) != wireColl.Category {
		return false, nil
	}
	ok, err := elemCompatible(rt, shape.ElemType, wireColl.ElemType, tolerance)
	if !ok || err != nil {
		return ok, err
	}
	if shape.Category == collection.Mapping {
		return elemCompatible(rt, shape.KeyType, wireColl.KeyType, tolerance)
	}
	return true, nil
}

// elemCompatible is compatibleField's counterpart for a bare
// reflect.Type (a collection element or key type, rather than a
// FieldDescriptor) against a wire type-id.
func elemCompatible(rt *ReaderTable, local reflect.Type, wireTypeID model.TypeID, tolerance model.VersionTolerance) (bool, error) {
	if pk, ok := DetectPrimitive(local); ok {
		wirePk, ok := KindFromTypeID(wireTypeID)
		if !ok {
			return false, nil
		}
		return widensTo(wirePk, pk), nil
	}

	wireStamp, wireColl, ok := rt.Lookup(wireTypeID)
	if !ok {
		return false, model.NewError(model.StreamCorrupted, "collection element references unknown type-id")
	}

	if local.Kind() == reflect.Ptr && local.Elem().Kind() == reflect.Struct {
		if wireStamp == nil {
			return false, nil
		}
		elemType := local.Elem()
		if !tolerance.Has(model.AllowTypeNameChange) {
			localName := elemType.PkgPath() + "." + elemType.Name()
			if localName != wireStamp.Name {
				return false, nil
			}
		}
		localElemStamp, err := BuildStamp(elemType)
		if err != nil {
			return false, err
		}
		if _, err := Reconcile(rt, localElemStamp, wireTypeID, tolerance); err != nil {
			return false, err
		}
		return true, nil
	}

	if isCollectionKind(local) {
		if wireColl == nil {
			return false, nil
		}
		shape, err := collection.Classify(local)
		if err != nil {
			return false, err
		}
		return shapeCompatible(rt, shape, *wireColl, tolerance)
	}

	return false, nil
}
