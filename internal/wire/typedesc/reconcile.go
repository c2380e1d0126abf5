package typedesc

import (
	"fmt"
	"hash/fnv"

	"github.com/mabhi256/objwire/internal/wire/model"
)

// FieldAction is what the reader must do with one stream-side field
// while populating a local instance (spec §4.F).
type FieldAction byte

const (
	ReadLocal FieldAction = iota
	Skip
)

// FieldPlan is one entry of a reconciled FieldMap: how to handle a
// single stream-side field against the local type.
type FieldPlan struct {
	Wire   WireField
	Action FieldAction
	Local  *FieldDescriptor // non-nil when Action == ReadLocal
}

// FieldMap is the reconciliation result for one (local type, stream
// type) pair: an ordered plan covering every stream-side field, in the
// order the reader must walk them.
type FieldMap struct {
	LocalType   *Stamp
	WireStamp   *WireStamp
	Plans       []FieldPlan
	ExactMatch  bool // fingerprints agreed; no reconciliation was structurally required
}

// Reconcile builds the FieldMap for populating localType's fields from
// typeID's wire stamp, applying the configured version-tolerance flags.
// Results are memoised on rt so that repeated references to the same
// (local type, stream type) pair — including through a self-referential
// cycle — don't re-derive the plan or recurse forever.
func Reconcile(rt *ReaderTable, localStamp *Stamp, typeID model.TypeID, tolerance model.VersionTolerance) (*FieldMap, error) {
	key := reconcileKey{localName: localStamp.Name, typeID: typeID}
	if fm, ok := rt.reconciled[key]; ok {
		return fm, nil
	}

	wireStamp, _, ok := rt.Lookup(typeID)
	if !ok || wireStamp == nil {
		return nil, model.NewError(model.StreamCorrupted, fmt.Sprintf("type-id %d is not a struct stamp", typeID))
	}

	fm := &FieldMap{LocalType: localStamp, WireStamp: wireStamp}
	rt.reconciled[key] = fm // reserve before recursing: breaks cycles through self-referential types

	localByName := make(map[string]*FieldDescriptor, len(localStamp.Fields))
	for i := range localStamp.Fields {
		localByName[localStamp.Fields[i].Name] = &localStamp.Fields[i]
	}

	matched := make(map[string]bool, len(wireStamp.Fields))
	plans := make([]FieldPlan, 0, len(wireStamp.Fields))

	for _, wf := range wireStamp.Fields {
		local, found := localByName[wf.Name]
		if !found {
			if !tolerance.Has(model.AllowFieldRemoval) {
				return nil, model.NewError(model.TypeStructureChanged,
					fmt.Sprintf("stream field %q removed from %s but AllowFieldRemoval is not set", wf.Name, localStamp.Name))
			}
			plans = append(plans, FieldPlan{Wire: wf, Action: Skip})
			continue
		}
		matched[wf.Name] = true

		ok, err := compatibleField(rt, *local, wf, tolerance)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.NewError(model.TypeStructureChanged,
				fmt.Sprintf("field %q of %s changed to an incompatible type", wf.Name, localStamp.Name))
		}
		plans = append(plans, FieldPlan{Wire: wf, Action: ReadLocal, Local: local})
	}

	for _, lf := range localStamp.Fields {
		if matched[lf.Name] {
			continue
		}
		if !tolerance.Has(model.AllowFieldAddition) {
			return nil, model.NewError(model.TypeStructureChanged,
				fmt.Sprintf("local field %q added to %s but AllowFieldAddition is not set", lf.Name, localStamp.Name))
		}
		// default-init: the shell's zero value already satisfies this.
	}

	fm.Plans = plans
	fm.ExactMatch = wireFingerprint(rt, wireStamp) == localStamp.Fingerprint
	return fm, nil
}

// compatibleField implements spec §4.B's "compatible type" test:
// identical primitive (or a safe integer-width widening of the same
// signedness), or identical user type after recursive descriptor
// match.
func compatibleField(rt *ReaderTable, local FieldDescriptor, wf WireField, tolerance model.VersionTolerance) (bool, error) {
	if pk, ok := KindFromTypeID(wf.FieldTypeID); ok {
		if local.Kind != FieldPrimitive {
			return false, nil
		}
		return widensTo(pk, local.Primitive), nil
	}

	wireStamp, wireColl, ok := rt.Lookup(wf.FieldTypeID)
	if !ok {
		return false, model.NewError(model.StreamCorrupted, fmt.Sprintf("field %q references unknown type-id %d", wf.Name, wf.FieldTypeID))
	}

	switch local.Kind {
	case FieldObject:
		if wireStamp == nil {
			return false, nil
		}
		if !tolerance.Has(model.AllowTypeNameChange) {
			localName := local.ElemType.PkgPath() + "." + local.ElemType.Name()
			if localName != wireStamp.Name {
				return false, nil
			}
		}
		localElemStamp, err := BuildStamp(local.ElemType)
		if err != nil {
			return false, err
		}
		if _, err := Reconcile(rt, localElemStamp, wf.FieldTypeID, tolerance); err != nil {
			return false, err
		}
		return true, nil

	case FieldCollection:
		if wireColl == nil {
			return false, nil
		}
		shape, err := classifyField(local.ElemType)
		if err != nil {
			return false, err
		}
		return shapeCompatible(rt, shape, *wireColl, tolerance)

	default:
		return false, nil
	}
}

func wireFingerprint(rt *ReaderTable, ws *WireStamp) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00", ws.Name)
	for _, f := range ws.Fields {
		fmt.Fprintf(h, "%s\x00%s\x00", f.Name, wireFieldTag(rt, f.FieldTypeID))
	}
	return h.Sum64()
}

func wireFieldTag(rt *ReaderTable, id model.TypeID) string {
	if pk, ok := KindFromTypeID(id); ok {
		return fmt.Sprintf("P%d", pk)
	}
	if stamp, coll, ok := rt.Lookup(id); ok {
		if stamp != nil {
			return "O:" + stamp.Name
		}
		if coll != nil {
			return fmt.Sprintf("C:%d:%s", coll.Category, wireFieldTag(rt, coll.ElemType))
		}
	}
	return "?"
}
