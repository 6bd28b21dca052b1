package optimizer

import (
	"fmt"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/closure"
)

// Local is one allocated local-variable slot.
type Local struct {
	Slot int
	Kind bytecode.ValueKind
	// Cast, when non-nil, is a reference type the value must be narrowed
	// to when loaded back from the slot.
	Cast *bytecode.TypeDesc
}

// Width returns the number of slots the local occupies.
func (l Local) Width() int { return l.Kind.Width() }

// LocalsList is an ordered sequence of locals. The first entry corresponds
// to the value nearest the bottom of the operand-stack segment being
// spilled, so it is stored last and loaded first.
type LocalsList []Local

// StackSize returns the total number of stack units the listed values
// occupy, counting wide values as 2.
func (l LocalsList) StackSize() int {
	n := 0
	for _, lc := range l {
		n += lc.Width()
	}
	return n
}

// allocateLocals reserves fresh local slots for a creation site's captured
// values and for its call-interface arguments, starting at the owning
// method's current high-water mark and advancing it by the combined width.
//
// Captured slots never need a load-time cast: the creation site's extraction
// step guarantees captured value types already match the implementation's
// leading parameters exactly. An argument slot casts on load exactly when
// the call-interface argument type and the implementation argument type at
// that position are unequal reference types; the matcher's exact-descriptor
// check guarantees primitive types always agree, so no cast can ever box or
// unbox a primitive.
func allocateLocals(site *closure.CreationSite) (captured, args LocalsList, err error) {
	capturedTypes, err := site.CapturedTypes()
	if err != nil {
		return nil, nil, err
	}
	ifaceParams, _, err := bytecode.ParseMethodDesc(site.Iface.Desc)
	if err != nil {
		return nil, nil, err
	}
	implParams, err := site.Impl.EffectiveParams()
	if err != nil {
		return nil, nil, err
	}

	m := site.Method
	next := m.MaxLocals

	captured = make(LocalsList, 0, len(capturedTypes))
	for _, t := range capturedTypes {
		captured = append(captured, Local{Slot: next, Kind: t.Kind})
		next += t.Width()
	}

	args = make(LocalsList, 0, len(ifaceParams))
	for i, ifaceT := range ifaceParams {
		implT := implParams[len(capturedTypes)+i]
		if ifaceT.Kind != implT.Kind {
			panic(fmt.Sprintf("optimizer: primitive kind mismatch at argument %d of %s: %s vs %s",
				i, site.Iface, ifaceT.Kind, implT.Kind))
		}
		lc := Local{Slot: next, Kind: ifaceT.Kind}
		if ifaceT.IsRef() && implT.IsRef() && ifaceT.Raw != implT.Raw {
			cast := implT
			lc.Cast = &cast
		}
		args = append(args, lc)
		next += ifaceT.Width()
	}

	m.EnsureLocals(next)
	return captured, args, nil
}
