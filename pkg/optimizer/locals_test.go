package optimizer

import (
	"testing"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/closure"
)

func siteFor(t *testing.T, ifaceDesc string, impl bytecode.Handle) *closure.CreationSite {
	t.Helper()
	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccPublic|bytecode.AccStatic))
	iface := bytecode.MemberRef{Owner: "p/Fn", Name: "apply", Desc: ifaceDesc}
	in := m.Code.PushBack(bytecode.Closure(iface, impl))
	return &closure.CreationSite{Owner: c, Method: m, Insn: in, Iface: iface, Impl: impl}
}

func TestAllocateLocalsWidths(t *testing.T) {
	// Captures I, J, D; interface argument I. Wide captures must advance
	// the slot index by 2, not 1.
	site := siteFor(t, "(I)V", bytecode.Handle{
		Kind: bytecode.InvokeStatic,
		Ref:  bytecode.MemberRef{Owner: "p/Main", Name: "body", Desc: "(IJDI)V"},
	})
	site.Method.MaxLocals = 3 // pretend the method already uses slots 0-2

	captured, args, err := allocateLocals(site)
	if err != nil {
		t.Fatalf("allocateLocals failed: %v", err)
	}

	wantSlots := []int{3, 4, 6}
	wantWidths := []int{1, 2, 2}
	if len(captured) != 3 {
		t.Fatalf("captured = %d entries, want 3", len(captured))
	}
	for i := range captured {
		if captured[i].Slot != wantSlots[i] || captured[i].Width() != wantWidths[i] {
			t.Errorf("capture %d: slot=%d width=%d, want slot=%d width=%d",
				i, captured[i].Slot, captured[i].Width(), wantSlots[i], wantWidths[i])
		}
		if captured[i].Cast != nil {
			t.Errorf("capture %d: unexpected load-time cast", i)
		}
	}

	if len(args) != 1 || args[0].Slot != 8 || args[0].Width() != 1 {
		t.Errorf("args = %+v, want one narrow local at slot 8", args)
	}

	if site.Method.MaxLocals != 9 {
		t.Errorf("MaxLocals = %d, want 9", site.Method.MaxLocals)
	}
	if captured.StackSize() != 5 {
		t.Errorf("captured stack size = %d, want 5", captured.StackSize())
	}
}

func TestAllocateLocalsCastRule(t *testing.T) {
	// Interface takes (Lp/Obj;Lp/Same;I), implementation takes the
	// narrowed (Lp/Sub;Lp/Same;I) after one leading capture. A cast is
	// required exactly where unequal reference types meet.
	site := siteFor(t, "(Lp/Obj;Lp/Same;I)V", bytecode.Handle{
		Kind: bytecode.InvokeStatic,
		Ref:  bytecode.MemberRef{Owner: "p/Main", Name: "body", Desc: "(JLp/Sub;Lp/Same;I)V"},
	})

	_, args, err := allocateLocals(site)
	if err != nil {
		t.Fatalf("allocateLocals failed: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("args = %d entries, want 3", len(args))
	}
	if args[0].Cast == nil || args[0].Cast.Raw != "Lp/Sub;" {
		t.Errorf("arg 0: cast = %v, want Lp/Sub;", args[0].Cast)
	}
	if args[1].Cast != nil {
		t.Error("arg 1: equal reference types must not cast")
	}
	if args[2].Cast != nil {
		t.Error("arg 2: primitive types must never cast")
	}
}

func TestAllocateLocalsReceiverCapture(t *testing.T) {
	// A virtual implementation captures its receiver as the first value.
	site := siteFor(t, "(I)I", bytecode.Handle{
		Kind: bytecode.InvokeVirtual,
		Ref:  bytecode.MemberRef{Owner: "p/Outer", Name: "body", Desc: "(I)I"},
	})

	captured, args, err := allocateLocals(site)
	if err != nil {
		t.Fatalf("allocateLocals failed: %v", err)
	}
	if len(captured) != 1 || captured[0].Kind != bytecode.KindRef || captured[0].Slot != 0 {
		t.Errorf("captured = %+v, want one reference at slot 0", captured)
	}
	if len(args) != 1 || args[0].Slot != 1 {
		t.Errorf("args = %+v, want one local at slot 1", args)
	}
}
