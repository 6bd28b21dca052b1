package callgraph

import (
	"testing"

	"github.com/chazu/vireo/pkg/bytecode"
)

func TestInsertRemove(t *testing.T) {
	g := New()
	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccPublic))
	call := m.Code.PushBack(bytecode.Invoke(bytecode.InvokeStatic, bytecode.MemberRef{Owner: "p/Util", Name: "f", Desc: "()V"}))

	g.Insert(&Entry{Call: call, Caller: m, Class: c, Callee: call.Ref, Kind: call.Invoke})
	if g.Len() != 1 {
		t.Fatalf("Len = %d, want 1", g.Len())
	}

	e, ok := g.Remove(call, m)
	if !ok || e.Call != call {
		t.Fatal("Remove did not return the inserted entry")
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d after remove, want 0", g.Len())
	}
	if _, ok := g.Remove(call, m); ok {
		t.Error("second Remove should report absence")
	}
}

func TestEntriesForOrdered(t *testing.T) {
	g := New()
	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccPublic))

	ref := bytecode.MemberRef{Owner: "p/Util", Name: "f", Desc: "()V"}
	first := m.Code.PushBack(bytecode.Invoke(bytecode.InvokeStatic, ref))
	second := m.Code.PushBack(bytecode.Invoke(bytecode.InvokeStatic, ref))
	m.Code.PushBack(bytecode.Ret(bytecode.KindVoid))

	// Insert out of order; EntriesFor must sort by instruction position.
	g.Insert(&Entry{Call: second, Caller: m, Class: c, Callee: ref})
	g.Insert(&Entry{Call: first, Caller: m, Class: c, Callee: ref})

	entries := g.EntriesFor(m)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Call != first || entries[1].Call != second {
		t.Error("entries not in instruction order")
	}
}

func TestScanClass(t *testing.T) {
	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccPublic))
	ref := bytecode.MemberRef{Owner: "p/Util", Name: "f", Desc: "()V"}
	call := m.Code.PushBack(bytecode.Invoke(bytecode.InvokeVirtual, ref).At(12))
	m.Code.PushBack(bytecode.Nop())
	m.Code.PushBack(bytecode.Ret(bytecode.KindVoid))

	g := New()
	g.ScanClass(c)

	if g.Len() != 1 {
		t.Fatalf("Len = %d, want 1", g.Len())
	}
	e := g.EntryFor(call, m)
	if e == nil {
		t.Fatal("no entry for the invocation")
	}
	if e.Callee != ref || e.Kind != bytecode.InvokeVirtual || e.Line != 12 {
		t.Errorf("entry = %+v", e)
	}
}
