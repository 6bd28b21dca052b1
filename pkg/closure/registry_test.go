package closure

import (
	"testing"

	"github.com/chazu/vireo/pkg/bytecode"
)

func TestScanFindsCreationSites(t *testing.T) {
	iface := bytecode.MemberRef{Owner: "p/Fn", Name: "apply", Desc: "(I)I"}
	impl := bytecode.Handle{
		Kind: bytecode.InvokeStatic,
		Ref:  bytecode.MemberRef{Owner: "p/Main", Name: "body", Desc: "(JI)I"},
	}

	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccPublic|bytecode.AccStatic))
	m.Code.PushBack(bytecode.Const(bytecode.KindLong, 1))
	creation := m.Code.PushBack(bytecode.Closure(iface, impl))
	m.Code.PushBack(bytecode.Pop())
	m.Code.PushBack(bytecode.Ret(bytecode.KindVoid))

	r := NewRegistry()
	r.Scan(c)

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	sites := r.Sites(m)
	if len(sites) != 1 {
		t.Fatalf("Sites = %d, want 1", len(sites))
	}
	s := sites[0]
	if s.Insn != creation || s.Iface != iface || s.Impl != impl || s.Owner != c {
		t.Errorf("site = %+v", s)
	}

	captured, err := s.CapturedTypes()
	if err != nil {
		t.Fatalf("CapturedTypes failed: %v", err)
	}
	if len(captured) != 1 || captured[0].Raw != "J" {
		t.Errorf("captured = %v", captured)
	}
}

func TestMethodsDeterministicOrder(t *testing.T) {
	iface := bytecode.MemberRef{Owner: "p/Fn", Name: "apply", Desc: "()V"}
	impl := bytecode.Handle{
		Kind: bytecode.InvokeStatic,
		Ref:  bytecode.MemberRef{Owner: "p/B", Name: "body", Desc: "()V"},
	}

	build := func(class, method string) (*bytecode.Class, *bytecode.Method) {
		c := bytecode.NewClass(class, "", bytecode.AccPublic)
		m := c.AddMethod(bytecode.NewMethod(method, "()V", bytecode.AccStatic))
		m.Code.PushBack(bytecode.Closure(iface, impl))
		m.Code.PushBack(bytecode.Pop())
		m.Code.PushBack(bytecode.Ret(bytecode.KindVoid))
		return c, m
	}

	cb, mb := build("p/B", "zz")
	ca, ma := build("p/A", "aa")

	for i := 0; i < 5; i++ {
		r := NewRegistry()
		r.Scan(cb)
		r.Scan(ca)
		methods := r.Methods()
		if len(methods) != 2 || methods[0] != ma || methods[1] != mb {
			t.Fatalf("iteration %d: methods not ordered by class then name", i)
		}
	}
}

func TestSitesOrderedByPosition(t *testing.T) {
	iface := bytecode.MemberRef{Owner: "p/Fn", Name: "apply", Desc: "()V"}
	impl := bytecode.Handle{
		Kind: bytecode.InvokeStatic,
		Ref:  bytecode.MemberRef{Owner: "p/Main", Name: "body", Desc: "()V"},
	}

	c := bytecode.NewClass("p/Main", "", bytecode.AccPublic)
	m := c.AddMethod(bytecode.NewMethod("run", "()V", bytecode.AccStatic))
	first := m.Code.PushBack(bytecode.Closure(iface, impl))
	m.Code.PushBack(bytecode.Pop())
	second := m.Code.PushBack(bytecode.Closure(iface, impl))
	m.Code.PushBack(bytecode.Pop())
	m.Code.PushBack(bytecode.Ret(bytecode.KindVoid))

	// Register in reverse to check ordering is positional, not insertion.
	r := NewRegistry()
	r.Add(&CreationSite{Owner: c, Method: m, Insn: second, Iface: iface, Impl: impl})
	r.Add(&CreationSite{Owner: c, Method: m, Insn: first, Iface: iface, Impl: impl})

	sites := r.Sites(m)
	if sites[0].Insn != first || sites[1].Insn != second {
		t.Error("sites not ordered by instruction position")
	}
}
