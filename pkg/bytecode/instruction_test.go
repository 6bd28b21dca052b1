package bytecode

import "testing"

func ops(l *InsnList) []Opcode {
	var out []Opcode
	for in := l.Front(); in != nil; in = in.Next() {
		out = append(out, in.Op)
	}
	return out
}

func checkOps(t *testing.T, l *InsnList, want []Opcode) {
	t.Helper()
	got := ops(l)
	if len(got) != len(want) {
		t.Fatalf("got %d instructions %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %s, want %s", i, got[i], want[i])
		}
	}
	if l.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", l.Len(), len(want))
	}
}

func TestInsnListPushBack(t *testing.T) {
	l := NewInsnList()
	l.PushBack(Load(KindInt, 0))
	l.PushBack(Const(KindInt, 1))
	l.PushBack(Ret(KindInt))

	checkOps(t, l, []Opcode{OpLoad, OpConst, OpReturn})
	if l.Front().Op != OpLoad || l.Back().Op != OpReturn {
		t.Error("Front/Back mismatch")
	}
}

func TestInsnListInsertBefore(t *testing.T) {
	l := NewInsnList()
	first := l.PushBack(Nop())
	last := l.PushBack(Ret(KindVoid))

	l.InsertBefore(Pop(), first)
	l.InsertBefore(Dup(), last)

	checkOps(t, l, []Opcode{OpPop, OpNop, OpDup, OpReturn})
}

func TestInsnListInsertAfter(t *testing.T) {
	l := NewInsnList()
	first := l.PushBack(Nop())
	l.PushBack(Ret(KindVoid))

	l.InsertAfter(Pop(), first)
	l.InsertAfter(Dup(), l.Back())

	checkOps(t, l, []Opcode{OpNop, OpPop, OpReturn, OpDup})
}

func TestInsnListRemove(t *testing.T) {
	l := NewInsnList()
	a := l.PushBack(Nop())
	b := l.PushBack(Pop())
	c := l.PushBack(Ret(KindVoid))

	l.Remove(b)
	checkOps(t, l, []Opcode{OpNop, OpReturn})
	if b.InList() {
		t.Error("removed instruction still claims membership")
	}

	l.Remove(a)
	l.Remove(c)
	if l.Len() != 0 || l.Front() != nil || l.Back() != nil {
		t.Error("list not empty after removing all instructions")
	}
}

func TestInsnListRemoveThenReinsert(t *testing.T) {
	l := NewInsnList()
	a := l.PushBack(Nop())
	l.PushBack(Ret(KindVoid))

	l.Remove(a)
	l.InsertBefore(a, l.Back())
	checkOps(t, l, []Opcode{OpNop, OpReturn})
}

func TestInsnListIndexOf(t *testing.T) {
	l := NewInsnList()
	a := l.PushBack(Nop())
	b := l.PushBack(Pop())

	if i := l.IndexOf(a); i != 0 {
		t.Errorf("IndexOf(a) = %d, want 0", i)
	}
	if i := l.IndexOf(b); i != 1 {
		t.Errorf("IndexOf(b) = %d, want 1", i)
	}
	other := Nop()
	if i := l.IndexOf(other); i != -1 {
		t.Errorf("IndexOf(detached) = %d, want -1", i)
	}
}

func TestInsnListStableTargets(t *testing.T) {
	l := NewInsnList()
	target := l.PushBack(Nop())
	branch := l.PushBack(Branch(target))
	l.PushBack(Ret(KindVoid))

	// Insertions elsewhere must not disturb the branch target identity.
	l.InsertBefore(Const(KindInt, 7), target)
	l.InsertAfter(Pop(), branch)

	if branch.Target != target {
		t.Error("branch target changed identity after unrelated insertions")
	}
	if l.IndexOf(target) != 1 {
		t.Errorf("target moved to index %d, want 1", l.IndexOf(target))
	}
}

func TestInsnListDoubleInsertPanics(t *testing.T) {
	l := NewInsnList()
	a := l.PushBack(Nop())

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double insertion")
		}
	}()
	l.PushBack(a)
}

func TestMethodHighWaterMarks(t *testing.T) {
	m := NewMethod("run", "()V", AccPublic)
	m.EnsureLocals(3)
	m.EnsureStack(5)
	m.EnsureLocals(2) // lower, must not shrink
	m.EnsureStack(4)

	if m.MaxLocals != 3 {
		t.Errorf("MaxLocals = %d, want 3", m.MaxLocals)
	}
	if m.MaxStack != 5 {
		t.Errorf("MaxStack = %d, want 5", m.MaxStack)
	}
}

func TestMethodReachabilityCache(t *testing.T) {
	m := NewMethod("run", "()V", AccPublic)
	if m.ReachabilityValid() {
		t.Error("new method should not claim valid reachability")
	}
	m.MarkReachabilityValid()
	if !m.ReachabilityValid() {
		t.Error("MarkReachabilityValid did not stick")
	}
	m.InvalidateReachability()
	if m.ReachabilityValid() {
		t.Error("InvalidateReachability did not clear the cache")
	}
}

func TestClassPackage(t *testing.T) {
	tests := []struct {
		name string
		pkg  string
	}{
		{"vireo/demo/Main", "vireo/demo"},
		{"Main", ""},
	}
	for _, tt := range tests {
		c := NewClass(tt.name, "", AccPublic)
		if got := c.Package(); got != tt.pkg {
			t.Errorf("Package(%q) = %q, want %q", tt.name, got, tt.pkg)
		}
	}
}
