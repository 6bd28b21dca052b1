package bytecode

import "testing"

func TestParseDesc(t *testing.T) {
	tests := []struct {
		desc  string
		kind  ValueKind
		width int
	}{
		{"I", KindInt, 1},
		{"Z", KindInt, 1},
		{"B", KindInt, 1},
		{"C", KindInt, 1},
		{"S", KindInt, 1},
		{"J", KindLong, 2},
		{"F", KindFloat, 1},
		{"D", KindDouble, 2},
		{"Lvireo/util/List;", KindRef, 1},
		{"[I", KindRef, 1},
		{"[[Lvireo/util/List;", KindRef, 1},
	}

	for _, tt := range tests {
		parsed, err := ParseDesc(tt.desc)
		if err != nil {
			t.Fatalf("ParseDesc(%q) failed: %v", tt.desc, err)
		}
		if parsed.Kind != tt.kind {
			t.Errorf("ParseDesc(%q): kind = %s, want %s", tt.desc, parsed.Kind, tt.kind)
		}
		if parsed.Width() != tt.width {
			t.Errorf("ParseDesc(%q): width = %d, want %d", tt.desc, parsed.Width(), tt.width)
		}
		if parsed.Raw != tt.desc {
			t.Errorf("ParseDesc(%q): raw = %q", tt.desc, parsed.Raw)
		}
	}
}

func TestParseDescRejectsMalformed(t *testing.T) {
	for _, desc := range []string{"", "L", "Lfoo", "L;", "X", "II", "["} {
		if _, err := ParseDesc(desc); err == nil {
			t.Errorf("ParseDesc(%q): expected error", desc)
		}
	}
}

func TestParseMethodDesc(t *testing.T) {
	params, ret, err := ParseMethodDesc("(IJLvireo/util/List;[D)Lvireo/util/Map;")
	if err != nil {
		t.Fatalf("ParseMethodDesc failed: %v", err)
	}
	want := []string{"I", "J", "Lvireo/util/List;", "[D"}
	if len(params) != len(want) {
		t.Fatalf("expected %d params, got %d", len(want), len(params))
	}
	for i, w := range want {
		if params[i].Raw != w {
			t.Errorf("param %d = %q, want %q", i, params[i].Raw, w)
		}
	}
	if ret.Raw != "Lvireo/util/Map;" || ret.Kind != KindRef {
		t.Errorf("return = %v", ret)
	}
	if ArgStackSize(params) != 5 {
		t.Errorf("ArgStackSize = %d, want 5", ArgStackSize(params))
	}
}

func TestParseMethodDescVoid(t *testing.T) {
	params, ret, err := ParseMethodDesc("()V")
	if err != nil {
		t.Fatalf("ParseMethodDesc failed: %v", err)
	}
	if len(params) != 0 {
		t.Errorf("expected no params, got %d", len(params))
	}
	if ret.Kind != KindVoid {
		t.Errorf("return kind = %s, want void", ret.Kind)
	}
}

func TestParseMethodDescRejectsMalformed(t *testing.T) {
	for _, desc := range []string{"", "()", "(I", "IV", "(X)V"} {
		if _, _, err := ParseMethodDesc(desc); err == nil {
			t.Errorf("ParseMethodDesc(%q): expected error", desc)
		}
	}
}

func TestCapturedTypesStatic(t *testing.T) {
	h := Handle{
		Kind: InvokeStatic,
		Ref:  MemberRef{Owner: "p/Outer", Name: "body", Desc: "(JLp/Env;I)I"},
	}

	captured, err := h.CapturedTypes("(I)I")
	if err != nil {
		t.Fatalf("CapturedTypes failed: %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(captured))
	}
	if captured[0].Raw != "J" || captured[1].Raw != "Lp/Env;" {
		t.Errorf("captures = %v", captured)
	}
}

func TestCapturedTypesVirtualIncludesReceiver(t *testing.T) {
	h := Handle{
		Kind: InvokeVirtual,
		Ref:  MemberRef{Owner: "p/Outer", Name: "body", Desc: "(I)I"},
	}

	captured, err := h.CapturedTypes("(I)I")
	if err != nil {
		t.Fatalf("CapturedTypes failed: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("expected receiver capture, got %d captures", len(captured))
	}
	if captured[0].Raw != "Lp/Outer;" || captured[0].Kind != KindRef {
		t.Errorf("receiver capture = %v", captured[0])
	}
}

func TestCapturedTypesArityMismatch(t *testing.T) {
	h := Handle{
		Kind: InvokeStatic,
		Ref:  MemberRef{Owner: "p/Outer", Name: "body", Desc: "()I"},
	}
	if _, err := h.CapturedTypes("(I)I"); err == nil {
		t.Error("expected error when interface arity exceeds implementation")
	}
}

func TestHandleReturnType(t *testing.T) {
	ctor := Handle{
		Kind: InvokeNewInit,
		Ref:  MemberRef{Owner: "p/Box", Name: "<init>", Desc: "(I)V"},
	}
	ret, err := ctor.ReturnType()
	if err != nil {
		t.Fatalf("ReturnType failed: %v", err)
	}
	if ret.Raw != "Lp/Box;" {
		t.Errorf("new-init return = %q, want Lp/Box;", ret.Raw)
	}

	never := Handle{
		Kind: InvokeStatic,
		Ref:  MemberRef{Owner: "p/Outer", Name: "fail", Desc: "()" + NeverDesc},
	}
	ret, err = never.ReturnType()
	if err != nil {
		t.Fatalf("ReturnType failed: %v", err)
	}
	if !ret.IsNever() {
		t.Errorf("expected bottom return, got %q", ret.Raw)
	}
}
