package bytecode

import "fmt"

// MemberRef identifies a method by owner class, name, and descriptor.
type MemberRef struct {
	Owner string // internal class name, e.g. "vireo/util/List"
	Name  string
	Desc  string
}

// String formats the reference as owner.name + descriptor.
func (r MemberRef) String() string {
	return r.Owner + "." + r.Name + r.Desc
}

// InvokeKind is the closed set of call shapes. It tags both invocation
// instructions and implementation-method handles; matching on it is always
// exhaustive so that adding a kind is a compile-time-checked change.
type InvokeKind uint8

const (
	InvokeVirtual   InvokeKind = iota // dynamically dispatched instance call
	InvokeStatic                      // static call, no receiver
	InvokeSpecial                     // non-virtual instance call (private, <init>, super)
	InvokeInterface                   // interface-dispatched instance call
	InvokeNewInit                     // allocate a fresh instance, then run <init>
)

// String returns a human-readable name for the kind.
func (k InvokeKind) String() string {
	switch k {
	case InvokeVirtual:
		return "virtual"
	case InvokeStatic:
		return "static"
	case InvokeSpecial:
		return "special"
	case InvokeInterface:
		return "interface"
	case InvokeNewInit:
		return "new-init"
	default:
		return fmt.Sprintf("InvokeKind(%d)", k)
	}
}

// BindsReceiver reports whether an implementation handle of this kind binds
// an instance receiver as its first captured value. Static methods have no
// receiver; a new-init handle allocates its receiver at the call instead of
// capturing one.
func (k InvokeKind) BindsReceiver() bool {
	switch k {
	case InvokeVirtual, InvokeSpecial, InvokeInterface:
		return true
	case InvokeStatic, InvokeNewInit:
		return false
	default:
		panic(fmt.Sprintf("bytecode: BindsReceiver: unknown invoke kind %d", k))
	}
}

// Handle is a direct reference to an implementation method together with the
// call shape needed to reach it.
type Handle struct {
	Kind InvokeKind
	Ref  MemberRef
}

// String formats the handle as kind:owner.name desc.
func (h Handle) String() string {
	return h.Kind.String() + ":" + h.Ref.String()
}

// EffectiveParams returns the full list of value types an invocation through
// this handle consumes, in stack order. For receiver-binding kinds this is
// the receiver reference followed by the declared parameters; otherwise it is
// the declared parameters alone.
func (h Handle) EffectiveParams() ([]TypeDesc, error) {
	params, _, err := ParseMethodDesc(h.Ref.Desc)
	if err != nil {
		return nil, err
	}
	if !h.Kind.BindsReceiver() {
		return params, nil
	}
	full := make([]TypeDesc, 0, len(params)+1)
	full = append(full, TypeDesc{Raw: RefDesc(h.Ref.Owner), Kind: KindRef})
	return append(full, params...), nil
}

// CapturedTypes returns the static types of the values a closure creation
// over this handle consumes from the operand stack, given the descriptor of
// the closure's call-interface method. The captured values are the leading
// effective parameters not supplied by the call interface.
func (h Handle) CapturedTypes(ifaceDesc string) ([]TypeDesc, error) {
	full, err := h.EffectiveParams()
	if err != nil {
		return nil, err
	}
	ifaceParams, _, err := ParseMethodDesc(ifaceDesc)
	if err != nil {
		return nil, err
	}
	c := len(full) - len(ifaceParams)
	if c < 0 {
		return nil, fmt.Errorf("bytecode: call interface %q has more parameters than implementation %s", ifaceDesc, h)
	}
	return full[:c:c], nil
}

// ReturnType returns the handle's produced value type. For a new-init handle
// this is the constructed class, not the <init> descriptor's void return.
func (h Handle) ReturnType() (TypeDesc, error) {
	if h.Kind == InvokeNewInit {
		return TypeDesc{Raw: RefDesc(h.Ref.Owner), Kind: KindRef}, nil
	}
	_, ret, err := ParseMethodDesc(h.Ref.Desc)
	return ret, err
}
