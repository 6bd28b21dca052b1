package dataflow

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/chazu/vireo/pkg/bytecode"
)

// StackValue is one operand-stack entry: its computational kind and the set
// of instructions that can have pushed it. Producer sets are never mutated
// after construction; merging builds fresh unions.
type StackValue struct {
	Kind      bytecode.ValueKind
	Producers mapset.Set[*bytecode.Instruction]
}

// Width returns the number of stack units the entry occupies.
func (v StackValue) Width() int { return v.Kind.Width() }

// Frame is the operand-stack shape on entry to an instruction. Entries are
// indexed from the bottom of the stack; a wide value is a single entry of
// width 2.
type Frame struct {
	values []StackValue
}

// EntryCount returns the number of stack entries.
func (f *Frame) EntryCount() int { return len(f.values) }

// UnitSize returns the stack height in units, counting wide entries as 2.
func (f *Frame) UnitSize() int {
	n := 0
	for _, v := range f.values {
		n += v.Width()
	}
	return n
}

// Value returns the stack entry at the given index from the bottom.
// Panics if the index is out of range.
func (f *Frame) Value(i int) StackValue {
	if i < 0 || i >= len(f.values) {
		panic(fmt.Sprintf("dataflow: Frame.Value: index %d out of range [0,%d)", i, len(f.values)))
	}
	return f.values[i]
}

// Top returns the topmost stack entry. Panics on an empty frame.
func (f *Frame) Top() StackValue {
	return f.Value(len(f.values) - 1)
}

func (f *Frame) clone() *Frame {
	return &Frame{values: append([]StackValue(nil), f.values...)}
}

// Analyzer holds the per-instruction entry frames of one analyzed method.
type Analyzer struct {
	method      *bytecode.Method
	frames      map[*bytecode.Instruction]*Frame
	maxObserved int
}

// Analyze runs the stack analysis over the method body. It fails when the
// bytecode is malformed: stack underflow, kind mismatches, disagreeing stack
// shapes at a join point, or control falling off the end of the code.
func Analyze(m *bytecode.Method) (*Analyzer, error) {
	if !m.HasCode() {
		return nil, fmt.Errorf("dataflow: method %s has no code", m)
	}

	a := &Analyzer{
		method: m,
		frames: make(map[*bytecode.Instruction]*Frame, m.Code.Len()),
	}
	if m.Code.Len() == 0 {
		return a, nil
	}

	entry := m.Code.Front()
	a.frames[entry] = &Frame{}
	work := []*bytecode.Instruction{entry}

	for len(work) > 0 {
		in := work[len(work)-1]
		work = work[:len(work)-1]

		out, succs, err := step(in, a.frames[in])
		if err != nil {
			return nil, fmt.Errorf("dataflow: %s at %q: %w", m, in, err)
		}
		if u := out.UnitSize(); u > a.maxObserved {
			a.maxObserved = u
		}
		for _, succ := range succs {
			if succ == nil {
				return nil, fmt.Errorf("dataflow: %s: control falls off the end after %q", m, in)
			}
			changed, err := a.merge(succ, out)
			if err != nil {
				return nil, fmt.Errorf("dataflow: %s at %q: %w", m, succ, err)
			}
			if changed {
				work = append(work, succ)
			}
		}
	}

	return a, nil
}

// FrameAt returns the operand-stack frame on entry to the instruction.
// The second result is false for instructions the analysis never reached.
func (a *Analyzer) FrameAt(in *bytecode.Instruction) (*Frame, bool) {
	f, ok := a.frames[in]
	return f, ok
}

// MaxObservedStack returns the largest stack height in units seen anywhere
// during the analysis.
func (a *Analyzer) MaxObservedStack() int { return a.maxObserved }

// Method returns the analyzed method.
func (a *Analyzer) Method() *bytecode.Method { return a.method }

// merge folds an incoming frame into the recorded entry frame of in.
// Returns whether the recorded frame changed.
func (a *Analyzer) merge(in *bytecode.Instruction, incoming *Frame) (bool, error) {
	existing, ok := a.frames[in]
	if !ok {
		a.frames[in] = incoming.clone()
		return true, nil
	}
	if len(existing.values) != len(incoming.values) {
		return false, fmt.Errorf("stack shapes disagree at join: %d vs %d entries",
			len(existing.values), len(incoming.values))
	}
	changed := false
	for i := range existing.values {
		if existing.values[i].Kind != incoming.values[i].Kind {
			return false, fmt.Errorf("stack kinds disagree at join entry %d: %s vs %s",
				i, existing.values[i].Kind, incoming.values[i].Kind)
		}
		if incoming.values[i].Producers.IsSubset(existing.values[i].Producers) {
			continue
		}
		existing.values[i].Producers = existing.values[i].Producers.Union(incoming.values[i].Producers)
		changed = true
	}
	return changed, nil
}

// step executes one instruction symbolically, returning the outgoing frame
// and the control-flow successors.
func step(in *bytecode.Instruction, f *Frame) (*Frame, []*bytecode.Instruction, error) {
	out := f.clone()
	fall := []*bytecode.Instruction{in.Next()}

	push := func(kind bytecode.ValueKind) {
		out.values = append(out.values, StackValue{
			Kind:      kind,
			Producers: mapset.NewThreadUnsafeSet(in),
		})
	}
	pop := func() (StackValue, error) {
		if len(out.values) == 0 {
			return StackValue{}, fmt.Errorf("stack underflow")
		}
		v := out.values[len(out.values)-1]
		out.values = out.values[:len(out.values)-1]
		return v, nil
	}
	popKind := func(kind bytecode.ValueKind) error {
		v, err := pop()
		if err != nil {
			return err
		}
		if v.Kind != kind {
			return fmt.Errorf("expected %s on stack, found %s", kind, v.Kind)
		}
		return nil
	}

	switch in.Op {
	case bytecode.OpNop:

	case bytecode.OpPop:
		if _, err := pop(); err != nil {
			return nil, nil, err
		}

	case bytecode.OpDup:
		if len(out.values) == 0 {
			return nil, nil, fmt.Errorf("stack underflow")
		}
		top := out.values[len(out.values)-1]
		if top.Width() != 1 {
			return nil, nil, fmt.Errorf("dup of wide value")
		}
		out.values = append(out.values, top)

	case bytecode.OpSwap:
		if len(out.values) < 2 {
			return nil, nil, fmt.Errorf("stack underflow")
		}
		i, j := len(out.values)-1, len(out.values)-2
		if out.values[i].Width() != 1 || out.values[j].Width() != 1 {
			return nil, nil, fmt.Errorf("swap of wide value")
		}
		out.values[i], out.values[j] = out.values[j], out.values[i]

	case bytecode.OpConst:
		if in.Kind == bytecode.KindVoid {
			return nil, nil, fmt.Errorf("const of void")
		}
		push(in.Kind)

	case bytecode.OpAconstNull:
		push(bytecode.KindRef)

	case bytecode.OpLoad:
		push(in.Kind)

	case bytecode.OpStore:
		if err := popKind(in.Kind); err != nil {
			return nil, nil, err
		}

	case bytecode.OpNew:
		push(bytecode.KindRef)

	case bytecode.OpCheckCast:
		// A cast narrows the type of the value in place; it does not
		// produce a new value, so producers pass through.
		if len(out.values) == 0 {
			return nil, nil, fmt.Errorf("stack underflow")
		}
		if out.values[len(out.values)-1].Kind != bytecode.KindRef {
			return nil, nil, fmt.Errorf("checkcast of non-reference")
		}

	case bytecode.OpInvoke:
		params, ret, err := bytecode.ParseMethodDesc(in.Ref.Desc)
		if err != nil {
			return nil, nil, err
		}
		for i := len(params) - 1; i >= 0; i-- {
			if err := popKind(params[i].Kind); err != nil {
				return nil, nil, fmt.Errorf("argument %d of %s: %w", i, in.Ref, err)
			}
		}
		switch in.Invoke {
		case bytecode.InvokeVirtual, bytecode.InvokeSpecial, bytecode.InvokeInterface:
			if err := popKind(bytecode.KindRef); err != nil {
				return nil, nil, fmt.Errorf("receiver of %s: %w", in.Ref, err)
			}
		case bytecode.InvokeStatic:
		case bytecode.InvokeNewInit:
			return nil, nil, fmt.Errorf("new-init is a handle kind, not an invocation shape")
		default:
			panic(fmt.Sprintf("dataflow: unknown invoke kind %d", in.Invoke))
		}
		if ret.Kind != bytecode.KindVoid {
			push(ret.Kind)
		}

	case bytecode.OpClosure:
		captured, err := in.Impl.CapturedTypes(in.Iface.Desc)
		if err != nil {
			return nil, nil, err
		}
		for i := len(captured) - 1; i >= 0; i-- {
			if err := popKind(captured[i].Kind); err != nil {
				return nil, nil, fmt.Errorf("capture %d of %s: %w", i, in.Impl, err)
			}
		}
		push(bytecode.KindRef)

	case bytecode.OpJump:
		return out, []*bytecode.Instruction{in.Target}, nil

	case bytecode.OpBranch:
		if err := popKind(bytecode.KindInt); err != nil {
			return nil, nil, err
		}
		return out, []*bytecode.Instruction{in.Next(), in.Target}, nil

	case bytecode.OpReturn:
		if in.Kind != bytecode.KindVoid {
			if err := popKind(in.Kind); err != nil {
				return nil, nil, err
			}
		}
		return out, nil, nil

	case bytecode.OpAthrow:
		if err := popKind(bytecode.KindRef); err != nil {
			return nil, nil, err
		}
		return out, nil, nil

	default:
		panic(fmt.Sprintf("dataflow: unknown opcode %d", in.Op))
	}

	return out, fall, nil
}
