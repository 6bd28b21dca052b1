package bytecode

import "fmt"

// Opcode identifies an instruction's operation.
type Opcode uint8

const (
	// Stack manipulation
	OpNop  Opcode = iota
	OpPop         // discard the top stack value
	OpDup         // duplicate the top stack value (narrow values only)
	OpSwap        // swap the top two stack values (narrow values only)

	// Constants
	OpConst      // push a constant of Kind; payload in Value
	OpAconstNull // push the null reference

	// Local variables
	OpLoad  // push local Slot of Kind
	OpStore // pop into local Slot of Kind

	// Objects
	OpNew       // allocate an uninitialized instance of Type
	OpCheckCast // narrow the top reference to Type

	// Calls and closures
	OpInvoke  // call Ref with shape Invoke
	OpClosure // materialize a closure: pops captures, pushes the instance

	// Control flow
	OpJump   // unconditional jump to Target
	OpBranch // pop an int condition, jump to Target if nonzero
	OpReturn // return a value of Kind (KindVoid for plain return)
	OpAthrow // pop a reference and throw it
)

// String returns the mnemonic for the opcode.
func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpPop:
		return "pop"
	case OpDup:
		return "dup"
	case OpSwap:
		return "swap"
	case OpConst:
		return "const"
	case OpAconstNull:
		return "aconst_null"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpNew:
		return "new"
	case OpCheckCast:
		return "checkcast"
	case OpInvoke:
		return "invoke"
	case OpClosure:
		return "closure"
	case OpJump:
		return "jump"
	case OpBranch:
		return "branch"
	case OpReturn:
		return "return"
	case OpAthrow:
		return "athrow"
	default:
		return fmt.Sprintf("Opcode(%d)", op)
	}
}

// Instruction is one bytecode instruction, linked into its method's InsnList.
// Operand fields are used per-opcode; unused fields stay zero.
type Instruction struct {
	Op     Opcode
	Kind   ValueKind  // OpConst, OpLoad, OpStore, OpReturn
	Slot   int        // OpLoad, OpStore
	Value  int64      // OpConst payload
	Ref    MemberRef  // OpInvoke
	Invoke InvokeKind // OpInvoke
	Type   string     // OpNew: internal class name; OpCheckCast: field descriptor
	Iface  MemberRef  // OpClosure: the call-interface method
	Impl   Handle     // OpClosure: the implementation handle
	Target *Instruction
	Line   int // 1-based source line, 0 if unknown

	prev, next *Instruction
	list       *InsnList
}

// Next returns the following instruction, or nil at the end of the list.
func (in *Instruction) Next() *Instruction { return in.next }

// Prev returns the preceding instruction, or nil at the front of the list.
func (in *Instruction) Prev() *Instruction { return in.prev }

// InList reports whether the instruction is currently linked into a list.
func (in *Instruction) InList() bool { return in.list != nil }

// At sets the instruction's source line and returns the instruction.
func (in *Instruction) At(line int) *Instruction {
	in.Line = line
	return in
}

// String returns a one-line rendering of the instruction.
func (in *Instruction) String() string {
	switch in.Op {
	case OpConst:
		return fmt.Sprintf("const.%s %d", in.Kind, in.Value)
	case OpLoad:
		return fmt.Sprintf("load.%s %d", in.Kind, in.Slot)
	case OpStore:
		return fmt.Sprintf("store.%s %d", in.Kind, in.Slot)
	case OpNew:
		return "new " + in.Type
	case OpCheckCast:
		return "checkcast " + in.Type
	case OpInvoke:
		return fmt.Sprintf("invoke.%s %s", in.Invoke, in.Ref)
	case OpClosure:
		return fmt.Sprintf("closure %s => %s", in.Iface, in.Impl)
	case OpReturn:
		if in.Kind == KindVoid {
			return "return"
		}
		return "return." + in.Kind.String()
	default:
		return in.Op.String()
	}
}

// Instruction constructors. These build detached nodes; link them with
// InsnList.PushBack, InsertBefore, or InsertAfter.

func Nop() *Instruction  { return &Instruction{Op: OpNop} }
func Pop() *Instruction  { return &Instruction{Op: OpPop} }
func Dup() *Instruction  { return &Instruction{Op: OpDup} }
func Swap() *Instruction { return &Instruction{Op: OpSwap} }

func Const(kind ValueKind, value int64) *Instruction {
	return &Instruction{Op: OpConst, Kind: kind, Value: value}
}

func Null() *Instruction { return &Instruction{Op: OpAconstNull} }

func Load(kind ValueKind, slot int) *Instruction {
	return &Instruction{Op: OpLoad, Kind: kind, Slot: slot}
}

func Store(kind ValueKind, slot int) *Instruction {
	return &Instruction{Op: OpStore, Kind: kind, Slot: slot}
}

func NewObject(internalName string) *Instruction {
	return &Instruction{Op: OpNew, Type: internalName}
}

func CheckCast(desc string) *Instruction {
	return &Instruction{Op: OpCheckCast, Type: desc}
}

func Invoke(kind InvokeKind, ref MemberRef) *Instruction {
	return &Instruction{Op: OpInvoke, Invoke: kind, Ref: ref}
}

func Closure(iface MemberRef, impl Handle) *Instruction {
	return &Instruction{Op: OpClosure, Iface: iface, Impl: impl}
}

func Jump(target *Instruction) *Instruction {
	return &Instruction{Op: OpJump, Target: target}
}

func Branch(target *Instruction) *Instruction {
	return &Instruction{Op: OpBranch, Target: target}
}

func Ret(kind ValueKind) *Instruction {
	return &Instruction{Op: OpReturn, Kind: kind}
}

func Throw() *Instruction { return &Instruction{Op: OpAthrow} }

// InsnList is an intrusive doubly linked instruction sequence with O(1)
// insertion and removal at any held instruction.
type InsnList struct {
	front, back *Instruction
	n           int
}

// NewInsnList creates an empty instruction list.
func NewInsnList() *InsnList {
	return &InsnList{}
}

// Front returns the first instruction, or nil if the list is empty.
func (l *InsnList) Front() *Instruction { return l.front }

// Back returns the last instruction, or nil if the list is empty.
func (l *InsnList) Back() *Instruction { return l.back }

// Len returns the number of instructions in the list.
func (l *InsnList) Len() int { return l.n }

// PushBack appends a detached instruction and returns it.
func (l *InsnList) PushBack(in *Instruction) *Instruction {
	l.checkDetached(in)
	in.prev = l.back
	in.next = nil
	if l.back != nil {
		l.back.next = in
	} else {
		l.front = in
	}
	l.back = in
	in.list = l
	l.n++
	return in
}

// InsertBefore links a detached instruction immediately before at.
func (l *InsnList) InsertBefore(in, at *Instruction) *Instruction {
	l.checkDetached(in)
	l.checkMember(at)
	in.prev = at.prev
	in.next = at
	if at.prev != nil {
		at.prev.next = in
	} else {
		l.front = in
	}
	at.prev = in
	in.list = l
	l.n++
	return in
}

// InsertAfter links a detached instruction immediately after at.
func (l *InsnList) InsertAfter(in, at *Instruction) *Instruction {
	l.checkDetached(in)
	l.checkMember(at)
	in.next = at.next
	in.prev = at
	if at.next != nil {
		at.next.prev = in
	} else {
		l.back = in
	}
	at.next = in
	in.list = l
	l.n++
	return in
}

// Remove unlinks an instruction from the list. The instruction keeps its
// operand fields and can be re-inserted. Branch targets pointing at the
// removed instruction are not rewritten; removing a branch target is the
// caller's responsibility.
func (l *InsnList) Remove(in *Instruction) {
	l.checkMember(in)
	if in.prev != nil {
		in.prev.next = in.next
	} else {
		l.front = in.next
	}
	if in.next != nil {
		in.next.prev = in.prev
	} else {
		l.back = in.prev
	}
	in.prev = nil
	in.next = nil
	in.list = nil
	l.n--
}

// IndexOf returns the zero-based position of the instruction in the list,
// or -1 if it is not a member. O(n).
func (l *InsnList) IndexOf(in *Instruction) int {
	if in == nil || in.list != l {
		return -1
	}
	i := 0
	for cur := l.front; cur != nil; cur = cur.next {
		if cur == in {
			return i
		}
		i++
	}
	return -1
}

// Instructions returns a snapshot slice of the current sequence. The slice
// stays valid across later list mutations; the membership of its elements
// may not.
func (l *InsnList) Instructions() []*Instruction {
	out := make([]*Instruction, 0, l.n)
	for cur := l.front; cur != nil; cur = cur.next {
		out = append(out, cur)
	}
	return out
}

func (l *InsnList) checkDetached(in *Instruction) {
	if in == nil {
		panic("bytecode: InsnList: nil instruction")
	}
	if in.list != nil {
		panic("bytecode: InsnList: instruction already linked")
	}
}

func (l *InsnList) checkMember(in *Instruction) {
	if in == nil {
		panic("bytecode: InsnList: nil anchor instruction")
	}
	if in.list != l {
		panic("bytecode: InsnList: anchor belongs to a different list")
	}
}
