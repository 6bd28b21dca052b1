package optimizer

import (
	"fmt"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/closure"
)

// externalizeCaptures spills the operand-stack values the creation
// instruction consumes into the captured-value locals and immediately
// reloads them, so the creation instruction itself runs unchanged while the
// captured values become available in locals for every rewritten call site.
//
// Runs once per creation site, before any call-site rewrite. Store order is
// last list entry first: the top of the stack is the last capture, and the
// bottom-most value must land in the first list entry so it reloads first.
func externalizeCaptures(m *bytecode.Method, creation *bytecode.Instruction, captured LocalsList) {
	line := creation.Line
	for i := len(captured) - 1; i >= 0; i-- {
		m.Code.InsertBefore(bytecode.Store(captured[i].Kind, captured[i].Slot).At(line), creation)
	}
	for _, lc := range captured {
		m.Code.InsertBefore(bytecode.Load(lc.Kind, lc.Slot).At(line), creation)
	}
}

// rewriteCallSite replaces one matched invocation with a direct call to the
// closure's implementation method, returning the emitted call instruction.
//
// The operand stack at the invocation is [closure, arg1..argN]; the rewrite
// spills the arguments, pops the closure instance, reloads captures then
// arguments, and calls the implementation directly.
func (p *ClosureCallPass) rewriteCallSite(site *closure.CreationSite, match siteMatch, captured, args LocalsList) *bytecode.Instruction {
	m := site.Method
	code := m.Code
	inv := match.invocation
	line := inv.Line

	// Spill the call-interface arguments, top of stack first.
	for i := len(args) - 1; i >= 0; i-- {
		code.InsertBefore(bytecode.Store(args[i].Kind, args[i].Slot).At(line), inv)
	}

	// Discard the closure instance.
	code.InsertBefore(bytecode.Pop().At(line), inv)

	// A constructor-style implementation needs its receiver allocated
	// beneath the reloaded operands.
	if site.Impl.Kind == bytecode.InvokeNewInit {
		code.InsertBefore(bytecode.NewObject(site.Impl.Ref.Owner).At(line), inv)
		code.InsertBefore(bytecode.Dup().At(line), inv)
	}

	// Reload captures, then arguments, in list order. Argument slots whose
	// interface type differs from the implementation's parameter type are
	// narrowed as they load.
	for _, lc := range captured {
		code.InsertBefore(bytecode.Load(lc.Kind, lc.Slot).At(line), inv)
	}
	for _, lc := range args {
		code.InsertBefore(bytecode.Load(lc.Kind, lc.Slot).At(line), inv)
		if lc.Cast != nil {
			code.InsertBefore(bytecode.CheckCast(lc.Cast.Raw).At(line), inv)
		}
	}

	call := code.InsertBefore(directCall(site.Impl).At(line), inv)

	// A bottom-typed implementation can never return; everything after the
	// call is unreachable, but the instruction stream must still have a
	// well-typed ending on this path. Throwing a null keeps the stack shape
	// closed, the same fix used for other loaded-absent-value cases.
	ret, err := site.Impl.ReturnType()
	if err != nil {
		panic(fmt.Sprintf("optimizer: implementation handle %s: %v", site.Impl, err))
	}
	if ret.IsNever() {
		null := code.InsertAfter(bytecode.Null().At(line), call)
		code.InsertAfter(bytecode.Throw().At(line), null)
		// The null sits one unit above the call's result, on top of
		// whatever the stack held beneath the erased receiver.
		m.EnsureStack(match.stackHeight - args.StackSize() + 1)
	}

	code.Remove(inv)

	// Peak stack at the rewritten site: the original height, minus the
	// popped receiver, plus the reloaded captures (the spilled arguments
	// come back to their original units). A constructor implementation
	// additionally holds the allocated-and-duplicated instance.
	peak := match.stackHeight + captured.StackSize() - 1
	if site.Impl.Kind == bytecode.InvokeNewInit {
		peak += 2
	}
	m.EnsureStack(peak)

	return call
}

// directCall builds the call instruction for an implementation handle,
// choosing the variant its kind requires.
func directCall(h bytecode.Handle) *bytecode.Instruction {
	switch h.Kind {
	case bytecode.InvokeVirtual:
		return bytecode.Invoke(bytecode.InvokeVirtual, h.Ref)
	case bytecode.InvokeStatic:
		return bytecode.Invoke(bytecode.InvokeStatic, h.Ref)
	case bytecode.InvokeSpecial:
		return bytecode.Invoke(bytecode.InvokeSpecial, h.Ref)
	case bytecode.InvokeInterface:
		return bytecode.Invoke(bytecode.InvokeInterface, h.Ref)
	case bytecode.InvokeNewInit:
		// The allocation and duplication are emitted by the rewrite;
		// the call itself runs <init> non-virtually.
		return bytecode.Invoke(bytecode.InvokeSpecial, h.Ref)
	default:
		panic(fmt.Sprintf("optimizer: unknown implementation kind %d", h.Kind))
	}
}
