package optimizer

import (
	"fmt"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/closure"
)

// failureKind classifies why a matched call site cannot be rewritten.
type failureKind uint8

const (
	// failAccessCheck: the lookup or accessibility collaborator itself
	// failed, e.g. the implementation method's body is unavailable.
	failAccessCheck failureKind = iota
	// failIllegalAccess: lookup succeeded but the implementation method
	// is not visible from the rewrite site.
	failIllegalAccess
)

// matchFailure records why a call site must stay a dynamic dispatch.
type matchFailure struct {
	kind failureKind
	line int
}

// siteMatch is one invocation instruction that dispatches on a specific
// closure instance: either rewritable (failure nil) or annotated with the
// reason it must be left as a dynamic dispatch.
type siteMatch struct {
	invocation *bytecode.Instruction
	// stackHeight is the operand-stack height in units just before the
	// invocation, from the dataflow frame snapshot.
	stackHeight int
	// resolved is the implementation method body, set on success.
	resolved *bytecode.Method
	failure  *matchFailure
}

// matchCallSites finds every invocation in the site's method that is a call
// to exactly this closure's call-interface method on exactly this closure
// instance. "Exactly this instance" is established through the dataflow
// oracle, not assumed from descriptor equality.
func (p *ClosureCallPass) matchCallSites(site *closure.CreationSite) ([]siteMatch, error) {
	ifaceParams, _, err := bytecode.ParseMethodDesc(site.Iface.Desc)
	if err != nil {
		return nil, fmt.Errorf("optimizer: call interface %s: %w", site.Iface, err)
	}

	var matches []siteMatch
	for in := site.Method.Code.Front(); in != nil; in = in.Next() {
		if in.Op != bytecode.OpInvoke {
			continue
		}
		// A closure's call interface always dispatches on a receiver
		// instance, so a static call can never be one of its call
		// sites even when the name and descriptor coincide.
		if in.Invoke == bytecode.InvokeStatic {
			continue
		}
		// Exact match only: no subtype slack on the descriptor.
		if in.Ref.Name != site.Iface.Name || in.Ref.Desc != site.Iface.Desc {
			continue
		}

		// The receiver check needs the dataflow oracle, which is
		// expensive to build; it runs last, and the analyzer is only
		// constructed once a candidate survives the cheap checks.
		an, err := p.analyzerFor(site.Method)
		if err != nil {
			return nil, err
		}
		frame, ok := an.FrameAt(in)
		if !ok {
			// Unreachable candidate: nothing dispatches here.
			continue
		}
		recvIdx := frame.EntryCount() - len(ifaceParams) - 1
		if recvIdx < 0 {
			panic(fmt.Sprintf("optimizer: negative receiver index at %q in %s", in, site.Method))
		}
		recv := frame.Value(recvIdx)
		if recv.Producers.Cardinality() != 1 || !recv.Producers.ContainsOne(site.Insn) {
			continue
		}

		matches = append(matches, p.checkAccess(site, in, frame.UnitSize()))
	}
	return matches, nil
}

// checkAccess resolves the implementation method and re-checks its
// visibility at the rewrite site. The creation site necessarily had access
// already, but the two sites can differ in static context even within the
// same method, so the conservative re-check stays.
func (p *ClosureCallPass) checkAccess(site *closure.CreationSite, inv *bytecode.Instruction, height int) siteMatch {
	fail := func(kind failureKind) siteMatch {
		return siteMatch{
			invocation:  inv,
			stackHeight: height,
			failure:     &matchFailure{kind: kind, line: inv.Line},
		}
	}

	impl := site.Impl.Ref
	resolved, declaring, err := p.resolver.Resolve(impl.Owner, impl.Name, impl.Desc)
	if err != nil {
		return fail(failAccessCheck)
	}
	handleOwner, ok := p.resolver.ClassByName(impl.Owner)
	if !ok {
		return fail(failAccessCheck)
	}
	accessible, err := p.resolver.MemberAccessible(resolved.Flags, declaring, handleOwner, site.Owner)
	if err != nil {
		return fail(failAccessCheck)
	}
	if !accessible {
		return fail(failIllegalAccess)
	}
	return siteMatch{invocation: inv, stackHeight: height, resolved: resolved}
}
