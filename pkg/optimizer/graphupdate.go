package optimizer

import (
	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/callgraph"
	"github.com/chazu/vireo/pkg/closure"
)

// updateCallGraph replaces the call-graph entry of an erased invocation with
// one pointing at the implementation method the rewrite now calls directly.
//
// Captured values occupy the leading argument positions of the new call, so
// the erased invocation's per-argument facts shift up by the capture count
// before merging with the creation site's own captured-argument facts.
func (p *ClosureCallPass) updateCallGraph(site *closure.CreationSite, inv, call *bytecode.Instruction, resolved *bytecode.Method, stackHeight, capturedCount int) {
	old, _ := p.graph.Remove(inv, site.Method)

	merged := make(map[int]callgraph.ArgFacts, len(site.CapturedArgInfo)+capturedCount)
	for k, v := range site.CapturedArgInfo {
		merged[k] |= v
	}
	if old != nil {
		for k, v := range old.ArgInfo {
			merged[k+capturedCount] |= v
		}
	}
	// A non-static implementation's first capture is the receiver it was
	// bound to, which can only have been captured from a live instance:
	// it is statically known to be present. With zero captures the
	// receiver arrives as an ordinary interface argument and may be null.
	if site.Impl.Kind.BindsReceiver() && capturedCount > 0 {
		merged[0] |= callgraph.ArgNonNull
	}

	line := call.Line
	if old != nil && old.Line > 0 {
		line = old.Line
	}

	p.graph.Insert(&callgraph.Entry{
		Call:        call,
		Caller:      site.Method,
		Class:       site.Owner,
		Callee:      site.Impl.Ref,
		Kind:        call.Invoke,
		Resolved:    resolved,
		ArgInfo:     merged,
		StackHeight: stackHeight,
		Line:        line,
		// Inlining the body is safe when the whole program is being
		// optimized together, or the implementation belongs to the
		// unit currently being compiled.
		SafeToInline: p.cfg.GlobalInline || p.resolver.UnitIsLocal(site.Impl.Ref.Owner),
		// The callee is a concrete closure body, never an interface
		// default method; default-method rewriting must not touch it.
		NoDefaultRewrite: true,
	})
}
