package optimizer

import (
	"fmt"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/callgraph"
	"github.com/chazu/vireo/pkg/closure"
	"github.com/chazu/vireo/pkg/dataflow"
)

// Resolver abstracts cross-method lookup and accessibility checking.
// lookup.Pool is the production implementation.
type Resolver interface {
	// Resolve returns the body and declaring class of owner.name+desc.
	Resolve(owner, name, desc string) (*bytecode.Method, *bytecode.Class, error)
	// ClassByName returns the class with the given internal name.
	ClassByName(name string) (*bytecode.Class, bool)
	// UnitIsLocal reports whether the class is part of the unit
	// currently being compiled.
	UnitIsLocal(owner string) bool
	// MemberAccessible reports whether a member with the given flags,
	// declared in declaring and reached through handleOwner, is visible
	// from context.
	MemberAccessible(flags bytecode.Flags, declaring, handleOwner, context *bytecode.Class) (bool, error)
}

// Reporter receives non-fatal per-call-site warnings.
type Reporter interface {
	Warnf(line int, format string, args ...any)
}

// Config carries the pass's tuning knobs.
type Config struct {
	// GlobalInline marks every rewritten callee safe to inline,
	// regardless of which unit declares it.
	GlobalInline bool
}

// ClosureCallPass rewrites invocations of closures created in the same
// method body into direct calls to their implementation methods.
type ClosureCallPass struct {
	registry *closure.Registry
	graph    *callgraph.Graph
	resolver Resolver
	diags    Reporter
	cfg      Config

	// analyzers memoizes one dataflow analysis per method. An entry is
	// dropped whenever the method's instruction stream is rewritten, so
	// later creation sites in the same method see fresh frames.
	analyzers map[*bytecode.Method]*dataflow.Analyzer
}

// NewClosureCallPass assembles the pass from its collaborators.
func NewClosureCallPass(reg *closure.Registry, graph *callgraph.Graph, resolver Resolver, diags Reporter, cfg Config) *ClosureCallPass {
	return &ClosureCallPass{
		registry:  reg,
		graph:     graph,
		resolver:  resolver,
		diags:     diags,
		cfg:       cfg,
		analyzers: make(map[*bytecode.Method]*dataflow.Analyzer),
	}
}

// Run processes every registered creation site and returns the number of
// call sites rewritten. Methods are visited in a fixed order (owning class
// name, method name, method descriptor) and sites within a method in
// instruction-stream order, so diagnostics and allocated slot indices are
// reproducible run to run.
func (p *ClosureCallPass) Run() (int, error) {
	total := 0
	for _, m := range p.registry.Methods() {
		n, err := p.runMethod(m)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *ClosureCallPass) runMethod(m *bytecode.Method) (int, error) {
	if !m.HasCode() {
		return 0, nil
	}
	rewritten := 0
	for _, site := range p.registry.Sites(m) {
		matches, err := p.matchCallSites(site)
		if err != nil {
			return rewritten, err
		}

		var ok []siteMatch
		for _, mt := range matches {
			if mt.failure != nil {
				p.warn(site, mt)
				continue
			}
			ok = append(ok, mt)
		}
		if len(ok) == 0 {
			continue
		}

		// Slots are allocated once per creation site and shared by
		// every matched call site: all of them necessarily go through
		// the same call-interface descriptor.
		captured, args, err := allocateLocals(site)
		if err != nil {
			return rewritten, fmt.Errorf("optimizer: %s: %w", site.Method, err)
		}
		externalizeCaptures(m, site.Insn, captured)

		for _, mt := range ok {
			call := p.rewriteCallSite(site, mt, captured, args)
			p.updateCallGraph(site, mt.invocation, call, mt.resolved,
				mt.stackHeight+captured.StackSize()-1, len(captured))
			rewritten++
		}

		// The rewrite can leave genuinely unreachable code behind
		// (bottom-typed returns); downstream cleanup must re-analyze.
		m.InvalidateReachability()
		delete(p.analyzers, m)
	}
	return rewritten, nil
}

// analyzerFor returns the memoized dataflow analysis for the method,
// building it on first use.
func (p *ClosureCallPass) analyzerFor(m *bytecode.Method) (*dataflow.Analyzer, error) {
	if an, ok := p.analyzers[m]; ok {
		return an, nil
	}
	an, err := dataflow.Analyze(m)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %s: %w", m, err)
	}
	p.analyzers[m] = an
	return an, nil
}

func (p *ClosureCallPass) warn(site *closure.CreationSite, mt siteMatch) {
	owner := "?"
	if site.Owner != nil {
		owner = site.Owner.Name
	}
	switch mt.failure.kind {
	case failAccessCheck:
		p.diags.Warnf(mt.failure.line,
			"cannot verify access to closure implementation %s from class %s; call left as dynamic dispatch",
			site.Impl.Ref, owner)
	case failIllegalAccess:
		p.diags.Warnf(mt.failure.line,
			"closure implementation %s is not accessible from class %s; call left as dynamic dispatch",
			site.Impl.Ref, owner)
	default:
		panic(fmt.Sprintf("optimizer: unknown failure kind %d", mt.failure.kind))
	}
}
