// Package closure tracks closure creation sites: the instructions that
// materialize a closure instance, which method implements its body, and what
// values it captures. The registry feeds the optimizer's closure-call
// devirtualization.
package closure

import (
	"sort"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/callgraph"
)

// CreationSite describes one closure creation instruction.
type CreationSite struct {
	Owner  *bytecode.Class
	Method *bytecode.Method
	// Insn is the creation instruction itself (OpClosure).
	Insn *bytecode.Instruction

	// Iface is the call-interface method the closure exposes to callers.
	Iface bytecode.MemberRef
	// Impl is the handle of the method that executes the closure body.
	Impl bytecode.Handle

	// CapturedArgInfo carries statically known facts about the captured
	// values, indexed by capture position.
	CapturedArgInfo map[int]callgraph.ArgFacts
}

// CapturedTypes returns the static types of the values the creation
// instruction consumes, first capture first.
func (s *CreationSite) CapturedTypes() ([]bytecode.TypeDesc, error) {
	return s.Impl.CapturedTypes(s.Iface.Desc)
}

// Line returns the creation instruction's source line.
func (s *CreationSite) Line() int { return s.Insn.Line }

// Registry indexes creation sites by their containing method.
type Registry struct {
	byMethod map[*bytecode.Method][]*CreationSite
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMethod: make(map[*bytecode.Method][]*CreationSite)}
}

// Add records a creation site.
func (r *Registry) Add(s *CreationSite) {
	if s.Method == nil || s.Insn == nil {
		panic("closure: Add: site missing method or instruction")
	}
	r.byMethod[s.Method] = append(r.byMethod[s.Method], s)
}

// Scan registers a creation site for every OpClosure instruction in the
// class's methods.
func (r *Registry) Scan(c *bytecode.Class) {
	for _, m := range c.Methods {
		if !m.HasCode() {
			continue
		}
		for in := m.Code.Front(); in != nil; in = in.Next() {
			if in.Op != bytecode.OpClosure {
				continue
			}
			r.Add(&CreationSite{
				Owner:           c,
				Method:          m,
				Insn:            in,
				Iface:           in.Iface,
				Impl:            in.Impl,
				CapturedArgInfo: make(map[int]callgraph.ArgFacts),
			})
		}
	}
}

// Methods returns the methods holding at least one creation site, ordered by
// owning class name, method name, then method descriptor.
func (r *Registry) Methods() []*bytecode.Method {
	out := make([]*bytecode.Method, 0, len(r.byMethod))
	for m := range r.byMethod {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, bn := "", ""
		if a.Owner != nil {
			an = a.Owner.Name
		}
		if b.Owner != nil {
			bn = b.Owner.Name
		}
		if an != bn {
			return an < bn
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Desc < b.Desc
	})
	return out
}

// Sites returns the creation sites of a method, ordered by the creation
// instruction's position in the instruction stream.
func (r *Registry) Sites(m *bytecode.Method) []*CreationSite {
	sites := append([]*CreationSite(nil), r.byMethod[m]...)
	if m.HasCode() {
		sort.Slice(sites, func(i, j int) bool {
			return m.Code.IndexOf(sites[i].Insn) < m.Code.IndexOf(sites[j].Insn)
		})
	}
	return sites
}

// Len returns the total number of creation sites.
func (r *Registry) Len() int {
	n := 0
	for _, sites := range r.byMethod {
		n += len(sites)
	}
	return n
}
