// Package callgraph maintains the shared call-graph store: one entry per
// call instruction, keyed by the instruction's identity and its containing
// method. Many optimizer passes read and mutate the graph; mutation is
// serialized by a single coarse lock so that a scheduler may process
// independent methods concurrently.
package callgraph

import (
	"sort"
	"sync"

	"github.com/chazu/vireo/pkg/bytecode"
)

// ArgFacts is a bitset of statically known facts about one argument value at
// a call site.
type ArgFacts uint8

const (
	// ArgNonNull records that the argument can never be null.
	ArgNonNull ArgFacts = 1 << iota
	// ArgConstant records that the argument is a compile-time constant.
	ArgConstant
)

// Entry links one call instruction to its resolved callee and the metadata
// later inlining decisions consume.
type Entry struct {
	Call   *bytecode.Instruction
	Caller *bytecode.Method
	Class  *bytecode.Class // class containing the caller

	Callee bytecode.MemberRef
	Kind   bytecode.InvokeKind
	// Resolved is the callee's body when cross-method lookup succeeded,
	// nil otherwise.
	Resolved *bytecode.Method

	// ArgInfo maps argument position to known facts. Positions index the
	// values passed on the operand stack in order. For rewritten closure
	// calls the captured values, including a captured receiver, occupy
	// the leading positions.
	ArgInfo map[int]ArgFacts

	// StackHeight is the operand-stack height in units at the call.
	StackHeight int
	Line        int

	// SafeToInline is true when the callee's declaring unit permits
	// inlining its body into this caller.
	SafeToInline bool
	// NoDefaultRewrite marks entries whose callee must never be
	// redirected by interface-default-method rewriting.
	NoDefaultRewrite bool
}

// Graph is the call-graph store.
type Graph struct {
	mu      sync.Mutex
	entries map[*bytecode.Method]map[*bytecode.Instruction]*Entry
}

// New creates an empty call graph.
func New() *Graph {
	return &Graph{
		entries: make(map[*bytecode.Method]map[*bytecode.Instruction]*Entry),
	}
}

// Insert adds an entry, replacing any existing entry for the same call
// instruction.
func (g *Graph) Insert(e *Entry) {
	if e == nil || e.Call == nil || e.Caller == nil {
		panic("callgraph: Insert: entry missing call or caller")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	byInsn, ok := g.entries[e.Caller]
	if !ok {
		byInsn = make(map[*bytecode.Instruction]*Entry)
		g.entries[e.Caller] = byInsn
	}
	byInsn[e.Call] = e
}

// Remove deletes and returns the entry for the given call instruction.
// The second result is false when no entry exists.
func (g *Graph) Remove(call *bytecode.Instruction, caller *bytecode.Method) (*Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	byInsn, ok := g.entries[caller]
	if !ok {
		return nil, false
	}
	e, ok := byInsn[call]
	if !ok {
		return nil, false
	}
	delete(byInsn, call)
	if len(byInsn) == 0 {
		delete(g.entries, caller)
	}
	return e, true
}

// EntryFor returns the entry for the given call instruction, or nil.
func (g *Graph) EntryFor(call *bytecode.Instruction, caller *bytecode.Method) *Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if byInsn, ok := g.entries[caller]; ok {
		return byInsn[call]
	}
	return nil
}

// EntriesFor returns the entries for all call instructions of the method,
// ordered by instruction position for deterministic iteration.
func (g *Graph) EntriesFor(caller *bytecode.Method) []*Entry {
	g.mu.Lock()
	byInsn := g.entries[caller]
	out := make([]*Entry, 0, len(byInsn))
	for _, e := range byInsn {
		out = append(out, e)
	}
	g.mu.Unlock()

	if caller.HasCode() {
		sort.Slice(out, func(i, j int) bool {
			return caller.Code.IndexOf(out[i].Call) < caller.Code.IndexOf(out[j].Call)
		})
	}
	return out
}

// Len returns the total number of entries in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, byInsn := range g.entries {
		n += len(byInsn)
	}
	return n
}

// ScanMethod registers a bare entry for every invocation instruction in the
// method body. Stack heights and argument facts start empty; analyses fill
// them in later.
func (g *Graph) ScanMethod(c *bytecode.Class, m *bytecode.Method) {
	if !m.HasCode() {
		return
	}
	for in := m.Code.Front(); in != nil; in = in.Next() {
		if in.Op != bytecode.OpInvoke {
			continue
		}
		g.Insert(&Entry{
			Call:    in,
			Caller:  m,
			Class:   c,
			Callee:  in.Ref,
			Kind:    in.Invoke,
			ArgInfo: make(map[int]ArgFacts),
			Line:    in.Line,
		})
	}
}

// ScanClass registers entries for every method of the class.
func (g *Graph) ScanClass(c *bytecode.Class) {
	for _, m := range c.Methods {
		g.ScanMethod(c, m)
	}
}
