package bytecode

import "strings"

// Flags holds class and member access flags, using the conventional bit
// assignments.
type Flags uint16

const (
	AccPublic    Flags = 0x0001
	AccPrivate   Flags = 0x0002
	AccProtected Flags = 0x0004
	AccStatic    Flags = 0x0008
	AccFinal     Flags = 0x0010
	AccInterface Flags = 0x0200
	AccAbstract  Flags = 0x0400
	AccSynthetic Flags = 0x1000
)

// Method is one method body plus the mutable state optimizer passes share:
// the instruction sequence and the two high-water marks. A method without
// code (abstract, or resolved from a library index) has a nil Code list.
type Method struct {
	Name  string
	Desc  string
	Flags Flags
	Line  int // declaration line, 0 if unknown

	Code      *InsnList
	MaxLocals int // local-variable slots, counting wide values as 2
	MaxStack  int // operand-stack units, counting wide values as 2

	// Owner is set when the method is attached to a class.
	Owner *Class

	// reachOK caches whether a reachability analysis of Code is still
	// current. Passes that can introduce unreachable code clear it.
	reachOK bool
}

// NewMethod creates a method with an empty instruction list.
func NewMethod(name, desc string, flags Flags) *Method {
	return &Method{
		Name:  name,
		Desc:  desc,
		Flags: flags,
		Code:  NewInsnList(),
	}
}

// HasCode reports whether the method carries an instruction list.
func (m *Method) HasCode() bool { return m.Code != nil }

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool { return m.Flags&AccStatic != 0 }

// EnsureLocals raises MaxLocals to at least n. It never lowers the mark.
func (m *Method) EnsureLocals(n int) {
	if n > m.MaxLocals {
		m.MaxLocals = n
	}
}

// EnsureStack raises MaxStack to at least n units. It never lowers the mark.
func (m *Method) EnsureStack(n int) {
	if n > m.MaxStack {
		m.MaxStack = n
	}
}

// ReachabilityValid reports whether a prior reachability analysis of the
// method body is still current.
func (m *Method) ReachabilityValid() bool { return m.reachOK }

// MarkReachabilityValid records that reachability analysis is current.
func (m *Method) MarkReachabilityValid() { m.reachOK = true }

// InvalidateReachability marks any cached reachability analysis stale.
// Downstream cleanup passes must re-analyze before trusting liveness.
func (m *Method) InvalidateReachability() { m.reachOK = false }

// String returns owner.name + descriptor, or name + descriptor for a
// detached method.
func (m *Method) String() string {
	if m.Owner != nil {
		return m.Owner.Name + "." + m.Name + m.Desc
	}
	return m.Name + m.Desc
}

// Class groups methods under an internal class name.
type Class struct {
	Name       string // internal name, e.g. "vireo/demo/Main"
	Super      string // internal name of the superclass, "" for the root
	Interfaces []string
	Flags      Flags
	Methods    []*Method
}

// NewClass creates a class with no methods.
func NewClass(name, super string, flags Flags) *Class {
	return &Class{Name: name, Super: super, Flags: flags}
}

// AddMethod attaches a method to the class and returns it.
func (c *Class) AddMethod(m *Method) *Method {
	m.Owner = c
	c.Methods = append(c.Methods, m)
	return m
}

// Method returns the declared method with the given name and descriptor,
// or nil.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// Package returns the package prefix of the internal name, "" for the
// default package.
func (c *Class) Package() string {
	if i := strings.LastIndexByte(c.Name, '/'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// String returns the internal class name.
func (c *Class) String() string { return c.Name }
