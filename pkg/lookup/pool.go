// Package lookup resolves method bodies across classes and answers
// accessibility questions. Program classes (the unit being compiled) are held
// in memory; library classes can additionally be served from an on-disk
// SQLite index of member metadata.
package lookup

import (
	"errors"
	"fmt"

	"github.com/chazu/vireo/pkg/bytecode"
)

// ErrNotFound reports that a class or member could not be resolved.
var ErrNotFound = errors.New("lookup: not found")

// Pool resolves members against the program classes and, when configured,
// a library index. Program classes take precedence.
type Pool struct {
	program map[string]*bytecode.Class
	lib     *LibIndex
	// libCache holds classes synthesized from the library index, so that
	// repeated hierarchy walks do not re-query the database.
	libCache map[string]*bytecode.Class
}

// NewPool creates a pool over the given program classes.
func NewPool(classes ...*bytecode.Class) *Pool {
	p := &Pool{
		program:  make(map[string]*bytecode.Class, len(classes)),
		libCache: make(map[string]*bytecode.Class),
	}
	for _, c := range classes {
		p.Add(c)
	}
	return p
}

// Add registers a program class.
func (p *Pool) Add(c *bytecode.Class) {
	p.program[c.Name] = c
}

// SetLibIndex attaches a library index consulted for classes outside the
// program.
func (p *Pool) SetLibIndex(ix *LibIndex) {
	p.lib = ix
}

// UnitIsLocal reports whether the class belongs to the unit currently being
// compiled, as opposed to a precompiled library.
func (p *Pool) UnitIsLocal(owner string) bool {
	_, ok := p.program[owner]
	return ok
}

// ClassByName returns the class with the given internal name: a program
// class, or one synthesized from the library index (metadata only, no code).
func (p *Pool) ClassByName(name string) (*bytecode.Class, bool) {
	if c, ok := p.program[name]; ok {
		return c, true
	}
	if c, ok := p.libCache[name]; ok {
		return c, true
	}
	if p.lib == nil {
		return nil, false
	}
	super, flags, ok, err := p.lib.Class(name)
	if err != nil || !ok {
		return nil, false
	}
	c := bytecode.NewClass(name, super, flags)
	p.libCache[name] = c
	return c, true
}

// Resolve finds the body of owner.name+desc, walking up the superclass
// chain. For library classes the returned method carries flags but no code.
// Errors wrap ErrNotFound when the class or member does not exist.
func (p *Pool) Resolve(owner, name, desc string) (*bytecode.Method, *bytecode.Class, error) {
	c, ok := p.ClassByName(owner)
	if !ok {
		return nil, nil, fmt.Errorf("%w: class %s", ErrNotFound, owner)
	}
	for c != nil {
		if m := p.declaredMethod(c, name, desc); m != nil {
			return m, c, nil
		}
		if c.Super == "" {
			break
		}
		sup, ok := p.ClassByName(c.Super)
		if !ok {
			return nil, nil, fmt.Errorf("%w: superclass %s of %s", ErrNotFound, c.Super, c.Name)
		}
		c = sup
	}
	return nil, nil, fmt.Errorf("%w: method %s.%s%s", ErrNotFound, owner, name, desc)
}

// declaredMethod finds a method declared directly on c, consulting the
// library index for synthesized classes.
func (p *Pool) declaredMethod(c *bytecode.Class, name, desc string) *bytecode.Method {
	if m := c.Method(name, desc); m != nil {
		return m
	}
	// Program classes declare all their methods in memory.
	if p.UnitIsLocal(c.Name) || p.lib == nil {
		return nil
	}
	flags, ok, err := p.lib.Member(c.Name, name, desc)
	if err != nil || !ok {
		return nil
	}
	m := &bytecode.Method{Name: name, Desc: desc, Flags: flags}
	c.AddMethod(m) // cache on the synthesized class
	return m
}

// MemberAccessible reports whether a member with the given flags, declared
// in declaring and reached through handleOwner, is visible from code in
// context. The hierarchy is consulted for protected access; an error means
// the question could not be answered (broken superclass chain), which
// callers must treat as a lookup failure rather than a verdict.
func (p *Pool) MemberAccessible(flags bytecode.Flags, declaring, handleOwner, context *bytecode.Class) (bool, error) {
	if declaring == nil || context == nil {
		return false, fmt.Errorf("lookup: accessibility check with missing class")
	}
	switch {
	case flags&bytecode.AccPublic != 0:
		return true, nil
	case flags&bytecode.AccPrivate != 0:
		return declaring.Name == context.Name, nil
	case flags&bytecode.AccProtected != 0:
		if declaring.Package() == context.Package() {
			return true, nil
		}
		return p.isSubclassOf(context, declaring.Name)
	default: // package-private
		return declaring.Package() == context.Package(), nil
	}
}

// isSubclassOf walks context's superclass chain looking for ancestor.
func (p *Pool) isSubclassOf(context *bytecode.Class, ancestor string) (bool, error) {
	c := context
	for {
		if c.Name == ancestor {
			return true, nil
		}
		if c.Super == "" {
			return false, nil
		}
		sup, ok := p.ClassByName(c.Super)
		if !ok {
			return false, fmt.Errorf("%w: superclass %s of %s", ErrNotFound, c.Super, c.Name)
		}
		c = sup
	}
}
