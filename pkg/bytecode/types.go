package bytecode

import (
	"fmt"
	"strings"
)

// ValueKind classifies a value by its computational type.
// The kind fully determines stack and local-slot width.
type ValueKind uint8

const (
	KindVoid ValueKind = iota
	KindInt            // boolean, byte, char, short, int
	KindLong
	KindFloat
	KindDouble
	KindRef // class, interface, and array references
)

// String returns a human-readable name for the kind.
func (k ValueKind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Width returns the number of stack units (and local slots) a value of this
// kind occupies: 2 for the wide primitives, 1 otherwise, 0 for void.
func (k ValueKind) Width() int {
	switch k {
	case KindLong, KindDouble:
		return 2
	case KindVoid:
		return 0
	default:
		return 1
	}
}

// NeverDesc is the descriptor of the bottom type: the static result type of
// an expression that can never actually produce a value (a body that always
// throws or loops). Code following a call that returns Never is unreachable.
const NeverDesc = "Lvireo/lang/Never;"

// TypeDesc is a parsed field descriptor.
type TypeDesc struct {
	Raw  string    // descriptor text, e.g. "I", "J", "Lvireo/util/List;"
	Kind ValueKind // computational kind derived from the descriptor
}

// IsRef reports whether the descriptor denotes a reference type.
func (t TypeDesc) IsRef() bool {
	return t.Kind == KindRef
}

// IsNever reports whether the descriptor denotes the bottom type.
func (t TypeDesc) IsNever() bool {
	return t.Raw == NeverDesc
}

// Width returns the stack/local width of the described type.
func (t TypeDesc) Width() int {
	return t.Kind.Width()
}

// String returns the raw descriptor.
func (t TypeDesc) String() string {
	return t.Raw
}

// RefDesc returns the field descriptor for a class given its internal name.
func RefDesc(internalName string) string {
	return "L" + internalName + ";"
}

// ParseDesc parses a single field descriptor.
func ParseDesc(s string) (TypeDesc, error) {
	t, rest, err := parseDescPrefix(s)
	if err != nil {
		return TypeDesc{}, err
	}
	if rest != "" {
		return TypeDesc{}, fmt.Errorf("bytecode: trailing characters in descriptor %q", s)
	}
	return t, nil
}

// parseDescPrefix parses one field descriptor from the front of s and returns
// the remainder.
func parseDescPrefix(s string) (TypeDesc, string, error) {
	if s == "" {
		return TypeDesc{}, "", fmt.Errorf("bytecode: empty descriptor")
	}
	switch s[0] {
	case 'B', 'C', 'S', 'Z', 'I':
		return TypeDesc{Raw: s[:1], Kind: KindInt}, s[1:], nil
	case 'J':
		return TypeDesc{Raw: s[:1], Kind: KindLong}, s[1:], nil
	case 'F':
		return TypeDesc{Raw: s[:1], Kind: KindFloat}, s[1:], nil
	case 'D':
		return TypeDesc{Raw: s[:1], Kind: KindDouble}, s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return TypeDesc{}, "", fmt.Errorf("bytecode: unterminated class descriptor %q", s)
		}
		if end == 1 {
			return TypeDesc{}, "", fmt.Errorf("bytecode: empty class name in descriptor %q", s)
		}
		return TypeDesc{Raw: s[:end+1], Kind: KindRef}, s[end+1:], nil
	case '[':
		dims := 0
		for dims < len(s) && s[dims] == '[' {
			dims++
		}
		elem, rest, err := parseDescPrefix(s[dims:])
		if err != nil {
			return TypeDesc{}, "", fmt.Errorf("bytecode: bad array descriptor %q: %w", s, err)
		}
		raw := s[:dims] + elem.Raw
		return TypeDesc{Raw: raw, Kind: KindRef}, rest, nil
	default:
		return TypeDesc{}, "", fmt.Errorf("bytecode: unknown descriptor character %q in %q", s[0], s)
	}
}

// ParseMethodDesc parses a method descriptor into its parameter types and
// return type. A void return parses to a TypeDesc with KindVoid.
func ParseMethodDesc(desc string) (params []TypeDesc, ret TypeDesc, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, TypeDesc{}, fmt.Errorf("bytecode: malformed method descriptor %q", desc)
	}
	rest := desc[1:]
	for rest != "" && rest[0] != ')' {
		var t TypeDesc
		t, rest, err = parseDescPrefix(rest)
		if err != nil {
			return nil, TypeDesc{}, fmt.Errorf("bytecode: method descriptor %q: %w", desc, err)
		}
		params = append(params, t)
	}
	if rest == "" {
		return nil, TypeDesc{}, fmt.Errorf("bytecode: unterminated parameter list in %q", desc)
	}
	rest = rest[1:] // skip ')'
	if rest == "V" {
		return params, TypeDesc{Raw: "V", Kind: KindVoid}, nil
	}
	ret, err = ParseDesc(rest)
	if err != nil {
		return nil, TypeDesc{}, fmt.Errorf("bytecode: method descriptor %q: %w", desc, err)
	}
	return params, ret, nil
}

// ArgStackSize returns the total number of stack units occupied by the given
// parameter list, counting wide values as 2.
func ArgStackSize(params []TypeDesc) int {
	n := 0
	for _, p := range params {
		n += p.Width()
	}
	return n
}
