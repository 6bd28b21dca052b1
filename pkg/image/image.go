// Package image reads and writes compiled class images. An image is a CBOR
// document holding every class of a compilation unit; jump targets are
// stored as instruction indexes and restored to instruction identity on
// load. Encoding is canonical, so the same classes always produce the same
// bytes.
package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/vireo/pkg/bytecode"
)

// Version is the image format version this package reads and writes.
const Version byte = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type memberRec struct {
	Owner string `cbor:"1,keyasint"`
	Name  string `cbor:"2,keyasint"`
	Desc  string `cbor:"3,keyasint"`
}

type handleRec struct {
	Kind uint8     `cbor:"1,keyasint"`
	Ref  memberRec `cbor:"2,keyasint"`
}

type insnRec struct {
	Op     uint8      `cbor:"1,keyasint"`
	Kind   uint8      `cbor:"2,keyasint,omitempty"`
	Slot   int        `cbor:"3,keyasint,omitempty"`
	Value  int64      `cbor:"4,keyasint,omitempty"`
	Ref    *memberRec `cbor:"5,keyasint,omitempty"`
	Invoke uint8      `cbor:"6,keyasint,omitempty"`
	Type   string     `cbor:"7,keyasint,omitempty"`
	Iface  *memberRec `cbor:"8,keyasint,omitempty"`
	Impl   *handleRec `cbor:"9,keyasint,omitempty"`
	// Target is the index of the jump target in the method's instruction
	// list, or -1 when the instruction has none.
	Target int `cbor:"10,keyasint"`
	Line   int `cbor:"11,keyasint,omitempty"`
}

type methodRec struct {
	Name      string    `cbor:"1,keyasint"`
	Desc      string    `cbor:"2,keyasint"`
	Flags     uint16    `cbor:"3,keyasint"`
	Line      int       `cbor:"4,keyasint,omitempty"`
	MaxLocals int       `cbor:"5,keyasint,omitempty"`
	MaxStack  int       `cbor:"6,keyasint,omitempty"`
	NoCode    bool      `cbor:"7,keyasint,omitempty"`
	Code      []insnRec `cbor:"8,keyasint,omitempty"`
}

type classRec struct {
	Name       string      `cbor:"1,keyasint"`
	Super      string      `cbor:"2,keyasint,omitempty"`
	Interfaces []string    `cbor:"3,keyasint,omitempty"`
	Flags      uint16      `cbor:"4,keyasint"`
	Methods    []methodRec `cbor:"5,keyasint,omitempty"`
}

type imageRec struct {
	Version byte       `cbor:"1,keyasint"`
	Classes []classRec `cbor:"2,keyasint"`
}

// Marshal serializes the classes to canonical CBOR bytes.
func Marshal(classes []*bytecode.Class) ([]byte, error) {
	rec := imageRec{Version: Version, Classes: make([]classRec, 0, len(classes))}
	for _, c := range classes {
		cr, err := encodeClass(c)
		if err != nil {
			return nil, err
		}
		rec.Classes = append(rec.Classes, cr)
	}
	return cborEncMode.Marshal(&rec)
}

// Unmarshal deserializes classes from CBOR bytes.
func Unmarshal(data []byte) ([]*bytecode.Class, error) {
	var rec imageRec
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if rec.Version != Version {
		return nil, fmt.Errorf("image: unsupported format version %d (want %d)", rec.Version, Version)
	}
	classes := make([]*bytecode.Class, 0, len(rec.Classes))
	for _, cr := range rec.Classes {
		c, err := decodeClass(cr)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// WriteFile marshals the classes and writes them to path.
func WriteFile(path string, classes []*bytecode.Class) error {
	data, err := Marshal(classes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and unmarshals an image file.
func ReadFile(path string) ([]*bytecode.Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Unmarshal(data)
}

func encodeClass(c *bytecode.Class) (classRec, error) {
	cr := classRec{
		Name:       c.Name,
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Flags:      uint16(c.Flags),
		Methods:    make([]methodRec, 0, len(c.Methods)),
	}
	for _, m := range c.Methods {
		mr, err := encodeMethod(m)
		if err != nil {
			return classRec{}, fmt.Errorf("image: %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
		}
		cr.Methods = append(cr.Methods, mr)
	}
	return cr, nil
}

func encodeMethod(m *bytecode.Method) (methodRec, error) {
	mr := methodRec{
		Name:      m.Name,
		Desc:      m.Desc,
		Flags:     uint16(m.Flags),
		Line:      m.Line,
		MaxLocals: m.MaxLocals,
		MaxStack:  m.MaxStack,
	}
	if !m.HasCode() {
		mr.NoCode = true
		return mr, nil
	}

	index := make(map[*bytecode.Instruction]int, m.Code.Len())
	i := 0
	for in := m.Code.Front(); in != nil; in = in.Next() {
		index[in] = i
		i++
	}

	mr.Code = make([]insnRec, 0, m.Code.Len())
	for in := m.Code.Front(); in != nil; in = in.Next() {
		ir := insnRec{
			Op:     uint8(in.Op),
			Kind:   uint8(in.Kind),
			Slot:   in.Slot,
			Value:  in.Value,
			Invoke: uint8(in.Invoke),
			Type:   in.Type,
			Target: -1,
			Line:   in.Line,
		}
		if in.Ref != (bytecode.MemberRef{}) {
			ir.Ref = &memberRec{Owner: in.Ref.Owner, Name: in.Ref.Name, Desc: in.Ref.Desc}
		}
		if in.Iface != (bytecode.MemberRef{}) {
			ir.Iface = &memberRec{Owner: in.Iface.Owner, Name: in.Iface.Name, Desc: in.Iface.Desc}
		}
		if in.Impl.Ref != (bytecode.MemberRef{}) {
			ir.Impl = &handleRec{
				Kind: uint8(in.Impl.Kind),
				Ref:  memberRec{Owner: in.Impl.Ref.Owner, Name: in.Impl.Ref.Name, Desc: in.Impl.Ref.Desc},
			}
		}
		if in.Target != nil {
			ti, ok := index[in.Target]
			if !ok {
				return methodRec{}, fmt.Errorf("jump target not in instruction list")
			}
			ir.Target = ti
		}
		mr.Code = append(mr.Code, ir)
	}
	return mr, nil
}

func decodeClass(cr classRec) (*bytecode.Class, error) {
	c := bytecode.NewClass(cr.Name, cr.Super, bytecode.Flags(cr.Flags))
	c.Interfaces = cr.Interfaces
	for _, mr := range cr.Methods {
		m, err := decodeMethod(mr)
		if err != nil {
			return nil, fmt.Errorf("image: %s.%s%s: %w", cr.Name, mr.Name, mr.Desc, err)
		}
		c.AddMethod(m)
	}
	return c, nil
}

func decodeMethod(mr methodRec) (*bytecode.Method, error) {
	m := bytecode.NewMethod(mr.Name, mr.Desc, bytecode.Flags(mr.Flags))
	m.Line = mr.Line
	m.MaxLocals = mr.MaxLocals
	m.MaxStack = mr.MaxStack
	if mr.NoCode {
		m.Code = nil
		return m, nil
	}

	// First pass materializes every instruction so the second pass can
	// resolve target indexes to identities.
	insns := make([]*bytecode.Instruction, 0, len(mr.Code))
	for _, ir := range mr.Code {
		in := &bytecode.Instruction{
			Op:     bytecode.Opcode(ir.Op),
			Kind:   bytecode.ValueKind(ir.Kind),
			Slot:   ir.Slot,
			Value:  ir.Value,
			Invoke: bytecode.InvokeKind(ir.Invoke),
			Type:   ir.Type,
			Line:   ir.Line,
		}
		if ir.Ref != nil {
			in.Ref = bytecode.MemberRef{Owner: ir.Ref.Owner, Name: ir.Ref.Name, Desc: ir.Ref.Desc}
		}
		if ir.Iface != nil {
			in.Iface = bytecode.MemberRef{Owner: ir.Iface.Owner, Name: ir.Iface.Name, Desc: ir.Iface.Desc}
		}
		if ir.Impl != nil {
			in.Impl = bytecode.Handle{
				Kind: bytecode.InvokeKind(ir.Impl.Kind),
				Ref:  bytecode.MemberRef{Owner: ir.Impl.Ref.Owner, Name: ir.Impl.Ref.Name, Desc: ir.Impl.Ref.Desc},
			}
		}
		insns = append(insns, in)
		m.Code.PushBack(in)
	}
	for i, ir := range mr.Code {
		if ir.Target < 0 {
			continue
		}
		if ir.Target >= len(insns) {
			return nil, fmt.Errorf("instruction %d: target index %d out of range", i, ir.Target)
		}
		insns[i].Target = insns[ir.Target]
	}
	return m, nil
}
