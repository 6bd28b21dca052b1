package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method body.
func (m *Method) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", m.String()))
	sb.WriteString(fmt.Sprintf("; flags=0x%04X locals=%d stack=%d\n", uint16(m.Flags), m.MaxLocals, m.MaxStack))

	if m.Code == nil {
		sb.WriteString(";   <no code>\n")
		return sb.String()
	}

	// Pre-number instructions so branch targets can be printed as @N.
	index := make(map[*Instruction]int, m.Code.Len())
	i := 0
	for in := m.Code.Front(); in != nil; in = in.Next() {
		index[in] = i
		i++
	}

	for in := m.Code.Front(); in != nil; in = in.Next() {
		sb.WriteString(fmt.Sprintf("%4d: %s", index[in], in.String()))
		if in.Target != nil {
			if t, ok := index[in.Target]; ok {
				sb.WriteString(fmt.Sprintf(" @%d", t))
			} else {
				sb.WriteString(" @?")
			}
		}
		if in.Line > 0 {
			sb.WriteString(fmt.Sprintf("  ; line %d", in.Line))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// DisassembleClass returns listings for every method of the class.
func DisassembleClass(c *Class) string {
	var sb strings.Builder
	for i, m := range c.Methods {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Disassemble())
	}
	return sb.String()
}
