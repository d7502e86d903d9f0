package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns the textual form of the program: a metadata section,
// the constant pool, and one `address: OPCODE operand, operand` record per
// instruction. Assemble parses the same form back.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; neojs program v%d\n", p.Version))
	sb.WriteString(".meta\n")
	sb.WriteString(fmt.Sprintf("id: %s\n", p.ID.String()))
	sb.WriteString(fmt.Sprintf("filename: %s\n", strconv.Quote(p.Filename)))
	sb.WriteString(fmt.Sprintf("dirname: %s\n", strconv.Quote(p.Dirname)))

	sb.WriteString(".constants\n")
	for i, s := range p.Constants {
		sb.WriteString(fmt.Sprintf("%d: %s\n", i, strconv.Quote(s)))
	}

	sb.WriteString(".code\n")
	for offset := 0; offset < len(p.Code); {
		in, err := p.Decode(offset)
		if err != nil {
			sb.WriteString(fmt.Sprintf("; error: %v\n", err))
			break
		}
		sb.WriteString(p.FormatInstruction(in))
		sb.WriteString("\n")
		offset += in.Len()
	}
	return sb.String()
}

// FormatInstruction formats one decoded instruction as a code record.
func (p *Program) FormatInstruction(in Instruction) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d: %s", in.Offset, in.Op))

	var comments []string
	for i, operand := range in.Operands {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		switch operand.Kind {
		case OperandString:
			sb.WriteString(fmt.Sprintf("#%d", operand.Index))
			if s, ok := p.Constant(operand.Index); ok {
				comments = append(comments, strconv.Quote(truncate(s, 32)))
			}
		case OperandAddress:
			sb.WriteString(strconv.FormatUint(operand.Address, 10))
		case OperandNumber:
			sb.WriteString(strconv.FormatFloat(operand.Number, 'g', -1, 64))
		case OperandInteger:
			sb.WriteString(strconv.FormatInt(int64(operand.Integer), 10))
		}
	}
	if len(comments) > 0 {
		sb.WriteString(" ; ")
		sb.WriteString(strings.Join(comments, " "))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
