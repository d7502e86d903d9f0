package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Assemble parses the textual program form produced by Disassemble.
// Each code record's address must equal the offset at which it is
// re-encoded, so a successful round trip reproduces the original code
// buffer and every jump target exactly.
func Assemble(text string) (*Program, error) {
	p := &Program{
		Version:   FormatVersion,
		Code:      make([]byte, 0, 256),
		Constants: make([]string, 0, 16),
		pending:   make(map[Slot]struct{}),
	}

	section := ""
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ".") {
			section = line
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		switch section {
		case ".meta":
			err = p.assembleMeta(key, value)
		case ".constants":
			err = p.assembleConstant(key, value)
		case ".code":
			err = p.assembleInstruction(key, value)
		default:
			err = fmt.Errorf("record outside of a section")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.rebuildConstantMap()
	return p, nil
}

func (p *Program) assembleMeta(key, value string) error {
	switch key {
	case "id":
		id, err := ulid.Parse(value)
		if err != nil {
			return fmt.Errorf("bad program id: %w", err)
		}
		p.ID = id
	case "filename", "dirname":
		s, err := strconv.Unquote(value)
		if err != nil {
			return fmt.Errorf("bad %s: %w", key, err)
		}
		if key == "filename" {
			p.Filename = s
		} else {
			p.Dirname = s
		}
	default:
		return fmt.Errorf("unknown metadata key %q", key)
	}
	return nil
}

func (p *Program) assembleConstant(key, value string) error {
	idx, err := strconv.Atoi(key)
	if err != nil {
		return fmt.Errorf("bad constant index %q", key)
	}
	if idx != len(p.Constants) {
		return fmt.Errorf("constant %d out of order (expected %d)", idx, len(p.Constants))
	}
	s, err := strconv.Unquote(value)
	if err != nil {
		return fmt.Errorf("bad constant literal: %w", err)
	}
	p.Constants = append(p.Constants, s)
	return nil
}

func (p *Program) assembleInstruction(key, value string) error {
	addr, err := strconv.Atoi(key)
	if err != nil {
		return fmt.Errorf("bad address %q", key)
	}
	if addr != len(p.Code) {
		return fmt.Errorf("address %d does not match encoded offset %d", addr, len(p.Code))
	}

	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	mnemonic, rest, _ := strings.Cut(value, " ")
	op, ok := LookupOpcode(mnemonic)
	if !ok {
		return fmt.Errorf("unknown opcode %q", mnemonic)
	}
	info, _ := GetOpcodeInfo(op)

	var fields []string
	if rest = strings.TrimSpace(rest); rest != "" {
		fields = strings.Split(rest, ",")
	}
	if len(fields) != len(info.Operands) {
		return fmt.Errorf("%s takes %d operands, got %d", op, len(info.Operands), len(fields))
	}

	p.Emit(op)
	for i, kind := range info.Operands {
		field := strings.TrimSpace(fields[i])
		switch kind {
		case OperandString:
			idx, err := strconv.ParseUint(strings.TrimPrefix(field, "#"), 10, 32)
			if err != nil {
				return fmt.Errorf("bad constant reference %q", field)
			}
			p.Code = binary.LittleEndian.AppendUint32(p.Code, uint32(idx))
		case OperandAddress:
			a, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return fmt.Errorf("bad address operand %q", field)
			}
			p.EmitAddress(a)
		case OperandNumber:
			f, err := strconv.ParseFloat(field, 64)
			if err != nil && !math.IsInf(f, 0) {
				return fmt.Errorf("bad number operand %q", field)
			}
			p.EmitNumber(f)
		case OperandInteger:
			n, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return fmt.Errorf("bad integer operand %q", field)
			}
			p.EmitInteger(int32(n))
		}
	}
	return nil
}
