package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"

	"github.com/joomcode/errorx"
	"github.com/oklog/ulid/v2"
)

// FormatVersion is the current program format version.
// Increment when making incompatible changes to the encoding.
const FormatVersion uint16 = 1

// Unpatched is the placeholder written into a reserved address slot.
// A program containing it is incomplete.
const Unpatched uint64 = math.MaxUint64

// Slot is the byte offset of a reserved address operand.
type Slot int

// Program is a compiled unit: an append-only instruction buffer plus a
// deduplicated constant pool. Function bodies live in the same buffer and
// are entered by address.
type Program struct {
	ID       ulid.ULID
	Version  uint16
	Filename string
	Dirname  string

	// Code section: records of a u16 opcode followed by fixed-width operands.
	Code []byte

	// Constant pool, referenced by u32 index.
	Constants []string

	constantMap map[string]uint32
	pending     map[Slot]struct{}
}

// NewProgram creates an empty program for the named source file.
func NewProgram(filename string) *Program {
	dir := ""
	if filename != "" {
		dir = filepath.Dir(filename)
	}
	return &Program{
		ID:          ulid.Make(),
		Version:     FormatVersion,
		Filename:    filename,
		Dirname:     dir,
		Code:        make([]byte, 0, 256),
		Constants:   make([]string, 0, 16),
		constantMap: make(map[string]uint32),
		pending:     make(map[Slot]struct{}),
	}
}

// AddConstant adds a string constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (p *Program) AddConstant(value string) uint32 {
	if p.constantMap == nil {
		p.rebuildConstantMap()
	}
	if idx, ok := p.constantMap[value]; ok {
		return idx
	}
	idx := uint32(len(p.Constants))
	p.Constants = append(p.Constants, value)
	p.constantMap[value] = idx
	return idx
}

func (p *Program) rebuildConstantMap() {
	p.constantMap = make(map[string]uint32, len(p.Constants))
	for i, s := range p.Constants {
		if _, ok := p.constantMap[s]; !ok {
			p.constantMap[s] = uint32(i)
		}
	}
}

// Constant returns the constant at the given index.
func (p *Program) Constant(index uint32) (string, bool) {
	if int(index) >= len(p.Constants) {
		return "", false
	}
	return p.Constants[index], true
}

// Emit appends an opcode and returns its offset.
func (p *Program) Emit(op Opcode) int {
	offset := len(p.Code)
	p.Code = binary.LittleEndian.AppendUint16(p.Code, uint16(op))
	return offset
}

// EmitString appends a constant-pool reference to value.
func (p *Program) EmitString(value string) {
	p.Code = binary.LittleEndian.AppendUint32(p.Code, p.AddConstant(value))
}

// EmitAddress appends an absolute address operand.
func (p *Program) EmitAddress(addr uint64) {
	p.Code = binary.LittleEndian.AppendUint64(p.Code, addr)
}

// EmitNumber appends a double operand.
func (p *Program) EmitNumber(value float64) {
	p.Code = binary.LittleEndian.AppendUint64(p.Code, math.Float64bits(value))
}

// EmitInteger appends a signed 32-bit operand.
func (p *Program) EmitInteger(value int32) {
	p.Code = binary.LittleEndian.AppendUint32(p.Code, uint32(value))
}

// Reserve appends a placeholder address operand and returns its slot.
// The slot must be patched exactly once with SetCurrent or SetAddress.
func (p *Program) Reserve() Slot {
	if p.pending == nil {
		p.pending = make(map[Slot]struct{})
	}
	slot := Slot(len(p.Code))
	p.EmitAddress(Unpatched)
	p.pending[slot] = struct{}{}
	return slot
}

// SetCurrent patches a reserved slot to the current write position.
func (p *Program) SetCurrent(slot Slot) {
	p.SetAddress(slot, uint64(len(p.Code)))
}

// SetAddress patches a reserved slot to target. Patching a slot that was
// never reserved, or patching twice, is a code generator bug.
func (p *Program) SetAddress(slot Slot, target uint64) {
	if _, ok := p.pending[slot]; !ok {
		errorx.Panic(errorx.IllegalState.New("address slot %d is not reserved or was already patched", slot))
	}
	if target == Unpatched {
		errorx.Panic(errorx.IllegalArgument.New("address slot %d patched with the placeholder value", slot))
	}
	delete(p.pending, slot)
	binary.LittleEndian.PutUint64(p.Code[int(slot):], target)
}

// Current returns the current write position.
func (p *Program) Current() uint64 {
	return uint64(len(p.Code))
}

// Pending returns the number of reserved slots not yet patched.
func (p *Program) Pending() int {
	return len(p.pending)
}

// ReadOpcode decodes the opcode at offset.
func (p *Program) ReadOpcode(offset int) Opcode {
	return Opcode(binary.LittleEndian.Uint16(p.Code[offset:]))
}

// ReadString decodes a constant reference at offset.
func (p *Program) ReadString(offset int) string {
	return p.Constants[binary.LittleEndian.Uint32(p.Code[offset:])]
}

// ReadAddress decodes an address operand at offset.
func (p *Program) ReadAddress(offset int) uint64 {
	return binary.LittleEndian.Uint64(p.Code[offset:])
}

// ReadNumber decodes a double operand at offset.
func (p *Program) ReadNumber(offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p.Code[offset:]))
}

// ReadInteger decodes an i32 operand at offset.
func (p *Program) ReadInteger(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(p.Code[offset:]))
}

// Operand is one decoded instruction operand. Only the field matching
// Kind is meaningful.
type Operand struct {
	Kind    OperandKind
	Index   uint32
	Address uint64
	Number  float64
	Integer int32
}

// Instruction is a decoded instruction record.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []Operand
}

// Len returns the encoded length of the instruction.
func (in Instruction) Len() int {
	return in.Op.InstructionLen()
}

// Decode decodes the instruction at offset.
func (p *Program) Decode(offset int) (Instruction, error) {
	if offset+2 > len(p.Code) {
		return Instruction{}, fmt.Errorf("truncated opcode at %d", offset)
	}
	op := p.ReadOpcode(offset)
	info, ok := GetOpcodeInfo(op)
	if !ok {
		return Instruction{}, fmt.Errorf("unknown opcode 0x%04X at %d", uint16(op), offset)
	}
	in := Instruction{Offset: offset, Op: op, Operands: make([]Operand, 0, len(info.Operands))}
	pos := offset + 2
	for _, kind := range info.Operands {
		if pos+kind.Size() > len(p.Code) {
			return Instruction{}, fmt.Errorf("truncated %s operand of %s at %d", kind, op, offset)
		}
		operand := Operand{Kind: kind}
		switch kind {
		case OperandString:
			operand.Index = binary.LittleEndian.Uint32(p.Code[pos:])
		case OperandAddress:
			operand.Address = p.ReadAddress(pos)
		case OperandNumber:
			operand.Number = p.ReadNumber(pos)
		case OperandInteger:
			operand.Integer = p.ReadInteger(pos)
		}
		in.Operands = append(in.Operands, operand)
		pos += kind.Size()
	}
	return in, nil
}

// Instructions decodes the whole code section in order.
func (p *Program) Instructions() ([]Instruction, error) {
	var out []Instruction
	for offset := 0; offset < len(p.Code); {
		in, err := p.Decode(offset)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		offset += in.Len()
	}
	return out, nil
}
