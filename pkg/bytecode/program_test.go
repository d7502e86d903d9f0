package bytecode

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/joomcode/errorx"
)

// ============ Program Tests ============

func TestNewProgram(t *testing.T) {
	p := NewProgram("/src/app/main.js")

	if p.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", p.Version, FormatVersion)
	}
	if p.Dirname != "/src/app" {
		t.Errorf("Dirname = %q, want %q", p.Dirname, "/src/app")
	}
	if p.ID.String() == "" {
		t.Error("program has no id")
	}
}

func TestProgramAddConstant(t *testing.T) {
	p := NewProgram("")

	if idx := p.AddConstant("hello"); idx != 0 {
		t.Errorf("first constant index = %d, want 0", idx)
	}
	if idx := p.AddConstant("world"); idx != 1 {
		t.Errorf("second constant index = %d, want 1", idx)
	}
	if idx := p.AddConstant("hello"); idx != 0 {
		t.Errorf("duplicate constant index = %d, want 0", idx)
	}
	if len(p.Constants) != 2 {
		t.Errorf("len(Constants) = %d, want 2", len(p.Constants))
	}
}

func TestProgramOperandEncoding(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpPushNumber)
	p.EmitNumber(3.25)
	p.Emit(OpPushString)
	p.EmitString("x")
	p.Emit(OpPushValue)
	p.EmitInteger(-2)

	if got := p.ReadOpcode(0); got != OpPushNumber {
		t.Errorf("opcode = %s, want PUSH_NUMBER", got)
	}
	if got := p.ReadNumber(2); got != 3.25 {
		t.Errorf("number = %v, want 3.25", got)
	}
	if got := p.ReadString(12); got != "x" {
		t.Errorf("string = %q, want x", got)
	}
	if got := p.ReadInteger(18); got != -2 {
		t.Errorf("integer = %d, want -2", got)
	}
	if len(p.Code) != 22 {
		t.Errorf("code length = %d, want 22", len(p.Code))
	}
}

func TestReserveAndPatch(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpJmp)
	slot := p.Reserve()
	if p.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", p.Pending())
	}
	p.Emit(OpNop)
	p.SetCurrent(slot)
	p.Emit(OpHlt)

	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", p.Pending())
	}
	if got := p.ReadAddress(int(slot)); got != 12 {
		t.Errorf("patched address = %d, want 12", got)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestPatchTwicePanics(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpJmp)
	slot := p.Reserve()
	p.SetCurrent(slot)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("second patch did not panic")
		}
		err, ok := errorx.ErrorFromPanic(r)
		if !ok || !errorx.IsOfType(err, errorx.IllegalState) {
			t.Errorf("panic value = %v, want IllegalState", r)
		}
	}()
	p.SetCurrent(slot)
}

// ============ Validation Tests ============

func TestValidateUnpatched(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpJmp)
	p.Reserve()
	p.Emit(OpHlt)

	err := p.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an unpatched slot")
	}
	if !errorx.IsOfType(err, errorx.IllegalState) {
		t.Errorf("error type = %v, want IllegalState", err)
	}
}

func TestValidateUnknownOpcode(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpNop)
	p.Code = append(p.Code, 0xFF, 0xFF)

	if err := p.Validate(); err == nil {
		t.Error("Validate() accepted an unknown opcode")
	}
}

func TestValidateMisalignedJump(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpJmp)
	p.EmitAddress(3)
	p.Emit(OpHlt)

	if err := p.Validate(); err == nil {
		t.Error("Validate() accepted a jump into the middle of an instruction")
	}
}

func TestValidateConstantRange(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpLoad)
	p.EmitInteger(7)

	if err := p.Validate(); err == nil {
		t.Error("Validate() accepted an out-of-range constant index")
	}
}

func TestValidateTruncated(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpPushNumber)
	p.Code = append(p.Code, 0, 0, 0)

	if err := p.Validate(); err == nil {
		t.Error("Validate() accepted a truncated operand")
	}
}

// ============ Disassembly Tests ============

func sampleProgram() *Program {
	p := NewProgram("/tmp/sample.js")
	p.Emit(OpPushScope)
	p.Emit(OpPushString)
	p.EmitString("line\nbreak \"quoted\"; semi")
	p.Emit(OpPushNumber)
	p.EmitNumber(0.1)
	p.Emit(OpPushNumber)
	p.EmitNumber(math.Inf(-1))
	p.Emit(OpJFalse)
	end := p.Reserve()
	p.Emit(OpPushBreakLabel)
	brk := p.Reserve()
	p.EmitString("outer")
	p.Emit(OpTryBegin)
	p.EmitAddress(0)
	fin := p.Reserve()
	p.Emit(OpTryEnd)
	p.SetCurrent(fin)
	p.Emit(OpTryEnd)
	p.SetCurrent(brk)
	p.Emit(OpPopLabel)
	p.Emit(OpCall)
	p.EmitInteger(3)
	p.EmitInteger(14)
	p.SetCurrent(end)
	p.Emit(OpPopScope)
	p.Emit(OpHlt)
	return p
}

func TestDisassembleFormat(t *testing.T) {
	out := sampleProgram().Disassemble()

	for _, want := range []string{
		".meta", ".constants", ".code",
		"filename: \"/tmp/sample.js\"",
		"0: PUSH_SCOPE",
		"2: PUSH_STRING #0",
		"CALL 3, 14",
		"PUSH_BREAK_LABEL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	p := sampleProgram()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	q, err := Assemble(p.Disassemble())
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if !bytes.Equal(p.Code, q.Code) {
		t.Errorf("code differs after round trip\nwant % x\n got % x", p.Code, q.Code)
	}
	if len(p.Constants) != len(q.Constants) {
		t.Fatalf("constants = %d, want %d", len(q.Constants), len(p.Constants))
	}
	for i := range p.Constants {
		if p.Constants[i] != q.Constants[i] {
			t.Errorf("constant %d = %q, want %q", i, q.Constants[i], p.Constants[i])
		}
	}
	if p.ID != q.ID || p.Filename != q.Filename || p.Dirname != q.Dirname {
		t.Errorf("metadata differs: %v %q %q", q.ID, q.Filename, q.Dirname)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("reassembled program invalid: %v", err)
	}
}

func TestAssembleRejectsWrongAddress(t *testing.T) {
	text := ".code\n0: NOP\n4: HLT\n"
	if _, err := Assemble(text); err == nil {
		t.Error("Assemble() accepted a record at the wrong address")
	}
}

func TestAssembleRejectsOperandCount(t *testing.T) {
	text := ".constants\n0: \"x\"\n.code\n0: LOAD\n"
	if _, err := Assemble(text); err == nil {
		t.Error("Assemble() accepted a missing operand")
	}
}

// ============ Wire Tests ============

func TestMarshalUnmarshal(t *testing.T) {
	p := sampleProgram()
	data, err := Marshal(p, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}

	q, sum, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if !bytes.Equal(sum, []byte{1, 2, 3}) {
		t.Errorf("source sum = %v", sum)
	}
	if q.ID != p.ID || !bytes.Equal(q.Code, p.Code) {
		t.Error("program changed across CBOR encoding")
	}
	if idx := q.AddConstant("outer"); q.Constants[idx] != "outer" || int(idx) >= len(p.Constants) {
		t.Errorf("constant map not rebuilt: index %d", idx)
	}
}

func TestMarshalRejectsIncomplete(t *testing.T) {
	p := NewProgram("")
	p.Emit(OpJmp)
	p.Reserve()

	if _, err := Marshal(p, nil); err == nil {
		t.Error("Marshal() accepted an incomplete program")
	}
}

// ============ Opcode Tests ============

func TestOpcodeNamesUnique(t *testing.T) {
	seen := map[string]Opcode{}
	for _, op := range AllOpcodes() {
		name := op.String()
		if other, ok := seen[name]; ok {
			t.Errorf("%s used by 0x%04X and 0x%04X", name, uint16(other), uint16(op))
		}
		seen[name] = op
		if back, ok := LookupOpcode(name); !ok || back != op {
			t.Errorf("LookupOpcode(%s) = %v, %v", name, back, ok)
		}
	}
}

func TestInstructionLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpPop, 2},
		{OpLoad, 6},
		{OpJmp, 10},
		{OpPushNumber, 10},
		{OpCall, 10},
		{OpTryBegin, 18},
		{OpPushBreakLabel, 14},
	}
	for _, tt := range tests {
		if got := tt.op.InstructionLen(); got != tt.want {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.want)
		}
	}
}
