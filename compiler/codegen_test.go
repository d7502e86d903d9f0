package compiler

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/chazu/neojs/pkg/bytecode"
)

func mustCompile(t *testing.T, source string) *bytecode.Program {
	t.Helper()
	prog, err := Compile(source, "test.js")
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	return prog
}

func instructions(t *testing.T, prog *bytecode.Program) []bytecode.Instruction {
	t.Helper()
	ins, err := prog.Instructions()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ins
}

func countOps(ins []bytecode.Instruction, op bytecode.Opcode) int {
	n := 0
	for _, in := range ins {
		if in.Op == op {
			n++
		}
	}
	return n
}

// operandStrings returns the constant named by the first operand of every
// instruction with the given opcode.
func operandStrings(prog *bytecode.Program, ins []bytecode.Instruction, op bytecode.Opcode) []string {
	var out []string
	for _, in := range ins {
		if in.Op != op {
			continue
		}
		s, _ := prog.Constant(in.Operands[0].Index)
		out = append(out, s)
	}
	return out
}

var codegenSources = []string{
	"1 + 2 * 3",
	"let a = 1; const b = a + 1; var c; c = a ?? b",
	"function f(x, y = 2, ...rest) { return x + y + rest.length }",
	"const g = function* () { yield 1; yield* [2, 3]; return 4 }",
	"async function h() { for await (const x of src()) { await x } }",
	"for (let i = 0; i < 3; i++) { if (i) continue; else break }",
	"for (const k in o) {} for (x of xs) {}",
	"outer: while (true) { do { break outer } while (false) }",
	"switch (x) { case 1: y = 1; case 2: { break } default: y = 3 }",
	"try { f() } catch (e) { g(e) } finally { h() }",
	"try { f() } catch { g() }",
	"try { f() } finally { h() }",
	"class A extends B { x = 1; constructor() { super(); this.y = 2 } m() { return super.m() } static s() {} }",
	"const o = { a: 1, [k]: 2, m() {}, ...p }; o.a += 1; o[k] ||= 3; delete o.a",
	"a?.b.c; a?.[k]; f?.(); o.m?.(1); (a?.b).c",
	"`x${1}y${2}`; typeof zz; void 0; -Infinity; NaN",
	"{ using r = open(); r.use() }",
	"let n = 0; n++; ++n; o.p--; o[k] **= 2",
	"new Date(1, ...args); [1, , ...xs]",
	"x => x; async () => { await 1 }; (function () { return this })",
}

func TestGenerateProgramsValidate(t *testing.T) {
	for _, source := range codegenSources {
		prog := mustCompile(t, source)
		if prog.Pending() != 0 {
			t.Errorf("%q: %d unpatched jumps", source, prog.Pending())
		}
		ins := instructions(t, prog)
		if last := ins[len(ins)-1]; last.Op != bytecode.OpHlt {
			t.Errorf("%q: last instruction = %s, want HLT", source, last.Op)
		}
	}
}

func TestGenerateDisassembleRoundTrip(t *testing.T) {
	for _, source := range codegenSources {
		prog := mustCompile(t, source)
		back, err := bytecode.Assemble(prog.Disassemble())
		if err != nil {
			t.Fatalf("%q: assemble: %v", source, err)
		}
		if !bytes.Equal(back.Code, prog.Code) {
			t.Errorf("%q: code differs after round trip", source)
		}
		if !reflect.DeepEqual(back.Constants, prog.Constants) {
			t.Errorf("%q: constants differ after round trip", source)
		}
	}
}

func TestGenerateOptionalChainTarget(t *testing.T) {
	prog := mustCompile(t, "a?.b.c")
	ins := instructions(t, prog)

	var jnull *bytecode.Instruction
	var lastGet bytecode.Instruction
	for i := range ins {
		switch ins[i].Op {
		case bytecode.OpJNull:
			jnull = &ins[i]
		case bytecode.OpGetField:
			lastGet = ins[i]
		}
	}
	if jnull == nil {
		t.Fatal("no JNULL emitted")
	}
	if countOps(ins, bytecode.OpJNull) != 1 {
		t.Errorf("got %d JNULL, want 1", countOps(ins, bytecode.OpJNull))
	}
	want := uint64(lastGet.Offset + lastGet.Len())
	if got := jnull.Operands[0].Address; got != want {
		t.Errorf("JNULL target = %d, want %d (after the final GET_FIELD)", got, want)
	}
}

func TestGenerateClosureCapture(t *testing.T) {
	prog := mustCompile(t, "function f() { return 1 }")
	if n := countOps(instructions(t, prog), bytecode.OpSetClosure); n != 0 {
		t.Errorf("function without free names emitted %d SET_CLOSURE", n)
	}

	prog = mustCompile(t, "function f(){ let a = 1; return function(){ return a + a } }")
	ins := instructions(t, prog)
	if got := operandStrings(prog, ins, bytecode.OpSetClosure); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("SET_CLOSURE names = %v, want [a]", got)
	}
}

func TestGenerateHoistedFunctionCaptures(t *testing.T) {
	prog := mustCompile(t, "let x = 1; function f() { return x }")
	ins := instructions(t, prog)
	if got := operandStrings(prog, ins, bytecode.OpSetClosure); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("SET_CLOSURE names = %v, want [x]", got)
	}
	if countOps(ins, bytecode.OpPushFunction) != 1 {
		t.Error("a hoisted function should be created once")
	}
}

func TestGenerateForLetRenewsScope(t *testing.T) {
	ins := instructions(t, mustCompile(t, "for (let i = 0; i < 3; i++) {}"))
	if countOps(ins, bytecode.OpRenewScope) != 1 {
		t.Error("a lexical for head should renew its scope each iteration")
	}
	ins = instructions(t, mustCompile(t, "var i; for (i = 0; i < 3; i++) {}"))
	if countOps(ins, bytecode.OpRenewScope) != 0 {
		t.Error("a loop without lexical declarations should not renew scopes")
	}
}

func TestGenerateStatementValues(t *testing.T) {
	ins := instructions(t, mustCompile(t, "1; 2; function f() { 3 }"))
	if n := countOps(ins, bytecode.OpSave); n != 2 {
		t.Errorf("got %d SAVE, want 2 (one per top-level expression statement)", n)
	}
}

func TestGenerateCallPositions(t *testing.T) {
	prog := mustCompile(t, "let o = {}\n  o.m(1)")
	for _, in := range instructions(t, prog) {
		if in.Op != bytecode.OpMemberCall {
			continue
		}
		if in.Operands[0].Integer != 2 || in.Operands[1].Integer != 3 {
			t.Errorf("MEMBER_CALL position = %d:%d, want 2:3", in.Operands[0].Integer, in.Operands[1].Integer)
		}
		return
	}
	t.Fatal("no MEMBER_CALL emitted")
}

func TestGenerateTryWithoutCatch(t *testing.T) {
	for _, in := range instructions(t, mustCompile(t, "try { f() } finally { g() }")) {
		if in.Op != bytecode.OpTryBegin {
			continue
		}
		if in.Operands[0].Address != 0 {
			t.Error("absent catch handler should be encoded as address 0")
		}
		if in.Operands[1].Address == 0 {
			t.Error("finally handler should have an address")
		}
		return
	}
	t.Fatal("no TRY_BEGIN emitted")
}

func TestGenerateGlobalScope(t *testing.T) {
	prog, err := Compile("let a = 1", "repl", WithGlobalScope())
	if err != nil {
		t.Fatal(err)
	}
	if n := countOps(instructions(t, prog), bytecode.OpPushScope); n != 0 {
		t.Errorf("global compilation opened %d scope frames, want 0", n)
	}
	if n := countOps(instructions(t, mustCompile(t, "let a = 1")), bytecode.OpPushScope); n != 1 {
		t.Errorf("program compilation opened %d scope frames, want 1", n)
	}
}

func TestGenerateLabelErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"break", "Illegal break statement"},
		{"continue", "Illegal continue statement: no surrounding iteration statement"},
		{"while (1) { break nowhere }", "Undefined label 'nowhere'"},
		{"foo: { continue foo }", "Illegal continue statement: 'foo' does not denote an iteration statement"},
		{"a: a: ;", "Label 'a' has already been declared"},
		{"for (;;) { function f() { break } }", "Illegal break statement"},
		{"switch (x) { case 1: continue }", "Illegal continue statement: no surrounding iteration statement"},
	}
	for _, tc := range tests {
		_, err := Compile(tc.input, "test.js")
		if err == nil {
			t.Errorf("%q: expected error %q", tc.input, tc.msg)
			continue
		}
		if got := ErrorMessage(err); got != tc.msg {
			t.Errorf("%q: error = %q, want %q", tc.input, got, tc.msg)
		}
		if FormatError(err)[:len("SyntaxError: ")] != "SyntaxError: " {
			t.Errorf("%q: compile errors should be reported as SyntaxError", tc.input)
		}
	}
}

func TestGenerateLabelsAccepted(t *testing.T) {
	for _, source := range []string{
		"a: { break a }",
		"a: for (;;) { b: for (;;) { continue a } }",
		"a: { } a: { }",
		"x: switch (1) { case 1: break x }",
	} {
		mustCompile(t, source)
	}
}
