package compiler

import (
	"testing"

	"github.com/joomcode/errorx"
)

var fuzzSeeds = []string{
	// Tokens
	`( ) [ ] { } . ; , ? : => ...`,
	`42`, `0x1F`, `0b101`, `0o17`, `1_000`, `3.14`, `.5`, `1e10`, `2.5E-3`,
	`'hello'`, `"it's"`, `"\x41B\u{43}"`, "`a${b}c`",
	`a?.b`, `a ?? b`, `a?.5:1`, `x **= 2`, `y >>>= 1`,
	"// comment\nfoo", "/* block */ bar",
	// Statements
	`let x = 1; const y = x + 2; var z`,
	`function f(a, b = 1, ...c) { return a + b }`,
	`class A extends B { x = 1; constructor() { super() } m() { return super.m() } }`,
	`for (let i = 0; i < 3; i++) { continue }`,
	`for (const k in o) {} for (const v of xs) {}`,
	`outer: while (true) { break outer }`,
	`switch (x) { case 1: break; default: y() }`,
	`try { f() } catch (e) { g(e) } finally { h() }`,
	`function* g() { yield 1; yield* xs }`,
	`async function h() { await p; for await (const x of s) {} }`,
	`{ using r = open() }`,
	`x => x * 2; async (a) => await a`,
	`({ a, b: 1, [k]: 2, m() {}, ...rest })`,
	// Broken input
	`function (`, `let = ;`, `{{{`, `)))`, "`${", `"unterminated`, `/* open`,
	`break`, `continue`, `a: a: ;`, `1 = 2`, `class { get x() {} }`,
	// Unicode
	`'こんにちは'`, `café = 1`,
	``, `   `, "\t\n\r",
}

// ---------------------------------------------------------------------------
// FuzzLexer: the lexer never panics and always terminates.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			tok := l.NextToken()
			if tok.Type == TokenEOF || tok.Type == TokenError {
				return
			}
		}
		t.Fatalf("lexer did not terminate on input %q", data)
	})
}

// ---------------------------------------------------------------------------
// FuzzCompile: every failure is a front-end error, never an internal one.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		prog, err := Compile(data, "fuzz.js")
		if err != nil {
			if !errorx.IsOfType(err, SyntaxError) && !errorx.IsOfType(err, CompileError) {
				t.Fatalf("internal error on input %q: %v", data, err)
			}
			return
		}
		if prog.Pending() != 0 {
			t.Fatalf("unpatched jumps on input %q", data)
		}
	})
}
