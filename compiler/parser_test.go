package compiler

import (
	"strings"
	"testing"

	"github.com/joomcode/errorx"
)

func mustParse(t *testing.T, source string) (*Program, *ScopeTable) {
	t.Helper()
	prog, scopes, err := Parse(source, "test.js")
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	return prog, scopes
}

// firstExpr returns the expression of the program's first statement.
func firstExpr(t *testing.T, source string) Expr {
	t.Helper()
	prog, _ := mustParse(t, source)
	if len(prog.Body) == 0 {
		t.Fatalf("parse %q: empty program", source)
	}
	stmt, ok := prog.Body[0].(*ExprStmt)
	if !ok {
		t.Fatalf("parse %q: first statement is %T, want *ExprStmt", source, prog.Body[0])
	}
	return stmt.Expr
}

func TestParserStatements(t *testing.T) {
	tests := []struct {
		input string
		check func(Stmt) bool
		desc  string
	}{
		{"var a = 1, b;", func(s Stmt) bool { d := s.(*VarDecl); return d.Kind == VarVar && len(d.Decls) == 2 }, "var"},
		{"let a = 1", func(s Stmt) bool { return s.(*VarDecl).Kind == VarLet }, "let"},
		{"const a = 1", func(s Stmt) bool { return s.(*VarDecl).Kind == VarConst }, "const"},
		{"using r = open()", func(s Stmt) bool { return s.(*VarDecl).Kind == VarUsing }, "using"},
		{"function f(a, b = 2, ...c) {}", func(s Stmt) bool {
			fn := s.(*FunctionDecl).Func
			return fn.Name == "f" && len(fn.Params) == 3 && fn.Params[1].Default != nil && fn.Params[2].Rest
		}, "function declaration"},
		{"async function* g() {}", func(s Stmt) bool { return s.(*FunctionDecl).Func.Kind == FunctionAsyncGenerator }, "async generator"},
		{"class A extends B { m() {} }", func(s Stmt) bool {
			c := s.(*ClassDecl).Class
			return c.Name == "A" && c.Parent != nil && len(c.Members) == 1 && c.Constructor != nil
		}, "class"},
		{"if (a) b; else c", func(s Stmt) bool { return s.(*IfStmt).Alt != nil }, "if-else"},
		{"for (let i = 0; i < 3; i++) {}", func(s Stmt) bool { f := s.(*ForStmt); return f.Scope != NoScope && f.Test != nil && f.Update != nil }, "for"},
		{"for (;;) {}", func(s Stmt) bool { f := s.(*ForStmt); return f.Init == nil && f.Test == nil }, "empty for"},
		{"for (const x of xs) {}", func(s Stmt) bool { f := s.(*ForInStmt); return f.Of && !f.Await && f.Scope != NoScope }, "for-of"},
		{"for (k in o) {}", func(s Stmt) bool { f := s.(*ForInStmt); return !f.Of && f.Scope == NoScope }, "for-in"},
		{"for await (const x of xs) {}", func(s Stmt) bool { return s.(*ForInStmt).Await }, "for await"},
		{"while (a) {}", func(s Stmt) bool { _, ok := s.(*WhileStmt); return ok }, "while"},
		{"do {} while (a)", func(s Stmt) bool { _, ok := s.(*DoWhileStmt); return ok }, "do-while"},
		{"switch (a) { case 1: b; default: c }", func(s Stmt) bool { return len(s.(*SwitchStmt).Cases) == 2 }, "switch"},
		{"outer: for (;;) { break outer }", func(s Stmt) bool { return s.(*LabeledStmt).Label == "outer" }, "label"},
		{"try {} catch (e) {} finally {}", func(s Stmt) bool {
			tr := s.(*TryStmt)
			return tr.Param == "e" && tr.Handler != nil && tr.Finalizer != nil
		}, "try"},
		{"try {} catch {}", func(s Stmt) bool { return s.(*TryStmt).Param == "" }, "optional catch binding"},
		{"throw new Error('x')", func(s Stmt) bool { _, ok := s.(*ThrowStmt); return ok }, "throw"},
		{"debugger", func(s Stmt) bool { _, ok := s.(*DebuggerStmt); return ok }, "debugger"},
	}

	for _, tc := range tests {
		prog, _ := mustParse(t, tc.input)
		if len(prog.Body) != 1 {
			t.Errorf("%s: got %d statements, want 1", tc.desc, len(prog.Body))
			continue
		}
		if !tc.check(prog.Body[0]) {
			t.Errorf("%s: check failed for %q (%T)", tc.desc, tc.input, prog.Body[0])
		}
	}
}

func TestParserSemicolonInsertion(t *testing.T) {
	prog, _ := mustParse(t, "let a = 1\nlet b = 2\na\n++b")
	if len(prog.Body) != 4 {
		t.Fatalf("got %d statements, want 4", len(prog.Body))
	}
	update, ok := prog.Body[3].(*ExprStmt).Expr.(*UpdateExpr)
	if !ok || !update.Prefix {
		t.Errorf("line 4 should be a prefix increment, got %T", prog.Body[3].(*ExprStmt).Expr)
	}

	prog, _ = mustParse(t, "function f() { return\n1 }")
	ret := prog.Body[0].(*FunctionDecl).Func.Body[0].(*ReturnStmt)
	if ret.Arg != nil {
		t.Error("a newline after return should end the statement")
	}
}

func TestParserPrecedence(t *testing.T) {
	e := firstExpr(t, "1 + 2 * 3 ** 2 ** 2")
	add, ok := e.(*BinaryExpr)
	if !ok || add.Op != "+" {
		t.Fatalf("root = %T, want +", e)
	}
	mul := add.Right.(*BinaryExpr)
	if mul.Op != "*" {
		t.Fatalf("right of + = %s, want *", mul.Op)
	}
	pow := mul.Right.(*BinaryExpr)
	if pow.Op != "**" {
		t.Fatalf("right of * = %s, want **", pow.Op)
	}
	if inner, ok := pow.Right.(*BinaryExpr); !ok || inner.Op != "**" {
		t.Error("** should be right associative")
	}

	logical := firstExpr(t, "a || b && c").(*LogicalExpr)
	if logical.Op != "||" {
		t.Errorf("root = %s, want ||", logical.Op)
	}
}

func TestParserArrows(t *testing.T) {
	tests := []struct {
		input  string
		params int
		async  bool
		expr   bool
	}{
		{"x => x * 2", 1, false, true},
		{"(a, b) => a + b", 2, false, true},
		{"() => { return 1 }", 0, false, false},
		{"async x => await x", 1, true, true},
		{"async (a, ...rest) => rest", 2, true, true},
	}
	for _, tc := range tests {
		fn, ok := firstExpr(t, tc.input).(*FunctionLiteral)
		if !ok || !fn.Arrow {
			t.Errorf("%q: not an arrow function", tc.input)
			continue
		}
		if len(fn.Params) != tc.params {
			t.Errorf("%q: %d params, want %d", tc.input, len(fn.Params), tc.params)
		}
		if (fn.Kind == FunctionAsync) != tc.async {
			t.Errorf("%q: kind = %v", tc.input, fn.Kind)
		}
		if (fn.ExprBody != nil) != tc.expr {
			t.Errorf("%q: expression body = %v, want %v", tc.input, fn.ExprBody != nil, tc.expr)
		}
	}

	// a parenthesized expression is not an arrow
	if _, ok := firstExpr(t, "(a, b)").(*SequenceExpr); !ok {
		t.Error("(a, b) should parse as a sequence")
	}
}

func TestParserOptionalChain(t *testing.T) {
	outer, ok := firstExpr(t, "a?.b.c").(*MemberExpr)
	if !ok || outer.Optional {
		t.Fatalf("outer link should be a plain member access")
	}
	inner, ok := outer.Object.(*MemberExpr)
	if !ok || !inner.Optional {
		t.Fatalf("inner link should be optional")
	}

	call, ok := firstExpr(t, "f?.(1)").(*CallExpr)
	if !ok || !call.Optional || len(call.Args) != 1 {
		t.Error("f?.(1) should be an optional call with one argument")
	}

	if _, ok := firstExpr(t, "(a?.b).c").(*MemberExpr).Object.(*ParenExpr); !ok {
		t.Error("parentheses should end an optional chain")
	}
}

func TestParserTemplate(t *testing.T) {
	tpl, ok := firstExpr(t, "`a${x}b${ {k: 1}.k }`").(*TemplateLiteral)
	if !ok {
		t.Fatal("not a template literal")
	}
	want := []string{"a", "b", ""}
	if len(tpl.Quasis) != len(want) {
		t.Fatalf("quasis = %q, want %q", tpl.Quasis, want)
	}
	for i := range want {
		if tpl.Quasis[i] != want[i] {
			t.Errorf("quasi %d = %q, want %q", i, tpl.Quasis[i], want[i])
		}
	}
	if len(tpl.Exprs) != 2 {
		t.Fatalf("got %d substitutions, want 2", len(tpl.Exprs))
	}
	id := tpl.Exprs[0].(*Identifier)
	if id.SpanVal.Start.Offset != 4 {
		t.Errorf("substitution offset = %d, want 4", id.SpanVal.Start.Offset)
	}
}

func TestParserObjectLiteral(t *testing.T) {
	obj := firstExpr(t, "({a: 1, b, [k]: 2, m() {}, async *g() {}, ...rest})").(*ObjectLiteral)
	kinds := []PropertyKind{PropertyInit, PropertyInit, PropertyInit, PropertyMethod, PropertyMethod, PropertySpread}
	if len(obj.Properties) != len(kinds) {
		t.Fatalf("got %d properties, want %d", len(obj.Properties), len(kinds))
	}
	for i, k := range kinds {
		if obj.Properties[i].Kind != k {
			t.Errorf("property %d kind = %v, want %v", i, obj.Properties[i].Kind, k)
		}
	}
	if !obj.Properties[2].Computed {
		t.Error("[k] should be computed")
	}
	if fn := obj.Properties[4].Value.(*FunctionLiteral); fn.Kind != FunctionAsyncGenerator || fn.Name != "g" {
		t.Errorf("async *g: kind %v name %q", fn.Kind, fn.Name)
	}
}

func TestParserFunctionNaming(t *testing.T) {
	prog, _ := mustParse(t, "const f = function() {}; let C = class {}; g = () => 1")
	if name := prog.Body[0].(*VarDecl).Decls[0].Init.(*FunctionLiteral).Name; name != "f" {
		t.Errorf("function name = %q, want f", name)
	}
	if name := prog.Body[1].(*VarDecl).Decls[0].Init.(*ClassLiteral).Constructor.Name; name != "C" {
		t.Errorf("class name = %q, want C", name)
	}
	if name := prog.Body[2].(*ExprStmt).Expr.(*AssignExpr).Value.(*FunctionLiteral).Name; name != "g" {
		t.Errorf("arrow name = %q, want g", name)
	}
}

func TestParserClassFields(t *testing.T) {
	prog, _ := mustParse(t, "class A { x = 1; y; static s() {} }")
	cls := prog.Body[0].(*ClassDecl).Class
	if cls.FieldInit == nil || len(cls.FieldInit.Body) != 2 {
		t.Fatalf("expected a field initializer with two assignments")
	}
	if len(cls.Members) != 1 || !cls.Members[0].Static {
		t.Error("expected one static method")
	}
}

func TestParserDerivedDefaultConstructor(t *testing.T) {
	prog, _ := mustParse(t, "class A extends B {}")
	ctor := prog.Body[0].(*ClassDecl).Class.Constructor
	if len(ctor.Params) != 1 || !ctor.Params[0].Rest {
		t.Fatalf("derived default constructor should take ...args")
	}
	call := ctor.Body[0].(*ExprStmt).Expr.(*CallExpr)
	if _, ok := call.Callee.(*SuperExpr); !ok {
		t.Error("derived default constructor should call super")
	}
}

func TestParserScopes(t *testing.T) {
	prog, scopes := mustParse(t, "{ var a; let b; } function f() { if (x) { var c } }")
	top := scopes.Get(prog.Scope)
	if !top.Has("a") {
		t.Error("var should hoist to the program scope")
	}
	if top.Has("b") {
		t.Error("let should stay in its block")
	}
	if b := top.Lookup("f"); b == nil || b.Kind != VarFunction || b.Func == nil {
		t.Error("function declaration should be bound with its literal")
	}
	fn := prog.Body[1].(*FunctionDecl).Func
	if !scopes.Get(fn.Scope).Has("c") {
		t.Error("var inside a function block should hoist to the function scope")
	}
	if scopes.Get(fn.Scope).Kind != ScopeFunction {
		t.Error("function scope should be a function boundary")
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"let a = 1; let a = 2", "Identifier 'a' has already been declared"},
		{"let a; var a", "Identifier 'a' has already been declared"},
		{"{ let a; { var a } }", "Identifier 'a' has already been declared"},
		{"return 1", "Illegal return statement"},
		{"import x from 'y'", "Cannot use import statement outside a module"},
		{"export const a = 1", "Unexpected token 'export'"},
		{"const x;", "Missing initializer in const declaration"},
		{"let [a] = b", "Destructuring patterns are not supported"},
		{"delete x", "Delete of an unqualified identifier in strict mode."},
		{"super()", "'super' keyword unexpected here"},
		{"class A { m() { super() } }", "'super' keyword unexpected here"},
		{"try {}", "Missing catch or finally after try"},
		{"function f(a, a) {}", "Duplicate parameter name not allowed in this context"},
		{"(...a, b) => 1", "Rest parameter must be last formal parameter"},
		{"class A { constructor() {} constructor() {} }", "A class may only have one constructor"},
		{"switch (x) { default: default: }", "More than one default clause in switch statement"},
		{"1 = 2", "Invalid left-hand side in assignment"},
		{"a?.b = 1", "Invalid left-hand side in assignment"},
		{"++f()", "Invalid left-hand side expression in prefix operation"},
		{"let x = 1 2", "Unexpected number"},
		{"a b", "Unexpected identifier 'b'"},
		{"`${}`", "Unexpected token '}'"},
		{"tag`x`", "Tagged templates are not supported"},
		{"class A { get x() {} }", "Getters and setters are not supported"},
	}

	for _, tc := range tests {
		_, _, err := Parse(tc.input, "test.js")
		if err == nil {
			t.Errorf("%q: expected error %q", tc.input, tc.msg)
			continue
		}
		if got := ErrorMessage(err); got != tc.msg {
			t.Errorf("%q: error = %q, want %q", tc.input, got, tc.msg)
		}
		if _, ok := ErrorPosition(err); !ok {
			t.Errorf("%q: error has no position", tc.input)
		}
	}
}

func TestParserIncompleteInput(t *testing.T) {
	incomplete := []string{
		"function f() {",
		"let x = [1,",
		"if (a",
		"`abc",
		"a +",
		"class A {",
	}
	for _, input := range incomplete {
		_, _, err := Parse(input, "repl")
		if err == nil {
			t.Errorf("%q: expected an error", input)
			continue
		}
		if !IsIncomplete(err) {
			t.Errorf("%q: %v should be reported as incomplete", input, err)
		}
	}

	_, _, err := Parse("let x = ]", "repl")
	if err == nil || IsIncomplete(err) {
		t.Errorf("a stray bracket is a plain syntax error, got %v", err)
	}
}

func TestFormatError(t *testing.T) {
	_, err := Compile("let a = 1;\nlet a = 2;", "main.js")
	if err == nil {
		t.Fatal("expected an error")
	}
	got := FormatError(err)
	want := "SyntaxError: Identifier 'a' has already been declared\n    at main.js:2:5"
	if got != want {
		t.Errorf("FormatError =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(err.Error(), "let ^a = 2;") {
		t.Errorf("decorated error should carry a caret excerpt: %v", err)
	}
}

func TestCompileErrorsKeepTheirType(t *testing.T) {
	tests := []struct {
		input string
		typ   *errorx.Type
		want  string
	}{
		{"let a = 1; let a = 2", SyntaxError, "SyntaxError: Identifier 'a' has already been declared\n    at p.js:1:16"},
		{"break", CompileError, "SyntaxError: Illegal break statement\n    at p.js:1:1"},
		{"let x = 1 2", SyntaxError, "SyntaxError: Unexpected number\n    at p.js:1:11"},
	}
	for _, tc := range tests {
		_, err := Compile(tc.input, "p.js")
		if err == nil {
			t.Errorf("%q: expected an error", tc.input)
			continue
		}
		if !errorx.IsOfType(err, tc.typ) {
			t.Errorf("%q: error %v is not a %s", tc.input, err, tc.typ)
		}
		if strings.Contains(err.Error(), "panic") {
			t.Errorf("%q: error leaks the panic wrapper: %v", tc.input, err)
		}
		if got := FormatError(err); got != tc.want {
			t.Errorf("%q: FormatError = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRecoverErrorUnwrapsPanics(t *testing.T) {
	bare := syntaxErrorAt(Position{Line: 1, Column: 1}, "bad %s", "thing")
	if got := recoverError(bare); ErrorMessage(got) != "bad thing" {
		t.Errorf("bare error message = %q", ErrorMessage(got))
	}

	func() {
		defer func() {
			err := recoverError(recover())
			if !errorx.IsOfType(err, errorx.IllegalState) {
				t.Errorf("wrapped panic = %v, want IllegalState", err)
			}
		}()
		errorx.Panic(errorx.IllegalState.New("broken"))
	}()

	if err := recoverError("plain"); !errorx.IsOfType(err, errorx.IllegalState) {
		t.Errorf("non-error panic = %v, want IllegalState", err)
	}
}
