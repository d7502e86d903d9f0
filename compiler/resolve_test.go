package compiler

import (
	"reflect"
	"testing"
)

// resolved parses and resolves source, returning every function literal in
// source order of their declarations (outermost first).
func resolved(t *testing.T, source string) []*FunctionLiteral {
	t.Helper()
	prog, scopes := mustParse(t, source)
	Resolve(prog, scopes)
	var fns []*FunctionLiteral
	collectFunctions(prog.Body, &fns)
	return fns
}

func collectFunctions(stmts []Stmt, out *[]*FunctionLiteral) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *FunctionDecl:
			*out = append(*out, n.Func)
			collectFunctions(n.Func.Body, out)
		case *ReturnStmt:
			collectExprFunctions(n.Arg, out)
		case *ExprStmt:
			collectExprFunctions(n.Expr, out)
		case *VarDecl:
			for _, d := range n.Decls {
				collectExprFunctions(d.Init, out)
			}
		case *BlockStmt:
			collectFunctions(n.Body, out)
		case *ForStmt:
			collectFunctions([]Stmt{n.Body}, out)
		}
	}
}

func collectExprFunctions(e Expr, out *[]*FunctionLiteral) {
	switch n := e.(type) {
	case *FunctionLiteral:
		*out = append(*out, n)
		collectFunctions(n.Body, out)
		collectExprFunctions(n.ExprBody, out)
	case *CallExpr:
		collectExprFunctions(n.Callee, out)
		for _, arg := range n.Args {
			collectExprFunctions(arg, out)
		}
	}
}

func TestResolveInnerCapture(t *testing.T) {
	fns := resolved(t, "function f(){ let a = 1; return function(){ return a; } }")
	if len(fns) != 2 {
		t.Fatalf("found %d functions, want 2", len(fns))
	}
	if got := fns[0].Closure.Names(); len(got) != 0 {
		t.Errorf("outer closure = %v, want empty", got)
	}
	if got := fns[1].Closure.Names(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("inner closure = %v, want [a]", got)
	}
}

func TestResolveCapturesOnce(t *testing.T) {
	fns := resolved(t, "function f(a, b){ return () => a + b + a * a + b }")
	if got := fns[1].Closure.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("closure = %v, want [a b]", got)
	}
}

func TestResolvePropagatesThroughIntermediate(t *testing.T) {
	fns := resolved(t, `
function outer() {
	let x = 1
	function middle() {
		return function inner() { return x }
	}
	return middle
}`)
	if len(fns) != 3 {
		t.Fatalf("found %d functions, want 3", len(fns))
	}
	if got := fns[1].Closure.Names(); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("middle closure = %v, want [x]", got)
	}
	if got := fns[2].Closure.Names(); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("inner closure = %v, want [x]", got)
	}
	if fns[0].Closure.Len() != 0 {
		t.Errorf("outer closure = %v, want empty", fns[0].Closure.Names())
	}
}

func TestResolveShadowingWins(t *testing.T) {
	fns := resolved(t, "function f(){ let a = 1; return function(){ let a = 2; { return a } } }")
	if fns[1].Closure.Len() != 0 {
		t.Errorf("a shadowed name must not be captured, got %v", fns[1].Closure.Names())
	}
}

func TestResolveGlobalsAndArguments(t *testing.T) {
	fns := resolved(t, "function f(){ return function(){ return console.log(arguments, undeclared) } }")
	if fns[1].Closure.Len() != 0 {
		t.Errorf("closure = %v, want empty", fns[1].Closure.Names())
	}
}

func TestResolveTopLevelBindings(t *testing.T) {
	fns := resolved(t, "let count = 0; function bump(){ count++ }")
	if got := fns[0].Closure.Names(); !reflect.DeepEqual(got, []string{"count"}) {
		t.Errorf("closure = %v, want [count]", got)
	}
}

func TestResolveInsertionOrder(t *testing.T) {
	fns := resolved(t, "function f(x, y, z){ return () => [z, x, y, x] }")
	if got := fns[1].Closure.Names(); !reflect.DeepEqual(got, []string{"z", "x", "y"}) {
		t.Errorf("closure = %v, want [z x y]", got)
	}
}

func TestResolveClassMembers(t *testing.T) {
	prog, scopes := mustParse(t, "function f(){ let base = 1, step = 2; return class { m() { return base } n() { return step + base } } }")
	Resolve(prog, scopes)
	ret := prog.Body[0].(*FunctionDecl).Func.Body[1].(*ReturnStmt)
	cls := ret.Arg.(*ClassLiteral)
	if got := cls.Closure.Names(); !reflect.DeepEqual(got, []string{"base", "step"}) {
		t.Errorf("class closure = %v, want [base step]", got)
	}
}

func TestResolveDefaultParameter(t *testing.T) {
	fns := resolved(t, "function f(k){ return function(v = k){ return v } }")
	if got := fns[1].Closure.Names(); !reflect.DeepEqual(got, []string{"k"}) {
		t.Errorf("closure = %v, want [k]", got)
	}
}
