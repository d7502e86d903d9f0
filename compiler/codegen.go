package compiler

import (
	"math"

	"github.com/chazu/neojs/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: lower a resolved AST to a bytecode program
// ---------------------------------------------------------------------------

// Generator emits one Program for a whole source file. Function bodies are
// laid out in the same buffer behind skip jumps and entered by address.
type Generator struct {
	prog   *bytecode.Program
	scopes *ScopeTable
	global bool

	// Current compilation context
	fn        *FunctionLiteral // nil at top level
	labels    []labelEntry
	loopLabel string // label of the loop about to be emitted

	// Hoisted function bodies waiting for their scope to close
	hoisted map[ScopeID][]hoistedFunc
}

// labelEntry is a compile-time mirror of a runtime label frame, used to
// resolve the target of break and continue.
type labelEntry struct {
	name      string
	breakable bool // loop or switch: target of an unlabelled break
	iteration bool // loop: target of continue
}

type hoistedFunc struct {
	fn   *FunctionLiteral
	slot bytecode.Slot
}

// Option configures a Generator.
type Option func(*Generator)

// WithGlobalScope defines top-level declarations directly in the global
// scope instead of a program scope, so they outlive the program. The REPL
// compiles every line this way.
func WithGlobalScope() Option {
	return func(g *Generator) {
		g.global = true
	}
}

// NewGenerator creates a generator for a program parsed with the given
// scope table.
func NewGenerator(filename string, scopes *ScopeTable, opts ...Option) *Generator {
	g := &Generator{
		prog:    bytecode.NewProgram(filename),
		scopes:  scopes,
		hoisted: make(map[ScopeID][]hoistedFunc),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate compiles a resolved program. Errors are CompileErrors carrying
// the offending position.
func Generate(prog *Program, scopes *ScopeTable, opts ...Option) (out *bytecode.Program, err error) {
	g := NewGenerator(prog.Filename, scopes, opts...)
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = recoverError(r)
		}
	}()
	g.emitProgram(prog)
	return g.prog, nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) op(op bytecode.Opcode) {
	g.prog.Emit(op)
}

func (g *Generator) opString(op bytecode.Opcode, s string) {
	g.prog.Emit(op)
	g.prog.EmitString(s)
}

func (g *Generator) opInt(op bytecode.Opcode, n int) {
	g.prog.Emit(op)
	g.prog.EmitInteger(int32(n))
}

// jump emits a jump with a reserved target.
func (g *Generator) jump(op bytecode.Opcode) bytecode.Slot {
	g.prog.Emit(op)
	return g.prog.Reserve()
}

// jumpTo emits a jump to an address that is already known.
func (g *Generator) jumpTo(op bytecode.Opcode, addr uint64) {
	g.prog.Emit(op)
	g.prog.EmitAddress(addr)
}

func (g *Generator) patch(slot bytecode.Slot) {
	g.prog.SetCurrent(slot)
}

func (g *Generator) here() uint64 {
	return g.prog.Current()
}

// call emits a call-family opcode with its source position.
func (g *Generator) call(op bytecode.Opcode, pos Position) {
	g.prog.Emit(op)
	g.prog.EmitInteger(int32(pos.Line))
	g.prog.EmitInteger(int32(pos.Column))
}

func (g *Generator) pushLabel(op bytecode.Opcode, name string) bytecode.Slot {
	g.prog.Emit(op)
	slot := g.prog.Reserve()
	g.prog.EmitString(name)
	return slot
}

func (g *Generator) pushNumber(v float64) {
	switch {
	case math.IsNaN(v):
		g.op(bytecode.OpPushNaN)
	case math.IsInf(v, 1):
		g.op(bytecode.OpPushInfinity)
	case math.IsInf(v, -1):
		g.op(bytecode.OpPushInfinity)
		g.op(bytecode.OpNeg)
	default:
		g.prog.Emit(bytecode.OpPushNumber)
		g.prog.EmitNumber(v)
	}
}

func (g *Generator) fail(pos Position, format string, args ...interface{}) {
	raise(compileErrorAt(pos, format, args...))
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// pushScope opens a scope frame and initializes every binding declared in
// it. Scopes without bindings emit nothing; the result reports whether a
// frame was opened.
func (g *Generator) pushScope(id ScopeID) bool {
	if id == NoScope {
		return false
	}
	s := g.scopes.Get(id)
	if len(s.Bindings) == 0 {
		return false
	}
	opened := !(g.global && g.fn == nil && s.Kind == ScopeFunction)
	if opened {
		g.op(bytecode.OpPushScope)
	}

	var hoisted []hoistedFunc
	for _, b := range s.Bindings {
		switch b.Kind {
		case VarVar:
			g.op(bytecode.OpPushUndefined)
		case VarLet:
			g.op(bytecode.OpPushUninitialized)
		case VarConst:
			g.op(bytecode.OpPushUninitialized)
			g.op(bytecode.OpSetConst)
		case VarUsing:
			g.op(bytecode.OpPushUninitialized)
			g.op(bytecode.OpSetUsing)
		case VarCallee:
			g.op(bytecode.OpPushCallee)
		case VarFunction:
			if b.Func == nil {
				g.op(bytecode.OpPushUndefined)
				break
			}
			hoisted = append(hoisted, hoistedFunc{fn: b.Func, slot: g.functionHeader(b.Func)})
		}
		g.opString(bytecode.OpDef, b.Name)
	}

	// Captures are attached once every sibling exists, so hoisted functions
	// can refer to each other.
	for _, h := range hoisted {
		if h.fn.Closure.Len() == 0 {
			continue
		}
		g.opString(bytecode.OpLoad, h.fn.Name)
		for _, name := range h.fn.Closure.Names() {
			g.opString(bytecode.OpSetClosure, name)
		}
		g.op(bytecode.OpPop)
	}
	if len(hoisted) > 0 {
		g.hoisted[id] = append(g.hoisted[id], hoisted...)
	}
	return opened
}

// popScope lays out the bodies of the scope's hoisted functions and closes
// the frame.
func (g *Generator) popScope(id ScopeID, opened bool) {
	if id == NoScope {
		return
	}
	if pending := g.hoisted[id]; len(pending) > 0 {
		delete(g.hoisted, id)
		skip := g.jump(bytecode.OpJmp)
		for _, h := range pending {
			g.patch(h.slot)
			g.functionBody(h.fn)
		}
		g.patch(skip)
	}
	if opened {
		g.op(bytecode.OpPopScope)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

var functionOpcodes = map[FunctionKind]bytecode.Opcode{
	FunctionNormal:         bytecode.OpPushFunction,
	FunctionGenerator:      bytecode.OpPushGenerator,
	FunctionAsync:          bytecode.OpPushAsyncFunction,
	FunctionAsyncGenerator: bytecode.OpPushAsyncGenerator,
}

// functionHeader pushes a new function object and returns the reserved
// slot of its entry address.
func (g *Generator) functionHeader(fn *FunctionLiteral) bytecode.Slot {
	switch {
	case fn.Arrow && fn.Kind == FunctionAsync:
		g.op(bytecode.OpPushAsyncLambda)
	case fn.Arrow:
		g.op(bytecode.OpPushLambda)
	default:
		g.op(functionOpcodes[fn.Kind])
	}
	if fn.Name != "" {
		g.opString(bytecode.OpPushString, fn.Name)
		g.op(bytecode.OpSetName)
	}
	g.opString(bytecode.OpSetSource, fn.Source)
	g.prog.Emit(bytecode.OpSetAddress)
	slot := g.prog.Reserve()
	if fn.Arrow {
		g.op(bytecode.OpPushThis)
		g.op(bytecode.OpSetBind)
	}
	return slot
}

// functionValue pushes a function created at this point, with its
// captured cells, and lays out its body inline behind a skip jump.
func (g *Generator) functionValue(fn *FunctionLiteral) {
	entry := g.functionHeader(fn)
	for _, name := range fn.Closure.Names() {
		g.opString(bytecode.OpSetClosure, name)
	}
	skip := g.jump(bytecode.OpJmp)
	g.patch(entry)
	g.functionBody(fn)
	g.patch(skip)
}

// functionBody emits the code run when fn is called. The caller has set
// up a frame holding `arguments` and the captured cells.
func (g *Generator) functionBody(fn *FunctionLiteral) {
	savedFn, savedLabels, savedLoop := g.fn, g.labels, g.loopLabel
	g.fn, g.labels, g.loopLabel = fn, nil, ""
	defer func() {
		g.fn, g.labels, g.loopLabel = savedFn, savedLabels, savedLoop
	}()

	opened := g.pushScope(fn.Scope)
	for i, param := range fn.Params {
		g.opString(bytecode.OpLoad, "arguments")
		if param.Rest {
			g.opInt(bytecode.OpRest, i)
		} else {
			g.pushNumber(float64(i))
			g.op(bytecode.OpGetField)
		}
		if param.Default != nil {
			skip := g.jump(bytecode.OpJNotUndefined)
			g.op(bytecode.OpPop)
			g.emitExpr(param.Default)
			g.patch(skip)
		}
		g.opString(bytecode.OpDef, param.Name)
	}

	if fn.ExprBody != nil {
		g.emitExpr(fn.ExprBody)
		g.op(bytecode.OpRet)
	} else {
		g.emitStmts(fn.Body)
		g.op(bytecode.OpPushUndefined)
		g.op(bytecode.OpRet)
	}
	g.popScope(fn.Scope, opened)
}

// emitProgram emits the top-level body followed by HLT.
func (g *Generator) emitProgram(prog *Program) {
	opened := g.pushScope(prog.Scope)
	g.emitStmts(prog.Body)
	g.popScope(prog.Scope, opened)
	g.op(bytecode.OpHlt)
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// classValue pushes a class constructor with its prototype chain, field
// initializer and methods installed.
func (g *Generator) classValue(cls *ClassLiteral) {
	if cls.Parent != nil {
		g.emitExpr(cls.Parent)
	} else {
		g.op(bytecode.OpPushUndefined)
	}
	g.functionValue(cls.Constructor)
	g.op(bytecode.OpClass)
	if cls.FieldInit != nil {
		g.functionValue(cls.FieldInit)
		g.op(bytecode.OpSetFieldInit)
	}
	for _, m := range cls.Members {
		g.emitExpr(m.Key)
		g.functionValue(m.Value)
		static := 0
		if m.Static {
			static = 1
		}
		g.opInt(bytecode.OpDefMethod, static)
	}
}
