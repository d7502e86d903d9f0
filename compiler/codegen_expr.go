package compiler

import (
	"github.com/chazu/neojs/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[string]bytecode.Opcode{
	"+":          bytecode.OpAdd,
	"-":          bytecode.OpSub,
	"*":          bytecode.OpMul,
	"/":          bytecode.OpDiv,
	"%":          bytecode.OpMod,
	"**":         bytecode.OpPow,
	"<<":         bytecode.OpShl,
	">>":         bytecode.OpShr,
	">>>":        bytecode.OpUshr,
	"&":          bytecode.OpAnd,
	"|":          bytecode.OpOr,
	"^":          bytecode.OpXor,
	"==":         bytecode.OpEq,
	"!=":         bytecode.OpNe,
	"===":        bytecode.OpSeq,
	"!==":        bytecode.OpSne,
	"<":          bytecode.OpLt,
	"<=":         bytecode.OpLe,
	">":          bytecode.OpGt,
	">=":         bytecode.OpGe,
	"in":         bytecode.OpIn,
	"instanceof": bytecode.OpInstanceOf,
}

// shortCircuit maps a logical operator to the jump that skips its right
// operand.
var shortCircuit = map[string]bytecode.Opcode{
	"&&": bytecode.OpJFalse,
	"||": bytecode.OpJTrue,
	"??": bytecode.OpJNotNull,
}

var unaryOpcodes = map[string]bytecode.Opcode{
	"!":      bytecode.OpLogicalNot,
	"~":      bytecode.OpNot,
	"-":      bytecode.OpNeg,
	"+":      bytecode.OpPlus,
	"typeof": bytecode.OpTypeof,
	"void":   bytecode.OpVoid,
}

func (g *Generator) emitExpr(e Expr) {
	switch n := e.(type) {
	case *NumberLiteral:
		g.pushNumber(n.Value)
	case *StringLiteral:
		g.opString(bytecode.OpPushString, n.Value)
	case *TemplateLiteral:
		g.emitTemplate(n)
	case *BooleanLiteral:
		if n.Value {
			g.op(bytecode.OpPushTrue)
		} else {
			g.op(bytecode.OpPushFalse)
		}
	case *NullLiteral:
		g.op(bytecode.OpPushNull)
	case *Identifier:
		g.opString(bytecode.OpLoad, n.Name)
	case *ThisExpr:
		g.op(bytecode.OpPushThis)
	case *SuperExpr:
		g.fail(n.SpanVal.Start, "'super' keyword unexpected here")
	case *ArrayLiteral:
		g.op(bytecode.OpPushArray)
		g.appendElements(n.Elements)
	case *ObjectLiteral:
		g.emitObject(n)
	case *FunctionLiteral:
		g.functionValue(n)
	case *ClassLiteral:
		g.classValue(n)
	case *UnaryExpr:
		g.emitUnary(n)
	case *UpdateExpr:
		g.emitUpdate(n)
	case *BinaryExpr:
		g.emitExpr(n.Left)
		g.emitExpr(n.Right)
		g.op(binaryOpcodes[n.Op])
	case *LogicalExpr:
		g.emitExpr(n.Left)
		end := g.jump(shortCircuit[n.Op])
		g.op(bytecode.OpPop)
		g.emitExpr(n.Right)
		g.patch(end)
	case *ConditionalExpr:
		g.emitExpr(n.Test)
		alt := g.jump(bytecode.OpJFalse)
		g.op(bytecode.OpPop)
		g.emitExpr(n.Cons)
		end := g.jump(bytecode.OpJmp)
		g.patch(alt)
		g.op(bytecode.OpPop)
		g.emitExpr(n.Alt)
		g.patch(end)
	case *AssignExpr:
		g.emitAssign(n)
	case *SequenceExpr:
		for i, item := range n.Exprs {
			if i > 0 {
				g.op(bytecode.OpPop)
			}
			g.emitExpr(item)
		}
	case *ParenExpr:
		g.emitExpr(n.Expr)
	case *MemberExpr, *CallExpr:
		g.emitChain(n)
	case *NewExpr:
		g.emitExpr(n.Callee)
		g.arguments(n.Args)
		g.call(bytecode.OpNew, n.SpanVal.Start)
	case *YieldExpr:
		if n.Delegate {
			g.emitDelegate(n)
			break
		}
		if n.Arg != nil {
			g.emitExpr(n.Arg)
		} else {
			g.op(bytecode.OpPushUndefined)
		}
		g.op(bytecode.OpYield)
	case *AwaitExpr:
		g.emitExpr(n.Arg)
		g.op(bytecode.OpAwait)
	case *SpreadElement:
		g.fail(n.SpanVal.Start, "Unexpected token '...'")
	default:
		g.fail(e.Span().Start, "Unsupported expression %T", e)
	}
}

// emitTemplate pushes every non-empty chunk and substitution in source
// order and joins them with CONCAT.
func (g *Generator) emitTemplate(n *TemplateLiteral) {
	count := 0
	for i, quasi := range n.Quasis {
		if quasi != "" {
			g.opString(bytecode.OpPushString, quasi)
			count++
		}
		if i < len(n.Exprs) {
			g.emitExpr(n.Exprs[i])
			count++
		}
	}
	if count == 0 {
		g.opString(bytecode.OpPushString, "")
		count = 1
	}
	g.opInt(bytecode.OpConcat, count)
}

// appendElements adds each element to the array on top of the stack.
// Holes become undefined.
func (g *Generator) appendElements(elements []Expr) {
	for _, el := range elements {
		switch v := el.(type) {
		case nil:
			g.op(bytecode.OpPushUndefined)
			g.op(bytecode.OpAppend)
		case *SpreadElement:
			g.emitExpr(v.Arg)
			g.op(bytecode.OpSpread)
		default:
			g.emitExpr(v)
			g.op(bytecode.OpAppend)
		}
	}
}

// arguments pushes the argument array of a call.
func (g *Generator) arguments(args []Expr) {
	g.op(bytecode.OpPushArray)
	g.appendElements(args)
}

func (g *Generator) emitObject(n *ObjectLiteral) {
	g.op(bytecode.OpPushObject)
	for _, prop := range n.Properties {
		if prop.Kind == PropertySpread {
			g.emitExpr(prop.Value)
			g.op(bytecode.OpObjectSpread)
			continue
		}
		g.emitExpr(prop.Key)
		g.emitExpr(prop.Value)
		g.op(bytecode.OpDefField)
	}
}

func (g *Generator) emitUnary(n *UnaryExpr) {
	switch n.Op {
	case "typeof":
		if id, ok := unparen(n.Operand).(*Identifier); ok {
			g.opString(bytecode.OpTypeofName, id.Name)
			return
		}
	case "delete":
		if m, ok := unparen(n.Operand).(*MemberExpr); ok && !hasOptional(m) {
			g.emitExpr(m.Object)
			g.propertyKey(m)
			g.op(bytecode.OpDelField)
			return
		}
		g.emitExpr(n.Operand)
		g.op(bytecode.OpPop)
		g.op(bytecode.OpPushTrue)
		return
	}
	g.emitExpr(n.Operand)
	g.op(unaryOpcodes[n.Op])
}

func (g *Generator) emitUpdate(n *UpdateExpr) {
	step := bytecode.OpInc
	if n.Op == "--" {
		step = bytecode.OpDec
	}
	switch target := unparen(n.Target).(type) {
	case *Identifier:
		g.opString(bytecode.OpLoad, target.Name)
		if n.Prefix {
			g.op(step)
			g.opString(bytecode.OpStore, target.Name)
			return
		}
		// [old] -> [old, new] -> store -> [old]
		g.op(bytecode.OpPlus)
		g.opInt(bytecode.OpPushValue, 0)
		g.op(step)
		g.opString(bytecode.OpStore, target.Name)
		g.op(bytecode.OpPop)
	case *MemberExpr:
		g.emitExpr(target.Object)
		g.propertyKey(target)
		g.opInt(bytecode.OpPushValue, 1)
		g.opInt(bytecode.OpPushValue, 1)
		g.op(bytecode.OpGetField)
		if n.Prefix {
			g.op(step)
			g.op(bytecode.OpSetField)
			return
		}
		// [obj, key, old] -> [old, obj, key, new] -> [old]
		g.op(bytecode.OpPlus)
		g.opInt(bytecode.OpInsert, 2)
		g.opInt(bytecode.OpPushValue, 2)
		g.op(step)
		g.op(bytecode.OpSetField)
		g.op(bytecode.OpPop)
	default:
		kind := "postfix"
		if n.Prefix {
			kind = "prefix"
		}
		g.fail(n.SpanVal.Start, "Invalid left-hand side expression in %s operation", kind)
	}
}

// emitAssign leaves the assigned value on the stack.
func (g *Generator) emitAssign(n *AssignExpr) {
	op := n.Op[:len(n.Op)-1]
	jump, logical := shortCircuit[op]

	switch target := unparen(n.Target).(type) {
	case *Identifier:
		switch {
		case n.Op == "=":
			g.emitExpr(n.Value)
			g.opString(bytecode.OpStore, target.Name)
		case logical:
			g.opString(bytecode.OpLoad, target.Name)
			end := g.jump(jump)
			g.op(bytecode.OpPop)
			g.emitExpr(n.Value)
			g.opString(bytecode.OpStore, target.Name)
			g.patch(end)
		default:
			g.opString(bytecode.OpLoad, target.Name)
			g.emitExpr(n.Value)
			g.op(binaryOpcodes[op])
			g.opString(bytecode.OpStore, target.Name)
		}
	case *MemberExpr:
		g.emitExpr(target.Object)
		g.propertyKey(target)
		if n.Op == "=" {
			g.emitExpr(n.Value)
			g.op(bytecode.OpSetField)
			return
		}
		g.opInt(bytecode.OpPushValue, 1)
		g.opInt(bytecode.OpPushValue, 1)
		g.op(bytecode.OpGetField)
		if !logical {
			g.emitExpr(n.Value)
			g.op(binaryOpcodes[op])
			g.op(bytecode.OpSetField)
			return
		}
		skip := g.jump(jump)
		g.op(bytecode.OpPop)
		g.emitExpr(n.Value)
		g.op(bytecode.OpSetField)
		end := g.jump(bytecode.OpJmp)
		// [obj, key, current] -> [current]
		g.patch(skip)
		g.opInt(bytecode.OpInsert, 2)
		g.op(bytecode.OpPop)
		g.op(bytecode.OpPop)
		g.patch(end)
	default:
		g.fail(n.SpanVal.Start, "Invalid left-hand side in assignment")
	}
}

// emitDelegate lowers yield*: the inner iterator is driven with SEND and
// each of its results is yielded until it reports done. The value of the
// expression is the inner iterator's return value.
func (g *Generator) emitDelegate(n *YieldExpr) {
	g.emitExpr(n.Arg)
	if n.Async {
		g.op(bytecode.OpAsyncIterator)
	} else {
		g.op(bytecode.OpIterator)
	}
	g.op(bytecode.OpPushUndefined)

	loop := g.here()
	g.op(bytecode.OpSend)
	if n.Async {
		g.op(bytecode.OpAwait)
	}
	g.opInt(bytecode.OpPushValue, 0)
	g.opString(bytecode.OpPushString, "done")
	g.op(bytecode.OpGetField)
	end := g.jump(bytecode.OpJTrue)
	g.op(bytecode.OpPop)
	g.opString(bytecode.OpPushString, "value")
	g.op(bytecode.OpGetField)
	g.op(bytecode.OpYield)
	g.jumpTo(bytecode.OpJmp, loop)

	// [it, result, done] -> [value]
	g.patch(end)
	g.op(bytecode.OpPop)
	g.opString(bytecode.OpPushString, "value")
	g.op(bytecode.OpGetField)
	g.opInt(bytecode.OpInsert, 1)
	g.op(bytecode.OpPop)
}

// ---------------------------------------------------------------------------
// Member and call chains
// ---------------------------------------------------------------------------

func (g *Generator) propertyKey(m *MemberExpr) {
	g.emitExpr(m.Property)
}

// emitChain emits a member or call chain. Every optional link reserves a
// JNULL target; all of them land after the outermost link, so a nullish
// value anywhere short-circuits the whole chain once.
func (g *Generator) emitChain(e Expr) {
	var shorts []bytecode.Slot
	g.chainElement(e, &shorts)
	for _, slot := range shorts {
		g.patch(slot)
	}
}

func (g *Generator) chainElement(e Expr, shorts *[]bytecode.Slot) {
	switch n := e.(type) {
	case *MemberExpr:
		if _, ok := n.Object.(*SuperExpr); ok {
			g.op(bytecode.OpPushSuper)
			g.propertyKey(n)
			g.op(bytecode.OpGetField)
			return
		}
		g.chainElement(n.Object, shorts)
		if n.Optional {
			*shorts = append(*shorts, g.jump(bytecode.OpJNull))
		}
		g.propertyKey(n)
		g.op(bytecode.OpGetField)
	case *CallExpr:
		g.callElement(n, shorts)
	default:
		g.emitExpr(e)
	}
}

// callElement emits a call link. Member callees keep their receiver, also
// through parentheses that contain no optional link.
func (g *Generator) callElement(n *CallExpr, shorts *[]bytecode.Slot) {
	callee := n.Callee
	if p, ok := callee.(*ParenExpr); ok && !hasOptional(p.Expr) {
		callee = p.Expr
	}
	pos := n.SpanVal.Start

	switch c := callee.(type) {
	case *SuperExpr:
		g.arguments(n.Args)
		g.call(bytecode.OpSuperCall, pos)
		return
	case *MemberExpr:
		if _, ok := c.Object.(*SuperExpr); ok {
			g.propertyKey(c)
			g.arguments(n.Args)
			g.call(bytecode.OpSuperMemberCall, pos)
			return
		}
		g.chainElement(c.Object, shorts)
		if c.Optional {
			*shorts = append(*shorts, g.jump(bytecode.OpJNull))
		}
		g.propertyKey(c)
		if n.Optional {
			// [obj, key]: short-circuit when obj[key] is nullish
			g.opInt(bytecode.OpPushValue, 1)
			g.opInt(bytecode.OpPushValue, 1)
			g.op(bytecode.OpGetField)
			ok := g.jump(bytecode.OpJNotNull)
			g.op(bytecode.OpPop)
			g.op(bytecode.OpPop)
			g.op(bytecode.OpPop)
			g.op(bytecode.OpPushUndefined)
			*shorts = append(*shorts, g.jump(bytecode.OpJmp))
			g.patch(ok)
			g.op(bytecode.OpPop)
		}
		g.arguments(n.Args)
		g.call(bytecode.OpMemberCall, pos)
	default:
		g.chainElement(callee, shorts)
		if n.Optional {
			*shorts = append(*shorts, g.jump(bytecode.OpJNull))
		}
		g.arguments(n.Args)
		g.call(bytecode.OpCall, pos)
	}
}
