package compiler

import (
	"github.com/chazu/neojs/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) emitStmts(list []Stmt) {
	for _, s := range list {
		g.emitStmt(s)
	}
}

func (g *Generator) emitStmt(s Stmt) {
	switch n := s.(type) {
	case nil, *EmptyStmt, *FunctionDecl:
		// function declarations are emitted with their scope
	case *BlockStmt:
		opened := g.pushScope(n.Scope)
		g.emitStmts(n.Body)
		g.popScope(n.Scope, opened)
	case *ExprStmt:
		g.emitExpr(n.Expr)
		if g.fn == nil {
			g.op(bytecode.OpSave)
		} else {
			g.op(bytecode.OpPop)
		}
	case *VarDecl:
		g.emitVarDecl(n)
	case *ClassDecl:
		g.classValue(n.Class)
		g.opString(bytecode.OpDef, n.Class.Name)
	case *IfStmt:
		g.emitIf(n)
	case *WhileStmt:
		g.emitWhile(n)
	case *DoWhileStmt:
		g.emitDoWhile(n)
	case *ForStmt:
		g.emitFor(n)
	case *ForInStmt:
		g.emitForIn(n)
	case *SwitchStmt:
		g.emitSwitch(n)
	case *LabeledStmt:
		g.emitLabeled(n)
	case *BreakStmt:
		g.opString(bytecode.OpBreak, g.breakTarget(n))
	case *ContinueStmt:
		g.opString(bytecode.OpContinue, g.continueTarget(n))
	case *ReturnStmt:
		if n.Arg != nil {
			g.emitExpr(n.Arg)
		} else {
			g.op(bytecode.OpPushUndefined)
		}
		g.op(bytecode.OpRet)
	case *ThrowStmt:
		g.emitExpr(n.Arg)
		g.op(bytecode.OpThrow)
	case *TryStmt:
		g.emitTry(n)
	case *DebuggerStmt:
		g.op(bytecode.OpDebugger)
	default:
		g.fail(s.Span().Start, "Unsupported statement %T", s)
	}
}

func (g *Generator) emitVarDecl(n *VarDecl) {
	for _, d := range n.Decls {
		switch {
		case n.Kind == VarVar:
			if d.Init == nil {
				continue
			}
			g.emitExpr(d.Init)
			g.opString(bytecode.OpStore, d.Name)
			g.op(bytecode.OpPop)
		case d.Init == nil:
			g.op(bytecode.OpPushUndefined)
			g.opString(bytecode.OpDef, d.Name)
		default:
			g.emitExpr(d.Init)
			g.opString(bytecode.OpDef, d.Name)
		}
	}
}

func (g *Generator) emitIf(n *IfStmt) {
	g.emitExpr(n.Test)
	alt := g.jump(bytecode.OpJFalse)
	g.op(bytecode.OpPop)
	g.emitStmt(n.Cons)
	end := g.jump(bytecode.OpJmp)
	g.patch(alt)
	g.op(bytecode.OpPop)
	g.emitStmt(n.Alt)
	g.patch(end)
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// takeLabel returns the statement label of the loop or switch about to be
// emitted and clears it.
func (g *Generator) takeLabel() string {
	name := g.loopLabel
	g.loopLabel = ""
	return name
}

// enterLoop opens the break label of a loop or switch and registers it for
// break and continue resolution.
func (g *Generator) enterLoop(name string, iteration bool) bytecode.Slot {
	g.labels = append(g.labels, labelEntry{name: name, breakable: true, iteration: iteration})
	return g.pushLabel(bytecode.OpPushBreakLabel, name)
}

// leaveLoop lands the break label and pops its frame.
func (g *Generator) leaveLoop(brk bytecode.Slot) {
	g.labels = g.labels[:len(g.labels)-1]
	g.patch(brk)
	g.op(bytecode.OpPopLabel)
}

func (g *Generator) emitWhile(n *WhileStmt) {
	name := g.takeLabel()
	brk := g.enterLoop(name, true)
	begin := g.here()
	g.emitExpr(n.Test)
	end := g.jump(bytecode.OpJFalse)
	g.op(bytecode.OpPop)
	cont := g.pushLabel(bytecode.OpPushContinueLabel, name)
	g.emitStmt(n.Body)
	g.patch(cont)
	g.op(bytecode.OpPopLabel)
	g.jumpTo(bytecode.OpJmp, begin)
	g.patch(end)
	g.op(bytecode.OpPop)
	g.leaveLoop(brk)
}

func (g *Generator) emitDoWhile(n *DoWhileStmt) {
	name := g.takeLabel()
	brk := g.enterLoop(name, true)
	begin := g.here()
	cont := g.pushLabel(bytecode.OpPushContinueLabel, name)
	g.emitStmt(n.Body)
	g.patch(cont)
	g.op(bytecode.OpPopLabel)
	g.emitExpr(n.Test)
	end := g.jump(bytecode.OpJFalse)
	g.op(bytecode.OpPop)
	g.jumpTo(bytecode.OpJmp, begin)
	g.patch(end)
	g.op(bytecode.OpPop)
	g.leaveLoop(brk)
}

// emitFor lowers for(;;). A lexical head gets one scope frame that is
// renewed at the continue point, so closures created in the body see a
// fresh binding per iteration.
func (g *Generator) emitFor(n *ForStmt) {
	name := g.takeLabel()
	opened := g.pushScope(n.Scope)
	switch init := n.Init.(type) {
	case nil:
	case *VarDecl:
		g.emitVarDecl(init)
	case Expr:
		g.emitExpr(init)
		g.op(bytecode.OpPop)
	}

	brk := g.enterLoop(name, true)
	begin := g.here()
	if n.Test != nil {
		g.emitExpr(n.Test)
	} else {
		g.op(bytecode.OpPushTrue)
	}
	end := g.jump(bytecode.OpJFalse)
	g.op(bytecode.OpPop)
	cont := g.pushLabel(bytecode.OpPushContinueLabel, name)
	g.emitStmt(n.Body)
	g.patch(cont)
	g.op(bytecode.OpPopLabel)
	if opened {
		g.op(bytecode.OpRenewScope)
	}
	if n.Update != nil {
		g.emitExpr(n.Update)
		g.op(bytecode.OpPop)
	}
	g.jumpTo(bytecode.OpJmp, begin)
	g.patch(end)
	g.op(bytecode.OpPop)
	g.leaveLoop(brk)
	g.popScope(n.Scope, opened)
}

// emitForIn lowers for-in, for-of and for await-of. The iterator stays on
// the stack for the whole loop; each iteration gets its own scope frame.
func (g *Generator) emitForIn(n *ForInStmt) {
	name := g.takeLabel()
	g.emitExpr(n.Right)
	switch {
	case n.Await:
		g.op(bytecode.OpAsyncIterator)
	case n.Of:
		g.op(bytecode.OpIterator)
	default:
		g.op(bytecode.OpKeys)
		g.op(bytecode.OpIterator)
	}

	brk := g.enterLoop(name, true)
	begin := g.here()
	if n.Await {
		// [it] -> [it, value, done], the same shape NEXT leaves
		g.op(bytecode.OpPushUndefined)
		g.op(bytecode.OpSend)
		g.op(bytecode.OpAwait)
		g.opInt(bytecode.OpPushValue, 0)
		g.opString(bytecode.OpPushString, "value")
		g.op(bytecode.OpGetField)
		g.opInt(bytecode.OpInsert, 1)
		g.opString(bytecode.OpPushString, "done")
		g.op(bytecode.OpGetField)
	} else {
		g.op(bytecode.OpNext)
	}
	end := g.jump(bytecode.OpJTrue)
	g.op(bytecode.OpPop)

	opened := g.pushScope(n.Scope)
	g.assignIteration(n.Left)
	cont := g.pushLabel(bytecode.OpPushContinueLabel, name)
	g.emitStmt(n.Body)
	g.patch(cont)
	g.op(bytecode.OpPopLabel)
	g.popScope(n.Scope, opened)
	g.jumpTo(bytecode.OpJmp, begin)

	// done: the step value and its flag are still on the stack
	g.patch(end)
	g.op(bytecode.OpPop)
	g.op(bytecode.OpPop)
	g.leaveLoop(brk)
	g.op(bytecode.OpPop)
}

// assignIteration stores the value on top of the stack into the loop
// target, consuming it.
func (g *Generator) assignIteration(left Node) {
	switch t := left.(type) {
	case *VarDecl:
		name := t.Decls[0].Name
		if t.Kind == VarVar {
			g.opString(bytecode.OpStore, name)
			g.op(bytecode.OpPop)
		} else {
			g.opString(bytecode.OpDef, name)
		}
	case Expr:
		switch target := unparen(t).(type) {
		case *Identifier:
			g.opString(bytecode.OpStore, target.Name)
			g.op(bytecode.OpPop)
		case *MemberExpr:
			g.emitExpr(target.Object)
			g.propertyKey(target)
			g.opInt(bytecode.OpPushValue, 2)
			g.op(bytecode.OpSetField)
			g.op(bytecode.OpPop)
			g.op(bytecode.OpPop)
		default:
			g.fail(t.Span().Start, "Invalid left-hand side in for-loop")
		}
	}
}

// ---------------------------------------------------------------------------
// Switch, labels and jumps
// ---------------------------------------------------------------------------

// emitSwitch tests every case against the discriminant first, then lays
// out the bodies in order so control falls through from one to the next.
// Each way into a body drops what the tests left on the stack; falling
// through from the previous body jumps past that cleanup.
func (g *Generator) emitSwitch(n *SwitchStmt) {
	brk := g.enterLoop(g.takeLabel(), false)
	opened := g.pushScope(n.Scope)
	g.emitExpr(n.Discriminant)

	pads := make([]bytecode.Slot, len(n.Cases))
	hasDefault := false
	for i, c := range n.Cases {
		if c.Test == nil {
			hasDefault = true
			continue
		}
		g.opInt(bytecode.OpPushValue, 0)
		g.emitExpr(c.Test)
		g.op(bytecode.OpSeq)
		pads[i] = g.jump(bytecode.OpJTrue)
		g.op(bytecode.OpPop)
	}
	noMatch := g.jump(bytecode.OpJmp)

	for i, c := range n.Cases {
		var over bytecode.Slot
		if i > 0 {
			over = g.jump(bytecode.OpJmp)
		}
		if c.Test != nil {
			// [disc, true]
			g.patch(pads[i])
			g.op(bytecode.OpPop)
		} else {
			// [disc]
			g.patch(noMatch)
		}
		g.op(bytecode.OpPop)
		if i > 0 {
			g.patch(over)
		}
		g.emitStmts(c.Body)
	}
	if !hasDefault {
		skip := g.jump(bytecode.OpJmp)
		g.patch(noMatch)
		g.op(bytecode.OpPop)
		g.patch(skip)
	}

	g.popScope(n.Scope, opened)
	g.leaveLoop(brk)
}

// emitLabeled gives a loop or switch its label; any other statement gets a
// break-only label frame of its own.
func (g *Generator) emitLabeled(n *LabeledStmt) {
	for _, l := range g.labels {
		if l.name == n.Label {
			g.fail(n.SpanVal.Start, "Label '%s' has already been declared", n.Label)
		}
	}
	switch n.Body.(type) {
	case *WhileStmt, *DoWhileStmt, *ForStmt, *ForInStmt, *SwitchStmt:
		g.loopLabel = n.Label
		g.emitStmt(n.Body)
		return
	}
	g.labels = append(g.labels, labelEntry{name: n.Label})
	brk := g.pushLabel(bytecode.OpPushBreakLabel, n.Label)
	g.emitStmt(n.Body)
	g.labels = g.labels[:len(g.labels)-1]
	g.patch(brk)
	g.op(bytecode.OpPopLabel)
}

// breakTarget resolves the label a break jumps to. An unlabelled break
// targets the nearest loop or switch.
func (g *Generator) breakTarget(n *BreakStmt) string {
	for i := len(g.labels) - 1; i >= 0; i-- {
		l := g.labels[i]
		if n.Label == "" {
			if l.breakable {
				return l.name
			}
			continue
		}
		if l.name == n.Label {
			return l.name
		}
	}
	if n.Label == "" {
		g.fail(n.SpanVal.Start, "Illegal break statement")
	}
	g.fail(n.SpanVal.Start, "Undefined label '%s'", n.Label)
	return ""
}

func (g *Generator) continueTarget(n *ContinueStmt) string {
	for i := len(g.labels) - 1; i >= 0; i-- {
		l := g.labels[i]
		if n.Label == "" {
			if l.iteration {
				return l.name
			}
			continue
		}
		if l.name == n.Label {
			if !l.iteration {
				g.fail(n.SpanVal.Start, "Illegal continue statement: '%s' does not denote an iteration statement", n.Label)
			}
			return l.name
		}
	}
	if n.Label == "" {
		g.fail(n.SpanVal.Start, "Illegal continue statement: no surrounding iteration statement")
	}
	g.fail(n.SpanVal.Start, "Undefined label '%s'", n.Label)
	return ""
}

// ---------------------------------------------------------------------------
// Try
// ---------------------------------------------------------------------------

// emitTry lays out the protected block, the catch handler and the finally
// block in that order. TRY_END leaves the current phase; the VM moves into
// the finally block on its own when there is one.
func (g *Generator) emitTry(n *TryStmt) {
	g.op(bytecode.OpTryBegin)
	var catchSlot, finallySlot bytecode.Slot
	if n.Handler != nil {
		catchSlot = g.prog.Reserve()
	} else {
		g.prog.EmitAddress(0)
	}
	if n.Finalizer != nil {
		finallySlot = g.prog.Reserve()
	} else {
		g.prog.EmitAddress(0)
	}

	g.emitStmt(n.Block)
	g.op(bytecode.OpTryEnd)

	if n.Handler != nil {
		skip := g.jump(bytecode.OpJmp)
		g.patch(catchSlot)
		opened := g.pushScope(n.CatchScope)
		if n.Param != "" {
			g.opString(bytecode.OpDef, n.Param)
		} else {
			g.op(bytecode.OpPop)
		}
		g.emitStmt(n.Handler)
		g.popScope(n.CatchScope, opened)
		g.op(bytecode.OpTryEnd)
		g.patch(skip)
	}
	if n.Finalizer != nil {
		g.patch(finallySlot)
		g.emitStmt(n.Finalizer)
		g.op(bytecode.OpTryEnd)
	}
}
