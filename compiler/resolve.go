package compiler

// ---------------------------------------------------------------------------
// Resolve: closure analysis
// ---------------------------------------------------------------------------

// Resolve fills in the closure set of every function and class literal in
// prog. A name belongs in a function's set when it is declared in an
// enclosing function rather than inside the function itself. Names found
// nowhere are implicit globals and `arguments` always refers to the callee's
// own argument list, so neither is ever captured.
//
// Captures propagate outward: when an inner function captures a name that
// is also free in its parent, the parent captures it too, so the binding is
// available when the inner function is created.
func Resolve(prog *Program, scopes *ScopeTable) {
	r := &resolver{scopes: scopes}
	top := NewClosureSet()
	r.stmts(prog.Body, top)
}

type resolver struct {
	scopes *ScopeTable
}

// reference records a use of name appearing in scope from.
func (r *resolver) reference(name string, from ScopeID, set *ClosureSet) {
	if name == "arguments" {
		return
	}
	id := from
	for {
		s := r.scopes.Get(id)
		if s.Has(name) {
			return
		}
		if s.Kind == ScopeFunction {
			break
		}
		id = s.Parent
	}
	for id = r.scopes.Get(id).Parent; id != NoScope; id = r.scopes.Get(id).Parent {
		if r.scopes.Get(id).Has(name) {
			set.Add(name)
			return
		}
	}
}

// propagate re-resolves captured names from the scope a literal appears in.
func (r *resolver) propagate(captured *ClosureSet, outer ScopeID, set *ClosureSet) {
	for _, name := range captured.Names() {
		r.reference(name, outer, set)
	}
}

func (r *resolver) function(fn *FunctionLiteral) *ClosureSet {
	fn.Closure = NewClosureSet()
	for _, param := range fn.Params {
		if param.Default != nil {
			r.expr(param.Default, fn.Closure)
		}
	}
	r.stmts(fn.Body, fn.Closure)
	if fn.ExprBody != nil {
		r.expr(fn.ExprBody, fn.Closure)
	}
	return fn.Closure
}

// class collects the captures of every method into the class's own set.
func (r *resolver) class(cls *ClassLiteral, set *ClosureSet) {
	if cls.Parent != nil {
		r.expr(cls.Parent, set)
	}
	cls.Closure = NewClosureSet()
	collect := func(fn *FunctionLiteral) {
		for _, name := range r.function(fn).Names() {
			cls.Closure.Add(name)
		}
	}
	collect(cls.Constructor)
	if cls.FieldInit != nil {
		collect(cls.FieldInit)
	}
	for _, m := range cls.Members {
		if m.Computed {
			r.expr(m.Key, set)
		}
		collect(m.Value)
	}
	r.propagate(cls.Closure, cls.Outer, set)
}

func (r *resolver) stmts(list []Stmt, set *ClosureSet) {
	for _, s := range list {
		r.stmt(s, set)
	}
}

func (r *resolver) stmt(s Stmt, set *ClosureSet) {
	switch n := s.(type) {
	case nil:
	case *BlockStmt:
		r.stmts(n.Body, set)
	case *ExprStmt:
		r.expr(n.Expr, set)
	case *VarDecl:
		r.varDecl(n, set)
	case *FunctionDecl:
		r.propagate(r.function(n.Func), n.Func.Outer, set)
	case *ClassDecl:
		r.class(n.Class, set)
	case *IfStmt:
		r.expr(n.Test, set)
		r.stmt(n.Cons, set)
		r.stmt(n.Alt, set)
	case *ForStmt:
		switch init := n.Init.(type) {
		case *VarDecl:
			r.varDecl(init, set)
		case Expr:
			r.expr(init, set)
		}
		r.expr(n.Test, set)
		r.expr(n.Update, set)
		r.stmt(n.Body, set)
	case *ForInStmt:
		if target, ok := n.Left.(Expr); ok {
			r.expr(target, set)
		}
		r.expr(n.Right, set)
		r.stmt(n.Body, set)
	case *WhileStmt:
		r.expr(n.Test, set)
		r.stmt(n.Body, set)
	case *DoWhileStmt:
		r.stmt(n.Body, set)
		r.expr(n.Test, set)
	case *SwitchStmt:
		r.expr(n.Discriminant, set)
		for _, c := range n.Cases {
			r.expr(c.Test, set)
			r.stmts(c.Body, set)
		}
	case *LabeledStmt:
		r.stmt(n.Body, set)
	case *ReturnStmt:
		r.expr(n.Arg, set)
	case *ThrowStmt:
		r.expr(n.Arg, set)
	case *TryStmt:
		r.stmt(n.Block, set)
		if n.Handler != nil {
			r.stmt(n.Handler, set)
		}
		if n.Finalizer != nil {
			r.stmt(n.Finalizer, set)
		}
	}
}

func (r *resolver) varDecl(n *VarDecl, set *ClosureSet) {
	for _, d := range n.Decls {
		r.expr(d.Init, set)
	}
}

func (r *resolver) exprs(list []Expr, set *ClosureSet) {
	for _, e := range list {
		r.expr(e, set)
	}
}

func (r *resolver) expr(e Expr, set *ClosureSet) {
	switch n := e.(type) {
	case nil:
	case *Identifier:
		r.reference(n.Name, n.Scope, set)
	case *TemplateLiteral:
		r.exprs(n.Exprs, set)
	case *ArrayLiteral:
		r.exprs(n.Elements, set)
	case *ObjectLiteral:
		for _, prop := range n.Properties {
			if prop.Computed {
				r.expr(prop.Key, set)
			}
			r.expr(prop.Value, set)
		}
	case *FunctionLiteral:
		r.propagate(r.function(n), n.Outer, set)
	case *ClassLiteral:
		r.class(n, set)
	case *UnaryExpr:
		r.expr(n.Operand, set)
	case *UpdateExpr:
		r.expr(n.Target, set)
	case *BinaryExpr:
		r.expr(n.Left, set)
		r.expr(n.Right, set)
	case *LogicalExpr:
		r.expr(n.Left, set)
		r.expr(n.Right, set)
	case *ConditionalExpr:
		r.expr(n.Test, set)
		r.expr(n.Cons, set)
		r.expr(n.Alt, set)
	case *AssignExpr:
		r.expr(n.Target, set)
		r.expr(n.Value, set)
	case *SequenceExpr:
		r.exprs(n.Exprs, set)
	case *ParenExpr:
		r.expr(n.Expr, set)
	case *MemberExpr:
		r.expr(n.Object, set)
		if n.Computed {
			r.expr(n.Property, set)
		}
	case *CallExpr:
		r.expr(n.Callee, set)
		r.exprs(n.Args, set)
	case *NewExpr:
		r.expr(n.Callee, set)
		r.exprs(n.Args, set)
	case *SpreadElement:
		r.expr(n.Arg, set)
	case *YieldExpr:
		r.expr(n.Arg, set)
	case *AwaitExpr:
		r.expr(n.Arg, set)
	}
}
