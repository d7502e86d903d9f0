package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for the script language
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal, or a static property name.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// TemplateLiteral represents `q0${e0}q1...`. Quasis has one more element
// than Exprs.
type TemplateLiteral struct {
	SpanVal Span
	Quasis  []string
	Exprs   []Expr
}

func (n *TemplateLiteral) Span() Span { return n.SpanVal }
func (n *TemplateLiteral) node()      {}
func (n *TemplateLiteral) expr()      {}

type BooleanLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BooleanLiteral) Span() Span { return n.SpanVal }
func (n *BooleanLiteral) node()      {}
func (n *BooleanLiteral) expr()      {}

type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// ArrayLiteral represents [a, ...b, , c]. Holes are nil.
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// PropertyKind distinguishes object literal members.
type PropertyKind int

const (
	PropertyInit PropertyKind = iota
	PropertyMethod
	PropertySpread
)

// Property is one member of an object literal. For spreads only Value is
// set.
type Property struct {
	SpanVal  Span
	Kind     PropertyKind
	Key      Expr // *StringLiteral unless Computed
	Computed bool
	Value    Expr
}

// ObjectLiteral represents {a: 1, b, [k]: v, m() {}, ...o}.
type ObjectLiteral struct {
	SpanVal    Span
	Properties []*Property
}

func (n *ObjectLiteral) Span() Span { return n.SpanVal }
func (n *ObjectLiteral) node()      {}
func (n *ObjectLiteral) expr()      {}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// Identifier is a name reference. Scope is the scope the reference appears
// in; the resolver walks outward from there.
type Identifier struct {
	SpanVal Span
	Name    string
	Scope   ScopeID
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

type ThisExpr struct {
	SpanVal Span
}

func (n *ThisExpr) Span() Span { return n.SpanVal }
func (n *ThisExpr) node()      {}
func (n *ThisExpr) expr()      {}

// SuperExpr only appears as a callee or a member host.
type SuperExpr struct {
	SpanVal Span
}

func (n *SuperExpr) Span() Span { return n.SpanVal }
func (n *SuperExpr) node()      {}
func (n *SuperExpr) expr()      {}

// ---------------------------------------------------------------------------
// Functions and classes
// ---------------------------------------------------------------------------

// FunctionKind is the coroutine flavor of a function.
type FunctionKind int

const (
	FunctionNormal FunctionKind = iota
	FunctionGenerator
	FunctionAsync
	FunctionAsyncGenerator
)

// Param is a formal parameter.
type Param struct {
	SpanVal Span
	Name    string
	Default Expr
	Rest    bool
}

// FunctionLiteral is shared by declarations, expressions, arrows, methods
// and class constructors.
type FunctionLiteral struct {
	SpanVal  Span
	Name     string
	Kind     FunctionKind
	Arrow    bool
	Params   []*Param
	Body     []Stmt
	ExprBody Expr // concise arrow body

	// Scope is the function's own scope; Outer is the scope the literal
	// appears in.
	Scope ScopeID
	Outer ScopeID

	// Closure lists the names captured from enclosing functions, filled
	// in by Resolve.
	Closure *ClosureSet

	Source      string
	Constructor bool // class constructor
}

func (n *FunctionLiteral) Span() Span { return n.SpanVal }
func (n *FunctionLiteral) node()      {}
func (n *FunctionLiteral) expr()      {}

// ClassMember is a method of a class body.
type ClassMember struct {
	SpanVal  Span
	Key      Expr
	Computed bool
	Static   bool
	Value    *FunctionLiteral
}

// ClassLiteral represents a class declaration or expression.
type ClassLiteral struct {
	SpanVal     Span
	Name        string
	Parent      Expr
	Constructor *FunctionLiteral
	Members     []*ClassMember

	// FieldInit assigns instance fields; it runs with the new instance as
	// this before the constructor body.
	FieldInit *FunctionLiteral

	Outer   ScopeID
	Closure *ClosureSet
}

func (n *ClassLiteral) Span() Span { return n.SpanVal }
func (n *ClassLiteral) node()      {}
func (n *ClassLiteral) expr()      {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

type UnaryExpr struct {
	SpanVal Span
	Op      string // ! ~ - + typeof void delete
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// UpdateExpr represents ++x, x--, etc.
type UpdateExpr struct {
	SpanVal Span
	Op      string
	Prefix  bool
	Target  Expr
}

func (n *UpdateExpr) Span() Span { return n.SpanVal }
func (n *UpdateExpr) node()      {}
func (n *UpdateExpr) expr()      {}

type BinaryExpr struct {
	SpanVal Span
	Op      string
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// LogicalExpr represents && || ??.
type LogicalExpr struct {
	SpanVal Span
	Op      string
	Left    Expr
	Right   Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

type ConditionalExpr struct {
	SpanVal Span
	Test    Expr
	Cons    Expr
	Alt     Expr
}

func (n *ConditionalExpr) Span() Span { return n.SpanVal }
func (n *ConditionalExpr) node()      {}
func (n *ConditionalExpr) expr()      {}

// AssignExpr covers = and every compound form. Target is an *Identifier or
// a *MemberExpr.
type AssignExpr struct {
	SpanVal Span
	Op      string
	Target  Expr
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

type SequenceExpr struct {
	SpanVal Span
	Exprs   []Expr
}

func (n *SequenceExpr) Span() Span { return n.SpanVal }
func (n *SequenceExpr) node()      {}
func (n *SequenceExpr) expr()      {}

// ParenExpr keeps a parenthesized member or call apart from an enclosing
// optional chain.
type ParenExpr struct {
	SpanVal Span
	Expr    Expr
}

func (n *ParenExpr) Span() Span { return n.SpanVal }
func (n *ParenExpr) node()      {}
func (n *ParenExpr) expr()      {}

// ---------------------------------------------------------------------------
// Member access and calls
// ---------------------------------------------------------------------------

// MemberExpr represents o.p, o[k] and o?.p. Property is a *StringLiteral
// unless Computed.
type MemberExpr struct {
	SpanVal  Span
	Object   Expr
	Property Expr
	Computed bool
	Optional bool
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

type CallExpr struct {
	SpanVal  Span
	Callee   Expr
	Args     []Expr
	Optional bool
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

type NewExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

type SpreadElement struct {
	SpanVal Span
	Arg     Expr
}

func (n *SpreadElement) Span() Span { return n.SpanVal }
func (n *SpreadElement) node()      {}
func (n *SpreadElement) expr()      {}

// ---------------------------------------------------------------------------
// Coroutine expressions
// ---------------------------------------------------------------------------

type YieldExpr struct {
	SpanVal  Span
	Arg      Expr
	Delegate bool
	Async    bool // inside an async generator
}

func (n *YieldExpr) Span() Span { return n.SpanVal }
func (n *YieldExpr) node()      {}
func (n *YieldExpr) expr()      {}

type AwaitExpr struct {
	SpanVal Span
	Arg     Expr
}

func (n *AwaitExpr) Span() Span { return n.SpanVal }
func (n *AwaitExpr) node()      {}
func (n *AwaitExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Program is the root of a parsed source file.
type Program struct {
	SpanVal  Span
	Filename string
	Source   string
	Body     []Stmt
	Scope    ScopeID
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

type BlockStmt struct {
	SpanVal Span
	Body    []Stmt
	Scope   ScopeID
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

type EmptyStmt struct {
	SpanVal Span
}

func (n *EmptyStmt) Span() Span { return n.SpanVal }
func (n *EmptyStmt) node()      {}
func (n *EmptyStmt) stmt()      {}

type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Declarator is one `name = init` entry of a declaration.
type Declarator struct {
	SpanVal Span
	Name    string
	Init    Expr
}

type VarDecl struct {
	SpanVal Span
	Kind    VarKind // VarVar, VarLet, VarConst or VarUsing
	Decls   []*Declarator
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// FunctionDecl is hoisted: its binding is created on scope entry and its
// body is laid out when the scope closes.
type FunctionDecl struct {
	SpanVal Span
	Func    *FunctionLiteral
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}
func (n *FunctionDecl) stmt()      {}

type ClassDecl struct {
	SpanVal Span
	Class   *ClassLiteral
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) stmt()      {}

type IfStmt struct {
	SpanVal Span
	Test    Expr
	Cons    Stmt
	Alt     Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// ForStmt is the three-clause loop. Scope holds lexical declarations of
// Init and is NoScope otherwise.
type ForStmt struct {
	SpanVal Span
	Init    Node // *VarDecl, Expr or nil
	Test    Expr
	Update  Expr
	Body    Stmt
	Scope   ScopeID
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ForInStmt covers for-in, for-of and for await-of. Left is a *VarDecl with
// one declarator and no initializer, or an assignment target. Scope is the
// per-iteration scope of a lexical declaration, NoScope otherwise.
type ForInStmt struct {
	SpanVal Span
	Left    Node
	Right   Expr
	Body    Stmt
	Of      bool
	Await   bool
	Scope   ScopeID
}

func (n *ForInStmt) Span() Span { return n.SpanVal }
func (n *ForInStmt) node()      {}
func (n *ForInStmt) stmt()      {}

type WhileStmt struct {
	SpanVal Span
	Test    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

type DoWhileStmt struct {
	SpanVal Span
	Body    Stmt
	Test    Expr
}

func (n *DoWhileStmt) Span() Span { return n.SpanVal }
func (n *DoWhileStmt) node()      {}
func (n *DoWhileStmt) stmt()      {}

// SwitchCase is one clause; Test is nil for default.
type SwitchCase struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
}

type SwitchStmt struct {
	SpanVal      Span
	Discriminant Expr
	Cases        []*SwitchCase
	Scope        ScopeID
}

func (n *SwitchStmt) Span() Span { return n.SpanVal }
func (n *SwitchStmt) node()      {}
func (n *SwitchStmt) stmt()      {}

type LabeledStmt struct {
	SpanVal Span
	Label   string
	Body    Stmt
}

func (n *LabeledStmt) Span() Span { return n.SpanVal }
func (n *LabeledStmt) node()      {}
func (n *LabeledStmt) stmt()      {}

type BreakStmt struct {
	SpanVal Span
	Label   string
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

type ContinueStmt struct {
	SpanVal Span
	Label   string
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

type ReturnStmt struct {
	SpanVal Span
	Arg     Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

type ThrowStmt struct {
	SpanVal Span
	Arg     Expr
}

func (n *ThrowStmt) Span() Span { return n.SpanVal }
func (n *ThrowStmt) node()      {}
func (n *ThrowStmt) stmt()      {}

// TryStmt represents try/catch/finally. CatchScope holds the catch
// parameter; Param is empty for `catch {}`.
type TryStmt struct {
	SpanVal    Span
	Block      *BlockStmt
	Param      string
	CatchScope ScopeID
	Handler    *BlockStmt
	Finalizer  *BlockStmt
}

func (n *TryStmt) Span() Span { return n.SpanVal }
func (n *TryStmt) node()      {}
func (n *TryStmt) stmt()      {}

type DebuggerStmt struct {
	SpanVal Span
}

func (n *DebuggerStmt) Span() Span { return n.SpanVal }
func (n *DebuggerStmt) node()      {}
func (n *DebuggerStmt) stmt()      {}
