package compiler

import (
	"strconv"

	"github.com/joomcode/errorx"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser with scope tracking
// ---------------------------------------------------------------------------

// Parser turns source text into an AST and builds the scope table as it
// goes: every declaration is recorded in the scope on top of an explicit
// scope stack, and every identifier remembers the scope it appeared in.
//
// Errors are raised by panicking with an errorx error and recovered in
// Parse.
type Parser struct {
	input    string
	filename string

	tokens []Token
	idx    int
	cur    Token
	prev   Token

	scopes     *ScopeTable
	scopeStack []ScopeID
	fn         *funcContext
	noIn       bool
}

// funcContext tracks what the innermost function allows.
type funcContext struct {
	parent *funcContext
	lit    *FunctionLiteral // nil for the program
	kind   FunctionKind
	arrow  bool
	method bool // super.x is allowed
	ctor   bool // super() is allowed
}

// NewParser creates a parser for the given source.
func NewParser(input, filename string) *Parser {
	p := &Parser{
		input:    input,
		filename: filename,
		scopes:   NewScopeTable(),
	}
	p.tokens = tokenizeRange(input, 0, len(input), Position{Line: 1, Column: 1})
	p.cur = p.tokens[0]
	return p
}

func tokenizeRange(input string, start, end int, at Position) []Token {
	l := newRangeLexer(input, start, end, at)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}

// Parse parses a whole program. The returned scope table is needed by
// Resolve and by the generator.
func Parse(input, filename string) (prog *Program, scopes *ScopeTable, err error) {
	p := NewParser(input, filename)
	defer func() {
		if r := recover(); r != nil {
			prog, scopes = nil, nil
			err = recoverError(r)
		}
	}()
	return p.ParseProgram(), p.scopes, nil
}

// recoverError turns a recovered panic back into the error it carries.
// Front-end errors are raised bare; anything else arrives through
// errorx.Panic or as a runtime fault.
func recoverError(r interface{}) error {
	if err, ok := r.(*errorx.Error); ok {
		return err
	}
	if err, ok := errorx.ErrorFromPanic(r); ok {
		return err
	}
	return errorx.IllegalState.New("%v", r)
}

// Scopes returns the scope table built so far.
func (p *Parser) Scopes() *ScopeTable {
	return p.scopes
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

func (p *Parser) next() {
	p.prev = p.cur
	if p.idx < len(p.tokens)-1 {
		p.idx++
	}
	p.cur = p.tokens[p.idx]
	if p.cur.Type == TokenError {
		p.failToken(p.cur)
	}
}

// peekAt returns the token n positions ahead of the current one.
func (p *Parser) peekAt(n int) Token {
	i := p.idx + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) is(text string) bool {
	return p.cur.Is(text)
}

func (p *Parser) isName(text string) bool {
	return p.cur.IsName(text)
}

// eat consumes the current token if it is the given punctuator or keyword.
func (p *Parser) eat(text string) bool {
	if p.cur.Is(text) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(text string) Token {
	if !p.cur.Is(text) {
		p.unexpected()
	}
	tok := p.cur
	p.next()
	return tok
}

func (p *Parser) expectIdentifier() Token {
	if p.cur.Type != TokenIdentifier {
		p.unexpected()
	}
	tok := p.cur
	p.next()
	return tok
}

// consumeSemicolon applies automatic semicolon insertion.
func (p *Parser) consumeSemicolon() {
	if p.eat(";") {
		return
	}
	if p.is("}") || p.cur.Type == TokenEOF || p.cur.NewlineBefore {
		return
	}
	p.unexpected()
}

func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prev.End}
}

func (p *Parser) sourceOf(span Span) string {
	return p.input[span.Start.Offset:span.End.Offset]
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (p *Parser) fail(pos Position, format string, args ...interface{}) {
	raise(syntaxErrorAt(pos, format, args...))
}

func (p *Parser) failToken(tok Token) {
	if tok.End.Offset >= len(p.input) && (tok.Literal == "Unterminated template literal" || tok.Literal == "Invalid or unexpected token") {
		raise(IncompleteInput.New("%s", tok.Literal).WithProperty(PositionProperty, tok.Pos))
	}
	p.fail(tok.Pos, "%s", tok.Literal)
}

func (p *Parser) unexpected() {
	tok := p.cur
	switch tok.Type {
	case TokenEOF:
		raise(IncompleteInput.New("Unexpected end of input").WithProperty(PositionProperty, tok.Pos))
	case TokenError:
		p.failToken(tok)
	case TokenNumber:
		p.fail(tok.Pos, "Unexpected number")
	case TokenString:
		p.fail(tok.Pos, "Unexpected string")
	case TokenTemplate:
		p.fail(tok.Pos, "Unexpected template string")
	case TokenIdentifier:
		p.fail(tok.Pos, "Unexpected identifier '%s'", tok.Literal)
	default:
		p.fail(tok.Pos, "Unexpected token '%s'", tok.Literal)
	}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (p *Parser) scope() ScopeID {
	return p.scopeStack[len(p.scopeStack)-1]
}

func (p *Parser) pushScope(kind ScopeKind) ScopeID {
	parent := NoScope
	if len(p.scopeStack) > 0 {
		parent = p.scope()
	}
	id := p.scopes.New(kind, parent)
	p.scopeStack = append(p.scopeStack, id)
	return id
}

// reenterScope puts an already allocated scope back on the stack.
func (p *Parser) reenterScope(id ScopeID) {
	p.scopeStack = append(p.scopeStack, id)
}

func (p *Parser) popScope() {
	p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
}

func (p *Parser) declare(name string, kind VarKind, pos Position) *Binding {
	if name == "let" && kind.Lexical() {
		p.fail(pos, "let is disallowed as a lexically bound name")
	}
	b, err := p.scopes.Declare(p.scope(), name, kind, pos)
	if err != nil {
		p.fail(pos, "%s", err.Error())
	}
	return b
}

func (p *Parser) identifier(tok Token) *Identifier {
	return &Identifier{
		SpanVal: Span{Start: tok.Pos, End: tok.End},
		Name:    tok.Literal,
		Scope:   p.scope(),
	}
}

// ---------------------------------------------------------------------------
// Function context
// ---------------------------------------------------------------------------

func (p *Parser) enterFunction(fc *funcContext) {
	fc.parent = p.fn
	p.fn = fc
}

func (p *Parser) leaveFunction() {
	p.fn = p.fn.parent
}

func (p *Parser) inGenerator() bool {
	return !p.fn.arrow && (p.fn.kind == FunctionGenerator || p.fn.kind == FunctionAsyncGenerator)
}

// awaitAllowed is true inside async functions and at the top level of a
// program.
func (p *Parser) awaitAllowed() bool {
	return p.fn.lit == nil || p.fn.kind == FunctionAsync || p.fn.kind == FunctionAsyncGenerator
}

// superContext skips arrows, which see the super of their surroundings.
func (p *Parser) superContext() *funcContext {
	fc := p.fn
	for fc != nil && fc.arrow {
		fc = fc.parent
	}
	return fc
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input.
func (p *Parser) ParseProgram() *Program {
	if p.cur.Type == TokenError {
		p.failToken(p.cur)
	}
	prog := &Program{
		Filename: p.filename,
		Source:   p.input,
	}
	prog.Scope = p.pushScope(ScopeFunction)
	p.enterFunction(&funcContext{kind: FunctionAsync})

	start := p.cur.Pos
	for p.cur.Type != TokenEOF {
		prog.Body = append(prog.Body, p.parseStatement())
	}
	prog.SpanVal = Span{Start: start, End: p.cur.End}

	p.leaveFunction()
	p.popScope()
	return prog
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Stmt {
	tok := p.cur
	switch tok.Type {
	case TokenPunct:
		switch tok.Literal {
		case "{":
			return p.parseBlock()
		case ";":
			p.next()
			return &EmptyStmt{SpanVal: Span{Start: tok.Pos, End: tok.End}}
		}
	case TokenKeyword:
		switch tok.Literal {
		case "var", "const":
			return p.parseVarStatement()
		case "function":
			return p.parseFunctionDeclaration(tok.Pos, false)
		case "class":
			return p.parseClassDeclaration()
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "switch":
			return p.parseSwitch()
		case "break", "continue":
			return p.parseJump()
		case "return":
			return p.parseReturn()
		case "throw":
			return p.parseThrow()
		case "try":
			return p.parseTry()
		case "debugger":
			p.next()
			p.consumeSemicolon()
			return &DebuggerStmt{SpanVal: p.spanFrom(tok.Pos)}
		case "import":
			if !p.peekAt(1).Is("(") && !p.peekAt(1).Is(".") {
				p.fail(tok.Pos, "Cannot use import statement outside a module")
			}
		case "export":
			p.fail(tok.Pos, "Unexpected token 'export'")
		case "with":
			p.fail(tok.Pos, "Strict mode code may not include a with statement")
		}
	case TokenIdentifier:
		next := p.peekAt(1)
		switch {
		case tok.Literal == "let" && (next.Type == TokenIdentifier || next.Is("[") || next.Is("{")):
			return p.parseVarStatement()
		case tok.Literal == "using" && next.Type == TokenIdentifier && !next.NewlineBefore && !next.IsName("in") && !next.IsName("of"):
			return p.parseVarStatement()
		case tok.Literal == "await" && next.IsName("using") && p.awaitAllowed():
			p.fail(tok.Pos, "'await using' declarations are not supported")
		case tok.Literal == "async" && next.Is("function") && !next.NewlineBefore:
			return p.parseFunctionDeclaration(tok.Pos, true)
		case next.Is(":"):
			return p.parseLabeled()
		}
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() Stmt {
	start := p.cur.Pos
	expr := p.parseExpression()
	p.consumeSemicolon()
	return &ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

// parseBlock parses `{ ... }` in a fresh block scope.
func (p *Parser) parseBlock() *BlockStmt {
	start := p.expect("{").Pos
	block := &BlockStmt{Scope: p.pushScope(ScopeBlock)}
	block.Body = p.parseStatementsUntilBrace()
	p.popScope()
	block.SpanVal = p.spanFrom(start)
	return block
}

func (p *Parser) parseStatementsUntilBrace() []Stmt {
	var body []Stmt
	for !p.is("}") {
		if p.cur.Type == TokenEOF {
			p.unexpected()
		}
		body = append(body, p.parseStatement())
	}
	p.next()
	return body
}

func (p *Parser) declarationKind() VarKind {
	switch p.cur.Literal {
	case "let":
		return VarLet
	case "const":
		return VarConst
	case "using":
		return VarUsing
	}
	return VarVar
}

func (p *Parser) parseVarStatement() Stmt {
	decl := p.parseVarDecl(true)
	p.consumeSemicolon()
	decl.SpanVal = p.spanFrom(decl.SpanVal.Start)
	return decl
}

// parseVarDecl parses `kind a = 1, b`. Declarations without an initializer
// are only legal for var and let, and only when requireInit is set.
func (p *Parser) parseVarDecl(requireInit bool) *VarDecl {
	start := p.cur.Pos
	kind := p.declarationKind()
	p.next()
	decl := &VarDecl{SpanVal: Span{Start: start}, Kind: kind}
	for {
		if p.is("[") || p.is("{") {
			p.fail(p.cur.Pos, "Destructuring patterns are not supported")
		}
		name := p.expectIdentifier()
		d := &Declarator{Name: name.Literal}
		if p.eat("=") {
			d.Init = p.parseAssignment()
			nameFunction(d.Init, name.Literal)
		} else if requireInit && (kind == VarConst || kind == VarUsing) {
			p.fail(p.cur.Pos, "Missing initializer in %s declaration", kind)
		}
		d.SpanVal = p.spanFrom(name.Pos)
		p.declare(name.Literal, kind, name.Pos)
		decl.Decls = append(decl.Decls, d)
		if !p.eat(",") {
			break
		}
	}
	decl.SpanVal = p.spanFrom(start)
	return decl
}

// nameFunction gives an anonymous function or class the name it is bound
// to.
func nameFunction(e Expr, name string) {
	switch n := e.(type) {
	case *FunctionLiteral:
		if n.Name == "" {
			n.Name = name
		}
	case *ClassLiteral:
		if n.Name == "" {
			n.Name = name
			n.Constructor.Name = name
		}
	}
}

func (p *Parser) parseFunctionDeclaration(start Position, async bool) Stmt {
	if async {
		p.next()
	}
	p.expect("function")
	kind := functionKind(async, p.eat("*"))
	name := p.expectIdentifier()
	b := p.declare(name.Literal, VarFunction, name.Pos)
	fn := p.parseFunctionRest(start, name.Literal, kind, false)
	b.Func = fn
	return &FunctionDecl{SpanVal: fn.SpanVal, Func: fn}
}

func (p *Parser) parseClassDeclaration() Stmt {
	start := p.cur.Pos
	p.next()
	name := p.expectIdentifier()
	p.declare(name.Literal, VarLet, name.Pos)
	cls := p.parseClassRest(start, name.Literal)
	return &ClassDecl{SpanVal: cls.SpanVal, Class: cls}
}

func (p *Parser) parseIf() Stmt {
	start := p.cur.Pos
	p.next()
	p.expect("(")
	test := p.parseExpression()
	p.expect(")")
	stmt := &IfStmt{Test: test, Cons: p.parseStatement()}
	if p.eat("else") {
		stmt.Alt = p.parseStatement()
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	start := p.cur.Pos
	p.next()
	p.expect("(")
	test := p.parseExpression()
	p.expect(")")
	body := p.parseStatement()
	return &WhileStmt{SpanVal: p.spanFrom(start), Test: test, Body: body}
}

func (p *Parser) parseDoWhile() Stmt {
	start := p.cur.Pos
	p.next()
	body := p.parseStatement()
	p.expect("while")
	p.expect("(")
	test := p.parseExpression()
	p.expect(")")
	p.eat(";")
	return &DoWhileStmt{SpanVal: p.spanFrom(start), Body: body, Test: test}
}

// parseFor handles the three-clause loop, for-in, for-of and for await-of.
func (p *Parser) parseFor() Stmt {
	start := p.cur.Pos
	p.next()
	isAwait := false
	if p.isName("await") {
		if !p.awaitAllowed() {
			p.fail(p.cur.Pos, "for await is only valid in async functions and the top level bodies of modules")
		}
		isAwait = true
		p.next()
	}
	p.expect("(")

	scope := NoScope
	var init Node
	savedNoIn := p.noIn
	p.noIn = true

	switch {
	case p.is(";"):
	case p.is("var") || p.is("const") || (p.isName("let") && p.peekAt(1).Type == TokenIdentifier) ||
		(p.isName("using") && p.peekAt(1).Type == TokenIdentifier && !p.peekAt(1).IsName("of")):
		kind := p.declarationKind()
		if kind.Lexical() {
			scope = p.pushScope(ScopeBlock)
		}
		if p.peekAt(2).IsName("of") || p.peekAt(2).Is("in") {
			decl := p.parseVarDecl(false)
			p.noIn = savedNoIn
			return p.parseForIn(start, decl, scope, isAwait)
		}
		init = p.parseVarDecl(true)
	default:
		expr := p.parseExpression()
		if p.isName("of") || p.is("in") {
			p.noIn = savedNoIn
			if !isAssignable(expr) {
				p.fail(expr.Span().Start, "Invalid left-hand side in for-loop")
			}
			return p.parseForIn(start, expr, scope, isAwait)
		}
		init = expr
	}
	p.noIn = savedNoIn
	if isAwait {
		p.unexpected()
	}

	stmt := &ForStmt{Init: init, Scope: scope}
	p.expect(";")
	if !p.is(";") {
		stmt.Test = p.parseExpression()
	}
	p.expect(";")
	if !p.is(")") {
		stmt.Update = p.parseExpression()
	}
	p.expect(")")
	stmt.Body = p.parseStatement()
	if scope != NoScope {
		p.popScope()
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseForIn(start Position, left Node, scope ScopeID, isAwait bool) Stmt {
	stmt := &ForInStmt{Left: left, Scope: scope, Await: isAwait}
	if p.isName("of") {
		stmt.Of = true
	} else if isAwait {
		p.unexpected()
	}
	p.next()

	// The iterated expression is evaluated outside the per-iteration scope.
	if scope != NoScope {
		p.popScope()
	}
	if stmt.Of {
		stmt.Right = p.parseAssignment()
	} else {
		stmt.Right = p.parseExpression()
	}
	p.expect(")")
	if scope != NoScope {
		p.reenterScope(scope)
	}
	stmt.Body = p.parseStatement()
	if scope != NoScope {
		p.popScope()
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseSwitch() Stmt {
	start := p.cur.Pos
	p.next()
	p.expect("(")
	disc := p.parseExpression()
	p.expect(")")
	p.expect("{")
	stmt := &SwitchStmt{Discriminant: disc, Scope: p.pushScope(ScopeBlock)}
	seenDefault := false
	for !p.eat("}") {
		caseStart := p.cur.Pos
		c := &SwitchCase{}
		switch {
		case p.eat("case"):
			c.Test = p.parseExpression()
		case p.is("default"):
			if seenDefault {
				p.fail(p.cur.Pos, "More than one default clause in switch statement")
			}
			seenDefault = true
			p.next()
		default:
			p.unexpected()
		}
		p.expect(":")
		for !p.is("case") && !p.is("default") && !p.is("}") {
			if p.cur.Type == TokenEOF {
				p.unexpected()
			}
			c.Body = append(c.Body, p.parseStatement())
		}
		c.SpanVal = p.spanFrom(caseStart)
		stmt.Cases = append(stmt.Cases, c)
	}
	p.popScope()
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseLabeled() Stmt {
	start := p.cur.Pos
	label := p.cur.Literal
	if label == "await" || label == "yield" {
		p.unexpected()
	}
	p.next()
	p.expect(":")
	body := p.parseStatement()
	return &LabeledStmt{SpanVal: p.spanFrom(start), Label: label, Body: body}
}

// parseJump parses break and continue. Label validity is checked by the
// generator, which knows the enclosing breakables.
func (p *Parser) parseJump() Stmt {
	tok := p.cur
	p.next()
	label := ""
	if p.cur.Type == TokenIdentifier && !p.cur.NewlineBefore {
		label = p.cur.Literal
		p.next()
	}
	p.consumeSemicolon()
	span := p.spanFrom(tok.Pos)
	if tok.Literal == "break" {
		return &BreakStmt{SpanVal: span, Label: label}
	}
	return &ContinueStmt{SpanVal: span, Label: label}
}

func (p *Parser) parseReturn() Stmt {
	start := p.cur.Pos
	if p.fn.lit == nil {
		p.fail(start, "Illegal return statement")
	}
	p.next()
	stmt := &ReturnStmt{}
	if !p.is(";") && !p.is("}") && p.cur.Type != TokenEOF && !p.cur.NewlineBefore {
		stmt.Arg = p.parseExpression()
	}
	p.consumeSemicolon()
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseThrow() Stmt {
	start := p.cur.Pos
	p.next()
	if p.cur.NewlineBefore {
		p.fail(p.cur.Pos, "Illegal newline after throw")
	}
	arg := p.parseExpression()
	p.consumeSemicolon()
	return &ThrowStmt{SpanVal: p.spanFrom(start), Arg: arg}
}

func (p *Parser) parseTry() Stmt {
	start := p.cur.Pos
	p.next()
	stmt := &TryStmt{Block: p.parseBlock(), CatchScope: NoScope}
	if p.eat("catch") {
		stmt.CatchScope = p.pushScope(ScopeBlock)
		if p.eat("(") {
			if p.is("[") || p.is("{") {
				p.fail(p.cur.Pos, "Destructuring patterns are not supported")
			}
			name := p.expectIdentifier()
			stmt.Param = name.Literal
			p.declare(name.Literal, VarLet, name.Pos)
			p.expect(")")
		}
		stmt.Handler = p.parseBlock()
		p.popScope()
	}
	if p.eat("finally") {
		stmt.Finalizer = p.parseBlock()
	}
	if stmt.Handler == nil && stmt.Finalizer == nil {
		p.fail(p.cur.Pos, "Missing catch or finally after try")
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// ---------------------------------------------------------------------------
// Functions and classes
// ---------------------------------------------------------------------------

func functionKind(async, generator bool) FunctionKind {
	switch {
	case async && generator:
		return FunctionAsyncGenerator
	case async:
		return FunctionAsync
	case generator:
		return FunctionGenerator
	}
	return FunctionNormal
}

// parseFunctionRest parses `(params) { body }` into a function literal with
// its own function scope.
func (p *Parser) parseFunctionRest(start Position, name string, kind FunctionKind, method bool) *FunctionLiteral {
	fn := &FunctionLiteral{Name: name, Kind: kind, Outer: p.scope()}
	fn.Scope = p.pushScope(ScopeFunction)
	p.enterFunction(&funcContext{lit: fn, kind: kind, method: method})

	fn.Params = p.parseParams()
	p.expect("{")
	restore := p.allowIn()
	fn.Body = p.parseStatementsUntilBrace()
	restore()

	p.leaveFunction()
	p.popScope()
	fn.SpanVal = p.spanFrom(start)
	fn.Source = p.sourceOf(fn.SpanVal)
	return fn
}

// parseParams parses a parenthesized parameter list into the current
// function scope.
func (p *Parser) parseParams() []*Param {
	p.expect("(")
	var params []*Param
	for !p.eat(")") {
		start := p.cur.Pos
		param := &Param{}
		if p.eat("...") {
			param.Rest = true
		}
		if p.is("[") || p.is("{") {
			p.fail(p.cur.Pos, "Destructuring patterns are not supported")
		}
		name := p.expectIdentifier()
		param.Name = name.Literal
		if !param.Rest && p.eat("=") {
			param.Default = p.parseAssignment()
			nameFunction(param.Default, name.Literal)
		}
		for _, other := range params {
			if other.Name == param.Name {
				p.fail(name.Pos, "Duplicate parameter name not allowed in this context")
			}
		}
		p.declare(name.Literal, VarVar, name.Pos)
		param.SpanVal = p.spanFrom(start)
		params = append(params, param)
		if param.Rest {
			if !p.is(")") {
				p.fail(p.cur.Pos, "Rest parameter must be last formal parameter")
			}
			continue
		}
		if !p.is(")") {
			p.expect(",")
		}
	}
	return params
}

// parseClassRest parses the optional heritage and the class body.
func (p *Parser) parseClassRest(start Position, name string) *ClassLiteral {
	cls := &ClassLiteral{Name: name, Outer: p.scope()}
	if p.eat("extends") {
		cls.Parent = p.parseLeftHandSide()
	}
	p.expect("{")
	for !p.eat("}") {
		if p.eat(";") {
			continue
		}
		p.parseClassMember(cls)
	}
	cls.SpanVal = p.spanFrom(start)
	if cls.Constructor == nil {
		cls.Constructor = p.defaultConstructor(cls)
	}
	cls.Constructor.Name = name
	cls.Constructor.Source = p.sourceOf(cls.SpanVal)
	return cls
}

func (p *Parser) parseClassMember(cls *ClassLiteral) {
	start := p.cur.Pos
	static := false
	if p.isName("static") && !p.peekIsMemberEnd() {
		static = true
		p.next()
	}
	kind := FunctionNormal
	if p.isName("async") && !p.peekIsMemberEnd() && !p.peekAt(1).NewlineBefore {
		kind = FunctionAsync
		p.next()
	}
	if p.eat("*") {
		if kind == FunctionAsync {
			kind = FunctionAsyncGenerator
		} else {
			kind = FunctionGenerator
		}
	}
	if (p.isName("get") || p.isName("set")) && !p.peekIsMemberEnd() {
		p.fail(p.cur.Pos, "Getters and setters are not supported")
	}

	key, computed := p.parsePropertyKey()
	if p.is("(") {
		keyName := ""
		if s, ok := key.(*StringLiteral); ok && !computed {
			keyName = s.Value
		}
		if keyName == "constructor" && !static {
			if kind != FunctionNormal {
				p.fail(start, "Class constructor may not be a%s", map[FunctionKind]string{
					FunctionGenerator: " generator", FunctionAsync: "n async method", FunctionAsyncGenerator: "n async generator",
				}[kind])
			}
			if cls.Constructor != nil {
				p.fail(start, "A class may only have one constructor")
			}
			fn := &FunctionLiteral{Name: cls.Name, Outer: p.scope(), Constructor: true}
			fn.Scope = p.pushScope(ScopeFunction)
			p.enterFunction(&funcContext{lit: fn, method: true, ctor: cls.Parent != nil})
			fn.Params = p.parseParams()
			p.expect("{")
			fn.Body = p.parseStatementsUntilBrace()
			p.leaveFunction()
			p.popScope()
			fn.SpanVal = p.spanFrom(start)
			cls.Constructor = fn
			return
		}
		fn := p.parseFunctionRest(start, keyName, kind, true)
		cls.Members = append(cls.Members, &ClassMember{
			SpanVal:  fn.SpanVal,
			Key:      key,
			Computed: computed,
			Static:   static,
			Value:    fn,
		})
		return
	}

	if kind != FunctionNormal {
		p.unexpected()
	}
	if static {
		p.fail(start, "Static class fields are not supported")
	}
	p.parseField(cls, start, key, computed)
}

// peekIsMemberEnd reports whether the token after a modifier ends the
// member name, meaning the modifier is itself the name (`static() {}`).
func (p *Parser) peekIsMemberEnd() bool {
	next := p.peekAt(1)
	return next.Is("(") || next.Is("=") || next.Is(";") || next.Is("}")
}

// parseField adds `key = value` to the class's field initializer, which is
// compiled as a method assigning this[key].
func (p *Parser) parseField(cls *ClassLiteral, start Position, key Expr, computed bool) {
	if cls.FieldInit == nil {
		cls.FieldInit = &FunctionLiteral{Name: "<fields>", Outer: cls.Outer, Scope: p.scopes.New(ScopeFunction, cls.Outer)}
	}
	init := cls.FieldInit
	p.reenterScope(init.Scope)
	p.enterFunction(&funcContext{lit: init, method: true})

	var value Expr
	if p.eat("=") {
		value = p.parseAssignment()
		if s, ok := key.(*StringLiteral); ok && !computed {
			nameFunction(value, s.Value)
		}
	} else {
		value = &UnaryExpr{SpanVal: key.Span(), Op: "void", Operand: &NumberLiteral{SpanVal: key.Span()}}
	}
	p.leaveFunction()
	p.popScope()
	p.consumeSemicolon()

	span := p.spanFrom(start)
	init.Body = append(init.Body, &ExprStmt{
		SpanVal: span,
		Expr: &AssignExpr{
			SpanVal: span,
			Op:      "=",
			Target:  &MemberExpr{SpanVal: key.Span(), Object: &ThisExpr{SpanVal: key.Span()}, Property: key, Computed: computed},
			Value:   value,
		},
	})
	if init.SpanVal.Start.Line == 0 {
		init.SpanVal.Start = start
	}
	init.SpanVal.End = span.End
	init.Source = p.sourceOf(init.SpanVal)
}

// defaultConstructor builds `constructor() {}` or, for derived classes,
// `constructor(...args) { super(...args) }`.
func (p *Parser) defaultConstructor(cls *ClassLiteral) *FunctionLiteral {
	span := cls.SpanVal
	fn := &FunctionLiteral{SpanVal: span, Name: cls.Name, Outer: p.scope(), Constructor: true}
	fn.Scope = p.pushScope(ScopeFunction)
	if cls.Parent != nil {
		p.declare("args", VarVar, span.Start)
		fn.Params = []*Param{{SpanVal: span, Name: "args", Rest: true}}
		fn.Body = []Stmt{&ExprStmt{
			SpanVal: span,
			Expr: &CallExpr{
				SpanVal: span,
				Callee:  &SuperExpr{SpanVal: span},
				Args: []Expr{&SpreadElement{
					SpanVal: span,
					Arg:     &Identifier{SpanVal: span, Name: "args", Scope: fn.Scope},
				}},
			},
		}}
	}
	p.popScope()
	return fn
}

// parsePropertyKey parses a property name in an object literal or class
// body. Static keys become string literals.
func (p *Parser) parsePropertyKey() (Expr, bool) {
	tok := p.cur
	span := Span{Start: tok.Pos, End: tok.End}
	switch tok.Type {
	case TokenIdentifier, TokenKeyword, TokenString:
		p.next()
		return &StringLiteral{SpanVal: span, Value: tok.Literal}, false
	case TokenPrivate:
		p.next()
		return &StringLiteral{SpanVal: span, Value: "#" + tok.Literal}, false
	case TokenNumber:
		p.next()
		f, err := ParseNumber(tok.Literal)
		if err != nil {
			p.fail(tok.Pos, "Invalid number %s", tok.Literal)
		}
		return &StringLiteral{SpanVal: span, Value: strconv.FormatFloat(f, 'f', -1, 64)}, false
	case TokenPunct:
		if tok.Literal == "[" {
			p.next()
			key := p.parseAssignment()
			p.expect("]")
			return key, true
		}
	}
	p.unexpected()
	return nil, false
}
