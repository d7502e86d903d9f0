package compiler

import (
	"github.com/joomcode/errorx"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

var binaryPrecedence = map[string]int{
	"??": 1,
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6, "===": 6, "!==": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7, "instanceof": 7, "in": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
	"**": 11,
}

// allowIn re-enables the `in` operator inside brackets of a for-loop head.
// The returned function restores the previous state.
func (p *Parser) allowIn() func() {
	saved := p.noIn
	p.noIn = false
	return func() { p.noIn = saved }
}

// ParseExpression parses a comma expression.
func (p *Parser) parseExpression() Expr {
	start := p.cur.Pos
	e := p.parseAssignment()
	if !p.is(",") {
		return e
	}
	seq := &SequenceExpr{Exprs: []Expr{e}}
	for p.eat(",") {
		seq.Exprs = append(seq.Exprs, p.parseAssignment())
	}
	seq.SpanVal = p.spanFrom(start)
	return seq
}

func (p *Parser) parseAssignment() Expr {
	start := p.cur.Pos
	if fn := p.tryArrow(); fn != nil {
		return fn
	}
	if p.isName("yield") && p.inGenerator() {
		return p.parseYield()
	}

	left := p.parseConditional()
	if p.cur.Type != TokenPunct || !assignOps[p.cur.Literal] {
		return left
	}
	op := p.cur.Literal
	target := unparen(left)
	if !isAssignable(target) {
		p.fail(left.Span().Start, "Invalid left-hand side in assignment")
	}
	p.next()
	value := p.parseAssignment()
	if id, ok := target.(*Identifier); ok && op == "=" {
		nameFunction(value, id.Name)
	}
	return &AssignExpr{SpanVal: p.spanFrom(start), Op: op, Target: target, Value: value}
}

func unparen(e Expr) Expr {
	if pe, ok := e.(*ParenExpr); ok {
		return pe.Expr
	}
	return e
}

// isAssignable accepts identifiers and non-optional member expressions.
func isAssignable(e Expr) bool {
	switch n := unparen(e).(type) {
	case *Identifier:
		return true
	case *MemberExpr:
		if _, isSuper := n.Object.(*SuperExpr); isSuper {
			return false
		}
		return !hasOptional(n)
	}
	return false
}

// hasOptional reports whether a member or call chain contains ?. links.
func hasOptional(e Expr) bool {
	for {
		switch n := e.(type) {
		case *MemberExpr:
			if n.Optional {
				return true
			}
			e = n.Object
		case *CallExpr:
			if n.Optional {
				return true
			}
			e = n.Callee
		default:
			return false
		}
	}
}

func (p *Parser) parseYield() Expr {
	start := p.cur.Pos
	p.next()
	y := &YieldExpr{Async: p.fn.kind == FunctionAsyncGenerator}
	switch {
	case p.eat("*"):
		y.Delegate = true
		y.Arg = p.parseAssignment()
	case !p.cur.NewlineBefore && startsExpression(p.cur):
		y.Arg = p.parseAssignment()
	}
	y.SpanVal = p.spanFrom(start)
	return y
}

func startsExpression(tok Token) bool {
	switch tok.Type {
	case TokenEOF:
		return false
	case TokenPunct:
		switch tok.Literal {
		case ")", "]", "}", ",", ";", ":", "=>":
			return false
		}
	case TokenKeyword:
		return tok.Literal != "in" && tok.Literal != "instanceof"
	case TokenIdentifier:
		return tok.Literal != "of"
	}
	return true
}

// ---------------------------------------------------------------------------
// Arrow functions
// ---------------------------------------------------------------------------

// tryArrow parses an arrow function when one starts at the current token.
func (p *Parser) tryArrow() Expr {
	tok := p.cur
	next := p.peekAt(1)
	switch {
	case tok.Type == TokenIdentifier && next.Is("=>") && !next.NewlineBefore:
		return p.parseArrow(false, false)
	case tok.IsName("async") && !next.NewlineBefore && next.Type == TokenIdentifier && p.peekAt(2).Is("=>"):
		return p.parseArrow(true, false)
	case tok.IsName("async") && !next.NewlineBefore && next.Is("("):
		if end := p.matchParen(1); end > 0 && p.peekAt(end+1).Is("=>") {
			return p.parseArrow(true, true)
		}
	case tok.Is("("):
		if end := p.matchParen(0); end > 0 && p.peekAt(end+1).Is("=>") {
			return p.parseArrow(false, true)
		}
	}
	return nil
}

// matchParen returns the lookahead distance of the parenthesis closing the
// one at distance n, or -1.
func (p *Parser) matchParen(n int) int {
	depth := 0
	for i := n; ; i++ {
		tok := p.peekAt(i)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return -1
		}
		if tok.Type != TokenPunct {
			continue
		}
		switch tok.Literal {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
}

func (p *Parser) parseArrow(async, parenthesized bool) Expr {
	start := p.cur.Pos
	if async {
		p.next()
	}
	kind := functionKind(async, false)
	fn := &FunctionLiteral{Kind: kind, Arrow: true, Outer: p.scope()}
	fn.Scope = p.pushScope(ScopeFunction)
	p.enterFunction(&funcContext{lit: fn, kind: kind, arrow: true})

	if parenthesized {
		fn.Params = p.parseParams()
	} else {
		name := p.expectIdentifier()
		p.declare(name.Literal, VarVar, name.Pos)
		fn.Params = []*Param{{SpanVal: Span{Start: name.Pos, End: name.End}, Name: name.Literal}}
	}
	if p.cur.NewlineBefore {
		p.unexpected()
	}
	p.expect("=>")
	if p.is("{") {
		p.next()
		restore := p.allowIn()
		fn.Body = p.parseStatementsUntilBrace()
		restore()
	} else {
		fn.ExprBody = p.parseAssignment()
	}

	p.leaveFunction()
	p.popScope()
	fn.SpanVal = p.spanFrom(start)
	fn.Source = p.sourceOf(fn.SpanVal)
	return fn
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (p *Parser) parseConditional() Expr {
	start := p.cur.Pos
	test := p.parseBinary(1)
	if !p.eat("?") {
		return test
	}
	restore := p.allowIn()
	cons := p.parseAssignment()
	restore()
	p.expect(":")
	alt := p.parseAssignment()
	return &ConditionalExpr{SpanVal: p.spanFrom(start), Test: test, Cons: cons, Alt: alt}
}

func (p *Parser) binaryOp() (string, int, bool) {
	tok := p.cur
	if tok.Type != TokenPunct && tok.Type != TokenKeyword {
		return "", 0, false
	}
	if tok.Literal == "in" && p.noIn {
		return "", 0, false
	}
	prec, ok := binaryPrecedence[tok.Literal]
	return tok.Literal, prec, ok
}

// parseBinary is a precedence climber; ** is right associative.
func (p *Parser) parseBinary(minPrec int) Expr {
	start := p.cur.Pos
	left := p.parseUnary()
	for {
		op, prec, ok := p.binaryOp()
		if !ok || prec < minPrec {
			return left
		}
		p.next()
		var right Expr
		if op == "**" {
			right = p.parseBinary(prec)
		} else {
			right = p.parseBinary(prec + 1)
		}
		span := p.spanFrom(start)
		switch op {
		case "&&", "||", "??":
			left = &LogicalExpr{SpanVal: span, Op: op, Left: left, Right: right}
		default:
			left = &BinaryExpr{SpanVal: span, Op: op, Left: left, Right: right}
		}
	}
}

func (p *Parser) parseUnary() Expr {
	tok := p.cur
	start := tok.Pos
	switch {
	case tok.Type == TokenPunct && (tok.Literal == "!" || tok.Literal == "~" || tok.Literal == "+" || tok.Literal == "-"),
		tok.Is("typeof"), tok.Is("void"), tok.Is("delete"):
		p.next()
		operand := p.parseUnary()
		if tok.Literal == "delete" {
			if _, ok := operand.(*Identifier); ok {
				p.fail(start, "Delete of an unqualified identifier in strict mode.")
			}
		}
		return &UnaryExpr{SpanVal: p.spanFrom(start), Op: tok.Literal, Operand: operand}

	case tok.Is("++") || tok.Is("--"):
		p.next()
		target := unparen(p.parseUnary())
		if !isAssignable(target) {
			p.fail(start, "Invalid left-hand side expression in prefix operation")
		}
		return &UpdateExpr{SpanVal: p.spanFrom(start), Op: tok.Literal, Prefix: true, Target: target}

	case tok.IsName("await") && p.awaitAllowed():
		p.next()
		arg := p.parseUnary()
		return &AwaitExpr{SpanVal: p.spanFrom(start), Arg: arg}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	start := p.cur.Pos
	e := p.parseLeftHandSide()
	if (p.is("++") || p.is("--")) && !p.cur.NewlineBefore {
		op := p.cur.Literal
		target := unparen(e)
		if !isAssignable(target) {
			p.fail(start, "Invalid left-hand side expression in postfix operation")
		}
		p.next()
		return &UpdateExpr{SpanVal: p.spanFrom(start), Op: op, Target: target}
	}
	return e
}

// ---------------------------------------------------------------------------
// Member access and calls
// ---------------------------------------------------------------------------

func (p *Parser) parseLeftHandSide() Expr {
	start := p.cur.Pos
	var e Expr
	if p.is("new") {
		e = p.parseNew()
	} else {
		e = p.parsePrimary()
	}
	return p.parseCallTail(start, e, true)
}

func (p *Parser) parseNew() Expr {
	start := p.cur.Pos
	p.next()
	if p.is(".") {
		p.fail(p.cur.Pos, "new.target is not supported")
	}
	calleeStart := p.cur.Pos
	var callee Expr
	if p.is("new") {
		callee = p.parseNew()
	} else {
		callee = p.parsePrimary()
	}
	callee = p.parseCallTail(calleeStart, callee, false)
	var args []Expr
	if p.is("(") {
		args = p.parseArguments()
	}
	return &NewExpr{SpanVal: p.spanFrom(start), Callee: callee, Args: args}
}

// parseCallTail parses member accesses and, when allowCall is set, calls
// and optional chains following e.
func (p *Parser) parseCallTail(start Position, e Expr, allowCall bool) Expr {
	for {
		switch {
		case p.is("."):
			p.next()
			key := p.parseMemberName()
			e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Property: key}

		case p.is("?."):
			if !allowCall {
				p.fail(p.cur.Pos, "Invalid optional chain from new expression")
			}
			if _, isSuper := e.(*SuperExpr); isSuper {
				p.fail(p.cur.Pos, "'super' keyword unexpected here")
			}
			p.next()
			switch {
			case p.is("("):
				args := p.parseArguments()
				e = &CallExpr{SpanVal: p.spanFrom(start), Callee: e, Args: args, Optional: true}
			case p.is("["):
				key := p.parseComputedKey()
				e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Property: key, Computed: true, Optional: true}
			default:
				key := p.parseMemberName()
				e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Property: key, Optional: true}
			}

		case p.is("["):
			key := p.parseComputedKey()
			e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Property: key, Computed: true}

		case p.is("(") && allowCall:
			args := p.parseArguments()
			e = &CallExpr{SpanVal: p.spanFrom(start), Callee: e, Args: args}

		case p.cur.Type == TokenTemplate && allowCall:
			p.fail(p.cur.Pos, "Tagged templates are not supported")

		default:
			return e
		}
	}
}

func (p *Parser) parseComputedKey() Expr {
	p.expect("[")
	restore := p.allowIn()
	key := p.parseExpression()
	restore()
	p.expect("]")
	return key
}

func (p *Parser) parseMemberName() Expr {
	tok := p.cur
	span := Span{Start: tok.Pos, End: tok.End}
	switch tok.Type {
	case TokenIdentifier, TokenKeyword:
		p.next()
		return &StringLiteral{SpanVal: span, Value: tok.Literal}
	case TokenPrivate:
		p.next()
		return &StringLiteral{SpanVal: span, Value: "#" + tok.Literal}
	}
	p.unexpected()
	return nil
}

func (p *Parser) parseArguments() []Expr {
	p.expect("(")
	restore := p.allowIn()
	defer restore()
	var args []Expr
	for !p.eat(")") {
		if p.is("...") {
			start := p.cur.Pos
			p.next()
			arg := p.parseAssignment()
			args = append(args, &SpreadElement{SpanVal: p.spanFrom(start), Arg: arg})
		} else {
			args = append(args, p.parseAssignment())
		}
		if !p.is(")") {
			p.expect(",")
		}
	}
	return args
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Expr {
	tok := p.cur
	span := Span{Start: tok.Pos, End: tok.End}
	switch tok.Type {
	case TokenNumber:
		p.next()
		v, err := ParseNumber(tok.Literal)
		if err != nil {
			p.fail(tok.Pos, "Invalid or unexpected token")
		}
		return &NumberLiteral{SpanVal: span, Value: v}

	case TokenString:
		p.next()
		return &StringLiteral{SpanVal: span, Value: tok.Literal}

	case TokenTemplate:
		p.next()
		return p.parseTemplate(tok)

	case TokenIdentifier:
		if tok.Literal == "async" && p.peekAt(1).Is("function") && !p.peekAt(1).NewlineBefore {
			return p.parseFunctionExpression(true)
		}
		p.next()
		return p.identifier(tok)

	case TokenKeyword:
		switch tok.Literal {
		case "this":
			p.next()
			return &ThisExpr{SpanVal: span}
		case "null":
			p.next()
			return &NullLiteral{SpanVal: span}
		case "true", "false":
			p.next()
			return &BooleanLiteral{SpanVal: span, Value: tok.Literal == "true"}
		case "function":
			return p.parseFunctionExpression(false)
		case "class":
			p.next()
			name := ""
			if p.cur.Type == TokenIdentifier && !p.isName("extends") {
				name = p.cur.Literal
				p.next()
			}
			return p.parseClassRest(tok.Pos, name)
		case "super":
			return p.parseSuper()
		case "import":
			p.fail(tok.Pos, "Cannot use import statement outside a module")
		}

	case TokenPunct:
		switch tok.Literal {
		case "(":
			return p.parseParenthesized()
		case "[":
			return p.parseArrayLiteral()
		case "{":
			return p.parseObjectLiteral()
		}
	}
	p.unexpected()
	return nil
}

func (p *Parser) parseSuper() Expr {
	tok := p.cur
	p.next()
	fc := p.superContext()
	switch {
	case p.is("("):
		if fc == nil || !fc.ctor {
			p.fail(tok.Pos, "'super' keyword unexpected here")
		}
	case p.is(".") || p.is("["):
		if fc == nil || !fc.method {
			p.fail(tok.Pos, "'super' keyword unexpected here")
		}
	default:
		p.fail(tok.Pos, "'super' keyword unexpected here")
	}
	return &SuperExpr{SpanVal: Span{Start: tok.Pos, End: tok.End}}
}

func (p *Parser) parseFunctionExpression(async bool) Expr {
	start := p.cur.Pos
	if async {
		p.next()
	}
	p.expect("function")
	kind := functionKind(async, p.eat("*"))
	name := ""
	var nameTok Token
	if p.cur.Type == TokenIdentifier {
		nameTok = p.cur
		name = nameTok.Literal
		p.next()
	}

	fn := &FunctionLiteral{Name: name, Kind: kind, Outer: p.scope()}
	fn.Scope = p.pushScope(ScopeFunction)
	if name != "" {
		p.declare(name, VarCallee, nameTok.Pos)
	}
	p.enterFunction(&funcContext{lit: fn, kind: kind})
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

func (p *Parser) parseParenthesized() Expr {
	start := p.cur.Pos
	p.next()
	restore := p.allowIn()
	e := p.parseExpression()
	restore()
	p.expect(")")
	switch e.(type) {
	case *MemberExpr, *CallExpr:
		return &ParenExpr{SpanVal: p.spanFrom(start), Expr: e}
	}
	return e
}

func (p *Parser) parseArrayLiteral() Expr {
	start := p.cur.Pos
	p.next()
	restore := p.allowIn()
	defer restore()
	arr := &ArrayLiteral{}
	for !p.eat("]") {
		if p.is(",") {
			p.next()
			arr.Elements = append(arr.Elements, nil)
			continue
		}
		if p.is("...") {
			spreadStart := p.cur.Pos
			p.next()
			arg := p.parseAssignment()
			arr.Elements = append(arr.Elements, &SpreadElement{SpanVal: p.spanFrom(spreadStart), Arg: arg})
		} else {
			arr.Elements = append(arr.Elements, p.parseAssignment())
		}
		if !p.is("]") {
			p.expect(",")
		}
	}
	arr.SpanVal = p.spanFrom(start)
	return arr
}

// peekIsPropertyEnd reports whether the token after a modifier ends the
// property name, meaning the modifier is itself the name.
func (p *Parser) peekIsPropertyEnd() bool {
	next := p.peekAt(1)
	return next.Is("(") || next.Is(":") || next.Is(",") || next.Is("}") || next.Is("=")
}

func (p *Parser) parseObjectLiteral() Expr {
	start := p.cur.Pos
	p.next()
	restore := p.allowIn()
	defer restore()
	obj := &ObjectLiteral{}
	for !p.eat("}") {
		propStart := p.cur.Pos
		prop := &Property{}
		if p.eat("...") {
			prop.Kind = PropertySpread
			prop.Value = p.parseAssignment()
		} else {
			async := false
			if p.isName("async") && !p.peekIsPropertyEnd() && !p.peekAt(1).NewlineBefore {
				async = true
				p.next()
			}
			kind := functionKind(async, p.eat("*"))
			if (p.isName("get") || p.isName("set")) && !p.peekIsPropertyEnd() {
				p.fail(p.cur.Pos, "Getters and setters are not supported")
			}
			keyTok := p.cur
			prop.Key, prop.Computed = p.parsePropertyKey()
			staticName := ""
			if s, ok := prop.Key.(*StringLiteral); ok && !prop.Computed {
				staticName = s.Value
			}
			switch {
			case p.is("("):
				prop.Kind = PropertyMethod
				prop.Value = p.parseFunctionRest(propStart, staticName, kind, false)
			case kind != FunctionNormal:
				p.unexpected()
			case p.eat(":"):
				prop.Value = p.parseAssignment()
				if staticName != "" {
					nameFunction(prop.Value, staticName)
				}
			default:
				if prop.Computed || keyTok.Type != TokenIdentifier {
					p.unexpected()
				}
				if p.is("=") {
					p.fail(p.cur.Pos, "Invalid shorthand property initializer")
				}
				prop.Value = p.identifier(keyTok)
			}
		}
		prop.SpanVal = p.spanFrom(propStart)
		obj.Properties = append(obj.Properties, prop)
		if !p.is("}") {
			p.expect(",")
		}
	}
	obj.SpanVal = p.spanFrom(start)
	return obj
}

// ---------------------------------------------------------------------------
// Template literals
// ---------------------------------------------------------------------------

// parseTemplate splits a template token into cooked chunks and parses each
// substitution with its original source positions.
func (p *Parser) parseTemplate(tok Token) Expr {
	lit := &TemplateLiteral{SpanVal: Span{Start: tok.Pos, End: tok.End}}
	bodyStart := tok.Pos.Offset + 1
	bodyEnd := tok.End.Offset - 1
	at := Position{Offset: bodyStart, Line: tok.Pos.Line, Column: tok.Pos.Column + 1}
	l := newRangeLexer(p.input, bodyStart, bodyEnd, at)

	chunkStart := bodyStart
	addChunk := func(end int) {
		s, err := Unescape(p.input[chunkStart:end])
		if err != nil {
			p.fail(tok.Pos, "%s", err.Error())
		}
		lit.Quasis = append(lit.Quasis, s)
	}
	for !l.atEOF() {
		switch {
		case l.ch == '\\':
			l.readChar()
			l.readChar()
		case l.ch == '$' && l.peekChar() == '{':
			addChunk(l.pos)
			l.readChar()
			l.readChar()
			exprStart := l.position()
			l.skipBalanced()
			lit.Exprs = append(lit.Exprs, p.parseEmbedded(exprStart, l.pos))
			l.readChar()
			chunkStart = l.pos
		default:
			l.readChar()
		}
	}
	addChunk(bodyEnd)
	return lit
}

// parseEmbedded parses the expression between start and end with a
// temporary token stream, keeping the scope and function context.
func (p *Parser) parseEmbedded(start Position, end int) Expr {
	savedTokens, savedIdx, savedCur, savedPrev := p.tokens, p.idx, p.cur, p.prev
	defer func() {
		if r := recover(); r != nil {
			if err, ok := errorx.ErrorFromPanic(r); ok && IsIncomplete(err) {
				p.fail(start, "Unexpected token '}'")
			}
			panic(r)
		}
	}()

	p.tokens = tokenizeRange(p.input, start.Offset, end, start)
	p.idx = 0
	p.cur = p.tokens[0]
	if p.cur.Type == TokenError {
		p.failToken(p.cur)
	}
	if p.cur.Type == TokenEOF {
		p.fail(start, "Unexpected token '}'")
	}
	restore := p.allowIn()
	e := p.parseExpression()
	restore()
	if p.cur.Type != TokenEOF {
		p.unexpected()
	}

	p.tokens, p.idx, p.cur, p.prev = savedTokens, savedIdx, savedCur, savedPrev
	return e
}
