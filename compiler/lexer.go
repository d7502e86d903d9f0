package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for the script language
// ---------------------------------------------------------------------------

// Lexer tokenizes source text. A lexer may cover a sub-range of a larger
// source (template substitutions), in which case offsets stay relative to
// the full text.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	limit     int  // end of the range being tokenized
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
	newline   bool // a line terminator was skipped before the current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return newRangeLexer(input, 0, len(input), Position{Offset: 0, Line: 1, Column: 1})
}

func newRangeLexer(input string, start, end int, at Position) *Lexer {
	l := &Lexer{
		input:     input,
		readPos:   start,
		limit:     end,
		line:      at.Line,
		lineStart: start - (at.Column - 1),
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= l.limit {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= l.limit {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= l.limit
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.newline = false
	if errTok, ok := l.skipWhitespaceAndComments(); !ok {
		return errTok
	}

	pos := l.position()
	tok := l.scan(pos)
	tok.Pos = pos
	tok.End = l.position()
	tok.NewlineBefore = l.newline
	return tok
}

func (l *Lexer) scan(pos Position) Token {
	switch {
	case l.atEOF():
		return Token{Type: TokenEOF}

	case l.ch == '"' || l.ch == '\'':
		return l.readString()

	case l.ch == '`':
		return l.readTemplate()

	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return l.readNumber()

	case l.ch == '#' && isIdentStart(l.peekChar()):
		l.readChar()
		name := l.readName()
		return Token{Type: TokenPrivate, Literal: name}

	case isIdentStart(l.ch):
		name := l.readName()
		if IsKeyword(name) {
			return Token{Type: TokenKeyword, Literal: name}
		}
		return Token{Type: TokenIdentifier, Literal: name}
	}

	rest := l.input[l.pos:l.limit]
	for _, p := range punctuators {
		if !strings.HasPrefix(rest, p) {
			continue
		}
		// `a?.5:b` is a conditional, not an optional chain.
		if p == "?." && len(rest) > 2 && rest[2] >= '0' && rest[2] <= '9' {
			continue
		}
		for range p {
			l.readChar()
		}
		return Token{Type: TokenPunct, Literal: p}
	}

	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: fmt.Sprintf("Invalid or unexpected token '%c'", ch)}
}

// skipWhitespaceAndComments advances past blanks and comments, noting line
// terminators. It fails on an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	// hashbang line
	if l.pos == 0 && l.ch == '#' && l.peekChar() == '!' {
		for !l.atEOF() && l.ch != '\n' {
			l.readChar()
		}
	}
	for {
		switch {
		case l.atEOF():
			return Token{}, true
		case l.ch == '\n' || l.ch == '\u2028' || l.ch == '\u2029':
			l.newline = true
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\v' || l.ch == '\f' ||
			l.ch == '\u00a0' || l.ch == '\ufeff' || unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			pos := l.position()
			l.readChar()
			l.readChar()
			for {
				if l.atEOF() {
					return Token{Type: TokenError, Literal: "Invalid or unexpected token", Pos: pos, End: l.position()}, false
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				if l.ch == '\n' {
					l.newline = true
				}
				l.readChar()
			}
		default:
			return Token{}, true
		}
	}
}

func (l *Lexer) readName() string {
	start := l.pos
	for !l.atEOF() && isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.ch == '0' && strings.ContainsRune("xXoObB", l.peekChar()) {
		l.readChar()
		l.readChar()
		for !l.atEOF() && (isHexDigit(l.ch) || l.ch == '_') {
			l.readChar()
		}
	} else {
		for !l.atEOF() && (isDigit(l.ch) || l.ch == '_') {
			l.readChar()
		}
		if l.ch == '.' {
			l.readChar()
			for !l.atEOF() && (isDigit(l.ch) || l.ch == '_') {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for !l.atEOF() && isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	if !l.atEOF() && isIdentStart(l.ch) {
		for !l.atEOF() && isIdentPart(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenError, Literal: "Invalid or unexpected token"}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos]}
}

func (l *Lexer) readString() Token {
	quote := l.ch
	l.readChar()
	start := l.pos
	for {
		if l.atEOF() || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "Invalid or unexpected token"}
		}
		if l.ch == quote {
			break
		}
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	raw := l.input[start:l.pos]
	l.readChar()
	s, err := Unescape(raw)
	if err != nil {
		return Token{Type: TokenError, Literal: err.Error()}
	}
	return Token{Type: TokenString, Literal: s}
}

// readTemplate consumes a whole template literal, substitutions included.
// The parser splits the raw body itself.
func (l *Lexer) readTemplate() Token {
	l.readChar()
	start := l.pos
	if !l.skipTemplateBody() {
		return Token{Type: TokenError, Literal: "Unterminated template literal"}
	}
	raw := l.input[start:l.pos]
	l.readChar()
	return Token{Type: TokenTemplate, Literal: raw}
}

// skipTemplateBody stops on the closing backtick.
func (l *Lexer) skipTemplateBody() bool {
	for {
		switch {
		case l.atEOF():
			return false
		case l.ch == '`':
			return true
		case l.ch == '\\':
			l.readChar()
			l.readChar()
		case l.ch == '$' && l.peekChar() == '{':
			l.readChar()
			l.readChar()
			if !l.skipBalanced() {
				return false
			}
			l.readChar()
		default:
			l.readChar()
		}
	}
}

// skipBalanced stops on the brace that closes a substitution.
func (l *Lexer) skipBalanced() bool {
	depth := 0
	for {
		switch {
		case l.atEOF():
			return false
		case l.ch == '{':
			depth++
		case l.ch == '}':
			if depth == 0 {
				return true
			}
			depth--
		case l.ch == '"' || l.ch == '\'':
			q := l.ch
			l.readChar()
			for !l.atEOF() && l.ch != q {
				if l.ch == '\\' {
					l.readChar()
				}
				l.readChar()
			}
		case l.ch == '`':
			l.readChar()
			if !l.skipTemplateBody() {
				return false
			}
		}
		l.readChar()
	}
}

// Tokenize returns all tokens up to and including EOF or the first error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}

// ---------------------------------------------------------------------------
// Literal decoding
// ---------------------------------------------------------------------------

// Unescape decodes the escape sequences of a string or template chunk.
func Unescape(raw string) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(raw) {
			return "", fmt.Errorf("Invalid or unexpected token")
		}
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			if i+2 >= len(raw) {
				return "", fmt.Errorf("Invalid hexadecimal escape sequence")
			}
			n, err := strconv.ParseUint(raw[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("Invalid hexadecimal escape sequence")
			}
			sb.WriteRune(rune(n))
			i += 2
		case 'u':
			var digits string
			if i+1 < len(raw) && raw[i+1] == '{' {
				end := strings.IndexByte(raw[i:], '}')
				if end < 0 {
					return "", fmt.Errorf("Invalid Unicode escape sequence")
				}
				digits = raw[i+2 : i+end]
				i += end
			} else {
				if i+4 >= len(raw) {
					return "", fmt.Errorf("Invalid Unicode escape sequence")
				}
				digits = raw[i+1 : i+5]
				i += 4
			}
			n, err := strconv.ParseUint(digits, 16, 32)
			if err != nil || n > unicode.MaxRune {
				return "", fmt.Errorf("Invalid Unicode escape sequence")
			}
			sb.WriteRune(rune(n))
		default:
			sb.WriteByte(raw[i])
		}
	}
	return sb.String(), nil
}

// ParseNumber converts a numeric literal to its value.
func ParseNumber(lit string) (float64, error) {
	lit = strings.ReplaceAll(lit, "_", "")
	if len(lit) > 2 && lit[0] == '0' {
		base := 0
		switch lit[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(lit[2:], base, 64)
			if err != nil {
				return math.NaN(), err
			}
			return float64(n), nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !math.IsInf(f, 0) {
		return math.NaN(), err
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Character classes
// ---------------------------------------------------------------------------

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch) || ch == '\u200c' || ch == '\u200d'
}
