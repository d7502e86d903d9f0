package compiler

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenNumber     // 42, 0x1f, 1.5e3
	TokenString     // "text" or 'text', Literal holds the decoded value
	TokenTemplate   // `a${b}c`, Literal holds the raw body between backticks
	TokenIdentifier // names, including contextual words like let or async
	TokenKeyword    // reserved words
	TokenPunct      // operators and delimiters
	TokenPrivate    // #name
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "Number",
	TokenString:     "String",
	TokenTemplate:   "Template",
	TokenIdentifier: "Identifier",
	TokenKeyword:    "Keyword",
	TokenPunct:      "Punctuator",
	TokenPrivate:    "PrivateName",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // punctuator text, name, or decoded literal value
	Pos     Position // start position
	End     Position // position just past the token

	// NewlineBefore is set when a line terminator separates this token from
	// the previous one. Automatic semicolon insertion depends on it.
	NewlineBefore bool
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Is reports whether the token is the given punctuator or keyword.
func (t Token) Is(text string) bool {
	return (t.Type == TokenPunct || t.Type == TokenKeyword) && t.Literal == text
}

// IsName reports whether the token is an identifier with the given text.
// Contextual words (let, of, async, yield, await, static, using) are
// identifiers at the lexical level.
func (t Token) IsName(text string) bool {
	return t.Type == TokenIdentifier && t.Literal == text
}

var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true,
}

// IsKeyword reports whether name is a reserved word.
func IsKeyword(name string) bool {
	return keywords[name]
}

// punctuators is ordered longest first so the lexer can take the first
// prefix match.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@",
}
