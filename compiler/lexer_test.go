package compiler

import (
	"math"
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `let x = a?.b ?? 0x1F; // trailing`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenIdentifier, "let"},
		{TokenIdentifier, "x"},
		{TokenPunct, "="},
		{TokenIdentifier, "a"},
		{TokenPunct, "?."},
		{TokenIdentifier, "b"},
		{TokenPunct, "??"},
		{TokenNumber, "0x1F"},
		{TokenPunct, ";"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Fatalf("token %d: type = %v, want %v (literal %q)", i, tok.Type, exp.typ, tok.Literal)
		}
		if tok.Literal != exp.lit {
			t.Fatalf("token %d: literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"function", TokenKeyword},
		{"class", TokenKeyword},
		{"instanceof", TokenKeyword},
		{"let", TokenIdentifier},
		{"async", TokenIdentifier},
		{"await", TokenIdentifier},
		{"yield", TokenIdentifier},
		{"of", TokenIdentifier},
		{"using", TokenIdentifier},
		{"$name", TokenIdentifier},
		{"_x1", TokenIdentifier},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.input {
			t.Errorf("%q: got %v, want %v", tc.input, tok, tc.typ)
		}
	}
}

func TestLexerLongestPunctuator(t *testing.T) {
	tokens := Tokenize(`a >>>= b === c ... d **= e`)
	var puncts []string
	for _, tok := range tokens {
		if tok.Type == TokenPunct {
			puncts = append(puncts, tok.Literal)
		}
	}
	want := []string{">>>=", "===", "...", "**="}
	if len(puncts) != len(want) {
		t.Fatalf("punctuators = %v, want %v", puncts, want)
	}
	for i := range want {
		if puncts[i] != want[i] {
			t.Errorf("punctuator %d = %q, want %q", i, puncts[i], want[i])
		}
	}
}

func TestLexerOptionalChainBeforeDigit(t *testing.T) {
	tokens := Tokenize(`a?.5:b`)
	if tokens[1].Literal != "?" {
		t.Fatalf("token 1 = %v, want ?", tokens[1])
	}
	if tokens[2].Type != TokenNumber || tokens[2].Literal != ".5" {
		t.Fatalf("token 2 = %v, want Number(.5)", tokens[2])
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'it\'s'`, "it's"},
		{`"a\nb"`, "a\nb"},
		{`"\x41B\u{43}"`, "ABC"},
		{`"tab\there"`, "tab\there"},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("%s: type = %v, want String", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("%s: literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerUnterminated(t *testing.T) {
	for _, input := range []string{`"abc`, "`abc", `/* open`, "'line\nbreak'"} {
		tokens := Tokenize(input)
		last := tokens[len(tokens)-1]
		if last.Type != TokenError {
			t.Errorf("%q: last token = %v, want an error token", input, last)
		}
	}
}

func TestLexerTemplateKeepsRawBody(t *testing.T) {
	tok := NewLexer("`a${ {x: `in${1}`}.x }b`").NextToken()
	if tok.Type != TokenTemplate {
		t.Fatalf("type = %v, want Template", tok.Type)
	}
	if tok.Literal != "a${ {x: `in${1}`}.x }b" {
		t.Errorf("literal = %q", tok.Literal)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("a\n  bb\n\tc")
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 2, Column: 3},
		{Offset: 8, Line: 3, Column: 2},
	}
	for i, pos := range want {
		if tokens[i].Pos != pos {
			t.Errorf("token %d at %+v, want %+v", i, tokens[i].Pos, pos)
		}
	}
	if tokens[0].NewlineBefore || !tokens[1].NewlineBefore || !tokens[2].NewlineBefore {
		t.Errorf("NewlineBefore flags = %v %v %v", tokens[0].NewlineBefore, tokens[1].NewlineBefore, tokens[2].NewlineBefore)
	}
}

func TestLexerNewlineInsideBlockComment(t *testing.T) {
	tokens := Tokenize("a /* one\ntwo */ b")
	if !tokens[1].NewlineBefore {
		t.Error("a block comment spanning lines should set NewlineBefore")
	}
}

func TestLexerHashbang(t *testing.T) {
	tokens := Tokenize("#!/usr/bin/env neo\nx")
	if tokens[0].Type != TokenIdentifier || tokens[0].Literal != "x" {
		t.Fatalf("first token = %v, want Identifier(x)", tokens[0])
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		lit  string
		want float64
	}{
		{"42", 42},
		{"3.5", 3.5},
		{".5", 0.5},
		{"1e3", 1000},
		{"2.5E-1", 0.25},
		{"0x1f", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"1_000", 1000},
	}
	for _, tc := range tests {
		got, err := ParseNumber(tc.lit)
		if err != nil {
			t.Errorf("ParseNumber(%q): %v", tc.lit, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tc.lit, got, tc.want)
		}
	}
	if v, _ := ParseNumber("1e400"); !math.IsInf(v, 1) {
		t.Errorf("ParseNumber(1e400) = %v, want +Inf", v)
	}
}

func TestUnescapeErrors(t *testing.T) {
	for _, raw := range []string{`\x4`, `\u12`, `\u{110000}`} {
		if _, err := Unescape(raw); err == nil {
			t.Errorf("Unescape(%q) should fail", raw)
		}
	}
}
