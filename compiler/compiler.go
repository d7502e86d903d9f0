// Package compiler turns source text into a bytecode program: a lexer and
// recursive-descent parser that build the AST and its scope table, a
// resolver that computes closure sets, and a generator that lowers the
// resolved tree into a single bytecode.Program.
package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/neojs/pkg/bytecode"
)

var log = commonlog.GetLogger("neo.compiler")

// Compile parses, resolves and generates a whole source file, then checks
// the result. Parse and compile errors come back decorated with the file
// name and a caret excerpt of the offending line.
func Compile(source, filename string, opts ...Option) (*bytecode.Program, error) {
	ast, scopes, err := Parse(source, filename)
	if err != nil {
		return nil, decorateError(err, filename, source)
	}
	Resolve(ast, scopes)

	prog, err := Generate(ast, scopes, opts...)
	if err != nil {
		return nil, decorateError(err, filename, source)
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("compiled %s: %d bytes of code, %d constants, %d scopes",
		filename, len(prog.Code), len(prog.Constants), scopes.Len())
	return prog, nil
}
