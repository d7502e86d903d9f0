package compiler

import (
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
)

var (
	// Errors is the namespace of every error the front end reports.
	Errors = errorx.NewNamespace("neo")

	// SyntaxError is raised by the reader for malformed source text.
	SyntaxError = Errors.NewType("syntax_error")

	// IncompleteInput is a SyntaxError caused by source that ends too early.
	// Interactive readers use it to ask for another line.
	IncompleteInput = SyntaxError.NewSubtype("incomplete_input")

	// CompileError is raised by the generator for well-formed source that
	// cannot be compiled, such as a break with no target.
	CompileError = Errors.NewType("compile_error")

	// PositionProperty carries the Position an error refers to.
	PositionProperty = errorx.RegisterProperty("position")

	// FileProperty carries the file name an error refers to.
	FileProperty = errorx.RegisterProperty("file")
)

// IsIncomplete reports whether err means the source ended before a
// construct was closed.
func IsIncomplete(err error) bool {
	return errorx.IsOfType(err, IncompleteInput)
}

// ErrorPosition extracts the position attached to a front-end error.
func ErrorPosition(err error) (Position, bool) {
	v, ok := errorx.ExtractProperty(err, PositionProperty)
	if !ok {
		return Position{}, false
	}
	pos, ok := v.(Position)
	return pos, ok
}

// ErrorMessage returns the bare message of a front-end error, without the
// namespace prefix or decorations.
func ErrorMessage(err error) string {
	e := errorx.Cast(err)
	if e == nil {
		return err.Error()
	}
	for strings.HasPrefix(e.Message(), "Code: ") || e.Message() == panicMessage {
		inner := errorx.Cast(e.Cause())
		if inner == nil {
			break
		}
		e = inner
	}
	return e.Message()
}

// panicMessage is the message errorx gives the wrapper it panics with.
const panicMessage = "panic"

// raise aborts parsing or generation with err. Parse and Generate recover
// the bare error, so its type, message and properties reach the caller
// unchanged.
func raise(err *errorx.Error) {
	panic(err)
}

func syntaxErrorAt(pos Position, format string, args ...interface{}) *errorx.Error {
	return SyntaxError.New(format, args...).WithProperty(PositionProperty, pos)
}

func compileErrorAt(pos Position, format string, args ...interface{}) *errorx.Error {
	return CompileError.New(format, args...).WithProperty(PositionProperty, pos)
}

// decorateError attaches the file name and a caret line pointing at the
// error position.
func decorateError(err error, filename, source string) error {
	pos, ok := ErrorPosition(err)
	if !ok {
		return err
	}
	e := errorx.Cast(err)
	if e == nil {
		return err
	}
	e = e.WithProperty(FileProperty, filename)

	offset := pos.Offset
	if offset > len(source) {
		offset = len(source)
	}
	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	lineEnd := strings.IndexByte(source[offset:], '\n')
	if lineEnd == -1 {
		lineEnd = len(source)
	} else {
		lineEnd = offset + lineEnd
	}
	return errorx.Decorate(e, "Code: %s (%s:%d:%d)",
		source[lineStart:offset]+"^"+source[offset:lineEnd], filename, pos.Line, pos.Column)
}

// FormatError renders a front-end error the way the command line reports
// it: `SyntaxError: message` followed by the location.
func FormatError(err error) string {
	kind := "Error"
	switch {
	case errorx.IsOfType(err, SyntaxError), errorx.IsOfType(err, CompileError):
		kind = "SyntaxError"
	}
	msg := fmt.Sprintf("%s: %s", kind, ErrorMessage(err))
	if pos, ok := ErrorPosition(err); ok {
		file := "<input>"
		if v, ok := errorx.ExtractProperty(err, FileProperty); ok {
			file = v.(string)
		}
		msg += fmt.Sprintf("\n    at %s:%d:%d", file, pos.Line, pos.Column)
	}
	return msg
}
