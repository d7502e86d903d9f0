package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Exception: a JavaScript value in flight
// ---------------------------------------------------------------------------

// Exception carries a thrown value across Go frames. Natives raise it by
// panicking; the VM recovers it and unwinds to the innermost try frame.
// An exception that escapes every frame is returned to the host.
type Exception struct {
	Value Value
}

func (e *Exception) Error() string {
	return "Uncaught " + Inspect(e.Value)
}

// Abort stops execution of every VM on the realm, for example when the
// host context is cancelled. It is never visible to scripts.
type Abort struct {
	Err error
}

func (a *Abort) Error() string {
	return "execution aborted: " + a.Err.Error()
}

func (a *Abort) Unwrap() error {
	return a.Err
}

// callSite is the position of a call instruction, recorded for error
// stacks.
type callSite struct {
	file string
	line int
	col  int
}

// ---------------------------------------------------------------------------
// Error objects
// ---------------------------------------------------------------------------

// Error kinds with a builtin constructor.
const (
	KindError          = "Error"
	KindTypeError      = "TypeError"
	KindRangeError     = "RangeError"
	KindReferenceError = "ReferenceError"
	KindSyntaxError    = "SyntaxError"
)

// NewError creates an error object of the given kind.
func (r *Realm) NewError(kind, msg string) *Object {
	proto, ok := r.errorPrototypes[kind]
	if !ok {
		proto = r.ErrorPrototype
	}
	obj := NewObject(proto)
	r.initError(obj, msg)
	return obj
}

// initError turns obj into an error carrying msg and the current stack.
func (r *Realm) initError(obj *Object, msg string) {
	obj.Class = ClassError
	obj.DefineHidden("message", msg)
	obj.DefineHidden("stack", r.stackTrace(obj, msg))
}

func (r *Realm) stackTrace(obj *Object, msg string) string {
	var sb strings.Builder
	name := "Error"
	if s, ok := obj.Get("name").(string); ok {
		name = s
	}
	sb.WriteString(name)
	if msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}
	for i := len(r.sites) - 1; i >= 0; i-- {
		site := r.sites[i]
		fmt.Fprintf(&sb, "\n    at %s:%d:%d", site.file, site.line, site.col)
	}
	return sb.String()
}

// Throw raises a new error of the given kind.
func (r *Realm) Throw(kind, format string, args ...interface{}) {
	panic(&Exception{Value: r.NewError(kind, fmt.Sprintf(format, args...))})
}

// ThrowValue raises an arbitrary value.
func ThrowValue(v Value) {
	panic(&Exception{Value: v})
}

// Try runs f and returns the exception it raised, if any. Aborts and Go
// runtime panics pass through.
func Try(f func()) (exc *Exception) {
	defer func() {
		if rec := recover(); rec != nil {
			e, ok := rec.(*Exception)
			if !ok {
				panic(rec)
			}
			exc = e
		}
	}()
	f()
	return nil
}
