package vm

import (
	"github.com/chazu/neojs/pkg/bytecode"
)

// FunctionKind selects how a call runs the function body.
type FunctionKind int

const (
	FunctionNormal FunctionKind = iota
	FunctionGenerator
	FunctionAsync
	FunctionAsyncGenerator
	FunctionLambda
	FunctionAsyncLambda
	FunctionNative
)

// NativeFunc is a builtin implemented in Go. It reports JavaScript errors
// by panicking with an *Exception (see Realm.Throw).
type NativeFunc func(r *Realm, this Value, args []Value) Value

// capture is one closure cell shared with the scope the function was
// created in.
type capture struct {
	name string
	cell *Binding
}

// Function is the code half of a function object.
type Function struct {
	Kind    FunctionKind
	Name    string
	Source  string
	Address int
	Program *bytecode.Program
	Native  NativeFunc

	captures []capture

	// Arrow functions see the this, home object and constructor of the
	// function they were created in.
	Bound Value
	Home  *Object
	Ctor  *Object

	// Classes
	Class     bool
	Derived   bool
	Parent    *Object
	FieldInit *Object
	Method    bool

	// Constructible marks native functions usable with new.
	Constructible bool

	realm *Realm
}

// IsConstructor reports whether the function can be used with new.
func (f *Function) IsConstructor() bool {
	switch f.Kind {
	case FunctionNormal:
		return f.Class || !f.Method
	case FunctionNative:
		return f.Constructible
	}
	return false
}

// Captured returns the names of the captured closure cells.
func (f *Function) Captured() []string {
	names := make([]string, len(f.captures))
	for i, c := range f.captures {
		names[i] = c.name
	}
	return names
}

// lazyPrototype creates the prototype object of a plain function the first
// time it is asked for. Classes define theirs when the class is built.
func (f *Function) lazyPrototype(fn *Object) *Object {
	if f.realm == nil || f.Kind != FunctionNormal || f.Method || f.Class {
		return nil
	}
	proto := NewObject(f.realm.ObjectPrototype)
	proto.DefineHidden("constructor", fn)
	fn.DefineHidden("prototype", proto)
	return proto
}

// NewFunction creates a function object for code at address in prog.
func (r *Realm) NewFunction(kind FunctionKind, prog *bytecode.Program) *Object {
	return &Object{
		Class: ClassFunction,
		Proto: r.FunctionPrototype,
		Func:  &Function{Kind: kind, Program: prog, Bound: Undefined, realm: r},
	}
}

// NewNative creates a builtin function object.
func (r *Realm) NewNative(name string, fn NativeFunc) *Object {
	return &Object{
		Class: ClassFunction,
		Proto: r.FunctionPrototype,
		Func:  &Function{Kind: FunctionNative, Name: name, Native: fn, Bound: Undefined, realm: r},
	}
}

// NewConstructor creates a builtin constructor with its prototype object.
func (r *Realm) NewConstructor(name string, proto *Object, fn NativeFunc) *Object {
	ctor := r.NewNative(name, fn)
	ctor.Func.Constructible = true
	ctor.DefineHidden("prototype", proto)
	proto.DefineHidden("constructor", ctor)
	return ctor
}
