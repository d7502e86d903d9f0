package vm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/chazu/neojs/pkg/bytecode"
)

// method installs a non-enumerable native method on obj.
func (r *Realm) method(obj *Object, key PropertyKey, fn NativeFunc) *Object {
	name := keyString(key)
	native := r.NewNative(name, fn)
	obj.DefineHidden(key, native)
	return native
}

func returnThis(r *Realm, this Value, args []Value) Value {
	return this
}

// setupBuiltins creates the builtin prototypes and binds the globals.
func (r *Realm) setupBuiltins() {
	r.ObjectPrototype = NewObject(nil)
	r.FunctionPrototype = NewObject(r.ObjectPrototype)
	r.ArrayPrototype = NewObject(r.ObjectPrototype)
	r.StringPrototype = NewObject(r.ObjectPrototype)
	r.NumberPrototype = NewObject(r.ObjectPrototype)
	r.BooleanPrototype = NewObject(r.ObjectPrototype)
	r.SymbolPrototype = NewObject(r.ObjectPrototype)
	r.ErrorPrototype = NewObject(r.ObjectPrototype)
	r.PromisePrototype = NewObject(r.ObjectPrototype)
	r.IteratorPrototype = NewObject(r.ObjectPrototype)
	r.ArrayIteratorPrototype = NewObject(r.IteratorPrototype)
	r.GeneratorPrototype = NewObject(r.IteratorPrototype)
	r.AsyncGeneratorPrototype = NewObject(r.ObjectPrototype)
	r.AsyncFromSyncPrototype = NewObject(r.ObjectPrototype)

	r.GlobalObject = r.NewObject()
	r.DefineGlobal("globalThis", r.GlobalObject)
	r.DefineGlobal("undefined", Undefined)
	r.DefineGlobal("NaN", math.NaN())
	r.DefineGlobal("Infinity", math.Inf(1))

	r.setupObject()
	r.setupFunction()
	r.setupErrors()
	r.setupSymbol()
	r.setupIterators()
	r.setupPromise()
	r.setupArray()
	r.setupString()
	r.setupNumber()
	r.setupConsole()
	r.setupMath()

	r.DefineGlobal("queueMicrotask", r.NewNative("queueMicrotask", func(r *Realm, this Value, args []Value) Value {
		fn := arg(args, 0)
		if !isCallable(fn) {
			r.Throw(KindTypeError, "The \"callback\" argument must be of type function. Received %s", Inspect(fn))
		}
		r.QueueMicrotask(func() { r.Call(fn, Undefined) })
		return Undefined
	}))
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

func (r *Realm) setupObject() {
	proto := r.ObjectPrototype
	r.method(proto, "toString", func(r *Realm, this Value, args []Value) Value {
		switch x := this.(type) {
		case undefinedType:
			return "[object Undefined]"
		case nullType:
			return "[object Null]"
		case *Object:
			switch {
			case x.IsArray():
				return "[object Array]"
			case x.Func != nil:
				return "[object Function]"
			case x.Class == ClassError:
				return "[object Error]"
			}
		}
		return "[object Object]"
	})
	r.method(proto, "valueOf", returnThis)
	r.method(proto, "hasOwnProperty", func(r *Realm, this Value, args []Value) Value {
		return r.ToObject(this).HasOwn(r.ToPropertyKey(arg(args, 0)))
	})

	ctor := r.NewConstructor("Object", proto, func(r *Realm, this Value, args []Value) Value {
		if obj, ok := arg(args, 0).(*Object); ok {
			return obj
		}
		return r.NewObject()
	})
	r.method(ctor, "keys", func(r *Realm, this Value, args []Value) Value {
		return r.enumerableKeys(r.objectArg(args))
	})
	r.method(ctor, "values", func(r *Realm, this Value, args []Value) Value {
		v := r.objectArg(args)
		var out []Value
		for _, k := range r.enumerableKeys(v).Array {
			out = append(out, r.GetField(v, k))
		}
		return r.NewArray(out)
	})
	r.method(ctor, "entries", func(r *Realm, this Value, args []Value) Value {
		v := r.objectArg(args)
		var out []Value
		for _, k := range r.enumerableKeys(v).Array {
			out = append(out, r.NewArray([]Value{k, r.GetField(v, k)}))
		}
		return r.NewArray(out)
	})
	r.method(ctor, "assign", func(r *Realm, this Value, args []Value) Value {
		dst := r.ToObject(arg(args, 0))
		for _, src := range args[1:] {
			r.copyProperties(dst, src)
		}
		return dst
	})
	r.method(ctor, "getPrototypeOf", func(r *Realm, this Value, args []Value) Value {
		switch x := r.objectArg(args).(type) {
		case *Object:
			if x.Proto == nil {
				return Null
			}
			return x.Proto
		case string:
			return r.StringPrototype
		case float64:
			return r.NumberPrototype
		case bool:
			return r.BooleanPrototype
		case *Symbol:
			return r.SymbolPrototype
		}
		return Null
	})
	r.method(ctor, "setPrototypeOf", func(r *Realm, this Value, args []Value) Value {
		obj, ok := arg(args, 0).(*Object)
		if !ok {
			return arg(args, 0)
		}
		obj.Proto = r.protoArg(arg(args, 1))
		return obj
	})
	r.method(ctor, "create", func(r *Realm, this Value, args []Value) Value {
		return NewObject(r.protoArg(arg(args, 0)))
	})
	r.DefineGlobal("Object", ctor)
}

// objectArg returns the first argument, rejecting null and undefined.
func (r *Realm) objectArg(args []Value) Value {
	v := arg(args, 0)
	if IsNullish(v) {
		r.Throw(KindTypeError, "Cannot convert undefined or null to object")
	}
	return v
}

func (r *Realm) protoArg(v Value) *Object {
	switch p := v.(type) {
	case *Object:
		return p
	case nullType:
		return nil
	}
	r.Throw(KindTypeError, "Object prototype may only be an Object or null: %s", Inspect(v))
	return nil
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

func (r *Realm) setupFunction() {
	proto := r.FunctionPrototype
	proto.Func = &Function{Kind: FunctionNative, Native: func(r *Realm, this Value, args []Value) Value {
		return Undefined
	}, Bound: Undefined, realm: r}
	proto.Class = ClassFunction

	r.method(proto, "call", func(r *Realm, this Value, args []Value) Value {
		var rest []Value
		if len(args) > 1 {
			rest = args[1:]
		}
		return r.Call(this, arg(args, 0), rest...)
	})
	r.method(proto, "apply", func(r *Realm, this Value, args []Value) Value {
		return r.Call(this, arg(args, 0), r.listArg(arg(args, 1))...)
	})
	r.method(proto, "bind", func(r *Realm, this Value, args []Value) Value {
		target, ok := this.(*Object)
		if !ok || target.Func == nil {
			r.Throw(KindTypeError, "Bind must be called on a function")
		}
		boundThis := arg(args, 0)
		var bound []Value
		if len(args) > 1 {
			bound = append(bound, args[1:]...)
		}
		return r.NewNative("bound "+target.Func.Name, func(r *Realm, _ Value, args []Value) Value {
			return r.Call(target, boundThis, append(append([]Value(nil), bound...), args...)...)
		})
	})
	r.method(proto, "toString", func(r *Realm, this Value, args []Value) Value {
		obj, ok := this.(*Object)
		if !ok || obj.Func == nil {
			r.Throw(KindTypeError, "Function.prototype.toString requires that 'this' be a Function")
		}
		if obj.Func.Kind == FunctionNative {
			return fmt.Sprintf("function %s() { [native code] }", obj.Func.Name)
		}
		return obj.Func.Source
	})

	ctor := r.NewConstructor("Function", proto, func(r *Realm, this Value, args []Value) Value {
		r.Throw(KindSyntaxError, "Function constructor is not supported")
		return nil
	})
	r.DefineGlobal("Function", ctor)
}

// listArg spreads an apply argument list.
func (r *Realm) listArg(v Value) []Value {
	if IsNullish(v) {
		return nil
	}
	obj, ok := v.(*Object)
	if !ok {
		r.Throw(KindTypeError, "CreateListFromArrayLike called on non-object")
	}
	if obj.IsArray() {
		return append([]Value(nil), obj.Array...)
	}
	n := int(r.ToNumber(obj.Get("length")))
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, obj.Get(FormatNumber(float64(i))))
	}
	return out
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (r *Realm) setupErrors() {
	base := r.errorConstructor(KindError, r.ErrorPrototype, nil)
	r.method(r.ErrorPrototype, "toString", func(r *Realm, this Value, args []Value) Value {
		obj := r.ToObject(this)
		name := "Error"
		if n := obj.Get("name"); n != Undefined {
			name = r.ToString(n)
		}
		msg := ""
		if m := obj.Get("message"); m != Undefined {
			msg = r.ToString(m)
		}
		switch {
		case name == "":
			return msg
		case msg == "":
			return name
		}
		return name + ": " + msg
	})

	for _, kind := range []string{KindTypeError, KindRangeError, KindReferenceError, KindSyntaxError} {
		r.errorConstructor(kind, NewObject(r.ErrorPrototype), base)
	}
}

func (r *Realm) errorConstructor(kind string, proto *Object, parent *Object) *Object {
	proto.DefineHidden("name", kind)
	proto.DefineHidden("message", "")
	r.errorPrototypes[kind] = proto

	ctor := r.NewConstructor(kind, proto, func(r *Realm, this Value, args []Value) Value {
		msg := ""
		if m := arg(args, 0); m != Undefined {
			msg = r.ToString(m)
		}
		obj, ok := this.(*Object)
		if !ok || !obj.InstanceOf(proto) {
			obj = NewObject(proto)
		}
		r.initError(obj, msg)
		if opts, ok := arg(args, 1).(*Object); ok && opts.HasOwn("cause") {
			obj.DefineHidden("cause", opts.Get("cause"))
		}
		return obj
	})
	if parent != nil {
		ctor.Proto = parent
	}
	r.DefineGlobal(kind, ctor)
	return ctor
}

// ---------------------------------------------------------------------------
// Symbol
// ---------------------------------------------------------------------------

func (r *Realm) setupSymbol() {
	proto := r.SymbolPrototype
	r.method(proto, "toString", func(r *Realm, this Value, args []Value) Value {
		s, ok := this.(*Symbol)
		if !ok {
			r.Throw(KindTypeError, "Symbol.prototype.toString requires that 'this' be a Symbol")
		}
		return s.String()
	})

	ctor := r.NewNative("Symbol", func(r *Realm, this Value, args []Value) Value {
		desc := ""
		if d := arg(args, 0); d != Undefined {
			desc = r.ToString(d)
		}
		return NewSymbol(desc)
	})
	ctor.DefineHidden("prototype", proto)
	proto.DefineHidden("constructor", ctor)
	ctor.DefineHidden("iterator", SymbolIterator)
	ctor.DefineHidden("asyncIterator", SymbolAsyncIterator)
	ctor.DefineHidden("dispose", SymbolDispose)
	r.DefineGlobal("Symbol", ctor)
}

// ---------------------------------------------------------------------------
// Iterators and generators
// ---------------------------------------------------------------------------

func (r *Realm) setupIterators() {
	r.method(r.IteratorPrototype, SymbolIterator, returnThis)

	r.method(r.ArrayIteratorPrototype, "next", func(r *Realm, this Value, args []Value) Value {
		obj, ok := this.(*Object)
		var it *arrayIterator
		if ok {
			it, ok = obj.Internal.(*arrayIterator)
		}
		if !ok {
			r.Throw(KindTypeError, "next method called on incompatible receiver %s", inspectShort(this))
		}
		v, done := it.next()
		return r.IterResult(v, done)
	})

	r.method(r.GeneratorPrototype, "next", generatorMethod(resumeNext))
	r.method(r.GeneratorPrototype, "return", generatorMethod(resumeReturn))
	r.method(r.GeneratorPrototype, "throw", generatorMethod(resumeThrow))

	r.method(r.AsyncGeneratorPrototype, "next", asyncGeneratorMethod(resumeNext))
	r.method(r.AsyncGeneratorPrototype, "return", asyncGeneratorMethod(resumeReturn))
	r.method(r.AsyncGeneratorPrototype, "throw", asyncGeneratorMethod(resumeThrow))
	r.method(r.AsyncGeneratorPrototype, SymbolAsyncIterator, returnThis)

	r.method(r.AsyncFromSyncPrototype, "next", asyncFromSyncNext)
	r.method(r.AsyncFromSyncPrototype, SymbolAsyncIterator, returnThis)
}

// ---------------------------------------------------------------------------
// Promise
// ---------------------------------------------------------------------------

func (r *Realm) setupPromise() {
	proto := r.PromisePrototype
	r.method(proto, "then", func(r *Realm, this Value, args []Value) Value {
		return r.then(r.thisPromise(this, "then"), arg(args, 0), arg(args, 1)).Object
	})
	r.method(proto, "catch", func(r *Realm, this Value, args []Value) Value {
		return r.then(r.thisPromise(this, "catch"), Undefined, arg(args, 0)).Object
	})
	r.method(proto, "finally", func(r *Realm, this Value, args []Value) Value {
		return r.finally(r.thisPromise(this, "finally"), arg(args, 0)).Object
	})

	ctor := r.NewConstructor("Promise", proto, func(r *Realm, this Value, args []Value) Value {
		obj, ok := this.(*Object)
		if !ok || obj.Internal != nil || !obj.InstanceOf(proto) {
			r.Throw(KindTypeError, "Promise constructor cannot be invoked without 'new'")
		}
		executor := arg(args, 0)
		if !isCallable(executor) {
			r.Throw(KindTypeError, "Promise resolver %s is not a function", Inspect(executor))
		}
		p := &Promise{State: PromisePending, Value: Undefined, Object: obj}
		obj.Class, obj.Internal = ClassPromise, p
		resolve, reject := r.resolvingFunctions(p)
		if exc := Try(func() { r.Call(executor, Undefined, resolve, reject) }); exc != nil {
			r.Call(reject, Undefined, exc.Value)
		}
		return obj
	})
	r.method(ctor, "resolve", func(r *Realm, this Value, args []Value) Value {
		return r.PromiseResolve(arg(args, 0)).Object
	})
	r.method(ctor, "reject", func(r *Realm, this Value, args []Value) Value {
		p := r.NewPromise()
		r.RejectPromise(p, arg(args, 0))
		return p.Object
	})
	r.DefineGlobal("Promise", ctor)
}

func (r *Realm) thisPromise(this Value, name string) *Promise {
	p, ok := promiseOf(this)
	if !ok {
		r.Throw(KindTypeError, "Method Promise.prototype.%s called on incompatible receiver %s", name, inspectShort(this))
	}
	return p
}

// ---------------------------------------------------------------------------
// console and Math
// ---------------------------------------------------------------------------

func (r *Realm) setupConsole() {
	console := r.NewObject()
	out := func(stderr bool) NativeFunc {
		return func(r *Realm, this Value, args []Value) Value {
			w := r.config.Stdout
			if stderr {
				w = r.config.Stderr
			}
			fmt.Fprintln(w, FormatLog(r, args))
			return Undefined
		}
	}
	for _, name := range []string{"log", "info", "debug"} {
		r.method(console, name, out(false))
	}
	for _, name := range []string{"error", "warn"} {
		r.method(console, name, out(true))
	}
	r.DefineGlobal("console", console)
}

func (r *Realm) setupMath() {
	m := r.NewObject()
	m.DefineHidden("PI", math.Pi)
	m.DefineHidden("E", math.E)

	unary := map[string]func(float64) float64{
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"abs":   math.Abs,
		"sqrt":  math.Sqrt,
		"trunc": math.Trunc,
		"log":   math.Log,
		"exp":   math.Exp,
		"round": func(x float64) float64 {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return x
			}
			return math.Floor(x + 0.5)
		},
		"sign": func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		},
	}
	for name, fn := range unary {
		fn := fn
		r.method(m, name, func(r *Realm, this Value, args []Value) Value {
			return fn(r.ToNumber(arg(args, 0)))
		})
	}
	r.method(m, "pow", func(r *Realm, this Value, args []Value) Value {
		return r.binary(bytecode.OpPow, arg(args, 0), arg(args, 1))
	})
	r.method(m, "max", func(r *Realm, this Value, args []Value) Value {
		res := math.Inf(-1)
		for _, a := range args {
			x := r.ToNumber(a)
			if math.IsNaN(x) {
				return math.NaN()
			}
			res = math.Max(res, x)
		}
		return res
	})
	r.method(m, "min", func(r *Realm, this Value, args []Value) Value {
		res := math.Inf(1)
		for _, a := range args {
			x := r.ToNumber(a)
			if math.IsNaN(x) {
				return math.NaN()
			}
			res = math.Min(res, x)
		}
		return res
	})
	r.method(m, "random", func(r *Realm, this Value, args []Value) Value {
		return rand.Float64()
	})
	r.DefineGlobal("Math", m)
}
