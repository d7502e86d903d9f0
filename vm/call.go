package vm

import (
	"github.com/joomcode/errorx"
)

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func isCallable(v Value) bool {
	obj, ok := v.(*Object)
	return ok && obj.Func != nil
}

// Call invokes fn with the given receiver. Errors raised by the callee
// propagate as *Exception panics.
func (r *Realm) Call(fn Value, this Value, args ...Value) Value {
	callee, ok := fn.(*Object)
	if !ok || callee.Func == nil {
		r.Throw(KindTypeError, "%s is not a function", inspectShort(fn))
	}
	r.enter()
	defer r.leave()

	f := callee.Func
	switch f.Kind {
	case FunctionNative:
		return f.Native(r, this, args)
	case FunctionNormal:
		if f.Class {
			r.Throw(KindTypeError, "Class constructor %s cannot be invoked without 'new'", f.Name)
		}
		return r.runFunction(callee, this, args)
	case FunctionLambda:
		return r.runFunction(callee, f.Bound, args)
	case FunctionGenerator:
		return r.newGenerator(r.frame(callee, this, args))
	case FunctionAsync:
		return r.startAsync(r.frame(callee, this, args))
	case FunctionAsyncLambda:
		return r.startAsync(r.frame(callee, f.Bound, args))
	case FunctionAsyncGenerator:
		return r.newAsyncGenerator(r.frame(callee, this, args))
	}
	errorx.Panic(errorx.IllegalState.New("unknown function kind %d", f.Kind))
	return nil
}

// frame creates the VM for one activation of callee. Its call scope holds
// arguments and the captured cells, with the global scope as parent.
func (r *Realm) frame(callee *Object, this Value, args []Value) *VM {
	f := callee.Func
	scope := NewScope(r.Global)
	scope.Define("arguments", &Binding{Value: r.NewArray(append([]Value(nil), args...)), Initialized: true})
	for _, c := range f.captures {
		scope.Define(c.name, c.cell)
	}
	vm := r.newVM(f.Program, callee, this, scope)
	vm.pc = f.Address
	return vm
}

// runFunction runs a plain function body to completion.
func (r *Realm) runFunction(callee *Object, this Value, args []Value) Value {
	vm := r.frame(callee, this, args)
	vm.resume(resumeStart, nil)
	switch vm.state {
	case Halted:
		return vm.result
	case Faulted:
		panic(vm.err)
	}
	errorx.Panic(errorx.IllegalState.New("function %s suspended outside a coroutine", callee.Func.Name))
	return nil
}

// callMethod implements host[key](...args).
func (r *Realm) callMethod(host, key Value, args []Value) Value {
	k := r.ToPropertyKey(key)
	if IsNullish(host) {
		r.Throw(KindTypeError, "Cannot read properties of %s (reading '%s')", r.ToString(host), keyString(k))
	}
	method := r.GetField(host, k)
	if !isCallable(method) {
		r.Throw(KindTypeError, "%s.%s is not a function", inspectShort(host), keyString(k))
	}
	return r.Call(method, host, args...)
}

// invokeMethod calls the method named key on v.
func (r *Realm) invokeMethod(v Value, key PropertyKey, args []Value) Value {
	return r.callMethod(v, key, args)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// Construct implements new ctor(...args).
func (r *Realm) Construct(ctor Value, args ...Value) Value {
	c, ok := ctor.(*Object)
	if !ok || c.Func == nil || !c.Func.IsConstructor() {
		r.Throw(KindTypeError, "%s is not a constructor", inspectShort(ctor))
	}
	proto, ok := c.Get("prototype").(*Object)
	if !ok {
		proto = r.ObjectPrototype
	}
	obj := NewObject(proto)

	r.enter()
	defer r.leave()
	f := c.Func
	if f.Kind == FunctionNative {
		if res, ok := f.Native(r, obj, args).(*Object); ok {
			return res
		}
		return obj
	}
	if !f.Derived {
		r.initFields(c, obj)
	}
	if res, ok := r.runFunction(c, obj, args).(*Object); ok {
		return res
	}
	return obj
}

// superConstruct runs a parent constructor on an existing receiver.
func (r *Realm) superConstruct(parent *Object, this *Object, args []Value) {
	f := parent.Func
	if f == nil || !f.IsConstructor() {
		r.Throw(KindTypeError, "Super constructor %s of anonymous class is not a constructor", inspectShort(parent))
	}
	r.enter()
	defer r.leave()
	if f.Kind == FunctionNative {
		f.Native(r, this, args)
		return
	}
	if !f.Derived {
		r.initFields(parent, this)
	}
	r.runFunction(parent, this, args)
}

// initFields runs the class field initializer on a new instance.
func (r *Realm) initFields(ctor *Object, this *Object) {
	if init := ctor.Func.FieldInit; init != nil {
		r.Call(init, this)
	}
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// defineClass links a class constructor to its parent and gives it a
// prototype object.
func (r *Realm) defineClass(ctor *Object, parent Value) {
	f := ctor.Func
	f.Class = true
	protoParent := r.ObjectPrototype

	switch p := parent.(type) {
	case undefinedType:
	case nullType:
		protoParent = nil
		f.Derived = true
	case *Object:
		if p.Func == nil || !p.Func.IsConstructor() {
			r.Throw(KindTypeError, "Class extends value %s is not a constructor or null", inspectShort(parent))
		}
		switch pp := p.Get("prototype").(type) {
		case *Object:
			protoParent = pp
		case nullType:
			protoParent = nil
		default:
			r.Throw(KindTypeError, "Class extends value does not have valid prototype property %s", inspectShort(pp))
		}
		ctor.Proto = p
		f.Parent = p
		f.Derived = true
	default:
		r.Throw(KindTypeError, "Class extends value %s is not a constructor or null", inspectShort(parent))
	}

	proto := NewObject(protoParent)
	proto.DefineHidden("constructor", ctor)
	ctor.DefineHidden("prototype", proto)
	f.Home = proto
}

// defineMethod installs a method on a class or its prototype.
func (r *Realm) defineMethod(cls *Object, key PropertyKey, method *Object, static bool) {
	target := cls
	if !static {
		if proto, ok := cls.Get("prototype").(*Object); ok {
			target = proto
		}
	}
	method.Func.Home = target
	method.Func.Method = true
	if method.Func.Name == "" {
		method.Func.Name = keyString(key)
	}
	target.DefineHidden(key, method)
}

func keyString(key PropertyKey) string {
	switch k := key.(type) {
	case string:
		return k
	case *Symbol:
		return "[" + k.Description + "]"
	}
	return ""
}
