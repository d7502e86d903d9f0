package vm

import (
	"math"

	"github.com/joomcode/errorx"

	"github.com/chazu/neojs/pkg/bytecode"
)

// instructionLen caches the encoded length of every opcode.
var instructionLen = func() [256]int {
	var t [256]int
	for _, op := range bytecode.AllOpcodes() {
		if int(op) < len(t) {
			t[op] = op.InstructionLen()
		}
	}
	return t
}()

// step decodes and executes one instruction.
func (vm *VM) step() {
	r := vm.realm
	r.poll()

	pc := vm.pc
	p := vm.prog
	op := p.ReadOpcode(pc)
	if int(op) >= len(instructionLen) || instructionLen[op] == 0 {
		errorx.Panic(errorx.IllegalState.New("%s: unknown opcode 0x%04X at %d", p.Filename, uint16(op), pc))
	}
	vm.pc = pc + instructionLen[op]
	arg := pc + 2

	if r.config.Trace {
		if in, err := p.Decode(pc); err == nil {
			log.Debugf("%s %s [sp=%d]", p.Filename, p.FormatInstruction(in), len(vm.stack))
		}
	}

	switch op {
	// -- stack --------------------------------------------------------------
	case bytecode.OpNop:
	case bytecode.OpPop:
		vm.pop()
	case bytecode.OpPushValue:
		vm.push(vm.stack[len(vm.stack)-1-int(p.ReadInteger(arg))])
	case bytecode.OpInsert:
		n := int(p.ReadInteger(arg))
		v := vm.pop()
		at := len(vm.stack) - n
		vm.stack = append(vm.stack, nil)
		copy(vm.stack[at+1:], vm.stack[at:])
		vm.stack[at] = v

	// -- literals -----------------------------------------------------------
	case bytecode.OpPushUndefined:
		vm.push(Undefined)
	case bytecode.OpPushNull:
		vm.push(Null)
	case bytecode.OpPushTrue:
		vm.push(true)
	case bytecode.OpPushFalse:
		vm.push(false)
	case bytecode.OpPushNaN:
		vm.push(math.NaN())
	case bytecode.OpPushInfinity:
		vm.push(math.Inf(1))
	case bytecode.OpPushUninitialized:
		vm.push(&uninitialized{})
	case bytecode.OpPushNumber:
		vm.push(p.ReadNumber(arg))
	case bytecode.OpPushString:
		vm.push(p.ReadString(arg))
	case bytecode.OpPushThis:
		vm.push(vm.this)
	case bytecode.OpPushCallee:
		if vm.fn == nil {
			vm.push(Undefined)
		} else {
			vm.push(vm.fn)
		}
	case bytecode.OpPushSuper:
		vm.push(vm.superObject())

	// -- composite values ---------------------------------------------------
	case bytecode.OpPushArray:
		vm.push(r.NewArray(nil))
	case bytecode.OpAppend:
		v := vm.pop()
		arr := vm.peekObject()
		arr.Array = append(arr.Array, v)
	case bytecode.OpSpread:
		src := vm.pop()
		arr := vm.peekObject()
		r.Iterate(src, func(v Value) bool {
			arr.Array = append(arr.Array, v)
			return true
		})
	case bytecode.OpPushObject:
		vm.push(r.NewObject())
	case bytecode.OpDefField:
		v := vm.pop()
		key := r.ToPropertyKey(vm.pop())
		obj := vm.peekObject()
		if fn, ok := v.(*Object); ok && fn.Func != nil && fn.Func.Name == "" {
			if s, ok := key.(string); ok {
				fn.Func.Name = s
			}
		}
		obj.Define(key, v)
	case bytecode.OpObjectSpread:
		src := vm.pop()
		r.copyProperties(vm.peekObject(), src)
	case bytecode.OpRest:
		start := int(p.ReadInteger(arg))
		arr, _ := vm.pop().(*Object)
		var tail []Value
		if arr != nil && start < len(arr.Array) {
			tail = append(tail, arr.Array[start:]...)
		}
		vm.push(r.NewArray(tail))
	case bytecode.OpConcat:
		n := int(p.ReadInteger(arg))
		parts := vm.stack[len(vm.stack)-n:]
		buf := make([]byte, 0, 32)
		for _, part := range parts {
			buf = append(buf, r.ToString(part)...)
		}
		vm.truncate(len(vm.stack) - n)
		vm.push(string(buf))

	// -- functions and classes ----------------------------------------------
	case bytecode.OpPushFunction:
		vm.push(r.NewFunction(FunctionNormal, p))
	case bytecode.OpPushGenerator:
		vm.push(r.NewFunction(FunctionGenerator, p))
	case bytecode.OpPushAsyncFunction:
		vm.push(r.NewFunction(FunctionAsync, p))
	case bytecode.OpPushAsyncGenerator:
		vm.push(r.NewFunction(FunctionAsyncGenerator, p))
	case bytecode.OpPushLambda:
		vm.push(r.NewFunction(FunctionLambda, p))
	case bytecode.OpPushAsyncLambda:
		vm.push(r.NewFunction(FunctionAsyncLambda, p))
	case bytecode.OpSetName:
		name := vm.pop()
		vm.peekFunction().Name = r.ToString(name)
	case bytecode.OpSetSource:
		vm.peekFunction().Source = p.ReadString(arg)
	case bytecode.OpSetAddress:
		vm.peekFunction().Address = int(p.ReadAddress(arg))
	case bytecode.OpSetClosure:
		name := p.ReadString(arg)
		f := vm.peekFunction()
		if cell := vm.scope.Lookup(name); cell != nil {
			f.captures = append(f.captures, capture{name: name, cell: cell})
		}
	case bytecode.OpSetBind:
		this := vm.pop()
		f := vm.peekFunction()
		f.Bound = this
		f.Home = vm.home()
		f.Ctor = vm.constructor()
	case bytecode.OpClass:
		ctor := vm.pop().(*Object)
		parent := vm.pop()
		r.defineClass(ctor, parent)
		vm.push(ctor)
	case bytecode.OpDefMethod:
		static := p.ReadInteger(arg) != 0
		method := vm.pop().(*Object)
		key := r.ToPropertyKey(vm.pop())
		r.defineMethod(vm.peekObject(), key, method, static)
	case bytecode.OpSetFieldInit:
		init := vm.pop().(*Object)
		cls := vm.peekObject()
		init.Func.Method = true
		if proto, ok := cls.Get("prototype").(*Object); ok {
			init.Func.Home = proto
		}
		cls.Func.FieldInit = init

	// -- scopes -------------------------------------------------------------
	case bytecode.OpPushScope:
		vm.scope = NewScope(vm.scope)
	case bytecode.OpPopScope:
		vm.popScope()
	case bytecode.OpRenewScope:
		vm.scope.renew()
	case bytecode.OpLoad:
		vm.push(vm.load(p.ReadString(arg)))
	case bytecode.OpStore:
		vm.store(p.ReadString(arg), vm.peek())
	case bytecode.OpDef:
		vm.def(p.ReadString(arg), vm.pop())
	case bytecode.OpSetConst:
		vm.peek().(*uninitialized).Const = true
	case bytecode.OpSetUsing:
		vm.peek().(*uninitialized).Using = true
	case bytecode.OpTypeofName:
		vm.push(vm.typeofName(p.ReadString(arg)))

	// -- operators ----------------------------------------------------------
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow,
		bytecode.OpShl, bytecode.OpShr, bytecode.OpUshr, bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor,
		bytecode.OpEq, bytecode.OpNe, bytecode.OpSeq, bytecode.OpSne,
		bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe,
		bytecode.OpIn, bytecode.OpInstanceOf:
		b := vm.pop()
		a := vm.pop()
		vm.push(r.binary(op, a, b))
	case bytecode.OpNot, bytecode.OpLogicalNot, bytecode.OpNeg, bytecode.OpPlus,
		bytecode.OpInc, bytecode.OpDec, bytecode.OpTypeof, bytecode.OpVoid:
		vm.push(r.unary(op, vm.pop()))

	// -- control ------------------------------------------------------------
	case bytecode.OpJmp:
		vm.pc = int(p.ReadAddress(arg))
	case bytecode.OpJTrue:
		if ToBoolean(vm.peek()) {
			vm.pc = int(p.ReadAddress(arg))
		}
	case bytecode.OpJFalse:
		if !ToBoolean(vm.peek()) {
			vm.pc = int(p.ReadAddress(arg))
		}
	case bytecode.OpJNull:
		if IsNullish(vm.peek()) {
			vm.stack[len(vm.stack)-1] = Undefined
			vm.pc = int(p.ReadAddress(arg))
		}
	case bytecode.OpJNotNull:
		if !IsNullish(vm.peek()) {
			vm.pc = int(p.ReadAddress(arg))
		}
	case bytecode.OpJNotUndefined:
		if vm.peek() != Undefined {
			vm.pc = int(p.ReadAddress(arg))
		}

	// -- calls and fields ---------------------------------------------------
	case bytecode.OpCall:
		args := vm.popArgs()
		callee := vm.pop()
		vm.push(vm.callAt(arg, func() Value {
			return r.Call(callee, Undefined, args...)
		}))
	case bytecode.OpNew:
		args := vm.popArgs()
		ctor := vm.pop()
		vm.push(vm.callAt(arg, func() Value {
			return r.Construct(ctor, args...)
		}))
	case bytecode.OpMemberCall:
		args := vm.popArgs()
		key := vm.pop()
		host := vm.pop()
		vm.push(vm.callAt(arg, func() Value {
			return r.callMethod(host, key, args)
		}))
	case bytecode.OpSuperCall:
		args := vm.popArgs()
		vm.push(vm.callAt(arg, func() Value {
			return vm.superCall(args)
		}))
	case bytecode.OpSuperMemberCall:
		args := vm.popArgs()
		key := r.ToPropertyKey(vm.pop())
		vm.push(vm.callAt(arg, func() Value {
			var method Value = Undefined
			if super, ok := vm.superObject().(*Object); ok {
				method = super.Get(key)
			}
			if !isCallable(method) {
				r.Throw(KindTypeError, "(intermediate value).%s is not a function", keyString(key))
			}
			return r.Call(method, vm.this, args...)
		}))
	case bytecode.OpGetField:
		key := vm.pop()
		host := vm.pop()
		vm.push(r.GetField(host, key))
	case bytecode.OpSetField:
		v := vm.pop()
		key := vm.pop()
		host := vm.pop()
		r.SetField(host, key, v)
		vm.push(v)
	case bytecode.OpDelField:
		key := vm.pop()
		host := vm.pop()
		vm.push(r.DeleteField(host, key))

	// -- labels -------------------------------------------------------------
	case bytecode.OpPushBreakLabel, bytecode.OpPushContinueLabel:
		kind := labelBreak
		if op == bytecode.OpPushContinueLabel {
			kind = labelContinue
		}
		vm.labels = append(vm.labels, labelFrame{
			kind:  kind,
			name:  p.ReadString(arg + 8),
			addr:  int(p.ReadAddress(arg)),
			stack: len(vm.stack),
			scope: vm.scope,
		})
	case bytecode.OpPopLabel:
		vm.labels = vm.labels[:len(vm.labels)-1]
	case bytecode.OpBreak:
		vm.jump(labelBreak, p.ReadString(arg))
	case bytecode.OpContinue:
		vm.jump(labelContinue, p.ReadString(arg))

	// -- protected regions --------------------------------------------------
	case bytecode.OpTryBegin:
		vm.tries = append(vm.tries, tryFrame{
			catch:   int(p.ReadAddress(arg)),
			finally: int(p.ReadAddress(arg + 8)),
			stack:   len(vm.stack),
			labels:  len(vm.labels),
			scope:   vm.scope,
		})
	case bytecode.OpTryEnd:
		vm.endTry()
	case bytecode.OpThrow:
		panic(&Exception{Value: vm.pop()})

	// -- iteration ----------------------------------------------------------
	case bytecode.OpIterator:
		vm.push(r.GetIterator(vm.pop()))
	case bytecode.OpAsyncIterator:
		vm.push(r.GetAsyncIterator(vm.pop()))
	case bytecode.OpNext:
		value, done := r.IteratorStep(vm.peek())
		vm.push(value)
		vm.push(done)
	case bytecode.OpSend:
		v := vm.pop()
		vm.push(r.invokeMethod(vm.peek(), "next", []Value{v}))
	case bytecode.OpKeys:
		vm.push(r.enumerableKeys(vm.pop()))

	// -- coroutines ---------------------------------------------------------
	case bytecode.OpYield:
		vm.suspend(InterruptYield, vm.pop())
	case bytecode.OpAwait:
		vm.suspend(InterruptAwait, vm.pop())

	// -- completion ---------------------------------------------------------
	case bytecode.OpSave:
		vm.completion = vm.pop()
	case bytecode.OpRet:
		vm.doReturn(vm.pop())
	case bytecode.OpHlt:
		vm.result = vm.completion
		vm.state = Halted
	case bytecode.OpDebugger:
		log.Debugf("debugger statement at %s:%d", p.Filename, pc)

	default:
		errorx.Panic(errorx.IllegalState.New("%s: opcode %s at %d is not executable", p.Filename, op, pc))
	}
}

// popArgs pops the argument array of a call.
func (vm *VM) popArgs() []Value {
	arr, ok := vm.pop().(*Object)
	if !ok {
		errorx.Panic(errorx.IllegalState.New("%s: call without an argument array at %d", vm.prog.Filename, vm.pc))
	}
	return arr.Array
}

// callAt runs a call instruction, recording its source position for error
// stacks while the callee runs.
func (vm *VM) callAt(arg int, call func() Value) Value {
	r := vm.realm
	n := len(r.sites)
	r.sites = append(r.sites, callSite{
		file: vm.prog.Filename,
		line: int(vm.prog.ReadInteger(arg)),
		col:  int(vm.prog.ReadInteger(arg + 4)),
	})
	defer func() { r.sites = r.sites[:n] }()
	return call()
}

// home returns the home object of the running function.
func (vm *VM) home() *Object {
	if vm.fn == nil {
		return nil
	}
	return vm.fn.Func.Home
}

// constructor returns the class constructor whose body is running, seen
// through arrow functions.
func (vm *VM) constructor() *Object {
	if vm.fn == nil {
		return nil
	}
	if vm.fn.Func.Ctor != nil {
		return vm.fn.Func.Ctor
	}
	if vm.fn.Func.Class {
		return vm.fn
	}
	return nil
}

// superObject is the object super property lookups start from.
func (vm *VM) superObject() Value {
	home := vm.home()
	if home == nil || home.Proto == nil {
		return Undefined
	}
	return home.Proto
}

// superCall runs the parent constructor on this, then the field
// initializer of the running class.
func (vm *VM) superCall(args []Value) Value {
	r := vm.realm
	ctor := vm.constructor()
	if ctor == nil {
		r.Throw(KindSyntaxError, "'super' keyword unexpected here")
	}
	this, ok := vm.this.(*Object)
	if !ok {
		r.Throw(KindReferenceError, "Must call super constructor in derived class before accessing 'this'")
	}
	parent := ctor.Func.Parent
	if parent == nil {
		r.Throw(KindTypeError, "Super constructor null of anonymous class is not a constructor")
	}
	r.superConstruct(parent, this, args)
	r.initFields(ctor, this)
	return this
}
