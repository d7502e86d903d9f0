package vm

import (
	"github.com/joomcode/errorx"

	"github.com/chazu/neojs/pkg/bytecode"
)

// State is the run state of a VM.
type State int

const (
	Running State = iota
	Halted
	Suspended
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Suspended:
		return "suspended"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// InterruptKind tells a coroutine driver why its VM suspended.
type InterruptKind int

const (
	InterruptYield InterruptKind = iota
	InterruptAwait
)

// Interrupt is the value a suspended VM handed to its driver.
type Interrupt struct {
	Kind  InterruptKind
	Value Value
}

// resumeMode is how a driver re-enters a VM.
type resumeMode int

const (
	resumeStart resumeMode = iota
	resumeNext
	resumeThrow
	resumeReturn
)

// ---------------------------------------------------------------------------
// Label and try frames
// ---------------------------------------------------------------------------

type labelKind int

const (
	labelBreak labelKind = iota
	labelContinue
)

// labelFrame is a break or continue target. A jump to it restores the
// operand stack height and scope the frame was pushed with.
type labelFrame struct {
	kind  labelKind
	name  string
	addr  int
	stack int
	scope *Scope
}

type tryPhase int

const (
	phaseTry tryPhase = iota
	phaseCatch
	phaseFinally
)

type completionKind int

const (
	completionNormal completionKind = iota
	completionThrow
	completionReturn
	completionJump
)

// completion is what a finally block resumes once it ends.
type completion struct {
	kind  completionKind
	exc   *Exception
	value Value
	label labelKind
	name  string
}

// tryFrame is a protected region. Addresses of zero mean the handler is
// absent.
type tryFrame struct {
	catch   int
	finally int
	stack   int
	labels  int
	scope   *Scope
	phase   tryPhase
	pending completion
}

// ---------------------------------------------------------------------------
// VM: one activation of a program or function body
// ---------------------------------------------------------------------------

// VM runs one function body (or a top-level program) to completion or to
// a suspension point. It owns its operand stack, scope chain, label stack
// and try stack, so a suspended VM is its own snapshot.
type VM struct {
	realm *Realm
	prog  *bytecode.Program
	fn    *Object // running function, nil at top level
	this  Value
	pc    int

	stack  []Value
	scope  *Scope
	base   *Scope
	labels []labelFrame
	tries  []tryFrame

	state      State
	result     Value
	completion Value
	interrupt  Interrupt
	err        *Exception
}

func (r *Realm) newVM(prog *bytecode.Program, fn *Object, this Value, scope *Scope) *VM {
	return &VM{
		realm:      r,
		prog:       prog,
		fn:         fn,
		this:       this,
		stack:      make([]Value, 0, 16),
		scope:      scope,
		base:       scope,
		result:     Undefined,
		completion: Undefined,
	}
}

// State returns the run state.
func (vm *VM) State() State {
	return vm.state
}

// Result returns the completion value of a halted VM.
func (vm *VM) Result() Value {
	return vm.result
}

// Err returns the exception that faulted the VM.
func (vm *VM) Err() *Exception {
	return vm.err
}

// resume re-enters the VM and runs until it halts, suspends or faults.
func (vm *VM) resume(mode resumeMode, v Value) {
	vm.state = Running
	switch mode {
	case resumeNext:
		vm.push(v)
	case resumeThrow:
		vm.guard(func() { vm.throw(&Exception{Value: v}) })
	case resumeReturn:
		vm.guard(func() { vm.doReturn(v) })
	}
	for vm.state == Running {
		vm.guard(vm.loop)
	}
}

// guard runs f, turning an escaping *Exception into a throw at the current
// instruction. Anything else keeps unwinding.
func (vm *VM) guard(f func()) {
	depth, sites := vm.realm.depth, len(vm.realm.sites)
	defer func() {
		if rec := recover(); rec != nil {
			exc, ok := rec.(*Exception)
			if !ok {
				panic(rec)
			}
			vm.realm.depth = depth
			vm.realm.sites = vm.realm.sites[:sites]
			vm.throw(exc)
		}
	}()
	f()
}

func (vm *VM) loop() {
	for vm.state == Running {
		vm.step()
	}
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack[n] = nil
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek() Value {
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) peekObject() *Object {
	obj, ok := vm.peek().(*Object)
	if !ok {
		errorx.Panic(errorx.IllegalState.New("%s: expected an object on the stack at %d", vm.prog.Filename, vm.pc))
	}
	return obj
}

func (vm *VM) peekFunction() *Function {
	obj := vm.peekObject()
	if obj.Func == nil {
		errorx.Panic(errorx.IllegalState.New("%s: expected a function on the stack at %d", vm.prog.Filename, vm.pc))
	}
	return obj.Func
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (vm *VM) load(name string) Value {
	b := vm.scope.Lookup(name)
	if b == nil {
		vm.realm.Throw(KindReferenceError, "%s is not defined", name)
	}
	if !b.Initialized {
		vm.realm.Throw(KindReferenceError, "Cannot access '%s' before initialization", name)
	}
	return b.Value
}

func (vm *VM) store(name string, v Value) {
	b := vm.scope.Lookup(name)
	if b == nil {
		vm.realm.Global.Define(name, &Binding{Value: v, Initialized: true})
		return
	}
	if !b.Initialized {
		vm.realm.Throw(KindReferenceError, "Cannot access '%s' before initialization", name)
	}
	if b.Const {
		vm.realm.Throw(KindTypeError, "Assignment to constant variable.")
	}
	b.Value = v
}

// def initializes name in the current frame. The uninitialized marker
// opens a fresh cell in the temporal dead zone; a value fills the frame's
// cell, creating it when needed.
func (vm *VM) def(name string, v Value) {
	if m, ok := v.(*uninitialized); ok {
		vm.scope.Define(name, &Binding{Value: Undefined, Const: m.Const, Using: m.Using})
		return
	}
	if b := vm.scope.Own(name); b != nil {
		b.Value = v
		b.Initialized = true
		return
	}
	vm.scope.Define(name, &Binding{Value: v, Initialized: true})
}

func (vm *VM) typeofName(name string) string {
	b := vm.scope.Lookup(name)
	if b == nil {
		return "undefined"
	}
	if !b.Initialized {
		vm.realm.Throw(KindReferenceError, "Cannot access '%s' before initialization", name)
	}
	return Typeof(b.Value)
}

// popScope leaves the current frame, disposing its using bindings.
func (vm *VM) popScope() {
	s := vm.scope
	vm.scope = s.parent
	if exc := vm.realm.disposeScope(s, nil); exc != nil {
		panic(exc)
	}
}

// popScopesTo pops frames until target is current. Errors raised while
// disposing replace exc, which is returned.
func (vm *VM) popScopesTo(target *Scope, exc *Exception) *Exception {
	for vm.scope != target && vm.scope != nil {
		s := vm.scope
		vm.scope = s.parent
		exc = vm.realm.disposeScope(s, exc)
	}
	return exc
}

// disposeScope calls [Symbol.dispose] on each using binding of s in
// reverse order.
func (r *Realm) disposeScope(s *Scope, exc *Exception) *Exception {
	for _, b := range s.usings() {
		value := b.Value
		if e := Try(func() { r.invokeMethod(value, SymbolDispose, nil) }); e != nil {
			exc = e
		}
	}
	return exc
}

// ---------------------------------------------------------------------------
// Abrupt completions
// ---------------------------------------------------------------------------

// unwind resets the VM to the state recorded by t.
func (vm *VM) unwind(t *tryFrame, exc *Exception) *Exception {
	vm.truncate(t.stack)
	vm.labels = vm.labels[:t.labels]
	return vm.popScopesTo(t.scope, exc)
}

func (vm *VM) truncate(n int) {
	for i := n; i < len(vm.stack); i++ {
		vm.stack[i] = nil
	}
	vm.stack = vm.stack[:n]
}

// throw transfers control to the innermost handler, or faults the VM when
// there is none.
func (vm *VM) throw(exc *Exception) {
	for len(vm.tries) > 0 {
		t := &vm.tries[len(vm.tries)-1]
		switch {
		case t.phase == phaseTry && t.catch != 0:
			exc = vm.unwind(t, exc)
			t.phase = phaseCatch
			vm.push(exc.Value)
			vm.pc = t.catch
			vm.state = Running
			return
		case t.phase != phaseFinally && t.finally != 0:
			exc = vm.unwind(t, exc)
			t.phase = phaseFinally
			t.pending = completion{kind: completionThrow, exc: exc}
			vm.pc = t.finally
			vm.state = Running
			return
		}
		vm.tries = vm.tries[:len(vm.tries)-1]
	}
	exc = vm.popScopesTo(vm.base, exc)
	vm.truncate(0)
	vm.labels = vm.labels[:0]
	vm.err = exc
	vm.state = Faulted
}

// doReturn leaves the function with v, running finally blocks on the way.
func (vm *VM) doReturn(v Value) {
	for len(vm.tries) > 0 {
		t := &vm.tries[len(vm.tries)-1]
		if t.phase != phaseFinally && t.finally != 0 {
			if exc := vm.unwind(t, nil); exc != nil {
				vm.throw(exc)
				return
			}
			t.phase = phaseFinally
			t.pending = completion{kind: completionReturn, value: v}
			vm.pc = t.finally
			vm.state = Running
			return
		}
		vm.tries = vm.tries[:len(vm.tries)-1]
	}
	if exc := vm.popScopesTo(vm.base, nil); exc != nil {
		vm.throw(exc)
		return
	}
	vm.truncate(0)
	vm.labels = vm.labels[:0]
	vm.result = v
	vm.state = Halted
}

// jump performs break or continue to the nearest label frame of the given
// kind and name. Try frames opened inside the label's region run their
// finally blocks first.
func (vm *VM) jump(kind labelKind, name string) {
	idx := -1
	for i := len(vm.labels) - 1; i >= 0; i-- {
		if l := vm.labels[i]; l.kind == kind && l.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		errorx.Panic(errorx.IllegalState.New("%s: no label frame for %q at %d", vm.prog.Filename, name, vm.pc))
	}

	for len(vm.tries) > 0 {
		t := &vm.tries[len(vm.tries)-1]
		if t.labels <= idx {
			break
		}
		if t.phase != phaseFinally && t.finally != 0 {
			if exc := vm.unwind(t, nil); exc != nil {
				panic(exc)
			}
			t.phase = phaseFinally
			t.pending = completion{kind: completionJump, label: kind, name: name}
			vm.pc = t.finally
			return
		}
		vm.tries = vm.tries[:len(vm.tries)-1]
	}

	l := vm.labels[idx]
	vm.labels = vm.labels[:idx+1]
	vm.truncate(l.stack)
	vm.pc = l.addr
	if exc := vm.popScopesTo(l.scope, nil); exc != nil {
		panic(exc)
	}
}

// endTry handles TRY_END: leave the current phase of the innermost frame.
func (vm *VM) endTry() {
	t := &vm.tries[len(vm.tries)-1]
	if t.phase != phaseFinally {
		if t.finally != 0 {
			t.phase = phaseFinally
			t.pending = completion{}
			vm.pc = t.finally
			return
		}
		vm.tries = vm.tries[:len(vm.tries)-1]
		return
	}

	pending := t.pending
	vm.tries = vm.tries[:len(vm.tries)-1]
	switch pending.kind {
	case completionThrow:
		vm.throw(pending.exc)
	case completionReturn:
		vm.doReturn(pending.value)
	case completionJump:
		vm.jump(pending.label, pending.name)
	}
}

// suspend stops the VM with an interrupt for its driver.
func (vm *VM) suspend(kind InterruptKind, v Value) {
	vm.interrupt = Interrupt{Kind: kind, Value: v}
	vm.state = Suspended
}
