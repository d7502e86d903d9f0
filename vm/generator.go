package vm

import (
	"github.com/joomcode/errorx"
	"github.com/oklog/ulid/v2"
)

// ---------------------------------------------------------------------------
// Generator: a synchronous coroutine over one VM
// ---------------------------------------------------------------------------

// Generator drives the VM of a generator function call. The VM suspends
// at every yield; next, return and throw resume it.
type Generator struct {
	ID      ulid.ULID
	vm      *VM
	started bool
	running bool
	done    bool
	result  Value
}

func (r *Realm) newGenerator(vm *VM) *Object {
	g := &Generator{ID: ulid.Make(), vm: vm, result: Undefined}
	return &Object{Class: ClassGenerator, Proto: r.GeneratorPrototype, Internal: g}
}

// Done reports whether the generator has completed.
func (g *Generator) Done() bool {
	return g.done
}

// resume runs one step of the generator and returns its iterator result.
func (r *Realm) resumeGenerator(g *Generator, mode resumeMode, v Value) Value {
	if g.running {
		r.Throw(KindTypeError, "Generator is already running")
	}
	if g.done {
		switch mode {
		case resumeReturn:
			return r.IterResult(v, true)
		case resumeThrow:
			ThrowValue(v)
		}
		return r.IterResult(g.result, true)
	}
	if !g.started {
		switch mode {
		case resumeReturn:
			g.done, g.result = true, v
			return r.IterResult(v, true)
		case resumeThrow:
			g.done = true
			ThrowValue(v)
		}
		g.started = true
		mode = resumeStart
	}

	g.running = true
	defer func() { g.running = false }()
	g.vm.resume(mode, v)

	switch g.vm.state {
	case Suspended:
		if g.vm.interrupt.Kind != InterruptYield {
			errorx.Panic(errorx.IllegalState.New("generator %s suspended on await", g.ID))
		}
		return r.IterResult(g.vm.interrupt.Value, false)
	case Halted:
		g.done, g.result = true, g.vm.result
		return r.IterResult(g.result, true)
	case Faulted:
		g.done = true
		panic(g.vm.err)
	}
	errorx.Panic(errorx.IllegalState.New("generator %s stopped in state %s", g.ID, g.vm.state))
	return nil
}

func generatorMethod(mode resumeMode) NativeFunc {
	return func(r *Realm, this Value, args []Value) Value {
		obj, ok := this.(*Object)
		var g *Generator
		if ok {
			g, ok = obj.Internal.(*Generator)
		}
		if !ok {
			r.Throw(KindTypeError, "next method called on incompatible receiver %s", inspectShort(this))
		}
		return r.resumeGenerator(g, mode, arg(args, 0))
	}
}

// ---------------------------------------------------------------------------
// Awaiter: the driver of async functions
// ---------------------------------------------------------------------------

// awaiter runs an async function body. The body runs synchronously up to
// its first await; every later step runs from a microtask.
type awaiter struct {
	realm   *Realm
	vm      *VM
	promise *Promise
	// script marks a top-level body. Its completion value fulfils the
	// promise as is: a promise left as the last expression is a result,
	// not something to adopt.
	script bool
}

// startAsync starts vm as an async function body and returns its promise.
func (r *Realm) startAsync(vm *VM) *Object {
	a := &awaiter{realm: r, vm: vm, promise: r.NewPromise()}
	a.step(resumeStart, nil)
	return a.promise.Object
}

// startScript starts vm as a top-level body and returns its promise.
func (r *Realm) startScript(vm *VM) *Object {
	a := &awaiter{realm: r, vm: vm, promise: r.NewPromise(), script: true}
	a.step(resumeStart, nil)
	return a.promise.Object
}

func (a *awaiter) step(mode resumeMode, v Value) {
	r := a.realm
	a.vm.resume(mode, v)
	switch a.vm.state {
	case Suspended:
		r.await(a.vm.interrupt.Value,
			func(v Value) { a.step(resumeNext, v) },
			func(reason Value) { a.step(resumeThrow, reason) })
	case Halted:
		if a.script {
			r.fulfill(a.promise, a.vm.result)
		} else {
			r.ResolvePromise(a.promise, a.vm.result)
		}
	case Faulted:
		r.RejectPromise(a.promise, a.vm.err.Value)
	}
}

// ---------------------------------------------------------------------------
// AsyncGenerator: requests queued and served one at a time
// ---------------------------------------------------------------------------

// asyncRequest is one call of next, return or throw waiting for the
// generator.
type asyncRequest struct {
	mode    resumeMode
	value   Value
	promise *Promise
}

// AsyncGenerator serializes requests: each one is taken from the queue in
// a microtask once the previous one has settled.
type AsyncGenerator struct {
	ID      ulid.ULID
	vm      *VM
	queue   []*asyncRequest
	busy    bool
	started bool
	done    bool
	result  Value
}

func (r *Realm) newAsyncGenerator(vm *VM) *Object {
	g := &AsyncGenerator{ID: ulid.Make(), vm: vm, result: Undefined}
	return &Object{Class: ClassAsyncGenerator, Proto: r.AsyncGeneratorPrototype, Internal: g}
}

// enqueueAsync adds a request and returns the promise it settles.
func (r *Realm) enqueueAsync(g *AsyncGenerator, mode resumeMode, v Value) *Object {
	req := &asyncRequest{mode: mode, value: v, promise: r.NewPromise()}
	g.queue = append(g.queue, req)
	if !g.busy {
		g.busy = true
		r.QueueMicrotask(func() { r.serveAsync(g) })
	}
	return req.promise.Object
}

// serveAsync takes the next request off the queue.
func (r *Realm) serveAsync(g *AsyncGenerator) {
	if len(g.queue) == 0 {
		g.busy = false
		return
	}
	req := g.queue[0]

	if !g.started && req.mode != resumeNext {
		g.done = true
		if req.mode == resumeReturn {
			g.result = req.value
		}
	}
	if g.done {
		switch req.mode {
		case resumeReturn:
			r.settleAsync(g, func() { r.ResolvePromise(req.promise, r.IterResult(req.value, true)) })
		case resumeThrow:
			r.settleAsync(g, func() { r.RejectPromise(req.promise, req.value) })
		default:
			r.settleAsync(g, func() { r.ResolvePromise(req.promise, r.IterResult(g.result, true)) })
		}
		return
	}

	mode := req.mode
	if !g.started {
		g.started = true
		mode = resumeStart
	}
	r.stepAsync(g, req, mode, req.value)
}

// stepAsync resumes the generator VM on behalf of req.
func (r *Realm) stepAsync(g *AsyncGenerator, req *asyncRequest, mode resumeMode, v Value) {
	g.vm.resume(mode, v)
	switch g.vm.state {
	case Suspended:
		it := g.vm.interrupt
		if it.Kind == InterruptAwait {
			r.await(it.Value,
				func(v Value) { r.stepAsync(g, req, resumeNext, v) },
				func(reason Value) { r.stepAsync(g, req, resumeThrow, reason) })
			return
		}
		r.await(it.Value,
			func(v Value) {
				r.settleAsync(g, func() { r.ResolvePromise(req.promise, r.IterResult(v, false)) })
			},
			func(reason Value) {
				r.settleAsync(g, func() { r.RejectPromise(req.promise, reason) })
			})
	case Halted:
		g.done = true
		r.await(g.vm.result,
			func(v Value) {
				g.result = v
				r.settleAsync(g, func() { r.ResolvePromise(req.promise, r.IterResult(v, true)) })
			},
			func(reason Value) {
				r.settleAsync(g, func() { r.RejectPromise(req.promise, reason) })
			})
	case Faulted:
		g.done = true
		err := g.vm.err
		r.settleAsync(g, func() { r.RejectPromise(req.promise, err.Value) })
	}
}

// settleAsync completes the head request and schedules the next one.
func (r *Realm) settleAsync(g *AsyncGenerator, settle func()) {
	g.queue[0] = nil
	g.queue = g.queue[1:]
	settle()
	r.QueueMicrotask(func() { r.serveAsync(g) })
}

func asyncGeneratorMethod(mode resumeMode) NativeFunc {
	return func(r *Realm, this Value, args []Value) Value {
		obj, ok := this.(*Object)
		var g *AsyncGenerator
		if ok {
			g, ok = obj.Internal.(*AsyncGenerator)
		}
		if !ok {
			p := r.NewPromise()
			r.RejectPromise(p, r.NewError(KindTypeError, "next method called on incompatible receiver "+inspectShort(this)))
			return p.Object
		}
		return r.enqueueAsync(g, mode, arg(args, 0))
	}
}
