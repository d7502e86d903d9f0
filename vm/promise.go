package vm

// PromiseState is the settlement state of a promise.
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

// reaction is a pair of callbacks waiting for a promise to settle. They
// always run as microtasks.
type reaction struct {
	onFulfilled func(Value)
	onRejected  func(Value)
}

// Promise is the internal state of a promise object.
type Promise struct {
	State  PromiseState
	Value  Value
	Object *Object

	handled   bool
	reactions []reaction
}

// NewPromise creates a pending promise.
func (r *Realm) NewPromise() *Promise {
	p := &Promise{State: PromisePending, Value: Undefined}
	p.Object = &Object{Class: ClassPromise, Proto: r.PromisePrototype, Internal: p}
	return p
}

// promiseOf returns the promise state of v, if v is a promise.
func promiseOf(v Value) (*Promise, bool) {
	obj, ok := v.(*Object)
	if !ok {
		return nil, false
	}
	p, ok := obj.Internal.(*Promise)
	return p, ok
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

func (r *Realm) fulfill(p *Promise, v Value) {
	if p.State != PromisePending {
		return
	}
	p.State, p.Value = PromiseFulfilled, v
	reactions := p.reactions
	p.reactions = nil
	for _, re := range reactions {
		cb := re.onFulfilled
		r.QueueMicrotask(func() { cb(v) })
	}
}

// RejectPromise rejects p with reason. A rejection nobody subscribes to
// is tracked until a handler shows up.
func (r *Realm) RejectPromise(p *Promise, reason Value) {
	if p.State != PromisePending {
		return
	}
	p.State, p.Value = PromiseRejected, reason
	reactions := p.reactions
	p.reactions = nil
	if !p.handled {
		r.rejections.Add(p.Object)
	}
	for _, re := range reactions {
		cb := re.onRejected
		r.QueueMicrotask(func() { cb(reason) })
	}
}

// ResolvePromise resolves p with v. Thenables are adopted through a
// microtask that calls their then method.
func (r *Realm) ResolvePromise(p *Promise, v Value) {
	if p.State != PromisePending {
		return
	}
	obj, ok := v.(*Object)
	if !ok {
		r.fulfill(p, v)
		return
	}
	if obj == p.Object {
		r.RejectPromise(p, r.NewError(KindTypeError, "Chaining cycle detected for promise #<Promise>"))
		return
	}
	var then Value
	if exc := Try(func() { then = obj.Get("then") }); exc != nil {
		r.RejectPromise(p, exc.Value)
		return
	}
	if !isCallable(then) {
		r.fulfill(p, v)
		return
	}
	r.QueueMicrotask(func() {
		resolve, reject := r.resolvingFunctions(p)
		if exc := Try(func() { r.Call(then, obj, resolve, reject) }); exc != nil {
			r.Call(reject, Undefined, exc.Value)
		}
	})
}

// resolvingFunctions returns the resolve and reject functions handed to
// an executor or a thenable. Only the first call of either has an effect.
func (r *Realm) resolvingFunctions(p *Promise) (*Object, *Object) {
	settled := false
	resolve := r.NewNative("", func(r *Realm, this Value, args []Value) Value {
		if !settled {
			settled = true
			r.ResolvePromise(p, arg(args, 0))
		}
		return Undefined
	})
	reject := r.NewNative("", func(r *Realm, this Value, args []Value) Value {
		if !settled {
			settled = true
			r.RejectPromise(p, arg(args, 0))
		}
		return Undefined
	})
	return resolve, reject
}

// ---------------------------------------------------------------------------
// Subscription
// ---------------------------------------------------------------------------

// subscribe registers Go callbacks on p. Callbacks run as microtasks,
// also when p has already settled.
func (r *Realm) subscribe(p *Promise, onFulfilled, onRejected func(Value)) {
	if !p.handled {
		p.handled = true
		r.rejections.Remove(p.Object)
	}
	switch p.State {
	case PromisePending:
		p.reactions = append(p.reactions, reaction{onFulfilled: onFulfilled, onRejected: onRejected})
	case PromiseFulfilled:
		v := p.Value
		r.QueueMicrotask(func() { onFulfilled(v) })
	case PromiseRejected:
		v := p.Value
		r.QueueMicrotask(func() { onRejected(v) })
	}
}

// PromiseResolve returns v if it is a promise, else a promise resolved
// with v.
func (r *Realm) PromiseResolve(v Value) *Promise {
	if p, ok := promiseOf(v); ok {
		return p
	}
	p := r.NewPromise()
	r.ResolvePromise(p, v)
	return p
}

// await adopts v and calls one of the callbacks from a microtask once it
// settles.
func (r *Realm) await(v Value, onFulfilled, onRejected func(Value)) {
	r.subscribe(r.PromiseResolve(v), onFulfilled, onRejected)
}

// then implements promise.then: the returned promise settles with the
// result of whichever handler runs.
func (r *Realm) then(p *Promise, onFulfilled, onRejected Value) *Promise {
	child := r.NewPromise()
	handle := func(handler Value, v Value, rejected bool) {
		if !isCallable(handler) {
			if rejected {
				r.RejectPromise(child, v)
			} else {
				r.ResolvePromise(child, v)
			}
			return
		}
		var res Value
		if exc := Try(func() { res = r.Call(handler, Undefined, v) }); exc != nil {
			r.RejectPromise(child, exc.Value)
			return
		}
		r.ResolvePromise(child, res)
	}
	r.subscribe(p,
		func(v Value) { handle(onFulfilled, v, false) },
		func(v Value) { handle(onRejected, v, true) })
	return child
}

// finally runs onFinally after p settles, then passes p's outcome through
// once the callback's own result settles.
func (r *Realm) finally(p *Promise, onFinally Value) *Promise {
	if !isCallable(onFinally) {
		return r.then(p, Undefined, Undefined)
	}
	child := r.NewPromise()
	pass := func(v Value, rejected bool) {
		var res Value
		if exc := Try(func() { res = r.Call(onFinally, Undefined) }); exc != nil {
			r.RejectPromise(child, exc.Value)
			return
		}
		r.await(res, func(Value) {
			if rejected {
				r.RejectPromise(child, v)
			} else {
				r.ResolvePromise(child, v)
			}
		}, func(reason Value) {
			r.RejectPromise(child, reason)
		})
	}
	r.subscribe(p,
		func(v Value) { pass(v, false) },
		func(v Value) { pass(v, true) })
	return child
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}
