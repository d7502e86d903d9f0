package vm

// NewObject creates a plain object.
func (r *Realm) NewObject() *Object {
	return NewObject(r.ObjectPrototype)
}

// NewArray creates an array holding elems.
func (r *Realm) NewArray(elems []Value) *Object {
	return &Object{Class: ClassArray, Proto: r.ArrayPrototype, Array: elems}
}

// IterResult creates a {value, done} iterator result.
func (r *Realm) IterResult(value Value, done bool) *Object {
	obj := r.NewObject()
	obj.Define("value", value)
	obj.Define("done", done)
	return obj
}

// ---------------------------------------------------------------------------
// Array iterators
// ---------------------------------------------------------------------------

// arrayIterator walks an array by index, so elements pushed during the
// loop are visited.
type arrayIterator struct {
	array *Object
	index int
	done  bool
}

func (it *arrayIterator) next() (Value, bool) {
	if it.done || it.index >= len(it.array.Array) {
		it.done = true
		return Undefined, true
	}
	v := it.array.Array[it.index]
	it.index++
	return v, false
}

func (r *Realm) newArrayIterator(arr *Object) *Object {
	return &Object{
		Class:    ClassIterator,
		Proto:    r.ArrayIteratorPrototype,
		Internal: &arrayIterator{array: arr},
	}
}

// stringChars splits s into code points.
func (r *Realm) stringChars(s string) *Object {
	var chars []Value
	for _, c := range s {
		chars = append(chars, string(c))
	}
	return r.NewArray(chars)
}

// ---------------------------------------------------------------------------
// Iteration protocol
// ---------------------------------------------------------------------------

// GetIterator returns the iterator of an iterable value.
func (r *Realm) GetIterator(v Value) Value {
	method := Value(Undefined)
	if !IsNullish(v) {
		method = r.GetField(v, SymbolIterator)
	}
	if !isCallable(method) {
		r.Throw(KindTypeError, "%s is not iterable", inspectShort(v))
	}
	it := r.Call(method, v)
	if _, ok := it.(*Object); !ok {
		r.Throw(KindTypeError, "Result of the Symbol.iterator method is not an object")
	}
	return it
}

// GetAsyncIterator returns the async iterator of v, wrapping a sync
// iterator when v has no [Symbol.asyncIterator].
func (r *Realm) GetAsyncIterator(v Value) Value {
	if !IsNullish(v) {
		if method := r.GetField(v, SymbolAsyncIterator); isCallable(method) {
			it := r.Call(method, v)
			if _, ok := it.(*Object); !ok {
				r.Throw(KindTypeError, "Result of the Symbol.asyncIterator method is not an object")
			}
			return it
		}
	}
	sync := r.GetIterator(v)
	return &Object{Class: ClassIterator, Proto: r.AsyncFromSyncPrototype, Internal: sync}
}

// IteratorStep advances it and returns the next value and whether the
// iterator is exhausted.
func (r *Realm) IteratorStep(it Value) (Value, bool) {
	if obj, ok := it.(*Object); ok {
		if ai, ok := obj.Internal.(*arrayIterator); ok {
			return ai.next()
		}
	}
	res, ok := r.invokeMethod(it, "next", nil).(*Object)
	if !ok {
		r.Throw(KindTypeError, "Iterator result is not an object")
	}
	return res.Get("value"), ToBoolean(res.Get("done"))
}

// Iterate calls fn for every value v produces, until fn returns false.
func (r *Realm) Iterate(v Value, fn func(Value) bool) {
	if arr, ok := v.(*Object); ok && arr.IsArray() {
		for i := 0; i < len(arr.Array); i++ {
			if !fn(arr.Array[i]) {
				return
			}
		}
		return
	}
	it := r.GetIterator(v)
	for {
		value, done := r.IteratorStep(it)
		if done || !fn(value) {
			return
		}
	}
}

// asyncFromSyncNext steps the wrapped sync iterator and settles the value
// before reporting it.
func asyncFromSyncNext(r *Realm, this Value, args []Value) Value {
	obj, ok := this.(*Object)
	if !ok {
		r.Throw(KindTypeError, "next method called on incompatible receiver")
	}
	p := r.NewPromise()
	exc := Try(func() {
		arg := Value(Undefined)
		if len(args) > 0 {
			arg = args[0]
		}
		res, ok := r.invokeMethod(obj.Internal, "next", []Value{arg}).(*Object)
		if !ok {
			r.Throw(KindTypeError, "Iterator result is not an object")
		}
		done := ToBoolean(res.Get("done"))
		r.await(res.Get("value"), func(v Value) {
			r.ResolvePromise(p, r.IterResult(v, done))
		}, func(reason Value) {
			r.RejectPromise(p, reason)
		})
	})
	if exc != nil {
		r.RejectPromise(p, exc.Value)
	}
	return p.Object
}
