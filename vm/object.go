package vm

import (
	"strconv"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Object classes. The class decides which internal slots are meaningful
// and how the inspector prints the object.
const (
	ClassObject         = "Object"
	ClassArray          = "Array"
	ClassFunction       = "Function"
	ClassError          = "Error"
	ClassPromise        = "Promise"
	ClassGenerator      = "Generator"
	ClassAsyncGenerator = "AsyncGenerator"
	ClassIterator       = "Iterator"
)

// property is one own property slot. Hidden properties are skipped by
// key enumeration and the inspector.
type property struct {
	value  Value
	hidden bool
}

// ---------------------------------------------------------------------------
// Object: prototype-linked bag of ordered properties
// ---------------------------------------------------------------------------

// Object is every non-primitive value. Arrays keep their elements in
// Array; functions carry their code in Func; promises, generators and
// iterators keep their state in Internal.
type Object struct {
	Class    string
	Proto    *Object
	Array    []Value
	Func     *Function
	Internal interface{}

	props *linkedhashmap.Map // PropertyKey -> property, insertion ordered
}

// NewObject creates an ordinary object with the given prototype.
func NewObject(proto *Object) *Object {
	return &Object{Class: ClassObject, Proto: proto}
}

// IsArray reports whether o is an array.
func (o *Object) IsArray() bool {
	return o.Class == ClassArray
}

// Callable reports whether o can be called.
func (o *Object) Callable() bool {
	return o.Func != nil
}

func (o *Object) table() *linkedhashmap.Map {
	if o.props == nil {
		o.props = linkedhashmap.New()
	}
	return o.props
}

// GetOwn looks up an own property, including the virtual array length,
// array elements and function name.
func (o *Object) GetOwn(key PropertyKey) (Value, bool) {
	if o.Class == ClassArray {
		if key == "length" {
			return float64(len(o.Array)), true
		}
		if idx, ok := arrayIndex(key); ok {
			if idx < len(o.Array) {
				return o.Array[idx], true
			}
			return nil, false
		}
	}
	if o.props != nil {
		if p, ok := o.props.Get(key); ok {
			return p.(property).value, true
		}
	}
	if f := o.Func; f != nil {
		switch key {
		case "name":
			return f.Name, true
		case "prototype":
			if proto := f.lazyPrototype(o); proto != nil {
				return proto, true
			}
		}
	}
	return nil, false
}

// Get looks key up along the prototype chain.
func (o *Object) Get(key PropertyKey) Value {
	for obj := o; obj != nil; obj = obj.Proto {
		if v, ok := obj.GetOwn(key); ok {
			return v
		}
	}
	return Undefined
}

// HasOwn reports whether key is an own property.
func (o *Object) HasOwn(key PropertyKey) bool {
	_, ok := o.GetOwn(key)
	return ok
}

// Has reports whether key is found along the prototype chain.
func (o *Object) Has(key PropertyKey) bool {
	for obj := o; obj != nil; obj = obj.Proto {
		if obj.HasOwn(key) {
			return true
		}
	}
	return false
}

// Set assigns an own property. Array elements past the end grow the
// array, filling the gap with undefined.
func (o *Object) Set(key PropertyKey, v Value) {
	if o.Class == ClassArray {
		if key == "length" {
			o.setLength(v)
			return
		}
		if idx, ok := arrayIndex(key); ok {
			for len(o.Array) <= idx {
				o.Array = append(o.Array, Undefined)
			}
			o.Array[idx] = v
			return
		}
	}
	t := o.table()
	if p, ok := t.Get(key); ok {
		t.Put(key, property{value: v, hidden: p.(property).hidden})
		return
	}
	t.Put(key, property{value: v})
}

func (o *Object) setLength(v Value) {
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return
	}
	n := int(f)
	if n <= len(o.Array) {
		o.Array = o.Array[:n]
		return
	}
	for len(o.Array) < n {
		o.Array = append(o.Array, Undefined)
	}
}

// Define creates or overwrites an enumerable own property.
func (o *Object) Define(key PropertyKey, v Value) {
	if o.Class == ClassArray {
		if _, ok := arrayIndex(key); ok || key == "length" {
			o.Set(key, v)
			return
		}
	}
	o.table().Put(key, property{value: v})
}

// DefineHidden creates or overwrites a non-enumerable own property.
func (o *Object) DefineHidden(key PropertyKey, v Value) {
	o.table().Put(key, property{value: v, hidden: true})
}

// Delete removes an own property. Deleting an array element leaves
// undefined in its place.
func (o *Object) Delete(key PropertyKey) bool {
	if o.Class == ClassArray {
		if key == "length" {
			return false
		}
		if idx, ok := arrayIndex(key); ok {
			if idx < len(o.Array) {
				o.Array[idx] = Undefined
			}
			return true
		}
	}
	if o.props != nil {
		o.props.Remove(key)
	}
	return true
}

// Keys returns the enumerable own string keys: array indices first, then
// properties in insertion order.
func (o *Object) Keys() []string {
	var keys []string
	if o.Class == ClassArray {
		for i := range o.Array {
			keys = append(keys, strconv.Itoa(i))
		}
	}
	if o.props == nil {
		return keys
	}
	it := o.props.Iterator()
	for it.Next() {
		if it.Value().(property).hidden {
			continue
		}
		if s, ok := it.Key().(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// entry is a visible own property, string or symbol keyed.
type entry struct {
	key   PropertyKey
	value Value
}

// entries returns the visible own properties in insertion order. Array
// elements are not included.
func (o *Object) entries() []entry {
	if o.props == nil {
		return nil
	}
	out := make([]entry, 0, o.props.Size())
	it := o.props.Iterator()
	for it.Next() {
		p := it.Value().(property)
		if p.hidden {
			continue
		}
		out = append(out, entry{key: it.Key(), value: p.value})
	}
	return out
}

// InstanceOf reports whether proto appears on o's prototype chain.
func (o *Object) InstanceOf(proto *Object) bool {
	for p := o.Proto; p != nil; p = p.Proto {
		if p == proto {
			return true
		}
	}
	return false
}
