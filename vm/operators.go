package vm

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/joomcode/errorx"

	"github.com/chazu/neojs/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// ToPrimitive converts an object by calling its valueOf and toString
// methods. hint is "number", "string" or "default".
func (r *Realm) ToPrimitive(v Value, hint string) Value {
	obj, ok := v.(*Object)
	if !ok {
		return v
	}
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		method := obj.Get(name)
		if !isCallable(method) {
			continue
		}
		res := r.Call(method, obj)
		if _, isObj := res.(*Object); !isObj {
			return res
		}
	}
	r.Throw(KindTypeError, "Cannot convert object to primitive value")
	return nil
}

// ToNumber converts v to a number.
func (r *Realm) ToNumber(v Value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case undefinedType:
		return math.NaN()
	case nullType:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return StringToNumber(x)
	case *Symbol:
		r.Throw(KindTypeError, "Cannot convert a Symbol value to a number")
	case *Object:
		return r.ToNumber(r.ToPrimitive(x, "number"))
	}
	return math.NaN()
}

// ToString converts v to a string.
func (r *Realm) ToString(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case undefinedType:
		return "undefined"
	case nullType:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case *Symbol:
		r.Throw(KindTypeError, "Cannot convert a Symbol value to a string")
	case *Object:
		return r.ToString(r.ToPrimitive(x, "string"))
	}
	return ""
}

// ToPropertyKey converts v to a string or symbol key.
func (r *Realm) ToPropertyKey(v Value) PropertyKey {
	switch x := v.(type) {
	case string:
		return x
	case *Symbol:
		return x
	case *Object:
		return r.ToPropertyKey(r.ToPrimitive(x, "string"))
	}
	return r.ToString(v)
}

// ToObject returns the object v, or throws for anything else.
func (r *Realm) ToObject(v Value) *Object {
	obj, ok := v.(*Object)
	if !ok {
		r.Throw(KindTypeError, "%s is not an object", inspectShort(v))
	}
	return obj
}

// ---------------------------------------------------------------------------
// Property access
// ---------------------------------------------------------------------------

// GetField reads host[key]. Primitives read through their prototype.
func (r *Realm) GetField(host Value, key Value) Value {
	k := r.ToPropertyKey(key)
	switch h := host.(type) {
	case *Object:
		return h.Get(k)
	case string:
		if k == "length" {
			return float64(utf8.RuneCountInString(h))
		}
		if idx, ok := arrayIndex(k); ok {
			if c, ok := runeAt(h, idx); ok {
				return c
			}
			return Undefined
		}
		return r.StringPrototype.Get(k)
	case float64:
		return r.NumberPrototype.Get(k)
	case bool:
		return r.BooleanPrototype.Get(k)
	case *Symbol:
		if k == "description" {
			return h.Description
		}
		return r.SymbolPrototype.Get(k)
	}
	r.Throw(KindTypeError, "Cannot read properties of %s (reading '%s')", r.ToString(host), keyString(k))
	return nil
}

// SetField assigns host[key] = v. Assignments to primitives are ignored.
func (r *Realm) SetField(host, key, v Value) {
	k := r.ToPropertyKey(key)
	switch h := host.(type) {
	case *Object:
		h.Set(k, v)
	case undefinedType, nullType:
		r.Throw(KindTypeError, "Cannot set properties of %s (setting '%s')", r.ToString(host), keyString(k))
	}
}

// DeleteField implements delete host[key].
func (r *Realm) DeleteField(host, key Value) Value {
	k := r.ToPropertyKey(key)
	switch h := host.(type) {
	case *Object:
		return h.Delete(k)
	case undefinedType, nullType:
		r.Throw(KindTypeError, "Cannot convert undefined or null to object")
	}
	return true
}

func runeAt(s string, idx int) (string, bool) {
	i := 0
	for _, c := range s {
		if i == idx {
			return string(c), true
		}
		i++
	}
	return "", false
}

// copyProperties copies the enumerable own properties of src onto dst.
func (r *Realm) copyProperties(dst *Object, src Value) {
	switch s := src.(type) {
	case *Object:
		if s.IsArray() {
			for i, v := range s.Array {
				dst.Define(FormatNumber(float64(i)), v)
			}
		}
		for _, e := range s.entries() {
			dst.Define(e.key, e.value)
		}
	case string:
		i := 0
		for _, c := range s {
			dst.Define(FormatNumber(float64(i)), string(c))
			i++
		}
	}
}

// enumerableKeys returns an array of the keys for-in visits: own
// enumerable string keys.
func (r *Realm) enumerableKeys(v Value) *Object {
	var keys []Value
	switch x := v.(type) {
	case *Object:
		for _, k := range x.Keys() {
			keys = append(keys, k)
		}
	case string:
		for i := 0; i < utf8.RuneCountInString(x); i++ {
			keys = append(keys, FormatNumber(float64(i)))
		}
	}
	return r.NewArray(keys)
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (r *Realm) binary(op bytecode.Opcode, a, b Value) Value {
	switch op {
	case bytecode.OpAdd:
		return r.add(a, b)
	case bytecode.OpSeq:
		return StrictEquals(a, b)
	case bytecode.OpSne:
		return !StrictEquals(a, b)
	case bytecode.OpEq:
		return r.LooseEquals(a, b)
	case bytecode.OpNe:
		return !r.LooseEquals(a, b)
	case bytecode.OpLt:
		return r.compare(a, b, false) == compareTrue
	case bytecode.OpGt:
		return r.compare(b, a, true) == compareTrue
	case bytecode.OpLe:
		return r.compare(b, a, true) == compareFalse
	case bytecode.OpGe:
		return r.compare(a, b, false) == compareFalse
	case bytecode.OpIn:
		obj, ok := b.(*Object)
		if !ok {
			r.Throw(KindTypeError, "Cannot use 'in' operator to search for '%s' in %s", r.ToString(a), inspectShort(b))
		}
		return obj.Has(r.ToPropertyKey(a))
	case bytecode.OpInstanceOf:
		return r.instanceOf(a, b)
	}

	x, y := r.ToNumber(a), r.ToNumber(b)
	switch op {
	case bytecode.OpSub:
		return x - y
	case bytecode.OpMul:
		return x * y
	case bytecode.OpDiv:
		return x / y
	case bytecode.OpMod:
		return math.Mod(x, y)
	case bytecode.OpPow:
		if math.IsNaN(y) || (math.Abs(x) == 1 && math.IsInf(y, 0)) {
			return math.NaN()
		}
		return math.Pow(x, y)
	case bytecode.OpShl:
		return float64(toInt32(x) << (toUint32(y) & 31))
	case bytecode.OpShr:
		return float64(toInt32(x) >> (toUint32(y) & 31))
	case bytecode.OpUshr:
		return float64(toUint32(x) >> (toUint32(y) & 31))
	case bytecode.OpAnd:
		return float64(toInt32(x) & toInt32(y))
	case bytecode.OpOr:
		return float64(toInt32(x) | toInt32(y))
	case bytecode.OpXor:
		return float64(toInt32(x) ^ toInt32(y))
	}
	errorx.Panic(errorx.IllegalState.New("%s is not a binary operator", op))
	return nil
}

func (r *Realm) unary(op bytecode.Opcode, v Value) Value {
	switch op {
	case bytecode.OpLogicalNot:
		return !ToBoolean(v)
	case bytecode.OpTypeof:
		return Typeof(v)
	case bytecode.OpVoid:
		return Undefined
	case bytecode.OpNot:
		return float64(^toInt32(r.ToNumber(v)))
	case bytecode.OpNeg:
		return -r.ToNumber(v)
	case bytecode.OpPlus:
		return r.ToNumber(v)
	case bytecode.OpInc:
		return r.ToNumber(v) + 1
	case bytecode.OpDec:
		return r.ToNumber(v) - 1
	}
	errorx.Panic(errorx.IllegalState.New("%s is not a unary operator", op))
	return nil
}

func (r *Realm) add(a, b Value) Value {
	pa, pb := r.ToPrimitive(a, "default"), r.ToPrimitive(b, "default")
	sa, aIsString := pa.(string)
	sb, bIsString := pb.(string)
	if aIsString || bIsString {
		if !aIsString {
			sa = r.ToString(pa)
		}
		if !bIsString {
			sb = r.ToString(pb)
		}
		return sa + sb
	}
	return r.ToNumber(pa) + r.ToNumber(pb)
}

// LooseEquals implements ==.
func (r *Realm) LooseEquals(a, b Value) bool {
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b)
	}
	switch x := a.(type) {
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case string:
			return x == StringToNumber(y)
		case bool:
			return r.LooseEquals(x, r.ToNumber(y))
		case *Object:
			return r.LooseEquals(x, r.ToPrimitive(y, "default"))
		}
		return false
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case float64, bool:
			return r.LooseEquals(StringToNumber(x), y)
		case *Object:
			return r.LooseEquals(x, r.ToPrimitive(y, "default"))
		}
		return false
	case bool:
		return r.LooseEquals(r.ToNumber(x), b)
	case *Symbol:
		if y, ok := b.(*Object); ok {
			return r.LooseEquals(x, r.ToPrimitive(y, "default"))
		}
		return a == b
	case *Object:
		if _, ok := b.(*Object); ok {
			return a == b
		}
		return r.LooseEquals(b, a)
	}
	return false
}

type compareResult int

const (
	compareFalse compareResult = iota
	compareTrue
	compareUndefined
)

// compare is the abstract relational comparison a < b. When the operands
// were swapped by the caller, b is converted first to keep source order.
func (r *Realm) compare(a, b Value, swapped bool) compareResult {
	var pa, pb Value
	if swapped {
		pb = r.ToPrimitive(b, "number")
		pa = r.ToPrimitive(a, "number")
	} else {
		pa = r.ToPrimitive(a, "number")
		pb = r.ToPrimitive(b, "number")
	}
	if sa, ok := pa.(string); ok {
		if sb, ok := pb.(string); ok {
			if strings.Compare(sa, sb) < 0 {
				return compareTrue
			}
			return compareFalse
		}
	}
	x, y := r.ToNumber(pa), r.ToNumber(pb)
	if math.IsNaN(x) || math.IsNaN(y) {
		return compareUndefined
	}
	if x < y {
		return compareTrue
	}
	return compareFalse
}

func (r *Realm) instanceOf(v, ctor Value) bool {
	c, ok := ctor.(*Object)
	if !ok || c.Func == nil {
		r.Throw(KindTypeError, "Right-hand side of 'instanceof' is not callable")
	}
	obj, ok := v.(*Object)
	if !ok {
		return false
	}
	proto, ok := c.Get("prototype").(*Object)
	if !ok {
		r.Throw(KindTypeError, "Function has non-object prototype '%s' in instanceof check", r.ToString(c.Get("prototype")))
	}
	return obj.InstanceOf(proto)
}
