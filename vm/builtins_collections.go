package vm

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

func (r *Realm) thisArray(this Value, name string) *Object {
	obj, ok := this.(*Object)
	if !ok || !obj.IsArray() {
		r.Throw(KindTypeError, "Array.prototype.%s called on %s", name, inspectShort(this))
	}
	return obj
}

func (r *Realm) callbackArg(args []Value) Value {
	fn := arg(args, 0)
	if !isCallable(fn) {
		r.Throw(KindTypeError, "%s is not a function", inspectShort(fn))
	}
	return fn
}

// relativeIndex resolves a possibly negative index argument against n.
func (r *Realm) relativeIndex(v Value, n, def int) int {
	if v == Undefined {
		return def
	}
	f := r.ToNumber(v)
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < 0 {
		f += float64(n)
		if f < 0 {
			return 0
		}
	}
	if f > float64(n) {
		return n
	}
	return int(f)
}

func (r *Realm) setupArray() {
	proto := r.ArrayPrototype

	r.method(proto, "push", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "push")
		arr.Array = append(arr.Array, args...)
		return float64(len(arr.Array))
	})
	r.method(proto, "pop", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "pop")
		n := len(arr.Array)
		if n == 0 {
			return Undefined
		}
		v := arr.Array[n-1]
		arr.Array = arr.Array[:n-1]
		return v
	})
	r.method(proto, "shift", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "shift")
		if len(arr.Array) == 0 {
			return Undefined
		}
		v := arr.Array[0]
		arr.Array = append([]Value(nil), arr.Array[1:]...)
		return v
	})
	r.method(proto, "unshift", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "unshift")
		arr.Array = append(append([]Value(nil), args...), arr.Array...)
		return float64(len(arr.Array))
	})
	join := func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "join")
		sep := ","
		if s := arg(args, 0); s != Undefined {
			sep = r.ToString(s)
		}
		parts := make([]string, len(arr.Array))
		for i, v := range arr.Array {
			if !IsNullish(v) {
				parts[i] = r.ToString(v)
			}
		}
		return strings.Join(parts, sep)
	}
	r.method(proto, "join", join)
	r.method(proto, "toString", func(r *Realm, this Value, args []Value) Value {
		return join(r, this, nil)
	})
	r.method(proto, "indexOf", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "indexOf")
		target := arg(args, 0)
		for i := r.relativeIndex(arg(args, 1), len(arr.Array), 0); i < len(arr.Array); i++ {
			if StrictEquals(arr.Array[i], target) {
				return float64(i)
			}
		}
		return float64(-1)
	})
	r.method(proto, "includes", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "includes")
		for _, v := range arr.Array {
			if SameValueZero(v, arg(args, 0)) {
				return true
			}
		}
		return false
	})
	r.method(proto, "slice", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "slice")
		n := len(arr.Array)
		start := r.relativeIndex(arg(args, 0), n, 0)
		end := r.relativeIndex(arg(args, 1), n, n)
		if end < start {
			end = start
		}
		return r.NewArray(append([]Value(nil), arr.Array[start:end]...))
	})
	r.method(proto, "concat", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "concat")
		out := append([]Value(nil), arr.Array...)
		for _, a := range args {
			if other, ok := a.(*Object); ok && other.IsArray() {
				out = append(out, other.Array...)
				continue
			}
			out = append(out, a)
		}
		return r.NewArray(out)
	})
	r.method(proto, "reverse", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "reverse")
		for i, j := 0, len(arr.Array)-1; i < j; i, j = i+1, j-1 {
			arr.Array[i], arr.Array[j] = arr.Array[j], arr.Array[i]
		}
		return arr
	})
	r.method(proto, "sort", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "sort")
		cmp := arg(args, 0)
		if cmp != Undefined && !isCallable(cmp) {
			r.Throw(KindTypeError, "The comparison function must be either a function or undefined")
		}
		var defined []Value
		undefined := 0
		for _, v := range arr.Array {
			if v == Undefined {
				undefined++
				continue
			}
			defined = append(defined, v)
		}
		sort.SliceStable(defined, func(i, j int) bool {
			if cmp == Undefined {
				return r.ToString(defined[i]) < r.ToString(defined[j])
			}
			return r.ToNumber(r.Call(cmp, Undefined, defined[i], defined[j])) < 0
		})
		for i := 0; i < undefined; i++ {
			defined = append(defined, Undefined)
		}
		arr.Array = defined
		return arr
	})

	// Callback methods see the array as it is when each element is visited.
	each := func(name string, fn func(r *Realm, arr *Object, cb, thisArg Value) Value) {
		r.method(proto, name, func(r *Realm, this Value, args []Value) Value {
			arr := r.thisArray(this, name)
			return fn(r, arr, r.callbackArg(args), arg(args, 1))
		})
	}
	visit := func(r *Realm, arr *Object, cb, thisArg Value, i int) Value {
		return r.Call(cb, thisArg, arr.Array[i], float64(i), arr)
	}
	each("forEach", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		for i := 0; i < len(arr.Array); i++ {
			visit(r, arr, cb, thisArg, i)
		}
		return Undefined
	})
	each("map", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		out := make([]Value, 0, len(arr.Array))
		for i := 0; i < len(arr.Array); i++ {
			out = append(out, visit(r, arr, cb, thisArg, i))
		}
		return r.NewArray(out)
	})
	each("filter", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		var out []Value
		for i := 0; i < len(arr.Array); i++ {
			v := arr.Array[i]
			if ToBoolean(visit(r, arr, cb, thisArg, i)) {
				out = append(out, v)
			}
		}
		return r.NewArray(out)
	})
	each("some", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		for i := 0; i < len(arr.Array); i++ {
			if ToBoolean(visit(r, arr, cb, thisArg, i)) {
				return true
			}
		}
		return false
	})
	each("every", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		for i := 0; i < len(arr.Array); i++ {
			if !ToBoolean(visit(r, arr, cb, thisArg, i)) {
				return false
			}
		}
		return true
	})
	each("find", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		for i := 0; i < len(arr.Array); i++ {
			v := arr.Array[i]
			if ToBoolean(visit(r, arr, cb, thisArg, i)) {
				return v
			}
		}
		return Undefined
	})
	each("findIndex", func(r *Realm, arr *Object, cb, thisArg Value) Value {
		for i := 0; i < len(arr.Array); i++ {
			if ToBoolean(visit(r, arr, cb, thisArg, i)) {
				return float64(i)
			}
		}
		return float64(-1)
	})
	r.method(proto, "reduce", func(r *Realm, this Value, args []Value) Value {
		arr := r.thisArray(this, "reduce")
		cb := r.callbackArg(args)
		i := 0
		var acc Value
		if len(args) > 1 {
			acc = args[1]
		} else {
			if len(arr.Array) == 0 {
				r.Throw(KindTypeError, "Reduce of empty array with no initial value")
			}
			acc = arr.Array[0]
			i = 1
		}
		for ; i < len(arr.Array); i++ {
			acc = r.Call(cb, Undefined, acc, arr.Array[i], float64(i), arr)
		}
		return acc
	})
	r.method(proto, SymbolIterator, func(r *Realm, this Value, args []Value) Value {
		return r.newArrayIterator(r.thisArray(this, "[Symbol.iterator]"))
	})
	proto.DefineHidden("values", proto.Get(SymbolIterator))

	ctor := r.NewConstructor("Array", proto, func(r *Realm, this Value, args []Value) Value {
		if len(args) == 1 {
			if n, ok := args[0].(float64); ok {
				if n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
					r.Throw(KindRangeError, "Invalid array length")
				}
				elems := make([]Value, int(n))
				for i := range elems {
					elems[i] = Undefined
				}
				return r.NewArray(elems)
			}
		}
		return r.NewArray(append([]Value(nil), args...))
	})
	r.method(ctor, "isArray", func(r *Realm, this Value, args []Value) Value {
		obj, ok := arg(args, 0).(*Object)
		return ok && obj.IsArray()
	})
	r.method(ctor, "from", func(r *Realm, this Value, args []Value) Value {
		var out []Value
		mapFn := arg(args, 1)
		r.Iterate(arg(args, 0), func(v Value) bool {
			if isCallable(mapFn) {
				v = r.Call(mapFn, Undefined, v, float64(len(out)))
			}
			out = append(out, v)
			return true
		})
		return r.NewArray(out)
	})
	r.method(ctor, "of", func(r *Realm, this Value, args []Value) Value {
		return r.NewArray(append([]Value(nil), args...))
	})
	r.DefineGlobal("Array", ctor)
}

// ---------------------------------------------------------------------------
// String
// ---------------------------------------------------------------------------

func (r *Realm) thisString(this Value, name string) string {
	if IsNullish(this) {
		r.Throw(KindTypeError, "String.prototype.%s called on null or undefined", name)
	}
	return r.ToString(this)
}

func (r *Realm) setupString() {
	proto := r.StringPrototype
	str := func(name string, fn func(r *Realm, s string, args []Value) Value) {
		r.method(proto, name, func(r *Realm, this Value, args []Value) Value {
			return fn(r, r.thisString(this, name), args)
		})
	}
	optString := func(r *Realm, v Value, def string) string {
		if v == Undefined {
			return def
		}
		return r.ToString(v)
	}

	str("toString", func(r *Realm, s string, args []Value) Value { return s })
	str("valueOf", func(r *Realm, s string, args []Value) Value { return s })
	str("charAt", func(r *Realm, s string, args []Value) Value {
		c, _ := runeAt(s, int(r.ToNumber(arg(args, 0))))
		return c
	})
	str("charCodeAt", func(r *Realm, s string, args []Value) Value {
		c, ok := runeAt(s, int(r.ToNumber(arg(args, 0))))
		if !ok {
			return math.NaN()
		}
		ch, _ := utf8.DecodeRuneInString(c)
		return float64(ch)
	})
	str("indexOf", func(r *Realm, s string, args []Value) Value {
		runes := []rune(s)
		needle := []rune(r.ToString(arg(args, 0)))
		from := r.relativeIndex(arg(args, 1), len(runes), 0)
		for i := from; i+len(needle) <= len(runes); i++ {
			if string(runes[i:i+len(needle)]) == string(needle) {
				return float64(i)
			}
		}
		return float64(-1)
	})
	str("includes", func(r *Realm, s string, args []Value) Value {
		return strings.Contains(s, r.ToString(arg(args, 0)))
	})
	str("startsWith", func(r *Realm, s string, args []Value) Value {
		return strings.HasPrefix(s, r.ToString(arg(args, 0)))
	})
	str("endsWith", func(r *Realm, s string, args []Value) Value {
		return strings.HasSuffix(s, r.ToString(arg(args, 0)))
	})
	str("slice", func(r *Realm, s string, args []Value) Value {
		runes := []rune(s)
		start := r.relativeIndex(arg(args, 0), len(runes), 0)
		end := r.relativeIndex(arg(args, 1), len(runes), len(runes))
		if end <= start {
			return ""
		}
		return string(runes[start:end])
	})
	str("substring", func(r *Realm, s string, args []Value) Value {
		runes := []rune(s)
		clamp := func(v Value, def int) int {
			if v == Undefined {
				return def
			}
			f := r.ToNumber(v)
			switch {
			case math.IsNaN(f) || f < 0:
				return 0
			case f > float64(len(runes)):
				return len(runes)
			}
			return int(f)
		}
		start, end := clamp(arg(args, 0), 0), clamp(arg(args, 1), len(runes))
		if start > end {
			start, end = end, start
		}
		return string(runes[start:end])
	})
	str("toUpperCase", func(r *Realm, s string, args []Value) Value { return strings.ToUpper(s) })
	str("toLowerCase", func(r *Realm, s string, args []Value) Value { return strings.ToLower(s) })
	str("trim", func(r *Realm, s string, args []Value) Value { return strings.TrimSpace(s) })
	str("trimStart", func(r *Realm, s string, args []Value) Value {
		return strings.TrimLeft(s, " \t\n\r\v\f")
	})
	str("trimEnd", func(r *Realm, s string, args []Value) Value {
		return strings.TrimRight(s, " \t\n\r\v\f")
	})
	str("split", func(r *Realm, s string, args []Value) Value {
		sep := arg(args, 0)
		limit := -1
		if l := arg(args, 1); l != Undefined {
			limit = int(toUint32(r.ToNumber(l)))
		}
		var parts []string
		switch {
		case sep == Undefined:
			parts = []string{s}
		case r.ToString(sep) == "":
			for _, c := range s {
				parts = append(parts, string(c))
			}
		default:
			parts = strings.Split(s, r.ToString(sep))
		}
		if limit >= 0 && limit < len(parts) {
			parts = parts[:limit]
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return r.NewArray(out)
	})
	str("repeat", func(r *Realm, s string, args []Value) Value {
		n := r.ToNumber(arg(args, 0))
		if n < 0 || math.IsInf(n, 0) {
			r.Throw(KindRangeError, "Invalid count value: %s", FormatNumber(n))
		}
		if math.IsNaN(n) {
			return ""
		}
		return strings.Repeat(s, int(n))
	})
	padding := func(start bool) func(r *Realm, s string, args []Value) Value {
		return func(r *Realm, s string, args []Value) Value {
			width := int(r.ToNumber(arg(args, 0)))
			fill := optString(r, arg(args, 1), " ")
			n := width - utf8.RuneCountInString(s)
			if n <= 0 || fill == "" {
				return s
			}
			fillRunes := []rune(strings.Repeat(fill, n/utf8.RuneCountInString(fill)+1))
			pad := string(fillRunes[:n])
			if start {
				return pad + s
			}
			return s + pad
		}
	}
	str("padStart", padding(true))
	str("padEnd", padding(false))
	str("concat", func(r *Realm, s string, args []Value) Value {
		var sb strings.Builder
		sb.WriteString(s)
		for _, a := range args {
			sb.WriteString(r.ToString(a))
		}
		return sb.String()
	})
	r.method(proto, SymbolIterator, func(r *Realm, this Value, args []Value) Value {
		return r.newArrayIterator(r.stringChars(r.thisString(this, "[Symbol.iterator]")))
	})

	ctor := r.NewConstructor("String", proto, func(r *Realm, this Value, args []Value) Value {
		if len(args) == 0 {
			return ""
		}
		if s, ok := args[0].(*Symbol); ok {
			return s.String()
		}
		return r.ToString(args[0])
	})
	ctor.Func.Constructible = false
	r.method(ctor, "fromCharCode", func(r *Realm, this Value, args []Value) Value {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteRune(rune(toUint32(r.ToNumber(a)) & 0xffff))
		}
		return sb.String()
	})
	r.DefineGlobal("String", ctor)
}

// ---------------------------------------------------------------------------
// Number and Boolean
// ---------------------------------------------------------------------------

func (r *Realm) thisNumber(this Value, name string) float64 {
	n, ok := this.(float64)
	if !ok {
		r.Throw(KindTypeError, "Number.prototype.%s requires that 'this' be a Number", name)
	}
	return n
}

func (r *Realm) setupNumber() {
	proto := r.NumberPrototype
	r.method(proto, "toString", func(r *Realm, this Value, args []Value) Value {
		n := r.thisNumber(this, "toString")
		radix := 10
		if v := arg(args, 0); v != Undefined {
			radix = int(r.ToNumber(v))
			if radix < 2 || radix > 36 {
				r.Throw(KindRangeError, "toString() radix must be between 2 and 36")
			}
		}
		if radix == 10 || n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return FormatNumber(n)
		}
		return strconv.FormatInt(int64(n), radix)
	})
	r.method(proto, "toFixed", func(r *Realm, this Value, args []Value) Value {
		n := r.thisNumber(this, "toFixed")
		digits := int(r.ToNumber(arg(args, 0)))
		if digits < 0 || digits > 100 {
			r.Throw(KindRangeError, "toFixed() digits argument must be between 0 and 100")
		}
		if math.IsNaN(n) || math.Abs(n) >= 1e21 {
			return FormatNumber(n)
		}
		return strconv.FormatFloat(n, 'f', digits, 64)
	})
	r.method(proto, "valueOf", func(r *Realm, this Value, args []Value) Value {
		return r.thisNumber(this, "valueOf")
	})

	ctor := r.NewConstructor("Number", proto, func(r *Realm, this Value, args []Value) Value {
		if len(args) == 0 {
			return 0.0
		}
		return r.ToNumber(args[0])
	})
	ctor.Func.Constructible = false
	ctor.DefineHidden("MAX_SAFE_INTEGER", float64(1<<53-1))
	ctor.DefineHidden("MIN_SAFE_INTEGER", -float64(1<<53-1))
	ctor.DefineHidden("EPSILON", math.Pow(2, -52))
	ctor.DefineHidden("POSITIVE_INFINITY", math.Inf(1))
	ctor.DefineHidden("NEGATIVE_INFINITY", math.Inf(-1))
	ctor.DefineHidden("NaN", math.NaN())
	r.method(ctor, "isInteger", func(r *Realm, this Value, args []Value) Value {
		n, ok := arg(args, 0).(float64)
		return ok && !math.IsInf(n, 0) && n == math.Trunc(n)
	})
	r.method(ctor, "isFinite", func(r *Realm, this Value, args []Value) Value {
		n, ok := arg(args, 0).(float64)
		return ok && !math.IsInf(n, 0) && !math.IsNaN(n)
	})
	r.method(ctor, "isNaN", func(r *Realm, this Value, args []Value) Value {
		n, ok := arg(args, 0).(float64)
		return ok && math.IsNaN(n)
	})
	r.DefineGlobal("Number", ctor)

	r.DefineGlobal("isNaN", r.NewNative("isNaN", func(r *Realm, this Value, args []Value) Value {
		return math.IsNaN(r.ToNumber(arg(args, 0)))
	}))
	r.DefineGlobal("isFinite", r.NewNative("isFinite", func(r *Realm, this Value, args []Value) Value {
		n := r.ToNumber(arg(args, 0))
		return !math.IsNaN(n) && !math.IsInf(n, 0)
	}))
	r.DefineGlobal("parseFloat", r.NewNative("parseFloat", func(r *Realm, this Value, args []Value) Value {
		return parseFloatPrefix(strings.TrimSpace(r.ToString(arg(args, 0))))
	}))
	r.DefineGlobal("parseInt", r.NewNative("parseInt", func(r *Realm, this Value, args []Value) Value {
		radix := 0
		if v := arg(args, 1); v != Undefined {
			radix = int(toInt32(r.ToNumber(v)))
		}
		return parseIntPrefix(strings.TrimSpace(r.ToString(arg(args, 0))), radix)
	}))

	bproto := r.BooleanPrototype
	r.method(bproto, "toString", func(r *Realm, this Value, args []Value) Value {
		return r.ToString(this)
	})
	r.method(bproto, "valueOf", returnThis)
	bctor := r.NewConstructor("Boolean", bproto, func(r *Realm, this Value, args []Value) Value {
		return ToBoolean(arg(args, 0))
	})
	bctor.Func.Constructible = false
	r.DefineGlobal("Boolean", bctor)
}

// parseFloatPrefix parses the longest numeric prefix of s.
func parseFloatPrefix(s string) float64 {
	for _, inf := range []string{"Infinity", "+Infinity"} {
		if strings.HasPrefix(s, inf) {
			return math.Inf(1)
		}
	}
	if strings.HasPrefix(s, "-Infinity") {
		return math.Inf(-1)
	}
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			end = i + 1
		case (c == '+' || c == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
			if seenDigit {
				end = i + 1
			}
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			i = len(s)
		}
	}
	if !seenDigit {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseIntPrefix parses the longest integer prefix of s in radix.
func parseIntPrefix(s string, radix int) float64 {
	sign := 1.0
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	if radix == 0 || radix == 16 {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s = s[2:]
			radix = 16
		}
	}
	if radix == 0 {
		radix = 10
	}
	if radix < 2 || radix > 36 {
		return math.NaN()
	}
	result, digits := 0.0, 0
	for _, c := range strings.ToLower(s) {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'z':
			d = int(c-'a') + 10
		default:
			d = radix
		}
		if d >= radix {
			break
		}
		result = result*float64(radix) + float64(d)
		digits++
	}
	if digits == 0 {
		return math.NaN()
	}
	return sign * result
}
